package controller

import (
	"errors"

	"catalog-lens/internal/dto"
	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/repository/contract"
	"catalog-lens/internal/repository/implementation"
	"catalog-lens/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(api fiber.Router, root fiber.Router)
	SignIn(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type sessionController struct {
	resolver     *service.CredentialResolver
	verifier     *service.SessionVerifier
	durable      contract.CredentialStore
	signInPath   string
	cookieSecure bool
	logger       logger.ILogger
}

func NewSessionController(
	resolver *service.CredentialResolver,
	verifier *service.SessionVerifier,
	durable contract.CredentialStore,
	signInPath string,
	cookieSecure bool,
	log logger.ILogger,
) ISessionController {
	return &sessionController{
		resolver:     resolver,
		verifier:     verifier,
		durable:      durable,
		signInPath:   signInPath,
		cookieSecure: cookieSecure,
		logger:       log,
	}
}

func (c *sessionController) RegisterRoutes(api fiber.Router, root fiber.Router) {
	api.Post("/session", c.SignIn)
	api.Get("/auth/status", c.Status)
	root.Get("/logout", c.Logout)
}

// sessionFor binds the durable store and the request's cookies, in that
// order of precedence.
func (c *sessionController) sessionFor(ctx *fiber.Ctx) *service.CredentialResolver {
	cookies := implementation.NewCookieStore(implementation.NewFiberCookies(ctx), c.cookieSecure)
	return c.resolver.WithStores(c.durable, cookies)
}

func (c *sessionController) SignIn(ctx *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid sign-in payload")
	}

	if err := c.sessionFor(ctx).Save(ctx.UserContext(), req.ToSession()); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"code":    400,
				"message": err.Error(),
			})
		}
		c.logger.Error("SessionController", "Failed to store session", map[string]interface{}{"error": err.Error()})
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"code":    500,
			"message": "Failed to store session",
		})
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Signed in",
		"data": dto.AuthStatusResponse{
			LoggedIn: true,
			Role:     req.User.Role.String(),
		},
	})
}

// Logout clears every store and sends the browser to the sign-in page with a
// full navigation, so no in-memory UI state survives.
func (c *sessionController) Logout(ctx *fiber.Ctx) error {
	if err := c.sessionFor(ctx).Logout(ctx.UserContext()); err != nil {
		c.logger.Warn("SessionController", "Logout left some stores uncleared", map[string]interface{}{"error": err.Error()})
	}
	return ctx.Redirect(c.signInPath, fiber.StatusFound)
}

func (c *sessionController) Status(ctx *fiber.Ctx) error {
	session := c.sessionFor(ctx)
	reqCtx := ctx.UserContext()

	res := dto.AuthStatusResponse{LoggedIn: session.IsLoggedIn(reqCtx)}
	if role, ok := session.Role(reqCtx); ok {
		res.Role = role.String()
	}
	if ctx.QueryBool("verify") {
		verified := c.verifier.Verify(service.WithTokenSource(reqCtx, session))
		res.Verified = &verified
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Auth status",
		"data":    res,
	})
}
