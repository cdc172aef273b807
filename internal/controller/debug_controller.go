package controller

import (
	"time"

	"catalog-lens/internal/dto"
	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/repository/contract"
	"catalog-lens/internal/repository/implementation"
	"catalog-lens/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LogReader exposes the tail of the application log.
type LogReader interface {
	RecentLogs(module string, limit int) ([]logger.LogEntry, error)
}

type IDebugController interface {
	RegisterRoutes(r fiber.Router)
	AuthState(ctx *fiber.Ctx) error
}

type debugController struct {
	resolver *service.CredentialResolver
	durable  contract.CredentialStore
	logs     LogReader
}

func NewDebugController(resolver *service.CredentialResolver, durable contract.CredentialStore, logs LogReader) IDebugController {
	return &debugController{resolver: resolver, durable: durable, logs: logs}
}

func (c *debugController) RegisterRoutes(r fiber.Router) {
	r.Get("/debug/auth", c.AuthState)
}

// AuthState dumps what every store holds plus the recent credential log.
// The token itself is never echoed.
func (c *debugController) AuthState(ctx *fiber.Ctx) error {
	cookies := implementation.NewCookieStore(implementation.NewFiberCookies(ctx), false)
	session := c.resolver.WithStores(c.durable, cookies)
	reqCtx := ctx.UserContext()

	res := dto.DebugAuthResponse{LoggedIn: session.IsLoggedIn(reqCtx)}
	if role, ok := session.Role(reqCtx); ok {
		res.Role = role.String()
	}
	if token, ok := session.Token(reqCtx); ok {
		res.Token = describeToken(token, time.Now())
	}

	for _, snap := range session.Snapshot(reqCtx) {
		res.Stores = append(res.Stores, dto.StoreStateResponse{
			Store:     snap.Store,
			HasToken:  snap.HasToken,
			User:      snap.User,
			UserError: snap.UserErr,
		})
	}

	if c.logs != nil {
		entries, err := c.logs.RecentLogs(ctx.Query("module", "Credential"), ctx.QueryInt("limit", 20))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		res.Logs = entries
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Auth debug state",
		"data":    res,
	})
}

// describeToken reads the claims without checking the signature; the kiosk
// does not hold the signing key.
func describeToken(token string, now time.Time) *dto.TokenClaimsResponse {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return &dto.TokenClaimsResponse{ParseError: err.Error()}
	}

	res := &dto.TokenClaimsResponse{}
	if sub, err := claims.GetSubject(); err == nil {
		res.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		res.ExpiresAt = &t
		res.Expired = now.After(t)
	}
	return res
}
