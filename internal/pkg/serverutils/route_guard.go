package serverutils

import (
	"catalog-lens/internal/pkg/logger"
	"catalog-lens/internal/repository/implementation"
	"catalog-lens/internal/service"
	"catalog-lens/pkg/guard"

	"github.com/gofiber/fiber/v2"
)

// RoleLookup resolves the role of the user behind a request. An empty string
// means no usable user record.
type RoleLookup func(ctx *fiber.Ctx) string

// CookieRole reads the role from the request's cookie store only.
func CookieRole(resolver *service.CredentialResolver) RoleLookup {
	return func(ctx *fiber.Ctx) string {
		cookies := implementation.NewCookieStore(implementation.NewFiberCookies(ctx), false)
		role, ok := resolver.WithStores(cookies).Role(ctx.UserContext())
		if !ok {
			return ""
		}
		return string(role)
	}
}

// RouteGuard checks every navigation under the group it is mounted on. A
// refused navigation is answered with 302 so the browser replaces the entry
// instead of keeping the disallowed one in history.
func RouteGuard(policy guard.Policy, lookup RoleLookup, log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		role := lookup(ctx)
		decision := policy.Decide(role, ctx.Path())
		if decision.Allow {
			return ctx.Next()
		}

		log.Debug("RouteGuard", "Navigation redirected", map[string]interface{}{
			"path":     ctx.Path(),
			"role":     role,
			"redirect": decision.Redirect,
		})
		return ctx.Redirect(decision.Redirect, fiber.StatusFound)
	}
}
