package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
)

// identityMiddleware resolves the request's EffectiveIdentity once, right after the JWT middleware.
// Handlers read it from the context and pass it down explicitly.
func identityMiddleware(resolver *identity.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			p := claims.Principal()
			ident, err := resolver.Resolve(p)
			if err != nil {
				return errors.Wrap(err, "resolving identity")
			}
			ctx.Set(contextPrincipalKey, *p)
			ctx.Set(contextIdentityKey, ident)
			return next(ctx)
		}
	}
}

// adminMiddleware checks the principal's own role, whoever it impersonates.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context principal")
			}
			if p.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
