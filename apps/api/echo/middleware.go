package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Evian1k/school12k/core/identity"
)

// roleMiddleware restricts a route to the given roles. With no roles it
// only requires an authenticated session.
func roleMiddleware(roles ...identity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Role.In(roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
