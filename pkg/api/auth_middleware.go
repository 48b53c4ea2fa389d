package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/revloop/orchestrator/pkg/apperrors"
	"github.com/revloop/orchestrator/pkg/auth"
)

// requireServiceOrCron gates the /internal group: only the platform's own
// service-role bearer token or a cron-signed request may enqueue work.
// End-user sessions are never accepted here.
func (s *Server) requireServiceOrCron(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		principal, err := auth.Authenticate(c.Request().Context(), s.authCfg, s.userLookup, c.Request())
		if err != nil {
			return mapError(err)
		}
		if principal.Mode != auth.ModeServiceRole && principal.Mode != auth.ModeCron {
			return mapError(apperrors.New(apperrors.KindForbidden, "internal endpoints require service-role or cron authentication"))
		}
		return next(c)
	}
}
