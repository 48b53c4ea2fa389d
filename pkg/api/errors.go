package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

// mapError maps a pipeline/service-layer error to an HTTP error response.
// apperrors.Error already carries its own HTTP status via the closed Kind
// taxonomy; anything else is an unexpected internal error.
func mapError(err error) *echo.HTTPError {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperrors.KindInternal {
			slog.Error("unexpected internal error", "error", err)
		}
		return echo.NewHTTPError(appErr.HTTPStatus(), appErr.Error())
	}

	slog.Error("unmapped error reached the API boundary", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
