package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// webhookHandler returns a handler that hands the request to the pipeline
// under the given source name. Source names match the registered
// webhookingest.Source.Name() values exactly.
func (s *Server) webhookHandler(sourceName string) echo.HandlerFunc {
	return func(c *echo.Context) error {
		result, err := s.pipeline.Handle(c.Request().Context(), sourceName, c.Request())
		if err != nil {
			return mapError(err)
		}

		return c.JSON(http.StatusOK, webhookResponse{
			EventID:   result.EventID,
			Status:    string(result.Status),
			Duplicate: result.Duplicate,
		})
	}
}
