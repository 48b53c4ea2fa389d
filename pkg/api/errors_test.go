package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/revloop/orchestrator/pkg/apperrors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "bad request maps to 400",
			err:        apperrors.New(apperrors.KindBadRequest, "missing field"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "missing field",
		},
		{
			name:       "unauthorized maps to 401",
			err:        apperrors.New(apperrors.KindUnauthorized, "invalid bearer token"),
			expectCode: http.StatusUnauthorized,
			expectMsg:  "invalid bearer token",
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", apperrors.New(apperrors.KindNotFound, "unknown webhook source")),
			expectCode: http.StatusNotFound,
			expectMsg:  "unknown webhook source",
		},
		{
			name:       "rate limited maps to 429",
			err:        apperrors.New(apperrors.KindRateLimited, "too many requests"),
			expectCode: http.StatusTooManyRequests,
			expectMsg:  "too many requests",
		},
		{
			name:       "unknown error maps to 500",
			err:        errors.New("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
