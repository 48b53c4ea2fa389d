package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorFormatting(t *testing.T) {
	err := NewValidationError("webhook_source", "secret_env", ErrMissingRequiredField)
	assert.Contains(t, err.Error(), "webhook_source")
	assert.Contains(t, err.Error(), "secret_env")
	assert.True(t, errors.Is(err, ErrMissingRequiredField))
}

func TestValidationErrorWithoutField(t *testing.T) {
	err := NewValidationError("defaults", "", ErrInvalidValue)
	assert.NotContains(t, err.Error(), "..")
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestLoadErrorFormatting(t *testing.T) {
	err := NewLoadError("orchestrator.yaml", ErrConfigNotFound)
	assert.Contains(t, err.Error(), "orchestrator.yaml")
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}
