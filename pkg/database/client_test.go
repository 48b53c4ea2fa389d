package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{DSN: "postgres://localhost/orchestrator", MaxOpenConns: 10, MaxIdleConns: 5},
			wantErr: false,
		},
		{
			name:    "missing dsn",
			cfg:     Config{MaxOpenConns: 10, MaxIdleConns: 5},
			wantErr: true,
		},
		{
			name:    "idle conns exceed open conns",
			cfg:     Config{DSN: "postgres://localhost/orchestrator", MaxOpenConns: 5, MaxIdleConns: 10},
			wantErr: true,
		},
		{
			name:    "zero max open conns",
			cfg:     Config{DSN: "postgres://localhost/orchestrator", MaxOpenConns: 0},
			wantErr: true,
		},
		{
			name:    "negative idle conns",
			cfg:     Config{DSN: "postgres://localhost/orchestrator", MaxOpenConns: 10, MaxIdleConns: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidateAcceptsZeroConnMaxLifetime(t *testing.T) {
	cfg := Config{DSN: "postgres://localhost/orchestrator", MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 0 * time.Second}
	assert.NoError(t, cfg.Validate())
}
