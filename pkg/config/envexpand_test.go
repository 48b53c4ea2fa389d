package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "braced substitution",
			input: "secret: ${WEBHOOK_SECRET}",
			env:   map[string]string{"WEBHOOK_SECRET": "s3cr3t"},
			want:  "secret: s3cr3t",
		},
		{
			name:  "bare dollar substitution",
			input: "secret: $WEBHOOK_SECRET",
			env:   map[string]string{"WEBHOOK_SECRET": "s3cr3t"},
			want:  "secret: s3cr3t",
		},
		{
			name:  "multiple substitutions in one line",
			input: "dsn: postgres://${DB_HOST}:${DB_PORT}/app",
			env:   map[string]string{"DB_HOST": "localhost", "DB_PORT": "5432"},
			want:  "dsn: postgres://localhost:5432/app",
		},
		{
			name:  "missing variable expands to empty string",
			input: "secret: ${UNSET_SECRET}",
			env:   map[string]string{},
			want:  "secret: ",
		},
		{
			name:  "no variables present",
			input: "host: localhost\nport: 8080",
			env:   map[string]string{},
			want:  "host: localhost\nport: 8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExpandEnvWithEmptyInput(t *testing.T) {
	result := ExpandEnv([]byte(""))
	assert.Equal(t, "", string(result))
}

func TestExpandEnvDoesNotExpandRegexDollarAnchor(t *testing.T) {
	// A trailing $ with no identifier after it is not a valid reference and
	// os.ExpandEnv leaves it untouched.
	input := "pattern: ^secret.*$"
	result := ExpandEnv([]byte(input))
	assert.Equal(t, input, string(result))
}

func TestExpandEnvThreadSafety(t *testing.T) {
	input := []byte("key: ${TEST_VAR}")
	t.Setenv("TEST_VAR", "value")

	const goroutines = 100
	results := make([]string, goroutines)
	done := make(chan bool)

	for i := 0; i < goroutines; i++ {
		go func(index int) {
			results[index] = string(ExpandEnv(input))
			done <- true
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		<-done
	}

	for i, result := range results {
		assert.Equal(t, "key: value", result, "result %d should match", i)
	}
}
