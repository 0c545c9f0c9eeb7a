package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spence/internal/common"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		wantIs  error
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      3,
				RetryDelay:         time.Second,
			},
		},
		{
			name: "partial oauth credentials",
			config: Config{
				ClientID:      "test-client",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
			},
			wantErr: true,
			wantIs:  common.ErrMissingConfig,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
			wantErr: true,
			wantIs:  common.ErrInvalidConfig,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name: "invalid batch size",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
			},
			wantErr: true,
			wantIs:  common.ErrInvalidConfig,
			errMsg:  "batch size must be positive",
		},
		{
			name: "zero retry delay is valid",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
			},
		},
		{
			name: "negative retry attempts",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      -1,
			},
			wantErr: true,
			errMsg:  "retry attempts cannot be negative",
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryDelay:         -1 * time.Second,
			},
			wantErr: true,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	vars := []string{
		"GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH",
		"GOOGLE_SHEETS_SPREADSHEET_ID",
		"GOOGLE_SHEETS_SPREADSHEET_NAME",
	}

	tests := []struct {
		envVars map[string]string
		check   func(t *testing.T, c *Config)
		name    string
		wantErr bool
	}{
		{
			name: "oauth credentials",
			envVars: map[string]string{
				"GOOGLE_SHEETS_CLIENT_ID":        "test-client",
				"GOOGLE_SHEETS_CLIENT_SECRET":    "test-secret",
				"GOOGLE_SHEETS_REFRESH_TOKEN":    "test-token",
				"GOOGLE_SHEETS_SPREADSHEET_ID":   "test-id",
				"GOOGLE_SHEETS_SPREADSHEET_NAME": "Test Sheet",
			},
			check: func(t *testing.T, c *Config) {
				t.Helper()
				assert.Equal(t, "test-client", c.ClientID)
				assert.Equal(t, "test-secret", c.ClientSecret)
				assert.Equal(t, "test-token", c.RefreshToken)
				assert.Equal(t, "test-id", c.SpreadsheetID)
				assert.Equal(t, "Test Sheet", c.SpreadsheetName)
			},
		},
		{
			name: "service account path",
			envVars: map[string]string{
				"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH": "/path/to/key.json",
			},
			check: func(t *testing.T, c *Config) {
				t.Helper()
				assert.Equal(t, "/path/to/key.json", c.ServiceAccountPath)
				assert.Equal(t, DefaultSpreadsheetName, c.SpreadsheetName)
			},
		},
		{
			name:    "missing credentials",
			envVars: map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range vars {
				t.Setenv(key, tt.envVars[key])
			}

			config := DefaultConfig()
			err := config.LoadFromEnv()

			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrMissingConfig)
				return
			}
			assert.NoError(t, err)
			if tt.check != nil {
				tt.check(t, &config)
			}
		})
	}
}
