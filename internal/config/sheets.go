package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/spence/internal/sheets"
)

// LoadSheetsConfig loads Google Sheets configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or SPENCE_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	config.ServiceAccountPath = ExpandPath(viper.GetString("sheets.service_account_path"))
	config.ClientID = viper.GetString("sheets.client_id")
	config.ClientSecret = viper.GetString("sheets.client_secret")
	config.RefreshToken = viper.GetString("sheets.refresh_token")
	config.SpreadsheetID = viper.GetString("sheets.spreadsheet_id")
	if v := viper.GetString("sheets.spreadsheet_name"); v != "" {
		config.SpreadsheetName = v
	}
	if v := viper.GetString("timezone"); v != "" {
		config.TimeZone = v
	}

	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	if config.ServiceAccountPath == "" {
		config.ServiceAccountPath = ExpandPath(os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	}
	fallback(&config.ClientID, "GOOGLE_SHEETS_CLIENT_ID")
	fallback(&config.ClientSecret, "GOOGLE_SHEETS_CLIENT_SECRET")
	fallback(&config.RefreshToken, "GOOGLE_SHEETS_REFRESH_TOKEN")
	fallback(&config.SpreadsheetID, "GOOGLE_SHEETS_SPREADSHEET_ID")
	if config.SpreadsheetName == sheets.DefaultSpreadsheetName {
		if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" {
			config.SpreadsheetName = v
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
