// Package config reads spence settings through viper.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone data for hosts without a zoneinfo database

	"github.com/spf13/viper"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/plaid"
	"github.com/Veraticus/spence/internal/simplefin"
)

// Defaults for settings read through viper.
const (
	DefaultDatabasePath     = "~/.config/spence/spence.db"
	DefaultTimezone         = "Asia/Colombo"
	DefaultHistoryDays      = 60
	MinHistoryDays          = 7
	DefaultServerAddr       = ":8080"
	DefaultDailyAggregation = "0 0 * * *"
)

// SetDefaults registers default values for every setting.
func SetDefaults() {
	viper.SetDefault("database.path", DefaultDatabasePath)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("forecast.history_days", DefaultHistoryDays)
	viper.SetDefault("forecast.seed", 0)
	viper.SetDefault("timezone", DefaultTimezone)
	viper.SetDefault("server.addr", DefaultServerAddr)
	viper.SetDefault("schedule.daily_aggregation", DefaultDailyAggregation)
	viper.SetDefault("plaid.environment", "sandbox")
}

// Location returns the zone in which calendar days are cut.
func Location() (*time.Location, error) {
	name := viper.GetString("timezone")
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", common.ErrInvalidConfig, name, err)
	}
	return loc, nil
}

// HistoryDays returns how many days of aggregates feed a forecast.
func HistoryDays() (int, error) {
	days := viper.GetInt("forecast.history_days")
	if days == 0 {
		return DefaultHistoryDays, nil
	}
	if days < MinHistoryDays {
		return 0, fmt.Errorf("%w: forecast.history_days must be at least %d, got %d",
			common.ErrInvalidConfig, MinHistoryDays, days)
	}
	return days, nil
}

// LoadPlaidConfig loads Plaid credentials for userID.
func LoadPlaidConfig(userID string) (plaid.Config, error) {
	cfg := plaid.Config{
		ClientID:    viper.GetString("plaid.client_id"),
		Secret:      viper.GetString("plaid.secret"),
		Environment: viper.GetString("plaid.environment"),
		AccessToken: viper.GetString("plaid.access_token"),
		UserID:      userID,
	}
	if err := cfg.Validate(); err != nil {
		return plaid.Config{}, err
	}
	return cfg, nil
}

// LoadSimpleFINConfig loads SimpleFIN settings for userID.
func LoadSimpleFINConfig(userID string) simplefin.Config {
	return simplefin.Config{
		Token:     viper.GetString("simplefin.token"),
		StateFile: ExpandPath(viper.GetString("simplefin.state_file")),
		UserID:    userID,
	}
}
