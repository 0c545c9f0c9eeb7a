package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ExpandPath resolves a leading ~ to the home directory and then substitutes
// $VAR references. A home directory that cannot be found leaves ~ in place.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

// DatabasePath returns the expanded database location.
func DatabasePath() string {
	path := viper.GetString("database.path")
	if path == "" {
		path = DefaultDatabasePath
	}
	return ExpandPath(path)
}

// Dir returns spence's configuration directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "spence"), nil
}
