package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spence/internal/cli"
	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/config"
	"github.com/Veraticus/spence/internal/sheets"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}

	cmd.AddCommand(authSheetsCmd())

	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authenticate with Google Sheets",
		Long: `Authenticate with Google Sheets using OAuth2.

This command will:
1. Print a URL to authenticate with Google
2. Save the token next to your config
3. Update your config file with the refresh token

You'll need to run this once before 'spence forecast --export'.`,
		RunE: runAuthSheets,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")

	return cmd
}

func runAuthSheets(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clientID := viper.GetString("sheets.client_id")
	clientSecret := viper.GetString("sheets.client_secret")

	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}

	if clientID == "" {
		clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}

	if clientID == "" || clientSecret == "" {
		return common.NewUserError("OAuth2 credentials not found, set sheets.client_id and sheets.client_secret or pass --client-id and --client-secret", common.ErrMissingConfig)
	}

	configDir, err := config.Dir()
	if err != nil {
		return err
	}
	tokenFile := filepath.Join(configDir, "sheets-token.json")

	slog.Info("Starting Google Sheets authentication", "token_file", tokenFile)

	token, err := sheets.GetOrCreateToken(ctx, sheets.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	viper.Set("sheets.client_id", clientID)
	viper.Set("sheets.client_secret", clientSecret)
	viper.Set("sheets.refresh_token", token.RefreshToken)

	out := cmd.OutOrStdout()
	if err := saveConfig(); err != nil {
		slog.Warn("Failed to update config file with refresh token", "error", err)
		fmt.Fprintln(out, cli.FormatWarning("Could not save the refresh token, add it to config.yaml as sheets.refresh_token"))
		return nil
	}

	fmt.Fprintln(out, cli.FormatSuccess("Authentication successful! Run 'spence forecast --export' to publish a forecast."))
	return nil
}

func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		configFile = filepath.Join(dir, "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0750); err != nil {
		return err
	}

	return viper.WriteConfigAs(configFile)
}
