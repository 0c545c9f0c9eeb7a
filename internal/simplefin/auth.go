package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/spence/internal/common"
)

// AuthState represents the saved SimpleFIN authentication state.
type AuthState struct {
	ClaimedAt  time.Time `json:"claimed_at"`
	AccessURL  string    `json:"access_url"`
	ClaimToken string    `json:"claim_token_hash"` // Only the ends of the token, for identification
}

// DefaultStateFile returns where a claimed access URL is kept.
func DefaultStateFile() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "spence", "simplefin_auth.json"), nil
}

// LoadOrClaimAuth loads the saved access URL, claiming token when none is
// saved yet. A setup token can be claimed only once.
func LoadOrClaimAuth(ctx context.Context, httpClient *http.Client, token, stateFile string) (*AuthState, error) {
	auth, err := loadAuthState(stateFile)
	if err == nil && auth.AccessURL != "" {
		slog.Info("Using saved SimpleFIN access URL",
			"claimed_at", auth.ClaimedAt.Format("2006-01-02"),
			"state_file", stateFile)
		return auth, nil
	}

	if token == "" {
		return nil, fmt.Errorf("%w: simplefin token is required until an access URL has been claimed", common.ErrMissingConfig)
	}

	slog.Info("No saved auth found, claiming new SimpleFIN token")
	accessURL, err := claimToken(ctx, httpClient, token)
	if err != nil {
		return nil, fmt.Errorf("failed to claim token: %w", err)
	}

	newAuth := &AuthState{
		AccessURL:  accessURL,
		ClaimedAt:  time.Now(),
		ClaimToken: hashToken(token),
	}
	if err := saveAuthState(stateFile, newAuth); err != nil {
		return nil, fmt.Errorf("failed to save auth state: %w", err)
	}

	slog.Info("Claimed and saved SimpleFIN access URL", "state_file", stateFile)
	return newAuth, nil
}

// claimToken exchanges a base64 claim URL for an access URL.
func claimToken(ctx context.Context, httpClient *http.Client, token string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("%w: failed to decode SimpleFIN token: %w", common.ErrInvalidConfig, err)
		}
	}

	claimURL := string(decoded)
	if !isHTTPURL(claimURL) {
		return "", fmt.Errorf("%w: decoded token is not a valid URL", common.ErrInvalidConfig)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim access URL: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read access URL: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to claim SimpleFIN access: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	accessURL := strings.TrimSpace(string(body))
	if !isHTTPURL(accessURL) {
		return "", fmt.Errorf("invalid access URL received")
	}
	return accessURL, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func loadAuthState(path string) (*AuthState, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	var auth AuthState
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func saveAuthState(path string, auth *AuthState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func hashToken(token string) string {
	if len(token) > 16 {
		return token[:8] + "..." + token[len(token)-8:]
	}
	return "short_token"
}
