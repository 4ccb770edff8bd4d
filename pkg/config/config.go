// pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fixed fallback endpoints used when neither a workspace-scoped nor a global
// key provides a value.
const (
	DefaultTokenURL   = "https://auth.example.com/oauth2/token"
	DefaultAPIBaseURL = "https://api.example.com"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Workspace selected when a caller does not name one.
	DefaultWorkspace string

	// Global credential defaults; workspace-scoped env keys
	// (<workspace>_<FIELD>) override these per workspace.
	TokenURL        string
	ClientID        string
	ClientSecret    string
	APIBaseURL      string
	FlowIDNerv      string
	FlowIDRecurring string

	// Identity-provider administrative connection. All four must be set for
	// the provider-backed credential source to be enabled.
	IDPBaseURL           string
	IDPRealm             string
	IDPAdminClientID     string
	IDPAdminClientSecret string

	// Optional YAML file with per-workspace credential entries (dev/local).
	WorkspacesFile string

	// Explicit CORS allow-list for the credential endpoint; never a wildcard.
	CORSAllowedOrigins []string

	// Bound on every outbound call (token exchange, IdP lookup, dispatch).
	HTTPTimeout time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("TRYIT_ENV", "dev"),
		HTTPAddr:             env("TRYIT_HTTP_ADDR", ":8085"),
		DefaultWorkspace:     env("DEFAULT_WORKSPACE", ""),
		TokenURL:             env("AUTH_TOKEN_URL", DefaultTokenURL),
		ClientID:             env("AUTH_CLIENT_ID", ""),
		ClientSecret:         env("AUTH_CLIENT_SECRET", ""),
		APIBaseURL:           env("API_BASE_URL", DefaultAPIBaseURL),
		FlowIDNerv:           env("FLOW_ID_NERV", ""),
		FlowIDRecurring:      env("FLOW_ID_RECURRING", ""),
		IDPBaseURL:           env("IDP_BASE_URL", ""),
		IDPRealm:             env("IDP_REALM", ""),
		IDPAdminClientID:     env("IDP_ADMIN_CLIENT_ID", ""),
		IDPAdminClientSecret: env("IDP_ADMIN_CLIENT_SECRET", ""),
		WorkspacesFile:       env("WORKSPACES_FILE", ""),
		CORSAllowedOrigins:   splitCSV(env("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		HTTPTimeout:          envDur("HTTP_TIMEOUT_SEC", 15) * time.Second,
	}
	return cfg
}

// IDPConfigured reports whether the identity-provider source can run.
func (c Config) IDPConfigured() bool {
	return c.IDPBaseURL != "" && c.IDPRealm != "" && c.IDPAdminClientID != "" && c.IDPAdminClientSecret != ""
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		if i > 0 {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
