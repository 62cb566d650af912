package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Development fallbacks. These identify the local docker-compose deployment
// and must be overridden in any real environment.
const (
	defaultPermitAPIURL = "https://api.permit.io/v2"
	defaultPDPURL       = "http://permit_pdp:8181"
	defaultSelfURL      = "http://web_app:8000"
	defaultAPIKey       = "permit_key_dev_local_compose_only"
	defaultEnvID        = "9177328c79be438d9d3cfab3ec759fbc"
	defaultOrgID        = "f994c767471444dd8efb7a4a78043775"
	defaultPDPID        = "5f41482c344c4a1882af39ea1a0e44a3"
	defaultProjectID    = "2a4cdf901c5f48b6bd3f80f9579e92a9"
)

// Config carries every externally tunable value. It is built once in main,
// validated before the server accepts traffic and passed by reference to the
// components that need it; nothing reads the environment mid-request.
type Config struct {
	Addr  string
	PGDSN string

	PermitAPIURL string
	PDPURL       string
	SelfURL      string

	PermitAPIKey string
	EnvID        string
	OrgID        string
	PDPID        string
	ProjectID    string

	UpstreamTimeout time.Duration
}

// Load builds a Config from SMAUG_* environment variables, falling back to
// the reference docker-compose values for everything but the database DSN.
func Load() *Config {
	return &Config{
		Addr:            getenv("SMAUG_ADDR", ":8000"),
		PGDSN:           os.Getenv("SMAUG_PG_DSN"),
		PermitAPIURL:    getenv("SMAUG_PERMIT_API_URL", defaultPermitAPIURL),
		PDPURL:          getenv("SMAUG_PDP_URL", defaultPDPURL),
		SelfURL:         getenv("SMAUG_SELF_URL", defaultSelfURL),
		PermitAPIKey:    getenv("SMAUG_PERMIT_API_KEY", defaultAPIKey),
		EnvID:           getenv("SMAUG_ENV_ID", defaultEnvID),
		OrgID:           getenv("SMAUG_ORG_ID", defaultOrgID),
		PDPID:           getenv("SMAUG_PDP_ID", defaultPDPID),
		ProjectID:       getenv("SMAUG_PROJECT_ID", defaultProjectID),
		UpstreamTimeout: getenvDuration("SMAUG_UPSTREAM_TIMEOUT", 10*time.Second),
	}
}

// Validate rejects configurations that would only fail later, mid-request.
// Placeholder credentials are refused here rather than on the first policy
// push.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"SMAUG_PERMIT_API_URL": c.PermitAPIURL,
		"SMAUG_PDP_URL":        c.PDPURL,
		"SMAUG_SELF_URL":       c.SelfURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: not an absolute URL: %q", name, raw)
		}
	}

	key := strings.TrimSpace(c.PermitAPIKey)
	switch {
	case key == "":
		return errors.New("SMAUG_PERMIT_API_KEY is required")
	case !strings.HasPrefix(key, "permit_key_"):
		return errors.New("SMAUG_PERMIT_API_KEY does not look like a Permit.io key")
	case strings.Contains(key, "YOUR_FALLBACK_TOKEN"):
		return errors.New("SMAUG_PERMIT_API_KEY is a placeholder")
	}

	for name, v := range map[string]string{
		"SMAUG_ENV_ID":     c.EnvID,
		"SMAUG_ORG_ID":     c.OrgID,
		"SMAUG_PDP_ID":     c.PDPID,
		"SMAUG_PROJECT_ID": c.ProjectID,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if c.UpstreamTimeout <= 0 {
		return errors.New("SMAUG_UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
