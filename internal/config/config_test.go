package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.PermitAPIURL != defaultPermitAPIURL {
		t.Fatalf("unexpected permit api url: %s", cfg.PermitAPIURL)
	}
	if cfg.PDPURL != defaultPDPURL {
		t.Fatalf("unexpected pdp url: %s", cfg.PDPURL)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Fatalf("unexpected upstream timeout: %s", cfg.UpstreamTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("reference defaults must validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SMAUG_PDP_URL", "http://localhost:8181")
	t.Setenv("SMAUG_UPSTREAM_TIMEOUT", "3s")

	cfg := Load()
	if cfg.PDPURL != "http://localhost:8181" {
		t.Fatalf("override ignored: %s", cfg.PDPURL)
	}
	if cfg.UpstreamTimeout != 3*time.Second {
		t.Fatalf("timeout override ignored: %s", cfg.UpstreamTimeout)
	}
}

func TestValidateRejectsBadKey(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"wrong shape": "sk_live_abc123",
		"placeholder": "permit_key_YOUR_FALLBACK_TOKEN",
	}
	for name, key := range cases {
		cfg := Load()
		cfg.PermitAPIKey = key
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error for key %q", name, key)
		}
	}
}

func TestValidateRejectsRelativeURL(t *testing.T) {
	cfg := Load()
	cfg.PDPURL = "permit_pdp:8181"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for relative URL")
	}
	if !strings.Contains(err.Error(), "SMAUG_PDP_URL") {
		t.Fatalf("error does not name the offending variable: %v", err)
	}
}
