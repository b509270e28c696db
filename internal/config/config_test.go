package config

import (
	"strings"
	"testing"
	"time"
)

// setRequired sets the minimum environment a successful Load needs.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("HMAC_SECRET", "test-secret")
	t.Setenv("NEXUS_TOKEN", "test-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port default = %q", cfg.Port)
	}
	if cfg.KeyTier != "Premium" {
		t.Errorf("KeyTier default = %q", cfg.KeyTier)
	}
	if cfg.KeyDuration != 24*time.Hour {
		t.Errorf("KeyDuration default = %v", cfg.KeyDuration)
	}
	if cfg.CommandCooldown != 5*time.Second {
		t.Errorf("CommandCooldown default = %v", cfg.CommandCooldown)
	}
	if cfg.KeepaliveInterval != 12*time.Hour {
		t.Errorf("KeepaliveInterval default = %v", cfg.KeepaliveInterval)
	}
	if cfg.Payment.Mode != "live" {
		t.Errorf("Payment.Mode default = %q", cfg.Payment.Mode)
	}
	if cfg.Payment.APIBase() != "https://api-m.paypal.com" {
		t.Errorf("APIBase live = %q", cfg.Payment.APIBase())
	}
	if got := cfg.Chat.APIBaseURL; strings.HasSuffix(got, "/") {
		t.Errorf("Chat.APIBaseURL should not keep trailing slash: %q", got)
	}
}

func TestLoad_SandboxMode(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYPAL_MODE", "SANDBOX")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Payment.Mode != "sandbox" {
		t.Fatalf("mode = %q; want sandbox", cfg.Payment.Mode)
	}
	if cfg.Payment.APIBase() != "https://api-m.sandbox.paypal.com" {
		t.Fatalf("APIBase = %q", cfg.Payment.APIBase())
	}
}

func TestLoad_InvalidModeFallsBackToLive(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYPAL_MODE", "staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Payment.Mode != "live" {
		t.Fatalf("mode = %q; want live", cfg.Payment.Mode)
	}
}

func TestLoad_MissingSecretFails(t *testing.T) {
	t.Setenv("HMAC_SECRET", "")
	t.Setenv("NEXUS_TOKEN", "test-token")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when HMAC_SECRET unset")
	}
}

func TestLoad_MissingTokenFails(t *testing.T) {
	t.Setenv("HMAC_SECRET", "test-secret")
	t.Setenv("NEXUS_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when NEXUS_TOKEN unset")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]struct {
		key, val string
	}{
		"bad log level":    {"LOG_LEVEL", "verbose"},
		"zero duration":    {"KEY_DURATION", "0s"},
		"zero cooldown":    {"COMMAND_COOLDOWN", "0s"},
		"zero keepalive":   {"KEEPALIVE_INTERVAL", "0s"},
		"negative rps":     {"RATE_RPS", "-1"},
		"zero burst":       {"RATE_BURST", "0"},
		"bad sample ratio": {"OTEL_TRACES_SAMPLER_ARG", "2.0"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestPaymentConfigured(t *testing.T) {
	p := PaymentConfig{}
	if p.Configured() {
		t.Fatal("empty credentials should not be configured")
	}
	p.ClientID, p.ClientSecret = "id", "secret"
	if !p.Configured() {
		t.Fatal("credentials present should be configured")
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, b ,,c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitCSV[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}
