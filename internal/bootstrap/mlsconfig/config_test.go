package mlsconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.MaxPastEpochs != 3 {
		t.Fatalf("expected default max past epochs 3, got %d", cfg.MaxPastEpochs)
	}
	if cfg.MaxIntentPublishAttempts != 5 {
		t.Fatalf("expected default publish attempts 5, got %d", cfg.MaxIntentPublishAttempts)
	}
	if cfg.KeepaliveInterval != 16*time.Second || cfg.KeepaliveTimeout != 10*time.Second {
		t.Fatalf("unexpected keepalive defaults: %v / %v", cfg.KeepaliveInterval, cfg.KeepaliveTimeout)
	}
	if cfg.WelcomeWrapper != WelcomeWrapperCurve25519 {
		t.Fatalf("expected curve25519 wrapper default, got %q", cfg.WelcomeWrapper)
	}
}

func TestLoadFromPathMergesYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
mls:
  maxPastEpochs: 7
  maxIntentPublishAttempts: 2
  keepaliveInterval: 20s
  welcomeWrapper: postquantum
  network:
    kind: local
    url: http://127.0.0.1:9000
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AIM_MLS_MAX_PAST_EPOCHS", "1")

	cfg := LoadFromPath(path)
	if cfg.MaxPastEpochs != 1 {
		t.Fatalf("env override should win over yaml: got %d", cfg.MaxPastEpochs)
	}
	if cfg.MaxIntentPublishAttempts != 2 {
		t.Fatalf("yaml value should override default: got %d", cfg.MaxIntentPublishAttempts)
	}
	if cfg.KeepaliveInterval != 20*time.Second {
		t.Fatalf("yaml keepalive not applied: %v", cfg.KeepaliveInterval)
	}
	if cfg.KeepaliveTimeout != 10*time.Second {
		t.Fatalf("unset yaml field should keep default: %v", cfg.KeepaliveTimeout)
	}
	if cfg.WelcomeWrapper != WelcomeWrapperPostQuantum {
		t.Fatalf("yaml wrapper not applied: %q", cfg.WelcomeWrapper)
	}
	if cfg.Network.Kind != NetworkLocal || cfg.Network.URL != "http://127.0.0.1:9000" {
		t.Fatalf("yaml network not applied: %+v", cfg.Network)
	}
}

func TestLoadFromPathMissingFileFallsBackToDefaults(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg != DefaultConfig() {
		t.Fatalf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestClampCoercesBadValues(t *testing.T) {
	cfg := Config{
		MaxIntentPublishAttempts:   -1,
		KeyPackageRotationInterval: -time.Hour,
		WelcomeWrapper:             "rot13",
		Network:                    NetworkConfig{Kind: "staging", URL: "x"},
	}
	cfg.Clamp()
	defaults := DefaultConfig()
	if cfg.MaxIntentPublishAttempts != defaults.MaxIntentPublishAttempts {
		t.Fatalf("attempts not clamped: %d", cfg.MaxIntentPublishAttempts)
	}
	if cfg.KeyPackageRotationInterval != defaults.KeyPackageRotationInterval {
		t.Fatalf("rotation interval not clamped: %v", cfg.KeyPackageRotationInterval)
	}
	if cfg.WelcomeWrapper != defaults.WelcomeWrapper {
		t.Fatalf("wrapper not clamped: %q", cfg.WelcomeWrapper)
	}
	if cfg.Network != defaults.Network {
		t.Fatalf("network not clamped: %+v", cfg.Network)
	}
}

func TestValidateRejectsLocalWithoutURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = NetworkConfig{Kind: NetworkLocal}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for local network without url")
	}
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("AIM_MLS_MAX_PAST_EPOCHS", "not-a-number")
	t.Setenv("AIM_MLS_KEEPALIVE_TIMEOUT", "-5s")
	cfg := FromEnv()
	defaults := DefaultConfig()
	if cfg.MaxPastEpochs != defaults.MaxPastEpochs {
		t.Fatalf("malformed env should keep default, got %d", cfg.MaxPastEpochs)
	}
	if cfg.KeepaliveTimeout != defaults.KeepaliveTimeout {
		t.Fatalf("negative duration should keep default, got %v", cfg.KeepaliveTimeout)
	}
}
