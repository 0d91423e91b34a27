package mlsconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WelcomeWrapperAlgorithm selects the HPKE suite welcomes are sealed with.
type WelcomeWrapperAlgorithm string

const (
	WelcomeWrapperCurve25519  WelcomeWrapperAlgorithm = "curve25519"
	WelcomeWrapperPostQuantum WelcomeWrapperAlgorithm = "postquantum"
)

// NetworkKind names the environment the MLS sync pipeline talks to.
type NetworkKind string

const (
	NetworkLocal NetworkKind = "local"
	NetworkDev   NetworkKind = "dev"
	NetworkProd  NetworkKind = "prod"
)

// Config is the group-core tuning surface: epoch-skew tolerance, intent
// retry budget, key package rotation cadence, stream keepalive, welcome
// wrapping, and network selection. Loaded the same way the daemon loads its
// waku config: defaults, then an optional YAML file, then AIM_MLS_* env
// overrides.
type Config struct {
	MaxPastEpochs              uint32                  `yaml:"maxPastEpochs"`
	MaxIntentPublishAttempts   int                     `yaml:"maxIntentPublishAttempts"`
	KeyPackageRotationInterval time.Duration           `yaml:"keyPackageRotationInterval"`
	KeepaliveInterval          time.Duration           `yaml:"keepaliveInterval"`
	KeepaliveTimeout           time.Duration           `yaml:"keepaliveTimeout"`
	WelcomeWrapper             WelcomeWrapperAlgorithm `yaml:"welcomeWrapper"`
	Network                    NetworkConfig           `yaml:"network"`
}

type NetworkConfig struct {
	Kind NetworkKind `yaml:"kind"`
	// URL is meaningful only for NetworkLocal, pointing the pipeline at a
	// locally running node.
	URL string `yaml:"url"`
}

func DefaultConfig() Config {
	return Config{
		MaxPastEpochs:              3,
		MaxIntentPublishAttempts:   5,
		KeyPackageRotationInterval: 84 * time.Hour,
		KeepaliveInterval:          16 * time.Second,
		KeepaliveTimeout:           10 * time.Second,
		WelcomeWrapper:             WelcomeWrapperCurve25519,
		Network:                    NetworkConfig{Kind: NetworkDev},
	}
}

// LoadFromPath resolves the effective Config: defaults, merged with the
// YAML file at configPath when present (an unreadable or unparseable file
// is skipped, not fatal, matching the waku config loader), then env
// overrides, then validation clamps.
func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var parsed struct {
				MLS Config `yaml:"mls"`
			}
			if err := yaml.Unmarshal(data, &parsed); err == nil {
				Merge(&cfg, parsed.MLS)
			}
		}
	}
	ApplyEnvOverrides(&cfg)
	cfg.Clamp()
	return cfg
}

// FromEnv resolves a Config from defaults plus env overrides alone.
func FromEnv() Config {
	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)
	cfg.Clamp()
	return cfg
}

func Merge(dst *Config, src Config) {
	if src.MaxPastEpochs != 0 {
		dst.MaxPastEpochs = src.MaxPastEpochs
	}
	if src.MaxIntentPublishAttempts != 0 {
		dst.MaxIntentPublishAttempts = src.MaxIntentPublishAttempts
	}
	if src.KeyPackageRotationInterval != 0 {
		dst.KeyPackageRotationInterval = src.KeyPackageRotationInterval
	}
	if src.KeepaliveInterval != 0 {
		dst.KeepaliveInterval = src.KeepaliveInterval
	}
	if src.KeepaliveTimeout != 0 {
		dst.KeepaliveTimeout = src.KeepaliveTimeout
	}
	if src.WelcomeWrapper != "" {
		dst.WelcomeWrapper = src.WelcomeWrapper
	}
	if src.Network.Kind != "" {
		dst.Network.Kind = src.Network.Kind
	}
	if src.Network.URL != "" {
		dst.Network.URL = src.Network.URL
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv("AIM_MLS_MAX_PAST_EPOCHS")); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
			cfg.MaxPastEpochs = uint32(v)
		}
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_MLS_MAX_INTENT_PUBLISH_ATTEMPTS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			cfg.MaxIntentPublishAttempts = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_MLS_KEY_PACKAGE_ROTATION_INTERVAL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.KeyPackageRotationInterval = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_MLS_KEEPALIVE_INTERVAL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.KeepaliveInterval = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_MLS_KEEPALIVE_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.KeepaliveTimeout = d
		}
	}
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv("AIM_MLS_WELCOME_WRAPPER"))); raw != "" {
		cfg.WelcomeWrapper = WelcomeWrapperAlgorithm(raw)
	}
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv("AIM_MLS_NETWORK"))); raw != "" {
		cfg.Network.Kind = NetworkKind(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_MLS_NETWORK_URL")); raw != "" {
		cfg.Network.URL = raw
	}
}

// Clamp coerces out-of-range or unknown values back to their defaults, so a
// bad file or env var degrades to known-good behavior instead of failing
// daemon startup.
func (c *Config) Clamp() {
	defaults := DefaultConfig()
	if c.MaxIntentPublishAttempts <= 0 {
		c.MaxIntentPublishAttempts = defaults.MaxIntentPublishAttempts
	}
	if c.KeyPackageRotationInterval <= 0 {
		c.KeyPackageRotationInterval = defaults.KeyPackageRotationInterval
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = defaults.KeepaliveInterval
	}
	if c.KeepaliveTimeout <= 0 {
		c.KeepaliveTimeout = defaults.KeepaliveTimeout
	}
	switch c.WelcomeWrapper {
	case WelcomeWrapperCurve25519, WelcomeWrapperPostQuantum:
	default:
		c.WelcomeWrapper = defaults.WelcomeWrapper
	}
	switch c.Network.Kind {
	case NetworkLocal, NetworkDev, NetworkProd:
	default:
		c.Network = defaults.Network
	}
	if c.Network.Kind != NetworkLocal {
		c.Network.URL = ""
	}
}

// Validate reports a configuration a caller built by hand (rather than
// through LoadFromPath, which clamps instead) that cannot be served.
func (c Config) Validate() error {
	if c.MaxIntentPublishAttempts <= 0 {
		return fmt.Errorf("maxIntentPublishAttempts must be positive, got %d", c.MaxIntentPublishAttempts)
	}
	if c.KeepaliveInterval <= 0 || c.KeepaliveTimeout <= 0 {
		return fmt.Errorf("keepalive interval and timeout must be positive")
	}
	switch c.WelcomeWrapper {
	case WelcomeWrapperCurve25519, WelcomeWrapperPostQuantum:
	default:
		return fmt.Errorf("unknown welcome wrapper algorithm %q", c.WelcomeWrapper)
	}
	switch c.Network.Kind {
	case NetworkLocal, NetworkDev, NetworkProd:
	default:
		return fmt.Errorf("unknown network kind %q", c.Network.Kind)
	}
	if c.Network.Kind == NetworkLocal && strings.TrimSpace(c.Network.URL) == "" {
		return fmt.Errorf("network kind local requires a url")
	}
	return nil
}
