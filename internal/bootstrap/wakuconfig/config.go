// Package wakuconfig resolves the transport configuration the daemon
// starts its waku node with: baked defaults, an optional YAML file, then
// environment overrides.
package wakuconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"aim-chat/go-backend/internal/waku"

	"gopkg.in/yaml.v3"
)

type DaemonConfig struct {
	Network DaemonNetworkConfig `yaml:"network"`
}

type DaemonNetworkConfig struct {
	Transport           string        `yaml:"transport"`
	Port                int           `yaml:"port"`
	EnableRelay         *bool         `yaml:"enableRelay"`
	EnableStore         *bool         `yaml:"enableStore"`
	EnableFilter        *bool         `yaml:"enableFilter"`
	EnableLightPush     *bool         `yaml:"enableLightPush"`
	BootstrapNodes      []string      `yaml:"bootstrapNodes"`
	FailoverV1          *bool         `yaml:"failoverV1"`
	MinPeers            int           `yaml:"minPeers"`
	StoreQueryFanout    int           `yaml:"storeQueryFanout"`
	ReconnectInterval   time.Duration `yaml:"reconnectInterval"`
	ReconnectBackoffMax time.Duration `yaml:"reconnectBackoffMax"`
}

func LoadFromPath(configPath string) waku.Config {
	cfg := waku.DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"go-backend/configs/config.yaml",
			"configs/config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed DaemonConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		Merge(&merged, parsed.Network)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *waku.Config, src DaemonNetworkConfig) {
	if src.Transport != "" {
		dst.Transport = src.Transport
	}
	mergeIfSet(&dst.Port, src.Port)
	if src.EnableRelay != nil {
		dst.EnableRelay = *src.EnableRelay
	}
	if src.EnableStore != nil {
		dst.EnableStore = *src.EnableStore
	}
	if src.EnableFilter != nil {
		dst.EnableFilter = *src.EnableFilter
	}
	if src.EnableLightPush != nil {
		dst.EnableLightPush = *src.EnableLightPush
	}
	if src.BootstrapNodes != nil {
		dst.BootstrapNodes = src.BootstrapNodes
	}
	if src.FailoverV1 != nil {
		dst.FailoverV1 = *src.FailoverV1
	}
	mergeIfSet(&dst.MinPeers, src.MinPeers)
	mergeIfSet(&dst.StoreQueryFanout, src.StoreQueryFanout)
	mergeIfSet(&dst.ReconnectInterval, src.ReconnectInterval)
	mergeIfSet(&dst.ReconnectBackoffMax, src.ReconnectBackoffMax)
}

func mergeIfSet[T comparable](dst *T, src T) {
	var zero T
	if src != zero {
		*dst = src
	}
}

func ApplyEnvOverrides(cfg *waku.Config) {
	if transport := strings.TrimSpace(os.Getenv("AIM_NETWORK_TRANSPORT")); transport != "" {
		cfg.Transport = transport
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_NETWORK_FAILOVER_V1")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.FailoverV1 = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_NETWORK_MIN_PEERS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			cfg.MinPeers = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("AIM_NETWORK_BOOTSTRAP_NODES")); raw != "" {
		nodes := make([]string, 0)
		for _, node := range strings.Split(raw, ",") {
			if node = strings.TrimSpace(node); node != "" {
				nodes = append(nodes, node)
			}
		}
		if len(nodes) > 0 {
			cfg.BootstrapNodes = nodes
		}
	}
}
