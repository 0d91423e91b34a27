package wakuconfig

import (
	"testing"
	"time"

	"aim-chat/go-backend/internal/waku"
)

func TestMergeAppliesExplicitValues(t *testing.T) {
	enable := false
	dst := waku.DefaultConfig()
	Merge(&dst, DaemonNetworkConfig{
		Transport:           waku.TransportGoWaku,
		Port:                61000,
		EnableRelay:         &enable,
		BootstrapNodes:      []string{"/dns4/a/tcp/1"},
		MinPeers:            4,
		StoreQueryFanout:    5,
		ReconnectInterval:   2 * time.Second,
		ReconnectBackoffMax: 40 * time.Second,
	})

	if dst.Transport != waku.TransportGoWaku {
		t.Fatalf("expected transport override, got %q", dst.Transport)
	}
	if dst.Port != 61000 {
		t.Fatalf("expected port override, got %d", dst.Port)
	}
	if dst.EnableRelay {
		t.Fatal("expected explicit enableRelay=false to apply")
	}
	if len(dst.BootstrapNodes) != 1 {
		t.Fatalf("expected bootstrap nodes override, got %v", dst.BootstrapNodes)
	}
	if dst.MinPeers != 4 || dst.StoreQueryFanout != 5 {
		t.Fatalf("expected peer tuning override, got %d/%d", dst.MinPeers, dst.StoreQueryFanout)
	}
	if dst.ReconnectInterval != 2*time.Second || dst.ReconnectBackoffMax != 40*time.Second {
		t.Fatalf("expected reconnect override, got %s/%s", dst.ReconnectInterval, dst.ReconnectBackoffMax)
	}
}

func TestMergeDoesNotOverwriteDefaultsWhenUnset(t *testing.T) {
	dst := waku.DefaultConfig()
	Merge(&dst, DaemonNetworkConfig{})
	def := waku.DefaultConfig()
	if dst.Transport != def.Transport || dst.EnableRelay != def.EnableRelay || dst.MinPeers != def.MinPeers {
		t.Fatalf("unset fields must keep defaults, got %+v", dst)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AIM_NETWORK_TRANSPORT", waku.TransportGoWaku)
	t.Setenv("AIM_NETWORK_FAILOVER_V1", "false")
	t.Setenv("AIM_NETWORK_MIN_PEERS", "7")
	t.Setenv("AIM_NETWORK_BOOTSTRAP_NODES", "/dns4/a/tcp/1, /dns4/b/tcp/2")

	cfg := waku.DefaultConfig()
	ApplyEnvOverrides(&cfg)
	if cfg.Transport != waku.TransportGoWaku {
		t.Fatalf("expected transport env override, got %q", cfg.Transport)
	}
	if cfg.FailoverV1 {
		t.Fatal("expected failover disabled via env")
	}
	if cfg.MinPeers != 7 {
		t.Fatalf("expected minPeers=7, got %d", cfg.MinPeers)
	}
	if len(cfg.BootstrapNodes) != 2 {
		t.Fatalf("expected two bootstrap nodes, got %v", cfg.BootstrapNodes)
	}
}

func TestApplyEnvOverridesIgnoresInvalidValues(t *testing.T) {
	t.Setenv("AIM_NETWORK_FAILOVER_V1", "maybe")
	t.Setenv("AIM_NETWORK_MIN_PEERS", "-3")
	cfg := waku.DefaultConfig()
	ApplyEnvOverrides(&cfg)
	def := waku.DefaultConfig()
	if cfg.FailoverV1 != def.FailoverV1 || cfg.MinPeers != def.MinPeers {
		t.Fatalf("invalid env values must keep defaults, got %+v", cfg)
	}
}

func TestLoadFromPathMissingFileYieldsDefaults(t *testing.T) {
	cfg := LoadFromPath("does-not-exist.yaml")
	def := waku.DefaultConfig()
	if cfg.Transport != def.Transport || cfg.MinPeers != def.MinPeers {
		t.Fatalf("expected defaults for missing config file, got %+v", cfg)
	}
}
