package config

import (
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.CacheTTL.DurationValue() != 7*24*time.Hour {
		t.Fatalf("CacheTTL 默认值应为 7 天, got %v", cfg.Global.CacheTTL.DurationValue())
	}
	if cfg.Global.DebounceInterval.DurationValue() != 300*time.Millisecond {
		t.Fatalf("DebounceInterval 默认值应为 300ms")
	}
	if cfg.Global.RequestSpacing.DurationValue() != time.Second {
		t.Fatalf("RequestSpacing 默认值应为 1s")
	}
	if cfg.Global.ListenPort != 5000 {
		t.Fatalf("ListenPort 应当被填充默认值")
	}
	if cfg.Global.StoragePath == "" || cfg.Global.DatabasePath == "" {
		t.Fatalf("路径应被解析为绝对路径")
	}
	if cfg.EffectiveCacheTTL(cfg.Routes[0]) != cfg.Global.CacheTTL.DurationValue() {
		t.Fatalf("Route 未设置 TTL 时应退回全局 TTL")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
StoragePath = "./storage"
DatabasePath = "./naturecache.db"
CacheTTL = "boom"

[[Route]]
Name = "observations"
Class = "api"
Patterns = ["/v1/observations"]
Upstream = "https://api.inaturalist.org"
`
	if _, err := Load(writeTempConfig(t, cfg)); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsBareSeconds(t *testing.T) {
	cfg := `
StoragePath = "./storage"
DatabasePath = "./naturecache.db"
CacheTTL = 604800

[[Route]]
Name = "observations"
Class = "api"
Patterns = ["/v1/observations"]
Upstream = "https://api.inaturalist.org"
`
	loaded, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.CacheTTL.DurationValue() != 7*24*time.Hour {
		t.Fatalf("纯秒数应被解释为 Duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Fatalf("缺失文件应返回错误")
	}
}

func TestLoadNormalizesRouteClass(t *testing.T) {
	cfg := `
StoragePath = "./storage"
DatabasePath = "./naturecache.db"

[[Route]]
Name = "shell"
Class = " NAV "
Patterns = ["/"]
Upstream = "https://app.example.org"
`
	loaded, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Routes[0].Class != "nav" {
		t.Fatalf("Class 应被归一化: %q", loaded.Routes[0].Class)
	}
}
