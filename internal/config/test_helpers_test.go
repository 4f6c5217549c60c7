package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

const minimalConfig = `
LogLevel = "info"
StoragePath = "./storage"
DatabasePath = "./naturecache.db"

[[Route]]
Name = "observations"
Class = "api"
Patterns = ["/v1/observations"]
Upstream = "https://api.inaturalist.org"
`
