package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/naturecache/naturecache/internal/routeclass"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "300ms"、"7h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，数据层与拦截代理共享同一份参数。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// StoragePath 是拦截代理响应缓存（按版本命名空间）所在的根目录。
	StoragePath string `mapstructure:"StoragePath"`
	// DatabasePath 是持久键值存储（SQLite）的文件路径。
	DatabasePath string `mapstructure:"DatabasePath"`

	// CacheTTL 是缓存条目的统一时效上限，数据层与 api 路由共用。
	CacheTTL Duration `mapstructure:"CacheTTL"`
	// DebounceInterval 是协调器在发起网络请求前等待的静默窗口。
	DebounceInterval Duration `mapstructure:"DebounceInterval"`
	// RequestSpacing 是对远端 API 的最小请求间隔（限速礼让）。
	RequestSpacing Duration `mapstructure:"RequestSpacing"`
	// SweepInterval 控制持久存储过期清扫的周期。
	SweepInterval   Duration `mapstructure:"SweepInterval"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`

	// APIBaseURL 是远端物种观测数据 API 的基地址。
	APIBaseURL string `mapstructure:"APIBaseURL"`
	Locale     string `mapstructure:"Locale"`
}

// RouteConfig 决定一类外发请求如何被分类与缓存。
type RouteConfig struct {
	Name     string   `mapstructure:"Name"`
	Class    string   `mapstructure:"Class"`
	Patterns []string `mapstructure:"Patterns"`
	Upstream string   `mapstructure:"Upstream"`
	CacheTTL Duration `mapstructure:"CacheTTL"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig  `mapstructure:",squash"`
	Routes []RouteConfig `mapstructure:"Route"`
}

// ProfileOverrides 将路由层的 TTL 配置映射为类别策略覆盖项。
func (r RouteConfig) ProfileOverrides(ttl time.Duration) routeclass.ProfileOptions {
	return routeclass.ProfileOptions{TTLOverride: ttl}
}
