package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/naturecache/naturecache/internal/routeclass"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.DatabasePath == "" {
		return newFieldError("Global.DatabasePath", "不能为空")
	}
	if g.CacheTTL.DurationValue() <= 0 {
		return newFieldError("Global.CacheTTL", "必须大于 0")
	}
	if g.DebounceInterval.DurationValue() <= 0 {
		return newFieldError("Global.DebounceInterval", "必须大于 0")
	}
	if g.RequestSpacing.DurationValue() < 0 {
		return newFieldError("Global.RequestSpacing", "不能为负数")
	}
	if g.SweepInterval.DurationValue() <= 0 {
		return newFieldError("Global.SweepInterval", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if err := validateUpstream(g.APIBaseURL); err != nil {
		return fmt.Errorf("Global.APIBaseURL: %w", err)
	}

	if len(c.Routes) == 0 {
		return errors.New("至少需要配置一个 Route")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Routes {
		route := &c.Routes[i]
		if route.Name == "" {
			return newFieldError("Route[].Name", "不能为空")
		}
		if _, exists := seenNames[route.Name]; exists {
			return newFieldError(routeField(route.Name, "Name"), "重复")
		}
		seenNames[route.Name] = struct{}{}

		if route.Class == "" {
			return newFieldError(routeField(route.Name, "Class"), "不能为空")
		}
		if _, ok := routeclass.Resolve(route.Class); !ok {
			return newFieldError(routeField(route.Name, "Class"),
				"仅支持 "+strings.Join(routeclass.Keys(), "|"))
		}

		if len(route.Patterns) == 0 {
			return newFieldError(routeField(route.Name, "Patterns"), "至少需要一个 URL 前缀")
		}
		for _, pattern := range route.Patterns {
			if pattern == "" {
				return newFieldError(routeField(route.Name, "Patterns"), "前缀不能为空")
			}
			if !strings.HasPrefix(pattern, "/") {
				return newFieldError(routeField(route.Name, "Patterns"), "前缀必须以 / 开头")
			}
		}

		if err := validateUpstream(route.Upstream); err != nil {
			return fmt.Errorf("%s: %w", routeField(route.Name, "Upstream"), err)
		}
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}

// EffectiveCacheTTL 返回特定 Route 生效的 TTL，未覆盖时回退至全局值。
func (c *Config) EffectiveCacheTTL(r RouteConfig) time.Duration {
	if r.CacheTTL.DurationValue() > 0 {
		return r.CacheTTL.DurationValue()
	}
	return c.Global.CacheTTL.DurationValue()
}
