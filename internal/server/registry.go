package server

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/naturecache/naturecache/internal/config"
	"github.com/naturecache/naturecache/internal/routeclass"
)

// Route 将 Route 配置与派生属性（解析后的 Upstream URL、生效的缓存策略）
// 聚合在一起，供路由/代理层直接复用，避免重复解析配置。
type Route struct {
	// Config 是用户在 config.toml 中声明的 Route 字段副本，避免外部修改。
	Config config.RouteConfig
	// ListenPort 记录当前监听端口，方便日志输出。
	ListenPort int
	// CacheTTL 是对当前路由生效的 TTL，若路由未覆盖则等于类别默认值。
	CacheTTL time.Duration
	// UpstreamURL 在构造 Registry 时提前解析完成，便于后续请求快速复用。
	UpstreamURL *url.URL
	// Class/Profile 记录当前路由绑定的类别及合并覆盖后的最终策略。
	Class   routeclass.ClassMetadata
	Profile routeclass.PolicyProfile
}

type patternBinding struct {
	prefix string
	route  *Route
}

// Registry 提供请求路径到 Route 的分类能力。匹配按最长前缀优先，
// 同一路径只会命中一个类别。
type Registry struct {
	bindings []patternBinding
	ordered  []*Route
}

// NewRegistry 根据配置构建路径分类表。调用方应在启动阶段创建一次并复用。
func NewRegistry(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &Registry{}
	seen := make(map[string]string, len(cfg.Routes))

	for _, rc := range cfg.Routes {
		route, err := buildRoute(cfg, rc)
		if err != nil {
			return nil, err
		}

		for _, pattern := range rc.Patterns {
			normalized := normalizePattern(pattern)
			if normalized == "" {
				return nil, fmt.Errorf("invalid pattern %q for route %s", pattern, rc.Name)
			}
			if owner, exists := seen[normalized]; exists {
				return nil, fmt.Errorf("pattern %s claimed by both %s and %s", normalized, owner, rc.Name)
			}
			seen[normalized] = rc.Name
			registry.bindings = append(registry.bindings, patternBinding{prefix: normalized, route: route})
		}
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据请求路径查找 Route，多个模式命中时取最长前缀。
func (r *Registry) Lookup(requestPath string) (*Route, bool) {
	if r == nil {
		return nil, false
	}

	clean := path.Clean("/" + requestPath)
	var best *Route
	bestLen := -1
	for _, binding := range r.bindings {
		if !matchesPrefix(clean, binding.prefix) {
			continue
		}
		if len(binding.prefix) > bestLen {
			best = binding.route
			bestLen = len(binding.prefix)
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// List 返回当前注册的 Route 列表（按配置定义的顺序），用于控制端输出。
func (r *Registry) List() []Route {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]Route, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

func buildRoute(cfg *config.Config, rc config.RouteConfig) (*Route, error) {
	meta, ok := routeclass.Resolve(rc.Class)
	if !ok {
		return nil, fmt.Errorf("route %s: class %s is not registered", rc.Name, rc.Class)
	}

	upstreamURL, err := url.Parse(rc.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream for route %s: %w", rc.Name, err)
	}

	effectiveTTL := cfg.EffectiveCacheTTL(rc)
	profile := routeclass.ResolveProfile(meta, rc.ProfileOverrides(effectiveTTL))

	return &Route{
		Config:      rc,
		ListenPort:  cfg.Global.ListenPort,
		CacheTTL:    profile.TTLHint,
		UpstreamURL: upstreamURL,
		Class:       meta,
		Profile:     profile,
	}, nil
}

// normalizePattern 统一为以 / 开头、不以 / 结尾的干净前缀；根路径保留 "/"。
func normalizePattern(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	clean := path.Clean("/" + raw)
	return clean
}

// matchesPrefix 要求前缀在路径分段边界上命中，避免 /api 误匹配 /apiary。
func matchesPrefix(clean, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if clean == prefix {
		return true
	}
	return strings.HasPrefix(clean, prefix+"/")
}
