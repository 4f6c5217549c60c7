package routeclass

import "time"

// PolicyMode 描述一个路由类别的缓存策略族。
type PolicyMode string

const (
	// PolicyCacheFirst 缓存优先：命中即回，未命中回源并落盘。
	PolicyCacheFirst PolicyMode = "cache-first"
	// PolicyStalenessCheck 缓存优先但校验新鲜度：超出 TTL 先回源，
	// 回源失败时允许忽略 TTL 兜底返回陈旧副本。
	PolicyStalenessCheck PolicyMode = "staleness-check"
	// PolicyNetworkFirst 网络优先：失败时回退到持久缓存的外壳文档。
	PolicyNetworkFirst PolicyMode = "network-first"
)

// PolicyProfile 描述类别的缓存读写策略及其默认值。
type PolicyProfile struct {
	Mode PolicyMode
	// TTLHint 为类别默认 TTL，0 表示不设年龄上限（例如 static 资源）。
	TTLHint time.Duration
	// AllowStaleFallback 允许回源失败时无视 TTL 返回陈旧副本。
	AllowStaleFallback bool
	// FallbackPath 指定网络失败时兜底使用的缓存路径（nav 外壳文档）。
	FallbackPath string
}

// ClassMetadata 记录一个路由类别的静态信息，供配置校验与控制端使用。
type ClassMetadata struct {
	Key         string
	Description string
	Policy      PolicyProfile
}
