// Package api 定义远端生物多样性数据端点的路由类别：缓存优先但校验
// 抓取时间新鲜度；回源失败时允许忽略 TTL 兜底返回陈旧副本，否则合成 503。
package api

import (
	"time"

	"github.com/naturecache/naturecache/internal/routeclass"
)

// apiDefaultTTL 与数据层 CacheTTL 默认值一致，可被 Route 配置覆盖。
const apiDefaultTTL = 7 * 24 * time.Hour

func init() {
	routeclass.MustRegister(routeclass.ClassMetadata{
		Key:         "api",
		Description: "Remote observation API served cache-first with staleness check",
		Policy: routeclass.PolicyProfile{
			Mode:               routeclass.PolicyStalenessCheck,
			TTLHint:            apiDefaultTTL,
			AllowStaleFallback: true,
		},
	})
}
