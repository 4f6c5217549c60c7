// Package static 定义打包 UI 资源的路由类别：缓存优先，命中即回，
// 未命中回源落盘；回源失败且无副本时等价 404。
package static

import "github.com/naturecache/naturecache/internal/routeclass"

func init() {
	routeclass.MustRegister(routeclass.ClassMetadata{
		Key:         "static",
		Description: "Bundled UI assets served cache-first",
		Policy: routeclass.PolicyProfile{
			Mode: routeclass.PolicyCacheFirst,
			// 静态资源内容随版本号变化，命名空间即失效边界，不设 TTL。
			TTLHint:            0,
			AllowStaleFallback: false,
		},
	})
}
