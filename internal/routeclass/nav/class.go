// Package nav 定义应用外壳导航的路由类别：网络优先，失败时回退到
// 持久缓存的外壳文档，保证离线仍可启动。
package nav

import "github.com/naturecache/naturecache/internal/routeclass"

func init() {
	routeclass.MustRegister(routeclass.ClassMetadata{
		Key:         "nav",
		Description: "Application shell served network-first with cached fallback",
		Policy: routeclass.PolicyProfile{
			Mode:         routeclass.PolicyNetworkFirst,
			TTLHint:      0,
			FallbackPath: "/index.html",
		},
	})
}
