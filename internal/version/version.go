package version

import "fmt"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
// Version 同时作为 InterceptProxy 缓存命名空间的前缀，新版本激活时
// 以它为准清理旧命名空间。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("naturecache %s (%s)", Version, Commit)
}
