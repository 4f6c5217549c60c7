package coordinator

import (
	"context"

	"github.com/naturecache/naturecache/internal/query"
	"github.com/naturecache/naturecache/internal/species"
)

// Sink 是结果下沉面：协调器向 UI 发布 payload、离线态或错误态。
// 三种发布互斥，取消与陈旧丢弃永远不会触达这里。
type Sink interface {
	PublishResult(q query.Query, records []species.Record)
	// PublishOffline 表示既无网络也无缓存，查询不可服务；与一般错误
	// 区分，UI 据此渲染重试入口而非失败页。
	PublishOffline(q query.Query)
	PublishError(q query.Query, err error)
}

// Connectivity 是外部连通性信号，协调器只消费不实现。
type Connectivity interface {
	Online() bool
}

// Loader 抓取一个查询的观测计数，由 species.Client 实现。
type Loader interface {
	Counts(ctx context.Context, q query.Query) ([]species.Record, error)
}
