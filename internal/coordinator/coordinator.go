// Package coordinator 拥有“为查询 Q 加载物种数据”这一逻辑操作的完整
// 生命周期：去抖、取消被取代的在途请求、新鲜度短路、并发调用去重，
// 以及失败时的回退瀑布。每个发起加载的 UI 面持有一个协调器实例。
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/naturecache/naturecache/internal/cache"
	"github.com/naturecache/naturecache/internal/faults"
	"github.com/naturecache/naturecache/internal/logging"
	"github.com/naturecache/naturecache/internal/query"
	"github.com/naturecache/naturecache/internal/species"
)

// State 描述协调器所处的生命周期阶段。
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateLoading    State = "loading"
	StateSettled    State = "settled"
	StateCancelled  State = "cancelled"
)

// token 代表一次加载意图。只有 id 等于协调器当前最高签发 id 的 token
// 才允许提交结果，其余一律丢弃，即便它们先完成。
type token struct {
	id     uint64
	cancel context.CancelFunc
}

// freshness 记录最近一次成功加载。仅进程生命周期内有效，成功加载整条
// 覆盖，缓存命中不触碰。
type freshness struct {
	lastKey      string
	lastLoadedAt time.Time
}

// Coordinator 驱动单个查询流的状态机：
// Idle → Debouncing → Loading → {Settled, Cancelled}。
type Coordinator struct {
	cache    *cache.Tiered
	loader   Loader
	sink     Sink
	online   Connectivity
	logger   *logrus.Logger
	debounce time.Duration
	now      func() time.Time

	mu          sync.Mutex
	state       State
	nextID      uint64
	current     *token
	pending     query.Query
	timer       *time.Timer
	fresh       *freshness
	lastRecords []species.Record

	flight singleflight.Group
}

// New 构造协调器。clock 默认 time.Now，测试可通过字段替换。
func New(tiered *cache.Tiered, loader Loader, sink Sink, online Connectivity, debounce time.Duration, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		cache:    tiered,
		loader:   loader,
		sink:     sink,
		online:   online,
		logger:   logger,
		debounce: debounce,
		now:      time.Now,
		state:    StateIdle,
	}
}

// State 返回当前状态，仅用于观测与测试。
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load 处理一次加载意图。新鲜度命中与缓存命中同步发布且不触网；
// 未命中则取消在途 token、进入去抖窗口后回源。
func (c *Coordinator) Load(ctx context.Context, q query.Query) {
	c.load(ctx, q, false)
}

// Refresh 是用户显式触发的刷新：跳过新鲜度与缓存短路，但仍然经过
// 取消与去抖。
func (c *Coordinator) Refresh(ctx context.Context, q query.Query) {
	c.load(ctx, q, true)
}

func (c *Coordinator) load(ctx context.Context, q query.Query, bypassCache bool) {
	key := q.Key()

	if !bypassCache {
		if records, ok := c.freshHit(key); ok {
			c.sink.PublishResult(q, records)
			return
		}
		if records, ok := c.cache.Get(ctx, key); ok {
			// 缓存命中直接短路，不做后台刷新。
			c.sink.PublishResult(q, records)
			return
		}
	}

	c.mu.Lock()
	if c.state == StateLoading && c.current != nil && c.pending.Key() == key {
		// 同一查询已在途：共用其完成结果，不再发起第二次网络请求。
		c.mu.Unlock()
		return
	}

	if c.current != nil {
		c.current.cancel()
		// 被取代 token 的在途调用随 ctx 取消注定失败，必须从 flight 中
		// 移除，否则同键的新 token 会加入这次注定取消的调用，
		// 继承它的 context.Canceled 而静默沉没。
		c.flight.Forget(c.pending.Key())
	}

	loadCtx, cancel := context.WithCancel(ctx)
	c.nextID++
	tok := &token{id: c.nextID, cancel: cancel}
	c.current = tok
	c.pending = q
	c.state = StateDebouncing

	// 去抖窗口内到达的新意图会走到这里重开计时器，只保留最新查询。
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.fire(loadCtx, tok)
	})
	c.mu.Unlock()
}

// freshHit 检查新鲜度记录：键一致、未超 TTL、且上次 payload 仍在内存。
func (c *Coordinator) freshHit(key string) ([]species.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh == nil || c.fresh.lastKey != key || c.lastRecords == nil {
		return nil, false
	}
	if c.now().Sub(c.fresh.lastLoadedAt) >= c.cache.TTL() {
		return nil, false
	}
	return c.lastRecords, true
}

// fire 在去抖窗口安静度过后执行网络抓取。
func (c *Coordinator) fire(ctx context.Context, tok *token) {
	// settle 后释放子 context，避免可取消父 context 上的注册泄漏
	defer tok.cancel()

	c.mu.Lock()
	if c.current == nil || c.current.id != tok.id {
		c.mu.Unlock()
		return
	}
	q := c.pending
	c.state = StateLoading
	c.mu.Unlock()

	key := q.Key()
	result, err, _ := c.flight.Do(key, func() (interface{}, error) {
		return c.loader.Counts(ctx, q)
	})

	if err != nil {
		c.settleFailure(ctx, tok, q, err)
		return
	}
	c.settleSuccess(ctx, tok, q, result.([]species.Record))
}

func (c *Coordinator) settleSuccess(ctx context.Context, tok *token, q query.Query, records []species.Record) {
	key := q.Key()

	c.mu.Lock()
	if c.current == nil || c.current.id != tok.id {
		c.mu.Unlock()
		// 陈旧响应压制：不发布、不写缓存。
		c.logDiscard(key, tok.id)
		return
	}
	c.state = StateSettled
	c.fresh = &freshness{lastKey: key, lastLoadedAt: c.now()}
	c.lastRecords = records
	c.mu.Unlock()

	c.cache.Set(ctx, key, records)
	c.sink.PublishResult(q, records)
}

func (c *Coordinator) settleFailure(ctx context.Context, tok *token, q query.Query, err error) {
	if faults.IsCancelled(err) {
		c.transitionIfCurrent(tok, StateCancelled)
		return
	}

	c.mu.Lock()
	if c.current == nil || c.current.id != tok.id {
		c.mu.Unlock()
		c.logDiscard(q.Key(), tok.id)
		return
	}
	c.state = StateSettled
	c.mu.Unlock()

	c.resolveFailure(ctx, q, err)
}

func (c *Coordinator) transitionIfCurrent(tok *token, next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.id == tok.id {
		c.state = next
	}
}

func (c *Coordinator) logDiscard(key string, id uint64) {
	if c.logger == nil {
		return
	}
	c.logger.WithFields(logging.QueryFields(key, string(StateSettled), id)).
		Debug("stale_result_discarded")
}
