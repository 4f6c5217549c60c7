package prewarm

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/naturecache/naturecache/internal/cache"
	"github.com/naturecache/naturecache/internal/query"
	"github.com/naturecache/naturecache/internal/species"
	"github.com/naturecache/naturecache/internal/store"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	fail  string // 该过滤器的抓取返回错误
}

func (l *countingLoader) Counts(ctx context.Context, q query.Query) ([]species.Record, error) {
	l.mu.Lock()
	if l.calls == nil {
		l.calls = make(map[string]int)
	}
	l.calls[q.Filter]++
	l.mu.Unlock()

	if l.fail != "" && q.Filter == l.fail {
		return nil, errors.New("upstream down")
	}
	return []species.Record{{Count: 1, Taxon: species.Taxon{ID: 99}}}, nil
}

func (l *countingLoader) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum := 0
	for _, n := range l.calls {
		sum += n
	}
	return sum
}

func newWarmEnv(t *testing.T, loader *countingLoader) (*Warmer, *cache.Tiered, store.Store) {
	t.Helper()
	durable, err := store.Open(filepath.Join(t.TempDir(), "prewarm.db"))
	if err != nil {
		t.Fatalf("打开存储失败: %v", err)
	}
	t.Cleanup(func() { _ = durable.Close() })
	tiered := cache.NewTiered(cache.NewMemory(), durable, 7*24*time.Hour, testLogger())
	return New(tiered, durable, loader, testLogger(), 2), tiered, durable
}

func TestWarmLocationCoversAllCategories(t *testing.T) {
	loader := &countingLoader{}
	warmer, tiered, durable := newWarmEnv(t, loader)
	ctx := context.Background()

	if err := warmer.WarmLocation(ctx, 52.52, 13.405, 25); err != nil {
		t.Fatalf("warm error: %v", err)
	}

	expected := len(species.IconicTaxa()) + 1 // 各类别 + 无过滤全量
	if loader.total() != expected {
		t.Fatalf("expected %d fetches, got %d", expected, loader.total())
	}

	// 每个类别均已落缓存。
	for _, filter := range append([]string{""}, species.IconicTaxa()...) {
		q := query.Query{Lat: 52.52, Lng: 13.405, RadiusKm: 25, Filter: filter}
		if _, ok := tiered.Get(ctx, q.Key()); !ok {
			t.Fatalf("类别 %q 未被预热", filter)
		}
	}

	sig := query.Query{Lat: 52.52, Lng: 13.405, RadiusKm: 25}.Signature()
	if done, _ := durable.Prewarmed(ctx, sig); !done {
		t.Fatalf("完成后应落位置标记")
	}
}

func TestWarmLocationSkipsMarkedLocation(t *testing.T) {
	loader := &countingLoader{}
	warmer, _, _ := newWarmEnv(t, loader)
	ctx := context.Background()

	if err := warmer.WarmLocation(ctx, 52.52, 13.405, 25); err != nil {
		t.Fatalf("warm error: %v", err)
	}
	before := loader.total()

	if err := warmer.WarmLocation(ctx, 52.52, 13.405, 25); err != nil {
		t.Fatalf("warm error: %v", err)
	}
	if loader.total() != before {
		t.Fatalf("已标记位置不应重复抓取")
	}
}

func TestWarmLocationFailureLeavesNoMarker(t *testing.T) {
	loader := &countingLoader{fail: "Fungi"}
	warmer, _, durable := newWarmEnv(t, loader)
	ctx := context.Background()

	if err := warmer.WarmLocation(ctx, 52.52, 13.405, 25); err == nil {
		t.Fatalf("类别失败应返回错误")
	}

	sig := query.Query{Lat: 52.52, Lng: 13.405, RadiusKm: 25}.Signature()
	if done, _ := durable.Prewarmed(ctx, sig); done {
		t.Fatalf("未完成的预热不应落标记")
	}

	// 续跑只补缺失类别。
	loader.fail = ""
	countBefore := loader.total()
	if err := warmer.WarmLocation(ctx, 52.52, 13.405, 25); err != nil {
		t.Fatalf("续跑应成功: %v", err)
	}
	resumeFetches := loader.total() - countBefore
	if resumeFetches == 0 || resumeFetches >= len(species.IconicTaxa())+1 {
		t.Fatalf("续跑应只抓取缺失类别, got %d", resumeFetches)
	}
}
