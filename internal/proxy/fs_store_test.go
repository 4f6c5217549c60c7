package proxy

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestFileStorePutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	locator := Locator{Version: "1.4.0", Class: "static", Path: "/assets/app.js"}
	fetched := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)

	entry, err := store.Put(ctx, locator, strings.NewReader("console.log(1)"), PutOptions{ModTime: fetched})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if entry.SizeBytes != int64(len("console.log(1)")) {
		t.Fatalf("unexpected size: %d", entry.SizeBytes)
	}

	result, err := store.Get(ctx, locator)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer result.Reader.Close()

	body, _ := io.ReadAll(result.Reader)
	if string(body) != "console.log(1)" {
		t.Fatalf("正文不一致: %s", body)
	}
	if !result.Entry.ModTime.Equal(fetched) {
		t.Fatalf("expected mod time %s, got %s", fetched, result.Entry.ModTime)
	}
}

func TestFileStoreGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), Locator{Version: "1.4.0", Class: "api", Path: "/nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Put(context.Background(),
		Locator{Version: "1.4.0", Class: "static", Path: "../../etc/passwd"},
		strings.NewReader("x"), PutOptions{})
	if err != nil {
		return
	}

	// path.Clean 应把 .. 折叠在命名空间内部
	result, err := store.Get(context.Background(),
		Locator{Version: "1.4.0", Class: "static", Path: "/etc/passwd"})
	if err != nil {
		t.Fatalf("expected cleaned path to stay inside namespace: %v", err)
	}
	result.Reader.Close()
}

func TestFileStoreNamespaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, version := range []string{"1.3.0", "1.4.0"} {
		_, err := store.Put(ctx, Locator{Version: version, Class: "static", Path: "/a"},
			strings.NewReader("body"), PutOptions{})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	namespaces, err := store.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	if len(namespaces) != 2 || namespaces[0] != "1.3.0" || namespaces[1] != "1.4.0" {
		t.Fatalf("unexpected namespaces: %v", namespaces)
	}

	if err := store.RemoveNamespace(ctx, "1.3.0"); err != nil {
		t.Fatalf("RemoveNamespace failed: %v", err)
	}
	if _, err := store.Get(ctx, Locator{Version: "1.3.0", Class: "static", Path: "/a"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("旧命名空间条目应已删除, got %v", err)
	}
	if _, err := store.Get(ctx, Locator{Version: "1.4.0", Class: "static", Path: "/a"}); err != nil {
		t.Fatalf("现行命名空间不应受影响: %v", err)
	}
}

func TestFileStoreRemoveNamespaceRejectsBadVersion(t *testing.T) {
	store := newTestStore(t)

	if err := store.RemoveNamespace(context.Background(), "../outside"); err == nil {
		t.Fatalf("expected error for invalid namespace version")
	}
	if err := store.RemoveNamespace(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty namespace version")
	}
}

func TestFileStoreClearRemovesEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, Locator{Version: "1.4.0", Class: "api", Path: "/v1/x"},
		strings.NewReader("{}"), PutOptions{})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	namespaces, err := store.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	if len(namespaces) != 0 {
		t.Fatalf("expected empty store, got %v", namespaces)
	}
}

func TestFileStorePutCancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, Locator{Version: "1.4.0", Class: "api", Path: "/v1/x"},
		strings.NewReader("{}"), PutOptions{})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if _, err := store.Get(context.Background(), Locator{Version: "1.4.0", Class: "api", Path: "/v1/x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("取消的写入不应留下条目, got %v", err)
	}
}
