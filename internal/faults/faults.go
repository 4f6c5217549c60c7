// Package faults 定义数据同步层共享的错误分类。协调器、回退瀑布与
// 代理层都依赖这里的哨兵值与分类函数来决定错误是否可见、是否可恢复。
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrCancelled 表示请求被更新的意图取代或调用方主动放弃，属预期路径，
	// 永远不会到达 UI。
	ErrCancelled = errors.New("request cancelled")

	// ErrStaleDiscarded 表示一个已被取代的请求成功返回但结果被静默丢弃，
	// 仅用于内部记账。
	ErrStaleDiscarded = errors.New("stale result discarded")

	// ErrStoreUnavailable 表示持久存储不可用，系统降级为仅内存缓存。
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrOffline 表示既无网络也无缓存，查询不可服务。UI 据此渲染
	// “离线稍后再试”而非一般性错误。
	ErrOffline = errors.New("offline and no cached data")
)

// TransportError 包装网络不可达/超时等传输层失败。
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError 表示远端返回了非 2xx 状态或响应形状不符合约定。
type RemoteError struct {
	Status int
	Reason string
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("remote error: status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("remote error: %s", e.Reason)
}

// IsCancelled 判断错误是否源于取消（含 context 取消）。
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsTransport 判断错误是否属于传输层失败。context 超时与 net.Error
// 均归入此类，回退瀑布据此允许忽略 TTL 使用陈旧缓存。
func IsTransport(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// IsRemote 判断错误是否为远端数据错误。
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// Transport 将底层错误包装为 TransportError，nil 原样返回。
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Err: err}
}
