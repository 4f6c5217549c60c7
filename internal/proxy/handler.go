package proxy

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/naturecache/naturecache/internal/logging"
	"github.com/naturecache/naturecache/internal/routeclass"
	"github.com/naturecache/naturecache/internal/server"
)

// Handler 负责按路由类别执行缓存策略：cache-first 命中即回，staleness-check
// 超龄回源、失败兜底陈旧副本，network-first 回源失败时退回缓存外壳文档。
// 对外暴露 Fiber handler，内部复用共享 http.Client 与磁盘缓存。
type Handler struct {
	client    *http.Client
	logger    *logrus.Logger
	store     Store
	lifecycle *Lifecycle
	now       func() time.Time
}

// NewHandler constructs a proxy handler with shared HTTP client/logger/store.
func NewHandler(client *http.Client, logger *logrus.Logger, store Store, lifecycle *Lifecycle) *Handler {
	return &Handler{
		client:    client,
		logger:    logger,
		store:     store,
		lifecycle: lifecycle,
		now:       time.Now,
	}
}

// Handle 根据类别策略执行缓存查找、回源与最终 streaming 逻辑，
// 任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx, route *server.Route) error {
	started := time.Now()
	requestID := server.RequestID(c)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rawQuery := append([]byte(nil), c.Request().URI().QueryString()...)
	cleanPath := normalizeRequestPath(string(c.Request().URI().Path()))
	locator := h.buildLocator(route, cleanPath, rawQuery)

	method := c.Method()
	if method != http.MethodGet && method != http.MethodHead {
		// 非幂等请求直接透传，不读也不写缓存
		return h.fetchAndStream(c, route, locator, false, requestID, started, ctx)
	}

	switch route.Profile.Mode {
	case routeclass.PolicyStalenessCheck:
		return h.handleStalenessCheck(c, route, locator, requestID, started, ctx)
	case routeclass.PolicyNetworkFirst:
		return h.handleNetworkFirst(c, route, locator, requestID, started, ctx)
	default:
		return h.handleCacheFirst(c, route, locator, requestID, started, ctx)
	}
}

// handleCacheFirst 命中即回、未命中回源落盘；静态资源内容不随时间变化，
// 不做 TTL 判断。
func (h *Handler) handleCacheFirst(
	c fiber.Ctx,
	route *server.Route,
	locator Locator,
	requestID string,
	started time.Time,
	ctx context.Context,
) error {
	if cached := h.lookupCache(ctx, route, locator); cached != nil {
		defer cached.Reader.Close()
		return h.serveCache(c, route, cached, requestID, started, false)
	}

	resp, upstreamURL, err := h.executeRequest(c, route)
	if err != nil {
		h.logResult(route, upstreamURL.String(), requestID, 0, false, started, err)
		return h.writeError(c, fiber.StatusNotFound, "not_cached")
	}
	defer resp.Body.Close()

	shouldStore := isCacheableStatus(resp.StatusCode) && c.Method() == http.MethodGet
	return h.consumeUpstream(c, route, locator, resp, shouldStore, requestID, started, ctx)
}

// handleStalenessCheck 在 TTL 内直接命中；超龄后回源刷新，回源失败时
// 允许无视 TTL 返回陈旧副本，两头落空才返回合成的离线错误。
func (h *Handler) handleStalenessCheck(
	c fiber.Ctx,
	route *server.Route,
	locator Locator,
	requestID string,
	started time.Time,
	ctx context.Context,
) error {
	cached := h.lookupCache(ctx, route, locator)
	if cached != nil && h.freshEntry(cached.Entry, route.Profile.TTLHint) {
		defer cached.Reader.Close()
		return h.serveCache(c, route, cached, requestID, started, false)
	}

	resp, upstreamURL, err := h.executeRequest(c, route)
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		if resp != nil {
			resp.Body.Close()
		}
		h.logResult(route, upstreamURL.String(), requestID, upstreamStatus(resp), false, started, err)
		if cached != nil && route.Profile.AllowStaleFallback {
			defer cached.Reader.Close()
			return h.serveCache(c, route, cached, requestID, started, true)
		}
		if cached != nil {
			cached.Reader.Close()
		}
		return h.writeError(c, fiber.StatusServiceUnavailable, "offline")
	}

	if cached != nil {
		cached.Reader.Close()
	}
	defer resp.Body.Close()

	shouldStore := isCacheableStatus(resp.StatusCode) && c.Method() == http.MethodGet
	return h.consumeUpstream(c, route, locator, resp, shouldStore, requestID, started, ctx)
}

// handleNetworkFirst 总是先回源；网络失败时退回同路径缓存，
// 再退回类别配置的外壳文档，全部落空返回离线错误。
func (h *Handler) handleNetworkFirst(
	c fiber.Ctx,
	route *server.Route,
	locator Locator,
	requestID string,
	started time.Time,
	ctx context.Context,
) error {
	resp, upstreamURL, err := h.executeRequest(c, route)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		defer resp.Body.Close()
		shouldStore := isCacheableStatus(resp.StatusCode) && c.Method() == http.MethodGet
		return h.consumeUpstream(c, route, locator, resp, shouldStore, requestID, started, ctx)
	}
	if resp != nil {
		resp.Body.Close()
	}
	h.logResult(route, upstreamURL.String(), requestID, upstreamStatus(resp), false, started, err)

	if cached := h.lookupCache(ctx, route, locator); cached != nil {
		defer cached.Reader.Close()
		return h.serveCache(c, route, cached, requestID, started, true)
	}

	if fallback := route.Profile.FallbackPath; fallback != "" {
		shellLocator := h.buildLocator(route, normalizeRequestPath(fallback), nil)
		if cached := h.lookupCache(ctx, route, shellLocator); cached != nil {
			defer cached.Reader.Close()
			c.Set("X-Naturecache-Fallback", fallback)
			return h.serveCache(c, route, cached, requestID, started, true)
		}
	}

	return h.writeError(c, fiber.StatusServiceUnavailable, "offline")
}

// lookupCache 返回命中的缓存条目；未命中返回 nil，其余读取错误仅记日志。
func (h *Handler) lookupCache(ctx context.Context, route *server.Route, locator Locator) *ReadResult {
	result, err := h.store.Get(ctx, locator)
	switch {
	case err == nil:
		return result
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		h.logger.WithError(err).
			WithFields(logrus.Fields{"route": route.Config.Name, "class": route.Class.Key}).
			Warn("cache_get_failed")
		return nil
	}
}

// freshEntry 依据抓取时间判断条目是否仍在 TTL 内；TTL 为 0 表示不设年龄上限。
func (h *Handler) freshEntry(entry Entry, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	return h.now().Before(entry.ModTime.Add(ttl))
}

func (h *Handler) serveCache(
	c fiber.Ctx,
	route *server.Route,
	result *ReadResult,
	requestID string,
	started time.Time,
	stale bool,
) error {
	if seeker, ok := result.Reader.(io.Seeker); ok {
		_, _ = seeker.Seek(0, io.SeekStart)
	}

	method := c.Method()

	if contentType := inferCachedContentType(route, result.Entry.Locator); contentType != "" {
		c.Set("Content-Type", contentType)
	} else {
		c.Response().Header.Del("Content-Type")
	}

	length := result.Entry.SizeBytes
	if length > 0 {
		c.Response().Header.SetContentLength(int(length))
	} else {
		c.Response().Header.Del("Content-Length")
	}

	c.Set("X-Naturecache-Upstream", route.UpstreamURL.String())
	c.Set("X-Naturecache-Cache-Hit", "true")
	if stale {
		c.Set("X-Naturecache-Stale", "true")
	}
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}

	status := fiber.StatusOK
	c.Status(status)

	if method == http.MethodHead {
		h.logResult(route, route.UpstreamURL.String(), requestID, status, true, started, nil)
		return nil
	}

	_, err := io.Copy(c.Response().BodyWriter(), result.Reader)
	h.logResult(route, route.UpstreamURL.String(), requestID, status, true, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

func (h *Handler) fetchAndStream(
	c fiber.Ctx,
	route *server.Route,
	locator Locator,
	allowStore bool,
	requestID string,
	started time.Time,
	ctx context.Context,
) error {
	resp, upstreamURL, err := h.executeRequest(c, route)
	if err != nil {
		h.logResult(route, upstreamURL.String(), requestID, 0, false, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	defer resp.Body.Close()

	shouldStore := allowStore && isCacheableStatus(resp.StatusCode) && c.Method() == http.MethodGet
	return h.consumeUpstream(c, route, locator, resp, shouldStore, requestID, started, ctx)
}

func (h *Handler) consumeUpstream(
	c fiber.Ctx,
	route *server.Route,
	locator Locator,
	resp *http.Response,
	shouldStore bool,
	requestID string,
	started time.Time,
	ctx context.Context,
) error {
	upstreamURL := resp.Request.URL.String()
	method := c.Method()

	if shouldStore {
		return h.cacheAndStream(c, route, locator, resp, requestID, started, ctx, upstreamURL)
	}

	copyResponseHeaders(c, resp.Header)
	c.Set("X-Naturecache-Upstream", upstreamURL)
	c.Set("X-Naturecache-Cache-Hit", "false")
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(resp.StatusCode)

	if method == http.MethodHead {
		h.logResult(route, upstreamURL, requestID, resp.StatusCode, false, started, nil)
		return nil
	}

	_, err := io.Copy(c.Response().BodyWriter(), resp.Body)
	h.logResult(route, upstreamURL, requestID, resp.StatusCode, false, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("proxy stream failed: %v", err))
	}
	return nil
}

func (h *Handler) cacheAndStream(
	c fiber.Ctx,
	route *server.Route,
	locator Locator,
	resp *http.Response,
	requestID string,
	started time.Time,
	ctx context.Context,
	upstreamURL string,
) error {
	copyResponseHeaders(c, resp.Header)
	c.Set("X-Naturecache-Upstream", upstreamURL)
	c.Set("X-Naturecache-Cache-Hit", "false")
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(resp.StatusCode)

	reader := io.TeeReader(resp.Body, c.Response().BodyWriter())

	// ModTime 记录抓取时间，staleness-check 的 TTL 以此为基准
	opts := PutOptions{ModTime: h.now().UTC()}
	_, err := h.store.Put(ctx, locator, reader, opts)
	h.logResult(route, upstreamURL, requestID, resp.StatusCode, false, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("cache_write_failed: %v", err))
	}
	return nil
}

func (h *Handler) executeRequest(c fiber.Ctx, route *server.Route) (*http.Response, *url.URL, error) {
	upstreamURL := resolveUpstreamURL(route.UpstreamURL, c)

	var body io.Reader = http.NoBody
	if raw := c.Body(); len(raw) > 0 {
		body = strings.NewReader(string(raw))
	}

	req, err := h.buildUpstreamRequest(c, upstreamURL, route, c.Method(), body)
	if err != nil {
		return nil, upstreamURL, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, upstreamURL, err
	}
	return resp, upstreamURL, nil
}

func (h *Handler) buildUpstreamRequest(
	c fiber.Ctx,
	upstream *url.URL,
	route *server.Route,
	method string,
	body io.Reader,
) (*http.Request, error) {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, upstream.String(), body)
	if err != nil {
		return nil, err
	}

	requestHeaders := fiberHeadersAsHTTP(c)
	server.CopyHeaders(req.Header, requestHeaders)
	req.Header.Del("Accept-Encoding")
	req.Host = upstream.Host
	req.Header.Set("Host", upstream.Host)
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	req.Header.Set("X-Forwarded-Port", fmt.Sprintf("%d", route.ListenPort))

	return req, nil
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	route *server.Route,
	upstream string,
	requestID string,
	status int,
	cacheHit bool,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(
		route.Config.Name,
		route.Class.Key,
		string(route.Profile.Mode),
		requestID,
		cacheHit,
	)
	fields["action"] = "proxy"
	fields["upstream"] = upstream
	fields["upstream_status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

// buildLocator 将请求路径映射到当前版本命名空间下的缓存条目；
// 带查询串的请求以摘要后缀区分，避免互相覆盖。
func (h *Handler) buildLocator(route *server.Route, clean string, rawQuery []byte) Locator {
	if len(rawQuery) > 0 {
		sum := sha1.Sum(rawQuery)
		clean = fmt.Sprintf("%s/__qs/%s", clean, hex.EncodeToString(sum[:]))
	}
	return Locator{
		Version: h.lifecycle.ActiveVersion(),
		Class:   route.Class.Key,
		Path:    clean,
	}
}

func inferCachedContentType(route *server.Route, locator Locator) string {
	clean := stripQueryMarker(locator.Path)
	if ext := path.Ext(clean); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	switch route.Class.Key {
	case "api":
		return "application/json"
	case "nav":
		return "text/html; charset=utf-8"
	}
	return ""
}

func stripQueryMarker(p string) string {
	if idx := strings.Index(p, "/__qs/"); idx >= 0 {
		return p[:idx]
	}
	return p
}

func normalizeRequestPath(raw string) string {
	if raw == "" {
		raw = "/"
	}
	return path.Clean("/" + raw)
}

func resolveUpstreamURL(base *url.URL, c fiber.Ctx) *url.URL {
	uri := c.Request().URI()
	clean := normalizeRequestPath(string(uri.Path()))
	relative := &url.URL{Path: clean, RawPath: clean}
	if rawQuery := uri.QueryString(); len(rawQuery) > 0 {
		relative.RawQuery = string(rawQuery)
	}
	return base.ResolveReference(relative)
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}

func isCacheableStatus(status int) bool {
	return status == http.StatusOK
}

func upstreamStatus(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
