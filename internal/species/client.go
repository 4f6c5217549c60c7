package species

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/naturecache/naturecache/internal/faults"
	"github.com/naturecache/naturecache/internal/query"
)

// LocaleProvider 提供当前界面语言，由外部协作者实现。
type LocaleProvider interface {
	Locale() string
}

// StaticLocale 为固定语言的 LocaleProvider 实现。
type StaticLocale string

func (l StaticLocale) Locale() string { return string(l) }

// Client 访问物种观测计数端点，并对远端保持最小请求间隔（限速礼让）。
type Client struct {
	http    *http.Client
	baseURL string
	locale  LocaleProvider
	spacing time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient 构造客户端。spacing <= 0 表示不做请求间隔限制。
func NewClient(httpClient *http.Client, baseURL string, locale LocaleProvider, spacing time.Duration) *Client {
	if locale == nil {
		locale = StaticLocale("en")
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		locale:  locale,
		spacing: spacing,
	}
}

// Counts 拉取一个查询的观测计数列表（单页，按 count 降序）。
// 传输失败包装为 TransportError，非 2xx 与形状不匹配包装为 RemoteError。
func (c *Client) Counts(ctx context.Context, q query.Query) ([]Record, error) {
	page, err := c.fetch(ctx, c.countsURL(q))
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) countsURL(q query.Query) string {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Lat, 'f', 5, 64))
	params.Set("lng", strconv.FormatFloat(q.Lng, 'f', 5, 64))
	params.Set("radius", strconv.FormatFloat(q.RadiusKm, 'f', -1, 64))
	params.Set("quality_grade", "research")
	params.Set("per_page", "500")
	params.Set("locale", c.locale.Locale())
	if q.Filter != "" {
		params.Set("iconic_taxa", q.Filter)
	}
	return fmt.Sprintf("%s/observations/species_counts?%s", c.baseURL, params.Encode())
}

func (c *Client) fetch(ctx context.Context, target string) (*Page, error) {
	if err := c.waitSpacing(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, faults.Transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &faults.RemoteError{Status: resp.StatusCode, Reason: "unexpected status"}
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &faults.RemoteError{Reason: fmt.Sprintf("decode response: %v", err)}
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return &page, nil
}

// waitSpacing 保证相邻请求之间至少间隔 spacing，可被 ctx 取消。
func (c *Client) waitSpacing(ctx context.Context) error {
	if c.spacing <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	wait := c.spacing - now.Sub(c.lastRequest)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
