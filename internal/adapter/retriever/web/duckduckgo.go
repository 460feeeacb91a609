// Package web 网页搜索后端，结果以 URL 为 source。
package web

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"deepsearch/internal/cache"
	"deepsearch/internal/domain/search"
	"deepsearch/internal/platform/httpretry"
)

// Name 检索器注册名
const Name = "duckduckgo"

// 全进程 1 QPS 限速，跨实例共享
var ddgRateLimit struct {
	mu   sync.Mutex
	last time.Time
}

// Config DuckDuckGo 检索配置
type Config struct {
	Endpoint       string `json:"endpoint"` // 默认 lite 页面
	TimeoutSeconds int    `json:"timeout_seconds"`
	RetryAttempts  int    `json:"retry_attempts"`
	RetryDelayMs   int    `json:"retry_delay_ms"`
}

// DuckDuckGo 抓取 DuckDuckGo lite HTML 页面的检索器。
type DuckDuckGo struct {
	cfg         Config
	fingerprint string
	client      *http.Client
}

// NewDuckDuckGo 创建网页检索器。
func NewDuckDuckGo(cfg Config) *DuckDuckGo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://lite.duckduckgo.com/lite/"
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 15
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = 1000
	}
	return &DuckDuckGo{
		cfg:         cfg,
		fingerprint: cache.Fingerprint(cfg),
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

func (d *DuckDuckGo) Name() string        { return Name }
func (d *DuckDuckGo) Fields() []string    { return []string{"texts", "urls"} }
func (d *DuckDuckGo) Fingerprint() string { return d.fingerprint }

// Search 逐查询抓取，受全局限速约束。
func (d *DuckDuckGo) Search(ctx context.Context, queries []string, opts search.SearchOptions) ([]search.Result, error) {
	results := make([]search.Result, len(queries))
	for i, q := range queries {
		res, err := d.searchOne(ctx, q, opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("duckduckgo query %q: %w", q, err)
		}
		results[i] = res
	}
	return results, nil
}

func (d *DuckDuckGo) searchOne(ctx context.Context, query string, topK int) (search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return search.Result{}, fmt.Errorf("query is empty")
	}
	if topK <= 0 {
		topK = 10
	}
	if err := waitRateLimit(ctx); err != nil {
		return search.Result{}, err
	}

	form := url.Values{}
	form.Set("q", query)
	encoded := form.Encode()

	resp, err := httpretry.Do(ctx, d.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, d.cfg.RetryAttempts, time.Duration(d.cfg.RetryDelayMs)*time.Millisecond)
	if err != nil {
		return search.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return search.Result{}, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return search.Result{}, fmt.Errorf("read page: %w", err)
	}

	links, snippets := parseLitePage(string(body))
	result := search.Result{}
	for i := 0; i < len(links) && i < topK; i++ {
		snippet := ""
		if i < len(snippets) {
			snippet = snippets[i]
		}
		result.Texts = append(result.Texts, snippet)
		result.URLs = append(result.URLs, links[i])
	}
	return result, nil
}

// waitRateLimit 等到距上次请求至少 1 秒。
func waitRateLimit(ctx context.Context) error {
	ddgRateLimit.mu.Lock()
	if wait := time.Until(ddgRateLimit.last.Add(time.Second)); wait > 0 {
		ddgRateLimit.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		ddgRateLimit.mu.Lock()
	}
	ddgRateLimit.last = time.Now()
	ddgRateLimit.mu.Unlock()
	return nil
}

var (
	liteLinkPattern    = regexp.MustCompile(`(?s)<a rel="nofollow" href="([^"]+)"[^>]*>(.*?)</a>`)
	liteSnippetPattern = regexp.MustCompile(`(?s)<td class="result-snippet">(.*?)</td>`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
)

// parseLitePage 从 lite 页面提取结果链接与摘要。
// lite 页面的链接可能经过 //duckduckgo.com/l/?uddg= 跳转包装，解包为原始 URL。
func parseLitePage(page string) (links, snippets []string) {
	for _, m := range liteLinkPattern.FindAllStringSubmatch(page, -1) {
		links = append(links, unwrapRedirect(html.UnescapeString(m[1])))
	}
	for _, m := range liteSnippetPattern.FindAllStringSubmatch(page, -1) {
		text := tagPattern.ReplaceAllString(m[1], "")
		snippets = append(snippets, strings.TrimSpace(html.UnescapeString(text)))
	}
	return links, snippets
}

func unwrapRedirect(link string) string {
	if !strings.Contains(link, "duckduckgo.com/l/") {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return link
}
