// 包 fetch 封装 HTTP 客户端（代理/超时/重试），用于抓取主页静态快照与订阅源。
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"douyin-collector/internal/scraper"
)

// maxBody 为单个页面读取上限。
const maxBody = 8 << 20

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Client 为带重试的 HTTP 客户端。
type Client struct {
	http   *http.Client
	retry  int
	cookie string
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	// Cookie 原样放入请求头；主页通常需要登录态才会渲染完整数据。
	Cookie string
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	cl := &http.Client{Transport: transport}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	cl.Timeout = opts.Timeout
	return &Client{http: cl, retry: opts.Retry, cookie: opts.Cookie}, nil
}

// Get 请求带有线性回退重试；非 2xx 视为失败。
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error
	attempts := c.retry + 1
	for i := 0; i < attempts; i++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			lastErr = fmt.Errorf("new request: %w", reqErr)
			break
		}
		// 使用常见浏览器 UA，减少 403/反爬误判；支持环境变量覆盖（COLLECTOR_UA）
		ua := os.Getenv("COLLECTOR_UA")
		if ua == "" {
			ua = defaultUA
		}
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
		if c.cookie != "" {
			req.Header.Set("Cookie", c.cookie)
		}
		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("http status: %s", resp.Status)
			if resp.Body != nil {
				resp.Body.Close()
			}
		} else {
			lastErr = err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 300 * time.Millisecond):
		}
	}
	return nil, lastErr
}

// Open 抓取页面 HTML 作为静态快照（不执行脚本，也不支持滚动）。
// 页面地址取重定向后的最终地址。
func (c *Client) Open(ctx context.Context, pageURL string) (scraper.Page, error) {
	resp, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("GET page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", pageURL, err)
	}
	final := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &scraper.StaticPage{PageURL: final, Body: string(b)}, nil
}
