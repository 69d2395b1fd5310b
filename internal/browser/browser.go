// 包 browser 以无头浏览器（go-rod + stealth）打开主页，
// 提供渲染后的 DOM 与滚动能力，供分页加载使用。
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"douyin-collector/internal/logx"
	"douyin-collector/internal/scraper"
)

// Options 为浏览器启动参数。
type Options struct {
	Headless    bool
	Bin         string
	Proxy       string
	PageTimeout time.Duration
	UserAgent   string
}

// Browser 惰性启动浏览器，首次 Open 时才拉起进程。
type Browser struct {
	opts Options

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func New(opts Options) *Browser {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}
	return &Browser{opts: opts}
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	l := launcher.New().
		Headless(b.opts.Headless).
		NoSandbox(true).
		Set("remote-allow-origins", "*")
	if b.opts.Bin != "" {
		l = l.Bin(b.opts.Bin)
	}
	if b.opts.Proxy != "" {
		l = l.Proxy(b.opts.Proxy)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	logx.Debugf("浏览器已启动: %s", controlURL)
	b.launcher = l
	b.browser = br
	return br, nil
}

// Open 新建隐身标签页并导航到 pageURL，等待页面加载完成。
func (b *Browser) Open(ctx context.Context, pageURL string) (scraper.Page, error) {
	br, err := b.connect()
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(br)
	if err != nil {
		return nil, fmt.Errorf("new stealth page: %w", err)
	}
	if b.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.opts.UserAgent}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	nav := page.Context(ctx).Timeout(b.opts.PageTimeout)
	defer nav.CancelTimeout()
	if err := nav.Navigate(pageURL); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := nav.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("wait load %s: %w", pageURL, err)
	}
	p := &Page{page: page, url: pageURL, timeout: b.opts.PageTimeout}
	if info, err := page.Info(); err == nil && info.URL != "" {
		p.url = info.URL
	}
	logx.Debugf("页面已加载: %s", p.url)
	return p, nil
}

// Close 关闭浏览器进程。
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Kill()
	b.browser, b.launcher = nil, nil
	return err
}

// Page 为已加载的浏览器标签页，实现 scraper.Page 与 scraper.Scroller。
type Page struct {
	page    *rod.Page
	url     string
	timeout time.Duration
}

func (p *Page) URL() string { return p.url }

// scoped 返回带超时的页面副本，调用方须在用完后调用 release 释放计时器。
func (p *Page) scoped(ctx context.Context) (*rod.Page, func()) {
	sp := p.page.Context(ctx).Timeout(p.timeout)
	return sp, func() { sp.CancelTimeout() }
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	sp, release := p.scoped(ctx)
	defer release()
	html, err := sp.HTML()
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	sp, release := p.scoped(ctx)
	defer release()
	if _, err := sp.Eval(`() => window.scrollTo(0, document.documentElement.scrollHeight)`); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (p *Page) ScrollHeight(ctx context.Context) (int64, error) {
	sp, release := p.scoped(ctx)
	defer release()
	res, err := sp.Eval(`() => document.documentElement.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("scroll height: %w", err)
	}
	return int64(res.Value.Int()), nil
}

// Close 关闭标签页。
func (p *Page) Close() error { return p.page.Close() }
