// 包 scraper 从达人主页的渲染结果中提取达人信息与作品列表：
// - DOM 选择器回退链（rules 预设）优先
// - 内嵌脚本 JSON 挖掘兜底
// - 可选滚动加载更多作品
// 所有提取策略都是 Snapshot 的纯函数，缺失数据降级为空值而非报错。
package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Page 是一个已打开的主页：浏览器标签页或静态抓取结果。
type Page interface {
	URL() string
	HTML(ctx context.Context) (string, error)
}

// Scroller 为可滚动页面的可选能力；静态快照不实现它，分页加载随之跳过。
type Scroller interface {
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)
}

// StaticPage 为固定内容的页面（HTTP 抓取结果或测试夹具）。
type StaticPage struct {
	PageURL string
	Body    string
}

func (p *StaticPage) URL() string { return p.PageURL }

func (p *StaticPage) HTML(context.Context) (string, error) { return p.Body, nil }

// Snapshot 是某一时刻解析好的 DOM。
type Snapshot struct {
	URL string
	Doc *goquery.Document

	mineOnce sync.Once
	mined    any
}

// NewSnapshot 解析 HTML 生成快照。
func NewSnapshot(pageURL, html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	return &Snapshot{URL: pageURL, Doc: doc}, nil
}

// Capture 读取页面当前 HTML 并生成快照。
func Capture(ctx context.Context, p Page) (*Snapshot, error) {
	html, err := p.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html %s: %w", p.URL(), err)
	}
	return NewSnapshot(p.URL(), html)
}

// Mined 返回挖掘出的页面数据根对象（只计算一次）；未找到时为 nil。
func (s *Snapshot) Mined() any {
	s.mineOnce.Do(func() { s.mined = Mine(s) })
	return s.mined
}

// PageSource 按地址打开页面。返回的 Page 若实现 io.Closer，调用方用完后负责关闭。
type PageSource interface {
	Open(ctx context.Context, url string) (Page, error)
}
