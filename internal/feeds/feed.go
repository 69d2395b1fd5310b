// 包 feeds 提供订阅源补充作品：
// - FeedURL：按模板（{userId} 占位）生成达人订阅地址，例如 RSSHub 路由
// - ParseFeed：使用 gofeed 解析 RSS/Atom/JSON Feed 并归一化为作品
// - Supplement：只填补页面提取后的剩余名额，不替换已有作品
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"douyin-collector/internal/model"
	"douyin-collector/internal/scraper"
)

// Fetcher 为订阅抓取所需的 HTTP 能力（fetch.Client 满足此接口）。
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// FeedURL 将模板中的 {userId} 替换为转义后的 userID；模板为空时返回空串。
func FeedURL(template, userID string) string {
	template = strings.TrimSpace(template)
	if template == "" || userID == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{userId}", url.PathEscape(userID))
}

// ParseFeed 从订阅地址解析作品（最多返回 max 条，0 表示不限制）。
// 链接中不含 /video/<数字> 的条目被跳过。
func ParseFeed(ctx context.Context, cl Fetcher, feedURL string, max int) ([]model.Post, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 25*time.Second)
	defer cancel()
	p := gofeed.NewParser()
	// gofeed 不直接接收自定义 http.Client，因此先用自定义客户端抓取后再交给 gofeed 解析
	resp, err := cl.Get(reqCtx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("GET feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	feed, err := p.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	posts := make([]model.Post, 0, len(feed.Items))
	for _, it := range feed.Items {
		id := scraper.VideoIDFromLink(it.Link)
		if id == "" {
			id = scraper.VideoIDFromLink(it.GUID)
		}
		if id == "" {
			continue
		}
		posts = append(posts, model.Post{
			PostID:      id,
			Title:       safe(it.Title),
			CoverURL:    coverOf(it),
			PublishedAt: pickTime(it.PublishedParsed, it.UpdatedParsed),
		})
		if max > 0 && len(posts) >= max {
			break
		}
	}
	return posts, nil
}

// Supplement 追加 extra 中尚未出现的作品，直到 limit 为止。
func Supplement(posts, extra []model.Post, limit int) []model.Post {
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		seen[p.PostID] = true
	}
	for _, p := range extra {
		if len(posts) >= limit {
			break
		}
		if p.PostID == "" || seen[p.PostID] {
			continue
		}
		seen[p.PostID] = true
		posts = append(posts, p)
	}
	return posts
}

// coverOf 依次尝试：条目图片、图片类附件、描述中的第一张图。
func coverOf(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	html := it.Description
	if html == "" {
		html = it.Content
	}
	if !strings.Contains(html, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return strings.TrimSpace(src)
}

func pickTime(a, b *time.Time) *time.Time {
	var t *time.Time
	if a != nil {
		t = a
	} else if b != nil {
		t = b
	}
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func safe(s string) string { return strings.TrimSpace(s) }

// Source 按模板为达人拉取订阅作品。
type Source struct {
	Client   Fetcher
	Template string
}

// Enabled 表示是否配置了订阅模板。
func (s *Source) Enabled() bool {
	return s != nil && s.Client != nil && strings.TrimSpace(s.Template) != ""
}

// Posts 拉取 userID 的订阅作品；未配置模板时返回空。
func (s *Source) Posts(ctx context.Context, userID string, max int) ([]model.Post, error) {
	if !s.Enabled() {
		return nil, nil
	}
	u := FeedURL(s.Template, userID)
	if u == "" {
		return nil, nil
	}
	return ParseFeed(ctx, s.Client, u, max)
}
