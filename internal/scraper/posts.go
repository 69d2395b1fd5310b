package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"douyin-collector/internal/model"
	"douyin-collector/internal/numtext"
	"douyin-collector/internal/rules"
)

var videoIDRe = regexp.MustCompile(`/video/(\d+)`)

// VideoIDFromLink 从作品链接中取出数字 ID。
func VideoIDFromLink(link string) string {
	if m := videoIDRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// ExtractPosts 两轮合并作品列表，结果不超过 limit 条：
//  1. DOM：按页面顺序读取作品条目，没有作品 ID 的条目跳过
//  2. 内嵌数据：同 ID 就地替换（数据更完整），新 ID 在未满时追加
//
// 结果保持发现顺序，不做排序。
func ExtractPosts(s *Snapshot, p *rules.PostList, limit int) []model.Post {
	if s == nil || s.Doc == nil || limit <= 0 {
		return nil
	}
	if p == nil {
		p = rules.Default().Posts
	}
	posts := make([]model.Post, 0, limit)
	index := make(map[string]int)

	if strings.TrimSpace(p.Item) != "" {
		s.Doc.Find(p.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
			if len(posts) >= limit {
				return false
			}
			post := postFromDOM(s.URL, item, p)
			if post.PostID == "" {
				return true
			}
			if _, dup := index[post.PostID]; dup {
				return true
			}
			index[post.PostID] = len(posts)
			posts = append(posts, post)
			return true
		})
	}

	for i, entry := range FindPostList(s.Mined()) {
		if i >= limit {
			break
		}
		post, ok := postFromMined(entry)
		if !ok {
			continue
		}
		if at, found := index[post.PostID]; found {
			posts[at] = post
			continue
		}
		if len(posts) < limit {
			index[post.PostID] = len(posts)
			posts = append(posts, post)
		}
	}
	return posts
}

func postFromDOM(pageURL string, item *goquery.Selection, p *rules.PostList) model.Post {
	post := model.Post{
		PostID:   VideoIDFromLink(getVal(item, p.Link)),
		Title:    getVal(item, p.Title),
		CoverURL: abs(pageURL, getVal(item, p.Cover)),
	}
	if strings.TrimSpace(p.Stats) == "" {
		return post
	}
	item.Find(p.Stats).Each(func(_ int, el *goquery.Selection) {
		text := strings.TrimSpace(el.Text())
		n := numtext.Parse(text)
		switch classifyPostStat(text) {
		case statPlay:
			post.PlayCount = n
		case statLike:
			post.LikeCount = n
		case statComment:
			post.CommentCount = n
		case statShare:
			post.ShareCount = n
		}
	})
	return post
}
