package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"douyin-collector/internal/model"
	"douyin-collector/internal/numtext"
	"douyin-collector/internal/rules"
)

var userPathRe = regexp.MustCompile(`/user/([^/?]+)`)

// ExtractProfile 合并 DOM 与内嵌数据得到达人记录。
// 页面缺少数据时返回零值字段的记录，是否可用由调用方按 UserID 判断。
func ExtractProfile(s *Snapshot, p *rules.ProfilePage) *model.Creator {
	if s == nil || s.Doc == nil {
		return nil
	}
	if p == nil {
		p = rules.Default().Profile
	}
	root := s.Doc.Selection
	c := &model.Creator{}

	c.Username = getVal(root, p.Username)
	c.UserID = userIDFromURL(s.URL)

	// 仍为空的字段由内嵌数据补齐
	mined := creatorFromMined(FindUserInfo(s.Mined()))
	fillString(&c.UserID, mined.UserID)
	fillString(&c.Username, mined.Username)
	fillString(&c.AvatarURL, mined.AvatarURL)
	fillString(&c.Bio, mined.Bio)
	fillCount(&c.FollowerCount, mined.FollowerCount)
	fillCount(&c.FollowingCount, mined.FollowingCount)
	fillCount(&c.LikeCount, mined.LikeCount)
	fillCount(&c.PostCount, mined.PostCount)

	// DOM 统计元素反映当前渲染状态，优先于内嵌数据
	if strings.TrimSpace(p.Stats) != "" {
		root.Find(p.Stats).Each(func(_ int, el *goquery.Selection) {
			text := strings.TrimSpace(el.Text())
			n := numtext.Parse(text)
			switch classifyProfileStat(text) {
			case statFollower:
				c.FollowerCount = n
			case statFollowing:
				c.FollowingCount = n
			case statLike:
				c.LikeCount = n
			}
		})
	}

	if v := abs(s.URL, getVal(root, p.Avatar)); v != "" {
		c.AvatarURL = v
	}
	if v := getVal(root, p.Bio); v != "" {
		c.Bio = v
	}
	if v := getVal(root, p.PostCount); v != "" {
		c.PostCount = numtext.Parse(v)
	}
	return c
}

func userIDFromURL(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		path = u.Path
	}
	if m := userPathRe.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return ""
}

type statKind int

const (
	statNone statKind = iota
	statFollower
	statFollowing
	statLike
	statPlay
	statComment
	statShare
)

// classifyProfileStat 按中英文关键字归类主页统计文本；粉丝先于关注判断。
func classifyProfileStat(text string) statKind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "粉丝") || strings.Contains(lower, "follower"):
		return statFollower
	case strings.Contains(text, "关注") || strings.Contains(lower, "following"):
		return statFollowing
	case strings.Contains(text, "获赞") || strings.Contains(lower, "like"):
		return statLike
	}
	return statNone
}

// classifyPostStat 按中英文关键字归类作品统计文本。
func classifyPostStat(text string) statKind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "播放") || strings.Contains(lower, "play"):
		return statPlay
	case strings.Contains(text, "点赞") || strings.Contains(lower, "like"):
		return statLike
	case strings.Contains(text, "评论") || strings.Contains(lower, "comment"):
		return statComment
	case strings.Contains(text, "分享") || strings.Contains(lower, "share"):
		return statShare
	}
	return statNone
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func fillCount(dst *int64, v int64) {
	if *dst == 0 {
		*dst = v
	}
}
