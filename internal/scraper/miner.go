package scraper

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	json "github.com/goccy/go-json"

	"douyin-collector/internal/logx"
	"douyin-collector/internal/model"
	"douyin-collector/internal/numtext"
)

// maxDepth 为递归查找的深度上限，防止自引用或超深结构。
const maxDepth = 10

// embedPattern 描述一种内嵌数据形态：匹配前缀，之后紧跟一个 JSON 对象。
// wrap 非空时将解析结果包进 {wrap: obj}，使根对象与全局状态形态一致。
type embedPattern struct {
	re   *regexp.Regexp
	wrap string
}

var embedPatterns = []embedPattern{
	{re: regexp.MustCompile(`window\._SSR_HYDRATED_DATA\s*=\s*`)},
	{re: regexp.MustCompile(`window\.__INITIAL_STATE__\s*=\s*`)},
	{re: regexp.MustCompile(`"userInfo"\s*:\s*`), wrap: "userInfo"},
	{re: regexp.MustCompile(`"user"\s*:\s*`), wrap: "user"},
}

// Mine 扫描页面内联脚本，返回内嵌 JSON 根对象；均不可用时返回 nil。
// 候选顺序：RENDER_DATA 脚本（URL 编码）优先，其后逐个脚本按 embedPatterns 顺序尝试。
// 优先返回第一个含有用户信息的候选；都没有时返回第一个可解析的候选。
func Mine(s *Snapshot) any {
	if s == nil || s.Doc == nil {
		return nil
	}
	var first any
	if raw := strings.TrimSpace(s.Doc.Find(`script#RENDER_DATA`).First().Text()); raw != "" {
		if dec, err := url.PathUnescape(raw); err == nil {
			raw = dec
		}
		v, err := decodeValue(raw)
		if err != nil {
			logx.Debugf("RENDER_DATA 解析失败: %v", err)
		} else if FindUserInfo(v) != nil {
			return v
		} else {
			first = v
		}
	}
	var found any
	s.Doc.Find("script").EachWithBreak(func(_ int, sc *goquery.Selection) bool {
		content := sc.Text()
		if content == "" {
			return true
		}
		for _, p := range embedPatterns {
			loc := p.re.FindStringIndex(content)
			if loc == nil {
				continue
			}
			rest := content[loc[1]:]
			if !strings.HasPrefix(rest, "{") {
				continue
			}
			v, err := decodeValue(rest)
			if err != nil {
				// 语法错误视为未命中，继续尝试下一个形态
				logx.Debugf("内嵌数据解析失败: %v", err)
				continue
			}
			if p.wrap != "" {
				v = map[string]any{p.wrap: v}
			}
			if FindUserInfo(v) != nil {
				found = v
				return false
			}
			if first == nil {
				first = v
			}
		}
		return true
	})
	if found != nil {
		return found
	}
	return first
}

// decodeValue 从 s 开头解码一个完整 JSON 值，忽略其后的脚本文本。
// 失败时返回包装 model.ErrParse 的错误。
func decodeValue(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	}
	return nil, fmt.Errorf("%w: not an object or array", model.ErrParse)
}

var (
	userKeys = []string{"userInfo", "user"}
	postKeys = []string{"awemeList", "aweme_list"}
)

// isUserObject 要求对象至少带有一个身份字段，跳过 {"user":{"isLogin":false}} 之类的外壳。
func isUserObject(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return field(m, "uid", "userId", "sec_uid", "nickname") != nil
}

func isArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

// FindUserInfo 递归查找首个 userInfo/user 键，其值为带身份字段的对象时返回该值。
func FindUserInfo(root any) map[string]any {
	m, _ := walk(root, 0, isUserObject, userKeys).(map[string]any)
	return m
}

// FindPostList 递归查找作品数组（awemeList/aweme_list），未找到时返回空切片。
func FindPostList(root any) []map[string]any {
	arr, _ := walk(root, 0, isArray, postKeys).([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// walk 深度优先查找；对象键按字典序遍历以保证结果确定。
func walk(obj any, depth int, accept func(any) bool, keys []string) any {
	if depth > maxDepth {
		return nil
	}
	switch t := obj.(type) {
	case map[string]any:
		for _, k := range keys {
			if v, ok := t[k]; ok && accept(v) {
				return v
			}
		}
		names := make([]string, 0, len(t))
		for k := range t {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if r := walk(t[k], depth+1, accept, keys); r != nil {
				return r
			}
		}
	case []any:
		for _, e := range t {
			if r := walk(e, depth+1, accept, keys); r != nil {
				return r
			}
		}
	}
	return nil
}

// field 取第一个存在且非空的别名字段。
func field(m map[string]any, aliases ...string) any {
	for _, k := range aliases {
		if v, ok := m[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// asCount 将数字或缩写文本统一为非负整数。
func asCount(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			if n < 0 {
				return 0
			}
			return n
		}
		return numtext.Parse(t.String())
	case float64:
		if t <= 0 || math.IsNaN(t) {
			return 0
		}
		if t >= math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(t)
	case string:
		return numtext.Parse(t)
	}
	return 0
}

// asURL 接受字符串或 {url_list|urlList:[...]} / {url} 形态。
func asURL(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if list, ok := field(t, "url_list", "urlList").([]any); ok {
			for _, e := range list {
				if s := asString(e); s != "" {
					return s
				}
			}
		}
		return asString(field(t, "url", "uri"))
	}
	return ""
}

// creatorFromMined 将挖掘到的用户对象映射为达人记录，缺失字段保持零值。
func creatorFromMined(m map[string]any) model.Creator {
	if m == nil {
		return model.Creator{}
	}
	return model.Creator{
		UserID:         asString(field(m, "uid", "userId", "sec_uid")),
		Username:       asString(field(m, "nickname")),
		AvatarURL:      asURL(field(m, "avatar", "avatarThumb", "avatar_thumb", "avatarUrl")),
		Bio:            asString(field(m, "signature", "desc")),
		FollowerCount:  asCount(field(m, "followerCount", "follower_count")),
		FollowingCount: asCount(field(m, "followingCount", "following_count")),
		LikeCount:      asCount(field(m, "totalFavorited", "total_favorited")),
		PostCount:      asCount(field(m, "awemeCount", "aweme_count")),
	}
}

// postFromMined 将 aweme 条目映射为作品记录；无作品 ID 时 ok 为 false。
func postFromMined(m map[string]any) (model.Post, bool) {
	p := model.Post{
		PostID: asString(field(m, "awemeId", "aweme_id")),
		Title:  asString(field(m, "desc", "title")),
	}
	if p.PostID == "" {
		return p, false
	}
	if video, ok := m["video"].(map[string]any); ok {
		p.CoverURL = asURL(video["cover"])
	}
	if st, ok := m["statistics"].(map[string]any); ok {
		p.PlayCount = asCount(field(st, "playCount", "play_count"))
		p.LikeCount = asCount(field(st, "diggCount", "digg_count"))
		p.CommentCount = asCount(field(st, "commentCount", "comment_count"))
		p.ShareCount = asCount(field(st, "shareCount", "share_count"))
	}
	if sec := asCount(field(m, "createTime", "create_time")); sec > 0 {
		t := time.Unix(sec, 0).UTC()
		p.PublishedAt = &t
	}
	return p, true
}
