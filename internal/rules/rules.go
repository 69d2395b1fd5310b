// 包 rules 负责加载并提供页面解析规则（rules.yaml），
// 以预设名组织 CSS 选择器回退链，用于主页达人信息与作品列表解析。
// 选择器表达式语法：
// - 文本：".name" 或 "."（取当前项文本）
// - 属性："img@src" / "@href"（当前项属性）
// - 回退：使用 "||" 连接多个候选，按先后尝试
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个页面家族的解析规则集合。
type Preset struct {
	Profile *ProfilePage `yaml:"profile"`
	Posts   *PostList    `yaml:"posts"`
}

// ProfilePage 描述主页的选择器：
// - stats：携带统计文本的元素（全部匹配项都会按关键字分类）
// - username/avatar/bio/post_count：取文本或属性
type ProfilePage struct {
	Username  string `yaml:"username"`
	Avatar    string `yaml:"avatar"`
	Bio       string `yaml:"bio"`
	PostCount string `yaml:"post_count"`
	Stats     string `yaml:"stats"`
}

// PostList 描述作品列表的选择器：
// - item：每个作品条目容器
// - link/title/cover：在条目内取值
// - stats：条目内携带统计文本的元素
type PostList struct {
	Item  string `yaml:"item"`
	Link  string `yaml:"link"`
	Title string `yaml:"title"`
	Cover string `yaml:"cover"`
	Stats string `yaml:"stats"`
}

// Default 返回内置的默认预设。
func Default() Preset {
	return Preset{
		Profile: &ProfilePage{
			Username:  `[data-e2e="user-title"]||.user-title||h1[class*="username"]`,
			Avatar:    `[data-e2e="user-avatar"] img@src||[data-e2e="user-avatar"] img@data-src||.avatar img@src||.avatar img@data-src||img[class*="avatar"]@src||img[class*="avatar"]@data-src`,
			Bio:       `[data-e2e="user-signature"]||.user-signature||[class*="signature"]`,
			PostCount: `[data-e2e="user-post"]||[class*="video-count"]`,
			Stats:     `[data-e2e="user-fans"], [data-e2e="user-follow"], [data-e2e="user-like"]`,
		},
		Posts: &PostList{
			Item:  `[data-e2e="user-post-item"], [class*="video-item"], [class*="aweme-item"]`,
			Link:  `a[href*="/video/"]@href`,
			Title: `[data-e2e="user-post-item-desc"]||.video-title||[class*="title"]`,
			Cover: `img@src||img@data-src`,
			Stats: `[class*="count"], [class*="stat"]`,
		},
	}
}

// Merge 以 p 中的非空字段覆盖 base，缺失的字段沿用 base。
func Merge(base, p Preset) Preset {
	out := base
	if p.Profile != nil {
		prof := *base.Profile
		pick(&prof.Username, p.Profile.Username)
		pick(&prof.Avatar, p.Profile.Avatar)
		pick(&prof.Bio, p.Profile.Bio)
		pick(&prof.PostCount, p.Profile.PostCount)
		pick(&prof.Stats, p.Profile.Stats)
		out.Profile = &prof
	}
	if p.Posts != nil {
		posts := *base.Posts
		pick(&posts.Item, p.Posts.Item)
		pick(&posts.Link, p.Posts.Link)
		pick(&posts.Title, p.Posts.Title)
		pick(&posts.Cover, p.Posts.Cover)
		pick(&posts.Stats, p.Posts.Stats)
		out.Posts = &posts
	}
	return out
}

func pick(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func Load(path string) (*Rules, error) {
	// 从文件加载 YAML 到 Rules.Presets
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写），若为空或不存在则回退到 "default"。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	// 不区分大小写匹配
	lower := strings.ToLower(name)
	for k, v := range r.Presets {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p, true
	}
	for _, v := range r.Presets {
		return v, true
	}
	return Preset{}, false
}

// Resolve 返回名为 name 的预设与内置默认值合并后的结果；r 为空时即为默认预设。
func (r *Rules) Resolve(name string) Preset {
	if p, ok := r.GetPreset(name); ok {
		return Merge(Default(), p)
	}
	return Default()
}
