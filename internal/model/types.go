// 包 model 定义采集与存储共用的数据模型（达人/作品/统计/导出结构）与错误类型。
package model

import "time"

// Creator 表示一个达人（主页级实体）。
// UserID 为站点提供的自然键；ID 为入库后分配的代理键。
type Creator struct {
	ID             int64      `json:"id,omitempty"`
	UserID         string     `json:"user_id"`
	Username       string     `json:"username"`
	AvatarURL      string     `json:"avatar_url"`
	Bio            string     `json:"bio"`
	FollowerCount  int64      `json:"follower_count"`
	FollowingCount int64      `json:"following_count"`
	LikeCount      int64      `json:"like_count"`
	PostCount      int64      `json:"video_count"`
	CollectedAt    time.Time  `json:"collected_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

// Post 为归一化后的作品条目，PostID 为自然键。
type Post struct {
	ID           int64      `json:"id,omitempty"`
	CreatorID    int64      `json:"creator_id,omitempty"`
	PostID       string     `json:"video_id"`
	Title        string     `json:"title"`
	CoverURL     string     `json:"cover_url"`
	PlayCount    int64      `json:"play_count"`
	LikeCount    int64      `json:"like_count"`
	CommentCount int64      `json:"comment_count"`
	ShareCount   int64      `json:"share_count"`
	PublishedAt  *time.Time `json:"created_at"`
	CollectedAt  time.Time  `json:"collected_at"`
}

// Stats 为库内汇总统计。
type Stats struct {
	CreatorCount   int64 `json:"creatorCount"`
	PostCount      int64 `json:"videoCount"`
	TotalFollowers int64 `json:"totalFollowers"`
}

// ExportEntry 为导出快照中的一项：达人字段展开 + 其全部作品。
type ExportEntry struct {
	Creator
	Posts []Post `json:"videos"`
}

// Export 为导出文件的顶层结构。
type Export struct {
	Stats      Stats         `json:"stats"`
	ExportedAt time.Time     `json:"exported_at"`
	Creators   []ExportEntry `json:"creators"`
}
