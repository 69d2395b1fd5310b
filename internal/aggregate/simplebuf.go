package aggregate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"douyin-collector/internal/model"
)

// SimpleBuffer 在极简模式下代替数据库收集采集结果（实现 bridge.Store 与 export.Source）。
// 与 SQLite 存储保持同样的语义：按 user_id / video_id 去重，保留首次采集时间与代理 id。
type SimpleBuffer struct {
	mu       sync.Mutex
	nextID   int64
	creators map[string]*model.Creator // key: user_id
	posts    map[string]*model.Post    // key: video_id
}

func NewSimpleBuffer() *SimpleBuffer {
	return &SimpleBuffer{
		creators: make(map[string]*model.Creator),
		posts:    make(map[string]*model.Post),
	}
}

func (b *SimpleBuffer) UpsertCreator(_ context.Context, c model.Creator) (int64, error) {
	now := time.Now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.creators[c.UserID]; ok {
		c.ID = old.ID
		c.CollectedAt = old.CollectedAt
		c.UpdatedAt = &now
		*old = c
		return c.ID, nil
	}
	b.nextID++
	c.ID = b.nextID
	c.CollectedAt = now
	c.UpdatedAt = nil
	b.creators[c.UserID] = &c
	return c.ID, nil
}

func (b *SimpleBuffer) InsertPosts(_ context.Context, creatorID int64, list []model.Post) error {
	now := time.Now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range list {
		if p.PostID == "" {
			continue
		}
		if old, ok := b.posts[p.PostID]; ok {
			// 作品归属与首次采集时间不变
			p.ID = old.ID
			p.CreatorID = old.CreatorID
			p.CollectedAt = old.CollectedAt
			if p.PublishedAt == nil {
				p.PublishedAt = old.PublishedAt
			}
			*old = p
			continue
		}
		b.nextID++
		p.ID = b.nextID
		p.CreatorID = creatorID
		p.CollectedAt = now
		b.posts[p.PostID] = &p
	}
	return nil
}

func (b *SimpleBuffer) GetAllCreators(ctx context.Context) ([]model.Creator, error) {
	return b.SearchCreators(ctx, "")
}

// SearchCreators 按昵称或简介做不区分大小写的子串匹配。
func (b *SimpleBuffer) SearchCreators(_ context.Context, keyword string) ([]model.Creator, error) {
	kw := strings.ToLower(keyword)
	b.mu.Lock()
	out := make([]model.Creator, 0, len(b.creators))
	for _, c := range b.creators {
		if kw == "" || strings.Contains(strings.ToLower(c.Username), kw) || strings.Contains(strings.ToLower(c.Bio), kw) {
			out = append(out, *c)
		}
	}
	b.mu.Unlock()
	sortCreators(out)
	return out, nil
}

func (b *SimpleBuffer) GetStatistics(_ context.Context) (model.Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := model.Stats{CreatorCount: int64(len(b.creators)), PostCount: int64(len(b.posts))}
	for _, c := range b.creators {
		st.TotalFollowers += c.FollowerCount
	}
	return st, nil
}

// ExportAll 返回达人（按采集时间倒序）及其作品（按发布时间倒序）。
func (b *SimpleBuffer) ExportAll(ctx context.Context) ([]model.ExportEntry, error) {
	creators, _ := b.GetAllCreators(ctx)
	b.mu.Lock()
	byCreator := make(map[int64][]model.Post, len(creators))
	for _, p := range b.posts {
		byCreator[p.CreatorID] = append(byCreator[p.CreatorID], *p)
	}
	b.mu.Unlock()
	out := make([]model.ExportEntry, 0, len(creators))
	for _, c := range creators {
		ps := byCreator[c.ID]
		sortPosts(ps)
		if ps == nil {
			ps = []model.Post{}
		}
		out = append(out, model.ExportEntry{Creator: c, Posts: ps})
	}
	return out, nil
}

func (b *SimpleBuffer) Clear(_ context.Context) error {
	b.mu.Lock()
	b.creators = make(map[string]*model.Creator)
	b.posts = make(map[string]*model.Post)
	b.mu.Unlock()
	return nil
}

func sortCreators(cs []model.Creator) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CollectedAt.Equal(cs[j].CollectedAt) {
			return cs[i].CollectedAt.After(cs[j].CollectedAt)
		}
		return cs[i].ID > cs[j].ID
	})
}

// sortPosts 无发布时间的排在最后。
func sortPosts(ps []model.Post) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i].PublishedAt, ps[j].PublishedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return ps[i].ID > ps[j].ID
	})
}
