package aggregate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyin-collector/internal/bridge"
	"douyin-collector/internal/config"
	"douyin-collector/internal/export"
	"douyin-collector/internal/fetch"
	"douyin-collector/internal/model"
	"douyin-collector/internal/rules"
	"douyin-collector/internal/scraper"
)

type recordHandler struct {
	urls []string
}

func (h *recordHandler) Handle(_ context.Context, req bridge.Request) bridge.Response {
	h.urls = append(h.urls, req.URL)
	if strings.Contains(req.URL, "bad") {
		return bridge.Response{Success: false, Error: "boom"}
	}
	n := 2
	return bridge.Response{Success: true, VideoCount: &n, Message: "ok"}
}

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.RateLimit.Interval = 0
	return cfg
}

func TestRunner_SkipsFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.Profiles = []string{"https://www.douyin.com/user/a", "https://www.douyin.com/user/bad", "https://www.douyin.com/user/c"}
	h := &recordHandler{}
	sum, err := New(cfg, h).WithProgress(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Succeeded: 2, Failed: 1, Videos: 4}, sum)
	assert.Equal(t, cfg.Profiles, h.urls)

	// 显式传入的地址优先于配置
	h.urls = nil
	_, err = New(cfg, h).WithProgress(nil).Run(context.Background(), "https://www.douyin.com/user/x")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.douyin.com/user/x"}, h.urls)
}

func TestRunner_CanceledContext(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Interval = time.Hour
	cfg.Profiles = []string{"https://www.douyin.com/user/a", "https://www.douyin.com/user/b"}
	h := &recordHandler{}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sum, err := New(cfg, h).WithProgress(nil).Run(ctx)
	assert.Error(t, err)
	// 第一个地址消耗初始令牌，第二个在等待中被取消
	assert.Equal(t, 1, sum.Succeeded)
	assert.Len(t, h.urls, 1)
}

func TestRunner_EmptyProfiles(t *testing.T) {
	sum, err := New(fastConfig(), &recordHandler{}).WithProgress(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
}

func TestSimpleBuffer_UpsertSemantics(t *testing.T) {
	ctx := context.Background()
	b := NewSimpleBuffer()
	id1, err := b.UpsertCreator(ctx, model.Creator{UserID: "u1", Username: "Alice", FollowerCount: 1})
	require.NoError(t, err)
	first, _ := b.GetAllCreators(ctx)
	require.Len(t, first, 1)
	assert.Nil(t, first[0].UpdatedAt)

	id2, err := b.UpsertCreator(ctx, model.Creator{UserID: "u1", Username: "Alice", FollowerCount: 500})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	got, _ := b.GetAllCreators(ctx)
	require.Len(t, got, 1)
	assert.EqualValues(t, 500, got[0].FollowerCount)
	assert.NotNil(t, got[0].UpdatedAt)
	assert.Equal(t, first[0].CollectedAt, got[0].CollectedAt)

	other, _ := b.UpsertCreator(ctx, model.Creator{UserID: "u2", Username: "bob", Bio: "美食 Vlog"})
	require.NoError(t, b.InsertPosts(ctx, id1, []model.Post{{PostID: "1", PlayCount: 1}, {PostID: ""}}))
	require.NoError(t, b.InsertPosts(ctx, other, []model.Post{{PostID: "1", PlayCount: 9}}))

	st, _ := b.GetStatistics(ctx)
	assert.Equal(t, model.Stats{CreatorCount: 2, PostCount: 1, TotalFollowers: 500}, st)

	entries, _ := b.ExportAll(ctx)
	require.Len(t, entries, 2)
	for _, e := range entries {
		if e.UserID == "u1" {
			require.Len(t, e.Posts, 1)
			assert.EqualValues(t, 9, e.Posts[0].PlayCount)
		} else {
			assert.Empty(t, e.Posts)
			assert.NotNil(t, e.Posts)
		}
	}

	found, _ := b.SearchCreators(ctx, "vlog")
	require.Len(t, found, 1)
	assert.Equal(t, "u2", found[0].UserID)

	require.NoError(t, b.Clear(ctx))
	st, _ = b.GetStatistics(ctx)
	assert.Zero(t, st.CreatorCount)
}

func TestSortPosts_NilLast(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	ps := []model.Post{{ID: 1}, {ID: 2, PublishedAt: &t1}, {ID: 3, PublishedAt: &t2}, {ID: 4}}
	sortPosts(ps)
	ids := []int64{ps[0].ID, ps[1].ID, ps[2].ID, ps[3].ID}
	assert.Equal(t, []int64{3, 2, 4, 1}, ids)
}

// 极简模式端到端：HTTP 抓取主页 → 协调器写入内存缓冲 → 导出快照文件。
func TestSimpleMode_EndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/user/")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!doctype html><h1 data-e2e="user-title">达人%s</h1>
<div data-e2e="user-fans">1.5万 粉丝</div>
<ul><li data-e2e="user-post-item"><a href="/video/%s1">a</a></li>
<li data-e2e="user-post-item"><a href="/video/%s2">b</a></li></ul>`, id, id, id)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{Timeout: 3 * time.Second})
	require.NoError(t, err)
	cfg := fastConfig()
	cfg.SimpleMode = true
	cfg.Profiles = []string{srv.URL + "/user/7", srv.URL + "/user/8", srv.URL + "/video/1"}

	buf := NewSimpleBuffer()
	agent := bridge.NewAgent(cl, scraper.NewCollector(rules.Default()))
	coord := bridge.NewCoordinator(buf, agent, nil)
	coord.SetDefaults(cfg.CollectOptions())

	sum, err := New(cfg, coord).WithProgress(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 4, sum.Videos)

	out := filepath.Join(t.TempDir(), "data.json.zst")
	require.NoError(t, export.ToJSON(context.Background(), buf, out))
	exp, err := export.Read(out)
	require.NoError(t, err)
	assert.EqualValues(t, 2, exp.Stats.CreatorCount)
	assert.EqualValues(t, 4, exp.Stats.PostCount)
	assert.EqualValues(t, 30000, exp.Stats.TotalFollowers)
	require.Len(t, exp.Creators, 2)
	assert.Len(t, exp.Creators[0].Posts, 2)
}
