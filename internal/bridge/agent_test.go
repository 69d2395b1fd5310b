package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyin-collector/internal/model"
	"douyin-collector/internal/rules"
	"douyin-collector/internal/scraper"
)

type staticSource map[string]string

func (s staticSource) Open(_ context.Context, u string) (scraper.Page, error) {
	body, ok := s[u]
	if !ok {
		return nil, errors.New("not found")
	}
	return &scraper.StaticPage{PageURL: u, Body: body}, nil
}

type fixedPosts struct {
	posts []model.Post
	err   error
}

func (f *fixedPosts) Enabled() bool { return true }
func (f *fixedPosts) Posts(context.Context, string, int) ([]model.Post, error) {
	return f.posts, f.err
}

func profileHTML(ids ...string) string {
	var b strings.Builder
	b.WriteString(`<h1 data-e2e="user-title">达人</h1><ul>`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<li data-e2e="user-post-item"><a href="/video/%s">v</a></li>`, id)
	}
	b.WriteString(`</ul>`)
	return b.String()
}

const profileURL = "https://www.douyin.com/user/u1"

func TestAgent_Extract(t *testing.T) {
	a := NewAgent(staticSource{profileURL: profileHTML("1", "2")}, scraper.NewCollector(rules.Preset{}))
	resp, err := a.Send(context.Background(), Request{Action: ActionExtractData, URL: profileURL})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Error)
	res, err := ExtractResult(resp)
	require.NoError(t, err)
	assert.Equal(t, "u1", res.Creator.UserID)
	assert.Len(t, res.Posts, 2)
}

func TestAgent_Failures(t *testing.T) {
	a := NewAgent(staticSource{"https://www.douyin.com/video/1": "<p></p>"}, scraper.NewCollector(rules.Preset{}))
	ctx := context.Background()

	_, err := a.Send(ctx, Request{Action: ActionExtractData, URL: profileURL})
	assert.Error(t, err)

	resp, err := a.Send(ctx, Request{Action: ActionExtractData, URL: "https://www.douyin.com/video/1"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, model.ErrWrongPage.Error(), resp.Error)

	resp, err = a.Send(ctx, Request{Action: ActionGetCreators})
	require.NoError(t, err)
	assert.Equal(t, ErrUnknownAction, resp.Error)
}

func TestAgent_SupplementFromFeed(t *testing.T) {
	extra := &fixedPosts{posts: []model.Post{{PostID: "2"}, {PostID: "3"}, {PostID: "4"}}}
	a := NewAgent(staticSource{profileURL: profileHTML("1", "2")}, scraper.NewCollector(rules.Preset{})).
		WithPostSource(extra)
	collect := true
	resp, err := a.Send(context.Background(), Request{Action: ActionExtractData, URL: profileURL, CollectVideos: &collect, VideoLimit: 3})
	require.NoError(t, err)
	res, err := ExtractResult(resp)
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Posts))
	for _, p := range res.Posts {
		ids = append(ids, p.PostID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	// 补充失败不影响结果
	extra.err = errors.New("feed down")
	resp, err = a.Send(context.Background(), Request{Action: ActionExtractData, URL: profileURL})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

// heldPage 在第一次读取 HTML 时阻塞，直到 release 关闭。
type heldPage struct {
	scraper.StaticPage
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *heldPage) HTML(ctx context.Context) (string, error) {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	return p.Body, nil
}

// countingSource 记录 Open 次数，并总是返回同一页面。
type countingSource struct {
	mu    sync.Mutex
	opens int
	page  scraper.Page
}

func (s *countingSource) Open(context.Context, string) (scraper.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return s.page, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func TestAgent_BusySkipsOpen(t *testing.T) {
	hp := &heldPage{
		StaticPage: scraper.StaticPage{PageURL: profileURL, Body: profileHTML("1")},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	src := &countingSource{page: hp}
	a := NewAgent(src, scraper.NewCollector(rules.Preset{}))
	ctx := context.Background()

	done := make(chan Response, 1)
	go func() {
		resp, _ := a.Send(ctx, Request{Action: ActionExtractData, URL: profileURL})
		done <- resp
	}()
	<-hp.entered

	resp, err := a.Send(ctx, Request{Action: ActionExtractData, URL: profileURL})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, model.ErrBusy.Error(), resp.Error)
	assert.Equal(t, 1, src.count())

	close(hp.release)
	first := <-done
	assert.True(t, first.Success, first.Error)
}
