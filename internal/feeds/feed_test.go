package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyin-collector/internal/fetch"
	"douyin-collector/internal/model"
)

const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>达人的作品</title>
<item><title>第一条</title><link>https://www.douyin.com/video/7301</link>
<description><![CDATA[<img src="https://p.cdn/7301.jpg"> 描述]]></description>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
<item><title>图文</title><link>https://www.douyin.com/note/9</link></item>
<item><title>第二条</title><link>https://www.douyin.com/video/7302</link>
<enclosure url="https://p.cdn/7302.jpg" type="image/jpeg" length="0"/></item>
</channel></rss>`

func TestParseFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/douyin/user/MS4w?x", r.URL.Path)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	}))
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	u := FeedURL(srv.URL+"/douyin/user/{userId}", "MS4w?x")
	posts, err := ParseFeed(context.Background(), cl, u, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "7301", posts[0].PostID)
	assert.Equal(t, "第一条", posts[0].Title)
	assert.Equal(t, "https://p.cdn/7301.jpg", posts[0].CoverURL)
	require.NotNil(t, posts[0].PublishedAt)
	assert.Equal(t, 2006, posts[0].PublishedAt.Year())
	assert.Equal(t, "https://p.cdn/7302.jpg", posts[1].CoverURL)
	assert.Nil(t, posts[1].PublishedAt)

	posts, err = ParseFeed(context.Background(), cl, u, 1)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestFeedURL(t *testing.T) {
	assert.Equal(t, "", FeedURL("", "u"))
	assert.Equal(t, "", FeedURL("https://rss/{userId}", ""))
	assert.Equal(t, "https://rss/u1", FeedURL("https://rss/{userId}", "u1"))
}

func TestSupplement(t *testing.T) {
	base := []model.Post{{PostID: "1", PlayCount: 5}}
	extra := []model.Post{{PostID: "1", PlayCount: 0}, {PostID: "2"}, {PostID: ""}, {PostID: "3"}}
	out := Supplement(base, extra, 2)
	require.Len(t, out, 2)
	assert.EqualValues(t, 5, out[0].PlayCount)
	assert.Equal(t, "2", out[1].PostID)

	assert.Len(t, Supplement(base, extra, 10), 3)
}
