package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"douyin-collector/internal/rules"
	"douyin-collector/internal/scraper"
)

// 需要本机可用的 Chromium，默认跳过。
func requireBrowser(t *testing.T) {
	t.Helper()
	if os.Getenv("COLLECTOR_BROWSER_TEST") == "" {
		t.Skip("set COLLECTOR_BROWSER_TEST=1 to run browser tests")
	}
}

const infiniteList = `<html><body style="margin:0">
<h1 data-e2e="user-title">浏览器达人</h1>
<ul id="list"></ul>
<script>
let n = 0;
function more() {
  for (let i = 0; i < 5 && n < 15; i++, n++) {
    const li = document.createElement('li');
    li.setAttribute('data-e2e', 'user-post-item');
    li.style.height = '400px';
    li.innerHTML = '<a href="/video/' + (1000 + n) + '">v' + n + '</a>';
    document.getElementById('list').appendChild(li);
  }
}
more();
window.addEventListener('scroll', () => {
  if (window.innerHeight + window.scrollY >= document.body.scrollHeight - 10) more();
});
</script></body></html>`

func TestBrowser_ScrollAndCollect(t *testing.T) {
	requireBrowser(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(infiniteList))
	}))
	defer srv.Close()

	b := New(Options{Headless: true, PageTimeout: 20 * time.Second})
	defer b.Close()
	ctx := context.Background()
	page, err := b.Open(ctx, srv.URL+"/user/browser-uid")
	require.NoError(t, err)
	defer page.(*Page).Close()

	_, ok := page.(scraper.Scroller)
	require.True(t, ok)

	opts := scraper.DefaultOptions()
	opts.ScrollToLoad = true
	res, err := scraper.NewCollector(rules.Preset{}).Collect(ctx, page, opts)
	require.NoError(t, err)
	assert.Equal(t, "browser-uid", res.Creator.UserID)
	assert.Equal(t, "浏览器达人", res.Creator.Username)
	assert.Len(t, res.Posts, 15)
}

func TestPage_ScopedReleaseCancelsTimeout(t *testing.T) {
	p := &Page{page: &rod.Page{}, timeout: time.Minute}
	parent := context.Background()

	sp, release := p.scoped(parent)
	_, ok := sp.GetContext().Deadline()
	require.True(t, ok)
	require.NoError(t, sp.GetContext().Err())

	release()
	assert.ErrorIs(t, sp.GetContext().Err(), context.Canceled)
	assert.NoError(t, parent.Err())
}
