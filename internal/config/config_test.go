package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, body string) string {
	t.Helper()
	f := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(f, []byte(body), 0644))
	return f
}

func TestConfig_Defaults(t *testing.T) {
	c, err := Load(write(t, "SIMPLE_MODE: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Database.Type)
	assert.Equal(t, "./collector.db", c.Database.DSN)
	assert.Equal(t, 3*time.Second, c.RateLimit.Interval)
	assert.Equal(t, 1, c.RateLimit.Burst)
	assert.Equal(t, 2, c.Fetch.Retry)
	assert.Equal(t, 25*time.Second, c.Fetch.Timeout)
	assert.Equal(t, "127.0.0.1:8787", c.Server.Addr)
	require.NotNil(t, c.Server.CacheMB)
	assert.Equal(t, 8, *c.Server.CacheMB)
	assert.Equal(t, "pretty", c.LogFormat)
	assert.Equal(t, "zh-CN", c.LogLocale)
	assert.Equal(t, "auto", c.LogColor)
	require.NotNil(t, c.Browser.Headless)
	assert.True(t, *c.Browser.Headless)

	opts := c.CollectOptions()
	assert.True(t, opts.CollectVideos)
	assert.False(t, opts.ScrollToLoad)
	assert.Equal(t, 5, opts.MaxScrolls)
	assert.Equal(t, 50, opts.VideoLimit)
}

func TestConfig_Overrides(t *testing.T) {
	body := `PROFILES:
  - " https://www.douyin.com/user/abc "
COLLECT:
  collect_videos: false
  scroll_to_load: true
  max_scrolls: 3
  video_limit: 20
RATE_LIMIT:
  interval: 500ms
  burst: 2
LOG_FILE:
  path: ./logs/collector.log
`
	c, err := Load(write(t, body))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.douyin.com/user/abc"}, c.Profiles)
	opts := c.CollectOptions()
	assert.False(t, opts.CollectVideos)
	assert.True(t, opts.ScrollToLoad)
	assert.Equal(t, 3, opts.MaxScrolls)
	assert.Equal(t, 20, opts.VideoLimit)
	assert.Equal(t, 500*time.Millisecond, c.RateLimit.Interval)
	assert.Equal(t, 20, c.LogFile.MaxSize)
}

func TestConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"negative limit": "COLLECT:\n  video_limit: -1\n",
		"bad db":         "DATABASE:\n  type: mysql\n",
		"bad log format": "LOG_FORMAT: xml\n",
		"not a profile":  "PROFILES: [\"https://www.douyin.com/video/1\"]\n",
		"bad yaml":       "PROFILES: [\n",
		"negative cache": "SERVER:\n  cache_mb: -1\n",
		"huge cache":     "SERVER:\n  cache_mb: 4096\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, body))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// 显式填 0 关闭读缓存，而不是回落到默认大小。
func TestConfig_CacheDisabled(t *testing.T) {
	c, err := Load(write(t, "SERVER:\n  cache_mb: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, c.Server.CacheMB)
	assert.Equal(t, 0, *c.Server.CacheMB)

	c, err = Load(write(t, "SERVER:\n  cache_mb: 16\n"))
	require.NoError(t, err)
	assert.Equal(t, 16, *c.Server.CacheMB)
}

func TestConfig_Default(t *testing.T) {
	c := Default()
	assert.Equal(t, "./collector.db", c.Database.DSN)
	assert.True(t, c.CollectOptions().CollectVideos)
}
