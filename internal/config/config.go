// 包 config 负责加载与校验应用配置（settings.yaml），
// 对外提供结构体 Config 及默认值/合法性校验。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gookit/validate"
	"gopkg.in/yaml.v3"

	"douyin-collector/internal/scraper"
)

type Config struct {
	// Profiles 为批量采集的达人主页地址
	Profiles        []string    `yaml:"PROFILES"`
	Collect         Collect     `yaml:"COLLECT"`
	Browser         Browser     `yaml:"BROWSER"`
	FeedURLTemplate string      `yaml:"FEED_URL_TEMPLATE"`
	Preset          string      `yaml:"PRESET"`
	SimpleMode      bool        `yaml:"SIMPLE_MODE"`
	ResetOnStart    bool        `yaml:"RESET_ON_START"`
	Output          string      `yaml:"OUTPUT"`
	Database        Database    `yaml:"DATABASE"`
	RateLimit       RateLimit   `yaml:"RATE_LIMIT"`
	Fetch           Fetch       `yaml:"FETCH"`
	Proxy           Proxy       `yaml:"PROXY"`
	Server          Server      `yaml:"SERVER"`
	LogLevel        string      `yaml:"LOG_LEVEL" validate:"in:debug,info,warn,warning,error,none,silent,off"`
	LogFormat       string      `yaml:"LOG_FORMAT" validate:"in:text,json,pretty"`
	LogLocale       string      `yaml:"LOG_LOCALE"` // zh-CN|en
	LogColor        string      `yaml:"LOG_COLOR" validate:"in:auto,always,never"`
	LogFile         LogFile     `yaml:"LOG_FILE"`
}

// Collect 对应单次采集参数；collect_videos 未填写时默认开启。
type Collect struct {
	CollectVideos *bool `yaml:"collect_videos"`
	ScrollToLoad  bool  `yaml:"scroll_to_load"`
	MaxScrolls    int   `yaml:"max_scrolls" validate:"min:0|max:100"`
	VideoLimit    int   `yaml:"video_limit" validate:"min:0|max:1000"`
}

type Browser struct {
	// Enabled 为 false 时使用 HTTP 静态抓取（无法滚动加载）
	Enabled     bool          `yaml:"enabled"`
	Headless    *bool         `yaml:"headless"`
	Bin         string        `yaml:"bin"`
	Proxy       string        `yaml:"proxy"`
	PageTimeout time.Duration `yaml:"page_timeout"`
}

type Database struct {
	Type string `yaml:"type" validate:"in:sqlite"` // sqlite (default)
	DSN  string `yaml:"dsn"`                       // ./collector.db
}

type RateLimit struct {
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst" validate:"min:0"`
}

type Fetch struct {
	Retry   int           `yaml:"retry" validate:"min:0|max:10"`
	Timeout time.Duration `yaml:"timeout"`
	Cookie  string        `yaml:"cookie"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

type Server struct {
	Addr    string `yaml:"addr"`
	// CacheMB 为只读缓存大小；未填写时为 8，显式填 0 关闭缓存
	CacheMB *int   `yaml:"cache_mb"`
	Metrics bool   `yaml:"metrics"`
}

// LogFile 为可选的滚动日志文件；Path 为空时只输出到终端。
type LogFile struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size" validate:"min:0"` // MB
	MaxBackups int    `yaml:"max_backups" validate:"min:0"`
	MaxAge     int    `yaml:"max_age" validate:"min:0"` // 天
	Compress   bool   `yaml:"compress"`
}

func Load(path string) (*Config, error) {
	// Load 从文件读取 YAML 并反序列化为 Config，同时进行基础校验与默认值填充。
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Default 返回全部取默认值的配置（无配置文件时使用）。
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

func (c *Config) Validate() error {
	// Validate 负责合法性检查与默认值设置，避免在业务层分散判空逻辑。
	v := validate.Struct(c)
	if !v.Validate() {
		return errors.New(v.Errors.One())
	}
	if c.RateLimit.Interval < 0 || c.Fetch.Timeout < 0 || c.Browser.PageTimeout < 0 {
		return errors.New("durations must be >= 0")
	}
	if c.Collect.MaxScrolls < 0 || c.Collect.VideoLimit < 0 {
		return errors.New("COLLECT.max_scrolls and COLLECT.video_limit must be >= 0")
	}
	if c.Server.CacheMB != nil && (*c.Server.CacheMB < 0 || *c.Server.CacheMB > 1024) {
		return errors.New("SERVER.cache_mb must be between 0 and 1024")
	}
	if c.Fetch.Retry < 0 || c.RateLimit.Burst < 0 {
		return errors.New("FETCH.retry and RATE_LIMIT.burst must be >= 0")
	}
	if c.Database.Type != "" && c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	for i, p := range c.Profiles {
		p = strings.TrimSpace(p)
		if !scraper.IsProfileURL(p) {
			return fmt.Errorf("PROFILES[%d] is not a profile url: %q", i, p)
		}
		c.Profiles[i] = p
	}
	if c.Collect.CollectVideos == nil {
		on := true
		c.Collect.CollectVideos = &on
	}
	if c.Collect.MaxScrolls == 0 {
		c.Collect.MaxScrolls = scraper.DefaultMaxScrolls
	}
	if c.Collect.VideoLimit == 0 {
		c.Collect.VideoLimit = scraper.DefaultVideoLimit
	}
	if c.Browser.Headless == nil {
		on := true
		c.Browser.Headless = &on
	}
	if c.Browser.PageTimeout == 0 {
		c.Browser.PageTimeout = 60 * time.Second
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./collector.db"
	}
	if c.Output == "" {
		c.Output = "./data.json"
	}
	if c.RateLimit.Interval == 0 {
		c.RateLimit.Interval = 3 * time.Second
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 25 * time.Second
	}
	if c.Fetch.Retry == 0 {
		c.Fetch.Retry = 2
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8787"
	}
	if c.Server.CacheMB == nil {
		size := 8
		c.Server.CacheMB = &size
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "zh-CN"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	if c.LogFile.Path != "" {
		if c.LogFile.MaxSize == 0 {
			c.LogFile.MaxSize = 20
		}
		if c.LogFile.MaxBackups == 0 {
			c.LogFile.MaxBackups = 3
		}
		if c.LogFile.MaxAge == 0 {
			c.LogFile.MaxAge = 7
		}
	}
	// ResetOnStart 默认为 false，显式开启时才执行清理
	return nil
}

// CollectOptions 转换为采集参数。
func (c *Config) CollectOptions() scraper.Options {
	collect := true
	if c.Collect.CollectVideos != nil {
		collect = *c.Collect.CollectVideos
	}
	return scraper.Options{
		CollectVideos: collect,
		ScrollToLoad:  c.Collect.ScrollToLoad,
		MaxScrolls:    c.Collect.MaxScrolls,
		VideoLimit:    c.Collect.VideoLimit,
	}
}
