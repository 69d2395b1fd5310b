package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"douyin-collector/internal/logx"
	"douyin-collector/internal/model"
	"douyin-collector/internal/rules"
)

// Options 为单次采集的参数。
type Options struct {
	CollectVideos bool `json:"collectVideos" yaml:"collect_videos"`
	ScrollToLoad  bool `json:"scrollToLoad" yaml:"scroll_to_load"`
	MaxScrolls    int  `json:"maxScrolls" yaml:"max_scrolls"`
	VideoLimit    int  `json:"videoLimit" yaml:"video_limit"`
}

const (
	DefaultMaxScrolls = 5
	DefaultVideoLimit = 50
)

// DefaultOptions 返回默认参数：采集作品、不滚动、最多 5 轮、最多 50 条。
func DefaultOptions() Options {
	return Options{CollectVideos: true, MaxScrolls: DefaultMaxScrolls, VideoLimit: DefaultVideoLimit}
}

func (o Options) normalized() Options {
	if o.MaxScrolls <= 0 {
		o.MaxScrolls = DefaultMaxScrolls
	}
	if o.VideoLimit <= 0 {
		o.VideoLimit = DefaultVideoLimit
	}
	return o
}

// Result 为一次采集的产出。
type Result struct {
	Creator *model.Creator `json:"creator"`
	Posts   []model.Post   `json:"videos"`
}

// Collector 串行化采集流程；同一时刻只允许一次采集。
type Collector struct {
	preset rules.Preset
	settle time.Duration
	busy   atomic.Bool
}

// NewCollector 使用给定预设创建采集器；预设字段缺失时使用内置默认值。
func NewCollector(preset rules.Preset) *Collector {
	return &Collector{preset: rules.Merge(rules.Default(), preset), settle: DefaultSettle}
}

// Busy 报告是否有采集正在进行。
func (c *Collector) Busy() bool { return c.busy.Load() }

// IsProfileURL 判断是否为用户主页地址。
func IsProfileURL(u string) bool {
	return strings.Contains(u, "/user/") || strings.Contains(u, "/profile/")
}

// Collect 依次检查前置条件（是否空闲、是否主页），然后提取达人信息与作品列表。
// 返回的错误可用 errors.Is 匹配 model.ErrBusy / ErrWrongPage / ErrNoCreatorData。
func (c *Collector) Collect(ctx context.Context, page Page, opts Options) (*Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		logx.Warnf("采集任务正在进行中，忽略本次请求")
		return nil, model.ErrBusy
	}
	defer c.busy.Store(false)

	if !IsProfileURL(page.URL()) {
		logx.Warnf("当前页面不是用户主页: %s", page.URL())
		return nil, model.ErrWrongPage
	}

	opts = opts.normalized()
	runID := uuid.NewString()
	start := time.Now()
	logx.Infof("[%s] 开始采集达人数据: %s", runID[:8], page.URL())

	snap, err := Capture(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", page.URL(), err)
	}
	creator := ExtractProfile(snap, c.preset.Profile)
	if creator == nil || creator.UserID == "" {
		logx.Warnf("[%s] 无法提取达人信息: %s", runID[:8], page.URL())
		return nil, model.ErrNoCreatorData
	}
	logx.Debugf("[%s] 达人信息提取完成: user_id=%s username=%s", runID[:8], creator.UserID, creator.Username)

	var posts []model.Post
	if opts.CollectVideos {
		if sc, ok := page.(Scroller); ok && opts.ScrollToLoad {
			rounds, err := ScrollToLoadMore(ctx, sc, opts.MaxScrolls, c.settle)
			if err != nil {
				// 滚动失败不影响已加载内容的提取
				logx.Warnf("[%s] 滚动加载失败: %v", runID[:8], err)
			}
			logx.Debugf("[%s] 滚动加载 %d 轮", runID[:8], rounds)
			if snap, err = Capture(ctx, page); err != nil {
				return nil, fmt.Errorf("collect %s: %w", page.URL(), err)
			}
		}
		posts = ExtractPosts(snap, c.preset.Posts, opts.VideoLimit)
	}
	logx.Infof("[%s] 采集完成: user_id=%s 作品 %d 个，耗时 %s", runID[:8], creator.UserID, len(posts), time.Since(start).Round(time.Millisecond))
	return &Result{Creator: creator, Posts: posts}, nil
}
