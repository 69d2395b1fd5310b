package bridge

import (
	"context"
	"fmt"
	"io"

	"douyin-collector/internal/feeds"
	"douyin-collector/internal/logx"
	"douyin-collector/internal/model"
	"douyin-collector/internal/scraper"
)

// PostSource 为补充作品来源（feeds.Source 满足此接口）。
type PostSource interface {
	Enabled() bool
	Posts(ctx context.Context, userID string, max int) ([]model.Post, error)
}

// Agent 为页面侧处理器：打开页面、运行采集器并应答 extractData。
// 它同时实现 PageChannel，可直接作为协调器的进程内通道。
type Agent struct {
	source    scraper.PageSource
	collector *scraper.Collector
	extra     PostSource
}

// NewAgent 创建页面侧处理器。
func NewAgent(src scraper.PageSource, col *scraper.Collector) *Agent {
	return &Agent{source: src, collector: col}
}

// WithPostSource 配置补充作品来源，只填补剩余名额。
func (a *Agent) WithPostSource(src PostSource) *Agent {
	a.extra = src
	return a
}

// Send 处理 extractData；页面无法打开时返回 error（视为通信失败）。
func (a *Agent) Send(ctx context.Context, req Request) (Response, error) {
	if req.Action != ActionExtractData {
		return Response{Success: false, Error: ErrUnknownAction}, nil
	}
	if req.URL == "" {
		return failf("缺少页面地址"), nil
	}
	// 采集进行中时不再打开新标签页；Collect 内的守卫仍负责最终判定
	if a.collector.Busy() {
		return fail(model.ErrBusy), nil
	}
	page, err := a.source.Open(ctx, req.URL)
	if err != nil {
		return Response{}, fmt.Errorf("open page %s: %w", req.URL, err)
	}
	if c, ok := page.(io.Closer); ok {
		defer c.Close()
	}
	opts := req.Options(scraper.DefaultOptions())
	res, err := a.collector.Collect(ctx, page, opts)
	if err != nil {
		return fail(err), nil
	}
	if opts.CollectVideos && len(res.Posts) < opts.VideoLimit && a.extra != nil && a.extra.Enabled() {
		extra, err := a.extra.Posts(ctx, res.Creator.UserID, opts.VideoLimit)
		if err != nil {
			logx.Warnf("订阅补充作品失败：%s 错误=%v", res.Creator.UserID, err)
		} else {
			before := len(res.Posts)
			res.Posts = feeds.Supplement(res.Posts, extra, opts.VideoLimit)
			logx.Debugf("订阅补充作品 %d 个", len(res.Posts)-before)
		}
	}
	return Response{Success: true, Data: res}, nil
}
