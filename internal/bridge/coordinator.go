package bridge

import (
	"context"
	"fmt"
	"time"

	"douyin-collector/internal/logx"
	"douyin-collector/internal/model"
	"douyin-collector/internal/scraper"
)

// Store 为协调器使用的存储能力（store.SQLite 满足此接口）。
type Store interface {
	UpsertCreator(ctx context.Context, c model.Creator) (int64, error)
	InsertPosts(ctx context.Context, creatorID int64, posts []model.Post) error
	GetAllCreators(ctx context.Context) ([]model.Creator, error)
	SearchCreators(ctx context.Context, keyword string) ([]model.Creator, error)
	GetStatistics(ctx context.Context) (model.Stats, error)
	ExportAll(ctx context.Context) ([]model.ExportEntry, error)
	Clear(ctx context.Context) error
}

// PageChannel 将请求投递到页面侧并等待应答；返回 error 表示投递失败。
type PageChannel interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Coordinator 持有存储，按动作分发消息。
type Coordinator struct {
	store    Store
	page     PageChannel
	metrics  Metrics
	defaults scraper.Options
}

// NewCoordinator 创建协调器；page 为空时 startCollect 返回通信失败。
func NewCoordinator(s Store, page PageChannel, m Metrics) *Coordinator {
	if m == nil {
		m = noopMetrics{}
	}
	return &Coordinator{store: s, page: page, metrics: m, defaults: scraper.DefaultOptions()}
}

// SetDefaults 设置 startCollect 下发给页面的默认采集参数。
func (c *Coordinator) SetDefaults(o scraper.Options) { c.defaults = o }

// Handle 处理一条消息，总是返回统一应答。
func (c *Coordinator) Handle(ctx context.Context, req Request) Response {
	var resp Response
	switch req.Action {
	case ActionStartCollect:
		resp = c.startCollect(ctx, req)
	case ActionGetCreators:
		list, err := c.store.GetAllCreators(ctx)
		if err != nil {
			resp = fail(err)
			break
		}
		resp = creatorsResponse(list)
	case ActionSearchCreators:
		list, err := c.store.SearchCreators(ctx, req.Keyword)
		if err != nil {
			resp = fail(err)
			break
		}
		resp = creatorsResponse(list)
	case ActionGetStatistics:
		st, err := c.store.GetStatistics(ctx)
		if err != nil {
			resp = fail(err)
			break
		}
		resp = Response{Success: true, Statistics: &st}
	case ActionExportData:
		data, err := c.store.ExportAll(ctx)
		if err != nil {
			resp = fail(err)
			break
		}
		if data == nil {
			data = []model.ExportEntry{}
		}
		resp = Response{Success: true, Data: data}
	case ActionClearDatabase:
		if err := c.store.Clear(ctx); err != nil {
			resp = fail(err)
			break
		}
		logx.Infof("数据库已清空")
		resp = Response{Success: true, Message: "数据库已清空"}
	default:
		resp = Response{Success: false, Error: ErrUnknownAction}
	}
	c.metrics.IncMessage(req.Action, outcome(resp))
	if !resp.Success {
		logx.Debugf("消息处理失败: action=%s error=%s", req.Action, resp.Error)
	}
	return resp
}

// startCollect 请求页面提取数据，再将达人与作品写入存储。
func (c *Coordinator) startCollect(ctx context.Context, req Request) Response {
	start := time.Now()
	resp, kind := c.collectAndSave(ctx, req)
	c.metrics.ObserveCollection(kind, time.Since(start))
	return resp
}

func (c *Coordinator) collectAndSave(ctx context.Context, req Request) (Response, string) {
	if c.page == nil {
		return fail(model.ErrBridgeUnavailable), "bridge_unavailable"
	}
	opts := req.Options(c.defaults)
	extract := Request{
		Action:        ActionExtractData,
		URL:           req.URL,
		CollectVideos: &opts.CollectVideos,
		ScrollToLoad:  &opts.ScrollToLoad,
		MaxScrolls:    opts.MaxScrolls,
		VideoLimit:    opts.VideoLimit,
	}
	pr, err := c.page.Send(ctx, extract)
	if err != nil {
		logx.Warnf("无法与页面通信: %v", err)
		return failf("%s: %v", model.ErrBridgeUnavailable.Error(), err), "bridge_unavailable"
	}
	if !pr.Success {
		msg := pr.Error
		if msg == "" {
			msg = "提取数据失败"
		}
		return Response{Success: false, Error: msg}, "extract_failed"
	}
	res, err := ExtractResult(pr)
	if err != nil || res == nil || res.Creator == nil || res.Creator.UserID == "" {
		return fail(model.ErrNoCreatorData), "no_creator"
	}

	creatorID, err := c.store.UpsertCreator(ctx, *res.Creator)
	if err != nil {
		return failf("保存数据失败: %v", err), "storage_failed"
	}
	posts := make([]model.Post, len(res.Posts))
	for i, p := range res.Posts {
		p.CreatorID = creatorID
		posts[i] = p
	}
	if len(posts) > 0 {
		if err := c.store.InsertPosts(ctx, creatorID, posts); err != nil {
			return failf("保存数据失败: %v", err), "storage_failed"
		}
	}
	logx.Infof("成功保存达人 %s（id=%d）和 %d 个作品", res.Creator.UserID, creatorID, len(posts))
	return Response{
		Success:    true,
		CreatorID:  creatorID,
		VideoCount: intPtr(len(posts)),
		Message:    fmt.Sprintf("成功保存达人信息和 %d 个作品", len(posts)),
	}, "success"
}

func outcome(r Response) string {
	if r.Success {
		return "success"
	}
	return "error"
}

// IsBusy 判断应答是否因采集进行中而失败。
func IsBusy(r Response) bool {
	return !r.Success && r.Error == model.ErrBusy.Error()
}
