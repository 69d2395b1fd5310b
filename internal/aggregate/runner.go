// 包 aggregate 负责批量采集编排：
// - 按配置的主页地址逐个发送 startCollect（限速、终端进度条）
// - 失败记录日志后跳过，不中断整批
// - 极简模式下以内存缓冲代替数据库
package aggregate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"douyin-collector/internal/bridge"
	"douyin-collector/internal/config"
	"douyin-collector/internal/logx"
)

// Handler 处理一条消息（bridge.Coordinator 满足此接口）。
type Handler interface {
	Handle(ctx context.Context, req bridge.Request) bridge.Response
}

// Summary 为一轮批量采集的统计。
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Videos    int
}

// Runner 批量采集执行器。
type Runner struct {
	cfg     *config.Config
	handler Handler
	limiter *rate.Limiter
	// 进度条输出，nil 时不显示
	progress io.Writer
}

// New 创建 Runner；限速取 RATE_LIMIT 配置。
func New(cfg *config.Config, h Handler) *Runner {
	limit := rate.Inf
	if cfg.RateLimit.Interval > 0 {
		limit = rate.Every(cfg.RateLimit.Interval)
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Runner{
		cfg:      cfg,
		handler:  h,
		limiter:  rate.NewLimiter(limit, burst),
		progress: os.Stderr,
	}
}

// WithProgress 设置进度条输出位置；传 nil 关闭进度条。
func (r *Runner) WithProgress(w io.Writer) *Runner {
	r.progress = w
	return r
}

// Run 依次采集 urls（为空时使用配置中的 PROFILES）。
// 仅在 ctx 取消时返回 error；单个地址失败只计数。
func (r *Runner) Run(ctx context.Context, urls ...string) (Summary, error) {
	if len(urls) == 0 {
		urls = r.cfg.Profiles
	}
	sum := Summary{Total: len(urls)}
	if len(urls) == 0 {
		logx.Warnf("没有需要采集的主页地址（PROFILES 为空）")
		return sum, nil
	}
	logx.Infof("开始批量采集：%d 个主页，极简模式=%v", len(urls), r.cfg.SimpleMode)

	bar := r.newBar(len(urls))
	defer bar.Close()
	start := time.Now()
	for i, u := range urls {
		if err := r.limiter.Wait(ctx); err != nil {
			return sum, fmt.Errorf("rate limit wait: %w", err)
		}
		resp := r.handler.Handle(ctx, bridge.Request{Action: bridge.ActionStartCollect, URL: u})
		_ = bar.Add(1)
		if !resp.Success {
			sum.Failed++
			logx.Warnf("[%d/%d] 采集失败：%s 错误=%s", i+1, len(urls), u, resp.Error)
			continue
		}
		sum.Succeeded++
		if resp.VideoCount != nil {
			sum.Videos += *resp.VideoCount
		}
		logx.Infof("[%d/%d] %s：%s", i+1, len(urls), u, resp.Message)
	}
	logx.Infof("批量采集完成：成功=%d 失败=%d 作品=%d 用时=%s",
		sum.Succeeded, sum.Failed, sum.Videos, time.Since(start).Round(time.Millisecond))
	return sum, nil
}

func (r *Runner) newBar(n int) *progressbar.ProgressBar {
	if r.progress == nil {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(r.progress),
		progressbar.OptionSetDescription("采集主页"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
