package scraper

import (
	"context"
	"fmt"
	"time"

	"douyin-collector/internal/logx"
)

// DefaultSettle 为每轮滚动后等待内容加载的时间。
const DefaultSettle = 2 * time.Second

// ScrollToLoadMore 反复滚动到底部并等待 settle，页面高度不再增长或达到 maxRounds 轮时停止。
// 返回高度增长的轮数。
func ScrollToLoadMore(ctx context.Context, sc Scroller, maxRounds int, settle time.Duration) (int, error) {
	last, err := sc.ScrollHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("read scroll height: %w", err)
	}
	rounds := 0
	for rounds < maxRounds {
		if err := sc.ScrollToBottom(ctx); err != nil {
			return rounds, fmt.Errorf("scroll to bottom: %w", err)
		}
		select {
		case <-ctx.Done():
			return rounds, ctx.Err()
		case <-time.After(settle):
		}
		h, err := sc.ScrollHeight(ctx)
		if err != nil {
			return rounds, fmt.Errorf("read scroll height: %w", err)
		}
		if h == last {
			logx.Debugf("页面高度未变化（%d），停止滚动", h)
			break
		}
		last = h
		rounds++
	}
	return rounds, nil
}
