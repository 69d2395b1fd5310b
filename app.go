package main

import (
	"errors"
	"fmt"
	"os"

	"douyin-collector/internal/aggregate"
	"douyin-collector/internal/bridge"
	"douyin-collector/internal/browser"
	"douyin-collector/internal/config"
	"douyin-collector/internal/feeds"
	"douyin-collector/internal/fetch"
	"douyin-collector/internal/logx"
	"douyin-collector/internal/rules"
	"douyin-collector/internal/scraper"
	"douyin-collector/internal/store"
)

// app 按配置装配各组件：存储（或极简模式缓冲）、页面来源、页面侧 Agent 与协调器。
type app struct {
	store   *store.SQLite
	buffer  *aggregate.SimpleBuffer
	agent   *bridge.Agent
	coord   *bridge.Coordinator
	metrics bridge.Metrics
	closers []func() error
}

// newStoreApp 只打开数据库，用于查询类命令。
func newStoreApp(cfg *config.Config) (*app, error) {
	a := &app{metrics: bridge.NewMetrics(false)}
	st, err := store.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	a.coord = bridge.NewCoordinator(st, nil, a.metrics)
	return a, nil
}

func newApp(cfg *config.Config, preset rules.Preset) (*app, error) {
	a := &app{metrics: bridge.NewMetrics(cfg.Server.Metrics)}

	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    cfg.Fetch.Timeout,
		Retry:      cfg.Fetch.Retry,
		Cookie:     cfg.Fetch.Cookie,
	})
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	var src scraper.PageSource = cl
	if cfg.Browser.Enabled {
		br := browser.New(browser.Options{
			Headless:    cfg.Browser.Headless == nil || *cfg.Browser.Headless,
			Bin:         cfg.Browser.Bin,
			Proxy:       cfg.Browser.Proxy,
			PageTimeout: cfg.Browser.PageTimeout,
			UserAgent:   os.Getenv("COLLECTOR_UA"),
		})
		a.closers = append(a.closers, br.Close)
		src = br
		logx.Debugf("页面来源：无头浏览器")
	} else {
		logx.Debugf("页面来源：HTTP 静态抓取（不支持滚动加载）")
	}

	a.agent = bridge.NewAgent(src, scraper.NewCollector(preset))
	if cfg.FeedURLTemplate != "" {
		a.agent.WithPostSource(&feeds.Source{Client: cl, Template: cfg.FeedURLTemplate})
	}

	var s bridge.Store
	if cfg.SimpleMode {
		a.buffer = aggregate.NewSimpleBuffer()
		s = a.buffer
		logx.Infof("极简模式：不打开数据库，结果写入 %s", cfg.Output)
	} else {
		st, err := store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open db: %w", err)
		}
		st.OnWrite(a.metrics.ObserveStoreWrite)
		a.store = st
		a.closers = append(a.closers, st.Close)
		s = st
	}
	a.coord = bridge.NewCoordinator(s, a.agent, a.metrics)
	a.coord.SetDefaults(cfg.CollectOptions())
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
