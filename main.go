// 命令行入口：
// - 解析 settings.yaml / rules.yaml 并初始化日志
// - collect 批量采集（支持极简模式导出 data.json）
// - inspect 调试单个主页（不落库）
// - list/search/stats/export/clear 查询与维护数据库
// - serve 提供 HTTP 消息接口
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"douyin-collector/internal/aggregate"
	"douyin-collector/internal/bridge"
	"douyin-collector/internal/config"
	"douyin-collector/internal/export"
	"douyin-collector/internal/logx"
	"douyin-collector/internal/model"
	"douyin-collector/internal/numtext"
	"douyin-collector/internal/rules"
)

var Version = "dev"

var (
	configPath string
	rulesPath  string

	cfg      *config.Config
	preset   rules.Preset
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "douyin-collector",
	Short:         "抖音达人主页与作品采集工具",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd, configPath)
		if err != nil {
			return err
		}
		cfg = c
		closeLog = logx.Init(logx.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Locale: cfg.LogLocale,
			Color:  cfg.LogColor,
			File: logx.FileOptions{
				Path:       cfg.LogFile.Path,
				MaxSize:    cfg.LogFile.MaxSize,
				MaxBackups: cfg.LogFile.MaxBackups,
				MaxAge:     cfg.LogFile.MaxAge,
				Compress:   cfg.LogFile.Compress,
			},
		})
		preset = loadPreset(rulesPath, cfg.Preset)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// loadConfig 未显式指定且默认文件不存在时使用默认配置。
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	c, err := config.Load(path)
	if err == nil {
		return c, nil
	}
	if !cmd.Flags().Changed("config") && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

// loadPreset rules.yaml 可选，加载失败时使用内置选择器。
func loadPreset(path, name string) rules.Preset {
	if path == "" {
		return rules.Default()
	}
	rl, err := rules.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logx.Warnf("加载规则失败，使用内置选择器：%v", err)
		}
		return rules.Default()
	}
	return rl.Resolve(name)
}

var collectCmd = &cobra.Command{
	Use:   "collect [url...]",
	Short: "批量采集主页（默认使用配置中的 PROFILES）",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg, preset)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.ResetOnStart {
			if cfg.SimpleMode {
				if err := os.Remove(cfg.Output); err == nil {
					logx.Infof("已删除导出文件：%s", cfg.Output)
				}
			} else if err := a.store.Clear(ctx); err != nil {
				logx.Warnf("启动清理数据库失败：%v", err)
			} else {
				logx.Infof("已清理数据库表（creators/videos）")
			}
		}

		sum, err := aggregate.New(cfg, a.coord).Run(ctx, args...)
		if err != nil {
			return err
		}
		if cfg.SimpleMode {
			if err := export.ToJSON(ctx, a.buffer, cfg.Output); err != nil {
				return fmt.Errorf("export json: %w", err)
			}
			logx.Infof("已导出 %s", cfg.Output)
		}
		if sum.Succeeded == 0 && sum.Total > 0 {
			return errors.New("no profile collected")
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "提取单个主页并打印结果（不写入数据库）",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, preset)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := cfg.CollectOptions()
		resp, err := a.agent.Send(cmd.Context(), bridge.Request{
			Action:        bridge.ActionExtractData,
			URL:           args[0],
			CollectVideos: &opts.CollectVideos,
			ScrollToLoad:  &opts.ScrollToLoad,
			MaxScrolls:    opts.MaxScrolls,
			VideoLimit:    opts.VideoLimit,
		})
		if err != nil {
			return err
		}
		if !resp.Success {
			return errors.New(resp.Error)
		}
		res, err := bridge.ExtractResult(resp)
		if err != nil {
			return err
		}
		c := res.Creator
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "达人：%s（%s）\n", c.Username, c.UserID)
		fmt.Fprintf(out, "粉丝 %s  关注 %s  获赞 %s  作品 %s\n",
			numtext.Format(c.FollowerCount), numtext.Format(c.FollowingCount),
			numtext.Format(c.LikeCount), numtext.Format(c.PostCount))
		if c.Bio != "" {
			fmt.Fprintf(out, "简介：%s\n", c.Bio)
		}
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "作品ID\t播放\t点赞\t评论\t分享\t标题")
		for _, p := range res.Posts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.PostID,
				numtext.Format(p.PlayCount), numtext.Format(p.LikeCount),
				numtext.Format(p.CommentCount), numtext.Format(p.ShareCount), oneLine(p.Title))
		}
		return w.Flush()
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出已采集的达人",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCreators(cmd, bridge.Request{Action: bridge.ActionGetCreators})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "按昵称或简介搜索达人",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCreators(cmd, bridge.Request{Action: bridge.ActionSearchCreators, Keyword: args[0]})
	},
}

func printCreators(cmd *cobra.Command, req bridge.Request) error {
	a, err := newStoreApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	resp := a.coord.Handle(cmd.Context(), req)
	if !resp.Success {
		return errors.New(resp.Error)
	}
	var list []model.Creator
	if resp.Creators != nil {
		list = *resp.Creators
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "用户ID\t昵称\t粉丝\t获赞\t作品\t采集时间")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.UserID, oneLine(c.Username),
			numtext.Format(c.FollowerCount), numtext.Format(c.LikeCount),
			numtext.Format(c.PostCount), c.CollectedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "共 %d 位达人\n", len(list))
	return nil
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示统计数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newStoreApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		resp := a.coord.Handle(cmd.Context(), bridge.Request{Action: bridge.ActionGetStatistics})
		if !resp.Success {
			return errors.New(resp.Error)
		}
		st := resp.Statistics
		fmt.Fprintf(cmd.OutOrStdout(), "达人 %s  作品 %s  总粉丝 %s\n",
			numtext.Format(st.CreatorCount), numtext.Format(st.PostCount), numtext.Format(st.TotalFollowers))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "导出全部数据为 JSON（.zst 结尾时压缩）",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Output
		if len(args) == 1 {
			path = args[0]
		}
		a, err := newStoreApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := export.ToJSON(cmd.Context(), a.store, path); err != nil {
			return err
		}
		logx.Infof("已导出 %s", path)
		return nil
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清空数据库",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return errors.New("refusing to clear database without --yes")
		}
		a, err := newStoreApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		resp := a.coord.Handle(cmd.Context(), bridge.Request{Action: bridge.ActionClearDatabase})
		if !resp.Success {
			return errors.New(resp.Error)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 消息服务（POST /api/message）",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a, err := newApp(cfg, preset)
		if err != nil {
			return err
		}
		defer a.Close()
		srv := bridge.NewServer(a.coord, a.agent, bridge.NewReadCache(*cfg.Server.CacheMB, 0), a.metrics)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "douyin-collector", Version)
	},
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 40 {
		return string(r[:40]) + "…"
	}
	return s
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "settings.yaml", "path to settings.yaml")
	rootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "rules.yaml", "path to rules.yaml (optional)")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "confirm clearing all data")
	rootCmd.AddCommand(collectCmd, inspectCmd, listCmd, searchCmd, statsCmd, exportCmd, clearCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logx.Errorf("运行失败：%v", err)
		os.Exit(1)
	}
}
