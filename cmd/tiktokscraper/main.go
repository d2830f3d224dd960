package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/core"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/crawlers"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/storage"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// 爬取参数
	hashtag       string
	maxPosts      int
	batchSize     int
	maxComments   int
	headless      bool
	skipLogin     bool
	cacheProfiles bool
	userDataDir   string
	outputDir     string

	// crawl 子命令
	urlFile string
)

// 由 PersistentPreRunE 初始化
var (
	appConfig *core.Config
	logger    zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tiktokscraper",
	Short: "TikTok话题评论采集工具",
	Long: `tiktokscraper - TikTok话题评论及评论者联系方式采集工具

流程:
  • 滚动话题页收集视频链接, 保存到 urls_lists/{hashtag}.json
  • 使用 .env 中的账号登录 (需要时人工完成验证码)
  • 逐个视频提取评论, 访问评论者主页提取简介、链接和联系方式
  • 每个视频完成后立即追加写入CSV

示例:
  # 交互式运行
  tiktokscraper

  # 非交互运行
  tiktokscraper --hashtag skincare --max-posts 100

  # 只收集链接 / 只处理已有链接
  tiktokscraper collect --hashtag skincare --max-posts 500
  tiktokscraper crawl --hashtag skincare --url-file urls_lists/skincare.json

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := promptMissing(cmd, os.Stdin, os.Stdout); err != nil {
			return err
		}
		if err := ValidateFlags(hashtag, maxPosts, batchSize, maxComments); err != nil {
			return err
		}
		mergeFlags(cmd)

		ctx, stop := signalContext()
		defer stop()

		pipeline := newPipeline()
		defer closePipeline(pipeline)

		report, err := pipeline.Run(ctx)
		if report != nil {
			printReport(report)
		}
		if err != nil {
			return runError(err)
		}
		utils.Info("✨ 任务完成!")
		return nil
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "只收集话题下的视频链接",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(hashtag, maxPosts, batchSize, maxComments); err != nil {
			return err
		}
		mergeFlags(cmd)
		if err := appConfig.Crawl.Validate(); err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		pipeline := newPipeline()
		defer closePipeline(pipeline)

		outcome, err := pipeline.Collect(ctx, appConfig.Crawl.Hashtag)
		if outcome != nil {
			utils.Infof("📄 链接列表: %s (本次新增 %d, 共 %d)", outcome.ListPath, len(outcome.URLs), outcome.Total)
		}
		return runError(err)
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "处理已有的视频链接列表",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlags(hashtag, maxPosts, batchSize, maxComments); err != nil {
			return err
		}
		mergeFlags(cmd)
		if err := appConfig.Crawl.Validate(); err != nil {
			return err
		}

		path := urlFile
		if path == "" {
			path = storage.URLListPath(appConfig.Output.URLsDir, appConfig.Crawl.Hashtag)
		}
		if err := ValidateURLFile(path); err != nil {
			return err
		}
		urls, err := loadURLList(path)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			utils.Warn("链接列表为空")
			return nil
		}

		task, err := models.NewCrawlTask(appConfig.Crawl)
		if err != nil {
			return err
		}
		task.Start()
		task.Stats.CollectedURLs = len(urls)

		ctx, stop := signalContext()
		defer stop()

		pipeline := newPipeline()
		defer closePipeline(pipeline)

		if err := pipeline.Login(ctx); err != nil {
			if ctx.Err() != nil {
				return runError(ctx.Err())
			}
			logger.Error().Err(err).Msg("登录失败,以未登录状态继续")
		}

		report, err := pipeline.Crawl(ctx, task, urls, path)
		if report != nil {
			printReport(report)
		}
		return runError(err)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tiktokscraper %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// setup 加载配置并初始化日志
func setup(cmd *cobra.Command, args []string) error {
	config, err := core.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	} else if verbose {
		config.Logging.Level = "debug"
	}

	l, err := utils.InitLogger(config.LogConfig())
	if err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	appConfig = config
	logger = l
	if verbose {
		utils.Info("详细模式已启用")
	}
	return nil
}

// mergeFlags 命令行参数覆盖配置文件
func mergeFlags(cmd *cobra.Command) {
	flags := core.CLIFlags{
		Hashtag:       hashtag,
		MaxPosts:      maxPosts,
		BatchSize:     batchSize,
		MaxComments:   maxComments,
		SkipLogin:     skipLogin,
		CacheProfiles: cacheProfiles,
		UserDataDir:   userDataDir,
		OutputDir:     outputDir,
	}
	if cmd.Flags().Changed("headless") {
		flags.Headless = &headless
	}
	appConfig.MergeCLIFlags(flags)
}

func newPipeline() *core.Pipeline {
	factory := browser.RodFactory(appConfig.BrowserOptions(), logger)
	p := core.NewPipeline(appConfig, factory, crawlers.NewJitter(nil, nil), logger)
	p.ShowProgress = true
	return p
}

func closePipeline(p *core.Pipeline) {
	if err := p.Close(); err != nil {
		logger.Debug().Err(err).Msg("关闭浏览器失败")
	}
}

// signalContext Ctrl+C 取消运行, 已写入的CSV保留
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			utils.Warn("收到中断信号, 正在停止...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func runError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		utils.Warn("任务已取消, 已处理的结果已保存")
		return nil
	}
	return err
}

// loadURLList 读取链接列表, .json 为JSON数组, 其他为每行一个URL
func loadURLList(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return storage.LoadURLs(path)
	}
	return utils.ReadURLsFromFile(path)
}

func printReport(r *models.CrawlReport) {
	fmt.Println("\n==================================================")
	fmt.Println("📊 爬取统计")
	fmt.Println("==================================================")
	fmt.Printf("🏷️  话题: #%s\n", r.Hashtag)
	fmt.Printf("🔗 收集视频: %d\n", r.Stats.CollectedURLs)
	fmt.Printf("✅ 处理成功: %d\n", r.Stats.ProcessedVideos)
	fmt.Printf("❌ 处理失败: %d\n", r.Stats.FailedVideos)
	fmt.Printf("💬 评论数: %d\n", r.Stats.Comments)
	fmt.Printf("📄 写入行数: %d\n", r.Stats.Rows)
	fmt.Printf("📁 输出文件: %s\n", r.OutputFile)
	fmt.Printf("⏱️  总耗时: %.2f秒\n", r.Duration)
	fmt.Println("==================================================")
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 爬取参数
	rootCmd.PersistentFlags().StringVarP(&hashtag, "hashtag", "t", "", "话题标签 (不含#)")
	rootCmd.PersistentFlags().IntVarP(&maxPosts, "max-posts", "n", 0, "最多收集的视频数")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "每批处理的视频数")
	rootCmd.PersistentFlags().IntVar(&maxComments, "max-comments", 0, "每个视频最多评论数")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "无头浏览器模式")
	rootCmd.PersistentFlags().BoolVar(&skipLogin, "skip-login", false, "跳过登录")
	rootCmd.PersistentFlags().BoolVar(&cacheProfiles, "cache-profiles", false, "同一次运行内缓存用户主页")
	rootCmd.PersistentFlags().StringVar(&userDataDir, "user-data-dir", "", "Chrome用户数据目录, 用于复用登录态")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "输出目录")

	crawlCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "视频链接列表 (JSON数组或每行一个URL)")

	rootCmd.AddCommand(collectCmd, crawlCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
