package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/crawlers"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/storage"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/utils"
	"github.com/rs/zerolog"
)

// CollectOutcome 收集阶段的结果
type CollectOutcome struct {
	URLs     []string            // 本次新收集且未处理过的URL
	ListPath string              // 链接列表文件
	Total    int                 // 合并后列表中的URL总数
	Filtered int                 // 被跨运行去重过滤掉的数量
	State    crawlers.CrawlState // 收集循环结束状态
}

// Pipeline 主流程协调器: 收集 → 写链接列表 → 登录 → 评论提取 → 报告
type Pipeline struct {
	cfg     *Config
	factory browser.Factory
	jitter  *crawlers.Jitter
	logger  zerolog.Logger

	// ShowProgress 是否在终端显示进度条
	ShowProgress bool

	cell  *browser.Cell
	store *storage.Deduplicator
}

// NewPipeline 创建主流程, 浏览器在第一次使用时启动
func NewPipeline(cfg *Config, factory browser.Factory, jitter *crawlers.Jitter, logger zerolog.Logger) *Pipeline {
	if jitter == nil {
		jitter = crawlers.NewJitter(nil, nil)
	}
	return &Pipeline{
		cfg:     cfg,
		factory: factory,
		jitter:  jitter,
		logger:  logger,
	}
}

// session 返回浏览器会话, 首次调用时启动
func (p *Pipeline) session(ctx context.Context) (*browser.Cell, error) {
	if p.cell != nil {
		return p.cell, nil
	}
	cell, err := browser.NewCell(ctx, p.factory, p.cfg.RecoveryConfig(), p.logger)
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}
	p.cell = cell
	return cell, nil
}

// processedStore 连接跨运行去重存储, 未配置或连接失败时返回nil
func (p *Pipeline) processedStore(ctx context.Context) *storage.Deduplicator {
	if p.store != nil || p.cfg.Dedup.Addr == "" {
		return p.store
	}
	store, err := storage.OpenDeduplicator(ctx, p.cfg.Dedup)
	if err != nil {
		p.logger.Warn().Err(err).Msg("跨运行去重不可用,继续运行")
		return nil
	}
	p.store = store
	return store
}

// Collect 收集话题下的视频URL并追加到链接列表文件
func (p *Pipeline) Collect(ctx context.Context, hashtag string) (*CollectOutcome, error) {
	cell, err := p.session(ctx)
	if err != nil {
		return nil, err
	}

	collector := crawlers.NewCollector(cell, p.jitter, p.cfg.Selectors, p.logger)
	opts := p.cfg.CollectOptions()
	if p.ShowProgress {
		bar := utils.NewProgressBar(opts.TargetCount, "🔍 收集视频")
		defer bar.Finish()
		collector.OnFound = func(string, int) { _ = bar.Add(1) }
	}

	res, err := collector.Collect(ctx, hashtag, opts)
	if err != nil && (res == nil || len(res.URLs) == 0) {
		return nil, err
	}
	if err != nil {
		// 取消时仍保存已收集的部分
		p.logger.Warn().Err(err).Int("collected", len(res.URLs)).Msg("收集被中断,保存已收集的URL")
	}

	outcome := &CollectOutcome{
		URLs:     res.URLs,
		ListPath: storage.URLListPath(p.cfg.Output.URLsDir, hashtag),
		State:    res.State,
	}

	if store := p.processedStore(ctx); store != nil {
		unseen, ferr := store.FilterUnseen(ctx, storage.PrefixProcessed, res.URLs)
		if ferr != nil {
			p.logger.Warn().Err(ferr).Msg("跨运行去重查询失败,保留全部URL")
		} else {
			outcome.Filtered = len(res.URLs) - len(unseen)
			outcome.URLs = unseen
		}
	}

	total, werr := storage.AppendURLs(outcome.ListPath, outcome.URLs)
	if werr != nil {
		return outcome, werr
	}
	outcome.Total = total

	p.logger.Info().
		Int("collected", len(res.URLs)).
		Int("filtered", outcome.Filtered).
		Int("total", total).
		Str("file", outcome.ListPath).
		Msg("✅ 视频URL已保存")
	return outcome, err
}

// Login 使用 .env 中的凭据登录; 跳过登录或缺少凭据时直接返回
func (p *Pipeline) Login(ctx context.Context) error {
	if p.cfg.Crawl.SkipLogin {
		p.logger.Info().Msg("跳过登录")
		return nil
	}

	creds, err := LoadCredentials(p.cfg.Auth.EnvFile)
	if errors.Is(err, ErrMissingCredentials) {
		p.logger.Warn().Msg("⚠️ 未配置登录凭据,以未登录状态继续")
		return nil
	}
	if err != nil {
		return err
	}

	redactor := utils.NewRedactor()
	p.logger.Info().Str("account", redactor.Redact("account", creds.Account)).Msg("使用账号登录")

	cell, err := p.session(ctx)
	if err != nil {
		return err
	}
	return crawlers.Login(ctx, cell, p.jitter, p.cfg.Selectors, p.cfg.LoginOptions(creds), p.logger)
}

// Crawl 提取视频评论并生成报告
// 报告在出错时也会生成, 已写入的CSV保留
func (p *Pipeline) Crawl(ctx context.Context, task *models.CrawlTask, videoURLs []string, listPath string) (*models.CrawlReport, error) {
	cell, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	if task.StartedAt == nil {
		task.Start()
	}

	writer := storage.NewCSVWriter(p.cfg.Output.BaseDir, task.Hashtag, *task.StartedAt, p.logger)
	deps := OrchestratorDeps{
		Session:  cell,
		Comments: crawlers.NewPaginator(cell, p.jitter, p.cfg.Selectors, p.cfg.PaginateOptions(), p.logger),
		Profiles: crawlers.NewProfileExtractor(cell, p.jitter, p.cfg.Selectors, p.cfg.ProfileOptions(), p.logger),
		Sink:     writer,
	}
	if store := p.processedStore(ctx); store != nil {
		deps.Store = store
	}
	if p.ShowProgress {
		bar := utils.NewProgressBar(len(videoURLs), "💬 提取评论")
		defer bar.Finish()
		deps.Progress = bar
	}

	orchestrator := NewOrchestrator(deps, p.cfg.OrchestratorOptions(), p.jitter, p.logger)
	summary, runErr := orchestrator.Run(ctx, task.Hashtag, videoURLs)
	if summary != nil {
		task.Stats.Merge(summary.Stats)
	}
	task.Finish(runErr)

	report := &models.CrawlReport{
		TaskID:      task.ID,
		Hashtag:     task.Hashtag,
		Status:      task.Status,
		StartTime:   *task.StartedAt,
		EndTime:     time.Now(),
		Duration:    task.Stats.Duration,
		Stats:       task.Stats,
		OutputFile:  writer.Path(),
		URLListFile: listPath,
		Resource:    cell.Resource(),
		Config:      task.Config,
	}
	report.BrowserRestarts = cell.Restarts()
	if summary != nil {
		report.FailedVideos = summary.Failed
	}

	if _, err := utils.NewReporter(p.cfg.Output.BaseDir, task.Hashtag).GenerateReport(report); err != nil {
		p.logger.Error().Err(err).Msg("生成报告失败")
	}
	return report, runErr
}

// Run 完整流程
func (p *Pipeline) Run(ctx context.Context) (*models.CrawlReport, error) {
	task, err := models.NewCrawlTask(p.cfg.Crawl)
	if err != nil {
		return nil, fmt.Errorf("无效的爬取配置: %w", err)
	}
	task.Start()

	p.logger.Info().Str("task", task.ID).Str("hashtag", task.Hashtag).Int("max_posts", task.Config.MaxPosts).Msg("🚀 开始爬取任务")

	outcome, err := p.Collect(ctx, task.Hashtag)
	if err != nil {
		task.Finish(err)
		return nil, err
	}
	task.Stats.CollectedURLs = len(outcome.URLs)

	if len(outcome.URLs) == 0 {
		p.logger.Warn().Msg("没有需要处理的视频")
		task.Finish(nil)
		return nil, nil
	}

	if err := p.Login(ctx); err != nil {
		// 登录失败不影响公开内容的抓取
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error().Err(err).Msg("登录失败,以未登录状态继续")
	}

	return p.Crawl(ctx, task, outcome.URLs, outcome.ListPath)
}

// Close 关闭浏览器和redis连接
func (p *Pipeline) Close() error {
	var errs []error
	if p.cell != nil {
		errs = append(errs, p.cell.Close())
	}
	if p.store != nil {
		errs = append(errs, p.store.Close())
	}
	return errors.Join(errs...)
}
