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
	"github.com/rs/zerolog"
)

var errPersist = errors.New("写入结果失败")

// Session 可探测并自动重建的浏览器会话
type Session interface {
	EnsureAlive(ctx context.Context) (bool, error)
}

// CommentSource 评论来源
type CommentSource interface {
	Paginate(ctx context.Context, videoURL string, maxComments int) (*crawlers.PaginateResult, error)
}

// ProfileSource 用户主页来源
type ProfileSource interface {
	Extract(ctx context.Context, username string) (*models.ProfileInfo, error)
}

// RowSink 结果行写入目标
type RowSink interface {
	Append(rows []models.ResultRow) error
}

// ProcessedStore 跨运行的已处理记录
type ProcessedStore interface {
	CheckIfProcessed(ctx context.Context, prefixType, id string) (bool, error)
	MarkAsSeen(ctx context.Context, prefixType, id string) error
}

// Progress 进度显示
type Progress interface {
	Add(n int) error
}

// OrchestratorDeps 编排器依赖, Store 和 Progress 可为空
type OrchestratorDeps struct {
	Session  Session
	Comments CommentSource
	Profiles ProfileSource
	Sink     RowSink
	Store    ProcessedStore
	Progress Progress
}

// OrchestratorOptions 编排参数
type OrchestratorOptions struct {
	BatchSize     int
	MaxComments   int
	BatchRestMin  time.Duration // 批次之间的休息
	BatchRestMax  time.Duration
	RecoveryPause time.Duration // 会话重建后的暂停
}

// DefaultOrchestratorOptions 默认编排参数
func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		BatchSize:     3,
		MaxComments:   50,
		BatchRestMin:  5 * time.Second,
		BatchRestMax:  10 * time.Second,
		RecoveryPause: 5 * time.Second,
	}
}

// VideoResult 单个视频的处理结果
type VideoResult struct {
	URL      string
	Author   string
	Comments int
	Rows     int
	State    crawlers.CrawlState
	Err      error
}

// RunSummary 一次编排运行的摘要
type RunSummary struct {
	TotalURLs int
	Stats     models.TaskStats
	Failed    []models.FailedVideoInfo
	Results   []VideoResult
}

// Orchestrator 逐个视频提取评论和评论者主页, 每个视频结束后立即落盘
type Orchestrator struct {
	deps   OrchestratorDeps
	opts   OrchestratorOptions
	jitter *crawlers.Jitter
	logger zerolog.Logger

	processed map[string]struct{}
}

// NewOrchestrator 创建编排器
func NewOrchestrator(deps OrchestratorDeps, opts OrchestratorOptions, jitter *crawlers.Jitter, logger zerolog.Logger) *Orchestrator {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	return &Orchestrator{
		deps:      deps,
		opts:      opts,
		jitter:    jitter,
		logger:    logger,
		processed: make(map[string]struct{}),
	}
}

// Processed 本次运行已处理的视频数
func (o *Orchestrator) Processed() int {
	return len(o.processed)
}

// Run 按批处理视频列表
// 单个视频的错误只记录并跳过; 会话无法重建或上下文取消时返回错误, 已写入的结果保留在磁盘上
func (o *Orchestrator) Run(ctx context.Context, hashtag string, videoURLs []string) (*RunSummary, error) {
	summary := &RunSummary{TotalURLs: len(videoURLs)}
	startTime := time.Now()
	defer func() {
		summary.Stats.Duration = time.Since(startTime).Seconds()
	}()

	o.logger.Info().Str("hashtag", hashtag).Int("videos", len(videoURLs)).Int("batch_size", o.opts.BatchSize).Msg("🚀 开始处理视频")

	for start := 0; start < len(videoURLs); start += o.opts.BatchSize {
		end := start + o.opts.BatchSize
		if end > len(videoURLs) {
			end = len(videoURLs)
		}
		o.logger.Info().
			Int("batch", start/o.opts.BatchSize+1).
			Int("from", start+1).
			Int("to", end).
			Msg("处理批次")

		for _, videoURL := range videoURLs[start:end] {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			if err := o.ensureSession(ctx, summary); err != nil {
				return summary, err
			}

			if o.alreadyProcessed(ctx, videoURL) {
				o.logger.Debug().Str("video", videoURL).Msg("视频已处理,跳过")
				summary.Stats.SkippedVideos++
				o.advance()
				continue
			}

			result := o.processVideo(ctx, hashtag, videoURL, &summary.Stats)
			summary.Results = append(summary.Results, result)
			summary.Stats.Comments += result.Comments
			summary.Stats.Rows += result.Rows

			if result.Err != nil {
				if ctx.Err() != nil {
					return summary, ctx.Err()
				}
				summary.Stats.FailedVideos++
				summary.Failed = append(summary.Failed, models.FailedVideoInfo{
					URL:       videoURL,
					ErrorType: classifyError(result.Err),
					ErrorMsg:  result.Err.Error(),
				})
				o.logger.Error().Err(result.Err).Str("video", videoURL).Msg("❌ 视频处理失败")
			} else {
				summary.Stats.ProcessedVideos++
				o.markProcessed(ctx, videoURL)
				o.logger.Info().
					Str("video", videoURL).
					Int("comments", result.Comments).
					Str("state", result.State.String()).
					Msg("✅ 视频处理完成")
			}
			o.advance()
		}

		if end < len(videoURLs) {
			if err := o.jitter.Sleep(ctx, o.opts.BatchRestMin, o.opts.BatchRestMax); err != nil {
				return summary, err
			}
		}
	}

	o.printSummary(summary)
	return summary, nil
}

// ensureSession 探测浏览器会话, 无响应时重建; 重建失败对整个运行是致命的
func (o *Orchestrator) ensureSession(ctx context.Context, summary *RunSummary) error {
	restarted, err := o.deps.Session.EnsureAlive(ctx)
	if restarted {
		summary.Stats.SessionRestarts++
	}
	if err != nil {
		return fmt.Errorf("浏览器会话恢复失败: %w", err)
	}
	if restarted {
		o.logger.Warn().Msg("🔄 浏览器会话已重建")
		return o.jitter.Sleep(ctx, o.opts.RecoveryPause, o.opts.RecoveryPause)
	}
	return nil
}

// processVideo 处理单个视频, 浏览器panic转换为 ErrBrowserCrashed
// 无论成功与否, 已组装的行都会写入
func (o *Orchestrator) processVideo(ctx context.Context, hashtag, videoURL string, stats *models.TaskStats) (result VideoResult) {
	result = VideoResult{URL: videoURL, Author: models.AuthorFromVideoURL(videoURL)}
	var rows []models.ResultRow

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Str("video", videoURL).Msg("浏览器操作panic")
			result.Err = fmt.Errorf("%w: %v", browser.ErrBrowserCrashed, r)
		}
		switch err := o.persist(rows); {
		case err == nil:
			result.Rows = len(rows)
		case result.Err == nil:
			result.Err = err
		default:
			o.logger.Error().Err(err).Str("video", videoURL).Msg("部分结果写入失败")
		}
	}()

	log := o.logger.With().Str("video", videoURL).Logger()
	log.Info().Msg("开始处理视频")

	page, err := o.deps.Comments.Paginate(ctx, videoURL, o.opts.MaxComments)
	if err != nil {
		result.Err = err
		return result
	}
	result.State = page.State
	result.Comments = len(page.Comments)

	if result.Author == "" && len(page.Comments) > 0 {
		result.Author = page.Comments[0].Username
	}

	for _, comment := range page.Comments {
		if err := ctx.Err(); err != nil {
			result.Err = err
			return result
		}

		profile, err := o.deps.Profiles.Extract(ctx, comment.Username)
		if err != nil {
			if ctx.Err() != nil {
				result.Err = ctx.Err()
				return result
			}
			log.Warn().Err(err).Str("user", comment.Username).Msg("获取用户主页失败")
			stats.ProfilesMissing++
			profile = nil
		} else {
			stats.ProfilesFound++
		}
		rows = append(rows, models.NewResultRow(hashtag, videoURL, result.Author, comment, profile))
	}

	return result
}

func (o *Orchestrator) persist(rows []models.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := o.deps.Sink.Append(rows); err != nil {
		return fmt.Errorf("%w: %v", errPersist, err)
	}
	return nil
}

func (o *Orchestrator) alreadyProcessed(ctx context.Context, videoURL string) bool {
	if _, ok := o.processed[videoURL]; ok {
		return true
	}
	if o.deps.Store == nil {
		return false
	}
	seen, err := o.deps.Store.CheckIfProcessed(ctx, storage.PrefixProcessed, storage.VideoKey(videoURL))
	if err != nil {
		o.logger.Warn().Err(err).Msg("查询去重记录失败")
		return false
	}
	return seen
}

func (o *Orchestrator) markProcessed(ctx context.Context, videoURL string) {
	o.processed[videoURL] = struct{}{}
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.MarkAsSeen(ctx, storage.PrefixProcessed, storage.VideoKey(videoURL)); err != nil {
		o.logger.Warn().Err(err).Msg("写入去重记录失败")
	}
}

func (o *Orchestrator) advance() {
	if o.deps.Progress != nil {
		_ = o.deps.Progress.Add(1)
	}
}

// classifyError 失败类型, 写入报告
func classifyError(err error) string {
	switch {
	case errors.Is(err, browser.ErrBrowserCrashed):
		return "browser_crashed"
	case errors.Is(err, browser.ErrSessionUnavailable):
		return "session"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, errPersist):
		return "persist"
	default:
		return "navigation"
	}
}

// printSummary 打印运行摘要
func (o *Orchestrator) printSummary(summary *RunSummary) {
	s := summary.Stats
	o.logger.Info().Msg("==================================================")
	o.logger.Info().Msg("📊 评论提取摘要")
	o.logger.Info().Msgf("视频总数: %d", summary.TotalURLs)
	o.logger.Info().Msgf("✅ 成功: %d", s.ProcessedVideos)
	o.logger.Info().Msgf("⏭️  跳过: %d", s.SkippedVideos)
	o.logger.Info().Msgf("❌ 失败: %d", s.FailedVideos)
	o.logger.Info().Msgf("💬 评论数: %d, 写入行数: %d", s.Comments, s.Rows)
	o.logger.Info().Msgf("👤 主页成功: %d, 失败: %d", s.ProfilesFound, s.ProfilesMissing)
	if s.SessionRestarts > 0 {
		o.logger.Info().Msgf("🔄 会话重建: %d", s.SessionRestarts)
	}
	o.logger.Info().Msg("==================================================")

	for _, f := range summary.Failed {
		o.logger.Warn().Msgf("  - %s: %s", f.URL, f.ErrorMsg)
	}
}
