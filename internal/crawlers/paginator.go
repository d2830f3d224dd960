package crawlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/rs/zerolog"
)

// PaginateOptions 评论翻页参数
type PaginateOptions struct {
	MaxComments       int           // 每个视频最多评论数
	MaxScrollAttempts int           // 最多滚动轮数
	MaxNoGrowth       int           // 连续无新增轮数上限
	InitialWait       time.Duration // 打开视频后的固定等待
	ContainerWait     time.Duration // 每个评论容器选择器的等待上限
	MinStep           int
	MaxStep           int
	Back              int    // 每轮向下滚动后回滚的距离
	DebugDumpDir      string // 找不到评论容器时保存HTML的目录, 为空不保存
}

// DefaultPaginateOptions 默认翻页参数
func DefaultPaginateOptions() PaginateOptions {
	return PaginateOptions{
		MaxComments:       50,
		MaxScrollAttempts: 15,
		MaxNoGrowth:       5,
		InitialWait:       5 * time.Second,
		ContainerWait:     10 * time.Second,
		MinStep:           800,
		MaxStep:           1200,
		Back:              100,
	}
}

// PaginateResult 翻页结果
type PaginateResult struct {
	Comments    []models.CommentRecord
	State       CrawlState
	Rounds      int
	OriginalURL string
}

// Paginator 滚动视频评论区并提取评论
type Paginator struct {
	driver    browser.Driver
	scroller  *Scroller
	jitter    *Jitter
	selectors Selectors
	opts      PaginateOptions
	logger    zerolog.Logger
}

// NewPaginator 创建评论翻页器
func NewPaginator(driver browser.Driver, jitter *Jitter, selectors Selectors, opts PaginateOptions, logger zerolog.Logger) *Paginator {
	return &Paginator{
		driver:    driver,
		scroller:  NewScroller(driver, jitter, logger),
		jitter:    jitter,
		selectors: selectors.WithDefaults(),
		opts:      opts,
		logger:    logger,
	}
}

// Paginate 打开视频并提取最多 maxComments 条评论
// 导航失败返回错误; 循环内的单步失败只记录日志, 返回已收集的评论
func (p *Paginator) Paginate(ctx context.Context, videoURL string, maxComments int) (*PaginateResult, error) {
	if maxComments <= 0 {
		maxComments = p.opts.MaxComments
	}
	log := p.logger.With().Str("video", videoURL).Logger()

	if err := p.driver.Navigate(ctx, videoURL); err != nil {
		return nil, fmt.Errorf("打开视频失败: %w", err)
	}
	if err := p.jitter.Sleep(ctx, p.opts.InitialWait, p.opts.InitialWait); err != nil {
		return nil, err
	}

	originalURL, err := p.driver.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取视频页URL失败: %w", err)
	}

	res := &PaginateResult{State: StateScanning, OriginalURL: originalURL}
	p.waitForComments(ctx, log)

	seen := make(map[models.CommentRecord]struct{})
	noGrowth := 0

	for !res.State.Terminal() {
		if len(res.Comments) >= maxComments {
			res.State = StateComplete
			continue
		}
		if res.Rounds >= p.opts.MaxScrollAttempts || noGrowth >= p.opts.MaxNoGrowth {
			res.State = StateExhausted
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if p.drifted(ctx, res, log) {
			return res, nil
		}

		res.Rounds++
		before := len(res.Comments)

		records, containers, err := p.snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn().Err(err).Int("round", res.Rounds).Msg("解析评论失败")
		}
		if containers == 0 && res.Rounds == 1 {
			p.dumpDebugHTML(ctx, log)
		}

		for _, rec := range records {
			if len(res.Comments) >= maxComments {
				break
			}
			if _, ok := seen[rec]; ok {
				continue
			}
			seen[rec] = struct{}{}
			res.Comments = append(res.Comments, rec)
		}

		if len(res.Comments) > before {
			noGrowth = 0
			res.State = StateScanning
		} else {
			noGrowth++
			res.State = StateStagnant
		}

		log.Debug().
			Int("round", res.Rounds).
			Int("containers", containers).
			Int("comments", len(res.Comments)).
			Int("no_growth", noGrowth).
			Msg("评论翻页")

		if len(res.Comments) < maxComments {
			if err := p.scroller.Nudge(ctx, p.selectors.CommentPanels, p.opts.MinStep, p.opts.MaxStep, p.opts.Back); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				log.Warn().Err(err).Msg("滚动评论区失败")
			}
		}

		if p.drifted(ctx, res, log) {
			return res, nil
		}
	}

	log.Info().
		Int("comments", len(res.Comments)).
		Int("rounds", res.Rounds).
		Str("state", res.State.String()).
		Msg("评论提取结束")
	return res, nil
}

// drifted 当前URL与初始URL不一致时将状态置为 Drifted
func (p *Paginator) drifted(ctx context.Context, res *PaginateResult, log zerolog.Logger) bool {
	current, err := p.driver.CurrentURL(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("读取当前URL失败")
		return false
	}
	if current == res.OriginalURL {
		return false
	}
	res.State = StateDrifted
	log.Warn().Str("current", current).Int("comments", len(res.Comments)).Msg("⚠️ 页面URL发生变化,停止提取")
	return true
}

// waitForComments 依次等待评论容器选择器, 都未出现也继续
func (p *Paginator) waitForComments(ctx context.Context, log zerolog.Logger) {
	for _, sel := range p.selectors.CommentContainers {
		if _, err := p.driver.WaitText(ctx, sel, p.opts.ContainerWait); err == nil {
			log.Debug().Str("selector", sel).Msg("评论区已加载")
			return
		}
	}
	log.Warn().Msg("未等到评论容器,继续尝试")
}

func (p *Paginator) snapshot(ctx context.Context) ([]models.CommentRecord, int, error) {
	html, err := p.driver.HTML(ctx)
	if err != nil {
		return nil, 0, err
	}
	return ParseComments(html, p.selectors)
}

func (p *Paginator) dumpDebugHTML(ctx context.Context, log zerolog.Logger) {
	if p.opts.DebugDumpDir == "" {
		return
	}
	html, err := p.driver.HTML(ctx)
	if err != nil {
		return
	}
	if err := os.MkdirAll(p.opts.DebugDumpDir, 0755); err != nil {
		log.Error().Err(err).Msg("创建调试目录失败")
		return
	}
	path := filepath.Join(p.opts.DebugDumpDir, fmt.Sprintf("comments_%s.html", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		log.Error().Err(err).Msg("保存调试HTML失败")
		return
	}
	log.Info().Str("path", path).Msg("已保存调试HTML")
}

// ParseComments 从DOM快照中解析评论
// 返回有效评论(按文档顺序, 可能含重复)以及命中的容器数量
func ParseComments(htmlContent string, sel Selectors) ([]models.CommentRecord, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, 0, fmt.Errorf("解析HTML失败: %w", err)
	}

	var containers *goquery.Selection
	for _, pattern := range sel.CommentContainers {
		if found := doc.Find(pattern); found.Length() > 0 {
			containers = found
			break
		}
	}
	if containers == nil {
		return nil, 0, nil
	}

	records := make([]models.CommentRecord, 0, containers.Length())
	containers.Each(func(_ int, container *goquery.Selection) {
		rec := models.CommentRecord{Username: extractUsername(container, sel.CommentUsernames)}
		rec.Text, rec.Level = extractTextAndLevel(container, sel)
		if rec.Level > 1 {
			rec.ParentUsername = extractParent(container, sel)
		}
		if rec.Valid() {
			records = append(records, rec)
		}
	})
	return records, containers.Length(), nil
}

// extractUsername 按顺序尝试用户名选择器, 取第一个非空结果
func extractUsername(container *goquery.Selection, selectors []string) string {
	for _, pattern := range selectors {
		el := container.Find(pattern).First()
		if el.Length() == 0 {
			continue
		}

		var name string
		if href, ok := el.Attr("href"); ok && strings.Contains(href, "/@") {
			name = models.UsernameFromHref(href)
		} else if strings.HasSuffix(pattern, "[title]") {
			name, _ = el.Attr("title")
		} else {
			name = el.Text()
		}

		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}

// extractTextAndLevel 取第一个存在的 comment-level-N
// 不存在或其文本为空时用备用选择器并视为一级
func extractTextAndLevel(container *goquery.Selection, sel Selectors) (string, int) {
	for level := 1; level <= sel.MaxCommentLevel; level++ {
		el := container.Find(sel.LevelSelector(level)).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text, level
		}
		break
	}

	for _, pattern := range sel.CommentTextFallbacks {
		if text := strings.TrimSpace(container.Find(pattern).First().Text()); text != "" {
			return text, 1
		}
	}
	return "", 0
}

// extractParent 回复的父评论取最近的前序兄弟容器
func extractParent(container *goquery.Selection, sel Selectors) string {
	prev := container.PrevAllFiltered(sel.ParentContainer).First()
	if prev.Length() == 0 {
		return ""
	}
	href, ok := prev.Find(sel.ParentUsername).First().Attr("href")
	if !ok {
		return ""
	}
	return models.UsernameFromHref(href)
}
