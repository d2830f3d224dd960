package crawlers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/rs/zerolog"
)

// TagPageURL 话题页地址
const TagPageURL = "https://www.tiktok.com/tag/%s"

const fallbackBaseURL = "https://www.tiktok.com/"

// CollectOptions 视频URL收集参数
type CollectOptions struct {
	TargetCount int     // 目标数量
	BatchSize   int     // 每收集这么多个休息一次
	RestSeconds float64 // 批间休息(秒), 实际为 [RestSeconds, RestSeconds+5]
	RetryDelay  float64 // 停滞后等待(秒), 实际为 [RetryDelay, RetryDelay+3]
	MaxRetries  int     // 累计停滞次数上限
	MinStep     int     // 滚动步长下限(px)
	MaxStep     int     // 滚动步长上限(px)
}

// DefaultCollectOptions 默认收集参数
func DefaultCollectOptions() CollectOptions {
	return CollectOptions{
		TargetCount: 2000,
		BatchSize:   50,
		RestSeconds: 5,
		RetryDelay:  2,
		MaxRetries:  3,
		MinStep:     300,
		MaxStep:     800,
	}
}

// CollectResult 收集结果
type CollectResult struct {
	URLs    []string   // 按发现顺序去重后的视频URL
	State   CrawlState // 结束时状态
	Rounds  int        // 外层循环轮数
	Rests   int        // 批间休息次数
	Reloads int        // 停滞后刷新次数
}

// Collector 从话题页滚动收集视频URL
type Collector struct {
	driver    browser.Driver
	scroller  *Scroller
	jitter    *Jitter
	selectors Selectors
	logger    zerolog.Logger

	// OnFound 每发现一个新URL回调一次, 可为nil
	OnFound func(videoURL string, total int)
}

// NewCollector 创建收集器
func NewCollector(driver browser.Driver, jitter *Jitter, selectors Selectors, logger zerolog.Logger) *Collector {
	return &Collector{
		driver:    driver,
		scroller:  NewScroller(driver, jitter, logger),
		jitter:    jitter,
		selectors: selectors.WithDefaults(),
		logger:    logger,
	}
}

// Collect 打开话题页并收集视频URL
func (c *Collector) Collect(ctx context.Context, hashtag string, opts CollectOptions) (*CollectResult, error) {
	tagURL := fmt.Sprintf(TagPageURL, url.PathEscape(hashtag))
	c.logger.Info().Str("hashtag", hashtag).Str("url", tagURL).Int("target", opts.TargetCount).Msg("🔍 开始收集视频URL")

	if err := c.driver.Navigate(ctx, tagURL); err != nil {
		return &CollectResult{State: StateScanning}, fmt.Errorf("打开话题页失败: %w", err)
	}
	if err := c.jitter.Seconds(ctx, 5, 10); err != nil {
		return &CollectResult{State: StateScanning}, err
	}

	return c.CollectFromPage(ctx, opts)
}

// CollectFromPage 在当前页面上执行收集循环
// 单步滚动或扫描失败只记录日志, 只有上下文取消会中断循环
func (c *Collector) CollectFromPage(ctx context.Context, opts CollectOptions) (*CollectResult, error) {
	res := &CollectResult{State: StateScanning}
	seen := make(map[string]struct{})
	lastCount := 0
	retries := 0

	for len(res.URLs) < opts.TargetCount {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Rounds++

		if _, err := c.scroller.Sweep(ctx, opts.MinStep, opts.MaxStep); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			c.logger.Warn().Err(err).Int("round", res.Rounds).Msg("滚动页面失败")
		}

		if err := c.scan(ctx, opts, seen, res); err != nil {
			return res, err
		}

		if len(res.URLs) >= opts.TargetCount {
			break
		}

		if len(res.URLs) == lastCount {
			res.State = StateStagnant
			retries++
			c.logger.Warn().
				Int("attempt", retries).
				Int("max_retries", opts.MaxRetries).
				Int("collected", len(res.URLs)).
				Msg("没有发现新视频")

			if err := c.jitter.Seconds(ctx, opts.RetryDelay, opts.RetryDelay+3); err != nil {
				return res, err
			}
			if retries >= opts.MaxRetries {
				res.State = StateExhausted
				c.logger.Warn().Msg("已达最大重试次数,停止收集")
				break
			}

			if err := c.driver.Reload(ctx); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				c.logger.Warn().Err(err).Msg("刷新页面失败")
			}
			res.Reloads++
			c.logger.Info().Msg("页面已刷新,继续收集")
			if err := c.jitter.Seconds(ctx, 5, 10); err != nil {
				return res, err
			}
			continue
		}

		lastCount = len(res.URLs)
		res.State = StateScanning
	}

	if len(res.URLs) >= opts.TargetCount {
		res.State = StateComplete
	}

	c.logger.Info().
		Int("collected", len(res.URLs)).
		Int("rounds", res.Rounds).
		Str("state", res.State.String()).
		Msg("✅ 视频URL收集结束")
	return res, nil
}

// scan 扫描当前DOM中的视频链接并累加
func (c *Collector) scan(ctx context.Context, opts CollectOptions, seen map[string]struct{}, res *CollectResult) error {
	html, err := c.driver.HTML(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("获取页面快照失败")
		return nil
	}

	base, err := c.driver.CurrentURL(ctx)
	if err != nil || base == "" {
		base = fallbackBaseURL
	}

	links, err := ExtractVideoLinks(html, base, c.selectors.VideoLinkPattern)
	if err != nil {
		c.logger.Warn().Err(err).Msg("解析视频链接失败")
		return nil
	}

	for _, link := range links {
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		res.URLs = append(res.URLs, link)
		c.logger.Debug().Str("url", link).Int("total", len(res.URLs)).Msg("发现视频")
		if c.OnFound != nil {
			c.OnFound(link, len(res.URLs))
		}

		// 每跨过一个批次边界休息一次
		if opts.BatchSize > 0 && len(res.URLs)%opts.BatchSize == 0 {
			res.Rests++
			c.logger.Info().Int("collected", len(res.URLs)).Float64("rest_seconds", opts.RestSeconds).Msg("☕ 批次完成,休息")
			if err := c.jitter.Seconds(ctx, opts.RestSeconds, opts.RestSeconds+5); err != nil {
				return err
			}
		}

		if len(res.URLs) >= opts.TargetCount {
			break
		}
	}
	return nil
}
