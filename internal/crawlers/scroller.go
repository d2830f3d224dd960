package crawlers

import (
	"context"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/rs/zerolog"
)

// maxSweepSteps 单次自顶向下滚动的步数上限, 防止无限加载的页面让滚动永不结束
const maxSweepSteps = 200

// Scroller 模拟人工滚动
type Scroller struct {
	driver browser.Driver
	jitter *Jitter
	logger zerolog.Logger
}

// NewScroller 创建滚动器
func NewScroller(driver browser.Driver, jitter *Jitter, logger zerolog.Logger) *Scroller {
	return &Scroller{driver: driver, jitter: jitter, logger: logger}
}

// Sweep 从顶部按随机步长滚动到底部, 每步之后重新读取页面高度
// 返回实际滚动的步数
func (s *Scroller) Sweep(ctx context.Context, minStep, maxStep int) (int, error) {
	m, err := s.driver.ScrollMetrics(ctx, "")
	if err != nil {
		return 0, err
	}

	pos, steps := 0, 0
	for pos < m.Height && steps < maxSweepSteps {
		pos += s.jitter.Int(minStep, maxStep)
		if err := s.driver.ScrollTo(ctx, "", pos); err != nil {
			return steps, err
		}
		steps++

		if err := s.jitter.Seconds(ctx, 1, 3); err != nil {
			return steps, err
		}

		// 懒加载会让页面变高
		if m, err = s.driver.ScrollMetrics(ctx, ""); err != nil {
			return steps, err
		}
	}

	s.logger.Debug().Int("steps", steps).Int("height", m.Height).Msg("页面滚动到底部")
	return steps, nil
}

// Nudge 向下随机滚动后再回滚一小段, 触发评论区懒加载
// 优先滚动第一个可滚动的评论面板, 都不存在时滚动主页面
func (s *Scroller) Nudge(ctx context.Context, panels []string, minStep, maxStep, back int) error {
	target := s.resolve(ctx, panels)

	m, err := s.driver.ScrollMetrics(ctx, target)
	if err != nil {
		return err
	}

	down := m.Top + s.jitter.Int(minStep, maxStep)
	if target != "" {
		// 面板自带滚动条, 不超过其内容高度
		down = clampTop(down, m)
	}
	if err := s.driver.ScrollTo(ctx, target, down); err != nil {
		return err
	}
	if err := s.jitter.Seconds(ctx, 1, 2); err != nil {
		return err
	}

	if err := s.driver.ScrollTo(ctx, target, down-back); err != nil {
		return err
	}
	return s.jitter.Seconds(ctx, 0.5, 1)
}

func clampTop(top int, m browser.ScrollMetrics) int {
	if top > m.Height {
		return m.Height
	}
	return top
}

// resolve 返回第一个内容超出可视区域的面板选择器
func (s *Scroller) resolve(ctx context.Context, panels []string) string {
	for _, sel := range panels {
		m, err := s.driver.ScrollMetrics(ctx, sel)
		if err != nil {
			continue
		}
		if m.Height > m.Client {
			return sel
		}
	}
	return ""
}
