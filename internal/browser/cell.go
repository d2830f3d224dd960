package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"
)

// Factory 创建新的浏览器会话
type Factory func(ctx context.Context) (Driver, error)

// RecoveryConfig 会话重建的重试参数
type RecoveryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRecoveryConfig 默认最多重试3次, 初始间隔2秒
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      1.5,
	}
}

// Cell 可替换的会话单元
// 自身实现 Driver, 每次调用都转发给当前会话, 会话重建后调用方无需感知
type Cell struct {
	mu       sync.RWMutex
	current  Driver
	factory  Factory
	recovery RecoveryConfig
	logger   zerolog.Logger
	restarts int
}

// NewCell 创建会话单元并启动第一个会话
func NewCell(ctx context.Context, factory Factory, recovery RecoveryConfig, logger zerolog.Logger) (*Cell, error) {
	c := &Cell{
		factory:  factory,
		recovery: recovery,
		logger:   logger,
	}

	d, err := c.create(ctx)
	if err != nil {
		return nil, err
	}
	c.current = d
	return c, nil
}

// Current 当前会话, 可能为nil(重建失败后)
func (c *Cell) Current() Driver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Restarts 会话重建次数
func (c *Cell) Restarts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.restarts
}

// EnsureAlive 探测会话存活, 失败时关闭并重建
// 返回值表示是否发生了重建
func (c *Cell) EnsureAlive(ctx context.Context) (bool, error) {
	if d := c.Current(); d != nil {
		err := d.Ping(ctx)
		if err == nil {
			return false, nil
		}
		c.logger.Warn().Err(err).Msg("浏览器会话无响应,准备重建")
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := c.Recreate(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Recreate 关闭旧会话并创建新会话
func (c *Cell) Recreate(ctx context.Context) error {
	c.mu.Lock()
	old := c.current
	c.current = nil
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("关闭旧会话失败")
		}
	}

	next, err := c.create(ctx)
	if err != nil {
		return fmt.Errorf("重建浏览器会话失败: %w", err)
	}

	c.mu.Lock()
	c.current = next
	c.restarts++
	restarts := c.restarts
	c.mu.Unlock()

	c.logger.Info().Int("restarts", restarts).Msg("🔄 浏览器会话已重建")
	return nil
}

// create 按指数退避重试调用工厂函数
func (c *Cell) create(ctx context.Context) (Driver, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.recovery.InitialInterval
	bo.MaxInterval = c.recovery.MaxInterval
	bo.Multiplier = c.recovery.Multiplier
	bo.Reset()

	var d Driver
	operation := func() error {
		var err error
		d, err = c.factory(ctx)
		return err
	}

	notify := func(err error, next time.Duration) {
		c.logger.Warn().
			Err(err).
			Str("next_attempt_in", next.Round(time.Millisecond).String()).
			Msg("浏览器启动失败,准备重试")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.recovery.MaxRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrMaxRetriesReached, err)
	}
	return d, nil
}

// Resource 当前会话的浏览器进程资源占用, 不支持时返回nil
func (c *Cell) Resource() *models.ResourceSnapshot {
	reporter, ok := c.Current().(interface {
		Resource() (*models.ResourceSnapshot, error)
	})
	if !ok {
		return nil
	}
	snapshot, err := reporter.Resource()
	if err != nil {
		c.logger.Debug().Err(err).Msg("读取浏览器资源占用失败")
		return nil
	}
	return snapshot
}

func (c *Cell) driver() (Driver, error) {
	d := c.Current()
	if d == nil {
		return nil, ErrSessionUnavailable
	}
	return d, nil
}

// Navigate 转发到当前会话
func (c *Cell) Navigate(ctx context.Context, url string) error {
	d, err := c.driver()
	if err != nil {
		return err
	}
	return d.Navigate(ctx, url)
}

// Reload 转发到当前会话
func (c *Cell) Reload(ctx context.Context) error {
	d, err := c.driver()
	if err != nil {
		return err
	}
	return d.Reload(ctx)
}

// CurrentURL 转发到当前会话
func (c *Cell) CurrentURL(ctx context.Context) (string, error) {
	d, err := c.driver()
	if err != nil {
		return "", err
	}
	return d.CurrentURL(ctx)
}

// HTML 转发到当前会话
func (c *Cell) HTML(ctx context.Context) (string, error) {
	d, err := c.driver()
	if err != nil {
		return "", err
	}
	return d.HTML(ctx)
}

// Eval 转发到当前会话
func (c *Cell) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	d, err := c.driver()
	if err != nil {
		return gson.New(nil), err
	}
	return d.Eval(ctx, js, args...)
}

// ScrollMetrics 转发到当前会话
func (c *Cell) ScrollMetrics(ctx context.Context, selector string) (ScrollMetrics, error) {
	d, err := c.driver()
	if err != nil {
		return ScrollMetrics{}, err
	}
	return d.ScrollMetrics(ctx, selector)
}

// ScrollTo 转发到当前会话
func (c *Cell) ScrollTo(ctx context.Context, selector string, top int) error {
	d, err := c.driver()
	if err != nil {
		return err
	}
	return d.ScrollTo(ctx, selector, top)
}

// WaitText 转发到当前会话
func (c *Cell) WaitText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	d, err := c.driver()
	if err != nil {
		return "", err
	}
	return d.WaitText(ctx, selector, timeout)
}

// Click 转发到当前会话
func (c *Cell) Click(ctx context.Context, query string, timeout time.Duration) error {
	d, err := c.driver()
	if err != nil {
		return err
	}
	return d.Click(ctx, query, timeout)
}

// Input 转发到当前会话
func (c *Cell) Input(ctx context.Context, query, text string, timeout time.Duration) error {
	d, err := c.driver()
	if err != nil {
		return err
	}
	return d.Input(ctx, query, text, timeout)
}

// PressEnter 转发到当前会话
func (c *Cell) PressEnter(ctx context.Context) error {
	d, err := c.driver()
	if err != nil {
		return err
	}
	return d.PressEnter(ctx)
}

// Ping 转发到当前会话
func (c *Cell) Ping(ctx context.Context) error {
	d, err := c.driver()
	if err != nil {
		return err
	}
	return d.Ping(ctx)
}

// Close 关闭当前会话
func (c *Cell) Close() error {
	c.mu.Lock()
	d := c.current
	c.current = nil
	c.mu.Unlock()

	if d == nil {
		return nil
	}
	return d.Close()
}

var _ Driver = (*Cell)(nil)
var _ Driver = (*RodDriver)(nil)
