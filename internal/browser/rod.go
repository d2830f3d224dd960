package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/ysmood/gson"
)

const (
	scrollMetricsJS = `(sel) => {
		const el = sel ? document.querySelector(sel) : (document.scrollingElement || document.documentElement);
		if (!el) return null;
		return {top: Math.round(el.scrollTop), height: el.scrollHeight, client: el.clientHeight};
	}`

	scrollToJS = `(sel, top) => {
		if (!sel) { window.scrollTo(0, top); return true; }
		const el = document.querySelector(sel);
		if (!el) return false;
		el.scrollTop = top;
		return true;
	}`

	readyStateJS = `() => document.readyState`
)

// Options 浏览器启动参数
type Options struct {
	Bin         string        // Chrome可执行文件路径, 为空时自动下载/查找
	Headless    bool          // 无头模式
	UserDataDir string        // 用户数据目录, 用于复用登录态
	NoSandbox   bool          // 容器内运行时需要
	UserAgent   string        // 为空时随机生成
	NavTimeout  time.Duration // 导航超时
	PingTimeout time.Duration // 存活探测超时
}

// RodDriver 基于Rod的 Driver 实现
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     Options
	logger   zerolog.Logger
}

// Launch 启动浏览器并打开一个隐身(stealth)页面
func Launch(ctx context.Context, opts Options, logger zerolog.Logger) (*RodDriver, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = RandomUserAgent(nil)
	}

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-notifications").
		Set("disable-infobars").
		Set("disable-dev-shm-usage").
		Set("start-maximized")

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	if opts.NoSandbox {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
		logger.Warn().Err(err).Msg("设置User-Agent失败")
	}

	logger.Info().
		Int("pid", l.PID()).
		Bool("headless", opts.Headless).
		Str("user_data_dir", opts.UserDataDir).
		Str("user_agent", opts.UserAgent).
		Msg("🌐 浏览器已启动")

	return &RodDriver{
		launcher: l,
		browser:  browser,
		page:     page,
		opts:     opts,
		logger:   logger,
	}, nil
}

// RodFactory 返回按相同参数启动浏览器的工厂函数, 供 Cell 重建会话
func RodFactory(opts Options, logger zerolog.Logger) Factory {
	return func(ctx context.Context) (Driver, error) {
		d, err := Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func (r *RodDriver) withNavTimeout(ctx context.Context) *rod.Page {
	p := r.page.Context(ctx)
	if r.opts.NavTimeout > 0 {
		p = p.Timeout(r.opts.NavTimeout)
	}
	return p
}

// Navigate 打开URL并等待load事件
func (r *RodDriver) Navigate(ctx context.Context, url string) error {
	p := r.withNavTimeout(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("导航失败 %s: %w", url, err)
	}
	return r.waitLoad(ctx, p)
}

// Reload 刷新当前页面
func (r *RodDriver) Reload(ctx context.Context) error {
	p := r.withNavTimeout(ctx)
	if err := p.Reload(); err != nil {
		return fmt.Errorf("刷新页面失败: %w", err)
	}
	return r.waitLoad(ctx, p)
}

// waitLoad load事件超时不视为失败, 页面通常已可交互
func (r *RodDriver) waitLoad(ctx context.Context, p *rod.Page) error {
	err := p.WaitLoad()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		r.logger.Debug().Err(err).Msg("等待页面load事件超时,继续执行")
		return nil
	}
	return fmt.Errorf("等待页面加载失败: %w", err)
}

// CurrentURL 当前页面URL
func (r *RodDriver) CurrentURL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("获取页面信息失败: %w", err)
	}
	return info.URL, nil
}

// HTML 当前DOM快照
func (r *RodDriver) HTML(ctx context.Context) (string, error) {
	html, err := r.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("获取页面HTML失败: %w", err)
	}
	return html, nil
}

// Eval 执行脚本
func (r *RodDriver) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := r.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), fmt.Errorf("执行脚本失败: %w", err)
	}
	return res.Value, nil
}

// ScrollMetrics 读取滚动尺寸
func (r *RodDriver) ScrollMetrics(ctx context.Context, selector string) (ScrollMetrics, error) {
	v, err := r.Eval(ctx, scrollMetricsJS, selector)
	if err != nil {
		return ScrollMetrics{}, err
	}
	if v.Nil() {
		return ScrollMetrics{}, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return ScrollMetrics{
		Top:    v.Get("top").Int(),
		Height: v.Get("height").Int(),
		Client: v.Get("client").Int(),
	}, nil
}

// ScrollTo 滚动到指定位置
func (r *RodDriver) ScrollTo(ctx context.Context, selector string, top int) error {
	v, err := r.Eval(ctx, scrollToJS, selector, top)
	if err != nil {
		return err
	}
	if !v.Bool() {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

// WaitText 有限等待元素并返回文本
func (r *RodDriver) WaitText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	el, err := r.find(ctx, selector, timeout)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("读取元素文本失败: %w", err)
	}
	return text, nil
}

// Click 点击元素
func (r *RodDriver) Click(ctx context.Context, query string, timeout time.Duration) error {
	el, err := r.find(ctx, query, timeout)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击元素失败 %s: %w", query, err)
	}
	return nil
}

// Input 向输入框填充文本
func (r *RodDriver) Input(ctx context.Context, query, text string, timeout time.Duration) error {
	el, err := r.find(ctx, query, timeout)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("输入文本失败 %s: %w", query, err)
	}
	return nil
}

// PressEnter 按下回车键
func (r *RodDriver) PressEnter(ctx context.Context) error {
	return r.page.Context(ctx).Keyboard.Press(input.Enter)
}

func (r *RodDriver) find(ctx context.Context, query string, timeout time.Duration) (*rod.Element, error) {
	p := r.page.Context(ctx).Timeout(timeout)

	var el *rod.Element
	var err error
	if IsXPath(query) {
		el, err = p.ElementX(query)
	} else {
		el, err = p.Element(query)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrWaitTimeout, query)
		}
		return nil, fmt.Errorf("查找元素失败 %s: %w", query, err)
	}
	return el.Context(ctx), nil
}

// Ping 先检查浏览器进程是否存在, 再通过CDP确认页面可响应
func (r *RodDriver) Ping(ctx context.Context) error {
	if pid := r.launcher.PID(); pid > 0 {
		exists, err := process.PidExists(int32(pid))
		if err == nil && !exists {
			return fmt.Errorf("%w: 进程 %d 已退出", ErrBrowserCrashed, pid)
		}
	}

	timeout := r.opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if _, err := r.page.Context(ctx).Timeout(timeout).Eval(readyStateJS); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return nil
}

// Resource 浏览器主进程资源占用
func (r *RodDriver) Resource() (*models.ResourceSnapshot, error) {
	pid := int32(r.launcher.PID())
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("获取浏览器进程失败: %w", err)
	}

	snapshot := &models.ResourceSnapshot{PID: pid}
	if mem, err := proc.MemoryInfo(); err == nil {
		snapshot.RSS = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		snapshot.CPUPercent = cpu
	}
	return snapshot, nil
}

// Close 关闭浏览器并结束进程
func (r *RodDriver) Close() error {
	var closeErr error
	if r.browser != nil {
		closeErr = r.browser.Close()
	}
	if r.launcher != nil {
		r.launcher.Kill()
		// 临时用户目录才清理, 持久目录保存着登录态
		if r.opts.UserDataDir == "" {
			r.launcher.Cleanup()
		}
	}
	return closeErr
}
