package crawlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/rs/zerolog"
)

// LoginPageURL 登录页
const LoginPageURL = "https://www.tiktok.com/login"

// 登录页元素
const (
	loginMethodQuery = `//div[contains(text(), 'Use phone / email / username')]`
	emailTabQuery    = `//a[contains(@href, '/login/phone-or-email')]`
	usernameQuery    = `input[name="username"]`
	passwordQuery    = `//input[@type='password' and @placeholder='Password']`
)

var (
	// ErrCaptchaTimeout 等待人工完成验证码超时
	ErrCaptchaTimeout = errors.New("等待验证码完成超时")
	// ErrLoginFailed 登录页面元素缺失
	ErrLoginFailed = errors.New("登录失败")
)

// LoginOptions 登录参数
type LoginOptions struct {
	Account        string
	Password       string
	ElementTimeout time.Duration // 单个元素的等待上限
	PollInterval   time.Duration // 检查是否离开登录页的间隔
	CaptchaTimeout time.Duration // 等待人工验证码的总时长
}

// DefaultLoginOptions 默认登录参数
func DefaultLoginOptions() LoginOptions {
	return LoginOptions{
		ElementTimeout: 10 * time.Second,
		PollInterval:   5 * time.Second,
		CaptchaTimeout: 5 * time.Minute,
	}
}

// Login 使用账号密码登录, 出现验证码时等待人工处理
func Login(ctx context.Context, driver browser.Driver, jitter *Jitter, selectors Selectors, opts LoginOptions, logger zerolog.Logger) error {
	if opts.Account == "" || opts.Password == "" {
		return fmt.Errorf("%w: 账号或密码为空", ErrLoginFailed)
	}
	log := logger.With().Str("component", "login").Logger()
	log.Info().Msg("🔐 开始登录TikTok")

	if err := driver.Navigate(ctx, LoginPageURL); err != nil {
		return fmt.Errorf("打开登录页失败: %w", err)
	}

	steps := []struct {
		desc  string
		run   func() error
		pause time.Duration
	}{
		{"等待登录页加载", func() error { return nil }, 5 * time.Second},
		{"选择账号登录", func() error { return driver.Click(ctx, loginMethodQuery, opts.ElementTimeout) }, 3 * time.Second},
		{"切换到邮箱/用户名", func() error { return driver.Click(ctx, emailTabQuery, opts.ElementTimeout) }, 2 * time.Second},
		{"输入账号", func() error { return driver.Input(ctx, usernameQuery, opts.Account, opts.ElementTimeout) }, time.Second},
		{"输入密码", func() error { return driver.Input(ctx, passwordQuery, opts.Password, opts.ElementTimeout) }, 0},
		{"提交登录", func() error { return driver.PressEnter(ctx) }, 5 * time.Second},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s: %v", ErrLoginFailed, step.desc, err)
		}
		log.Debug().Str("step", step.desc).Msg("登录步骤完成")
		if step.pause > 0 {
			if err := jitter.Sleep(ctx, step.pause, step.pause); err != nil {
				return err
			}
		}
	}

	if html, err := driver.HTML(ctx); err == nil {
		current, _ := driver.CurrentURL(ctx)
		if found, hint := DetectCaptcha(html, current, selectors.Captcha); found {
			log.Warn().Str("marker", hint).Msg("🧩 检测到验证码,请在浏览器中手动完成")
		}
	}

	return WaitForLogin(ctx, driver, jitter, opts.PollInterval, opts.CaptchaTimeout, log)
}

// WaitForLogin 轮询当前URL, 离开登录页即视为登录成功
func WaitForLogin(ctx context.Context, driver browser.Driver, jitter *Jitter, interval, timeout time.Duration, logger zerolog.Logger) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	polls := int(timeout / interval)
	if polls < 1 {
		polls = 1
	}

	for i := 0; ; i++ {
		current, err := driver.CurrentURL(ctx)
		if err == nil && !onLoginPage(current) {
			logger.Info().Str("url", current).Msg("✅ 登录成功")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= polls {
			return fmt.Errorf("%w (%s)", ErrCaptchaTimeout, timeout)
		}

		logger.Info().Msg("仍在登录页,等待验证码完成...")
		if err := jitter.Sleep(ctx, interval, interval); err != nil {
			return err
		}
	}
}

func onLoginPage(pageURL string) bool {
	return strings.Contains(pageURL, "/login")
}
