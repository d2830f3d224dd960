package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/contact"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/rs/zerolog"
)

// ProfilePageURL 用户主页地址
const ProfilePageURL = "https://www.tiktok.com/@%s"

// ProfileOptions 主页提取参数
type ProfileOptions struct {
	SettleWait time.Duration // 打开主页后的固定等待
	BioWait    time.Duration // 简介元素的等待上限
	Cache      bool          // 同一次运行内缓存已访问的主页
}

// DefaultProfileOptions 默认主页提取参数
func DefaultProfileOptions() ProfileOptions {
	return ProfileOptions{
		SettleWait: 3 * time.Second,
		BioWait:    10 * time.Second,
	}
}

// ProfileExtractor 访问评论者主页, 提取简介、链接和联系方式
type ProfileExtractor struct {
	driver    browser.Driver
	jitter    *Jitter
	selectors Selectors
	opts      ProfileOptions
	logger    zerolog.Logger

	mu    sync.Mutex
	cache map[string]*models.ProfileInfo
}

// NewProfileExtractor 创建主页提取器
func NewProfileExtractor(driver browser.Driver, jitter *Jitter, selectors Selectors, opts ProfileOptions, logger zerolog.Logger) *ProfileExtractor {
	e := &ProfileExtractor{
		driver:    driver,
		jitter:    jitter,
		selectors: selectors.WithDefaults(),
		opts:      opts,
		logger:    logger,
	}
	if opts.Cache {
		e.cache = make(map[string]*models.ProfileInfo)
	}
	return e
}

// Extract 提取用户主页信息
// 导航或快照失败时返回错误, 调用方按空字段处理
func (e *ProfileExtractor) Extract(ctx context.Context, username string) (*models.ProfileInfo, error) {
	if username == "" {
		return nil, fmt.Errorf("用户名为空")
	}
	if cached, ok := e.cached(username); ok {
		return cached, nil
	}

	log := e.logger.With().Str("user", username).Logger()
	log.Debug().Msg("开始提取用户主页")

	if err := e.driver.Navigate(ctx, fmt.Sprintf(ProfilePageURL, url.PathEscape(username))); err != nil {
		return nil, fmt.Errorf("打开用户主页失败: %w", err)
	}
	if err := e.jitter.Sleep(ctx, e.opts.SettleWait, e.opts.SettleWait); err != nil {
		return nil, err
	}

	profile := &models.ProfileInfo{}

	bio, err := e.driver.WaitText(ctx, e.selectors.ProfileBio, e.opts.BioWait)
	switch {
	case err == nil:
		profile.Bio = strings.TrimSpace(bio)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, browser.ErrWaitTimeout), errors.Is(err, browser.ErrElementNotFound):
		log.Warn().Msg("未找到用户简介")
	default:
		log.Warn().Err(err).Msg("读取用户简介失败")
	}

	html, err := e.driver.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取主页HTML失败: %w", err)
	}
	links, err := ExtractProfileLinks(html)
	if err != nil {
		return nil, err
	}
	profile.Links = links

	if profile.Bio != "" {
		info := contact.Extract(profile.Bio)
		profile.Email = info.Email
		profile.WhatsApp = info.WhatsApp
		profile.Phone = info.Phone
		if !info.Empty() {
			log.Info().
				Str("email", info.Email).
				Str("whatsapp", info.WhatsApp).
				Str("phone", info.Phone).
				Msg("📇 发现联系方式")
		}
	}

	e.store(username, profile)
	return profile, nil
}

func (e *ProfileExtractor) cached(username string) (*models.ProfileInfo, bool) {
	if e.cache == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.cache[username]
	return p, ok
}

func (e *ProfileExtractor) store(username string, p *models.ProfileInfo) {
	if e.cache == nil {
		return
	}
	e.mu.Lock()
	e.cache[username] = p
	e.mu.Unlock()
}

// ExtractProfileLinks 按文档顺序返回所有 a[href], 排除锚点和 javascript: 链接
func ExtractProfileLinks(htmlContent string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("解析主页HTML失败: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		links = append(links, href)
	})
	return links, nil
}
