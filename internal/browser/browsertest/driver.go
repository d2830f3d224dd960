// Package browsertest 提供用于测试的内存浏览器驱动
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/ysmood/gson"
)

// Driver 可编程的 browser.Driver 替身
// 钩子函数在持有锁时调用, 只能直接读写字段, 不能再调用 Driver 的方法
type Driver struct {
	mu sync.Mutex

	URL       string
	Document  string                          // 静态DOM
	Render    func(d *Driver) string          // 动态DOM, 设置后优先于 Document
	Texts     map[string]string               // WaitText 可命中的选择器及其文本
	Elements  map[string]bool                 // Click/Input 可命中的查询
	Metrics   map[string]browser.ScrollMetrics // 各可滚动区域尺寸, "" 表示主页面
	EvalValue interface{}

	OnNavigate func(d *Driver, url string) error
	OnScroll   func(d *Driver, selector string, top int)
	OnReload   func(d *Driver)
	OnEnter    func(d *Driver)

	PingErr     error
	HTMLErr     error
	NavigateErr error

	// 调用记录
	Navigations []string
	Reloads     int
	Scrolls     int
	Clicks      []string
	Inputs      map[string]string
	Enters      int
	Closed      bool
}

// New 创建空白页面的驱动替身
func New() *Driver {
	return &Driver{
		URL:      "about:blank",
		Texts:    map[string]string{},
		Elements: map[string]bool{},
		Metrics:  map[string]browser.ScrollMetrics{"": {}},
		Inputs:   map[string]string{},
	}
}

func (d *Driver) alive() error {
	if d.Closed {
		return browser.ErrSessionUnavailable
	}
	return nil
}

// Navigate 记录导航并切换URL
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	d.Navigations = append(d.Navigations, url)
	if d.NavigateErr != nil {
		return d.NavigateErr
	}
	if d.OnNavigate != nil {
		if err := d.OnNavigate(d, url); err != nil {
			return err
		}
		return nil
	}
	d.URL = url
	return nil
}

// Reload 记录刷新
func (d *Driver) Reload(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	d.Reloads++
	if d.OnReload != nil {
		d.OnReload(d)
	}
	return nil
}

// CurrentURL 返回当前URL
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return "", err
	}
	return d.URL, nil
}

// HTML 返回DOM快照
func (d *Driver) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return "", err
	}
	if d.HTMLErr != nil {
		return "", d.HTMLErr
	}
	if d.Render != nil {
		return d.Render(d), nil
	}
	return d.Document, nil
}

// Eval 返回预设值
func (d *Driver) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return gson.New(nil), err
	}
	return gson.New(d.EvalValue), nil
}

// ScrollMetrics 返回预设的滚动尺寸
func (d *Driver) ScrollMetrics(ctx context.Context, selector string) (browser.ScrollMetrics, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return browser.ScrollMetrics{}, err
	}
	m, ok := d.Metrics[selector]
	if !ok {
		return browser.ScrollMetrics{}, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return m, nil
}

// ScrollTo 更新滚动位置并触发 OnScroll
func (d *Driver) ScrollTo(ctx context.Context, selector string, top int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	m, ok := d.Metrics[selector]
	if !ok {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	if top < 0 {
		top = 0
	}
	m.Top = top
	d.Metrics[selector] = m
	d.Scrolls++
	if d.OnScroll != nil {
		d.OnScroll(d, selector, top)
	}
	return nil
}

// WaitText 命中 Texts 时返回文本, 否则立即返回超时
func (d *Driver) WaitText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return "", err
	}
	if text, ok := d.Texts[selector]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%w: %s", browser.ErrWaitTimeout, selector)
}

// Click 记录点击
func (d *Driver) Click(ctx context.Context, query string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	if !d.Elements[query] {
		return fmt.Errorf("%w: %s", browser.ErrWaitTimeout, query)
	}
	d.Clicks = append(d.Clicks, query)
	return nil
}

// Input 记录输入
func (d *Driver) Input(ctx context.Context, query, text string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	if !d.Elements[query] {
		return fmt.Errorf("%w: %s", browser.ErrWaitTimeout, query)
	}
	d.Inputs[query] = text
	return nil
}

// PressEnter 记录回车
func (d *Driver) PressEnter(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	d.Enters++
	if d.OnEnter != nil {
		d.OnEnter(d)
	}
	return nil
}

// Ping 返回 PingErr
func (d *Driver) Ping(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alive(); err != nil {
		return err
	}
	return d.PingErr
}

// Close 标记为已关闭
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// SetURL 并发安全地修改URL
func (d *Driver) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.URL = url
}

var _ browser.Driver = (*Driver)(nil)
