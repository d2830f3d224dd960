// Package browser 封装浏览器自动化边界
//
// 所有页面操作都经由 Driver 接口完成。Cell 持有当前的 Driver 并可在会话
// 失效时整体替换, 业务组件只持有 Cell, 因此不会引用到已关闭的旧会话。
package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ysmood/gson"
)

// 错误类型定义
var (
	ErrBrowserCrashed     = errors.New("浏览器崩溃")
	ErrMaxRetriesReached  = errors.New("已达最大重试次数")
	ErrWaitTimeout        = errors.New("等待元素超时")
	ErrElementNotFound    = errors.New("元素不存在")
	ErrSessionUnavailable = errors.New("浏览器会话不可用")
)

// ScrollMetrics 可滚动区域的尺寸
type ScrollMetrics struct {
	Top    int // 当前滚动位置
	Height int // 内容总高度
	Client int // 可视高度
}

// Driver 浏览器自动化边界
// selector 为空字符串时表示主页面(window)
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)

	// HTML 返回当前DOM快照
	HTML(ctx context.Context) (string, error)
	// Eval 执行任意脚本并返回结果, js 为函数定义, 如 `() => 1`
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)

	ScrollMetrics(ctx context.Context, selector string) (ScrollMetrics, error)
	ScrollTo(ctx context.Context, selector string, top int) error

	// WaitText 有限等待元素出现并返回其文本, 超时返回 ErrWaitTimeout
	WaitText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	// Click/Input 的 query 以 "/" 或 "(" 开头时按 XPath 解析, 否则按CSS解析
	Click(ctx context.Context, query string, timeout time.Duration) error
	Input(ctx context.Context, query, text string, timeout time.Duration) error
	PressEnter(ctx context.Context) error

	// Ping 存活探测
	Ping(ctx context.Context) error
	Close() error
}

// IsXPath 判断查询语句是否为XPath
func IsXPath(query string) bool {
	return strings.HasPrefix(query, "/") || strings.HasPrefix(query, "(")
}
