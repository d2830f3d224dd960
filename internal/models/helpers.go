package models

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// AuthorFromVideoURL 从视频URL中解析作者用户名
// 形如 https://www.tiktok.com/@someone/video/123 返回 "someone"
func AuthorFromVideoURL(videoURL string) string {
	parsed, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	for _, segment := range strings.Split(parsed.Path, "/") {
		if strings.HasPrefix(segment, "@") && len(segment) > 1 {
			return segment[1:]
		}
	}
	return ""
}

// VideoIDFromURL 返回 /video/ 之后的数字ID, 不是视频链接时返回空
func VideoIDFromURL(videoURL string) string {
	parsed, err := url.Parse(videoURL)
	if err != nil {
		return ""
	}
	_, id, found := strings.Cut(parsed.Path, "/video/")
	if !found {
		return ""
	}
	id, _, _ = strings.Cut(id, "/")
	return id
}

// UsernameFromHref 提取 href 中 "/@" 之后、"?" 之前的部分
func UsernameFromHref(href string) string {
	idx := strings.Index(href, "/@")
	if idx < 0 {
		return ""
	}
	name := href[idx+2:]
	if q := strings.IndexAny(name, "?#"); q >= 0 {
		name = name[:q]
	}
	// 个人主页链接可能带子路径,如 /@user/video/1
	if slash := strings.Index(name, "/"); slash >= 0 {
		name = name[:slash]
	}
	return strings.TrimSpace(name)
}

// NormalizeHashtag 去掉首尾空白和前导#
func NormalizeHashtag(tag string) string {
	return strings.TrimLeft(strings.TrimSpace(tag), "#")
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
