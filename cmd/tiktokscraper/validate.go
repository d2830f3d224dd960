package main

import (
	"fmt"
	"strings"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
)

// ValidateFlags 验证命令行标志, 数值为0表示沿用配置文件
func ValidateFlags(hashtag string, maxPosts, batchSize, maxComments int) error {
	// 验证话题
	if tag := models.NormalizeHashtag(hashtag); tag != "" {
		if strings.ContainsAny(tag, "#/ ") {
			return fmt.Errorf("话题标签不能包含 '#', '/' 或空格: %s", hashtag)
		}
	}

	// 验证视频数
	if maxPosts < 0 || maxPosts > 10000 {
		return fmt.Errorf("最大视频数必须在1-10000之间,当前值: %d", maxPosts)
	}

	// 验证批大小
	if batchSize < 0 || batchSize > 100 {
		return fmt.Errorf("批大小必须在1-100之间,当前值: %d", batchSize)
	}

	// 验证评论数
	if maxComments < 0 || maxComments > 5000 {
		return fmt.Errorf("每个视频评论数必须在1-5000之间,当前值: %d", maxComments)
	}

	return nil
}

// ValidateURLFile 验证URL文件路径
func ValidateURLFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("URL文件路径不能为空")
	}
	// 文件存在性检查将在读取时进行
	return nil
}
