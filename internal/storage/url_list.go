package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// URLListPath 视频链接列表路径 {urlsDir}/{hashtag}.json
func URLListPath(urlsDir, hashtag string) string {
	return filepath.Join(urlsDir, hashtag+".json")
}

// LoadURLs 读取JSON数组格式的视频链接列表
func LoadURLs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取链接列表失败: %w", err)
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("解析链接列表失败: %w", err)
	}
	return urls, nil
}

// AppendURLs 将新链接合并进已有列表并去重
// 已有顺序保持不变, 新链接按发现顺序追加; 返回合并后的数量
func AppendURLs(path string, urls []string) (int, error) {
	existing, err := LoadURLs(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return 0, err
		}
		existing = nil
	}

	seen := make(map[string]struct{}, len(existing)+len(urls))
	merged := make([]string, 0, len(existing)+len(urls))
	for _, list := range [][]string{existing, urls} {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			merged = append(merged, u)
		}
	}

	data, err := json.MarshalIndent(merged, "", "    ")
	if err != nil {
		return 0, fmt.Errorf("序列化链接列表失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("创建链接目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("写入链接列表失败: %w", err)
	}
	return len(merged), nil
}
