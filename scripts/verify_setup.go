package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/core"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/storage"
	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  tiktokscraper 运行环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	fmt.Printf("✅ Go版本: %s\n", runtime.Version())
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 检查浏览器
	if path, ok := launcher.LookPath(); ok {
		fmt.Printf("✅ 找到Chrome/Chromium: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到本地Chrome, 首次运行时会自动下载Chromium")
	}

	// 检查配置
	fmt.Println()
	fmt.Println("检查配置...")
	cfg, err := core.LoadConfig("")
	if err != nil {
		fmt.Printf("❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ 配置加载成功")

	// 检查登录凭据
	if _, err := core.LoadCredentials(cfg.Auth.EnvFile); err != nil {
		if errors.Is(err, core.ErrMissingCredentials) {
			fmt.Printf("⚠️  %s 中缺少 %s/%s, 将以未登录状态运行\n", cfg.Auth.EnvFile, core.EnvAccount, core.EnvPassword)
		} else {
			fmt.Printf("❌ %v\n", err)
			allOK = false
		}
	} else {
		fmt.Println("✅ 登录凭据已配置")
	}

	// 检查输出目录
	for _, dir := range []string{cfg.Output.BaseDir, cfg.Output.URLsDir} {
		if err := checkWritable(dir); err != nil {
			fmt.Printf("❌ 目录不可写 %s: %v\n", dir, err)
			allOK = false
		} else {
			fmt.Printf("✅ %s/\n", dir)
		}
	}

	// 检查redis
	if cfg.Dedup.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		store, err := storage.OpenDeduplicator(ctx, cfg.Dedup)
		cancel()
		if err != nil {
			fmt.Printf("⚠️  %v, 跨运行去重不可用\n", err)
		} else {
			store.Close()
			fmt.Printf("✅ redis可用: %s\n", cfg.Dedup.Addr)
		}
	} else {
		fmt.Println("ℹ️  未配置redis, 跨运行去重已关闭")
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/tiktokscraper' 构建项目")
		fmt.Println("  2. 运行 './tiktokscraper --help' 查看帮助")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}

// checkWritable 创建目录并尝试写入临时文件
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".verify-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}
