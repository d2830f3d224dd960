package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
	hashtag   string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, hashtag string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		hashtag:   hashtag,
	}
}

// ReportsDir 报告目录
func (r *Reporter) ReportsDir() string {
	return filepath.Join(r.outputDir, r.hashtag, "reports")
}

// GenerateReport 生成运行报告, 返回主报告路径
func (r *Reporter) GenerateReport(report *models.CrawlReport) (string, error) {
	reportsDir := r.ReportsDir()
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	name := fmt.Sprintf("crawl_report_%s.json", report.TaskID)
	if err := r.saveJSONReport(reportsDir, name, report); err != nil {
		return "", err
	}

	// 失败视频单独保存, 便于下次只重跑这些URL
	if len(report.FailedVideos) > 0 {
		failed := make([]string, 0, len(report.FailedVideos))
		for _, v := range report.FailedVideos {
			failed = append(failed, v.URL)
		}
		if err := r.saveJSONReport(reportsDir, fmt.Sprintf("failed_videos_%s.json", report.TaskID), failed); err != nil {
			return "", err
		}
	}

	Infof("✅ 报告已生成: %s", reportsDir)
	return filepath.Join(reportsDir, name), nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	path := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
