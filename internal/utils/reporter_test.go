package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
)

func TestReporter_GenerateReport(t *testing.T) {
	dir := t.TempDir()
	reporter := NewReporter(dir, "skincare")

	report := &models.CrawlReport{
		TaskID:  "run-1",
		Hashtag: "skincare",
		Status:  models.TaskStatusCompleted,
		Stats:   models.TaskStats{ProcessedVideos: 2, Rows: 7},
		FailedVideos: []models.FailedVideoInfo{
			{URL: "https://www.tiktok.com/@a/video/1", ErrorType: "browser_crashed", ErrorMsg: "浏览器崩溃"},
		},
	}

	path, err := reporter.GenerateReport(report)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	var decoded models.CrawlReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	if decoded.Stats.Rows != 7 {
		t.Errorf("Rows = %d, want 7", decoded.Stats.Rows)
	}

	failedPath := filepath.Join(reporter.ReportsDir(), "failed_videos_run-1.json")
	if _, err := os.Stat(failedPath); err != nil {
		t.Errorf("失败视频列表未生成: %v", err)
	}
}

func TestNewProgressBar(t *testing.T) {
	bar := NewProgressBar(3, "测试")
	if err := bar.Add(1); err != nil {
		t.Errorf("Add() error = %v", err)
	}
}
