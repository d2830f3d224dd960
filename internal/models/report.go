package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 爬取报告
type CrawlReport struct {
	// 任务信息
	TaskID  string     `json:"task_id"`
	Hashtag string     `json:"hashtag"`
	Status  TaskStatus `json:"status"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 失败视频
	FailedVideos []FailedVideoInfo `json:"failed_videos"`

	// 输出路径
	OutputFile  string `json:"output_file"`   // CSV文件
	URLListFile string `json:"url_list_file"` // 视频URL列表

	// 浏览器资源快照
	Resource *ResourceSnapshot `json:"resource,omitempty"`

	// 整个运行期间(含收集阶段)浏览器会话重建次数
	BrowserRestarts int `json:"browser_restarts"`

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// FailedVideoInfo 失败视频信息
type FailedVideoInfo struct {
	URL       string `json:"url"`
	ErrorType string `json:"error_type"` // browser_crashed, navigation, persist等
	ErrorMsg  string `json:"error_msg"`
}

// ResourceSnapshot 浏览器进程资源占用
type ResourceSnapshot struct {
	PID        int32   `json:"pid"`
	RSS        uint64  `json:"rss"`         // 常驻内存(字节)
	CPUPercent float64 `json:"cpu_percent"` // CPU占用
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
