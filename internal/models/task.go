package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// TaskStats 任务统计
type TaskStats struct {
	CollectedURLs   int     `json:"collected_urls"`   // 收集到的视频URL数
	ProcessedVideos int     `json:"processed_videos"` // 处理成功的视频数
	SkippedVideos   int     `json:"skipped_videos"`   // 跳过的视频数(已处理)
	FailedVideos    int     `json:"failed_videos"`    // 失败的视频数
	Comments        int     `json:"comments"`         // 评论总数
	Rows            int     `json:"rows"`             // 写入的行数
	ProfilesFound   int     `json:"profiles_found"`   // 成功获取的主页数
	ProfilesMissing int     `json:"profiles_missing"` // 获取失败的主页数
	SessionRestarts int     `json:"session_restarts"` // 浏览器会话重建次数
	Duration        float64 `json:"duration"`         // 总耗时(秒)
}

// Merge 合并另一份统计
func (s *TaskStats) Merge(other TaskStats) {
	s.CollectedURLs += other.CollectedURLs
	s.ProcessedVideos += other.ProcessedVideos
	s.SkippedVideos += other.SkippedVideos
	s.FailedVideos += other.FailedVideos
	s.Comments += other.Comments
	s.Rows += other.Rows
	s.ProfilesFound += other.ProfilesFound
	s.ProfilesMissing += other.ProfilesMissing
	s.SessionRestarts += other.SessionRestarts
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Hashtag       string `json:"hashtag" mapstructure:"hashtag"`               // 话题标签(不含#)
	MaxPosts      int    `json:"max_posts" mapstructure:"max_posts"`           // 最多收集的视频数 (默认:2000)
	BatchSize     int    `json:"batch_size" mapstructure:"batch_size"`         // 每批处理的视频数 (默认:3)
	MaxComments   int    `json:"max_comments" mapstructure:"max_comments"`     // 每个视频最多评论数 (默认:50)
	CacheProfiles bool   `json:"cache_profiles" mapstructure:"cache_profiles"` // 运行内缓存用户主页
	Headless      bool   `json:"headless" mapstructure:"headless"`             // 无头模式
	SkipLogin     bool   `json:"skip_login" mapstructure:"skip_login"`         // 跳过登录
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if strings.TrimSpace(c.Hashtag) == "" {
		return fmt.Errorf("话题标签不能为空")
	}
	if strings.ContainsAny(c.Hashtag, "#/ ") {
		return fmt.Errorf("话题标签不能包含 '#', '/' 或空格: %s", c.Hashtag)
	}
	if c.MaxPosts < 1 {
		return fmt.Errorf("最大视频数必须大于0")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("批大小必须大于0")
	}
	if c.MaxComments < 1 {
		return fmt.Errorf("最大评论数必须大于0")
	}
	return nil
}

// CrawlTask 一次话题爬取任务
type CrawlTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	Hashtag     string     `json:"hashtag"`                // 话题标签
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config CrawlConfig `json:"config"`
	Status TaskStatus  `json:"status"`
	Stats  TaskStats   `json:"stats"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewCrawlTask 创建新任务
func NewCrawlTask(config CrawlConfig) (*CrawlTask, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &CrawlTask{
		ID:        generateID(),
		Hashtag:   config.Hashtag,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
	}, nil
}

// Start 标记任务开始
func (t *CrawlTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 标记任务结束, err为nil表示成功
func (t *CrawlTask) Finish(err error) {
	now := time.Now()
	t.CompletedAt = &now
	if t.StartedAt != nil {
		t.Stats.Duration = now.Sub(*t.StartedAt).Seconds()
	}

	switch {
	case err == nil:
		t.Status = TaskStatusCompleted
	case isCancellation(err):
		t.Status = TaskStatusCancelled
		t.ErrorMessage = err.Error()
	default:
		t.Status = TaskStatusFailed
		t.ErrorMessage = err.Error()
	}
}

// ToJSON 序列化为JSON
func (t *CrawlTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON 从JSON反序列化
func (t *CrawlTask) FromJSON(data []byte) error {
	return json.Unmarshal(data, t)
}
