package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

// 键前缀类型
const (
	PrefixProcessed = "processed" // 已完成评论提取的视频
)

// DedupConfig 跨运行去重配置, Addr 为空表示不启用
type DedupConfig struct {
	Addr     string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// Deduplicator 基于redis记录已处理的视频, 键带过期时间
type Deduplicator struct {
	rdb      *redis.Client
	ttlHours int
}

// NewDeduplicator 使用已有客户端创建, ttlHours 为0时默认48小时
func NewDeduplicator(rdb *redis.Client, ttlHours int) *Deduplicator {
	if ttlHours <= 0 {
		ttlHours = 48
	}
	return &Deduplicator{rdb: rdb, ttlHours: ttlHours}
}

// OpenDeduplicator 连接redis并检查连通性
func OpenDeduplicator(ctx context.Context, cfg DedupConfig) (*Deduplicator, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("连接redis失败: %w", err)
	}
	return NewDeduplicator(rdb, cfg.TTLHours), nil
}

func key(prefixType, id string) string {
	return fmt.Sprintf("tiktok:%s:%s", prefixType, id)
}

// VideoKey 视频的去重ID, 优先使用数字ID
func VideoKey(videoURL string) string {
	if id := models.VideoIDFromURL(videoURL); id != "" {
		return id
	}
	return videoURL
}

// MarkAsSeen 标记为已处理
func (d *Deduplicator) MarkAsSeen(ctx context.Context, prefixType, id string) error {
	ttl := time.Duration(d.ttlHours) * time.Hour
	return d.rdb.Set(ctx, key(prefixType, id), "1", ttl).Err()
}

// CheckIfProcessed 是否已处理
func (d *Deduplicator) CheckIfProcessed(ctx context.Context, prefixType, id string) (bool, error) {
	exists, err := d.rdb.Exists(ctx, key(prefixType, id)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// FilterUnseen 过滤掉已处理的视频链接, 保持原有顺序
func (d *Deduplicator) FilterUnseen(ctx context.Context, prefixType string, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	pipe := d.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(urls))
	for i, u := range urls {
		cmds[i] = pipe.Exists(ctx, key(prefixType, VideoKey(u)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("批量查询去重记录失败: %w", err)
	}

	unseen := make([]string, 0, len(urls))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			unseen = append(unseen, urls[i])
		}
	}
	return unseen, nil
}

// Close 关闭redis连接
func (d *Deduplicator) Close() error {
	return d.rdb.Close()
}
