package crawlers

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SleepFunc 可中断的等待函数
type SleepFunc func(ctx context.Context, d time.Duration) error

// Jitter 随机延迟与随机步长
type Jitter struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// NewJitter 创建随机延迟工具, sleep为nil时使用真实等待
func NewJitter(src rand.Source, sleep SleepFunc) *Jitter {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	if sleep == nil {
		sleep = contextSleep
	}
	return &Jitter{rng: rand.New(src), sleep: sleep}
}

// Duration 返回 [min, max] 内均匀分布的时长
func (j *Jitter) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return min + time.Duration(j.rng.Int63n(int64(max-min)+1))
}

// Int 返回 [min, max] 内均匀分布的整数
func (j *Jitter) Int(min, max int) int {
	if max <= min {
		return min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return min + j.rng.Intn(max-min+1)
}

// Sleep 随机等待 [min, max]
func (j *Jitter) Sleep(ctx context.Context, min, max time.Duration) error {
	return j.sleep(ctx, j.Duration(min, max))
}

// Seconds 以秒为单位的 Sleep
func (j *Jitter) Seconds(ctx context.Context, min, max float64) error {
	return j.Sleep(ctx, secs(min), secs(max))
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
