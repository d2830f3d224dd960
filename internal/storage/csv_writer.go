// Package storage 负责结果CSV、视频链接列表和跨运行去重记录的持久化
package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/rs/zerolog"
)

// CSVPath 返回一次运行的结果文件路径
// {baseDir}/{hashtag}/tiktok_data_{hashtag}_{YYYYmmdd_HHMMSS}.csv
func CSVPath(baseDir, hashtag string, startedAt time.Time) string {
	name := fmt.Sprintf("tiktok_data_%s_%s.csv", hashtag, startedAt.Format("20060102_150405"))
	return filepath.Join(baseDir, hashtag, name)
}

// CSVWriter 以追加方式写入结果行, 表头只在文件新建时写一次
type CSVWriter struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex

	// openFile 以追加方式打开结果文件
	openFile func(path string) (io.WriteCloser, error)
}

func openAppend(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// NewCSVWriter 创建写入器, 同一次运行的所有视频写入同一个文件
func NewCSVWriter(baseDir, hashtag string, startedAt time.Time, logger zerolog.Logger) *CSVWriter {
	return &CSVWriter{
		path:     CSVPath(baseDir, hashtag, startedAt),
		logger:   logger,
		openFile: openAppend,
	}
}

// Path 结果文件路径
func (w *CSVWriter) Path() string {
	return w.path
}

// Append 追加一批结果行, 空输入不做任何事
// 关闭文件失败同样视为写入失败
func (w *CSVWriter) Append(rows []models.ResultRow) (err error) {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	writeHeader := true
	if info, err := os.Stat(w.path); err == nil && info.Size() > 0 {
		writeHeader = false
	}

	f, err := w.openFile(w.path)
	if err != nil {
		return fmt.Errorf("打开CSV文件失败: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("关闭CSV文件失败: %w", closeErr)
		}
	}()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(models.ResultColumns); err != nil {
			return fmt.Errorf("写入CSV表头失败: %w", err)
		}
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("写入CSV行失败: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("刷新CSV失败: %w", err)
	}

	w.logger.Debug().Int("rows", len(rows)).Str("file", w.path).Msg("结果已写入CSV")
	return nil
}
