package storage

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/rs/zerolog"
)

func testRows(n int, text string) []models.ResultRow {
	rows := make([]models.ResultRow, n)
	for i := range rows {
		rows[i] = models.NewResultRow("skincare", "https://www.tiktok.com/@a/video/1", "a",
			models.CommentRecord{Username: "u", Text: text, Level: 1},
			&models.ProfileInfo{Links: []string{"https://x.io", "/@u"}})
	}
	return rows
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("打开CSV失败: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("读取CSV失败: %v", err)
	}
	return records
}

func TestCSVPath(t *testing.T) {
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	got := CSVPath("output", "skincare", started)
	want := filepath.Join("output", "skincare", "tiktok_data_skincare_20240309_140507.csv")
	if got != want {
		t.Errorf("CSVPath() = %q, want %q", got, want)
	}
}

func TestCSVWriter_HeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, "skincare", time.Now(), zerolog.Nop())

	if err := w.Append(testRows(3, "第一批")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := w.Append(testRows(2, "第二批, 带逗号")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	records := readCSV(t, w.Path())
	if len(records) != 1+3+2 {
		t.Fatalf("records = %d, want 6", len(records))
	}
	for i, col := range models.ResultColumns {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}
	if records[4][4] != "第二批, 带逗号" {
		t.Errorf("comment_text = %q", records[4][4])
	}
	if records[1][11] != "https://x.io|/@u" {
		t.Errorf("commenter_links = %q", records[1][11])
	}
}

func TestCSVWriter_EmptyInputIsNoop(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, "skincare", time.Now(), zerolog.Nop())

	if err := w.Append(nil); err != nil {
		t.Fatalf("Append(nil) error = %v", err)
	}
	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Error("空输入不应创建文件")
	}
}

func TestCSVWriter_ExistingFileKeepsSingleHeader(t *testing.T) {
	dir := t.TempDir()
	started := time.Now()

	first := NewCSVWriter(dir, "skincare", started, zerolog.Nop())
	if err := first.Append(testRows(1, "a")); err != nil {
		t.Fatal(err)
	}
	// 相同时间戳的新写入器指向同一文件
	second := NewCSVWriter(dir, "skincare", started, zerolog.Nop())
	if err := second.Append(testRows(1, "b")); err != nil {
		t.Fatal(err)
	}

	if got := len(readCSV(t, first.Path())); got != 3 {
		t.Errorf("records = %d, want 3", got)
	}
}

// failingCloser 写入成功但关闭失败的文件
type failingCloser struct {
	io.Writer
	closeErr error
}

func (f failingCloser) Close() error {
	return f.closeErr
}

func TestCSVWriter_CloseErrorReturned(t *testing.T) {
	errDisk := errors.New("磁盘已满")
	w := NewCSVWriter(t.TempDir(), "skincare", time.Now(), zerolog.Nop())
	w.openFile = func(path string) (io.WriteCloser, error) {
		return failingCloser{Writer: io.Discard, closeErr: errDisk}, nil
	}

	err := w.Append(testRows(2, "hi"))
	if !errors.Is(err, errDisk) {
		t.Errorf("Append() error = %v, want %v", err, errDisk)
	}
}
