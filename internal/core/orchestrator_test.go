package core

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/crawlers"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeSession struct {
	restarts []bool // 依次返回, 用完后一直存活
	err      error
	calls    int
}

func (s *fakeSession) EnsureAlive(ctx context.Context) (bool, error) {
	s.calls++
	if s.err != nil {
		return true, s.err
	}
	if len(s.restarts) > 0 {
		r := s.restarts[0]
		s.restarts = s.restarts[1:]
		return r, nil
	}
	return false, nil
}

type fakeComments struct {
	pages  map[string][]models.CommentRecord
	errs   map[string]error
	panics map[string]bool
	calls  []string
}

func (f *fakeComments) Paginate(ctx context.Context, videoURL string, maxComments int) (*crawlers.PaginateResult, error) {
	f.calls = append(f.calls, videoURL)
	if f.panics[videoURL] {
		panic("target closed")
	}
	if err := f.errs[videoURL]; err != nil {
		return nil, err
	}
	comments := f.pages[videoURL]
	if len(comments) > maxComments {
		comments = comments[:maxComments]
	}
	return &crawlers.PaginateResult{Comments: comments, State: crawlers.StateExhausted, OriginalURL: videoURL}, nil
}

type fakeProfiles struct {
	profiles map[string]*models.ProfileInfo
	panicOn  string
	calls    []string
}

func (f *fakeProfiles) Extract(ctx context.Context, username string) (*models.ProfileInfo, error) {
	f.calls = append(f.calls, username)
	if username == f.panicOn {
		panic("browser gone")
	}
	if p, ok := f.profiles[username]; ok {
		return p, nil
	}
	return nil, errors.New("profile page timeout")
}

type memSink struct {
	batches [][]models.ResultRow
	err     error
}

func (m *memSink) Append(rows []models.ResultRow) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, rows)
	return nil
}

func (m *memSink) rows() []models.ResultRow {
	var all []models.ResultRow
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

type countingProgress struct{ n int }

func (p *countingProgress) Add(n int) error {
	p.n += n
	return nil
}

type sleepLog struct{ durations []time.Duration }

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.durations = append(s.durations, d)
	return ctx.Err()
}

func videoURL(author, id string) string {
	return "https://www.tiktok.com/@" + author + "/video/" + id
}

type harness struct {
	session  *fakeSession
	comments *fakeComments
	profiles *fakeProfiles
	sink     *memSink
	progress *countingProgress
	sleeps   *sleepLog
}

func newHarness() *harness {
	return &harness{
		session: &fakeSession{},
		comments: &fakeComments{
			pages: map[string][]models.CommentRecord{
				videoURL("creator", "1"): {
					{Username: "alice", Text: "好看", Level: 1},
					{Username: "bob", Text: "同意", Level: 2, ParentUsername: "alice"},
				},
				videoURL("creator", "2"): {
					{Username: "alice", Text: "又来了", Level: 1},
				},
				videoURL("other", "3"): {
					{Username: "carol", Text: "哈哈", Level: 1},
				},
			},
			errs:   map[string]error{},
			panics: map[string]bool{},
		},
		profiles: &fakeProfiles{profiles: map[string]*models.ProfileInfo{
			"alice": {Bio: "mail me a@b.co", Email: "a@b.co", Links: []string{"https://a.link"}},
			"carol": {Bio: "hi"},
		}},
		sink:     &memSink{},
		progress: &countingProgress{},
		sleeps:   &sleepLog{},
	}
}

func (h *harness) orchestrator(store ProcessedStore, batchSize int) *Orchestrator {
	opts := DefaultOrchestratorOptions()
	opts.BatchSize = batchSize
	deps := OrchestratorDeps{
		Session:  h.session,
		Comments: h.comments,
		Profiles: h.profiles,
		Sink:     h.sink,
		Progress: h.progress,
	}
	if store != nil {
		deps.Store = store
	}
	jitter := crawlers.NewJitter(rand.NewSource(1), h.sleeps.sleep)
	return NewOrchestrator(deps, opts, jitter, zerolog.Nop())
}

func TestOrchestrator_Run(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(nil, 2)
	urls := []string{videoURL("creator", "1"), videoURL("creator", "2"), videoURL("other", "3")}

	summary, err := o.Run(context.Background(), "skincare", urls)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Stats.ProcessedVideos != 3 || summary.Stats.FailedVideos != 0 {
		t.Errorf("stats = %+v", summary.Stats)
	}
	if summary.Stats.Rows != 4 || summary.Stats.Comments != 4 {
		t.Errorf("rows = %d, comments = %d, want 4/4", summary.Stats.Rows, summary.Stats.Comments)
	}
	// bob 的主页获取失败, 行仍然输出但主页字段为空
	if summary.Stats.ProfilesMissing != 1 || summary.Stats.ProfilesFound != 3 {
		t.Errorf("profiles found/missing = %d/%d", summary.Stats.ProfilesFound, summary.Stats.ProfilesMissing)
	}

	// 每个视频落盘一次
	if len(h.sink.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(h.sink.batches))
	}
	rows := h.sink.rows()
	if rows[0].PostAuthor != "creator" || rows[3].PostAuthor != "other" {
		t.Errorf("post_author = %q, %q", rows[0].PostAuthor, rows[3].PostAuthor)
	}
	if rows[0].CommenterEmail != "a@b.co" || rows[0].CommenterLinks[0] != "https://a.link" {
		t.Errorf("row[0] = %+v", rows[0])
	}
	if rows[1].CommenterBio != "" || rows[1].ParentComment != "alice" {
		t.Errorf("row[1] = %+v", rows[1])
	}

	// 没有缓存: alice 被访问两次
	if got := strings.Join(h.profiles.calls, ","); got != "alice,bob,alice,carol" {
		t.Errorf("profile calls = %s", got)
	}

	// 3个视频分2批, 批次之间休息一次
	rests := 0
	for _, d := range h.sleeps.durations {
		if d >= 5*time.Second && d <= 10*time.Second {
			rests++
		}
	}
	if rests != 1 {
		t.Errorf("batch rests = %d, want 1 (%v)", rests, h.sleeps.durations)
	}
	if h.progress.n != 3 || o.Processed() != 3 {
		t.Errorf("progress = %d, processed = %d", h.progress.n, o.Processed())
	}
	if h.session.calls != 3 {
		t.Errorf("每个视频前都应探测会话, calls = %d", h.session.calls)
	}
}

func TestOrchestrator_SkipsDuplicateURLs(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(nil, 3)
	u := videoURL("creator", "1")

	summary, err := o.Run(context.Background(), "skincare", []string{u, u})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.comments.calls) != 1 || summary.Stats.SkippedVideos != 1 {
		t.Errorf("paginate calls = %d, skipped = %d", len(h.comments.calls), summary.Stats.SkippedVideos)
	}
	if h.progress.n != 2 {
		t.Errorf("跳过的视频也应推进进度, progress = %d", h.progress.n)
	}
}

func TestOrchestrator_PerVideoErrorsAreSkipped(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness, url string)
		wantType string
	}{
		{
			name:     "导航失败",
			setup:    func(h *harness, url string) { h.comments.errs[url] = errors.New("net::ERR_TIMED_OUT") },
			wantType: "navigation",
		},
		{
			name:     "浏览器panic",
			setup:    func(h *harness, url string) { h.comments.panics[url] = true },
			wantType: "browser_crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			bad := videoURL("creator", "2")
			tt.setup(h, bad)
			o := h.orchestrator(nil, 3)

			summary, err := o.Run(context.Background(), "skincare",
				[]string{videoURL("creator", "1"), bad, videoURL("other", "3")})
			if err != nil {
				t.Fatalf("单个视频失败不应中止运行: %v", err)
			}
			if summary.Stats.ProcessedVideos != 2 || summary.Stats.FailedVideos != 1 {
				t.Errorf("stats = %+v", summary.Stats)
			}
			if len(summary.Failed) != 1 || summary.Failed[0].ErrorType != tt.wantType {
				t.Errorf("failed = %+v", summary.Failed)
			}
			if o.Processed() != 2 {
				t.Errorf("失败的视频不应标记为已处理")
			}
		})
	}
}

func TestOrchestrator_PanicMidVideoPersistsPartialRows(t *testing.T) {
	h := newHarness()
	h.profiles.panicOn = "bob"
	o := h.orchestrator(nil, 3)
	u := videoURL("creator", "1")

	summary, err := o.Run(context.Background(), "skincare", []string{u})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows := h.sink.rows()
	if len(rows) != 1 || rows[0].CommenterUsername != "alice" {
		t.Errorf("rows = %+v, 期望保留 panic 前的一行", rows)
	}
	if !errors.Is(summary.Results[0].Err, browser.ErrBrowserCrashed) {
		t.Errorf("err = %v, want ErrBrowserCrashed", summary.Results[0].Err)
	}
	if o.Processed() != 0 {
		t.Error("panic 的视频不应标记为已处理")
	}
}

func TestOrchestrator_PersistFailure(t *testing.T) {
	h := newHarness()
	h.sink.err = errors.New("disk full")
	o := h.orchestrator(nil, 3)

	summary, err := o.Run(context.Background(), "skincare", []string{videoURL("creator", "1")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Stats.FailedVideos != 1 || summary.Failed[0].ErrorType != "persist" {
		t.Errorf("failed = %+v", summary.Failed)
	}
}

func TestOrchestrator_SessionRecovery(t *testing.T) {
	h := newHarness()
	h.session.restarts = []bool{false, true}
	o := h.orchestrator(nil, 3)

	summary, err := o.Run(context.Background(), "skincare",
		[]string{videoURL("creator", "1"), videoURL("creator", "2")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Stats.SessionRestarts != 1 {
		t.Errorf("SessionRestarts = %d, want 1", summary.Stats.SessionRestarts)
	}
	if summary.Stats.ProcessedVideos != 2 {
		t.Errorf("重建后应继续处理当前视频, processed = %d", summary.Stats.ProcessedVideos)
	}
}

func TestOrchestrator_SessionRecreateFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.session.err = browser.ErrMaxRetriesReached
	o := h.orchestrator(nil, 3)

	_, err := o.Run(context.Background(), "skincare", []string{videoURL("creator", "1")})
	if !errors.Is(err, browser.ErrMaxRetriesReached) {
		t.Fatalf("Run() error = %v, want ErrMaxRetriesReached", err)
	}
	if len(h.comments.calls) != 0 {
		t.Error("会话不可用时不应继续处理视频")
	}
}

func TestOrchestrator_Cancellation(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(nil, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Run(ctx, "skincare", []string{videoURL("creator", "1")}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestOrchestrator_AuthorFallsBackToFirstCommenter(t *testing.T) {
	h := newHarness()
	u := "https://vm.tiktok.com/ZMabc/"
	h.comments.pages[u] = []models.CommentRecord{{Username: "carol", Text: "x", Level: 1}}
	o := h.orchestrator(nil, 3)

	if _, err := o.Run(context.Background(), "skincare", []string{u}); err != nil {
		t.Fatal(err)
	}
	if got := h.sink.rows()[0].PostAuthor; got != "carol" {
		t.Errorf("post_author = %q, want carol", got)
	}
}

func TestOrchestrator_CrossRunStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("启动miniredis失败: %v", err)
	}
	defer mr.Close()
	store := storage.NewDeduplicator(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 24)
	defer store.Close()

	ctx := context.Background()
	done := videoURL("creator", "1")
	if err := store.MarkAsSeen(ctx, storage.PrefixProcessed, storage.VideoKey(done)); err != nil {
		t.Fatal(err)
	}

	h := newHarness()
	o := h.orchestrator(store, 3)
	fresh := videoURL("creator", "2")

	summary, err := o.Run(ctx, "skincare", []string{done, fresh})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Stats.SkippedVideos != 1 || len(h.comments.calls) != 1 {
		t.Errorf("skipped = %d, calls = %v", summary.Stats.SkippedVideos, h.comments.calls)
	}
	if !mr.Exists("tiktok:processed:2") {
		t.Error("完成的视频应写入去重记录")
	}
}

func TestOrchestrator_WritesCSV(t *testing.T) {
	h := newHarness()
	writer := storage.NewCSVWriter(t.TempDir(), "skincare", time.Now(), zerolog.Nop())
	opts := DefaultOrchestratorOptions()
	o := NewOrchestrator(OrchestratorDeps{
		Session:  h.session,
		Comments: h.comments,
		Profiles: h.profiles,
		Sink:     writer,
	}, opts, crawlers.NewJitter(rand.NewSource(1), h.sleeps.sleep), zerolog.Nop())

	if _, err := o.Run(context.Background(), "skincare",
		[]string{videoURL("creator", "1"), videoURL("creator", "2")}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatalf("读取CSV失败: %v", err)
	}
	// 表头 + 3行
	if lines := strings.Count(string(data), "\n"); lines != 4 {
		t.Errorf("lines = %d, want 4", lines)
	}
	if !strings.HasPrefix(string(data), strings.Join(models.ResultColumns, ",")) {
		t.Errorf("表头错误:\n%s", data)
	}
}
