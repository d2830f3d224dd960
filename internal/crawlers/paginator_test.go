package crawlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/browser/browsertest"
	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/rs/zerolog"
)

const testVideoURL = "https://www.tiktok.com/@creator/video/7300000000000000001"

type testComment struct {
	user  string
	text  string
	level int
}

func commentContainer(c testComment) string {
	return fmt.Sprintf(`<div class="css-13wx63w-DivCommentContentWrapper e1g2efjf1">`+
		`<div class="css-1k8xzzl-DivUsernameContentWrapper"><a href="/@%s?lang=en"><p>%s</p></a></div>`+
		`<span data-e2e="comment-level-%d">%s</span></div>`, c.user, c.user, c.level, c.text)
}

func commentPage(comments ...testComment) string {
	var b strings.Builder
	b.WriteString(`<html><body><div data-e2e="comment-list">`)
	for _, c := range comments {
		b.WriteString(commentContainer(c))
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func newVideoDriver(doc string) *browsertest.Driver {
	d := browsertest.New()
	d.Document = doc
	d.Texts[`div[class*="DivCommentContentWrapper"]`] = "loaded"
	return d
}

func newTestPaginator(d *browsertest.Driver) *Paginator {
	j, _ := newTestJitter()
	return NewPaginator(d, j, DefaultSelectors(), DefaultPaginateOptions(), zerolog.Nop())
}

func TestParseComments_LevelsAndParents(t *testing.T) {
	page := commentPage(
		testComment{"alice", "第一条评论", 1},
		testComment{"bob", "回复alice", 2},
		testComment{"carol", "再回复", 2},
	)

	records, containers, err := ParseComments(page, DefaultSelectors())
	if err != nil {
		t.Fatalf("ParseComments() error = %v", err)
	}
	if containers != 3 {
		t.Errorf("containers = %d, want 3", containers)
	}

	want := []models.CommentRecord{
		{Username: "alice", Text: "第一条评论", Level: 1},
		{Username: "bob", Text: "回复alice", Level: 2, ParentUsername: "alice"},
		// 父评论取最近的前序兄弟容器
		{Username: "carol", Text: "再回复", Level: 2, ParentUsername: "bob"},
	}
	if len(records) != len(want) {
		t.Fatalf("records = %+v", records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("records[%d] = %+v, want %+v", i, records[i], want[i])
		}
	}
}

func TestParseComments_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []models.CommentRecord
	}{
		{
			name: "无前序兄弟的回复父评论为空",
			html: commentPage(testComment{"bob", "孤立回复", 3}),
			want: []models.CommentRecord{{Username: "bob", Text: "孤立回复", Level: 3}},
		},
		{
			name: "无层级标记时使用备用正文并视为一级",
			html: `<div class="DivCommentContentWrapper"><a class="link-diy-focus" href="/@dan">dan</a>` +
				`<span class="TUXText StyledTUXText-abc">备用正文</span></div>`,
			want: []models.CommentRecord{{Username: "dan", Text: "备用正文", Level: 1}},
		},
		{
			name: "title属性用户名",
			html: `<div class="DivCommentObjectWrapper"><div class="DivCardAvatar"><a title="erin" href="#"></a></div>` +
				`<span data-e2e="comment-level-1">hi</span></div>`,
			want: []models.CommentRecord{{Username: "erin", Text: "hi", Level: 1}},
		},
		{
			name: "一级标记为空时不再探测更深层级",
			html: `<div class="DivCommentContentWrapper"><a class="link-diy-focus" href="/@amy">amy</a>` +
				`<span data-e2e="comment-level-1"></span><span data-e2e="comment-level-2">nested reply text</span></div>`,
			want: nil,
		},
		{
			name: "一级标记为空时回退到备用正文",
			html: `<div class="DivCommentContentWrapper"><a class="link-diy-focus" href="/@amy">amy</a>` +
				`<span data-e2e="comment-level-1"></span><span data-e2e="comment-level-2">nested reply text</span>` +
				`<span class="TUXText StyledTUXText-abc">备用正文</span></div>`,
			want: []models.CommentRecord{{Username: "amy", Text: "备用正文", Level: 1}},
		},
		{
			name: "缺少正文的容器被丢弃",
			html: `<div class="DivCommentContentWrapper"><div class="DivUsernameContentWrapper"><a href="/@x">x</a></div></div>`,
			want: nil,
		},
		{
			name: "没有任何容器",
			html: `<html><body><p>nothing</p></body></html>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, _, err := ParseComments(tt.html, DefaultSelectors())
			if err != nil {
				t.Fatalf("ParseComments() error = %v", err)
			}
			if len(records) != len(tt.want) {
				t.Fatalf("records = %+v, want %+v", records, tt.want)
			}
			for i := range tt.want {
				if records[i] != tt.want[i] {
					t.Errorf("records[%d] = %+v, want %+v", i, records[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseComments_FirstMatchingContainerPatternWins(t *testing.T) {
	// 第一个模式无匹配, 使用第二个有匹配的模式
	page := `<div class="css-1bkazzl-DivCommentObjectWrapper"><a class="link-diy-focus" href="/@amy">amy</a>` +
		`<span data-e2e="comment-level-1">ok</span></div>`

	sel := DefaultSelectors()
	sel.CommentContainers = []string{`div[class*="Nope"]`, `div[class*="DivCommentObjectWrapper"]`}

	records, containers, err := ParseComments(page, sel)
	if err != nil {
		t.Fatalf("ParseComments() error = %v", err)
	}
	if containers != 1 || len(records) != 1 || records[0].Username != "amy" {
		t.Errorf("containers = %d, records = %+v", containers, records)
	}
}

func TestPaginator_StopsAfterFiveRoundsWithoutGrowth(t *testing.T) {
	d := newVideoDriver(commentPage(
		testComment{"alice", "好看", 1},
		testComment{"bob", "同意", 2},
	))
	p := newTestPaginator(d)

	res, err := p.Paginate(context.Background(), testVideoURL, 50)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(res.Comments) != 2 {
		t.Errorf("comments = %d, want 2", len(res.Comments))
	}
	if res.Rounds != 6 {
		t.Errorf("Rounds = %d, want 6 (1轮增长 + 5轮无增长)", res.Rounds)
	}
	if res.State != StateExhausted {
		t.Errorf("State = %v, want exhausted", res.State)
	}
}

func TestPaginator_DriftAbortsImmediately(t *testing.T) {
	d := newVideoDriver(commentPage(testComment{"alice", "好看", 1}))
	scrolls := 0
	d.OnScroll = func(d *browsertest.Driver, selector string, top int) {
		scrolls++
		// 第一轮滚动后被重定向到登录页
		if scrolls == 2 {
			d.URL = "https://www.tiktok.com/login?redirect_url=x"
		}
	}
	p := newTestPaginator(d)

	res, err := p.Paginate(context.Background(), testVideoURL, 50)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if res.State != StateDrifted {
		t.Errorf("State = %v, want drifted", res.State)
	}
	if res.Rounds != 1 || len(res.Comments) != 1 {
		t.Errorf("Rounds = %d, comments = %d; 漂移前的评论应保留", res.Rounds, len(res.Comments))
	}
}

func TestPaginator_CompletesAtCap(t *testing.T) {
	d := newVideoDriver(commentPage(
		testComment{"a", "1", 1},
		testComment{"b", "2", 1},
		testComment{"c", "3", 1},
		testComment{"d", "4", 1},
	))
	p := newTestPaginator(d)

	res, err := p.Paginate(context.Background(), testVideoURL, 3)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(res.Comments) != 3 || res.State != StateComplete {
		t.Errorf("comments = %d, State = %v", len(res.Comments), res.State)
	}
	if d.Scrolls != 0 {
		t.Errorf("达到上限后不应再滚动, scrolls = %d", d.Scrolls)
	}
}

func TestPaginator_AttemptCeiling(t *testing.T) {
	d := newVideoDriver("")
	n := 1
	d.OnScroll = func(d *browsertest.Driver, selector string, top int) { n++ }
	d.Render = func(d *browsertest.Driver) string {
		var comments []testComment
		for i := 0; i < n; i++ {
			comments = append(comments, testComment{fmt.Sprintf("u%d", i), "持续加载", 1})
		}
		return commentPage(comments...)
	}
	p := newTestPaginator(d)

	res, err := p.Paginate(context.Background(), testVideoURL, 1000)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if res.Rounds != 15 || res.State != StateExhausted {
		t.Errorf("Rounds = %d, State = %v", res.Rounds, res.State)
	}
}

func TestPaginator_ExactTupleDedup(t *testing.T) {
	d := newVideoDriver(commentPage(
		testComment{"alice", "好看", 1},
		testComment{"alice", "好看", 1},
		testComment{"alice", "好看", 2},
	))
	p := newTestPaginator(d)

	res, err := p.Paginate(context.Background(), testVideoURL, 50)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	// 层级不同的同名同文评论是不同记录
	if len(res.Comments) != 2 {
		t.Errorf("comments = %+v", res.Comments)
	}
}

func TestPaginator_NavigationError(t *testing.T) {
	d := newVideoDriver("")
	d.NavigateErr = errors.New("net::ERR_CONNECTION_RESET")
	p := newTestPaginator(d)

	if _, err := p.Paginate(context.Background(), testVideoURL, 50); err == nil {
		t.Error("导航失败时应返回错误")
	}
}

func TestPaginator_DebugDump(t *testing.T) {
	dir := t.TempDir()
	d := newVideoDriver("<html><body>empty</body></html>")
	j, _ := newTestJitter()
	opts := DefaultPaginateOptions()
	opts.DebugDumpDir = dir
	p := NewPaginator(d, j, DefaultSelectors(), opts, zerolog.Nop())

	if _, err := p.Paginate(context.Background(), testVideoURL, 50); err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Errorf("调试HTML数量 = %d, err = %v", len(entries), err)
	}
}
