package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/core"
	"github.com/spf13/cobra"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name        string
		hashtag     string
		maxPosts    int
		batchSize   int
		maxComments int
		wantErr     bool
	}{
		{"全部有效", "skincare", 100, 3, 50, false},
		{"前导#允许", "#skincare", 100, 3, 50, false},
		{"零值沿用配置", "", 0, 0, 0, false},
		{"话题含空格", "skin care", 100, 3, 50, true},
		{"话题含斜杠", "skin/care", 100, 3, 50, true},
		{"视频数为负", "skincare", -1, 3, 50, true},
		{"视频数过大", "skincare", 10001, 3, 50, true},
		{"批大小过大", "skincare", 100, 101, 50, true},
		{"评论数为负", "skincare", 100, 3, -5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.hashtag, tt.maxPosts, tt.batchSize, tt.maxComments)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateURLFile(t *testing.T) {
	if err := ValidateURLFile(""); err == nil {
		t.Error("空路径应该报错")
	}
	if err := ValidateURLFile("urls_lists/skincare.json"); err != nil {
		t.Errorf("有效路径不应报错: %v", err)
	}
}

// newPromptCommand 构造带有 hashtag/max-posts 标志的命令
func newPromptCommand(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&hashtag, "hashtag", "", "")
	cmd.Flags().IntVar(&maxPosts, "max-posts", 0, "")
	_ = cmd.Flags().Parse(args)
	return cmd
}

func TestPromptMissing(t *testing.T) {
	t.Cleanup(func() {
		hashtag, maxPosts, appConfig = "", 0, nil
	})

	t.Run("交互读取话题和视频数", func(t *testing.T) {
		appConfig = &core.Config{}
		cmd := newPromptCommand()
		var out bytes.Buffer

		err := promptMissing(cmd, strings.NewReader("#skincare\nabc\n0\n25\n"), &out)
		if err != nil {
			t.Fatalf("promptMissing() error = %v", err)
		}
		if hashtag != "skincare" {
			t.Errorf("hashtag = %q, want skincare", hashtag)
		}
		if maxPosts != 25 {
			t.Errorf("maxPosts = %d, want 25", maxPosts)
		}
		if got := strings.Count(out.String(), "Please enter a positive number."); got != 2 {
			t.Errorf("无效输入提示次数 = %d, want 2", got)
		}
	})

	t.Run("参数已给出时不询问", func(t *testing.T) {
		appConfig = &core.Config{}
		cmd := newPromptCommand("--hashtag", "food", "--max-posts", "7")
		var out bytes.Buffer

		if err := promptMissing(cmd, strings.NewReader(""), &out); err != nil {
			t.Fatalf("promptMissing() error = %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("不应输出提示, got %q", out.String())
		}
		if hashtag != "food" || maxPosts != 7 {
			t.Errorf("hashtag=%q maxPosts=%d", hashtag, maxPosts)
		}
	})

	t.Run("空话题报错", func(t *testing.T) {
		appConfig = &core.Config{}
		hashtag = ""
		cmd := newPromptCommand()

		if err := promptMissing(cmd, strings.NewReader("\n"), &bytes.Buffer{}); err == nil {
			t.Error("空话题应该报错")
		}
	})

	t.Run("输入结束时报错", func(t *testing.T) {
		appConfig = &core.Config{}
		cmd := newPromptCommand("--hashtag", "food")

		if err := promptMissing(cmd, strings.NewReader(""), &bytes.Buffer{}); err == nil {
			t.Error("EOF 应该报错")
		}
	})
}
