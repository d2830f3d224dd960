package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aven-sun-borderx/tiktok-hashtag-comments-scraper/internal/models"
	"github.com/spf13/cobra"
)

// promptMissing 未通过参数给出话题或视频数时交互询问
func promptMissing(cmd *cobra.Command, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	if !cmd.Flags().Changed("hashtag") && appConfig.Crawl.Hashtag == "" {
		tag, err := promptLine(reader, out, "Enter the hashtag to scrape (without #): ")
		if err != nil {
			return err
		}
		hashtag = models.NormalizeHashtag(tag)
		if hashtag == "" {
			return fmt.Errorf("话题标签不能为空")
		}
	}

	if !cmd.Flags().Changed("max-posts") {
		n, err := promptInt(reader, out, "Enter the maximum number of posts to scrape: ")
		if err != nil {
			return err
		}
		maxPosts = n
	}
	return nil
}

func promptLine(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("读取输入失败: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptInt 读取正整数, 输入无效时重新询问
func promptInt(reader *bufio.Reader, out io.Writer, prompt string) (int, error) {
	for {
		line, err := promptLine(reader, out, prompt)
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(line)
		if convErr == nil && n > 0 {
			return n, nil
		}
		fmt.Fprintln(out, "Please enter a positive number.")
	}
}
