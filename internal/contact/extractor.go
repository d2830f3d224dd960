// Package contact 从个人简介文本中识别联系方式
package contact

import (
	"regexp"
	"strings"

	emailaddress "github.com/mcnijman/go-emailaddress"
)

// Info 识别出的联系方式, 每个字段取第一个匹配
type Info struct {
	Email    string
	WhatsApp string
	Phone    string
}

// Empty 是否没有识别出任何联系方式
func (i Info) Empty() bool {
	return i.Email == "" && i.WhatsApp == "" && i.Phone == ""
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// 按顺序尝试
	whatsAppPatterns = []*regexp.Regexp{
		regexp.MustCompile(`wa\.me/\d+`),
		regexp.MustCompile(`whatsapp\.com/\d+`),
		regexp.MustCompile(`WhatsApp:?\s*[+]?\d+`),
		regexp.MustCompile(`WA:?\s*[+]?\d+`),
	}

	phonePattern = regexp.MustCompile(`(?:(?:\+|00)[1-9]\d{0,3}[\s.-]?)?(?:\d{1,4}[\s.-]?){1,4}\d{4}`)
)

// Extract 识别文本中的邮箱、WhatsApp 和电话
func Extract(text string) Info {
	var info Info
	if strings.TrimSpace(text) == "" {
		return info
	}

	info.Email = findEmail(text)

	for _, re := range whatsAppPatterns {
		if m := re.FindString(text); m != "" {
			info.WhatsApp = m
			break
		}
	}

	info.Phone = phonePattern.FindString(text)
	return info
}

// findEmail 优先使用 RFC 5322 解析, 失败时退回简单正则
func findEmail(text string) string {
	if found := emailaddress.Find([]byte(text), false); len(found) > 0 {
		return found[0].String()
	}
	return emailPattern.FindString(text)
}
