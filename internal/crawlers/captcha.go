package crawlers

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// captchaURLMarkers 验证页URL中的特征片段
var captchaURLMarkers = []string{"captcha", "verify"}

// DetectCaptcha 根据URL和DOM快照判断页面是否出现验证码
// 返回是否命中以及命中的标记
func DetectCaptcha(htmlContent, pageURL string, selectors []string) (bool, string) {
	lower := strings.ToLower(pageURL)
	for _, marker := range captchaURLMarkers {
		if strings.Contains(lower, marker) {
			return true, "url:" + marker
		}
	}

	if htmlContent == "" {
		return false, ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return false, ""
	}
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true, sel
		}
	}
	return false, ""
}
