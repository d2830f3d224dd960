package crawlers

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractVideoLinks 从DOM快照中按文档顺序提取 href 含 pattern 的链接
// 相对链接按 baseURL 转为绝对URL, 结果可能包含重复项
func ExtractVideoLinks(htmlContent string, baseURL string, pattern string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("解析baseURL失败: %w", err)
	}

	var links []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if strings.Contains(attr.Val, pattern) {
					if linkURL, err := url.Parse(strings.TrimSpace(attr.Val)); err == nil {
						links = append(links, base.ResolveReference(linkURL).String())
					}
				}
				break
			}
		}

		// 递归处理子节点
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}

	f(doc)

	return links, nil
}
