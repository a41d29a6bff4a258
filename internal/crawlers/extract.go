package crawlers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// 参与Markdown提取的正文元素
const contentSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre"

// ExtractContent 从HTML中提取标题和Markdown正文
// 提取策略: 去掉脚本和样式后, 按正文元素顺序线性拼接,
// 标题层级映射为Markdown标题, 列表项映射为"- "前缀
func ExtractContent(htmlContent string) (title string, markdown string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", fmt.Errorf("解析HTML失败: %w", err)
	}

	// 非正文元素不参与提取
	doc.Find("script, style, noscript, iframe, svg, nav, footer").Remove()

	title = collapseSpace(doc.Find("title").First().Text())

	var b strings.Builder
	if title != "" {
		b.WriteString("# " + title + "\n\n")
	}

	// meta描述作为引言
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if d := collapseSpace(desc); d != "" {
			b.WriteString("> " + d + "\n\n")
		}
	}

	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		// pre保留原始换行, 其余元素压缩空白
		if goquery.NodeName(s) == "pre" {
			if code := strings.TrimSpace(s.Text()); code != "" {
				b.WriteString("```\n" + code + "\n```\n\n")
			}
			return
		}

		text := collapseSpace(nodeText(s))
		if text == "" {
			return
		}

		switch goquery.NodeName(s) {
		case "h1":
			b.WriteString("# " + text + "\n\n")
		case "h2":
			b.WriteString("## " + text + "\n\n")
		case "h3":
			b.WriteString("### " + text + "\n\n")
		case "h4":
			b.WriteString("#### " + text + "\n\n")
		case "h5":
			b.WriteString("##### " + text + "\n\n")
		case "h6":
			b.WriteString("###### " + text + "\n\n")
		case "li":
			b.WriteString("- " + text + "\n")
		case "blockquote":
			b.WriteString("> " + text + "\n\n")
		default:
			b.WriteString(text + "\n\n")
		}
	})

	return title, strings.TrimSpace(b.String()), nil
}

// nodeText 收集选中元素下的文本
// 直接遍历节点树, <br>转换为空格, <code>包上反引号
func nodeText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		walkText(node, &b)
	}
	return b.String()
}

func walkText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "br":
			b.WriteString(" ")
			return
		case "code":
			b.WriteString("`")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walkText(c, b)
			}
			b.WriteString("`")
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b)
	}
}

// collapseSpace 压缩连续空白为单个空格
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
