package crawlers

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
)

// sitemap的XML结构 (sitemaps.org协议)
type sitemapLoc struct {
	Loc string `xml:"loc"`
}

type urlsetDoc struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapIndexDoc struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

// SitemapResolver sitemap解析器
// 从入口sitemap出发递归展开嵌套sitemap, 汇总全部页面URL
type SitemapResolver struct {
	client         *http.Client
	headerProvider models.HeaderProvider
	sink           models.EventSink
}

// NewSitemapResolver 创建sitemap解析器
func NewSitemapResolver(timeoutSec int, headerProvider models.HeaderProvider, sink models.EventSink) *SitemapResolver {
	if sink == nil {
		sink = models.NopSink{}
	}
	return &SitemapResolver{
		client: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
			},
		},
		headerProvider: headerProvider,
		sink:           sink,
	}
}

// Resolve 从入口sitemap解析出全部页面URL
// 单个sitemap请求或解析失败只记录警告, 不中断整体解析;
// 已处理过的sitemap不会重复展开, 循环引用因此安全终止
func (sr *SitemapResolver) Resolve(ctx context.Context, initialSitemapURL string) []string {
	pages := make([]string, 0)
	pageSet := make(map[string]bool)

	queue := []string{initialSitemapURL}
	queued := map[string]bool{initialSitemapURL: true}
	processed := make(map[string]bool)

	for len(queue) > 0 {
		if ctx.Err() != nil {
			utils.Warnf("sitemap解析被中断, 已处理 %d 个sitemap", len(processed))
			return pages
		}

		current := queue[0]
		queue = queue[1:]

		if processed[current] {
			continue
		}
		processed[current] = true

		sr.sink.SitemapFound(current)
		utils.Debugf("🔍 处理sitemap: %s", current)

		content, err := sr.fetchSitemap(ctx, current)
		if err != nil {
			utils.Warnf("获取sitemap失败 [%s]: %v", current, err)
			sr.sink.Warn(fmt.Sprintf("获取sitemap失败: %s", current))
			continue
		}

		children, pageURLs, err := parseSitemap(content)
		if err != nil {
			utils.Warnf("解析sitemap失败 [%s]: %v", current, err)
			sr.sink.Warn(fmt.Sprintf("解析sitemap失败: %s", current))
			continue
		}

		// 嵌套sitemap进入队列
		for _, child := range children {
			if !queued[child] {
				queued[child] = true
				queue = append(queue, child)
			}
		}

		for _, pageURL := range pageURLs {
			// urlset中以.xml结尾的loc按嵌套sitemap处理
			// 部分站点把子sitemap直接列在urlset里
			if strings.HasSuffix(strings.ToLower(pageURL), ".xml") {
				if !queued[pageURL] {
					queued[pageURL] = true
					queue = append(queue, pageURL)
				}
				continue
			}

			if !pageSet[pageURL] {
				pageSet[pageURL] = true
				pages = append(pages, pageURL)
				sr.sink.URLDiscovered(pageURL)
			}
		}
	}

	utils.Infof("📊 sitemap解析完成: %d 个sitemap, %d 个页面URL", len(processed), len(pages))
	return pages
}

// fetchSitemap 请求单个sitemap
func (sr *SitemapResolver) fetchSitemap(ctx context.Context, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}

	// 应用自定义HTTP头部
	if sr.headerProvider != nil {
		headers, err := sr.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
		} else {
			for name, values := range headers {
				if len(values) > 0 {
					req.Header.Set(name, values[0])
				}
			}
		}
	}

	resp, err := sr.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	content, err := decompressBody(resp.Header.Get("Content-Encoding"), body)
	if err != nil {
		return nil, fmt.Errorf("解压响应失败: %w", err)
	}

	return content, nil
}

// parseSitemap 解析sitemap内容
// 根元素为sitemapindex时返回嵌套sitemap列表, urlset时返回页面URL列表
func parseSitemap(content []byte) (children []string, pageURLs []string, err error) {
	root, err := detectRootElement(content)
	if err != nil {
		return nil, nil, err
	}

	switch root {
	case "sitemapindex":
		var doc sitemapIndexDoc
		if err := xml.Unmarshal(content, &doc); err != nil {
			return nil, nil, fmt.Errorf("解析sitemapindex失败: %w", err)
		}
		for _, sm := range doc.Sitemaps {
			loc := strings.TrimSpace(sm.Loc)
			if loc != "" {
				children = append(children, loc)
			}
		}
		return children, nil, nil

	case "urlset":
		var doc urlsetDoc
		if err := xml.Unmarshal(content, &doc); err != nil {
			return nil, nil, fmt.Errorf("解析urlset失败: %w", err)
		}
		for _, u := range doc.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc != "" {
				pageURLs = append(pageURLs, loc)
			}
		}
		return nil, pageURLs, nil

	default:
		return nil, nil, fmt.Errorf("未知的sitemap根元素: <%s>", root)
	}
}

// detectRootElement 返回XML文档根元素的本地名称
func detectRootElement(content []byte) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(content)))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", fmt.Errorf("文档中没有XML元素")
		}
		if err != nil {
			return "", fmt.Errorf("XML格式无效: %w", err)
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}
