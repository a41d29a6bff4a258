package crawlers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
	"github.com/gocolly/colly/v2"
)

// HTTPFetcher HTTP抓取引擎(使用Colly)
// 不渲染JS, 直接请求HTML后提取, 适用于静态站点
type HTTPFetcher struct {
	config         models.CrawlConfig
	headerProvider models.HeaderProvider

	collector *colly.Collector
}

// NewHTTPFetcher 创建HTTP抓取引擎
func NewHTTPFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) *HTTPFetcher {
	return &HTTPFetcher{
		config:         config,
		headerProvider: headerProvider,
	}
}

// Start 初始化Colly collector
func (hf *HTTPFetcher) Start(ctx context.Context) error {
	c := colly.NewCollector()

	// 跳过TLS证书验证, 允许访问自签名/过期证书的站点
	c.WithTransport(&http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	})

	c.SetRequestTimeout(time.Duration(hf.config.PageTimeout) * time.Second)

	hf.collector = c

	utils.Debugf("🔍 HTTP抓取引擎已初始化 (超时: %d秒)", hf.config.PageTimeout)
	utils.Warnf("HTTP引擎已配置为跳过HTTPS证书验证")
	return nil
}

// Fetch 抓取单个页面
func (hf *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (outcome models.FetchOutcome) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("页面抓取panic [%s]: %v", pageURL, r)
			outcome = models.FailureOutcome(pageURL, models.FailPanic,
				fmt.Sprintf("页面抓取panic: %v", r), time.Since(start).Seconds())
		}
	}()

	if ctx.Err() != nil {
		return models.FailureOutcome(pageURL, models.FailCancelled, "任务被中断", 0)
	}

	// 每个页面使用独立的collector克隆, 回调不跨页面串扰
	c := hf.collector.Clone()

	// 默认失败, 回调命中后覆盖
	outcome = models.FailureOutcome(pageURL, models.FailNoContent, "未收到响应", 0)

	c.OnRequest(func(r *colly.Request) {
		if hf.headerProvider == nil {
			return
		}
		headers, err := hf.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body, err := decompressBody(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s]: %v", pageURL, err)
			body = r.Body
		}

		title, markdown, err := ExtractContent(string(body))
		if err != nil {
			outcome = models.FailureOutcome(pageURL, models.FailNoContent,
				fmt.Sprintf("内容提取失败: %v", err), time.Since(start).Seconds())
			return
		}
		if markdown == "" {
			outcome = models.FailureOutcome(pageURL, models.FailNoContent, "页面无可提取内容", time.Since(start).Seconds())
			return
		}

		outcome = models.SuccessOutcome(pageURL, title, markdown, time.Since(start).Seconds())
	})

	c.OnError(func(r *colly.Response, err error) {
		failType := models.FailNetwork
		reason := fmt.Sprintf("请求失败: %v", err)
		if r != nil && r.StatusCode > 0 {
			failType = models.FailHTTP
			reason = fmt.Sprintf("HTTP %d", r.StatusCode)
		} else if classifyNavError(err) == models.FailTimeout {
			failType = models.FailTimeout
		}
		outcome = models.FailureOutcome(pageURL, failType, reason, time.Since(start).Seconds())
	})

	if err := c.Visit(pageURL); err != nil {
		return models.FailureOutcome(pageURL, models.FailNetwork,
			fmt.Sprintf("发起请求失败: %v", err), time.Since(start).Seconds())
	}
	c.Wait()

	return outcome
}

// Close 释放资源
func (hf *HTTPFetcher) Close() {
	utils.Debugf("HTTP抓取引擎已关闭")
}
