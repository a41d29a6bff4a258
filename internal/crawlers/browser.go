package crawlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserFetcher 浏览器抓取引擎(使用Rod)
// 渲染页面后提取正文, 适用于依赖JS渲染的站点
type BrowserFetcher struct {
	config         models.CrawlConfig
	headerProvider models.HeaderProvider

	browser *rod.Browser
	pool    *pagePool
}

// NewBrowserFetcher 创建浏览器抓取引擎
func NewBrowserFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) *BrowserFetcher {
	return &BrowserFetcher{
		config:         config,
		headerProvider: headerProvider,
	}
}

// Start 启动浏览器
func (bf *BrowserFetcher) Start(ctx context.Context) error {
	l := launcher.New().Headless(bf.config.Headless)

	// 跳过TLS证书验证, 允许访问自签名/过期证书的站点
	l = l.Set("ignore-certificate-errors")

	// 容器和CI环境下的稳定性参数
	l = l.Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: 启动浏览器失败: %v", ErrEngineStart, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("%w: 连接浏览器失败: %v", ErrEngineStart, err)
	}

	bf.browser = browser
	bf.pool = newPagePool(browser, bf.config.MaxConcurrent)

	utils.Debugf("🌐 浏览器已启动: %s", controlURL)
	utils.Warnf("浏览器已配置为跳过HTTPS证书验证")
	return nil
}

// Fetch 抓取单个页面
func (bf *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (outcome models.FetchOutcome) {
	start := time.Now()

	// 页面操作的panic统一转换为失败结果
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

	page, err := bf.pool.acquire(ctx)
	if err != nil {
		return models.FailureOutcome(pageURL, models.FailCancelled,
			fmt.Sprintf("获取标签页失败: %v", err), time.Since(start).Seconds())
	}
	defer bf.pool.release(page)

	// 单页超时和任务取消都作用在页面克隆上
	p := page.Context(ctx).Timeout(time.Duration(bf.config.PageTimeout) * time.Second)

	bf.applyHeaders(p)

	if err := p.Navigate(pageURL); err != nil {
		return models.FailureOutcome(pageURL, classifyNavError(err),
			fmt.Sprintf("导航失败: %v", err), time.Since(start).Seconds())
	}

	if err := p.WaitLoad(); err != nil {
		return models.FailureOutcome(pageURL, classifyNavError(err),
			fmt.Sprintf("等待页面加载失败: %v", err), time.Since(start).Seconds())
	}

	// 额外等待, 给动态内容留出渲染时间
	if bf.config.WaitTime > 0 {
		select {
		case <-time.After(time.Duration(bf.config.WaitTime) * time.Second):
		case <-ctx.Done():
			return models.FailureOutcome(pageURL, models.FailCancelled, "任务被中断", time.Since(start).Seconds())
		}
	}

	htmlContent, err := p.HTML()
	if err != nil {
		return models.FailureOutcome(pageURL, classifyNavError(err),
			fmt.Sprintf("获取页面HTML失败: %v", err), time.Since(start).Seconds())
	}

	title, markdown, err := ExtractContent(htmlContent)
	if err != nil {
		return models.FailureOutcome(pageURL, models.FailNoContent,
			fmt.Sprintf("内容提取失败: %v", err), time.Since(start).Seconds())
	}
	if markdown == "" {
		return models.FailureOutcome(pageURL, models.FailNoContent, "页面无可提取内容", time.Since(start).Seconds())
	}

	return models.SuccessOutcome(pageURL, title, markdown, time.Since(start).Seconds())
}

// Close 关闭浏览器
func (bf *BrowserFetcher) Close() {
	if bf.pool != nil {
		bf.pool.close()
	}
	if bf.browser != nil {
		if err := bf.browser.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
		utils.Debugf("浏览器已关闭")
	}
}

// applyHeaders 把自定义HTTP头部应用到标签页
func (bf *BrowserFetcher) applyHeaders(page *rod.Page) {
	if bf.headerProvider == nil {
		return
	}

	headers, err := bf.headerProvider.GetHeaders()
	if err != nil {
		utils.Warnf("获取HTTP头部失败: %v", err)
		return
	}
	if len(headers) == 0 {
		return
	}

	pairs := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) > 0 {
			pairs = append(pairs, name, values[0])
		}
	}

	if _, err := page.SetExtraHeaders(pairs); err != nil {
		utils.Warnf("设置页面头部失败: %v", err)
	}
}

// classifyNavError 把rod错误归类为失败类型
func classifyNavError(err error) string {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout") {
		return models.FailTimeout
	}
	if strings.Contains(msg, "context canceled") {
		return models.FailCancelled
	}
	return models.FailNetwork
}
