package crawlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
)

// ErrEngineStart 抓取引擎启动失败
// 批处理层把它视为致命错误, 单页失败则不会中断任务
var ErrEngineStart = errors.New("抓取引擎启动失败")

// Fetcher 页面抓取引擎接口
// browser引擎用无头浏览器渲染后提取, http引擎直接请求HTML
type Fetcher interface {
	// Start 启动引擎, 失败时返回包装了ErrEngineStart的错误
	Start(ctx context.Context) error

	// Fetch 抓取单个页面并提取Markdown内容
	// 任何失败(含panic)都转换为失败的FetchOutcome, 不向上抛错
	Fetch(ctx context.Context, pageURL string) models.FetchOutcome

	// Close 释放引擎资源
	Close()
}

// NewFetcher 按配置创建抓取引擎
func NewFetcher(config models.CrawlConfig, headerProvider models.HeaderProvider) (Fetcher, error) {
	switch config.Engine {
	case models.EngineBrowser:
		return NewBrowserFetcher(config, headerProvider), nil
	case models.EngineHTTP:
		return NewHTTPFetcher(config, headerProvider), nil
	default:
		return nil, fmt.Errorf("未知的抓取引擎: %s", config.Engine)
	}
}
