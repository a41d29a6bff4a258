package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已中断
)

// 抓取引擎类型
const (
	EngineBrowser = "browser" // 无头浏览器渲染后抓取
	EngineHTTP    = "http"    // 纯HTTP请求抓取
)

// TaskStats 任务统计
type TaskStats struct {
	FoundURLs     int     `json:"found_urls"`     // sitemap中发现的URL数
	TargetURLs    int     `json:"target_urls"`    // 进入抓取队列的URL数
	ProcessedURLs int     `json:"processed_urls"` // 已处理URL数
	SuccessPages  int     `json:"success_pages"`  // 抓取成功页面数
	FailedPages   int     `json:"failed_pages"`   // 抓取失败页面数
	WrittenFiles  int     `json:"written_files"`  // 写入磁盘的文件数
	TotalSize     int64   `json:"total_size"`     // 写入内容总大小(字节)
	Duration      float64 `json:"duration"`       // 总耗时(秒)
	PeakMemoryMB  int     `json:"peak_memory_mb"` // 进程内存峰值(MB)
}

// CrawlConfig 抓取配置
type CrawlConfig struct {
	MaxConcurrent  int    `json:"max_concurrent" mapstructure:"max_concurrent"`   // 每批并发页面数 (默认:3)
	WaitTime       int    `json:"wait_time" mapstructure:"wait_time"`             // 页面加载后等待时间(秒) (默认:1)
	PageTimeout    int    `json:"page_timeout" mapstructure:"page_timeout"`       // 单页抓取超时(秒) (默认:30)
	SitemapTimeout int    `json:"sitemap_timeout" mapstructure:"sitemap_timeout"` // sitemap请求超时(秒) (默认:10)
	Engine         string `json:"engine" mapstructure:"engine"`                   // 抓取引擎: browser / http
	Headless       bool   `json:"headless" mapstructure:"headless"`               // 无头模式 (默认:true)
	AllPages       bool   `json:"all_pages" mapstructure:"all_pages"`             // 抓取sitemap全部页面而非根URL
	Resume         bool   `json:"resume" mapstructure:"resume"`                   // 是否从检查点恢复
	SaveMeta       bool   `json:"save_meta" mapstructure:"save_meta"`             // 每个页面额外保存_meta.json
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.MaxConcurrent < 1 || c.MaxConcurrent > 50 {
		return fmt.Errorf("并发数必须在1-50之间")
	}
	if c.WaitTime < 0 || c.WaitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间")
	}
	if c.PageTimeout < 1 || c.PageTimeout > 300 {
		return fmt.Errorf("页面超时必须在1-300秒之间")
	}
	if c.SitemapTimeout < 1 || c.SitemapTimeout > 300 {
		return fmt.Errorf("sitemap超时必须在1-300秒之间")
	}
	if c.Engine != EngineBrowser && c.Engine != EngineHTTP {
		return fmt.Errorf("未知的抓取引擎: %s (支持 browser / http)", c.Engine)
	}
	return nil
}

// DefaultCrawlConfig 默认抓取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		MaxConcurrent:  3,
		WaitTime:       1,
		PageTimeout:    30,
		SitemapTimeout: 10,
		Engine:         EngineBrowser,
		Headless:       true,
	}
}

// ScrapeTask 站点抓取任务
type ScrapeTask struct {
	// 基本信息
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	TargetURL   string     `json:"target_url"`             // 用户输入的站点URL
	SitemapURL  string     `json:"sitemap_url"`            // 推导出的sitemap地址
	Domain      string     `json:"domain"`                 // 站点域名(输出目录名)
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	// 配置参数
	Config CrawlConfig `json:"config"` // 抓取配置

	// 执行状态
	Status TaskStatus `json:"status"` // 任务状态

	// 统计信息
	Stats TaskStats `json:"stats"` // 任务统计

	// 错误信息
	ErrorMessage string `json:"error_message,omitempty"` // 错误消息
}

// NewScrapeTask 创建新任务
func NewScrapeTask(targetURL string, config CrawlConfig) (*ScrapeTask, error) {
	if err := ValidateURL(targetURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(targetURL)

	return &ScrapeTask{
		ID:        generateID(),
		TargetURL: targetURL,
		Domain:    parsed.Host,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
		Stats:     TaskStats{},
	}, nil
}

// Start 标记任务开始
func (t *ScrapeTask) Start() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// Finish 根据执行结果标记任务结束
func (t *ScrapeTask) Finish(status TaskStatus, err error) {
	now := time.Now()
	t.CompletedAt = &now
	t.Status = status
	if err != nil {
		t.ErrorMessage = err.Error()
	}
	if t.StartedAt != nil {
		t.Stats.Duration = now.Sub(*t.StartedAt).Seconds()
	}
}

// ToJSON 序列化为JSON
func (t *ScrapeTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON 从JSON反序列化
func (t *ScrapeTask) FromJSON(data []byte) error {
	return json.Unmarshal(data, t)
}
