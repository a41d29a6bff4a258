package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 抓取报告
type CrawlReport struct {
	// 任务信息
	TaskID     string `json:"task_id"`
	TargetURL  string `json:"target_url"`
	SitemapURL string `json:"sitemap_url"`
	Domain     string `json:"domain"`
	Engine     string `json:"engine"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats TaskStats `json:"stats"`

	// 页面列表
	SuccessPages []PageInfo       `json:"success_pages"` // 抓取成功的页面
	FailedPages  []FailedPageInfo `json:"failed_pages"`  // 抓取失败的页面

	// 输出路径
	OutputDir string `json:"output_dir"` // 输出目录

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// PageInfo 成功页面信息
type PageInfo struct {
	URL       string    `json:"url"`
	FilePath  string    `json:"file_path"`
	Title     string    `json:"title"`
	Size      int64     `json:"size"`
	Elapsed   float64   `json:"elapsed"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FailedPageInfo 失败页面信息
type FailedPageInfo struct {
	URL      string  `json:"url"`
	FailType string  `json:"fail_type"` // timeout, network_error, http_error等
	ErrorMsg string  `json:"error_msg"`
	Elapsed  float64 `json:"elapsed"`
}

// PageMeta 单页元数据, --save-meta 时与Markdown同目录落盘
type PageMeta struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	FilePath  string    `json:"file_path"`
	Size      int64     `json:"size"`
	Elapsed   float64   `json:"elapsed"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
