package models

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// SSE事件类型
const (
	EventStart          = "START"
	EventStatus         = "STATUS"
	EventWarn           = "WARN"
	EventSitemapFound   = "SITEMAP"
	EventURLFound       = "FOUND_URL"
	EventDryRunURL      = "DRY_RUN_URL"
	EventSuccess        = "SUCCESS"
	EventFail           = "FAIL"
	EventProgressUpdate = "PROGRESS_UPDATE"
	EventRestore        = "RESTORE_PROGRESS"
	EventSummary        = "SUMMARY"
	EventCancelled      = "CANCELLED"
	EventEnd            = "END"
)

// SuccessEvent 页面抓取成功事件
type SuccessEvent struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Preview string  `json:"preview"` // 内容前100字符
	Elapsed float64 `json:"elapsed"`
}

// FailEvent 页面抓取失败事件
type FailEvent struct {
	URL      string  `json:"url"`
	FailType string  `json:"fail_type"`
	Error    string  `json:"error"`
	Elapsed  float64 `json:"elapsed"`
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Success   int     `json:"success"`
	Failed    int     `json:"failed"`
	Percent   float64 `json:"percent"`
}

// SummaryEvent 任务汇总事件
type SummaryEvent struct {
	TargetURL    string  `json:"target_url"`
	TotalURLs    int     `json:"total_urls"`
	SuccessPages int     `json:"success_pages"`
	FailedPages  int     `json:"failed_pages"`
	WrittenFiles int     `json:"written_files"`
	Duration     float64 `json:"duration"`
	PeakMemoryMB int     `json:"peak_memory_mb"`
	OutputDir    string  `json:"output_dir"`
}

// EventSink 抓取过程事件出口
// 供外部程序(如桌面端)实时消费抓取进度
type EventSink interface {
	Status(msg string)                // 阶段性状态信息
	Warn(msg string)                  // 非致命警告
	SitemapFound(sitemapURL string)   // 发现并处理一个sitemap
	URLDiscovered(pageURL string)     // 从sitemap中发现一个页面URL
	FetchSuccess(e SuccessEvent)      // 单页抓取成功
	FetchFailure(e FailEvent)         // 单页抓取失败
	Progress(e ProgressEvent)         // 抓取进度推进
	Summary(e SummaryEvent)           // 任务结束汇总
	Cancelled(msg string)             // 任务被中断
}

// NopSink 空实现, 未开启事件输出时使用
type NopSink struct{}

func (NopSink) Status(string)          {}
func (NopSink) Warn(string)            {}
func (NopSink) SitemapFound(string)    {}
func (NopSink) URLDiscovered(string)   {}
func (NopSink) FetchSuccess(SuccessEvent) {}
func (NopSink) FetchFailure(FailEvent) {}
func (NopSink) Progress(ProgressEvent) {}
func (NopSink) Summary(SummaryEvent)   {}
func (NopSink) Cancelled(string)       {}

// SSESink 以 "SSE_DATA:<类型>:<数据>" 的行格式向流输出事件
// 每个事件占一行, 消费端按前缀切分即可解析
type SSESink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSSESink 创建SSE事件输出
func NewSSESink(w io.Writer) *SSESink {
	return &SSESink{w: w}
}

// emit 输出单条事件, data为字符串时原样输出, 否则序列化为JSON
func (s *SSESink) emit(eventType string, data interface{}) {
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return
		}
		payload = string(b)
	}
	// 换行会破坏行协议, 统一压成空格
	payload = strings.ReplaceAll(payload, "\n", " ")

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "SSE_DATA:%s:%s\n", eventType, payload)
}

func (s *SSESink) Start(msg string)           { s.emit(EventStart, msg) }
func (s *SSESink) Status(msg string)          { s.emit(EventStatus, msg) }
func (s *SSESink) Warn(msg string)            { s.emit(EventWarn, msg) }
func (s *SSESink) SitemapFound(u string)      { s.emit(EventSitemapFound, u) }
func (s *SSESink) URLDiscovered(u string)     { s.emit(EventURLFound, u) }
func (s *SSESink) DryRunURL(u string)         { s.emit(EventDryRunURL, u) }
func (s *SSESink) FetchSuccess(e SuccessEvent) { s.emit(EventSuccess, e) }
func (s *SSESink) FetchFailure(e FailEvent)   { s.emit(EventFail, e) }
func (s *SSESink) Progress(e ProgressEvent)   { s.emit(EventProgressUpdate, e) }
func (s *SSESink) Restore(processed int)      { s.emit(EventRestore, map[string]int{"processed": processed}) }
func (s *SSESink) Summary(e SummaryEvent)     { s.emit(EventSummary, e) }
func (s *SSESink) Cancelled(msg string)       { s.emit(EventCancelled, msg) }
func (s *SSESink) End(msg string)             { s.emit(EventEnd, msg) }
