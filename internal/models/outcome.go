package models

// 抓取失败类型
const (
	FailTimeout   = "timeout"       // 页面加载或抓取超时
	FailNetwork   = "network_error" // 网络层错误(连接失败/DNS等)
	FailHTTP      = "http_error"    // 非2xx响应
	FailNoContent = "no_content"    // 页面无可提取内容
	FailPanic     = "panic"         // 抓取协程panic
	FailCancelled = "cancelled"     // 任务被中断
)

// FetchOutcome 单个页面的抓取结果
// 成功与失败统一用此结构表达, 批处理层据此分流
type FetchOutcome struct {
	URL      string  `json:"url"`                  // 页面URL
	Success  bool    `json:"success"`              // 是否抓取成功
	Title    string  `json:"title,omitempty"`      // 页面标题
	Markdown string  `json:"-"`                    // 提取出的Markdown内容
	Size     int64   `json:"size"`                 // 内容大小(字节)
	FailType string  `json:"fail_type,omitempty"`  // 失败类型
	Reason   string  `json:"reason,omitempty"`     // 失败原因描述
	Elapsed  float64 `json:"elapsed"`              // 耗时(秒)
}

// SuccessOutcome 构造成功结果
func SuccessOutcome(pageURL, title, markdown string, elapsed float64) FetchOutcome {
	return FetchOutcome{
		URL:      pageURL,
		Success:  true,
		Title:    title,
		Markdown: markdown,
		Size:     int64(len(markdown)),
		Elapsed:  elapsed,
	}
}

// FailureOutcome 构造失败结果
func FailureOutcome(pageURL, failType, reason string, elapsed float64) FetchOutcome {
	return FetchOutcome{
		URL:      pageURL,
		Success:  false,
		FailType: failType,
		Reason:   reason,
		Elapsed:  elapsed,
	}
}
