package utils

import (
	"net/http"
	"sort"
	"strings"
)

// SensitiveKeywords 敏感头部名称关键字 (用于脱敏)
var SensitiveKeywords = []string{
	"authorization",
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"api-key",
}

// HeaderRedactor 头部脱敏器
// 日志和 --validate-config 输出前先经过脱敏
type HeaderRedactor struct {
	sensitiveKeywords []string
}

// NewHeaderRedactor 创建头部脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitiveHeader 根据名称关键字判断头部是否敏感
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range hr.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactHeaderValue 脱敏单个头部值
func (hr *HeaderRedactor) RedactHeaderValue(name, value string) string {
	if !hr.IsSensitiveHeader(name) {
		return value
	}

	// Bearer Token仅保留前缀
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}

	// 较长密钥显示前4位+后4位
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}

	// 短密钥完全隐藏
	return "***"
}

// Redact 脱敏整个http.Header, 返回安全的字符串map (用于日志)
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}

		// 只取第一个值 (大多数头部只有一个值)
		result[name] = hr.RedactHeaderValue(name, values[0])
	}
	return result
}

// RedactToString 脱敏后按头部名称排序输出, 格式: "Header1: value1, Header2: value2"
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	names := make([]string, 0, len(redacted))
	for name := range redacted {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+redacted[name])
	}
	return strings.Join(parts, ", ")
}
