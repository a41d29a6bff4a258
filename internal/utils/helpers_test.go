package utils

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadURLsFromFile(t *testing.T) {
	tempDir := t.TempDir()
	urlFile := filepath.Join(tempDir, "urls.txt")

	content := `# 注释行
https://example.com/docs

ftp://invalid.example.com
https://example.com/blog
`
	if err := os.WriteFile(urlFile, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	urls, err := ReadURLsFromFile(urlFile)
	if err != nil {
		t.Fatalf("ReadURLsFromFile() error = %v", err)
	}

	// 注释/空行/无效URL都应被跳过
	if len(urls) != 2 {
		t.Fatalf("URL数量 = %v, want 2", len(urls))
	}
	if urls[0] != "https://example.com/docs" || urls[1] != "https://example.com/blog" {
		t.Errorf("URL列表不匹配: %v", urls)
	}
}

func TestReadURLsFromFile_Empty(t *testing.T) {
	tempDir := t.TempDir()
	urlFile := filepath.Join(tempDir, "empty.txt")

	if err := os.WriteFile(urlFile, []byte("# 只有注释\n"), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}

	if _, err := ReadURLsFromFile(urlFile); err == nil {
		t.Error("空URL文件应返回错误")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "page.md")

	if err := WriteFileAtomic(target, []byte("# 标题\n正文"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("读取文件失败: %v", err)
	}
	if string(data) != "# 标题\n正文" {
		t.Errorf("文件内容不匹配: %q", string(data))
	}

	// 覆盖写入
	if err := WriteFileAtomic(target, []byte("新内容"), 0644); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}
	data, _ = os.ReadFile(target)
	if string(data) != "新内容" {
		t.Errorf("覆盖后内容不匹配: %q", string(data))
	}

	// 不应留下临时文件
	entries, _ := os.ReadDir(tempDir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("残留临时文件: %s", e.Name())
		}
	}
}

func TestHeaderRedactor(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"普通头部不脱敏", "User-Agent", "Mozilla/5.0", "Mozilla/5.0"},
		{"Bearer Token", "Authorization", "Bearer abc123xyz", "Bearer ***"},
		{"长API Key", "X-Api-Key", "abcd1234efgh5678", "abcd***5678"},
		{"短密钥完全隐藏", "X-Token", "short", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactHeaderValue(tt.header, tt.value); got != tt.want {
				t.Errorf("RedactHeaderValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHeaderRedactor_RedactToString(t *testing.T) {
	redactor := NewHeaderRedactor()

	headers := make(http.Header)
	headers.Set("User-Agent", "Mozilla/5.0")
	headers.Set("Authorization", "Bearer secret-token")

	out := redactor.RedactToString(headers)
	if strings.Contains(out, "secret-token") {
		t.Errorf("输出不应包含明文凭证: %s", out)
	}
	if !strings.Contains(out, "Mozilla/5.0") {
		t.Errorf("普通头部应原样输出: %s", out)
	}
}

func TestHeaderValidator(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name    string
		header  string
		value   string
		wantErr bool
	}{
		{"合法头部", "User-Agent", "Mozilla/5.0", false},
		{"自定义头部", "X-Custom-Header", "value", false},
		{"名称含非法字符", "User Agent", "value", true},
		{"禁止的头部", "Host", "example.com", true},
		{"值含控制字符", "X-Test", "bad\x01value", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.header, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
