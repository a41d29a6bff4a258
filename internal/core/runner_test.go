package core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/SiteMapScraper/internal/crawlers"
	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
)

// TestDeriveSitemapURL 测试sitemap地址推导
func TestDeriveSitemapURL(t *testing.T) {
	tests := []struct {
		name            string
		input           string
		expectedTarget  string
		expectedSitemap string
		wantErr         bool
	}{
		{
			name:            "裸域名补全协议",
			input:           "example.com",
			expectedTarget:  "https://example.com",
			expectedSitemap: "https://example.com/sitemap.xml",
		},
		{
			name:            "末尾斜杠被去掉",
			input:           "https://example.com/",
			expectedTarget:  "https://example.com/",
			expectedSitemap: "https://example.com/sitemap.xml",
		},
		{
			name:            "带路径的URL",
			input:           "https://example.com/docs",
			expectedTarget:  "https://example.com/docs",
			expectedSitemap: "https://example.com/docs/sitemap.xml",
		},
		{
			name:            "已指向xml时原样使用",
			input:           "https://example.com/custom-sitemap.xml",
			expectedTarget:  "https://example.com/custom-sitemap.xml",
			expectedSitemap: "https://example.com/custom-sitemap.xml",
		},
		{
			name:            "xml扩展名大小写不敏感",
			input:           "https://example.com/Sitemap.XML",
			expectedTarget:  "https://example.com/Sitemap.XML",
			expectedSitemap: "https://example.com/Sitemap.XML",
		},
		{
			name:    "空输入",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "不支持的协议",
			input:   "ftp://example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, sitemap, err := DeriveSitemapURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("期望返回错误")
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveSitemapURL() 错误: %v", err)
			}
			if target != tt.expectedTarget {
				t.Errorf("target = %s, 期望 %s", target, tt.expectedTarget)
			}
			if sitemap != tt.expectedSitemap {
				t.Errorf("sitemap = %s, 期望 %s", sitemap, tt.expectedSitemap)
			}
		})
	}
}

// TestReduceToRoots 测试页面URL归并为站点根
func TestReduceToRoots(t *testing.T) {
	pages := []string{
		"https://docs.example.com/guide/intro",
		"https://docs.example.com/guide/setup",
		"https://blog.example.com/post-1",
		"https://docs.example.com/api",
		"not-a-url",
	}

	roots := ReduceToRoots(pages)
	expected := []string{
		"https://blog.example.com/",
		"https://docs.example.com/",
	}

	if len(roots) != len(expected) {
		t.Fatalf("期望 %d 个根URL, 实际 %v", len(expected), roots)
	}
	for i, want := range expected {
		if roots[i] != want {
			t.Errorf("roots[%d] = %s, 期望 %s", i, roots[i], want)
		}
	}
}

// newTestRunner 构造使用stub引擎的协调器
func newTestRunner(t *testing.T, cfg models.CrawlConfig, dryRun bool) (*Runner, *stubFetcher) {
	t.Helper()

	appConfig := &Config{
		Crawl:  cfg,
		Output: OutputConfig{BaseDir: t.TempDir()},
	}

	fetcher := &stubFetcher{}
	runner := NewRunner(appConfig, nil, nil, dryRun, 0)
	runner.newFetcher = func(models.CrawlConfig, models.HeaderProvider) (crawlers.Fetcher, error) {
		return fetcher, nil
	}
	return runner, fetcher
}

// sitemapServer 返回只有一个urlset的测试站点
func sitemapServer(t *testing.T, locs ...string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<urlset>`)
		for _, loc := range locs {
			fmt.Fprintf(w, `<url><loc>%s</loc></url>`, loc)
		}
		fmt.Fprint(w, `</urlset>`)
	}))
}

// TestRunner_DefaultRootsOnly 测试默认模式只抓取站点根URL
func TestRunner_DefaultRootsOnly(t *testing.T) {
	server := sitemapServer(t,
		"https://docs.example.com/guide/intro",
		"https://docs.example.com/guide/setup",
		"https://blog.example.com/post-1",
	)
	defer server.Close()

	runner, fetcher := newTestRunner(t, testCrawlConfig(), false)
	if err := runner.Run(context.Background(), server.URL); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	if len(fetcher.fetched) != 2 {
		t.Fatalf("默认模式应只抓取2个根URL, 实际: %v", fetcher.fetched)
	}
	if fetcher.fetched[0] != "https://blog.example.com/" && fetcher.fetched[1] != "https://blog.example.com/" {
		t.Errorf("根URL缺失: %v", fetcher.fetched)
	}
}

// TestRunner_AllPages 测试--all-pages抓取全部页面
func TestRunner_AllPages(t *testing.T) {
	server := sitemapServer(t,
		"https://docs.example.com/guide/intro",
		"https://docs.example.com/guide/setup",
	)
	defer server.Close()

	cfg := testCrawlConfig()
	cfg.AllPages = true

	runner, fetcher := newTestRunner(t, cfg, false)
	if err := runner.Run(context.Background(), server.URL); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	if len(fetcher.fetched) != 2 {
		t.Errorf("--all-pages应抓取全部页面, 实际: %v", fetcher.fetched)
	}
}

// TestRunner_DryRun 测试试运行模式不发起任何抓取
func TestRunner_DryRun(t *testing.T) {
	server := sitemapServer(t, "https://docs.example.com/guide/intro")
	defer server.Close()

	runner, fetcher := newTestRunner(t, testCrawlConfig(), true)
	if err := runner.Run(context.Background(), server.URL); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	if len(fetcher.fetched) != 0 {
		t.Errorf("试运行模式不应抓取页面, 实际: %v", fetcher.fetched)
	}
}

// TestRunner_EmptySitemapFallback 测试sitemap无结果时回退到站点根URL
func TestRunner_EmptySitemapFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	runner, fetcher := newTestRunner(t, testCrawlConfig(), false)
	if err := runner.Run(context.Background(), server.URL); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != server.URL+"/" {
		t.Errorf("应回退抓取站点根URL, 实际: %v", fetcher.fetched)
	}
}

// TestRunner_GeneratesReport 测试任务结束后报告落盘
func TestRunner_GeneratesReport(t *testing.T) {
	server := sitemapServer(t, "https://docs.example.com/guide/intro")
	defer server.Close()

	cfg := testCrawlConfig()
	cfg.AllPages = true

	appConfig := &Config{
		Crawl:  cfg,
		Output: OutputConfig{BaseDir: t.TempDir()},
	}
	runner := NewRunner(appConfig, nil, nil, false, 0)
	runner.newFetcher = func(models.CrawlConfig, models.HeaderProvider) (crawlers.Fetcher, error) {
		return &stubFetcher{}, nil
	}

	if err := runner.Run(context.Background(), server.URL); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	// 输出目录按域名命名
	entries, err := os.ReadDir(appConfig.Output.BaseDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("期望1个域名输出目录: %v", err)
	}

	reportPath := filepath.Join(appConfig.Output.BaseDir, entries[0].Name(), "reports", "crawl_report.json")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("期望报告文件存在: %v", err)
	}

	var report models.CrawlReport
	if err := report.FromJSON(data); err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	if report.Stats.SuccessPages != 1 {
		t.Errorf("报告统计错误: %+v", report.Stats)
	}
}

// TestRunner_InvalidURL 测试非法输入直接报错
func TestRunner_InvalidURL(t *testing.T) {
	runner, _ := newTestRunner(t, testCrawlConfig(), false)
	if err := runner.Run(context.Background(), "ftp://example.com"); err == nil {
		t.Error("非法URL应返回错误")
	}
}
