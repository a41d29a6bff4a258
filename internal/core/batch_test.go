package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
)

// stubFetcher 测试用的抓取引擎
type stubFetcher struct {
	mu       sync.Mutex
	fetched  []string
	outcomes map[string]models.FetchOutcome
	startErr error
	panicOn  string
}

func (sf *stubFetcher) Start(ctx context.Context) error {
	return sf.startErr
}

func (sf *stubFetcher) Fetch(ctx context.Context, pageURL string) models.FetchOutcome {
	if pageURL == sf.panicOn {
		panic("引擎崩溃: " + pageURL)
	}

	sf.mu.Lock()
	sf.fetched = append(sf.fetched, pageURL)
	sf.mu.Unlock()

	if outcome, ok := sf.outcomes[pageURL]; ok {
		return outcome
	}
	return models.SuccessOutcome(pageURL, "Stub Page", "# Stub Page\n\n内容", 0.1)
}

func (sf *stubFetcher) Close() {}

func testCrawlConfig() models.CrawlConfig {
	cfg := models.DefaultCrawlConfig()
	cfg.Engine = models.EngineHTTP
	cfg.WaitTime = 0
	return cfg
}

// TestBatchCrawler_Run 测试批量抓取的落盘和统计
func TestBatchCrawler_Run(t *testing.T) {
	outputDir := t.TempDir()
	fetcher := &stubFetcher{
		outcomes: map[string]models.FetchOutcome{
			"https://example.com/broken": models.FailureOutcome("https://example.com/broken", models.FailHTTP, "HTTP 500", 0.1),
		},
	}

	bc := NewBatchCrawler(testCrawlConfig(), outputDir, fetcher, nil, nil, nil, "", true)
	urls := []string{
		"https://example.com/docs",
		"https://example.com/blog",
		"https://example.com/broken",
	}

	if err := bc.Run(context.Background(), urls); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	stats := bc.GetStats()
	if stats.ProcessedURLs != 3 {
		t.Errorf("ProcessedURLs = %d, 期望 3", stats.ProcessedURLs)
	}
	if stats.SuccessPages != 2 {
		t.Errorf("SuccessPages = %d, 期望 2", stats.SuccessPages)
	}
	if stats.FailedPages != 1 {
		t.Errorf("FailedPages = %d, 期望 1", stats.FailedPages)
	}

	// 成功页面已落盘
	for _, name := range []string{"Docs.md", "Blog.md"} {
		path := filepath.Join(outputDir, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("期望文件存在: %s", path)
		}
	}

	if len(bc.GetFailedPages()) != 1 || bc.GetFailedPages()[0].FailType != models.FailHTTP {
		t.Errorf("失败页面记录错误: %+v", bc.GetFailedPages())
	}
}

// TestBatchCrawler_EngineStartFailure 测试引擎启动失败直接返回错误
func TestBatchCrawler_EngineStartFailure(t *testing.T) {
	fetcher := &stubFetcher{startErr: context.DeadlineExceeded}
	bc := NewBatchCrawler(testCrawlConfig(), t.TempDir(), fetcher, nil, nil, nil, "", true)

	err := bc.Run(context.Background(), []string{"https://example.com/"})
	if err == nil {
		t.Fatal("引擎启动失败应返回错误")
	}
	if bc.GetStats().ProcessedURLs != 0 {
		t.Errorf("启动失败时不应处理任何URL, 实际 %d", bc.GetStats().ProcessedURLs)
	}
}

// TestBatchCrawler_ChunkPanic 测试批次崩溃后整批记为失败且继续后续批次
func TestBatchCrawler_ChunkPanic(t *testing.T) {
	cfg := testCrawlConfig()
	cfg.MaxConcurrent = 1

	fetcher := &stubFetcher{panicOn: "https://example.com/bomb"}
	bc := NewBatchCrawler(cfg, t.TempDir(), fetcher, nil, nil, nil, "", true)

	urls := []string{
		"https://example.com/bomb",
		"https://example.com/after",
	}

	if err := bc.Run(context.Background(), urls); err != nil {
		t.Fatalf("批次崩溃不应让Run()返回错误: %v", err)
	}

	stats := bc.GetStats()
	if stats.FailedPages != 1 {
		t.Errorf("崩溃批次应记为失败, FailedPages = %d", stats.FailedPages)
	}
	if stats.SuccessPages != 1 {
		t.Errorf("崩溃后的批次应继续执行, SuccessPages = %d", stats.SuccessPages)
	}

	failed := bc.GetFailedPages()
	if len(failed) != 1 || failed[0].FailType != models.FailPanic {
		t.Errorf("崩溃批次失败类型应为panic: %+v", failed)
	}
}

// TestBatchCrawler_Checkpoint 测试检查点落盘和续传
func TestBatchCrawler_Checkpoint(t *testing.T) {
	outputDir := t.TempDir()
	checkpointPath := filepath.Join(outputDir, models.CheckpointFilename("example.com"))
	cfg := testCrawlConfig()

	checkpoint := models.NewCheckpoint("task-1", "https://example.com", cfg)
	fetcher := &stubFetcher{}
	bc := NewBatchCrawler(cfg, outputDir, fetcher, nil, nil, checkpoint, checkpointPath, true)

	urls := []string{"https://example.com/docs", "https://example.com/blog"}
	if err := bc.Run(context.Background(), urls); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	loaded, err := models.LoadCheckpointFromFile(checkpointPath)
	if err != nil {
		t.Fatalf("加载检查点失败: %v", err)
	}
	if len(loaded.ProcessedURLs) != 2 {
		t.Errorf("检查点应记录2个已处理URL, 实际 %d", len(loaded.ProcessedURLs))
	}

	// 续传: 已处理的URL不再抓取
	cfg.Resume = true
	fetcher2 := &stubFetcher{}
	bc2 := NewBatchCrawler(cfg, outputDir, fetcher2, nil, nil, loaded, checkpointPath, true)

	urls = append(urls, "https://example.com/new")
	if err := bc2.Run(context.Background(), urls); err != nil {
		t.Fatalf("续传Run() 错误: %v", err)
	}

	if len(fetcher2.fetched) != 1 || fetcher2.fetched[0] != "https://example.com/new" {
		t.Errorf("续传只应抓取新URL, 实际抓取: %v", fetcher2.fetched)
	}
}

// TestBatchCrawler_ContextCancel 测试取消后停止并保存检查点
func TestBatchCrawler_ContextCancel(t *testing.T) {
	outputDir := t.TempDir()
	checkpointPath := filepath.Join(outputDir, "checkpoint_cancel.json")
	cfg := testCrawlConfig()
	cfg.MaxConcurrent = 1

	ctx, cancel := context.WithCancel(context.Background())
	checkpoint := models.NewCheckpoint("task-1", "https://example.com", cfg)

	fetched := 0
	fetcher := &stubFetcher{}
	fetcher.outcomes = map[string]models.FetchOutcome{}
	// 第一批完成后取消
	bc := NewBatchCrawler(cfg, outputDir, &cancellingFetcher{inner: fetcher, cancel: cancel, after: &fetched}, nil, nil, checkpoint, checkpointPath, true)

	urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	err := bc.Run(ctx, urls)
	if err == nil {
		t.Fatal("取消后Run()应返回错误")
	}

	if bc.GetStats().ProcessedURLs >= len(urls) {
		t.Errorf("取消后不应处理完全部URL, 实际 %d", bc.GetStats().ProcessedURLs)
	}

	if _, statErr := os.Stat(checkpointPath); statErr != nil {
		t.Errorf("取消时应保存检查点: %v", statErr)
	}
}

// cancellingFetcher 第一次抓取后触发取消
type cancellingFetcher struct {
	inner  *stubFetcher
	cancel context.CancelFunc
	after  *int
}

func (cf *cancellingFetcher) Start(ctx context.Context) error { return nil }

func (cf *cancellingFetcher) Fetch(ctx context.Context, pageURL string) models.FetchOutcome {
	outcome := cf.inner.Fetch(ctx, pageURL)
	*cf.after++
	if *cf.after == 1 {
		cf.cancel()
	}
	return outcome
}

func (cf *cancellingFetcher) Close() {}

// TestBatchCrawler_SaveMeta 测试--save-meta的元数据落盘
func TestBatchCrawler_SaveMeta(t *testing.T) {
	outputDir := t.TempDir()
	cfg := testCrawlConfig()
	cfg.SaveMeta = true

	bc := NewBatchCrawler(cfg, outputDir, &stubFetcher{}, nil, nil, nil, "", true)
	if err := bc.Run(context.Background(), []string{"https://example.com/docs"}); err != nil {
		t.Fatalf("Run() 错误: %v", err)
	}

	metaPath := filepath.Join(outputDir, "Docs_meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("期望元数据文件存在: %v", err)
	}

	var meta models.PageMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("解析元数据失败: %v", err)
	}
	if meta.URL != "https://example.com/docs" || meta.Title != "Stub Page" {
		t.Errorf("元数据内容错误: %+v", meta)
	}
}
