package core

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/RecoveryAshes/SiteMapScraper/internal/crawlers"
	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
)

// Runner 抓取任务协调器
// 串起完整流程: 推导sitemap地址, 解析页面URL, 批量抓取, 生成报告
type Runner struct {
	appConfig      *Config
	headerProvider models.HeaderProvider
	sink           models.EventSink
	dryRun         bool
	verbosity      int

	// newFetcher 引擎工厂, 测试时可替换
	newFetcher func(models.CrawlConfig, models.HeaderProvider) (crawlers.Fetcher, error)
}

// NewRunner 创建任务协调器
func NewRunner(appConfig *Config, headerProvider models.HeaderProvider, sink models.EventSink, dryRun bool, verbosity int) *Runner {
	if sink == nil {
		sink = models.NopSink{}
	}
	return &Runner{
		appConfig:      appConfig,
		headerProvider: headerProvider,
		sink:           sink,
		dryRun:         dryRun,
		verbosity:      verbosity,
		newFetcher:     crawlers.NewFetcher,
	}
}

// Run 执行单个站点的抓取任务
func (r *Runner) Run(ctx context.Context, rawURL string) error {
	targetURL, sitemapURL, err := DeriveSitemapURL(rawURL)
	if err != nil {
		return err
	}

	crawlCfg := r.appConfig.GetCrawlConfig()
	task, err := models.NewScrapeTask(targetURL, crawlCfg)
	if err != nil {
		return err
	}
	task.SitemapURL = sitemapURL
	task.Start()

	if sse, ok := r.sink.(*models.SSESink); ok {
		sse.Start(targetURL)
		defer sse.End(task.ID)
	}

	utils.Infof("🚀 开始抓取任务")
	utils.Infof("目标URL: %s", targetURL)
	utils.Infof("sitemap: %s", sitemapURL)
	utils.Infof("域名: %s", task.Domain)
	utils.Infof("抓取引擎: %s", crawlCfg.Engine)

	// 解析sitemap
	r.sink.Status(fmt.Sprintf("解析sitemap: %s", sitemapURL))
	resolver := crawlers.NewSitemapResolver(crawlCfg.SitemapTimeout, r.headerProvider, r.sink)
	pages := resolver.Resolve(ctx, sitemapURL)

	if ctx.Err() != nil {
		r.sink.Cancelled("sitemap解析被中断")
		task.Finish(models.TaskStatusCancelled, ctx.Err())
		return ctx.Err()
	}

	// sitemap无结果时回退到站点根URL
	if len(pages) == 0 {
		root := siteRoot(targetURL)
		utils.Warnf("sitemap未解析出任何页面, 回退到站点根URL: %s", root)
		r.sink.Warn("sitemap未解析出任何页面, 回退到站点根URL")
		pages = []string{root}
	}

	targets := buildTargets(pages, crawlCfg.AllPages)
	utils.Infof("🔍 发现 %d 个页面URL, 目标 %d 个", len(pages), len(targets))

	if r.dryRun {
		r.previewTargets(targets)
		task.Finish(models.TaskStatusCompleted, nil)
		return nil
	}

	// 输出目录: <base_dir>/<域名>/
	outputDir := filepath.Join(r.appConfig.Output.BaseDir, task.Domain)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败 [%s]: %w", outputDir, err)
	}

	checkpoint, checkpointPath := r.loadCheckpoint(task, outputDir, crawlCfg)

	fetcher, err := r.newFetcher(crawlCfg, r.headerProvider)
	if err != nil {
		task.Finish(models.TaskStatusFailed, err)
		return err
	}

	memory := crawlers.NewMemorySampler(r.verbosity >= 3)
	silentBar := false
	if _, ok := r.sink.(*models.SSESink); ok {
		silentBar = true
	}

	bc := NewBatchCrawler(crawlCfg, outputDir, fetcher, r.sink, memory, checkpoint, checkpointPath, silentBar)
	runErr := bc.Run(ctx, targets)

	stats := bc.GetStats()
	stats.FoundURLs = len(pages)
	task.Stats = stats

	switch {
	case runErr == nil:
		task.Finish(models.TaskStatusCompleted, nil)
	case ctx.Err() != nil:
		task.Finish(models.TaskStatusCancelled, runErr)
	default:
		task.Finish(models.TaskStatusFailed, runErr)
	}

	// 取消时检查点已落盘, 报告照常生成
	r.writeReport(task, outputDir, bc)
	r.printSummary(task, outputDir)
	r.sink.Summary(models.SummaryEvent{
		TargetURL:    task.TargetURL,
		TotalURLs:    stats.TargetURLs,
		SuccessPages: stats.SuccessPages,
		FailedPages:  stats.FailedPages,
		WrittenFiles: stats.WrittenFiles,
		Duration:     stats.Duration,
		PeakMemoryMB: stats.PeakMemoryMB,
		OutputDir:    outputDir,
	})

	return runErr
}

// RunList 依次抓取URL列表中的站点, 单个站点失败不中断后续
func (r *Runner) RunList(ctx context.Context, urls []string) error {
	failCount := 0
	for i, u := range urls {
		utils.Infof("\n==================== [%d/%d] ====================", i+1, len(urls))
		if err := r.Run(ctx, u); err != nil {
			if ctx.Err() != nil {
				return err
			}
			failCount++
			utils.Errorf("❌ 站点抓取失败 [%s]: %v", u, err)
		}
	}

	if failCount > 0 {
		return fmt.Errorf("%d/%d 个站点抓取失败", failCount, len(urls))
	}
	return nil
}

// previewTargets 试运行模式: 只打印抓取计划, 不发起抓取
func (r *Runner) previewTargets(targets []string) {
	utils.Infof("🔍 试运行模式, 共 %d 个URL将被抓取:", len(targets))

	organizer := NewPathOrganizer()
	for _, u := range targets {
		relPath, err := organizer.Organize(u)
		if err != nil {
			utils.Warnf("  %s -> 无法解析: %v", u, err)
			continue
		}
		utils.Infof("  %s -> %s", u, relPath)

		if sse, ok := r.sink.(*models.SSESink); ok {
			sse.DryRunURL(u)
		}
	}
}

// loadCheckpoint 按需加载检查点, 无法恢复时从空检查点开始
func (r *Runner) loadCheckpoint(task *models.ScrapeTask, outputDir string, crawlCfg models.CrawlConfig) (*models.Checkpoint, string) {
	checkpointPath := filepath.Join(outputDir, models.CheckpointFilename(task.Domain))

	if crawlCfg.Resume {
		cp, err := models.LoadCheckpointFromFile(checkpointPath)
		switch {
		case err == nil && cp.TargetURL == task.TargetURL:
			utils.Infof("📥 加载检查点: %s (已处理 %d 个URL)", checkpointPath, len(cp.ProcessedURLs))
			if sse, ok := r.sink.(*models.SSESink); ok {
				sse.Restore(len(cp.ProcessedURLs))
			}
			// 恢复的历史结果重新推送给事件消费端
			for _, u := range cp.SuccessURLs {
				r.sink.FetchSuccess(models.SuccessEvent{URL: u})
			}
			for _, u := range cp.FailedURLs {
				r.sink.FetchFailure(models.FailEvent{URL: u, Error: "从检查点恢复的失败记录"})
			}
			return cp, checkpointPath
		case err == nil:
			utils.Warnf("检查点目标URL不匹配 (%s), 从头开始", cp.TargetURL)
		case !os.IsNotExist(err):
			utils.Warnf("加载检查点失败 [%s]: %v", checkpointPath, err)
		}
	}

	return models.NewCheckpoint(task.ID, task.TargetURL, crawlCfg), checkpointPath
}

// writeReport 生成抓取报告
func (r *Runner) writeReport(task *models.ScrapeTask, outputDir string, bc *BatchCrawler) {
	report := &models.CrawlReport{
		TaskID:       task.ID,
		TargetURL:    task.TargetURL,
		SitemapURL:   task.SitemapURL,
		Domain:       task.Domain,
		Engine:       task.Config.Engine,
		StartTime:    task.CreatedAt,
		EndTime:      time.Now(),
		Duration:     task.Stats.Duration,
		Stats:        task.Stats,
		SuccessPages: bc.GetSuccessPages(),
		FailedPages:  bc.GetFailedPages(),
		OutputDir:    outputDir,
		Config:       task.Config,
	}

	reporter := utils.NewReporter(outputDir, task.Domain)
	if err := reporter.GenerateReport(report); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	}
}

// printSummary 打印任务摘要
func (r *Runner) printSummary(task *models.ScrapeTask, outputDir string) {
	stats := task.Stats

	utils.Info("\n==================================================")
	utils.Info("📊 抓取任务摘要")
	utils.Info("==================================================")
	utils.Infof("目标URL: %s", task.TargetURL)
	utils.Infof("发现URL: %d", stats.FoundURLs)
	utils.Infof("目标URL数: %d", stats.TargetURLs)
	utils.Infof("✅ 成功: %d", stats.SuccessPages)
	utils.Infof("❌ 失败: %d", stats.FailedPages)
	utils.Infof("📦 写入文件: %d (%.2f MB)", stats.WrittenFiles, float64(stats.TotalSize)/(1024*1024))
	utils.Infof("⏱️  总耗时: %.2f秒", stats.Duration)
	if stats.PeakMemoryMB > 0 {
		utils.Infof("📊 内存峰值: %d MB", stats.PeakMemoryMB)
	}
	utils.Infof("输出目录: %s", outputDir)
	utils.Info("==================================================")
}

// DeriveSitemapURL 从用户输入推导sitemap地址
// 输入已指向.xml时原样使用; 否则补全协议后拼接 /sitemap.xml
func DeriveSitemapURL(rawURL string) (targetURL string, sitemapURL string, err error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", "", fmt.Errorf("URL不能为空")
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("解析URL失败: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("不支持的URL协议: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("URL缺少域名: %s", rawURL)
	}

	if strings.HasSuffix(strings.ToLower(parsed.Path), ".xml") {
		return trimmed, trimmed, nil
	}

	return trimmed, strings.TrimRight(trimmed, "/") + "/sitemap.xml", nil
}

// buildTargets 从sitemap页面列表构造抓取目标
// 默认只抓取各站点根URL; allPages为true时抓取全部页面
func buildTargets(pages []string, allPages bool) []string {
	if allPages {
		return dedupeSort(pages)
	}
	return ReduceToRoots(pages)
}

// ReduceToRoots 把页面URL归并为站点根URL列表
func ReduceToRoots(pages []string) []string {
	seen := make(map[string]bool)
	roots := make([]string, 0)

	for _, p := range pages {
		parsed, err := url.Parse(p)
		if err != nil || parsed.Host == "" || parsed.Scheme == "" {
			continue
		}
		root := fmt.Sprintf("%s://%s/", parsed.Scheme, parsed.Host)
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}

	sort.Strings(roots)
	return roots
}

// dedupeSort 去重并排序, 丢弃非法URL
func dedupeSort(pages []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(pages))

	for _, p := range pages {
		if seen[p] {
			continue
		}
		if err := models.ValidateURL(p); err != nil {
			utils.Debugf("跳过非法URL: %s", p)
			continue
		}
		seen[p] = true
		result = append(result, p)
	}

	sort.Strings(result)
	return result
}

// siteRoot 返回URL的站点根地址
func siteRoot(targetURL string) string {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return targetURL
	}
	return fmt.Sprintf("%s://%s/", parsed.Scheme, parsed.Host)
}
