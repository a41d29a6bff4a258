package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/SiteMapScraper/internal/crawlers"
	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
)

// BatchCrawler 批量抓取器
// URL列表按MaxConcurrent切成固定批次, 批次内并发抓取, 批次间串行;
// 每个批次结束后落盘检查点
type BatchCrawler struct {
	config    models.CrawlConfig
	outputDir string
	fetcher   crawlers.Fetcher
	organizer *PathOrganizer
	sink      models.EventSink
	memory    crawlers.MemorySampler

	checkpoint     *models.Checkpoint
	checkpointPath string

	// silentBar 为true时进度条不输出(SSE模式保持stdout纯净)
	silentBar bool

	stats   models.TaskStats
	success []models.PageInfo
	failed  []models.FailedPageInfo
}

// NewBatchCrawler 创建批量抓取器
func NewBatchCrawler(
	config models.CrawlConfig,
	outputDir string,
	fetcher crawlers.Fetcher,
	sink models.EventSink,
	memory crawlers.MemorySampler,
	checkpoint *models.Checkpoint,
	checkpointPath string,
	silentBar bool,
) *BatchCrawler {
	if sink == nil {
		sink = models.NopSink{}
	}
	if memory == nil {
		memory = crawlers.NewMemorySampler(false)
	}
	return &BatchCrawler{
		config:         config,
		outputDir:      outputDir,
		fetcher:        fetcher,
		organizer:      NewPathOrganizer(),
		sink:           sink,
		memory:         memory,
		checkpoint:     checkpoint,
		checkpointPath: checkpointPath,
		silentBar:      silentBar,
	}
}

// Run 抓取URL列表
// 引擎启动失败直接返回错误; 单页失败只计入统计, 不中断批次;
// 上下文取消时保存检查点后返回
func (bc *BatchCrawler) Run(ctx context.Context, urls []string) error {
	startTime := time.Now()

	pending := urls
	if bc.config.Resume && bc.checkpoint != nil && len(bc.checkpoint.ProcessedURLs) > 0 {
		processed := bc.checkpoint.ProcessedSet()
		pending = make([]string, 0, len(urls))
		for _, u := range urls {
			if !processed[u] {
				pending = append(pending, u)
			}
		}
		bc.stats = bc.checkpoint.Stats
		utils.Infof("📥 从检查点恢复: 已处理 %d, 待处理 %d", len(urls)-len(pending), len(pending))
	}
	bc.stats.TargetURLs = len(urls)

	if len(pending) == 0 {
		utils.Infof("✅ 所有URL均已处理, 无需抓取")
		bc.finalize(startTime)
		return nil
	}

	if err := bc.fetcher.Start(ctx); err != nil {
		return err
	}
	defer bc.fetcher.Close()

	bar := utils.NewProgressBar(len(pending), "抓取页面")
	if bc.silentBar {
		bar = utils.NewSilentProgressBar(len(pending))
	}

	batchSize := bc.config.MaxConcurrent
	if batchSize < 1 {
		batchSize = 1
	}

	utils.Infof("🚀 开始批量抓取: %d 个页面, 每批 %d 个并发", len(pending), batchSize)

	for start := 0; start < len(pending); start += batchSize {
		if ctx.Err() != nil {
			utils.Warnf("抓取被中断, 已处理 %d/%d", bc.stats.ProcessedURLs, len(urls))
			bc.sink.Cancelled(fmt.Sprintf("任务被中断, 已处理 %d/%d", bc.stats.ProcessedURLs, len(urls)))
			bc.saveCheckpoint()
			bc.finalize(startTime)
			return ctx.Err()
		}

		end := min(start+batchSize, len(pending))
		chunk := pending[start:end]

		bc.memory.Sample("批次开始")
		outcomes := bc.runChunk(ctx, chunk)
		bc.memory.Sample("批次结束")

		for _, outcome := range outcomes {
			bc.handleOutcome(outcome)
			_ = bar.Add(1)
			bc.emitProgress(len(urls))
		}

		bc.saveCheckpoint()
	}

	bc.finalize(startTime)
	utils.Infof("✅ 批量抓取完成: 成功 %d, 失败 %d", bc.stats.SuccessPages, bc.stats.FailedPages)
	return nil
}

// runChunk 并发抓取一个批次
// 批次级异常恢复后整批记为失败, 不影响后续批次
func (bc *BatchCrawler) runChunk(ctx context.Context, chunk []string) (outcomes []models.FetchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("❌ 批次执行异常: %v", r)
			outcomes = make([]models.FetchOutcome, len(chunk))
			for i, u := range chunk {
				outcomes[i] = models.FailureOutcome(u, models.FailPanic, fmt.Sprintf("批次异常: %v", r), 0)
			}
		}
	}()

	outcomes = make([]models.FetchOutcome, len(chunk))

	var wg sync.WaitGroup
	for i, pageURL := range chunk {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			// 协程内的panic转为该URL的失败结果
			defer func() {
				if r := recover(); r != nil {
					outcomes[idx] = models.FailureOutcome(u, models.FailPanic,
						fmt.Sprintf("抓取协程panic: %v", r), 0)
				}
			}()
			outcomes[idx] = bc.fetcher.Fetch(ctx, u)
		}(i, pageURL)
	}
	wg.Wait()

	return outcomes
}

// handleOutcome 处理单页抓取结果: 成功则落盘, 失败则计入统计
func (bc *BatchCrawler) handleOutcome(outcome models.FetchOutcome) {
	bc.stats.ProcessedURLs++
	if bc.checkpoint != nil {
		bc.checkpoint.Record(outcome.URL, outcome.Success)
	}

	if !outcome.Success {
		bc.recordFailure(outcome.URL, outcome.FailType, outcome.Reason, outcome.Elapsed)
		return
	}

	relPath, err := bc.organizer.Organize(outcome.URL)
	if err != nil {
		bc.recordFailure(outcome.URL, "path_error", err.Error(), outcome.Elapsed)
		return
	}

	fullPath := filepath.Join(bc.outputDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		bc.recordFailure(outcome.URL, "write_error", err.Error(), outcome.Elapsed)
		return
	}

	data := []byte(outcome.Markdown)
	if err := utils.WriteFileAtomic(fullPath, data, 0644); err != nil {
		bc.recordFailure(outcome.URL, "write_error", err.Error(), outcome.Elapsed)
		return
	}

	bc.stats.SuccessPages++
	bc.stats.WrittenFiles++
	bc.stats.TotalSize += int64(len(data))

	utils.Infof("✅ 已保存: %s (%d 字节)", relPath, len(data))

	bc.success = append(bc.success, models.PageInfo{
		URL:       outcome.URL,
		FilePath:  relPath,
		Title:     outcome.Title,
		Size:      int64(len(data)),
		Elapsed:   outcome.Elapsed,
		FetchedAt: time.Now(),
	})

	if bc.config.SaveMeta {
		bc.writeMeta(fullPath, relPath, outcome, int64(len(data)))
	}

	bc.sink.FetchSuccess(models.SuccessEvent{
		URL:     outcome.URL,
		Title:   outcome.Title,
		Preview: models.TruncateRunes(outcome.Markdown, 100),
		Elapsed: outcome.Elapsed,
	})
}

// recordFailure 记录单页失败
func (bc *BatchCrawler) recordFailure(pageURL, failType, reason string, elapsed float64) {
	bc.stats.FailedPages++
	utils.Warnf("❌ 抓取失败 [%s]: %s (%s)", pageURL, reason, failType)

	bc.failed = append(bc.failed, models.FailedPageInfo{
		URL:      pageURL,
		FailType: failType,
		ErrorMsg: reason,
		Elapsed:  elapsed,
	})
	bc.sink.FetchFailure(models.FailEvent{
		URL:      pageURL,
		FailType: failType,
		Error:    reason,
		Elapsed:  elapsed,
	})
}

// writeMeta 落盘单页元数据
func (bc *BatchCrawler) writeMeta(fullPath, relPath string, outcome models.FetchOutcome, size int64) {
	meta := models.PageMeta{
		URL:       outcome.URL,
		Title:     outcome.Title,
		FilePath:  relPath,
		Size:      size,
		Elapsed:   outcome.Elapsed,
		FetchedAt: time.Now(),
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		utils.Warnf("序列化页面元数据失败 [%s]: %v", outcome.URL, err)
		return
	}

	metaPath := strings.TrimSuffix(fullPath, ".md") + "_meta.json"
	if err := utils.WriteFileAtomic(metaPath, data, 0644); err != nil {
		utils.Warnf("写入页面元数据失败 [%s]: %v", metaPath, err)
	}
}

// emitProgress 推送进度事件
func (bc *BatchCrawler) emitProgress(total int) {
	percent := 0.0
	if total > 0 {
		percent = float64(bc.stats.ProcessedURLs) / float64(total) * 100
	}
	bc.sink.Progress(models.ProgressEvent{
		Processed: bc.stats.ProcessedURLs,
		Total:     total,
		Success:   bc.stats.SuccessPages,
		Failed:    bc.stats.FailedPages,
		Percent:   percent,
	})
}

// saveCheckpoint 落盘检查点
func (bc *BatchCrawler) saveCheckpoint() {
	if bc.checkpoint == nil || bc.checkpointPath == "" {
		return
	}
	bc.checkpoint.Stats = bc.stats
	if err := bc.checkpoint.SaveToFile(bc.checkpointPath); err != nil {
		utils.Warnf("保存检查点失败 [%s]: %v", bc.checkpointPath, err)
	}
}

// finalize 收尾统计
func (bc *BatchCrawler) finalize(startTime time.Time) {
	bc.stats.Duration = time.Since(startTime).Seconds()
	bc.stats.PeakMemoryMB = bc.memory.PeakMB()
}

// GetStats 获取统计信息
func (bc *BatchCrawler) GetStats() models.TaskStats {
	return bc.stats
}

// GetSuccessPages 获取成功页面列表
func (bc *BatchCrawler) GetSuccessPages() []models.PageInfo {
	return bc.success
}

// GetFailedPages 获取失败页面列表
func (bc *BatchCrawler) GetFailedPages() []models.FailedPageInfo {
	return bc.failed
}
