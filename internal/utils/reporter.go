package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
	domain    string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, domain string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		domain:    domain,
	}
}

// GenerateReport 在输出目录下生成抓取报告
// 主报告之外单独落盘成功/失败页面列表, 便于脚本直接消费
func (r *Reporter) GenerateReport(report *models.CrawlReport) error {
	reportsDir := filepath.Join(r.outputDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	// 保存主报告
	if err := r.saveJSONReport(reportsDir, "crawl_report.json", report); err != nil {
		return err
	}

	// 保存成功页面列表
	if err := r.saveJSONReport(reportsDir, "success_pages.json", report.SuccessPages); err != nil {
		return err
	}

	// 保存失败页面列表
	if err := r.saveJSONReport(reportsDir, "failed_pages.json", report.FailedPages); err != nil {
		return err
	}

	Infof("✅ 报告已生成: %s", reportsDir)
	return nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	filepath := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(filepath, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", filepath)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSilentProgressBar 创建丢弃输出的进度条, SSE模式下避免污染stdout
func NewSilentProgressBar(max int) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(io.Discard),
	)
}
