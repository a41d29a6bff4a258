package models

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Checkpoint 检查点
// 每个批次结束后落盘, --resume 时跳过已处理URL
type Checkpoint struct {
	// 任务信息
	TaskID    string `json:"task_id"`    // 关联的任务ID
	TargetURL string `json:"target_url"` // 目标站点URL

	// 进度信息
	ProcessedURLs []string `json:"processed_urls"` // 已处理URL列表(含成败)
	SuccessURLs   []string `json:"success_urls"`   // 抓取成功URL列表
	FailedURLs    []string `json:"failed_urls"`    // 抓取失败URL列表

	// 统计信息
	Stats TaskStats `json:"stats"` // 当前统计

	// 时间戳
	CreatedAt time.Time `json:"created_at"` // 检查点创建时间
	UpdatedAt time.Time `json:"updated_at"` // 最后更新时间

	// 配置快照
	Config CrawlConfig `json:"config"` // 配置快照
}

// NewCheckpoint 创建空检查点
func NewCheckpoint(taskID, targetURL string, config CrawlConfig) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		TaskID:    taskID,
		TargetURL: targetURL,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config,
	}
}

// CheckpointFilename 生成检查点文件名
func CheckpointFilename(domain string) string {
	return fmt.Sprintf("checkpoint_%s.json", domain)
}

// Record 记录一个URL的处理结果
func (c *Checkpoint) Record(pageURL string, success bool) {
	c.ProcessedURLs = append(c.ProcessedURLs, pageURL)
	if success {
		c.SuccessURLs = append(c.SuccessURLs, pageURL)
	} else {
		c.FailedURLs = append(c.FailedURLs, pageURL)
	}
	c.UpdatedAt = time.Now()
}

// ProcessedSet 返回已处理URL的查找集合
func (c *Checkpoint) ProcessedSet() map[string]bool {
	set := make(map[string]bool, len(c.ProcessedURLs))
	for _, u := range c.ProcessedURLs {
		set[u] = true
	}
	return set
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON 从JSON反序列化
func (c *Checkpoint) FromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

// SaveToFile 保存到文件
func (c *Checkpoint) SaveToFile(filepath string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadCheckpointFromFile 从文件加载
func LoadCheckpointFromFile(filepath string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := cp.FromJSON(data); err != nil {
		return nil, err
	}

	return &cp, nil
}
