package main

import (
	"fmt"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(maxConcurrent, waitTime, pageTimeout int, engine string) error {
	if maxConcurrent < 1 || maxConcurrent > 50 {
		return fmt.Errorf("并发数必须在1-50之间,当前值: %d", maxConcurrent)
	}

	if waitTime < 0 || waitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间,当前值: %d", waitTime)
	}

	if pageTimeout < 1 || pageTimeout > 300 {
		return fmt.Errorf("页面超时必须在1-300秒之间,当前值: %d", pageTimeout)
	}

	if engine != models.EngineBrowser && engine != models.EngineHTTP {
		return fmt.Errorf("无效的抓取引擎: %s (有效值: %s, %s)", engine, models.EngineBrowser, models.EngineHTTP)
	}

	return nil
}
