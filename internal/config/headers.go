package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认头部配置文件路径
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// HeaderConfigLoader 头部配置文件加载器
// 负责加载、验证和解析HTTP头部配置文件
type HeaderConfigLoader struct {
	configPath string
}

// NewHeaderConfigLoader 创建配置文件加载器
func NewHeaderConfigLoader(configPath string) *HeaderConfigLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &HeaderConfigLoader{
		configPath: configPath,
	}
}

// EnsureConfigExists 确保配置文件存在, 不存在则自动生成模板
func (hcl *HeaderConfigLoader) EnsureConfigExists() error {
	if _, err := os.Stat(hcl.configPath); os.IsNotExist(err) {
		dir := filepath.Dir(hcl.configPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}

		if err := os.WriteFile(hcl.configPath, []byte(defaultHeaderTemplate), 0644); err != nil {
			return fmt.Errorf("无法生成配置文件 [%s]: %w", hcl.configPath, err)
		}
	}
	return nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func (hcl *HeaderConfigLoader) ValidateFileSize() error {
	info, err := os.Stat(hcl.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", hcl.configPath, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: hcl.configPath,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}

	return nil
}

// LoadConfig 加载配置文件并解析为HeaderConfig
// 执行流程:
//  1. 确保配置文件存在 (不存在则自动创建)
//  2. 验证文件大小是否在限制内
//  3. 使用Viper解析YAML并绑定到结构体
//  4. 处理空配置情况
func (hcl *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	if err := hcl.EnsureConfigExists(); err != nil {
		return nil, err
	}

	if err := hcl.ValidateFileSize(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(hcl.configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// 配置文件被其他进程占用时优雅降级, 仅使用默认头部
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认配置", hcl.configPath)
			return &models.HeaderConfig{
				Headers: make(map[string]string),
			}, nil
		}

		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    err,
		}
	}

	var config models.HeaderConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: hcl.configPath,
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}

	// 配置文件存在但headers为空时初始化空map, 避免nil指针
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}

	return &config, nil
}
