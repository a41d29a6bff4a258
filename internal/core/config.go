package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Output  OutputConfig       `mapstructure:"output"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LoadConfig 加载配置文件
// configPath为空时搜索默认位置, 配置文件不存在则使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sitemapscraper"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	v.SetDefault("crawl.max_concurrent", 3)
	v.SetDefault("crawl.wait_time", 1)
	v.SetDefault("crawl.page_timeout", 30)
	v.SetDefault("crawl.sitemap_timeout", 10)
	v.SetDefault("crawl.engine", models.EngineBrowser)
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.all_pages", false)
	v.SetDefault("crawl.resume", false)
	v.SetDefault("crawl.save_meta", false)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
}

// GetCrawlConfig 从配置中提取爬取配置
func (c *Config) GetCrawlConfig() models.CrawlConfig {
	return c.Crawl
}

// MergeCLIFlags 合并命令行参数到配置, 命令行优先于配置文件
func (c *Config) MergeCLIFlags(
	maxConcurrent int,
	waitTime int,
	pageTimeout int,
	engine string,
	allPages bool,
	resume bool,
	saveMeta bool,
) {
	if maxConcurrent > 0 {
		c.Crawl.MaxConcurrent = maxConcurrent
	}
	if waitTime >= 0 {
		c.Crawl.WaitTime = waitTime
	}
	if pageTimeout > 0 {
		c.Crawl.PageTimeout = pageTimeout
	}
	if engine != "" {
		c.Crawl.Engine = engine
	}
	c.Crawl.AllPages = allPages
	c.Crawl.Resume = resume
	c.Crawl.SaveMeta = saveMeta
}
