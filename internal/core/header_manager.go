package core

import (
	"net/http"

	"github.com/RecoveryAshes/SiteMapScraper/internal/config"
	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// HeaderManager 管理HTTP请求头部的生命周期
// 合并三个来源: 系统默认 < 配置文件 < 命令行, 实现 models.HeaderProvider
type HeaderManager struct {
	configFile string

	defaults http.Header // 系统默认头部
	config   http.Header // 配置文件头部
	cli      http.Header // 命令行头部

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader

	loaded bool
}

// NewHeaderManager 创建头部管理器
// configFile为空时使用默认配置路径; cliHeaders解析失败时返回错误
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		configFile:   configFile,
		defaults:     getDefaultHeaders(),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	} else {
		hm.cli = make(http.Header)
	}

	return hm, nil
}

func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"*/*"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// LoadConfig 加载配置文件, 已加载过则跳过
func (hm *HeaderManager) LoadConfig() error {
	if hm.loaded {
		return nil
	}

	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP头部配置失败: %v", err)
		return err
	}

	hm.config = make(http.Header)
	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}
	hm.loaded = true

	if len(headerConfig.Headers) > 0 {
		safeHeaders := hm.redactor.Redact(hm.config)
		utils.Debugf("成功加载%d个HTTP头部配置: %v", len(safeHeaders), safeHeaders)
	}

	return nil
}

// Validate 验证全部来源的头部合法性
func (hm *HeaderManager) Validate() error {
	if err := hm.validator.Validate(hm.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}
	if err := hm.validator.Validate(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}
	if err := hm.validator.Validate(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < config < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for name, values := range hm.defaults {
		result[name] = values
	}
	for name, values := range hm.config {
		result[name] = values
	}
	for name, values := range hm.cli {
		result[name] = values
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部, 用于日志输出
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 models.HeaderProvider
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.LoadConfig(); err != nil {
		return nil, err
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}
