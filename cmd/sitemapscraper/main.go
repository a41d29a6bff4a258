package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/SiteMapScraper/internal/core"
	"github.com/RecoveryAshes/SiteMapScraper/internal/models"
	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbosity  int
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 抓取参数
	urlFile       string
	maxConcurrent int
	waitTime      int
	pageTimeout   int
	engine        string
	headless      bool
	allPages      bool
	dryRun        bool
	resume        bool
	saveMeta      bool

	// 事件输出
	sseMode bool
)

var rootCmd = &cobra.Command{
	Use:   "sitemapscraper <url>",
	Short: "基于sitemap的文档站点抓取工具",
	Long: `SiteMapScraper - 基于sitemap的文档站点抓取工具 (Go版本)

从站点sitemap解析页面URL, 批量抓取并转存为Markdown文件, 支持:
  • sitemapindex递归展开和循环检测
  • 浏览器引擎(rod)和HTTP引擎(colly)双模式
  • URL路径到目录树的自动映射
  • 断点续传和检查点
  • SSE事件流输出(供桌面端消费)
  • 自定义HTTP请求头

使用示例:
  # 抓取站点(默认只抓各站点根URL)
  sitemapscraper https://docs.example.com

  # 抓取sitemap中的全部页面
  sitemapscraper https://docs.example.com --all-pages

  # 指定sitemap地址
  sitemapscraper https://docs.example.com/custom-sitemap.xml

  # 试运行, 只打印抓取计划
  sitemapscraper https://docs.example.com --dry-run

  # 自定义HTTP头部
  sitemapscraper https://docs.example.com -H "Authorization: Bearer token"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// -v提升日志级别, --log-level优先
		switch {
		case logLevel != "":
			logConfig.Level = logLevel
		case verbosity >= 3:
			logConfig.Level = "trace"
		case verbosity >= 2:
			logConfig.Level = "debug"
		}

		// SSE模式下控制台日志走stderr, stdout只输出事件行
		if sseMode {
			logConfig.ConsoleOut = os.Stderr
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Ctrl+C触发上下文取消, 当前批次结束后保存检查点退出
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		headerManager, err := core.NewHeaderManager(configFile, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			return runValidateConfig(headerManager)
		}

		var targetURL string
		if len(args) > 0 {
			targetURL = args[0]
		}
		if targetURL == "" && urlFile == "" {
			return cmd.Help()
		}

		if err := ValidateFlags(maxConcurrent, waitTime, pageTimeout, engine); err != nil {
			return err
		}

		appConfig.MergeCLIFlags(maxConcurrent, waitTime, pageTimeout, engine, allPages, resume, saveMeta)
		appConfig.Crawl.Headless = headless

		var sink models.EventSink = models.NopSink{}
		if sseMode {
			sink = models.NewSSESink(os.Stdout)
		}

		runner := core.NewRunner(appConfig, headerManager, sink, dryRun, verbosity)

		// 批量模式: 从文件读取站点列表
		if urlFile != "" {
			urls, err := utils.ReadURLsFromFile(urlFile)
			if err != nil {
				return fmt.Errorf("读取URL文件失败: %w", err)
			}
			if err := runner.RunList(ctx, urls); err != nil {
				return err
			}
			utils.Info("✨ 批量抓取任务完成!")
			return nil
		}

		if err := runner.Run(ctx, targetURL); err != nil {
			return err
		}

		utils.Info("✨ 抓取任务完成!")
		return nil
	},
}

// runValidateConfig 验证HTTP头部配置后退出
func runValidateConfig(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := headerManager.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SiteMapScraper %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 基于sitemap的文档抓取工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "详细输出级别 (-v/-vv/-vvv)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 抓取参数
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含站点URL列表的文件路径")
	rootCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 3, "每批并发抓取页面数 (1-50)")
	rootCmd.Flags().IntVarP(&waitTime, "wait", "w", 1, "页面加载后等待时间(秒)")
	rootCmd.Flags().IntVar(&pageTimeout, "page-timeout", 30, "单页抓取超时(秒)")
	rootCmd.Flags().StringVar(&engine, "engine", models.EngineBrowser, "抓取引擎 (browser|http)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&allPages, "all-pages", false, "抓取sitemap中的全部页面而非各站点根URL")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "只打印抓取计划, 不发起抓取")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "从检查点恢复")
	rootCmd.Flags().BoolVar(&saveMeta, "save-meta", false, "每个页面额外保存_meta.json元数据")

	// 事件输出
	rootCmd.Flags().BoolVar(&sseMode, "sse", false, "以SSE_DATA行格式向stdout输出事件流")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
