// Package crawlers 提供sitemap解析和页面抓取功能
//
// # 概述
//
// crawlers包实现从sitemap到Markdown的完整抓取链路:
// SitemapResolver负责从入口sitemap递归解析出页面URL,
// Fetcher抽象抓取引擎(浏览器/HTTP), ExtractContent把页面HTML转为Markdown。
//
// # 核心组件
//
// ## SitemapResolver
//
// 按sitemaps.org协议解析sitemap, sitemapindex递归展开, 已处理集合保证循环引用安全终止。
// 单个sitemap失败只记录警告, 不中断整体解析。
//
//	resolver := NewSitemapResolver(10, headerProvider, sink)
//	pages := resolver.Resolve(ctx, "https://example.com/sitemap.xml")
//
// ## Fetcher (抓取引擎)
//
// 统一的单页抓取接口, 两种实现:
//   - BrowserFetcher: 基于go-rod的浏览器引擎, 支持JavaScript渲染, 标签页池复用
//   - HTTPFetcher: 基于Colly的纯HTTP引擎, 无需浏览器依赖, 适合静态站点
//
// 抓取结果统一用models.FetchOutcome表达, 引擎内部的panic会被恢复并转为失败结果。
//
//	fetcher, err := NewFetcher(config, headerProvider)
//	if err != nil { /* 处理错误 */ }
//	if err := fetcher.Start(ctx); err != nil { /* 引擎启动失败, 任务终止 */ }
//	defer fetcher.Close()
//
//	outcome := fetcher.Fetch(ctx, "https://example.com/docs")
//
// ## pagePool (标签页池)
//
// 管理浏览器标签页的复用, 上限等于批次并发数。
// 归还前导航到about:blank清理页面状态, 清理失败的标签页直接销毁。
//
// ## ExtractContent
//
// 基于goquery的正文提取: 去掉脚本样式和导航元素后,
// 标题层级映射为Markdown标题, 列表项和引用块保留结构, pre块包裹为代码围栏。
//
//	title, markdown, err := ExtractContent(htmlContent)
//
// ## MemorySampler
//
// 基于gopsutil的进程RSS采样, 批处理在每批前后各采样一次并跟踪峰值。
// 未开启时为空实现, 零开销。
package crawlers
