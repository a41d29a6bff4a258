package crawlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// pagePool 标签页池
// 批处理按固定并发数分批, 池大小与并发数一致即可;
// 标签页按需创建并复用, 避免每个页面都冷启动标签页
type pagePool struct {
	browser *rod.Browser
	max     int

	mu        sync.Mutex
	created   int
	closed    bool
	available chan *rod.Page
}

// newPagePool 创建标签页池
func newPagePool(browser *rod.Browser, max int) *pagePool {
	if max < 1 {
		max = 1
	}
	return &pagePool{
		browser:   browser,
		max:       max,
		available: make(chan *rod.Page, max),
	}
}

// acquire 获取一个标签页, 池未满时创建新标签页, 否则等待归还
func (pp *pagePool) acquire(ctx context.Context) (*rod.Page, error) {
	select {
	case page := <-pp.available:
		return page, nil
	default:
	}

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, fmt.Errorf("标签页池已关闭")
	}
	if pp.created < pp.max {
		pp.created++
		pp.mu.Unlock()

		page, err := pp.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			pp.mu.Lock()
			pp.created--
			pp.mu.Unlock()
			return nil, fmt.Errorf("创建标签页失败: %w", err)
		}
		utils.Debugf("创建新标签页, 当前标签页数: %d/%d", pp.created, pp.max)
		return page, nil
	}
	pp.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case page := <-pp.available:
		return page, nil
	}
}

// release 归还标签页
func (pp *pagePool) release(page *rod.Page) {
	if page == nil {
		return
	}

	// 归还前导航到空白页, 释放页面持有的内存
	if err := page.Navigate("about:blank"); err != nil {
		utils.Debugf("清理标签页失败, 销毁该标签页: %v", err)
		pp.destroy(page)
		return
	}

	pp.mu.Lock()
	closed := pp.closed
	pp.mu.Unlock()
	if closed {
		pp.destroy(page)
		return
	}

	select {
	case pp.available <- page:
	default:
		pp.destroy(page)
	}
}

// destroy 销毁标签页
func (pp *pagePool) destroy(page *rod.Page) {
	pp.mu.Lock()
	pp.created--
	pp.mu.Unlock()

	if err := page.Close(); err != nil {
		utils.Debugf("关闭标签页失败: %v", err)
	}
}

// close 关闭池并销毁缓存的标签页
func (pp *pagePool) close() {
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return
	}
	pp.closed = true
	pp.mu.Unlock()

	for {
		select {
		case page := <-pp.available:
			if err := page.Close(); err != nil {
				utils.Debugf("关闭标签页失败: %v", err)
			}
		default:
			utils.Debugf("标签页池已关闭")
			return
		}
	}
}
