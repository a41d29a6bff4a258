package crawlers

import (
	"os"
	"sync"

	"github.com/RecoveryAshes/SiteMapScraper/internal/utils"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MemorySampler 进程内存观测
// 批处理在每批前后各采样一次, 任务结束时汇报峰值
type MemorySampler interface {
	// Sample 采样当前进程RSS并记录日志, label标识采样时机
	Sample(label string)

	// PeakMB 返回观测到的RSS峰值(MB)
	PeakMB() int
}

// NewMemorySampler 创建内存观测器
// enabled为false时返回空实现, 观测完全零开销;
// 进程信息获取失败时降级为空实现并记录警告
func NewMemorySampler(enabled bool) MemorySampler {
	if !enabled {
		return nopSampler{}
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		utils.Warnf("获取进程信息失败, 内存观测已禁用: %v", err)
		return nopSampler{}
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		utils.Infof("📊 内存观测已启用, 系统总内存: %.2f GB", float64(vmStat.Total)/(1024*1024*1024))
	}

	return &processSampler{proc: proc}
}

// processSampler 基于gopsutil的真实采样实现
type processSampler struct {
	proc *process.Process

	mu   sync.Mutex
	peak uint64 // RSS峰值(字节)
}

func (ps *processSampler) Sample(label string) {
	info, err := ps.proc.MemoryInfo()
	if err != nil {
		utils.Warnf("内存采样失败: %v", err)
		return
	}

	ps.mu.Lock()
	if info.RSS > ps.peak {
		ps.peak = info.RSS
	}
	peak := ps.peak
	ps.mu.Unlock()

	utils.Infof("📊 内存采样 [%s]: 当前 %d MB, 峰值 %d MB",
		label, info.RSS/(1024*1024), peak/(1024*1024))
}

func (ps *processSampler) PeakMB() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return int(ps.peak / (1024 * 1024))
}

// nopSampler 空实现
type nopSampler struct{}

func (nopSampler) Sample(string) {}
func (nopSampler) PeakMB() int   { return 0 }
