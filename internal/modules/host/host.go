// Package host собирает состояние узла, на котором работает бот.
package host

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status - снимок состояния узла.
type Status struct {
	Hostname        string    `json:"hostname"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platform_version"`
	Kernel          string    `json:"kernel"`
	UptimeSec       uint64    `json:"uptime_sec"`
	BootTime        time.Time `json:"boot_time"`
	MemTotal        uint64    `json:"mem_total"`
	MemUsed         uint64    `json:"mem_used"`
	MemUsedPct      float64   `json:"mem_used_pct"`
	Load1           float64   `json:"load1"`
	Load5           float64   `json:"load5"`
	Load15          float64   `json:"load15"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Collector читает метрики через gopsutil; источники подменяются в тестах.
type Collector struct {
	info   func(context.Context) (*host.InfoStat, error)
	memory func(context.Context) (*mem.VirtualMemoryStat, error)
	load   func(context.Context) (*load.AvgStat, error)
	now    func() time.Time
}

func NewCollector() *Collector {
	return &Collector{
		info:   host.InfoWithContext,
		memory: mem.VirtualMemoryWithContext,
		load:   load.AvgWithContext,
		now:    time.Now,
	}
}

// Collect возвращает текущий снимок состояния.
func (c *Collector) Collect(ctx context.Context) (Status, error) {
	hInfo, err := c.info(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("host info: %w", err)
	}
	vm, err := c.memory(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("memory info: %w", err)
	}
	ld, err := c.load(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("load info: %w", err)
	}
	return Status{
		Hostname:        hInfo.Hostname,
		Platform:        hInfo.Platform,
		PlatformVersion: hInfo.PlatformVersion,
		Kernel:          hInfo.KernelVersion,
		UptimeSec:       hInfo.Uptime,
		BootTime:        time.Unix(int64(hInfo.BootTime), 0).UTC(),
		MemTotal:        vm.Total,
		MemUsed:         vm.Used,
		MemUsedPct:      vm.UsedPercent,
		Load1:           ld.Load1,
		Load5:           ld.Load5,
		Load15:          ld.Load15,
		CollectedAt:     c.now().UTC(),
	}, nil
}

// Render форматирует снимок для ответа в чат.
func (s Status) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host: %s (%s %s, kernel %s)\n", s.Hostname, s.Platform, s.PlatformVersion, s.Kernel)
	fmt.Fprintf(&b, "Uptime: %s\n", (time.Duration(s.UptimeSec) * time.Second).String())
	fmt.Fprintf(&b, "Load: %.2f %.2f %.2f\n", s.Load1, s.Load5, s.Load15)
	fmt.Fprintf(&b, "Memory: %d/%d MB (%.1f%%)", s.MemUsed>>20, s.MemTotal>>20, s.MemUsedPct)
	return b.String()
}
