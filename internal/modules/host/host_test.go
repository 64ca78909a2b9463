package host

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

func fakeCollector() *Collector {
	return &Collector{
		info: func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{Hostname: "bot-1", Platform: "alpine", PlatformVersion: "3.20", KernelVersion: "6.1", Uptime: 3700, BootTime: 1700000000}, nil
		},
		memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 2048 << 20, Used: 512 << 20, UsedPercent: 25}, nil
		},
		load: func(context.Context) (*load.AvgStat, error) {
			return &load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.1}, nil
		},
		now: func() time.Time { return time.Unix(1700003700, 0) },
	}
}

func TestCollectAndRender(t *testing.T) {
	st, err := fakeCollector().Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if st.Hostname != "bot-1" || st.MemUsedPct != 25 || st.BootTime.Unix() != 1700000000 {
		t.Fatalf("unexpected status: %#v", st)
	}
	text := st.Render()
	for _, want := range []string{"Host: bot-1 (alpine 3.20, kernel 6.1)", "Uptime: 1h1m40s", "Load: 0.50 0.25 0.10", "Memory: 512/2048 MB (25.0%)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("render missing %q:\n%s", want, text)
		}
	}
}

func TestCollectError(t *testing.T) {
	c := fakeCollector()
	c.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("no procfs") }
	if _, err := c.Collect(context.Background()); err == nil || !strings.Contains(err.Error(), "memory info") {
		t.Fatalf("expected memory error, got %v", err)
	}
}
