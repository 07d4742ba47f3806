package server

import (
	"expvar"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemCollector periodically samples host CPU, memory and disk usage
// via gopsutil and publishes them as expvar gauges, where the /metrics
// endpoint and the statsviz dashboard pick them up.
type SystemCollector struct {
	cpuUsagePercent  *expvar.Float
	memUsagePercent  *expvar.Float
	diskUsagePercent *expvar.Float
	diskPath         string
	interval         time.Duration
	stopChan         chan struct{}
	wg               sync.WaitGroup
	logger           *slog.Logger
}

// NewSystemCollector creates a collector that watches diskPath for disk
// usage and samples every interval. prefix namespaces the expvar
// variable names.
func NewSystemCollector(diskPath string, interval time.Duration, prefix string, logger *slog.Logger) *SystemCollector {
	return &SystemCollector{
		cpuUsagePercent:  publishFloat(prefix + "system_cpu_usage_percent"),
		memUsagePercent:  publishFloat(prefix + "system_mem_usage_percent"),
		diskUsagePercent: publishFloat(prefix + "system_disk_usage_percent"),
		diskPath:         diskPath,
		interval:         interval,
		stopChan:         make(chan struct{}),
		logger:           logger.With("component", "SystemCollector"),
	}
}

// Start begins the background collection loop.
func (sc *SystemCollector) Start() {
	sc.logger.Info("Starting system metrics collector.", "interval", sc.interval.String(), "disk_path", sc.diskPath)
	sc.wg.Add(1)
	go sc.collectLoop()
}

// Stop terminates the loop and waits for it to drain.
func (sc *SystemCollector) Stop() {
	sc.logger.Info("Stopping system metrics collector.")
	close(sc.stopChan)
	sc.wg.Wait()
}

func (sc *SystemCollector) collectLoop() {
	defer sc.wg.Done()

	// The CPU sample blocks for its measurement window, which must end
	// before the next tick. Sub-second intervals fall back to an
	// instantaneous reading.
	cpuWindow := sc.interval - time.Second
	if cpuWindow < 0 {
		cpuWindow = 0
	}

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if percents, err := cpu.Percent(cpuWindow, false); err == nil && len(percents) > 0 {
				sc.cpuUsagePercent.Set(percents[0])
			}
			if vm, err := mem.VirtualMemory(); err == nil {
				sc.memUsagePercent.Set(vm.UsedPercent)
			}
			if du, err := disk.Usage(sc.diskPath); err == nil {
				sc.diskUsagePercent.Set(du.UsedPercent)
			}
		case <-sc.stopChan:
			return
		}
	}
}

// publishFloat registers an expvar.Float, reusing and zeroing the
// existing variable when the name is already taken so repeated
// collector construction in tests does not panic.
func publishFloat(name string) *expvar.Float {
	if v := expvar.Get(name); v != nil {
		if f, ok := v.(*expvar.Float); ok {
			f.Set(0)
			return f
		}
		panic(fmt.Sprintf("expvar: %q already registered with incompatible type %T", name, v))
	}
	return expvar.NewFloat(name)
}
