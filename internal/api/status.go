package api

import (
	"log"
	"time"

	loadavg "github.com/mikoim/go-loadavg"
	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// cpuLoad compares against the previous call instead of sampling, so it
// never blocks a response.
func cpuLoad() (float64, bool) {
	percent, err := cpu.Percent(0, false)
	if err != nil || len(percent) == 0 {
		return 0, false
	}
	return percent[0], true
}

func memoryPercent() (float64, bool) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, false
	}
	return vm.UsedPercent, true
}

func readStatus() client.ServerStatus {
	status := client.ServerStatus{
		Node:       node.LocalNode.String(),
		BusySlots:  node.LocalResources.BusySlots(),
		TotalSlots: node.LocalResources.TotalSlots(),
	}
	status.CPULoad, _ = cpuLoad()
	status.MemoryPercent, _ = memoryPercent()

	if avg, err := loadavg.Parse(); err == nil {
		status.LoadAvg = []float64{avg.LoadAverage1, avg.LoadAverage5, avg.LoadAverage10}
	} else {
		log.Printf("Could not read load average: %v\n", err)
	}
	return status
}

// currentTelemetry is attached to task responses.
func currentTelemetry(computeTime time.Duration) client.ServerTelemetry {
	ms := float64(computeTime.Microseconds()) / 1000.0
	t := client.ServerTelemetry{ComputeTimeMs: &ms}
	if load, ok := cpuLoad(); ok {
		t.CPULoad = &load
	}
	if m, ok := memoryPercent(); ok {
		t.MemoryPercent = &m
	}
	return t
}
