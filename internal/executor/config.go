package executor

import (
	"log"

	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/decision"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/task"
	"github.com/serverledge-faas/offloading/internal/telemetry"
)

// NewFromConfig wires an Executor from the loaded configuration. A missing
// compute service URL is fatal: nothing can be offloaded without it.
func NewFromConfig(sensors device.Sensors) (*Executor, telemetry.Reporter, error) {
	computeURL, err := config.RequireString(config.COMPUTE_URL)
	if err != nil {
		return nil, nil, err
	}
	remote := task.NewRemoteClient(computeURL, config.GetMillis(config.COMPUTE_TIMEOUT_MS, 30000))
	registry, err := task.NewDefaultRegistry(remote)
	if err != nil {
		return nil, nil, err
	}

	policy, err := decision.CreatePolicy()
	if err != nil {
		return nil, nil, err
	}

	reporter, err := telemetry.NewReporterFromConfig()
	if err != nil {
		return nil, nil, err
	}

	collector := device.NewCollector(sensors, device.CollectorOptions{
		ComputeURL:       computeURL,
		ProbeTimeout:     config.GetMillis(config.PROBE_TIMEOUT_MS, 2000),
		DefaultLatencyMs: int64(config.GetInt(config.PROBE_DEFAULT_LATENCY_MS, device.DefaultLatencyMs)),
		DeviceModel:      config.GetString(config.DEVICE_MODEL, ""),
		FetchStatus:      config.GetBool(config.SERVER_STATUS_ENABLED, false),
	})
	log.Printf("Offloading to %s with policy %s\n", computeURL, policy.Name())

	return NewExecutor(registry, collector, policy, reporter), reporter, nil
}
