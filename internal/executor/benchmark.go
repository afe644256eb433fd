package executor

import (
	"context"
	"fmt"
	"log"

	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/decision"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/serverledge-faas/offloading/internal/task"
)

// BenchmarkResult holds the timings of running the same task on both sides.
// A nil error marks the timing as valid.
type BenchmarkResult struct {
	RequestID string
	Task      task.ID
	Snapshot  device.Snapshot
	LocalMs   int64
	LocalErr  error
	RemoteMs  int64
	RemoteErr error
	Server    *client.ServerTelemetry
}

func (b *BenchmarkResult) String() string {
	return fmt.Sprintf("[%s] %s local=%s remote=%s", b.RequestID, b.Task,
		timing(b.LocalMs, b.LocalErr), timing(b.RemoteMs, b.RemoteErr))
}

func timing(ms int64, err error) string {
	if err != nil {
		return "error (" + err.Error() + ")"
	}
	return fmt.Sprintf("%d ms", ms)
}

// Benchmark runs the task locally and then remotely, bypassing the policy,
// and reports both timings. It is meant for collecting training data.
func (e *Executor) Benchmark(ctx context.Context, id task.ID, params task.Params, hint device.NetworkHint) (*BenchmarkResult, error) {
	desc, err := e.registry.Lookup(id)
	if err != nil {
		return nil, err
	}

	b := &BenchmarkResult{RequestID: node.NewRequestID(), Task: id}
	b.Snapshot = e.source.Collect(ctx, hint)

	start := e.now()
	_, b.LocalErr = invoke(ctx, desc.Local, params)
	b.LocalMs = e.now().Sub(start).Milliseconds()

	if desc.Remote == nil {
		b.RemoteErr = fmt.Errorf("%w: %s", task.NoRemoteHandlerErr, id)
	} else {
		start = e.now()
		var out task.Output
		out, b.RemoteErr = invoke(ctx, desc.Remote, params)
		b.RemoteMs = e.now().Sub(start).Milliseconds()
		b.Server = out.Server
	}
	log.Println(b)

	outputs := client.BenchmarkOutputs{Success: b.LocalErr == nil && b.RemoteErr == nil}
	if b.LocalErr == nil {
		outputs.LocalTimeMs = &b.LocalMs
	}
	if b.RemoteErr == nil {
		outputs.RemoteTimeMs = &b.RemoteMs
	}
	if b.Server != nil {
		outputs.ServerCPULoad = b.Server.CPULoad
		outputs.ServerMemoryPercent = b.Server.MemoryPercent
		outputs.ServerComputeTimeMs = b.Server.ComputeTimeMs
	}
	e.reporter.Report(client.BenchmarkLog{
		RequestID: b.RequestID,
		Device:    b.Snapshot.DeviceModel,
		Inputs:    decision.BuildFeatures(id, params, b.Snapshot),
		Outputs:   outputs,
	})
	return b, nil
}
