package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/decision"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/metrics"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/serverledge-faas/offloading/internal/task"
	"github.com/serverledge-faas/offloading/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RanOn is where an execution actually completed.
type RanOn string

const (
	RanLocal         RanOn = "local"
	RanRemote        RanOn = "remote"
	RanLocalFallback RanOn = "local_fallback"
)

type State int

const (
	Deciding State = iota
	Dispatching
	FallingBack
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Deciding:
		return "deciding"
	case Dispatching:
		return "dispatching"
	case FallingBack:
		return "falling_back"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// SnapshotSource provides the device state for a decision. *device.Collector
// implements it.
type SnapshotSource interface {
	Collect(ctx context.Context, hint device.NetworkHint) device.Snapshot
}

// Result of a completed execution.
type Result struct {
	RequestID string
	Task      task.ID
	Data      interface{}
	RanOn     RanOn
	ElapsedMs int64
	// Reason is the decision reason, amended when the execution fell back.
	Reason    string
	Decision  decision.Decision
	Snapshot  device.Snapshot
	Server    *client.ServerTelemetry
	RemoteErr *RemoteDispatchError
	Trail     []State
}

func (r *Result) enter(s State) {
	r.Trail = append(r.Trail, s)
}

func (r *Result) String() string {
	return fmt.Sprintf("[%s] %s ran on %s in %d ms: %s", r.RequestID, r.Task, r.RanOn, r.ElapsedMs, r.Reason)
}

// Executor runs tasks where the policy says, falling back to local execution
// once when the remote attempt fails. It holds no mutable state and is safe
// for concurrent use.
type Executor struct {
	registry *task.Registry
	source   SnapshotSource
	policy   decision.Policy
	reporter telemetry.Reporter
	now      func() time.Time
}

func NewExecutor(registry *task.Registry, source SnapshotSource, policy decision.Policy, reporter telemetry.Reporter) *Executor {
	if reporter == nil {
		reporter = telemetry.NopReporter{}
	}
	return &Executor{
		registry: registry,
		source:   source,
		policy:   policy,
		reporter: reporter,
		now:      time.Now,
	}
}

func (e *Executor) Policy() decision.Policy {
	return e.policy
}

// Decide collects a snapshot and returns the policy verdict without executing.
func (e *Executor) Decide(ctx context.Context, id task.ID, params task.Params, hint device.NetworkHint) (decision.Decision, device.Snapshot, error) {
	if _, err := e.registry.Lookup(id); err != nil {
		return decision.Decision{}, device.Snapshot{}, err
	}
	snap := e.source.Collect(ctx, hint)
	return e.decide(ctx, id, params, snap), snap, nil
}

// decide runs the policy; a panicking policy counts as a local decision.
func (e *Executor) decide(ctx context.Context, id task.ID, params task.Params, snap device.Snapshot) (d decision.Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[%s] policy %s panicked: %v\n", id, e.policy.Name(), rec)
			d = decision.Decision{Offload: false, Reason: "decision failed, running locally", Source: decision.SourceFallback}
		}
	}()
	return e.policy.Decide(ctx, id, params, snap)
}

// Execute decides where to run the task and runs it. Unknown ids are rejected
// with task.UnknownTaskErr before anything else happens.
func (e *Executor) Execute(ctx context.Context, id task.ID, params task.Params, hint device.NetworkHint) (*Result, error) {
	start := e.now()
	desc, err := e.registry.Lookup(id)
	if err != nil {
		return nil, err
	}

	r := &Result{RequestID: node.NewRequestID(), Task: id}
	if telemetry.DefaultTracer != nil {
		var span trace.Span
		ctx, span = telemetry.DefaultTracer.Start(ctx, "execute",
			trace.WithAttributes(attribute.String("request_id", r.RequestID), attribute.String("task", string(id))))
		defer func() {
			span.SetAttributes(attribute.String("ran_on", string(r.RanOn)), attribute.String("reason", r.Reason))
			span.End()
		}()
	}
	r.enter(Deciding)
	r.Snapshot = e.source.Collect(ctx, hint)
	r.Decision = e.decide(ctx, id, params, r.Snapshot)
	r.Reason = r.Decision.Reason
	metrics.AddDecision(string(id), r.Decision.Offload, string(r.Decision.Source))
	addEvent(ctx, "Decision complete",
		attribute.Bool("offload", r.Decision.Offload), attribute.String("source", string(r.Decision.Source)))

	var execErr error
	if r.Decision.Offload {
		execErr = e.runRemote(ctx, r, desc, params)
	} else {
		execErr = e.runLocal(ctx, r, desc, params, RanLocal)
	}
	r.ElapsedMs = e.now().Sub(start).Milliseconds()

	if execErr != nil {
		r.enter(Failed)
		metrics.AddFailure(string(id))
		log.Printf("[%s] %s failed: %v\n", r.RequestID, id, execErr)
		e.report(r, params, false)
		addEvent(ctx, "Execution failed", attribute.String("error", execErr.Error()))
		return nil, &TaskExecutionError{Task: id, RanOn: r.RanOn, Cause: execErr}
	}

	r.enter(Succeeded)
	metrics.AddExecution(string(id), string(r.RanOn), float64(r.ElapsedMs)/1000.0)
	addEvent(ctx, "Execution complete")
	e.report(r, params, true)
	return r, nil
}

func (e *Executor) runRemote(ctx context.Context, r *Result, desc task.Descriptor, params task.Params) error {
	r.enter(Dispatching)
	r.RanOn = RanRemote
	addEvent(ctx, "Offloading start")

	var out task.Output
	var err error
	if desc.Remote == nil {
		err = fmt.Errorf("%w: %s", task.NoRemoteHandlerErr, desc.ID)
	} else {
		out, err = invoke(ctx, desc.Remote, params)
	}
	if err == nil {
		r.Data = out.Data
		r.Server = out.Server
		return nil
	}

	r.RemoteErr = &RemoteDispatchError{Task: desc.ID, Cause: err}
	r.enter(FallingBack)
	metrics.AddFallback(string(desc.ID))
	log.Printf("[%s] %v; running locally\n", r.RequestID, r.RemoteErr)
	addEvent(ctx, "Falling back to local", attribute.String("error", err.Error()))

	r.Reason = fmt.Sprintf("remote failed (%v), fell back to local: %s", err, r.Decision.Reason)
	return e.runLocal(ctx, r, desc, params, RanLocalFallback)
}

func (e *Executor) runLocal(ctx context.Context, r *Result, desc task.Descriptor, params task.Params, ranOn RanOn) error {
	r.enter(Dispatching)
	r.RanOn = ranOn
	addEvent(ctx, "Local execution start")
	out, err := invoke(ctx, desc.Local, params)
	if err != nil {
		return err
	}
	r.Data = out.Data
	return nil
}

// invoke turns handler panics into errors.
func invoke(ctx context.Context, h task.Handler, params task.Params) (out task.Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", HandlerPanicErr, rec)
		}
	}()
	return h(ctx, params)
}

func (e *Executor) report(r *Result, params task.Params, success bool) {
	outputs := client.BenchmarkOutputs{
		RanOn:     string(r.RanOn),
		Success:   success,
		ElapsedMs: r.ElapsedMs,
	}
	if r.Server != nil {
		outputs.ServerCPULoad = r.Server.CPULoad
		outputs.ServerMemoryPercent = r.Server.MemoryPercent
		outputs.ServerComputeTimeMs = r.Server.ComputeTimeMs
	}
	e.reporter.Report(client.BenchmarkLog{
		RequestID: r.RequestID,
		Device:    r.Snapshot.DeviceModel,
		Inputs:    decision.BuildFeatures(r.Task, params, r.Snapshot),
		Outputs:   outputs,
	})
}

func addEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if telemetry.DefaultTracer != nil {
		trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
	}
}
