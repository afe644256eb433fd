package metrics

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/node"
)

var Enabled bool
var registry = prometheus.NewRegistry()
var ScrapingHandler http.Handler = nil
var durationBuckets = []float64{0.002, 0.005, 0.010, 0.02, 0.03, 0.05, 0.1, 0.15, 0.3, 0.6, 1.0, 2.5, 5.0}

const (
	EXECUTIONS      = "executions_total"
	EXECUTION_TIME  = "execution_time"
	DECISIONS       = "decisions_total"
	FALLBACKS       = "fallbacks_total"
	FAILURES        = "failures_total"
	ORACLE_FAILURES = "oracle_failures_total"
	SERVED          = "served_total"
	COMPUTE_TIME    = "compute_time"
)

var (
	factory = promauto.With(registry)

	metricExecutions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: EXECUTIONS,
		Help: "Number of completed task executions",
	}, []string{"node", "task", "ran_on"})
	metricExecutionTime = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    EXECUTION_TIME,
		Help:    "End-to-end task execution time (seconds), fallback included",
		Buckets: durationBuckets,
	}, []string{"node", "task", "ran_on"})
	metricDecisions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: DECISIONS,
		Help: "Offloading decisions by verdict and rule",
	}, []string{"node", "task", "offload", "source"})
	metricFallbacks = factory.NewCounterVec(prometheus.CounterOpts{
		Name: FALLBACKS,
		Help: "Remote executions that fell back to local",
	}, []string{"node", "task"})
	metricFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: FAILURES,
		Help: "Executions that could not be completed",
	}, []string{"node", "task"})
	metricOracleFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: ORACLE_FAILURES,
		Help: "Prediction requests that failed or returned malformed responses",
	}, []string{"node", "task"})
	metricServed = factory.NewCounterVec(prometheus.CounterOpts{
		Name: SERVED,
		Help: "Tasks served by the compute service",
	}, []string{"node", "task", "outcome"})
	metricComputeTime = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    COMPUTE_TIME,
		Help:    "Server-side compute time (seconds)",
		Buckets: durationBuckets,
	}, []string{"node", "task"})
)

func Init() {
	if config.GetBool(config.METRICS_ENABLED, false) {
		log.Println("Metrics enabled.")
		Enable()
	} else {
		Enabled = false
	}
}

// Enable turns collection on and builds the scraping handler.
func Enable() {
	Enabled = true
	ScrapingHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true})
}

// Registry exposes the private registry (tests, custom exporters).
func Registry() *prometheus.Registry {
	return registry
}

// Push sends the collected metrics to a Pushgateway. The series already carry
// a node label, so the group key is the instance.
func Push(ctx context.Context, gatewayURL string, job string) error {
	return push.New(gatewayURL, job).
		Gatherer(registry).
		Grouping("instance", node.LocalNode.String()).
		PushContext(ctx)
}

func AddExecution(taskName, ranOn string, seconds float64) {
	if !Enabled {
		return
	}
	labels := prometheus.Labels{"node": node.LocalNode.String(), "task": taskName, "ran_on": ranOn}
	metricExecutions.With(labels).Inc()
	metricExecutionTime.With(labels).Observe(seconds)
}

func AddDecision(taskName string, offload bool, source string) {
	if !Enabled {
		return
	}
	verdict := "false"
	if offload {
		verdict = "true"
	}
	metricDecisions.With(prometheus.Labels{"node": node.LocalNode.String(), "task": taskName, "offload": verdict, "source": source}).Inc()
}

func AddFallback(taskName string) {
	if !Enabled {
		return
	}
	metricFallbacks.With(prometheus.Labels{"node": node.LocalNode.String(), "task": taskName}).Inc()
}

func AddFailure(taskName string) {
	if !Enabled {
		return
	}
	metricFailures.With(prometheus.Labels{"node": node.LocalNode.String(), "task": taskName}).Inc()
}

func AddOracleFailure(taskName string) {
	if !Enabled {
		return
	}
	metricOracleFailures.With(prometheus.Labels{"node": node.LocalNode.String(), "task": taskName}).Inc()
}

func AddServedTask(taskName, outcome string, seconds float64) {
	if !Enabled {
		return
	}
	metricServed.With(prometheus.Labels{"node": node.LocalNode.String(), "task": taskName, "outcome": outcome}).Inc()
	if outcome == "ok" {
		metricComputeTime.With(prometheus.Labels{"node": node.LocalNode.String(), "task": taskName}).Observe(seconds)
	}
}
