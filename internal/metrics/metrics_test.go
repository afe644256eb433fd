package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
	"github.com/serverledge-faas/offloading/internal/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsNoop(t *testing.T) {
	Enabled = false
	assert.NotPanics(t, func() {
		AddExecution("matrix_multiply", "local", 0.1)
		AddDecision("matrix_multiply", true, "network")
		AddFallback("matrix_multiply")
	})
	assert.Equal(t, 0.0, testutil.ToFloat64(metricFallbacks.With(prometheus.Labels{"node": node.LocalNode.String(), "task": "matrix_multiply"})))
}

func TestCountersWhenEnabled(t *testing.T) {
	node.LocalNode = node.NodeID{Role: "test", Key: "k"}
	Enable()
	defer func() { Enabled = false }()

	AddFallback("grayscale")
	AddFallback("grayscale")
	AddOracleFailure("grayscale")
	AddExecution("grayscale", "local_fallback", 0.25)

	labels := prometheus.Labels{"node": "(test)k", "task": "grayscale"}
	assert.Equal(t, 2.0, testutil.ToFloat64(metricFallbacks.With(labels)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metricOracleFailures.With(labels)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metricExecutions.With(prometheus.Labels{
		"node": "(test)k", "task": "grayscale", "ran_on": "local_fallback"})))
}

func TestScrapingHandler(t *testing.T) {
	Enable()
	defer func() { Enabled = false }()
	AddDecision("matrix_multiply", false, "threshold")

	require.NotNil(t, ScrapingHandler)
	rec := httptest.NewRecorder()
	ScrapingHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), DECISIONS))

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	require.Contains(t, families, DECISIONS)
	assert.Equal(t, 1.0, families[DECISIONS].GetMetric()[0].GetCounter().GetValue())
}

func TestPushToGateway(t *testing.T) {
	node.LocalNode = node.NodeID{Role: "device", Key: "push"}
	Enable()
	defer func() { Enabled = false }()
	AddFallback("grayscale")

	type pushed struct {
		method, path string
		size         int
	}
	received := make(chan pushed, 1)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- pushed{r.Method, r.URL.Path, len(body)}
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	require.NoError(t, Push(context.Background(), gw.URL, "offload"))
	p := <-received
	assert.Equal(t, http.MethodPut, p.method)
	assert.True(t, strings.HasPrefix(p.path, "/metrics/job/offload/instance/"), p.path)
	assert.Greater(t, p.size, 0)

	assert.Error(t, Push(context.Background(), "http://127.0.0.1:1", "offload"))
}
