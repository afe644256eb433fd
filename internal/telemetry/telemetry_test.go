package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportPostsEntry(t *testing.T) {
	received := make(chan client.BenchmarkLog, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/benchmark/log", r.URL.Path)
		var entry client.BenchmarkLog
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entry))
		received <- entry
	}))
	defer srv.Close()

	r := NewHTTPReporter(srv.URL, time.Second)
	r.Report(client.BenchmarkLog{
		Inputs:  client.PredictionRequest{TaskName: "matrix_multiply", MatrixSize: 100},
		Outputs: client.BenchmarkOutputs{RanOn: "remote", Success: true, ElapsedMs: 12},
	})
	r.Wait()

	entry := <-received
	assert.Equal(t, "matrix_multiply", entry.Inputs.TaskName)
	assert.Equal(t, 100, entry.Inputs.MatrixSize)
	assert.Equal(t, int64(12), entry.Outputs.ElapsedMs)
}

func TestZeroTimeoutUsesDefault(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
	}))
	defer srv.Close()

	for _, timeout := range []time.Duration{0, -time.Second} {
		r := NewHTTPReporter(srv.URL, timeout)
		assert.Equal(t, 3*time.Second, r.timeout)
		require.NoError(t, r.Send(context.Background(), client.BenchmarkLog{}))
		<-received
	}
}

func TestReportDoesNotBlockCaller(t *testing.T) {
	var done int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		atomic.StoreInt32(&done, 1)
	}))
	defer srv.Close()

	r := NewHTTPReporter(srv.URL, time.Second)
	start := time.Now()
	r.Report(client.BenchmarkLog{})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	r.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&done))
}

func TestSendFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewHTTPReporter(srv.URL, time.Second).Send(context.Background(), client.BenchmarkLog{})
	assert.True(t, errors.Is(err, TelemetryErr))

	err = NewHTTPReporter("http://127.0.0.1:1", 100*time.Millisecond).Send(context.Background(), client.BenchmarkLog{})
	assert.True(t, errors.Is(err, TelemetryErr))

	// failures are swallowed by Report
	r := NewHTTPReporter("http://127.0.0.1:1", 100*time.Millisecond)
	assert.NotPanics(t, func() {
		r.Report(client.BenchmarkLog{})
		r.Wait()
	})
}

func TestSetupOTelSDK(t *testing.T) {
	out := filepath.Join(t.TempDir(), "traces.json")
	shutdown, err := SetupOTelSDK(context.Background(), out)
	require.NoError(t, err)
	require.NotNil(t, DefaultTracer)

	_, span := DefaultTracer.Start(context.Background(), "test")
	span.AddEvent("event")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test")
	DefaultTracer = nil
}
