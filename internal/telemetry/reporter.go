package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/config"
)

var TelemetryErr = errors.New("telemetry report failed")

// Reporter ships execution records to the benchmark sink. Report never
// blocks the caller and never fails it.
type Reporter interface {
	Report(entry client.BenchmarkLog)
	// Wait blocks until in-flight reports are done (shutdown, tests).
	Wait()
}

type NopReporter struct{}

func (NopReporter) Report(client.BenchmarkLog) {}
func (NopReporter) Wait()                      {}

type HTTPReporter struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	wg         sync.WaitGroup
}

// NewHTTPReporter posts to baseURL; a non-positive timeout defaults to 3s.
func NewHTTPReporter(baseURL string, timeout time.Duration) *HTTPReporter {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPReporter{
		url:        strings.TrimRight(baseURL, "/") + "/benchmark/log",
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

func (r *HTTPReporter) Report(entry client.BenchmarkLog) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// detached from the execution: the task result must not wait for this
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Send(ctx, entry); err != nil {
			log.Printf("[%s] %v\n", entry.Inputs.TaskName, err)
		}
	}()
}

func (r *HTTPReporter) Wait() {
	r.wg.Wait()
}

// Send posts a single record synchronously.
func (r *HTTPReporter) Send(ctx context.Context, entry client.BenchmarkLog) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", TelemetryErr, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", TelemetryErr, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", TelemetryErr, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: sink returned %d", TelemetryErr, resp.StatusCode)
	}
	return nil
}

// NewReporterFromConfig returns an HTTP reporter when telemetry is enabled.
// A missing sink URL is a configuration error.
func NewReporterFromConfig() (Reporter, error) {
	if !config.GetBool(config.TELEMETRY_ENABLED, false) {
		return NopReporter{}, nil
	}
	url, err := config.RequireString(config.TELEMETRY_URL)
	if err != nil {
		return nil, err
	}
	log.Printf("Reporting telemetry to %s\n", url)
	return NewHTTPReporter(url, config.GetMillis(config.TELEMETRY_TIMEOUT_MS, 3000)), nil
}
