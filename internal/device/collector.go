package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/serverledge-faas/offloading/internal/client"
)

// Collector gathers a Snapshot for each decision.
type Collector struct {
	computeURL       string
	probeClient      *http.Client
	sensors          Sensors
	defaultLatencyMs int64
	fallbackModel    string
	fetchStatus      bool
	now              func() time.Time
}

type CollectorOptions struct {
	ComputeURL       string
	ProbeTimeout     time.Duration
	DefaultLatencyMs int64
	DeviceModel      string // reported when the sensors cannot identify the device
	FetchStatus      bool   // read server load from GET /status instead of placeholders
}

func NewCollector(sensors Sensors, opts CollectorOptions) *Collector {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	if opts.DefaultLatencyMs <= 0 {
		opts.DefaultLatencyMs = DefaultLatencyMs
	}
	if opts.DeviceModel == "" {
		opts.DeviceModel = UnknownDeviceModel
	}
	if sensors == nil {
		sensors = StaticSensors{Battery: -1}
	}
	return &Collector{
		computeURL:       strings.TrimRight(opts.ComputeURL, "/"),
		probeClient:      &http.Client{Timeout: opts.ProbeTimeout},
		sensors:          sensors,
		defaultLatencyMs: opts.DefaultLatencyMs,
		fallbackModel:    opts.DeviceModel,
		fetchStatus:      opts.FetchStatus,
		now:              time.Now,
	}
}

// Collect never fails: every signal that cannot be read is reported as unknown
// (or, for latency, as the default value).
func (c *Collector) Collect(ctx context.Context, hint NetworkHint) Snapshot {
	s := Snapshot{
		Connected:   hint.Connected,
		Network:     ClassifyNetwork(hint),
		LatencyMs:   c.defaultLatencyMs,
		DeviceModel: c.fallbackModel,
		TakenAt:     c.now(),
	}

	if level, err := c.sensors.BatteryLevel(ctx); err == nil && level >= 0 && level <= 1 {
		s.Battery = Measured(level)
	}
	if state, err := c.sensors.Charging(ctx); err == nil {
		s.Charging = state
	}
	if model, err := c.sensors.DeviceModel(ctx); err == nil && model != "" {
		s.DeviceModel = model
	}

	if !s.Online() || c.computeURL == "" {
		return s
	}

	latency, err := c.probeLatency(ctx)
	if err != nil {
		log.Printf("Could not measure latency, using %dms: %v\n", c.defaultLatencyMs, err)
	} else {
		s.LatencyMs = latency
		s.LatencyMeasured = true
	}

	if c.fetchStatus {
		status, err := c.serverStatus(ctx)
		if err != nil {
			log.Printf("Could not read server status: %v\n", err)
		} else {
			s.ServerCPULoad = Measured(status.CPULoad)
			s.ServerMemoryPercent = Measured(status.MemoryPercent)
		}
	}
	return s
}

// probeLatency measures the round trip of GET /ping.
func (c *Collector) probeLatency(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.computeURL+"/ping", nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ping returned %d", resp.StatusCode)
	}
	return time.Since(start).Milliseconds(), nil
}

func (c *Collector) serverStatus(ctx context.Context) (client.ServerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.computeURL+"/status", nil)
	if err != nil {
		return client.ServerStatus{}, err
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return client.ServerStatus{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return client.ServerStatus{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return client.ServerStatus{}, errors.New("could not get status information")
	}
	var status client.ServerStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return client.ServerStatus{}, fmt.Errorf("could not decode status information: %w", err)
	}
	return status, nil
}
