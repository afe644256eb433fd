package device

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLatencyMs is assumed when the latency probe fails.
const DefaultLatencyMs = 200

const UnknownDeviceModel = "unknown"

// NetworkHint is the caller's view of connectivity (e.g., from the OS network API).
type NetworkHint struct {
	Connected          bool
	Type               string // "wifi", "cellular", "ethernet", "none", "unknown", ...
	CellularGeneration string // "2g", "3g", "4g", "5g" or empty
}

type NetworkClass string

const (
	NetworkNone       NetworkClass = "none"
	NetworkUnknown    NetworkClass = "unknown"
	NetworkWifi       NetworkClass = "wifi"
	NetworkEthernet   NetworkClass = "ethernet"
	NetworkCellular   NetworkClass = "cellular"
	NetworkCellular2G NetworkClass = "cellular_2g"
	NetworkCellular3G NetworkClass = "cellular_3g"
	NetworkCellular4G NetworkClass = "cellular_4g"
	NetworkCellular5G NetworkClass = "cellular_5g"
)

// ClassifyNetwork maps a hint to a network class.
func ClassifyNetwork(h NetworkHint) NetworkClass {
	if !h.Connected {
		return NetworkNone
	}
	switch strings.ToLower(strings.TrimSpace(h.Type)) {
	case "wifi":
		return NetworkWifi
	case "ethernet":
		return NetworkEthernet
	case "cellular":
		switch strings.ToLower(strings.TrimSpace(h.CellularGeneration)) {
		case "2g":
			return NetworkCellular2G
		case "3g":
			return NetworkCellular3G
		case "4g":
			return NetworkCellular4G
		case "5g":
			return NetworkCellular5G
		}
		return NetworkCellular
	case "none":
		return NetworkNone
	}
	return NetworkUnknown
}

// Reading is a best-effort measurement; Known is false when it could not be taken.
type Reading struct {
	Value float64
	Known bool
}

func Measured(v float64) Reading {
	return Reading{Value: v, Known: true}
}

var Unknown = Reading{}

func (r Reading) String() string {
	if !r.Known {
		return "unknown"
	}
	return fmt.Sprintf("%.3f", r.Value)
}

type ChargeState int

const (
	ChargeUnknown ChargeState = iota
	Charging
	Discharging
)

func (c ChargeState) String() string {
	switch c {
	case Charging:
		return "charging"
	case Discharging:
		return "discharging"
	}
	return "unknown"
}

// Snapshot is the device and network state at decision time. It is a value
// type: copies are independent and nothing in this module mutates one after
// Collect returns it.
type Snapshot struct {
	Connected           bool
	Network             NetworkClass
	LatencyMs           int64
	LatencyMeasured     bool
	Battery             Reading // 0..1
	Charging            ChargeState
	DeviceModel         string
	ServerCPULoad       Reading
	ServerMemoryPercent Reading
	TakenAt             time.Time
}

// Online reports whether the snapshot allows any offloading at all.
func (s Snapshot) Online() bool {
	return s.Connected && s.Network != NetworkNone && s.Network != NetworkUnknown
}

func (s Snapshot) String() string {
	return fmt.Sprintf("[net=%s latency=%dms(measured=%v) battery=%s %s model=%q]",
		s.Network, s.LatencyMs, s.LatencyMeasured, s.Battery, s.Charging, s.DeviceModel)
}
