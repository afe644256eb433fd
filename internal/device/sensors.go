package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/distatus/battery"
	"github.com/shirou/gopsutil/v3/host"
)

var NoBatteryErr = errors.New("no battery found")

// Sensors reads device-local signals. Every method may fail; failures are
// turned into unknown readings by the collector.
type Sensors interface {
	BatteryLevel(ctx context.Context) (float64, error)
	Charging(ctx context.Context) (ChargeState, error)
	DeviceModel(ctx context.Context) (string, error)
}

// HostSensors reads the battery of the machine running the client and
// identifies it through the host platform information.
type HostSensors struct{}

func (HostSensors) firstBattery() (*battery.Battery, error) {
	bats, err := battery.GetAll()
	if len(bats) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, NoBatteryErr
	}
	if bats[0] == nil {
		return nil, NoBatteryErr
	}
	return bats[0], nil
}

func (s HostSensors) BatteryLevel(_ context.Context) (float64, error) {
	b, err := s.firstBattery()
	if err != nil {
		return 0, err
	}
	if b.Full <= 0 {
		return 0, fmt.Errorf("battery reports no full capacity")
	}
	level := b.Current / b.Full
	if level > 1 {
		level = 1
	}
	return level, nil
}

func (s HostSensors) Charging(_ context.Context) (ChargeState, error) {
	b, err := s.firstBattery()
	if err != nil {
		return ChargeUnknown, err
	}
	switch b.State.Raw {
	case battery.Charging, battery.Full:
		return Charging, nil
	case battery.Discharging, battery.Empty, battery.Idle:
		return Discharging, nil
	}
	return ChargeUnknown, nil
}

func (HostSensors) DeviceModel(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", err
	}
	model := strings.TrimSpace(strings.Join([]string{info.Platform, info.PlatformVersion, info.KernelArch}, " "))
	if model == "" {
		return "", fmt.Errorf("host reports no platform")
	}
	return model, nil
}

// StaticSensors returns fixed values; negative Battery means unknown.
type StaticSensors struct {
	Battery  float64
	State    ChargeState
	Model    string
	Failures bool
}

func (s StaticSensors) BatteryLevel(_ context.Context) (float64, error) {
	if s.Failures || s.Battery < 0 {
		return 0, NoBatteryErr
	}
	return s.Battery, nil
}

func (s StaticSensors) Charging(_ context.Context) (ChargeState, error) {
	if s.Failures {
		return ChargeUnknown, NoBatteryErr
	}
	return s.State, nil
}

func (s StaticSensors) DeviceModel(_ context.Context) (string, error) {
	if s.Failures || s.Model == "" {
		return "", fmt.Errorf("device model not available")
	}
	return s.Model, nil
}
