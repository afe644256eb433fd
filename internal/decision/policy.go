package decision

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/task"
)

// Decision is the verdict of a policy. Reason is never empty.
type Decision struct {
	Offload bool   `json:"offload"`
	Reason  string `json:"reason"`
	Source  Source `json:"source"`
}

// Source names the rule that produced a decision.
type Source string

const (
	SourceConnectivity Source = "connectivity"
	SourceOverride     Source = "override"
	SourceThreshold    Source = "threshold"
	SourceNetwork      Source = "network"
	SourceOracle       Source = "oracle"
	SourceFallback     Source = "fallback"
)

// Policy decides where a task runs. Implementations are total: they return a
// justified Decision for every input and never fail.
type Policy interface {
	Name() string
	Decide(ctx context.Context, id task.ID, p task.Params, s device.Snapshot) Decision
}

// Thresholds below which a task is not worth offloading.
type Thresholds struct {
	MatrixOrder int
	ImageSizeKB float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{MatrixOrder: 25, ImageSizeKB: 1024}
}

func local(src Source, format string, args ...interface{}) Decision {
	return Decision{Offload: false, Reason: fmt.Sprintf(format, args...), Source: src}
}

func remote(src Source, format string, args ...interface{}) Decision {
	return Decision{Offload: true, Reason: fmt.Sprintf(format, args...), Source: src}
}

// connectivityGate is the first rule of every policy.
func connectivityGate(s device.Snapshot) (Decision, bool) {
	if !s.Connected || s.Network == device.NetworkNone {
		return local(SourceConnectivity, "no network connection"), true
	}
	if s.Network == device.NetworkUnknown {
		return local(SourceConnectivity, "network type unknown"), true
	}
	return Decision{}, false
}

// safeDecide recovers from a panicking policy and degrades to local execution.
func safeDecide(id task.ID, d *Decision) {
	if r := recover(); r != nil {
		log.Printf("[%s] Decision failed: %v\n", id, r)
		*d = local(SourceFallback, "decision failed, running locally")
	}
}

// CreatePolicy builds the policy selected in the configuration.
func CreatePolicy() (Policy, error) {
	overrides := LoadOverrides()
	thresholds := Thresholds{
		MatrixOrder: config.GetInt(config.DECISION_MATRIX_THRESHOLD, DefaultThresholds().MatrixOrder),
		ImageSizeKB: config.GetFloat(config.DECISION_IMAGE_THRESHOLD_KB, DefaultThresholds().ImageSizeKB),
	}

	policyConf := strings.ToLower(config.GetString(config.DECISION_POLICY, "rules"))
	log.Printf("Configured decision policy: %s\n", policyConf)
	switch policyConf {
	case "oracle", "ml":
		oracleURL, err := config.RequireString(config.ORACLE_URL)
		if err != nil {
			return nil, err
		}
		timeout := config.GetMillis(config.ORACLE_TIMEOUT_MS, 3000)
		return NewOraclePolicy(NewOracleClient(oracleURL, timeout), overrides), nil
	case "rules", "default", "":
		return NewRulePolicy(overrides, thresholds), nil
	default:
		return nil, fmt.Errorf("unknown decision policy: %s", policyConf)
	}
}
