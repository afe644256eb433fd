package decision

import (
	"context"

	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/task"
	"golang.org/x/exp/slices"
)

// fastNetworks are the classes on which offloading pays off.
var fastNetworks = []device.NetworkClass{
	device.NetworkWifi,
	device.NetworkEthernet,
	device.NetworkCellular4G,
	device.NetworkCellular5G,
}

// RulePolicy is a deterministic rule table. Rules are evaluated in order and
// the first one that applies wins:
// connectivity, per-task override, size threshold, network quality.
type RulePolicy struct {
	overrides  Overrides
	thresholds Thresholds
}

func NewRulePolicy(overrides Overrides, thresholds Thresholds) *RulePolicy {
	return &RulePolicy{overrides: overrides.Clone(), thresholds: thresholds}
}

func (p *RulePolicy) Name() string {
	return "rules"
}

func (p *RulePolicy) Decide(_ context.Context, id task.ID, params task.Params, s device.Snapshot) (d Decision) {
	defer safeDecide(id, &d)

	if d, stop := connectivityGate(s); stop {
		return d
	}
	if d, stop := overrideDecision(p.overrides, id); stop {
		return d
	}
	if d, stop := p.sizeGate(id, params); stop {
		return d
	}
	if slices.Contains(fastNetworks, s.Network) {
		return remote(SourceNetwork, "fast network (%s)", s.Network)
	}
	return local(SourceNetwork, "slow network (%s)", s.Network)
}

func (p *RulePolicy) sizeGate(id task.ID, params task.Params) (Decision, bool) {
	var c task.Complexity
	if params != nil {
		c = params.Complexity()
	}
	switch id.Kind() {
	case task.KindMatrix:
		if c.MatrixOrder < p.thresholds.MatrixOrder {
			return local(SourceThreshold, "matrix order %d below threshold %d", c.MatrixOrder, p.thresholds.MatrixOrder), true
		}
	case task.KindImage:
		if c.ImageSizeKB < p.thresholds.ImageSizeKB {
			return local(SourceThreshold, "image %.1fKB below threshold %.1fKB", c.ImageSizeKB, p.thresholds.ImageSizeKB), true
		}
	}
	return Decision{}, false
}
