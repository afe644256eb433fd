package decision

import (
	"context"
	"fmt"
	"log"

	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/metrics"
	"github.com/serverledge-faas/offloading/internal/task"
)

const predictionFallbackReason = "prediction unavailable, local fallback"

// OraclePolicy delegates the verdict to a prediction service, after the
// connectivity gate and the per-task overrides. Any oracle failure degrades
// to local execution.
type OraclePolicy struct {
	predictor Predictor
	overrides Overrides
}

func NewOraclePolicy(predictor Predictor, overrides Overrides) *OraclePolicy {
	return &OraclePolicy{predictor: predictor, overrides: overrides.Clone()}
}

func (p *OraclePolicy) Name() string {
	return "oracle"
}

func (p *OraclePolicy) Decide(ctx context.Context, id task.ID, params task.Params, s device.Snapshot) (d Decision) {
	defer safeDecide(id, &d)

	if d, stop := connectivityGate(s); stop {
		return d
	}
	if d, stop := overrideDecision(p.overrides, id); stop {
		return d
	}

	if p.predictor == nil {
		return local(SourceFallback, predictionFallbackReason)
	}
	prediction, err := p.predictor.Predict(ctx, BuildFeatures(id, params, s))
	if err != nil {
		log.Printf("[%s] Prediction failed, using local fallback: %v\n", id, err)
		metrics.AddOracleFailure(string(id))
		return local(SourceFallback, predictionFallbackReason)
	}

	return Decision{
		Offload: prediction.Remote(),
		Reason:  formatPrediction(prediction),
		Source:  SourceOracle,
	}
}

func formatPrediction(p Prediction) string {
	return fmt.Sprintf("%s (confidence %.1f%%)", p.Label, p.Probability*100)
}
