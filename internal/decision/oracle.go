package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/serverledge-faas/offloading/internal/client"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/task"
)

// PredictionUnavailableErr is returned by predictors when no usable
// prediction could be obtained. It never leaves the decision package.
var PredictionUnavailableErr = errors.New("prediction unavailable")

type Prediction struct {
	Label       string
	Probability float64
}

func (p Prediction) Remote() bool {
	return p.Label == string(PinRemote)
}

// Predictor returns an offloading recommendation for a feature vector.
type Predictor interface {
	Predict(ctx context.Context, features client.PredictionRequest) (Prediction, error)
}

// OracleClient queries the prediction service over HTTP.
type OracleClient struct {
	url        string
	httpClient *http.Client
}

func NewOracleClient(baseURL string, timeout time.Duration) *OracleClient {
	return &OracleClient{
		url:        strings.TrimRight(baseURL, "/") + "/predict_offload",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (o *OracleClient) Predict(ctx context.Context, features client.PredictionRequest) (Prediction, error) {
	jsonData, err := json.Marshal(features)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", PredictionUnavailableErr, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: creating request: %v", PredictionUnavailableErr, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: sending request: %v", PredictionUnavailableErr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("%w: oracle returned status code %d", PredictionUnavailableErr, resp.StatusCode)
	}

	var pr client.PredictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Prediction{}, fmt.Errorf("%w: decoding response: %v", PredictionUnavailableErr, err)
	}
	return validatePrediction(pr)
}

func validatePrediction(pr client.PredictionResponse) (Prediction, error) {
	label := strings.ToLower(strings.TrimSpace(pr.Prediction))
	if label != string(PinRemote) && label != string(PinLocal) {
		return Prediction{}, fmt.Errorf("%w: unexpected prediction %q", PredictionUnavailableErr, pr.Prediction)
	}
	if pr.Probability == nil || *pr.Probability < 0 || *pr.Probability > 1 {
		return Prediction{}, fmt.Errorf("%w: missing or out of range probability", PredictionUnavailableErr)
	}
	return Prediction{Label: label, Probability: *pr.Probability}, nil
}

// BuildFeatures combines task complexity and device state into the vector
// expected by the oracle. Unknown battery is sent as -1; server load
// placeholders are sent as 0 until a real reading is available.
func BuildFeatures(id task.ID, p task.Params, s device.Snapshot) client.PredictionRequest {
	var c task.Complexity
	if p != nil {
		c = p.Complexity()
	}
	f := client.PredictionRequest{
		TaskName:        string(id),
		MatrixSize:      c.MatrixOrder,
		ImageSizeKB:     c.ImageSizeKB,
		BatteryLevel:    -1,
		DeviceModelName: s.DeviceModel,
		NetworkType:     networkFeature(s.Network),
		LatencyMs:       float64(s.LatencyMs),
	}
	if s.Battery.Known {
		f.BatteryLevel = s.Battery.Value
	}
	if s.Charging == device.Charging {
		f.IsCharging = 1
	}
	if s.ServerCPULoad.Known {
		f.ServerCPULoad = s.ServerCPULoad.Value
	}
	if s.ServerMemoryPercent.Known {
		f.ServerMemoryPercent = s.ServerMemoryPercent.Value
	}
	return f
}

// networkFeature reports the cellular generation when known, the network type otherwise.
func networkFeature(c device.NetworkClass) string {
	switch c {
	case device.NetworkCellular2G:
		return "2g"
	case device.NetworkCellular3G:
		return "3g"
	case device.NetworkCellular4G:
		return "4g"
	case device.NetworkCellular5G:
		return "5g"
	}
	return string(c)
}
