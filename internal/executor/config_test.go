package executor

import (
	"errors"
	"testing"

	"github.com/serverledge-faas/offloading/internal/config"
	"github.com/serverledge-faas/offloading/internal/device"
	"github.com/serverledge-faas/offloading/internal/telemetry"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	_, _, err := NewFromConfig(device.StaticSensors{Battery: -1})
	assert.True(t, errors.Is(err, config.MissingConfigErr))

	config.Set(config.COMPUTE_URL, "http://127.0.0.1:5000")
	config.Set(config.DECISION_POLICY, "coin-flip")
	_, _, err = NewFromConfig(nil)
	assert.Error(t, err)

	config.Set(config.DECISION_POLICY, "oracle")
	_, _, err = NewFromConfig(nil)
	assert.True(t, errors.Is(err, config.MissingConfigErr))

	config.Set(config.DECISION_POLICY, "rules")
	e, reporter, err := NewFromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "rules", e.Policy().Name())
	assert.IsType(t, telemetry.NopReporter{}, reporter)

	config.Set(config.TELEMETRY_ENABLED, true)
	_, _, err = NewFromConfig(nil)
	assert.True(t, errors.Is(err, config.MissingConfigErr))
}
