package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundIPLoopback(t *testing.T) {
	ip, err := OutboundIP("127.0.0.1:9")
	require.NoError(t, err)
	assert.True(t, ip.IsLoopback())
}

func TestOutboundIPInvalidTarget(t *testing.T) {
	_, err := OutboundIP("not-an-address")
	assert.Error(t, err)
}
