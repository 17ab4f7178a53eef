//go:build !docker

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProxyTrustLoopbackOnly(t *testing.T) {
	trust := proxyTrust()
	assert.True(t, trust.Loopback)
	assert.False(t, trust.Private)
}
