package preflight

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvWithoutRemovesKey(t *testing.T) {
	env := []string{"DISPLAY=:0", "PATH=/usr/bin", "HOME=/root"}
	got := envWithout(env, "DISPLAY")
	assert.NotContains(t, got, "DISPLAY=:0")
	assert.Contains(t, got, "PATH=/usr/bin")
	assert.Contains(t, got, "HOME=/root")
}

func TestPortAvailableReportsTakenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := uint32(ln.Addr().(*net.TCPAddr).Port)

	available, err := PortAvailable(port)
	require.NoError(t, err)
	assert.False(t, available)
}
