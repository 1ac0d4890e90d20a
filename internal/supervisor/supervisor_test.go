package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrotux/astrotuxsupervisor/internal/config"
	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	cfg := config.Default()
	return New(cfg, t.TempDir(), t.TempDir(), "depotdownloader")
}

func TestStateTransitionsFollowTheDAG(t *testing.T) {
	s := newTestSupervisor(t)

	require.Equal(t, ifaces.Off, s.State())
	require.NoError(t, s.setState(ifaces.Starting))
	require.NoError(t, s.setState(ifaces.Running))
	require.NoError(t, s.setState(ifaces.Stopping))
	require.NoError(t, s.setState(ifaces.Off))
}

func TestStateTransitionsRejectSkippingStarting(t *testing.T) {
	s := newTestSupervisor(t)

	err := s.setState(ifaces.Running)
	assert.Error(t, err)
	assert.Equal(t, ifaces.Off, s.State())
}

func TestStateTransitionsRejectFromOffExceptToStarting(t *testing.T) {
	s := newTestSupervisor(t)

	assert.Error(t, s.setState(ifaces.Stopping))
	assert.Error(t, s.setState(ifaces.Off))
}

func TestStartingCanEarlyExitToOff(t *testing.T) {
	s := newTestSupervisor(t)
	require.NoError(t, s.setState(ifaces.Starting))
	require.NoError(t, s.setState(ifaces.Off))
}

func TestForceStateBypassesTheDAG(t *testing.T) {
	s := newTestSupervisor(t)
	require.NoError(t, s.setState(ifaces.Starting))
	require.NoError(t, s.setState(ifaces.Running))
	s.forceState(ifaces.Off)
	assert.Equal(t, ifaces.Off, s.State())
}

func TestExtractLobbyIDsReadsNestedGamesList(t *testing.T) {
	resp := map[string]interface{}{
		"data": map[string]interface{}{
			"Games": []interface{}{
				map[string]interface{}{"LobbyID": "abc"},
				map[string]interface{}{"LobbyID": "def"},
			},
		},
	}
	ids := extractLobbyIDs(resp)
	assert.Equal(t, []string{"abc", "def"}, ids)
}

func TestExtractLobbyIDsToleratesMissingShape(t *testing.T) {
	assert.Empty(t, extractLobbyIDs(map[string]interface{}{}))
	assert.Empty(t, extractLobbyIDs(map[string]interface{}{"data": "not a map"}))
}
