package dsconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
)

func TestPlayerPropertiesRoundTrip(t *testing.T) {
	pp := PlayerProperties{
		PlayerFirstJoinName:  "John",
		PlayerCategory:       ifaces.CategoryAdmin,
		PlayerGuid:           "0002abcd",
		PlayerRecentJoinName: "Johnny",
	}

	s := pp.String()
	parsed, err := ParsePlayerProperties(s)
	require.NoError(t, err)
	assert.Equal(t, pp, parsed)
}

func TestParsePlayerPropertiesInvalid(t *testing.T) {
	_, err := ParsePlayerProperties("not-a-valid-entry")
	require.Error(t, err)
}

func TestValidPublicIPv4(t *testing.T) {
	assert.True(t, validPublicIPv4("8.8.8.8"))
	assert.False(t, validPublicIPv4("10.0.0.5"))
	assert.False(t, validPublicIPv4("127.0.0.1"))
	assert.False(t, validPublicIPv4(""))
	assert.False(t, validPublicIPv4("not-an-ip"))
}

func TestEnsureDSConfigCreatesDefaultsAndForcesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "AstroServerSettings.ini")

	// Seed a file with the forced fields set "wrong", to verify
	// EnsureDSConfig re-asserts them on every load regardless of disk state.
	doc := NewDoc()
	sec := doc.Section(dsSection)
	cfg := DefaultDSConfig()
	cfg.VerbosePlayerProperties = false
	cfg.HeartbeatInterval = 10
	cfg.PublicIP = "203.0.113.5" // TEST-NET-3; net.IP's checks do not flag it, so validPublicIPv4 accepts it and no public-IP fetch happens
	cfg.toSection(sec)
	require.NoError(t, WriteFile(path, doc))

	got, err := EnsureDSConfig(path, false)
	require.NoError(t, err)
	assert.True(t, got.VerbosePlayerProperties)
	assert.Equal(t, defaultHeartbeatInterval, got.HeartbeatInterval)
}

func TestEngineConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Engine.ini")

	cfg, err := EnsureEngineConfig(path, true)
	require.NoError(t, err)
	assert.False(t, cfg.AllowEncryption)
	assert.Equal(t, 7777, cfg.Port)

	reloaded, err := EnsureEngineConfig(path, false)
	require.NoError(t, err)
	assert.True(t, reloaded.AllowEncryption)
	assert.Equal(t, 7777, reloaded.Port)
}
