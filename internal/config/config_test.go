package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTOMLConfigCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := EnsureTOMLConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Default().AstroServerPath, cfg.AstroServerPath)
	assert.FileExists(t, path)
}

func TestEnsureTOMLConfigIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	first, err := EnsureTOMLConfig(path)
	require.NoError(t, err)

	second, err := EnsureTOMLConfig(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestValidateRejectsDiscordWithoutWebhook(t *testing.T) {
	cfg := Default()
	cfg.Notifications.Method = NotificationDiscord
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsDiscordWithWebhook(t *testing.T) {
	cfg := Default()
	cfg.Notifications.Method = NotificationDiscord
	cfg.Notifications.Discord = &DiscordConfig{WebhookURL: "https://discord.com/api/webhooks/x/y"}
	err := cfg.Validate()
	require.NoError(t, err)
}

func TestValidateRejectsMissingAstroServerPath(t *testing.T) {
	cfg := Default()
	cfg.AstroServerPath = ""
	err := cfg.Validate()
	require.Error(t, err)
}
