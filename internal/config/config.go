// Package config implements the supervisor's own TOML-backed launcher
// configuration, loaded and validated once at startup. Where the DS's own
// settings live in dsconfig's INI format, LauncherConfig is everything
// about how the supervisor itself behaves.
//
// Grounded on original_source/AstroTuxLauncher.py's LauncherConfig
// dataclass and ensure_toml_config. No example repo ships its own
// from-scratch TOML codec, so encoding/decoding uses
// github.com/pelletier/go-toml/v2 (grounded on pelican-dev-wings,
// psubacz-dungeongate, darkdragonsastro-draco-simulator manifests) with
// struct-tag validation via github.com/go-playground/validator/v10
// (grounded on Codycody31-squad-aegis, HoNfigurator-Portal-energizer,
// darkdragonsastro-draco-simulator).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// NotificationMethod mirrors AstroTuxLauncher.py's NotificationMethod
// enum: which single sink (if any) the supervisor should push
// notifications to.
type NotificationMethod string

const (
	NotificationNone    NotificationMethod = ""
	NotificationNtfy    NotificationMethod = "ntfy"
	NotificationDiscord NotificationMethod = "discord"
)

// DiscordConfig holds the webhook target used when Method == discord.
type DiscordConfig struct {
	WebhookURL string `toml:"webhookURL,omitempty"`
}

// NtfyConfig holds the push topic used when Method == ntfy.
type NtfyConfig struct {
	Topic  string `toml:"topic,omitempty"`
	Server string `toml:"server" validate:"required,url"`
}

// NotificationConfig selects and configures at most one notification sink.
type NotificationConfig struct {
	Method  NotificationMethod `toml:"method" validate:"omitempty,oneof=ntfy discord"`
	Discord *DiscordConfig     `toml:"discord,omitempty"`
	Ntfy    *NtfyConfig        `toml:"ntfy,omitempty"`
}

// LauncherConfig is the supervisor's own top-level configuration.
// Grounded field-for-field on LauncherConfig in AstroTuxLauncher.py.
type LauncherConfig struct {
	AutoUpdateServer bool `toml:"AutoUpdateServer"`

	CheckNetwork      bool `toml:"CheckNetwork"`
	OverwritePublicIP bool `toml:"OverwritePublicIP"`

	Notifications NotificationConfig `toml:"notifications"`

	LogDebugMessages bool `toml:"LogDebugMessages"`

	AstroServerPath  string `toml:"AstroServerPath" validate:"required"`
	OverrideWinePath string `toml:"OverrideWinePath,omitempty"`
	WinePrefixPath   string `toml:"WinePrefixPath" validate:"required"`
	LogPath          string `toml:"LogPath" validate:"required"`

	PlayfabAPIInterval  int     `toml:"PlayfabAPIInterval" validate:"gte=1"`
	ServerStatusInterval float64 `toml:"ServerStatusInterval" validate:"gt=0"`

	DisableEncryption bool `toml:"DisableEncryption"`
}

// Default returns the supervisor's built-in defaults, mirroring the
// dataclass field defaults of LauncherConfig.
func Default() LauncherConfig {
	return LauncherConfig{
		AutoUpdateServer:     true,
		CheckNetwork:         true,
		OverwritePublicIP:    false,
		Notifications:        NotificationConfig{Method: NotificationNone},
		LogDebugMessages:     false,
		AstroServerPath:      "AstroneerServer",
		WinePrefixPath:       "winepfx",
		LogPath:              "logs",
		PlayfabAPIInterval:   2,
		ServerStatusInterval: 3,
		DisableEncryption:    true,
	}
}

var validate = validator.New()

// Validate checks c against its struct tags, grounded on the spec's
// requirement that a malformed config fail fast at startup rather than
// surface as a confusing runtime error later.
func (c LauncherConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}

	switch c.Notifications.Method {
	case NotificationDiscord:
		if c.Notifications.Discord == nil || c.Notifications.Discord.WebhookURL == "" {
			return fmt.Errorf("config: notifications.method is %q but notifications.discord.webhookURL is not set", c.Notifications.Method)
		}
	case NotificationNtfy:
		if c.Notifications.Ntfy == nil || c.Notifications.Ntfy.Topic == "" {
			return fmt.Errorf("config: notifications.method is %q but notifications.ntfy.topic is not set", c.Notifications.Method)
		}
	}

	return nil
}

// EnsureTOMLConfig loads configPath if present, otherwise starts from
// Default(); either way it writes the result back out (creating the file
// and any parent directories if necessary) so that new fields introduced
// by a later version show up in the file on disk. Grounded on
// LauncherConfig.ensure_toml_config.
func EnsureTOMLConfig(configPath string) (LauncherConfig, error) {
	cfg := Default()

	if data, err := os.ReadFile(configPath); err == nil {
		cfg = Default()
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return LauncherConfig{}, fmt.Errorf("config: parsing %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return LauncherConfig{}, fmt.Errorf("config: reading %s: %w", configPath, err)
	} else {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return LauncherConfig{}, fmt.Errorf("config: creating %s: %w", filepath.Dir(configPath), err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return LauncherConfig{}, err
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return LauncherConfig{}, fmt.Errorf("config: encoding config: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0644); err != nil {
		return LauncherConfig{}, fmt.Errorf("config: writing %s: %w", configPath, err)
	}

	return cfg, nil
}
