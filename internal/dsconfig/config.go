package dsconfig

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
)

const (
	dsSection     = "/Script/Astro.AstroServerSettings"
	publicIPURL   = "https://api.ipify.org?format=json"
	publicIPTries = 5 * time.Second

	defaultHeartbeatInterval = 55
)

// PlayerProperties is one entry of the DS config's PlayerProperties list.
// Grounded on original_source/astro/dedicatedserver.py's PlayerProperties
// dataclass and its to_string/from_string pair.
type PlayerProperties struct {
	PlayerFirstJoinName  string
	PlayerCategory       ifaces.PlayerCategory
	PlayerGuid           string
	PlayerRecentJoinName string
}

var playerPropsPattern = regexp.MustCompile(`\((.*)\)`)

// ParsePlayerProperties decodes one PlayerProperties string, e.g.
// `(PlayerFirstJoinName="x",PlayerCategory=Admin,PlayerGuid="0002...",PlayerRecentJoinName="x")`.
func ParsePlayerProperties(s string) (PlayerProperties, error) {
	m := playerPropsPattern.FindStringSubmatch(s)
	if m == nil {
		return PlayerProperties{}, fmt.Errorf("dsconfig: invalid PlayerProperties string %q", s)
	}

	var pp PlayerProperties
	for _, kv := range splitTopLevelCommas(m[1]) {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return PlayerProperties{}, fmt.Errorf("dsconfig: invalid PlayerProperties pair %q", kv)
		}
		key := strings.TrimSpace(parts[0])
		val := unquote(strings.TrimSpace(parts[1]))

		switch key {
		case "PlayerFirstJoinName":
			pp.PlayerFirstJoinName = val
		case "PlayerCategory":
			pp.PlayerCategory = ifaces.PlayerCategory(val)
		case "PlayerGuid":
			pp.PlayerGuid = val
		case "PlayerRecentJoinName":
			pp.PlayerRecentJoinName = val
		}
	}
	return pp, nil
}

// splitTopLevelCommas splits on commas; the reference parser doesn't need
// to be nesting-aware since none of the four fields can themselves contain
// an unescaped comma in practice, so a plain split suffices here too.
func splitTopLevelCommas(s string) []string {
	return strings.Split(s, ",")
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// String encodes back to the DS's PlayerProperties wire form.
func (p PlayerProperties) String() string {
	return fmt.Sprintf(`(PlayerFirstJoinName="%s",PlayerCategory=%s,PlayerGuid="%s",PlayerRecentJoinName="%s")`,
		p.PlayerFirstJoinName, p.PlayerCategory, p.PlayerGuid, p.PlayerRecentJoinName)
}

// DSConfig is the typed view of AstroServerSettings.ini. Field names follow
// the DS's own INI keys, minus the "b" prefix the DS uses on some boolean
// keys (bLoadAutoSave, bWaitForPlayersBeforeShutdown, bDisableServerTravel);
// dsConfigFromSection and toSection map every key explicitly.
type DSConfig struct {
	LoadAutoSave              bool
	MaxServerFramerate        int
	MaxServerIdleFramerate    int
	WaitForPlayersBeforeShutdown bool
	PublicIP                  string
	ServerName                string
	MaximumPlayerCount        int
	OwnerName                 string
	OwnerGuid                 string
	PlayerActivityTimeout     int
	ServerPassword            string
	DisableServerTravel       bool
	DenyUnlistedPlayers       bool
	VerbosePlayerProperties   bool
	AutoSaveGameInterval      int
	BackupSaveGamesInterval   int
	ServerGuid                string
	ActiveSaveFileDescriptiveName string
	ServerAdvertisedName      string
	ConsolePort               int
	ConsolePassword           string
	HeartbeatInterval         int
	ExitSemaphore             string
	PlayerProperties          []PlayerProperties
}

// DefaultDSConfig returns the DS's built-in defaults, generating fresh
// ServerGuid/ConsolePassword UUIDs the way the reference dataclass's field
// defaults do.
func DefaultDSConfig() DSConfig {
	return DSConfig{
		LoadAutoSave:                  true,
		MaxServerFramerate:            30,
		MaxServerIdleFramerate:        3,
		WaitForPlayersBeforeShutdown:  false,
		ServerName:                    "Astroneer Dedicated Server",
		MaximumPlayerCount:            8,
		DenyUnlistedPlayers:           false,
		VerbosePlayerProperties:       true,
		AutoSaveGameInterval:          900,
		BackupSaveGamesInterval:       7200,
		ServerGuid:                    uuid.New().String(),
		ActiveSaveFileDescriptiveName: "SAVE_1",
		ConsolePort:                   1234,
		ConsolePassword:               uuid.New().String(),
		HeartbeatInterval:             defaultHeartbeatInterval,
	}
}

func dsConfigFromSection(sec *Section) (DSConfig, error) {
	c := DefaultDSConfig()

	getStr := func(key string, dst *string) {
		if v, ok := sec.Get(key); ok {
			*dst = v.String()
		}
	}
	getBool := func(key string, dst *bool) {
		if v, ok := sec.Get(key); ok {
			*dst = parseBool(v.String())
		}
	}
	getInt := func(key string, dst *int) {
		if v, ok := sec.Get(key); ok {
			if n, err := strconv.Atoi(v.String()); err == nil {
				*dst = n
			}
		}
	}
	getFakeFloat := func(key string, dst *int) {
		if v, ok := sec.Get(key); ok {
			if n, err := decodeFakeFloat(v.String()); err == nil {
				*dst = n
			}
		}
	}

	getBool("bLoadAutoSave", &c.LoadAutoSave)
	getFakeFloat("MaxServerFramerate", &c.MaxServerFramerate)
	getFakeFloat("MaxServerIdleFramerate", &c.MaxServerIdleFramerate)
	getBool("bWaitForPlayersBeforeShutdown", &c.WaitForPlayersBeforeShutdown)
	getStr("PublicIP", &c.PublicIP)
	getStr("ServerName", &c.ServerName)
	getInt("MaximumPlayerCount", &c.MaximumPlayerCount)
	getStr("OwnerName", &c.OwnerName)
	getStr("OwnerGuid", &c.OwnerGuid)
	getInt("PlayerActivityTimeout", &c.PlayerActivityTimeout)
	getStr("ServerPassword", &c.ServerPassword)
	getBool("bDisableServerTravel", &c.DisableServerTravel)
	getBool("DenyUnlistedPlayers", &c.DenyUnlistedPlayers)
	getBool("VerbosePlayerProperties", &c.VerbosePlayerProperties)
	getInt("AutoSaveGameInterval", &c.AutoSaveGameInterval)
	getInt("BackupSaveGamesInterval", &c.BackupSaveGamesInterval)
	getStr("ServerGuid", &c.ServerGuid)
	getStr("ActiveSaveFileDescriptiveName", &c.ActiveSaveFileDescriptiveName)
	getStr("ServerAdvertisedName", &c.ServerAdvertisedName)
	getInt("ConsolePort", &c.ConsolePort)
	getStr("ConsolePassword", &c.ConsolePassword)
	getInt("HeartbeatInterval", &c.HeartbeatInterval)
	getStr("ExitSemaphore", &c.ExitSemaphore)

	if v, ok := sec.Get("PlayerProperties"); ok {
		c.PlayerProperties = nil
		for _, raw := range v.Strings() {
			pp, err := ParsePlayerProperties(raw)
			if err != nil {
				return DSConfig{}, err
			}
			c.PlayerProperties = append(c.PlayerProperties, pp)
		}
	}

	// Forced fields (spec.md §9 REDESIGN FLAGS): always re-assert, on every
	// load, regardless of what the file on disk says.
	c.VerbosePlayerProperties = true
	c.HeartbeatInterval = defaultHeartbeatInterval

	return c, nil
}

func (c DSConfig) toSection(sec *Section) {
	sec.Set("bLoadAutoSave", formatBool(c.LoadAutoSave))
	sec.Set("MaxServerFramerate", encodeFakeFloat(c.MaxServerFramerate))
	sec.Set("MaxServerIdleFramerate", encodeFakeFloat(c.MaxServerIdleFramerate))
	sec.Set("bWaitForPlayersBeforeShutdown", formatBool(c.WaitForPlayersBeforeShutdown))
	sec.Set("PublicIP", c.PublicIP)
	sec.Set("ServerName", c.ServerName)
	sec.Set("MaximumPlayerCount", strconv.Itoa(c.MaximumPlayerCount))
	sec.Set("OwnerName", c.OwnerName)
	sec.Set("OwnerGuid", c.OwnerGuid)
	sec.Set("PlayerActivityTimeout", strconv.Itoa(c.PlayerActivityTimeout))
	sec.Set("ServerPassword", c.ServerPassword)
	sec.Set("bDisableServerTravel", formatBool(c.DisableServerTravel))
	sec.Set("DenyUnlistedPlayers", formatBool(c.DenyUnlistedPlayers))
	sec.Set("VerbosePlayerProperties", formatBool(c.VerbosePlayerProperties))
	sec.Set("AutoSaveGameInterval", strconv.Itoa(c.AutoSaveGameInterval))
	sec.Set("BackupSaveGamesInterval", strconv.Itoa(c.BackupSaveGamesInterval))
	sec.Set("ServerGuid", c.ServerGuid)
	sec.Set("ActiveSaveFileDescriptiveName", c.ActiveSaveFileDescriptiveName)
	sec.Set("ServerAdvertisedName", c.ServerAdvertisedName)
	sec.Set("ConsolePort", strconv.Itoa(c.ConsolePort))
	sec.Set("ConsolePassword", c.ConsolePassword)
	sec.Set("HeartbeatInterval", strconv.Itoa(c.HeartbeatInterval))
	if c.ExitSemaphore != "" {
		sec.Set("ExitSemaphore", c.ExitSemaphore)
	}

	if len(c.PlayerProperties) > 0 {
		strs := make([]string, len(c.PlayerProperties))
		for i, pp := range c.PlayerProperties {
			strs[i] = pp.String()
		}
		sec.SetList("PlayerProperties", strs)
	}
}

// validPublicIPv4 reports whether s parses as an IPv4 address that is
// globally routable (not private/loopback/link-local/multicast), mirroring
// utils.net.valid_ip combined with IPy's iptype() == "PUBLIC" check.
func validPublicIPv4(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	if v4.IsPrivate() || v4.IsLoopback() || v4.IsLinkLocalUnicast() || v4.IsMulticast() || v4.IsUnspecified() {
		return false
	}
	return true
}

// fetchPublicIP asks api.ipify.org for this host's public IPv4 address,
// grounded on utils.net.get_public_ip.
func fetchPublicIP() (string, error) {
	client := &http.Client{Timeout: publicIPTries}
	resp, err := client.Get(publicIPURL)
	if err != nil {
		return "", fmt.Errorf("dsconfig: fetching public IP: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("dsconfig: decoding public IP response: %w", err)
	}
	if body.IP == "" {
		return "", fmt.Errorf("dsconfig: public IP response had no ip field")
	}
	return body.IP, nil
}

// EnsureDSConfig loads configPath if it exists, baselines it against
// DefaultDSConfig, forces VerbosePlayerProperties/HeartbeatInterval,
// resolves PublicIP (overwriting it when invalid or when overwriteIP is
// set), and writes the result back out, creating the file if necessary.
// Grounded on DedicatedServerConfig.ensure_config.
func EnsureDSConfig(configPath string, overwriteIP bool) (DSConfig, error) {
	var cfg DSConfig

	if _, err := os.Stat(configPath); err == nil {
		doc, err := ParseDoc(configPath)
		if err != nil {
			return DSConfig{}, fmt.Errorf("dsconfig: reading %s: %w", configPath, err)
		}
		sec := doc.Section(dsSection)
		cfg, err = dsConfigFromSection(sec)
		if err != nil {
			return DSConfig{}, err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return DSConfig{}, err
		}
		cfg = DefaultDSConfig()
	}

	ipValid := validPublicIPv4(cfg.PublicIP)

	if overwriteIP || !ipValid {
		ip, err := fetchPublicIP()
		switch {
		case err != nil && ipValid:
			// Keep the existing valid IP; the fetch failure is not fatal
			// and is not reported, since overwriteIP was only a request.
		case err != nil:
			return DSConfig{}, fmt.Errorf("dsconfig: could not determine PublicIP: %w", err)
		default:
			cfg.PublicIP = ip
		}
	}

	out := NewDoc()
	cfg.toSection(out.Section(dsSection))
	if err := WriteFile(configPath, out); err != nil {
		return DSConfig{}, fmt.Errorf("dsconfig: writing %s: %w", configPath, err)
	}

	return cfg, nil
}

// EngineConfig is the typed view of Engine.ini's handful of settings the
// supervisor cares about. Grounded on dedicatedserver.py's EngineConfig
// dataclass (collect/spread).
type EngineConfig struct {
	Port                  int
	AllowEncryption       bool
	Paths                 []string
	MaxClientRate         int
	MaxInternetClientRate int
}

// DefaultEngineConfig mirrors EngineConfig's dataclass field defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Port:                  7777,
		AllowEncryption:       false,
		MaxClientRate:         1000000,
		MaxInternetClientRate: 1000000,
	}
}

func engineConfigFromDoc(doc *Doc) EngineConfig {
	c := DefaultEngineConfig()

	if sec, ok := doc.sections["URL"]; ok {
		if v, ok := sec.Get("Port"); ok {
			if n, err := strconv.Atoi(v.String()); err == nil {
				c.Port = n
			}
		}
	}
	if sec, ok := doc.sections["SystemSettings"]; ok {
		if v, ok := sec.Get("net.AllowEncryption"); ok {
			c.AllowEncryption = parseBool(v.String())
		}
	}
	if sec, ok := doc.sections["Core.System"]; ok {
		if v, ok := sec.Get("Paths"); ok {
			c.Paths = v.Strings()
		}
	}
	if sec, ok := doc.sections["/Script/OnlineSubsystemUtils.IpNetDriver"]; ok {
		if v, ok := sec.Get("MaxClientRate"); ok {
			if n, err := strconv.Atoi(v.String()); err == nil {
				c.MaxClientRate = n
			}
		}
		if v, ok := sec.Get("MaxInternetClientRate"); ok {
			if n, err := strconv.Atoi(v.String()); err == nil {
				c.MaxInternetClientRate = n
			}
		}
	}

	return c
}

func (c EngineConfig) toDoc(doc *Doc) {
	doc.Section("URL").Set("Port", strconv.Itoa(c.Port))
	doc.Section("SystemSettings").Set("net.AllowEncryption", formatBool(c.AllowEncryption))
	if len(c.Paths) > 0 {
		doc.Section("Core.System").SetList("Paths", c.Paths)
	} else {
		doc.Section("Core.System")
	}
	ipDriver := doc.Section("/Script/OnlineSubsystemUtils.IpNetDriver")
	ipDriver.Set("MaxClientRate", strconv.Itoa(c.MaxClientRate))
	ipDriver.Set("MaxInternetClientRate", strconv.Itoa(c.MaxInternetClientRate))
}

// EnsureEngineConfig loads configPath if present, baselines against
// DefaultEngineConfig, forces AllowEncryption to !disableEncryption, and
// writes the result back, creating the file if necessary. Grounded on
// EngineConfig.ensure_config.
func EnsureEngineConfig(configPath string, disableEncryption bool) (EngineConfig, error) {
	var cfg EngineConfig

	if _, err := os.Stat(configPath); err == nil {
		doc, err := ParseDoc(configPath)
		if err != nil {
			return EngineConfig{}, fmt.Errorf("dsconfig: reading %s: %w", configPath, err)
		}
		cfg = engineConfigFromDoc(doc)
	} else {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return EngineConfig{}, err
		}
		cfg = DefaultEngineConfig()
	}

	cfg.AllowEncryption = !disableEncryption

	out := NewDoc()
	cfg.toDoc(out)
	if err := WriteFile(configPath, out); err != nil {
		return EngineConfig{}, fmt.Errorf("dsconfig: writing %s: %w", configPath, err)
	}

	return cfg, nil
}
