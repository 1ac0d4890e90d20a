// Package supervisor implements the dedicated server supervisor's state
// machine: installing/updating the Astroneer Dedicated Server, launching it
// under Wine, driving its RCON-backed server loop, and tearing it down
// again. Grounded on avorion/server.go's RunState/ready/close pattern, with
// the domain semantics replaced per spec.md.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/astrotux/astrotuxsupervisor/internal/config"
	"github.com/astrotux/astrotuxsupervisor/internal/dsconfig"
	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
	"github.com/astrotux/astrotuxsupervisor/internal/installer"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
	"github.com/astrotux/astrotuxsupervisor/internal/matchmaking"
	"github.com/astrotux/astrotuxsupervisor/internal/notify"
	"github.com/astrotux/astrotuxsupervisor/internal/preflight"
	"github.com/astrotux/astrotuxsupervisor/internal/rcon"
)

// dsConfigRelPath and engineConfigRelPath are fixed relative to
// AstroServerPath, matching original_source's ASTRO_DS_CONFIG_PATH.
const (
	dsConfigRelPath     = "Astro/Saved/Config/WindowsServer/AstroServerSettings.ini"
	engineConfigRelPath = "Astro/Saved/Config/WindowsServer/Engine.ini"
	dsExecutableRelPath = "AstroServer.exe"
)

// transitions is the allowed SupervisorState DAG: Off -> Starting ->
// Running -> Stopping -> Off, with the one early-exit edge Starting -> Off
// (spec.md §8: "no transition skips Starting, no transition from Off except
// to Starting").
var transitions = map[ifaces.SupervisorState][]ifaces.SupervisorState{
	ifaces.Off:      {ifaces.Starting},
	ifaces.Starting: {ifaces.Running, ifaces.Off},
	ifaces.Running:  {ifaces.Stopping},
	ifaces.Stopping: {ifaces.Off},
}

// Supervisor owns the full lifecycle of one Astroneer DS process.
type Supervisor struct {
	cfg         config.LauncherConfig
	astroPath   string
	winePrefix  string
	depotDLPath string

	wineExec       string
	wineserverExec string

	installer  *installer.Installer
	preflight  *preflight.Checker
	mm         *matchmaking.Client
	notifier   *notify.Manager
	loglevel   int

	mu    sync.Mutex
	state ifaces.SupervisorState
	ds     dsconfig.DSConfig
	engine dsconfig.EngineConfig
	rcon   *rcon.Client

	cmd        *exec.Cmd
	launchTime time.Time

	childDone     chan struct{}
	childExitCode int

	stderrCh   chan string
	stderrStop int32

	stdinMu     sync.Mutex
	stdinActive bool

	cmdQueue chan ifaces.CommandRecord

	sessionTicket  string
	ticketObtained time.Time
	lobbyID        string
	staleLobbyIDs  map[string]bool

	lastPlayers PlayerList
	lastGames   GameList
}

// New constructs a Supervisor over astroPath/winePrefix/depotDLPath,
// resolving the wine/wineserver binaries from cfg.OverrideWinePath when set
// (falling back to whatever "wine"/"wineserver" resolve to on PATH, per
// spec.md §4.8 step 1).
func New(cfg config.LauncherConfig, astroPath, winePrefix, depotDLPath string) *Supervisor {
	wineExec, wineserverExec := "wine", "wineserver"
	if cfg.OverrideWinePath != "" {
		wineExec = filepath.Join(cfg.OverrideWinePath, "wine")
		wineserverExec = filepath.Join(cfg.OverrideWinePath, "wineserver")
	}

	return &Supervisor{
		cfg:            cfg,
		astroPath:      astroPath,
		winePrefix:     winePrefix,
		depotDLPath:    depotDLPath,
		wineExec:       wineExec,
		wineserverExec: wineserverExec,
		installer:      installer.New(depotDLPath, astroPath),
		preflight:      preflight.New(winePrefix),
		mm:             matchmaking.New(),
		notifier:       notify.NewManager(),
		state:          ifaces.Off,
		cmdQueue:       make(chan ifaces.CommandRecord, 16),
		stderrCh:       make(chan string, 64),
		staleLobbyIDs:  make(map[string]bool),
	}
}

// UUID implements logger.ILogger.
func (s *Supervisor) UUID() string { return "Supervisor" }

// Loglevel implements logger.ILogger.
func (s *Supervisor) Loglevel() int { return s.loglevel }

// SetLoglevel adjusts verbosity at runtime.
func (s *Supervisor) SetLoglevel(l int) { s.loglevel = l }

// Notifier exposes the notification manager so callers can register
// handlers before Start.
func (s *Supervisor) Notifier() *notify.Manager { return s.notifier }

// State returns the current lifecycle state.
func (s *Supervisor) State() ifaces.SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(next ifaces.SupervisorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			logger.LogInit(s, fmt.Sprintf("state %s -> %s", s.state, next))
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("supervisor: invalid transition %s -> %s", s.state, next)
}

// forceState bypasses the transition DAG; used by Kill, by Start's failure
// paths and by handleChildExit, which must be able to bring the supervisor
// back to Off from any state.
func (s *Supervisor) forceState(next ifaces.SupervisorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger.LogInit(s, fmt.Sprintf("state %s -> %s (forced)", s.state, next))
	s.state = next
}

// Install performs a fresh, unconditional install of the DS via
// DepotDownloader (spec.md §4.1).
func (s *Supervisor) Install(ctx context.Context) error {
	if err := s.installer.EnsureDownloader(ctx); err != nil {
		return fmt.Errorf("supervisor: ensuring downloader: %w", err)
	}
	version, err := s.installer.Update(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: installing: %w", err)
	}
	logger.LogInit(s, fmt.Sprintf("installed build %s", version))
	return nil
}

// Update checks for and applies an available DS update, or applies one
// unconditionally when force is true (spec.md §4.2).
func (s *Supervisor) Update(ctx context.Context, force bool) error {
	if !force {
		result, err := installer.CheckUpdate(ctx, s.astroPath, s.dsExecutablePresent())
		if err != nil {
			return fmt.Errorf("supervisor: checking update: %w", err)
		}
		if !result.UpdateAvailable {
			logger.LogInfo(s, fmt.Sprintf("up to date at build %s", result.CurrentVersion))
			return nil
		}
		logger.LogInfo(s, fmt.Sprintf("update available: %s -> %s", result.CurrentVersion, result.LatestVersion))
	}

	if err := s.installer.EnsureDownloader(ctx); err != nil {
		return fmt.Errorf("supervisor: ensuring downloader: %w", err)
	}
	version, err := s.installer.Update(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: updating: %w", err)
	}
	logger.LogInit(s, fmt.Sprintf("updated to build %s", version))
	return nil
}

func (s *Supervisor) dsExecutablePresent() bool {
	_, err := os.Stat(filepath.Join(s.astroPath, dsExecutableRelPath))
	return err == nil
}
