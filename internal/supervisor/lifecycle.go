package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/astrotux/astrotuxsupervisor/internal/dsconfig"
	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
	"github.com/astrotux/astrotuxsupervisor/internal/installer"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
	"github.com/astrotux/astrotuxsupervisor/internal/preflight"
	"github.com/astrotux/astrotuxsupervisor/internal/rcon"
)

const registrationTimeGate = 15 * time.Second

// Start runs the full install/preflight/launch/register sequence of
// spec.md §4.8 and, on success, hands the running supervisor off to
// runServerLoop in its own goroutine.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.preflightInstall(ctx); err != nil {
		return fmt.Errorf("supervisor: preflight install: %w", err)
	}

	if !s.mm.Health(ctx) {
		return fmt.Errorf("supervisor: matchmaking API is unreachable")
	}

	if err := s.preflight.BootstrapWinePrefix(ctx); err != nil {
		return fmt.Errorf("supervisor: bootstrapping wine prefix: %w", err)
	}

	dsPath := filepath.Join(s.astroPath, dsConfigRelPath)
	enginePath := filepath.Join(s.astroPath, engineConfigRelPath)

	ds, err := dsconfig.EnsureDSConfig(dsPath, s.cfg.OverwritePublicIP)
	if err != nil {
		return fmt.Errorf("supervisor: loading DS config: %w", err)
	}
	engine, err := dsconfig.EnsureEngineConfig(enginePath, s.cfg.DisableEncryption)
	if err != nil {
		return fmt.Errorf("supervisor: loading engine config: %w", err)
	}
	s.ds, s.engine = ds, engine

	if free, err := preflight.PortAvailable(uint32(engine.Port)); err != nil {
		return fmt.Errorf("supervisor: checking game port: %w", err)
	} else if !free {
		return fmt.Errorf("supervisor: game port %d is already in use", engine.Port)
	}
	if free, err := preflight.PortAvailable(uint32(ds.ConsolePort)); err != nil {
		return fmt.Errorf("supervisor: checking console port: %w", err)
	} else if !free {
		return fmt.Errorf("supervisor: console port %d is already in use", ds.ConsolePort)
	}

	if s.cfg.CheckNetwork {
		result, err := preflight.CheckNetwork(ctx, ds.PublicIP, uint32(engine.Port), uint32(ds.ConsolePort))
		if err != nil {
			logger.LogWarning(s, "network reachability check failed to run: "+err.Error())
		} else {
			if !result.LocalReachable {
				logger.LogWarning(s, "game port is not reachable on loopback")
			}
			if !result.ExternalReachable {
				logger.LogWarning(s, "game port does not appear reachable from outside")
			}
			if result.RCONExposed {
				logger.LogWarning(s, "RCON port appears reachable from outside; consider firewalling it")
			}
		}
	}

	if err := s.setState(ifaces.Starting); err != nil {
		return err
	}
	s.setStdinActive(true)

	s.rcon = rcon.New("127.0.0.1", ds.ConsolePort, ds.ConsolePassword)

	if err := s.launchChild(ctx); err != nil {
		s.setStdinActive(false)
		s.forceState(ifaces.Off)
		return fmt.Errorf("supervisor: launching DS process: %w", err)
	}

	buildVersion := installer.ReadBuildVersion(s.astroPath)
	logger.LogInit(s, fmt.Sprintf("started DS process (build %s), waiting for registration", buildVersion))

	if err := s.loginWithRetries(ctx); err != nil {
		s.killChild(ctx)
		s.setStdinActive(false)
		s.forceState(ifaces.Off)
		return fmt.Errorf("supervisor: obtaining session ticket: %w", err)
	}

	ipPortCombo := fmt.Sprintf("%s:%d", ds.PublicIP, engine.Port)
	stale, err := s.findLobbyIDs(ctx, ipPortCombo)
	if err != nil {
		logger.LogWarning(s, "deregistering stale servers: "+err.Error())
	} else {
		for _, id := range stale {
			s.staleLobbyIDs[id] = true
			if _, err := s.mm.Deregister(ctx, id, s.sessionTicket); err != nil {
				logger.LogWarning(s, fmt.Sprintf("deregistering stale lobby %s: %s", id, err))
			}
		}
	}

	if err := s.awaitRegistration(ctx, ipPortCombo); err != nil {
		s.killChild(ctx)
		s.setStdinActive(false)
		s.forceState(ifaces.Off)
		return fmt.Errorf("supervisor: waiting for registration: %w", err)
	}

	if err := s.setState(ifaces.Running); err != nil {
		return err
	}
	s.notifier.Publish(ifaces.NewEvent(ifaces.EventStart, map[string]string{"build": buildVersion}))
	s.notifier.Publish(ifaces.NewEvent(ifaces.EventRegistered, map[string]string{"lobbyId": s.lobbyID}))

	go s.runServerLoop(ctx)
	return nil
}

// preflightInstall implements spec.md §4.8 step 1.
func (s *Supervisor) preflightInstall(ctx context.Context) error {
	_, statErr := os.Stat(filepath.Join(s.astroPath, dsExecutableRelPath))
	buildMissing := installer.ReadBuildVersion(s.astroPath) == "" || os.IsNotExist(statErr)

	if buildMissing {
		return s.Install(ctx)
	}
	if s.cfg.AutoUpdateServer {
		return s.Update(ctx, false)
	}
	return nil
}

func (s *Supervisor) loginWithRetries(ctx context.Context) error {
	const attempts = 5
	const spacing = 10 * time.Second

	var lastErr error
	for i := 0; i < attempts; i++ {
		ticket, err := s.mm.Login(ctx, s.ds.ServerGuid)
		if err == nil {
			s.sessionTicket = ticket
			s.ticketObtained = time.Now()
			return nil
		}
		lastErr = err
		logger.LogWarning(s, fmt.Sprintf("session ticket attempt %d/%d failed: %s", i+1, attempts, err))

		select {
		case <-s.childDone:
			return fmt.Errorf("DS process exited while obtaining session ticket")
		case <-time.After(spacing):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
}

func (s *Supervisor) findLobbyIDs(ctx context.Context, ipPortCombo string) ([]string, error) {
	resp, err := s.mm.FindServers(ctx, ipPortCombo, s.sessionTicket)
	if err != nil {
		return nil, err
	}
	return extractLobbyIDs(resp), nil
}

func extractLobbyIDs(resp map[string]interface{}) []string {
	var ids []string
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		return ids
	}
	games, ok := data["Games"].([]interface{})
	if !ok {
		return ids
	}
	for _, g := range games {
		entry, ok := g.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := entry["LobbyID"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// awaitRegistration implements spec.md §4.8 step 10's rate-adaptive poll,
// grounded on dedicatedserver.py's start() registration-wait loop. Unlike
// that loop, the adapted interval never feeds back into shared
// configuration: it is local to this call (spec.md §9 REDESIGN FLAGS).
func (s *Supervisor) awaitRegistration(ctx context.Context, ipPortCombo string) error {
	launchTime := s.launchTime
	interval := time.Duration(s.cfg.PlayfabAPIInterval) * time.Second
	const maxInterval = 30 * time.Second

	if !s.rcon.Connected() && s.rcon.EnsureConnection() {
		if err := s.quickToggleWhitelist(); err != nil {
			logger.LogWarning(s, "quick whitelist toggle before registration: "+err.Error())
		}
	}

	for {
		select {
		case <-s.childDone:
			return fmt.Errorf("DS process was closed before registering")
		default:
		}

		resp, err := s.mm.FindServers(ctx, ipPortCombo, s.sessionTicket)
		if err != nil {
			if interval < maxInterval {
				interval += time.Second
			}
			logger.LogDebug(s, "registration check failed, backing off to "+interval.String())
			if err := s.sleepOrChildExit(ctx, interval); err != nil {
				return err
			}
			continue
		}

		ids := extractLobbyIDs(resp)
		var fresh []string
		for _, id := range ids {
			if !s.staleLobbyIDs[id] {
				fresh = append(fresh, id)
			}
		}

		if len(fresh) == 0 {
			if err := s.sleepOrChildExit(ctx, interval); err != nil {
				return err
			}
			continue
		}

		if time.Since(launchTime) > registrationTimeGate {
			s.lobbyID = fresh[0]
			interval = time.Duration(s.cfg.PlayfabAPIInterval) * time.Second
			return nil
		}

		if err := s.sleepOrChildExit(ctx, interval); err != nil {
			return err
		}
	}
}

func (s *Supervisor) sleepOrChildExit(ctx context.Context, d time.Duration) error {
	select {
	case <-s.childDone:
		return fmt.Errorf("DS process exited while waiting for registration")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Shutdown requests a graceful stop: issue DSServerShutdown over RCON and
// transition to Stopping. Off is set later, when the child's exit is
// observed by runServerLoop.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if s.State() != ifaces.Running {
		return fmt.Errorf("supervisor: shutdown requested while not running")
	}

	s.notifier.Publish(ifaces.NewEvent(ifaces.EventShutdown, nil))

	if err := s.rcon.ServerShutdown(); err != nil {
		return fmt.Errorf("supervisor: issuing DSServerShutdown: %w", err)
	}

	s.lastPlayers = PlayerList{}
	s.lastGames = GameList{}

	return s.setState(ifaces.Stopping)
}

// Kill forcefully terminates the DS process, bypassing RCON entirely, and
// unconditionally returns the supervisor to Off.
func (s *Supervisor) Kill(ctx context.Context) error {
	atomic.StoreInt32(&s.stderrStop, 1)
	s.killChild(ctx)
	if s.rcon != nil {
		s.rcon.Close()
	}
	s.setStdinActive(false)
	s.forceState(ifaces.Off)
	return nil
}

// Exit dispatches to Shutdown or Kill depending on graceful, logging reason
// for operator visibility either way.
func (s *Supervisor) Exit(ctx context.Context, graceful bool, reason string) error {
	logger.LogInit(s, fmt.Sprintf("exiting (graceful=%v): %s", graceful, reason))
	if graceful {
		return s.Shutdown(ctx)
	}
	return s.Kill(ctx)
}

// UserSignalExit handles a terminal interrupt: the first signal requests a
// graceful shutdown; a second signal received while already Stopping
// escalates to Kill (spec.md §5 Cancellation/timeouts).
func (s *Supervisor) UserSignalExit(ctx context.Context) error {
	if s.State() == ifaces.Stopping {
		return s.Kill(ctx)
	}
	return s.Exit(ctx, true, "terminal signal")
}
