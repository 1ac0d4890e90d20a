package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
	"github.com/astrotux/astrotuxsupervisor/internal/matchmaking"
)

// decodeInto round-trips a Reply's already-parsed JSON value into dst,
// since rcon.Reply hands back an interface{} rather than typed structs.
func decodeInto(v interface{}, dst interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// runServerLoop drives the Running-state polling/command/crash loop
// (spec.md §4.8 server_loop, §9 REDESIGN FLAGS: one select replaces the
// reference implementation's several polling goroutines and embedded
// sleeps). It keeps running through Stopping and returns once the child
// exits or the supervisor is forced to Off.
func (s *Supervisor) runServerLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.ServerStatusInterval * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	firstTick := make(chan time.Time, 1)
	firstTick <- time.Now()

	for {
		if !s.rcon.Connected() && s.rcon.EnsureConnection() {
			if err := s.quickToggleWhitelist(); err != nil {
				logger.LogWarning(s, "quick whitelist toggle after reconnect: "+err.Error())
			}
		}

		select {
		case <-s.childDone:
			s.handleChildExit()
			return

		case rec := <-s.cmdQueue:
			s.dispatchCommand(ctx, rec)

		case <-s.stderrCh:
			// Passed through by readStderr's own logging; nothing further
			// to do on the server-loop side.

		case <-firstTick:
			s.pollCycle(ctx)

		case <-ticker.C:
			s.pollCycle(ctx)
		}

		if s.State() == ifaces.Off {
			return
		}
	}
}

func (s *Supervisor) handleChildExit() {
	s.setStdinActive(false)
	if s.rcon != nil {
		s.rcon.Close()
	}

	if s.State() == ifaces.Stopping {
		logger.LogInit(s, "DS process exited after shutdown request")
	} else {
		logger.LogError(s, fmt.Sprintf("DS process exited unexpectedly, code %d", s.childExitCode))
		s.notifier.Publish(ifaces.NewEvent(ifaces.EventCrash, map[string]string{
			"reason": fmt.Sprintf("process exited with code %d", s.childExitCode),
		}))
	}

	s.forceState(ifaces.Off)
}

// pollCycle refreshes the matchmaking heartbeat ticket if stale, captures a
// fresh RCON snapshot, diffs it against the last one, and publishes the
// resulting events.
func (s *Supervisor) pollCycle(ctx context.Context) {
	if time.Since(s.ticketObtained) > time.Hour {
		if ticket, err := s.mm.Login(ctx, s.ds.ServerGuid); err != nil {
			logger.LogWarning(s, "refreshing session ticket: "+err.Error())
		} else {
			s.sessionTicket = ticket
			s.ticketObtained = time.Now()
		}
	}

	stats, players, games, err := s.captureSnapshot()
	if err != nil {
		logger.LogWarning(s, "poll cycle: "+err.Error())
		return
	}

	for _, ev := range diffSnapshots(s.lastPlayers, s.lastGames, players, games) {
		s.notifier.Publish(ev)
	}

	s.lastPlayers = players
	s.lastGames = games

	if s.sessionTicket != "" {
		sd := matchmaking.ServerData{
			ServerName:        stats.ServerName,
			BuildVersion:       stats.Build,
			ServerIPV4Address: s.ds.PublicIP,
			ServerPort:         s.engine.Port,
			MaxPlayers:         fmt.Sprintf("%d", stats.MaxInGamePlayers),
			NumPlayers:         stats.PlayersKnownToGame,
			LobbyID:            s.lobbyID,
			RequiresPassword:   stats.HasServerPassword,
		}
		if _, err := s.mm.Heartbeat(ctx, sd, s.sessionTicket); err != nil {
			logger.LogWarning(s, "heartbeat failed: "+err.Error())
		}
	}
}

func (s *Supervisor) captureSnapshot() (ServerStatistics, PlayerList, GameList, error) {
	var stats ServerStatistics
	var players PlayerList
	var games GameList

	statsReply, err := s.rcon.ServerStatistics()
	if err != nil {
		return stats, players, games, fmt.Errorf("fetching statistics: %w", err)
	}
	raw, ok := statsReply.AsJSON()
	if !ok {
		return stats, players, games, fmt.Errorf("fetching statistics: reply was not JSON")
	}
	if err := decodeInto(raw, &stats); err != nil {
		return stats, players, games, fmt.Errorf("decoding statistics: %w", err)
	}

	playersReply, err := s.rcon.ListPlayers()
	if err != nil {
		return stats, players, games, fmt.Errorf("listing players: %w", err)
	}
	raw, ok = playersReply.AsJSON()
	if !ok {
		return stats, players, games, fmt.Errorf("listing players: reply was not JSON")
	}
	if err := decodeInto(raw, &players); err != nil {
		return stats, players, games, fmt.Errorf("decoding player list: %w", err)
	}

	gamesReply, err := s.rcon.ListGames()
	if err != nil {
		return stats, players, games, fmt.Errorf("listing games: %w", err)
	}
	raw, ok = gamesReply.AsJSON()
	if !ok {
		return stats, players, games, fmt.Errorf("listing games: reply was not JSON")
	}
	if err := decodeInto(raw, &games); err != nil {
		return stats, players, games, fmt.Errorf("decoding game list: %w", err)
	}

	return stats, players, games, nil
}

// dispatchCommand runs rec and publishes an EventCommand carrying its
// outcome; operator-facing errors never change supervisor state (spec.md
// §7 OperatorError policy).
func (s *Supervisor) dispatchCommand(ctx context.Context, rec ifaces.CommandRecord) {
	reply, err := s.execCommand(ctx, rec)
	attrs := map[string]string{"line": rec.Line}
	if err != nil {
		attrs["error"] = err.Error()
		logger.LogWarning(s, fmt.Sprintf("command %q failed: %s", rec.Line, err))
	} else {
		attrs["reply"] = reply
		logger.LogInfo(s, reply)
	}
	s.notifier.Publish(ifaces.NewEvent(ifaces.EventCommand, attrs))
}

func (s *Supervisor) execCommand(ctx context.Context, rec ifaces.CommandRecord) (string, error) {
	switch rec.Cmd {
	case ifaces.CmdShutdown:
		if err := s.Shutdown(ctx); err != nil {
			return "", err
		}
		return "server is shutting down", nil

	case ifaces.CmdRestart:
		// TODO: restart semantics (stop, wait for exit, relaunch) were
		// never finished in dedicatedserver.py's own console handler
		// either; there is no reference behavior to ground this on yet.
		return "", fmt.Errorf("restart is not implemented")

	case ifaces.CmdInfo:
		statsReply, err := s.rcon.ServerStatistics()
		if err != nil {
			return "", err
		}
		raw, ok := statsReply.AsJSON()
		if !ok {
			return "", fmt.Errorf("server statistics reply was not JSON")
		}
		var stats ServerStatistics
		if err := decodeInto(raw, &stats); err != nil {
			return "", fmt.Errorf("decoding statistics: %w", err)
		}
		return formatServerStatistics(stats), nil

	case ifaces.CmdKick:
		guid, err := s.guidForPlayer(rec.Player)
		if err != nil {
			return "", err
		}
		if _, err := s.rcon.KickPlayerGuid(guid); err != nil {
			return "", err
		}
		return fmt.Sprintf("kicked %s", rec.Player), nil

	case ifaces.CmdWhitelistEnable:
		if _, err := s.rcon.SetDenyUnlisted(true); err != nil {
			return "", err
		}
		s.ds.DenyUnlistedPlayers = true
		return "whitelist enabled", nil

	case ifaces.CmdWhitelistDisable:
		if _, err := s.rcon.SetDenyUnlisted(false); err != nil {
			return "", err
		}
		s.ds.DenyUnlistedPlayers = false
		return "whitelist disabled", nil

	case ifaces.CmdWhitelistStatus:
		if s.ds.DenyUnlistedPlayers {
			return "whitelist is enabled", nil
		}
		return "whitelist is disabled", nil

	case ifaces.CmdList:
		return s.listPlayersText(rec.ListCat)

	case ifaces.CmdSaveLoad:
		if _, err := s.rcon.LoadGame(rec.SaveName); err != nil {
			return "", err
		}
		return fmt.Sprintf("loading %s", rec.SaveName), nil

	case ifaces.CmdSaveSave:
		if err := s.rcon.SaveGame(rec.SaveName); err != nil {
			return "", err
		}
		return fmt.Sprintf("saved %s", rec.SaveName), nil

	case ifaces.CmdSaveNew:
		if err := s.rcon.NewGame(rec.SaveName); err != nil {
			return "", err
		}
		return fmt.Sprintf("created %s", rec.SaveName), nil

	case ifaces.CmdSaveList:
		_, _, games, err := s.captureSnapshot()
		if err != nil {
			return "", err
		}
		var names []string
		for _, g := range games.GameList {
			names = append(names, g.Name)
		}
		return fmt.Sprintf("saves: %v", names), nil

	case ifaces.CmdPlayerSet:
		if _, err := s.guidForPlayer(rec.Player); err != nil {
			return "", err
		}
		if _, err := s.rcon.SetPlayerCategory(rec.Player, rec.Category); err != nil {
			return "", err
		}
		return fmt.Sprintf("set %s to %s", rec.Player, rec.Category), nil

	case ifaces.CmdPlayerGet:
		_, players, _, err := s.captureSnapshot()
		if err != nil {
			return "", err
		}
		for _, p := range players.PlayerInfo {
			if p.PlayerName == rec.Player {
				return fmt.Sprintf("%s: %s", p.PlayerName, p.PlayerCategory), nil
			}
		}
		return "", fmt.Errorf("unknown player %q", rec.Player)

	default:
		return "", fmt.Errorf("unrecognized command")
	}
}

func (s *Supervisor) guidForPlayer(name string) (string, error) {
	_, players, _, err := s.captureSnapshot()
	if err != nil {
		return "", err
	}
	for _, p := range players.PlayerInfo {
		if p.PlayerName == name {
			return p.PlayerGuid, nil
		}
	}
	return "", fmt.Errorf("unknown player %q", name)
}

func (s *Supervisor) listPlayersText(category string) (string, error) {
	_, players, _, err := s.captureSnapshot()
	if err != nil {
		return "", err
	}
	var names []string
	for _, p := range players.PlayerInfo {
		if !strings.EqualFold(category, "all") && !strings.EqualFold(string(p.PlayerCategory), category) {
			continue
		}
		names = append(names, p.PlayerName)
	}
	return fmt.Sprintf("players (%s): %v", category, names), nil
}

// formatServerStatistics renders a DSServerStatistics reply for the
// operator-facing "info" command.
func formatServerStatistics(s ServerStatistics) string {
	return fmt.Sprintf(
		"%s (build %s) -- %d/%d players known, save %q, %.1f FPS, password=%v, whitelist=%v",
		s.ServerName, s.Build, s.PlayersKnownToGame, s.MaxInGamePlayers,
		s.SaveGameName, s.AverageFPS, s.HasServerPassword, s.IsEnforcingWhitelist)
}

// quickToggleWhitelist flips DenyUnlistedPlayers to the opposite of its
// configured value and then back, to force the DS to persist its in-memory
// player list into AstroServerSettings.ini. Run once right after a
// (re)connect.
func (s *Supervisor) quickToggleWhitelist() error {
	current := s.ds.DenyUnlistedPlayers
	if _, err := s.rcon.SetDenyUnlisted(!current); err != nil {
		return err
	}
	if _, err := s.rcon.SetDenyUnlisted(current); err != nil {
		return err
	}
	return nil
}
