package console

import (
	"fmt"
	"strings"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
)

// ParseCommand tokenizes raw and matches it against the operator command
// grammar (spec.md §4.6):
//
//	help [cmd [subcmd]]
//	shutdown
//	restart
//	info
//	kick <player>
//	whitelist enable|disable|status
//	list [category]
//	savegame load <name> | save [name] | new [name] | list
//	player set <name> <category> | get <name>
//
// help is evaluated here rather than queued: it returns its rendered text
// as the second value, and rec is the zero CommandRecord in that case —
// callers must check for a non-empty help text before enqueueing rec.
func ParseCommand(raw string) (ifaces.CommandRecord, string, error) {
	tokens, err := Tokenize(raw)
	if err != nil {
		return ifaces.CommandRecord{}, "", err
	}
	if len(tokens) == 0 {
		return ifaces.CommandRecord{}, "", fmt.Errorf("console: empty command")
	}

	rec := ifaces.CommandRecord{Line: raw}
	verb := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch verb {
	case "help":
		return ifaces.CommandRecord{}, ContextualHelpText(args), nil

	case "shutdown":
		rec.Cmd = ifaces.CmdShutdown

	case "restart":
		rec.Cmd = ifaces.CmdRestart

	case "info":
		rec.Cmd = ifaces.CmdInfo

	case "kick":
		if len(args) < 1 {
			return ifaces.CommandRecord{}, "", fmt.Errorf("console: kick requires a player name")
		}
		rec.Cmd = ifaces.CmdKick
		rec.Player = args[0]

	case "whitelist":
		if len(args) < 1 {
			return ifaces.CommandRecord{}, "", fmt.Errorf("console: whitelist requires enable, disable, or status")
		}
		switch strings.ToLower(args[0]) {
		case "enable":
			rec.Cmd = ifaces.CmdWhitelistEnable
		case "disable":
			rec.Cmd = ifaces.CmdWhitelistDisable
		case "status":
			rec.Cmd = ifaces.CmdWhitelistStatus
		default:
			return ifaces.CommandRecord{}, "", fmt.Errorf("console: unknown whitelist subcommand %q", args[0])
		}

	case "list":
		rec.Cmd = ifaces.CmdList
		if len(args) > 0 {
			rec.ListCat = args[0]
		} else {
			rec.ListCat = "all"
		}

	case "savegame":
		if len(args) < 1 {
			return ifaces.CommandRecord{}, "", fmt.Errorf("console: savegame requires load, save, new, or list")
		}
		switch strings.ToLower(args[0]) {
		case "load":
			if len(args) < 2 {
				return ifaces.CommandRecord{}, "", fmt.Errorf("console: savegame load requires a save name")
			}
			rec.Cmd = ifaces.CmdSaveLoad
			rec.SaveName = JoinRemaining(args[1:])
		case "save":
			rec.Cmd = ifaces.CmdSaveSave
			if len(args) > 1 {
				rec.SaveName = JoinRemaining(args[1:])
			}
		case "new":
			rec.Cmd = ifaces.CmdSaveNew
			if len(args) > 1 {
				rec.SaveName = JoinRemaining(args[1:])
			}
		case "list":
			rec.Cmd = ifaces.CmdSaveList
		default:
			return ifaces.CommandRecord{}, "", fmt.Errorf("console: unknown savegame subcommand %q", args[0])
		}

	case "player":
		if len(args) < 1 {
			return ifaces.CommandRecord{}, "", fmt.Errorf("console: player requires set or get")
		}
		switch strings.ToLower(args[0]) {
		case "set":
			if len(args) < 3 {
				return ifaces.CommandRecord{}, "", fmt.Errorf("console: player set requires a name and a category")
			}
			rec.Cmd = ifaces.CmdPlayerSet
			rec.Player = args[1]
			rec.Category = normalizeCategory(args[2])
			if rec.Category == "" {
				return ifaces.CommandRecord{}, "", fmt.Errorf("console: unknown player category %q", args[2])
			}
		case "get":
			if len(args) < 2 {
				return ifaces.CommandRecord{}, "", fmt.Errorf("console: player get requires a name")
			}
			rec.Cmd = ifaces.CmdPlayerGet
			rec.Player = args[1]
		default:
			return ifaces.CommandRecord{}, "", fmt.Errorf("console: unknown player subcommand %q", args[0])
		}

	default:
		return ifaces.CommandRecord{}, "", fmt.Errorf("console: unknown command %q", verb)
	}

	return rec, "", nil
}

func normalizeCategory(s string) ifaces.PlayerCategory {
	switch strings.ToLower(s) {
	case "unlisted":
		return ifaces.CategoryUnlisted
	case "blacklisted":
		return ifaces.CategoryBlacklisted
	case "whitelisted":
		return ifaces.CategoryWhitelisted
	case "admin":
		return ifaces.CategoryAdmin
	case "pending":
		return ifaces.CategoryPending
	case "owner":
		return ifaces.CategoryOwner
	default:
		return ""
	}
}
