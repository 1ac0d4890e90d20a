// Package ifaces collects the cross-cutting interfaces and shared value
// types that let internal/supervisor, internal/notify, internal/config and
// internal/dsconfig refer to each other's shapes without importing each
// other directly — the same role the teacher's own ifaces package plays
// between avorion, discord and the root command package.
package ifaces

import (
	"time"

	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

// SupervisorState is the discriminated state of the Dedicated Server
// Supervisor (spec.md §3 SupervisorState).
type SupervisorState int

const (
	Off SupervisorState = iota
	Starting
	Running
	Stopping
)

func (s SupervisorState) String() string {
	switch s {
	case Off:
		return "Off"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// PlayerCategory mirrors the DS's player category enum.
type PlayerCategory string

const (
	CategoryUnlisted    PlayerCategory = "Unlisted"
	CategoryBlacklisted PlayerCategory = "Blacklisted"
	CategoryWhitelisted PlayerCategory = "Whitelisted"
	CategoryAdmin       PlayerCategory = "Admin"
	CategoryPending     PlayerCategory = "Pending"
	CategoryOwner       PlayerCategory = "Owner"
)

// EventKind names the tagged variants of Event (spec.md §3 Event).
type EventKind int

const (
	EventMessage EventKind = iota
	EventStart
	EventRegistered
	EventShutdown
	EventCrash
	EventPlayerJoin
	EventPlayerLeave
	EventCommand
	EventSave
	EventSavegameChange
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "Message"
	case EventStart:
		return "Start"
	case EventRegistered:
		return "Registered"
	case EventShutdown:
		return "Shutdown"
	case EventCrash:
		return "Crash"
	case EventPlayerJoin:
		return "PlayerJoin"
	case EventPlayerLeave:
		return "PlayerLeave"
	case EventCommand:
		return "Command"
	case EventSave:
		return "Save"
	case EventSavegameChange:
		return "SavegameChange"
	default:
		return "Unknown"
	}
}

// Event is an immutable notification fanned out by the supervisor through
// the notification bus (spec.md §3 Event, §4.7).
type Event struct {
	Kind  EventKind
	Attrs map[string]string
	Time  time.Time
}

// NewEvent builds an Event, copying attrs so the caller's map can't mutate
// the copy the bus later queues to handlers.
func NewEvent(kind EventKind, attrs map[string]string) Event {
	cp := make(map[string]string, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	return Event{Kind: kind, Attrs: cp, Time: time.Now()}
}

// CommandKind names the tagged variants of CommandRecord (spec.md §3, §4.6).
type CommandKind int

const (
	CmdHelp CommandKind = iota
	CmdShutdown
	CmdRestart
	CmdInfo
	CmdKick
	CmdWhitelistEnable
	CmdWhitelistDisable
	CmdWhitelistStatus
	CmdList
	CmdSaveLoad
	CmdSaveSave
	CmdSaveNew
	CmdSaveList
	CmdPlayerSet
	CmdPlayerGet
)

// CommandRecord is a parsed, validated operator command ready to be
// dispatched by the supervisor (spec.md §3 CommandRecord, §4.6).
type CommandRecord struct {
	Cmd CommandKind

	// Operand fields; only the ones relevant to Cmd are populated.
	Player   string
	Category PlayerCategory
	ListCat  string // raw category token for the "list" command (e.g. "all")
	SaveName string
	Line     string // original input line, for Command-event logging
}

// ILogger re-exports logger.ILogger so packages that only need the
// interface shape don't have to import internal/logger directly.
type ILogger = logger.ILogger
