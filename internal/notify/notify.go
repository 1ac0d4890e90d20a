// Package notify fans supervisor events out to operator-facing sinks: the
// log, a Discord webhook, and an ntfy push topic. Each sink subscribes to
// only the event kinds it's configured for; every event is rendered through
// the message template for its kind, which all handlers share.
//
// Grounded on carbynestack-ephemeral/pkg/discovery/publisher.go's use of
// vardius/message-bus as a topic-keyed pub/sub core, restructured here
// onto one topic per ifaces.EventKind instead of one topic per FSM state.
package notify

import (
	"fmt"
	"strings"

	mb "github.com/vardius/message-bus"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

const busSize = 64

// Handler receives rendered notification text for the event kinds it
// subscribed to. Implementations decide how (and whether) to deliver it;
// the bus never blocks on delivery beyond the synchronous call itself, so
// slow sinks (Discord, ntfy) queue internally.
type Handler interface {
	Name() string
	Kinds() []ifaces.EventKind
	Deliver(ev ifaces.Event, rendered string)
}

// Manager owns the bus and the set of registered handlers, and is the
// only thing the supervisor needs to hold a reference to.
type Manager struct {
	bus      mb.MessageBus
	handlers []Handler
	loglevel int
}

// NewManager creates an empty notification manager.
func NewManager() *Manager {
	return &Manager{bus: mb.New(busSize)}
}

// UUID implements logger.ILogger.
func (m *Manager) UUID() string { return "Notify" }

// Loglevel implements logger.ILogger.
func (m *Manager) Loglevel() int { return m.loglevel }

// SetLoglevel implements logger.ILogger.
func (m *Manager) SetLoglevel(l int) { m.loglevel = l }

func topicFor(kind ifaces.EventKind) string {
	return kind.String()
}

// Register subscribes h to the bus for every kind in h.Kinds().
func (m *Manager) Register(h Handler) error {
	m.handlers = append(m.handlers, h)

	for _, kind := range h.Kinds() {
		k := kind
		err := m.bus.Subscribe(topicFor(k), func(ev ifaces.Event) {
			rendered := renderTemplate(templateFor(k), ev)
			h.Deliver(ev, rendered)
		})
		if err != nil {
			return fmt.Errorf("notify: subscribing %s to %s: %w", h.Name(), topicFor(k), err)
		}
	}

	return nil
}

// Publish fans ev out to the topic matching its kind. Handlers not
// subscribed to that kind never see it.
func (m *Manager) Publish(ev ifaces.Event) {
	logger.LogDebug(m, fmt.Sprintf("publishing %s event", ev.Kind))
	m.bus.Publish(topicFor(ev.Kind), ev)
}

// templateFor returns the default message template for an event kind.
// Placeholders are {key} tokens resolved against ev.Attrs.
func templateFor(kind ifaces.EventKind) string {
	switch kind {
	case ifaces.EventStart:
		return "Server starting up"
	case ifaces.EventRegistered:
		return "Server registered and accepting connections"
	case ifaces.EventShutdown:
		return "Server shutting down"
	case ifaces.EventCrash:
		return "Server crashed: {reason}"
	case ifaces.EventPlayerJoin:
		return "{player} joined the server"
	case ifaces.EventPlayerLeave:
		return "{player} left the server"
	case ifaces.EventCommand:
		return "Command executed: {line}"
	case ifaces.EventSave:
		return "Game saved ({save})"
	case ifaces.EventSavegameChange:
		return "Active save changed to {save}"
	default:
		return "{message}"
	}
}

// renderTemplate substitutes every {key} token found in tmpl with
// ev.Attrs[key]. A token with no matching attribute is left in place
// verbatim ("safe-format": an unresolved placeholder is more useful to an
// operator than a silently dropped one).
func renderTemplate(tmpl string, ev ifaces.Event) string {
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		open := strings.IndexByte(tmpl[i:], '{')
		if open < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		open += i
		b.WriteString(tmpl[i:open])

		close := strings.IndexByte(tmpl[open:], '}')
		if close < 0 {
			b.WriteString(tmpl[open:])
			break
		}
		close += open

		key := tmpl[open+1 : close]
		if val, ok := ev.Attrs[key]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(tmpl[open : close+1])
		}

		i = close + 1
	}
	return b.String()
}
