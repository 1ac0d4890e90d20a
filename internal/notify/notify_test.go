package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
)

func TestRenderTemplateSubstitutesKnownAttrs(t *testing.T) {
	ev := ifaces.NewEvent(ifaces.EventPlayerJoin, map[string]string{"player": "Alice"})
	got := renderTemplate(templateFor(ifaces.EventPlayerJoin), ev)
	assert.Equal(t, "Alice joined the server", got)
}

func TestRenderTemplateLeavesUnresolvedPlaceholder(t *testing.T) {
	ev := ifaces.NewEvent(ifaces.EventCrash, nil)
	got := renderTemplate(templateFor(ifaces.EventCrash), ev)
	assert.Equal(t, "Server crashed: {reason}", got)
}

type captureHandler struct {
	mu       sync.Mutex
	kinds    []ifaces.EventKind
	received []string
}

func (h *captureHandler) Name() string             { return "capture" }
func (h *captureHandler) Kinds() []ifaces.EventKind { return h.kinds }
func (h *captureHandler) Deliver(ev ifaces.Event, rendered string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, rendered)
}

func TestManagerOnlyDeliversSubscribedKinds(t *testing.T) {
	m := NewManager()

	h := &captureHandler{kinds: []ifaces.EventKind{ifaces.EventPlayerJoin}}
	require.NoError(t, m.Register(h))

	m.Publish(ifaces.NewEvent(ifaces.EventPlayerJoin, map[string]string{"player": "Bob"}))
	m.Publish(ifaces.NewEvent(ifaces.EventPlayerLeave, map[string]string{"player": "Bob"}))

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.received) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "Bob joined the server", h.received[0])
}
