package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

// LogHandler mirrors every subscribed event straight to the logger,
// synchronously, with no queueing: it's always safe to fall behind
// nothing, since logging never blocks on an external service.
type LogHandler struct {
	kinds []ifaces.EventKind
}

// NewLogHandler returns a LogHandler subscribed to kinds.
func NewLogHandler(kinds []ifaces.EventKind) *LogHandler {
	return &LogHandler{kinds: kinds}
}

func (h *LogHandler) Name() string               { return "log" }
func (h *LogHandler) Kinds() []ifaces.EventKind   { return h.kinds }

func (h *LogHandler) Deliver(ev ifaces.Event, rendered string) {
	logger.LogInfo(h, rendered)
}

// UUID implements logger.ILogger.
func (h *LogHandler) UUID() string { return "Notify.Log" }

// Loglevel implements logger.ILogger.
func (h *LogHandler) Loglevel() int { return 1 }

const handlerQueueSize = 32

// DiscordWebhookHandler posts rendered notifications to a Discord webhook.
// Delivery is queued onto a single worker goroutine so a slow or
// rate-limited webhook never blocks the publishing supervisor goroutine.
// Grounded on the teacher's own use of discordgo, trimmed to the one call
// a pure webhook sink needs (no bot session/login).
type DiscordWebhookHandler struct {
	kinds     []ifaces.EventKind
	webhookID string
	token     string
	session   *discordgo.Session
	queue     chan queuedMessage
}

type queuedMessage struct {
	ev       ifaces.Event
	rendered string
}

// NewDiscordWebhookHandler returns a handler posting to the webhook
// identified by webhookID/token, subscribed to kinds.
func NewDiscordWebhookHandler(webhookID, token string, kinds []ifaces.EventKind) (*DiscordWebhookHandler, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: creating discord session: %w", err)
	}

	h := &DiscordWebhookHandler{
		kinds:     kinds,
		webhookID: webhookID,
		token:     token,
		session:   session,
		queue:     make(chan queuedMessage, handlerQueueSize),
	}
	go h.worker()
	return h, nil
}

func (h *DiscordWebhookHandler) Name() string             { return "discord" }
func (h *DiscordWebhookHandler) Kinds() []ifaces.EventKind { return h.kinds }

func (h *DiscordWebhookHandler) Deliver(ev ifaces.Event, rendered string) {
	select {
	case h.queue <- queuedMessage{ev: ev, rendered: rendered}:
	default:
		logger.LogWarning(h, "discord notification queue full, dropping message")
	}
}

// UUID implements logger.ILogger.
func (h *DiscordWebhookHandler) UUID() string { return "Notify.Discord" }

// Loglevel implements logger.ILogger.
func (h *DiscordWebhookHandler) Loglevel() int { return 1 }

func (h *DiscordWebhookHandler) worker() {
	for msg := range h.queue {
		_, err := h.session.WebhookExecute(h.webhookID, h.token, false, &discordgo.WebhookParams{
			Content: msg.rendered,
		})
		if err != nil {
			logger.LogWarning(h, "discord webhook delivery failed: "+err.Error())
		}
	}
}

// NtfyHandler posts rendered notifications to an ntfy.sh-compatible push
// topic. Grounded on the same queued-worker shape as DiscordWebhookHandler;
// the HTTP client itself is plain stdlib net/http, since no example repo
// in the pack wraps the ntfy wire protocol (a single POST with a text
// body and header-encoded Title/Priority) in a dedicated client.
type NtfyHandler struct {
	kinds    []ifaces.EventKind
	topicURL string
	priority string
	client   *http.Client
	queue    chan queuedMessage
}

// NewNtfyHandler returns a handler posting to topicURL (e.g.
// "https://ntfy.sh/my-topic"), subscribed to kinds.
func NewNtfyHandler(topicURL, priority string, kinds []ifaces.EventKind) *NtfyHandler {
	h := &NtfyHandler{
		kinds:    kinds,
		topicURL: topicURL,
		priority: priority,
		client:   &http.Client{Timeout: 10 * time.Second},
		queue:    make(chan queuedMessage, handlerQueueSize),
	}
	go h.worker()
	return h
}

func (h *NtfyHandler) Name() string             { return "ntfy" }
func (h *NtfyHandler) Kinds() []ifaces.EventKind { return h.kinds }

func (h *NtfyHandler) Deliver(ev ifaces.Event, rendered string) {
	select {
	case h.queue <- queuedMessage{ev: ev, rendered: rendered}:
	default:
		logger.LogWarning(h, "ntfy notification queue full, dropping message")
	}
}

// UUID implements logger.ILogger.
func (h *NtfyHandler) UUID() string { return "Notify.Ntfy" }

// Loglevel implements logger.ILogger.
func (h *NtfyHandler) Loglevel() int { return 1 }

func (h *NtfyHandler) worker() {
	for msg := range h.queue {
		if err := h.post(msg); err != nil {
			logger.LogWarning(h, "ntfy delivery failed: "+err.Error())
		}
	}
}

func (h *NtfyHandler) post(msg queuedMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.topicURL, bytes.NewBufferString(msg.rendered))
	if err != nil {
		return err
	}
	req.Header.Set("Title", "Astro Dedicated Server")
	if h.priority != "" {
		req.Header.Set("Priority", h.priority)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
