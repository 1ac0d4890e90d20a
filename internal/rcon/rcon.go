// Package rcon implements the Dedicated Server's line-oriented RCON
// protocol: one TCP connection, password-first-line auth, JSON/raw-bytes
// demultiplexed replies. Grounded on original_source/astro/rcon.py
// (AstroRCON), which is itself derived from AstroLauncher's AstroRCON.py.
package rcon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
	"github.com/astrotux/astrotuxsupervisor/internal/logger"
)

const (
	recvBufSize  = 4096
	saveQuiesce  = 1100 * time.Millisecond
	dialTimeout  = 5 * time.Second
	pingLine     = "Hello There!\n"
	logUUID      = "RCON"
	ackDenyUnl   = `UAstroServerCommExecutor::DSSetDenyUnlisted: SetDenyUnlistedPlayers`
	ackKickGuid  = `UAstroServerCommExecutor::DSKickPlayerGuid`
)

// ReplyKind tags the shape of an RCON response (spec.md §9 REDESIGN FLAGS:
// model "maybe JSON, maybe bytes" as a tagged variant, never a type switch).
type ReplyKind int

const (
	ReplyEmpty ReplyKind = iota
	ReplyJSON
	ReplyRaw
)

// Reply is the demultiplexed result of an RCON request.
type Reply struct {
	kind ReplyKind
	json interface{}
	raw  []byte
}

// Kind reports which variant of Reply this is.
func (r Reply) Kind() ReplyKind { return r.kind }

// AsJSON returns the decoded JSON value and true if Kind() == ReplyJSON.
func (r Reply) AsJSON() (interface{}, bool) {
	if r.kind != ReplyJSON {
		return nil, false
	}
	return r.json, true
}

// AsRaw returns the raw bytes and true if Kind() == ReplyRaw.
func (r Reply) AsRaw() ([]byte, bool) {
	if r.kind != ReplyRaw {
		return nil, false
	}
	return r.raw, true
}

// HasPrefix reports whether a raw reply's bytes begin with prefix.
func (r Reply) HasPrefix(prefix string) bool {
	raw, ok := r.AsRaw()
	return ok && bytes.HasPrefix(raw, []byte(prefix))
}

func parseReply(data []byte) Reply {
	if len(data) == 0 {
		return Reply{kind: ReplyEmpty}
	}

	trimmed := bytes.TrimSpace(data)
	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return Reply{kind: ReplyJSON, json: v}
	}
	return Reply{kind: ReplyRaw, raw: data}
}

// Client is a request-scoped-serialised RCON client. At most one request is
// in flight at a time (mu); connection loss sets connected=false and
// discards the socket so the next public call re-dials.
type Client struct {
	addr     string
	password string
	loglevel int

	mu        sync.Mutex // serialises requests; guards conn/connected
	conn      net.Conn
	connected bool
}

// New returns a Client targeting host:port, authenticating with password if
// non-empty (the password, if set, is sent as the first line after connect).
func New(host string, port int, password string) *Client {
	return &Client{addr: fmt.Sprintf("%s:%d", host, port), password: password}
}

// UUID implements logger.ILogger.
func (c *Client) UUID() string { return logUUID }

// Loglevel implements logger.ILogger.
func (c *Client) Loglevel() int { return c.loglevel }

// SetLoglevel implements logger.ILogger.
func (c *Client) SetLoglevel(l int) { c.loglevel = l }

// Connected reports whether the client currently believes it holds a live
// socket. Only the mutex holder ever writes this field.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// connect dials and authenticates. Caller must hold c.mu.
func (c *Client) connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		return err
	}

	if c.password != "" {
		if _, err := conn.Write([]byte(c.password + "\n")); err != nil {
			conn.Close()
			return err
		}
	}

	c.conn = conn
	c.connected = true
	return nil
}

// disconnect closes and discards the socket exactly once per loss. Caller
// must hold c.mu.
func (c *Client) disconnect() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.connected = false
}

// EnsureConnection combines lazy-connect with a liveness probe: if not
// connected, try to connect; either way, confirm the socket still accepts
// writes by sending a dummy line. Returns the resulting connected status.
func (c *Client) EnsureConnection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		if err := c.connect(); err != nil {
			logger.LogDebug(c, "ensureConnection: dial failed: "+err.Error())
			return false
		}
	}

	if _, err := c.conn.Write([]byte(pingLine)); err != nil {
		c.disconnect()
		return false
	}

	return c.connected
}

// recvAll reads 4 KiB chunks until a short read terminates the block,
// returning the accumulated bytes. Caller must hold c.mu and have a live
// conn. Mirrors original_source/astro/rcon.py's _recvall.
func (c *Client) recvAll() ([]byte, error) {
	buf := make([]byte, recvBufSize)
	var acc []byte

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
		}
		if err != nil {
			return acc, err
		}
		if n < recvBufSize {
			break
		}
	}
	return acc, nil
}

// request sends line and, if wantReply, reads and demultiplexes a reply.
// On any send/recv error the connection is torn down and the error
// returned; callers must not auto-retry mutating commands.
func (c *Client) request(line string, wantReply bool) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		if err := c.connect(); err != nil {
			return Reply{}, fmt.Errorf("rcon: not connected: %w", err)
		}
	}

	logger.LogDebug(c, "send: "+strings.TrimSuffix(line, "\n"))

	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.disconnect()
		return Reply{}, fmt.Errorf("rcon: send failed: %w", err)
	}

	if !wantReply {
		return Reply{kind: ReplyEmpty}, nil
	}

	data, err := c.recvAll()
	if err != nil {
		c.disconnect()
		return Reply{}, fmt.Errorf("rcon: recv failed: %w", err)
	}

	return parseReply(data), nil
}

func escapeName(name string) string {
	return strings.ReplaceAll(name, `"`, `\"`)
}

// ServerStatistics issues DSServerStatistics (read-only).
func (c *Client) ServerStatistics() (Reply, error) {
	return c.request("DSServerStatistics\n", true)
}

// ListPlayers issues DSListPlayers (read-only).
func (c *Client) ListPlayers() (Reply, error) {
	return c.request("DSListPlayers\n", true)
}

// ListGames issues DSListGames (read-only).
func (c *Client) ListGames() (Reply, error) {
	return c.request("DSListGames\n", true)
}

// SetPlayerCategory issues DSSetPlayerCategoryForPlayerName (mutating).
func (c *Client) SetPlayerCategory(name string, category ifaces.PlayerCategory) (Reply, error) {
	line := fmt.Sprintf("DSSetPlayerCategoryForPlayerName \"%s\" %s\n", escapeName(name), category)
	return c.request(line, true)
}

// SetDenyUnlisted issues DSSetDenyUnlisted (mutating). Reply is a raw ack
// with prefix ackDenyUnl and a trailing "1"/"0".
func (c *Client) SetDenyUnlisted(enabled bool) (Reply, error) {
	line := fmt.Sprintf("DSSetDenyUnlisted %t\n", enabled)
	return c.request(line, true)
}

// KickPlayerGuid issues DSKickPlayerGuid (mutating). Reply is a raw ack with
// prefix ackKickGuid and a trailing "d".
func (c *Client) KickPlayerGuid(guid string) (Reply, error) {
	line := fmt.Sprintf("DSKickPlayerGuid %s\n", guid)
	return c.request(line, true)
}

// SaveGame issues DSSaveGame (mutating, no reply). The DS needs ~1.1s to
// quiesce the save before any following command is meaningful.
func (c *Client) SaveGame(name string) error {
	line := "DSSaveGame\n"
	if name != "" {
		line = fmt.Sprintf("DSSaveGame %s\n", name)
	}
	if _, err := c.request(line, false); err != nil {
		return err
	}
	time.Sleep(saveQuiesce)
	return nil
}

// LoadGame issues DSLoadGame (mutating).
func (c *Client) LoadGame(name string) (Reply, error) {
	return c.request(fmt.Sprintf("DSLoadGame %s\n", name), true)
}

// NewGame issues DSNewGame. Disabled by policy (spec.md §9 Open Questions):
// reportedly crashes the DS under the compatibility runtime. Preserved as a
// disabled no-op rather than "fixed".
func (c *Client) NewGame(name string) error {
	return errors.New("rcon: NewGame is disabled: reported to crash the DS under the compatibility runtime")
}

// ServerShutdown issues DSServerShutdown (lifecycle, no reply).
func (c *Client) ServerShutdown() error {
	_, err := c.request("DSServerShutdown\n", false)
	return err
}

// Close tears down the socket if one is open.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect()
}

// Ack prefix constants exposed for callers that need to interpret raw
// replies (spec.md §9: treat these as opaque byte constants, don't
// normalise whitespace).
const (
	AckDenyUnlistedPrefix = ackDenyUnl
	AckKickGuidPrefix     = ackKickGuid
)
