package rcon

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer accepts one connection and answers every line it receives
// with the byte string next() returns, letting tests control JSON vs raw
// vs empty replies without a real DS. stop closes both the listener and the
// accepted connection.
func fakeServer(t *testing.T, next func(line string) []byte) (addr string, stop func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var accepted net.Conn

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		mu.Lock()
		accepted = conn
		mu.Unlock()
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			reply := next(line)
			if reply == nil {
				continue
			}
			conn.Write(reply)
		}
	}()

	return ln.Addr().String(), func() {
		ln.Close()
		mu.Lock()
		if accepted != nil {
			accepted.Close()
		}
		mu.Unlock()
	}
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestServerStatisticsParsesJSON(t *testing.T) {
	addr, stop := fakeServer(t, func(line string) []byte {
		return []byte(`{"build":"1.0","playerNum":0}` + "\n")
	})
	defer stop()

	host, port := splitHostPort(t, addr)
	c := New(host, port, "")

	reply, err := c.ServerStatistics()
	require.NoError(t, err)
	assert.Equal(t, ReplyJSON, reply.Kind())

	v, ok := reply.AsJSON()
	require.True(t, ok)
	m, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1.0", m["build"])
}

func TestSetDenyUnlistedParsesRawAck(t *testing.T) {
	addr, stop := fakeServer(t, func(line string) []byte {
		return []byte(AckDenyUnlistedPrefix + " 1")
	})
	defer stop()

	host, port := splitHostPort(t, addr)
	c := New(host, port, "")

	reply, err := c.SetDenyUnlisted(true)
	require.NoError(t, err)
	assert.Equal(t, ReplyRaw, reply.Kind())
	assert.True(t, reply.HasPrefix(AckDenyUnlistedPrefix))
}

func TestParseReplyEmptyIsNotAJSONFailure(t *testing.T) {
	reply := parseReply(nil)
	assert.Equal(t, ReplyEmpty, reply.Kind())
	_, okJSON := reply.AsJSON()
	_, okRaw := reply.AsRaw()
	assert.False(t, okJSON)
	assert.False(t, okRaw)
}

func TestServerShutdownDoesNotWaitForReply(t *testing.T) {
	addr, stop := fakeServer(t, func(line string) []byte {
		return nil
	})
	defer stop()

	host, port := splitHostPort(t, addr)
	c := New(host, port, "")

	err := c.ServerShutdown()
	require.NoError(t, err)
}

func TestNewGameIsDisabled(t *testing.T) {
	c := New("127.0.0.1", 1234, "")
	err := c.NewGame("whatever")
	require.Error(t, err)
}

func TestDisconnectOnSendFailureForcesRedial(t *testing.T) {
	addr, stop := fakeServer(t, func(line string) []byte {
		return []byte(`{"ok":true}` + "\n")
	})

	host, port := splitHostPort(t, addr)
	c := New(host, port, "")

	_, err := c.ServerStatistics()
	require.NoError(t, err)
	assert.True(t, c.Connected())

	stop() // kill the listener/connection out from under the client

	// A subsequent request must observe the failure and mark disconnected
	// rather than silently reusing the dead socket forever.
	_, err = c.ServerStatistics()
	assert.Error(t, err)
	assert.False(t, c.Connected())
}
