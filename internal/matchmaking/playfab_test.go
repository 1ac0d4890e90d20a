package matchmaking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAccountNotFound(t *testing.T) {
	assert.True(t, isAccountNotFound(map[string]interface{}{"code": float64(400), "error": "AccountNotFound"}))
	assert.False(t, isAccountNotFound(map[string]interface{}{"code": float64(200), "error": "AccountNotFound"}))
	assert.False(t, isAccountNotFound(map[string]interface{}{"code": float64(400), "error": "Other"}))
}

func TestExtractSessionTicket(t *testing.T) {
	ticket, err := extractSessionTicket(map[string]interface{}{
		"data": map[string]interface{}{"SessionTicket": "abc123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", ticket)
}

func TestExtractSessionTicketMissingData(t *testing.T) {
	_, err := extractSessionTicket(map[string]interface{}{"code": float64(500)})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func testClient(srv *httptest.Server) *Client {
	return &Client{http: &http.Client{Timeout: 5 * time.Second}, baseURL: srv.URL}
}

// TestLoginRetriesOnAccountNotFound exercises the AccountNotFound-then-
// CreateAccount dance end to end: the first LoginWithCustomID call always
// reports AccountNotFound; only the retry with CreateAccount=true
// succeeds, and Login must wait before retrying and return the ticket
// from the second response, not the first.
func TestLoginRetriesOnAccountNotFound(t *testing.T) {
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if create, _ := body["CreateAccount"].(bool); !create {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code":  400,
				"error": "AccountNotFound",
			})
			return
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"SessionTicket": "new-ticket"},
		})
	}))
	defer srv.Close()

	c := testClient(srv)

	ticket, err := c.Login(context.Background(), "some-guid")
	require.NoError(t, err)
	assert.Equal(t, "new-ticket", ticket)
	assert.Equal(t, 2, attempts)
}

func TestLoginSucceedsWithoutRetryWhenAccountExists(t *testing.T) {
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"SessionTicket": "existing-ticket"},
		})
	}))
	defer srv.Close()

	c := testClient(srv)

	ticket, err := c.Login(context.Background(), "some-guid")
	require.NoError(t, err)
	assert.Equal(t, "existing-ticket", ticket)
	assert.Equal(t, 1, attempts)
}

func TestHeartbeatSendsExpectedFields(t *testing.T) {
	var gotParams map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotParams, _ = body["FunctionParameter"].(map[string]interface{})
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.Heartbeat(context.Background(), ServerData{
		ServerName: "My Server",
		LobbyID:    "lobby-1",
		NumPlayers: 3,
	}, "ticket")
	require.NoError(t, err)

	require.NotNil(t, gotParams)
	assert.Equal(t, "My Server", gotParams["serverName"])
	assert.Equal(t, "lobby-1", gotParams["lobbyId"])
	assert.Equal(t, "3", gotParams["numPlayers"])
}
