// Package matchmaking talks to the Astroneer title's Playfab backend: the
// API the DS and its companions use to register a running server so that
// the in-game server browser can find it.
//
// Grounded on original_source/astro/playfab.py.
package matchmaking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	baseURL      = "https://5EA1.playfabapi.com"
	healthURL    = "https://5ea1.playfabapi.com/"
	sdkVersion   = "UE4MKPL-1.49.201027"
	userAgent    = "Astro/++UE4+Release-4.23-CL-0 Windows/10.0.19042.1.256.64bit"
	titleID      = "5EA1"
	loginRetryWait = 200 * time.Millisecond
)

// APIError reports a Playfab API-level failure (a successful HTTP
// round-trip whose JSON body itself signalled an error).
type APIError struct {
	Code    int
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("matchmaking: playfab API error %d %s: %s", e.Code, e.Status, e.Message)
}

// Client is a Playfab API client scoped to a single dedicated server's
// matchmaking lifecycle (login once, then register/deregister/heartbeat).
type Client struct {
	http    *http.Client
	baseURL string
}

// New returns a Client using a default HTTP transport with a 10s timeout.
func New() *Client {
	return &Client{http: &http.Client{Timeout: 10 * time.Second}, baseURL: baseURL}
}

func (c *Client) baseHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-PlayFabSDK", sdkVersion)
	h.Set("User-Agent", userAgent)
	return h
}

func (c *Client) post(ctx context.Context, path string, headers http.Header, body interface{}) (map[string]interface{}, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("matchmaking: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s%s?sdk=%s", c.baseURL, path, sdkVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("matchmaking: building request: %w", err)
	}
	req.Header = headers

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matchmaking: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("matchmaking: decoding response from %s: %w", path, err)
	}

	return out, nil
}

// Health reports whether the Playfab API currently reports itself healthy.
// Failures are swallowed into a false return, matching check_api_health.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var body struct {
		Healthy bool `json:"Healthy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Healthy
}

// Login exchanges a server GUID for a session ticket (X-Authorization
// value), creating a Playfab custom-ID account for the GUID on first use.
// Grounded on generate_XAuth: the first attempt never creates an account;
// only on an AccountNotFound error does it retry with CreateAccount=true,
// after a short, fixed settle delay.
func (c *Client) Login(ctx context.Context, serverGUID string) (string, error) {
	reqBody := map[string]interface{}{
		"CreateAccount": false,
		"CustomId":      serverGUID,
		"TitleId":       titleID,
	}

	resp, err := c.post(ctx, "/Client/LoginWithCustomID", c.baseHeaders(), reqBody)
	if err != nil {
		return "", err
	}

	if isAccountNotFound(resp) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(loginRetryWait):
		}

		reqBody["CreateAccount"] = true
		resp, err = c.post(ctx, "/Client/LoginWithCustomID", c.baseHeaders(), reqBody)
		if err != nil {
			return "", err
		}
	}

	return extractSessionTicket(resp)
}

func isAccountNotFound(resp map[string]interface{}) bool {
	code, _ := resp["code"].(float64)
	errStr, _ := resp["error"].(string)
	return int(code) == 400 && errStr == "AccountNotFound"
}

func extractSessionTicket(resp map[string]interface{}) (string, error) {
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		return "", apiErrorFrom(resp)
	}
	ticket, ok := data["SessionTicket"].(string)
	if !ok {
		return "", apiErrorFrom(resp)
	}
	return ticket, nil
}

func apiErrorFrom(resp map[string]interface{}) error {
	code, _ := resp["code"].(float64)
	status, _ := resp["status"].(string)
	errorMessage, _ := resp["errorMessage"].(string)
	return &APIError{Code: int(code), Status: status, Message: errorMessage}
}

func (c *Client) authedHeaders(sessionTicket string) http.Header {
	h := c.baseHeaders()
	h.Set("X-Authorization", sessionTicket)
	return h
}

// FindServers asks Playfab for the current-games entries tagged with
// ipPortCombo, the IP:port this DS advertises under. Grounded on
// get_server's TagFilter shape.
func (c *Client) FindServers(ctx context.Context, ipPortCombo, sessionTicket string) (map[string]interface{}, error) {
	reqBody := map[string]interface{}{
		"TagFilter": map[string]interface{}{
			"Includes": []map[string]interface{}{
				{"Data": map[string]interface{}{"gameId": ipPortCombo}},
			},
		},
	}
	return c.post(ctx, "/Client/GetCurrentGames", c.authedHeaders(sessionTicket), reqBody)
}

// Deregister removes lobbyID's matchmaking registration. Grounded on
// deregister_server's ExecuteCloudScript call.
func (c *Client) Deregister(ctx context.Context, lobbyID, sessionTicket string) (map[string]interface{}, error) {
	reqBody := map[string]interface{}{
		"FunctionName": "deregisterDedicatedServer",
		"FunctionParameter": map[string]interface{}{
			"lobbyId": lobbyID,
		},
		"GeneratePlayStreamEvent": true,
	}
	return c.post(ctx, "/Client/ExecuteCloudScript", c.authedHeaders(sessionTicket), reqBody)
}

// ServerData is the subset of a Playfab GetCurrentGames entry the
// heartbeat call needs to echo back, named for clarity instead of
// threading a raw map through the supervisor.
type ServerData struct {
	ServerName       string
	BuildVersion     string
	GameMode         string
	ServerIPV4Address string
	ServerPort       int
	MatchmakerBuild  string
	MaxPlayers       string
	NumPlayers       int
	LobbyID          string
	PublicSigningKey string
	RequiresPassword bool
}

// Heartbeat reports liveness and current player count for a registered
// server. Grounded on heartbeat_server's FunctionParameter shape.
func (c *Client) Heartbeat(ctx context.Context, sd ServerData, sessionTicket string) (map[string]interface{}, error) {
	reqBody := map[string]interface{}{
		"FunctionName": "heartbeatDedicatedServer",
		"FunctionParameter": map[string]interface{}{
			"serverName":       sd.ServerName,
			"buildVersion":     sd.BuildVersion,
			"gameMode":         sd.GameMode,
			"ipAddress":        sd.ServerIPV4Address,
			"port":             sd.ServerPort,
			"matchmakerBuild":  sd.MatchmakerBuild,
			"maxPlayers":       sd.MaxPlayers,
			"numPlayers":       fmt.Sprintf("%d", sd.NumPlayers),
			"lobbyId":          sd.LobbyID,
			"publicSigningKey": sd.PublicSigningKey,
			"requiresPassword": sd.RequiresPassword,
		},
		"GeneratePlayStreamEvent": true,
	}
	return c.post(ctx, "/Client/ExecuteCloudScript", c.authedHeaders(sessionTicket), reqBody)
}
