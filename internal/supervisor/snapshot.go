package supervisor

import "github.com/astrotux/astrotuxsupervisor/internal/ifaces"

// PlayerInfo is one entry of a DSListPlayers reply, grounded on
// original_source/astro/dedicatedserver.py's PlayerInfo dataclass.
type PlayerInfo struct {
	PlayerGuid     string                `json:"playerGuid"`
	PlayerCategory ifaces.PlayerCategory `json:"playerCategory"`
	PlayerName     string                `json:"playerName"`
	InGame         bool                  `json:"inGame"`
	Index          int                   `json:"index"`
}

// PlayerList is a decoded DSListPlayers reply.
type PlayerList struct {
	PlayerInfo []PlayerInfo `json:"playerInfo"`
}

// GameInfo is one entry of a DSListGames reply's gameList.
type GameInfo struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// GameList is a decoded DSListGames reply.
type GameList struct {
	ActiveSaveName string     `json:"activeSaveName"`
	GameList       []GameInfo `json:"gameList"`
}

// ServerStatistics is a decoded DSServerStatistics reply, grounded on
// original_source/astro/dedicatedserver.py's ServerStatistics dataclass.
type ServerStatistics struct {
	Build                  string  `json:"build"`
	OwnerName              string  `json:"ownerName"`
	MaxInGamePlayers       int     `json:"maxInGamePlayers"`
	PlayersKnownToGame     int     `json:"playersKnownToGame"`
	SaveGameName           string  `json:"saveGameName"`
	PlayerActivityTimeout  int     `json:"playerActivityTimeout"`
	SecondsInGame          int     `json:"secondsInGame"`
	ServerName             string  `json:"serverName"`
	ServerURL              string  `json:"serverURL"`
	AverageFPS             float64 `json:"averageFPS"`
	HasServerPassword      bool    `json:"hasServerPassword"`
	IsEnforcingWhitelist   bool    `json:"isEnforcingWhitelist"`
	CreativeMode           bool    `json:"creativeMode"`
}

func onlineByGuid(pl PlayerList) map[string]PlayerInfo {
	out := make(map[string]PlayerInfo, len(pl.PlayerInfo))
	for _, p := range pl.PlayerInfo {
		if p.InGame {
			out[p.PlayerGuid] = p
		}
	}
	return out
}

func saveDate(gl GameList, name string) string {
	if name == "" {
		return ""
	}
	for _, g := range gl.GameList {
		if g.Name == name {
			return g.Date
		}
	}
	return ""
}

// diffSnapshots compares two consecutive successful polls and returns the
// PlayerJoin/PlayerLeave/SavegameChange/Save events implied by the
// difference (spec.md §4.8 server_loop, §8 diff-correctness / save-event
// properties). Grounded on original_source/astro/dedicatedserver.py's
// server_loop set-difference logic, re-expressed without its intervening
// list/set churn.
func diffSnapshots(prevPlayers PlayerList, prevGames GameList, currPlayers PlayerList, currGames GameList) []ifaces.Event {
	var events []ifaces.Event

	prevOnline := onlineByGuid(prevPlayers)
	currOnline := onlineByGuid(currPlayers)

	for guid, p := range currOnline {
		if _, ok := prevOnline[guid]; !ok {
			events = append(events, ifaces.NewEvent(ifaces.EventPlayerJoin, map[string]string{
				"player": p.PlayerName,
				"guid":   guid,
			}))
		}
	}
	for guid, p := range prevOnline {
		if _, ok := currOnline[guid]; !ok {
			events = append(events, ifaces.NewEvent(ifaces.EventPlayerLeave, map[string]string{
				"player": p.PlayerName,
				"guid":   guid,
			}))
		}
	}

	switch {
	case currGames.ActiveSaveName != prevGames.ActiveSaveName:
		events = append(events, ifaces.NewEvent(ifaces.EventSavegameChange, map[string]string{
			"save": currGames.ActiveSaveName,
		}))
	case currGames.ActiveSaveName != "":
		prevDate := saveDate(prevGames, prevGames.ActiveSaveName)
		currDate := saveDate(currGames, currGames.ActiveSaveName)
		if prevDate != currDate {
			events = append(events, ifaces.NewEvent(ifaces.EventSave, map[string]string{
				"save": currGames.ActiveSaveName,
			}))
		}
	}

	return events
}
