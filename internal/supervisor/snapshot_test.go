package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
)

func playerList(inGame ...PlayerInfo) PlayerList {
	return PlayerList{PlayerInfo: inGame}
}

func TestDiffSnapshotsDetectsJoinAndLeave(t *testing.T) {
	prev := playerList(
		PlayerInfo{PlayerGuid: "1", PlayerName: "Alice", InGame: true},
		PlayerInfo{PlayerGuid: "2", PlayerName: "Bob", InGame: true},
	)
	curr := playerList(
		PlayerInfo{PlayerGuid: "2", PlayerName: "Bob", InGame: true},
		PlayerInfo{PlayerGuid: "3", PlayerName: "Carol", InGame: true},
	)

	events := diffSnapshots(prev, GameList{}, curr, GameList{})

	require.Len(t, events, 2)

	var joined, left bool
	for _, ev := range events {
		switch ev.Kind {
		case ifaces.EventPlayerJoin:
			assert.Equal(t, "Carol", ev.Attrs["player"])
			joined = true
		case ifaces.EventPlayerLeave:
			assert.Equal(t, "Alice", ev.Attrs["player"])
			left = true
		default:
			t.Fatalf("unexpected event kind %v", ev.Kind)
		}
	}
	assert.True(t, joined)
	assert.True(t, left)
}

func TestDiffSnapshotsIgnoresPlayersNotInGame(t *testing.T) {
	prev := playerList(PlayerInfo{PlayerGuid: "1", PlayerName: "Alice", InGame: false})
	curr := playerList(PlayerInfo{PlayerGuid: "1", PlayerName: "Alice", InGame: false})

	events := diffSnapshots(prev, GameList{}, curr, GameList{})
	assert.Empty(t, events)
}

func TestDiffSnapshotsDetectsSavegameChange(t *testing.T) {
	prev := GameList{ActiveSaveName: "SAVE_1", GameList: []GameInfo{{Name: "SAVE_1", Date: "t0"}}}
	curr := GameList{ActiveSaveName: "SAVE_2", GameList: []GameInfo{{Name: "SAVE_1", Date: "t0"}, {Name: "SAVE_2", Date: "t0"}}}

	events := diffSnapshots(PlayerList{}, prev, PlayerList{}, curr)

	require.Len(t, events, 1)
	assert.Equal(t, ifaces.EventSavegameChange, events[0].Kind)
	assert.Equal(t, "SAVE_2", events[0].Attrs["save"])
}

func TestDiffSnapshotsDetectsSaveWithoutNameChange(t *testing.T) {
	prev := GameList{ActiveSaveName: "SAVE_1", GameList: []GameInfo{{Name: "SAVE_1", Date: "t0"}}}
	curr := GameList{ActiveSaveName: "SAVE_1", GameList: []GameInfo{{Name: "SAVE_1", Date: "t1"}}}

	events := diffSnapshots(PlayerList{}, prev, PlayerList{}, curr)

	require.Len(t, events, 1)
	assert.Equal(t, ifaces.EventSave, events[0].Kind)
	assert.Equal(t, "SAVE_1", events[0].Attrs["save"])
}

func TestDiffSnapshotsNoEventWhenSaveDateUnchanged(t *testing.T) {
	prev := GameList{ActiveSaveName: "SAVE_1", GameList: []GameInfo{{Name: "SAVE_1", Date: "t0"}}}
	curr := GameList{ActiveSaveName: "SAVE_1", GameList: []GameInfo{{Name: "SAVE_1", Date: "t0"}}}

	events := diffSnapshots(PlayerList{}, prev, PlayerList{}, curr)
	assert.Empty(t, events)
}

func TestDiffSnapshotsNoEventOnFirstEmptyCycle(t *testing.T) {
	events := diffSnapshots(PlayerList{}, GameList{}, PlayerList{}, GameList{})
	assert.Empty(t, events)
}
