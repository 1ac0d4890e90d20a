package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrotux/astrotuxsupervisor/internal/ifaces"
)

func TestTokenizeQuoting(t *testing.T) {
	toks, err := Tokenize(`player set "John Doe" Admin`)
	require.NoError(t, err)
	assert.Equal(t, []string{"player", "set", "John Doe", "Admin"}, toks)
}

func TestTokenizeSingleQuote(t *testing.T) {
	toks, err := Tokenize(`kick 'Jane Smith'`)
	require.NoError(t, err)
	assert.Equal(t, []string{"kick", "Jane Smith"}, toks)
}

func TestTokenizeMissingClosingQuote(t *testing.T) {
	_, err := Tokenize(`kick "unterminated`)
	require.Error(t, err)
}

func TestTokenizeMissingWhitespaceBeforeQuote(t *testing.T) {
	_, err := Tokenize(`kick foo"bar"`)
	require.Error(t, err)
}

func TestParseCommandSimpleVerbs(t *testing.T) {
	for verb, kind := range map[string]ifaces.CommandKind{
		"shutdown": ifaces.CmdShutdown,
		"restart":  ifaces.CmdRestart,
		"info":     ifaces.CmdInfo,
	} {
		rec, helpText, err := ParseCommand(verb)
		require.NoError(t, err)
		assert.Empty(t, helpText)
		assert.Equal(t, kind, rec.Cmd)
	}
}

func TestParseCommandHelpIsEvaluatedInline(t *testing.T) {
	rec, helpText, err := ParseCommand("help")
	require.NoError(t, err)
	assert.Equal(t, ifaces.CommandRecord{}, rec)
	assert.Contains(t, helpText, "shutdown")
	assert.Contains(t, helpText, "savegame")
}

func TestParseCommandHelpForCommandShowsItsSubcommands(t *testing.T) {
	_, helpText, err := ParseCommand("help whitelist")
	require.NoError(t, err)
	assert.Contains(t, helpText, "enable")
	assert.Contains(t, helpText, "disable")
	assert.Contains(t, helpText, "status")
}

func TestParseCommandHelpForSubcommandShowsItsOwnDescription(t *testing.T) {
	_, helpText, err := ParseCommand("help savegame load")
	require.NoError(t, err)
	assert.Contains(t, helpText, "savegame load")
	assert.Contains(t, helpText, "load a save by name")
}

func TestParseCommandHelpToleratesUnknownSubcommand(t *testing.T) {
	_, helpText, err := ParseCommand("help whitelist nonsense")
	require.NoError(t, err)
	assert.Contains(t, helpText, "enable")
}

func TestParseCommandKick(t *testing.T) {
	rec, helpText, err := ParseCommand(`kick "John Doe"`)
	require.NoError(t, err)
	assert.Empty(t, helpText)
	assert.Equal(t, ifaces.CmdKick, rec.Cmd)
	assert.Equal(t, "John Doe", rec.Player)
}

func TestParseCommandKickMissingArg(t *testing.T) {
	_, _, err := ParseCommand("kick")
	require.Error(t, err)
}

func TestParseCommandWhitelist(t *testing.T) {
	rec, helpText, err := ParseCommand("whitelist enable")
	require.NoError(t, err)
	assert.Empty(t, helpText)
	assert.Equal(t, ifaces.CmdWhitelistEnable, rec.Cmd)
}

func TestParseCommandListDefaultsToAll(t *testing.T) {
	rec, helpText, err := ParseCommand("list")
	require.NoError(t, err)
	assert.Empty(t, helpText)
	assert.Equal(t, ifaces.CmdList, rec.Cmd)
	assert.Equal(t, "all", rec.ListCat)
}

func TestParseCommandSavegameLoad(t *testing.T) {
	rec, helpText, err := ParseCommand("savegame load SAVE_2")
	require.NoError(t, err)
	assert.Empty(t, helpText)
	assert.Equal(t, ifaces.CmdSaveLoad, rec.Cmd)
	assert.Equal(t, "SAVE_2", rec.SaveName)
}

func TestParseCommandSavegameSaveWithoutName(t *testing.T) {
	rec, helpText, err := ParseCommand("savegame save")
	require.NoError(t, err)
	assert.Empty(t, helpText)
	assert.Equal(t, ifaces.CmdSaveSave, rec.Cmd)
	assert.Equal(t, "", rec.SaveName)
}

func TestParseCommandPlayerSet(t *testing.T) {
	rec, helpText, err := ParseCommand(`player set "John Doe" admin`)
	require.NoError(t, err)
	assert.Empty(t, helpText)
	assert.Equal(t, ifaces.CmdPlayerSet, rec.Cmd)
	assert.Equal(t, "John Doe", rec.Player)
	assert.Equal(t, ifaces.CategoryAdmin, rec.Category)
}

func TestParseCommandPlayerSetUnknownCategory(t *testing.T) {
	_, _, err := ParseCommand("player set Bob nonsense")
	require.Error(t, err)
}

func TestParseCommandUnknownVerb(t *testing.T) {
	_, _, err := ParseCommand("launchmissiles")
	require.Error(t, err)
}
