package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextualHelpTextEmptyPathListsTopLevel(t *testing.T) {
	text := ContextualHelpText(nil)
	for _, want := range []string{"help", "shutdown", "restart", "info", "kick", "whitelist", "list", "savegame", "player"} {
		assert.Contains(t, text, want)
	}
}

func TestContextualHelpTextUnknownTopLevelListsTopLevel(t *testing.T) {
	text := ContextualHelpText([]string{"nonsense"})
	assert.Contains(t, text, "shutdown")
}

func TestContextualHelpTextLeafCommandHasNoSubcommands(t *testing.T) {
	text := ContextualHelpText([]string{"kick"})
	assert.Contains(t, text, "kick")
	assert.NotContains(t, text, "subcommands")
}

func TestContextualHelpTextIsCaseInsensitive(t *testing.T) {
	lower := ContextualHelpText([]string{"whitelist", "enable"})
	upper := ContextualHelpText([]string{"WHITELIST", "ENABLE"})
	assert.Equal(t, lower, upper)
}
