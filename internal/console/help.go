package console

import (
	"sort"
	"strings"
)

// helpNode is one entry in the static command-grammar tree spec.md §4.6
// describes, used to render contextual "help [cmd [subcmd]]" text the way
// `commandinterface.py`'s `Command.help_text` walks its own `args()` tree
// recursively rather than printing one flat list.
type helpNode struct {
	description string
	subcommands map[string]*helpNode
}

var helpTree = map[string]*helpNode{
	"help":     {description: "show this text, or help for a specific command"},
	"shutdown": {description: "gracefully stop the dedicated server"},
	"restart":  {description: "not implemented: always answers with an error and leaves the server running"},
	"info":     {description: "show current server statistics"},
	"kick":     {description: "kick a connected player by name: kick <player>"},
	"whitelist": {
		description: "control the unlisted-player deny list",
		subcommands: map[string]*helpNode{
			"enable":  {description: "deny unlisted players from joining"},
			"disable": {description: "allow unlisted players to join"},
			"status":  {description: "show whether unlisted players are denied"},
		},
	},
	"list": {description: "list known players, optionally filtered: list [all|whitelisted|blacklisted|unlisted|admin|owner]"},
	"savegame": {
		description: "manage saves",
		subcommands: map[string]*helpNode{
			"load": {description: "load a save by name: savegame load <name>"},
			"save": {description: "save, optionally under a new name: savegame save [name]"},
			"new":  {description: "disabled: always answers with an error, no new save is created: savegame new [name]"},
			"list": {description: "list known saves"},
		},
	},
	"player": {
		description: "inspect or change a player's category",
		subcommands: map[string]*helpNode{
			"set": {description: "set a player's category: player set <who> <category>"},
			"get": {description: "show a player's category: player get <who>"},
		},
	},
}

// ContextualHelpText renders help for path, the tokens following "help" on
// the command line. An empty path, or a path whose first token names no
// top-level command, lists every top-level command; a path naming a
// command (optionally followed by one of its subcommands) recurses into
// that command's own description/subcommand list, mirroring
// commandinterface.py's Command.help_text(path) walk.
func ContextualHelpText(path []string) string {
	return helpTextFor(helpTree, path, "")
}

func helpTextFor(nodes map[string]*helpNode, path []string, usage string) string {
	if len(path) == 0 {
		return renderHelpLevel(nodes, usage)
	}
	name := strings.ToLower(path[0])
	node, ok := nodes[name]
	if !ok {
		return renderHelpLevel(nodes, usage)
	}
	if usage != "" {
		usage += " "
	}
	usage += name
	if len(path) == 1 {
		return renderHelpNode(node, usage)
	}
	return helpTextFor(node.subcommands, path[1:], usage)
}

func renderHelpNode(node *helpNode, usage string) string {
	var b strings.Builder
	if usage != "" {
		b.WriteString(usage + "\n")
	}
	if node.description != "" {
		b.WriteString(node.description)
	}
	if len(node.subcommands) > 0 {
		if node.description != "" {
			b.WriteString("\n")
		}
		b.WriteString("subcommands:\n")
		b.WriteString(renderCommandList(node.subcommands))
	}
	return b.String()
}

func renderHelpLevel(nodes map[string]*helpNode, usage string) string {
	var b strings.Builder
	if usage != "" {
		b.WriteString(usage + "\n")
	}
	b.WriteString(renderCommandList(nodes))
	return b.String()
}

func renderCommandList(nodes map[string]*helpNode) string {
	names := make([]string, 0, len(nodes))
	maxlen := 0
	for name := range nodes {
		names = append(names, name)
		if len(name) > maxlen {
			maxlen = len(name)
		}
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "  "+name+strings.Repeat(" ", maxlen-len(name))+"  "+nodes[name].description)
	}
	return strings.Join(lines, "\n")
}
