package repl

import (
	"sort"
	"strings"
)

// Completer suggests command names.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer for the given command names. exit,
// quit and help are always known.
func NewCompleter(commands ...string) *Completer {
	seen := map[string]bool{"exit": true, "quit": true, "help": true}
	for _, c := range commands {
		seen[c] = true
	}
	all := make([]string, 0, len(seen))
	for c := range seen {
		all = append(all, c)
	}
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns the command names starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether name is a command.
func (c *Completer) Known(name string) bool {
	i := sort.SearchStrings(c.commands, name)
	return i < len(c.commands) && c.commands[i] == name
}
