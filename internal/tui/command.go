package tui

import (
	"fmt"
	"sort"
	"strings"
)

// Command is a parsed ":" line.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits input into a lowercased name and its arguments. A
// leading ':' is optional.
func ParseCommand(input string) Command {
	input = strings.TrimPrefix(strings.TrimSpace(input), ":")
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

type commandSpec struct {
	name    string
	aliases []string
	usage   string
	needArg bool
}

var commands = []commandSpec{
	{name: "open", aliases: []string{"chat"}, usage: ":open <peer>", needArg: true},
	{name: "retry", usage: ":retry"},
	{name: "record", aliases: []string{"rec"}, usage: ":record"},
	{name: "help", aliases: []string{"h"}, usage: ":help"},
	{name: "quit", aliases: []string{"q"}, usage: ":quit"},
}

// Resolve maps an alias to its command and checks the arguments.
func Resolve(cmd Command) (Command, error) {
	for _, c := range commands {
		if c.name != cmd.Name && !contains(c.aliases, cmd.Name) {
			continue
		}
		if c.needArg && cmd.Args == "" {
			return Command{}, fmt.Errorf("usage: %s", c.usage)
		}
		return Command{Name: c.name, Args: cmd.Args}, nil
	}
	return Command{}, fmt.Errorf("unknown command: %s", cmd.Name)
}

// CompleteCommand returns the command names starting with prefix. Once a
// command takes arguments, peers completes them.
func CompleteCommand(text string, peers func(prefix string) []string) []string {
	text = strings.TrimPrefix(text, ":")
	if name, arg, ok := strings.Cut(text, " "); ok {
		cmd, err := Resolve(Command{Name: strings.ToLower(name), Args: "x"})
		if err != nil || cmd.Name != "open" || peers == nil {
			return nil
		}
		var out []string
		for _, p := range peers(strings.TrimSpace(arg)) {
			out = append(out, name+" "+p)
		}
		return out
	}
	prefix := strings.ToLower(text)
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c.name, prefix) {
			out = append(out, c.name)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
