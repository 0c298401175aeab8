// Package chat turns chat lines into economy calls and renders the results.
package chat

import (
	"strings"
)

const DefaultPrefix = "!"

// Message is one parsed chat command.
type Message struct {
	User    string
	Command string
	Args    []string
}

// Parse splits text into a command and arguments. It reports false when text
// does not start with prefix or names no command.
func Parse(user, text, prefix string) (Message, bool) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return Message{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return Message{}, false
	}
	return Message{
		User:    strings.TrimPrefix(strings.TrimSpace(user), "@"),
		Command: strings.ToLower(fields[0]),
		Args:    fields[1:],
	}, true
}

// splitTarget pulls the first @mention out of args and returns it with the
// remaining arguments, so "!share clap @bob" and "!share @bob clap" agree.
// Without a mention the target is the last argument when last is set and the
// first otherwise.
func splitTarget(args []string, last bool) (target string, rest []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			rest = append(rest, args[:i]...)
			rest = append(rest, args[i+1:]...)
			return strings.TrimPrefix(a, "@"), rest
		}
	}
	switch {
	case len(args) == 0:
		return "", nil
	case last:
		return args[len(args)-1], args[:len(args)-1]
	default:
		return args[0], args[1:]
	}
}
