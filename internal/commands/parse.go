package commands

import (
	"strconv"
	"strings"
)

const (
	commandPrefix = ":"
	exitCommand   = ":exit"
	joinCommand   = ":join "
)

// Parse classifies a submitted line. Lines not starting with a colon are
// messages; colon lines are commands, with anything unrecognised reported
// as Unknown.
func Parse(line string) Intent {
	switch {
	case strings.HasPrefix(line, exitCommand):
		return Quit{}
	case strings.HasPrefix(line, joinCommand):
		name := strings.TrimPrefix(line, joinCommand)
		if strings.TrimSpace(name) == "" {
			return Unknown{Raw: line}
		}
		return Join{Name: name}
	case line == ":q" || line == ":close":
		return Close{}
	case strings.HasPrefix(line, commandPrefix):
		if index, ok := parseIndex(line); ok {
			return SwitchPage{Index: index}
		}
		return Unknown{Raw: line}
	default:
		return Message{Text: line}
	}
}

// parseIndex accepts ":<n>" and tolerates trailing colons such as ":2:".
func parseIndex(line string) (int, bool) {
	digits := strings.Trim(line, commandPrefix)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
