// file: internal/command/command.go
// version: 1.0.0
// guid: 6e2a9d4f-1b8c-4e5a-a7d3-9f6b2c8e0a5d

// Package command parses and routes bookplayer:// action URLs coming from
// widgets, the watch app, and the HTTP command endpoint.
package command

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// CommandType identifies an inbound action.
type CommandType string

const (
	CommandPlay        CommandType = "play"
	CommandDownload    CommandType = "download"
	CommandSleep       CommandType = "sleep"
	CommandRefresh     CommandType = "refresh"
	CommandSkipRewind  CommandType = "skipRewind"
	CommandSkipForward CommandType = "skipForward"
)

// Action is one parsed command with its query parameters.
type Action struct {
	Command CommandType
	Params  map[string]string
}

// Param returns a query parameter or the empty string.
func (a Action) Param(key string) string {
	return a.Params[key]
}

// Parse turns a bookplayer://<command>?k=v URL into an Action. The scheme is
// optional so bare "play?identifier=x" strings from the HTTP surface work too.
func Parse(raw string) (Action, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Action{}, fmt.Errorf("empty command")
	}
	trimmed = strings.TrimPrefix(trimmed, "bookplayer://")

	u, err := url.Parse(trimmed)
	if err != nil {
		return Action{}, fmt.Errorf("malformed command %q: %w", raw, err)
	}

	name := u.Path
	if u.Host != "" {
		// bookplayer://play parses the command into the host portion.
		name = u.Host + name
	}
	name = strings.Trim(name, "/")
	if name == "" {
		return Action{}, fmt.Errorf("malformed command %q: no command name", raw)
	}

	cmd := CommandType(name)
	switch cmd {
	case CommandPlay, CommandDownload, CommandSleep, CommandRefresh, CommandSkipRewind, CommandSkipForward:
	default:
		return Action{}, fmt.Errorf("unknown command %q", name)
	}

	params := make(map[string]string)
	for key, values := range u.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return Action{Command: cmd, Params: params}, nil
}

// SleepSeconds extracts the sleep timer duration from a sleep action. A value
// of -1 cancels the running timer.
func (a Action) SleepSeconds() (int, error) {
	raw := a.Param("seconds")
	if raw == "" {
		return 0, fmt.Errorf("sleep command missing seconds parameter")
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds value %q: %w", raw, err)
	}
	return seconds, nil
}
