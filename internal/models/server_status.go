package models

import (
	"fmt"
	"strings"
)

// ServerStatus is the lifecycle label of an instance. It is reported by the
// process supervisor and never persisted; a restarted manager sees every
// instance as stopped.
type ServerStatus int

const (
	StatusStopped ServerStatus = iota
	StatusStopping
	StatusStarting
	StatusRunning
)

// Describe returns the sentence shown next to an instance.
func (s ServerStatus) Describe() string {
	switch s {
	case StatusStopped:
		return "Stopped."
	case StatusStopping:
		return "Stopping!!"
	case StatusStarting:
		return "Starting! Please Wait."
	case StatusRunning:
		return "Running, Go ahead and join."
	default:
		return "Unknown."
	}
}

// String returns the short lowercase label used on the wire.
func (s ServerStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStopping:
		return "stopping"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	default:
		return fmt.Sprintf("ServerStatus(%d)", int(s))
	}
}

// ParseServerStatus is the inverse of String.
func ParseServerStatus(s string) (ServerStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stopped":
		return StatusStopped, nil
	case "stopping":
		return StatusStopping, nil
	case "starting":
		return StatusStarting, nil
	case "running":
		return StatusRunning, nil
	}
	return 0, fmt.Errorf("unknown server status %q", s)
}

func (s ServerStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ServerStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseServerStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
