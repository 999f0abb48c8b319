package models

import (
	"fmt"
	"strings"
)

// ServerType identifies the server distribution an instance runs.
type ServerType int

const (
	ServerTypeVanilla ServerType = iota
	ServerTypePaperMC
	ServerTypeForge
	ServerTypeNeoForge
	ServerTypeFabric
	ServerTypeSpigot
)

var serverTypes = []ServerType{
	ServerTypeVanilla,
	ServerTypePaperMC,
	ServerTypeForge,
	ServerTypeNeoForge,
	ServerTypeFabric,
	ServerTypeSpigot,
}

// AllServerTypes returns every supported distribution in declaration order.
// The returned slice is a copy and may be modified by the caller.
func AllServerTypes() []ServerType {
	out := make([]ServerType, len(serverTypes))
	copy(out, serverTypes)
	return out
}

// DisplayName returns the canonical name shown to users and stored in the registry.
// These strings are persisted and must not change.
func (t ServerType) DisplayName() string {
	switch t {
	case ServerTypeVanilla:
		return "Vanilla"
	case ServerTypePaperMC:
		return "PaperMC"
	case ServerTypeForge:
		return "Forge"
	case ServerTypeNeoForge:
		return "NeoForge"
	case ServerTypeFabric:
		return "FabricMC"
	case ServerTypeSpigot:
		return "SpigotMC"
	default:
		return fmt.Sprintf("ServerType(%d)", int(t))
	}
}

func (t ServerType) String() string {
	return t.DisplayName()
}

// Valid reports whether t is one of the declared variants.
func (t ServerType) Valid() bool {
	return t >= ServerTypeVanilla && t <= ServerTypeSpigot
}

// ParseServerType accepts a display name ("FabricMC") or a bare variant
// name ("fabric"), ignoring case.
func ParseServerType(s string) (ServerType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, t := range serverTypes {
		if name == strings.ToLower(t.DisplayName()) {
			return t, nil
		}
	}
	switch name {
	case "paper":
		return ServerTypePaperMC, nil
	case "fabric":
		return ServerTypeFabric, nil
	case "spigot":
		return ServerTypeSpigot, nil
	}
	return 0, fmt.Errorf("unknown server type %q", s)
}

// MarshalText encodes the type as its display name.
func (t ServerType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid server type %d", int(t))
	}
	return []byte(t.DisplayName()), nil
}

// UnmarshalText decodes a display or variant name.
func (t *ServerType) UnmarshalText(text []byte) error {
	parsed, err := ParseServerType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
