package models

// OpEntry is one record of an instance's ops.json roster.
type OpEntry struct {
	UUID                string `json:"uuid"`
	Name                string `json:"name"`
	Level               int    `json:"level"` // 0-4
	BypassesPlayerLimit bool   `json:"bypassesPlayerLimit"`
}
