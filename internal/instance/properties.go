// Package instance reads and writes the files that live inside one instance
// directory: server.properties and ops.json.
package instance

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/moby/sys/atomicwriter"
)

// PropertiesFile is the name of the properties file inside an instance directory.
const PropertiesFile = "server.properties"

// Property is one key/value pair of the defaults table.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var commonDefaults = []Property{
	{"server-port", "25565"},
	{"max-players", "20"},
	{"motd", "A Minecraft Server"},
	{"gamemode", "survival"},
	{"difficulty", "easy"},
	{"pvp", "true"},
	{"spawn-protection", "16"},
	{"online-mode", "true"},
	{"white-list", "false"},
	{"enable-command-block", "false"},
	{"spawn-monsters", "true"},
	{"spawn-animals", "true"},
	{"spawn-npcs", "true"},
	{"allow-flight", "false"},
	{"view-distance", "10"},
	{"simulation-distance", "10"},
	{"level-name", "world"},
	{"level-seed", ""},
	{"level-type", "minecraft:normal"},
}

// CommonDefaults returns the reference values used to seed a new instance.
func CommonDefaults() []Property {
	out := make([]Property, len(commonDefaults))
	copy(out, commonDefaults)
	return out
}

// Properties is the in-memory form of server.properties. It is not safe for
// concurrent use; the manager serializes access per instance.
type Properties struct {
	values map[string]string
}

// NewProperties returns an empty mapping.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// SeedDefaults returns a fresh mapping holding CommonDefaults.
func SeedDefaults() *Properties {
	p := NewProperties()
	for _, d := range commonDefaults {
		p.values[d.Key] = d.Value
	}
	return p
}

// Parse reads properties from file content. Blank lines, comment lines and
// lines without '=' are skipped; the last duplicate key wins.
func Parse(data []byte) *Properties {
	p := NewProperties()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		p.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return p
}

// LoadProperties reads <dir>/server.properties. A missing file yields an
// empty mapping.
func LoadProperties(dir string) (*Properties, error) {
	path := filepath.Join(dir, PropertiesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewProperties(), nil
		}
		return nil, readError(path, err)
	}
	if !utf8.Valid(data) {
		return nil, readError(path, errors.New("content is not valid UTF-8"))
	}
	return Parse(data), nil
}

// Encode renders the mapping as "key=value" lines in ascending key order.
func (p *Properties) Encode() []byte {
	var buf bytes.Buffer
	for _, key := range p.Keys() {
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(p.values[key])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Save replaces <dir>/server.properties. The new content is written to a
// temporary file in dir and renamed over the target, so readers never see a
// partial file.
func (p *Properties) Save(dir string) error {
	path := filepath.Join(dir, PropertiesFile)
	if err := atomicwriter.WriteFile(path, p.Encode(), 0o644); err != nil {
		return writeError(path, err)
	}
	return nil
}

// Get looks up a key.
func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set inserts or replaces a key in memory. Nothing is written until Save.
func (p *Properties) Set(key, value string) {
	p.values[key] = value
}

// Delete removes a key.
func (p *Properties) Delete(key string) {
	delete(p.values, key)
}

// Len returns the number of keys.
func (p *Properties) Len() int {
	return len(p.values)
}

// Keys returns the keys sorted ascending.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the mapping.
func (p *Properties) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}
