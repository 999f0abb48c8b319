package instance

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPropertiesParsesFile(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\nmax-players = 10\n\nmotd=Hello World\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, PropertiesFile), []byte(content), 0o644))

	props, err := LoadProperties(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"max-players": "10", "motd": "Hello World"}, props.Map())
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"value keeps later equals signs", "level-seed=a=b=c\n", map[string]string{"level-seed": "a=b=c"}},
		{"last duplicate wins", "pvp=true\npvp=false\n", map[string]string{"pvp": "false"}},
		{"indented comment skipped", "   # motd=nope\nmotd=yes\n", map[string]string{"motd": "yes"}},
		{"line without separator skipped", "garbage\nmotd=x\n", map[string]string{"motd": "x"}},
		{"empty value kept", "level-seed=\n", map[string]string{"level-seed": ""}},
		{"crlf line endings", "a=1\r\nb=2\r\n", map[string]string{"a": "1", "b": "2"}},
		{"empty input", "", map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse([]byte(tt.input)).Map())
		})
	}
}

func TestLoadPropertiesMissingFile(t *testing.T) {
	props, err := LoadProperties(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, props.Len())
}

func TestLoadPropertiesInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PropertiesFile), []byte{'a', '=', 0xff, 0xfe}, 0o644))

	_, err := LoadProperties(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRead))
}

func TestLoadPropertiesUnreadable(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, PropertiesFile)
	require.NoError(t, os.WriteFile(path, []byte("a=1\n"), 0o000))

	_, err := LoadProperties(dir)
	require.ErrorIs(t, err, ErrRead)

	var fileErr *FileError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, path, fileErr.Path)
}

func TestSaveSortsKeys(t *testing.T) {
	dir := t.TempDir()
	props := NewProperties()
	props.Set("b", "2")
	props.Set("a", "1")

	require.NoError(t, props.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	require.NoError(t, err)
	assert.Equal(t, "a=1\nb=2\n", string(data))
}

func TestSaveReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PropertiesFile), []byte("old=value\nzzz=1\n"), 0o644))

	props := NewProperties()
	props.Set("motd", "fresh")
	require.NoError(t, props.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	require.NoError(t, err)
	assert.Equal(t, "motd=fresh\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may be left behind")
}

func TestSaveMissingDirectory(t *testing.T) {
	props := NewProperties()
	props.Set("a", "1")

	err := props.Save(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	saved := SeedDefaults()
	saved.Set("motd", "Welcome  to the server")
	saved.Set("resource-pack", "https://example.com/pack.zip?x#y")

	require.NoError(t, saved.Save(dir))
	loaded, err := LoadProperties(dir)
	require.NoError(t, err)
	assert.Equal(t, saved.Map(), loaded.Map())
}

func TestKeysAscendingRegardlessOfInsertion(t *testing.T) {
	props := NewProperties()
	for _, k := range []string{"view-distance", "allow-flight", "motd", "level-name", "difficulty"} {
		props.Set(k, "x")
	}

	keys := props.Keys()
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i])
	}
}

func TestGetSetDelete(t *testing.T) {
	props := NewProperties()
	_, ok := props.Get("motd")
	assert.False(t, ok)

	props.Set("motd", "hi")
	v, ok := props.Get("motd")
	assert.True(t, ok)
	assert.Equal(t, "hi", v)

	props.Delete("motd")
	assert.Equal(t, 0, props.Len())
}

func TestCommonDefaults(t *testing.T) {
	defaults := CommonDefaults()
	require.Len(t, defaults, 19)
	assert.Equal(t, Property{Key: "server-port", Value: "25565"}, defaults[0])
	assert.Equal(t, Property{Key: "level-type", Value: "minecraft:normal"}, defaults[18])

	defaults[0].Value = "1"
	assert.Equal(t, "25565", CommonDefaults()[0].Value, "callers get a copy")

	seeded := SeedDefaults()
	assert.Equal(t, 19, seeded.Len())
	v, _ := seeded.Get("level-seed")
	assert.Equal(t, "", v)
}

func TestNewPropertiesHasNoDefaultFallback(t *testing.T) {
	_, ok := NewProperties().Get("max-players")
	assert.False(t, ok)
}
