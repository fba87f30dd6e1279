package blocklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "block_ips.json")
}

func TestLoadMissingFileYieldsKnownAgents(t *testing.T) {
	store := NewStore(tempStorePath(t))
	require.NoError(t, store.Load())

	data := store.All()
	assert.Len(t, data, 3)
	for _, agent := range KnownAgents {
		ranges, ok := store.Agent(agent)
		assert.True(t, ok, agent)
		assert.Empty(t, ranges)
	}
}

func TestLoadCorruptFileYieldsKnownAgents(t *testing.T) {
	path := tempStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewStore(path)
	require.NoError(t, store.Load())

	ranges, ok := store.Agent("gptbot")
	assert.True(t, ok)
	assert.Empty(t, ranges)
}

func TestLoadExistingDataset(t *testing.T) {
	path := tempStorePath(t)
	raw := `{"openai": {"gptbot": ["10.0.0.0/24"], "searchbot": []}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	store := NewStore(path)
	require.NoError(t, store.Load())

	ranges, ok := store.Agent("gptbot")
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.0/24"}, ranges)

	// Tracked agent with zero ranges is found, not NotFound.
	ranges, ok = store.Agent("searchbot")
	assert.True(t, ok)
	assert.Empty(t, ranges)

	// Absent key is the only NotFound case.
	_, ok = store.Agent("unknownbot")
	assert.False(t, ok)
}

func TestReplacePersistsAndSwaps(t *testing.T) {
	path := tempStorePath(t)
	store := NewStore(path)
	require.NoError(t, store.Load())

	next := Dataset{
		"gptbot":       {"10.1.0.0/16", "10.2.0.0/16"},
		"searchbot":    {},
		"chatgpt-user": {"192.168.0.0/24"},
	}
	require.NoError(t, store.Replace(next))

	ranges, ok := store.Agent("gptbot")
	require.True(t, ok)
	assert.Equal(t, []string{"10.1.0.0/16", "10.2.0.0/16"}, ranges)

	// Reopening from disk sees the same data under the provider key.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var file map[string]Dataset
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.Equal(t, next, file[ProviderKey])
}

func TestReplaceFailureLeavesSnapshotUntouched(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "no-such-dir", "block_ips.json"))
	require.NoError(t, store.Load())

	err := store.Replace(Dataset{"gptbot": {"10.0.0.0/8"}})
	require.Error(t, err)

	ranges, ok := store.Agent("gptbot")
	require.True(t, ok)
	assert.Empty(t, ranges)
}

func TestAllReturnsACopy(t *testing.T) {
	store := NewStore(tempStorePath(t))
	require.NoError(t, store.Load())

	data := store.All()
	data["gptbot"] = append(data["gptbot"], "10.9.9.0/24")

	ranges, _ := store.Agent("gptbot")
	assert.Empty(t, ranges, "mutating a read must not leak into the snapshot")
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()

	// Missing file: empty map, no error.
	sources, err := LoadSources(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, sources)

	path := filepath.Join(dir, "ai_urls.json")
	raw := `{"openai": {"gptbot": "https://openai.com/gptbot.json"}}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	sources, err = LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"gptbot": "https://openai.com/gptbot.json"}, sources)

	// Corrupt source config is a hard error: refresh must not run
	// against a half-read source map.
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))
	_, err = LoadSources(path)
	assert.Error(t, err)
}
