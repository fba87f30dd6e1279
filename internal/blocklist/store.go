package blocklist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ProviderKey is the fixed top-level key of the persisted dataset file.
const ProviderKey = "openai"

// KnownAgents are the crawling agents tracked by the dataset. An absent
// or corrupt data file loads as these three agents with empty lists.
var KnownAgents = []string{"chatgpt-user", "gptbot", "searchbot"}

// Dataset maps an agent name to its CIDR address ranges.
type Dataset map[string][]string

// Clone returns a deep copy; callers may mutate it freely.
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	for agent, ranges := range d {
		cp := make([]string, len(ranges))
		copy(cp, ranges)
		out[agent] = cp
	}
	return out
}

func emptyDataset() Dataset {
	d := make(Dataset, len(KnownAgents))
	for _, agent := range KnownAgents {
		d[agent] = []string{}
	}
	return d
}

// Store holds the last successfully merged dataset snapshot. Reads are
// served from memory and never block on disk or network; Replace is the
// only mutation path and persists before swapping the snapshot.
type Store struct {
	path string

	mu   sync.RWMutex
	data Dataset
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		data: emptyDataset(),
	}
}

// Load reads the persisted dataset. A missing or unreadable file is not
// an error: the store starts with the known agents mapped to empty
// lists and the next refresh repopulates it.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var file map[string]Dataset
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil
	}

	data, ok := file[ProviderKey]
	if !ok || data == nil {
		return nil
	}

	s.mu.Lock()
	s.data = data.Clone()
	s.mu.Unlock()
	return nil
}

// All returns a copy of the current snapshot.
func (s *Store) All() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Agent returns the ranges for one agent. ok is false only when the
// agent key is absent; a tracked agent with zero known ranges returns
// an empty list.
func (s *Store) Agent(name string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranges, ok := s.data[name]
	if !ok {
		return nil, false
	}

	cp := make([]string, len(ranges))
	copy(cp, ranges)
	return cp, true
}

// Replace persists the dataset and swaps the in-memory snapshot. The
// file write goes through a temp file and rename so concurrent readers
// of the file never observe a partial write; a persist failure leaves
// both disk and memory unchanged.
func (s *Store) Replace(data Dataset) error {
	raw, err := json.MarshalIndent(map[string]Dataset{ProviderKey: data}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dataset file: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write dataset: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace dataset file: %w", err)
	}

	s.mu.Lock()
	s.data = data.Clone()
	s.mu.Unlock()
	return nil
}
