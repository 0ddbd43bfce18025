package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// resumeStore persists per-chunk translations so an interrupted episode can
// resume without re-translating completed chunks. Entries are keyed by the
// original source URL and dropped once the episode's output file is written.
type resumeStore struct {
	path  string
	state resumeState
}

type resumeState struct {
	Version   int                           `json:"version"`
	UpdatedAt string                        `json:"updated_at"`
	Sources   map[string]*resumeSourceState `json:"sources"`
}

type resumeSourceState struct {
	FinalURL   string                      `json:"final_url,omitempty"`
	Title      string                      `json:"title,omitempty"`
	ChunkCount int                         `json:"chunk_count"`
	Completed  bool                        `json:"completed"`
	Chunks     map[string]resumeChunkState `json:"chunks,omitempty"`
}

type resumeChunkState struct {
	Source     string `json:"source"`
	Translated string `json:"translated"`
}

func loadResumeStore(path string) (*resumeStore, error) {
	store := &resumeStore{
		path: path,
		state: resumeState{
			Version: 1,
			Sources: map[string]*resumeSourceState{},
		},
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read resume state file %s: %w", path, err)
	}

	if strings.TrimSpace(string(content)) == "" {
		return store, nil
	}

	if err := json.Unmarshal(content, &store.state); err != nil {
		return nil, fmt.Errorf("parse resume state file %s: %w", path, err)
	}
	if store.state.Sources == nil {
		store.state.Sources = map[string]*resumeSourceState{}
	}
	if store.state.Version == 0 {
		store.state.Version = 1
	}

	return store, nil
}

func (s *resumeStore) prepareSource(source string, finalURL string, title string, chunkCount int) error {
	entry := s.ensureSourceEntry(source)
	if entry.ChunkCount != chunkCount {
		entry.Chunks = map[string]resumeChunkState{}
	}

	entry.FinalURL = finalURL
	entry.Title = title
	entry.ChunkCount = chunkCount
	entry.Completed = false

	return s.persist()
}

func (s *resumeStore) loadChunk(source string, index int, sourceChunk string, chunkCount int) (string, bool) {
	entry, ok := s.state.Sources[source]
	if !ok || entry == nil {
		return "", false
	}
	if entry.ChunkCount != chunkCount {
		return "", false
	}

	saved, ok := entry.Chunks[strconv.Itoa(index)]
	if !ok {
		return "", false
	}
	if saved.Source != sourceChunk || saved.Translated == "" {
		return "", false
	}

	return saved.Translated, true
}

func (s *resumeStore) saveChunk(source string, finalURL string, title string, chunkCount int, index int, sourceChunk string, translated string) error {
	entry := s.ensureSourceEntry(source)
	if entry.ChunkCount != chunkCount {
		entry.Chunks = map[string]resumeChunkState{}
	}

	entry.FinalURL = finalURL
	entry.Title = title
	entry.ChunkCount = chunkCount
	entry.Completed = false
	if entry.Chunks == nil {
		entry.Chunks = map[string]resumeChunkState{}
	}
	entry.Chunks[strconv.Itoa(index)] = resumeChunkState{
		Source:     sourceChunk,
		Translated: translated,
	}

	return s.persist()
}

func (s *resumeStore) markSourceComplete(source string) error {
	delete(s.state.Sources, source)
	return s.persist()
}

func (s *resumeStore) ensureSourceEntry(source string) *resumeSourceState {
	entry, ok := s.state.Sources[source]
	if ok && entry != nil {
		if entry.Chunks == nil {
			entry.Chunks = map[string]resumeChunkState{}
		}
		return entry
	}

	entry = &resumeSourceState{
		Chunks: map[string]resumeChunkState{},
	}
	s.state.Sources[source] = entry
	return entry
}

func (s *resumeStore) persist() error {
	if len(s.state.Sources) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove resume state file %s: %w", s.path, err)
		}
		return nil
	}

	s.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal resume state: %w", err)
	}
	payload = append(payload, '\n')

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("write resume state temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace resume state file %s: %w", s.path, err)
	}
	return nil
}
