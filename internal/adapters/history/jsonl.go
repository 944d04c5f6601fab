// Package history persists the interaction log as newline-delimited JSON:
// one entry per line, append-only except for clear and delete, which
// rewrite the file.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
)

// JSONLStore implements ports.HistoryStore over a single JSONL file.
// All operations share one mutex, so each entry is written as an atomic
// unit and delete positions stay stable for the duration of a call.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates a store backed by the given file path.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Append writes one entry as a single line.
func (s *JSONLStore) Append(ctx context.Context, entry entities.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing history entry: %w", err)
	}
	return nil
}

// Recent returns the last limit entries, oldest first. Unparseable lines
// are skipped rather than failing the read.
func (s *JSONLStore) Recent(ctx context.Context, limit int) ([]entities.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Clear truncates the log and reports how many entries were removed.
func (s *JSONLStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := os.WriteFile(s.path, nil, 0o644); err != nil {
		return 0, fmt.Errorf("truncating history file: %w", err)
	}
	return len(entries), nil
}

// Delete removes the entry at the given 0-based position, rewriting the
// file via a temp file and rename. An out-of-range position is a
// NotFoundError and leaves the log unchanged.
func (s *JSONLStore) Delete(ctx context.Context, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return err
	}
	if position < 0 || position >= len(entries) {
		return &entities.NotFoundError{Position: position}
	}

	var sb strings.Builder
	for i, entry := range entries {
		if i == position {
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encoding history entry: %w", err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rewriting history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swapping history file: %w", err)
	}
	return nil
}

// readAll loads every parseable entry. Caller holds the mutex.
func (s *JSONLStore) readAll() ([]entities.HistoryEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history file: %w", err)
	}

	var entries []entities.HistoryEntry
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry entities.HistoryEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
