package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/docchat-go/internal/domain/entities"
	"github.com/0xcro3dile/docchat-go/internal/domain/ports"
)

const indexFile = "index.db"

// SQLiteIndex is the durable vector index. Vectors and chunk metadata
// persist together in one SQLite file so a reload reconstructs an identical
// queryable state. A rebuild writes a fresh file next to the current one
// and renames it over, so a crash mid-ingestion leaves the previous index
// intact.
type SQLiteIndex struct {
	storePath string
	snap      atomic.Pointer[snapshot]
	mu        sync.Mutex // serializes Replace and Load
}

// NewSQLiteIndex creates an index persisted under storePath.
func NewSQLiteIndex(storePath string) *SQLiteIndex {
	s := &SQLiteIndex{storePath: storePath}
	s.snap.Store(&snapshot{})
	return s
}

func (s *SQLiteIndex) path() string {
	return filepath.Join(s.storePath, indexFile)
}

// Replace persists a snapshot built from chunks (write-then-swap) and then
// makes it visible to searches. In-flight searches complete against the old
// snapshot.
func (s *SQLiteIndex) Replace(ctx context.Context, chunks []entities.Chunk) error {
	snap, err := newSnapshot(chunks)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.storePath, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp := s.path() + ".tmp"
	os.Remove(tmp)
	if err := writeIndexFile(ctx, tmp, chunks); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing index: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("swapping index: %w", err)
	}

	s.snap.Store(snap)
	return nil
}

// Search returns at most k hits ordered by ascending distance.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, k int) ([]ports.IndexHit, error) {
	return s.snap.Load().search(vector, k)
}

// Load restores the persisted snapshot. A missing file leaves the index
// empty; an unreadable or corrupted file is a RetrievalError.
func (s *SQLiteIndex) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path()); errors.Is(err, os.ErrNotExist) {
		s.snap.Store(&snapshot{})
		return nil
	}

	chunks, err := readIndexFile(ctx, s.path())
	if err != nil {
		return &entities.RetrievalError{Err: err}
	}
	snap, err := newSnapshot(chunks)
	if err != nil {
		return &entities.RetrievalError{Err: err}
	}
	s.snap.Store(snap)
	return nil
}

// Len reports the number of indexed vectors.
func (s *SQLiteIndex) Len() int {
	return len(s.snap.Load().chunks)
}

func writeIndexFile(ctx context.Context, path string, chunks []entities.Chunk) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	schema := `
	CREATE TABLE chunks (
		seq INTEGER PRIMARY KEY,
		filename TEXT NOT NULL,
		start_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL
	);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (seq, filename, start_index, content, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embedding, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.Seq, chunk.Filename, chunk.StartIndex, chunk.Text, embedding,
		); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", chunk.Seq, err)
		}
	}
	return tx.Commit()
}

func readIndexFile(ctx context.Context, path string) ([]entities.Chunk, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT seq, filename, start_index, content, embedding
		FROM chunks ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []entities.Chunk
	for rows.Next() {
		var chunk entities.Chunk
		var embedding []byte
		if err := rows.Scan(&chunk.Seq, &chunk.Filename, &chunk.StartIndex, &chunk.Text, &embedding); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal(embedding, &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("decoding embedding for chunk %d: %w", chunk.Seq, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	return chunks, nil
}
