// Package filestore keeps identities in a single JSON file, for offline matching.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/example/facematch/internal/matcher"
)

// Record is one stored face. Timestamp is Unix milliseconds.
type Record struct {
	ID        string    `json:"id"`
	FilePath  string    `json:"file_path"`
	FaceID    string    `json:"face_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Embedding []float32 `json:"embedding"`
}

// Store is an ordered, append-only list of records backed by a file.
// It is not safe for concurrent use.
type Store struct {
	path    string
	records []Record
}

// Load reads the store at path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", path, err)
	}
	return s, nil
}

// Records returns a copy of the stored records in insertion order.
func (s *Store) Records() []Record {
	return append([]Record(nil), s.records...)
}

// Identities returns the matcher snapshot of the store.
func (s *Store) Identities() []matcher.Identity {
	identities := make([]matcher.Identity, len(s.records))
	for i, r := range s.records {
		identities[i] = matcher.Identity{
			Token:     r.ID,
			Embedding: r.Embedding,
			Metadata: map[string]string{
				"file_path": r.FilePath,
				"face_id":   r.FaceID,
				"timestamp": strconv.FormatInt(r.Timestamp, 10),
			},
		}
	}
	return identities
}

// Append adds r to the end of the store. IDs must be unique.
func (s *Store) Append(r Record) error {
	for _, existing := range s.records {
		if existing.ID == r.ID {
			return fmt.Errorf("filestore: duplicate id %s", r.ID)
		}
	}
	s.records = append(s.records, r)
	return nil
}

// Delete removes the record with id and returns it.
func (s *Store) Delete(id string) (Record, bool) {
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			return r, true
		}
	}
	return Record{}, false
}

// Save writes the store atomically.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}
