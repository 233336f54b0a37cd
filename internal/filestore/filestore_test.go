package filestore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Records()) != 0 {
		t.Fatalf("expected empty store, got %d records", len(s.Records()))
	}
}

func TestAppendSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := s.Append(Record{ID: "a", FilePath: "/p/a.jpg", Timestamp: 1, Embedding: []float32{1, 0}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(Record{ID: "b", FilePath: "/p/b.jpg", Timestamp: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(Record{ID: "a"}); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	identities := reloaded.Identities()
	if len(identities) != 2 || identities[0].Token != "a" || identities[1].Token != "b" {
		t.Fatalf("unexpected identities %+v", identities)
	}
	if len(identities[0].Embedding) != 2 || len(identities[1].Embedding) != 0 {
		t.Fatalf("unexpected embeddings %+v", identities)
	}
	if identities[0].Metadata["file_path"] != "/p/a.jpg" || identities[1].Metadata["timestamp"] != "2" {
		t.Fatalf("unexpected metadata %+v", identities)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be cleaned up, found %d entries", len(entries))
	}
}

func TestDelete(t *testing.T) {
	s := &Store{}
	_ = s.Append(Record{ID: "a"})
	_ = s.Append(Record{ID: "b"})
	_ = s.Append(Record{ID: "c"})

	if _, ok := s.Delete("missing"); ok {
		t.Fatal("expected missing delete to report false")
	}
	deleted, ok := s.Delete("b")
	if !ok || deleted.ID != "b" {
		t.Fatalf("unexpected delete result %+v %v", deleted, ok)
	}
	records := s.Records()
	if len(records) != 2 || records[0].ID != "a" || records[1].ID != "c" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
