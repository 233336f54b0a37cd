package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/facematch/internal/filestore"
	"github.com/example/facematch/internal/matcher"
)

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRunMatchRegistersThenMatches(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "identities.json")
	queryPath := filepath.Join(dir, "query.json")
	writeJSON(t, queryPath, map[string]interface{}{"embedding": []float32{0.2, 0.4, 0.9}, "file_path": "/p/q.jpg"})

	m := matcher.New(matcher.WithTokenGenerator(func() string { return "first" }))
	opts := matchOptions{storePath: storePath, queryPath: queryPath, register: true}

	var out bytes.Buffer
	if err := runMatch(opts, m, &out); err != nil {
		t.Fatalf("first run: %v", err)
	}
	var first matcher.Result
	if err := json.Unmarshal(out.Bytes(), &first); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if first.Decision != matcher.DecisionNewIdentity || first.Token != "first" {
		t.Fatalf("unexpected first result %+v", first)
	}

	store, err := filestore.Load(storePath)
	if err != nil {
		t.Fatalf("load store: %v", err)
	}
	if records := store.Records(); len(records) != 1 || records[0].ID != "first" || records[0].FilePath != "/p/q.jpg" {
		t.Fatalf("unexpected store contents %+v", records)
	}

	out.Reset()
	if err := runMatch(opts, m, &out); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var second matcher.Result
	if err := json.Unmarshal(out.Bytes(), &second); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if second.Decision != matcher.DecisionMatched || second.Token != "first" {
		t.Fatalf("unexpected second result %+v", second)
	}
}

func TestRunMatchWithoutRegisterLeavesStore(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "identities.json")
	queryPath := filepath.Join(dir, "query.json")
	writeJSON(t, queryPath, map[string]interface{}{"embedding": []float32{1, 0}})

	var out bytes.Buffer
	if err := runMatch(matchOptions{storePath: storePath, queryPath: queryPath}, matcher.New(), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Fatalf("expected store file to stay absent, got %v", err)
	}
}

func TestRunMatchEmptyQuery(t *testing.T) {
	dir := t.TempDir()
	queryPath := filepath.Join(dir, "query.json")
	writeJSON(t, queryPath, map[string]interface{}{"embedding": []float32{}})

	err := runMatch(matchOptions{storePath: filepath.Join(dir, "s.json"), queryPath: queryPath}, matcher.New(), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for empty query")
	}
}
