package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Matcher.Threshold != 0.6 {
		t.Fatalf("expected default threshold 0.6, got %v", cfg.Matcher.Threshold)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTP.Addr)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facematch.yaml")
	content := "http:\n  addr: \":9000\"\n  shutdown_timeout: 3s\nmatcher:\n  threshold: 0.7\nredis:\n  addr: cache:6379\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "override:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Fatalf("expected file addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s shutdown timeout, got %v", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.Matcher.Threshold != 0.7 {
		t.Fatalf("expected file threshold, got %v", cfg.Matcher.Threshold)
	}
	if cfg.Redis.Addr != "override:6379" {
		t.Fatalf("expected env to win, got %q", cfg.Redis.Addr)
	}
	if cfg.Extractor.Addr != "extractor:50051" {
		t.Fatalf("expected default extractor addr, got %q", cfg.Extractor.Addr)
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "1.5")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for threshold outside range")
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "lots")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for malformed integer")
	}
}
