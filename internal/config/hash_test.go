package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintStableAndSensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  name: overseer\n"), 0600); err != nil {
		t.Fatal(err)
	}

	h1, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	h2, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("fingerprint not stable: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}

	if err := os.WriteFile(path, []byte("service:\n  name: other\n"), 0600); err != nil {
		t.Fatal(err)
	}
	h3, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if h3 == h1 {
		t.Fatal("fingerprint unchanged after content change")
	}
}

func TestVerifyFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("state:\n  path: ./x.db\n"), 0600); err != nil {
		t.Fatal(err)
	}

	h, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}

	if err := VerifyFingerprint(path, h); err != nil {
		t.Fatalf("VerifyFingerprint() failed on matching hash: %v", err)
	}
	if err := VerifyFingerprint(path, "deadbeef"); err == nil {
		t.Fatal("expected mismatch error")
	}
}
