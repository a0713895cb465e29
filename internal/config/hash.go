package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// Fingerprint computes the BLAKE3 hash of the config file at path.
// A running daemon exposes this via /healthz so operators can tell
// whether the on-disk config still matches what the daemon loaded.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read config: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFingerprint verifies the config file against an expected BLAKE3 hash.
func VerifyFingerprint(path, expected string) error {
	actual, err := Fingerprint(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("config fingerprint mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}
