package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// ChecksumSuffix is appended to a config path to name its checksum sidecar.
const ChecksumSuffix = ".b3"

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hashBytes(data), nil
}

func hashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ChecksumPath returns the sidecar path for configPath.
func ChecksumPath(configPath string) string {
	return configPath + ChecksumSuffix
}

// WriteChecksum hashes configPath and writes the digest to its sidecar,
// authorizing the current contents.
func WriteChecksum(configPath string) (string, error) {
	sum, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(ChecksumPath(configPath), []byte(sum+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write checksum: %w", err)
	}
	return sum, nil
}

// VerifyChecksum compares configPath against its sidecar. A missing sidecar
// means the config is not locked and passes.
func VerifyChecksum(configPath string) error {
	raw, err := os.ReadFile(ChecksumPath(configPath))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checksum: %w", err)
	}

	expected := strings.TrimSpace(string(raw))
	actual, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s\n"+
			"Hint: run 'synapse-gw config lock' after reviewing the change",
			filepath.Base(configPath), expected, actual)
	}
	return nil
}
