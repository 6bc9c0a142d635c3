package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var errDetectUnsupported = errors.New("filesystem detection is unsupported on this platform")

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// NetworkFilesystemError reports a database path whose nearest existing
// directory sits on a network mount, where SQLite locking is unreliable.
type NetworkFilesystemError struct {
	Path   string
	FSType string
}

func (e *NetworkFilesystemError) Error() string {
	return fmt.Sprintf("history database %q is on network filesystem %q; SQLite requires a local filesystem for reliable locking. Set storage.path to a local file or disable storage.enabled",
		e.Path, e.FSType)
}

type fsDetector func(path string) (string, error)

// CheckLocal returns a *NetworkFilesystemError when path would live on a
// network filesystem. Platforms without detection pass.
func CheckLocal(path string) error {
	return checkLocal(path, detectFilesystemType)
}

func checkLocal(path string, detect fsDetector) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}
	if path == memoryPath {
		return nil
	}

	existing, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve database path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	switch {
	case errors.Is(err, errDetectUnsupported):
		return nil
	case err != nil:
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	case isNetworkFilesystem(fsType):
		return &NetworkFilesystemError{Path: path, FSType: fsType}
	}
	return nil
}

// nearestExistingPath walks up from path until it finds something that
// exists, since the database file and its directory may not exist yet.
func nearestExistingPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	for candidate := abs; ; {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", abs)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, found := networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return found
}
