package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store archives finalized manifest sets keyed by session.
type Store interface {
	// Save writes the rendered manifests and returns their location.
	Save(ctx context.Context, sessionID string, data []byte) (string, error)
}

// DirStore writes manifests under a local directory.
type DirStore struct {
	Root string
}

func (s *DirStore) Save(_ context.Context, sessionID string, data []byte) (string, error) {
	if s.Root == "" {
		return "", fmt.Errorf("manifest: dir store root is empty")
	}
	dir := filepath.Join(s.Root, "sessions", sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("manifest: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "manifests.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return path, nil
}
