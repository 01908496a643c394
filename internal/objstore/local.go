package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/leofalp/conduit/core/chat"
)

// LocalStore saves files under a directory on disk. URLs use the /files/
// path prefix so the HTTP layer can serve them back.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the directory if needed and returns a disk-backed
// file store. baseURL is the public prefix files are served under.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating file store dir %q: %w", dir, err)
	}
	return &LocalStore{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(_ context.Context, fileName, _ string, data []byte) (chat.StoredFile, error) {
	// Flatten the client-supplied name so it cannot escape the store dir.
	id := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(fileName))

	if err := os.WriteFile(filepath.Join(s.dir, id), data, 0o644); err != nil {
		return chat.StoredFile{}, fmt.Errorf("writing file %q: %w", id, err)
	}

	return chat.StoredFile{
		ID:  id,
		URL: s.baseURL + "/" + id,
	}, nil
}
