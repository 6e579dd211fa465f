// Package artifacts stores generated images and audio under content-addressed names.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bossmind/videomaker/internal/video"
)

// Kinds of stored artifacts.
const (
	KindImage = "images"
	KindAudio = "audio"
)

// Store names blobs `<prefix>/<kind>/<sha256>.<ext>` and writes them to a BlobStore.
type Store struct {
	blobs  video.BlobStore
	prefix string
}

// New returns a Store. A nil blobs disables persistence.
func New(blobs video.BlobStore, prefix string) *Store {
	return &Store{blobs: blobs, prefix: strings.Trim(prefix, "/")}
}

// Enabled reports whether artifacts are persisted.
func (s *Store) Enabled() bool {
	return s != nil && s.blobs != nil
}

// Path returns the object path data would be stored under.
func (s *Store) Path(kind, ext string, data []byte) string {
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:])
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	parts := make([]string, 0, 3)
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	parts = append(parts, kind, name)
	return strings.Join(parts, "/")
}

// Save writes data and returns its URI. It returns "" without error when disabled.
func (s *Store) Save(ctx context.Context, kind, ext, contentType string, data []byte) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	path := s.Path(kind, ext, data)
	uri, err := s.blobs.PutObject(ctx, path, contentType, data)
	if err != nil {
		return "", fmt.Errorf("save %s artifact: %w", kind, err)
	}
	return uri, nil
}
