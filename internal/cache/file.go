package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists entries on the filesystem.
//
// Layout:
//
//	{Dir}/
//	  {digest[0:2]}/
//	    {digest}.blob
//	    {digest}.json   (key, origin, created_at)
//
// The digest is sha-256 of the key, so arbitrary key strings map to safe
// file names. First-writer-wins is enforced with os.Link from a temp file:
// linking to an existing name fails atomically, so the loser's write is a
// no-op and readers only ever observe the first writer's complete blob.
type FileStore struct {
	// Dir is the root directory for cache storage.
	Dir string
}

// fileMeta is the sidecar metadata written next to each blob.
type fileMeta struct {
	Key       string    `json:"key"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFileStore creates a filesystem-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Get returns the entry for key, or (nil, nil) on a miss. I/O failures other
// than absence are wrapped with ErrUnavailable.
func (s *FileStore) Get(_ context.Context, key string) (*Entry, error) {
	blobPath, metaPath := s.entryPaths(key)

	blob, err := os.ReadFile(blobPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading blob: %v", ErrUnavailable, err)
	}

	entry := &Entry{Key: key, Blob: blob}
	if data, err := os.ReadFile(metaPath); err == nil {
		var meta fileMeta
		if err := json.Unmarshal(data, &meta); err == nil {
			entry.Origin = meta.Origin
			entry.CreatedAt = meta.CreatedAt
		}
	}
	return entry, nil
}

// Put writes the entry unless the key already exists.
func (s *FileStore) Put(_ context.Context, entry *Entry) (bool, error) {
	blobPath, metaPath := s.entryPaths(entry.Key)

	if err := os.MkdirAll(filepath.Dir(blobPath), 0o755); err != nil {
		return false, fmt.Errorf("%w: creating cache directory: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(blobPath), ".tmp-*")
	if err != nil {
		return false, fmt.Errorf("%w: creating temp blob: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(entry.Blob); err != nil {
		tmp.Close()
		return false, fmt.Errorf("%w: writing blob: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("%w: closing blob: %v", ErrUnavailable, err)
	}

	// The atomic first-writer-wins point: only one racing writer can create
	// the final name.
	if err := os.Link(tmpName, blobPath); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: committing blob: %v", ErrUnavailable, err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	meta := fileMeta{Key: entry.Key, Origin: entry.Origin, CreatedAt: createdAt}
	if data, err := json.Marshal(meta); err == nil {
		// Metadata is advisory; a failure here does not undo the write.
		_ = os.WriteFile(metaPath, data, 0o644)
	}
	return true, nil
}

func (s *FileStore) entryPaths(key string) (blobPath, metaPath string) {
	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])
	dir := filepath.Join(s.Dir, digest[:2])
	return filepath.Join(dir, digest+".blob"), filepath.Join(dir, digest+".json")
}
