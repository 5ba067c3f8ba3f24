package grove

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"grove/internal/fsys"
)

// FileStore is a filesystem-backed BlobStore. Blobs shard by the first four
// hex nibbles of the id interpreted as a 16-bit integer split into three
// mod-256 components, giving <root>/<dir1>/<dir2>/<dir3>/<id>.json.
type FileStore struct {
	root string
	sync bool
	log  Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithSyncWrites fdatasyncs every blob before it is renamed into place,
// trading throughput for durability.
func WithSyncWrites() FileStoreOption {
	return func(s *FileStore) {
		s.sync = true
	}
}

// WithStoreLogger sets the store's logger.
func WithStoreLogger(l Logger) FileStoreOption {
	return func(s *FileStore) {
		s.log = l
	}
}

// NewFileStore opens (creating if needed) a store rooted at dir.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &FileStore{root: dir, log: DiscardLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FileStore) path(id string) (string, error) {
	if len(id) < 4 {
		return "", fmt.Errorf("malformed blob id %q", id)
	}
	v, err := strconv.ParseUint(id[:4], 16, 32)
	if err != nil {
		return "", fmt.Errorf("malformed blob id %q", id)
	}
	d1 := strconv.FormatUint(v&0xff, 10)
	d2 := strconv.FormatUint(v>>8&0xff, 10)
	d3 := strconv.FormatUint(v>>16&0xff, 10)
	return filepath.Join(s.root, d1, d2, d3, id+".json"), nil
}

func (s *FileStore) Get(id string) ([]byte, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return data, err
}

// Put writes atomically: a temp file in the final directory, an optional
// fdatasync, then a rename. Rewriting an existing id is a no-op because
// content-addressed blobs with the same id hold the same bytes.
func (s *FileStore) Put(id string, data []byte) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if ok, cerr := s.Contains(id); cerr == nil && ok {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".blob-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if s.sync {
		if err := fsys.Fdatasync(tmp); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return err
	}
	s.log.Info("wrote blob", "id", id, "bytes", len(data))
	return nil
}

func (s *FileStore) Contains(id string) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
