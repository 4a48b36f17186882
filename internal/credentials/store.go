package credentials

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Store persists the single token record of this installation.
type Store interface {
	// Read returns the stored record, ErrNotFound, a *ParseError or a *StorageError.
	Read() (Record, error)
	// Write replaces the stored record atomically.
	Write(rec Record) error
	// Clear backs up and removes the stored record.
	Clear() (ClearResult, error)
	// Path identifies the backing file.
	Path() string
}

// ClearResult describes what Clear did.
type ClearResult struct {
	// BackupPath is the copy made before removal. Empty when AlreadyCleared.
	BackupPath string
	// AlreadyCleared is true when there was nothing to remove.
	AlreadyCleared bool
}

// FileStore is a Store backed by one JSON file.
type FileStore struct {
	path string
	now  func() time.Time

	// mu serializes writers within this process; the rename keeps readers
	// in other processes from seeing a partial file.
	mu sync.Mutex
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithClock overrides the clock used for backup file names.
func WithClock(now func() time.Time) FileStoreOption {
	return func(s *FileStore) {
		s.now = now
	}
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the token file location.
func (s *FileStore) Path() string {
	return s.path
}

// Read loads and decodes the token file.
func (s *FileStore) Read() (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	if rec == nil {
		// "null" decodes without error but is not a record.
		return nil, &ParseError{Path: s.path, Err: errors.New("expected a JSON object")}
	}
	return rec, nil
}

// Write serializes rec to a temporary file next to the target and renames it
// into place, so the previous file is never partially overwritten.
func (s *FileStore) Write(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &StorageError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &StorageError{Op: "create", Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return &StorageError{Op: "chmod", Path: tmpName, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return &StorageError{Op: "rename", Path: s.path, Err: err}
	}
	committed = true
	return nil
}

// Clear copies the token file to <path>.backup.<unix millis> and removes the
// original. A missing file is reported as AlreadyCleared, not as an error.
func (s *FileStore) Clear() (ClearResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ClearResult{AlreadyCleared: true}, nil
		}
		return ClearResult{}, &StorageError{Op: "open", Path: s.path, Err: err}
	}
	defer src.Close()

	backupPath := s.path + ".backup." + strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := copyFile(src, backupPath); err != nil {
		return ClearResult{}, &StorageError{Op: "backup", Path: backupPath, Err: err}
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ClearResult{}, &StorageError{Op: "remove", Path: s.path, Err: err}
	}
	return ClearResult{BackupPath: backupPath}, nil
}

func copyFile(src io.Reader, dst string) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

var _ Store = (*FileStore)(nil)
