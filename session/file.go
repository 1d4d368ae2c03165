package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/etnz/loandash"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sessionFile = "session.json"

// DefaultPath returns the session file location in the user's configuration
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate the user configuration directory: %w", err)
	}
	return filepath.Join(dir, "ldash", sessionFile), nil
}

// FileStore is a Store backed by a JSON file, shared by every ldash process
// of the user.
//
// Set writes a temporary file then renames it over the session file and Clear
// removes the file, so another process reads either the whole old session or
// nothing.
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store persisted at path. A nil logger is replaced by
// a no-op one.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger.Named("session")}
}

// Path returns the session file path.
func (f *FileStore) Path() string { return f.path }

// Get reads the session file. A missing or unreadable file is the empty
// session.
func (f *FileStore) Get() loandash.Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return loandash.Session{}
	}
	if err != nil {
		f.logger.Warn("cannot read session file", zap.String("path", f.path), zap.Error(err))
		return loandash.Session{}
	}
	var s loandash.Session
	if err := json.Unmarshal(data, &s); err != nil {
		f.logger.Warn("corrupt session file ignored", zap.String("path", f.path), zap.Error(err))
		return loandash.Session{}
	}
	return s
}

func (f *FileStore) Set(token, userID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(loandash.Session{Token: token, UserID: userID, Email: email}, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode session: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, sessionFile+".*")
	if err != nil {
		return fmt.Errorf("cannot create session file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot protect session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("cannot install session file: %w", err)
	}
	f.logger.Debug("session saved", zap.String("path", f.path), zap.String("email", email))
	return nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot remove session file: %w", err)
	}
	f.logger.Debug("session cleared", zap.String("path", f.path))
	return nil
}
