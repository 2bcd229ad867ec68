package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"ms-checkin/internal/apperr"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"os"
	"path/filepath"
	"sync"
)

// rename is swapped in tests to simulate a failing primary volume.
var rename = os.Rename

// FileStore keeps the whole status map in one JSON document. Writes go to a
// temp file in the target directory which is then renamed over the target,
// so readers see either the old or the new document, never a torn one.
//
// Once a write has landed in the fallback file, reads and merges start from
// the fallback until a primary write succeeds again. Across restarts the
// newer of the two files wins.
//
// The mutex serializes read-modify-write cycles inside this process only.
// Two processes sharing the file can still lose each other's updates.
type FileStore struct {
	mu             sync.Mutex
	primaryPath    string
	fallbackDir    string
	fallbackActive bool
	logger         *logger.Logger
}

func NewFileStore(primaryPath, fallbackDir string, log *logger.Logger) *FileStore {
	if fallbackDir == "" {
		fallbackDir = os.TempDir()
	}
	return &FileStore{
		primaryPath: primaryPath,
		fallbackDir: fallbackDir,
		logger:      log,
	}
}

// FallbackPath is where writes land when the primary path is not writable.
func (s *FileStore) FallbackPath() string {
	return filepath.Join(s.fallbackDir, filepath.Base(s.primaryPath))
}

func (s *FileStore) Get(ctx context.Context, ticketNumber string) (models.StatusEntry, bool, error) {
	all, err := s.All(ctx)
	if err != nil {
		return models.StatusEntry{}, false, err
	}
	e, ok := all[models.NormalizeTicketNumber(ticketNumber)]
	return e, ok, nil
}

func (s *FileStore) All(ctx context.Context) (map[string]models.StatusEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Put merges entries into the stored map and rewrites the document.
func (s *FileStore) Put(ctx context.Context, entries map[string]models.StatusEntry) (WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return WriteResult{}, err
	}
	for tn, e := range normalizeKeys(entries) {
		current[tn] = e
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return WriteResult{}, apperr.Storage("encode status file", err)
	}

	primaryErr := writeAtomic(s.primaryPath, data)
	if primaryErr == nil {
		s.fallbackActive = false
		return WriteResult{StoredIn: StoredInPrimary, FilePath: s.primaryPath}, nil
	}
	s.logger.Warn("STATUS", fmt.Sprintf("Primary status file %s not writable, using fallback: %v", s.primaryPath, primaryErr))

	fallback := s.FallbackPath()
	if err := writeAtomic(fallback, data); err != nil {
		s.logger.Error("STATUS", fmt.Sprintf("Fallback status file %s not writable: %v", fallback, err))
		return WriteResult{}, apperr.Storage("write status file", errors.Join(primaryErr, err))
	}
	s.fallbackActive = true
	return WriteResult{StoredIn: StoredInTmp, FilePath: fallback}, nil
}

// readOrder puts the fallback first when it holds the latest write.
func (s *FileStore) readOrder() []string {
	primary, fallback := s.primaryPath, s.FallbackPath()
	if s.fallbackActive {
		return []string{fallback, primary}
	}
	fi, err := os.Stat(fallback)
	if err != nil {
		return []string{primary, fallback}
	}
	if pi, err := os.Stat(primary); err == nil && !fi.ModTime().After(pi.ModTime()) {
		return []string{primary, fallback}
	}
	return []string{fallback, primary}
}

// readLocked loads the document holding the latest write, then the other
// one, then starts empty. A document that exists but does not parse is an
// error.
func (s *FileStore) readLocked() (map[string]models.StatusEntry, error) {
	for _, path := range s.readOrder() {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("STATUS", fmt.Sprintf("Cannot read %s: %v", path, err))
			}
			continue
		}
		out := map[string]models.StatusEntry{}
		if len(data) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, apperr.Storage("parse status file "+path, err)
		}
		return out, nil
	}
	return map[string]models.StatusEntry{}, nil
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp status file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing status data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp status file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp status file: %w", err)
	}

	if err := rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming status file to %s: %w", path, err)
	}

	success = true
	return nil
}
