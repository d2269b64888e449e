// Package stamp records content hashes of generated outputs so unchanged
// outputs are not rewritten. Leaving an output untouched keeps its mtime
// stable, which keeps Gradle's up-to-date checks effective.
package stamp

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/brizzbuzz/buildsecrets/internal/errors"
)

// Entry is the stored hash of one output file.
type Entry struct {
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	WrittenAt time.Time `json:"writtenAt"`
}

// Store manages output hashes for change detection.
type Store struct {
	Entries  map[string]Entry `json:"entries"`
	filePath string
}

// Open creates or loads a store from disk. A missing file yields an empty
// store.
func Open(filePath string) (*Store, error) {
	s := &Store{
		Entries:  make(map[string]Entry),
		filePath: filePath,
	}

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, errors.FileOperationError(
			"Loading stamp store",
			filePath,
			"Failed to read stamp file",
			err,
		)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, errors.ConfigError(
			"Parsing stamp store",
			"Invalid JSON format in stamp file; delete it to start over",
			err,
		)
	}
	if s.Entries == nil {
		s.Entries = make(map[string]Entry)
	}
	return s, nil
}

// Changed reports whether writing data to path would change anything:
// either the recorded hash differs or the file on disk no longer matches.
func (s *Store) Changed(path string, data []byte) (bool, error) {
	want := hashBytes(data)

	prev, ok := s.Entries[path]
	if !ok || prev.Hash != want {
		return true, nil
	}

	onDisk, err := hashFile(path)
	if os.IsNotExist(err) {
		return true, nil
	} else if err != nil {
		return false, errors.FileOperationError(
			"Hashing output",
			path,
			"Failed to read output for change detection",
			err,
		)
	}
	return onDisk != want, nil
}

// Record stores the hash of data as the current content of path.
func (s *Store) Record(path string, data []byte) {
	s.Entries[path] = Entry{
		Path:      path,
		Hash:      hashBytes(data),
		WrittenAt: time.Now().UTC(),
	}
}

// Save writes the store to disk.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.ConfigError(
			"Serializing stamp store",
			"Failed to marshal stamp data",
			err,
		)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return errors.FileOperationError(
			"Creating stamp directory",
			filepath.Dir(s.filePath),
			"Failed to create directory for stamp file",
			err,
		)
	}

	if err := renameio.WriteFile(s.filePath, data, 0644); err != nil {
		return errors.FileOperationError(
			"Saving stamp store",
			s.filePath,
			"Failed to write stamp file",
			err,
		)
	}
	return nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
