// Package state persists the last successful harvest time per strategy in
// a TOML file mapping strategy address to unix seconds.
package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"

	"github.com/fd1az/harvest-keeper/internal/apperror"
)

// FileStore is a StateStore backed by a single TOML file.
//
// It assumes one writer. Every read goes to disk so that edits made by an
// operator between cycles are honoured.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// Open validates the file at path. A missing file is an empty store; a file
// that does not parse is CodeStateCorrupt.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// LastHarvest returns the stored timestamp for id, or 0.
func (s *FileStore) LastHarvest(_ context.Context, id common.Address) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, apperror.Unavailable("harvest state", err)
	}
	_, ts := lookup(entries, id)
	return ts, nil
}

// RecordHarvest stores ts for id, keeping every other entry. A timestamp
// older than the stored one is ignored.
func (s *FileStore) RecordHarvest(_ context.Context, id common.Address, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return apperror.New(apperror.CodeStateWriteFailed,
			apperror.WithCause(err),
			apperror.WithContext(s.path))
	}

	key, prev := lookup(entries, id)
	if prev >= ts && key != "" {
		return nil
	}
	if key != "" && key != id.Hex() {
		delete(entries, key)
	}
	entries[id.Hex()] = ts

	if err := s.write(entries); err != nil {
		return apperror.New(apperror.CodeStateWriteFailed,
			apperror.WithCause(err),
			apperror.WithContext(s.path))
	}
	return nil
}

// Entries returns a copy of the whole file keyed by checksummed address.
func (s *FileStore) Entries() (map[common.Address]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[common.Address]int64, len(entries))
	for k, v := range entries {
		if common.IsHexAddress(k) {
			out[common.HexToAddress(k)] = v
		}
	}
	return out, nil
}

func (s *FileStore) load() (map[string]int64, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	entries := make(map[string]int64)
	if len(bytes.TrimSpace(raw)) == 0 {
		return entries, nil
	}
	if err := toml.Unmarshal(raw, &entries); err != nil {
		return nil, apperror.New(apperror.CodeStateCorrupt,
			apperror.WithCause(err),
			apperror.WithContext(s.path))
	}
	return entries, nil
}

// write replaces the file atomically via a sibling temp file.
func (s *FileStore) write(entries map[string]int64) error {
	raw, err := toml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// lookup matches addresses case-insensitively so hand-edited lowercase keys
// are found.
func lookup(entries map[string]int64, id common.Address) (string, int64) {
	if ts, ok := entries[id.Hex()]; ok {
		return id.Hex(), ts
	}
	for k, ts := range entries {
		if strings.EqualFold(k, id.Hex()) {
			return k, ts
		}
	}
	return "", 0
}
