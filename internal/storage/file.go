package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logx "vexbot/pkg/logx"
)

// fileStore keeps every document in memory and rewrites a JSON snapshot
// after each mutation. Intended for development and small deployments.
//
// Files:
//   - <path>      (current snapshot)
//   - <path>.tmp  (written then renamed over the snapshot)
type fileStore struct {
	*Memory
	path string
	log  logx.Logger
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	var d Dump
	if err := loadDump(path, &d); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	s := &fileStore{Memory: NewMemory(d), path: path, log: log}
	s.Memory.onWrite = s.persist
	log.Debug("file store loaded",
		logx.String("path", path),
		logx.Int("teams", len(d.Teams)),
		logx.Int("events", len(d.Events)),
		logx.Int("matches", len(d.Matches)),
	)
	return s, nil
}

func loadDump(path string, out *Dump) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(out)
}

// persist runs with the memory lock held.
func (s *fileStore) persist(d *Dump) error {
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Warn("snapshot rename failed", logx.String("path", s.path), logx.Err(err))
		return err
	}
	return nil
}
