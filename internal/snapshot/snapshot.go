// Package snapshot persists metrics snapshots as JSON files. Each write
// produces a ULID-named file (lexular order == time order) and atomically
// replaces latest.json; a directory-level flock serializes writers from
// concurrent serve processes.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/api"
)

const (
	// LatestName is the filename that always points at the newest snapshot.
	LatestName = "latest.json"

	lockName = ".mtws.lock"
)

// Store writes snapshots into a single directory.
type Store struct {
	dir  string
	lock *flock.Flock
}

// NewStore creates the directory if needed and prepares the write lock.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, lockName)),
	}, nil
}

// Dir reports the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// Write persists one snapshot under a fresh ULID name and repoints
// latest.json at it. The returned path is the ULID file.
func (s *Store) Write(p api.Payload) (string, error) {
	if err := s.lock.Lock(); err != nil {
		return "", fmt.Errorf("acquire snapshot lock: %w", err)
	}
	defer s.lock.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	name := ulid.Make().String() + ".json"
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", name, err)
	}

	// latest.json is replaced via rename so readers never see a torn file.
	tmp := filepath.Join(s.dir, LatestName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write latest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, LatestName)); err != nil {
		return "", fmt.Errorf("replace latest: %w", err)
	}

	return path, nil
}

// Prune keeps the newest keep ULID files and removes the rest. latest.json
// is never touched.
func (s *Store) Prune(keep int) error {
	if keep < 0 {
		keep = 0
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	defer s.lock.Unlock()

	names, err := listULIDFiles(s.dir)
	if err != nil {
		return err
	}
	if len(names) <= keep {
		return nil
	}
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("prune %s: %w", name, err)
		}
	}
	return nil
}

// LoadFile decodes one snapshot file.
func LoadFile(path string) (api.Payload, error) {
	var p api.Payload
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return p, nil
}

// LoadLatest decodes latest.json from dir.
func LoadLatest(dir string) (api.Payload, error) {
	return LoadFile(filepath.Join(dir, LatestName))
}

// History loads up to limit snapshots from dir, oldest first; limit <= 0
// loads everything.
func History(dir string, limit int) ([]api.Payload, error) {
	names, err := listULIDFiles(dir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(names) > limit {
		names = names[len(names)-limit:]
	}
	payloads := make([]api.Payload, 0, len(names))
	for _, name := range names {
		p, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

// listULIDFiles returns the ULID snapshot filenames in dir sorted oldest
// first.
func listULIDFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || name == LatestName {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		if _, err := ulid.ParseStrict(stem); err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
