package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

const indexVersion = 1

// indexFile is the on-disk shape of index.json.
type indexFile struct {
	Version  int               `json:"version"`
	Projects map[string]string `json:"projects"`
}

// loadIndex reads index.json into s.index. A missing index starts empty;
// a corrupt one is logged and also starts empty, leaving Repair to adopt
// the project files that are still on disk.
func (s *FileStore) loadIndex() error {
	s.index = make(map[string]string)

	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading index: %w", err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn("index is corrupt, rebuilding from project files",
			zap.String("path", s.indexPath()), zap.Error(err))
		return nil
	}
	for id, rel := range f.Projects {
		s.index[id] = rel
	}
	return nil
}

// persistIndexLocked writes s.index to disk. Callers hold s.mu.
func (s *FileStore) persistIndexLocked() error {
	f := indexFile{Version: indexVersion, Projects: s.index}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}
	if err := writeFileAtomic(s.indexPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

// lookup resolves an id to the absolute path of its record file.
func (s *FileStore) lookup(id string) (string, bool) {
	s.mu.RLock()
	rel, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	return s.resolve(rel), true
}

func (s *FileStore) resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.dir, rel)
}

// staleEntry is an index entry found unreadable, with the path it
// resolved to when it was read.
type staleEntry struct {
	path   string
	reason string
}

// dropEntries removes stale ids from the index and persists it once,
// returning the ids it dropped. An entry is kept when it no longer points
// at the recorded path or its file has become readable since, which is
// what a concurrent Save leaves behind. Repair is best-effort: persistence
// failures are logged, not returned.
func (s *FileStore) dropEntries(stale map[string]staleEntry) []string {
	if len(stale) == 0 {
		return nil
	}

	s.mu.Lock()
	dropped := make([]string, 0, len(stale))
	for id, e := range stale {
		rel, ok := s.index[id]
		if !ok || s.resolve(rel) != e.path {
			continue
		}
		if _, err := readRecord(e.path, id); err == nil {
			continue
		}
		delete(s.index, id)
		dropped = append(dropped, id)
	}
	var err error
	if len(dropped) > 0 {
		err = s.persistIndexLocked()
	}
	s.mu.Unlock()

	sort.Strings(dropped)
	for _, id := range dropped {
		reason := stale[id].reason
		s.log.Warn("dropped stale index entry",
			zap.String("project_id", id), zap.String("reason", reason))
		s.emit(Event{Kind: EventIndexRepaired, ProjectID: id, Detail: "dropped: " + reason})
	}
	if err != nil {
		s.log.Error("persisting repaired index", zap.Error(err))
	}
	return dropped
}
