package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RepairReport lists what a repair pass changed.
type RepairReport struct {
	Dropped []string `json:"dropped,omitempty"`
	Adopted []string `json:"adopted,omitempty"`
}

// Changed reports whether the pass modified the index.
func (r *RepairReport) Changed() bool {
	return len(r.Dropped) > 0 || len(r.Adopted) > 0
}

// Repair makes the index match the project files on disk: entries whose
// file is missing or unreadable are dropped, and valid project files that
// are not indexed are adopted. Only a failure to persist the repaired index
// is returned.
func (s *FileStore) Repair(ctx context.Context) (*RepairReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make(map[string]string, len(s.index))
	for id, rel := range s.index {
		entries[id] = s.resolve(rel)
	}
	s.mu.RUnlock()

	report := &RepairReport{}
	stale := make(map[string]staleEntry)
	for id, path := range entries {
		if _, err := readRecord(path, id); err != nil {
			var se *staleError
			if errors.As(err, &se) {
				stale[id] = staleEntry{path: path, reason: se.reason}
				continue
			}
			s.log.Warn("repair: cannot read record, keeping entry",
				zap.String("project_id", id), zap.Error(err))
		}
	}

	adopt := make(map[string]string)
	files, err := os.ReadDir(s.projectsDir())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, project.StoreIO("listing project files", "", err)
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, indexed := entries[id]; indexed || !idPattern.MatchString(id) {
			continue
		}
		if _, err := readRecord(filepath.Join(s.projectsDir(), name), id); err != nil {
			s.log.Warn("repair: ignoring unreadable project file",
				zap.String("file", name), zap.Error(err))
			continue
		}
		adopt[id] = relRecordPath(id)
		report.Adopted = append(report.Adopted, id)
	}

	report.Dropped = s.dropEntries(stale)

	if len(adopt) > 0 {
		s.mu.Lock()
		for id, rel := range adopt {
			s.index[id] = rel
		}
		err := s.persistIndexLocked()
		s.mu.Unlock()
		if err != nil {
			return report, project.StoreIO("persisting index", "", err)
		}
		for id := range adopt {
			s.log.Info("adopted unindexed project file", zap.String("project_id", id))
			s.emit(Event{Kind: EventIndexRepaired, ProjectID: id, Detail: "adopted"})
		}
	} else if len(stale) == 0 {
		// Make sure an index file exists even for an empty store.
		if _, err := os.Stat(s.indexPath()); errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			err := s.persistIndexLocked()
			s.mu.Unlock()
			if err != nil {
				return report, project.StoreIO("persisting index", "", err)
			}
		}
	}

	return report, nil
}

// Watch runs Repair whenever a project file is removed or renamed out of
// band, and every interval when interval > 0. It blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, interval time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.projectsDir()); err != nil {
		return err
	}

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	repair := func(trigger string) {
		report, err := s.Repair(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("repair failed", zap.String("trigger", trigger), zap.Error(err))
			}
			return
		}
		if report.Changed() {
			s.log.Info("index repaired",
				zap.String("trigger", trigger),
				zap.Strings("dropped", report.Dropped),
				zap.Strings("adopted", report.Adopted))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			repair("interval")
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".json" || strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				repair("fsnotify")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("store watcher error", zap.Error(err))
		}
	}
}
