package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// backupStampLayout is filesystem-safe and sorts lexically in time order.
const backupStampLayout = "20060102T150405.000000000Z"

// BackupInfo describes one backup snapshot.
type BackupInfo struct {
	ProjectID string    `json:"project_id"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path"`
	ModTime   time.Time `json:"mod_time"`
	Size      int64     `json:"size"`
}

func backupName(id, stamp string) string {
	return id + "_" + stamp + ".json"
}

// CreateBackup snapshots the current record file of id and applies
// retention. Failures are logged and emitted as EventBackupFailed before
// being returned; Save and Delete ignore them.
func (s *FileStore) CreateBackup(ctx context.Context, id string) (*BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !idPattern.MatchString(id) {
		return nil, project.ProjectNotFound(id)
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	info, err := s.createBackupLocked(id)
	if err != nil {
		s.backupFailed(id, err)
		return nil, err
	}
	return info, nil
}

// createBackupLocked does the work of CreateBackup. Callers hold the id lock.
func (s *FileStore) createBackupLocked(id string) (*BackupInfo, error) {
	data, err := os.ReadFile(s.RecordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, project.ProjectNotFound(id)
		}
		return nil, project.StoreIO("reading record for backup", id, err)
	}

	at := s.now().UTC()
	path := filepath.Join(s.backupsDir(), backupName(id, at.Format(backupStampLayout)))
	// Two backups inside one clock tick get distinct, still ordered names.
	for {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, project.StoreIO("checking backup name", id, err)
		}
		at = at.Add(time.Nanosecond)
		path = filepath.Join(s.backupsDir(), backupName(id, at.Format(backupStampLayout)))
	}

	if err := writeFileAtomic(path, data, 0o444); err != nil {
		return nil, project.StoreIO("writing backup", id, err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		s.log.Warn("setting backup mtime", zap.String("path", path), zap.Error(err))
	}

	info := &BackupInfo{
		ProjectID: id,
		Timestamp: at.Format(backupStampLayout),
		Path:      path,
		ModTime:   at,
		Size:      int64(len(data)),
	}
	s.log.Debug("backup created", zap.String("project_id", id), zap.String("path", path))
	s.emit(Event{Kind: EventBackupCreated, ProjectID: id, Path: path, Detail: info.Timestamp})

	if _, err := s.cleanupOldBackups(id); err != nil {
		s.log.Warn("pruning old backups", zap.String("project_id", id), zap.Error(err))
		s.emit(Event{Kind: EventPruneFailed, ProjectID: id, Err: err})
	}
	return info, nil
}

func (s *FileStore) backupFailed(id string, err error) {
	s.log.Warn("backup failed, continuing", zap.String("project_id", id), zap.Error(err))
	s.emit(Event{Kind: EventBackupFailed, ProjectID: id, Err: err})
}

// CleanupOldBackups deletes the oldest backups of id by modification time
// so that at most the retention count remain. It returns how many were
// removed.
func (s *FileStore) CleanupOldBackups(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.cleanupOldBackups(id)
	if err != nil {
		s.log.Warn("pruning old backups", zap.String("project_id", id), zap.Error(err))
		s.emit(Event{Kind: EventPruneFailed, ProjectID: id, Err: err})
	}
	return n, err
}

func (s *FileStore) cleanupOldBackups(id string) (int, error) {
	backups, err := s.listBackups(id)
	if err != nil {
		return 0, err
	}
	if len(backups) <= s.retention {
		return 0, nil
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].Timestamp > backups[j].Timestamp
	})

	removed := 0
	var errs []error
	for _, b := range backups[s.retention:] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.emit(Event{Kind: EventBackupsPruned, ProjectID: id, Detail: fmt.Sprintf("removed %d", removed)})
	}
	return removed, errors.Join(errs...)
}

// ListBackups returns the backups of id, newest first.
func (s *FileStore) ListBackups(ctx context.Context, id string) ([]BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backups, err := s.listBackups(id)
	if err != nil {
		return nil, project.StoreIO("listing backups", id, err)
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})
	return backups, nil
}

// listBackups globs backups/<id>_*.json and keeps names whose suffix is a
// valid stamp, so id "a" never picks up the backups of id "a_b".
func (s *FileStore) listBackups(id string) ([]BackupInfo, error) {
	if !idPattern.MatchString(id) {
		return nil, nil
	}
	dir := s.backupsDir()
	matches, err := doublestar.Glob(os.DirFS(dir), id+"_*.json")
	if err != nil {
		return nil, fmt.Errorf("globbing backups: %w", err)
	}

	prefix := id + "_"
	backups := make([]BackupInfo, 0, len(matches))
	for _, name := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		if _, err := time.Parse(backupStampLayout, stamp); err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		fi, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		backups = append(backups, BackupInfo{
			ProjectID: id,
			Timestamp: stamp,
			Path:      path,
			ModTime:   fi.ModTime(),
			Size:      fi.Size(),
		})
	}
	return backups, nil
}

// Restore loads a backup of id (the exact timestamp, or the latest when
// timestamp is empty) and saves it as the current record. Because it is a
// normal Save, the pre-restore state is itself backed up first.
func (s *FileStore) Restore(ctx context.Context, id, timestamp string) (*project.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backups, err := s.listBackups(id)
	if err != nil {
		return nil, project.RestoreFailed(id, "listing backups", err)
	}
	if len(backups) == 0 {
		return nil, project.RestoreFailed(id, "no backup found", nil)
	}

	var chosen *BackupInfo
	if timestamp == "" {
		for i := range backups {
			if chosen == nil || backups[i].Timestamp > chosen.Timestamp {
				chosen = &backups[i]
			}
		}
	} else {
		for i := range backups {
			if backups[i].Timestamp == timestamp {
				chosen = &backups[i]
				break
			}
		}
		if chosen == nil {
			return nil, project.RestoreFailed(id, fmt.Sprintf("no backup with timestamp %q", timestamp), nil)
		}
	}

	data, err := os.ReadFile(chosen.Path)
	if err != nil {
		return nil, project.RestoreFailed(id, "reading backup", err)
	}
	var rec project.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, project.RestoreFailed(id, "backup is corrupt", err)
	}
	if rec.ID != id {
		return nil, project.RestoreFailed(id, "backup is corrupt", fmt.Errorf("backup holds project %q", rec.ID))
	}

	if err := s.Save(ctx, &rec); err != nil {
		return nil, err
	}
	s.log.Info("project restored",
		zap.String("project_id", id), zap.String("timestamp", chosen.Timestamp), zap.String("phase", string(rec.Phase)))
	s.emit(Event{Kind: EventRecordRestored, ProjectID: id, Path: chosen.Path, Detail: chosen.Timestamp})
	return &rec, nil
}
