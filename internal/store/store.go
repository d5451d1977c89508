// Package store persists project records as one JSON file per project,
// keeps a durable id→path index next to them and manages rolling backups.
//
// Layout under the data directory:
//
//	index.json                 id → relative record path
//	projects/<id>.json         current record
//	backups/<id>_<stamp>.json  read-only snapshots, newest N kept per id
//
// The index is held in memory and written through on every change. Entries
// whose file is missing or unreadable are dropped by the repair pass, which
// runs at Open, from Watch, and whenever a read trips over one.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/HendryAvila/devflow/internal/project"
	"go.uber.org/zap"
)

const (
	// ProjectsDir is the subdirectory holding current records.
	ProjectsDir = "projects"
	// BackupsDir is the subdirectory holding backup snapshots.
	BackupsDir = "backups"
	// IndexFile is the index filename.
	IndexFile = "index.json"
	// DefaultBackupRetention is how many backups are kept per project.
	DefaultBackupRetention = 10
	// recentLimit is how many records Stats reports as most recent.
	recentLimit = 5
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Store defines the persistence interface for project records.
// The engine and tools depend on this, not on FileStore.
type Store interface {
	Save(ctx context.Context, rec *project.Record) error
	Load(ctx context.Context, id string) (*project.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListAll(ctx context.Context) ([]*project.Record, error)
	Find(ctx context.Context, q project.Query) ([]*project.Record, error)
	Stats(ctx context.Context) (*Stats, error)
	CreateBackup(ctx context.Context, id string) (*BackupInfo, error)
	ListBackups(ctx context.Context, id string) ([]BackupInfo, error)
	Restore(ctx context.Context, id, timestamp string) (*project.Record, error)
}

// Options configures a FileStore.
type Options struct {
	// Dir is the base storage directory.
	Dir string
	// AutoBackup snapshots the current record before every overwrite or delete.
	AutoBackup bool
	// BackupRetention is the number of backups kept per project.
	// Zero means DefaultBackupRetention.
	BackupRetention int
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Sinks receive store events.
	Sinks []EventSink
	// Now defaults to time.Now. Tests inject a fake clock.
	Now func() time.Time
}

// Stats summarizes the stored projects.
type Stats struct {
	Total   int                   `json:"total"`
	ByPhase map[project.Phase]int `json:"by_phase"`
	Recent  []*project.Record     `json:"recent"`
}

// FileStore implements Store on the local filesystem.
type FileStore struct {
	dir        string
	autoBackup bool
	retention  int
	log        *zap.Logger
	now        func() time.Time

	mu    sync.RWMutex // guards index
	index map[string]string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	sinksMu sync.RWMutex
	sinks   []EventSink
}

var _ Store = (*FileStore)(nil)

// Open creates the directory layout, loads the index and runs a repair
// pass so the index matches the files on disk.
func Open(ctx context.Context, opts Options) (*FileStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("store: directory is required")
	}
	s := &FileStore{
		dir:        opts.Dir,
		autoBackup: opts.AutoBackup,
		retention:  opts.BackupRetention,
		log:        opts.Logger,
		now:        opts.Now,
		locks:      make(map[string]*sync.Mutex),
		sinks:      append([]EventSink(nil), opts.Sinks...),
	}
	if s.retention <= 0 {
		s.retention = DefaultBackupRetention
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	for _, dir := range []string{s.dir, s.projectsDir(), s.backupsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, project.StoreIO("creating store directories", "", err)
		}
	}
	if err := s.loadIndex(); err != nil {
		return nil, project.StoreIO("loading index", "", err)
	}
	if _, err := s.Repair(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the base storage directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) projectsDir() string { return filepath.Join(s.dir, ProjectsDir) }
func (s *FileStore) backupsDir() string  { return filepath.Join(s.dir, BackupsDir) }
func (s *FileStore) indexPath() string   { return filepath.Join(s.dir, IndexFile) }

// RecordPath returns the path a record with this id is stored at.
func (s *FileStore) RecordPath(id string) string {
	return filepath.Join(s.projectsDir(), id+".json")
}

func relRecordPath(id string) string {
	return filepath.Join(ProjectsDir, id+".json")
}

// lockFor returns the mutex serializing writes for one project id.
func (s *FileStore) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if s.locks[id] == nil {
		s.locks[id] = &sync.Mutex{}
	}
	return s.locks[id]
}

// Save writes rec as the current version of its project. UpdatedAt is
// refreshed on rec itself. With auto-backup on, an existing file is
// snapshotted first; a failed snapshot is logged and never blocks the save.
func (s *FileStore) Save(ctx context.Context, rec *project.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return errors.New("store: nil record")
	}
	if !idPattern.MatchString(rec.ID) {
		return project.NewValidationError([]project.FieldError{{Field: "id", Message: "invalid project id"}})
	}

	lock := s.lockFor(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	path := s.RecordPath(rec.ID)
	if s.autoBackup {
		if _, err := os.Stat(path); err == nil {
			if _, err := s.createBackupLocked(rec.ID); err != nil {
				s.backupFailed(rec.ID, err)
			}
		}
	}

	rec.UpdatedAt = project.Timestamp(s.now())
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return project.StoreIO("marshaling record", rec.ID, err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return project.StoreIO("writing record", rec.ID, err)
	}

	s.mu.Lock()
	s.index[rec.ID] = relRecordPath(rec.ID)
	err = s.persistIndexLocked()
	s.mu.Unlock()
	if err != nil {
		return project.StoreIO("persisting index", rec.ID, err)
	}

	s.emit(Event{Kind: EventRecordSaved, ProjectID: rec.ID, Path: path, Detail: string(rec.Phase)})
	return nil
}

// Load returns the record for id. A missing or corrupt file drops the
// index entry and reports ProjectNotFound.
func (s *FileStore) Load(ctx context.Context, id string) (*project.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := s.lookup(id)
	if !ok {
		return nil, project.ProjectNotFound(id)
	}

	rec, err := readRecord(path, id)
	if err != nil {
		var stale *staleError
		if errors.As(err, &stale) {
			s.dropEntries(map[string]staleEntry{id: {path: path, reason: stale.reason}})
			return nil, project.ProjectNotFound(id)
		}
		return nil, project.StoreIO("reading record", id, err)
	}
	return rec, nil
}

// Delete backs up (if enabled) and removes a record and its index entry.
// It reports whether a record file existed; an index entry whose file is
// already gone is dropped and reported as false.
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !idPattern.MatchString(id) {
		return false, nil
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	path, indexed := s.lookup(id)
	if !indexed {
		path = s.RecordPath(id)
	}
	_, statErr := os.Stat(path)
	onDisk := statErr == nil
	if !indexed && !onDisk {
		return false, nil
	}

	if onDisk && s.autoBackup {
		if _, err := s.createBackupLocked(id); err != nil {
			s.backupFailed(id, err)
		}
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, project.StoreIO("removing record", id, err)
	}

	s.mu.Lock()
	delete(s.index, id)
	err := s.persistIndexLocked()
	s.mu.Unlock()
	if err != nil {
		return onDisk, project.StoreIO("persisting index", id, err)
	}

	if !onDisk {
		s.log.Warn("dropped stale index entry",
			zap.String("project_id", id), zap.String("reason", "file missing"))
		s.emit(Event{Kind: EventIndexRepaired, ProjectID: id, Detail: "dropped: file missing"})
		return false, nil
	}
	s.emit(Event{Kind: EventRecordDeleted, ProjectID: id, Path: path})
	return true, nil
}

// Exists reports whether id is indexed and its file is reachable. A
// dangling entry is dropped.
func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, ok := s.lookup(id)
	if !ok {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.dropEntries(map[string]staleEntry{id: {path: path, reason: "file missing"}})
			return false, nil
		}
		return false, project.StoreIO("checking record", id, err)
	}
	return true, nil
}

// ListAll loads every indexed record, most recently updated first.
// Records that fail to load are dropped from the index.
func (s *FileStore) ListAll(ctx context.Context) ([]*project.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make(map[string]string, len(s.index))
	for id, rel := range s.index {
		entries[id] = s.resolve(rel)
	}
	s.mu.RUnlock()

	records := make([]*project.Record, 0, len(entries))
	stale := make(map[string]staleEntry)
	for id, path := range entries {
		rec, err := readRecord(path, id)
		if err != nil {
			var se *staleError
			if errors.As(err, &se) {
				stale[id] = staleEntry{path: path, reason: se.reason}
				continue
			}
			return nil, project.StoreIO("reading record", id, err)
		}
		records = append(records, rec)
	}
	s.dropEntries(stale)

	sortByUpdatedDesc(records)
	return records, nil
}

// Find returns the records matching every non-empty field of q.
func (s *FileStore) Find(ctx context.Context, q project.Query) ([]*project.Record, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var matched []*project.Record
	for _, rec := range all {
		if q.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// Stats returns totals, counts per phase and the most recent records.
func (s *FileStore) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		Total:   len(all),
		ByPhase: make(map[project.Phase]int),
	}
	for _, rec := range all {
		st.ByPhase[rec.Phase]++
	}
	if len(all) > recentLimit {
		st.Recent = all[:recentLimit]
	} else {
		st.Recent = all
	}
	return st, nil
}

// staleError marks a record file that is missing or cannot be decoded,
// as opposed to a transient I/O failure.
type staleError struct {
	reason string
	err    error
}

func (e *staleError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *staleError) Unwrap() error { return e.err }

// readRecord reads and decodes a record file, checking it belongs to id.
func readRecord(path, id string) (*project.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &staleError{reason: "file missing", err: err}
		}
		return nil, err
	}
	var rec project.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &staleError{reason: "file corrupt", err: err}
	}
	if rec.ID != id {
		return nil, &staleError{reason: "id mismatch", err: fmt.Errorf("file holds %q", rec.ID)}
	}
	return &rec, nil
}

func sortByUpdatedDesc(records []*project.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, tj := records[i].UpdatedTime(), records[j].UpdatedTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return records[i].ID < records[j].ID
	})
}
