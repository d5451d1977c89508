// Package journal keeps an append-only SQLite log of phase calls and store
// events, so a project's history survives restarts and can be queried by
// the devflow_history tool and the CLI.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/devflow/internal/engine"
	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/store"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// FileName is the database file inside the data directory.
const FileName = "journal.db"

// DefaultLimit caps Recent when the caller passes no limit.
const DefaultLimit = 20

// maxLimit bounds a single Recent query.
const maxLimit = 500

// Entry kinds written for phase calls. Store events use their own kind.
const (
	KindTransition       = "transition"
	KindTransitionFailed = "transition_failed"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Entry is one journal row.
type Entry struct {
	ID        int64  `json:"id"`
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind"`
	Phase     string `json:"phase,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Journal writes and reads entries. It implements engine.TransitionObserver
// and store.EventSink.
type Journal struct {
	db  *sql.DB
	log *zap.Logger
}

var (
	_ engine.TransitionObserver = (*Journal)(nil)
	_ store.EventSink           = (*Journal)(nil)
)

// Open opens (creating if needed) dir/journal.db and migrates the schema.
func Open(dir string, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	j := &Journal{db: db, log: log}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT    NOT NULL DEFAULT '',
			kind       TEXT    NOT NULL,
			phase      TEXT    NOT NULL DEFAULT '',
			detail     TEXT    NOT NULL DEFAULT '',
			created_at TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_project ON events(project_id, id);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append writes one entry. CreatedAt defaults to now.
func (j *Journal) Append(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt == "" {
		e.CreatedAt = project.Timestamp(time.Now())
	}
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO events (project_id, kind, phase, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ProjectID, e.Kind, e.Phase, e.Detail, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("journal: append: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest entries first. An empty projectID returns
// entries for every project.
func (j *Journal) Recent(ctx context.Context, projectID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := `SELECT id, project_id, kind, phase, detail, created_at FROM events`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Kind, &e.Phase, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByKind returns how many entries of each kind exist.
func (j *Journal) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("journal: count: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// OnTransition records a phase call. Best-effort: write failures are
// logged and never reach the caller.
func (j *Journal) OnTransition(t engine.Transition) {
	e := Entry{
		ProjectID: t.ProjectID,
		Kind:      KindTransition,
		Phase:     string(t.To),
		CreatedAt: project.Timestamp(t.At),
	}
	if t.Outcome == engine.OutcomeError {
		e.Kind = KindTransitionFailed
		e.Phase = string(t.Action)
		e.Detail = t.Message
	} else {
		e.Detail = transitionDetail(t)
	}
	j.appendQuietly(e)
}

func transitionDetail(t engine.Transition) string {
	switch {
	case t.From == "":
		return fmt.Sprintf("%s: started at %s", t.Action, t.To)
	case t.From == t.To:
		return fmt.Sprintf("%s: stayed in %s", t.Action, t.To)
	default:
		return fmt.Sprintf("%s: %s -> %s", t.Action, t.From, t.To)
	}
}

// OnStoreEvent records a store side effect. Saves are already covered by
// transitions, so only the other kinds are written.
func (j *Journal) OnStoreEvent(ev store.Event) {
	if ev.Kind == store.EventRecordSaved {
		return
	}
	var parts []string
	if ev.Detail != "" {
		parts = append(parts, ev.Detail)
	}
	if ev.Err != nil {
		parts = append(parts, ev.Err.Error())
	}
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	j.appendQuietly(Entry{
		ProjectID: ev.ProjectID,
		Kind:      string(ev.Kind),
		Detail:    strings.Join(parts, ": "),
		CreatedAt: project.Timestamp(at),
	})
}

func (j *Journal) appendQuietly(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := j.Append(ctx, e); err != nil {
		j.log.Warn("journal write failed",
			zap.String("kind", e.Kind), zap.String("project_id", e.ProjectID), zap.Error(err))
	}
}
