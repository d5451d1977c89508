package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// --- Test helpers ---

// fakeClock hands out strictly increasing times, one second apart.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// eventRecorder collects store events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) OnStoreEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// details returns the Detail of every event of kind, in emission order.
func (r *eventRecorder) details(kind EventKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e.Detail)
		}
	}
	return out
}

func openTestStore(t *testing.T, autoBackup bool) (*FileStore, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	s, err := Open(context.Background(), Options{
		Dir:        t.TempDir(),
		AutoBackup: autoBackup,
		Sinks:      []EventSink{rec},
		Now:        newFakeClock().Now,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, rec
}

func testRecord(name string) *project.Record {
	hours := 3.0
	r := project.New(name)
	r.Description = "A project"
	r.Requirements = []string{"A", "B"}
	r.Architecture = "hexagonal"
	r.Tasks = []project.Task{
		{ID: "t1", Title: "First", Priority: project.PriorityHigh, EstimatedHours: &hours},
		{ID: "t2", Title: "Second", Priority: project.PriorityLow, Dependencies: []string{"t1"}},
	}
	r.CompletedTasks = []string{"t1"}
	return r
}

// --- Open ---

func TestOpen_CreatesLayout(t *testing.T) {
	s, _ := openTestStore(t, false)

	for _, p := range []string{s.projectsDir(), s.backupsDir(), s.indexPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should exist: %v", p, err)
		}
	}
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatal("Open without Dir should fail")
	}
}

// --- Save / Load ---

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")

	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(rec, got, cmpopts.IgnoreFields(project.Record{}, "UpdatedAt")); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_RefreshesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	rec.UpdatedAt = "2000-01-01T00:00:00Z"

	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.UpdatedAt == "2000-01-01T00:00:00Z" {
		t.Error("Save should refresh UpdatedAt")
	}
}

func TestSave_WritesIndex(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatalf("parsing index: %v", err)
	}
	if idx.Projects[rec.ID] != filepath.Join(ProjectsDir, rec.ID+".json") {
		t.Errorf("index entry = %q", idx.Projects[rec.ID])
	}
}

func TestSave_RejectsUnsafeID(t *testing.T) {
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	rec.ID = "../escape"
	err := s.Save(context.Background(), rec)
	if !errors.Is(err, project.ErrValidation) {
		t.Fatalf("Save error = %v, want ValidationError", err)
	}
}

func TestLoad_Unknown(t *testing.T) {
	s, _ := openTestStore(t, false)
	_, err := s.Load(context.Background(), "nope")
	if !errors.Is(err, project.ErrProjectNotFound) {
		t.Fatalf("Load error = %v, want ProjectNotFound", err)
	}
}

func TestLoad_CorruptFileDropsEntry(t *testing.T) {
	ctx := context.Background()
	s, events := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(s.RecordPath(rec.ID), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load(ctx, rec.ID)
	if !errors.Is(err, project.ErrProjectNotFound) {
		t.Fatalf("Load error = %v, want ProjectNotFound", err)
	}
	if _, ok := s.lookup(rec.ID); ok {
		t.Error("corrupt entry should be dropped from the index")
	}
	if events.count(EventIndexRepaired) != 1 {
		t.Errorf("index_repaired events = %d, want 1", events.count(EventIndexRepaired))
	}
}

// --- Exists / Delete ---

func TestExists_HealsDanglingEntry(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ok, err := s.Exists(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}

	if err := os.Remove(s.RecordPath(rec.ID)); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, rec.ID)
	if err != nil || ok {
		t.Fatalf("Exists after out-of-band delete = %v, %v; want false", ok, err)
	}
	if _, indexed := s.lookup(rec.ID); indexed {
		t.Error("dangling entry should be dropped")
	}
}

func TestDelete_RemovesAndBacksUp(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, true)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	existed, err := s.Delete(ctx, rec.ID)
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v; want true", existed, err)
	}
	if _, err := os.Stat(s.RecordPath(rec.ID)); !os.IsNotExist(err) {
		t.Error("record file should be gone")
	}
	backups, err := s.ListBackups(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("backups after delete = %d, want 1", len(backups))
	}

	existed, err = s.Delete(ctx, rec.ID)
	if err != nil || existed {
		t.Errorf("second Delete = %v, %v; want false", existed, err)
	}
}

func TestDelete_FileGoneReportsFalse(t *testing.T) {
	ctx := context.Background()
	s, events := openTestStore(t, true)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(s.RecordPath(rec.ID)); err != nil {
		t.Fatal(err)
	}

	existed, err := s.Delete(ctx, rec.ID)
	if err != nil || existed {
		t.Fatalf("Delete = %v, %v; want false", existed, err)
	}
	if _, indexed := s.lookup(rec.ID); indexed {
		t.Error("dangling entry should be dropped")
	}
	if events.count(EventRecordDeleted) != 0 {
		t.Errorf("record_deleted events = %d, want 0", events.count(EventRecordDeleted))
	}
	if events.count(EventIndexRepaired) != 1 {
		t.Errorf("index_repaired events = %d, want 1", events.count(EventIndexRepaired))
	}
}

// --- ListAll / Find / Stats ---

func TestListAll_SortedByUpdatedDesc(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)

	a, b, c := testRecord("A"), testRecord("B"), testRecord("C")
	for _, r := range []*project.Record{a, b, c} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	// Touch A again so it becomes the most recent.
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("Save: %v", err)
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	var names []string
	for _, r := range all {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"A", "C", "B"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListAll_SkipsOutOfBandDeletes(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	keep, gone := testRecord("Keep"), testRecord("Gone")
	for _, r := range []*project.Record{keep, gone} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := os.Remove(s.RecordPath(gone.ID)); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != keep.ID {
		t.Fatalf("ListAll = %d records, want only Keep", len(all))
	}
	if _, ok := s.lookup(gone.ID); ok {
		t.Error("index entry for the deleted file should be removed")
	}

	data, _ := os.ReadFile(s.indexPath())
	var idx indexFile
	_ = json.Unmarshal(data, &idx)
	if _, ok := idx.Projects[gone.ID]; ok {
		t.Error("persisted index should no longer list the deleted project")
	}
}

func TestFind_PartialEquality(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	a, b := testRecord("Alpha"), testRecord("Beta")
	b.Phase = project.PhaseDesign
	for _, r := range []*project.Record{a, b} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := s.Find(ctx, project.Query{Phase: project.PhaseDesign})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Beta" {
		t.Errorf("Find(phase=design) = %d records, want Beta", len(got))
	}

	got, _ = s.Find(ctx, project.Query{Name: "Alpha", Phase: project.PhaseDesign})
	if len(got) != 0 {
		t.Errorf("Find(Alpha, design) = %d records, want 0", len(got))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	for i := 0; i < 7; i++ {
		r := testRecord("P")
		if i%2 == 0 {
			r.Phase = project.PhaseTodo
		}
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 7 {
		t.Errorf("Total = %d, want 7", st.Total)
	}
	if st.ByPhase[project.PhaseTodo] != 4 || st.ByPhase[project.PhaseInit] != 3 {
		t.Errorf("ByPhase = %v, want todo:4 init:3", st.ByPhase)
	}
	if len(st.Recent) != 5 {
		t.Errorf("Recent = %d, want 5", len(st.Recent))
	}
}

// --- Repair ---

func TestRepair_AdoptsUnindexedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rec := testRecord("Orphan")
	data, _ := json.Marshal(rec)
	if err := os.MkdirAll(filepath.Join(dir, ProjectsDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ProjectsDir, rec.ID+".json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(ctx, Options{Dir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := s.Load(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Load adopted record: %v", err)
	}
	if got.Name != "Orphan" {
		t.Errorf("Name = %s, want Orphan", got.Name)
	}
}

func TestRepair_CorruptIndexRebuilt(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(s.indexPath(), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, Options{Dir: s.Dir()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if ok, _ := reopened.Exists(ctx, rec.ID); !ok {
		t.Error("record should be re-indexed after a corrupt index")
	}
}

func TestRepair_DropsDanglingEntries(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.Remove(s.RecordPath(rec.ID)); err != nil {
		t.Fatal(err)
	}

	report, err := s.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(report.Dropped) != 1 || report.Dropped[0] != rec.ID {
		t.Errorf("Dropped = %v, want [%s]", report.Dropped, rec.ID)
	}
	if !report.Changed() {
		t.Error("Changed should be true")
	}
}

func TestDropEntries_KeepsEntryRewrittenSinceSnapshot(t *testing.T) {
	ctx := context.Background()
	s, events := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := s.RecordPath(rec.ID)

	// A reader saw the file missing, then a Save put it back before the
	// reader got around to dropping the entry.
	snapshot := map[string]staleEntry{rec.ID: {path: path, reason: "file missing"}}
	if dropped := s.dropEntries(snapshot); len(dropped) != 0 {
		t.Errorf("dropped = %v, want none", dropped)
	}
	if _, indexed := s.lookup(rec.ID); !indexed {
		t.Error("live entry should be kept")
	}
	if events.count(EventIndexRepaired) != 0 {
		t.Errorf("index_repaired events = %d, want 0", events.count(EventIndexRepaired))
	}
}

func TestDropEntries_KeepsEntryMovedSinceSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snapshot := map[string]staleEntry{rec.ID: {path: filepath.Join(t.TempDir(), "old.json"), reason: "file missing"}}
	if dropped := s.dropEntries(snapshot); len(dropped) != 0 {
		t.Errorf("dropped = %v, want none", dropped)
	}
	if _, indexed := s.lookup(rec.ID); !indexed {
		t.Error("entry pointing elsewhere should be kept")
	}
}

func TestDropEntries_DropsStillStale(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t, false)
	rec := testRecord("Proj")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := s.RecordPath(rec.ID)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	dropped := s.dropEntries(map[string]staleEntry{rec.ID: {path: path, reason: "file missing"}})
	if diff := cmp.Diff([]string{rec.ID}, dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	s, _ := openTestStore(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, time.Hour) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
