package project

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// --- Phase ---

func TestParsePhase_AllActions(t *testing.T) {
	for _, s := range []string{"init", "requirement", "confirmation", "design", "todo", "task_complete", "status", "finish"} {
		if _, err := ParsePhase(s); err != nil {
			t.Errorf("ParsePhase(%q) unexpected error: %v", s, err)
		}
	}
}

func TestParsePhase_Invalid(t *testing.T) {
	_, err := ParsePhase("deploy")
	if err == nil {
		t.Fatal("ParsePhase(deploy) should fail")
	}
	if !strings.Contains(err.Error(), "task_complete") {
		t.Errorf("error should list valid actions, got: %v", err)
	}
}

func TestPhaseIndex_Ordered(t *testing.T) {
	for i, p := range PhaseOrder {
		if p.Index() != i {
			t.Errorf("%s.Index() = %d, want %d", p, p.Index(), i)
		}
	}
	if PhaseStatus.Index() != -1 {
		t.Errorf("status.Index() = %d, want -1", PhaseStatus.Index())
	}
}

// --- Record ---

func TestNew_SetsDefaults(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = orig }()

	r := New("Proj")
	if r.ID == "" {
		t.Error("ID should be set")
	}
	if r.Phase != PhaseInit {
		t.Errorf("Phase = %s, want init", r.Phase)
	}
	if r.CreatedAt != Timestamp(fixed) || r.UpdatedAt != Timestamp(fixed) {
		t.Errorf("timestamps = %s/%s, want %s", r.CreatedAt, r.UpdatedAt, Timestamp(fixed))
	}
	if !r.UpdatedTime().Equal(fixed) {
		t.Errorf("UpdatedTime = %v, want %v", r.UpdatedTime(), fixed)
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	a, b := New("a"), New("b")
	if a.ID == b.ID {
		t.Errorf("two records share id %s", a.ID)
	}
}

func TestCompleteTask_Idempotent(t *testing.T) {
	r := New("x")
	r.Tasks = []Task{{ID: "t1", Title: "T"}}

	if !r.CompleteTask("t1") {
		t.Error("first CompleteTask should report a change")
	}
	if r.CompleteTask("t1") {
		t.Error("second CompleteTask should be a no-op")
	}
	if len(r.CompletedTasks) != 1 {
		t.Errorf("CompletedTasks = %v, want [t1]", r.CompletedTasks)
	}
}

func TestPendingTasks(t *testing.T) {
	r := New("x")
	r.Tasks = []Task{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}}
	r.CompleteTask("b")

	pending := r.PendingTasks()
	if len(pending) != 2 || pending[0].ID != "a" || pending[1].ID != "c" {
		t.Errorf("PendingTasks = %+v, want a, c", pending)
	}
}

func TestClone_DoesNotAlias(t *testing.T) {
	hours := 2.5
	r := New("x")
	r.Requirements = []string{"A"}
	r.Tasks = []Task{{ID: "t1", Title: "T", EstimatedHours: &hours, Dependencies: []string{"t0"}}}

	c := r.Clone()
	c.Requirements[0] = "changed"
	c.Tasks[0].Dependencies[0] = "changed"
	*c.Tasks[0].EstimatedHours = 9

	if r.Requirements[0] != "A" {
		t.Error("Clone aliased Requirements")
	}
	if r.Tasks[0].Dependencies[0] != "t0" {
		t.Error("Clone aliased task dependencies")
	}
	if *r.Tasks[0].EstimatedHours != 2.5 {
		t.Error("Clone aliased estimated hours")
	}
}

func TestQuery_Matches(t *testing.T) {
	r := &Record{ID: "1", Name: "Proj", Phase: PhaseDesign}
	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty matches all", Query{}, true},
		{"name match", Query{Name: "Proj"}, true},
		{"name mismatch", Query{Name: "Other"}, false},
		{"phase match", Query{Phase: PhaseDesign}, true},
		{"phase mismatch", Query{Phase: PhaseTodo}, false},
		{"all fields", Query{ID: "1", Name: "Proj", Phase: PhaseDesign}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Matches(r); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Errors ---

func TestError_IsMatchesCode(t *testing.T) {
	err := TaskNotFound("p1", "t9")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Error("errors.Is(TaskNotFound, ErrTaskNotFound) = false")
	}
	if errors.Is(err, ErrIncompleteTasks) {
		t.Error("errors.Is should not match a different code")
	}
	if CodeOf(err) != CodeTaskNotFound {
		t.Errorf("CodeOf = %s, want %s", CodeOf(err), CodeTaskNotFound)
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := StoreIO("writing record", "p1", cause)
	if !errors.Is(err, cause) {
		t.Error("StoreIO should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Error() = %q, should include cause", err.Error())
	}
}

func TestIncompleteTasks_ListsTasks(t *testing.T) {
	err := IncompleteTasks("p1", []Task{{ID: "t1", Title: "Write tests"}})
	if len(err.Tasks) != 1 || err.Tasks[0].ID != "t1" || err.Tasks[0].Title != "Write tests" {
		t.Errorf("Tasks = %+v, want t1/Write tests", err.Tasks)
	}
	if err.Phase != PhaseFinish {
		t.Errorf("Phase = %s, want finish", err.Phase)
	}
}

func TestWithPhase_KeepsExisting(t *testing.T) {
	e := (&Error{Code: CodeValidation, Phase: PhaseTodo}).WithPhase(PhaseDesign, "p1")
	if e.Phase != PhaseTodo {
		t.Errorf("Phase = %s, want todo", e.Phase)
	}
	if e.ProjectID != "p1" {
		t.Errorf("ProjectID = %s, want p1", e.ProjectID)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := Percent(tt.completed, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestProgress_IgnoresUnknownCompletedIDs(t *testing.T) {
	r := New("P")
	r.Tasks = []Task{{ID: "a"}, {ID: "b"}}
	r.CompletedTasks = []string{"a", "ghost"}

	p := r.Progress()
	if p.Total != 2 || p.Completed != 1 || p.Pending != 1 || p.Percent != 50 {
		t.Errorf("Progress = %+v, want total 2, completed 1, pending 1, 50%%", p)
	}
}
