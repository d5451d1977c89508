// Package project defines the project record that moves through the devflow
// phase pipeline, the phase enum itself, input validation rules and the error
// taxonomy shared by the store and the phase engine.
//
// The package has no I/O: the store (internal/store) persists records and the
// engine (internal/engine) mutates them.
package project

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// --- Phase enum ---

// Phase is one discrete stage of the development workflow.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhaseRequirement  Phase = "requirement"
	PhaseConfirmation Phase = "confirmation"
	PhaseDesign       Phase = "design"
	PhaseTodo         Phase = "todo"
	PhaseTaskComplete Phase = "task_complete"
	PhaseStatus       Phase = "status" // query only, never stored on a record
	PhaseFinish       Phase = "finish"
)

// PhaseOrder is the intended progression of stored phases.
// PhaseStatus is deliberately absent: it never advances a record.
var PhaseOrder = []Phase{
	PhaseInit,
	PhaseRequirement,
	PhaseConfirmation,
	PhaseDesign,
	PhaseTodo,
	PhaseTaskComplete,
	PhaseFinish,
}

// validActions is every phase a caller may request, status included.
var validActions = map[Phase]bool{
	PhaseInit:         true,
	PhaseRequirement:  true,
	PhaseConfirmation: true,
	PhaseDesign:       true,
	PhaseTodo:         true,
	PhaseTaskComplete: true,
	PhaseStatus:       true,
	PhaseFinish:       true,
}

// ParsePhase returns the Phase for an action string, or an error listing
// the accepted values.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !validActions[p] {
		return "", fmt.Errorf("invalid action %q: must be one of: init, requirement, confirmation, design, todo, task_complete, status, finish", s)
	}
	return p, nil
}

// Index returns the ordinal position of p within PhaseOrder, or -1 for
// PhaseStatus and unknown values.
func (p Phase) Index() int {
	for i, candidate := range PhaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// --- Core data structures ---

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task is one unit of implementation work created by the todo phase.
// Tasks are immutable once created; completion lives in Record.CompletedTasks.
type Task struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Priority       string   `json:"priority"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
}

// Confirmation records that the user approved the content of a phase.
type Confirmation struct {
	Phase       Phase  `json:"phase"`
	ConfirmedAt string `json:"confirmed_at"`
}

// Record is the root data structure for a project, persisted as
// projects/<id>.json.
type Record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phase     Phase  `json:"phase"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	// Requirement content.
	Description            string   `json:"description,omitempty"`
	Requirements           []string `json:"requirements,omitempty"`
	FunctionalRequirements []string `json:"functional_requirements,omitempty"`
	TechnicalRequirements  []string `json:"technical_requirements,omitempty"`
	AcceptanceCriteria     []string `json:"acceptance_criteria,omitempty"`

	// Design content.
	Architecture   string `json:"architecture,omitempty"`
	Implementation string `json:"implementation,omitempty"`
	SystemDesign   string `json:"system_design,omitempty"`
	DataStructures string `json:"data_structures,omitempty"`
	Interfaces     string `json:"interfaces,omitempty"`
	Deployment     string `json:"deployment,omitempty"`

	Tasks          []Task         `json:"tasks,omitempty"`
	CompletedTasks []string       `json:"completed_tasks,omitempty"`
	Confirmations  []Confirmation `json:"confirmations,omitempty"`
}

// New creates a record in the init phase with a fresh id.
func New(name string) *Record {
	now := Timestamp(timeNow())
	return &Record{
		ID:        uuid.NewString(),
		Name:      name,
		Phase:     PhaseInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes UpdatedAt.
func (r *Record) Touch() {
	r.UpdatedAt = Timestamp(timeNow())
}

// Clone returns a deep copy so callers can mutate without aliasing the
// original slices.
func (r *Record) Clone() *Record {
	c := *r
	c.Requirements = cloneStrings(r.Requirements)
	c.FunctionalRequirements = cloneStrings(r.FunctionalRequirements)
	c.TechnicalRequirements = cloneStrings(r.TechnicalRequirements)
	c.AcceptanceCriteria = cloneStrings(r.AcceptanceCriteria)
	c.CompletedTasks = cloneStrings(r.CompletedTasks)
	if r.Tasks != nil {
		c.Tasks = make([]Task, len(r.Tasks))
		for i, t := range r.Tasks {
			t.Dependencies = cloneStrings(t.Dependencies)
			if t.EstimatedHours != nil {
				h := *t.EstimatedHours
				t.EstimatedHours = &h
			}
			c.Tasks[i] = t
		}
	}
	if r.Confirmations != nil {
		c.Confirmations = append([]Confirmation(nil), r.Confirmations...)
	}
	return &c
}

// UpdatedTime parses UpdatedAt. Unparseable values sort as the zero time.
func (r *Record) UpdatedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasTask reports whether a task with the given id exists.
func (r *Record) HasTask(id string) bool {
	return r.FindTask(id) != nil
}

// FindTask returns the task with the given id, or nil.
func (r *Record) FindTask(id string) *Task {
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return &r.Tasks[i]
		}
	}
	return nil
}

// IsCompleted reports whether the task id is in CompletedTasks.
func (r *Record) IsCompleted(id string) bool {
	for _, done := range r.CompletedTasks {
		if done == id {
			return true
		}
	}
	return false
}

// CompleteTask adds id to CompletedTasks. It returns false when the id was
// already there, leaving the set unchanged.
func (r *Record) CompleteTask(id string) bool {
	if r.IsCompleted(id) {
		return false
	}
	r.CompletedTasks = append(r.CompletedTasks, id)
	return true
}

// PendingTasks returns tasks whose id is not in CompletedTasks, in task order.
func (r *Record) PendingTasks() []Task {
	var pending []Task
	for _, t := range r.Tasks {
		if !r.IsCompleted(t.ID) {
			pending = append(pending, t)
		}
	}
	return pending
}

// Progress summarizes task completion.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Percent   int `json:"percent"`
}

// Progress counts tasks by completion. Completed ids that match no task
// are ignored.
func (r *Record) Progress() Progress {
	p := Progress{Total: len(r.Tasks)}
	for _, t := range r.Tasks {
		if r.IsCompleted(t.ID) {
			p.Completed++
		}
	}
	p.Pending = p.Total - p.Completed
	p.Percent = Percent(p.Completed, p.Total)
	return p
}

// Percent returns round(completed/total*100), or 0 when total is 0.
func Percent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// --- Queries ---

// Query is a partial-field equality filter. Empty fields match anything.
type Query struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Phase Phase  `json:"phase,omitempty"`
}

// Matches reports whether every non-empty field of q equals the record's.
func (q Query) Matches(r *Record) bool {
	if q.ID != "" && q.ID != r.ID {
		return false
	}
	if q.Name != "" && q.Name != r.Name {
		return false
	}
	if q.Phase != "" && q.Phase != r.Phase {
		return false
	}
	return true
}

// Timestamp formats t the way records store times.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
