// Package engine runs the devflow phase pipeline: it validates one phase
// call against the active project, applies the mutation, persists it and
// asks the document generator for the phase's deliverable.
//
// Every mutating handler works on a copy of the active record and persists
// before reporting success, so a failed call never leaves a partially
// updated record in the session or on disk.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/session"
	"github.com/HendryAvila/devflow/internal/templates"
	"go.uber.org/zap"
)

// Store is the persistence the engine needs.
type Store interface {
	Save(ctx context.Context, rec *project.Record) error
}

// DocumentGenerator renders a record into the named document and returns
// the path written.
type DocumentGenerator interface {
	Generate(ctx context.Context, rec *project.Record, name templates.Name) (string, error)
}

// Result is the structured outcome of a successful phase call.
type Result struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	ProjectID      string        `json:"project_id,omitempty"`
	Phase          project.Phase `json:"phase,omitempty"`
	NextSteps      []string      `json:"next_steps"`
	GeneratedFiles []string      `json:"generated_files,omitempty"`
	Data           *StatusData   `json:"data,omitempty"`
}

// StatusData is the progress breakdown returned by the status phase.
type StatusData struct {
	ProjectName    string            `json:"project_name"`
	CurrentPhase   project.Phase     `json:"current_phase"`
	Progress       project.Progress  `json:"progress"`
	PendingTasks   []project.TaskRef `json:"pending_tasks"`
	CompletedTasks []string          `json:"completed_tasks"`
}

// Engine executes phase calls. It is safe for concurrent use, though calls
// against one session are expected to arrive one at a time.
type Engine struct {
	store Store
	docs  DocumentGenerator
	log   *zap.Logger
	now   func() time.Time

	mu        sync.RWMutex
	observers []TransitionObserver
}

// New creates an Engine. A nil logger means no logging.
func New(store Store, docs DocumentGenerator, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, docs: docs, log: log, now: time.Now}
}

// AddObserver registers an observer for every subsequent phase call.
func (e *Engine) AddObserver(obs TransitionObserver) {
	if obs == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// Handle runs one phase call against sess. Business-rule failures come back
// as *project.Error stamped with the phase and, when known, the project id.
func (e *Engine) Handle(ctx context.Context, sess *session.Session, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	phase := in.Phase()
	active := sess.Active()

	t := Transition{Action: phase, At: e.now()}
	if active != nil {
		t.ProjectID = active.ID
		t.From = active.Phase
	}

	res, err := e.dispatch(ctx, sess, active, in)
	if err != nil {
		var pe *project.Error
		if errors.As(err, &pe) {
			err = pe.WithPhase(phase, t.ProjectID)
		}
		t.Outcome = OutcomeError
		t.Code = project.CodeOf(err)
		t.Message = err.Error()
		t.To = t.From
		e.log.Warn("phase call failed",
			zap.String("action", string(phase)),
			zap.String("project_id", t.ProjectID),
			zap.String("code", string(t.Code)),
			zap.Error(err))
	} else {
		t.Outcome = OutcomeSuccess
		if res.ProjectID != t.ProjectID {
			// init replaced the active project; the new one has no past phase.
			t.From = ""
		}
		t.ProjectID = res.ProjectID
		t.To = res.Phase
		e.log.Info("phase call",
			zap.String("action", string(phase)),
			zap.String("project_id", res.ProjectID),
			zap.String("from", string(t.From)),
			zap.String("to", string(t.To)))
	}

	e.mu.RLock()
	observers := append([]TransitionObserver(nil), e.observers...)
	e.mu.RUnlock()
	for _, obs := range observers {
		notifyObserver(obs, t)
	}

	return res, err
}

func (e *Engine) dispatch(ctx context.Context, sess *session.Session, active *project.Record, in Input) (*Result, error) {
	if _, isInit := in.(InitInput); !isInit && active == nil {
		return nil, project.NoActiveProject(in.Phase())
	}

	switch in := in.(type) {
	case InitInput:
		return e.handleInit(ctx, sess, in)
	case RequirementInput:
		return e.handleRequirement(ctx, sess, active, in)
	case ConfirmationInput:
		return e.handleConfirmation(ctx, sess, active, in)
	case DesignInput:
		return e.handleDesign(ctx, sess, active, in)
	case TodoInput:
		return e.handleTodo(ctx, sess, active, in)
	case TaskCompleteInput:
		return e.handleTaskComplete(ctx, sess, active, in)
	case StatusInput:
		return e.handleStatus(active), nil
	case FinishInput:
		return e.handleFinish(ctx, sess, active, in)
	default:
		return nil, project.NewValidationError([]project.FieldError{{Field: "action", Message: "unsupported action"}})
	}
}

// CheckTransition reports whether a record in phase from may take a call
// for phase to. Phases only move forward or stay; confirmation is accepted
// from any phase but finish. Status is always allowed.
func CheckTransition(id string, from, to project.Phase) error {
	if to == project.PhaseStatus {
		return nil
	}
	if to == project.PhaseConfirmation && from != project.PhaseFinish {
		return nil
	}
	if to.Index() < from.Index() {
		return project.InvalidTransition(id, from, to)
	}
	return nil
}

// persist saves rec and makes it the active record.
func (e *Engine) persist(ctx context.Context, sess *session.Session, rec *project.Record) error {
	rec.Touch()
	if err := e.store.Save(ctx, rec); err != nil {
		return err
	}
	sess.Set(rec)
	return nil
}

// generate asks the collaborator for one document.
func (e *Engine) generate(ctx context.Context, rec *project.Record, name templates.Name) (string, error) {
	if e.docs == nil {
		return "", nil
	}
	path, err := e.docs.Generate(ctx, rec, name)
	if err != nil {
		return "", project.DocumentGeneration(rec.Phase, rec.ID, err)
	}
	return path, nil
}

func files(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
