package project

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable, machine-readable error identifier surfaced to callers.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeNoActiveProject     Code = "NO_ACTIVE_PROJECT"
	CodeMissingConfirmation Code = "MISSING_CONFIRMATION"
	CodeTaskNotFound        Code = "TASK_NOT_FOUND"
	CodeIncompleteTasks     Code = "INCOMPLETE_TASKS"
	CodeProjectNotFound     Code = "PROJECT_NOT_FOUND"
	CodeStoreIO             Code = "STORE_IO_ERROR"
	CodeRestore             Code = "RESTORE_ERROR"
	CodeDocumentGeneration  Code = "DOCUMENT_GENERATION_ERROR"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
)

// Sentinels for errors.Is. Matching compares codes only, so
// errors.Is(err, ErrTaskNotFound) holds for any *Error with that code.
var (
	ErrValidation          = &Error{Code: CodeValidation}
	ErrNoActiveProject     = &Error{Code: CodeNoActiveProject}
	ErrMissingConfirmation = &Error{Code: CodeMissingConfirmation}
	ErrTaskNotFound        = &Error{Code: CodeTaskNotFound}
	ErrIncompleteTasks     = &Error{Code: CodeIncompleteTasks}
	ErrProjectNotFound     = &Error{Code: CodeProjectNotFound}
	ErrStoreIO             = &Error{Code: CodeStoreIO}
	ErrRestore             = &Error{Code: CodeRestore}
	ErrDocumentGeneration  = &Error{Code: CodeDocumentGeneration}
	ErrInvalidTransition   = &Error{Code: CodeInvalidTransition}
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// TaskRef identifies a task in error details.
type TaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Error is the single error type for business-rule and storage failures.
// It carries the phase in which it occurred and the project id when known.
type Error struct {
	Code      Code         `json:"code"`
	Message   string       `json:"message"`
	Phase     Phase        `json:"phase,omitempty"`
	ProjectID string       `json:"project_id,omitempty"`
	Fields    []FieldError `json:"fields,omitempty"`
	Tasks     []TaskRef    `json:"tasks,omitempty"`
	Err       error        `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "; %s: %s", f.Field, f.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithPhase returns a copy of e stamped with the phase and project id.
// Values already set on e win.
func (e *Error) WithPhase(phase Phase, projectID string) *Error {
	c := *e
	if c.Phase == "" {
		c.Phase = phase
	}
	if c.ProjectID == "" {
		c.ProjectID = projectID
	}
	return &c
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// --- Constructors ---

// NewValidationError aggregates field errors into one ValidationError.
func NewValidationError(fields []FieldError) *Error {
	msg := "invalid input"
	if len(fields) == 1 {
		msg = "invalid input for " + fields[0].Field
	} else if len(fields) > 1 {
		msg = fmt.Sprintf("invalid input for %d fields", len(fields))
	}
	return &Error{Code: CodeValidation, Message: msg, Fields: fields}
}

// NoActiveProject is returned when a phase runs before init or after finish.
func NoActiveProject(phase Phase) *Error {
	return &Error{
		Code:    CodeNoActiveProject,
		Message: "no active project; run the init phase first",
		Phase:   phase,
	}
}

// MissingConfirmation is returned when confirmation has no confirmed value.
func MissingConfirmation(projectID string) *Error {
	return &Error{
		Code:      CodeMissingConfirmation,
		Message:   "'confirmed' is required: pass true to accept or false to revise",
		Phase:     PhaseConfirmation,
		ProjectID: projectID,
	}
}

// TaskNotFound is returned when task_complete names an unknown task.
func TaskNotFound(projectID, taskID string) *Error {
	return &Error{
		Code:      CodeTaskNotFound,
		Message:   fmt.Sprintf("task %q not found", taskID),
		Phase:     PhaseTaskComplete,
		ProjectID: projectID,
	}
}

// IncompleteTasks lists the tasks that block finish.
func IncompleteTasks(projectID string, pending []Task) *Error {
	refs := make([]TaskRef, len(pending))
	ids := make([]string, len(pending))
	for i, t := range pending {
		refs[i] = TaskRef{ID: t.ID, Title: t.Title}
		ids[i] = t.ID
	}
	return &Error{
		Code:      CodeIncompleteTasks,
		Message:   fmt.Sprintf("%d task(s) not completed: %s; complete them or pass force=true", len(pending), strings.Join(ids, ", ")),
		Phase:     PhaseFinish,
		ProjectID: projectID,
		Tasks:     refs,
	}
}

// ProjectNotFound is returned by store lookups that miss.
func ProjectNotFound(projectID string) *Error {
	return &Error{
		Code:      CodeProjectNotFound,
		Message:   fmt.Sprintf("project %q not found", projectID),
		ProjectID: projectID,
	}
}

// StoreIO wraps an underlying filesystem failure.
func StoreIO(op, projectID string, err error) *Error {
	return &Error{
		Code:      CodeStoreIO,
		Message:   op,
		ProjectID: projectID,
		Err:       err,
	}
}

// RestoreFailed reports a missing or corrupt backup.
func RestoreFailed(projectID, msg string, err error) *Error {
	return &Error{
		Code:      CodeRestore,
		Message:   msg,
		ProjectID: projectID,
		Err:       err,
	}
}

// DocumentGeneration wraps a collaborator failure.
func DocumentGeneration(phase Phase, projectID string, err error) *Error {
	return &Error{
		Code:      CodeDocumentGeneration,
		Message:   "generating document",
		Phase:     phase,
		ProjectID: projectID,
		Err:       err,
	}
}

// InvalidTransition is returned when a phase would move the record backwards.
func InvalidTransition(projectID string, from, to Phase) *Error {
	return &Error{
		Code:      CodeInvalidTransition,
		Message:   fmt.Sprintf("cannot move from %s back to %s; restore a backup to go back", from, to),
		Phase:     to,
		ProjectID: projectID,
	}
}
