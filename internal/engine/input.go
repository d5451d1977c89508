package engine

import (
	"fmt"
	"math"

	"github.com/HendryAvila/devflow/internal/project"
)

// Input is the parsed, phase-specific payload of one phase call. Each
// phase has its own struct; ParseInput picks the one matching the action.
type Input interface {
	Phase() project.Phase
}

// InitInput starts a new project.
type InitInput struct {
	ProjectName string
}

// RequirementInput carries requirement content. A nil slice or pointer
// means the field was not provided and the stored value is kept.
type RequirementInput struct {
	Description            *string
	Requirements           []string
	FunctionalRequirements []string
	TechnicalRequirements  []string
	AcceptanceCriteria     []string
}

// ConfirmationInput approves (true) or rejects (false) the requirements.
// Nil means the caller omitted the field.
type ConfirmationInput struct {
	Confirmed *bool
}

// DesignInput carries design content. Nil fields are left unchanged.
type DesignInput struct {
	Architecture   *string
	Implementation *string
	SystemDesign   *string
	DataStructures *string
	Interfaces     *string
	Deployment     *string
}

// TodoInput replaces the task list when Tasks is non-nil.
type TodoInput struct {
	Tasks []project.Task
}

// TaskCompleteInput marks one task as done.
type TaskCompleteInput struct {
	TaskID string
}

// StatusInput queries progress.
type StatusInput struct{}

// FinishInput closes the project. Force skips the pending-task check.
type FinishInput struct {
	Force bool
}

func (InitInput) Phase() project.Phase         { return project.PhaseInit }
func (RequirementInput) Phase() project.Phase  { return project.PhaseRequirement }
func (ConfirmationInput) Phase() project.Phase { return project.PhaseConfirmation }
func (DesignInput) Phase() project.Phase       { return project.PhaseDesign }
func (TodoInput) Phase() project.Phase         { return project.PhaseTodo }
func (TaskCompleteInput) Phase() project.Phase { return project.PhaseTaskComplete }
func (StatusInput) Phase() project.Phase       { return project.PhaseStatus }
func (FinishInput) Phase() project.Phase       { return project.PhaseFinish }

// ParseInput builds the Input for action from a decoded JSON argument map.
// It checks shape only (types, object layout); value rules such as lengths
// and formats are checked by the handler once the active project is known.
// All shape problems are reported together in one ValidationError.
//
// Field names are snake_case; the camelCase spellings older clients send
// (projectName, taskId, ...) are accepted too.
func ParseInput(action string, args map[string]any) (Input, error) {
	phase, err := project.ParsePhase(action)
	if err != nil {
		return nil, project.NewValidationError([]project.FieldError{{Field: "action", Message: err.Error()}})
	}

	p := &argParser{args: args}
	var in Input
	switch phase {
	case project.PhaseInit:
		name := p.str("project_name", "projectName")
		in = InitInput{ProjectName: deref(name)}
	case project.PhaseRequirement:
		in = RequirementInput{
			Description:            p.str("description"),
			Requirements:           p.strings("requirements"),
			FunctionalRequirements: p.strings("functional_requirements", "functionalRequirements"),
			TechnicalRequirements:  p.strings("technical_requirements", "technicalRequirements"),
			AcceptanceCriteria:     p.strings("acceptance_criteria", "acceptanceCriteria"),
		}
	case project.PhaseConfirmation:
		in = ConfirmationInput{Confirmed: p.boolean("confirmed")}
	case project.PhaseDesign:
		in = DesignInput{
			Architecture:   p.str("architecture"),
			Implementation: p.str("implementation"),
			SystemDesign:   p.str("system_design", "systemDesign"),
			DataStructures: p.str("data_structures", "dataStructures"),
			Interfaces:     p.str("interfaces"),
			Deployment:     p.str("deployment"),
		}
	case project.PhaseTodo:
		in = TodoInput{Tasks: p.tasks("tasks")}
	case project.PhaseTaskComplete:
		in = TaskCompleteInput{TaskID: deref(p.str("task_id", "taskId"))}
	case project.PhaseStatus:
		in = StatusInput{}
	case project.PhaseFinish:
		in = FinishInput{Force: deref(p.boolean("force"))}
	}

	if len(p.errs) > 0 {
		return nil, project.NewValidationError(p.errs).WithPhase(phase, "")
	}
	return in, nil
}

// argParser reads typed values out of a JSON argument map and collects
// shape errors instead of stopping at the first one.
type argParser struct {
	args map[string]any
	errs []project.FieldError
}

func (p *argParser) fail(field, format string, a ...any) {
	p.errs = append(p.errs, project.FieldError{Field: field, Message: fmt.Sprintf(format, a...)})
}

// lookup returns the value of the first key present, and that key.
func (p *argParser) lookup(keys ...string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := p.args[k]; ok && v != nil {
			return v, k, true
		}
	}
	return nil, keys[0], false
}

func (p *argParser) str(keys ...string) *string {
	v, key, ok := p.lookup(keys...)
	if !ok {
		return nil
	}
	s, isStr := v.(string)
	if !isStr {
		p.fail(key, "must be a string, got %s", typeName(v))
		return nil
	}
	return &s
}

func (p *argParser) boolean(keys ...string) *bool {
	v, key, ok := p.lookup(keys...)
	if !ok {
		return nil
	}
	b, isBool := v.(bool)
	if !isBool {
		p.fail(key, "must be a boolean, got %s", typeName(v))
		return nil
	}
	return &b
}

// strings accepts a JSON array of strings. An explicit empty array yields
// a non-nil empty slice so the handler can clear the field.
func (p *argParser) strings(keys ...string) []string {
	v, key, ok := p.lookup(keys...)
	if !ok {
		return nil
	}
	return p.stringList(key, v)
}

func (p *argParser) stringList(field string, v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...)
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, isStr := item.(string)
			if !isStr {
				p.fail(fmt.Sprintf("%s[%d]", field, i), "must be a string, got %s", typeName(item))
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		p.fail(field, "must be an array of strings, got %s", typeName(v))
		return nil
	}
}

func (p *argParser) tasks(key string) []project.Task {
	v, _, ok := p.lookup(key)
	if !ok {
		return nil
	}
	list, isList := v.([]any)
	if !isList {
		p.fail(key, "must be an array of task objects, got %s", typeName(v))
		return nil
	}

	out := make([]project.Task, 0, len(list))
	for i, item := range list {
		prefix := fmt.Sprintf("%s[%d]", key, i)
		obj, isObj := item.(map[string]any)
		if !isObj {
			p.fail(prefix, "must be an object, got %s", typeName(item))
			continue
		}
		sub := &argParser{args: obj}
		task := project.Task{
			ID:          deref(sub.str("id")),
			Title:       deref(sub.str("title")),
			Description: deref(sub.str("description")),
			Priority:    deref(sub.str("priority")),
		}
		if hv, hkey, ok := sub.lookup("estimated_hours", "estimatedHours"); ok {
			h, isNum := hv.(float64)
			if !isNum || math.IsNaN(h) || math.IsInf(h, 0) {
				sub.fail(hkey, "must be a number, got %s", typeName(hv))
			} else {
				task.EstimatedHours = &h
			}
		}
		if dv, dkey, ok := sub.lookup("dependencies"); ok {
			task.Dependencies = sub.stringList(dkey, dv)
		}
		for _, e := range sub.errs {
			p.errs = append(p.errs, project.FieldError{Field: prefix + "." + e.Field, Message: e.Message})
		}
		out = append(out, task)
	}
	return out
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
