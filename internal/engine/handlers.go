package engine

import (
	"context"
	"fmt"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/session"
	"github.com/HendryAvila/devflow/internal/templates"
)

func (e *Engine) handleInit(ctx context.Context, sess *session.Session, in InitInput) (*Result, error) {
	name := project.Sanitize(in.ProjectName)
	if errs := project.ValidateName("project_name", name); len(errs) > 0 {
		return nil, project.NewValidationError(errs)
	}

	rec := project.New(name)
	if err := e.persist(ctx, sess, rec); err != nil {
		return nil, err
	}
	return &Result{
		Success:   true,
		Message:   fmt.Sprintf("Project %q initialized", rec.Name),
		ProjectID: rec.ID,
		Phase:     rec.Phase,
		NextSteps: nextSteps(rec),
	}, nil
}

func (e *Engine) handleRequirement(ctx context.Context, sess *session.Session, rec *project.Record, in RequirementInput) (*Result, error) {
	var errs []project.FieldError
	if in.Description != nil {
		errs = append(errs, project.ValidateText("description", *in.Description, project.MaxTextLen)...)
	}
	errs = append(errs, project.ValidateList("requirements", in.Requirements)...)
	errs = append(errs, project.ValidateList("functional_requirements", in.FunctionalRequirements)...)
	errs = append(errs, project.ValidateList("technical_requirements", in.TechnicalRequirements)...)
	errs = append(errs, project.ValidateList("acceptance_criteria", in.AcceptanceCriteria)...)
	if len(errs) > 0 {
		return nil, project.NewValidationError(errs)
	}
	if err := CheckTransition(rec.ID, rec.Phase, project.PhaseRequirement); err != nil {
		return nil, err
	}

	if in.Description != nil {
		rec.Description = project.Sanitize(*in.Description)
	}
	if in.Requirements != nil {
		rec.Requirements = project.SanitizeList(in.Requirements)
	}
	if in.FunctionalRequirements != nil {
		rec.FunctionalRequirements = project.SanitizeList(in.FunctionalRequirements)
	}
	if in.TechnicalRequirements != nil {
		rec.TechnicalRequirements = project.SanitizeList(in.TechnicalRequirements)
	}
	if in.AcceptanceCriteria != nil {
		rec.AcceptanceCriteria = project.SanitizeList(in.AcceptanceCriteria)
	}
	rec.Phase = project.PhaseRequirement

	return e.commit(ctx, sess, rec, "Requirements recorded", templates.Requirement)
}

func (e *Engine) handleConfirmation(ctx context.Context, sess *session.Session, rec *project.Record, in ConfirmationInput) (*Result, error) {
	if in.Confirmed == nil {
		return nil, project.MissingConfirmation(rec.ID)
	}
	if !*in.Confirmed {
		return &Result{
			Success:   true,
			Message:   "Requirements not confirmed; modify them and resubmit",
			ProjectID: rec.ID,
			Phase:     rec.Phase,
			NextSteps: []string{
				"Revise the requirements with the requirement phase",
				"Call confirmation with confirmed=true once they are right",
			},
		}, nil
	}
	if err := CheckTransition(rec.ID, rec.Phase, project.PhaseConfirmation); err != nil {
		return nil, err
	}

	rec.Confirmations = append(rec.Confirmations, project.Confirmation{
		Phase:       rec.Phase,
		ConfirmedAt: project.Timestamp(e.now()),
	})
	msg := "Requirements confirmed"
	if rec.Phase.Index() < project.PhaseConfirmation.Index() {
		rec.Phase = project.PhaseConfirmation
	} else {
		msg = fmt.Sprintf("Confirmation recorded; project stays in %s", rec.Phase)
	}

	return e.commit(ctx, sess, rec, msg, "")
}

func (e *Engine) handleDesign(ctx context.Context, sess *session.Session, rec *project.Record, in DesignInput) (*Result, error) {
	fields := []struct {
		name string
		in   *string
		dst  *string
	}{
		{"architecture", in.Architecture, &rec.Architecture},
		{"implementation", in.Implementation, &rec.Implementation},
		{"system_design", in.SystemDesign, &rec.SystemDesign},
		{"data_structures", in.DataStructures, &rec.DataStructures},
		{"interfaces", in.Interfaces, &rec.Interfaces},
		{"deployment", in.Deployment, &rec.Deployment},
	}

	var errs []project.FieldError
	for _, f := range fields {
		if f.in != nil {
			errs = append(errs, project.ValidateText(f.name, *f.in, project.MaxTextLen)...)
		}
	}
	if len(errs) > 0 {
		return nil, project.NewValidationError(errs)
	}
	if err := CheckTransition(rec.ID, rec.Phase, project.PhaseDesign); err != nil {
		return nil, err
	}

	for _, f := range fields {
		if f.in != nil {
			*f.dst = project.Sanitize(*f.in)
		}
	}
	rec.Phase = project.PhaseDesign

	return e.commit(ctx, sess, rec, "Design recorded", templates.Design)
}

func (e *Engine) handleTodo(ctx context.Context, sess *session.Session, rec *project.Record, in TodoInput) (*Result, error) {
	var tasks []project.Task
	if in.Tasks != nil {
		tasks = make([]project.Task, len(in.Tasks))
		for i, t := range in.Tasks {
			tasks[i] = project.SanitizeTask(t)
		}
		if errs := project.ValidateTasks("tasks", tasks); len(errs) > 0 {
			return nil, project.NewValidationError(errs)
		}
	}
	// Ad-hoc completions without a list leave the project in task_complete;
	// the first list is still accepted there and the phase stays put.
	adHoc := rec.Phase == project.PhaseTaskComplete && len(rec.Tasks) == 0
	if !adHoc {
		if err := CheckTransition(rec.ID, rec.Phase, project.PhaseTodo); err != nil {
			return nil, err
		}
	}

	if in.Tasks != nil {
		rec.Tasks = tasks
		// Completion of tasks that no longer exist is forgotten.
		var kept []string
		for _, id := range rec.CompletedTasks {
			if rec.HasTask(id) {
				kept = append(kept, id)
			}
		}
		rec.CompletedTasks = kept
	}
	if !adHoc {
		rec.Phase = project.PhaseTodo
	}

	return e.commit(ctx, sess, rec, fmt.Sprintf("Task list saved (%d tasks)", len(rec.Tasks)), templates.Todo)
}

func (e *Engine) handleTaskComplete(ctx context.Context, sess *session.Session, rec *project.Record, in TaskCompleteInput) (*Result, error) {
	id := in.TaskID
	if errs := project.ValidateTaskID("task_id", id); len(errs) > 0 {
		return nil, project.NewValidationError(errs)
	}
	if len(rec.Tasks) > 0 && !rec.HasTask(id) {
		return nil, project.TaskNotFound(rec.ID, id)
	}
	if err := CheckTransition(rec.ID, rec.Phase, project.PhaseTaskComplete); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Task %s completed", id)
	if !rec.CompleteTask(id) {
		msg = fmt.Sprintf("Task %s was already completed", id)
	}
	rec.Phase = project.PhaseTaskComplete

	return e.commit(ctx, sess, rec, msg, templates.Todo)
}

func (e *Engine) handleStatus(rec *project.Record) *Result {
	progress := rec.Progress()
	pending := rec.PendingTasks()
	refs := make([]project.TaskRef, len(pending))
	for i, t := range pending {
		refs[i] = project.TaskRef{ID: t.ID, Title: t.Title}
	}
	completed := make([]string, 0, len(rec.CompletedTasks))
	for _, id := range rec.CompletedTasks {
		if rec.HasTask(id) {
			completed = append(completed, id)
		}
	}

	var steps []string
	switch {
	case progress.Total == 0:
		steps = []string{"Break the design into tasks with the todo phase"}
	case progress.Pending > 0:
		steps = []string{
			fmt.Sprintf("%d task(s) pending; next up: %s (%s)", progress.Pending, pending[0].ID, pending[0].Title),
			"Mark tasks done with task_complete",
		}
	default:
		steps = []string{"All tasks are complete; call finish to close the project"}
	}

	return &Result{
		Success:   true,
		Message:   fmt.Sprintf("%d/%d tasks complete (%d%%)", progress.Completed, progress.Total, progress.Percent),
		ProjectID: rec.ID,
		Phase:     rec.Phase,
		NextSteps: steps,
		Data: &StatusData{
			ProjectName:    rec.Name,
			CurrentPhase:   rec.Phase,
			Progress:       progress,
			PendingTasks:   refs,
			CompletedTasks: completed,
		},
	}
}

func (e *Engine) handleFinish(ctx context.Context, sess *session.Session, rec *project.Record, in FinishInput) (*Result, error) {
	if !in.Force {
		if pending := rec.PendingTasks(); len(pending) > 0 {
			return nil, project.IncompleteTasks(rec.ID, pending)
		}
	}
	if err := CheckTransition(rec.ID, rec.Phase, project.PhaseFinish); err != nil {
		return nil, err
	}
	rec.Phase = project.PhaseFinish

	res, err := e.commit(ctx, sess, rec, fmt.Sprintf("Project %q finished", rec.Name), templates.Done)
	if err != nil {
		return nil, err
	}
	sess.Clear()
	return res, nil
}

// commit persists rec, makes it active and emits doc when it is non-empty.
// A generation failure is returned after the record is already saved.
func (e *Engine) commit(ctx context.Context, sess *session.Session, rec *project.Record, msg string, doc templates.Name) (*Result, error) {
	if err := e.persist(ctx, sess, rec); err != nil {
		return nil, err
	}
	var path string
	if doc != "" {
		var err error
		if path, err = e.generate(ctx, rec, doc); err != nil {
			return nil, err
		}
	}
	return &Result{
		Success:        true,
		Message:        msg,
		ProjectID:      rec.ID,
		Phase:          rec.Phase,
		NextSteps:      nextSteps(rec),
		GeneratedFiles: files(path),
	}, nil
}
