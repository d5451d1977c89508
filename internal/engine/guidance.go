package engine

import (
	"fmt"

	"github.com/HendryAvila/devflow/internal/project"
)

// nextSteps suggests follow-ups for a record that just reached its phase.
func nextSteps(rec *project.Record) []string {
	switch rec.Phase {
	case project.PhaseInit:
		return []string{
			"Describe the project and its requirements with the requirement phase",
			"Include functional and technical requirements plus acceptance criteria",
		}
	case project.PhaseRequirement:
		return []string{
			"Review the generated requirements document",
			"Call confirmation with confirmed=true to approve, or false to revise",
		}
	case project.PhaseConfirmation:
		return []string{
			"Describe the architecture, interfaces and deployment with the design phase",
		}
	case project.PhaseDesign:
		return []string{
			"Review the generated design document",
			"Break the work into tasks with the todo phase",
		}
	case project.PhaseTodo:
		if len(rec.Tasks) == 0 {
			return []string{"Add tasks with the todo phase before starting work"}
		}
		return []string{
			fmt.Sprintf("Start with task %s (%s)", rec.Tasks[0].ID, rec.Tasks[0].Title),
			"Mark tasks done with task_complete",
		}
	case project.PhaseTaskComplete:
		if pending := rec.PendingTasks(); len(pending) > 0 {
			return []string{
				fmt.Sprintf("%d task(s) left; next up: %s (%s)", len(pending), pending[0].ID, pending[0].Title),
				"Check progress with status",
			}
		}
		return []string{"All tasks are complete; call finish to close the project"}
	case project.PhaseFinish:
		return []string{
			"Review the completion document",
			"Start another project with init",
		}
	default:
		return nil
	}
}
