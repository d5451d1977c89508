// Package templates renders project records into markdown documents and
// writes them under the per-project output directory.
//
// Templates are embedded at build time, so the binary carries everything it
// needs to emit documents.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/HendryAvila/devflow/internal/project"
)

//go:embed files/*.md.tmpl
var files embed.FS

// Name identifies one document template.
type Name string

const (
	Requirement Name = "requirement"
	Design      Name = "design"
	Todo        Name = "todo"
	Done        Name = "done"
)

// All lists every document template.
var All = []Name{Requirement, Design, Todo, Done}

// ParseName returns the template called s.
func ParseName(s string) (Name, error) {
	for _, n := range All {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown document %q", s)
}

// ForPhase is the newest document a record in phase p has. init has none.
func ForPhase(p project.Phase) (Name, bool) {
	switch p {
	case project.PhaseRequirement, project.PhaseConfirmation:
		return Requirement, true
	case project.PhaseDesign:
		return Design, true
	case project.PhaseTodo, project.PhaseTaskComplete:
		return Todo, true
	case project.PhaseFinish:
		return Done, true
	}
	return "", false
}

// FileName is the template's file name inside the embedded set.
func (n Name) FileName() string { return string(n) + ".md.tmpl" }

// Renderer turns a record into the markdown for one template.
type Renderer interface {
	Render(name Name, rec *project.Record) (string, error)
}

// EmbedRenderer renders the embedded templates.
type EmbedRenderer struct {
	tmpl *template.Template
}

var _ Renderer = (*EmbedRenderer)(nil)

// NewRenderer parses the embedded templates.
func NewRenderer() (*EmbedRenderer, error) {
	tmpl, err := template.New("devflow").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(files, "files/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &EmbedRenderer{tmpl: tmpl}, nil
}

// Render executes the named template against rec.
func (r *EmbedRenderer) Render(name Name, rec *project.Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("rendering %s: nil record", name)
	}
	t := r.tmpl.Lookup(name.FileName())
	if t == nil {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, newView(rec)); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// view is the template data: the record plus derived progress figures.
type view struct {
	*project.Record
	Rows             []taskRow
	Completed        int
	Total            int
	Percent          int
	Pending          []string
	RequirementCount int
}

type taskRow struct {
	project.Task
	Done     bool
	Estimate string
}

func newView(rec *project.Record) view {
	v := view{Record: rec, Total: len(rec.Tasks)}
	for _, t := range rec.Tasks {
		row := taskRow{Task: t, Done: rec.IsCompleted(t.ID), Estimate: "-"}
		if t.EstimatedHours != nil {
			row.Estimate = strconv.FormatFloat(*t.EstimatedHours, 'f', -1, 64) + "h"
		}
		if row.Done {
			v.Completed++
		} else {
			v.Pending = append(v.Pending, t.ID)
		}
		v.Rows = append(v.Rows, row)
	}
	v.Percent = project.Percent(v.Completed, v.Total)
	v.RequirementCount = len(rec.Requirements) + len(rec.FunctionalRequirements) +
		len(rec.TechnicalRequirements) + len(rec.AcceptanceCriteria)
	return v
}
