package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/devflow/internal/project"
)

// OutputDir is the subdirectory of the data directory holding documents.
const OutputDir = "output"

// Generator writes rendered documents to <dir>/output/<id>/<name>.md.
type Generator struct {
	dir      string
	renderer Renderer
}

// NewGenerator returns a Generator rooted at the data directory dir.
func NewGenerator(dir string, renderer Renderer) *Generator {
	return &Generator{dir: dir, renderer: renderer}
}

// ProjectDir returns the output directory for a project.
func (g *Generator) ProjectDir(id string) string {
	return filepath.Join(g.dir, OutputDir, id)
}

// Path returns where the named document of a project is written.
func (g *Generator) Path(id string, name Name) string {
	return filepath.Join(g.ProjectDir(id), string(name)+".md")
}

// Generate renders the named document for rec, writes it and returns the
// path written.
func (g *Generator) Generate(ctx context.Context, rec *project.Record, name Name) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := g.renderer.Render(name, rec)
	if err != nil {
		return "", err
	}

	path := g.Path(rec.ID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return path, nil
}
