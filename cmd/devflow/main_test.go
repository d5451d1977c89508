package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/store"
)

// run executes the root command with a fresh data dir and no config file.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, dir string) *project.Record {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{Dir: dir, AutoBackup: true})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	rec := project.New("Seeded")
	if err := st.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec.Phase = project.PhaseRequirement
	if err := st.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return rec
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "devflow v") {
		t.Errorf("version output = %q", out)
	}
}

func TestProjectsCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "projects")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if !strings.Contains(out, "No projects yet.") {
		t.Errorf("empty listing = %q", out)
	}

	rec := seed(t, dir)
	out, err = run(t, dir, "projects")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	for _, want := range []string{rec.ID, "Seeded", "requirement", "0/0 (0%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)
	out, err := run(t, dir, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "requirement") || !strings.Contains(out, "total") {
		t.Errorf("stats output:\n%s", out)
	}
}

func TestBackupsAndRestoreCommands(t *testing.T) {
	dir := t.TempDir()
	rec := seed(t, dir)

	out, err := run(t, dir, "backups", rec.ID)
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	if !strings.Contains(out, filepath.Join(dir, store.BackupsDir)) {
		t.Errorf("backups output:\n%s", out)
	}

	out, err = run(t, dir, "restore", rec.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(out, "to phase init") {
		t.Errorf("restore output = %q", out)
	}
}

func TestShowCommand(t *testing.T) {
	dir := t.TempDir()
	rec := seed(t, dir)

	// Seeding bypasses the engine, so no document exists yet.
	if _, err := run(t, dir, "show", rec.ID); err == nil || !strings.Contains(err.Error(), "has not been generated") {
		t.Errorf("show without document: err = %v", err)
	}
	if _, err := run(t, dir, "show", rec.ID, "readme"); err == nil {
		t.Error("show should reject unknown document names")
	}
}

func TestShowCommand_InitProjectHasNoDocuments(t *testing.T) {
	dir := t.TempDir()
	rec := seed(t, dir)

	if _, err := run(t, dir, "restore", rec.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := run(t, dir, "show", rec.ID); err == nil || !strings.Contains(err.Error(), "no documents") {
		t.Errorf("show on init project: err = %v", err)
	}
}
