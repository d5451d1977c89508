// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools, prompts and resources that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/HendryAvila/devflow/internal/config"
	"github.com/HendryAvila/devflow/internal/engine"
	"github.com/HendryAvila/devflow/internal/journal"
	"github.com/HendryAvila/devflow/internal/metrics"
	"github.com/HendryAvila/devflow/internal/prompts"
	"github.com/HendryAvila/devflow/internal/resources"
	"github.com/HendryAvila/devflow/internal/session"
	"github.com/HendryAvila/devflow/internal/store"
	"github.com/HendryAvila/devflow/internal/templates"
	"github.com/HendryAvila/devflow/internal/tools"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App is a fully wired devflow server.
type App struct {
	MCP      *server.MCPServer
	Store    *store.FileStore
	Engine   *engine.Engine
	Docs     *templates.Generator
	Session  *session.Session
	Journal  *journal.Journal // nil when history is disabled
	Settings *config.Settings
	Log      *zap.Logger
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the journal database and must be
// called on shutdown (typically via defer). It is always non-nil and safe
// to call even if journal init failed.
func New(ctx context.Context, cfg *config.Settings, log *zap.Logger) (*App, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}

	// --- Create shared dependencies ---

	st, err := store.Open(ctx, store.Options{
		Dir:             cfg.DataDir,
		AutoBackup:      cfg.AutoBackup,
		BackupRetention: cfg.BackupRetention,
		Logger:          log.Named("store"),
	})
	if err != nil {
		return nil, noop, fmt.Errorf("opening project store: %w", err)
	}

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, noop, fmt.Errorf("creating template renderer: %w", err)
	}
	generator := templates.NewGenerator(cfg.DataDir, renderer)

	sess := session.New()
	eng := engine.New(st, generator, log.Named("engine"))

	recorder := metrics.Recorder{}
	eng.AddObserver(recorder)
	st.AddSink(recorder)

	// --- Journal ---
	//
	// The journal is an independent subsystem: if it fails to open, the
	// workflow keeps working. We log a warning and skip the history tool.

	cleanup := noop
	jr, jErr := journal.Open(cfg.DataDir, log.Named("journal"))
	if jErr != nil {
		log.Warn("history disabled", zap.Error(jErr))
		jr = nil
	} else {
		cleanup = func() {
			if err := jr.Close(); err != nil {
				log.Warn("journal close", zap.Error(err))
			}
		}
		eng.AddObserver(jr)
		st.AddSink(jr)
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"devflow",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	phaseTool := tools.NewPhaseTool(eng, sess)
	s.AddTool(phaseTool.Definition(), phaseTool.Handle)

	projectsTool := tools.NewProjectsTool(st, sess)
	s.AddTool(projectsTool.Definition(), projectsTool.Handle)

	backupsTool := tools.NewBackupsTool(st, sess)
	s.AddTool(backupsTool.Definition(), backupsTool.Handle)

	if jr != nil {
		historyTool := tools.NewHistoryTool(jr, sess)
		s.AddTool(historyTool.Definition(), historyTool.Handle)
	}

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(st, sess)
	s.AddResource(resourceHandler.ActiveResource(), resourceHandler.HandleActive)
	s.AddResource(resourceHandler.ProjectsResource(), resourceHandler.HandleProjects)
	s.AddResourceTemplate(resourceHandler.ProjectTemplate(), resourceHandler.HandleProject)

	app := &App{
		MCP:      s,
		Store:    st,
		Engine:   eng,
		Docs:     generator,
		Session:  sess,
		Journal:  jr,
		Settings: cfg,
		Log:      log,
	}
	return app, cleanup, nil
}

// Serve runs the stdio transport, the store watcher and the optional
// metrics listener until stdin closes or ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdio := server.NewStdioServer(a.MCP)
	stdio.SetErrorLogger(zap.NewStdLog(a.Log.Named("stdio")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// stdin closing ends the session and everything else with it.
		defer cancel()
		err := stdio.Listen(gctx, os.Stdin, os.Stdout)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return a.Store.Watch(gctx, a.Settings.RepairInterval)
	})
	g.Go(func() error {
		return metrics.Serve(gctx, a.Settings.MetricsAddr, a.Log.Named("metrics"))
	})

	a.Log.Info("devflow server started",
		zap.String("version", Version),
		zap.String("data_dir", a.Settings.DataDir))
	return g.Wait()
}

// noop is a no-op cleanup function used as the default when the journal
// is disabled or hasn't been initialized.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use devflow effectively.
func serverInstructions() string {
	return `You have access to devflow, a phase-driven development workflow server.

## WHEN TO ACTIVATE devflow

Suggest devflow when the user wants to build a new project or a sizeable
feature and would benefit from writing requirements, a design and a task
list before coding. Skip it for bug fixes, one-line changes and questions.

## CRITICAL: How Tools Work
devflow tools are STORAGE tools, not AI tools. They validate and save
content YOU generate, then write a markdown document for each phase.

1. TALK to the user and understand what they need
2. GENERATE the content yourself (requirements, design, tasks)
3. CALL devflow_phase with the ACTUAL content
4. Read next_steps in the response and follow them

NEVER call a tool with placeholder text like "TBD".

## Phases (devflow_phase action)
1. init: create the project (project_name). It becomes the active project.
2. requirement: description, requirements, functional_requirements,
   technical_requirements, acceptance_criteria. Only the fields you pass
   are changed.
3. confirmation: confirmed=true once the user approves the requirements;
   confirmed=false leaves everything as it is so you can revise.
4. design: architecture, implementation, system_design, data_structures,
   interfaces, deployment.
5. todo: the full task list (id, title, description, priority,
   estimated_hours, dependencies). Each call replaces the list.
6. task_complete: task_id of a finished task. Safe to repeat.
7. finish: closes the project. Fails while tasks are pending unless
   force=true.
status: progress and next steps, changes nothing.

Phases only move forward. To go back, restore a backup with
devflow_backups action=restore.

## Other tools
- devflow_projects: list, find, stats, resume (switch the active
  project), delete.
- devflow_backups: list, create, restore.
- devflow_history: what happened to a project, newest first.

## Errors
Failures return {"success": false, "error": {"code": ..., "message": ...}}.
VALIDATION_ERROR lists every bad field at once in error.fields; fix them
all before calling again. INCOMPLETE_TASKS lists the pending tasks in
error.tasks.`
}
