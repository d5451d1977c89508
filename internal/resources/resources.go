// Package resources implements MCP resource handlers for devflow.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (devflow://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ActiveURI      = "devflow://session/active"
	ProjectsURI    = "devflow://projects"
	projectURIBase = "devflow://projects/"
)

// Lister is the read side of the project store used by resources.
type Lister interface {
	Load(ctx context.Context, id string) (*project.Record, error)
	ListAll(ctx context.Context) ([]*project.Record, error)
}

// Handler manages devflow resource endpoints.
type Handler struct {
	store   Lister
	session *session.Session
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store Lister, sess *session.Session) *Handler {
	return &Handler{store: store, session: sess}
}

// ActiveResource returns the MCP resource definition for the active project.
func (h *Handler) ActiveResource() mcp.Resource {
	return mcp.NewResource(
		ActiveURI,
		"Active devflow project",
		mcp.WithResourceDescription("Full record of the project the session is working on"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleActive returns the active project record as JSON.
func (h *Handler) HandleActive(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	rec := h.session.Active()
	if rec == nil {
		return errorResource(req.Params.URI, "no active project"), nil
	}
	return jsonResource(req.Params.URI, rec)
}

// ProjectsResource returns the MCP resource definition for the project list.
func (h *Handler) ProjectsResource() mcp.Resource {
	return mcp.NewResource(
		ProjectsURI,
		"devflow projects",
		mcp.WithResourceDescription("Every stored project, most recently updated first"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProjects returns every stored record as JSON.
func (h *Handler) HandleProjects(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	all, err := h.store.ListAll(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, all)
}

// ProjectTemplate returns the resource template for a single project.
func (h *Handler) ProjectTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		projectURIBase+"{id}",
		"devflow project",
		mcp.WithTemplateDescription("One stored project record by id"),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

// HandleProject returns one stored record as JSON.
func (h *Handler) HandleProject(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id := strings.TrimPrefix(req.Params.URI, projectURIBase)
	if id == "" || id == req.Params.URI {
		return errorResource(req.Params.URI, "project id is required"), nil
	}
	rec, err := h.store.Load(ctx, id)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, rec)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
