package journal

import (
	"context"

	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/session"
)

type nopStore struct{}

func (nopStore) Save(context.Context, *project.Record) error { return nil }

func newSession() *session.Session { return session.New() }
