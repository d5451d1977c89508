package metrics

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/HendryAvila/devflow/internal/engine"
	"github.com/HendryAvila/devflow/internal/project"
	"github.com/HendryAvila/devflow/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_OnTransition(t *testing.T) {
	ok := PhaseTransitions.WithLabelValues("design", engine.OutcomeSuccess)
	failed := PhaseTransitions.WithLabelValues("finish", engine.OutcomeError)
	code := PhaseErrors.WithLabelValues(string(project.CodeIncompleteTasks))
	beforeOK, beforeFailed, beforeCode := testutil.ToFloat64(ok), testutil.ToFloat64(failed), testutil.ToFloat64(code)

	r := Recorder{}
	r.OnTransition(engine.Transition{Action: project.PhaseDesign, Outcome: engine.OutcomeSuccess})
	r.OnTransition(engine.Transition{Action: project.PhaseFinish, Outcome: engine.OutcomeError, Code: project.CodeIncompleteTasks})

	if got := testutil.ToFloat64(ok) - beforeOK; got != 1 {
		t.Errorf("design/success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - beforeFailed; got != 1 {
		t.Errorf("finish/error delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(code) - beforeCode; got != 1 {
		t.Errorf("INCOMPLETE_TASKS delta = %v, want 1", got)
	}
}

func TestRecorder_OnStoreEvent(t *testing.T) {
	c := StoreEvents.WithLabelValues(string(store.EventBackupFailed))
	before := testutil.ToFloat64(c)

	Recorder{}.OnStoreEvent(store.Event{Kind: store.EventBackupFailed, Err: errors.New("x")})

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("backup_failed delta = %v, want 1", got)
	}
}

func TestServe_EmptyAddrDisabled(t *testing.T) {
	if err := Serve(context.Background(), "", nil); err != nil {
		t.Errorf("Serve(\"\") = %v, want nil", err)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot reserve a port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
