// Package metrics exposes Prometheus counters for phase calls and store
// events, and an optional /metrics listener.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/HendryAvila/devflow/internal/engine"
	"github.com/HendryAvila/devflow/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// PhaseTransitions counts phase calls by requested phase and outcome.
	PhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devflow_phase_transitions_total",
			Help: "Phase calls handled, by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	// PhaseErrors counts failed phase calls by error code.
	PhaseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devflow_phase_errors_total",
			Help: "Failed phase calls, by error code",
		},
		[]string{"code"},
	)

	// StoreEvents counts store side effects (saves, backups, repairs).
	StoreEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devflow_store_events_total",
			Help: "Store events, by kind",
		},
		[]string{"kind"},
	)
)

// Recorder feeds the package counters. It implements
// engine.TransitionObserver and store.EventSink.
type Recorder struct{}

var (
	_ engine.TransitionObserver = Recorder{}
	_ store.EventSink           = Recorder{}
)

// OnTransition counts one phase call.
func (Recorder) OnTransition(t engine.Transition) {
	PhaseTransitions.WithLabelValues(string(t.Action), t.Outcome).Inc()
	if t.Outcome == engine.OutcomeError {
		code := string(t.Code)
		if code == "" {
			code = "UNKNOWN"
		}
		PhaseErrors.WithLabelValues(code).Inc()
	}
}

// OnStoreEvent counts one store event.
func (Recorder) OnStoreEvent(e store.Event) {
	StoreEvents.WithLabelValues(string(e.Kind)).Inc()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables
// the listener and returns immediately.
func Serve(ctx context.Context, addr string, log *zap.Logger) error {
	if addr == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listener started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("metrics listener stopped")
		return nil
	}
}
