package store

import "time"

// EventKind names something the store did that callers may want to observe.
type EventKind string

const (
	EventRecordSaved    EventKind = "record_saved"
	EventRecordDeleted  EventKind = "record_deleted"
	EventRecordRestored EventKind = "record_restored"
	EventBackupCreated  EventKind = "backup_created"
	EventBackupFailed   EventKind = "backup_failed"
	EventBackupsPruned  EventKind = "backups_pruned"
	EventPruneFailed    EventKind = "prune_failed"
	EventIndexRepaired  EventKind = "index_repaired"
)

// Event describes one store side effect. Backup and repair failures never
// surface as errors from Save, so sinks are how they become visible.
type Event struct {
	Kind      EventKind
	ProjectID string
	Path      string
	Detail    string
	Err       error
	Time      time.Time
}

// EventSink receives store events. Implementations must not call back into
// the store synchronously.
type EventSink interface {
	OnStoreEvent(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// OnStoreEvent calls f(e).
func (f EventSinkFunc) OnStoreEvent(e Event) { f(e) }

// AddSink registers a sink for all subsequent events.
func (s *FileStore) AddSink(sink EventSink) {
	if sink == nil {
		return
	}
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks = append(s.sinks, sink)
}

func (s *FileStore) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	s.sinksMu.RLock()
	sinks := append([]EventSink(nil), s.sinks...)
	s.sinksMu.RUnlock()
	for _, sink := range sinks {
		sink.OnStoreEvent(e)
	}
}
