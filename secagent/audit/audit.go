// Package audit keeps a best-effort trail of scan lifecycle events in the
// key/value store: when a scan was scored, persisted, or re-scored, and any
// store failures along the way. Recording is asynchronous and never blocks
// or fails the scoring path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secagent/go-api/secagent/store"
)

// EventKind classifies a lifecycle event.
type EventKind string

const (
	KindScored     EventKind = "scored"
	KindPersisted  EventKind = "persisted"
	KindRescored   EventKind = "rescored"
	KindStoreError EventKind = "store_error"
)

// Event is one audit trail entry. Seq is a process-local counter that keeps
// same-timestamp events ordered.
type Event struct {
	Time   time.Time `json:"time"`
	Seq    uint64    `json:"seq"`
	Kind   EventKind `json:"kind"`
	ScanID string    `json:"scan_id,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

const (
	// keyPrefix namespaces audit entries in the KV store.
	keyPrefix = "audit:scan"
	// entryTTL keeps audit entries for 7 days.
	entryTTL = 7 * 24 * 60 * 60
	// defaultBufferSize is the channel capacity before events are dropped.
	defaultBufferSize = 256
)

// Recorder buffers events on a channel and flushes them to the KV store
// from a background goroutine.
type Recorder struct {
	kv        store.KVStore
	events    chan Event
	seq       atomic.Uint64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRecorder starts a recorder flushing into the given store.
func NewRecorder(kv store.KVStore) *Recorder {
	r := &Recorder{
		kv:     kv,
		events: make(chan Event, defaultBufferSize),
	}
	r.wg.Add(1)
	go r.flush()
	return r
}

// Record queues an event. If the buffer is full the event is dropped; the
// audit trail is advisory, never load-bearing.
func (r *Recorder) Record(kind EventKind, scanID, detail string) {
	ev := Event{
		Time:   time.Now().UTC(),
		Seq:    r.seq.Add(1),
		Kind:   kind,
		ScanID: scanID,
		Detail: detail,
	}
	select {
	case r.events <- ev:
	default:
		slog.Debug("Audit buffer full, dropping event", "kind", kind, "scan_id", scanID)
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.events)
	})
	r.wg.Wait()
}

func (r *Recorder) flush() {
	defer r.wg.Done()
	for ev := range r.events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		key := fmt.Sprintf("%s:%s:%d", keyPrefix, ev.ScanID, ev.Seq)
		if err := r.kv.SetValueWithTTL(context.Background(), key, string(data), entryTTL); err != nil {
			slog.Debug("Audit write failed", "key", key, "error", err)
		}
	}
}

// Events fetches the stored trail for one scan, oldest first.
func Events(ctx context.Context, kv store.KVStore, scanID string) ([]Event, error) {
	keys, err := kv.ListKeys(ctx, fmt.Sprintf("%s:%s:*", keyPrefix, scanID))
	if err != nil {
		return nil, fmt.Errorf("list audit entries for scan %s: %w", scanID, err)
	}

	events := make([]Event, 0, len(keys))
	for _, key := range keys {
		value, err := kv.GetValue(ctx, key)
		if err != nil {
			continue // entry expired between KEYS and GET
		}
		var ev Event
		if err := json.Unmarshal([]byte(value), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}
