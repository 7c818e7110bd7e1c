// Package audit provides the structured JSONL trail for the execution
// gateway's per-dispatch audit entries, adapted from the teacher's
// tasklog.Registry: one append-only file, nil-safe methods, mutex-guarded
// writes, RFC3339Nano timestamps.
package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conscious-bot/planning-core/internal/bus"
	"github.com/conscious-bot/planning-core/internal/types"
)

// Trail is a single append-only JSONL sink for dispatch audit entries and
// tapped lifecycle events. Unlike tasklog.Registry there is one file per
// process, not one per task — the gateway dispatches many actions per task
// over its lifetime, and mixing them into a single stream is what makes
// the trail useful for postmortem review.
//
// Expectations:
//   - All methods are nil-safe (no-op when called on nil *Trail)
//   - Concurrent writes are safe (mutex-protected)
//   - A marshal or write error is logged and swallowed, never returned
type Trail struct {
	mu sync.Mutex
	f  *os.File
}

// Open creates (or appends to) the JSONL file at path.
func Open(path string) *Trail {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("[AUDIT] could not create dir for %s: %v", path, err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[AUDIT] could not open %s: %v", path, err)
		return nil
	}
	return &Trail{f: f}
}

// RecordDispatch appends one gateway dispatch audit entry.
func (t *Trail) RecordDispatch(entry types.AuditEntry) {
	if t == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	t.write(entry)
}

// RecordLifecycleEvent appends a tapped lifecycle event (spec §6).
// Audit listeners must never break the emitting component — any panic
// recovered here is logged, not propagated.
func (t *Trail) RecordLifecycleEvent(e types.LifecycleEvent) {
	if t == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AUDIT] recovered panic recording lifecycle event: %v", r)
		}
	}()
	t.write(e)
}

// Tap subscribes to every event on b and records lifecycle events as they
// arrive, until stop is closed. Intended to run in its own goroutine.
func (t *Trail) Tap(b *bus.Bus, stop <-chan struct{}) {
	if t == nil || b == nil {
		return
	}
	ch := b.NewTap()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if le, ok := ev.Payload.(types.LifecycleEvent); ok {
				t.RecordLifecycleEvent(le)
			}
		}
	}
}

func (t *Trail) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[AUDIT] marshal error: %v", err)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return
	}
	if _, err := fmt.Fprintf(t.f, "%s\n", data); err != nil {
		log.Printf("[AUDIT] write error: %v", err)
	}
}

// Close flushes and closes the underlying file. Safe to call on nil.
func (t *Trail) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f != nil {
		_ = t.f.Close()
		t.f = nil
	}
}
