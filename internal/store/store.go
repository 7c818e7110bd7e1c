// Package store implements C1, the Task Store: an in-memory keyed store
// with a dedup index, history ring, and progress map. Set is the sole
// commit point — callers mutate the in-memory Task object's fields and then
// call Set, which is how multi-field atomic commits (status+hold, etc.) are
// achieved without the store itself knowing about those fields.
package store

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/conscious-bot/planning-core/internal/types"
)

const defaultHistoryLimit = 500

// SetOpts configures a single Set call.
type SetOpts struct {
	// AllowUnfinalized suppresses the strict-finalize tripwire warning for
	// this call (used by C5's internal rebuild steps that commit a task
	// before origin stamping has run).
	AllowUnfinalized bool
}

// Filter narrows GetTasks results.
type Filter struct {
	Status *types.Status
	Type   *types.TaskType
	Source *types.Source
	Limit  int
}

// historyEntry is one ring-buffer slot: a snapshot of a task taken by a Set
// that commits it in a terminal or unplannable status.
type historyEntry struct {
	Task     types.Task
	EnteredAt time.Time
}

// Store is the single persistence boundary for tasks (spec §4.1).
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]*types.Task
	dedupe  map[string]struct{} // reserved dedupe keys
	byDigest map[string]string  // sterling digest -> task id
	history []historyEntry
	historyLimit int
	progress map[string]float64

	strictFinalize bool
}

// New creates an empty Store. strictFinalize gates the tripwire in Set.
func New(strictFinalize bool) *Store {
	return &Store{
		tasks:        make(map[string]*types.Task),
		dedupe:       make(map[string]struct{}),
		byDigest:     make(map[string]string),
		historyLimit: defaultHistoryLimit,
		progress:     make(map[string]float64),
		strictFinalize: strictFinalize,
	}
}

// Set is the sole commit point. A new id persisted without metadata.Origin
// and without opts.AllowUnfinalized emits a structured warning in
// strict-finalize mode (a tripwire for bypass paths) — existing-id updates
// are exempt.
func (s *Store) Set(task *types.Task, opts *SetOpts) {
	if task == nil {
		return
	}
	if opts == nil {
		opts = &SetOpts{}
	}

	s.mu.Lock()
	_, existed := s.tasks[task.ID]
	if s.strictFinalize && !existed && task.Metadata.Origin == nil && !opts.AllowUnfinalized {
		log.Printf("[STORE] WARNING: task %s persisted without metadata.origin (strict-finalize bypass)", task.ID)
	}

	task.Metadata.UpdatedAt = time.Now().UTC()
	s.tasks[task.ID] = task

	if task.Type == types.TypeSterlingIR && task.Metadata.Sterling != nil && task.Metadata.Sterling.CommittedIRDigest != "" {
		s.byDigest[task.Metadata.Sterling.CommittedIRDigest] = task.ID
	}

	if task.Status.IsTerminal() || task.Status == types.StatusUnplannable {
		s.appendHistory(*task)
	}
	s.progress[task.ID] = task.Progress
	s.mu.Unlock()
}

func (s *Store) appendHistory(t types.Task) {
	s.history = append(s.history, historyEntry{Task: t, EnteredAt: time.Now().UTC()})
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
}

// Get returns the live task object for id, or nil.
func (s *Store) Get(id string) *types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[id]
}

// Has reports whether id is present.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[id]
	return ok
}

// Delete removes id, purging its progress entry. Returns false if id was
// not present — the one fallible outcome in this store (spec §4.1).
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	delete(s.progress, id)
	return true
}

// GetAll returns every task currently stored.
func (s *Store) GetAll() []*types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// GetTasks returns tasks matching f, unbounded unless Limit>0. Results come
// in map iteration order, so which tasks a Limit keeps is not defined.
func (s *Store) GetTasks(f Filter) []*types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Task
	for _, t := range s.tasks {
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.Source != nil && t.Source != *f.Source {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// ReserveDedupeKey attempts to exclusively reserve key, returning false if
// already reserved. This is a lightweight mutual-exclusion primitive that
// defeats concurrent duplicate-creation attempts — not a distributed lock.
func (s *Store) ReserveDedupeKey(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedupe[key]; ok {
		return false
	}
	s.dedupe[key] = struct{}{}
	return true
}

// ReleaseDedupeKey frees a previously reserved key. Safe to call on a key
// that was never reserved.
func (s *Store) ReleaseDedupeKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dedupe, key)
}

// FindByDedupeKey looks up a sterling_ir task by its committed IR digest.
func (s *Store) FindByDedupeKey(digest string) *types.Task {
	s.mu.RLock()
	id, ok := s.byDigest[digest]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.Get(id)
}

// Progress returns the last-committed progress value for id.
func (s *Store) Progress(id string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[id]
	return p, ok
}

// History returns a copy of the terminal/unplannable-state history ring,
// oldest first.
func (s *Store) History() []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Task, len(s.history))
	for i, e := range s.history {
		out[i] = e.Task
	}
	return out
}

// Stats is a rollup snapshot for dashboards/tests.
type Stats struct {
	Total      int
	ByStatus   map[types.Status]int
	ByType     map[types.TaskType]int
}

// Rollup computes aggregate statistics over the live task set.
func (s *Store) Rollup() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{ByStatus: make(map[types.Status]int), ByType: make(map[types.TaskType]int)}
	for _, t := range s.tasks {
		st.Total++
		st.ByStatus[t.Status]++
		st.ByType[t.Type]++
	}
	return st
}

// FindSimilarPartial is the shape findSimilar matches against: only the
// fields relevant to dedup comparison need be populated.
type FindSimilarPartial struct {
	Title                string
	Type                 types.TaskType
	Source               types.Source
	Status               *types.Status
	StickyIRDigest       string
	ResolvedRequirement  string
}

// FindSimilar implements the dedup rules in spec §4.1:
//  1. sterling_ir tasks dedupe by sterling.committedIrDigest.
//  2. otherwise by title-case + status.
//  3. otherwise by type+source + 70% title-word overlap.
//  4. otherwise by equivalent resolved requirement.
func (s *Store) FindSimilar(partial FindSimilarPartial) *types.Task {
	if partial.StickyIRDigest != "" {
		if t := s.FindByDedupeKey(partial.StickyIRDigest); t != nil {
			return t
		}
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	normTitle := strings.ToLower(strings.TrimSpace(partial.Title))
	for _, t := range s.tasks {
		if strings.ToLower(strings.TrimSpace(t.Title)) == normTitle {
			if partial.Status == nil || t.Status == *partial.Status {
				return t
			}
		}
	}

	if partial.Type != "" {
		words := titleWords(partial.Title)
		for _, t := range s.tasks {
			if t.Type != partial.Type || t.Source != partial.Source {
				continue
			}
			if titleOverlap(words, titleWords(t.Title)) >= 0.70 {
				return t
			}
		}
	}

	if partial.ResolvedRequirement != "" {
		for _, t := range s.tasks {
			if t.Metadata.Requirement == nil {
				continue
			}
			if rr, ok := t.Metadata.Requirement["resolved"].(string); ok && rr == partial.ResolvedRequirement {
				return t
			}
		}
	}
	return nil
}

func titleWords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

func titleOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(shared) / float64(denom)
}
