package store

import (
	"testing"
	"time"

	"github.com/conscious-bot/planning-core/internal/types"
)

func TestSet_StrictFinalize_WarnsOnUnfinalizedNewTask(t *testing.T) {
	// Existing-id updates are exempt, new ids without origin warn (we only
	// assert it does not panic and the task is still persisted — the warning
	// itself is a log line, not an error return, per spec §4.1).
	s := New(true)
	task := &types.Task{ID: "t1", Title: "x"}
	s.Set(task, nil)
	if got := s.Get("t1"); got == nil {
		t.Fatalf("expected task to be persisted despite missing origin")
	}
}

func TestSet_ExistingIdUpdate_NoTripwire(t *testing.T) {
	s := New(true)
	task := &types.Task{ID: "t1", Title: "x", Metadata: types.Metadata{Origin: &types.Origin{Kind: types.OriginAPI}}}
	s.Set(task, nil)
	task.Title = "y"
	s.Set(task, nil) // existing id, exempt regardless of origin presence
	if got := s.Get("t1"); got.Title != "y" {
		t.Fatalf("expected update to apply")
	}
}

func TestDelete_MissingID_ReturnsFalse(t *testing.T) {
	s := New(false)
	if s.Delete("missing") {
		t.Fatalf("expected false for missing id")
	}
}

func TestDelete_PurgesProgress(t *testing.T) {
	s := New(false)
	s.Set(&types.Task{ID: "t1", Progress: 0.5}, nil)
	s.Delete("t1")
	if _, ok := s.Progress("t1"); ok {
		t.Fatalf("expected progress entry purged on delete")
	}
}

func TestReserveDedupeKey_ConcurrentReservationFails(t *testing.T) {
	s := New(false)
	if !s.ReserveDedupeKey("k") {
		t.Fatalf("expected first reservation to succeed")
	}
	if s.ReserveDedupeKey("k") {
		t.Fatalf("expected second concurrent reservation to fail")
	}
	s.ReleaseDedupeKey("k")
	if !s.ReserveDedupeKey("k") {
		t.Fatalf("expected reservation to succeed after release")
	}
}

func TestFindSimilar_SterlingIRDedupesByDigest(t *testing.T) {
	s := New(false)
	s.Set(&types.Task{
		ID:   "t1",
		Type: types.TypeSterlingIR,
		Metadata: types.Metadata{
			Sterling: &types.Sterling{CommittedIRDigest: "abc123"},
		},
	}, nil)
	got := s.FindSimilar(FindSimilarPartial{StickyIRDigest: "abc123"})
	if got == nil || got.ID != "t1" {
		t.Fatalf("expected to find t1 by digest")
	}
	if s.FindSimilar(FindSimilarPartial{StickyIRDigest: "nope"}) != nil {
		t.Fatalf("expected no match for unknown digest")
	}
}

func TestFindSimilar_TitleCaseAndStatus(t *testing.T) {
	s := New(false)
	st := types.StatusPending
	s.Set(&types.Task{ID: "t1", Title: "Mine Iron Ore", Status: st}, nil)
	got := s.FindSimilar(FindSimilarPartial{Title: "mine iron ore", Status: &st})
	if got == nil || got.ID != "t1" {
		t.Fatalf("expected title-case match regardless of case")
	}
}

func TestFindSimilar_TypeSourceTitleOverlap(t *testing.T) {
	s := New(false)
	s.Set(&types.Task{ID: "t1", Title: "gather oak log wood", Type: types.TypeGathering, Source: types.SourceAutonomous}, nil)
	got := s.FindSimilar(FindSimilarPartial{Title: "gather oak log", Type: types.TypeGathering, Source: types.SourceAutonomous})
	if got == nil || got.ID != "t1" {
		t.Fatalf("expected >=70%% word overlap match")
	}
}

func TestGetTasks_FiltersByStatusTypeSourceAndLimit(t *testing.T) {
	s := New(false)
	for i := 0; i < 3; i++ {
		s.Set(&types.Task{ID: string(rune('a' + i)), Status: types.StatusActive, Type: types.TypeMining, Source: types.SourceAutonomous}, nil)
	}
	s.Set(&types.Task{ID: "z", Status: types.StatusPaused}, nil)

	active := types.StatusActive
	got := s.GetTasks(Filter{Status: &active, Limit: 2})
	if len(got) != 2 {
		t.Fatalf("expected limit=2 to cap results, got %d", len(got))
	}
}

func TestSet_CommitsTerminalTaskToHistory(t *testing.T) {
	s := New(false)
	s.Set(&types.Task{ID: "t1", Status: types.StatusCompleted}, nil)
	hist := s.History()
	if len(hist) != 1 || hist[0].ID != "t1" {
		t.Fatalf("expected terminal commit to append to history ring")
	}
}

func TestSet_UpdatesMetadataUpdatedAt(t *testing.T) {
	s := New(false)
	before := time.Now().UTC()
	s.Set(&types.Task{ID: "t1"}, nil)
	got := s.Get("t1")
	if got.Metadata.UpdatedAt.Before(before) {
		t.Fatalf("expected UpdatedAt to be stamped at commit time")
	}
}
