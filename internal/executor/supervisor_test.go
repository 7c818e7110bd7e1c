package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/gateway"
	"github.com/conscious-bot/planning-core/internal/store"
	"github.com/conscious-bot/planning-core/internal/types"
)

type fakeCommitter struct{ proceed bool }

func (f fakeCommitter) StartTaskStep(ctx context.Context, taskID, stepID string) (bool, error) {
	return f.proceed, nil
}

type connectedBot struct{}

func (connectedBot) IsConnected() bool { return true }

func TestSupervisor_PicksEligibleTaskAndDispatches(t *testing.T) {
	var dispatched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dispatched = true
		w.Write([]byte(`{"success":true,"result":{"success":true}}`))
	}))
	defer srv.Close()

	st := store.New(false)
	task := &types.Task{
		ID:     "t1",
		Type:   types.TypeCrafting,
		Status: types.StatusActive,
		Steps:  []types.Step{{ID: "s1", Meta: types.StepMeta{Leaf: "craft_item"}}},
		Parameters: map[string]any{"item": "stick"},
	}
	st.Set(task, &store.SetOpts{AllowUnfinalized: true})

	cfg := &config.Config{ExecutorMode: config.ModeLive, PollIntervalMs: 10, MaxStepsPerMinute: 10, MaxBackoffMs: 1000}
	gw := gateway.New(cfg, srv.URL, connectedBot{}, nil)
	sup := NewSupervisor(cfg, st, gw, fakeCommitter{proceed: true}, nil,
		map[string]struct{}{"craft_item": {}}, func() *Position { return nil }, func() bool { return true })

	if err := sup.runCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dispatched {
		t.Fatalf("expected dispatch to reach the gateway")
	}
}

func TestSupervisor_RigGRejectionSkipsDispatch(t *testing.T) {
	var dispatched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dispatched = true
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	st := store.New(false)
	task := &types.Task{
		ID: "t1", Type: types.TypeCrafting, Status: types.StatusActive,
		Steps:      []types.Step{{ID: "s1", Meta: types.StepMeta{Leaf: "craft_item"}}},
		Parameters: map[string]any{"item": "stick"},
	}
	st.Set(task, &store.SetOpts{AllowUnfinalized: true})

	cfg := &config.Config{ExecutorMode: config.ModeLive, PollIntervalMs: 10, MaxStepsPerMinute: 10, MaxBackoffMs: 1000}
	gw := gateway.New(cfg, srv.URL, connectedBot{}, nil)
	sup := NewSupervisor(cfg, st, gw, fakeCommitter{proceed: false}, nil,
		map[string]struct{}{"craft_item": {}}, func() *Position { return nil }, func() bool { return true })

	if err := sup.runCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dispatched {
		t.Fatalf("expected no dispatch when Rig-G gate rejects")
	}
}

func TestSupervisor_NoEligibleTaskIsNoop(t *testing.T) {
	st := store.New(false)
	cfg := &config.Config{ExecutorMode: config.ModeLive, MaxStepsPerMinute: 10, MaxBackoffMs: 1000}
	gw := gateway.New(cfg, "http://unused", connectedBot{}, nil)
	sup := NewSupervisor(cfg, st, gw, fakeCommitter{proceed: true}, nil, map[string]struct{}{}, func() *Position { return nil }, func() bool { return true })

	if err := sup.runCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("expected no error on empty store, got %v", err)
	}
}

func TestSupervisor_KillSwitchSkipsTick(t *testing.T) {
	st := store.New(false)
	cfg := &config.Config{ExecutorMode: config.ModeLive, PollIntervalMs: 10, MaxStepsPerMinute: 10, MaxBackoffMs: 1000}
	gw := gateway.New(cfg, "http://unused", connectedBot{}, nil)
	sup := NewSupervisor(cfg, st, gw, fakeCommitter{proceed: true}, nil, map[string]struct{}{}, func() *Position { return nil }, func() bool { return false })

	sup.tick(context.Background()) // must not panic or touch anything with the kill switch off
}
