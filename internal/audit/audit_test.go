package audit

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/conscious-bot/planning-core/internal/types"
)

func TestRecordDispatch_AppendsJSONLLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trail.jsonl")
	trail := Open(path)
	if trail == nil {
		t.Fatalf("expected trail to open")
	}
	defer trail.Close()

	trail.RecordDispatch(types.AuditEntry{Origin: "executor", ActionType: "craft_item", OK: true})
	trail.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one JSONL line, got %d", count)
	}
}

func TestRecordDispatch_NilTrailIsNoop(t *testing.T) {
	var trail *Trail
	trail.RecordDispatch(types.AuditEntry{})
	trail.RecordLifecycleEvent(types.LifecycleEvent{})
	trail.Close()
}
