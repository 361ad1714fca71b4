package session

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
)

func TestHistory_UndoRedoRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHistory(20)
	h.Commit(model.Snapshot("blank"))
	h.Commit(model.Snapshot("stroke-1"))

	prior, err := h.Undo()
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !bytes.Equal(prior, []byte("blank")) {
		t.Fatalf("Undo exposed %q, want blank", prior)
	}

	again, err := h.Redo()
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if !bytes.Equal(again, []byte("stroke-1")) {
		t.Fatalf("Redo restored %q, want the pre-undo state", again)
	}
}

func TestHistory_UndoAtFloorFails(t *testing.T) {
	t.Parallel()

	h := NewHistory(20)
	if _, err := h.Undo(); !errors.Is(err, errs.ErrNothingToUndo) {
		t.Fatalf("empty history Undo: %v, want ErrNothingToUndo", err)
	}

	h.Commit(model.Snapshot("only"))
	if _, err := h.Undo(); !errors.Is(err, errs.ErrNothingToUndo) {
		t.Fatalf("single-entry Undo: %v, want ErrNothingToUndo", err)
	}
}

func TestHistory_CommitClearsRedo(t *testing.T) {
	t.Parallel()

	h := NewHistory(20)
	h.Commit(model.Snapshot("a"))
	h.Commit(model.Snapshot("b"))
	if _, err := h.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	h.Commit(model.Snapshot("c"))

	if _, err := h.Redo(); !errors.Is(err, errs.ErrNothingToRedo) {
		t.Fatalf("Redo after intervening commit: %v, want ErrNothingToRedo", err)
	}
}

func TestHistory_CapacityEvictsOldest(t *testing.T) {
	t.Parallel()

	h := NewHistory(20)
	for i := 0; i < 21; i++ {
		h.Commit(model.Snapshot(fmt.Sprintf("s%d", i)))
	}
	if h.Depth() != 20 {
		t.Fatalf("depth = %d, want 20", h.Depth())
	}

	// Unwind fully: the deepest reachable state must be s1 (s0 evicted).
	var last model.Snapshot
	for {
		snap, err := h.Undo()
		if err != nil {
			break
		}
		last = snap
	}
	if !bytes.Equal(last, []byte("s1")) {
		t.Fatalf("oldest surviving snapshot = %q, want s1", last)
	}
}

func TestHistory_RedoEmptyFails(t *testing.T) {
	t.Parallel()

	h := NewHistory(20)
	h.Commit(model.Snapshot("a"))
	if _, err := h.Redo(); !errors.Is(err, errs.ErrNothingToRedo) {
		t.Fatalf("Redo with no undone state: %v, want ErrNothingToRedo", err)
	}
}
