package session

import (
	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
)

// History is one layer's bounded linear undo/redo stack of full snapshots.
// The top of the undo stack is always the layer's current committed state,
// so undoing needs at least two entries: the current one plus a prior one.
type History struct {
	undo []model.Snapshot
	redo []model.Snapshot
	cap  int
}

// NewHistory returns an empty history bounded to depth snapshots.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = 20
	}
	return &History{cap: depth}
}

// Commit pushes a new committed state, evicting the oldest entry beyond
// capacity and invalidating any redo branch.
func (h *History) Commit(snap model.Snapshot) {
	if len(h.undo) >= h.cap {
		h.undo = append(h.undo[:0], h.undo[1:]...)
		h.undo = h.undo[:h.cap-1]
	}
	h.undo = append(h.undo, snap)
	h.redo = h.redo[:0]
}

// Undo pops the current state onto the redo stack and returns the newly
// exposed prior state.
func (h *History) Undo() (model.Snapshot, error) {
	if len(h.undo) < 2 {
		return nil, errs.ErrNothingToUndo
	}
	top := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, top)
	return h.undo[len(h.undo)-1], nil
}

// Redo moves the most recently undone state back and returns it.
func (h *History) Redo() (model.Snapshot, error) {
	if len(h.redo) == 0 {
		return nil, errs.ErrNothingToRedo
	}
	top := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, top)
	return top, nil
}

// Depth reports the current undo stack size.
func (h *History) Depth() int { return len(h.undo) }

// RedoDepth reports the current redo stack size.
func (h *History) RedoDepth() int { return len(h.redo) }
