package session

import (
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
)

// Sink is the opaque drawing capability backing one layer surface.
// The engine never inspects pixels; it only replays segments and moves
// snapshots around.
type Sink interface {
	StrokeLine(from, to model.Point, style model.StrokeStyle)
	Fill(colorHex string, alpha float64)
	Clear()
	Snapshot() (model.Snapshot, error)
	Restore(model.Snapshot) error
}

// SinkFactory produces a fresh surface for a newly created layer.
type SinkFactory func(w, h int) Sink

type layerEntry struct {
	meta model.Layer
	surf Sink
}

// layerStore owns the ordered layer collection of one canvas.
// Not safe for concurrent use; the session serializes access.
type layerStore struct {
	order   []string
	byID    map[string]*layerEntry
	newSink SinkFactory
	w, h    int
	baseID  string
}

func newLayerStore(w, h int, baseID string, f SinkFactory) *layerStore {
	s := &layerStore{
		byID:    make(map[string]*layerEntry),
		newSink: f,
		w:       w,
		h:       h,
		baseID:  baseID,
	}
	// The base layer exists for the whole session lifetime.
	_, _ = s.create(baseID)
	return s
}

// create adds a layer under exactly the given id.
func (s *layerStore) create(id string) (model.Layer, error) {
	if _, ok := s.byID[id]; ok {
		return model.Layer{}, errs.ErrDuplicateIdentity
	}
	meta := model.Layer{
		ID:      id,
		Order:   len(s.order),
		Visible: true,
		Opacity: 1,
	}
	s.byID[id] = &layerEntry{meta: meta, surf: s.newSink(s.w, s.h)}
	s.order = append(s.order, id)
	return meta, nil
}

// createUnique adds a layer under the proposed id, suffixing a monotonic
// ULID token if the id is taken.
func (s *layerStore) createUnique(proposed string) (model.Layer, error) {
	if _, ok := s.byID[proposed]; ok {
		proposed = proposed + "-" + ulid.Make().String()
	}
	return s.create(proposed)
}

func (s *layerStore) delete(id string) error {
	if _, ok := s.byID[id]; !ok {
		return errs.ErrUnknownLayer
	}
	if id == s.baseID {
		return errs.ErrCannotDeleteBaseLayer
	}
	if len(s.order) == 1 {
		return errs.ErrLastLayerRemaining
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.renumber()
	return nil
}

// rename rebinds the entry under the new id. The surface and metadata move
// unchanged; callers are responsible for moving history and active-layer
// references in the same critical section.
func (s *layerStore) rename(oldID, newID string) error {
	e, ok := s.byID[oldID]
	if !ok {
		return errs.ErrUnknownLayer
	}
	if _, taken := s.byID[newID]; taken {
		return errs.ErrDuplicateIdentity
	}
	delete(s.byID, oldID)
	e.meta.ID = newID
	s.byID[newID] = e
	if oldID == s.baseID {
		s.baseID = newID
	}
	for i, v := range s.order {
		if v == oldID {
			s.order[i] = newID
			break
		}
	}
	return nil
}

func (s *layerStore) entry(id string) (*layerEntry, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, errs.ErrUnknownLayer
	}
	return e, nil
}

// top returns the id of the topmost layer in z-order.
func (s *layerStore) top() string { return s.order[len(s.order)-1] }

func (s *layerStore) list() []model.Layer {
	out := make([]model.Layer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].meta)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (s *layerStore) renumber() {
	for i, id := range s.order {
		s.byID[id].meta.Order = i
	}
}
