// Package session implements the authoritative collaborative canvas engine:
// connected participants, ordered layers, in-flight strokes, bounded undo
// history and the economy effects, kept consistent across peers through
// broadcast events and snapshot resynchronization.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/protocol"
)

// Economy validates and applies currency-gated purchases. Purchase must be
// atomic per user: check, debit and persistence happen as one unit, and no
// two purchases for the same user may interleave their check-and-apply steps.
type Economy interface {
	Catalog(ctx context.Context) ([]model.MarketplaceItem, error)
	Purchase(ctx context.Context, buyer model.User, itemID string) (model.MarketplaceItem, model.Receipt, error)
	// Refund returns a debit after a failed effect application.
	Refund(ctx context.Context, userID uuid.UUID, amount int64) error
}

// Config carries the session-wide invariants agreed by all participants.
type Config struct {
	Width         int
	Height        int
	UndoDepth     int
	FlushInterval time.Duration
	BaseLayerID   string
}

func (c *Config) withDefaults() {
	if c.Width <= 0 {
		c.Width = 800
	}
	if c.Height <= 0 {
		c.Height = 500
	}
	if c.UndoDepth <= 0 {
		c.UndoDepth = 20
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 75 * time.Millisecond
	}
	if c.BaseLayerID == "" {
		c.BaseLayerID = "base"
	}
}

// goldenOverlay is the golden power-up fill, matching the classic
// rgba(255,255,0,0.3) wash.
const (
	goldenOverlayColor = "#ffff00"
	goldenOverlayAlpha = 0.3
	goldenBlendMode    = "golden"
)

// Session owns all shared mutable state of one canvas: the participant
// registry, the layer store, per-layer undo history and open strokes.
// A single mutex serializes every operation; there is no ambient global
// state and no cross-session coordination.
type Session struct {
	cfg     Config
	log     *zap.Logger
	economy Economy

	mu      sync.Mutex
	reg     *registry
	layers  *layerStore
	history map[string]*History
	strokes map[strokeKey]*stroke
}

// New constructs a session with its permanent base layer and an initial
// blank snapshot committed, so the first stroke commit immediately makes
// undo possible.
func New(cfg Config, economy Economy, newSink SinkFactory, log *zap.Logger) (*Session, error) {
	cfg.withDefaults()
	s := &Session{
		cfg:     cfg,
		log:     log,
		economy: economy,
		reg:     newRegistry(),
		layers:  newLayerStore(cfg.Width, cfg.Height, cfg.BaseLayerID, newSink),
		history: make(map[string]*History),
		strokes: make(map[strokeKey]*stroke),
	}
	if err := s.initHistory(cfg.BaseLayerID); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) initHistory(layerID string) error {
	e, err := s.layers.entry(layerID)
	if err != nil {
		return err
	}
	snap, err := e.surf.Snapshot()
	if err != nil {
		return err
	}
	h := NewHistory(s.cfg.UndoDepth)
	h.Commit(snap)
	s.history[layerID] = h
	return nil
}

// Run drives the stroke flush ticker until ctx is cancelled. Buffered
// segment batches are relayed on each tick; drawEnd flushes ahead of it.
func (s *Session) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			s.flushLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Session) flushLocked() {
	for key, st := range s.strokes {
		if batch, ok := st.drain(key.layer); ok {
			s.reg.broadcast(batch, key.user)
		}
	}
}

// Join registers a participant and returns the state-snapshot handshake:
// the full layer list, the last committed snapshot per layer, the user list
// and the catalog. Everyone else receives the refreshed user list.
func (s *Session) Join(ctx context.Context, u model.User, out Outbox) (protocol.Joined, error) {
	catalog, err := s.economy.Catalog(ctx)
	if err != nil {
		return protocol.Joined{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ActiveLayer == "" {
		u.ActiveLayer = s.cfg.BaseLayerID
	}
	p, err := s.reg.add(u, out)
	if err != nil {
		return protocol.Joined{}, err
	}

	snapshots := make(map[string]model.Snapshot, len(s.history))
	for id, h := range s.history {
		if h.Depth() > 0 {
			snapshots[id] = h.undo[h.Depth()-1]
		}
	}
	joined := protocol.Joined{
		UserID:    p.user.ID.String(),
		Name:      p.user.Name,
		Role:      p.user.Role,
		Currency:  p.user.Currency,
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		Layers:    s.layers.list(),
		Snapshots: snapshots,
		Users:     s.reg.summaries(),
		Catalog:   catalog,
	}

	s.broadcastUsersLocked(p.user.ID)
	s.log.Info("joined",
		zap.String("user", p.user.Name),
		zap.String("role", string(p.user.Role)),
		zap.Int("participants", s.reg.size()),
	)
	return joined, nil
}

// Leave deregisters a participant, drops any open strokes and broadcasts the
// refreshed user list. Safe to call twice; the second call is a no-op.
func (s *Session) Leave(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.reg.remove(userID)
	if p == nil {
		return
	}
	for key := range s.strokes {
		if key.user == userID {
			delete(s.strokes, key)
		}
	}
	s.broadcastUsersLocked()
	s.log.Info("left", zap.String("user", p.user.Name), zap.Int("participants", s.reg.size()))
}

func (s *Session) broadcastUsersLocked(except ...uuid.UUID) {
	users := s.reg.summaries()
	s.reg.broadcast(protocol.UserList{Users: users, Count: len(users)}, except...)
}

// Chat fans a message out to all participants, sender included.
func (s *Session) Chat(userID uuid.UUID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.reg.get(userID)
	if err != nil {
		return err
	}
	s.reg.broadcast(protocol.ChatBroadcast{Message: model.ChatMessage{
		Author: p.user.Name,
		Text:   text,
		SentAt: time.Now(),
	}})
	return nil
}

// requireArtist resolves the participant and rejects non-artists before any
// state is touched, so denied actions cause no change and no broadcast.
func (s *Session) requireArtist(userID uuid.UUID) (*participant, error) {
	p, err := s.reg.get(userID)
	if err != nil {
		return nil, err
	}
	if p.user.Role != model.RoleArtist {
		return nil, errs.ErrPermissionDenied
	}
	return p, nil
}

// CreateLayer adds a layer, suffixing the proposed id on collision, and
// announces it to every participant (the requester included, since the
// canonical id may differ from the proposal).
func (s *Session) CreateLayer(userID uuid.UUID, proposed string) (model.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireArtist(userID); err != nil {
		return model.Layer{}, err
	}
	meta, err := s.layers.createUnique(proposed)
	if err != nil {
		return model.Layer{}, err
	}
	if err := s.initHistory(meta.ID); err != nil {
		return model.Layer{}, err
	}
	s.reg.broadcast(protocol.RemoteAddLayer{Layer: meta})
	return meta, nil
}

// DeleteLayer removes a layer and repoints every participant whose active
// layer was the deleted one at the topmost remaining layer.
func (s *Session) DeleteLayer(userID uuid.UUID, layerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireArtist(userID); err != nil {
		return err
	}
	if err := s.layers.delete(layerID); err != nil {
		return err
	}
	delete(s.history, layerID)
	for key := range s.strokes {
		if key.layer == layerID {
			delete(s.strokes, key)
		}
	}
	fallback := s.layers.top()
	for _, p := range s.reg.byID {
		if p.user.ActiveLayer == layerID {
			p.user.ActiveLayer = fallback
		}
	}
	s.reg.broadcast(protocol.RemoteDeleteLayer{Layer: layerID})
	return nil
}

// RenameLayer moves a layer to a new id. The undo history and every
// participant's active-layer reference move in the same critical section,
// so concurrently held references never dangle.
func (s *Session) RenameLayer(userID uuid.UUID, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireArtist(userID); err != nil {
		return err
	}
	if err := s.layers.rename(oldID, newID); err != nil {
		return err
	}
	if h, ok := s.history[oldID]; ok {
		delete(s.history, oldID)
		s.history[newID] = h
	}
	for key, st := range s.strokes {
		if key.layer == oldID {
			delete(s.strokes, key)
			s.strokes[strokeKey{user: key.user, layer: newID}] = st
		}
	}
	for _, p := range s.reg.byID {
		if p.user.ActiveLayer == oldID {
			p.user.ActiveLayer = newID
		}
	}
	s.reg.broadcast(protocol.RemoteRenameLayer{Old: oldID, New: newID})
	return nil
}

// SwitchLayer changes the sender's active layer.
func (s *Session) SwitchLayer(userID uuid.UUID, layerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.reg.get(userID)
	if err != nil {
		return err
	}
	if _, err := s.layers.entry(layerID); err != nil {
		return err
	}
	p.user.ActiveLayer = layerID
	s.reg.broadcast(protocol.RemoteSwitchLayer{User: p.user.Name, Layer: layerID}, userID)
	return nil
}

// UpdateLayerState changes visibility and/or opacity and announces the new
// layer state to everyone.
func (s *Session) UpdateLayerState(userID uuid.UUID, layerID string, visible *bool, opacity *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireArtist(userID); err != nil {
		return err
	}
	e, err := s.layers.entry(layerID)
	if err != nil {
		return err
	}
	if visible != nil {
		e.meta.Visible = *visible
	}
	if opacity != nil {
		e.meta.Opacity = *opacity
	}
	s.reg.broadcast(protocol.RemoteLayerState{Layer: e.meta})
	return nil
}

// DrawStart opens a stroke for (user, layer) and relays it immediately.
// A second drawStart for an already open pair is an out-of-state event.
func (s *Session) DrawStart(userID uuid.UUID, layerID string, at model.Point, style model.StrokeStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireArtist(userID)
	if err != nil {
		return err
	}
	if _, err := s.layers.entry(layerID); err != nil {
		return err
	}
	key := strokeKey{user: userID, layer: layerID}
	if _, open := s.strokes[key]; open {
		return errs.ErrProtocolViolation
	}
	s.strokes[key] = &stroke{author: p.user.Name}
	s.reg.broadcast(protocol.RemoteDrawStart{
		Author: p.user.Name,
		Layer:  layerID,
		At:     at,
		Style:  style,
	}, userID)
	return nil
}

// Draw applies one batch of segments, in emission order, to the
// authoritative surface and buffers them for the next relay flush.
func (s *Session) Draw(userID uuid.UUID, layerID string, segs []protocol.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireArtist(userID); err != nil {
		return err
	}
	st, open := s.strokes[strokeKey{user: userID, layer: layerID}]
	if !open {
		return errs.ErrProtocolViolation
	}
	e, err := s.layers.entry(layerID)
	if err != nil {
		return err
	}
	for _, seg := range segs {
		e.surf.StrokeLine(seg.From, seg.To, seg.Style)
	}
	st.buffer(segs)
	return nil
}

// DrawEnd closes the stroke: flushes the remaining batch ahead of the
// ticker, relays the end marker, and commits the layer raster as a new undo
// entry.
func (s *Session) DrawEnd(userID uuid.UUID, layerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.requireArtist(userID)
	if err != nil {
		return err
	}
	key := strokeKey{user: userID, layer: layerID}
	st, open := s.strokes[key]
	if !open {
		return errs.ErrProtocolViolation
	}
	delete(s.strokes, key)
	if batch, ok := st.drain(layerID); ok {
		s.reg.broadcast(batch, userID)
	}
	s.reg.broadcast(protocol.RemoteDrawEnd{Author: p.user.Name, Layer: layerID}, userID)
	return s.commitLocked(layerID)
}

func (s *Session) commitLocked(layerID string) error {
	e, err := s.layers.entry(layerID)
	if err != nil {
		return err
	}
	snap, err := e.surf.Snapshot()
	if err != nil {
		return err
	}
	h, ok := s.history[layerID]
	if !ok {
		h = NewHistory(s.cfg.UndoDepth)
		s.history[layerID] = h
	}
	h.Commit(snap)
	return nil
}

// Undo restores the previous committed snapshot and broadcasts it to every
// participant. The snapshot broadcast is the one strong-consistency
// primitive: whatever drifted through lost stroke events converges here.
func (s *Session) Undo(userID uuid.UUID, layerID string) error {
	return s.restore(userID, layerID, func(h *History) (model.Snapshot, error) { return h.Undo() })
}

// Redo reapplies the most recently undone snapshot and broadcasts it.
func (s *Session) Redo(userID uuid.UUID, layerID string) error {
	return s.restore(userID, layerID, func(h *History) (model.Snapshot, error) { return h.Redo() })
}

func (s *Session) restore(userID uuid.UUID, layerID string, step func(*History) (model.Snapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireArtist(userID); err != nil {
		return err
	}
	e, err := s.layers.entry(layerID)
	if err != nil {
		return err
	}
	h, ok := s.history[layerID]
	if !ok {
		return errs.ErrNothingToUndo
	}
	snap, err := step(h)
	if err != nil {
		return err
	}
	if err := e.surf.Restore(snap); err != nil {
		return err
	}
	s.reg.broadcast(protocol.LayerSnapshot{Layer: layerID, Snapshot: snap})
	return nil
}

// Purchase runs the atomic economy transaction and applies the item effect.
// The debit happens inside the economy engine under its per-user serialization;
// the session lock is not held across the persistence round trip. If the
// buyer disconnected or the effect can no longer apply, the debit is refunded.
func (s *Session) Purchase(ctx context.Context, userID uuid.UUID, itemID string) (model.Receipt, error) {
	s.mu.Lock()
	p, err := s.reg.get(userID)
	if err != nil {
		s.mu.Unlock()
		return model.Receipt{}, err
	}
	buyer := p.user
	s.mu.Unlock()

	item, receipt, err := s.economy.Purchase(ctx, buyer, itemID)
	if err != nil {
		return model.Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err = s.reg.get(userID)
	if err != nil {
		// Buyer disconnected between debit and apply.
		s.refund(userID, item.Price)
		return model.Receipt{}, errs.ErrNotFound
	}
	p.user.Currency = receipt.Balance

	if err := s.applyEffectLocked(p, item); err != nil {
		p.user.Currency = s.refund(userID, item.Price)
		return model.Receipt{}, err
	}
	s.log.Info("purchase",
		zap.String("user", p.user.Name),
		zap.String("item", item.ID),
		zap.Int64("balance", receipt.Balance),
	)
	return receipt, nil
}

// refund returns the debited amount and yields the restored balance.
func (s *Session) refund(userID uuid.UUID, amount int64) int64 {
	if err := s.economy.Refund(context.Background(), userID, amount); err != nil {
		s.log.Error("refund failed", zap.String("user", userID.String()), zap.Error(err))
	}
	if p, err := s.reg.get(userID); err == nil {
		return p.user.Currency + amount
	}
	return 0
}

func (s *Session) applyEffectLocked(p *participant, item model.MarketplaceItem) error {
	switch item.Effect.Kind {
	case model.EffectBrushSizeGrant:
		// Tool grant applies to the buyer's session only; the receipt (with
		// the effect definition in the catalog) is the whole server-side story.
		return nil

	case model.EffectClearActiveLayer:
		e, err := s.layers.entry(p.user.ActiveLayer)
		if err != nil {
			return err
		}
		e.surf.Clear()
		if err := s.commitLocked(p.user.ActiveLayer); err != nil {
			return err
		}
		s.reg.broadcast(protocol.RemoteClear{User: p.user.Name, Layer: p.user.ActiveLayer}, p.user.ID)
		return nil

	case model.EffectGoldenPowerUp:
		e, err := s.layers.entry(p.user.ActiveLayer)
		if err != nil {
			return err
		}
		layerID := e.meta.ID
		prior := e.meta.BlendMode // captured now, restored verbatim at expiry
		e.meta.BlendMode = goldenBlendMode
		s.reg.broadcast(protocol.RemotePowerUp{
			User:       p.user.Name,
			Layer:      layerID,
			DurationMs: item.Effect.Duration.Milliseconds(),
			Color:      goldenOverlayColor,
			Alpha:      goldenOverlayAlpha,
		}, p.user.ID)
		s.reg.broadcast(protocol.RemoteLayerState{Layer: e.meta})
		time.AfterFunc(item.Effect.Duration, func() {
			s.expireGolden(layerID, prior)
		})
		return nil

	case model.EffectAddLayer:
		meta, err := s.layers.createUnique(item.ID)
		if err != nil {
			return err
		}
		if err := s.initHistory(meta.ID); err != nil {
			return err
		}
		p.user.ActiveLayer = meta.ID
		s.reg.broadcast(protocol.RemoteAddLayer{Layer: meta})
		return nil

	default:
		return errs.ErrNotFound
	}
}

// expireGolden restores the captured blend mode, regardless of any blend
// changes made while the timer ran.
func (s *Session) expireGolden(layerID, prior string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.layers.entry(layerID)
	if err != nil {
		return // layer deleted while the power-up ran
	}
	e.meta.BlendMode = prior
	s.reg.broadcast(protocol.RemoteLayerState{Layer: e.meta})
}

// Export returns the layer stack with last committed snapshots for
// compositing, bottom-to-top.
type ExportLayer struct {
	Meta     model.Layer
	Snapshot model.Snapshot
}

func (s *Session) Export() []ExportLayer {
	s.mu.Lock()
	defer s.mu.Unlock()

	metas := s.layers.list()
	out := make([]ExportLayer, 0, len(metas))
	for _, m := range metas {
		var snap model.Snapshot
		if h, ok := s.history[m.ID]; ok && h.Depth() > 0 {
			snap = h.undo[h.Depth()-1]
		}
		out = append(out, ExportLayer{Meta: m, Snapshot: snap})
	}
	return out
}

// Size reports canvas dimensions for consumers of Export.
func (s *Session) Size() (int, int) { return s.cfg.Width, s.cfg.Height }
