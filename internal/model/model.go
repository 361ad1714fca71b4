// Package model defines domain entities used by the session engine,
// services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role determines what a participant may do inside a session.
// It is fixed at join time and never changes for the lifetime of the session.
type Role string

const (
	// RoleArtist may draw and mutate layers.
	RoleArtist Role = "artist"
	// RoleViewer may watch and chat only.
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool { return r == RoleArtist || r == RoleViewer }

// User is a connected session participant. Currency is mutated exclusively
// through the economy engine; handlers must never assign it directly.
type User struct {
	ID          uuid.UUID
	Name        string
	Role        Role
	Currency    int64
	Guest       bool
	ActiveLayer string
	JoinSeq     int64 // monotonic join order, drives user-list ordering
}

// UserSummary is the wire-facing projection broadcast on every join/leave.
type UserSummary struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Account is a persisted user row. Currency survives across sessions and is
// loaded at join.
type Account struct {
	ID        uuid.UUID
	Username  string
	PwdHash   []byte
	SaltAuth  []byte
	Currency  int64
	CreatedAt time.Time
}

// Point is a coordinate in the canvas space shared by all layers.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeStyle carries everything a receiver needs to replay a segment with
// author fidelity, independent of its own current tool state.
type StrokeStyle struct {
	Color     string  `json:"color"`
	Width     float64 `json:"width"`
	CapStyle  string  `json:"cap,omitempty"`
	BlendMode string  `json:"blend,omitempty"`
}

// StrokeSegment is the atomic drawing primitive: one line between two points
// with a fixed style. Segments are immutable once emitted.
type StrokeSegment struct {
	LayerID string      `json:"layer"`
	From    Point       `json:"from"`
	To      Point       `json:"to"`
	Style   StrokeStyle `json:"style"`
	Author  uuid.UUID   `json:"author"`
}

// Snapshot is a full captured raster state of one layer, opaque to the
// session engine. The reference sink encodes PNG.
type Snapshot []byte

// Layer is one independently ordered raster surface within the canvas.
type Layer struct {
	ID        string  `json:"id"`
	Order     int     `json:"order"`
	Visible   bool    `json:"visible"`
	Opacity   float64 `json:"opacity"`
	BlendMode string  `json:"blend,omitempty"`
}

// EffectKind tags the closed set of marketplace effects.
type EffectKind string

const (
	EffectBrushSizeGrant   EffectKind = "brush_size_grant"
	EffectClearActiveLayer EffectKind = "clear_active_layer"
	EffectGoldenPowerUp    EffectKind = "golden_power_up"
	EffectAddLayer         EffectKind = "add_layer"
)

// Effect is a tagged variant: Kind selects which argument field is meaningful.
type Effect struct {
	Kind      EffectKind    `json:"kind"`
	BrushSize float64       `json:"brushSize,omitempty"` // EffectBrushSizeGrant
	Duration  time.Duration `json:"duration,omitempty"`  // EffectGoldenPowerUp
}

// MarketplaceItem is one catalog entry. The catalog is immutable and
// read-only to clients.
type MarketplaceItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  int64  `json:"price"`
	Effect Effect `json:"effect"`
	Ord    int    `json:"-"`
}

// Receipt reports a completed purchase back to the buyer.
type Receipt struct {
	ItemID  string    `json:"itemId"`
	Price   int64     `json:"price"`
	Balance int64     `json:"balance"`
	When    time.Time `json:"when"`
}

// Drawing is a persisted named composite of the canvas at save time.
type Drawing struct {
	ID        string
	UserID    uuid.UUID
	Title     string
	Image     []byte // PNG
	CreatedAt time.Time
}

// ChatMessage is fanned out verbatim to every participant, sender included.
type ChatMessage struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}
