// Package protocol defines the closed event vocabulary exchanged over the
// session channel, one tagged JSON frame per event. Payloads are typed in
// both directions and validated at the boundary; anything outside the
// vocabulary is rejected as a protocol violation instead of silently
// dropped.
package protocol

import (
	"encoding/json"

	"github.com/paintroom/paintroom/internal/model"
)

// Envelope is the wire framing: a type tag plus the raw payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Segment is one stroke segment as carried on the wire. Layer and author are
// implied by the enclosing batch and connection.
type Segment struct {
	From  model.Point       `json:"from"`
	To    model.Point       `json:"to"`
	Style model.StrokeStyle `json:"style"`
}

// ClientEvent is implemented by every event a client may send.
type ClientEvent interface{ clientEvent() string }

// Join authenticates an existing account into the session.
type Join struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// Register creates a new account and joins in one step.
type Register struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// JoinAsGuest joins without credentials. Guests carry no currency; the role
// request is honored only in anonymous relay mode, otherwise guests are
// viewers.
type JoinAsGuest struct {
	Name string     `json:"name"`
	Role model.Role `json:"role,omitempty"`
}

// DrawStart opens a stroke on a layer.
type DrawStart struct {
	Layer string            `json:"layer"`
	At    model.Point       `json:"at"`
	Style model.StrokeStyle `json:"style"`
}

// Draw ships one flushed batch of segments for an open stroke.
type Draw struct {
	Layer    string    `json:"layer"`
	Segments []Segment `json:"segments"`
}

// DrawEnd closes a stroke and commits the layer to undo history.
type DrawEnd struct {
	Layer string `json:"layer"`
}

// AddLayer proposes a new layer id; the server may suffix it on collision.
type AddLayer struct {
	Proposed string `json:"proposed"`
}

// DeleteLayer removes a layer.
type DeleteLayer struct {
	Layer string `json:"layer"`
}

// RenameLayer moves a layer and its history to a new id.
type RenameLayer struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// SwitchLayer changes the sender's active layer.
type SwitchLayer struct {
	Layer string `json:"layer"`
}

// UpdateLayerState changes visibility and/or opacity; nil fields are untouched.
type UpdateLayerState struct {
	Layer   string   `json:"layer"`
	Visible *bool    `json:"visible,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
}

// Undo reverts the layer to the previous committed snapshot.
type Undo struct {
	Layer string `json:"layer"`
}

// Redo reapplies the most recently undone snapshot.
type Redo struct {
	Layer string `json:"layer"`
}

// PurchaseItem buys a marketplace item.
type PurchaseItem struct {
	Item string `json:"item"`
}

// Chat sends a message to everyone, sender included.
type Chat struct {
	Text string `json:"text"`
}

// Leave deregisters the sender without closing the connection.
type Leave struct{}

func (Join) clientEvent() string             { return "join" }
func (Register) clientEvent() string         { return "register" }
func (JoinAsGuest) clientEvent() string      { return "joinAsGuest" }
func (DrawStart) clientEvent() string        { return "drawStart" }
func (Draw) clientEvent() string             { return "draw" }
func (DrawEnd) clientEvent() string          { return "drawEnd" }
func (AddLayer) clientEvent() string         { return "addLayer" }
func (DeleteLayer) clientEvent() string      { return "deleteLayer" }
func (RenameLayer) clientEvent() string      { return "renameLayer" }
func (SwitchLayer) clientEvent() string      { return "switchLayer" }
func (UpdateLayerState) clientEvent() string { return "updateLayerState" }
func (Undo) clientEvent() string             { return "undo" }
func (Redo) clientEvent() string             { return "redo" }
func (PurchaseItem) clientEvent() string     { return "purchaseItem" }
func (Chat) clientEvent() string             { return "chatMessage" }
func (Leave) clientEvent() string            { return "leave" }

// ServerEvent is implemented by every event the server may send.
type ServerEvent interface{ serverEvent() string }

// Joined is the snapshot handshake replied to a successful join: identity,
// balance, canvas geometry, full layer list with last committed snapshots,
// current participants and the marketplace catalog.
type Joined struct {
	UserID    string                    `json:"userId"`
	Name      string                    `json:"name"`
	Role      model.Role                `json:"role"`
	Currency  int64                     `json:"currency"`
	Width     int                       `json:"width"`
	Height    int                       `json:"height"`
	Layers    []model.Layer             `json:"layers"`
	Snapshots map[string]model.Snapshot `json:"snapshots"`
	Users     []model.UserSummary       `json:"users"`
	Catalog   []model.MarketplaceItem   `json:"catalog"`
}

// AuthError rejects a join attempt.
type AuthError struct {
	Reason string `json:"reason"`
}

// RegisterError rejects a register attempt.
type RegisterError struct {
	Reason string `json:"reason"`
}

// UserList is the full refreshed participant list, ordered by join sequence.
type UserList struct {
	Users []model.UserSummary `json:"users"`
	Count int                 `json:"count"`
}

// RemoteDrawStart mirrors a peer's DrawStart.
type RemoteDrawStart struct {
	Author string            `json:"author"`
	Layer  string            `json:"layer"`
	At     model.Point       `json:"at"`
	Style  model.StrokeStyle `json:"style"`
}

// RemoteDraw carries one flushed batch of a peer's segments, in emission order.
type RemoteDraw struct {
	Author   string    `json:"author"`
	Layer    string    `json:"layer"`
	Batch    string    `json:"batch"` // monotonic batch token per author
	Segments []Segment `json:"segments"`
}

// RemoteDrawEnd mirrors a peer's DrawEnd.
type RemoteDrawEnd struct {
	Author string `json:"author"`
	Layer  string `json:"layer"`
}

// RemoteAddLayer announces a created layer; receivers apply idempotently.
type RemoteAddLayer struct {
	Layer model.Layer `json:"layer"`
}

// RemoteDeleteLayer announces a deleted layer.
type RemoteDeleteLayer struct {
	Layer string `json:"layer"`
}

// RemoteRenameLayer announces a rename; history follows the new id.
type RemoteRenameLayer struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// RemoteLayerState announces new visibility/opacity/blend for a layer.
type RemoteLayerState struct {
	Layer model.Layer `json:"layer"`
}

// RemoteSwitchLayer announces a peer's active-layer change (presence info).
type RemoteSwitchLayer struct {
	User  string `json:"user"`
	Layer string `json:"layer"`
}

// LayerSnapshot ships an authoritative full-layer raster; receivers replace
// their local surface with it. This is the resynchronization primitive.
type LayerSnapshot struct {
	Layer    string         `json:"layer"`
	Snapshot model.Snapshot `json:"snapshot"`
}

// PurchaseSuccess confirms a purchase to the buyer only.
type PurchaseSuccess struct {
	Receipt model.Receipt `json:"receipt"`
}

// PurchaseFailed rejects a purchase to the buyer only.
type PurchaseFailed struct {
	Reason string `json:"reason"`
}

// RemoteClear announces a purchased layer wipe on the buyer's active layer.
type RemoteClear struct {
	User  string `json:"user"`
	Layer string `json:"layer"`
}

// RemotePowerUp announces a golden overlay on the buyer's active layer.
// Color and alpha define the wash so receivers render it identically.
type RemotePowerUp struct {
	User       string  `json:"user"`
	Layer      string  `json:"layer"`
	DurationMs int64   `json:"durationMs"`
	Color      string  `json:"color"`
	Alpha      float64 `json:"alpha"`
}

// ChatBroadcast fans a chat message out to every participant.
type ChatBroadcast struct {
	Message model.ChatMessage `json:"message"`
}

// ErrorReply reports a per-requester failure (including protocol violations)
// as a named outcome; it is never broadcast.
type ErrorReply struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (Joined) serverEvent() string            { return "joined" }
func (AuthError) serverEvent() string         { return "authError" }
func (RegisterError) serverEvent() string     { return "registerError" }
func (UserList) serverEvent() string          { return "userListUpdate" }
func (RemoteDrawStart) serverEvent() string   { return "remoteDrawStart" }
func (RemoteDraw) serverEvent() string        { return "remoteDraw" }
func (RemoteDrawEnd) serverEvent() string     { return "remoteDrawEnd" }
func (RemoteAddLayer) serverEvent() string    { return "remoteAddLayer" }
func (RemoteDeleteLayer) serverEvent() string { return "remoteDeleteLayer" }
func (RemoteRenameLayer) serverEvent() string { return "remoteRenameLayer" }
func (RemoteLayerState) serverEvent() string  { return "remoteLayerState" }
func (RemoteSwitchLayer) serverEvent() string { return "remoteSwitchLayer" }
func (LayerSnapshot) serverEvent() string     { return "layerSnapshot" }
func (PurchaseSuccess) serverEvent() string   { return "purchaseSuccess" }
func (PurchaseFailed) serverEvent() string    { return "purchaseFailed" }
func (RemoteClear) serverEvent() string       { return "remoteClear" }
func (RemotePowerUp) serverEvent() string     { return "remotePowerUp" }
func (ChatBroadcast) serverEvent() string     { return "chatMessage" }
func (ErrorReply) serverEvent() string        { return "error" }
