package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/paintroom/paintroom/internal/errs"
)

// DecodeClient parses and validates one inbound frame. Every failure wraps
// errs.ErrProtocolViolation so the boundary can reply with a named rejection
// instead of dropping the frame.
func DecodeClient(frame []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", errs.ErrProtocolViolation, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", errs.ErrProtocolViolation)
	}

	ev, err := emptyClientEvent(env.Type)
	if err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("%w: bad %s payload: %v", errs.ErrProtocolViolation, env.Type, err)
		}
	}
	if err := validateClient(ev); err != nil {
		return nil, err
	}
	return deref(ev), nil
}

// EncodeServer frames one outbound event.
func EncodeServer(ev ServerEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: ev.serverEvent(), Data: data})
}

// emptyClientEvent maps a type tag to a zero payload pointer for unmarshalling.
func emptyClientEvent(typ string) (ClientEvent, error) {
	switch typ {
	case "join":
		return &Join{}, nil
	case "register":
		return &Register{}, nil
	case "joinAsGuest":
		return &JoinAsGuest{}, nil
	case "drawStart":
		return &DrawStart{}, nil
	case "draw":
		return &Draw{}, nil
	case "drawEnd":
		return &DrawEnd{}, nil
	case "addLayer":
		return &AddLayer{}, nil
	case "deleteLayer":
		return &DeleteLayer{}, nil
	case "renameLayer":
		return &RenameLayer{}, nil
	case "switchLayer":
		return &SwitchLayer{}, nil
	case "updateLayerState":
		return &UpdateLayerState{}, nil
	case "undo":
		return &Undo{}, nil
	case "redo":
		return &Redo{}, nil
	case "purchaseItem":
		return &PurchaseItem{}, nil
	case "chatMessage":
		return &Chat{}, nil
	case "leave":
		return &Leave{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event %q", errs.ErrProtocolViolation, typ)
	}
}

func validateClient(ev ClientEvent) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{errs.ErrProtocolViolation}, args...)...)
	}
	switch e := ev.(type) {
	case *Join:
		if e.Username == "" || e.Password == "" {
			return bad("join requires username and password")
		}
		if !e.Role.Valid() {
			return bad("join: unknown role %q", e.Role)
		}
	case *Register:
		if e.Username == "" || e.Password == "" {
			return bad("register requires username and password")
		}
		if !e.Role.Valid() {
			return bad("register: unknown role %q", e.Role)
		}
	case *JoinAsGuest:
		if e.Name == "" {
			return bad("joinAsGuest requires a name")
		}
		if e.Role != "" && !e.Role.Valid() {
			return bad("joinAsGuest: unknown role %q", e.Role)
		}
	case *DrawStart:
		if e.Layer == "" {
			return bad("drawStart requires a layer")
		}
		if e.Style.Width <= 0 {
			return bad("drawStart: width must be positive")
		}
	case *Draw:
		if e.Layer == "" {
			return bad("draw requires a layer")
		}
		if len(e.Segments) == 0 {
			return bad("draw requires at least one segment")
		}
		for i, seg := range e.Segments {
			if seg.Style.Width <= 0 {
				return bad("draw: segment %d width must be positive", i)
			}
		}
	case *DrawEnd:
		if e.Layer == "" {
			return bad("drawEnd requires a layer")
		}
	case *AddLayer:
		if e.Proposed == "" {
			return bad("addLayer requires a proposed id")
		}
	case *DeleteLayer:
		if e.Layer == "" {
			return bad("deleteLayer requires a layer")
		}
	case *RenameLayer:
		if e.Old == "" || e.New == "" {
			return bad("renameLayer requires old and new ids")
		}
	case *SwitchLayer:
		if e.Layer == "" {
			return bad("switchLayer requires a layer")
		}
	case *UpdateLayerState:
		if e.Layer == "" {
			return bad("updateLayerState requires a layer")
		}
		if e.Visible == nil && e.Opacity == nil {
			return bad("updateLayerState requires visible or opacity")
		}
		if e.Opacity != nil && (*e.Opacity < 0 || *e.Opacity > 1) {
			return bad("updateLayerState: opacity %v out of [0,1]", *e.Opacity)
		}
	case *Undo:
		if e.Layer == "" {
			return bad("undo requires a layer")
		}
	case *Redo:
		if e.Layer == "" {
			return bad("redo requires a layer")
		}
	case *PurchaseItem:
		if e.Item == "" {
			return bad("purchaseItem requires an item id")
		}
	case *Chat:
		if e.Text == "" {
			return bad("chatMessage requires text")
		}
	}
	return nil
}

// deref returns the value form so handlers can type-switch on concrete types.
func deref(ev ClientEvent) ClientEvent {
	switch e := ev.(type) {
	case *Join:
		return *e
	case *Register:
		return *e
	case *JoinAsGuest:
		return *e
	case *DrawStart:
		return *e
	case *Draw:
		return *e
	case *DrawEnd:
		return *e
	case *AddLayer:
		return *e
	case *DeleteLayer:
		return *e
	case *RenameLayer:
		return *e
	case *SwitchLayer:
		return *e
	case *UpdateLayerState:
		return *e
	case *Undo:
		return *e
	case *Redo:
		return *e
	case *PurchaseItem:
		return *e
	case *Chat:
		return *e
	case *Leave:
		return *e
	default:
		return ev
	}
}
