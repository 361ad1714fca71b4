package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/protocol"
	"github.com/paintroom/paintroom/internal/service"
	"github.com/paintroom/paintroom/internal/session"
)

// Handler upgrades HTTP requests to the session channel. The first inbound
// frame must be join, register or joinAsGuest; everything after it is
// dispatched to the session engine on behalf of the authenticated user.
type Handler struct {
	sess *session.Session
	auth service.AuthService
	log  *zap.Logger
	// anonymous enables relay mode: guests may pick the artist role and no
	// account is required.
	anonymous bool

	upgrader websocket.Upgrader
}

func NewHandler(sess *session.Session, auth service.AuthService, log *zap.Logger, anonymous bool) *Handler {
	return &Handler{
		sess:      sess,
		auth:      auth,
		log:       log,
		anonymous: anonymous,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The canvas page may be served from anywhere; auth happens in-band.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	c := newClient(conn, h.log)
	defer c.close()

	conn.SetReadLimit(maxFrameBytes)

	user, ok := h.handshake(r, conn)
	if !ok {
		return
	}

	joined, err := h.sess.Join(r.Context(), user, c)
	if err != nil {
		h.reply(conn, protocol.AuthError{Reason: publicReason(err)})
		return
	}
	// The handshake reply goes out before the pump starts, so it is
	// guaranteed to be the first frame the client sees.
	h.reply(conn, joined)
	go c.writePump()
	defer h.sess.Leave(user.ID)

	h.readLoop(r.Context(), conn, c, user.ID)
}

// handshake reads the first frame and resolves it to a session user.
// Rejections are written directly: the write pump is not running yet.
func (h *Handler) handshake(r *http.Request, conn *websocket.Conn) (model.User, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return model.User{}, false
	}
	ev, err := protocol.DecodeClient(frame)
	if err != nil {
		h.reply(conn, protocol.ErrorReply{Code: errCode(err), Reason: publicReason(err)})
		return model.User{}, false
	}

	ctx := r.Context()
	switch e := ev.(type) {
	case protocol.Join:
		a, _, err := h.auth.LoginWithIP(ctx, e.Username, e.Password, remoteIP(r))
		if err != nil {
			h.reply(conn, protocol.AuthError{Reason: publicReason(err)})
			return model.User{}, false
		}
		return model.User{
			ID:       a.ID,
			Name:     a.Username,
			Role:     e.Role,
			Currency: a.Currency,
		}, true

	case protocol.Register:
		a, err := h.auth.Register(ctx, e.Username, e.Password)
		if err != nil {
			h.reply(conn, protocol.RegisterError{Reason: publicReason(err)})
			return model.User{}, false
		}
		return model.User{
			ID:       a.ID,
			Name:     a.Username,
			Role:     e.Role,
			Currency: a.Currency,
		}, true

	case protocol.JoinAsGuest:
		u, err := service.NewGuest(e.Name, e.Role)
		if err != nil {
			h.reply(conn, protocol.AuthError{Reason: "internal error"})
			return model.User{}, false
		}
		// Outside relay mode guests never get to draw.
		if !h.anonymous {
			u.Role = model.RoleViewer
		}
		return u, true

	default:
		h.reply(conn, protocol.ErrorReply{
			Code:   "protocolViolation",
			Reason: "first frame must be join, register or joinAsGuest",
		})
		return model.User{}, false
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, c *client, userID uuid.UUID) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := protocol.DecodeClient(frame)
		if err != nil {
			c.Send(protocol.ErrorReply{Code: errCode(err), Reason: publicReason(err)})
			continue
		}

		start := time.Now()
		leave, err := h.dispatch(ctx, c, userID, ev)
		h.log.Debug("event",
			zap.String("type", fmt.Sprintf("%T", ev)),
			zap.String("user", userID.String()),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		if err != nil {
			c.Send(protocol.ErrorReply{Code: errCode(err), Reason: publicReason(err)})
		}
		if leave {
			return
		}
	}
}

// dispatch routes one validated event to the engine. The purchase outcome is
// replied as a named event rather than a generic error.
func (h *Handler) dispatch(ctx context.Context, c *client, userID uuid.UUID, ev protocol.ClientEvent) (bool, error) {
	switch e := ev.(type) {
	case protocol.Leave:
		return true, nil
	case protocol.Join, protocol.Register, protocol.JoinAsGuest:
		return false, fmt.Errorf("%w: already joined", errs.ErrProtocolViolation)

	case protocol.DrawStart:
		return false, h.sess.DrawStart(userID, e.Layer, e.At, e.Style)
	case protocol.Draw:
		return false, h.sess.Draw(userID, e.Layer, e.Segments)
	case protocol.DrawEnd:
		return false, h.sess.DrawEnd(userID, e.Layer)

	case protocol.AddLayer:
		_, err := h.sess.CreateLayer(userID, e.Proposed)
		return false, err
	case protocol.DeleteLayer:
		return false, h.sess.DeleteLayer(userID, e.Layer)
	case protocol.RenameLayer:
		return false, h.sess.RenameLayer(userID, e.Old, e.New)
	case protocol.SwitchLayer:
		return false, h.sess.SwitchLayer(userID, e.Layer)
	case protocol.UpdateLayerState:
		return false, h.sess.UpdateLayerState(userID, e.Layer, e.Visible, e.Opacity)

	case protocol.Undo:
		return false, h.sess.Undo(userID, e.Layer)
	case protocol.Redo:
		return false, h.sess.Redo(userID, e.Layer)

	case protocol.PurchaseItem:
		receipt, err := h.sess.Purchase(ctx, userID, e.Item)
		if err != nil {
			c.Send(protocol.PurchaseFailed{Reason: publicReason(err)})
			return false, nil
		}
		c.Send(protocol.PurchaseSuccess{Receipt: receipt})
		return false, nil

	case protocol.Chat:
		return false, h.sess.Chat(userID, e.Text)

	default:
		return false, fmt.Errorf("%w: unhandled event", errs.ErrProtocolViolation)
	}
}

// reply writes one frame directly; only valid before the write pump starts.
func (h *Handler) reply(conn *websocket.Conn, ev protocol.ServerEvent) {
	frame, err := protocol.EncodeServer(ev)
	if err != nil {
		h.log.Error("encode reply", zap.Error(err))
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, frame)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
