// Package web serves the small REST surface next to the session channel:
// account endpoints, the marketplace catalog and drawing persistence.
package web

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/raster"
	"github.com/paintroom/paintroom/internal/repository"
	"github.com/paintroom/paintroom/internal/service"
	"github.com/paintroom/paintroom/internal/session"
)

type Server struct {
	sess     *session.Session
	auth     service.AuthService
	economy  session.Economy
	drawings repository.DrawingRepository
	log      *zap.Logger
}

func NewServer(sess *session.Session, auth service.AuthService, economy session.Economy, drawings repository.DrawingRepository, log *zap.Logger) *Server {
	return &Server{sess: sess, auth: auth, economy: economy, drawings: drawings, log: log}
}

// Routes mounts every REST endpoint onto mux, wrapped in logging and panic
// recovery.
func (s *Server) Routes(mux *http.ServeMux) {
	wrap := func(h http.HandlerFunc) http.Handler {
		return Recover(s.log, Logging(s.log, h))
	}
	mux.Handle("POST /api/register", wrap(s.handleRegister))
	mux.Handle("POST /api/login", wrap(s.handleLogin))
	mux.Handle("GET /marketplace", wrap(s.handleMarketplace))
	mux.Handle("GET /api/marketplace", wrap(s.handleMarketplace))
	mux.Handle("POST /save-drawing", wrap(s.handleSaveDrawing))
	mux.Handle("POST /api/drawings", wrap(s.handleSaveDrawing))
	mux.Handle("GET /api/drawings", wrap(s.handleListDrawings))
	mux.Handle("GET /healthz", wrap(s.handleHealthz))
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Currency int64  `json:"currency"`
	Token    string `json:"token,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httpError(w, http.StatusBadRequest, "username and password required")
		return
	}
	a, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			httpError(w, http.StatusConflict, "username taken")
			return
		}
		s.log.Error("register", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse{
		UserID:   a.ID.String(),
		Username: a.Username,
		Currency: a.Currency,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "malformed body")
		return
	}
	a, token, err := s.auth.LoginWithIP(r.Context(), req.Username, req.Password, remoteIP(r))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrRateLimited):
			httpError(w, http.StatusTooManyRequests, "rate limited")
		case errors.Is(err, errs.ErrUnauthorized):
			httpError(w, http.StatusUnauthorized, "bad credentials")
		default:
			s.log.Error("login", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		UserID:   a.ID.String(),
		Username: a.Username,
		Currency: a.Currency,
		Token:    token,
	})
}

func (s *Server) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	items, err := s.economy.Catalog(r.Context())
	if err != nil {
		s.log.Error("marketplace", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []model.MarketplaceItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type saveDrawingRequest struct {
	Title string `json:"title"`
}

type drawingResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// handleSaveDrawing composites the current visible layer stack into one PNG
// and persists it under the authenticated account.
func (s *Server) handleSaveDrawing(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req saveDrawingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.Title == "" {
		httpError(w, http.StatusBadRequest, "title required")
		return
	}

	layers := s.sess.Export()
	stack := make([]raster.Layer, 0, len(layers))
	for _, l := range layers {
		stack = append(stack, raster.Layer{
			Snapshot: l.Snapshot,
			Visible:  l.Meta.Visible,
			Opacity:  l.Meta.Opacity,
		})
	}
	width, height := s.sess.Size()
	img, err := raster.Composite(width, height, stack)
	if err != nil {
		s.log.Error("composite", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}

	d := &model.Drawing{
		ID:     ulid.Make().String(),
		UserID: userID,
		Title:  req.Title,
		Image:  img,
	}
	if err := s.drawings.Save(r.Context(), d); err != nil {
		s.log.Error("save drawing", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, drawingResponse{ID: d.ID, Title: d.Title})
}

func (s *Server) handleListDrawings(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	ds, err := s.drawings.ListByUser(r.Context(), userID)
	if err != nil {
		s.log.Error("list drawings", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]drawingResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, drawingResponse{
			ID:        d.ID,
			Title:     d.Title,
			CreatedAt: d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate resolves the bearer token to an account id or writes 401.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		httpError(w, http.StatusUnauthorized, "missing bearer token")
		return uuid.Nil, false
	}
	id, err := s.auth.VerifyToken(strings.TrimPrefix(h, prefix))
	if err != nil {
		httpError(w, http.StatusUnauthorized, "invalid token")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
