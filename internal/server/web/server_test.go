package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/raster"
	"github.com/paintroom/paintroom/internal/repository"
	"github.com/paintroom/paintroom/internal/service"
	"github.com/paintroom/paintroom/internal/session"
)

type fakeAuth struct {
	accounts map[string]*model.Account
	tokens   map[string]uuid.UUID
}

var _ service.AuthService = (*fakeAuth)(nil)

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		accounts: map[string]*model.Account{},
		tokens:   map[string]uuid.UUID{},
	}
}

func (f *fakeAuth) Register(_ context.Context, username, password string) (*model.Account, error) {
	if _, ok := f.accounts[username]; ok {
		return nil, errs.ErrAlreadyExists
	}
	a := &model.Account{ID: uuid.Must(uuid.NewV4()), Username: username, Currency: 100}
	f.accounts[username] = a
	return a, nil
}

func (f *fakeAuth) LoginWithIP(_ context.Context, username, password, _ string) (*model.Account, string, error) {
	a, ok := f.accounts[username]
	if !ok || password != "good" {
		return nil, "", errs.ErrUnauthorized
	}
	tok := "tok-" + a.ID.String()
	f.tokens[tok] = a.ID
	return a, tok, nil
}

func (f *fakeAuth) VerifyToken(token string) (uuid.UUID, error) {
	id, ok := f.tokens[token]
	if !ok {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}

type fakeDrawings struct {
	saved []*model.Drawing
}

var _ repository.DrawingRepository = (*fakeDrawings)(nil)

func (f *fakeDrawings) Save(_ context.Context, d *model.Drawing) error {
	cpy := *d
	f.saved = append(f.saved, &cpy)
	return nil
}

func (f *fakeDrawings) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Drawing, error) {
	var out []model.Drawing
	for _, d := range f.saved {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

type catalogEconomy struct {
	items []model.MarketplaceItem
	err   error
}

func (e catalogEconomy) Catalog(context.Context) ([]model.MarketplaceItem, error) {
	return e.items, e.err
}
func (e catalogEconomy) Purchase(context.Context, model.User, string) (model.MarketplaceItem, model.Receipt, error) {
	return model.MarketplaceItem{}, model.Receipt{}, errs.ErrUnauthorized
}
func (e catalogEconomy) Refund(context.Context, uuid.UUID, int64) error { return nil }

func newTestWeb(t *testing.T) (*http.ServeMux, *fakeAuth, *fakeDrawings, *session.Session) {
	t.Helper()
	sess, err := session.New(
		session.Config{Width: 40, Height: 30, FlushInterval: time.Hour},
		catalogEconomy{items: []model.MarketplaceItem{
			{ID: "golden-power", Name: "Golden Power", Price: 20},
		}},
		func(w, h int) session.Sink { return raster.NewSurface(w, h) },
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	auth := newFakeAuth()
	drawings := &fakeDrawings{}
	mux := http.NewServeMux()
	NewServer(sess, auth, catalogEconomy{items: []model.MarketplaceItem{
		{ID: "golden-power", Name: "Golden Power", Price: 20},
	}}, drawings, zap.NewNop()).Routes(mux)
	return mux, auth, drawings, sess
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestWeb_RegisterAndLogin(t *testing.T) {
	t.Parallel()
	mux, _, _, _ := newTestWeb(t)

	w := doJSON(t, mux, http.MethodPost, "/api/register", "", credentialsRequest{Username: "alice", Password: "good"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body)
	}
	var acc accountResponse
	if err := json.Unmarshal(w.Body.Bytes(), &acc); err != nil {
		t.Fatalf("register body: %v", err)
	}
	if acc.Currency != 100 || acc.UserID == "" {
		t.Fatalf("register response: %+v", acc)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/register", "", credentialsRequest{Username: "alice", Password: "x"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/login", "", credentialsRequest{Username: "alice", Password: "bad"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/login", "", credentialsRequest{Username: "alice", Password: "good"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &acc); err != nil {
		t.Fatalf("login body: %v", err)
	}
	if acc.Token == "" {
		t.Fatalf("login response missing token")
	}
}

func TestWeb_Marketplace(t *testing.T) {
	t.Parallel()
	mux, _, _, _ := newTestWeb(t)

	w := doJSON(t, mux, http.MethodGet, "/api/marketplace", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var items []model.MarketplaceItem
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(items) != 1 || items[0].ID != "golden-power" {
		t.Fatalf("catalog: %+v", items)
	}
}

func TestWeb_SaveDrawing(t *testing.T) {
	t.Parallel()
	mux, auth, drawings, _ := newTestWeb(t)

	w := doJSON(t, mux, http.MethodPost, "/api/drawings", "", saveDrawingRequest{Title: "sunset"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated save status = %d", w.Code)
	}

	if _, err := auth.Register(context.Background(), "alice", "good"); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	_, token, err := auth.LoginWithIP(context.Background(), "alice", "good", "")
	if err != nil {
		t.Fatalf("seed login: %v", err)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/drawings", token, saveDrawingRequest{Title: ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("untitled save status = %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/drawings", token, saveDrawingRequest{Title: "sunset"})
	if w.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", w.Code, w.Body)
	}
	if len(drawings.saved) != 1 {
		t.Fatalf("saved %d drawings", len(drawings.saved))
	}
	d := drawings.saved[0]
	if d.Title != "sunset" || d.ID == "" {
		t.Fatalf("saved drawing: %+v", d)
	}
	img, err := png.Decode(bytes.NewReader(d.Image))
	if err != nil {
		t.Fatalf("saved image is not PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Fatalf("composite size = %dx%d", b.Dx(), b.Dy())
	}

	w = doJSON(t, mux, http.MethodGet, "/api/drawings", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []drawingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("list body: %v", err)
	}
	if len(list) != 1 || list[0].Title != "sunset" {
		t.Fatalf("list: %+v", list)
	}
}

func TestWeb_MarketplaceStorageError(t *testing.T) {
	t.Parallel()
	sess, err := session.New(
		session.Config{FlushInterval: time.Hour},
		catalogEconomy{},
		func(w, h int) session.Sink { return raster.NewSurface(w, h) },
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	mux := http.NewServeMux()
	NewServer(sess, newFakeAuth(), catalogEconomy{err: errors.New("db down")}, &fakeDrawings{}, zap.NewNop()).Routes(mux)

	w := doJSON(t, mux, http.MethodGet, "/api/marketplace", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWeb_Healthz(t *testing.T) {
	t.Parallel()
	mux, _, _, _ := newTestWeb(t)
	w := doJSON(t, mux, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
