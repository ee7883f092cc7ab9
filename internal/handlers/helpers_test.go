package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/sweetshop/apiserver/internal/auth"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/internal/store"
	"github.com/sweetshop/apiserver/types"
)

const (
	testSecret      = "handler-test-secret"
	testAdminSecret = "superadmincode"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]types.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) DeleteByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.Email == email {
			delete(r.users, id)
		}
	}
	return nil
}

type fakeSweetRepo struct {
	mu     sync.Mutex
	sweets map[string]types.Sweet
}

func newFakeSweetRepo() *fakeSweetRepo {
	return &fakeSweetRepo{sweets: make(map[string]types.Sweet)}
}

func (r *fakeSweetRepo) GetByID(ctx context.Context, id string) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sweet, ok := r.sweets[id]; ok {
		return sweet, nil
	}
	return types.Sweet{}, store.ErrNotFound
}

func (r *fakeSweetRepo) List(ctx context.Context) ([]types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.Sweet{}
	for _, sweet := range r.sweets {
		out = append(out, sweet)
	}
	return out, nil
}

func (r *fakeSweetRepo) Search(ctx context.Context, filter types.SweetFilter) ([]types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []types.Sweet{}
	for _, sweet := range r.sweets {
		if filter.Name != "" && !strings.Contains(strings.ToLower(sweet.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if filter.Category != "" && !strings.Contains(strings.ToLower(sweet.Category), strings.ToLower(filter.Category)) {
			continue
		}
		if sweet.Price < filter.PriceMin || sweet.Price > filter.PriceMax {
			continue
		}
		out = append(out, sweet)
	}
	return out, nil
}

func (r *fakeSweetRepo) Create(ctx context.Context, sweet types.Sweet) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sweet.ID == "" {
		sweet.ID = uuid.NewString()
	}
	r.sweets[sweet.ID] = sweet
	return sweet, nil
}

func (r *fakeSweetRepo) Update(ctx context.Context, id string, upd types.SweetUpdate) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sweet, ok := r.sweets[id]
	if !ok {
		return types.Sweet{}, store.ErrNotFound
	}
	if upd.Name != nil {
		sweet.Name = *upd.Name
	}
	if upd.Category != nil {
		sweet.Category = *upd.Category
	}
	if upd.Price != nil {
		sweet.Price = *upd.Price
	}
	if upd.Quantity != nil {
		sweet.Quantity = *upd.Quantity
	}
	r.sweets[id] = sweet
	return sweet, nil
}

func (r *fakeSweetRepo) Restock(ctx context.Context, id string, quantity int) (types.Sweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sweet, ok := r.sweets[id]
	if !ok {
		return types.Sweet{}, store.ErrNotFound
	}
	sweet.Quantity += quantity
	r.sweets[id] = sweet
	return sweet, nil
}

func (r *fakeSweetRepo) SetImageKey(ctx context.Context, id, imageKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sweet, ok := r.sweets[id]
	if !ok {
		return store.ErrNotFound
	}
	sweet.ImageKey = imageKey
	r.sweets[id] = sweet
	return nil
}

func (r *fakeSweetRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sweets[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.sweets, id)
	return nil
}

type testApp struct {
	router    *chi.Mux
	userRepo  *fakeUserRepo
	sweetRepo *fakeSweetRepo
	tokens    *auth.TokenService
}

// newTestApp wires the real handlers and services over in-memory fakes,
// mirroring the production router layout.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tokens, err := auth.NewTokenService(testSecret, "HS256", 30*time.Minute)
	require.NoError(t, err)

	userRepo := newFakeUserRepo()
	sweetRepo := newFakeSweetRepo()

	authService := services.NewAuthService(userRepo, tokens, services.AdminPolicy{
		Email:    "admin@example.com",
		Password: "AdminSecret123",
		Secret:   testAdminSecret,
	}, zerolog.Nop())
	sweetService := services.NewSweetService(sweetRepo, nil, nil, zerolog.Nop())

	authHandler := NewAuthHandler(authService, tokens, zerolog.Nop())
	sweetHandler := NewSweetHandler(sweetService, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, authHandler)
	})
	router.Route("/api/sweets", func(r chi.Router) {
		SweetRouter(r, sweetHandler, authHandler.Authenticate)
	})

	return &testApp{
		router:    router,
		userRepo:  userRepo,
		sweetRepo: sweetRepo,
		tokens:    tokens,
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) registerToken(t *testing.T, email, role, adminSecret string) string {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":        email,
		"password":     "Secret123",
		"role":         role,
		"admin_secret": adminSecret,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}
