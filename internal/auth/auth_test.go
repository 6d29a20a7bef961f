package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/users"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Authenticate(ctx context.Context, email, senha string) (*users.User, error) {
	args := m.Called(ctx, email, senha)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, req users.CreateUserRequest) (*users.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, secretariaID string) ([]users.User, error) {
	args := m.Called(ctx, secretariaID)
	return args.Get(0).([]users.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id uuid.UUID, req users.UpdateUserRequest) (*users.User, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testUser(role users.Role) *users.User {
	return &users.User{ID: uuid.New(), Nome: "Maria", Email: "maria@cataguases.mg.gov.br", Role: role, Ativo: true, SecretariaID: "sec-rh"}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenManager("secret", time.Hour)
	user := testUser(users.RoleOperador)

	raw, expiresAt, err := tokens.Issue(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	id, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = NewTokenManager("other", time.Hour).Parse(raw)
	assert.Error(t, err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	tokens := NewTokenManager("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }

	raw, _, err := tokens.Issue(testUser(users.RoleAdmin))
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Parse(raw)
	assert.Error(t, err)
}

func newRouter(svc *MockUserService, tokens *TokenManager) *gin.Engine {
	r := gin.New()
	h := NewHandler(svc, tokens, zap.NewNop())
	h.RegisterPublicRoutes(r.Group(""))
	protected := r.Group("")
	protected.Use(NewMiddleware(tokens, svc, zap.NewNop()).RequireAuth())
	h.RegisterRoutes(protected)
	return r
}

func TestLoginAndMe(t *testing.T) {
	svc := new(MockUserService)
	tokens := NewTokenManager("secret", time.Hour)
	user := testUser(users.RoleSecretario)
	svc.On("Authenticate", mock.Anything, user.Email, "correta123").Return(user, nil)
	svc.On("GetUser", mock.Anything, user.ID).Return(user, nil)
	r := newRouter(svc, tokens)

	body, _ := json.Marshal(LoginRequest{Email: user.Email, Senha: "correta123"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)
	assert.NotEmpty(t, login.Rules)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var me MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, user.ID, me.User.ID)
	svc.AssertExpectations(t)
}

func TestLoginWithBadCredentials(t *testing.T) {
	svc := new(MockUserService)
	svc.On("Authenticate", mock.Anything, "x@y.z", "errada").Return(nil, apperrors.Authorization("invalid credentials"))
	r := newRouter(svc, NewTokenManager("secret", time.Hour))

	body, _ := json.Marshal(LoginRequest{Email: "x@y.z", Senha: "errada"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth(t *testing.T) {
	svc := new(MockUserService)
	tokens := NewTokenManager("secret", time.Hour)
	inactive := testUser(users.RoleAdmin)
	inactive.Ativo = false
	svc.On("GetUser", mock.Anything, inactive.ID).Return(inactive, nil)
	r := newRouter(svc, tokens)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	raw, _, err := tokens.Issue(inactive)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookie, Value: raw})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserAdministrationNeedsManageUsuario(t *testing.T) {
	svc := new(MockUserService)
	tokens := NewTokenManager("secret", time.Hour)
	admin := testUser(users.RoleAdmin)
	operador := testUser(users.RoleOperador)
	svc.On("GetUser", mock.Anything, admin.ID).Return(admin, nil)
	svc.On("GetUser", mock.Anything, operador.ID).Return(operador, nil)
	svc.On("ListUsers", mock.Anything, "sec-rh").Return([]users.User{*admin, *operador}, nil)
	r := newRouter(svc, tokens)

	call := func(user *users.User) int {
		raw, _, err := tokens.Issue(user)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/usuarios?secretaria_id=sec-rh", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call(admin))
	assert.Equal(t, http.StatusForbidden, call(operador))
}
