package numbering_test

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
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/auth"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/store/memory"
	"docs-cataguases/portal-backend/internal/users"
)

func newRouter(allocator *numbering.Allocator, user *users.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetCurrentUser(c, user)
		c.Next()
	})
	numbering.NewHandler(allocator, zap.NewNop()).RegisterRoutes(r.Group(""))
	return r
}

func request(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLedgerEndpoints(t *testing.T) {
	store := memory.New()
	allocator := numbering.NewAllocator(store, "XXX/YYYY", zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) })

	secretario := &users.User{ID: uuid.New(), Role: users.RoleSecretario, Ativo: true, SecretariaID: "sec-rh"}
	operador := &users.User{ID: uuid.New(), Role: users.RoleOperador, Ativo: true, SecretariaID: "sec-rh"}
	prefeito := &users.User{ID: uuid.New(), Role: users.RolePrefeito, Ativo: true}

	w := request(newRouter(allocator, secretario), http.MethodGet, "/livros/proximo", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"numero":"001/2025"}`, w.Body.String())

	w = request(newRouter(allocator, secretario), http.MethodGet, "/livros/proximo?ano=2040", nil)
	require.Equal(t, http.StatusOK, w.Code)
	peeked, err := store.ListLedgers(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, peeked, "previewing never creates ledgers")

	formato := "SEC-RH XXXX/YY"
	next := 40
	w = request(newRouter(allocator, secretario), http.MethodPut, "/livros", numbering.ConfigureRequest{
		SecretariaID: "sec-rh", Formato: &formato, ProximoNumero: &next,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = request(newRouter(allocator, secretario), http.MethodGet, "/livros/proximo", nil)
	assert.JSONEq(t, `{"numero":"SEC-RH 0040/25"}`, w.Body.String())

	lower := 10
	w = request(newRouter(allocator, secretario), http.MethodPut, "/livros", numbering.ConfigureRequest{
		SecretariaID: "sec-rh", ProximoNumero: &lower,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(newRouter(allocator, secretario), http.MethodPut, "/livros", numbering.ConfigureRequest{
		SecretariaID: "sec-obras", ProximoNumero: &next,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(newRouter(allocator, operador), http.MethodGet, "/livros", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(newRouter(allocator, prefeito), http.MethodGet, "/livros", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledgers []numbering.Ledger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ledgers))
	require.Len(t, ledgers, 1)
	assert.Equal(t, 40, ledgers[0].ProximoNumero)
}
