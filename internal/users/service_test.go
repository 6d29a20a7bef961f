package users_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/store/memory"
	"docs-cataguases/portal-backend/internal/users"
)

func newService() *users.Service {
	return users.NewService(memory.New(), bcrypt.MinCost, zap.NewNop())
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	s := newService()

	u, err := s.CreateUser(ctx, users.CreateUserRequest{
		Nome:         " Ana Souza ",
		Email:        "Ana@Cataguases.MG.gov.br",
		Senha:        "segredo123",
		SecretariaID: "sec-rh",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", u.Nome)
	assert.Equal(t, "ana@cataguases.mg.gov.br", u.Email)
	assert.Equal(t, users.RoleOperador, u.Role)
	assert.True(t, u.Ativo)
	assert.NotEqual(t, "segredo123", u.SenhaHash)

	_, err = s.CreateUser(ctx, users.CreateUserRequest{Nome: "Outra", Email: "ana@cataguases.mg.gov.br", Senha: "segredo123"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = s.CreateUser(ctx, users.CreateUserRequest{Nome: "Curta", Email: "c@x.br", Senha: "123"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = s.CreateUser(ctx, users.CreateUserRequest{Nome: "Rei", Email: "r@x.br", Senha: "segredo123", Role: "REI"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newService()
	u, err := s.CreateUser(ctx, users.CreateUserRequest{Nome: "Ana", Email: "ana@x.br", Senha: "segredo123"})
	require.NoError(t, err)

	got, err := s.Authenticate(ctx, " ANA@x.br", "segredo123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "ana@x.br", "errada")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
	_, err = s.Authenticate(ctx, "ninguem@x.br", "segredo123")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	inativo := false
	_, err = s.UpdateUser(ctx, u.ID, users.UpdateUserRequest{Ativo: &inativo})
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, "ana@x.br", "segredo123")
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	s := newService()
	u, err := s.CreateUser(ctx, users.CreateUserRequest{Nome: "Ana", Email: "ana@x.br", Senha: "segredo123"})
	require.NoError(t, err)

	role := users.RoleRevisor
	grants := []string{"assinar:Portaria"}
	got, err := s.UpdateUser(ctx, u.ID, users.UpdateUserRequest{Role: &role, PermissoesExtra: &grants})
	require.NoError(t, err)
	assert.Equal(t, users.RoleRevisor, got.Role)
	assert.Equal(t, []string{"assinar:Portaria"}, []string(got.PermissoesExtra))

	bad := users.Role("REI")
	_, err = s.UpdateUser(ctx, u.ID, users.UpdateUserRequest{Role: &bad})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = s.UpdateUser(ctx, uuid.New(), users.UpdateUserRequest{Role: &role})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	s := newService()

	first, err := s.EnsureAdmin(ctx, "admin@cataguases.mg.gov.br", "troque-esta-senha")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, first.Role)

	again, err := s.EnsureAdmin(ctx, "admin@cataguases.mg.gov.br", "outra-senha-qualquer")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, user *users.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockRepository) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockRepository) ListUsers(ctx context.Context, secretariaID string) ([]users.User, error) {
	args := m.Called(ctx, secretariaID)
	return args.Get(0).([]users.User), args.Error(1)
}

func (m *MockRepository) UpdateUser(ctx context.Context, user *users.User) error {
	return m.Called(ctx, user).Error(0)
}

func TestCreateUserPropagatesStorageErrors(t *testing.T) {
	repo := new(MockRepository)
	s := users.NewService(repo, bcrypt.MinCost, zap.NewNop())
	storageErr := apperrors.Storage(errors.New("connection refused"), "failed to load user")

	repo.On("GetUserByEmail", mock.Anything, "ana@x.br").Return(nil, storageErr)

	_, err := s.CreateUser(context.Background(), users.CreateUserRequest{Nome: "Ana", Email: "ana@x.br", Senha: "segredo123"})
	assert.True(t, apperrors.Is(err, apperrors.KindStorage))
	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}
