package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"docs-cataguases/portal-backend/internal/apperrors"
)

const minPasswordLength = 8

// Repository persists users.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, secretariaID string) ([]User, error)
	UpdateUser(ctx context.Context, user *User) error
}

type Service struct {
	repo       Repository
	bcryptCost int
	logger     *zap.Logger
}

func NewService(repo Repository, bcryptCost int, logger *zap.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, bcryptCost: bcryptCost, logger: logger}
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Nome) == "" {
		return nil, apperrors.Validation("nome and email are required")
	}
	if len(req.Senha) < minPasswordLength {
		return nil, apperrors.Validation("senha must have at least %d characters", minPasswordLength)
	}
	role := req.Role
	if role == "" {
		role = RoleOperador
	}
	if !role.Valid() {
		return nil, apperrors.Validation("unknown role %q", role)
	}

	if existing, err := s.repo.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.Conflict("email %s is already registered", email)
	} else if err != nil && !apperrors.Is(err, apperrors.KindNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Senha), s.bcryptCost)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to hash password")
	}

	user := &User{
		ID:              uuid.New(),
		Nome:            strings.TrimSpace(req.Nome),
		Email:           email,
		Role:            role,
		Ativo:           true,
		SecretariaID:    req.SecretariaID,
		SetorID:         req.SetorID,
		PermissoesExtra: req.PermissoesExtra,
		SenhaHash:       string(hash),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, secretariaID string) ([]User, error) {
	return s.repo.ListUsers(ctx, secretariaID)
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Nome != nil {
		user.Nome = *req.Nome
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, apperrors.Validation("unknown role %q", *req.Role)
		}
		user.Role = *req.Role
	}
	if req.Ativo != nil {
		user.Ativo = *req.Ativo
	}
	if req.SecretariaID != nil {
		user.SecretariaID = *req.SecretariaID
	}
	if req.SetorID != nil {
		user.SetorID = *req.SetorID
	}
	if req.PermissoesExtra != nil {
		user.PermissoesExtra = *req.PermissoesExtra
	}
	user.UpdatedAt = time.Now()

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User updated", zap.String("user_id", id.String()))
	return user, nil
}

// Authenticate checks the credentials and returns the active user.
func (s *Service) Authenticate(ctx context.Context, email, senha string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.Authorization("invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.SenhaHash), []byte(senha)); err != nil {
		return nil, apperrors.Authorization("invalid credentials")
	}
	if !user.Ativo {
		return nil, apperrors.Authorization("user is inactive")
	}
	return user, nil
}

// EnsureAdmin creates an ADMIN account for email unless one is registered.
func (s *Service) EnsureAdmin(ctx context.Context, email, senha string) (*User, error) {
	existing, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return existing, nil
	}
	if !apperrors.Is(err, apperrors.KindNotFound) {
		return nil, err
	}
	user, err := s.CreateUser(ctx, CreateUserRequest{
		Nome:  "Administrador",
		Email: email,
		Senha: senha,
		Role:  RoleAdmin,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("Bootstrap administrator created", zap.String("email", user.Email))
	return user, nil
}
