package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/ability"
	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/users"
)

// UserService is what the handler needs from the users package.
type UserService interface {
	Authenticate(ctx context.Context, email, senha string) (*users.User, error)
	CreateUser(ctx context.Context, req users.CreateUserRequest) (*users.User, error)
	ListUsers(ctx context.Context, secretariaID string) ([]users.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req users.UpdateUserRequest) (*users.User, error)
}

type Handler struct {
	users  UserService
	tokens *TokenManager
	logger *zap.Logger
}

func NewHandler(userService UserService, tokens *TokenManager, logger *zap.Logger) *Handler {
	return &Handler{users: userService, tokens: tokens, logger: logger}
}

type LoginRequest struct {
	Email string `json:"email" binding:"required"`
	Senha string `json:"senha" binding:"required"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *users.User    `json:"user"`
	Rules     []ability.Rule `json:"rules"`
}

type MeResponse struct {
	User          *users.User    `json:"user"`
	Rules         []ability.Rule `json:"rules"`
	IgnoredGrants []string       `json:"ignored_grants,omitempty"`
}

// RegisterPublicRoutes registers the routes that need no session.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)
}

// RegisterRoutes registers the routes behind RequireAuth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/me", h.Me)
	rg.POST("/auth/logout", h.Logout)

	usuarios := rg.Group("/usuarios")
	{
		usuarios.GET("", h.ListUsers)
		usuarios.POST("", h.CreateUser)
		usuarios.PATCH("/:id", h.UpdateUser)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Senha)
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if status == http.StatusForbidden {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, int(time.Until(expiresAt).Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
		Rules:     ability.Build(user).Rules(),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	user := CurrentUser(c)
	a := ability.Build(user)
	c.JSON(http.StatusOK, MeResponse{User: user, Rules: a.Rules(), IgnoredGrants: a.Ignored()})
}

func (h *Handler) ListUsers(c *gin.Context) {
	if !h.allowed(c, ability.ActionLer) {
		return
	}
	list, err := h.users.ListUsers(c.Request.Context(), c.Query("secretaria_id"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateUser(c *gin.Context) {
	if !h.allowed(c, ability.ActionCriar) {
		return
	}
	var req users.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	if !h.allowed(c, ability.ActionEditar) {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req users.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) allowed(c *gin.Context, action ability.Action) bool {
	if err := ability.Check(CurrentUser(c), action, ability.SubjectUsuario, nil); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return false
	}
	return true
}
