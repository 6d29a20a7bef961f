package numbering

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/ability"
	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/auth"
)

type Handler struct {
	allocator *Allocator
	logger    *zap.Logger
}

func NewHandler(allocator *Allocator, logger *zap.Logger) *Handler {
	return &Handler{allocator: allocator, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	livros := rg.Group("/livros")
	{
		livros.GET("", h.List)
		livros.GET("/proximo", h.Peek)
		livros.PUT("", h.Configure)
	}
}

// List returns the ledgers of a secretaria, or every ledger for global readers.
func (h *Handler) List(c *gin.Context) {
	user := auth.CurrentUser(c)
	secretaria := c.Query("secretaria_id")
	a := ability.Build(user)
	if secretaria == "" && !a.Can(ability.ActionLer, ability.SubjectLivroNumeracao, ability.Attributes{}) {
		secretaria = user.SecretariaID
	}
	if err := ability.Check(user, ability.ActionLer, ability.SubjectLivroNumeracao,
		ability.Attributes{ability.AttrSecretariaID: secretaria}); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ledgers, err := h.allocator.List(c.Request.Context(), secretaria)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ledgers)
}

// Peek shows the next number of a scope without consuming it.
func (h *Handler) Peek(c *gin.Context) {
	user := auth.CurrentUser(c)
	secretaria := c.Query("secretaria_id")
	if secretaria == "" {
		secretaria = user.SecretariaID
	}
	ano := 0
	if raw := c.Query("ano"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ano"})
			return
		}
		ano = v
	}
	if err := ability.Check(user, ability.ActionLer, ability.SubjectLivroNumeracao,
		ability.Attributes{ability.AttrSecretariaID: secretaria}); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	numero, err := h.allocator.Peek(c.Request.Context(), secretaria, c.Query("setor_id"), ano)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"numero": numero})
}

func (h *Handler) Configure(c *gin.Context) {
	var req ConfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user := auth.CurrentUser(c)
	if err := ability.Check(user, ability.ActionGerenciar, ability.SubjectLivroNumeracao,
		ability.Attributes{ability.AttrSecretariaID: req.SecretariaID}); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ledger, err := h.allocator.Configure(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("Ledger changed by user", zap.String("user_id", user.ID.String()), zap.String("secretaria_id", ledger.SecretariaID))
	c.JSON(http.StatusOK, ledger)
}
