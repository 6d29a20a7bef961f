package feed

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/auth"
)

type Handler struct {
	service *Service
	hub     *Hub
	logger  *zap.Logger
}

func NewHandler(service *Service, hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{service: service, hub: hub, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	feed := rg.Group("/feed")
	{
		feed.GET("", h.List)
		feed.GET("/ws", h.Stream)
	}
}

func (h *Handler) List(c *gin.Context) {
	filter := Filter{SecretariaID: c.Query("secretaria_id")}
	if raw := c.Query("portaria_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid portaria_id"})
			return
		}
		filter.PortariaID = &id
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	entries, err := h.service.List(c.Request.Context(), auth.CurrentUser(c), filter)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Stream upgrades to a websocket that receives new entries as they commit.
func (h *Handler) Stream(c *gin.Context) {
	user := auth.CurrentUser(c)
	secretaria, err := Scope(user, c.Query("secretaria_id"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, user.ID.String(), secretaria, secretaria == ""); err != nil {
		h.logger.Warn("Feed stream failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}
