package portarias

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/auth"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service  *Service
	workflow *WorkflowService
	logger   *zap.Logger
}

func NewHandler(service *Service, workflow *WorkflowService, logger *zap.Logger) *Handler {
	return &Handler{service: service, workflow: workflow, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	portarias := rg.Group("/portarias")
	{
		portarias.POST("", h.Create)
		portarias.GET("", h.List)
		portarias.GET("/registro.xlsx", h.ExportRegister)
		portarias.GET("/:id", h.Get)
		portarias.PATCH("/:id", h.Update)
		portarias.DELETE("/:id", h.Delete)
		portarias.GET("/:id/acoes", h.AvailableActions)
		portarias.POST("/:id/acoes", h.Transition)
		portarias.GET("/:id/download", h.Download)
		portarias.GET("/:id/integridade", h.VerifyIntegrity)
	}

	modelos := rg.Group("/modelos")
	{
		modelos.POST("", h.CreateModelo)
		modelos.GET("", h.ListModelos)
		modelos.GET("/:id", h.GetModelo)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req CreatePortariaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.service.CreatePortaria(c.Request.Context(), auth.CurrentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	list, err := h.service.ListPortarias(c.Request.Context(), auth.CurrentUser(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := h.service.GetPortaria(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdatePortariaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.service.UpdatePortaria(c.Request.Context(), auth.CurrentUser(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.DeletePortaria(c.Request.Context(), auth.CurrentUser(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AvailableActions(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	actions, err := h.workflow.AvailableActions(c.Request.Context(), id, auth.CurrentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (h *Handler) Transition(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := auth.CurrentUser(c)
	p, err := h.workflow.Transition(c.Request.Context(), id, req.Action, user.ID, Payload{Observacao: req.Observacao})
	if err != nil {
		body := gin.H{"error": err.Error(), "kind": apperrors.KindOf(err)}
		if p != nil {
			body["portaria"] = p
		}
		c.JSON(apperrors.HTTPStatus(err), body)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	link, err := h.service.DownloadLink(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, link.URL)
		return
	}
	c.JSON(http.StatusOK, link)
}

func (h *Handler) VerifyIntegrity(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	info, err := h.service.VerifyIntegrity(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) ExportRegister(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.service.ExportRegister(c.Request.Context(), auth.CurrentUser(c), filter, &buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="registro-portarias-%d.xlsx"`, filter.Ano))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) CreateModelo(c *gin.Context) {
	var req CreateModeloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.service.CreateModelo(c.Request.Context(), auth.CurrentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListModelos(c *gin.Context) {
	list, err := h.service.ListModelos(c.Request.Context(), auth.CurrentUser(c), c.Query("secretaria_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetModelo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	m, err := h.service.GetModelo(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (ListFilter, bool) {
	filter := ListFilter{
		SecretariaID: c.Query("secretaria_id"),
		SetorID:      c.Query("setor_id"),
		Status:       Status(c.Query("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return filter, false
	}
	if raw := c.Query("criado_por_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid criado_por_id"})
			return filter, false
		}
		filter.CriadoPorID = &id
	}
	for name, dst := range map[string]*int{"ano": &filter.Ano, "limit": &filter.Limit, "offset": &filter.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
			return filter, false
		}
		*dst = v
	}
	return filter, true
}
