package builder

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/pkg/response"
	"github.com/mx-space/forms/internal/property"
	"github.com/mx-space/forms/internal/schema"
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc, logger: svc.logger} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("", authMW)
	g.POST("/forms/:id/fields", h.createField)
	g.POST("/forms/:id/elements", h.createElement)
	g.PUT("/forms/:id/order", h.reorder)

	g.GET("/fields/:id/properties", h.fieldProperties)
	g.PUT("/fields/:id/properties", h.saveFieldProperties)
	g.DELETE("/fields/:id", h.deleteField)

	g.GET("/elements/:id/properties", h.elementProperties)
	g.PUT("/elements/:id/properties", h.saveElementProperties)
	g.DELETE("/elements/:id", h.deleteElement)

	g.GET("/schemas/:kind", h.types)
	g.GET("/schemas/:kind/:type", h.schema)
}

func (h *Handler) createField(c *gin.Context) {
	var dto CreateFieldDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	f, err := h.svc.CreateField(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, f)
}

func (h *Handler) createElement(c *gin.Context) {
	var dto CreateElementDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	e, err := h.svc.CreateElement(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, e)
}

func (h *Handler) reorder(c *gin.Context) {
	var dto ReorderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	tree, err := h.svc.Reorder(c.Request.Context(), c.Param("id"), dto.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, tree)
}

func (h *Handler) fieldProperties(c *gin.Context) {
	res, err := h.svc.FieldProperties(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

func (h *Handler) elementProperties(c *gin.Context) {
	res, err := h.svc.ElementProperties(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

func (h *Handler) saveFieldProperties(c *gin.Context) {
	var dto SavePropertiesDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	tree, err := h.svc.SaveFieldProperties(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, tree)
}

func (h *Handler) saveElementProperties(c *gin.Context) {
	var dto SavePropertiesDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	tree, err := h.svc.SaveElementProperties(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, tree)
}

func (h *Handler) deleteField(c *gin.Context) {
	if err := h.svc.DeleteField(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) deleteElement(c *gin.Context) {
	if err := h.svc.DeleteElement(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) types(c *gin.Context) {
	kind, ok := parseKind(c.Param("kind"))
	if !ok {
		response.NotFound(c)
		return
	}
	response.OK(c, h.svc.Types(kind))
}

func (h *Handler) schema(c *gin.Context) {
	kind, ok := parseKind(c.Param("kind"))
	if !ok {
		response.NotFound(c)
		return
	}
	cs, err := h.svc.Schema(kind, c.Param("type"))
	if err != nil {
		response.NotFoundMsg(c, property.UserMessage(err))
		return
	}
	response.OK(c, cs)
}

func parseKind(raw string) (schema.Kind, bool) {
	switch strings.TrimSuffix(strings.ToLower(raw), "s") {
	case string(schema.KindField):
		return schema.KindField, true
	case string(schema.KindElement):
		return schema.KindElement, true
	}
	return "", false
}

// fail maps engine errors to the editor's inline message.
func (h *Handler) fail(c *gin.Context, err error) {
	msg := property.UserMessage(err)
	switch {
	case errors.Is(err, property.ErrSlugConflict):
		response.Conflict(c, msg)
	case errors.Is(err, property.ErrNotFound):
		response.NotFoundMsg(c, msg)
	case errors.Is(err, schema.ErrUnknownType), errors.Is(err, property.ErrUnknownColumn):
		response.UnprocessableEntity(c, msg)
	case errors.Is(err, ErrInvalidParent):
		response.BadRequest(c, err.Error())
	case errors.Is(err, layout.ErrTreeTooDeep):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, property.ErrPersistence):
		h.logger.Error("commit failed", zap.Error(err))
		response.InternalErrorMsg(c, msg)
	default:
		h.logger.Error("builder request failed", zap.Error(err))
		response.InternalErrorMsg(c, msg)
	}
}
