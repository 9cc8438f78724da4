package submission

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/forms/internal/pkg/pagination"
	"github.com/mx-space/forms/internal/pkg/response"
	"github.com/mx-space/forms/internal/pkg/signedurl"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the admin routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	forms := rg.Group("/forms", authMW)
	forms.GET("/:id/submissions", h.list)
	forms.GET("/:id/submissions/export", h.exportCSV)
	forms.POST("/:id/submissions/archive", h.archive)

	g := rg.Group("/submissions", authMW)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

// RegisterPublicRoutes mounts the visitor routes. submitMW runs in front of
// the POST only.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup, submitMW ...gin.HandlerFunc) {
	rg.GET("/f/:token", h.open)
	rg.POST("/f/:token", append(submitMW, h.submit)...)
}

func (h *Handler) open(c *gin.Context) {
	form, err := h.svc.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, form)
}

func (h *Handler) submit(c *gin.Context) {
	var dto SubmitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sub, err := h.svc.Submit(c.Request.Context(), c.Param("token"), &dto, c.ClientIP(), c.Request.UserAgent())
	if errors.Is(err, ErrSpam) {
		// bots get the same answer as people
		response.Created(c, submitResponse{Message: "Thanks, your response was received."})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, submitResponse{ID: sub.ID, Message: "Thanks, your response was received."})
}

func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(c.Request.Context(), c.Param("id"), pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]submissionResponse, len(items))
	for i := range items {
		out[i] = toResponse(&items[i])
	}
	response.Paged(c, out, pag)
}

func (h *Handler) get(c *gin.Context) {
	sub, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if sub == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(sub))
}

func (h *Handler) delete(c *gin.Context) {
	found, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !found {
		response.NotFound(c)
		return
	}
	response.NoContent(c)
}

func (h *Handler) exportCSV(c *gin.Context) {
	body, name, err := h.svc.ExportCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

func (h *Handler) archive(c *gin.Context) {
	res, err := h.svc.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, res)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.Invalid(c, verr.Error(), verr.Errors)
	case errors.Is(err, signedurl.ErrInvalidToken), errors.Is(err, ErrFormNotFound):
		response.NotFoundMsg(c, "this form does not exist or the link has expired")
	case errors.Is(err, ErrFormClosed):
		response.Forbidden(c, err.Error())
	case errors.Is(err, signedurl.ErrTooFast):
		response.TooManyRequests(c, err.Error())
	case errors.Is(err, ErrBadTicket), errors.Is(err, ErrExportDisabled):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
