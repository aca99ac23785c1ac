package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apptesis "github.com/tesis/backend/internal/application/thesis"
	"github.com/tesis/backend/internal/interfaces/http/dto"
	"github.com/tesis/backend/internal/interfaces/http/middleware"
)

// ExportHandler serves document downloads and archived exports
type ExportHandler struct {
	BaseHandler
	service *apptesis.ExportService
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(service *apptesis.ExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Download renders the thesis and sends it as an attachment.
// GET /api/v1/theses/:id/export?format=docx|pdf|html
func (h *ExportHandler) Download(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ExportRequest
	if !h.bindQuery(c, &req) {
		return
	}

	doc, err := h.service.Export(c.Request.Context(), ownerID, id, req.Format)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	c.Header("Content-Length", strconv.Itoa(len(doc.Data)))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// Archive renders the thesis into object storage and returns its URL.
// The format comes from the query string or a JSON body.
// POST /api/v1/theses/:id/exports
func (h *ExportHandler) Archive(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ExportRequest
	if !h.bindQuery(c, &req) {
		return
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}

	archived, err := h.service.Archive(c.Request.Context(), ownerID, id, req.Format)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, archived)
}
