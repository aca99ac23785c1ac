package handler

import (
	"github.com/gin-gonic/gin"
	apptesis "github.com/tesis/backend/internal/application/thesis"
	"github.com/tesis/backend/internal/interfaces/http/dto"
)

// ThesisHandler serves the thesis CRUD endpoints
type ThesisHandler struct {
	BaseHandler
	service *apptesis.ThesisService
}

// NewThesisHandler creates a new ThesisHandler
func NewThesisHandler(service *apptesis.ThesisService) *ThesisHandler {
	return &ThesisHandler{service: service}
}

// Create stores the wizard metadata as a new DRAFT thesis.
// POST /api/v1/theses
func (h *ThesisHandler) Create(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req dto.MetadataRequest
	if !h.bindJSON(c, &req) {
		return
	}

	t, err := h.service.Create(c.Request.Context(), ownerID, req.ToDomain())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToThesisResponse(t))
}

// List returns a page of the caller's theses.
// GET /api/v1/theses
func (h *ThesisHandler) List(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	req := dto.ListThesesRequest{ListRequest: dto.DefaultListRequest()}
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.service.List(c.Request.Context(), ownerID, apptesis.ListInput{
		Page:     req.Page,
		PageSize: req.PageSize,
		Search:   req.Search,
		Status:   req.Status,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.ToThesisSummaries(page.Items), page.TotalCount, page.Page, page.PageSize)
}

// Get returns a thesis with its sections.
// GET /api/v1/theses/:id
func (h *ThesisHandler) Get(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	t, err := h.service.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToThesisResponse(t))
}

// Update replaces the metadata.
// PUT /api/v1/theses/:id
func (h *ThesisHandler) Update(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateThesisRequest
	if !h.bindJSON(c, &req) {
		return
	}

	t, err := h.service.UpdateMetadata(c.Request.Context(), ownerID, id, apptesis.UpdateMetadataInput{
		Metadata: req.ToDomain(),
		Version:  req.Version,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToThesisResponse(t))
}

// EditSection saves canvas edits to one section.
// PUT /api/v1/theses/:id/sections/:name
func (h *ThesisHandler) EditSection(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.EditSectionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	t, err := h.service.EditSection(c.Request.Context(), ownerID, id, c.Param("name"), apptesis.EditSectionInput{
		Content: req.Content,
		Version: req.Version,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToThesisResponse(t))
}

// Delete removes a thesis and its sections.
// DELETE /api/v1/theses/:id
func (h *ThesisHandler) Delete(c *gin.Context) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), ownerID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
