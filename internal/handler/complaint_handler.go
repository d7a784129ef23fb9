package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sns-grievance-api/internal/dto"
	"github.com/noah-isme/sns-grievance-api/internal/middleware"
	"github.com/noah-isme/sns-grievance-api/internal/models"
	"github.com/noah-isme/sns-grievance-api/internal/service"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
	"github.com/noah-isme/sns-grievance-api/pkg/response"
)

type complaintService interface {
	Create(ctx context.Context, draft models.ComplaintDraft, actor models.Actor) (*models.Complaint, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.ComplaintDetail, error)
	List(ctx context.Context, filter models.ComplaintFilter, actor models.Actor) ([]models.Complaint, *models.Pagination, error)
	Count(ctx context.Context, filter models.ComplaintFilter, actor models.Actor) (map[models.ComplaintStatus]int, error)
	Transition(ctx context.Context, id string, cmd models.TransitionCommand) (*models.Complaint, error)
	ConfirmClosure(ctx context.Context, id string, req dto.ConfirmClosureRequest, actor models.Actor) (*models.Complaint, error)
	UpdatePriority(ctx context.Context, id string, req dto.UpdatePriorityRequest, actor models.Actor) (*models.Complaint, error)
}

type confirmedLocations interface {
	ConfirmedLocation(userID string) (models.Location, error)
	Forget(userID string)
}

type complaintExporter interface {
	Export(ctx context.Context, filter models.ComplaintFilter, format service.ExportFormat, actor models.Actor) (*service.ExportResult, error)
}

// ComplaintHandler exposes complaint intake, listing and lifecycle endpoints.
type ComplaintHandler struct {
	service   complaintService
	locations confirmedLocations
	exporter  complaintExporter
}

// NewComplaintHandler builds a complaint handler. locations and exporter may be nil.
func NewComplaintHandler(service complaintService, locations confirmedLocations, exporter complaintExporter) *ComplaintHandler {
	return &ComplaintHandler{service: service, locations: locations, exporter: exporter}
}

// Create godoc
// @Summary Submit a complaint
// @Description Citizens submit a grievance. Set useResolvedLocation to take the coordinate from the location session.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param payload body dto.CreateComplaintRequest true "Complaint payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	var req dto.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint payload"))
		return
	}
	actor := middleware.CurrentActor(c)
	draft := req.ToDraft()
	switch {
	case req.UseResolvedLocation:
		if h.locations == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "location sessions are not available"))
			return
		}
		loc, err := h.locations.ConfirmedLocation(actor.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		// the resolved address belongs to the resolved coordinate; a body address is ignored
		draft.Latitude = loc.Latitude
		draft.Longitude = loc.Longitude
		draft.Address = loc.Address
	case !req.HasCoordinates():
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "latitude and longitude are required"))
		return
	}

	complaint, err := h.service.Create(c.Request.Context(), draft, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if req.UseResolvedLocation {
		h.locations.Forget(actor.ID)
	}
	response.Created(c, complaint)
}

// List godoc
// @Summary List complaints
// @Description Citizens see their own complaints; staff may filter the whole register.
// @Tags Complaints
// @Produce json
// @Param scope query string false "mine, active, resolved or all"
// @Param status query string false "Comma separated statuses"
// @Param priority query string false "Comma separated priorities"
// @Param bbox query string false "latMin,lonMin,latMax,lonMax"
// @Param citizenId query string false "Citizen filter (staff only)"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	var query dto.ComplaintQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	actor := middleware.CurrentActor(c)
	filter, err := service.FilterFromQuery(query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination, middleware.ExtractMeta(c))
}

// Stats godoc
// @Summary Count complaints by status
// @Tags Complaints
// @Produce json
// @Param scope query string false "mine, active, resolved or all"
// @Param bbox query string false "latMin,lonMin,latMax,lonMax"
// @Success 200 {object} response.Envelope
// @Router /complaints/stats [get]
func (h *ComplaintHandler) Stats(c *gin.Context) {
	var query dto.ComplaintQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	actor := middleware.CurrentActor(c)
	filter, err := service.FilterFromQuery(query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	counts, err := h.service.Count(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// Get godoc
// @Summary Get complaint detail with status history
// @Tags Complaints
// @Produce json
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Transition godoc
// @Summary Change complaint status
// @Description Staff move a complaint along the lifecycle. Illegal edges return 409.
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.TransitionComplaintRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /complaints/{id}/status [patch]
func (h *ComplaintHandler) Transition(c *gin.Context) {
	var req dto.TransitionComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	target := models.ComplaintStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !target.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status"))
		return
	}
	complaint, err := h.service.Transition(c.Request.Context(), c.Param("id"), models.TransitionCommand{
		Target:          target,
		Note:            strings.TrimSpace(req.Note),
		AssigneeID:      req.AssigneeID,
		ProofRef:        req.ProofRef,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           middleware.CurrentActor(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Confirm godoc
// @Summary Confirm resolution and close complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.ConfirmClosureRequest false "Closure payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/confirm [post]
func (h *ComplaintHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmClosureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid closure payload"))
			return
		}
	}
	complaint, err := h.service.ConfirmClosure(c.Request.Context(), c.Param("id"), req, middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// UpdatePriority godoc
// @Summary Change complaint priority
// @Tags Complaints
// @Accept json
// @Produce json
// @Param id path string true "Complaint ID"
// @Param payload body dto.UpdatePriorityRequest true "Priority payload"
// @Success 200 {object} response.Envelope
// @Router /complaints/{id}/priority [patch]
func (h *ComplaintHandler) UpdatePriority(c *gin.Context) {
	var req dto.UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid priority payload"))
		return
	}
	complaint, err := h.service.UpdatePriority(c.Request.Context(), c.Param("id"), req, middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, complaint, nil)
}

// Export godoc
// @Summary Export the complaint register
// @Tags Complaints
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param status query string false "Comma separated statuses"
// @Param bbox query string false "latMin,lonMin,latMax,lonMax"
// @Success 200 {file} file
// @Router /complaints/export [get]
func (h *ComplaintHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	format, err := service.ParseExportFormat(query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	actor := middleware.CurrentActor(c)
	filter, err := service.FilterFromQuery(query.ComplaintQuery, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exporter.Export(c.Request.Context(), filter, format, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Truncated {
		c.Header("X-Export-Truncated", "true")
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
