package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sns-grievance-api/internal/dto"
	"github.com/noah-isme/sns-grievance-api/internal/middleware"
	"github.com/noah-isme/sns-grievance-api/internal/models"
	"github.com/noah-isme/sns-grievance-api/internal/service"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
	"github.com/noah-isme/sns-grievance-api/pkg/response"
)

type locationSessions interface {
	ReverseGeocode(ctx context.Context, userID string, lat, lon float64) (models.LocationResult, error)
	Search(ctx context.Context, userID, query string) ([]models.LocationSuggestion, error)
	Select(userID string, suggestion models.LocationSuggestion) (models.LocationResult, error)
	FromDevice(ctx context.Context, userID string, locator service.DeviceLocator) (models.LocationResult, error)
	Snapshot(userID string) models.LocationSnapshot
	Forget(userID string)
}

type geocodeCacheFlusher interface {
	Flush(ctx context.Context, kind service.GeocodeKind) (string, error)
}

// LocationHandler drives the per-citizen location resolver used by the intake form.
type LocationHandler struct {
	sessions  locationSessions
	cache     geocodeCacheFlusher
	validator *validator.Validate
}

// NewLocationHandler builds a location handler; cache may be nil.
func NewLocationHandler(sessions locationSessions, cache geocodeCacheFlusher, validate *validator.Validate) *LocationHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &LocationHandler{sessions: sessions, cache: cache, validator: validate}
}

// Reverse godoc
// @Summary Resolve a map click
// @Tags Locations
// @Accept json
// @Produce json
// @Param payload body dto.ReverseLocationRequest true "Coordinate"
// @Success 200 {object} response.Envelope
// @Router /locations/reverse [post]
func (h *LocationHandler) Reverse(c *gin.Context) {
	var req dto.ReverseLocationRequest
	if !h.bind(c, &req, "invalid coordinate payload") {
		return
	}
	result, err := h.sessions.ReverseGeocode(c.Request.Context(), middleware.CurrentActor(c).ID, *req.Latitude, *req.Longitude)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondResult(c, result)
}

// Search godoc
// @Summary Search places by text
// @Description Debounced; a newer search from the same citizen supersedes this one.
// @Tags Locations
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /locations/search [get]
func (h *LocationHandler) Search(c *gin.Context) {
	suggestions, err := h.sessions.Search(c.Request.Context(), middleware.CurrentActor(c).ID, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(suggestions))
	response.JSON(c, http.StatusOK, suggestions, nil, middleware.ExtractMeta(c))
}

// Select godoc
// @Summary Choose a search suggestion
// @Tags Locations
// @Accept json
// @Produce json
// @Param payload body dto.SelectSuggestionRequest true "Suggestion"
// @Success 200 {object} response.Envelope
// @Router /locations/select [post]
func (h *LocationHandler) Select(c *gin.Context) {
	var req dto.SelectSuggestionRequest
	if !h.bind(c, &req, "invalid suggestion payload") {
		return
	}
	result, err := h.sessions.Select(middleware.CurrentActor(c).ID, req.ToSuggestion())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondResult(c, result)
}

// Device godoc
// @Summary Resolve a device positioning fix
// @Description Send either a fix or an error code (PERMISSION_DENIED, TIMEOUT, POSITION_UNAVAILABLE).
// @Tags Locations
// @Accept json
// @Produce json
// @Param payload body dto.DeviceFixRequest true "Device fix"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /locations/device [post]
func (h *LocationHandler) Device(c *gin.Context) {
	var req dto.DeviceFixRequest
	if !h.bind(c, &req, "invalid device payload") {
		return
	}
	result, err := h.sessions.FromDevice(c.Request.Context(), middleware.CurrentActor(c).ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondResult(c, result)
}

// Current godoc
// @Summary Show the caller's location session
// @Tags Locations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /locations/current [get]
func (h *LocationHandler) Current(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.sessions.Snapshot(middleware.CurrentActor(c).ID), nil)
}

// Reset godoc
// @Summary Discard the caller's location session
// @Tags Locations
// @Success 204
// @Router /locations/current [delete]
func (h *LocationHandler) Reset(c *gin.Context) {
	h.sessions.Forget(middleware.CurrentActor(c).ID)
	response.NoContent(c)
}

// FlushCache godoc
// @Summary Flush cached geocoder answers
// @Tags Locations
// @Produce json
// @Param kind query string false "reverse, search or all"
// @Success 200 {object} response.Envelope
// @Router /locations/cache [delete]
func (h *LocationHandler) FlushCache(c *gin.Context) {
	if h.cache == nil {
		response.JSON(c, http.StatusOK, gin.H{"flushed": false}, nil)
		return
	}
	kind, err := service.ParseGeocodeKind(c.Query("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	pattern, err := h.cache.Flush(c.Request.Context(), kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"flushed": true, "pattern": pattern}, nil)
}

func (h *LocationHandler) bind(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func (h *LocationHandler) respondResult(c *gin.Context, result models.LocationResult) {
	if result.Degraded {
		middleware.SetMeta(c, "degraded", true)
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
