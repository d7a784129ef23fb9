package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sns-grievance-api/internal/middleware"
	"github.com/noah-isme/sns-grievance-api/internal/models"
	"github.com/noah-isme/sns-grievance-api/internal/service"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
	"github.com/noah-isme/sns-grievance-api/pkg/response"
)

type evidenceService interface {
	Upload(ctx context.Context, upload service.EvidenceUpload, actor models.Actor) (*models.EvidenceObject, error)
	Link(ref string) (string, time.Time, error)
	Download(ctx context.Context, token string) (*service.EvidenceDownload, error)
}

// EvidenceHandler accepts complaint photos and serves them through signed links.
type EvidenceHandler struct {
	service evidenceService
}

// NewEvidenceHandler builds an evidence handler.
func NewEvidenceHandler(service evidenceService) *EvidenceHandler {
	return &EvidenceHandler{service: service}
}

// Upload godoc
// @Summary Upload complaint evidence
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Photo"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /evidence [post]
func (h *EvidenceHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	object, err := h.service.Upload(c.Request.Context(), service.EvidenceUpload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	}, middleware.CurrentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, object)
}

// Link godoc
// @Summary Issue a fresh signed link for evidence
// @Tags Evidence
// @Produce json
// @Param ref query string true "Evidence reference"
// @Success 200 {object} response.Envelope
// @Router /evidence/link [get]
func (h *EvidenceHandler) Link(c *gin.Context) {
	url, expiresAt, err := h.service.Link(c.Query("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"downloadUrl": url, "expiresAt": expiresAt}, nil)
}

// Download godoc
// @Summary Download evidence by signed token
// @Tags Evidence
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /evidence/download [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	download, err := h.service.Download(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.Header("Content-Type", download.MimeType)
	c.Header("Content-Length", strconv.FormatInt(download.SizeBytes, 10))
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", download.Filename))
	if !download.ExpiresAt.IsZero() {
		maxAge := int(time.Until(download.ExpiresAt).Seconds())
		if maxAge < 0 {
			maxAge = 0
		}
		c.Header("Cache-Control", "private, max-age="+strconv.Itoa(maxAge))
	}
	c.Status(http.StatusOK)
	if strings.EqualFold(c.Request.Method, http.MethodHead) {
		return
	}
	if _, err := io.Copy(c.Writer, download.File); err != nil {
		_ = c.Error(err)
	}
}
