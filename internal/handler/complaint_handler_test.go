package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sns-grievance-api/internal/dto"
	"github.com/noah-isme/sns-grievance-api/internal/models"
	"github.com/noah-isme/sns-grievance-api/internal/service"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

type complaintServiceMock struct {
	created      *models.ComplaintDraft
	createActor  models.Actor
	listFilter   models.ComplaintFilter
	transitionID string
	command      models.TransitionCommand
	err          error
}

func (m *complaintServiceMock) Create(_ context.Context, draft models.ComplaintDraft, actor models.Actor) (*models.Complaint, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.created = &draft
	m.createActor = actor
	return &models.Complaint{
		ID:              "c-1",
		ComplaintNumber: "SNS-20240501-0001",
		Title:           draft.Title,
		Latitude:        draft.Latitude,
		Longitude:       draft.Longitude,
		Address:         draft.Address,
		Status:          models.StatusSubmitted,
		CitizenID:       actor.ID,
	}, nil
}

func (m *complaintServiceMock) Get(_ context.Context, id string, _ models.Actor) (*models.ComplaintDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.ComplaintDetail{Complaint: models.Complaint{ID: id}, History: []models.ComplaintHistoryEntry{}}, nil
}

func (m *complaintServiceMock) List(_ context.Context, filter models.ComplaintFilter, _ models.Actor) ([]models.Complaint, *models.Pagination, error) {
	m.listFilter = filter
	return []models.Complaint{{ID: "c-1"}}, &models.Pagination{Limit: 50, Offset: 0, Count: 1}, nil
}

func (m *complaintServiceMock) Count(_ context.Context, _ models.ComplaintFilter, _ models.Actor) (map[models.ComplaintStatus]int, error) {
	return map[models.ComplaintStatus]int{models.StatusSubmitted: 2}, nil
}

func (m *complaintServiceMock) Transition(_ context.Context, id string, cmd models.TransitionCommand) (*models.Complaint, error) {
	m.transitionID = id
	m.command = cmd
	if m.err != nil {
		return nil, m.err
	}
	return &models.Complaint{ID: id, Status: cmd.Target}, nil
}

func (m *complaintServiceMock) ConfirmClosure(_ context.Context, id string, _ dto.ConfirmClosureRequest, _ models.Actor) (*models.Complaint, error) {
	return &models.Complaint{ID: id, Status: models.StatusClosed, ClosedByCitizen: true}, nil
}

func (m *complaintServiceMock) UpdatePriority(_ context.Context, id string, req dto.UpdatePriorityRequest, _ models.Actor) (*models.Complaint, error) {
	return &models.Complaint{ID: id, Priority: models.ComplaintPriority(req.Priority)}, nil
}

type confirmedLocationsStub struct {
	location  models.Location
	err       error
	forgotten []string
}

func (s *confirmedLocationsStub) ConfirmedLocation(string) (models.Location, error) {
	return s.location, s.err
}

func (s *confirmedLocationsStub) Forget(userID string) {
	s.forgotten = append(s.forgotten, userID)
}

type exporterStub struct {
	result *service.ExportResult
	err    error
	filter models.ComplaintFilter
	format service.ExportFormat
}

func (s *exporterStub) Export(_ context.Context, filter models.ComplaintFilter, format service.ExportFormat, _ models.Actor) (*service.ExportResult, error) {
	s.filter = filter
	s.format = format
	return s.result, s.err
}

func floatPtr(v float64) *float64 { return &v }

func TestComplaintHandlerCreateWithCoordinates(t *testing.T) {
	svc := &complaintServiceMock{}
	h := NewComplaintHandler(svc, nil, nil)
	c, w := newTestContext(http.MethodPost, "/complaints", dto.CreateComplaintRequest{
		Title:        "Pipeline burst",
		Description:  "Water gushing on the main road",
		CategoryName: string(models.CategoryWaterSupply),
		Latitude:     floatPtr(19.0330),
		Longitude:    floatPtr(73.0297),
		Address:      "Sector 9A, Navi Mumbai",
	}, citizenClaims)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, 19.0330, svc.created.Latitude)
	assert.Equal(t, "42", svc.createActor.ID)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestComplaintHandlerCreateRequiresCoordinates(t *testing.T) {
	svc := &complaintServiceMock{}
	h := NewComplaintHandler(svc, nil, nil)
	c, w := newTestContext(http.MethodPost, "/complaints", dto.CreateComplaintRequest{Title: "Pothole"}, citizenClaims)

	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, svc.created)
}

func TestComplaintHandlerCreateUsesResolvedLocation(t *testing.T) {
	svc := &complaintServiceMock{}
	locations := &confirmedLocationsStub{location: models.Location{Latitude: 19.07, Longitude: 72.88, Address: "Nerul East, Navi Mumbai"}}
	h := NewComplaintHandler(svc, locations, nil)
	c, w := newTestContext(http.MethodPost, "/complaints", dto.CreateComplaintRequest{
		Title:               "Garbage pile",
		Description:         "Not collected for a week",
		CategoryName:        string(models.CategoryGarbageCollection),
		Address:             "Somewhere else entirely",
		UseResolvedLocation: true,
	}, citizenClaims)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 19.07, svc.created.Latitude)
	assert.Equal(t, "Nerul East, Navi Mumbai", svc.created.Address)
	assert.Equal(t, []string{"42"}, locations.forgotten)
}

func TestComplaintHandlerCreateWithoutResolvedLocation(t *testing.T) {
	svc := &complaintServiceMock{}
	locations := &confirmedLocationsStub{err: appErrors.Clone(appErrors.ErrValidation, "no location has been resolved")}
	h := NewComplaintHandler(svc, locations, nil)
	c, w := newTestContext(http.MethodPost, "/complaints", dto.CreateComplaintRequest{UseResolvedLocation: true}, citizenClaims)

	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, svc.created)
	require.Empty(t, locations.forgotten)
}

func TestComplaintHandlerListRejectsBadScope(t *testing.T) {
	h := NewComplaintHandler(&complaintServiceMock{}, nil, nil)
	c, w := newTestContext(http.MethodGet, "/complaints?scope=everything", nil, citizenClaims)

	h.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComplaintHandlerListReturnsPagination(t *testing.T) {
	svc := &complaintServiceMock{}
	h := NewComplaintHandler(svc, nil, nil)
	c, w := newTestContext(http.MethodGet, "/complaints?scope=active&limit=10", nil, officerClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body, "pagination")
	require.Equal(t, 10, svc.listFilter.Limit)
}

func TestComplaintHandlerTransition(t *testing.T) {
	svc := &complaintServiceMock{}
	h := NewComplaintHandler(svc, nil, nil)
	version := int64(3)
	c, w := newTestContext(http.MethodPatch, "/complaints/c-1/status", dto.TransitionComplaintRequest{
		Status:          "in_progress",
		Note:            " crew dispatched ",
		ExpectedVersion: &version,
	}, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}

	h.Transition(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c-1", svc.transitionID)
	assert.Equal(t, models.StatusInProgress, svc.command.Target)
	assert.Equal(t, "crew dispatched", svc.command.Note)
	assert.Equal(t, "o-7", svc.command.Actor.ID)
	assert.Equal(t, int64(3), *svc.command.ExpectedVersion)
}

func TestComplaintHandlerTransitionErrors(t *testing.T) {
	h := NewComplaintHandler(&complaintServiceMock{}, nil, nil)
	c, w := newTestContext(http.MethodPatch, "/complaints/c-1/status", dto.TransitionComplaintRequest{Status: "REOPENED"}, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	h.Transition(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	svc := &complaintServiceMock{err: appErrors.IllegalTransition("SUBMITTED", "RESOLVED")}
	h = NewComplaintHandler(svc, nil, nil)
	c, w = newTestContext(http.MethodPatch, "/complaints/c-1/status", dto.TransitionComplaintRequest{Status: "RESOLVED"}, officerClaims)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	h.Transition(c)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.Equal(t, appErrors.ErrIllegalTransition.Code, env.Error.Code)
}

func TestComplaintHandlerConfirmWithoutBody(t *testing.T) {
	h := NewComplaintHandler(&complaintServiceMock{}, nil, nil)
	c, w := newTestContext(http.MethodPost, "/complaints/c-1/confirm", nil, citizenClaims)
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}

	h.Confirm(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"CLOSED"`)
}

func TestComplaintHandlerExport(t *testing.T) {
	exporter := &exporterStub{result: &service.ExportResult{
		Filename:    "complaints_20240501_103000.csv",
		ContentType: "text/csv",
		Data:        []byte("Number\nSNS-20240501-0001\n"),
		Rows:        1,
		Truncated:   true,
	}}
	h := NewComplaintHandler(&complaintServiceMock{}, nil, exporter)
	c, w := newTestContext(http.MethodGet, "/complaints/export?format=csv&status=SUBMITTED", nil, officerClaims)

	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportFormatCSV, exporter.format)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "complaints_20240501_103000.csv")
	assert.Equal(t, "true", w.Header().Get("X-Export-Truncated"))
	assert.Equal(t, "Number\nSNS-20240501-0001\n", w.Body.String())
}

func TestComplaintHandlerExportDisabledAndBadFormat(t *testing.T) {
	h := NewComplaintHandler(&complaintServiceMock{}, nil, nil)
	c, w := newTestContext(http.MethodGet, "/complaints/export", nil, officerClaims)
	h.Export(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	h = NewComplaintHandler(&complaintServiceMock{}, nil, &exporterStub{})
	c, w = newTestContext(http.MethodGet, "/complaints/export?format=xlsx", nil, officerClaims)
	h.Export(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
