package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/dto"
	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

var complaintNumberPattern = regexp.MustCompile(`^SNS-\d{8}-\d{4}$`)

type memoryComplaintStore struct {
	mu         sync.Mutex
	complaints map[string]models.Complaint
	history    map[string][]models.ComplaintHistoryEntry
	createErr  error
	updateErr  error
	getErr     error
}

func newMemoryComplaintStore() *memoryComplaintStore {
	return &memoryComplaintStore{
		complaints: make(map[string]models.Complaint),
		history:    make(map[string][]models.ComplaintHistoryEntry),
	}
}

func (m *memoryComplaintStore) CreateWithHistory(_ context.Context, complaint *models.Complaint, entry *models.ComplaintHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.complaints[complaint.ID] = complaint.Clone()
	m.history[complaint.ID] = append(m.history[complaint.ID], *entry)
	return nil
}

func (m *memoryComplaintStore) GetByID(_ context.Context, id string) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	complaint, ok := m.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := complaint.Clone()
	return &out, nil
}

func (m *memoryComplaintStore) ListHistory(_ context.Context, complaintID string) ([]models.ComplaintHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ComplaintHistoryEntry, len(m.history[complaintID]))
	copy(out, m.history[complaintID])
	return out, nil
}

func (m *memoryComplaintStore) List(_ context.Context, filter models.ComplaintFilter) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Complaint, 0)
	for _, complaint := range m.complaints {
		c := complaint
		if filter.Matches(&c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryComplaintStore) CountByStatus(_ context.Context, filter models.ComplaintFilter) ([]models.ComplaintStatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[models.ComplaintStatus]int)
	for _, complaint := range m.complaints {
		c := complaint
		if filter.Matches(&c) {
			totals[c.Status]++
		}
	}
	out := make([]models.ComplaintStatusCount, 0, len(totals))
	for status, total := range totals {
		out = append(out, models.ComplaintStatusCount{Status: status, Total: total})
	}
	return out, nil
}

func (m *memoryComplaintStore) UpdateWithHistory(_ context.Context, complaint *models.Complaint, expectedVersion int64, entry *models.ComplaintHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.complaints[complaint.ID]
	if !ok || stored.Version != expectedVersion {
		return sql.ErrNoRows
	}
	m.complaints[complaint.ID] = complaint.Clone()
	if entry != nil {
		m.history[complaint.ID] = append(m.history[complaint.ID], *entry)
	}
	return nil
}

func (m *memoryComplaintStore) seed(c models.Complaint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	m.complaints[c.ID] = c
}

type memoryCounter struct {
	mu   sync.Mutex
	days map[string]int64
	err  error
}

func (c *memoryCounter) Next(_ context.Context, day string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.days == nil {
		c.days = make(map[string]int64)
	}
	c.days[day]++
	return c.days[day], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ComplaintEvent
}

func (p *recordingPublisher) Publish(event models.ComplaintEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

const (
	seededID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	closedID = "1b4e28ba-2fa1-41d2-883f-0016d3cca427"
)

var (
	fixedNow     = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	citizenAsha  = models.Actor{ID: "42", Role: models.RoleCitizen, FullName: "Asha Patil"}
	citizenOther = models.Actor{ID: "77", Role: models.RoleCitizen, FullName: "Ravi Kulkarni"}
	officer      = models.Actor{ID: "officer-1", Role: models.RoleFieldOfficer, FullName: "Officer One"}
)

func newComplaintServiceForTest(t *testing.T, store *memoryComplaintStore, opts ...ComplaintServiceOption) *ComplaintService {
	t.Helper()
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	allocator := NewComplaintNumberAllocator(&memoryCounter{}, ist, nil, zap.NewNop())
	opts = append([]ComplaintServiceOption{WithComplaintClock(func() time.Time { return fixedNow })}, opts...)
	return NewComplaintService(store, allocator, nil, zap.NewNop(), opts...)
}

func validDraft() models.ComplaintDraft {
	return models.ComplaintDraft{
		Title:        "Pipeline burst",
		Description:  "Water gushing onto the road since morning",
		CategoryName: models.CategoryWaterSupply,
		Latitude:     19.0330,
		Longitude:    73.0297,
		Address:      "Sector 9A, Navi Mumbai",
	}
}

func TestComplaintServiceCreateAssignsNumberAndStatus(t *testing.T) {
	store := newMemoryComplaintStore()
	events := &recordingPublisher{}
	svc := newComplaintServiceForTest(t, store,
		WithComplaintEvents(events),
		WithSLAPolicy(SLAPolicy{models.PriorityMedium: 72 * time.Hour}),
	)

	complaint, err := svc.Create(context.Background(), validDraft(), citizenAsha)
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, complaint.Status)
	require.Regexp(t, complaintNumberPattern, complaint.ComplaintNumber)
	require.Equal(t, "SNS-20240501-0001", complaint.ComplaintNumber)
	require.Equal(t, models.PriorityMedium, complaint.Priority)
	require.Equal(t, "42", complaint.CitizenID)
	require.Equal(t, "Asha Patil", complaint.CitizenName)
	require.NotNil(t, complaint.SLADeadline)
	require.Equal(t, fixedNow.Add(72*time.Hour), *complaint.SLADeadline)

	detail, err := svc.Get(context.Background(), complaint.ID, citizenAsha)
	require.NoError(t, err)
	require.Len(t, detail.History, 1)
	require.Equal(t, models.ComplaintStatus(""), detail.History[0].FromStatus)
	require.Equal(t, models.StatusSubmitted, detail.History[0].ToStatus)

	require.Len(t, events.events, 1)
	require.Equal(t, models.ComplaintEventSubmitted, events.events[0].Type)
}

func TestComplaintServiceCreateValidation(t *testing.T) {
	svc := newComplaintServiceForTest(t, newMemoryComplaintStore())

	cases := map[string]func(*models.ComplaintDraft){
		"missing title":    func(d *models.ComplaintDraft) { d.Title = "  " },
		"unknown category": func(d *models.ComplaintDraft) { d.CategoryName = "Stray Dogs" },
		"unknown priority": func(d *models.ComplaintDraft) { d.Priority = "CRITICAL" },
		"missing address":  func(d *models.ComplaintDraft) { d.Address = "" },
		"latitude range":   func(d *models.ComplaintDraft) { d.Latitude = 91 },
		"longitude range":  func(d *models.ComplaintDraft) { d.Longitude = -181 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			draft := validDraft()
			mutate(&draft)
			_, err := svc.Create(context.Background(), draft, citizenAsha)
			require.Error(t, err)
			require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestComplaintServiceCreateRequiresCitizen(t *testing.T) {
	svc := newComplaintServiceForTest(t, newMemoryComplaintStore())

	_, err := svc.Create(context.Background(), validDraft(), officer)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), validDraft(), models.Actor{})
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceCreateStoreFailure(t *testing.T) {
	store := newMemoryComplaintStore()
	store.createErr = errors.New("connection reset")
	svc := newComplaintServiceForTest(t, store)

	_, err := svc.Create(context.Background(), validDraft(), citizenAsha)
	require.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	store := newMemoryComplaintStore()
	svc := newComplaintServiceForTest(t, store)

	const n = 25
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			complaint, err := svc.Create(context.Background(), validDraft(), citizenAsha)
			require.NoError(t, err)
			numbers <- complaint.ComplaintNumber
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]struct{}, n)
	for number := range numbers {
		require.Regexp(t, complaintNumberPattern, number)
		_, dup := seen[number]
		require.False(t, dup, "duplicate number %s", number)
		seen[number] = struct{}{}
	}
	require.Len(t, seen, n)
}

func TestComplaintServiceIllegalTransitionLeavesStatus(t *testing.T) {
	store := newMemoryComplaintStore()
	store.seed(models.Complaint{ID: seededID, Status: models.StatusSubmitted, CitizenID: "42"})
	svc := newComplaintServiceForTest(t, store)

	_, err := svc.Transition(context.Background(), seededID, models.TransitionCommand{Target: models.StatusResolved, Actor: officer})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)

	stored, err := store.GetByID(context.Background(), seededID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, stored.Status)
	require.Equal(t, int64(1), stored.Version)
}

func TestComplaintServiceTransitionRecordsHistory(t *testing.T) {
	store := newMemoryComplaintStore()
	events := &recordingPublisher{}
	svc := newComplaintServiceForTest(t, store, WithComplaintEvents(events))

	created, err := svc.Create(context.Background(), validDraft(), citizenAsha)
	require.NoError(t, err)

	updated, err := svc.Transition(context.Background(), created.ID, models.TransitionCommand{Target: models.StatusAssigned, Note: "crew dispatched", Actor: officer})
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, updated.Status)
	require.Equal(t, "officer-1", *updated.AssignedTo)

	detail, err := svc.Get(context.Background(), created.ID, citizenAsha)
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, detail.Complaint.Status)
	require.Len(t, detail.History, 2)
	last := detail.History[1]
	require.Equal(t, models.StatusSubmitted, last.FromStatus)
	require.Equal(t, models.StatusAssigned, last.ToStatus)
	require.Equal(t, "officer-1", last.ActorID)
	require.Equal(t, "crew dispatched", last.Note)

	require.Len(t, events.events, 2)
	require.Equal(t, models.ComplaintEventStatusChanged, events.events[1].Type)
	require.Equal(t, models.StatusSubmitted, events.events[1].FromStatus)
}

func TestComplaintServiceCitizenCannotDriveLifecycle(t *testing.T) {
	store := newMemoryComplaintStore()
	store.seed(models.Complaint{ID: seededID, Status: models.StatusSubmitted, CitizenID: "42"})
	svc := newComplaintServiceForTest(t, store)

	_, err := svc.Transition(context.Background(), seededID, models.TransitionCommand{Target: models.StatusAssigned, Actor: citizenAsha})
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Transition(context.Background(), seededID, models.TransitionCommand{Target: models.StatusAssigned, Actor: citizenOther})
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceMalformedIDIsNotFound(t *testing.T) {
	store := newMemoryComplaintStore()
	// Postgres rejects non-UUID text for a uuid column before any row lookup
	store.getErr = errors.New(`pq: invalid input syntax for type uuid: "abc"`)
	svc := newComplaintServiceForTest(t, store)
	ctx := context.Background()

	_, err := svc.Get(ctx, "abc", officer)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	_, err = svc.Transition(ctx, "abc", models.TransitionCommand{Target: models.StatusAssigned, Actor: officer})
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	_, err = svc.UpdatePriority(ctx, "abc", dto.UpdatePriorityRequest{Priority: "HIGH"}, officer)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	_, err = svc.ConfirmClosure(ctx, "abc", dto.ConfirmClosureRequest{}, citizenAsha)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	store.getErr = nil
	_, err = svc.Get(ctx, "5f0c6b1e-8d2a-4c3b-9e7f-1a2b3c4d5e6f", officer)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceConfirmClosure(t *testing.T) {
	store := newMemoryComplaintStore()
	store.seed(models.Complaint{ID: seededID, Status: models.StatusResolved, CitizenID: "42", Version: 4})
	svc := newComplaintServiceForTest(t, store)

	stale := int64(3)
	_, err := svc.ConfirmClosure(context.Background(), seededID, dto.ConfirmClosureRequest{ExpectedVersion: &stale}, citizenAsha)
	require.Equal(t, appErrors.ErrConcurrentModification.Code, appErrors.FromError(err).Code)

	closed, err := svc.ConfirmClosure(context.Background(), seededID, dto.ConfirmClosureRequest{Note: "fixed, thanks"}, citizenAsha)
	require.NoError(t, err)
	require.Equal(t, models.StatusClosed, closed.Status)
	require.True(t, closed.ClosedByCitizen)
	require.Equal(t, int64(5), closed.Version)
}

func TestComplaintServiceListByOwnerNewestFirst(t *testing.T) {
	store := newMemoryComplaintStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.seed(models.Complaint{ID: "a", CitizenID: "42", Status: models.StatusSubmitted, SubmittedAt: base})
	store.seed(models.Complaint{ID: "b", CitizenID: "77", Status: models.StatusSubmitted, SubmittedAt: base.Add(time.Hour)})
	store.seed(models.Complaint{ID: "c", CitizenID: "42", Status: models.StatusResolved, SubmittedAt: base.Add(2 * time.Hour)})
	store.seed(models.Complaint{ID: "d", CitizenID: "42", Status: models.StatusAssigned, SubmittedAt: base.Add(30 * time.Minute)})
	svc := newComplaintServiceForTest(t, store)

	complaints, page, err := svc.List(context.Background(), models.ByOwner("42"), officer)
	require.NoError(t, err)
	require.Len(t, complaints, 3)
	require.Equal(t, []string{"c", "d", "a"}, []string{complaints[0].ID, complaints[1].ID, complaints[2].ID})
	require.Equal(t, 3, page.Count)
	require.Equal(t, defaultListLimit, page.Limit)

	// citizens are scoped to their own complaints regardless of the requested filter
	complaints, _, err = svc.List(context.Background(), models.NewComplaintFilter(), citizenOther)
	require.NoError(t, err)
	require.Len(t, complaints, 1)
	require.Equal(t, "b", complaints[0].ID)

	complaints, _, err = svc.List(context.Background(), models.ByOwner("42"), citizenOther)
	require.NoError(t, err)
	require.Empty(t, complaints)

	active, _, err := svc.List(context.Background(), models.NewComplaintFilter(models.ByOwner("42"), models.ActiveOnly()), officer)
	require.NoError(t, err)
	require.Len(t, active, 2)
}

func TestComplaintServiceCountCoversEveryStatus(t *testing.T) {
	store := newMemoryComplaintStore()
	store.seed(models.Complaint{ID: "a", CitizenID: "42", Status: models.StatusSubmitted})
	store.seed(models.Complaint{ID: "b", CitizenID: "42", Status: models.StatusSubmitted})
	store.seed(models.Complaint{ID: "c", CitizenID: "77", Status: models.StatusClosed})
	svc := newComplaintServiceForTest(t, store)

	counts, err := svc.Count(context.Background(), models.NewComplaintFilter(), officer)
	require.NoError(t, err)
	require.Len(t, counts, len(models.ComplaintStatuses))
	require.Equal(t, 2, counts[models.StatusSubmitted])
	require.Equal(t, 1, counts[models.StatusClosed])
	require.Equal(t, 0, counts[models.StatusEscalated])

	counts, err = svc.Count(context.Background(), models.NewComplaintFilter(), citizenOther)
	require.NoError(t, err)
	require.Equal(t, 0, counts[models.StatusSubmitted])
	require.Equal(t, 1, counts[models.StatusClosed])
}

func TestComplaintServiceUpdatePriority(t *testing.T) {
	store := newMemoryComplaintStore()
	submitted := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	store.seed(models.Complaint{ID: seededID, CitizenID: "42", Status: models.StatusAssigned, Priority: models.PriorityMedium, SubmittedAt: submitted})
	store.seed(models.Complaint{ID: closedID, CitizenID: "42", Status: models.StatusClosed, Priority: models.PriorityLow, SubmittedAt: submitted})
	svc := newComplaintServiceForTest(t, store, WithSLAPolicy(SLAPolicy{models.PriorityUrgent: 4 * time.Hour}))

	updated, err := svc.UpdatePriority(context.Background(), seededID, dto.UpdatePriorityRequest{Priority: "urgent"}, officer)
	require.NoError(t, err)
	require.Equal(t, models.PriorityUrgent, updated.Priority)
	require.Equal(t, submitted.Add(4*time.Hour), *updated.SLADeadline)
	require.Equal(t, models.StatusAssigned, updated.Status)

	history, err := store.ListHistory(context.Background(), seededID)
	require.NoError(t, err)
	require.Empty(t, history)

	_, err = svc.UpdatePriority(context.Background(), closedID, dto.UpdatePriorityRequest{Priority: "HIGH"}, officer)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdatePriority(context.Background(), seededID, dto.UpdatePriorityRequest{Priority: "HIGH"}, citizenAsha)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdatePriority(context.Background(), seededID, dto.UpdatePriorityRequest{Priority: "SOON"}, officer)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceConcurrentResolveAndEscalate(t *testing.T) {
	for round := 0; round < 20; round++ {
		store := newMemoryComplaintStore()
		store.seed(models.Complaint{ID: seededID, CitizenID: "42", Status: models.StatusInProgress, Version: 3})
		svc := newComplaintServiceForTest(t, store)

		targets := []models.ComplaintStatus{models.StatusResolved, models.StatusEscalated}
		errs := make([]error, len(targets))
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i, target := range targets {
			wg.Add(1)
			go func(i int, target models.ComplaintStatus) {
				defer wg.Done()
				<-start
				_, errs[i] = svc.Transition(context.Background(), seededID, models.TransitionCommand{Target: target, Actor: officer})
			}(i, target)
		}
		close(start)
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			code := appErrors.FromError(err).Code
			require.Contains(t, []string{appErrors.ErrConcurrentModification.Code, appErrors.ErrIllegalTransition.Code}, code, fmt.Sprintf("round %d", round))
		}
		require.Equal(t, 1, winners)

		stored, err := store.GetByID(context.Background(), seededID)
		require.NoError(t, err)
		require.Contains(t, []models.ComplaintStatus{models.StatusResolved, models.StatusEscalated}, stored.Status)
		require.Equal(t, int64(4), stored.Version)
		history, err := store.ListHistory(context.Background(), seededID)
		require.NoError(t, err)
		require.Len(t, history, 1)
	}
}

func TestComplaintServiceFiledFromMapClick(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(_ context.Context, lat, lon float64) (string, error) {
		require.InDelta(t, 19.0330, lat, 1e-9)
		require.InDelta(t, 73.0297, lon, 1e-9)
		return "Sector 9A, Navi Mumbai", nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())
	store := newMemoryComplaintStore()
	svc := newComplaintServiceForTest(t, store)

	result, err := resolver.ResolveFromMapClick(context.Background(), models.DefaultLatitude, models.DefaultLongitude)
	require.NoError(t, err)
	require.False(t, result.Degraded)

	location, err := resolver.ConfirmedLocation()
	require.NoError(t, err)

	draft := models.ComplaintDraft{
		Title:        "Pipeline burst",
		Description:  "Main line burst near the bus stop",
		CategoryName: models.CategoryWaterSupply,
		Latitude:     location.Latitude,
		Longitude:    location.Longitude,
		Address:      location.Address,
	}
	complaint, err := svc.Create(context.Background(), draft, citizenAsha)
	require.NoError(t, err)

	stored, err := store.GetByID(context.Background(), complaint.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, stored.Status)
	require.Equal(t, "Sector 9A, Navi Mumbai", stored.Address)
	require.Equal(t, models.CategoryWaterSupply, stored.CategoryName)
	require.Regexp(t, complaintNumberPattern, stored.ComplaintNumber)
}

func TestFilterFromQuery(t *testing.T) {
	filter, err := FilterFromQuery(dto.ComplaintQuery{Scope: "active", Priority: "high,urgent", Limit: 10}, officer)
	require.NoError(t, err)
	require.Len(t, filter.Statuses, 4)
	require.ElementsMatch(t, []models.ComplaintPriority{models.PriorityHigh, models.PriorityUrgent}, filter.Priorities)
	require.Equal(t, 10, filter.Limit)

	filter, err = FilterFromQuery(dto.ComplaintQuery{Scope: "resolved", Status: "SUBMITTED"}, officer)
	require.NoError(t, err)
	require.True(t, filter.MatchesNothing())

	filter, err = FilterFromQuery(dto.ComplaintQuery{BBox: "18.9,72.9,19.2,73.2"}, officer)
	require.NoError(t, err)
	require.NotNil(t, filter.Box)
	require.True(t, filter.Box.Contains(19.0330, 73.0297))

	filter, err = FilterFromQuery(dto.ComplaintQuery{Scope: "mine"}, citizenAsha)
	require.NoError(t, err)
	require.Equal(t, "42", *filter.CitizenID)

	_, err = FilterFromQuery(dto.ComplaintQuery{CitizenID: "42"}, citizenOther)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	for _, q := range []dto.ComplaintQuery{
		{Scope: "everything"},
		{Status: "OPEN"},
		{Priority: "CRITICAL"},
		{BBox: "1,2,3"},
		{BBox: "19.2,72.9,18.9,73.2"},
		{BBox: "a,b,c,d"},
		{Offset: -1},
	} {
		_, err := FilterFromQuery(q, officer)
		require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code, fmt.Sprintf("%+v", q))
	}
}
