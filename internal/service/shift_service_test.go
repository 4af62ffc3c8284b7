package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffops/staffing-api/internal/models"
	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

type mockShiftRepo struct {
	shifts   map[string]*models.Shift
	details  map[string]models.ShiftDetail
	listLen  int
	listRuns int
}

func (m *mockShiftRepo) Create(ctx context.Context, shift *models.Shift, now time.Time) error {
	if m.shifts == nil {
		m.shifts = make(map[string]*models.Shift)
	}
	shift.ID = "shift-1"
	m.shifts[shift.ID] = shift
	return nil
}

func (m *mockShiftRepo) FindByID(ctx context.Context, id string) (*models.Shift, error) {
	if s, ok := m.shifts[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockShiftRepo) FindDetailByID(ctx context.Context, id string) (*models.ShiftDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockShiftRepo) List(ctx context.Context, filter models.ShiftFilter) ([]models.ShiftDetail, int, error) {
	m.listRuns++
	rows := make([]models.ShiftDetail, 0, m.listLen)
	for i := 0; i < m.listLen; i++ {
		rows = append(rows, models.ShiftDetail{ProjectTitle: "Summer Expo", HourlyWage: 1500})
	}
	return rows, m.listLen, nil
}

func (m *mockShiftRepo) Update(ctx context.Context, shift *models.Shift, now time.Time) (bool, error) {
	stored, ok := m.shifts[shift.ID]
	if !ok {
		return false, nil
	}
	if shift.Capacity < stored.ConfirmedCount {
		return false, nil
	}
	cp := *shift
	cp.ConfirmedCount = stored.ConfirmedCount
	m.shifts[shift.ID] = &cp
	return true, nil
}

func (m *mockShiftRepo) Delete(ctx context.Context, id string) (bool, error) {
	s, ok := m.shifts[id]
	if !ok || s.ConfirmedCount > 0 {
		return false, nil
	}
	delete(m.shifts, id)
	return true, nil
}

// mockListCache stores JSON the way the Redis cache does, so Get exercises
// real round-trip decoding.
type mockListCache struct {
	entries       map[string][]byte
	invalidations int
}

func (m *mockListCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *mockListCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = data
	return nil
}

func (m *mockListCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidations++
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

type mockProjectReader struct {
	projects map[string]*models.Project
}

func (m *mockProjectReader) FindByID(ctx context.Context, id string) (*models.Project, error) {
	if p, ok := m.projects[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func expoProject() *models.Project {
	return &models.Project{
		ID:         "proj-1",
		ClientID:   "client-1",
		Title:      "Summer Expo",
		StartDate:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		HourlyWage: 1500,
		Status:     models.ProjectStatusPublished,
	}
}

func newShiftServiceForTest(repo *mockShiftRepo, cache *mockListCache) *ShiftService {
	projects := &mockProjectReader{projects: map[string]*models.Project{"proj-1": expoProject()}}
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	var c listCache
	if cache != nil {
		c = cache
	}
	return NewShiftService(repo, projects, c, time.Minute, nil, nil, fixedClock(now))
}

func TestShiftServiceCreate(t *testing.T) {
	repo := &mockShiftRepo{}
	cache := &mockListCache{}
	svc := newShiftServiceForTest(repo, cache)

	shift, err := svc.Create(context.Background(), CreateShiftRequest{
		ProjectID:    "proj-1",
		Date:         time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		StartTime:    "09:00",
		EndTime:      "18:00",
		BreakMinutes: 60,
		Capacity:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, "shift-1", shift.ID)
	assert.Equal(t, 1, cache.invalidations)
}

func TestShiftServiceCreateOutsideProjectPeriod(t *testing.T) {
	svc := newShiftServiceForTest(&mockShiftRepo{}, &mockListCache{})

	_, err := svc.Create(context.Background(), CreateShiftRequest{
		ProjectID: "proj-1",
		Date:      time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "18:00",
		Capacity:  3,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestShiftServiceListCachesResults(t *testing.T) {
	repo := &mockShiftRepo{listLen: 2}
	cache := &mockListCache{}
	svc := newShiftServiceForTest(repo, cache)

	filter := models.ShiftFilter{ProjectID: "proj-1", Page: 1, PageSize: 20}

	rows, page, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 1, repo.listRuns)

	rows, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "Summer Expo", rows[0].ProjectTitle)
	assert.Equal(t, 1, repo.listRuns, "second read should come from cache")
}

func TestShiftServiceListDistinctFiltersMissCache(t *testing.T) {
	repo := &mockShiftRepo{listLen: 1}
	cache := &mockListCache{}
	svc := newShiftServiceForTest(repo, cache)

	_, _, err := svc.List(context.Background(), models.ShiftFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), models.ShiftFilter{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listRuns)
}

func TestShiftServiceListWithoutCache(t *testing.T) {
	repo := &mockShiftRepo{listLen: 1}
	svc := newShiftServiceForTest(repo, nil)

	_, _, err := svc.List(context.Background(), models.ShiftFilter{})
	require.NoError(t, err)
	_, _, err = svc.List(context.Background(), models.ShiftFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listRuns)
}

func TestShiftServiceUpdateInvalidatesCache(t *testing.T) {
	repo := &mockShiftRepo{listLen: 1}
	cache := &mockListCache{}
	svc := newShiftServiceForTest(repo, cache)

	shift, err := svc.Create(context.Background(), CreateShiftRequest{
		ProjectID: "proj-1",
		Date:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "18:00",
		Capacity:  3,
	})
	require.NoError(t, err)

	filter := models.ShiftFilter{Page: 1, PageSize: 20}
	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	_, err = svc.Update(context.Background(), shift.ID, UpdateShiftRequest{
		Date:      shift.Date,
		StartTime: "10:00",
		EndTime:   "18:00",
		Capacity:  3,
	})
	require.NoError(t, err)
	assert.Empty(t, cache.entries)

	_, _, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listRuns)
}

func TestShiftServiceUpdateCapacityBelowConfirmed(t *testing.T) {
	repo := &mockShiftRepo{shifts: map[string]*models.Shift{
		"shift-1": {
			ID:             "shift-1",
			ProjectID:      "proj-1",
			Date:           time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
			StartTime:      "09:00",
			EndTime:        "18:00",
			Capacity:       3,
			ConfirmedCount: 2,
		},
	}}
	svc := newShiftServiceForTest(repo, &mockListCache{})

	_, err := svc.Update(context.Background(), "shift-1", UpdateShiftRequest{
		Date:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "18:00",
		Capacity:  1,
	})
	require.ErrorIs(t, err, appErrors.ErrStateConflict)
	assert.Equal(t, 3, repo.shifts["shift-1"].Capacity)
}

func TestShiftServiceDeleteWithConfirmedStaff(t *testing.T) {
	repo := &mockShiftRepo{shifts: map[string]*models.Shift{
		"shift-1": {ID: "shift-1", ConfirmedCount: 1},
	}}
	svc := newShiftServiceForTest(repo, &mockListCache{})

	err := svc.Delete(context.Background(), "shift-1")
	require.ErrorIs(t, err, appErrors.ErrStateConflict)

	repo.shifts["shift-1"].ConfirmedCount = 0
	require.NoError(t, svc.Delete(context.Background(), "shift-1"))
	assert.NotContains(t, repo.shifts, "shift-1")
}
