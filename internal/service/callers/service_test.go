package callers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
)

var testInstant = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

type memRepo struct {
	mu      sync.Mutex
	callers []*caller.Caller
	counts  map[string]int
}

func newMemRepo() *memRepo {
	return &memRepo{counts: make(map[string]int)}
}

func (r *memRepo) key(id uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s|%s", id, day.Format("2006-01-02"))
}

func (r *memRepo) Create(ctx context.Context, c *caller.Caller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callers = append(r.callers, c)
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*caller.Caller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.callers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.ErrCallerNotFound
}

func (r *memRepo) Update(ctx context.Context, c *caller.Caller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.callers {
		if existing.ID == c.ID {
			r.callers[i] = c
			return nil
		}
	}
	return errors.ErrCallerNotFound
}

func (r *memRepo) List(ctx context.Context) ([]*caller.Caller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*caller.Caller(nil), r.callers...), nil
}

func (r *memRepo) CountFor(ctx context.Context, callerID uuid.UUID, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[r.key(callerID, day)], nil
}

func (r *memRepo) CountsOn(ctx context.Context, day time.Time) (map[uuid.UUID]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]int)
	for _, c := range r.callers {
		if n, ok := r.counts[r.key(c.ID, day)]; ok {
			out[c.ID] = n
		}
	}
	return out, nil
}

func (r *memRepo) setCount(id uuid.UUID, day time.Time, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[r.key(id, day)] = n
}

func testService(t *testing.T) (Service, *memRepo, *routing.Calendar) {
	t.Helper()
	cal, err := routing.NewCalendar("UTC", &routing.MockClock{CurrentTime: testInstant})
	require.NoError(t, err)
	repo := newMemRepo()
	return NewService(repo, cal), repo, cal
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		input    CreateInput
		wantErr  bool
		validate func(*testing.T, *Summary)
	}{
		{
			name: "full configuration",
			input: CreateInput{
				Name:       "Asha Rao",
				Role:       strPtr("senior"),
				Languages:  []string{"hindi", "english"},
				DailyLimit: 25,
				States:     []string{"Maharashtra", " maharashtra ", "Goa"},
			},
			validate: func(t *testing.T, s *Summary) {
				assert.Equal(t, "Asha Rao", s.Caller.Name)
				assert.Equal(t, 25, s.Caller.DailyLimit)
				assert.Equal(t, []string{"maharashtra", "goa"}, s.Caller.States)
				assert.True(t, s.Caller.IsActive())
				assert.Equal(t, 0, s.LeadsAssignedToday)
			},
		},
		{
			name:  "created paused",
			input: CreateInput{Name: "Vikram Shetty", Paused: true},
			validate: func(t *testing.T, s *Summary) {
				assert.False(t, s.Caller.IsActive())
			},
		},
		{
			name:    "name too short",
			input:   CreateInput{Name: "A"},
			wantErr: true,
		},
		{
			name:    "negative daily limit",
			input:   CreateInput{Name: "Asha Rao", DailyLimit: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := testService(t)
			got, err := svc.Create(ctx, tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			tt.validate(t, got)
		})
	}
}

func TestService_List_IncludesDailyLoad(t *testing.T) {
	ctx := context.Background()
	svc, repo, cal := testService(t)

	first, err := svc.Create(ctx, CreateInput{Name: "Asha Rao"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "Vikram Shetty"})
	require.NoError(t, err)

	repo.setCount(first.Caller.ID, cal.Today(), 7)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 7, list[0].LeadsAssignedToday)
	assert.Equal(t, 0, list[1].LeadsAssignedToday)
}

func TestService_Update_PartialFields(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := testService(t)

	created, err := svc.Create(ctx, CreateInput{
		Name:       "Asha Rao",
		Role:       strPtr("senior"),
		DailyLimit: 10,
		States:     []string{"Maharashtra"},
	})
	require.NoError(t, err)
	id := created.Caller.ID

	t.Run("limit only", func(t *testing.T) {
		got, err := svc.Update(ctx, id, UpdateInput{DailyLimit: intPtr(5)})
		require.NoError(t, err)
		assert.Equal(t, 5, got.Caller.DailyLimit)
		assert.Equal(t, "Asha Rao", got.Caller.Name)
		assert.Equal(t, []string{"maharashtra"}, got.Caller.States)
	})

	t.Run("clear states with empty slice", func(t *testing.T) {
		got, err := svc.Update(ctx, id, UpdateInput{States: []string{}})
		require.NoError(t, err)
		assert.Empty(t, got.Caller.States)
	})

	t.Run("rename", func(t *testing.T) {
		got, err := svc.Update(ctx, id, UpdateInput{Name: strPtr("Asha R. Rao")})
		require.NoError(t, err)
		assert.Equal(t, "Asha R. Rao", got.Caller.Name)
	})

	t.Run("invalid rename rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, id, UpdateInput{Name: strPtr("!")})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("unknown caller", func(t *testing.T) {
		_, err := svc.Update(ctx, uuid.New(), UpdateInput{DailyLimit: intPtr(5)})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestService_SetStatus_CounterSurvivesPauseCycle(t *testing.T) {
	ctx := context.Background()
	svc, repo, cal := testService(t)

	created, err := svc.Create(ctx, CreateInput{Name: "Asha Rao", DailyLimit: 10})
	require.NoError(t, err)
	id := created.Caller.ID

	repo.setCount(id, cal.Today(), 4)

	paused, err := svc.SetStatus(ctx, id, caller.StatusPaused)
	require.NoError(t, err)
	assert.False(t, paused.Caller.IsActive())

	resumed, err := svc.SetStatus(ctx, id, caller.StatusActive)
	require.NoError(t, err)
	assert.True(t, resumed.Caller.IsActive())
	assert.Equal(t, 4, resumed.LeadsAssignedToday, "pause cycle must not reset the day's count")
}

func TestService_Deactivate_IsSoftDelete(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := testService(t)

	created, err := svc.Create(ctx, CreateInput{Name: "Asha Rao"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, created.Caller.ID))

	stored, err := repo.GetByID(ctx, created.Caller.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive(), "delete pauses the caller instead of removing the row")
}
