//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
	"github.com/fairdial/leadline-backend/internal/infrastructure/repository"
	assignmentsvc "github.com/fairdial/leadline-backend/internal/service/assignment"
	"github.com/fairdial/leadline-backend/internal/testutil"
)

// callerBase spaces seeded callers one minute apart so the rotation order
// (created_at, id) is stable across runs.
var callerBase = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// routingStack is the full assignment path over containerized postgres:
// real transaction runner, real repositories, deterministic clock.
type routingStack struct {
	db       *testutil.TestDB
	clock    *routing.MockClock
	calendar *routing.Calendar
	runner   *repository.Runner
	callers  *repository.CallerRepository
	leads    *repository.LeadRepository
	service  assignmentsvc.Service
}

func newRoutingStack(t *testing.T) *routingStack {
	t.Helper()

	db := testutil.NewTestDB(t)

	// 11:30 UTC is 17:00 IST, business date 2024-03-04.
	clock := &routing.MockClock{CurrentTime: time.Date(2024, 3, 4, 11, 30, 0, 0, time.UTC)}
	cal, err := routing.NewCalendar("Asia/Kolkata", clock)
	require.NoError(t, err)

	runner := repository.NewRunner(db.Pool)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &routingStack{
		db:       db,
		clock:    clock,
		calendar: cal,
		runner:   runner,
		callers:  repository.NewCallerRepository(db.Pool),
		leads:    repository.NewLeadRepository(db.Pool),
		service:  assignmentsvc.NewService(runner, assignmentsvc.NewEngine(cal), nil, logger),
	}
}

func (s *routingStack) reset(t *testing.T, ctx context.Context) {
	t.Helper()
	s.db.Reset(ctx)
}

// seedCaller persists c with a deterministic creation instant.
func (s *routingStack) seedCaller(t *testing.T, ctx context.Context, c *caller.Caller, seq int) *caller.Caller {
	t.Helper()
	c.CreatedAt = callerBase.Add(time.Duration(seq) * time.Minute)
	c.UpdatedAt = c.CreatedAt
	require.NoError(t, s.callers.Create(ctx, c))
	return c
}

func (s *routingStack) assign(t *testing.T, ctx context.Context, l *lead.Lead) assignment.Outcome {
	t.Helper()
	outcome, err := s.service.AssignLead(ctx, l)
	require.NoError(t, err)
	return outcome
}

func (s *routingStack) countFor(t *testing.T, ctx context.Context, callerID uuid.UUID) int {
	t.Helper()
	n, err := s.callers.CountFor(ctx, callerID, s.calendar.Today())
	require.NoError(t, err)
	return n
}

// pauseCaller flips an existing caller to paused through the repository.
func (s *routingStack) pauseCaller(t *testing.T, ctx context.Context, id uuid.UUID) {
	t.Helper()
	c, err := s.callers.GetByID(ctx, id)
	require.NoError(t, err)
	c.Pause()
	require.NoError(t, s.callers.Update(ctx, c))
}
