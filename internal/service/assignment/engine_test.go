package assignment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
	"github.com/fairdial/leadline-backend/internal/domain/values"
)

var testInstant = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func testEngine(t *testing.T, at time.Time) (*Engine, *routing.Calendar) {
	t.Helper()
	cal, err := routing.NewCalendar("UTC", &routing.MockClock{CurrentTime: at})
	require.NoError(t, err)
	return NewEngine(cal), cal
}

func testCaller(t *testing.T, name string, limit int, states ...string) *caller.Caller {
	t.Helper()
	c, err := caller.NewCaller(name)
	require.NoError(t, err)
	require.NoError(t, c.SetDailyLimit(limit))
	c.AssignStates(states)
	return c
}

func testLead(t *testing.T, phone, state string, ts time.Time) *lead.Lead {
	t.Helper()
	p, err := values.NewPhone(phone)
	require.NoError(t, err)
	l, err := lead.NewLead(p, ts)
	require.NoError(t, err)
	if state != "" {
		s := state
		l.State = &s
	}
	return l
}

func TestEngine_Assign_StateRoundRobinAlternates(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	b := testCaller(t, "Vikram Shetty", 0, "maharashtra")
	ms.addCaller(a)
	ms.addCaller(b)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	phones := []string{"+919800000001", "+919800000002", "+919800000003", "+919800000004"}
	states := []string{"Maharashtra", "maharashtra", " Maharashtra ", "MAHARASHTRA"}
	want := []uuid.UUID{a.ID, b.ID, a.ID, b.ID}

	for i, phone := range phones {
		outcome, err := engine.Assign(ctx, ms, testLead(t, phone, states[i], src.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		require.True(t, outcome.Assigned(), "lead %d", i)
		assert.Equal(t, want[i], *outcome.CallerID, "lead %d", i)
		assert.Equal(t, assignment.ReasonStateRoundRobin, outcome.Reason, "lead %d", i)
	}

	key, ok := routing.StateKey("Maharashtra")
	require.True(t, ok)
	require.NotNil(t, ms.pointer(key))
	assert.Equal(t, b.ID, *ms.pointer(key))

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, ms.count(a.ID, day))
	assert.Equal(t, 2, ms.count(b.ID, day))
}

func TestEngine_Assign_CapFallsBackToGlobal(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	capped := testCaller(t, "Asha Rao", 1, "Karnataka")
	fallback := testCaller(t, "Vikram Shetty", 0)
	ms.addCaller(capped)
	ms.addCaller(fallback)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	first, err := engine.Assign(ctx, ms, testLead(t, "+919800000010", "Karnataka", src))
	require.NoError(t, err)
	assert.Equal(t, capped.ID, *first.CallerID)
	assert.Equal(t, assignment.ReasonStateRoundRobin, first.Reason)

	markBefore := len(ms.pointerLocks)

	second, err := engine.Assign(ctx, ms, testLead(t, "+919800000011", "Karnataka", src))
	require.NoError(t, err)
	require.True(t, second.Assigned())
	assert.Equal(t, fallback.ID, *second.CallerID)
	assert.Equal(t, assignment.ReasonGlobalRoundRobin, second.Reason)

	// The capped state walk leaves the state pointer where it was.
	stateKey, _ := routing.StateKey("karnataka")
	assert.Equal(t, capped.ID, *ms.pointer(stateKey))
	assert.Equal(t, fallback.ID, *ms.pointer(routing.GlobalKey))

	// State pointer locks before the global pointer on fallback.
	assert.Equal(t, []routing.Key{stateKey, routing.GlobalKey}, ms.pointerLocks[markBefore:])

	day := cal.BusinessDate(testInstant)
	assert.Equal(t, 1, ms.count(capped.ID, day))
	assert.Equal(t, 1, ms.count(fallback.ID, day))
}

func TestEngine_Assign_AllCappedPersistsUnassigned(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 1, "Karnataka")
	b := testCaller(t, "Vikram Shetty", 1)
	ms.addCaller(a)
	ms.addCaller(b)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	_, err := engine.Assign(ctx, ms, testLead(t, "+919800000020", "Karnataka", src))
	require.NoError(t, err)
	_, err = engine.Assign(ctx, ms, testLead(t, "+919800000021", "Karnataka", src))
	require.NoError(t, err)

	stateKey, _ := routing.StateKey("karnataka")
	statePtr := *ms.pointer(stateKey)
	globalPtr := *ms.pointer(routing.GlobalKey)

	outcome, err := engine.Assign(ctx, ms, testLead(t, "+919800000022", "Karnataka", src))
	require.NoError(t, err)

	assert.False(t, outcome.Assigned())
	assert.Nil(t, outcome.CallerID)
	assert.Equal(t, assignment.ReasonCapReached, outcome.Reason)

	// The lead and its unassigned row are persisted; nothing is dropped.
	stored, err := ms.Leads().GetByID(ctx, outcome.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "+919800000022", stored.Phone.String())

	current, err := ms.Assignments().CurrentForLead(ctx, outcome.LeadID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, assignment.StatusUnassigned, current.Status)

	// Fairness is not spent on capacity failures.
	assert.Equal(t, statePtr, *ms.pointer(stateKey))
	assert.Equal(t, globalPtr, *ms.pointer(routing.GlobalKey))

	day := cal.BusinessDate(testInstant)
	assert.Equal(t, 1, ms.count(a.ID, day))
	assert.Equal(t, 1, ms.count(b.ID, day))
}

func TestEngine_Assign_NoEligibleCallers(t *testing.T) {
	ctx := context.Background()
	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		setup func(*memStores)
	}{
		{
			name:  "no callers at all",
			setup: func(ms *memStores) {},
		},
		{
			name: "only paused callers",
			setup: func(ms *memStores) {
				c := testCaller(t, "Asha Rao", 0, "Karnataka")
				c.Pause()
				ms.addCaller(c)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := testEngine(t, testInstant)
			ms := newMemStores()
			tt.setup(ms)

			outcome, err := engine.Assign(ctx, ms, testLead(t, "+919800000030", "Karnataka", src))
			require.NoError(t, err)

			assert.False(t, outcome.Assigned())
			assert.Equal(t, assignment.ReasonNoEligible, outcome.Reason)

			current, err := ms.Assignments().CurrentForLead(ctx, outcome.LeadID)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, assignment.StatusUnassigned, current.Status)

			// With no candidates anywhere, no pointer row is ever locked.
			assert.Empty(t, ms.pointerLocks)
		})
	}
}

func TestEngine_Assign_DuplicateDeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	ms.addCaller(a)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	first, err := engine.Assign(ctx, ms, testLead(t, "+91 98000-00040", "Maharashtra", src))
	require.NoError(t, err)
	require.True(t, first.Assigned())
	assert.False(t, first.Duplicate)

	// Same phone in a different formatting plus the same source timestamp
	// is the same lead.
	retry, err := engine.Assign(ctx, ms, testLead(t, "+919800000040", "Maharashtra", src))
	require.NoError(t, err)

	assert.True(t, retry.Duplicate)
	assert.Equal(t, first.LeadID, retry.LeadID)
	assert.Equal(t, *first.CallerID, *retry.CallerID)
	assert.Equal(t, first.Reason, retry.Reason)
	require.NotNil(t, retry.CallerName)
	assert.Equal(t, "Asha Rao", *retry.CallerName)

	day := cal.BusinessDate(testInstant)
	assert.Equal(t, 1, ms.count(a.ID, day), "retry must not consume cap")
	assert.Len(t, ms.allAssignments(), 1, "retry must not add rows")

	key, _ := routing.StateKey("maharashtra")
	assert.Equal(t, a.ID, *ms.pointer(key), "retry must not move the pointer")
}

func TestEngine_Assign_StalePointerFallsBackToStableOrder(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	b := testCaller(t, "Vikram Shetty", 0, "Maharashtra")
	ms.addCaller(a)
	ms.addCaller(b)

	// Pointer references a caller that has since disappeared from the
	// candidate list.
	key, _ := routing.StateKey("maharashtra")
	ms.setPointer(key, uuid.New())

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	outcome, err := engine.Assign(ctx, ms, testLead(t, "+919800000050", "Maharashtra", src))
	require.NoError(t, err)

	assert.Equal(t, a.ID, *outcome.CallerID)
	assert.Equal(t, a.ID, *ms.pointer(key))
}

func TestEngine_Assign_SingleCallerRotatesToItself(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, testInstant)
	ms := newMemStores()

	only := testCaller(t, "Asha Rao", 0, "Maharashtra")
	ms.addCaller(only)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		phone := fmt.Sprintf("+9198000006%02d", i)
		outcome, err := engine.Assign(ctx, ms, testLead(t, phone, "Maharashtra", src.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, only.ID, *outcome.CallerID)
	}
}

func TestEngine_Assign_NoStateCandidatesGoesStraightGlobal(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, testInstant)
	ms := newMemStores()

	global := testCaller(t, "Vikram Shetty", 0)
	ms.addCaller(global)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	outcome, err := engine.Assign(ctx, ms, testLead(t, "+919800000070", "Kerala", src))
	require.NoError(t, err)

	assert.Equal(t, global.ID, *outcome.CallerID)
	assert.Equal(t, assignment.ReasonGlobalRoundRobin, outcome.Reason)

	// The state pointer is never locked when the state has no candidates.
	assert.Equal(t, []routing.Key{routing.GlobalKey}, ms.pointerLocks)
}

func TestEngine_Assign_MissingStateRoutesGlobally(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, testInstant)
	ms := newMemStores()

	statebound := testCaller(t, "Asha Rao", 0, "Maharashtra")
	global := testCaller(t, "Vikram Shetty", 0)
	ms.addCaller(statebound)
	ms.addCaller(global)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	outcome, err := engine.Assign(ctx, ms, testLead(t, "+919800000080", "", src))
	require.NoError(t, err)

	require.True(t, outcome.Assigned())
	assert.Equal(t, assignment.ReasonGlobalRoundRobin, outcome.Reason)
	// Global rotation covers every active caller, state-bound included.
	assert.Equal(t, statebound.ID, *outcome.CallerID)
	assert.Equal(t, []routing.Key{routing.GlobalKey}, ms.pointerLocks)
}

func TestEngine_Reassign_ManualMovesSameDayCounter(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	b := testCaller(t, "Vikram Shetty", 0, "Maharashtra")
	ms.addCaller(a)
	ms.addCaller(b)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	first, err := engine.Assign(ctx, ms, testLead(t, "+919800000090", "Maharashtra", src))
	require.NoError(t, err)
	require.Equal(t, a.ID, *first.CallerID)

	day := cal.BusinessDate(testInstant)
	require.Equal(t, 1, ms.count(a.ID, day))

	outcome, err := engine.Reassign(ctx, ms, first.LeadID, &b.ID)
	require.NoError(t, err)

	assert.Equal(t, b.ID, *outcome.CallerID)
	assert.Equal(t, assignment.ReasonManualReassign, outcome.Reason)

	// The same-day slot moves with the lead.
	assert.Equal(t, 0, ms.count(a.ID, day))
	assert.Equal(t, 1, ms.count(b.ID, day))

	current := ms.currentAssignments()
	require.Len(t, current, 1)
	assert.Equal(t, b.ID, *current[0].CallerID)

	all := ms.allAssignments()
	require.Len(t, all, 2)
	assert.Equal(t, assignment.StatusSuperseded, all[0].Status)
}

func TestEngine_Reassign_ManualIgnoresCapAndState(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	target := testCaller(t, "Vikram Shetty", 1, "Karnataka")
	ms.addCaller(a)
	ms.addCaller(target)

	day := cal.BusinessDate(testInstant)
	ms.setCounter(target.ID, day, 1) // already at cap

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	first, err := engine.Assign(ctx, ms, testLead(t, "+919800000100", "Maharashtra", src))
	require.NoError(t, err)

	outcome, err := engine.Reassign(ctx, ms, first.LeadID, &target.ID)
	require.NoError(t, err)

	assert.Equal(t, target.ID, *outcome.CallerID)
	assert.Equal(t, assignment.ReasonManualReassign, outcome.Reason)
	assert.Equal(t, 2, ms.count(target.ID, day), "manual override bypasses the cap")
}

func TestEngine_Reassign_ManualTargetValidation(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	paused := testCaller(t, "Vikram Shetty", 0)
	paused.Pause()
	ms.addCaller(a)
	ms.addCaller(paused)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	first, err := engine.Assign(ctx, ms, testLead(t, "+919800000110", "Maharashtra", src))
	require.NoError(t, err)

	t.Run("paused caller rejected", func(t *testing.T) {
		_, err := engine.Reassign(ctx, ms, first.LeadID, &paused.ID)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeBusiness))

		current, err := ms.Assignments().CurrentForLead(ctx, first.LeadID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, *current.CallerID, "failed reassign leaves the assignment alone")
	})

	t.Run("unknown caller rejected", func(t *testing.T) {
		missing := uuid.New()
		_, err := engine.Reassign(ctx, ms, first.LeadID, &missing)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("unknown lead rejected", func(t *testing.T) {
		_, err := engine.Reassign(ctx, ms, uuid.New(), &a.ID)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestEngine_Reassign_AutoRerunsSelection(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	b := testCaller(t, "Vikram Shetty", 0, "Maharashtra")
	ms.addCaller(a)
	ms.addCaller(b)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	first, err := engine.Assign(ctx, ms, testLead(t, "+919800000120", "Maharashtra", src))
	require.NoError(t, err)
	require.Equal(t, a.ID, *first.CallerID)

	outcome, err := engine.Reassign(ctx, ms, first.LeadID, nil)
	require.NoError(t, err)

	// Rotation continues from the pointer, so the other caller is next.
	assert.Equal(t, b.ID, *outcome.CallerID)
	assert.Equal(t, assignment.ReasonStateRoundRobin, outcome.Reason)

	day := cal.BusinessDate(testInstant)
	assert.Equal(t, 0, ms.count(a.ID, day))
	assert.Equal(t, 1, ms.count(b.ID, day))

	current := ms.currentAssignments()
	require.Len(t, current, 1)
	assert.Equal(t, b.ID, *current[0].CallerID)
}

func TestEngine_Reassign_PriorDayCounterIsNotAdjusted(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	b := testCaller(t, "Vikram Shetty", 0, "Maharashtra")
	ms.addCaller(a)
	ms.addCaller(b)

	// A lead assigned yesterday, entered directly into the stores.
	src := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	l := testLead(t, "+919800000130", "Maharashtra", src)
	_, _, err := ms.Leads().Insert(ctx, l)
	require.NoError(t, err)

	yesterdayAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	prev, err := assignment.NewAssigned(l.ID, a.ID, assignment.ReasonStateRoundRobin, yesterdayAt)
	require.NoError(t, err)
	require.NoError(t, ms.Assignments().Insert(ctx, prev))

	yesterday := cal.BusinessDate(yesterdayAt)
	ms.setCounter(a.ID, yesterday, 1)

	outcome, err := engine.Reassign(ctx, ms, l.ID, &b.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, *outcome.CallerID)

	// Historical days are never retroactively adjusted.
	assert.Equal(t, 1, ms.count(a.ID, yesterday))

	today := cal.BusinessDate(testInstant)
	assert.Equal(t, 0, ms.count(a.ID, today))
	assert.Equal(t, 1, ms.count(b.ID, today))
}

func TestEngine_Reassign_AutoCanLandUnassigned(t *testing.T) {
	ctx := context.Background()
	engine, cal := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 1, "Maharashtra")
	ms.addCaller(a)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	first, err := engine.Assign(ctx, ms, testLead(t, "+919800000140", "Maharashtra", src))
	require.NoError(t, err)
	require.Equal(t, a.ID, *first.CallerID)

	// The only caller is still at cap while reselection walks; its slot is
	// released only after selection, by the same-day decrement.
	outcome, err := engine.Reassign(ctx, ms, first.LeadID, nil)
	require.NoError(t, err)

	assert.False(t, outcome.Assigned())
	assert.Equal(t, assignment.ReasonCapReached, outcome.Reason)

	day := cal.BusinessDate(testInstant)
	assert.Equal(t, 0, ms.count(a.ID, day), "same-day slot released even when reselection fails")

	current := ms.currentAssignments()
	require.Len(t, current, 1)
	assert.Equal(t, assignment.StatusUnassigned, current[0].Status)
}

func TestEngine_Assign_OutcomeCarriesInstantAndName(t *testing.T) {
	ctx := context.Background()
	engine, _ := testEngine(t, testInstant)
	ms := newMemStores()

	a := testCaller(t, "Asha Rao", 0, "Maharashtra")
	ms.addCaller(a)

	src := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	outcome, err := engine.Assign(ctx, ms, testLead(t, "+919800000150", "Maharashtra", src))
	require.NoError(t, err)

	assert.Equal(t, testInstant, outcome.Instant)
	require.NotNil(t, outcome.CallerName)
	assert.Equal(t, "Asha Rao", *outcome.CallerName)
}

func TestRotateAfter(t *testing.T) {
	a := testCaller(t, "Asha Rao", 0)
	b := testCaller(t, "Vikram Shetty", 0)
	c := testCaller(t, "Priya Nair", 0)
	all := []*caller.Caller{a, b, c}

	stale := uuid.New()

	tests := []struct {
		name  string
		cands []*caller.Caller
		last  *uuid.UUID
		want  []uuid.UUID
	}{
		{
			name:  "nil pointer keeps order",
			cands: all,
			last:  nil,
			want:  []uuid.UUID{a.ID, b.ID, c.ID},
		},
		{
			name:  "rotates past middle",
			cands: all,
			last:  &b.ID,
			want:  []uuid.UUID{c.ID, a.ID, b.ID},
		},
		{
			name:  "wraps from last element",
			cands: all,
			last:  &c.ID,
			want:  []uuid.UUID{a.ID, b.ID, c.ID},
		},
		{
			name:  "stale pointer keeps order",
			cands: all,
			last:  &stale,
			want:  []uuid.UUID{a.ID, b.ID, c.ID},
		},
		{
			name:  "single candidate",
			cands: []*caller.Caller{a},
			last:  &a.ID,
			want:  []uuid.UUID{a.ID},
		},
		{
			name:  "empty list",
			cands: nil,
			last:  &a.ID,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rotateAfter(tt.cands, tt.last)
			require.Len(t, got, len(tt.want))
			for i, id := range tt.want {
				assert.Equal(t, id, got[i].ID, "position %d", i)
			}
		})
	}
}
