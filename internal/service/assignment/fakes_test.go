package assignment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/domain/lead"
	"github.com/fairdial/leadline-backend/internal/domain/routing"
)

// memStores is an in-memory Stores bundle. Slices keep the stable order a
// real repository derives from (created_at, id), and the lock logs record
// the sequence of pointer and counter locks for ordering assertions.
type memStores struct {
	mu sync.Mutex

	leads       []*lead.Lead
	assignments []*assignment.Assignment
	callers     []*caller.Caller
	pointers    map[routing.Key]uuid.UUID
	counters    map[string]int

	pointerLocks []routing.Key
	counterLocks []uuid.UUID
}

func newMemStores() *memStores {
	return &memStores{
		pointers: make(map[routing.Key]uuid.UUID),
		counters: make(map[string]int),
	}
}

func (m *memStores) Leads() LeadStore             { return &memLeads{m} }
func (m *memStores) Assignments() AssignmentStore { return &memAssignments{m} }
func (m *memStores) Callers() CallerDirectory     { return &memCallers{m} }
func (m *memStores) Pointers() FairnessStore      { return &memPointers{m} }
func (m *memStores) Counters() CounterStore       { return &memCounters{m} }

func (m *memStores) addCaller(c *caller.Caller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callers = append(m.callers, c)
}

func (m *memStores) count(callerID uuid.UUID, day time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[counterKey(callerID, day)]
}

func (m *memStores) setCounter(callerID uuid.UUID, day time.Time, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counterKey(callerID, day)] = n
}

func (m *memStores) setPointer(key routing.Key, callerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointers[key] = callerID
}

func (m *memStores) pointer(key routing.Key) *uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.pointers[key]; ok {
		return &last
	}
	return nil
}

func (m *memStores) currentAssignments() []*assignment.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*assignment.Assignment
	for _, a := range m.assignments {
		if a.IsCurrent() {
			out = append(out, a)
		}
	}
	return out
}

func (m *memStores) allAssignments() []*assignment.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*assignment.Assignment(nil), m.assignments...)
}

func counterKey(callerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s|%s", callerID, day.Format("2006-01-02"))
}

func naturalKey(l *lead.Lead) string {
	return fmt.Sprintf("%s|%d", l.Phone, l.SourceTimestamp.UnixNano())
}

type memLeads struct{ m *memStores }

func (s *memLeads) Insert(ctx context.Context, l *lead.Lead) (*lead.Lead, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.leads {
		if naturalKey(existing) == naturalKey(l) {
			return existing, false, nil
		}
	}
	s.m.leads = append(s.m.leads, l)
	return l, true, nil
}

func (s *memLeads) GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, l := range s.m.leads {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, errors.ErrLeadNotFound
}

type memAssignments struct{ m *memStores }

func (s *memAssignments) Insert(ctx context.Context, a *assignment.Assignment) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.assignments = append(s.m.assignments, a)
	return nil
}

func (s *memAssignments) CurrentForLead(ctx context.Context, leadID uuid.UUID) (*assignment.Assignment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, a := range s.m.assignments {
		if a.LeadID == leadID && a.IsCurrent() {
			return a, nil
		}
	}
	return nil, nil
}

func (s *memAssignments) Supersede(ctx context.Context, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, a := range s.m.assignments {
		if a.ID == id {
			a.Supersede()
			return nil
		}
	}
	return errors.NewNotFoundError("assignment")
}

type memCallers struct{ m *memStores }

func (s *memCallers) ActiveForState(ctx context.Context, state string) ([]*caller.Caller, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*caller.Caller
	for _, c := range s.m.callers {
		if c.IsActive() && c.ServesState(state) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memCallers) ActiveAll(ctx context.Context) ([]*caller.Caller, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*caller.Caller
	for _, c := range s.m.callers {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memCallers) GetByID(ctx context.Context, id uuid.UUID) (*caller.Caller, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.callers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.ErrCallerNotFound
}

type memPointers struct{ m *memStores }

func (s *memPointers) LockAndRead(ctx context.Context, key routing.Key) (*uuid.UUID, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.pointerLocks = append(s.m.pointerLocks, key)
	if last, ok := s.m.pointers[key]; ok {
		return &last, nil
	}
	return nil, nil
}

func (s *memPointers) Write(ctx context.Context, key routing.Key, callerID uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.pointers[key] = callerID
	return nil
}

type memCounters struct{ m *memStores }

func (s *memCounters) LockAndRead(ctx context.Context, callerID uuid.UUID, day time.Time) (int, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.counterLocks = append(s.m.counterLocks, callerID)
	return s.m.counters[counterKey(callerID, day)], nil
}

func (s *memCounters) Increment(ctx context.Context, callerID uuid.UUID, day time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.counters[counterKey(callerID, day)]++
	return nil
}

func (s *memCounters) Decrement(ctx context.Context, callerID uuid.UUID, day time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	key := counterKey(callerID, day)
	if s.m.counters[key] > 0 {
		s.m.counters[key]--
	}
	return nil
}

// memTx runs fn directly against the shared memStores. failuresLeft makes
// the first N attempts abort with err before fn runs, modeling a
// transaction that conflicted and rolled back without effects.
type memTx struct {
	stores       *memStores
	failuresLeft int
	err          error
	attempts     int
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	t.attempts++
	if t.failuresLeft > 0 {
		t.failuresLeft--
		return t.err
	}
	return fn(ctx, t.stores)
}

// captureBroadcaster records every event handed to it.
type captureBroadcaster struct {
	mu     sync.Mutex
	events []assignment.Event
}

func (b *captureBroadcaster) Broadcast(ctx context.Context, ev assignment.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *captureBroadcaster) all() []assignment.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]assignment.Event(nil), b.events...)
}
