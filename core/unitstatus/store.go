package unitstatus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// LastAssignment summarizes the most recent assignment sent to a unit.
type LastAssignment struct {
	IncidentID    string              `json:"incident_id"`
	TransportType model.TransportType `json:"transport_type"`
	Score         float64             `json:"score"`
	Timestamp     time.Time           `json:"timestamp"`
}

// Status captures the current known state of a unit.
type Status struct {
	Unit           model.Unit      `json:"unit"`
	UpdatedAt      time.Time       `json:"updated_at"`
	LastAssignment *LastAssignment `json:"last_assignment,omitempty"`
}

type Filter struct {
	OrganizationID string
	Status         model.UnitStatus
}

type Store interface {
	Upsert(model.Unit)
	Update(id string, fn func(*model.Unit))
	Get(id string) (Status, bool)
	List(Filter) []Status
	RecordAssignment(id string, a LastAssignment)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}, now: time.Now}
}

// Upsert replaces the unit record, keeping any recorded assignment.
func (s *MemoryStore) Upsert(u model.Unit) {
	s.mu.Lock()
	st := s.data[u.ID]
	st.Unit = u
	st.UpdatedAt = s.now()
	s.data[u.ID] = st
	s.mu.Unlock()
}

// Update applies fn to the stored unit, creating it when unknown.
func (s *MemoryStore) Update(id string, fn func(*model.Unit)) {
	s.mu.Lock()
	st := s.data[id]
	if st.Unit.ID == "" {
		st.Unit.ID = id
	}
	fn(&st.Unit)
	st.UpdatedAt = s.now()
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) Get(id string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[id]
	return st, ok
}

// RecordAssignment stores the assignment and marks the unit en route.
func (s *MemoryStore) RecordAssignment(id string, a LastAssignment) {
	s.mu.Lock()
	st := s.data[id]
	if st.Unit.ID == "" {
		st.Unit.ID = id
	}
	st.LastAssignment = &a
	st.Unit.Status = model.StatusEnRoute
	st.UpdatedAt = s.now()
	s.data[id] = st
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.OrganizationID != "" && st.Unit.OrganizationID != f.OrganizationID {
			continue
		}
		if f.Status != "" && st.Unit.Status != f.Status {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Unit.ID < res[j].Unit.ID })
	return res
}

// Candidates returns the available units of an organization.
func (s *MemoryStore) Candidates(ctx context.Context, organizationID string) ([]model.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list := s.List(Filter{OrganizationID: organizationID, Status: model.StatusAvailable})
	units := make([]model.Unit, len(list))
	for i, st := range list {
		units[i] = st.Unit
	}
	return units, nil
}
