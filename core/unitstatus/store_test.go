package unitstatus

import (
	"context"
	"testing"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

func TestMemoryStore_Filter(t *testing.T) {
	s := NewMemoryStore()
	s.Upsert(model.Unit{ID: "u1", OrganizationID: "o1", Status: model.StatusAvailable})
	s.Upsert(model.Unit{ID: "u2", OrganizationID: "o2", Status: model.StatusAvailable})
	s.Upsert(model.Unit{ID: "u3", OrganizationID: "o1", Status: model.StatusOffDuty})
	out := s.List(Filter{OrganizationID: "o1"})
	if len(out) != 2 || out[0].Unit.ID != "u1" || out[1].Unit.ID != "u3" {
		t.Fatalf("org filter failed: %#v", out)
	}
	out = s.List(Filter{OrganizationID: "o1", Status: model.StatusOffDuty})
	if len(out) != 1 || out[0].Unit.ID != "u3" {
		t.Fatalf("status filter failed: %#v", out)
	}
}

func TestMemoryStore_RecordAssignment(t *testing.T) {
	s := NewMemoryStore()
	s.Upsert(model.Unit{ID: "u1", Status: model.StatusAvailable})
	s.RecordAssignment("u1", LastAssignment{IncidentID: "inc-1", Score: 81})
	st, ok := s.Get("u1")
	if !ok {
		t.Fatal("unit missing")
	}
	if st.Unit.Status != model.StatusEnRoute {
		t.Fatalf("status not updated: %s", st.Unit.Status)
	}
	if st.LastAssignment == nil || st.LastAssignment.IncidentID != "inc-1" {
		t.Fatalf("assignment not recorded: %#v", st.LastAssignment)
	}

	s.Upsert(model.Unit{ID: "u1", Status: model.StatusAvailable})
	st, _ = s.Get("u1")
	if st.LastAssignment == nil {
		t.Fatal("upsert dropped last assignment")
	}
}

func TestMemoryStore_RecordAssignmentNew(t *testing.T) {
	s := NewMemoryStore()
	s.RecordAssignment("u9", LastAssignment{IncidentID: "inc"})
	out := s.List(Filter{})
	if len(out) != 1 || out[0].Unit.ID != "u9" {
		t.Fatalf("auto create failed %#v", out)
	}
}

func TestMemoryStore_UpdateMerges(t *testing.T) {
	s := NewMemoryStore()
	s.Upsert(model.Unit{ID: "u1", Name: "MEDIC-1", ALSCapable: true})
	s.Update("u1", func(u *model.Unit) { u.HoursWorkedToday = model.Float(9) })
	st, _ := s.Get("u1")
	if st.Unit.Name != "MEDIC-1" || !st.Unit.ALSCapable || st.Unit.HoursWorkedToday == nil {
		t.Fatalf("update lost fields: %#v", st.Unit)
	}
}

func TestMemoryStore_Candidates(t *testing.T) {
	s := NewMemoryStore()
	s.Upsert(model.Unit{ID: "a", OrganizationID: "o1", Status: model.StatusAvailable})
	s.Upsert(model.Unit{ID: "b", OrganizationID: "o1", Status: model.StatusTransporting})
	s.Upsert(model.Unit{ID: "c", OrganizationID: "o2", Status: model.StatusAvailable})
	units, err := s.Candidates(context.Background(), "o1")
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(units) != 1 || units[0].ID != "a" {
		t.Fatalf("unexpected candidates %#v", units)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Candidates(ctx, "o1"); err == nil {
		t.Fatal("expected context error")
	}
}
