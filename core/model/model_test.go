package model

import (
	"errors"
	"testing"
)

func TestIncidentValidate(t *testing.T) {
	cases := []struct {
		name  string
		inc   Incident
		field string
	}{
		{"valid", Incident{OrganizationID: "org", TransportType: TransportALS}, ""},
		{"missing org", Incident{TransportType: TransportALS}, "organization_id"},
		{"blank org", Incident{OrganizationID: "  ", TransportType: TransportALS}, "organization_id"},
		{"unknown type", Incident{OrganizationID: "org", TransportType: "TAXI"}, "transport_type"},
		{"empty type", Incident{OrganizationID: "org"}, "transport_type"},
		{"negative weight", Incident{OrganizationID: "org", TransportType: TransportBLS, PatientWeightLbs: Float(-1)}, "patient_weight_lbs"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.inc.Validate()
			if c.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidIncident) {
				t.Fatalf("expected ErrInvalidIncident got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != c.field {
				t.Fatalf("expected field %s got %v", c.field, err)
			}
		})
	}
}

func TestParseTransportType(t *testing.T) {
	tt, err := ParseTransportType(" cct ")
	if err != nil || tt != TransportCCT {
		t.Fatalf("got %v %v", tt, err)
	}
	if _, err := ParseTransportType("taxi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseUnitEnums(t *testing.T) {
	if s, err := ParseUnitStatus("available"); err != nil || s != StatusAvailable {
		t.Fatalf("status: %v %v", s, err)
	}
	if _, err := ParseUnitStatus("parked"); err == nil {
		t.Fatal("expected status error")
	}
	if ut, err := ParseUnitType("hems"); err != nil || ut != UnitHEMS {
		t.Fatalf("type: %v %v", ut, err)
	}
	if _, err := ParseUnitType("boat"); err == nil {
		t.Fatal("expected type error")
	}
	if r, err := ParseFatigueRisk(""); err != nil || r != FatigueUnknown {
		t.Fatalf("risk: %v %v", r, err)
	}
	if r, err := ParseFatigueRisk("critical"); err != nil || r != FatigueCritical {
		t.Fatalf("risk: %v %v", r, err)
	}
	if _, err := ParseFatigueRisk("sleepy"); err == nil {
		t.Fatal("expected risk error")
	}
}

func TestUnitDisplayName(t *testing.T) {
	if n := (Unit{ID: "u1"}).DisplayName(); n != "u1" {
		t.Fatalf("got %s", n)
	}
	if n := (Unit{ID: "u1", Name: "MEDIC-1"}).DisplayName(); n != "MEDIC-1" {
		t.Fatalf("got %s", n)
	}
}
