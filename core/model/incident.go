package model

import (
	"fmt"
	"strings"
)

// TransportType is the level of care requested for a transport.
type TransportType string

const (
	TransportBLS       TransportType = "BLS"
	TransportALS       TransportType = "ALS"
	TransportCCT       TransportType = "CCT"
	TransportHEMS      TransportType = "HEMS"
	TransportBariatric TransportType = "BARIATRIC"
	TransportIFT       TransportType = "IFT"
)

// TransportTypes lists the closed set of transport types.
var TransportTypes = []TransportType{
	TransportBLS, TransportALS, TransportCCT, TransportHEMS, TransportBariatric, TransportIFT,
}

// Valid reports whether t is one of the known transport types.
func (t TransportType) Valid() bool {
	for _, v := range TransportTypes {
		if t == v {
			return true
		}
	}
	return false
}

func (t TransportType) String() string { return string(t) }

// ParseTransportType converts a case-insensitive string to a TransportType.
func ParseTransportType(s string) (TransportType, error) {
	t := TransportType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown transport type %q", s)
	}
	return t, nil
}

// Location is a WGS84 coordinate.
type Location struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lon" yaml:"lon"`
}

// Incident is a transport request awaiting a unit.
type Incident struct {
	ID             string        `json:"id" yaml:"id"`
	OrganizationID string        `json:"organization_id" yaml:"organization_id"`
	TransportType  TransportType `json:"transport_type" yaml:"transport_type"`
	// PatientWeightLbs is nil when the weight was not recorded.
	PatientWeightLbs *float64 `json:"patient_weight_lbs,omitempty" yaml:"patient_weight_lbs,omitempty"`

	RequiresParamedic          bool `json:"requires_paramedic" yaml:"requires_paramedic"`
	RequiresCCTCertification   bool `json:"requires_cct_certification" yaml:"requires_cct_certification"`
	RequiresVentilator         bool `json:"requires_ventilator" yaml:"requires_ventilator"`
	RequiresBariatricEquipment bool `json:"requires_bariatric_equipment" yaml:"requires_bariatric_equipment"`

	PickupLocation *Location `json:"pickup_location,omitempty" yaml:"pickup_location,omitempty"`
}

// Validate checks the fields every scoring step relies on.
func (i Incident) Validate() error {
	if strings.TrimSpace(i.OrganizationID) == "" {
		return &ValidationError{Field: "organization_id", Reason: "is required"}
	}
	if !i.TransportType.Valid() {
		return &ValidationError{Field: "transport_type", Reason: fmt.Sprintf("unknown value %q", i.TransportType)}
	}
	if i.PatientWeightLbs != nil && *i.PatientWeightLbs < 0 {
		return &ValidationError{Field: "patient_weight_lbs", Reason: "must not be negative"}
	}
	return nil
}
