package model

import (
	"fmt"
	"strings"
	"time"
)

// UnitStatus is the operational state reported by a unit.
type UnitStatus string

const (
	StatusAvailable    UnitStatus = "AVAILABLE"
	StatusEnRoute      UnitStatus = "EN_ROUTE"
	StatusAtFacility   UnitStatus = "AT_FACILITY"
	StatusTransporting UnitStatus = "TRANSPORTING"
	StatusOutOfService UnitStatus = "OUT_OF_SERVICE"
	StatusOffDuty      UnitStatus = "OFF_DUTY"
)

var unitStatuses = []UnitStatus{
	StatusAvailable, StatusEnRoute, StatusAtFacility, StatusTransporting, StatusOutOfService, StatusOffDuty,
}

// ParseUnitStatus converts a case-insensitive string to a UnitStatus.
func ParseUnitStatus(s string) (UnitStatus, error) {
	st := UnitStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range unitStatuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown unit status %q", s)
}

// UnitType is the kind of resource a unit is.
type UnitType string

const (
	UnitAmbulance  UnitType = "AMBULANCE"
	UnitHEMS       UnitType = "HEMS"
	UnitCCT        UnitType = "CCT"
	UnitBariatric  UnitType = "BARIATRIC"
	UnitSupervisor UnitType = "SUPERVISOR"
)

var unitTypes = []UnitType{UnitAmbulance, UnitHEMS, UnitCCT, UnitBariatric, UnitSupervisor}

// ParseUnitType converts a case-insensitive string to a UnitType.
func ParseUnitType(s string) (UnitType, error) {
	ut := UnitType(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range unitTypes {
		if ut == v {
			return ut, nil
		}
	}
	return "", fmt.Errorf("unknown unit type %q", s)
}

// FatigueRisk is the crew fatigue classification. The zero value means the
// classification has not been reported.
type FatigueRisk string

const (
	FatigueUnknown  FatigueRisk = ""
	FatigueLow      FatigueRisk = "LOW"
	FatigueModerate FatigueRisk = "MODERATE"
	FatigueHigh     FatigueRisk = "HIGH"
	FatigueCritical FatigueRisk = "CRITICAL"
)

// ParseFatigueRisk converts a case-insensitive string to a FatigueRisk. An
// empty string yields FatigueUnknown.
func ParseFatigueRisk(s string) (FatigueRisk, error) {
	r := FatigueRisk(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case FatigueUnknown, FatigueLow, FatigueModerate, FatigueHigh, FatigueCritical:
		return r, nil
	}
	return "", fmt.Errorf("unknown fatigue risk %q", s)
}

// Unit is a candidate transport resource. Telemetry fields are pointers; nil
// means the metric has not been reported and scoring treats it as neutral.
type Unit struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name,omitempty" yaml:"name,omitempty"`
	OrganizationID string     `json:"organization_id" yaml:"organization_id"`
	Status         UnitStatus `json:"status" yaml:"status"`
	Type           UnitType   `json:"type" yaml:"type"`
	Location       *Location  `json:"location,omitempty" yaml:"location,omitempty"`

	ALSCapable           bool     `json:"als_capable" yaml:"als_capable"`
	CCTCapable           bool     `json:"cct_capable" yaml:"cct_capable"`
	BariatricCapable     bool     `json:"bariatric_capable" yaml:"bariatric_capable"`
	HasVentilator        bool     `json:"has_ventilator" yaml:"has_ventilator"`
	MaxWeightCapacityLbs *float64 `json:"max_weight_capacity_lbs,omitempty" yaml:"max_weight_capacity_lbs,omitempty"`

	HasParamedic    bool `json:"has_paramedic" yaml:"has_paramedic"`
	HasCCTCertified bool `json:"has_cct_certified" yaml:"has_cct_certified"`

	OnTimePercentage   *float64 `json:"on_time_percentage,omitempty" yaml:"on_time_percentage,omitempty"`
	ComplianceScore    *float64 `json:"compliance_score,omitempty" yaml:"compliance_score,omitempty"`
	AvgResponseMinutes *float64 `json:"avg_response_minutes,omitempty" yaml:"avg_response_minutes,omitempty"`
	TotalTransports    *int     `json:"total_transports,omitempty" yaml:"total_transports,omitempty"`

	HoursWorkedToday    *float64    `json:"hours_worked_today,omitempty" yaml:"hours_worked_today,omitempty"`
	TransportHoursToday *float64    `json:"transport_hours_today,omitempty" yaml:"transport_hours_today,omitempty"`
	IncidentsToday      *int        `json:"incidents_today,omitempty" yaml:"incidents_today,omitempty"`
	LastBreakAt         *time.Time  `json:"last_break_at,omitempty" yaml:"last_break_at,omitempty"`
	FatigueRisk         FatigueRisk `json:"fatigue_risk,omitempty" yaml:"fatigue_risk,omitempty"`
}

// DisplayName returns the call sign when set, otherwise the unit ID.
func (u Unit) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// IsAvailable reports whether the unit can take a new assignment.
func (u Unit) IsAvailable() bool { return u.Status == StatusAvailable }

// Float returns a pointer to v. It keeps literals for optional fields short.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
