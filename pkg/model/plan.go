package model

import "time"

// TelemetryPlan is one user's requested robot signals: five ordered sets of
// register addresses (DI/GI/GO/DO/R, positive integers) plus a VAR set of
// non-empty trimmed names. PeriodMs optionally overrides the stream pacing.
type TelemetryPlan struct {
	DI       []int
	GI       []int
	GO       []int
	DO       []int
	R        []int
	VAR      []string
	PeriodMs int
}

// MachineDataItem is one requested PLC tag path, optionally expanded as a
// UDT ("udt") or left scalar/array.
type MachineDataItem struct {
	Path   string
	Expand string // "" or "udt"
}

// MachineDataPlan is one user's requested PLC tags.
type MachineDataPlan struct {
	Items []MachineDataItem
}

// UserPlanState is one user's plan plus the last time they were heard from
// (heartbeat or plan submission), generic over the device's plan type.
type UserPlanState[P any] struct {
	Plan       P
	LastSeenUTC time.Time
}

// NewUserPlanState creates a plan state stamped with the current time.
func NewUserPlanState[P any](plan P) UserPlanState[P] {
	return UserPlanState[P]{Plan: plan, LastSeenUTC: time.Now().UTC()}
}
