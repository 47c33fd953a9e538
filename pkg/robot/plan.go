// Package robot implements RobotSession: the robot-side telemetry device
// session layered on pkg/session's generic supervisor, speaking the
// GET_FAST/END line-streaming protocol and the PLAN_*/OK plan-apply
// protocol over a robot.Transport.
package robot

import (
	"sort"
	"strings"

	"github.com/twinsync/gateway/pkg/model"
)

// FieldCap is the per-field truncation limit applied to every unioned
// telemetry plan field (DI/GI/GO/DO/R/VAR).
const FieldCap = 10

// DefaultPeriodMs is the streaming loop's tick when no plan overrides it.
const DefaultPeriodMs = 30

// MinOverridePeriodMs is the floor clamp applied to a plan's periodMs override.
const MinOverridePeriodMs = 50

// UnionTelemetryPlan computes the deterministic union plan described in
// §4.2: per field, union all user contributions, drop non-positives/empty
// strings, dedupe, sort ascending, then truncate to FieldCap.
func UnionTelemetryPlan(states map[string]model.UserPlanState[model.TelemetryPlan]) model.TelemetryPlan {
	return model.TelemetryPlan{
		DI:  unionInts(states, func(p model.TelemetryPlan) []int { return p.DI }),
		GI:  unionInts(states, func(p model.TelemetryPlan) []int { return p.GI }),
		GO:  unionInts(states, func(p model.TelemetryPlan) []int { return p.GO }),
		DO:  unionInts(states, func(p model.TelemetryPlan) []int { return p.DO }),
		R:   unionInts(states, func(p model.TelemetryPlan) []int { return p.R }),
		VAR: unionStrings(states, func(p model.TelemetryPlan) []string { return p.VAR }),
	}
}

func unionInts(states map[string]model.UserPlanState[model.TelemetryPlan], sel func(model.TelemetryPlan) []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, st := range states {
		for _, v := range sel(st.Plan) {
			if v <= 0 || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	if len(out) > FieldCap {
		out = out[:FieldCap]
	}
	return out
}

func unionStrings(states map[string]model.UserPlanState[model.TelemetryPlan], sel func(model.TelemetryPlan) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, st := range states {
		for _, v := range sel(st.Plan) {
			t := strings.TrimSpace(v)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	if len(out) > FieldCap {
		out = out[:FieldCap]
	}
	return out
}

// effectivePeriodMs resolves the streaming tick: the minimum positive
// PeriodMs override among active plans, clamped to MinOverridePeriodMs, or
// DefaultPeriodMs if no plan overrides it.
func effectivePeriodMs(states map[string]model.UserPlanState[model.TelemetryPlan]) int {
	best := 0
	for _, st := range states {
		if st.Plan.PeriodMs <= 0 {
			continue
		}
		p := st.Plan.PeriodMs
		if p < MinOverridePeriodMs {
			p = MinOverridePeriodMs
		}
		if best == 0 || p < best {
			best = p
		}
	}
	if best == 0 {
		return DefaultPeriodMs
	}
	return best
}

// telemetryPlansEqual reports whether two union plans are field-equal, used
// to detect change before re-applying to the device.
func telemetryPlansEqual(a, b model.TelemetryPlan) bool {
	return intSliceEqual(a.DI, b.DI) &&
		intSliceEqual(a.GI, b.GI) &&
		intSliceEqual(a.GO, b.GO) &&
		intSliceEqual(a.DO, b.DO) &&
		intSliceEqual(a.R, b.R) &&
		stringSliceEqual(a.VAR, b.VAR)
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
