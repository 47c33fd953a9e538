// Package plc implements PlcSession: the tag-oriented machine-data device
// session layered on pkg/session's generic supervisor, polling the union
// item set through a plc.Transport each tick.
package plc

import (
	"sort"
	"strings"

	"github.com/twinsync/gateway/pkg/model"
)

// MaxItems is the default truncation limit on a unioned machine-data plan.
const MaxItems = 50

// DefaultPeriodMs is the soft-pace sleep applied after each read.
const DefaultPeriodMs = 200

// MinPollMs is the floor applied to the per-tick read timeout.
const MinPollMs = 200

type dedupeKey struct {
	path   string
	expand string
}

// UnionMachineDataPlan computes the deterministic union described in §4.3:
// trim paths, drop empty, dedupe on (path, expand) case-insensitively, sort
// by path then expand (ordinal, case-insensitive), truncate to MaxItems.
func UnionMachineDataPlan(states map[string]model.UserPlanState[model.MachineDataPlan]) model.MachineDataPlan {
	seen := make(map[dedupeKey]bool)
	var items []model.MachineDataItem

	for _, st := range states {
		for _, it := range st.Plan.Items {
			path := strings.TrimSpace(it.Path)
			if path == "" {
				continue
			}
			key := dedupeKey{path: strings.ToLower(path), expand: strings.ToLower(it.Expand)}
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, model.MachineDataItem{Path: path, Expand: it.Expand})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		pi, pj := strings.ToLower(items[i].Path), strings.ToLower(items[j].Path)
		if pi != pj {
			return pi < pj
		}
		return strings.ToLower(items[i].Expand) < strings.ToLower(items[j].Expand)
	})

	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	return model.MachineDataPlan{Items: items}
}

func machineDataPlansEqual(a, b model.MachineDataPlan) bool {
	if len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		if a.Items[i] != b.Items[i] {
			return false
		}
	}
	return true
}
