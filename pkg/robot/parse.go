package robot

import (
	"strconv"
	"strings"

	"github.com/twinsync/gateway/pkg/model"
	"github.com/twinsync/gateway/pkg/util"
)

// parseStreamLines assembles the lines between a GET_FAST command and its
// terminating END sentinel into a TelemetryFrame, per §4.2's line grammar.
// Unknown prefixes are silently ignored.
func parseStreamLines(lines []string, ts, seq int64) model.TelemetryFrame {
	frame := model.TelemetryFrame{Ts: ts, Seq: seq}

	for _, line := range lines {
		key, rest, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case "J":
			frame.JointsDeg = parseJoints(rest)
		case "DI":
			frame.DI = parseIntIntMap(rest)
		case "GI":
			frame.GI = parseIntIntMap(rest)
		case "GO":
			frame.GO = parseIntIntMap(rest)
		case "DO":
			frame.DO = parseIntIntMap(rest)
		case "R":
			frame.R = parseRMap(rest)
		case "VAR":
			frame.VAR = parseVarMap(rest)
		}
	}

	return frame
}

func parseJoints(rest string) []float64 {
	parts := util.SplitCommaSeparated(rest)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func parseIntIntMap(rest string) map[int]int {
	parts := util.SplitCommaSeparated(rest)
	if len(parts) == 0 {
		return nil
	}
	out := make(map[int]int, len(parts))
	for _, p := range parts {
		k, v, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		ki, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		vi, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		out[ki] = vi
	}
	return out
}

func parseRMap(rest string) map[int]model.RValue {
	parts := util.SplitCommaSeparated(rest)
	if len(parts) == 0 {
		return nil
	}
	out := make(map[int]model.RValue, len(parts))
	for _, p := range parts {
		k, v, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		ki, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		if v == "ERR" {
			continue
		}
		iv, rv, ok := strings.Cut(v, "|")
		if !ok {
			continue
		}
		intVal, err := strconv.Atoi(strings.TrimSpace(iv))
		if err != nil {
			continue
		}
		realVal, err := strconv.ParseFloat(strings.TrimSpace(rv), 64)
		if err != nil {
			continue
		}
		out[ki] = model.RValue{IntVal: intVal, RealVal: realVal}
	}
	return out
}

func parseVarMap(rest string) map[string]string {
	parts := util.SplitCommaSeparated(rest)
	if len(parts) == 0 {
		return nil
	}
	out := make(map[string]string, len(parts))
	for _, p := range parts {
		name, val, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = val
	}
	return out
}

// planCommands builds the PLAN_* command lines for a union plan, in the
// fixed field order DI, GI, GO, DO, R, VAR.
func planCommands(plan model.TelemetryPlan) []string {
	return []string{
		"PLAN_DI=" + joinInts(plan.DI),
		"PLAN_GI=" + joinInts(plan.GI),
		"PLAN_GO=" + joinInts(plan.GO),
		"PLAN_DO=" + joinInts(plan.DO),
		"PLAN_R=" + joinInts(plan.R),
		"PLAN_VAR=" + strings.Join(plan.VAR, ","),
	}
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
