package ingress

import (
	"encoding/json"

	"github.com/twinsync/gateway/pkg/model"
	"github.com/twinsync/gateway/pkg/util"
)

// PlanKind selects which plan type a plan envelope carries.
type PlanKind string

const (
	KindTelemetry   PlanKind = "telemetry"
	KindMachineData PlanKind = "machineData"
)

// planEnvelope is the §4.4/§6 inbound plan JSON shape. Per the §9
// ambiguity resolution, the optional telemetry arrays (do/r/var) must
// decode to empty, never nil-pointer, when absent — plain slices do
// exactly that with encoding/json (an absent field stays a nil slice).
type planEnvelope struct {
	Kind     PlanKind            `json:"kind"`
	DI       []int               `json:"di"`
	GI       []int               `json:"gi"`
	GO       []int               `json:"go"`
	DO       []int               `json:"do"`
	R        []int               `json:"r"`
	VAR      []string            `json:"var"`
	PeriodMs int                 `json:"periodMs"`
	Items    []planEnvelopeItem  `json:"items"`
}

type planEnvelopeItem struct {
	Path   string `json:"path"`
	Expand string `json:"expand"`
}

// ParsePlanEnvelope decodes an inbound plan payload, defaulting kind to
// "telemetry" when omitted, and returns the kind plus the two plan
// variants (only one of which is meaningful for the decoded kind).
func ParsePlanEnvelope(topic string, payload []byte) (PlanKind, model.TelemetryPlan, model.MachineDataPlan, error) {
	var env planEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", model.TelemetryPlan{}, model.MachineDataPlan{}, util.NewEnvelopeError(topic, "invalid JSON", err.Error())
	}

	kind := env.Kind
	if kind == "" {
		kind = KindTelemetry
	}
	if kind != KindTelemetry && kind != KindMachineData {
		return "", model.TelemetryPlan{}, model.MachineDataPlan{}, util.NewEnvelopeError(topic, "unknown plan kind", string(env.Kind))
	}

	telemetry := model.TelemetryPlan{
		DI:       env.DI,
		GI:       env.GI,
		GO:       env.GO,
		DO:       env.DO,
		R:        env.R,
		VAR:      env.VAR,
		PeriodMs: env.PeriodMs,
	}

	items := make([]model.MachineDataItem, 0, len(env.Items))
	for _, it := range env.Items {
		items = append(items, model.MachineDataItem{Path: it.Path, Expand: it.Expand})
	}
	machineData := model.MachineDataPlan{Items: items}

	return kind, telemetry, machineData, nil
}
