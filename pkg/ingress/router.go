package ingress

import (
	"github.com/twinsync/gateway/pkg/model"
	"github.com/twinsync/gateway/pkg/util"
)

// UserToucher is implemented by any session-side plan target that can
// refresh a user's heartbeat lease.
type UserToucher interface {
	TouchUser(userID string)
}

// TelemetryPlanApplier is implemented by plan targets that accept
// TelemetryPlan submissions (RobotSession).
type TelemetryPlanApplier interface {
	ApplyTelemetryPlan(userID string, plan model.TelemetryPlan) error
}

// MachineDataPlanApplier is implemented by plan targets that accept
// MachineDataPlan submissions (PlcSession).
type MachineDataPlanApplier interface {
	ApplyMachineDataPlan(userID string, plan model.MachineDataPlan)
}

// RobotUserRemover and PlcUserRemover capture the two concrete RemoveUser
// signatures in the pack (robot's can fail re-applying to the device;
// PLC's plan union never talks to the device, so it cannot). The router
// type-switches on whichever a resolved target implements.
type RobotUserRemover interface {
	RemoveUser(userID string) error
}

type PlcUserRemover interface {
	RemoveUser(userID string)
}

// PlanTarget is the minimum surface every resolved target must provide.
// A target that only implements one of TelemetryPlanApplier /
// MachineDataPlanApplier is valid: a plan of the other kind is a no-op on
// it, per §4.4.
type PlanTarget interface {
	UserToucher
}

// Resolver looks up the session-side target for a DeviceKey. It must be
// concurrency-safe: the router has no mutable state of its own.
type Resolver func(key model.DeviceKey) (PlanTarget, bool)

// Router parses inbound topics and dispatches plan/hb/leave verbs to the
// target a Resolver returns. It holds no mutable state.
type Router struct {
	resolve Resolver
}

// NewRouter builds a Router that looks targets up via resolve.
func NewRouter(resolve Resolver) *Router {
	return &Router{resolve: resolve}
}

// HandleMessage is the single handler the router registers with the MQTT
// facade. It never panics or blocks indefinitely: malformed topics/JSON
// and missing targets are logged and dropped.
func (r *Router) HandleMessage(topic string, payload []byte) {
	parsed, err := ParseTopic(topic)
	if err != nil {
		util.Warnf("ingress: dropping %s: %v", topic, err)
		return
	}

	target, ok := r.resolve(parsed.Key)
	if !ok {
		util.WithDevice(parsed.Key.String()).Warnf("ingress: dropping message for unknown device on %s", topic)
		return
	}

	switch parsed.Verb {
	case VerbHB:
		target.TouchUser(parsed.UserID)
	case VerbLeave:
		removeUser(target, parsed.UserID)
	case VerbPlan:
		applyPlan(topic, payload, parsed.UserID, target)
	}
}

func applyPlan(topic string, payload []byte, userID string, target PlanTarget) {
	kind, telemetry, machineData, err := ParsePlanEnvelope(topic, payload)
	if err != nil {
		util.Warnf("ingress: dropping plan on %s: %v", topic, err)
		return
	}

	switch kind {
	case KindTelemetry:
		applier, ok := target.(TelemetryPlanApplier)
		if !ok {
			return // target doesn't support telemetry plans: no-op, per §4.4.
		}
		if err := applier.ApplyTelemetryPlan(userID, telemetry); err != nil {
			util.Warnf("ingress: applying telemetry plan on %s: %v", topic, err)
		}
	case KindMachineData:
		applier, ok := target.(MachineDataPlanApplier)
		if !ok {
			return // target doesn't support machine-data plans: no-op.
		}
		applier.ApplyMachineDataPlan(userID, machineData)
	}
}

func removeUser(target PlanTarget, userID string) {
	switch t := target.(type) {
	case RobotUserRemover:
		if err := t.RemoveUser(userID); err != nil {
			util.Warnf("ingress: leave: re-applying union after removing %s failed: %v", userID, err)
		}
	case PlcUserRemover:
		t.RemoveUser(userID)
	}
}
