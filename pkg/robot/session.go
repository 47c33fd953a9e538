package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twinsync/gateway/pkg/model"
	"github.com/twinsync/gateway/pkg/session"
	"github.com/twinsync/gateway/pkg/transport/robot"
	"github.com/twinsync/gateway/pkg/util"
)

// ReadTimeout bounds one streaming read phase; its expiry is classified as
// a connection-loss signal per §4.2, not a transient read error.
const ReadTimeout = 500 * time.Millisecond

// LeaseTTL is how long a user's plan survives without a heartbeat before
// the lease reaper removes it.
const LeaseTTL = 60 * time.Second

// ReapInterval is how often the lease reaper scans for expired plans.
const ReapInterval = 5 * time.Second

// RobotSession is the robot-side telemetry device session: plan union,
// demand gating, lease reaping, and the GET_FAST/END streaming loop,
// layered on the generic session.DeviceSessionBase supervisor.
type RobotSession struct {
	Key       model.DeviceKey
	transport robot.Transport
	base      *session.DeviceSessionBase[model.TelemetryFrame]

	OnStatusChanged         func(status model.DeviceStatus, err error)
	OnFrameReceived         func(frame model.TelemetryFrame)
	OnPublishAllowedChanged func(allowed bool)

	ioMu sync.Mutex

	plansMu     sync.Mutex
	userPlans   map[string]model.UserPlanState[model.TelemetryPlan]
	appliedPlan model.TelemetryPlan
	periodMs    int

	reapMu     sync.Mutex
	reapCancel context.CancelFunc
	reapWg     sync.WaitGroup
}

// NewRobotSession builds a RobotSession for key, communicating over transport.
func NewRobotSession(key model.DeviceKey, transport robot.Transport) *RobotSession {
	rs := &RobotSession{
		Key:       key,
		transport: transport,
		userPlans: make(map[string]model.UserPlanState[model.TelemetryPlan]),
		periodMs:  DefaultPeriodMs,
	}
	rs.base = session.NewDeviceSessionBase[model.TelemetryFrame](rs)
	rs.base.OnStatusChanged = func(s model.DeviceStatus, err error) {
		if rs.OnStatusChanged != nil {
			rs.OnStatusChanged(s, err)
		}
	}
	rs.base.OnFrameReceived = func(f model.TelemetryFrame) {
		if rs.OnFrameReceived != nil {
			rs.OnFrameReceived(f)
		}
	}
	rs.base.OnPublishAllowedChanged = func(allowed bool) {
		if rs.OnPublishAllowedChanged != nil {
			rs.OnPublishAllowedChanged(allowed)
		}
	}
	return rs
}

// Connect brings the session's transport up and starts streaming.
func (rs *RobotSession) Connect(ctx context.Context) error {
	return rs.base.Connect(ctx)
}

// Disconnect tears the session down. Idempotent.
func (rs *RobotSession) Disconnect(ctx context.Context) {
	rs.base.Disconnect(ctx)
}

// Run supervises connect/fault/reconnect for the session's lifetime, per
// §4.2's reconnect strategy: min(10s, 500ms×attempt) backoff. It returns
// when ctx is cancelled, or immediately if the very first connect fails.
func (rs *RobotSession) Run(ctx context.Context) error {
	return rs.base.Run(ctx, session.DefaultReconnectBackoff)
}

// Status returns the session's current DeviceStatus.
func (rs *RobotSession) Status() model.DeviceStatus { return rs.base.Status() }

// PublishAllowed reports whether the session currently has any active users.
func (rs *RobotSession) PublishAllowed() bool { return rs.base.PublishAllowed() }

func (rs *RobotSession) snapshotPlans() map[string]model.UserPlanState[model.TelemetryPlan] {
	out := make(map[string]model.UserPlanState[model.TelemetryPlan], len(rs.userPlans))
	for k, v := range rs.userPlans {
		out[k] = v
	}
	return out
}

// ApplyTelemetryPlan creates or replaces userID's plan and re-applies the
// union to the device if it changed.
func (rs *RobotSession) ApplyTelemetryPlan(userID string, plan model.TelemetryPlan) error {
	rs.plansMu.Lock()
	rs.userPlans[userID] = model.NewUserPlanState(plan)
	states := rs.snapshotPlans()
	rs.plansMu.Unlock()

	return rs.recomputeAndApply(states)
}

// TouchUser refreshes userID's lease. A heartbeat for a user with no
// existing plan has no effect (a plan can only be created by ApplyTelemetryPlan).
func (rs *RobotSession) TouchUser(userID string) {
	rs.plansMu.Lock()
	if st, ok := rs.userPlans[userID]; ok {
		st.LastSeenUTC = time.Now().UTC()
		rs.userPlans[userID] = st
	}
	rs.plansMu.Unlock()
}

// RemoveUser deletes userID's plan (explicit leave) and re-applies the union.
func (rs *RobotSession) RemoveUser(userID string) error {
	rs.plansMu.Lock()
	delete(rs.userPlans, userID)
	states := rs.snapshotPlans()
	rs.plansMu.Unlock()

	return rs.recomputeAndApply(states)
}

func (rs *RobotSession) recomputeAndApply(states map[string]model.UserPlanState[model.TelemetryPlan]) error {
	rs.base.SetPublishAllowed(len(states) > 0)

	union := UnionTelemetryPlan(states)
	period := effectivePeriodMs(states)

	rs.plansMu.Lock()
	rs.periodMs = period
	changed := !telemetryPlansEqual(rs.appliedPlan, union)
	rs.plansMu.Unlock()

	if !changed {
		return nil
	}
	if rs.base.Status() != model.Connected && rs.base.Status() != model.Streaming {
		// Not connected yet: the next OnConnect re-applies from the
		// current union, nothing to push to the device right now.
		return nil
	}
	return rs.applyPlanToDevice(union)
}

func (rs *RobotSession) applyPlanToDevice(plan model.TelemetryPlan) error {
	ctx, cancel := context.WithTimeout(context.Background(), ReadTimeout)
	defer cancel()

	rs.ioMu.Lock()
	defer rs.ioMu.Unlock()

	for _, cmd := range planCommands(plan) {
		if err := rs.transport.WriteLine(ctx, cmd); err != nil {
			return util.NewTransportError(rs.Key.String(), "applyPlan", err)
		}
		resp, err := rs.transport.ReadLine(ctx)
		if err != nil {
			return util.NewTransportError(rs.Key.String(), "applyPlan", err)
		}
		if resp != "OK" {
			return util.NewTransportError(rs.Key.String(), "applyPlan", fmt.Errorf("unexpected response %q", resp))
		}
	}

	rs.plansMu.Lock()
	rs.appliedPlan = plan
	rs.plansMu.Unlock()
	return nil
}

// OnConnect implements session.Hooks: brings the transport up, resets the
// applied-plan cache (the device forgot its plan across reconnect) and
// re-applies the current union, then starts the lease reaper.
func (rs *RobotSession) OnConnect(ctx context.Context) error {
	if err := rs.transport.Connect(ctx); err != nil {
		return err
	}

	rs.plansMu.Lock()
	rs.appliedPlan = model.TelemetryPlan{}
	states := rs.snapshotPlans()
	rs.plansMu.Unlock()

	if len(states) > 0 {
		if err := rs.applyPlanToDevice(UnionTelemetryPlan(states)); err != nil {
			_ = rs.transport.Close()
			return err
		}
	}

	rs.startReaper()
	return nil
}

// OnDisconnect implements session.Hooks.
func (rs *RobotSession) OnDisconnect(ctx context.Context) {
	rs.stopReaper()
	_ = rs.transport.Close()
}

// ReadFrame implements session.Hooks: one GET_FAST/END streaming
// iteration, then paces until the next period boundary.
func (rs *RobotSession) ReadFrame(ctx context.Context, seq int64) (model.TelemetryFrame, error) {
	rs.plansMu.Lock()
	period := rs.periodMs
	rs.plansMu.Unlock()

	readCtx, cancel := context.WithTimeout(ctx, ReadTimeout)
	frame, err := rs.streamOnce(readCtx, seq)
	cancel()
	if err != nil {
		return model.TelemetryFrame{}, err
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(period) * time.Millisecond):
	}
	return frame, nil
}

func (rs *RobotSession) streamOnce(ctx context.Context, seq int64) (model.TelemetryFrame, error) {
	ts := time.Now().UnixMilli()

	rs.ioMu.Lock()
	defer rs.ioMu.Unlock()

	if err := rs.transport.WriteLine(ctx, "GET_FAST"); err != nil {
		return model.TelemetryFrame{}, util.NewTransportError(rs.Key.String(), "stream", err)
	}

	var lines []string
	for {
		line, err := rs.transport.ReadLine(ctx)
		if err != nil {
			return model.TelemetryFrame{}, util.NewTransportError(rs.Key.String(), "stream", err)
		}
		if line == "END" {
			break
		}
		lines = append(lines, line)
	}

	return parseStreamLines(lines, ts, seq), nil
}

func (rs *RobotSession) startReaper() {
	ctx, cancel := context.WithCancel(context.Background())
	rs.reapMu.Lock()
	rs.reapCancel = cancel
	rs.reapMu.Unlock()

	rs.reapWg.Add(1)
	go rs.reapLoop(ctx)
}

func (rs *RobotSession) stopReaper() {
	rs.reapMu.Lock()
	cancel := rs.reapCancel
	rs.reapCancel = nil
	rs.reapMu.Unlock()

	if cancel != nil {
		cancel()
	}
	rs.reapWg.Wait()
}

func (rs *RobotSession) reapLoop(ctx context.Context) {
	defer rs.reapWg.Done()
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.reapExpired()
		}
	}
}

func (rs *RobotSession) reapExpired() {
	now := time.Now().UTC()

	rs.plansMu.Lock()
	changed := false
	for id, st := range rs.userPlans {
		if now.Sub(st.LastSeenUTC) > LeaseTTL {
			delete(rs.userPlans, id)
			changed = true
		}
	}
	states := rs.snapshotPlans()
	rs.plansMu.Unlock()

	if changed {
		if err := rs.recomputeAndApply(states); err != nil {
			util.WithDevice(rs.Key.String()).Warnf("reaping expired leases: re-apply failed: %v", err)
		}
	}
}
