package plc

import (
	"context"
	"sync"
	"time"

	"github.com/twinsync/gateway/pkg/model"
	"github.com/twinsync/gateway/pkg/session"
	plctransport "github.com/twinsync/gateway/pkg/transport/plc"
	"github.com/twinsync/gateway/pkg/util"
)

// LeaseTTL is how long a user's plan survives without a heartbeat before
// the lease reaper removes it.
const LeaseTTL = 60 * time.Second

// ReapInterval is how often the lease reaper scans for expired plans.
const ReapInterval = 5 * time.Second

// idleSleep is how long ReadFrame idles when the union is empty but users
// are present, to avoid spurious transport reads.
const idleSleep = 50 * time.Millisecond

// PlcSession is the machine-data device session: plan union, demand
// gating, lease reaping, and the bounded ReadAsync-per-tick polling loop.
type PlcSession struct {
	Key         model.DeviceKey
	transport   plctransport.Transport
	readTimeout time.Duration

	base *session.DeviceSessionBase[model.PlcFrame]

	OnStatusChanged         func(status model.DeviceStatus, err error)
	OnFrameReceived         func(frame model.PlcFrame)
	OnPublishAllowedChanged func(allowed bool)

	plansMu     sync.Mutex
	userPlans   map[string]model.UserPlanState[model.MachineDataPlan]
	unionItems  []model.MachineDataItem
	appliedPlan model.MachineDataPlan

	reapMu     sync.Mutex
	reapCancel context.CancelFunc
	reapWg     sync.WaitGroup
}

// NewPlcSession builds a PlcSession for key, communicating over transport.
// readTimeout bounds each tick's ReadAsync call and is clamped to at least
// MinPollMs.
func NewPlcSession(key model.DeviceKey, transport plctransport.Transport, readTimeout time.Duration) *PlcSession {
	if readTimeout < MinPollMs*time.Millisecond {
		readTimeout = MinPollMs * time.Millisecond
	}
	ps := &PlcSession{
		Key:         key,
		transport:   transport,
		readTimeout: readTimeout,
		userPlans:   make(map[string]model.UserPlanState[model.MachineDataPlan]),
	}
	ps.base = session.NewDeviceSessionBase[model.PlcFrame](ps)
	ps.base.OnStatusChanged = func(s model.DeviceStatus, err error) {
		if ps.OnStatusChanged != nil {
			ps.OnStatusChanged(s, err)
		}
	}
	ps.base.OnFrameReceived = func(f model.PlcFrame) {
		if ps.OnFrameReceived != nil {
			ps.OnFrameReceived(f)
		}
	}
	ps.base.OnPublishAllowedChanged = func(allowed bool) {
		if ps.OnPublishAllowedChanged != nil {
			ps.OnPublishAllowedChanged(allowed)
		}
	}
	return ps
}

// Connect brings the session's transport up and starts polling.
func (ps *PlcSession) Connect(ctx context.Context) error { return ps.base.Connect(ctx) }

// Disconnect tears the session down. Idempotent.
func (ps *PlcSession) Disconnect(ctx context.Context) { ps.base.Disconnect(ctx) }

// Run supervises connect/fault/reconnect for the session's lifetime,
// using the same min(10s, 500ms×attempt) backoff as the robot path. It
// returns when ctx is cancelled, or immediately if the very first connect
// fails.
func (ps *PlcSession) Run(ctx context.Context) error {
	return ps.base.Run(ctx, session.DefaultReconnectBackoff)
}

// Status returns the session's current DeviceStatus.
func (ps *PlcSession) Status() model.DeviceStatus { return ps.base.Status() }

// PublishAllowed reports whether the session currently has any active users.
func (ps *PlcSession) PublishAllowed() bool { return ps.base.PublishAllowed() }

func (ps *PlcSession) snapshotPlans() map[string]model.UserPlanState[model.MachineDataPlan] {
	out := make(map[string]model.UserPlanState[model.MachineDataPlan], len(ps.userPlans))
	for k, v := range ps.userPlans {
		out[k] = v
	}
	return out
}

// ApplyMachineDataPlan creates or replaces userID's plan and recomputes the union.
func (ps *PlcSession) ApplyMachineDataPlan(userID string, plan model.MachineDataPlan) {
	ps.plansMu.Lock()
	ps.userPlans[userID] = model.NewUserPlanState(plan)
	states := ps.snapshotPlans()
	ps.plansMu.Unlock()

	ps.recompute(states)
}

// TouchUser refreshes userID's lease. A heartbeat for a user with no
// existing plan has no effect.
func (ps *PlcSession) TouchUser(userID string) {
	ps.plansMu.Lock()
	if st, ok := ps.userPlans[userID]; ok {
		st.LastSeenUTC = time.Now().UTC()
		ps.userPlans[userID] = st
	}
	ps.plansMu.Unlock()
}

// RemoveUser deletes userID's plan (explicit leave) and recomputes the union.
func (ps *PlcSession) RemoveUser(userID string) {
	ps.plansMu.Lock()
	delete(ps.userPlans, userID)
	states := ps.snapshotPlans()
	ps.plansMu.Unlock()

	ps.recompute(states)
}

func (ps *PlcSession) recompute(states map[string]model.UserPlanState[model.MachineDataPlan]) {
	ps.base.SetPublishAllowed(len(states) > 0)

	union := UnionMachineDataPlan(states)

	ps.plansMu.Lock()
	changed := !machineDataPlansEqual(ps.appliedPlan, union)
	if changed {
		ps.appliedPlan = union
		ps.unionItems = union.Items
	}
	ps.plansMu.Unlock()
}

// OnConnect implements session.Hooks.
func (ps *PlcSession) OnConnect(ctx context.Context) error {
	if err := ps.transport.Connect(ctx); err != nil {
		return err
	}
	ps.startReaper()
	return nil
}

// OnDisconnect implements session.Hooks.
func (ps *PlcSession) OnDisconnect(ctx context.Context) {
	ps.stopReaper()
	_ = ps.transport.Close()
}

// ReadFrame implements session.Hooks: reads the union item set in one
// ReadAsync call bounded by readTimeout, or idles if the union is empty,
// then soft-paces for DefaultPeriodMs.
func (ps *PlcSession) ReadFrame(ctx context.Context, seq int64) (model.PlcFrame, error) {
	ps.plansMu.Lock()
	items := ps.unionItems
	ps.plansMu.Unlock()

	ts := time.Now().UnixMilli()

	if len(items) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(idleSleep):
		}
		return model.PlcFrame{Ts: ts, Seq: seq, Values: map[string]model.PlcValue{}}, nil
	}

	values, err := ps.transport.ReadAsync(ctx, items, ps.readTimeout)
	if err != nil {
		return model.PlcFrame{}, util.NewTransportError(ps.Key.String(), "readAsync", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(DefaultPeriodMs * time.Millisecond):
	}

	return model.PlcFrame{Ts: ts, Seq: seq, Values: values}, nil
}

func (ps *PlcSession) startReaper() {
	ctx, cancel := context.WithCancel(context.Background())
	ps.reapMu.Lock()
	ps.reapCancel = cancel
	ps.reapMu.Unlock()

	ps.reapWg.Add(1)
	go ps.reapLoop(ctx)
}

func (ps *PlcSession) stopReaper() {
	ps.reapMu.Lock()
	cancel := ps.reapCancel
	ps.reapCancel = nil
	ps.reapMu.Unlock()

	if cancel != nil {
		cancel()
	}
	ps.reapWg.Wait()
}

func (ps *PlcSession) reapLoop(ctx context.Context) {
	defer ps.reapWg.Done()
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ps.reapExpired()
		}
	}
}

func (ps *PlcSession) reapExpired() {
	now := time.Now().UTC()

	ps.plansMu.Lock()
	changed := false
	for id, st := range ps.userPlans {
		if now.Sub(st.LastSeenUTC) > LeaseTTL {
			delete(ps.userPlans, id)
			changed = true
		}
	}
	states := ps.snapshotPlans()
	ps.plansMu.Unlock()

	if changed {
		ps.recompute(states)
	}
}
