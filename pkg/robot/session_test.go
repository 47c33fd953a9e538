package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/twinsync/gateway/pkg/model"
	robottransport "github.com/twinsync/gateway/pkg/transport/robot"
)

func testKey() model.DeviceKey {
	return model.NewDeviceKey("t1", "g1", "R1", "robot-fanuc")
}

// queueOKs appends n "OK" acks to the fake transport's read queue, for the
// 6 PLAN_* commands applyPlanToDevice always issues.
func queueOKs(ft *robottransport.FakeTransport, n int) {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "OK"
	}
	ft.QueueLines(lines...)
}

// planWrites filters writes down to just the PLAN_* commands, so
// assertions are immune to GET_FAST writes the background stream loop
// may interleave once publishAllowed is true.
func planWrites(ft *robottransport.FakeTransport) []string {
	var out []string
	for _, w := range ft.Writes() {
		if len(w) >= 5 && w[:5] == "PLAN_" {
			out = append(out, w)
		}
	}
	return out
}

// TestRobotSession_PlanGating is the P1 test: publishAllowed tracks
// whether any user plan is active, independent of connection state.
func TestRobotSession_PlanGating(t *testing.T) {
	ft := robottransport.NewFakeTransport()
	rs := NewRobotSession(testKey(), ft)

	if rs.PublishAllowed() {
		t.Fatal("expected publishAllowed=false with no users")
	}

	if err := rs.ApplyTelemetryPlan("userA", model.TelemetryPlan{DI: []int{105}}); err != nil {
		t.Fatalf("ApplyTelemetryPlan: %v", err)
	}
	if !rs.PublishAllowed() {
		t.Fatal("expected publishAllowed=true after a plan is applied")
	}

	if err := rs.ApplyTelemetryPlan("userB", model.TelemetryPlan{GI: []int{1}}); err != nil {
		t.Fatalf("ApplyTelemetryPlan: %v", err)
	}
	if !rs.PublishAllowed() {
		t.Fatal("expected publishAllowed=true with two active users")
	}

	if err := rs.RemoveUser("userA"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if !rs.PublishAllowed() {
		t.Fatal("expected publishAllowed=true with one user remaining")
	}

	if err := rs.RemoveUser("userB"); err != nil {
		t.Fatalf("RemoveUser: %v", err)
	}
	if rs.PublishAllowed() {
		t.Fatal("expected publishAllowed=false once the last user leaves")
	}
}

// TestRobotSession_UnionAppliedOnConnect exercises the two-user union
// scenario (§8 scenario 1) via the connect-time re-apply path: plans are
// submitted before the transport is up, so the device only sees the
// computed union exactly once, synchronously inside OnConnect, with no
// stream-loop interleaving.
func TestRobotSession_UnionAppliedOnConnect(t *testing.T) {
	ft := robottransport.NewFakeTransport()
	rs := NewRobotSession(testKey(), ft)

	if err := rs.ApplyTelemetryPlan("userA", model.TelemetryPlan{DI: []int{105}, GI: []int{1}, GO: []int{1}}); err != nil {
		t.Fatalf("ApplyTelemetryPlan userA: %v", err)
	}
	if err := rs.ApplyTelemetryPlan("userB", model.TelemetryPlan{DI: []int{113, 105}, GI: []int{2}, GO: []int{}}); err != nil {
		t.Fatalf("ApplyTelemetryPlan userB: %v", err)
	}

	queueOKs(ft, 6)
	if err := rs.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rs.Disconnect(context.Background())

	got := planWrites(ft)
	want := []string{"PLAN_DI=105,113", "PLAN_GI=1,2", "PLAN_GO=1", "PLAN_DO=", "PLAN_R=", "PLAN_VAR="}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestRobotSession_ReconnectResetsAppliedPlanAndReapplies is §8 scenario
// 4's device-side half: after a reconnect the device has forgotten its
// plan, so the session must re-push the full union before the first
// frame is read.
func TestRobotSession_ReconnectResetsAppliedPlanAndReapplies(t *testing.T) {
	ft := robottransport.NewFakeTransport()
	rs := NewRobotSession(testKey(), ft)

	if err := rs.ApplyTelemetryPlan("userA", model.TelemetryPlan{DI: []int{105}}); err != nil {
		t.Fatalf("ApplyTelemetryPlan: %v", err)
	}

	queueOKs(ft, 6)
	if err := rs.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rs.Disconnect(context.Background())

	queueOKs(ft, 6)
	if err := rs.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer rs.Disconnect(context.Background())

	got := planWrites(ft)
	if len(got) != 6 || got[0] != "PLAN_DI=105" {
		t.Fatalf("expected the union re-applied once more on reconnect, got %v", got)
	}
}

func TestRobotSession_FaultOnBadAck(t *testing.T) {
	ft := robottransport.NewFakeTransport()
	rs := NewRobotSession(testKey(), ft)

	if err := rs.ApplyTelemetryPlan("userA", model.TelemetryPlan{DI: []int{105}}); err != nil {
		t.Fatalf("ApplyTelemetryPlan: %v", err)
	}

	ft.QueueLines("NOT_OK")
	if err := rs.Connect(context.Background()); err == nil {
		t.Fatal("expected connect to fail when the device rejects the re-applied plan")
	}
	if rs.Status() != model.Faulted {
		t.Errorf("Status() = %v, want Faulted", rs.Status())
	}
}

// TestRobotSession_StreamLoopEmitsMonotonicFrames is the P5 test. Plans
// are submitted before Connect so the device-side plan push happens
// synchronously inside OnConnect, and the queued DI/END lines are only
// ever consumed by the stream loop that starts afterward — no
// interleaving between the two phases.
func TestRobotSession_StreamLoopEmitsMonotonicFrames(t *testing.T) {
	ft := robottransport.NewFakeTransport()
	rs := NewRobotSession(testKey(), ft)

	if err := rs.ApplyTelemetryPlan("userA", model.TelemetryPlan{DI: []int{105}, PeriodMs: 1}); err != nil {
		t.Fatalf("ApplyTelemetryPlan: %v", err)
	}

	queueOKs(ft, 6)
	for i := 0; i < 5; i++ {
		ft.QueueLines("DI=105:1", "END")
	}

	var seqs []int64
	done := make(chan struct{}, 1)
	rs.OnFrameReceived = func(f model.TelemetryFrame) {
		seqs = append(seqs, f.Seq)
		if len(seqs) >= 3 {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	}

	if err := rs.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer rs.Disconnect(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frames")
	}

	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("seq not monotonic: %v", seqs)
		}
	}
}

func TestRobotSession_FirstConnectFailurePropagates(t *testing.T) {
	ft := robottransport.NewFakeTransport()
	ft.ConnectErr = errors.New("dial refused")
	rs := NewRobotSession(testKey(), ft)

	if err := rs.Connect(context.Background()); err == nil {
		t.Fatal("expected first connect failure to propagate")
	}
	if rs.Status() != model.Faulted {
		t.Errorf("Status() = %v, want Faulted", rs.Status())
	}
}
