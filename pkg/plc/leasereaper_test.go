package plc

import (
	"testing"
	"time"

	"github.com/twinsync/gateway/pkg/model"
	plctransport "github.com/twinsync/gateway/pkg/transport/plc"
)

func TestPlcSession_TouchUserRefreshesLease(t *testing.T) {
	ps := NewPlcSession(model.NewDeviceKey("acme", "gw1", "line1", "plc"), plctransport.NewFakeTransport(), 50*time.Millisecond)
	ps.userPlans["userA"] = model.UserPlanState[model.MachineDataPlan]{
		Plan:        model.MachineDataPlan{Items: []model.MachineDataItem{{Path: "Tag1"}}},
		LastSeenUTC: time.Now().UTC().Add(-LeaseTTL / 2),
	}

	ps.TouchUser("userA")

	ps.plansMu.Lock()
	st := ps.userPlans["userA"]
	ps.plansMu.Unlock()
	if time.Since(st.LastSeenUTC) > time.Second {
		t.Error("TouchUser should refresh LastSeenUTC to now")
	}
}

func TestPlcSession_ReapExpiredRemovesStaleLease(t *testing.T) {
	ps := NewPlcSession(model.NewDeviceKey("acme", "gw1", "line1", "plc"), plctransport.NewFakeTransport(), 50*time.Millisecond)
	ps.userPlans["stale"] = model.UserPlanState[model.MachineDataPlan]{
		Plan:        model.MachineDataPlan{Items: []model.MachineDataItem{{Path: "Tag1"}}},
		LastSeenUTC: time.Now().UTC().Add(-2 * LeaseTTL),
	}
	ps.userPlans["fresh"] = model.UserPlanState[model.MachineDataPlan]{
		Plan:        model.MachineDataPlan{Items: []model.MachineDataItem{{Path: "Tag2"}}},
		LastSeenUTC: time.Now().UTC(),
	}

	ps.reapExpired()

	ps.plansMu.Lock()
	defer ps.plansMu.Unlock()
	if _, ok := ps.userPlans["stale"]; ok {
		t.Error("stale lease should have been reaped")
	}
	if _, ok := ps.userPlans["fresh"]; !ok {
		t.Error("fresh lease should survive reaping")
	}
}
