package roster

import (
	"encoding/json"
	"testing"

	"github.com/twinsync/gateway/pkg/model"
)

type fakePublisher struct {
	count   int
	topic   string
	payload []byte
	retain  bool
	qos     byte
}

func (f *fakePublisher) Publish(topic string, qos byte, retain bool, payload []byte) error {
	f.count++
	f.topic = topic
	f.payload = payload
	f.retain = retain
	f.qos = qos
	return nil
}

func testKey() model.DeviceKey {
	return model.NewDeviceKey("t1", "g1", "R1", "robot-fanuc")
}

func TestRosterRegisterPublishesRetained(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "t1", "g1")

	if err := r.Register(testKey(), "Line 1 Robot", "tcp"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if pub.count != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.count)
	}
	if !pub.retain {
		t.Fatal("expected retain=true on roster publish")
	}
	if pub.topic != "twinsync/t1/g1/devices" {
		t.Fatalf("unexpected topic %q", pub.topic)
	}

	var doc document
	if err := json.Unmarshal(pub.payload, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Devices) != 1 || doc.Devices[0].DisplayName != "Line 1 Robot" {
		t.Fatalf("unexpected devices: %+v", doc.Devices)
	}
}

func TestRosterStatusChangeRepublishesOnlyOnActualChange(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "t1", "g1")
	key := testKey()

	_ = r.Register(key, "Robot", "tcp")
	initial := pub.count

	if err := r.SetStatus(key, model.Connecting); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if pub.count != initial+1 {
		t.Fatalf("expected a republish on status change, got count %d", pub.count)
	}

	// Setting the same status again is still a change from the caller's
	// perspective only if it actually differs; same status twice should
	// not double-publish.
	if err := r.SetStatus(key, model.Connecting); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if pub.count != initial+1 {
		t.Fatalf("expected no republish for an unchanged status, got count %d", pub.count)
	}
}

func TestRosterRemoveDropsDevice(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "t1", "g1")
	key := testKey()
	_ = r.Register(key, "Robot", "tcp")

	if err := r.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	var doc document
	if err := json.Unmarshal(pub.payload, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Devices) != 0 {
		t.Fatalf("expected empty roster after remove, got %+v", doc.Devices)
	}
}
