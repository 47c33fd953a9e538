// Package roster publishes the retained device-roster document described
// in §6: a JSON summary of every device the gateway knows about and its
// current status, republished whenever the device set or any device's
// status changes so remote UIs can discover the fleet.
package roster

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/twinsync/gateway/pkg/model"
)

// Publisher is the narrow surface the roster needs from the MQTT facade.
type Publisher interface {
	Publish(topic string, qos byte, retain bool, payload []byte) error
}

// DeviceEntry is one device's roster row.
type DeviceEntry struct {
	DeviceID       string `json:"deviceId"`
	DeviceType     string `json:"deviceType"`
	DisplayName    string `json:"displayName"`
	Status         string `json:"status"`
	ConnectionType string `json:"connectionType"`
	LastDataMs     *int64 `json:"lastDataMs,omitempty"`
}

// document is the §6 wire shape of the retained roster message.
type document struct {
	Ts        int64         `json:"ts"`
	TenantID  string        `json:"tenantId"`
	GatewayID string        `json:"gatewayId"`
	Devices   []DeviceEntry `json:"devices"`
}

// Roster tracks the known device set and publishes the retained document
// whenever it changes.
type Roster struct {
	pub       Publisher
	tenantID  string
	gatewayID string

	mu      sync.Mutex
	devices map[model.DeviceKey]DeviceEntry
}

// New builds a Roster for one tenant/gateway, publishing through pub.
func New(pub Publisher, tenantID, gatewayID string) *Roster {
	return &Roster{
		pub:       pub,
		tenantID:  tenantID,
		gatewayID: gatewayID,
		devices:   make(map[model.DeviceKey]DeviceEntry),
	}
}

// Topic returns the §6 retained roster topic for this tenant/gateway.
func (r *Roster) Topic() string {
	return "twinsync/" + r.tenantID + "/" + r.gatewayID + "/devices"
}

// Register adds or updates a device's static identity (name, connection
// type) without touching its status, and republishes.
func (r *Roster) Register(key model.DeviceKey, displayName, connectionType string) error {
	r.mu.Lock()
	entry := r.devices[key]
	entry.DeviceID = key.DeviceID
	entry.DeviceType = key.DeviceType
	entry.DisplayName = displayName
	entry.ConnectionType = connectionType
	if entry.Status == "" {
		entry.Status = model.Disconnected.String()
	}
	r.devices[key] = entry
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	return r.publish(snapshot)
}

// SetStatus updates key's status and republishes the roster if the status
// changed. It is the
// handler typically wired to a session's OnStatusChanged event.
func (r *Roster) SetStatus(key model.DeviceKey, status model.DeviceStatus) error {
	r.mu.Lock()
	entry, ok := r.devices[key]
	if !ok {
		entry = DeviceEntry{DeviceID: key.DeviceID, DeviceType: key.DeviceType}
	}
	changed := entry.Status != status.String()
	entry.Status = status.String()
	r.devices[key] = entry
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if !changed {
		return nil
	}
	return r.publish(snapshot)
}

// NoteFrame records that key produced a frame at ts (unix millis), so the
// roster can report lastDataMs, and republishes.
func (r *Roster) NoteFrame(key model.DeviceKey, ts int64) error {
	r.mu.Lock()
	entry, ok := r.devices[key]
	if !ok {
		entry = DeviceEntry{DeviceID: key.DeviceID, DeviceType: key.DeviceType}
	}
	entry.LastDataMs = &ts
	r.devices[key] = entry
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	return r.publish(snapshot)
}

// Remove deletes key from the roster entirely and republishes.
func (r *Roster) Remove(key model.DeviceKey) error {
	r.mu.Lock()
	delete(r.devices, key)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	return r.publish(snapshot)
}

func (r *Roster) snapshotLocked() []DeviceEntry {
	out := make([]DeviceEntry, 0, len(r.devices))
	for _, e := range r.devices {
		out = append(out, e)
	}
	return out
}

func (r *Roster) publish(devices []DeviceEntry) error {
	doc := document{
		Ts:        time.Now().UnixMilli(),
		TenantID:  r.tenantID,
		GatewayID: r.gatewayID,
		Devices:   devices,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.pub.Publish(r.Topic(), 1, true, payload)
}
