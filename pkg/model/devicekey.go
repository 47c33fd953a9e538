// Package model holds the gateway's core data types: device addressing,
// session status, the telemetry/PLC frame sum type, and the tagged-union
// PLC value type.
package model

import "strings"

// DeviceKey is the immutable routing address of a device: tenant, gateway,
// device ID, and device type. Canonical string form is
// "{tenantId}/{gatewayId}/{deviceType}/{deviceId}".
type DeviceKey struct {
	TenantID   string
	GatewayID  string
	DeviceID   string
	DeviceType string
}

// NewDeviceKey builds a DeviceKey from its four components.
func NewDeviceKey(tenantID, gatewayID, deviceID, deviceType string) DeviceKey {
	return DeviceKey{
		TenantID:   tenantID,
		GatewayID:  gatewayID,
		DeviceID:   deviceID,
		DeviceType: deviceType,
	}
}

// String returns the canonical "{tenantId}/{gatewayId}/{deviceType}/{deviceId}" form.
func (k DeviceKey) String() string {
	var b strings.Builder
	b.WriteString(k.TenantID)
	b.WriteByte('/')
	b.WriteString(k.GatewayID)
	b.WriteByte('/')
	b.WriteString(k.DeviceType)
	b.WriteByte('/')
	b.WriteString(k.DeviceID)
	return b.String()
}

// Equal reports component-wise equality.
func (k DeviceKey) Equal(other DeviceKey) bool {
	return k == other
}
