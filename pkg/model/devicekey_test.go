package model

import "testing"

func TestDeviceKey_String(t *testing.T) {
	k := NewDeviceKey("acme", "gw-01", "R1", "robot")
	want := "acme/gw-01/robot/R1"
	if got := k.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDeviceKey_Equal(t *testing.T) {
	a := NewDeviceKey("acme", "gw-01", "R1", "robot")
	b := NewDeviceKey("acme", "gw-01", "R1", "robot")
	c := NewDeviceKey("acme", "gw-01", "P1", "plc")

	if !a.Equal(b) {
		t.Error("identical keys should be equal")
	}
	if a.Equal(c) {
		t.Error("different keys should not be equal")
	}
	if a != b {
		t.Error("DeviceKey should be comparable with ==")
	}
}
