package model

import "testing"

func TestDeviceStatus_String(t *testing.T) {
	tests := []struct {
		status DeviceStatus
		want   string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Streaming, "streaming"},
		{Faulted, "faulted"},
		{DeviceStatus(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
