package model

import (
	"fmt"
	"strconv"
)

// FrameKind tags which variant a Frame carries.
type FrameKind int

const (
	FrameKindTelemetry FrameKind = iota
	FrameKindPlc
)

// RValue is a PLC "R" register reading: the raw integer and its
// real-number (float) reinterpretation.
type RValue struct {
	IntVal  int     `json:"i"`
	RealVal float64 `json:"r"`
}

// TelemetryFrame is one robot poll's worth of readings. All maps are
// int-keyed register/line maps; JSON keys are stringified per §6.
type TelemetryFrame struct {
	Ts        int64
	Seq       int64
	JointsDeg []float64 // length 6 when present
	DI        map[int]int
	GI        map[int]int
	GO        map[int]int
	DO        map[int]int
	R         map[int]RValue
	VAR       map[string]string
}

// PlcFrame is one PLC poll's worth of tag readings, keyed by the user's
// original path string.
type PlcFrame struct {
	Ts     int64
	Seq    int64
	Values map[string]PlcValue
}

// Frame is the sum type { TelemetryFrame | PlcFrame }, tagged by an
// unexported field so only the constructors below can produce one.
type Frame struct {
	kind      FrameKind
	telemetry TelemetryFrame
	plc       PlcFrame
}

// TelemetryFrameOf wraps a TelemetryFrame as a Frame.
func TelemetryFrameOf(tf TelemetryFrame) Frame {
	return Frame{kind: FrameKindTelemetry, telemetry: tf}
}

// PlcFrameOf wraps a PlcFrame as a Frame.
func PlcFrameOf(pf PlcFrame) Frame {
	return Frame{kind: FrameKindPlc, plc: pf}
}

// Kind reports which variant this Frame holds.
func (f Frame) Kind() FrameKind { return f.kind }

// Telemetry returns the telemetry variant and whether f holds one.
func (f Frame) Telemetry() (TelemetryFrame, bool) {
	return f.telemetry, f.kind == FrameKindTelemetry
}

// Plc returns the PLC variant and whether f holds one.
func (f Frame) Plc() (PlcFrame, bool) {
	return f.plc, f.kind == FrameKindPlc
}

// Seq returns the frame's per-session sequence number regardless of variant.
func (f Frame) Seq() int64 {
	if f.kind == FrameKindTelemetry {
		return f.telemetry.Seq
	}
	return f.plc.Seq
}

// Ts returns the frame's capture timestamp (unix millis) regardless of variant.
func (f Frame) Ts() int64 {
	if f.kind == FrameKindTelemetry {
		return f.telemetry.Ts
	}
	return f.plc.Ts
}

func intMapJSON(m map[int]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func rMapJSON(m map[int]RValue) map[string]RValue {
	if m == nil {
		return nil
	}
	out := make(map[string]RValue, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

// telemetryPayload is the wire shape of §6's telemetry payload variant.
type telemetryPayload struct {
	J  []float64         `json:"j,omitempty"`
	DI map[string]int    `json:"di,omitempty"`
	GI map[string]int    `json:"gi,omitempty"`
	GO map[string]int    `json:"go,omitempty"`
	DO map[string]int    `json:"do,omitempty"`
	R  map[string]RValue `json:"r,omitempty"`
	V  map[string]string `json:"v,omitempty"`
}

// plcPayload is the wire shape of §6's PLC payload variant.
type plcPayload struct {
	Values map[string]PlcValue `json:"values"`
}

// Payload returns the §4.5/§6 payload shape for this frame, ready to embed
// in the egress envelope.
func (f Frame) Payload() (interface{}, error) {
	switch f.kind {
	case FrameKindTelemetry:
		return telemetryPayload{
			J:  f.telemetry.JointsDeg,
			DI: intMapJSON(f.telemetry.DI),
			GI: intMapJSON(f.telemetry.GI),
			GO: intMapJSON(f.telemetry.GO),
			DO: intMapJSON(f.telemetry.DO),
			R:  rMapJSON(f.telemetry.R),
			V:  f.telemetry.VAR,
		}, nil
	case FrameKindPlc:
		return plcPayload{Values: f.plc.Values}, nil
	default:
		return nil, fmt.Errorf("frame: unknown kind %d", f.kind)
	}
}
