package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPlcValue_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    PlcValue
	}{
		{"null", NullValue()},
		{"bool", BoolValue(true)},
		{"int32", Int32Value(42)},
		{"int64", Int64Value(1 << 40)},
		{"float", FloatValue(1.5)},
		{"double", DoubleValue(3.14159)},
		{"string", StringValue("hello")},
		{"bytes", BytesValue([]byte{0x01, 0x02, 0xff})},
		{"array", ArrayValue([]PlcValue{Int32Value(1), Int32Value(2)})},
		{"struct", StructValue(map[string]PlcValue{"x": Int32Value(1), "y": BoolValue(false)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var got PlcValue
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}

			if !reflect.DeepEqual(got, tt.v) {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tt.v)
			}
		})
	}
}

func TestPlcValue_WireShape(t *testing.T) {
	data, err := json.Marshal(Int32Value(7))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if raw["k"] != "Int32" {
		t.Errorf("k = %v, want Int32", raw["k"])
	}
	if _, ok := raw["v"]; !ok {
		t.Error("expected v key in wire shape")
	}
}

func TestPlcValue_NestedArray(t *testing.T) {
	v := ArrayValue([]PlcValue{
		StructValue(map[string]PlcValue{"a": StringValue("x")}),
		NullValue(),
	})

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got PlcValue
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Array) != 2 {
		t.Fatalf("expected 2 array members, got %d", len(got.Array))
	}
	if got.Array[0].Kind != KindStruct {
		t.Errorf("Array[0].Kind = %v, want Struct", got.Array[0].Kind)
	}
	if got.Array[1].Kind != KindNull {
		t.Errorf("Array[1].Kind = %v, want Null", got.Array[1].Kind)
	}
}

func TestPlcValue_UnknownKind(t *testing.T) {
	var v PlcValue
	err := json.Unmarshal([]byte(`{"k":"Bogus","v":1}`), &v)
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}
