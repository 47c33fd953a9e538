package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PlcKind tags the variant carried by a PlcValue.
type PlcKind string

const (
	KindNull   PlcKind = "Null"
	KindBool   PlcKind = "Bool"
	KindInt32  PlcKind = "Int32"
	KindInt64  PlcKind = "Int64"
	KindFloat  PlcKind = "Float"
	KindDouble PlcKind = "Double"
	KindString PlcKind = "String"
	KindBytes  PlcKind = "Bytes"
	KindArray  PlcKind = "Array"
	KindStruct PlcKind = "Struct"
)

// PlcValue is a recursive tagged union over a PLC tag's value. Array and
// Struct members are themselves PlcValues. It always round-trips through
// JSON as {"k":kind,"v":value}.
type PlcValue struct {
	Kind   PlcKind
	Bool   bool
	Int32  int32
	Int64  int64
	Float  float32
	Double float64
	String string
	Bytes  []byte
	Array  []PlcValue
	Struct map[string]PlcValue
}

func NullValue() PlcValue                     { return PlcValue{Kind: KindNull} }
func BoolValue(v bool) PlcValue                { return PlcValue{Kind: KindBool, Bool: v} }
func Int32Value(v int32) PlcValue              { return PlcValue{Kind: KindInt32, Int32: v} }
func Int64Value(v int64) PlcValue              { return PlcValue{Kind: KindInt64, Int64: v} }
func FloatValue(v float32) PlcValue            { return PlcValue{Kind: KindFloat, Float: v} }
func DoubleValue(v float64) PlcValue           { return PlcValue{Kind: KindDouble, Double: v} }
func StringValue(v string) PlcValue            { return PlcValue{Kind: KindString, String: v} }
func BytesValue(v []byte) PlcValue             { return PlcValue{Kind: KindBytes, Bytes: v} }
func ArrayValue(v []PlcValue) PlcValue         { return PlcValue{Kind: KindArray, Array: v} }
func StructValue(v map[string]PlcValue) PlcValue { return PlcValue{Kind: KindStruct, Struct: v} }

// MarshalJSON emits {"k":kind,"v":value} with v shaped to the variant.
func (p PlcValue) MarshalJSON() ([]byte, error) {
	var v interface{}
	switch p.Kind {
	case KindNull:
		v = nil
	case KindBool:
		v = p.Bool
	case KindInt32:
		v = p.Int32
	case KindInt64:
		v = p.Int64
	case KindFloat:
		v = p.Float
	case KindDouble:
		v = p.Double
	case KindString:
		v = p.String
	case KindBytes:
		v = base64.StdEncoding.EncodeToString(p.Bytes)
	case KindArray:
		v = p.Array
	case KindStruct:
		v = p.Struct
	default:
		return nil, fmt.Errorf("plc value: unknown kind %q", p.Kind)
	}

	return json.Marshal(struct {
		Kind PlcKind     `json:"k"`
		Val  interface{} `json:"v"`
	}{Kind: p.Kind, Val: v})
}

// UnmarshalJSON parses {"k":kind,"v":value} back into the matching variant.
func (p *PlcValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind PlcKind         `json:"k"`
		Val  json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Kind {
	case KindNull:
		*p = NullValue()
	case KindBool:
		var v bool
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = BoolValue(v)
	case KindInt32:
		var v int32
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = Int32Value(v)
	case KindInt64:
		var v int64
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = Int64Value(v)
	case KindFloat:
		var v float32
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = FloatValue(v)
	case KindDouble:
		var v float64
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = DoubleValue(v)
	case KindString:
		var v string
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = StringValue(v)
	case KindBytes:
		var s string
		if err := json.Unmarshal(raw.Val, &s); err != nil {
			return err
		}
		v, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		*p = BytesValue(v)
	case KindArray:
		var v []PlcValue
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = ArrayValue(v)
	case KindStruct:
		var v map[string]PlcValue
		if err := json.Unmarshal(raw.Val, &v); err != nil {
			return err
		}
		*p = StructValue(v)
	default:
		return fmt.Errorf("plc value: unknown kind %q", raw.Kind)
	}
	return nil
}
