package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ValueKind discriminates the variants a Value can hold.
//
// The string values are part of the persisted state format; do not rename.
type ValueKind string

const (
	KindNull   ValueKind = "null"
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindBool   ValueKind = "bool"
	KindList   ValueKind = "list"
	KindMap    ValueKind = "map"
)

// ErrUnsupportedValue is returned when a Go value has no Value representation.
var ErrUnsupportedValue = errors.New("unsupported value type")

// ValueTypeError reports a Go value that FromAny could not convert.
type ValueTypeError struct {
	Type string
	Path string
}

func (e *ValueTypeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrUnsupportedValue.Error(), e.Type)
	}
	return fmt.Sprintf("%s: %s at %s", ErrUnsupportedValue.Error(), e.Type, e.Path)
}

func (e *ValueTypeError) Unwrap() error { return ErrUnsupportedValue }

// Value is an immutable computed datum: a scalar, an ordered sequence,
// a nested mapping, or null.
//
// The zero Value is null.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
	m    map[string]Value
}

func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List builds a sequence value. The input slice is copied.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Map builds a mapping value. The input map is copied.
func Map(entries map[string]Value) Value {
	cp := make(map[string]Value, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

func (v Value) IsNull() bool { return v.Kind() == KindNull }

// AsString returns the string held by v and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer held by v and whether v is an int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float held by v and whether v is a float.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the bool held by v and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns a copy of the items held by v and whether v is a list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Interface unwraps v into plain Go values: nil, string, int64, float64,
// bool, []any or map[string]any.
func (v Value) Interface() any {
	switch v.Kind() {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep structural equality. Kind is part of identity, so
// Int(1) and Float(1) differ.
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindString:
		return v.s == other.s
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, e := range v.m {
			o, ok := other.m[k]
			if !ok || !e.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.Kind() {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.s)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("<%s>", v.Kind())
	}
	return string(b)
}

// FromAny converts a plain Go value into a Value.
//
// Accepted shapes: nil, string, signed and unsigned integers, float32/64,
// bool, []any, []string, []int, []int64, []float64, []bool,
// map[string]any, map[string]string and Value itself. Anything else is a
// *ValueTypeError.
func FromAny(x any) (Value, error) {
	return fromAny(x, "")
}

func fromAny(x any, path string) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Null(), nil
		}
		return *t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return uintValue(uint64(t), path)
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return uintValue(t, path)
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []Value:
		return List(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			v, err := fromAny(e, indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case []string:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = String(e)
		}
		return Value{kind: KindList, list: items}, nil
	case []int:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = Int(int64(e))
		}
		return Value{kind: KindList, list: items}, nil
	case []int64:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = Int(e)
		}
		return Value{kind: KindList, list: items}, nil
	case []float64:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = Float(e)
		}
		return Value{kind: KindList, list: items}, nil
	case []bool:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = Bool(e)
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]Value:
		return Map(t), nil
	case map[string]any:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := fromAny(e, keyPath(path, k))
			if err != nil {
				return Value{}, err
			}
			entries[k] = v
		}
		return Value{kind: KindMap, m: entries}, nil
	case map[string]string:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			entries[k] = String(e)
		}
		return Value{kind: KindMap, m: entries}, nil
	default:
		return Value{}, &ValueTypeError{Type: fmt.Sprintf("%T", x), Path: path}
	}
}

func uintValue(u uint64, path string) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, &ValueTypeError{Type: "uint64 overflowing int64", Path: path}
	}
	return Int(int64(u)), nil
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func keyPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

type valueJSON struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON writes the tagged form {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch v.Kind() {
	case KindNull:
		payload = []byte("null")
	case KindString:
		payload, err = json.Marshal(v.s)
	case KindInt:
		payload = []byte(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("float value %v is not representable", v.f)
		}
		payload, err = json.Marshal(v.f)
	case KindBool:
		payload, err = json.Marshal(v.b)
	case KindList:
		items := v.list
		if items == nil {
			items = []Value{}
		}
		payload, err = json.Marshal(items)
	case KindMap:
		entries := v.m
		if entries == nil {
			entries = map[string]Value{}
		}
		payload, err = json.Marshal(entries)
	default:
		return nil, fmt.Errorf("unknown value kind %q", v.kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.Kind(), Value: payload})
}

// UnmarshalJSON reads the tagged form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	payload := raw.Value
	if len(payload) == 0 {
		payload = []byte("null")
	}
	switch raw.Kind {
	case KindNull, "":
		*v = Null()
	case KindString:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Errorf("decode string value: %w", err)
		}
		*v = String(s)
	case KindInt:
		i, err := strconv.ParseInt(string(bytes.TrimSpace(payload)), 10, 64)
		if err != nil {
			return fmt.Errorf("decode int value: %w", err)
		}
		*v = Int(i)
	case KindFloat:
		var f float64
		if err := json.Unmarshal(payload, &f); err != nil {
			return fmt.Errorf("decode float value: %w", err)
		}
		*v = Float(f)
	case KindBool:
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return fmt.Errorf("decode bool value: %w", err)
		}
		*v = Bool(b)
	case KindList:
		var items []Value
		if err := json.Unmarshal(payload, &items); err != nil {
			return fmt.Errorf("decode list value: %w", err)
		}
		if items == nil {
			items = []Value{}
		}
		*v = Value{kind: KindList, list: items}
	case KindMap:
		var entries map[string]Value
		if err := json.Unmarshal(payload, &entries); err != nil {
			return fmt.Errorf("decode map value: %w", err)
		}
		if entries == nil {
			entries = map[string]Value{}
		}
		*v = Value{kind: KindMap, m: entries}
	default:
		return fmt.Errorf("decode value: unknown kind %q", raw.Kind)
	}
	return nil
}
