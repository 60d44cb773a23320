package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind classifies a loosely typed value decoded from a use case definition
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindDouble
	KindString
	KindMap
	KindList
)

var kindNames = map[Kind]string{
	KindNone:   "none",
	KindInt:    "int",
	KindFloat:  "float",
	KindDouble: "double",
	KindString: "string",
	KindMap:    "map",
	KindList:   "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsNumber reports whether the kind is one of the numeric variants
func (k Kind) IsNumber() bool {
	return k == KindInt || k == KindFloat || k == KindDouble
}

// IsScalar reports whether the kind is a number or a string
func (k Kind) IsScalar() bool {
	return k.IsNumber() || k == KindString
}

// Classify maps a raw decoded value to exactly one Kind.
// Unsupported shapes (nil, bool, structs, non-string keyed maps) yield KindNone.
func Classify(v any) Kind {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32:
		return KindFloat
	case float64:
		return KindDouble
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return KindInt
		}
		if _, err := t.Float64(); err == nil {
			return KindDouble
		}
		return KindNone
	case string:
		return KindString
	case map[string]any:
		return KindMap
	case Params:
		return KindMap
	case Definition:
		return KindMap
	case []any:
		return KindList
	default:
		return KindNone
	}
}

// IsNumber reports whether v classifies as a number
func IsNumber(v any) bool {
	return Classify(v).IsNumber()
}

// IsScalar reports whether v classifies as a number or a string
func IsScalar(v any) bool {
	return Classify(v).IsScalar()
}

// AsMap returns v as a string keyed mapping
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Params:
		return map[string]any(t), true
	case Definition:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

// AsList returns v as a sequence
func AsList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// Stringify renders a scalar for use in a query string.
// The second result is false for non-scalar values.
func Stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	if Classify(v) == KindInt {
		return fmt.Sprint(v), true
	}
	return "", false
}

// Normalize converts YAML decoded map[any]any trees into map[string]any
// so definitions authored in YAML classify the same way as JSON ones.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
