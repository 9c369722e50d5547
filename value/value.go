// Package value implements the typed value tree exchanged with state
// machines: application state, transaction payloads, diff records and
// query results are all Values.
//
// A Value is immutable once built. Mapping and Sequence constructors copy
// their input, and accessors never expose internal storage.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Value is a tagged variant over null, bool, number, string, sequence
// and mapping. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	seq  []Value
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a number. Numbers follow JSON semantics and are held as
// float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int wraps an integer as a Number.
func Int(n int64) Value { return Number(float64(n)) }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Sequence builds a sequence from the given items.
func Sequence(items ...Value) Value {
	seq := make([]Value, len(items))
	copy(seq, items)
	return Value{kind: KindSequence, seq: seq}
}

// Mapping builds a mapping. A nil map yields an empty mapping.
func Mapping(fields map[string]Value) Value {
	m := make(map[string]Value, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return Value{kind: KindMapping, m: m}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Items returns a copy of the sequence items, or nil if v is not a
// sequence.
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	out := make([]Value, len(v.seq))
	copy(out, v.seq)
	return out
}

// Get returns the field named key. It reports false when v is not a
// mapping or has no such own key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	f, ok := v.m[key]
	return f, ok
}

// Keys returns the mapping keys in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of items or fields; zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence:
		return len(v.seq)
	case KindMapping:
		return len(v.m)
	default:
		return 0
	}
}

// With returns a copy of the mapping v with key set to f. A non-mapping v
// is treated as an empty mapping.
func (v Value) With(key string, f Value) Value {
	m := make(map[string]Value, len(v.m)+1)
	if v.kind == KindMapping {
		for k, e := range v.m {
			m[k] = e
		}
	}
	m[key] = f
	return Value{kind: KindMapping, m: m}
}

// Equal reports whether v and o are structurally identical.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, e := range v.m {
			oe, ok := o.m[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v into plain Go values: nil, bool, float64, string,
// []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Interface()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts plain Go values, as produced by encoding/json,
// into a Value.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: bad number %q: %w", t, err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []any:
		seq := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			seq[i] = ev
		}
		return Value{kind: KindSequence, seq: seq}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = ev
		}
		return Value{kind: KindMapping, m: m}, nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", x)
	}
}

// Canonical returns the canonical JSON encoding of v: mapping keys sorted,
// no insignificant whitespace, no HTML escaping. Two structurally equal
// values always produce identical bytes.
func Canonical(v Value) ([]byte, error) {
	if err := checkFinite(v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v.Interface()); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// MustCanonical is Canonical for values known to be encodable.
func MustCanonical(v Value) []byte {
	b, err := Canonical(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Parse decodes a single JSON document into a Value.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("value: trailing data after JSON document")
	}
	return FromInterface(x)
}

// MustParse is Parse for literals in tests and examples.
func MustParse(s string) Value {
	v, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical JSON text of v.
func (v Value) String() string {
	b, err := Canonical(v)
	if err != nil {
		return fmt.Sprintf("<invalid value: %v>", err)
	}
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return Canonical(v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func checkFinite(v Value) error {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return fmt.Errorf("value: non-finite number %v", v.n)
		}
	case KindSequence:
		for _, e := range v.seq {
			if err := checkFinite(e); err != nil {
				return err
			}
		}
	case KindMapping:
		for _, e := range v.m {
			if err := checkFinite(e); err != nil {
				return err
			}
		}
	}
	return nil
}
