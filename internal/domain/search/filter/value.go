package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

// Value variants.
const (
	KindInvalid Kind = iota
	KindEquality
	KindOneOf
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindEquality:
		return "equality"
	case KindOneOf:
		return "one_of"
	case KindRange:
		return "range"
	default:
		return "invalid"
	}
}

// Value is a classified filter value: Equality(text) | OneOf(items) | Range.
type Value struct {
	kind  Kind
	text  string
	items []any
	rng   Range
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Text returns the Equality text.
func (v Value) Text() string { return v.text }

// Items returns the OneOf elements in input order.
func (v Value) Items() []any { return v.items }

// Range returns the Range bounds.
func (v Value) Range() Range { return v.rng }

// Equality creates a text match value.
func Equality(text string) Value { return Value{kind: KindEquality, text: text} }

// OneOf creates a categorical value. Elements must be scalars.
func OneOf(items []any) (Value, error) {
	out := make([]any, len(items))
	for i, it := range items {
		s, err := scalar(it)
		if err != nil {
			return Value{}, fmt.Errorf("list element %d: %w", i, err)
		}
		out[i] = s
	}
	return Value{kind: KindOneOf, items: out}, nil
}

// RangeValue wraps validated bounds.
func RangeValue(r Range) Value { return Value{kind: KindRange, rng: r} }

// Classify maps a raw filter value to its variant. A string is an Equality, a list a
// OneOf and a mapping with keys from {gt, gte, lt, lte} a Range. Anything else is invalid.
func Classify(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return Equality(v), nil
	case []any:
		return OneOf(v)
	case []string:
		return OneOf(toAny(v))
	case []int:
		return OneOf(toAny(v))
	case []int64:
		return OneOf(toAny(v))
	case []float64:
		return OneOf(toAny(v))
	case []bool:
		return OneOf(toAny(v))
	case map[string]any:
		return rangeFromMap(v)
	case map[string]float64:
		return rangeFromMap(toAnyMap(v))
	case map[string]int:
		return rangeFromMap(toAnyMap(v))
	case nil:
		return Value{}, fmt.Errorf("value is null")
	default:
		return Value{}, fmt.Errorf("unsupported value of type %T, expected string, list or range mapping", raw)
	}
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func toAnyMap[T any](in map[string]T) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func scalar(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int, int32, int64, uint, uint32, uint64, json.Number:
		return x, nil
	case float32:
		return float64(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-finite number")
		}
		return x, nil
	case nil:
		return nil, fmt.Errorf("null element")
	default:
		return nil, fmt.Errorf("non-scalar element of type %T", v)
	}
}

func rangeFromMap(m map[string]any) (Value, error) {
	if len(m) == 0 {
		return Value{}, fmt.Errorf("range mapping is empty")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var r Range
	for _, k := range keys {
		if !isRangeOp(k) {
			return Value{}, fmt.Errorf("unknown range operator %q, expected one of %s", k, strings.Join(rangeOps, ", "))
		}
		n, err := number(m[k])
		if err != nil {
			return Value{}, fmt.Errorf("range operator %q: %w", k, err)
		}
		if r, err = r.With(k, n); err != nil {
			return Value{}, err
		}
	}
	return RangeValue(r), nil
}

func number(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("bound %q is not a number", x.String())
		}
		f = parsed
	default:
		return 0, fmt.Errorf("bound of type %T is not a number", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("bound is not finite")
	}
	return f, nil
}

func isNumber(v any) bool {
	_, err := number(v)
	return err == nil
}

// Range operators.
const (
	OpGT  = "gt"
	OpGTE = "gte"
	OpLT  = "lt"
	OpLTE = "lte"
)

var rangeOps = []string{OpGT, OpGTE, OpLT, OpLTE}

func isRangeOp(s string) bool {
	switch s {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary is required. Every given bound is kept as is, so gt and
// gte (lt and lte) may coexist; the engine applies both.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// With returns a copy of r with one more bound set. Setting a bound twice is an error.
func (r Range) With(op string, v float64) (Range, error) {
	if r.bound(op) != nil {
		return Range{}, fmt.Errorf("range operator %q given more than once", op)
	}
	val := v
	switch op {
	case OpGT:
		r.gt = &val
	case OpGTE:
		r.gte = &val
	case OpLT:
		r.lt = &val
	case OpLTE:
		r.lte = &val
	default:
		return Range{}, fmt.Errorf("unknown range operator %q", op)
	}
	return NewRangeFilter(r.gt, r.gte, r.lt, r.lte)
}

// Merge combines the bounds of two ranges on the same path.
func (r Range) Merge(other Range) (Range, error) {
	out := r
	for _, op := range rangeOps {
		b := other.bound(op)
		if b == nil {
			continue
		}
		var err error
		if out, err = out.With(op, *b); err != nil {
			return Range{}, err
		}
	}
	return out, nil
}

func (r Range) bound(op string) *float64 {
	switch op {
	case OpGT:
		return r.gt
	case OpGTE:
		return r.gte
	case OpLT:
		return r.lt
	case OpLTE:
		return r.lte
	}
	return nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// IsEmpty reports whether no bound is set.
func (r Range) IsEmpty() bool {
	return r.gt == nil && r.gte == nil && r.lt == nil && r.lte == nil
}
