package filter

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/hybridq/internal/domain"
)

// MaxConditions is the maximum number of compiled conditions per expression.
const MaxConditions = 32

// ConflictPolicy decides what happens when a path carries both a range and a text or categorical value.
type ConflictPolicy string

// Conflict policies.
const (
	ConflictReject  ConflictPolicy = "reject"
	ConflictCombine ConflictPolicy = "combine"
)

// IsValid reports whether p is a known policy.
func (p ConflictPolicy) IsValid() bool {
	return p == ConflictReject || p == ConflictCombine
}

// ValueError reports an offending filter key. It unwraps to domain.ErrInvalidFilterValue.
type ValueError struct {
	Key    string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s for %q: %s", domain.ErrInvalidFilterValue, e.Key, e.Reason)
}

func (e *ValueError) Unwrap() error { return domain.ErrInvalidFilterValue }

// Condition binds a classified value to a field path.
type Condition struct {
	key   string
	path  FieldPath
	value Value
}

// NewCondition creates a condition. key is the filter key the condition came from.
func NewCondition(key string, path FieldPath, v Value) (Condition, error) {
	if path.IsZero() {
		return Condition{}, fmt.Errorf("filter path is required")
	}
	if v.Kind() == KindInvalid {
		return Condition{}, fmt.Errorf("filter value is required for %q", path.Dotted())
	}
	return Condition{key: key, path: path, value: v}, nil
}

// Key returns the originating filter key.
func (c Condition) Key() string { return c.key }

// Path returns the parsed field path.
func (c Condition) Path() FieldPath { return c.path }

// Value returns the classified value.
func (c Condition) Value() Value { return c.value }

// Expression is an ordered list of conditions, all of which must hold.
type Expression struct {
	conditions []Condition
}

// NewExpression validates and creates an Expression.
func NewExpression(conditions ...Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	return Expression{conditions: conditions}, nil
}

// Conditions returns the conditions in compilation order.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// Parse classifies a generic filter mapping (field path -> value).
// Keys are processed in sorted order. Range bounds on the same path merge into one
// condition, whether given as a mapping or as operator-suffixed keys (tags__price__gte).
// All failures are *ValueError.
func Parse(raw map[string]any, policy ConflictPolicy) (Expression, error) {
	if len(raw) == 0 {
		return Expression{}, nil
	}
	if policy == "" {
		policy = ConflictReject
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []Condition
	rangeAt := make(map[string]int)
	otherAt := make(map[string]string)

	for _, key := range keys {
		path, op, err := parseKey(key, raw[key])
		if err != nil {
			return Expression{}, &ValueError{Key: key, Reason: err.Error()}
		}

		var v Value
		if op != "" {
			n, err := number(raw[key])
			if err != nil {
				return Expression{}, &ValueError{Key: key, Reason: err.Error()}
			}
			r, err := Range{}.With(op, n)
			if err != nil {
				return Expression{}, &ValueError{Key: key, Reason: err.Error()}
			}
			v = RangeValue(r)
		} else {
			if v, err = Classify(raw[key]); err != nil {
				return Expression{}, &ValueError{Key: key, Reason: err.Error()}
			}
		}

		dotted := path.Dotted()
		if v.Kind() == KindRange {
			if prev, ok := otherAt[dotted]; ok && policy == ConflictReject {
				return Expression{}, &ValueError{Key: key, Reason: fmt.Sprintf("range conflicts with %q on the same path", prev)}
			}
			if i, ok := rangeAt[dotted]; ok {
				merged, err := conds[i].value.rng.Merge(v.rng)
				if err != nil {
					return Expression{}, &ValueError{Key: key, Reason: err.Error()}
				}
				conds[i].value = RangeValue(merged)
				continue
			}
			rangeAt[dotted] = len(conds)
		} else {
			if i, ok := rangeAt[dotted]; ok && policy == ConflictReject {
				return Expression{}, &ValueError{Key: key, Reason: fmt.Sprintf("conflicts with range %q on the same path", conds[i].key)}
			}
			otherAt[dotted] = key
		}

		c, err := NewCondition(key, path, v)
		if err != nil {
			return Expression{}, &ValueError{Key: key, Reason: err.Error()}
		}
		conds = append(conds, c)
	}

	expr, err := NewExpression(conds...)
	if err != nil {
		return Expression{}, &ValueError{Key: keys[len(keys)-1], Reason: err.Error()}
	}
	return expr, nil
}
