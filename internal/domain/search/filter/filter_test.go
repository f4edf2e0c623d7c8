package filter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/hybridq/internal/domain"
)

func floatPtr(f float64) *float64 { return &f }

// --- Range tests ---

func TestNewRangeFilter_Valid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
	}{
		{"gt only", floatPtr(1), nil, nil, nil},
		{"gte only", nil, floatPtr(0), nil, nil},
		{"lt only", nil, nil, floatPtr(10), nil},
		{"lte only", nil, nil, nil, floatPtr(100)},
		{"gt+lt", floatPtr(0), nil, floatPtr(10), nil},
		{"gte+lte", nil, floatPtr(0), nil, floatPtr(10)},
		{"gt+lte", floatPtr(0), nil, nil, floatPtr(10)},
		{"gte+lt", nil, floatPtr(0), floatPtr(10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (r.GT() == nil) != (tt.gt == nil) {
				t.Error("GT() mismatch")
			}
			if (r.GTE() == nil) != (tt.gte == nil) {
				t.Error("GTE() mismatch")
			}
			if (r.LT() == nil) != (tt.lt == nil) {
				t.Error("LT() mismatch")
			}
			if (r.LTE() == nil) != (tt.lte == nil) {
				t.Error("LTE() mismatch")
			}
		})
	}
}

func TestNewRangeFilter_NoBoundary(t *testing.T) {
	_, err := NewRangeFilter(nil, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for no boundary")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error = %q", err)
	}
}

func TestNewRangeFilter_ExclusiveAndInclusiveTogether(t *testing.T) {
	r, err := NewRangeFilter(floatPtr(1), floatPtr(2), floatPtr(9), floatPtr(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *r.GT() != 1 || *r.GTE() != 2 || *r.LT() != 9 || *r.LTE() != 8 {
		t.Errorf("bounds = gt %v gte %v lt %v lte %v", *r.GT(), *r.GTE(), *r.LT(), *r.LTE())
	}
}

func TestRange_Merge(t *testing.T) {
	lo, _ := NewRangeFilter(floatPtr(10), nil, nil, nil)
	hi, _ := NewRangeFilter(nil, nil, floatPtr(20), nil)

	r, err := lo.Merge(hi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.GT() == nil || *r.GT() != 10 || r.LT() == nil || *r.LT() != 20 {
		t.Errorf("merged = gt %v lt %v", r.GT(), r.LT())
	}

	if _, err := r.Merge(lo); err == nil || !strings.Contains(err.Error(), "more than once") {
		t.Errorf("repeated bound error = %v", err)
	}
}

// --- Path tests ---

func TestParsePath(t *testing.T) {
	tests := []struct {
		key    string
		dotted string
	}{
		{"color", "color"},
		{"tags__color", "tags.color"},
		{"a__b__c", "a.b.c"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p, err := ParsePath(tt.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Dotted() != tt.dotted {
				t.Errorf("Dotted() = %q, want %q", p.Dotted(), tt.dotted)
			}
		})
	}
}

func TestParsePath_Invalid(t *testing.T) {
	for _, key := range []string{"", "__tags", "tags__", "tags____color"} {
		if _, err := ParsePath(key); err == nil {
			t.Errorf("ParsePath(%q) expected error", key)
		}
	}
}

func TestParseKey_OperatorSuffix(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  any
		dotted string
		op     string
	}{
		{"number strips operator", "tags__price__gte", 4, "tags.price", OpGTE},
		{"json number strips operator", "tags__price__lt", json.Number("9.5"), "tags.price", OpLT},
		{"single segment", "gt", 1, "gt", ""},
		{"list keeps path", "tags__lt", []any{"a", "b"}, "tags.lt", ""},
		{"string keeps path", "meta__gte", "x", "meta.gte", ""},
		{"mapping keeps path", "tags__gt", map[string]any{"lt": 3}, "tags.gt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, op, err := parseKey(tt.key, tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Dotted() != tt.dotted || op != tt.op {
				t.Errorf("parseKey = %q, %q, want %q, %q", p.Dotted(), op, tt.dotted, tt.op)
			}
		})
	}
}

// --- Classify tests ---

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Kind
	}{
		{"string", "red", KindEquality},
		{"empty string", "", KindEquality},
		{"any list", []any{"red", "blue"}, KindOneOf},
		{"string list", []string{"red"}, KindOneOf},
		{"int list", []int{1, 2}, KindOneOf},
		{"empty list", []any{}, KindOneOf},
		{"range", map[string]any{"gt": 1, "lt": 2.5}, KindRange},
		{"typed range", map[string]float64{"gte": 0}, KindRange},
		{"json number", map[string]any{"lte": json.Number("12")}, KindRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Classify(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Kind() != tt.want {
				t.Errorf("Kind() = %v, want %v", v.Kind(), tt.want)
			}
		})
	}
}

func TestClassify_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		wantErr string
	}{
		{"int", 5, "unsupported value of type int"},
		{"float", 5.5, "unsupported value"},
		{"bool", true, "unsupported value"},
		{"null", nil, "null"},
		{"nested list", []any{[]any{"x"}}, "non-scalar"},
		{"map in list", []any{map[string]any{}}, "non-scalar"},
		{"empty range", map[string]any{}, "empty"},
		{"unknown op", map[string]any{"eq": 1}, "unknown range operator"},
		{"string bound", map[string]any{"gt": "1"}, "not a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

// --- Parse tests ---

func TestParse_Empty(t *testing.T) {
	expr, err := Parse(nil, ConflictReject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expr.IsEmpty() {
		t.Error("IsEmpty() = false")
	}
}

func TestParse_SortedByKey(t *testing.T) {
	expr, err := Parse(map[string]any{
		"tags__size":  []any{"s", "m"},
		"tags__color": "red",
		"price":       map[string]any{"gte": 10},
	}, ConflictReject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conds := expr.Conditions()
	if len(conds) != 3 {
		t.Fatalf("len = %d, want 3", len(conds))
	}
	want := []string{"price", "tags.color", "tags.size"}
	for i, c := range conds {
		if c.Path().Dotted() != want[i] {
			t.Errorf("condition %d path = %q, want %q", i, c.Path().Dotted(), want[i])
		}
	}
	if conds[1].Value().Kind() != KindEquality || conds[1].Value().Text() != "red" {
		t.Errorf("tags.color value = %+v", conds[1].Value())
	}
}

func TestParse_MergesRangeBounds(t *testing.T) {
	expr, err := Parse(map[string]any{
		"tags__price":       map[string]any{"gt": 10},
		"tags__price__lt":   20,
		"tags__rating__gte": 4,
	}, ConflictReject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conds := expr.Conditions()
	if len(conds) != 2 {
		t.Fatalf("len = %d, want 2", len(conds))
	}
	r := conds[0].Value().Range()
	if conds[0].Path().Dotted() != "tags.price" || r.GT() == nil || r.LT() == nil {
		t.Errorf("merged range = %q gt %v lt %v", conds[0].Path().Dotted(), r.GT(), r.LT())
	}
	if conds[1].Path().Dotted() != "tags.rating" || conds[1].Value().Range().GTE() == nil {
		t.Errorf("suffix range = %+v", conds[1])
	}
}

func TestParse_RepeatedBound(t *testing.T) {
	_, err := Parse(map[string]any{
		"tags__price":     map[string]any{"gt": 10},
		"tags__price__gt": 12,
	}, ConflictReject)
	var ve *ValueError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValueError", err)
	}
	if ve.Key != "tags__price__gt" {
		t.Errorf("Key = %q", ve.Key)
	}
}

func TestParse_InvalidValue(t *testing.T) {
	_, err := Parse(map[string]any{"tags__color": 5}, ConflictReject)
	if !errors.Is(err, domain.ErrInvalidFilterValue) {
		t.Fatalf("error = %v, want ErrInvalidFilterValue", err)
	}
	var ve *ValueError
	if !errors.As(err, &ve) || ve.Key != "tags__color" {
		t.Errorf("ValueError = %+v", ve)
	}
}

func TestParse_Conflict(t *testing.T) {
	raw := map[string]any{
		"tags__price":     []any{10, 20},
		"tags__price__lt": 50,
	}

	_, err := Parse(raw, ConflictReject)
	if !errors.Is(err, domain.ErrInvalidFilterValue) {
		t.Fatalf("reject: error = %v", err)
	}
	if !strings.Contains(err.Error(), "same path") {
		t.Errorf("error = %q", err)
	}

	expr, err := Parse(raw, ConflictCombine)
	if err != nil {
		t.Fatalf("combine: unexpected error: %v", err)
	}
	conds := expr.Conditions()
	if len(conds) != 2 || conds[0].Value().Kind() != KindOneOf || conds[1].Value().Kind() != KindRange {
		t.Errorf("combine conditions = %+v", conds)
	}
}

func TestParse_DefaultPolicyRejects(t *testing.T) {
	_, err := Parse(map[string]any{
		"color":      map[string]any{"gt": 1},
		"color__lte": 3,
		"size":       "x",
		"size__gt":   1,
	}, "")
	if !errors.Is(err, domain.ErrInvalidFilterValue) {
		t.Fatalf("error = %v", err)
	}
}

func TestParse_OperatorSegmentAsField(t *testing.T) {
	expr, err := Parse(map[string]any{
		"meta__gte": "x",
		"tags__lt":  []any{"a", "b"},
	}, ConflictReject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conds := expr.Conditions()
	if len(conds) != 2 {
		t.Fatalf("len = %d, want 2", len(conds))
	}
	if conds[0].Path().Dotted() != "meta.gte" || conds[0].Value().Kind() != KindEquality {
		t.Errorf("meta__gte = %q %v", conds[0].Path().Dotted(), conds[0].Value().Kind())
	}
	if conds[1].Path().Dotted() != "tags.lt" || conds[1].Value().Kind() != KindOneOf {
		t.Errorf("tags__lt = %q %v", conds[1].Path().Dotted(), conds[1].Value().Kind())
	}
}

func TestParse_RangeWithAllBounds(t *testing.T) {
	expr, err := Parse(map[string]any{
		"tags__price": map[string]any{"gt": 1, "gte": 2, "lt": 9, "lte": 8},
	}, ConflictReject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := expr.Conditions()[0].Value().Range()
	if *r.GT() != 1 || *r.GTE() != 2 || *r.LT() != 9 || *r.LTE() != 8 {
		t.Errorf("bounds = gt %v gte %v lt %v lte %v", *r.GT(), *r.GTE(), *r.LT(), *r.LTE())
	}
}

func TestParse_TooMany(t *testing.T) {
	raw := make(map[string]any, MaxConditions+1)
	for i := 0; i <= MaxConditions; i++ {
		raw[strings.Repeat("k", i+1)] = "v"
	}
	_, err := Parse(raw, ConflictReject)
	if err == nil || !strings.Contains(err.Error(), "too many") {
		t.Fatalf("error = %v", err)
	}
}

func TestNewCondition_Invalid(t *testing.T) {
	if _, err := NewCondition("k", FieldPath{}, Equality("x")); err == nil {
		t.Error("expected error for zero path")
	}
	p, _ := ParsePath("k")
	if _, err := NewCondition("k", p, Value{}); err == nil {
		t.Error("expected error for zero value")
	}
}
