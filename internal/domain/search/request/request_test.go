package request

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/hybridq/internal/domain/document"
	"github.com/kailas-cloud/hybridq/internal/domain/search/score"
)

func docs(ids ...string) []document.Document {
	out := make([]document.Document, len(ids))
	for i, id := range ids {
		out[i] = document.Document{ID: id}
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(docs("", ""), nil, score.Calculation{}, false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Documents()) != 2 {
		t.Fatalf("Documents() len = %d", len(r.Documents()))
	}
	if r.Documents()[0].ID != "0" || r.Documents()[1].ID != "1" {
		t.Errorf("generated ids = %q, %q", r.Documents()[0].ID, r.Documents()[1].ID)
	}
	if r.Limit() != 0 {
		t.Errorf("Limit() = %d", r.Limit())
	}
	if r.Breakdown() {
		t.Error("Breakdown() = true")
	}
	if r.Calculation().IsSet() {
		t.Error("Calculation().IsSet() = true")
	}
}

func TestNew_ExplicitValues(t *testing.T) {
	e, _ := score.NewVector("text", "title", "clip", 2)
	filters := map[string]any{"tags__color": "red"}

	r, err := New(docs("q1"), filters, score.Explicit(e), true, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Documents()[0].ID != "q1" {
		t.Errorf("ID = %q", r.Documents()[0].ID)
	}
	if r.Filters()["tags__color"] != "red" {
		t.Errorf("Filters() = %v", r.Filters())
	}
	if !r.Calculation().IsSet() || len(r.Calculation().Entries()) != 1 {
		t.Errorf("Calculation() = %+v", r.Calculation())
	}
	if !r.Breakdown() {
		t.Error("Breakdown() = false")
	}
	if r.Limit() != 25 {
		t.Errorf("Limit() = %d", r.Limit())
	}
}

func TestNew_DoesNotMutateInput(t *testing.T) {
	in := docs("")
	if _, err := New(in, nil, score.Calculation{}, false, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in[0].ID != "" {
		t.Errorf("input ID mutated to %q", in[0].ID)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		docs    []document.Document
		limit   int
		wantErr string
	}{
		{"no documents", nil, 0, "at least one"},
		{"too many documents", make([]document.Document, MaxDocuments+1), 0, "too many"},
		{"negative limit", docs("a"), -1, "must not be negative"},
		{"limit too large", docs("a"), MaxLimit + 1, "too large"},
		{"duplicate ids", docs("a", "a"), 0, "duplicate document id"},
		{"generated id collides", docs("1", ""), 0, "duplicate document id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.docs, nil, score.Calculation{}, false, tt.limit)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
