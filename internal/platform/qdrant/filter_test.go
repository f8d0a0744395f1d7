package qdrant

import (
	"errors"
	"reflect"
	"testing"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

func TestTranslateFiltersEmpty(t *testing.T) {
	t.Parallel()
	got, err := translateFilters(nil)
	if err != nil || got != nil {
		t.Fatalf("empty filters must yield nil, got %v err %v", got, err)
	}
}

func TestTranslateEq(t *testing.T) {
	t.Parallel()
	got, err := translateFilters([]domain.Filter{
		domain.Eq{Field: domain.FieldUserID, Value: "u1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{
		"must": []any{
			map[string]any{"key": "user_id", "match": map[string]any{"value": "u1"}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestTranslateAnyOf(t *testing.T) {
	t.Parallel()
	got, err := translateFilters([]domain.Filter{
		domain.AnyOf{Field: domain.FieldSourceType, Values: []any{"message", "query"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cond := got["must"].([]any)[0].(map[string]any)
	match := cond["match"].(map[string]any)
	if !reflect.DeepEqual(match["any"], []any{"message", "query"}) {
		t.Fatalf("any_of values lost: %#v", match)
	}
}

func TestTranslateAnyOfEmptyValues(t *testing.T) {
	t.Parallel()
	_, err := translateFilters([]domain.Filter{
		domain.AnyOf{Field: domain.FieldSourceType},
	})
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != OperationErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranslateRange(t *testing.T) {
	t.Parallel()
	min := 100.0
	max := 200.0
	got, err := translateFilters([]domain.Filter{
		domain.Range{Field: domain.FieldTimestampEpoch, Min: &min, Max: &max},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cond := got["must"].([]any)[0].(map[string]any)
	bounds := cond["range"].(map[string]any)
	if bounds["gte"] != min || bounds["lte"] != max {
		t.Fatalf("bounds lost: %#v", bounds)
	}
}

func TestTranslateRangeNoBounds(t *testing.T) {
	t.Parallel()
	_, err := translateFilters([]domain.Filter{
		domain.Range{Field: domain.FieldTimestampEpoch},
	})
	var operr *OperationError
	if !errors.As(err, &operr) || operr.Code != OperationErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVisibilityConjuncts(t *testing.T) {
	t.Parallel()
	cases := []struct {
		includePrivate bool
		includeTwin    bool
		wantFields     []string
	}{
		{false, false, []string{domain.FieldIsPrivate, domain.FieldIsTwinInteraction}},
		{true, false, []string{domain.FieldIsTwinInteraction}},
		{false, true, []string{domain.FieldIsPrivate}},
		{true, true, nil},
	}
	for _, tc := range cases {
		got := visibilityConjuncts(tc.includePrivate, tc.includeTwin)
		if len(got) != len(tc.wantFields) {
			t.Fatalf("private=%v twin=%v: got %d conjuncts, want %d",
				tc.includePrivate, tc.includeTwin, len(got), len(tc.wantFields))
		}
		for i, f := range got {
			eq, ok := f.(domain.Eq)
			if !ok || eq.Field != tc.wantFields[i] || eq.Value != false {
				t.Fatalf("conjunct %d wrong: %#v", i, f)
			}
		}
	}
}
