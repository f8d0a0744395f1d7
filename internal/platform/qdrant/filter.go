package qdrant

import (
	"fmt"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

// translateFilters compiles the tagged-variant filters into the Qdrant filter
// JSON. All conditions land in the must list (AND semantics).
func translateFilters(filters []domain.Filter) (map[string]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	must := make([]any, 0, len(filters))
	for _, f := range filters {
		cond, err := translateCondition(f)
		if err != nil {
			return nil, err
		}
		must = append(must, cond)
	}
	return map[string]any{"must": must}, nil
}

func translateCondition(f domain.Filter) (map[string]any, error) {
	const op = "filter_translate"
	switch typed := f.(type) {
	case domain.Eq:
		if typed.Field == "" {
			return nil, opErr(op, OperationErrorValidation, "eq filter requires field", nil)
		}
		return matchCondition(typed.Field, typed.Value), nil
	case domain.AnyOf:
		if typed.Field == "" {
			return nil, opErr(op, OperationErrorValidation, "any_of filter requires field", nil)
		}
		if len(typed.Values) == 0 {
			return nil, opErr(op, OperationErrorValidation,
				fmt.Sprintf("any_of filter for field %q cannot be empty", typed.Field), nil)
		}
		return map[string]any{
			"key": typed.Field,
			"match": map[string]any{
				"any": typed.Values,
			},
		}, nil
	case domain.Range:
		if typed.Field == "" {
			return nil, opErr(op, OperationErrorValidation, "range filter requires field", nil)
		}
		if typed.Min == nil && typed.Max == nil {
			return nil, opErr(op, OperationErrorValidation,
				fmt.Sprintf("range filter for field %q needs at least one bound", typed.Field), nil)
		}
		bounds := map[string]any{}
		if typed.Min != nil {
			bounds["gte"] = *typed.Min
		}
		if typed.Max != nil {
			bounds["lte"] = *typed.Max
		}
		return map[string]any{
			"key":   typed.Field,
			"range": bounds,
		}, nil
	default:
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("unsupported filter variant %T", f), nil)
	}
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

// visibilityConjuncts expands the explicit exclusion flags into payload
// conditions. Only the negative case adds a conjunct; the DAL never chooses
// defaults on its own.
func visibilityConjuncts(includePrivate, includeTwin bool) []domain.Filter {
	var out []domain.Filter
	if !includePrivate {
		out = append(out, domain.Eq{Field: domain.FieldIsPrivate, Value: false})
	}
	if !includeTwin {
		out = append(out, domain.Eq{Field: domain.FieldIsTwinInteraction, Value: false})
	}
	return out
}
