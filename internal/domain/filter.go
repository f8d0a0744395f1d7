package domain

// Filter is the tagged-variant payload filter understood by the vector store
// DAL. Filters in a slice compose with AND semantics.
type Filter interface {
	isFilter()
}

// Eq matches payloads whose field equals the scalar value.
type Eq struct {
	Field string
	Value any
}

// AnyOf matches payloads whose field equals any of the listed values.
type AnyOf struct {
	Field  string
	Values []any
}

// Range matches payloads whose numeric field falls within [Min, Max]. Either
// bound may be nil for a half-open interval.
type Range struct {
	Field string
	Min   *float64
	Max   *float64
}

func (Eq) isFilter()    {}
func (AnyOf) isFilter() {}
func (Range) isFilter() {}
