// Package listquery defines the contract any paginated, sortable, filterable
// listing endpoint must satisfy, independent of the entity being listed.
//
// A listing implements Query with its own record type, order-field enum and
// filter type; callers (the table controller, HTTP handlers) then drive it
// without entity-specific adapter code.
package listquery

import (
	"context"
	"strings"

	dErrors "tracker/pkg/domain-errors"
)

// MaxTake bounds the per-request page size to limit server load.
const MaxTake = 50

// DefaultTake is used when a caller does not specify a page size.
const DefaultTake = 25

// Direction is the sort direction of an Order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether the direction is one of asc/desc.
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// Order selects the primary sort field and direction. Implementations must
// always add a secondary sort on a stable unique key (e.g. id desc) so that
// pagination stays deterministic when the primary field has duplicates;
// without it rows can be skipped or duplicated across pages.
type Order[F ~string] struct {
	Field     F         `json:"field"`
	Direction Direction `json:"direction"`
}

// Input is the take/skip pagination input of a list query.
type Input[F ~string, TFilter any] struct {
	Take   int       `json:"take"`
	Skip   int       `json:"skip"`
	Order  *Order[F] `json:"order,omitempty"`
	Filter TFilter   `json:"filter,omitempty"`
}

// Output is the page of records plus the total count matching the filter
// (not the page size), so callers can compute ceil(count/take) total pages.
type Output[T any] struct {
	Records []T `json:"records"`
	Count   int `json:"count"`
}

// Query is a list-producing endpoint satisfying the input/output contract.
type Query[T any, F ~string, TFilter any] interface {
	List(ctx context.Context, input Input[F, TFilter]) (Output[T], error)
}

// Normalize applies defaults and validates bounds. validField reports whether
// an order field is one of the endpoint's sortable fields.
func (in *Input[F, TFilter]) Normalize(validField func(F) bool) error {
	if in.Take == 0 {
		in.Take = DefaultTake
	}
	if in.Take < 0 || in.Take > MaxTake {
		return dErrors.Newf(dErrors.CodeValidation, "take must be between 0 and %d", MaxTake)
	}
	if in.Skip < 0 {
		return dErrors.New(dErrors.CodeValidation, "skip must not be negative")
	}
	if in.Order != nil {
		if !in.Order.Direction.Valid() {
			return dErrors.Newf(dErrors.CodeValidation, "invalid sort direction %q", in.Order.Direction)
		}
		if !validField(in.Order.Field) {
			return dErrors.Newf(dErrors.CodeValidation, "invalid sort field %q", in.Order.Field)
		}
	}
	return nil
}

// PageCount returns the total number of pages for a given page size.
func (out Output[T]) PageCount(take int) int {
	if take <= 0 {
		return 0
	}
	return (out.Count + take - 1) / take
}

// SanitizeSearch reduces free text to a token-conjunction full-text query:
// characters outside [A-Za-z0-9 and whitespace] are stripped, whitespace runs
// collapse to single separators, and the remaining tokens are joined with
// " & " for the search predicate. An empty result means "no filter".
func SanitizeSearch(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		}
	}
	tokens := strings.Fields(b.String())
	return strings.Join(tokens, " & ")
}
