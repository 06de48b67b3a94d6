// Package query translates a user-facing PropertyFilter into an ordered
// list of backend constraints, mirroring the constraint model of a
// document-store query (equality, range, set membership, ordering, cap,
// pagination cursor).
package query

import (
	"github.com/AgutuSam/houseTreePWA/internal/models"
)

// PrefixSentinel is the maximum private-use code point appended to a prefix
// to emulate a "starts with" predicate as an inclusive range.
const PrefixSentinel = "\uf8ff"

// MaxInSize is the backend's IN-list bound. Callers must not exceed it;
// exceeding it is a caller error, not handled here.
const MaxInSize = 30

type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLte Op = "<="
	OpIn  Op = "in"
)

type Constraint struct {
	Field string
	Op    Op
	Value interface{}
}

type Order struct {
	Field string
	Desc  bool
}

// Cursor is the opaque pagination token: the primary sort-key value and id
// of the previous page's last item.
type Cursor struct {
	SortValue interface{}
	ID        string
}

type Query struct {
	Constraints []Constraint
	Orders      []Order
	Limit       int
	Cursor      *Cursor
}

// Build produces the constraint sequence for a filter. Exactly one ordering
// clause is appended (the featured sort carries a two-key order), then the
// result cap, then the cursor when present. Combinations the backend
// disallows, such as range predicates on two different fields, are passed
// through untouched.
func Build(f models.PropertyFilter, limit int, cursor *Cursor) Query {
	q := Query{Limit: limit, Cursor: cursor}

	if f.Location != "" {
		q.Constraints = append(q.Constraints,
			Constraint{Field: "location.city", Op: OpGte, Value: f.Location},
			Constraint{Field: "location.city", Op: OpLte, Value: f.Location + PrefixSentinel},
		)
	}

	if f.PriceRange != nil {
		if f.PriceRange.Min > 0 {
			q.Constraints = append(q.Constraints, Constraint{Field: "price", Op: OpGte, Value: f.PriceRange.Min})
		}
		if f.PriceRange.Max > 0 {
			q.Constraints = append(q.Constraints, Constraint{Field: "price", Op: OpLte, Value: f.PriceRange.Max})
		}
	}

	if len(f.PropertyTypes) > 0 {
		q.Constraints = append(q.Constraints, Constraint{Field: "propertyType", Op: OpIn, Value: f.PropertyTypes})
	}

	if f.Bedrooms > 0 {
		q.Constraints = append(q.Constraints, Constraint{Field: "bedrooms", Op: OpGte, Value: f.Bedrooms})
	}
	if f.Bathrooms > 0 {
		q.Constraints = append(q.Constraints, Constraint{Field: "bathrooms", Op: OpGte, Value: f.Bathrooms})
	}

	if f.Furnished != nil {
		q.Constraints = append(q.Constraints, Constraint{Field: "furnished", Op: OpEq, Value: *f.Furnished})
	}

	if f.AvailableFrom != nil {
		q.Constraints = append(q.Constraints, Constraint{Field: "availableFrom", Op: OpLte, Value: *f.AvailableFrom})
	}

	q.Orders = ordersFor(f.SortBy)
	return q
}

// ordersFor maps a sort key to its ordering. The backend requires ordering
// to stay consistent with inequality filters, so the featured sort keeps
// createdAt as a second key; a composite index is an external concern.
func ordersFor(sortBy models.SortOrder) []Order {
	switch sortBy {
	case models.SortPriceAsc:
		return []Order{{Field: "price"}}
	case models.SortPriceDesc:
		return []Order{{Field: "price", Desc: true}}
	case models.SortOldest:
		return []Order{{Field: "createdAt"}}
	case models.SortRating:
		return []Order{{Field: "averageRating", Desc: true}}
	case models.SortFeatured:
		return []Order{{Field: "isFeatured", Desc: true}, {Field: "createdAt", Desc: true}}
	default: // newest
		return []Order{{Field: "createdAt", Desc: true}}
	}
}
