package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is the aggregate root: a user-owned recipe with its tag and ingredient sets.
type Recipe struct {
	ID            int64
	OwnerID       int64
	Title         string
	TimeMinutes   int
	Price         decimal.Decimal
	Link          string
	TagIDs        []int64
	IngredientIDs []int64
	Image         string // storage key; empty when no image is attached
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasImage returns true if an image is attached.
func (r *Recipe) HasImage() bool {
	return r.Image != ""
}

// AttributeIDs returns the association set for the given kind.
func (r *Recipe) AttributeIDs(kind AttributeKind) []int64 {
	if kind == KindTag {
		return r.TagIDs
	}
	return r.IngredientIDs
}

// SetAttributeIDs replaces the association set for the given kind.
func (r *Recipe) SetAttributeIDs(kind AttributeKind, ids []int64) {
	if kind == KindTag {
		r.TagIDs = ids
		return
	}
	r.IngredientIDs = ids
}
