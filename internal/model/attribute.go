package model

import "time"

// AttributeKind distinguishes the two recipe attribute resources.
type AttributeKind string

const (
	KindTag        AttributeKind = "tag"
	KindIngredient AttributeKind = "ingredient"
)

// AttributeKinds lists every supported kind.
var AttributeKinds = []AttributeKind{KindTag, KindIngredient}

// IsValid reports whether k is a known kind.
func (k AttributeKind) IsValid() bool {
	return k == KindTag || k == KindIngredient
}

// Plural returns the collection name used in routes and payload fields.
func (k AttributeKind) Plural() string {
	switch k {
	case KindTag:
		return "tags"
	case KindIngredient:
		return "ingredients"
	default:
		return string(k) + "s"
	}
}

// Attribute is a named, user-owned label that recipes reference: a tag or an ingredient.
// Names are not unique, not even per owner.
type Attribute struct {
	ID        int64         `json:"id"`
	OwnerID   int64         `json:"-"`
	Kind      AttributeKind `json:"-"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"-"`
}
