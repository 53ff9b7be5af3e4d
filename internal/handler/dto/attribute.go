package dto

import (
	"github.com/samber/lo"

	"github.com/recipebox/recipebox/internal/model"
)

// AttributeRequest is the tag or ingredient body.
type AttributeRequest struct {
	Name *string `json:"name"`
}

// AttributeResponse represents a tag or ingredient.
type AttributeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ToAttributeResponse converts an Attribute model.
func ToAttributeResponse(a *model.Attribute) AttributeResponse {
	return AttributeResponse{ID: a.ID, Name: a.Name}
}

// ToAttributeResponses converts a slice of Attribute models.
func ToAttributeResponses(attrs []*model.Attribute) []AttributeResponse {
	return lo.Map(attrs, func(a *model.Attribute, _ int) AttributeResponse {
		return ToAttributeResponse(a)
	})
}
