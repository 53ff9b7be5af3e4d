package dto

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/recipebox/recipebox/internal/model"
)

// Shape selects which representation of a recipe is written.
type Shape int

const (
	// ShapeList carries association ids.
	ShapeList Shape = iota
	// ShapeDetail nests tag and ingredient objects and the image URL.
	ShapeDetail
	// ShapeImage carries only the id and image URL.
	ShapeImage
)

// RecipeRequest is the create or update body. Price accepts a JSON number
// or a numeric string.
type RecipeRequest struct {
	Title       *string          `json:"title"`
	TimeMinutes *int             `json:"time_minutes"`
	Price       *decimal.Decimal `json:"price"`
	Link        *string          `json:"link"`
	Tags        *[]int64         `json:"tags"`
	Ingredients *[]int64         `json:"ingredients"`
}

// RecipeResponse is the list shape.
type RecipeResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       string  `json:"price"`
	Link        string  `json:"link"`
	Tags        []int64 `json:"tags"`
	Ingredients []int64 `json:"ingredients"`
}

// RecipeDetailResponse is the detail shape.
type RecipeDetailResponse struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	TimeMinutes int                 `json:"time_minutes"`
	Price       string              `json:"price"`
	Link        string              `json:"link"`
	Tags        []AttributeResponse `json:"tags"`
	Ingredients []AttributeResponse `json:"ingredients"`
	Image       *string             `json:"image"`
}

// RecipeImageResponse is returned by the image upload.
type RecipeImageResponse struct {
	ID    int64   `json:"id"`
	Image *string `json:"image"`
}

// FormatPrice renders a price with exactly two decimals.
func FormatPrice(p decimal.Decimal) string {
	return p.StringFixed(2)
}

// ToRecipeResponse converts a Recipe model to the list shape.
func ToRecipeResponse(r *model.Recipe) RecipeResponse {
	return RecipeResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       FormatPrice(r.Price),
		Link:        r.Link,
		Tags:        nonNil(r.TagIDs),
		Ingredients: nonNil(r.IngredientIDs),
	}
}

// ToRecipeResponses converts a slice of Recipe models to the list shape.
func ToRecipeResponses(recipes []*model.Recipe) []RecipeResponse {
	return lo.Map(recipes, func(r *model.Recipe, _ int) RecipeResponse {
		return ToRecipeResponse(r)
	})
}

// ToRecipeDetailResponse builds the detail shape. imageURL is empty when
// the recipe has no image.
func ToRecipeDetailResponse(r *model.Recipe, tags, ingredients []*model.Attribute, imageURL string) RecipeDetailResponse {
	return RecipeDetailResponse{
		ID:          r.ID,
		Title:       r.Title,
		TimeMinutes: r.TimeMinutes,
		Price:       FormatPrice(r.Price),
		Link:        r.Link,
		Tags:        nonNil(ToAttributeResponses(tags)),
		Ingredients: nonNil(ToAttributeResponses(ingredients)),
		Image:       optional(imageURL),
	}
}

// ToRecipeImageResponse builds the upload shape.
func ToRecipeImageResponse(r *model.Recipe, imageURL string) RecipeImageResponse {
	return RecipeImageResponse{ID: r.ID, Image: optional(imageURL)}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
