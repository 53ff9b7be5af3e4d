package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/recipebox/recipebox/internal/metrics"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
	"github.com/recipebox/recipebox/internal/storage"
)

const (
	maxTitleLength = 255
	maxLinkLength  = 255
)

var maxPrice = decimal.NewFromInt(1000) // decimal(5,2): at most 999.99

// RecipeService implements the owner-scoped CRUD contract for recipes,
// association validation and image upload.
type RecipeService struct {
	recipes     RecipeStore
	attributes  AttributeStore
	images      storage.Store
	imageLimits storage.ImageLimits
	metrics     metrics.Recorder
	logger      *slog.Logger
}

// NewRecipeService creates a new RecipeService.
func NewRecipeService(recipes RecipeStore, attributes AttributeStore, images storage.Store, imageLimits storage.ImageLimits, recorder metrics.Recorder, logger *slog.Logger) *RecipeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecipeService{
		recipes:     recipes,
		attributes:  attributes,
		images:      images,
		imageLimits: imageLimits,
		metrics:     recorder,
		logger:      logger,
	}
}

// RecipeInput is a create or update payload. Nil fields were not provided.
type RecipeInput struct {
	Title         *string
	TimeMinutes   *int
	Price         *decimal.Decimal
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
}

func (in RecipeInput) attributeIDs(kind model.AttributeKind) *[]int64 {
	if kind == model.KindTag {
		return in.TagIDs
	}
	return in.IngredientIDs
}

// ListRecipesInput filters a listing. Ids are OR-ed within a dimension.
type ListRecipesInput struct {
	TagIDs        []int64
	IngredientIDs []int64
}

// RecipeDetail is a recipe with its associations resolved to objects.
type RecipeDetail struct {
	*model.Recipe
	Tags        []*model.Attribute
	Ingredients []*model.Attribute
}

// List returns the owner's recipes, newest first.
func (s *RecipeService) List(ctx context.Context, ownerID int64, input ListRecipesInput) ([]*model.Recipe, error) {
	recipes, err := s.recipes.ListRecipes(ctx, ownerID, repository.RecipeFilter{
		TagIDs:        lo.Uniq(input.TagIDs),
		IngredientIDs: lo.Uniq(input.IngredientIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

// Get returns one of the owner's recipes with tags and ingredients loaded.
func (s *RecipeService) Get(ctx context.Context, ownerID, id int64) (*RecipeDetail, error) {
	recipe, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	detail := &RecipeDetail{Recipe: recipe}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tags, err := s.attributes.GetAttributesByIDs(gctx, model.KindTag, ownerID, recipe.TagIDs)
		if err != nil {
			return fmt.Errorf("failed to load tags: %w", err)
		}
		detail.Tags = tags
		return nil
	})
	g.Go(func() error {
		ings, err := s.attributes.GetAttributesByIDs(gctx, model.KindIngredient, ownerID, recipe.IngredientIDs)
		if err != nil {
			return fmt.Errorf("failed to load ingredients: %w", err)
		}
		detail.Ingredients = ings
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return detail, nil
}

// Create stores a new recipe owned by ownerID.
func (s *RecipeService) Create(ctx context.Context, ownerID int64, input RecipeInput) (*model.Recipe, error) {
	recipe := &model.Recipe{OwnerID: ownerID, TagIDs: []int64{}, IngredientIDs: []int64{}}
	if err := s.apply(ctx, recipe, input, false); err != nil {
		return nil, err
	}

	if err := s.recipes.CreateRecipe(ctx, recipe); err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	s.metrics.IncCreated(metrics.ResourceRecipe)
	s.logger.Info("recipe_created", slog.Int64("id", recipe.ID), slog.Int64("owner_id", ownerID))
	return recipe, nil
}

// Update replaces (partial=false) or merges (partial=true) a recipe.
// A full update resets link, tags and ingredients when they are omitted.
func (s *RecipeService) Update(ctx context.Context, ownerID, id int64, input RecipeInput, partial bool) (*model.Recipe, error) {
	recipe, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, recipe, input, partial); err != nil {
		return nil, err
	}

	if err := s.recipes.UpdateRecipe(ctx, recipe); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	s.metrics.IncUpdated(metrics.ResourceRecipe)
	return recipe, nil
}

// Delete removes a recipe and, best effort, its stored image.
func (s *RecipeService) Delete(ctx context.Context, ownerID, id int64) error {
	recipe, err := s.get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.recipes.DeleteRecipe(ctx, ownerID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	if recipe.HasImage() {
		s.removeImage(ctx, recipe.Image)
	}

	s.metrics.IncDeleted(metrics.ResourceRecipe)
	s.logger.Info("recipe_deleted", slog.Int64("id", id), slog.Int64("owner_id", ownerID))
	return nil
}

// UploadImage validates data as an image, stores it and points the recipe at it.
// On any failure the recipe keeps its previous image.
func (s *RecipeService) UploadImage(ctx context.Context, ownerID, id int64, filename string, data []byte) (*model.Recipe, error) {
	recipe, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	img, err := storage.ProcessImage(data, filename, s.imageLimits)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) {
			s.metrics.IncImageUpload(metrics.UploadInvalid)
			return nil, ErrInvalidImage
		}
		s.metrics.IncImageUpload(metrics.UploadFailed)
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	key := storage.NewRecipeImageKey(img.Ext)
	if err := s.images.Put(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType); err != nil {
		s.metrics.IncImageUpload(metrics.UploadFailed)
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	previous, err := s.recipes.SetRecipeImage(ctx, ownerID, id, key)
	if err != nil {
		s.removeImage(ctx, key)
		s.metrics.IncImageUpload(metrics.UploadFailed)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to attach image: %w", err)
	}

	if previous != "" && previous != key {
		s.removeImage(ctx, previous)
	}

	recipe.Image = key
	s.metrics.IncImageUpload(metrics.UploadSuccess)
	s.logger.Info("image_uploaded",
		slog.Int64("recipe_id", id),
		slog.String("key", key),
		slog.Int("width", img.Width),
		slog.Int("height", img.Height),
	)
	return recipe, nil
}

// ImageURL returns the public URL for an image key, or "" for none.
func (s *RecipeService) ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return s.images.URL(key)
}

func (s *RecipeService) get(ctx context.Context, ownerID, id int64) (*model.Recipe, error) {
	recipe, err := s.recipes.GetRecipe(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return recipe, nil
}

func (s *RecipeService) removeImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("image cleanup failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// apply validates input and copies it onto recipe.
func (s *RecipeService) apply(ctx context.Context, recipe *model.Recipe, input RecipeInput, partial bool) error {
	var v validator

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		switch {
		case title == "":
			v.add("title", msgBlank)
		case utf8.RuneCountInString(title) > maxTitleLength:
			v.add("title", fmt.Sprintf("ensure this field has no more than %d characters", maxTitleLength))
		default:
			recipe.Title = title
		}
	} else if !partial {
		v.add("title", msgRequired)
	}

	if input.TimeMinutes != nil {
		if *input.TimeMinutes < 0 {
			v.add("time_minutes", "ensure this value is greater than or equal to 0")
		} else {
			recipe.TimeMinutes = *input.TimeMinutes
		}
	} else if !partial {
		v.add("time_minutes", msgRequired)
	}

	if input.Price != nil {
		if msg := validatePrice(*input.Price); msg != "" {
			v.add("price", msg)
		} else {
			recipe.Price = input.Price.Round(2)
		}
	} else if !partial {
		v.add("price", msgRequired)
	}

	if input.Link != nil {
		if utf8.RuneCountInString(*input.Link) > maxLinkLength {
			v.add("link", fmt.Sprintf("ensure this field has no more than %d characters", maxLinkLength))
		} else {
			recipe.Link = strings.TrimSpace(*input.Link)
		}
	} else if !partial {
		recipe.Link = ""
	}

	for _, kind := range model.AttributeKinds {
		ids := input.attributeIDs(kind)
		if ids == nil {
			if !partial {
				recipe.SetAttributeIDs(kind, []int64{})
			}
			continue
		}
		clean, msg, err := s.ownedIDs(ctx, kind, recipe.OwnerID, *ids)
		if err != nil {
			return err
		}
		if msg != "" {
			v.add(kind.Plural(), msg)
			continue
		}
		recipe.SetAttributeIDs(kind, clean)
	}

	return v.err()
}

// ownedIDs de-duplicates ids and checks the owner holds each one.
// A non-empty message reports the first offending id.
func (s *RecipeService) ownedIDs(ctx context.Context, kind model.AttributeKind, ownerID int64, ids []int64) ([]int64, string, error) {
	uniq := lo.Uniq(ids)
	for _, id := range uniq {
		if id <= 0 {
			return nil, fmt.Sprintf("invalid pk %d - object does not exist", id), nil
		}
	}
	if len(uniq) == 0 {
		return uniq, "", nil
	}

	found, err := s.attributes.GetAttributesByIDs(ctx, kind, ownerID, uniq)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check %s: %w", kind.Plural(), err)
	}

	owned := lo.Map(found, func(a *model.Attribute, _ int) int64 { return a.ID })
	if missing := lo.Without(uniq, owned...); len(missing) > 0 {
		return nil, fmt.Sprintf("invalid pk %d - object does not exist", missing[0]), nil
	}
	return uniq, "", nil
}

func validatePrice(p decimal.Decimal) string {
	switch {
	case p.IsNegative():
		return "ensure this value is greater than or equal to 0"
	case !p.Equal(p.Round(2)):
		return "ensure that there are no more than 2 decimal places"
	case p.GreaterThanOrEqual(maxPrice):
		return "ensure that there are no more than 3 digits before the decimal point"
	}
	return ""
}

// ParseIDList parses a comma separated id filter such as "1,2,3".
// An empty string yields no ids.
func ParseIDList(field, raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fieldError(field, fmt.Sprintf("invalid id %q", strings.TrimSpace(p)))
		}
		ids = append(ids, id)
	}
	return lo.Uniq(ids), nil
}
