package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/recipebox/recipebox/internal/handler/dto"
	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/service"
)

// RecipeHandler handles HTTP requests for recipes.
type RecipeHandler struct {
	ownedHandler
	svc           *service.RecipeService
	maxUploadSize int64
}

// NewRecipeHandler creates a new RecipeHandler. maxUploadSize caps the
// multipart body of an image upload.
func NewRecipeHandler(svc *service.RecipeService, maxUploadSize int64, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{
		ownedHandler:  ownedHandler{logger: logger},
		svc:           svc,
		maxUploadSize: maxUploadSize,
	}
}

// List handles GET /recipe/recipes. ?tags=1,2 and ?ingredients=3 filter by
// association; ids within one parameter are OR-ed.
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	tagIDs, err := service.ParseIDList("tags", query.Get("tags"))
	if err != nil {
		h.fail(w, err)
		return
	}
	ingredientIDs, err := service.ParseIDList("ingredients", query.Get("ingredients"))
	if err != nil {
		h.fail(w, err)
		return
	}

	recipes, err := h.svc.List(r.Context(), owner, service.ListRecipesInput{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.ToRecipeResponses(recipes)))
}

// Create handles POST /recipe/recipes.
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req dto.RecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	recipe, err := h.svc.Create(r.Context(), owner, toRecipeInput(req))
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.render(recipe, dto.ShapeList))
}

// Get handles GET /recipe/recipes/{id}.
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	detail, err := h.svc.Get(r.Context(), owner, id)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecipeDetailResponse(
		detail.Recipe, detail.Tags, detail.Ingredients, h.svc.ImageURL(detail.Image),
	))
}

// Update handles PUT /recipe/recipes/{id}.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Patch handles PATCH /recipe/recipes/{id}.
func (h *RecipeHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req dto.RecipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	recipe, err := h.svc.Update(r.Context(), owner, id, toRecipeInput(req), partial)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.render(recipe, dto.ShapeList))
}

// Delete handles DELETE /recipe/recipes/{id}.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), owner, id); err != nil {
		h.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /recipe/recipes/{id}/upload-image with a
// multipart "image" file field.
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "image too large")
		default:
			h.fail(w, &service.ValidationError{Fields: map[string]string{"image": "no file was submitted"}})
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, err)
		return
	}

	recipe, err := h.svc.UploadImage(r.Context(), owner, id, header.Filename, data)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.render(recipe, dto.ShapeImage))
}

// render writes the list or image shape of a recipe.
func (h *RecipeHandler) render(recipe *model.Recipe, shape dto.Shape) any {
	switch shape {
	case dto.ShapeImage:
		return dto.ToRecipeImageResponse(recipe, h.svc.ImageURL(recipe.Image))
	default:
		return dto.ToRecipeResponse(recipe)
	}
}

func toRecipeInput(req dto.RecipeRequest) service.RecipeInput {
	return service.RecipeInput{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Price:         req.Price,
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	}
}
