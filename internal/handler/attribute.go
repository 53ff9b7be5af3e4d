package handler

import (
	"log/slog"
	"net/http"

	"github.com/recipebox/recipebox/internal/handler/dto"
	"github.com/recipebox/recipebox/internal/service"
)

// AttributeHandler serves one attribute collection: tags or ingredients.
type AttributeHandler struct {
	ownedHandler
	svc *service.AttributeService
}

// NewAttributeHandler creates a new AttributeHandler.
func NewAttributeHandler(svc *service.AttributeService, logger *slog.Logger) *AttributeHandler {
	return &AttributeHandler{ownedHandler: ownedHandler{logger: logger}, svc: svc}
}

// List handles GET /recipe/{tags|ingredients}. ?assigned_only=1 keeps only
// attributes used by at least one of the caller's recipes.
func (h *AttributeHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	attrs, err := h.svc.List(r.Context(), owner, service.ListAttributesInput{
		AssignedOnly: queryFlag(r, "assigned_only"),
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewListResponse(dto.ToAttributeResponses(attrs)))
}

// Create handles POST /recipe/{tags|ingredients}.
func (h *AttributeHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req dto.AttributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.svc.Create(r.Context(), owner, service.AttributeInput{Name: req.Name})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToAttributeResponse(a))
}

// Get handles GET /recipe/{tags|ingredients}/{id}.
func (h *AttributeHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	a, err := h.svc.Get(r.Context(), owner, id)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAttributeResponse(a))
}

// Update handles PUT /recipe/{tags|ingredients}/{id}.
func (h *AttributeHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// Patch handles PATCH /recipe/{tags|ingredients}/{id}.
func (h *AttributeHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *AttributeHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	owner, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req dto.AttributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.svc.Update(r.Context(), owner, id, service.AttributeInput{Name: req.Name}, partial)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAttributeResponse(a))
}

// Delete handles DELETE /recipe/{tags|ingredients}/{id}.
func (h *AttributeHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
