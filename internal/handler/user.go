package handler

import (
	"log/slog"
	"net/http"

	"github.com/recipebox/recipebox/internal/handler/dto"
	"github.com/recipebox/recipebox/internal/service"
)

// UserHandler handles sign-up, token issue and the caller's profile.
type UserHandler struct {
	ownedHandler
	users  *service.UserService
	tokens *service.TokenService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, tokens *service.TokenService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		ownedHandler: ownedHandler{logger: logger},
		users:        users,
		tokens:       tokens,
	}
}

// Create handles POST /user/create.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// Token handles POST /user/token.
func (h *UserHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.tokens.IssueToken(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TokenResponse{Token: token})
}

// Me handles GET /user/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}

	user, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// UpdateMe handles PATCH and PUT /user/me. Both merge the provided fields.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, service.UpdateProfileInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Info("profile_updated", "user_id", userID)
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}
