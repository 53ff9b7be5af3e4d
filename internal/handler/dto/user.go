package dto

import "github.com/recipebox/recipebox/internal/model"

// CreateUserRequest is the sign-up body.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// UpdateUserRequest is the /user/me PATCH body. Absent fields are unchanged.
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name"`
}

// TokenRequest carries login credentials.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse returns a newly issued token.
type TokenResponse struct {
	Token string `json:"token"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ToUserResponse converts a User model.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{Email: u.Email, Name: u.Name}
}
