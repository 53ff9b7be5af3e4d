// Package storage persists uploaded recipe images and resolves their public URLs.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// RecipeImageDir is the key prefix for recipe images.
const RecipeImageDir = "uploads/recipe"

// ErrInvalidKey indicates a key that would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Store persists binary objects under slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// NewRecipeImageKey returns uploads/recipe/<uuid><ext> with ext lower-cased.
func NewRecipeImageKey(ext string) string {
	return path.Join(RecipeImageDir, uuid.NewString()+strings.ToLower(ext))
}

// validateKey rejects absolute keys and keys containing "..".
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// joinURL appends key to base with exactly one slash between them.
func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
