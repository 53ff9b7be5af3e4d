package service

import (
	"context"
	"time"

	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

// TokenStore persists hashed API tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, token *model.Token) error
	GetTokensByPrefix(ctx context.Context, prefix string) ([]*model.Token, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
	PruneTokens(ctx context.Context, userID int64, newest string, keep int) (int64, error)
}

// AttributeStore persists tags and ingredients. Every method is owner scoped.
type AttributeStore interface {
	ListAttributes(ctx context.Context, kind model.AttributeKind, ownerID int64, filter repository.AttributeFilter) ([]*model.Attribute, error)
	GetAttribute(ctx context.Context, kind model.AttributeKind, ownerID, id int64) (*model.Attribute, error)
	GetAttributesByIDs(ctx context.Context, kind model.AttributeKind, ownerID int64, ids []int64) ([]*model.Attribute, error)
	CreateAttribute(ctx context.Context, a *model.Attribute) error
	UpdateAttribute(ctx context.Context, a *model.Attribute) error
	DeleteAttribute(ctx context.Context, kind model.AttributeKind, ownerID, id int64) error
}

// RecipeStore persists recipes with their association sets. Every method is owner scoped.
type RecipeStore interface {
	ListRecipes(ctx context.Context, ownerID int64, filter repository.RecipeFilter) ([]*model.Recipe, error)
	GetRecipe(ctx context.Context, ownerID, id int64) (*model.Recipe, error)
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	DeleteRecipe(ctx context.Context, ownerID, id int64) error
	SetRecipeImage(ctx context.Context, ownerID, id int64, image string) (string, error)
}

// Store is everything the services need from a backend.
type Store interface {
	UserStore
	TokenStore
	AttributeStore
	RecipeStore
	Ping(ctx context.Context) error
	Close()
}

// AuthCache caches resolved tokens. A nil AuthCache disables caching.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, ac *model.AuthContext) error
}

var _ Store = (*repository.Repository)(nil)
