// Package memory is an in-process implementation of the recipe stores.
// It backs DATABASE_URL=memory:// and the service and handler tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/recipebox/recipebox/internal/model"
	"github.com/recipebox/recipebox/internal/repository"
)

// Store keeps every record in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	users      map[int64]*model.User
	nextUserID int64

	tokens map[string]*model.Token

	attributes map[model.AttributeKind]map[int64]*model.Attribute
	nextAttrID map[model.AttributeKind]int64

	recipes      map[int64]*model.Recipe
	nextRecipeID int64

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	s.Reset()
	return s
}

// Reset clears all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[int64]*model.User)
	s.nextUserID = 1
	s.tokens = make(map[string]*model.Token)
	s.attributes = make(map[model.AttributeKind]map[int64]*model.Attribute, len(model.AttributeKinds))
	s.nextAttrID = make(map[model.AttributeKind]int64, len(model.AttributeKinds))
	for _, kind := range model.AttributeKinds {
		s.attributes[kind] = make(map[int64]*model.Attribute)
		s.nextAttrID[kind] = 1
	}
	s.recipes = make(map[int64]*model.Recipe)
	s.nextRecipeID = 1
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// ============================================================================
// Users
// ============================================================================

// CreateUser stores a user and assigns its ID.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, 0) {
		return repository.ErrEmailExists
	}

	user.ID = s.nextUserID
	s.nextUserID++
	user.CreatedAt = s.now()

	stored := *user
	s.users[user.ID] = &stored
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

// GetUserByEmail retrieves a user by exact email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// UpdateUser overwrites a stored user.
func (s *Store) UpdateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return repository.ErrEmailExists
	}

	stored := *user
	stored.CreatedAt = existing.CreatedAt
	s.users[user.ID] = &stored
	return nil
}

func (s *Store) emailTaken(email string, exceptID int64) bool {
	for _, u := range s.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

// ============================================================================
// Tokens
// ============================================================================

// CreateToken stores a token.
func (s *Store) CreateToken(_ context.Context, token *model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[token.UserID]; !ok {
		return fmt.Errorf("failed to create token: user %d does not exist", token.UserID)
	}
	stored := *token
	s.tokens[token.ID] = &stored
	return nil
}

// GetTokensByPrefix returns every token sharing prefix.
func (s *Store) GetTokensByPrefix(_ context.Context, prefix string) ([]*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Token
	for _, t := range s.tokens {
		if t.KeyPrefix == prefix {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

// PruneTokens deletes the user's tokens beyond the keep most recent,
// always keeping newest.
func (s *Store) PruneTokens(_ context.Context, userID int64, newest string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	others := lo.Filter(lo.Values(s.tokens), func(t *model.Token, _ int) bool {
		return t.UserID == userID && t.ID != newest
	})
	slices.SortFunc(others, func(a, b *model.Token) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	var deleted int64
	for _, t := range others[min(max(keep-1, 0), len(others)):] {
		delete(s.tokens, t.ID)
		deleted++
	}
	return deleted, nil
}

// TouchToken records the last use of a token.
func (s *Store) TouchToken(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[id]; ok {
		t.LastUsedAt = &at
	}
	return nil
}

// ============================================================================
// Attributes
// ============================================================================

// ListAttributes returns the owner's attributes of one kind, name descending.
func (s *Store) ListAttributes(_ context.Context, kind model.AttributeKind, ownerID int64, filter repository.AttributeFilter) ([]*model.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}

	var assigned map[int64]bool
	if filter.AssignedOnly {
		assigned = make(map[int64]bool)
		for _, r := range s.recipes {
			if r.OwnerID != ownerID {
				continue
			}
			for _, id := range r.AttributeIDs(kind) {
				assigned[id] = true
			}
		}
	}

	out := []*model.Attribute{}
	for _, a := range table {
		if a.OwnerID != ownerID {
			continue
		}
		if assigned != nil && !assigned[a.ID] {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sortAttributes(out)
	return out, nil
}

// GetAttributesByIDs returns those of ids that the owner holds.
func (s *Store) GetAttributesByIDs(_ context.Context, kind model.AttributeKind, ownerID int64, ids []int64) ([]*model.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}

	out := []*model.Attribute{}
	for _, id := range lo.Uniq(ids) {
		if a, ok := table[id]; ok && a.OwnerID == ownerID {
			c := *a
			out = append(out, &c)
		}
	}
	sortAttributes(out)
	return out, nil
}

// GetAttribute retrieves one attribute owned by ownerID.
func (s *Store) GetAttribute(_ context.Context, kind model.AttributeKind, ownerID, id int64) (*model.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}

	a, ok := table[id]
	if !ok || a.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	c := *a
	return &c, nil
}

// CreateAttribute stores an attribute and assigns its ID.
func (s *Store) CreateAttribute(_ context.Context, a *model.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.table(a.Kind)
	if err != nil {
		return err
	}

	a.ID = s.nextAttrID[a.Kind]
	s.nextAttrID[a.Kind]++
	a.CreatedAt = s.now()

	stored := *a
	table[a.ID] = &stored
	return nil
}

// UpdateAttribute renames an attribute owned by a.OwnerID.
func (s *Store) UpdateAttribute(_ context.Context, a *model.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.table(a.Kind)
	if err != nil {
		return err
	}

	existing, ok := table[a.ID]
	if !ok || existing.OwnerID != a.OwnerID {
		return repository.ErrNotFound
	}
	existing.Name = a.Name
	return nil
}

// DeleteAttribute removes an attribute and detaches it from every recipe.
func (s *Store) DeleteAttribute(_ context.Context, kind model.AttributeKind, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, err := s.table(kind)
	if err != nil {
		return err
	}

	existing, ok := table[id]
	if !ok || existing.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(table, id)

	for _, r := range s.recipes {
		r.SetAttributeIDs(kind, lo.Without(r.AttributeIDs(kind), id))
	}
	return nil
}

func (s *Store) table(kind model.AttributeKind) (map[int64]*model.Attribute, error) {
	table, ok := s.attributes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown attribute kind %q", kind)
	}
	return table, nil
}

func sortAttributes(attrs []*model.Attribute) {
	slices.SortFunc(attrs, func(a, b *model.Attribute) int {
		if c := cmp.Compare(b.Name, a.Name); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// ============================================================================
// Recipes
// ============================================================================

// ListRecipes returns the owner's recipes, newest id first.
func (s *Store) ListRecipes(_ context.Context, ownerID int64, filter repository.RecipeFilter) ([]*model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*model.Recipe{}
	for _, r := range s.recipes {
		if r.OwnerID != ownerID {
			continue
		}
		if len(filter.TagIDs) > 0 && !lo.Some(r.TagIDs, filter.TagIDs) {
			continue
		}
		if len(filter.IngredientIDs) > 0 && !lo.Some(r.IngredientIDs, filter.IngredientIDs) {
			continue
		}
		out = append(out, cloneRecipe(r))
	}

	slices.SortFunc(out, func(a, b *model.Recipe) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

// GetRecipe retrieves one recipe owned by ownerID.
func (s *Store) GetRecipe(_ context.Context, ownerID, id int64) (*model.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok || r.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return cloneRecipe(r), nil
}

// CreateRecipe stores a recipe and assigns its ID.
func (s *Store) CreateRecipe(_ context.Context, recipe *model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipe.ID = s.nextRecipeID
	s.nextRecipeID++
	recipe.CreatedAt = s.now()
	recipe.UpdatedAt = recipe.CreatedAt

	s.recipes[recipe.ID] = normalizedRecipe(recipe)
	return nil
}

// UpdateRecipe overwrites a recipe's fields and association sets.
func (s *Store) UpdateRecipe(_ context.Context, recipe *model.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recipes[recipe.ID]
	if !ok || existing.OwnerID != recipe.OwnerID {
		return repository.ErrNotFound
	}

	recipe.CreatedAt = existing.CreatedAt
	recipe.Image = existing.Image
	recipe.UpdatedAt = s.now()

	s.recipes[recipe.ID] = normalizedRecipe(recipe)
	return nil
}

// DeleteRecipe removes a recipe.
func (s *Store) DeleteRecipe(_ context.Context, ownerID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.recipes, id)
	return nil
}

// SetRecipeImage swaps the recipe's image key and returns the previous one.
func (s *Store) SetRecipeImage(_ context.Context, ownerID, id int64, image string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok || r.OwnerID != ownerID {
		return "", repository.ErrNotFound
	}
	previous := r.Image
	r.Image = image
	r.UpdatedAt = s.now()
	return previous, nil
}

// normalizedRecipe copies r with sorted, de-duplicated association sets.
func normalizedRecipe(r *model.Recipe) *model.Recipe {
	c := cloneRecipe(r)
	for _, kind := range model.AttributeKinds {
		ids := lo.Uniq(c.AttributeIDs(kind))
		slices.Sort(ids)
		c.SetAttributeIDs(kind, ids)
	}
	return c
}

func cloneRecipe(r *model.Recipe) *model.Recipe {
	c := *r
	c.TagIDs = slices.Clone(r.TagIDs)
	c.IngredientIDs = slices.Clone(r.IngredientIDs)
	if c.TagIDs == nil {
		c.TagIDs = []int64{}
	}
	if c.IngredientIDs == nil {
		c.IngredientIDs = []int64{}
	}
	return &c
}
