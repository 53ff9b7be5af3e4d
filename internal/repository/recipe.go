package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/recipebox/recipebox/internal/model"
)

// RecipeFilter narrows a recipe listing. Ids within one dimension are OR-ed,
// dimensions are AND-ed. Empty slices do not filter.
type RecipeFilter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

const recipeSelect = `
	SELECT r.id, r.owner_id, r.title, r.time_minutes, r.price::text, r.link, r.image, r.created_at, r.updated_at,
		(SELECT COALESCE(array_agg(rt.tag_id ORDER BY rt.tag_id), '{}') FROM recipe_tags rt WHERE rt.recipe_id = r.id)::text,
		(SELECT COALESCE(array_agg(ri.ingredient_id ORDER BY ri.ingredient_id), '{}') FROM recipe_ingredients ri WHERE ri.recipe_id = r.id)::text
	FROM recipes r
`

// ListRecipes returns the owner's recipes, newest id first.
func (r *Repository) ListRecipes(ctx context.Context, ownerID int64, filter RecipeFilter) ([]*model.Recipe, error) {
	query := recipeSelect + ` WHERE r.owner_id = $1`
	args := []any{ownerID}
	argIndex := 2

	if len(filter.TagIDs) > 0 {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.recipe_id = r.id AND rt.tag_id = ANY($%d::bigint[]))`, argIndex)
		args = append(args, pq.Array(filter.TagIDs))
		argIndex++
	}

	if len(filter.IngredientIDs) > 0 {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.recipe_id = r.id AND ri.ingredient_id = ANY($%d::bigint[]))`, argIndex)
		args = append(args, pq.Array(filter.IngredientIDs))
	}

	query += ` ORDER BY r.id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []*model.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipes: %w", err)
	}

	return recipes, nil
}

// GetRecipe retrieves one recipe owned by ownerID with its association sets.
func (r *Repository) GetRecipe(ctx context.Context, ownerID, id int64) (*model.Recipe, error) {
	query := recipeSelect + ` WHERE r.id = $1 AND r.owner_id = $2`
	return scanRecipe(r.pool.QueryRow(ctx, query, id, ownerID))
}

// CreateRecipe inserts a recipe and its associations in one transaction.
func (r *Repository) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO recipes (owner_id, title, time_minutes, price, link, image)
			VALUES ($1, $2, $3, $4::numeric, $5, $6)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(ctx, query,
			recipe.OwnerID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.String(),
			recipe.Link,
			recipe.Image,
		).Scan(&recipe.ID, &recipe.CreatedAt, &recipe.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		return insertAssociations(ctx, tx, recipe)
	})
}

// UpdateRecipe writes every mutable recipe field and replaces both
// association sets in one transaction.
func (r *Repository) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE recipes
			SET title = $3, time_minutes = $4, price = $5::numeric, link = $6, updated_at = $7
			WHERE id = $1 AND owner_id = $2
			RETURNING updated_at
		`

		err := tx.QueryRow(ctx, query,
			recipe.ID,
			recipe.OwnerID,
			recipe.Title,
			recipe.TimeMinutes,
			recipe.Price.String(),
			recipe.Link,
			time.Now().UTC(),
		).Scan(&recipe.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to update recipe: %w", err)
		}

		for _, kind := range model.AttributeKinds {
			t := attributeTables[kind]
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE recipe_id = $1`, t.joinTable), recipe.ID); err != nil {
				return fmt.Errorf("failed to clear recipe %s: %w", kind.Plural(), err)
			}
		}

		return insertAssociations(ctx, tx, recipe)
	})
}

// DeleteRecipe removes a recipe; associations cascade.
func (r *Repository) DeleteRecipe(ctx context.Context, ownerID, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM recipes WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRecipeImage swaps the recipe's image key and returns the previous one.
func (r *Repository) SetRecipeImage(ctx context.Context, ownerID, id int64, image string) (string, error) {
	var previous string
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT image FROM recipes WHERE id = $1 AND owner_id = $2 FOR UPDATE`,
			id, ownerID,
		).Scan(&previous)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock recipe: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE recipes SET image = $3, updated_at = $4 WHERE id = $1 AND owner_id = $2`,
			id, ownerID, image, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to set recipe image: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

func insertAssociations(ctx context.Context, tx pgx.Tx, recipe *model.Recipe) error {
	for _, kind := range model.AttributeKinds {
		ids := recipe.AttributeIDs(kind)
		if len(ids) == 0 {
			continue
		}
		t := attributeTables[kind]
		query := fmt.Sprintf(`
			INSERT INTO %s (recipe_id, %s)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
		`, t.joinTable, t.joinColumn)

		if _, err := tx.Exec(ctx, query, recipe.ID, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to link recipe %s: %w", kind.Plural(), err)
		}
	}
	return nil
}

func scanRecipe(row pgx.Row) (*model.Recipe, error) {
	var (
		recipe        model.Recipe
		tagIDs        pq.Int64Array
		ingredientIDs pq.Int64Array
	)

	err := row.Scan(
		&recipe.ID,
		&recipe.OwnerID,
		&recipe.Title,
		&recipe.TimeMinutes,
		&recipe.Price,
		&recipe.Link,
		&recipe.Image,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
		&tagIDs,
		&ingredientIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan recipe: %w", err)
	}

	recipe.TagIDs = []int64(tagIDs)
	recipe.IngredientIDs = []int64(ingredientIDs)
	return &recipe, nil
}
