package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/recipebox/recipebox/internal/model"
)

// AttributeFilter narrows a tag or ingredient listing.
type AttributeFilter struct {
	// AssignedOnly keeps only attributes referenced by one of the owner's recipes.
	AssignedOnly bool
}

// attributeTable names the SQL objects backing one attribute kind.
type attributeTable struct {
	table      string // tags | ingredients
	joinTable  string // recipe_tags | recipe_ingredients
	joinColumn string // tag_id | ingredient_id
}

var attributeTables = map[model.AttributeKind]attributeTable{
	model.KindTag:        {table: "tags", joinTable: "recipe_tags", joinColumn: "tag_id"},
	model.KindIngredient: {table: "ingredients", joinTable: "recipe_ingredients", joinColumn: "ingredient_id"},
}

func tableFor(kind model.AttributeKind) (attributeTable, error) {
	t, ok := attributeTables[kind]
	if !ok {
		return attributeTable{}, fmt.Errorf("unknown attribute kind %q", kind)
	}
	return t, nil
}

// ListAttributes returns the owner's attributes of one kind, name descending.
func (r *Repository) ListAttributes(ctx context.Context, kind model.AttributeKind, ownerID int64, filter AttributeFilter) ([]*model.Attribute, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.owner_id, a.name, a.created_at
		FROM %s a
		WHERE a.owner_id = $1
	`, t.table)

	if filter.AssignedOnly {
		query += fmt.Sprintf(`
		  AND EXISTS (
			SELECT 1 FROM %s j
			JOIN recipes r ON r.id = j.recipe_id
			WHERE j.%s = a.id AND r.owner_id = $1
		  )`, t.joinTable, t.joinColumn)
	}

	query += " ORDER BY a.name DESC, a.id DESC"

	return r.queryAttributes(ctx, kind, query, ownerID)
}

// GetAttributesByIDs returns those of ids that the owner holds, in list order.
// Unknown and foreign ids are silently absent from the result.
func (r *Repository) GetAttributesByIDs(ctx context.Context, kind model.AttributeKind, ownerID int64, ids []int64) ([]*model.Attribute, error) {
	if len(ids) == 0 {
		return []*model.Attribute{}, nil
	}

	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, name, created_at
		FROM %s
		WHERE owner_id = $1 AND id = ANY($2::bigint[])
		ORDER BY name DESC, id DESC
	`, t.table)

	return r.queryAttributes(ctx, kind, query, ownerID, pq.Array(ids))
}

// GetAttribute retrieves one attribute owned by ownerID.
func (r *Repository) GetAttribute(ctx context.Context, kind model.AttributeKind, ownerID, id int64) (*model.Attribute, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, name, created_at
		FROM %s
		WHERE id = $1 AND owner_id = $2
	`, t.table)

	a := model.Attribute{Kind: kind}
	err = r.pool.QueryRow(ctx, query, id, ownerID).Scan(&a.ID, &a.OwnerID, &a.Name, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return &a, nil
}

// CreateAttribute inserts an attribute and sets its ID and CreatedAt.
func (r *Repository) CreateAttribute(ctx context.Context, a *model.Attribute) error {
	t, err := tableFor(a.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, t.table)

	if err := r.pool.QueryRow(ctx, query, a.OwnerID, a.Name).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("failed to create %s: %w", a.Kind, err)
	}
	return nil
}

// UpdateAttribute renames an attribute owned by a.OwnerID.
func (r *Repository) UpdateAttribute(ctx context.Context, a *model.Attribute) error {
	t, err := tableFor(a.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET name = $3 WHERE id = $1 AND owner_id = $2`, t.table)

	result, err := r.pool.Exec(ctx, query, a.ID, a.OwnerID, a.Name)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", a.Kind, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAttribute removes an attribute and its recipe associations.
func (r *Repository) DeleteAttribute(ctx context.Context, kind model.AttributeKind, ownerID, id int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, t.table)

	result, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) queryAttributes(ctx context.Context, kind model.AttributeKind, query string, args ...any) ([]*model.Attribute, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Plural(), err)
	}
	defer rows.Close()

	attrs := []*model.Attribute{}
	for rows.Next() {
		a := model.Attribute{Kind: kind}
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		attrs = append(attrs, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", kind.Plural(), err)
	}

	return attrs, nil
}
