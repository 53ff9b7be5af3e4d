package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/recipebox/recipebox/internal/model"
)

// CreateToken inserts a new token.
func (r *Repository) CreateToken(ctx context.Context, token *model.Token) error {
	query := `
		INSERT INTO tokens (id, user_id, key_hash, key_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.KeyHash,
		token.KeyPrefix,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

// GetTokensByPrefix retrieves all tokens sharing a prefix.
// Prefixes are short, so callers must verify the hash of each candidate.
func (r *Repository) GetTokensByPrefix(ctx context.Context, prefix string) ([]*model.Token, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, last_used_at, created_at
		FROM tokens
		WHERE key_prefix = $1
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []*model.Token
	for rows.Next() {
		var t model.Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.KeyHash, &t.KeyPrefix, &t.LastUsedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tokens: %w", err)
	}

	return tokens, nil
}

// PruneTokens deletes the user's tokens beyond the keep most recent.
// The token named by newest is always kept. It returns the number deleted.
func (r *Repository) PruneTokens(ctx context.Context, userID int64, newest string, keep int) (int64, error) {
	query := `
		DELETE FROM tokens
		WHERE user_id = $1 AND id <> $2 AND id NOT IN (
			SELECT id FROM tokens
			WHERE user_id = $1 AND id <> $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		)
	`

	result, err := r.pool.Exec(ctx, query, userID, newest, max(keep-1, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to prune tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

// TouchToken updates the last_used_at timestamp.
func (r *Repository) TouchToken(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE tokens SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update token last used: %w", err)
	}
	return nil
}
