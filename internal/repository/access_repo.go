package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"routinely/internal/database"
	"routinely/internal/models"

	"github.com/google/uuid"
)

// AccessRepository handles professional access grants and the codes that create them
type AccessRepository struct {
	db database.DBTX
}

// NewAccessRepository creates a new access repository
func NewAccessRepository(db database.DBTX) *AccessRepository {
	return &AccessRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *AccessRepository) WithTx(tx *database.Tx) *AccessRepository {
	return &AccessRepository{db: tx}
}

// Grant gives a professional read access to a child, reactivating a revoked grant
func (r *AccessRepository) Grant(ctx context.Context, childID, professionalID, grantedBy string) error {
	update := `
		UPDATE professional_access
		SET is_active = ?, revoked_at = NULL, granted_by = ?
		WHERE child_id = ? AND professional_id = ?
	`
	result, err := r.db.ExecContext(ctx, update, true, grantedBy, childID, professionalID)
	if err != nil {
		return fmt.Errorf("failed to update access grant: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		return nil
	}

	insert := `
		INSERT INTO professional_access (id, child_id, professional_id, granted_by, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, insert, uuid.NewString(), childID, professionalID, grantedBy, true, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert access grant: %w", err)
	}
	return nil
}

// HasActiveAccess reports whether a professional holds an unrevoked grant for a child
func (r *AccessRepository) HasActiveAccess(ctx context.Context, childID, professionalID string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM professional_access
		WHERE child_id = ? AND professional_id = ? AND is_active = ?
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, childID, professionalID, true).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check access: %w", err)
	}
	return count > 0, nil
}

// Revoke deactivates a grant. It reports false when there was no active grant.
func (r *AccessRepository) Revoke(ctx context.Context, childID, professionalID string) (bool, error) {
	query := `
		UPDATE professional_access
		SET is_active = ?, revoked_at = ?
		WHERE child_id = ? AND professional_id = ? AND is_active = ?
	`
	result, err := r.db.ExecContext(ctx, query, false, time.Now().UTC(), childID, professionalID, true)
	if err != nil {
		return false, fmt.Errorf("failed to revoke access: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to revoke access: %w", err)
	}
	return affected > 0, nil
}

// InsertCode stores a newly minted access code
func (r *AccessRepository) InsertCode(ctx context.Context, code *models.AccessCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO access_codes (id, child_id, lookup_key, code_hash, created_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		code.ID, code.ChildID, code.LookupKey, code.CodeHash, code.CreatedBy, code.ExpiresAt, code.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert access code: %w", err)
	}
	return nil
}

// CodesByLookupKey returns unused codes sharing a lookup key
func (r *AccessRepository) CodesByLookupKey(ctx context.Context, lookupKey string) ([]models.AccessCode, error) {
	query := `
		SELECT id, child_id, lookup_key, code_hash, created_by, expires_at, created_at
		FROM access_codes
		WHERE lookup_key = ? AND used_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, lookupKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query access codes: %w", err)
	}
	defer rows.Close()

	var codes []models.AccessCode
	for rows.Next() {
		var c models.AccessCode
		if err := rows.Scan(&c.ID, &c.ChildID, &c.LookupKey, &c.CodeHash, &c.CreatedBy, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access code: %w", err)
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// MarkCodeUsed consumes a code. It reports false if another redemption got there first.
func (r *AccessRepository) MarkCodeUsed(ctx context.Context, codeID, usedBy string) (bool, error) {
	query := "UPDATE access_codes SET used_at = ?, used_by = ? WHERE id = ? AND used_at IS NULL"
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), usedBy, codeID)
	if err != nil {
		return false, fmt.Errorf("failed to mark access code used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark access code used: %w", err)
	}
	return affected > 0, nil
}

// GetCode retrieves an access code by ID, including its redemption state
func (r *AccessRepository) GetCode(ctx context.Context, codeID string) (*models.AccessCode, error) {
	query := `
		SELECT id, child_id, lookup_key, code_hash, created_by, expires_at, used_at, used_by, created_at
		FROM access_codes
		WHERE id = ?
	`
	c := &models.AccessCode{}
	var usedAt sql.NullTime
	var usedBy sql.NullString
	err := r.db.QueryRowContext(ctx, query, codeID).Scan(
		&c.ID, &c.ChildID, &c.LookupKey, &c.CodeHash, &c.CreatedBy, &c.ExpiresAt, &usedAt, &usedBy, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access code: %w", err)
	}
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	if usedBy.Valid {
		c.UsedBy = &usedBy.String
	}
	return c, nil
}
