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

const childColumns = "id, parent_id, name, points_balance, ledger_seq, created_at, updated_at"

// ChildRepository handles database operations for children
type ChildRepository struct {
	db database.DBTX
}

// NewChildRepository creates a new child repository
func NewChildRepository(db database.DBTX) *ChildRepository {
	return &ChildRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ChildRepository) WithTx(tx *database.Tx) *ChildRepository {
	return &ChildRepository{db: tx}
}

// CreateChild creates a child profile with a zero balance
func (r *ChildRepository) CreateChild(ctx context.Context, parentID, name string) (*models.Child, error) {
	now := time.Now().UTC()
	child := &models.Child{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := "INSERT INTO children (id, parent_id, name, points_balance, ledger_seq, created_at, updated_at) VALUES (?, ?, ?, 0, 0, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, child.ID, child.ParentID, child.Name, now, now); err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	return child, nil
}

// GetChildByID retrieves a child by ID
func (r *ChildRepository) GetChildByID(ctx context.Context, childID string) (*models.Child, error) {
	return r.getChild(ctx, "SELECT "+childColumns+" FROM children WHERE id = ?", childID)
}

// LockChild retrieves a child and holds its row lock until the transaction ends.
// Must be called on a repository bound to a transaction.
func (r *ChildRepository) LockChild(ctx context.Context, childID string) (*models.Child, error) {
	query := "SELECT " + childColumns + " FROM children WHERE id = ?" + r.db.GetDialect().LockClause()
	return r.getChild(ctx, query, childID)
}

func (r *ChildRepository) getChild(ctx context.Context, query, childID string) (*models.Child, error) {
	child := &models.Child{}
	err := r.db.QueryRowContext(ctx, query, childID).Scan(
		&child.ID,
		&child.ParentID,
		&child.Name,
		&child.PointsBalance,
		&child.LedgerSeq,
		&child.CreatedAt,
		&child.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return child, nil
}

// ApplyPoints moves the cached balance by points and claims the next ledger
// sequence number in one statement, returning the new balance and sequence.
// The UPDATE takes the row's write lock, so concurrent callers for the same
// child serialize here.
func (r *ChildRepository) ApplyPoints(ctx context.Context, childID string, points int) (int, int64, error) {
	query := `
		UPDATE children
		SET points_balance = points_balance + ?, ledger_seq = ledger_seq + 1, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, points, time.Now().UTC(), childID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to apply points: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to apply points: %w", err)
	}
	if affected == 0 {
		return 0, 0, sql.ErrNoRows
	}

	var balance int
	var seq int64
	err = r.db.QueryRowContext(ctx, "SELECT points_balance, ledger_seq FROM children WHERE id = ?", childID).Scan(&balance, &seq)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, seq, nil
}

// SetBalance overwrites the cached balance. Only the reconciliation path uses it.
func (r *ChildRepository) SetBalance(ctx context.Context, childID string, balance int) error {
	query := "UPDATE children SET points_balance = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, balance, time.Now().UTC(), childID); err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// ListChildIDs returns every child id, oldest first
func (r *ChildRepository) ListChildIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM children ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
