package repository

import (
	"context"
	"database/sql"
	"fmt"

	"routinely/internal/database"
	"routinely/internal/models"
)

const transactionColumns = "id, child_id, sequence, transaction_type, related_id, points, description, balance_after, created_at"

// PointsRepository handles the append-only points ledger
type PointsRepository struct {
	db database.DBTX
}

// NewPointsRepository creates a new points repository
func NewPointsRepository(db database.DBTX) *PointsRepository {
	return &PointsRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *PointsRepository) WithTx(tx *database.Tx) *PointsRepository {
	return &PointsRepository{db: tx}
}

// InsertTransaction appends a ledger entry. There is deliberately no update
// or delete counterpart.
func (r *PointsRepository) InsertTransaction(ctx context.Context, txn *models.PointsTransaction) error {
	query := `
		INSERT INTO points_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		txn.ID,
		txn.ChildID,
		txn.Sequence,
		string(txn.TransactionType),
		txn.RelatedID,
		txn.Points,
		txn.Description,
		txn.BalanceAfter,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a page of a child's ledger, newest first
func (r *PointsRepository) ListTransactions(ctx context.Context, childID string, limit, offset int) ([]models.PointsTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM points_transactions
		WHERE child_id = ?
		ORDER BY sequence DESC
		LIMIT ? OFFSET ?
	`
	return r.queryTransactions(ctx, query, childID, limit, offset)
}

// AllTransactions returns a child's complete ledger in creation order
func (r *PointsRepository) AllTransactions(ctx context.Context, childID string) ([]models.PointsTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM points_transactions
		WHERE child_id = ?
		ORDER BY sequence ASC
	`
	return r.queryTransactions(ctx, query, childID)
}

func (r *PointsRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]models.PointsTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.PointsTransaction{}
	for rows.Next() {
		var txn models.PointsTransaction
		var txnType string
		var relatedID sql.NullString
		if err := rows.Scan(
			&txn.ID,
			&txn.ChildID,
			&txn.Sequence,
			&txnType,
			&relatedID,
			&txn.Points,
			&txn.Description,
			&txn.BalanceAfter,
			&txn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.TransactionType = models.TransactionType(txnType)
		if relatedID.Valid {
			txn.RelatedID = &relatedID.String
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

// Stats sums earned and spent points over a child's whole ledger
func (r *PointsRepository) Stats(ctx context.Context, childID string) (models.PointsStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN points > 0 THEN points ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN points < 0 THEN -points ELSE 0 END), 0),
			COUNT(*)
		FROM points_transactions
		WHERE child_id = ?
	`
	var stats models.PointsStats
	err := r.db.QueryRowContext(ctx, query, childID).Scan(&stats.TotalEarned, &stats.TotalSpent, &stats.TransactionCount)
	if err != nil {
		return models.PointsStats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return stats, nil
}

// SumPoints folds a child's ledger into a balance
func (r *PointsRepository) SumPoints(ctx context.Context, childID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(points), 0) FROM points_transactions WHERE child_id = ?", childID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return total, nil
}
