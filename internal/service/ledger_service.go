package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"

	"github.com/google/uuid"
)

const defaultHistoryLimit = 20

// Entry describes a points movement to append to a child's ledger
type Entry struct {
	ChildID     string
	Type        models.TransactionType
	RelatedID   *string
	Points      int
	Description string
}

// LedgerService is the only writer of points. Every balance change goes
// through RecordTransaction or RecordTransactionTx.
type LedgerService struct {
	db              *database.DB
	childRepo       *repository.ChildRepository
	pointsRepo      *repository.PointsRepository
	authz           *Authorizer
	historyMaxLimit int
}

// NewLedgerService creates a new ledger service
func NewLedgerService(db *database.DB, childRepo *repository.ChildRepository, pointsRepo *repository.PointsRepository, authz *Authorizer, historyMaxLimit int) *LedgerService {
	if historyMaxLimit <= 0 {
		historyMaxLimit = 100
	}
	return &LedgerService{
		db:              db,
		childRepo:       childRepo,
		pointsRepo:      pointsRepo,
		authz:           authz,
		historyMaxLimit: historyMaxLimit,
	}
}

// RecordTransaction appends an entry in its own database transaction
func (s *LedgerService) RecordTransaction(ctx context.Context, entry Entry) (*models.TransactionResult, error) {
	var result *models.TransactionResult
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		result, err = s.RecordTransactionTx(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, storeError(s.db.Dialect, "record transaction", err)
	}
	return result, nil
}

// RecordTransactionTx appends an entry inside the caller's transaction.
// Moving the cached balance and claiming the sequence number happen in one
// UPDATE, which holds the child's row lock until tx ends.
func (s *LedgerService) RecordTransactionTx(ctx context.Context, tx *database.Tx, entry Entry) (*models.TransactionResult, error) {
	if !entry.Type.Valid() {
		return nil, invalid("transaction_type", fmt.Sprintf("unknown type %q", entry.Type))
	}
	if entry.ChildID == "" {
		return nil, invalid("child_id", "is required")
	}

	balance, seq, err := s.childRepo.WithTx(tx).ApplyPoints(ctx, entry.ChildID, entry.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	txn := &models.PointsTransaction{
		ID:              uuid.NewString(),
		ChildID:         entry.ChildID,
		Sequence:        seq,
		TransactionType: entry.Type,
		RelatedID:       entry.RelatedID,
		Points:          entry.Points,
		Description:     entry.Description,
		BalanceAfter:    balance,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.pointsRepo.WithTx(tx).InsertTransaction(ctx, txn); err != nil {
		if tx.GetDialect().IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", ErrConstraintViolation, err)
		}
		return nil, err
	}

	return &models.TransactionResult{
		TransactionID: txn.ID,
		NewBalance:    balance,
	}, nil
}

// AdjustPoints records a manual ADJUSTMENT made by the child's parent.
// The balance may go negative.
func (s *LedgerService) AdjustPoints(ctx context.Context, caller models.Caller, childID string, points int, description string) (*models.TransactionResult, error) {
	if points == 0 {
		return nil, invalid("points", "must not be zero")
	}
	if _, err := s.authz.CanWrite(ctx, caller, childID); err != nil {
		return nil, err
	}
	if description == "" {
		description = "Manual adjustment"
	}

	return s.RecordTransaction(ctx, Entry{
		ChildID:     childID,
		Type:        models.TransactionAdjustment,
		Points:      points,
		Description: description,
	})
}

// GetPointsHistory returns the balance, lifetime stats and a page of
// transactions, newest first
func (s *LedgerService) GetPointsHistory(ctx context.Context, caller models.Caller, childID string, limit, offset int) (*models.PointsHistory, error) {
	if offset < 0 {
		return nil, invalid("offset", "must not be negative")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > s.historyMaxLimit {
		limit = s.historyMaxLimit
	}

	if _, err := s.authz.CanRead(ctx, caller, childID); err != nil {
		return nil, err
	}

	// Balance, stats and page are read under the child's lock so they
	// describe the same point in the ledger
	var child *models.Child
	var stats models.PointsStats
	var transactions []models.PointsTransaction
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		child, err = s.childRepo.WithTx(tx).LockChild(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			return ErrNotFound
		}

		points := s.pointsRepo.WithTx(tx)
		stats, err = points.Stats(ctx, childID)
		if err != nil {
			return err
		}
		transactions, err = points.ListTransactions(ctx, childID, limit, offset)
		return err
	})
	if err != nil {
		return nil, storeError(s.db.Dialect, "get points history", err)
	}

	return &models.PointsHistory{
		Balance:      child.PointsBalance,
		Stats:        stats,
		Transactions: transactions,
		Pagination: models.Pagination{
			Limit:   limit,
			Offset:  offset,
			Total:   stats.TransactionCount,
			HasMore: offset+len(transactions) < stats.TransactionCount,
		},
	}, nil
}
