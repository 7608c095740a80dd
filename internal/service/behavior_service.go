package service

import (
	"context"
	"fmt"
	"time"

	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"
)

// BehaviorService records observed behaviours and their point effect
type BehaviorService struct {
	db           *database.DB
	behaviorRepo *repository.BehaviorRepository
	ledger       *LedgerService
	authz        *Authorizer
}

// NewBehaviorService creates a new behavior service
func NewBehaviorService(db *database.DB, behaviorRepo *repository.BehaviorRepository, ledger *LedgerService, authz *Authorizer) *BehaviorService {
	return &BehaviorService{
		db:           db,
		behaviorRepo: behaviorRepo,
		ledger:       ledger,
		authz:        authz,
	}
}

// RecordBehavior stores an occurrence and applies the behavior's signed
// point value to the child's ledger
func (s *BehaviorService) RecordBehavior(ctx context.Context, caller models.Caller, behaviorID, childID, notes string) (*models.BehaviorResult, error) {
	if err := requireID("behavior_id", behaviorID); err != nil {
		return nil, err
	}
	child, err := s.authz.CanWrite(ctx, caller, childID)
	if err != nil {
		return nil, err
	}
	behavior, err := s.behaviorRepo.GetBehaviorByID(ctx, behaviorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if behavior == nil {
		return nil, ErrNotFound
	}
	if behavior.ChildID != childID {
		return nil, ErrForbidden
	}
	if !behavior.IsActive {
		return nil, invalid("behavior_id", "behavior is not active")
	}

	result := &models.BehaviorResult{NewBalance: child.PointsBalance}
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		record := &models.BehaviorRecord{
			BehaviorID: behavior.ID,
			ChildID:    childID,
			Points:     behavior.PointsValue,
			Notes:      notes,
			RecordedBy: caller.UserID,
			RecordedAt: time.Now().UTC(),
		}
		if err := s.behaviorRepo.WithTx(tx).InsertRecord(ctx, record); err != nil {
			return err
		}
		result.Record = *record

		if behavior.PointsValue == 0 {
			return nil
		}
		relatedID := behavior.ID
		txn, err := s.ledger.RecordTransactionTx(ctx, tx, Entry{
			ChildID:     childID,
			Type:        models.TransactionBehavior,
			RelatedID:   &relatedID,
			Points:      behavior.PointsValue,
			Description: behavior.Name,
		})
		if err != nil {
			return err
		}
		result.NewBalance = txn.NewBalance
		result.TransactionID = txn.TransactionID
		return nil
	})
	if err != nil {
		return nil, storeError(s.db.Dialect, "record behavior", err)
	}
	return result, nil
}
