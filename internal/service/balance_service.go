package service

import (
	"context"
	"fmt"
	"log"

	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"
)

// BalanceService answers balance questions and audits the cached balance
// against the ledger
type BalanceService struct {
	db         *database.DB
	childRepo  *repository.ChildRepository
	pointsRepo *repository.PointsRepository
}

// NewBalanceService creates a new balance service
func NewBalanceService(db *database.DB, childRepo *repository.ChildRepository, pointsRepo *repository.PointsRepository) *BalanceService {
	return &BalanceService{
		db:         db,
		childRepo:  childRepo,
		pointsRepo: pointsRepo,
	}
}

// CurrentBalance returns the cached balance
func (s *BalanceService) CurrentBalance(ctx context.Context, childID string) (int, error) {
	child, err := s.childRepo.GetChildByID(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if child == nil {
		return 0, ErrNotFound
	}
	return child.PointsBalance, nil
}

// RecomputeBalance folds the child's ledger in creation order
func (s *BalanceService) RecomputeBalance(ctx context.Context, childID string) (int, error) {
	child, err := s.childRepo.GetChildByID(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if child == nil {
		return 0, ErrNotFound
	}
	transactions, err := s.pointsRepo.AllTransactions(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return foldBalance(transactions), nil
}

// Reconcile compares the cached balance with the ledger while holding the
// child's lock. With repair set, a drifted cache is overwritten from the ledger.
func (s *BalanceService) Reconcile(ctx context.Context, childID string, repair bool) (*models.BalanceReport, error) {
	var report *models.BalanceReport
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		child, err := s.childRepo.WithTx(tx).LockChild(ctx, childID)
		if err != nil {
			return err
		}
		if child == nil {
			return ErrNotFound
		}

		recomputed, err := s.pointsRepo.WithTx(tx).SumPoints(ctx, childID)
		if err != nil {
			return err
		}

		report = &models.BalanceReport{
			ChildID:    childID,
			Cached:     child.PointsBalance,
			Recomputed: recomputed,
			Drift:      child.PointsBalance - recomputed,
		}
		if report.InSync() {
			return nil
		}

		log.Printf("Ledger drift for child %s: cached=%d recomputed=%d", childID, report.Cached, report.Recomputed)
		if repair {
			if err := s.childRepo.WithTx(tx).SetBalance(ctx, childID, recomputed); err != nil {
				return err
			}
			report.Repaired = true
			log.Printf("Repaired cached balance for child %s: %d -> %d", childID, report.Cached, recomputed)
		}
		return nil
	})
	if err != nil {
		return nil, storeError(s.db.Dialect, "reconcile balance", err)
	}
	return report, nil
}

// ReconcileAll runs Reconcile over every child
func (s *BalanceService) ReconcileAll(ctx context.Context, repair bool) ([]models.BalanceReport, error) {
	ids, err := s.childRepo.ListChildIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	reports := make([]models.BalanceReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.Reconcile(ctx, id, repair)
		if err != nil {
			return reports, fmt.Errorf("child %s: %w", id, err)
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// VerifyLedger walks the ledger and reports broken sequence numbers and
// balance_after values that do not match the running total
func (s *BalanceService) VerifyLedger(ctx context.Context, childID string) ([]models.LedgerIssue, error) {
	child, err := s.childRepo.GetChildByID(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if child == nil {
		return nil, ErrNotFound
	}
	transactions, err := s.pointsRepo.AllTransactions(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	issues := checkLedger(transactions)
	if len(transactions) > 0 {
		last := transactions[len(transactions)-1]
		if last.Sequence != child.LedgerSeq {
			issues = append(issues, models.LedgerIssue{
				Sequence: last.Sequence,
				Message:  fmt.Sprintf("child ledger_seq is %d but last transaction is %d", child.LedgerSeq, last.Sequence),
			})
		}
	}
	return issues, nil
}

func foldBalance(transactions []models.PointsTransaction) int {
	balance := 0
	for _, txn := range transactions {
		balance += txn.Points
	}
	return balance
}

// checkLedger expects transactions in sequence order
func checkLedger(transactions []models.PointsTransaction) []models.LedgerIssue {
	var issues []models.LedgerIssue
	running := 0
	var expected int64 = 1
	for _, txn := range transactions {
		if txn.Sequence != expected {
			issues = append(issues, models.LedgerIssue{
				Sequence: txn.Sequence,
				Message:  fmt.Sprintf("expected sequence %d", expected),
			})
		}
		expected = txn.Sequence + 1

		running += txn.Points
		if txn.BalanceAfter != running {
			issues = append(issues, models.LedgerIssue{
				Sequence: txn.Sequence,
				Message:  fmt.Sprintf("balance_after is %d, running total is %d", txn.BalanceAfter, running),
			})
		}
	}
	return issues
}
