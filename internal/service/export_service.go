package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"routinely/internal/models"
	"routinely/internal/repository"
)

// LedgerExport is the JSON document written by the ledger export tool
type LedgerExport struct {
	Version      string        `json:"version"`
	ExportedAt   time.Time     `json:"exported_at"`
	DatabaseType string        `json:"database_type"`
	Children     []ChildLedger `json:"children"`
}

// ChildLedger is one child's balance and full ledger
type ChildLedger struct {
	ChildID      string                     `json:"child_id"`
	Name         string                     `json:"name"`
	Balance      int                        `json:"balance"`
	Recomputed   int                        `json:"recomputed"`
	Transactions []models.PointsTransaction `json:"transactions"`
	Issues       []models.LedgerIssue       `json:"issues,omitempty"`
}

// ExportService writes ledgers out for auditing
type ExportService struct {
	childRepo    *repository.ChildRepository
	pointsRepo   *repository.PointsRepository
	databaseType string
}

// NewExportService creates a new export service
func NewExportService(childRepo *repository.ChildRepository, pointsRepo *repository.PointsRepository, databaseType string) *ExportService {
	return &ExportService{
		childRepo:    childRepo,
		pointsRepo:   pointsRepo,
		databaseType: databaseType,
	}
}

// Export writes the ledgers of the given children, or of every child when
// none are named, as indented JSON
func (s *ExportService) Export(ctx context.Context, w io.Writer, childIDs ...string) error {
	log.Println("Starting ledger export...")

	if len(childIDs) == 0 {
		ids, err := s.childRepo.ListChildIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list children: %w", err)
		}
		childIDs = ids
	}

	export := &LedgerExport{
		Version:      "1.0",
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.databaseType,
		Children:     make([]ChildLedger, 0, len(childIDs)),
	}

	for _, id := range childIDs {
		ledger, err := s.exportChild(ctx, id)
		if err != nil {
			return err
		}
		export.Children = append(export.Children, *ledger)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	log.Printf("Exported %d ledgers", len(export.Children))
	return nil
}

func (s *ExportService) exportChild(ctx context.Context, childID string) (*ChildLedger, error) {
	child, err := s.childRepo.GetChildByID(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to export child %s: %w", childID, err)
	}
	if child == nil {
		return nil, fmt.Errorf("child %s: %w", childID, ErrNotFound)
	}

	transactions, err := s.pointsRepo.AllTransactions(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to export transactions for %s: %w", childID, err)
	}

	return &ChildLedger{
		ChildID:      child.ID,
		Name:         child.Name,
		Balance:      child.PointsBalance,
		Recomputed:   foldBalance(transactions),
		Transactions: transactions,
		Issues:       checkLedger(transactions),
	}, nil
}
