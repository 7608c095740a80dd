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

// BehaviorRepository handles behaviors and their recorded occurrences
type BehaviorRepository struct {
	db database.DBTX
}

// NewBehaviorRepository creates a new behavior repository
func NewBehaviorRepository(db database.DBTX) *BehaviorRepository {
	return &BehaviorRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *BehaviorRepository) WithTx(tx *database.Tx) *BehaviorRepository {
	return &BehaviorRepository{db: tx}
}

// CreateBehavior creates a new behavior for a child
func (r *BehaviorRepository) CreateBehavior(ctx context.Context, behavior *models.Behavior) error {
	if behavior.ID == "" {
		behavior.ID = uuid.NewString()
	}
	if behavior.CreatedAt.IsZero() {
		behavior.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO behaviors (id, child_id, name, points_value, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		behavior.ID, behavior.ChildID, behavior.Name, behavior.PointsValue, behavior.IsActive, behavior.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create behavior: %w", err)
	}
	return nil
}

// GetBehaviorByID retrieves a behavior by ID
func (r *BehaviorRepository) GetBehaviorByID(ctx context.Context, behaviorID string) (*models.Behavior, error) {
	query := "SELECT id, child_id, name, points_value, is_active, created_at FROM behaviors WHERE id = ?"
	behavior := &models.Behavior{}
	err := r.db.QueryRowContext(ctx, query, behaviorID).Scan(
		&behavior.ID,
		&behavior.ChildID,
		&behavior.Name,
		&behavior.PointsValue,
		&behavior.IsActive,
		&behavior.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get behavior: %w", err)
	}
	return behavior, nil
}

// InsertRecord stores one occurrence of a behavior
func (r *BehaviorRepository) InsertRecord(ctx context.Context, record *models.BehaviorRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO behavior_records (id, behavior_id, child_id, points, notes, recorded_by, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.BehaviorID, record.ChildID, record.Points,
		record.Notes, record.RecordedBy, record.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert behavior record: %w", err)
	}
	return nil
}
