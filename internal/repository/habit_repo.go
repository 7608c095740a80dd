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

// HabitRepository handles habits and their daily completion records
type HabitRepository struct {
	db database.DBTX
}

// NewHabitRepository creates a new habit repository
func NewHabitRepository(db database.DBTX) *HabitRepository {
	return &HabitRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *HabitRepository) WithTx(tx *database.Tx) *HabitRepository {
	return &HabitRepository{db: tx}
}

// CreateHabit creates a new habit for a child
func (r *HabitRepository) CreateHabit(ctx context.Context, habit *models.Habit) error {
	if habit.ID == "" {
		habit.ID = uuid.NewString()
	}
	if habit.CreatedAt.IsZero() {
		habit.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO habits (id, child_id, name, target_frequency, unit, points_value, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		habit.ID, habit.ChildID, habit.Name, habit.TargetFrequency, habit.Unit,
		habit.PointsValue, habit.IsActive, habit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}
	return nil
}

// GetHabitByID retrieves a habit by ID
func (r *HabitRepository) GetHabitByID(ctx context.Context, habitID string) (*models.Habit, error) {
	query := `
		SELECT id, child_id, name, target_frequency, unit, points_value, is_active, created_at
		FROM habits
		WHERE id = ?
	`
	habit := &models.Habit{}
	err := r.db.QueryRowContext(ctx, query, habitID).Scan(
		&habit.ID,
		&habit.ChildID,
		&habit.Name,
		&habit.TargetFrequency,
		&habit.Unit,
		&habit.PointsValue,
		&habit.IsActive,
		&habit.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit: %w", err)
	}
	return habit, nil
}

// GetRecord retrieves the completion record for a habit on a date
func (r *HabitRepository) GetRecord(ctx context.Context, habitID, date string) (*models.HabitRecord, error) {
	query := `
		SELECT id, habit_id, child_id, record_date, value, notes, points_awarded, created_at, updated_at
		FROM habit_records
		WHERE habit_id = ? AND record_date = ?
	`
	record := &models.HabitRecord{}
	var pointsAwarded sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, habitID, date).Scan(
		&record.ID,
		&record.HabitID,
		&record.ChildID,
		&record.RecordDate,
		&record.Value,
		&record.Notes,
		&pointsAwarded,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get habit record: %w", err)
	}
	if pointsAwarded.Valid {
		awarded := int(pointsAwarded.Int64)
		record.PointsAwarded = &awarded
	}
	return record, nil
}

// InsertRecord creates a completion record. A second record for the same
// habit and date violates the (habit_id, record_date) unique constraint.
func (r *HabitRepository) InsertRecord(ctx context.Context, record *models.HabitRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	query := `
		INSERT INTO habit_records (id, habit_id, child_id, record_date, value, notes, points_awarded, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.HabitID, record.ChildID, record.RecordDate, record.Value,
		record.Notes, record.PointsAwarded, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert habit record: %w", err)
	}
	return nil
}

// UpdateRecord rewrites the value and notes of an existing record in place
func (r *HabitRepository) UpdateRecord(ctx context.Context, recordID string, value int, notes string) error {
	query := "UPDATE habit_records SET value = ?, notes = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, value, notes, time.Now().UTC(), recordID); err != nil {
		return fmt.Errorf("failed to update habit record: %w", err)
	}
	return nil
}

// DeleteRecord removes a completion record
func (r *HabitRepository) DeleteRecord(ctx context.Context, recordID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM habit_records WHERE id = ?", recordID); err != nil {
		return fmt.Errorf("failed to delete habit record: %w", err)
	}
	return nil
}

// CompletedHabitsByDate returns, for each date in [from, to], the set of
// completed habit ids among habitIDs for the child
func (r *HabitRepository) CompletedHabitsByDate(ctx context.Context, childID string, habitIDs []string, from, to string) (map[string]map[string]bool, error) {
	completed := make(map[string]map[string]bool)
	if len(habitIDs) == 0 {
		return completed, nil
	}

	wanted := make(map[string]bool, len(habitIDs))
	for _, id := range habitIDs {
		wanted[id] = true
	}

	query := `
		SELECT habit_id, record_date
		FROM habit_records
		WHERE child_id = ? AND record_date >= ? AND record_date <= ?
	`
	rows, err := r.db.QueryContext(ctx, query, childID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query habit records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var habitID, date string
		if err := rows.Scan(&habitID, &date); err != nil {
			return nil, fmt.Errorf("failed to scan habit record: %w", err)
		}
		if !wanted[habitID] {
			continue
		}
		if completed[date] == nil {
			completed[date] = make(map[string]bool)
		}
		completed[date][habitID] = true
	}
	return completed, rows.Err()
}
