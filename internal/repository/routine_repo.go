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

const routineColumns = "id, child_id, name, time_of_day, days_of_week, completion_threshold, bonus_points, is_active, created_at"

// RoutineRepository handles routines, their habit assignments and cached completions
type RoutineRepository struct {
	db database.DBTX
}

// NewRoutineRepository creates a new routine repository
func NewRoutineRepository(db database.DBTX) *RoutineRepository {
	return &RoutineRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *RoutineRepository) WithTx(tx *database.Tx) *RoutineRepository {
	return &RoutineRepository{db: tx}
}

// CreateRoutine creates a new routine
func (r *RoutineRepository) CreateRoutine(ctx context.Context, routine *models.Routine) error {
	if routine.ID == "" {
		routine.ID = uuid.NewString()
	}
	if routine.CreatedAt.IsZero() {
		routine.CreatedAt = time.Now().UTC()
	}
	if routine.DaysOfWeek == 0 {
		routine.DaysOfWeek = models.AllDays
	}
	query := `
		INSERT INTO routines (` + routineColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		routine.ID, routine.ChildID, routine.Name, routine.TimeOfDay, routine.DaysOfWeek,
		routine.CompletionThreshold, routine.BonusPoints, routine.IsActive, routine.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create routine: %w", err)
	}
	return nil
}

// GetRoutineByID retrieves a routine by ID
func (r *RoutineRepository) GetRoutineByID(ctx context.Context, routineID string) (*models.Routine, error) {
	routine := &models.Routine{}
	err := r.db.QueryRowContext(ctx, "SELECT "+routineColumns+" FROM routines WHERE id = ?", routineID).Scan(
		&routine.ID,
		&routine.ChildID,
		&routine.Name,
		&routine.TimeOfDay,
		&routine.DaysOfWeek,
		&routine.CompletionThreshold,
		&routine.BonusPoints,
		&routine.IsActive,
		&routine.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine: %w", err)
	}
	return routine, nil
}

// AddHabit links a habit into a routine with a routine-specific point value
func (r *RoutineRepository) AddHabit(ctx context.Context, rh *models.RoutineHabit) error {
	if rh.ID == "" {
		rh.ID = uuid.NewString()
	}
	query := `
		INSERT INTO routine_habits (id, routine_id, habit_id, points_value, is_required, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, rh.ID, rh.RoutineID, rh.HabitID, rh.PointsValue, rh.IsRequired, rh.Position)
	if err != nil {
		return fmt.Errorf("failed to add habit to routine: %w", err)
	}
	return nil
}

// UpdateHabitPoints changes what a habit is worth within a routine
func (r *RoutineRepository) UpdateHabitPoints(ctx context.Context, routineID, habitID string, points int) error {
	query := "UPDATE routine_habits SET points_value = ? WHERE routine_id = ? AND habit_id = ?"
	if _, err := r.db.ExecContext(ctx, query, points, routineID, habitID); err != nil {
		return fmt.Errorf("failed to update routine habit points: %w", err)
	}
	return nil
}

// RoutineHabitsForHabit returns every routine assignment that references a habit
func (r *RoutineRepository) RoutineHabitsForHabit(ctx context.Context, habitID string) ([]models.RoutineHabit, error) {
	query := `
		SELECT id, routine_id, habit_id, points_value, is_required, position
		FROM routine_habits
		WHERE habit_id = ?
		ORDER BY routine_id ASC
	`
	return r.queryRoutineHabits(ctx, query, habitID)
}

// HabitsForRoutine returns the habits assigned to a routine in display order
func (r *RoutineRepository) HabitsForRoutine(ctx context.Context, routineID string) ([]models.RoutineHabit, error) {
	query := `
		SELECT id, routine_id, habit_id, points_value, is_required, position
		FROM routine_habits
		WHERE routine_id = ?
		ORDER BY position ASC, id ASC
	`
	return r.queryRoutineHabits(ctx, query, routineID)
}

func (r *RoutineRepository) queryRoutineHabits(ctx context.Context, query string, args ...any) ([]models.RoutineHabit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routine habits: %w", err)
	}
	defer rows.Close()

	var habits []models.RoutineHabit
	for rows.Next() {
		var rh models.RoutineHabit
		if err := rows.Scan(&rh.ID, &rh.RoutineID, &rh.HabitID, &rh.PointsValue, &rh.IsRequired, &rh.Position); err != nil {
			return nil, fmt.Errorf("failed to scan routine habit: %w", err)
		}
		habits = append(habits, rh)
	}
	return habits, rows.Err()
}

// GetCompletion retrieves the cached completion for a routine, child and date
func (r *RoutineRepository) GetCompletion(ctx context.Context, routineID, childID, date string) (*models.RoutineCompletion, error) {
	query := `
		SELECT routine_id, child_id, completion_date, completion_percentage,
		       completed_habits, total_habits, points_earned, bonus_awarded
		FROM routine_completions
		WHERE routine_id = ? AND child_id = ? AND completion_date = ?
	`
	c := &models.RoutineCompletion{}
	err := r.db.QueryRowContext(ctx, query, routineID, childID, date).Scan(
		&c.RoutineID,
		&c.ChildID,
		&c.CompletionDate,
		&c.CompletionPercentage,
		&c.CompletedHabits,
		&c.TotalHabits,
		&c.PointsEarned,
		&c.BonusAwarded,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get routine completion: %w", err)
	}
	return c, nil
}

// SaveCompletion writes the cached completion row, inserting it on first use.
// Callers hold the child's lock, so the read-then-write cannot race.
func (r *RoutineRepository) SaveCompletion(ctx context.Context, c *models.RoutineCompletion) error {
	now := time.Now().UTC()
	update := `
		UPDATE routine_completions
		SET completion_percentage = ?, completed_habits = ?, total_habits = ?,
		    points_earned = ?, bonus_awarded = ?, updated_at = ?
		WHERE routine_id = ? AND child_id = ? AND completion_date = ?
	`
	result, err := r.db.ExecContext(ctx, update,
		c.CompletionPercentage, c.CompletedHabits, c.TotalHabits, c.PointsEarned, c.BonusAwarded, now,
		c.RoutineID, c.ChildID, c.CompletionDate)
	if err != nil {
		return fmt.Errorf("failed to update routine completion: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		return nil
	}

	insert := `
		INSERT INTO routine_completions (id, routine_id, child_id, completion_date, completion_percentage,
		                                 completed_habits, total_habits, points_earned, bonus_awarded, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, insert,
		uuid.NewString(), c.RoutineID, c.ChildID, c.CompletionDate, c.CompletionPercentage,
		c.CompletedHabits, c.TotalHabits, c.PointsEarned, c.BonusAwarded, now)
	if err != nil {
		return fmt.Errorf("failed to insert routine completion: %w", err)
	}
	return nil
}
