package models

import "time"

// Habit is a trackable recurring action belonging to one child
type Habit struct {
	ID              string    `json:"id"`
	ChildID         string    `json:"child_id"`
	Name            string    `json:"name"`
	TargetFrequency int       `json:"target_frequency"`
	Unit            string    `json:"unit"`
	PointsValue     int       `json:"points_value"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// HabitRecord marks a habit as completed on a date. At most one per (habit, date).
// PointsAwarded snapshots what the completion was worth when it was recorded.
type HabitRecord struct {
	ID            string    `json:"id"`
	HabitID       string    `json:"habit_id"`
	ChildID       string    `json:"child_id"`
	RecordDate    string    `json:"record_date"`
	Value         int       `json:"value"`
	Notes         string    `json:"notes"`
	PointsAwarded *int      `json:"points_awarded,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToggleAction describes what a habit toggle did to the record
type ToggleAction string

const (
	ToggleCreated ToggleAction = "created"
	ToggleUpdated ToggleAction = "updated"
	ToggleDeleted ToggleAction = "deleted"
	ToggleNone    ToggleAction = "none"
)

// ToggleResult is the outcome of setting a habit's completion
type ToggleResult struct {
	Action        ToggleAction `json:"action"`
	PointsEarned  *int         `json:"pointsEarned,omitempty"`
	PointsLost    *int         `json:"pointsLost,omitempty"`
	RoutineBonus  int          `json:"routine_bonus,omitempty"`
	NewBalance    int          `json:"new_balance"`
	TransactionID string       `json:"transaction_id,omitempty"`
}
