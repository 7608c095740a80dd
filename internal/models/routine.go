package models

import "time"

// AllDays is the days_of_week mask for a routine scheduled every day
const AllDays = 0x7F

// Routine is a scheduled bundle of habits
type Routine struct {
	ID                  string    `json:"id"`
	ChildID             string    `json:"child_id"`
	Name                string    `json:"name"`
	TimeOfDay           string    `json:"time_of_day"`
	DaysOfWeek          int       `json:"days_of_week"`
	CompletionThreshold int       `json:"completion_threshold"`
	BonusPoints         int       `json:"bonus_points"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

// ScheduledOn reports whether the routine runs on the given weekday.
// Bit 0 is Sunday.
func (r *Routine) ScheduledOn(day time.Weekday) bool {
	if r.DaysOfWeek == 0 {
		return true
	}
	return r.DaysOfWeek&(1<<uint(day)) != 0
}

// RoutineHabit assigns a habit into a routine with a routine-specific point value
type RoutineHabit struct {
	ID          string `json:"id"`
	RoutineID   string `json:"routine_id"`
	HabitID     string `json:"habit_id"`
	PointsValue int    `json:"points_value"`
	IsRequired  bool   `json:"is_required"`
	Position    int    `json:"position"`
}

// RoutineCompletion is the cached completion of a routine on one date.
// It is always recomputable from habit records and routine habits.
type RoutineCompletion struct {
	RoutineID            string  `json:"routine_id"`
	ChildID              string  `json:"child_id"`
	CompletionDate       string  `json:"completion_date"`
	CompletionPercentage float64 `json:"completion_percentage"`
	CompletedHabits      int     `json:"completed_habits"`
	TotalHabits          int     `json:"total_habits"`
	PointsEarned         int     `json:"points_earned"`
	ThresholdMet         bool    `json:"threshold_met"`
	BonusAwarded         int     `json:"bonus_awarded"`
}

// Streak is the run of consecutive qualifying days for a routine
type Streak struct {
	RoutineID string `json:"routine_id"`
	ChildID   string `json:"child_id"`
	Days      int    `json:"days"`
	AsOf      string `json:"as_of"`
}
