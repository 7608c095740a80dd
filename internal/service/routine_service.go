package service

import (
	"context"
	"fmt"
	"time"

	"routinely/internal/models"
	"routinely/internal/repository"
)

const (
	dateLayout = "2006-01-02"

	// streakLookbackDays bounds how far back a streak is walked
	streakLookbackDays = 366
)

// RoutineService computes routine completion and streaks from habit records.
// Nothing here reads the routine_completions cache.
type RoutineService struct {
	routineRepo *repository.RoutineRepository
	habitRepo   *repository.HabitRepository
	authz       *Authorizer
	location    *time.Location
	now         func() time.Time
}

// NewRoutineService creates a new routine service. Dates are resolved in loc.
func NewRoutineService(routineRepo *repository.RoutineRepository, habitRepo *repository.HabitRepository, authz *Authorizer, loc *time.Location) *RoutineService {
	if loc == nil {
		loc = time.UTC
	}
	return &RoutineService{
		routineRepo: routineRepo,
		habitRepo:   habitRepo,
		authz:       authz,
		location:    loc,
		now:         time.Now,
	}
}

// Today returns the current date in the service's timezone
func (s *RoutineService) Today() string {
	return s.now().In(s.location).Format(dateLayout)
}

// Completion returns the live completion of a routine on a date
func (s *RoutineService) Completion(ctx context.Context, caller models.Caller, routineID, childID, date string) (*models.RoutineCompletion, error) {
	if date == "" {
		date = s.Today()
	}
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	routine, err := s.authorizedRoutine(ctx, caller, routineID, childID)
	if err != nil {
		return nil, err
	}

	completion, err := computeCompletion(ctx, s.routineRepo, s.habitRepo, routine, childID, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return completion, nil
}

// Streak counts consecutive qualifying days ending today, or ending
// yesterday while today is still below the threshold
func (s *RoutineService) Streak(ctx context.Context, caller models.Caller, routineID, childID string) (*models.Streak, error) {
	routine, err := s.authorizedRoutine(ctx, caller, routineID, childID)
	if err != nil {
		return nil, err
	}

	rhs, err := s.routineRepo.HabitsForRoutine(ctx, routineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	today, _ := time.Parse(dateLayout, s.Today())
	from := today.AddDate(0, 0, -streakLookbackDays).Format(dateLayout)
	done, err := s.habitRepo.CompletedHabitsByDate(ctx, childID, routineHabitIDs(rhs), from, today.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return &models.Streak{
		RoutineID: routineID,
		ChildID:   childID,
		Days:      countStreak(routine, rhs, done, today, streakLookbackDays),
		AsOf:      today.Format(dateLayout),
	}, nil
}

func (s *RoutineService) authorizedRoutine(ctx context.Context, caller models.Caller, routineID, childID string) (*models.Routine, error) {
	if err := requireID("routine_id", routineID); err != nil {
		return nil, err
	}
	if _, err := s.authz.CanRead(ctx, caller, childID); err != nil {
		return nil, err
	}
	routine, err := s.routineRepo.GetRoutineByID(ctx, routineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if routine == nil {
		return nil, ErrNotFound
	}
	if routine.ChildID != childID {
		return nil, ErrForbidden
	}
	return routine, nil
}

// computeCompletion reads the routine's habits and the child's records for
// date and derives the completion
func computeCompletion(ctx context.Context, routineRepo *repository.RoutineRepository, habitRepo *repository.HabitRepository, routine *models.Routine, childID, date string) (*models.RoutineCompletion, error) {
	rhs, err := routineRepo.HabitsForRoutine(ctx, routine.ID)
	if err != nil {
		return nil, err
	}
	done, err := habitRepo.CompletedHabitsByDate(ctx, childID, routineHabitIDs(rhs), date, date)
	if err != nil {
		return nil, err
	}
	completion := completionFor(routine, rhs, done[date])
	completion.ChildID = childID
	completion.CompletionDate = date
	return &completion, nil
}

// completionFor measures a routine against a set of completed habit ids.
// Required habits form the denominator; a routine without required habits
// counts all of them. A day with nothing completed never meets the threshold.
func completionFor(routine *models.Routine, rhs []models.RoutineHabit, done map[string]bool) models.RoutineCompletion {
	counted := make([]models.RoutineHabit, 0, len(rhs))
	for _, rh := range rhs {
		if rh.IsRequired {
			counted = append(counted, rh)
		}
	}
	if len(counted) == 0 {
		counted = rhs
	}

	c := models.RoutineCompletion{
		RoutineID:   routine.ID,
		TotalHabits: len(counted),
	}
	for _, rh := range counted {
		if done[rh.HabitID] {
			c.CompletedHabits++
		}
	}
	for _, rh := range rhs {
		if done[rh.HabitID] {
			c.PointsEarned += rh.PointsValue
		}
	}
	if c.TotalHabits > 0 {
		c.CompletionPercentage = float64(c.CompletedHabits) * 100 / float64(c.TotalHabits)
		c.ThresholdMet = c.CompletedHabits > 0 &&
			c.CompletedHabits*100 >= routine.CompletionThreshold*c.TotalHabits
	}
	return c
}

// countStreak walks backward from today. Today only counts once it meets the
// threshold; an unmet today does not break a run ending yesterday. Days the
// routine is not scheduled are skipped.
func countStreak(routine *models.Routine, rhs []models.RoutineHabit, done map[string]map[string]bool, today time.Time, lookback int) int {
	met := func(day time.Time) bool {
		return completionFor(routine, rhs, done[day.Format(dateLayout)]).ThresholdMet
	}

	day := today
	if !met(day) {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for i := 0; i < lookback; i++ {
		if routine.ScheduledOn(day.Weekday()) {
			if !met(day) {
				break
			}
			streak++
		}
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func routineHabitIDs(rhs []models.RoutineHabit) []string {
	ids := make([]string, len(rhs))
	for i, rh := range rhs {
		ids[i] = rh.HabitID
	}
	return ids
}

func parseDate(date string) (time.Time, error) {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, invalid("date", "must be formatted YYYY-MM-DD")
	}
	return d, nil
}
