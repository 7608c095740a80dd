package service

import (
	"context"

	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"
)

// HabitCompletion is a request to mark a habit done or not done on a date
type HabitCompletion struct {
	HabitID   string
	ChildID   string
	Date      string
	Completed bool
	Notes     string
}

// HabitService toggles habit completions and keeps the ledger and the
// routine completion cache in step with them
type HabitService struct {
	db          *database.DB
	habitRepo   *repository.HabitRepository
	routineRepo *repository.RoutineRepository
	childRepo   *repository.ChildRepository
	ledger      *LedgerService
	routines    *RoutineService
	authz       *Authorizer
}

// NewHabitService creates a new habit service
func NewHabitService(db *database.DB, habitRepo *repository.HabitRepository, routineRepo *repository.RoutineRepository, childRepo *repository.ChildRepository, ledger *LedgerService, routines *RoutineService, authz *Authorizer) *HabitService {
	return &HabitService{
		db:          db,
		habitRepo:   habitRepo,
		routineRepo: routineRepo,
		childRepo:   childRepo,
		ledger:      ledger,
		routines:    routines,
		authz:       authz,
	}
}

// SetHabitCompletion records or removes a habit's completion for a date.
// Marking an already completed habit again only updates the record, and
// removing a completion reverses exactly what was awarded for it.
func (s *HabitService) SetHabitCompletion(ctx context.Context, caller models.Caller, in HabitCompletion) (*models.ToggleResult, error) {
	if err := requireID("habit_id", in.HabitID); err != nil {
		return nil, err
	}
	if in.Date == "" {
		in.Date = s.routines.Today()
	}
	if _, err := parseDate(in.Date); err != nil {
		return nil, err
	}

	if _, err := s.authz.CanWrite(ctx, caller, in.ChildID); err != nil {
		return nil, err
	}

	var result *models.ToggleResult
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		child, err := s.childRepo.WithTx(tx).LockChild(ctx, in.ChildID)
		if err != nil {
			return err
		}
		if child == nil {
			return ErrNotFound
		}

		// The habit is read under the lock so its points value is current
		habit, err := s.habitRepo.WithTx(tx).GetHabitByID(ctx, in.HabitID)
		if err != nil {
			return err
		}
		if habit == nil {
			return ErrNotFound
		}
		if habit.ChildID != in.ChildID {
			return ErrForbidden
		}

		t := &toggle{
			svc:     s,
			tx:      tx,
			habit:   habit,
			in:      in,
			balance: child.PointsBalance,
		}
		result, err = t.run(ctx)
		return err
	})
	if err != nil {
		return nil, storeError(s.db.Dialect, "set habit completion", err)
	}
	return result, nil
}

// toggle carries one SetHabitCompletion through its transaction
type toggle struct {
	svc     *HabitService
	tx      *database.Tx
	habit   *models.Habit
	in      HabitCompletion
	balance int
}

func (t *toggle) run(ctx context.Context) (*models.ToggleResult, error) {
	habits := t.svc.habitRepo.WithTx(t.tx)
	record, err := habits.GetRecord(ctx, t.in.HabitID, t.in.Date)
	if err != nil {
		return nil, err
	}

	result := &models.ToggleResult{Action: models.ToggleNone}
	switch {
	case t.in.Completed && record != nil:
		if err := habits.UpdateRecord(ctx, record.ID, 1, t.in.Notes); err != nil {
			return nil, err
		}
		result.Action = models.ToggleUpdated

	case t.in.Completed:
		points, err := t.awardValue(ctx)
		if err != nil {
			return nil, err
		}
		record = &models.HabitRecord{
			HabitID:       t.in.HabitID,
			ChildID:       t.in.ChildID,
			RecordDate:    t.in.Date,
			Value:         1,
			Notes:         t.in.Notes,
			PointsAwarded: &points,
		}
		if err := habits.InsertRecord(ctx, record); err != nil {
			return nil, err
		}
		if points != 0 {
			txnID, err := t.record(ctx, models.TransactionHabit, t.in.HabitID, points, "Completed "+t.habit.Name)
			if err != nil {
				return nil, err
			}
			result.TransactionID = txnID
		}
		result.Action = models.ToggleCreated
		result.PointsEarned = &points

	case record != nil:
		points := 0
		if record.PointsAwarded != nil {
			points = *record.PointsAwarded
		} else {
			points, err = t.awardValue(ctx)
			if err != nil {
				return nil, err
			}
		}
		if err := habits.DeleteRecord(ctx, record.ID); err != nil {
			return nil, err
		}
		if points != 0 {
			txnID, err := t.record(ctx, models.TransactionHabit, t.in.HabitID, -points, "Uncompleted "+t.habit.Name)
			if err != nil {
				return nil, err
			}
			result.TransactionID = txnID
		}
		result.Action = models.ToggleDeleted
		result.PointsLost = &points
	}

	if result.Action == models.ToggleCreated || result.Action == models.ToggleDeleted {
		bonus, err := t.refreshRoutines(ctx)
		if err != nil {
			return nil, err
		}
		result.RoutineBonus = bonus
	}
	result.NewBalance = t.balance
	return result, nil
}

// awardValue sums what the habit is worth across every routine it belongs
// to. A habit outside any routine is worth its own points value.
func (t *toggle) awardValue(ctx context.Context) (int, error) {
	rhs, err := t.svc.routineRepo.WithTx(t.tx).RoutineHabitsForHabit(ctx, t.in.HabitID)
	if err != nil {
		return 0, err
	}
	if len(rhs) == 0 {
		return t.habit.PointsValue, nil
	}
	total := 0
	for _, rh := range rhs {
		total += rh.PointsValue
	}
	return total, nil
}

// refreshRoutines recomputes the cached completion of every routine holding
// the habit and awards or reverses routine bonuses when the threshold is
// crossed. It returns the net bonus change.
func (t *toggle) refreshRoutines(ctx context.Context) (int, error) {
	routines := t.svc.routineRepo.WithTx(t.tx)
	rhs, err := routines.RoutineHabitsForHabit(ctx, t.in.HabitID)
	if err != nil {
		return 0, err
	}

	day, _ := parseDate(t.in.Date)
	net := 0
	for _, rh := range rhs {
		routine, err := routines.GetRoutineByID(ctx, rh.RoutineID)
		if err != nil {
			return 0, err
		}
		if routine == nil {
			continue
		}

		completion, err := computeCompletion(ctx, routines, t.svc.habitRepo.WithTx(t.tx), routine, t.in.ChildID, t.in.Date)
		if err != nil {
			return 0, err
		}
		cached, err := routines.GetCompletion(ctx, routine.ID, t.in.ChildID, t.in.Date)
		if err != nil {
			return 0, err
		}
		if cached != nil {
			completion.BonusAwarded = cached.BonusAwarded
		}

		switch {
		case completion.ThresholdMet && completion.BonusAwarded == 0 &&
			routine.IsActive && routine.BonusPoints != 0 && routine.ScheduledOn(day.Weekday()):
			if _, err := t.record(ctx, models.TransactionRoutine, routine.ID, routine.BonusPoints, "Completed routine "+routine.Name); err != nil {
				return 0, err
			}
			completion.BonusAwarded = routine.BonusPoints
			net += routine.BonusPoints

		case !completion.ThresholdMet && completion.BonusAwarded != 0:
			if _, err := t.record(ctx, models.TransactionRoutine, routine.ID, -completion.BonusAwarded, "Routine "+routine.Name+" no longer complete"); err != nil {
				return 0, err
			}
			net -= completion.BonusAwarded
			completion.BonusAwarded = 0
		}

		if err := routines.SaveCompletion(ctx, completion); err != nil {
			return 0, err
		}
	}
	return net, nil
}

func (t *toggle) record(ctx context.Context, txnType models.TransactionType, relatedID string, points int, description string) (string, error) {
	res, err := t.svc.ledger.RecordTransactionTx(ctx, t.tx, Entry{
		ChildID:     t.in.ChildID,
		Type:        txnType,
		RelatedID:   &relatedID,
		Points:      points,
		Description: description,
	})
	if err != nil {
		return "", err
	}
	t.balance = res.NewBalance
	return res.TransactionID, nil
}
