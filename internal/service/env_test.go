package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// testEnv wires every service against a fresh SQLite file
type testEnv struct {
	db *database.DB

	users     *repository.UserRepository
	children  *repository.ChildRepository
	points    *repository.PointsRepository
	habitRepo *repository.HabitRepository
	routineRp *repository.RoutineRepository
	rewardRp  *repository.RewardRepository
	behavRepo *repository.BehaviorRepository
	access    *repository.AccessRepository

	authz     *Authorizer
	ledger    *LedgerService
	balance   *BalanceService
	routines  *RoutineService
	habits    *HabitService
	rewards   *RewardService
	behaviors *BehaviorService
	codes     *AccessService
	notifier  *recordingNotifier

	parent models.Caller
	child  *models.Child
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []ClaimNotification
}

func (n *recordingNotifier) RewardClaimed(ctx context.Context, c ClaimNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := &testEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		children:  repository.NewChildRepository(db),
		points:    repository.NewPointsRepository(db),
		habitRepo: repository.NewHabitRepository(db),
		routineRp: repository.NewRoutineRepository(db),
		rewardRp:  repository.NewRewardRepository(db),
		behavRepo: repository.NewBehaviorRepository(db),
		access:    repository.NewAccessRepository(db),
		notifier:  &recordingNotifier{},
	}
	e.authz = NewAuthorizer(e.children, e.access)
	e.ledger = NewLedgerService(db, e.children, e.points, e.authz, 50)
	e.balance = NewBalanceService(db, e.children, e.points)
	e.routines = NewRoutineService(e.routineRp, e.habitRepo, e.authz, time.UTC)
	e.habits = NewHabitService(db, e.habitRepo, e.routineRp, e.children, e.ledger, e.routines, e.authz)
	e.rewards = NewRewardService(db, e.rewardRp, e.children, e.users, e.ledger, e.authz, e.notifier)
	e.behaviors = NewBehaviorService(db, e.behavRepo, e.ledger, e.authz)
	e.codes = NewAccessService(db, e.access, e.users, e.authz, time.Hour)
	e.codes.cost = bcrypt.MinCost

	e.parent = e.newUser(t, models.RoleParent)
	e.child = e.newChild(t, e.parent)
	return e
}

func (e *testEnv) newUser(t *testing.T, role string) models.Caller {
	t.Helper()
	user, err := e.users.CreateUser(context.Background(), "", role+"-"+uuid.NewString()+"@example.com", role, role)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return models.Caller{UserID: user.ID, Role: role}
}

func (e *testEnv) newChild(t *testing.T, parent models.Caller) *models.Child {
	t.Helper()
	child, err := e.children.CreateChild(context.Background(), parent.UserID, "Sam")
	if err != nil {
		t.Fatalf("failed to create child: %v", err)
	}
	return child
}

func (e *testEnv) newHabit(t *testing.T, name string, points int) *models.Habit {
	t.Helper()
	habit := &models.Habit{ChildID: e.child.ID, Name: name, TargetFrequency: 1, Unit: "times", PointsValue: points, IsActive: true}
	if err := e.habitRepo.CreateHabit(context.Background(), habit); err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	return habit
}

func (e *testEnv) newRoutine(t *testing.T, threshold, bonus int) *models.Routine {
	t.Helper()
	routine := &models.Routine{ChildID: e.child.ID, Name: "Morning", TimeOfDay: "morning", CompletionThreshold: threshold, BonusPoints: bonus, IsActive: true}
	if err := e.routineRp.CreateRoutine(context.Background(), routine); err != nil {
		t.Fatalf("failed to create routine: %v", err)
	}
	return routine
}

func (e *testEnv) link(t *testing.T, routine *models.Routine, habit *models.Habit, points int, required bool) {
	t.Helper()
	rh := &models.RoutineHabit{RoutineID: routine.ID, HabitID: habit.ID, PointsValue: points, IsRequired: required}
	if err := e.routineRp.AddHabit(context.Background(), rh); err != nil {
		t.Fatalf("failed to link habit: %v", err)
	}
}

func (e *testEnv) newReward(t *testing.T, cost int) *models.Reward {
	t.Helper()
	reward := &models.Reward{ChildID: e.child.ID, Name: "Park trip", PointsRequired: cost, IsActive: true}
	if err := e.rewardRp.CreateReward(context.Background(), reward); err != nil {
		t.Fatalf("failed to create reward: %v", err)
	}
	return reward
}

func (e *testEnv) adjust(t *testing.T, points int) {
	t.Helper()
	if _, err := e.ledger.AdjustPoints(context.Background(), e.parent, e.child.ID, points, "seed"); err != nil {
		t.Fatalf("AdjustPoints(%d) error = %v", points, err)
	}
}

func (e *testEnv) balanceOf(t *testing.T) int {
	t.Helper()
	balance, err := e.balance.CurrentBalance(context.Background(), e.child.ID)
	if err != nil {
		t.Fatalf("CurrentBalance() error = %v", err)
	}
	return balance
}

// assertConsistent checks the cached balance against the ledger and the ledger's own chain
func (e *testEnv) assertConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	cached := e.balanceOf(t)
	recomputed, err := e.balance.RecomputeBalance(ctx, e.child.ID)
	if err != nil {
		t.Fatalf("RecomputeBalance() error = %v", err)
	}
	if cached != recomputed {
		t.Errorf("cached balance %d != recomputed %d", cached, recomputed)
	}
	issues, err := e.balance.VerifyLedger(ctx, e.child.ID)
	if err != nil {
		t.Fatalf("VerifyLedger() error = %v", err)
	}
	for _, issue := range issues {
		t.Errorf("ledger issue: %s", issue)
	}
}
