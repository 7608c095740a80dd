package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"routinely/internal/database"
	"routinely/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedChild(t *testing.T, db *database.DB) (*models.User, *models.Child) {
	t.Helper()
	ctx := context.Background()
	parent, err := NewUserRepository(db).CreateUser(ctx, "", "parent@example.com", "Parent", models.RoleParent)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	child, err := NewChildRepository(db).CreateChild(ctx, parent.ID, "Robin")
	if err != nil {
		t.Fatalf("CreateChild() error = %v", err)
	}
	return parent, child
}

func TestApplyPoints(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, child := seedChild(t, db)
	repo := NewChildRepository(db)

	balance, seq, err := repo.ApplyPoints(ctx, child.ID, 7)
	if err != nil {
		t.Fatalf("ApplyPoints() error = %v", err)
	}
	if balance != 7 || seq != 1 {
		t.Errorf("ApplyPoints() = (%d, %d), want (7, 1)", balance, seq)
	}
	balance, seq, err = repo.ApplyPoints(ctx, child.ID, -10)
	if err != nil {
		t.Fatalf("ApplyPoints() error = %v", err)
	}
	if balance != -3 || seq != 2 {
		t.Errorf("ApplyPoints() = (%d, %d), want (-3, 2)", balance, seq)
	}

	if _, _, err := repo.ApplyPoints(ctx, "missing", 1); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ApplyPoints() on missing child error = %v, want sql.ErrNoRows", err)
	}

	got, err := repo.GetChildByID(ctx, child.ID)
	if err != nil || got == nil {
		t.Fatalf("GetChildByID() = %v, %v", got, err)
	}
	if got.PointsBalance != -3 || got.LedgerSeq != 2 {
		t.Errorf("child = balance %d seq %d, want -3 and 2", got.PointsBalance, got.LedgerSeq)
	}
}

func TestTransactionSequenceIsUnique(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, child := seedChild(t, db)
	repo := NewPointsRepository(db)

	txn := &models.PointsTransaction{
		ID:              "t1",
		ChildID:         child.ID,
		Sequence:        1,
		TransactionType: models.TransactionAdjustment,
		Points:          5,
		BalanceAfter:    5,
		CreatedAt:       time.Now().UTC(),
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		t.Fatalf("InsertTransaction() error = %v", err)
	}

	dup := *txn
	dup.ID = "t2"
	err := repo.InsertTransaction(ctx, &dup)
	if err == nil || !db.Dialect.IsUniqueViolation(err) {
		t.Errorf("duplicate sequence error = %v, want unique violation", err)
	}

	page, err := repo.ListTransactions(ctx, child.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(page) != 1 || page[0].RelatedID != nil {
		t.Errorf("ListTransactions() = %+v", page)
	}
}

func TestHabitRecordPerDay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, child := seedChild(t, db)
	repo := NewHabitRepository(db)

	habit := &models.Habit{ChildID: child.ID, Name: "Walk dog", PointsValue: 2, IsActive: true}
	if err := repo.CreateHabit(ctx, habit); err != nil {
		t.Fatalf("CreateHabit() error = %v", err)
	}

	awarded := 2
	record := &models.HabitRecord{HabitID: habit.ID, ChildID: child.ID, RecordDate: "2024-03-01", Value: 1, PointsAwarded: &awarded}
	if err := repo.InsertRecord(ctx, record); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	second := &models.HabitRecord{HabitID: habit.ID, ChildID: child.ID, RecordDate: "2024-03-01", Value: 1}
	if err := repo.InsertRecord(ctx, second); err == nil || !db.Dialect.IsUniqueViolation(err) {
		t.Errorf("second record for the same day error = %v, want unique violation", err)
	}

	got, err := repo.GetRecord(ctx, habit.ID, "2024-03-01")
	if err != nil || got == nil {
		t.Fatalf("GetRecord() = %v, %v", got, err)
	}
	if got.PointsAwarded == nil || *got.PointsAwarded != 2 {
		t.Errorf("PointsAwarded = %v, want 2", got.PointsAwarded)
	}

	done, err := repo.CompletedHabitsByDate(ctx, child.ID, []string{habit.ID}, "2024-02-28", "2024-03-02")
	if err != nil {
		t.Fatalf("CompletedHabitsByDate() error = %v", err)
	}
	if !done["2024-03-01"][habit.ID] || len(done) != 1 {
		t.Errorf("CompletedHabitsByDate() = %v", done)
	}

	if err := repo.DeleteRecord(ctx, got.ID); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	if got, _ := repo.GetRecord(ctx, habit.ID, "2024-03-01"); got != nil {
		t.Error("record still present after delete")
	}
}

func TestSaveCompletionUpserts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, child := seedChild(t, db)
	repo := NewRoutineRepository(db)

	routine := &models.Routine{ChildID: child.ID, Name: "Bedtime", CompletionThreshold: 80, IsActive: true}
	if err := repo.CreateRoutine(ctx, routine); err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}
	if routine.DaysOfWeek != models.AllDays {
		t.Errorf("DaysOfWeek = %d, want every day", routine.DaysOfWeek)
	}

	c := &models.RoutineCompletion{RoutineID: routine.ID, ChildID: child.ID, CompletionDate: "2024-03-01", CompletionPercentage: 50, CompletedHabits: 1, TotalHabits: 2}
	if err := repo.SaveCompletion(ctx, c); err != nil {
		t.Fatalf("SaveCompletion() insert error = %v", err)
	}
	c.CompletionPercentage, c.CompletedHabits, c.BonusAwarded = 100, 2, 15
	if err := repo.SaveCompletion(ctx, c); err != nil {
		t.Fatalf("SaveCompletion() update error = %v", err)
	}

	got, err := repo.GetCompletion(ctx, routine.ID, child.ID, "2024-03-01")
	if err != nil || got == nil {
		t.Fatalf("GetCompletion() = %v, %v", got, err)
	}
	if got.CompletionPercentage != 100 || got.BonusAwarded != 15 {
		t.Errorf("GetCompletion() = %+v", got)
	}

	var rows int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM routine_completions").Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Errorf("routine_completions has %d rows, want 1", rows)
	}
}

func TestRewardClaimIsUnique(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	parent, child := seedChild(t, db)
	repo := NewRewardRepository(db)

	reward := &models.Reward{ChildID: child.ID, Name: "Sticker", PointsRequired: 5, IsActive: true}
	if err := repo.CreateReward(ctx, reward); err != nil {
		t.Fatalf("CreateReward() error = %v", err)
	}
	if err := repo.InsertClaim(ctx, &models.RewardClaim{RewardID: reward.ID, ChildID: child.ID, PointsSpent: 5, ClaimedBy: parent.ID}); err != nil {
		t.Fatalf("InsertClaim() error = %v", err)
	}
	err := repo.InsertClaim(ctx, &models.RewardClaim{RewardID: reward.ID, ChildID: child.ID, PointsSpent: 5, ClaimedBy: parent.ID})
	if err == nil || !db.Dialect.IsUniqueViolation(err) {
		t.Errorf("second claim error = %v, want unique violation", err)
	}
}

func TestAccessGrants(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	parent, child := seedChild(t, db)
	pro, err := NewUserRepository(db).CreateUser(ctx, "", "pro@example.com", "Dr Lee", models.RoleProfessional)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	repo := NewAccessRepository(db)

	if err := repo.Grant(ctx, child.ID, pro.ID, parent.ID); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if ok, _ := repo.HasActiveAccess(ctx, child.ID, pro.ID); !ok {
		t.Error("expected active access after grant")
	}
	if revoked, err := repo.Revoke(ctx, child.ID, pro.ID); err != nil || !revoked {
		t.Fatalf("Revoke() = %v, %v", revoked, err)
	}
	if ok, _ := repo.HasActiveAccess(ctx, child.ID, pro.ID); ok {
		t.Error("access still active after revoke")
	}
	if err := repo.Grant(ctx, child.ID, pro.ID, parent.ID); err != nil {
		t.Fatalf("re-Grant() error = %v", err)
	}
	if ok, _ := repo.HasActiveAccess(ctx, child.ID, pro.ID); !ok {
		t.Error("expected access restored by a second grant")
	}

	code := &models.AccessCode{ChildID: child.ID, LookupKey: "calm-otter", CodeHash: "hash", CreatedBy: parent.ID, ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.InsertCode(ctx, code); err != nil {
		t.Fatalf("InsertCode() error = %v", err)
	}
	used, err := repo.MarkCodeUsed(ctx, code.ID, pro.ID)
	if err != nil || !used {
		t.Fatalf("MarkCodeUsed() = %v, %v", used, err)
	}
	if used, _ := repo.MarkCodeUsed(ctx, code.ID, pro.ID); used {
		t.Error("code marked used twice")
	}
	stored, err := repo.GetCode(ctx, code.ID)
	if err != nil || stored == nil || !stored.IsUsed() {
		t.Errorf("GetCode() = %+v, %v", stored, err)
	}
	if codes, _ := repo.CodesByLookupKey(ctx, "calm-otter"); len(codes) != 0 {
		t.Errorf("used code still listed: %v", codes)
	}
}
