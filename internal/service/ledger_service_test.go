package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"routinely/internal/models"

	"github.com/google/uuid"
)

func TestRecordTransactionRunningTotal(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	steps := []struct {
		points int
		want   int
	}{
		{points: 10, want: 10},
		{points: -4, want: 6},
		{points: 0, want: 6},
		{points: 25, want: 31},
	}
	for _, step := range steps {
		res, err := e.ledger.RecordTransaction(ctx, Entry{
			ChildID:     e.child.ID,
			Type:        models.TransactionAdjustment,
			Points:      step.points,
			Description: "step",
		})
		if err != nil {
			t.Fatalf("RecordTransaction(%d) error = %v", step.points, err)
		}
		if res.NewBalance != step.want {
			t.Errorf("RecordTransaction(%d) balance = %d, want %d", step.points, res.NewBalance, step.want)
		}
	}

	txns, err := e.points.AllTransactions(ctx, e.child.ID)
	if err != nil {
		t.Fatalf("AllTransactions() error = %v", err)
	}
	if len(txns) != len(steps) {
		t.Fatalf("got %d transactions, want %d", len(txns), len(steps))
	}
	for i, txn := range txns {
		if txn.Sequence != int64(i+1) {
			t.Errorf("transaction %d has sequence %d", i, txn.Sequence)
		}
		if txn.BalanceAfter != steps[i].want {
			t.Errorf("transaction %d balance_after = %d, want %d", i, txn.BalanceAfter, steps[i].want)
		}
	}
	e.assertConsistent(t)
}

func TestRecordTransactionErrors(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.ledger.RecordTransaction(ctx, Entry{ChildID: uuid.NewString(), Type: models.TransactionAdjustment, Points: 5})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing child: error = %v, want ErrNotFound", err)
	}

	_, err = e.ledger.RecordTransaction(ctx, Entry{ChildID: e.child.ID, Type: "BONUS", Points: 5})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("unknown type: error = %v, want ErrValidation", err)
	}

	if got := e.balanceOf(t); got != 0 {
		t.Errorf("balance = %d after failed records, want 0", got)
	}
}

func TestConcurrentRecordTransactions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ledger.RecordTransaction(ctx, Entry{
				ChildID: e.child.ID,
				Type:    models.TransactionBehavior,
				Points:  3,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordTransaction error = %v", err)
		}
	}

	if got := e.balanceOf(t); got != workers*3 {
		t.Errorf("balance = %d, want %d", got, workers*3)
	}

	txns, err := e.points.AllTransactions(ctx, e.child.ID)
	if err != nil {
		t.Fatalf("AllTransactions() error = %v", err)
	}
	seen := make(map[int]bool)
	for _, txn := range txns {
		if seen[txn.BalanceAfter] {
			t.Errorf("balance_after %d appears twice", txn.BalanceAfter)
		}
		seen[txn.BalanceAfter] = true
	}
	e.assertConsistent(t)
}

func TestAdjustPoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	stranger := e.newUser(t, models.RoleParent)
	professional := e.newUser(t, models.RoleProfessional)

	tests := []struct {
		name    string
		caller  models.Caller
		childID string
		points  int
		wantErr error
	}{
		{name: "parent credits", caller: e.parent, childID: e.child.ID, points: 15},
		{name: "parent may go into debt", caller: e.parent, childID: e.child.ID, points: -40},
		{name: "zero points", caller: e.parent, childID: e.child.ID, points: 0, wantErr: ErrValidation},
		{name: "malformed child id", caller: e.parent, childID: "not-a-uuid", points: 5, wantErr: ErrValidation},
		{name: "unknown child", caller: e.parent, childID: uuid.NewString(), points: 5, wantErr: ErrNotFound},
		{name: "other parent", caller: stranger, childID: e.child.ID, points: 5, wantErr: ErrForbidden},
		{name: "professional", caller: professional, childID: e.child.ID, points: 5, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ledger.AdjustPoints(ctx, tt.caller, tt.childID, tt.points, "")
			if tt.wantErr == nil && err != nil {
				t.Fatalf("AdjustPoints() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("AdjustPoints() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := e.balanceOf(t); got != -25 {
		t.Errorf("balance = %d, want -25", got)
	}
	e.assertConsistent(t)
}

func TestGetPointsHistory(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for _, p := range []int{10, 20, -5, 7} {
		e.adjust(t, p)
	}

	history, err := e.ledger.GetPointsHistory(ctx, e.parent, e.child.ID, 3, 0)
	if err != nil {
		t.Fatalf("GetPointsHistory() error = %v", err)
	}
	if history.Balance != 32 {
		t.Errorf("Balance = %d, want 32", history.Balance)
	}
	if history.Stats.TotalEarned != 37 || history.Stats.TotalSpent != 5 || history.Stats.TransactionCount != 4 {
		t.Errorf("Stats = %+v, want earned 37 spent 5 count 4", history.Stats)
	}
	if len(history.Transactions) != 3 || !history.Pagination.HasMore {
		t.Fatalf("first page: %d transactions, has_more %v", len(history.Transactions), history.Pagination.HasMore)
	}
	if history.Transactions[0].Points != 7 {
		t.Errorf("newest transaction points = %d, want 7", history.Transactions[0].Points)
	}

	page2, err := e.ledger.GetPointsHistory(ctx, e.parent, e.child.ID, 3, 3)
	if err != nil {
		t.Fatalf("GetPointsHistory() page 2 error = %v", err)
	}
	if len(page2.Transactions) != 1 || page2.Pagination.HasMore {
		t.Errorf("second page: %d transactions, has_more %v", len(page2.Transactions), page2.Pagination.HasMore)
	}

	clamped, err := e.ledger.GetPointsHistory(ctx, e.parent, e.child.ID, 1000, 0)
	if err != nil {
		t.Fatalf("GetPointsHistory() error = %v", err)
	}
	if clamped.Pagination.Limit != 50 {
		t.Errorf("limit = %d, want clamp to 50", clamped.Pagination.Limit)
	}

	if _, err := e.ledger.GetPointsHistory(ctx, e.parent, e.child.ID, 10, -1); !errors.Is(err, ErrValidation) {
		t.Errorf("negative offset error = %v, want ErrValidation", err)
	}
}

func TestGetPointsHistoryIsConsistentUnderWrites(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	const writes = 30
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < writes; i++ {
			points := 7
			if i%3 == 0 {
				points = -4
			}
			if _, err := e.ledger.RecordTransaction(ctx, Entry{ChildID: e.child.ID, Type: models.TransactionAdjustment, Points: points}); err != nil {
				t.Errorf("RecordTransaction() error = %v", err)
				return
			}
		}
	}()

	check := func() {
		history, err := e.ledger.GetPointsHistory(ctx, e.parent, e.child.ID, 1, 0)
		if err != nil {
			t.Errorf("GetPointsHistory() error = %v", err)
			return
		}
		if history.Stats.TotalEarned-history.Stats.TotalSpent != history.Balance {
			t.Errorf("stats %+v do not add up to balance %d", history.Stats, history.Balance)
		}
		if len(history.Transactions) == 0 {
			if history.Balance != 0 {
				t.Errorf("balance %d with an empty ledger", history.Balance)
			}
			return
		}
		if newest := history.Transactions[0]; newest.BalanceAfter != history.Balance {
			t.Errorf("newest balance_after %d != balance %d", newest.BalanceAfter, history.Balance)
		}
	}

	for {
		select {
		case <-done:
			wg.Wait()
			check()
			return
		default:
			check()
		}
	}
}
