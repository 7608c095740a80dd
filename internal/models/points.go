package models

import (
	"fmt"
	"time"
)

// TransactionType classifies a ledger entry by what caused it
type TransactionType string

const (
	TransactionBehavior         TransactionType = "BEHAVIOR"
	TransactionHabit            TransactionType = "HABIT"
	TransactionRoutine          TransactionType = "ROUTINE"
	TransactionRewardRedemption TransactionType = "REWARD_REDEMPTION"
	TransactionAdjustment       TransactionType = "ADJUSTMENT"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionBehavior, TransactionHabit, TransactionRoutine,
		TransactionRewardRedemption, TransactionAdjustment:
		return true
	}
	return false
}

// PointsTransaction is an immutable ledger entry
type PointsTransaction struct {
	ID              string          `json:"id"`
	ChildID         string          `json:"child_id"`
	Sequence        int64           `json:"sequence"`
	TransactionType TransactionType `json:"transaction_type"`
	RelatedID       *string         `json:"related_id,omitempty"`
	Points          int             `json:"points"`
	Description     string          `json:"description"`
	BalanceAfter    int             `json:"balance_after"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionResult is returned by every ledger write
type TransactionResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int    `json:"new_balance"`
}

// PointsStats summarizes a child's whole ledger
type PointsStats struct {
	TotalEarned      int `json:"total_earned"`
	TotalSpent       int `json:"total_spent"`
	TransactionCount int `json:"transaction_count"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// PointsHistory is a page of a child's ledger, newest first
type PointsHistory struct {
	Balance      int                 `json:"balance"`
	Stats        PointsStats         `json:"stats"`
	Transactions []PointsTransaction `json:"transactions"`
	Pagination   Pagination          `json:"pagination"`
}

// BalanceReport compares the cached balance with the ledger
type BalanceReport struct {
	ChildID    string `json:"child_id"`
	Cached     int    `json:"cached"`
	Recomputed int    `json:"recomputed"`
	Drift      int    `json:"drift"`
	Repaired   bool   `json:"repaired"`
}

// InSync reports whether the cache matches the ledger
func (r BalanceReport) InSync() bool {
	return r.Drift == 0
}

// LedgerIssue is one inconsistency found while verifying a ledger
type LedgerIssue struct {
	Sequence int64  `json:"sequence"`
	Message  string `json:"message"`
}

func (i LedgerIssue) String() string {
	return fmt.Sprintf("seq %d: %s", i.Sequence, i.Message)
}
