package models

import "time"

// Reward is a redeemable item that can be claimed once
type Reward struct {
	ID             string    `json:"id"`
	ChildID        string    `json:"child_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	PointsRequired int       `json:"points_required"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// RewardClaim records the single redemption of a reward
type RewardClaim struct {
	ID          string    `json:"id"`
	RewardID    string    `json:"reward_id"`
	ChildID     string    `json:"child_id"`
	PointsSpent int       `json:"points_spent"`
	Notes       string    `json:"notes"`
	ClaimedBy   string    `json:"claimed_by"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

// ClaimResult is the outcome of a successful claim
type ClaimResult struct {
	Claim         RewardClaim `json:"claim"`
	NewBalance    int         `json:"new_balance"`
	TransactionID string      `json:"transaction_id"`
}
