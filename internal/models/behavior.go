package models

import "time"

// Behavior is a tracked behaviour with a signed point value
type Behavior struct {
	ID          string    `json:"id"`
	ChildID     string    `json:"child_id"`
	Name        string    `json:"name"`
	PointsValue int       `json:"points_value"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// BehaviorRecord is one observed occurrence of a behavior
type BehaviorRecord struct {
	ID         string    `json:"id"`
	BehaviorID string    `json:"behavior_id"`
	ChildID    string    `json:"child_id"`
	Points     int       `json:"points"`
	Notes      string    `json:"notes"`
	RecordedBy string    `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// BehaviorResult is the outcome of recording a behavior
type BehaviorResult struct {
	Record        BehaviorRecord `json:"record"`
	NewBalance    int            `json:"new_balance"`
	TransactionID string         `json:"transaction_id,omitempty"`
}
