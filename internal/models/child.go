package models

import "time"

// Child represents a child profile owned by exactly one parent.
// PointsBalance is a cache of the ledger sum and only moves through the ledger.
type Child struct {
	ID            string    `json:"id"`
	ParentID      string    `json:"parent_id"`
	Name          string    `json:"name"`
	PointsBalance int       `json:"points_balance"`
	LedgerSeq     int64     `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
