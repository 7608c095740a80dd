package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"routinely/internal/database"
	"routinely/internal/models"

	"github.com/google/uuid"
)

// RewardRepository handles rewards and their one-time claims
type RewardRepository struct {
	db database.DBTX
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db database.DBTX) *RewardRepository {
	return &RewardRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *RewardRepository) WithTx(tx *database.Tx) *RewardRepository {
	return &RewardRepository{db: tx}
}

// CreateReward creates a new reward for a child
func (r *RewardRepository) CreateReward(ctx context.Context, reward *models.Reward) error {
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO rewards (id, child_id, name, description, points_required, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		reward.ID, reward.ChildID, reward.Name, reward.Description,
		reward.PointsRequired, reward.IsActive, reward.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}
	return nil
}

// GetRewardByID retrieves a reward by ID
func (r *RewardRepository) GetRewardByID(ctx context.Context, rewardID string) (*models.Reward, error) {
	query := `
		SELECT id, child_id, name, description, points_required, is_active, created_at
		FROM rewards
		WHERE id = ?
	`
	reward := &models.Reward{}
	err := r.db.QueryRowContext(ctx, query, rewardID).Scan(
		&reward.ID,
		&reward.ChildID,
		&reward.Name,
		&reward.Description,
		&reward.PointsRequired,
		&reward.IsActive,
		&reward.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	return reward, nil
}

// GetClaimByRewardID returns the claim for a reward, or nil if it is unclaimed
func (r *RewardRepository) GetClaimByRewardID(ctx context.Context, rewardID string) (*models.RewardClaim, error) {
	query := `
		SELECT id, reward_id, child_id, points_spent, notes, claimed_by, claimed_at
		FROM reward_claims
		WHERE reward_id = ?
	`
	claim := &models.RewardClaim{}
	err := r.db.QueryRowContext(ctx, query, rewardID).Scan(
		&claim.ID,
		&claim.RewardID,
		&claim.ChildID,
		&claim.PointsSpent,
		&claim.Notes,
		&claim.ClaimedBy,
		&claim.ClaimedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward claim: %w", err)
	}
	return claim, nil
}

// InsertClaim records a claim. The unique reward_id column rejects a second claim.
func (r *RewardRepository) InsertClaim(ctx context.Context, claim *models.RewardClaim) error {
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO reward_claims (id, reward_id, child_id, points_spent, notes, claimed_by, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		claim.ID, claim.RewardID, claim.ChildID, claim.PointsSpent,
		claim.Notes, claim.ClaimedBy, claim.ClaimedAt)
	if err != nil {
		return fmt.Errorf("failed to insert reward claim: %w", err)
	}
	return nil
}
