package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"
)

// ClaimNotification describes a committed reward claim
type ClaimNotification struct {
	Parent     *models.User
	Child      *models.Child
	Reward     *models.Reward
	Claim      models.RewardClaim
	NewBalance int
}

// ClaimNotifier is told about claims after they commit
type ClaimNotifier interface {
	RewardClaimed(ctx context.Context, n ClaimNotification) error
}

// RewardClaimRequest identifies the reward to claim. ChildID is optional and,
// when given, must match the reward's owner.
type RewardClaimRequest struct {
	RewardID string
	ChildID  string
	Notes    string
}

// RewardService redeems rewards against a child's balance
type RewardService struct {
	db         *database.DB
	rewardRepo *repository.RewardRepository
	childRepo  *repository.ChildRepository
	userRepo   *repository.UserRepository
	ledger     *LedgerService
	authz      *Authorizer
	notifier   ClaimNotifier
}

// NewRewardService creates a new reward service. notifier may be nil.
func NewRewardService(db *database.DB, rewardRepo *repository.RewardRepository, childRepo *repository.ChildRepository, userRepo *repository.UserRepository, ledger *LedgerService, authz *Authorizer, notifier ClaimNotifier) *RewardService {
	return &RewardService{
		db:         db,
		rewardRepo: rewardRepo,
		childRepo:  childRepo,
		userRepo:   userRepo,
		ledger:     ledger,
		authz:      authz,
		notifier:   notifier,
	}
}

// ClaimReward checks the claim and the child's funds under the child's lock,
// then inserts the claim and deducts the cost in the same transaction
func (s *RewardService) ClaimReward(ctx context.Context, caller models.Caller, req RewardClaimRequest) (*models.ClaimResult, error) {
	if err := requireID("reward_id", req.RewardID); err != nil {
		return nil, err
	}
	reward, err := s.rewardRepo.GetRewardByID(ctx, req.RewardID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if reward == nil {
		return nil, ErrNotFound
	}
	if req.ChildID != "" && req.ChildID != reward.ChildID {
		return nil, ErrForbidden
	}
	if _, err := s.authz.CanWrite(ctx, caller, reward.ChildID); err != nil {
		return nil, err
	}

	childID := reward.ChildID
	var result *models.ClaimResult
	var child *models.Child
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		result, child, reward, err = s.claimLocked(ctx, tx, caller, childID, req.RewardID, req.Notes)
		return err
	})
	if err != nil {
		return nil, storeError(s.db.Dialect, "claim reward", err)
	}

	s.notify(ctx, child, reward, result)
	return result, nil
}

// claimLocked locks the child, re-reads the reward and performs the claim.
// Every check uses rows read under the lock.
func (s *RewardService) claimLocked(ctx context.Context, tx *database.Tx, caller models.Caller, childID, rewardID, notes string) (*models.ClaimResult, *models.Child, *models.Reward, error) {
	child, err := s.childRepo.WithTx(tx).LockChild(ctx, childID)
	if err != nil {
		return nil, nil, nil, err
	}
	if child == nil {
		return nil, nil, nil, ErrNotFound
	}

	rewards := s.rewardRepo.WithTx(tx)
	reward, err := rewards.GetRewardByID(ctx, rewardID)
	if err != nil {
		return nil, nil, nil, err
	}
	if reward == nil {
		return nil, nil, nil, ErrNotFound
	}
	if reward.ChildID != childID {
		return nil, nil, nil, ErrForbidden
	}

	existing, err := rewards.GetClaimByRewardID(ctx, reward.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if existing != nil {
		return nil, nil, nil, ErrAlreadyClaimed
	}
	if !reward.IsActive {
		return nil, nil, nil, invalid("reward_id", "reward is not active")
	}
	if child.PointsBalance < reward.PointsRequired {
		return nil, nil, nil, fmt.Errorf("%w: balance %d, required %d", ErrInsufficientPoints, child.PointsBalance, reward.PointsRequired)
	}

	claim := &models.RewardClaim{
		RewardID:    reward.ID,
		ChildID:     reward.ChildID,
		PointsSpent: reward.PointsRequired,
		Notes:       notes,
		ClaimedBy:   caller.UserID,
		ClaimedAt:   time.Now().UTC(),
	}
	if err := rewards.InsertClaim(ctx, claim); err != nil {
		if tx.GetDialect().IsUniqueViolation(err) {
			return nil, nil, nil, ErrAlreadyClaimed
		}
		return nil, nil, nil, err
	}

	relatedID := reward.ID
	txn, err := s.ledger.RecordTransactionTx(ctx, tx, Entry{
		ChildID:     reward.ChildID,
		Type:        models.TransactionRewardRedemption,
		RelatedID:   &relatedID,
		Points:      -reward.PointsRequired,
		Description: "Claimed " + reward.Name,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return &models.ClaimResult{
		Claim:         *claim,
		NewBalance:    txn.NewBalance,
		TransactionID: txn.TransactionID,
	}, child, reward, nil
}

// notify is best effort; the claim has already committed
func (s *RewardService) notify(ctx context.Context, child *models.Child, reward *models.Reward, result *models.ClaimResult) {
	if s.notifier == nil {
		return
	}
	parent, err := s.userRepo.GetUserByID(ctx, child.ParentID)
	if err != nil || parent == nil {
		log.Printf("Warning: could not load parent %s for claim notification: %v", child.ParentID, err)
		return
	}
	child.PointsBalance = result.NewBalance
	err = s.notifier.RewardClaimed(ctx, ClaimNotification{
		Parent:     parent,
		Child:      child,
		Reward:     reward,
		Claim:      result.Claim,
		NewBalance: result.NewBalance,
	})
	if err != nil {
		log.Printf("Warning: failed to send claim notification for reward %s: %v", reward.ID, err)
	}
}
