package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"routinely/internal/credentials"
	"routinely/internal/database"
	"routinely/internal/models"
	"routinely/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCodeTTL is how long a minted access code stays redeemable
const DefaultCodeTTL = 72 * time.Hour

// MintedCode is a freshly generated access code. The plain code is only
// ever returned here; the database keeps a bcrypt hash.
type MintedCode struct {
	Code      string    `json:"code"`
	ChildID   string    `json:"child_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccessService lets parents share read-only access to a child with a
// professional through one-time codes
type AccessService struct {
	db         *database.DB
	accessRepo *repository.AccessRepository
	userRepo   *repository.UserRepository
	authz      *Authorizer
	ttl        time.Duration
	cost       int
}

// NewAccessService creates a new access service
func NewAccessService(db *database.DB, accessRepo *repository.AccessRepository, userRepo *repository.UserRepository, authz *Authorizer, ttl time.Duration) *AccessService {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &AccessService{
		db:         db,
		accessRepo: accessRepo,
		userRepo:   userRepo,
		authz:      authz,
		ttl:        ttl,
		cost:       bcrypt.DefaultCost,
	}
}

// MintCode creates a one-time access code for a child
func (s *AccessService) MintCode(ctx context.Context, caller models.Caller, childID string) (*MintedCode, error) {
	if _, err := s.authz.CanWrite(ctx, caller, childID); err != nil {
		return nil, err
	}

	code, err := credentials.GenerateAccessCode()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate access code: %w", ErrInternal, err)
	}
	lookupKey, err := credentials.LookupKey(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to hash access code: %w", ErrInternal, err)
	}

	record := &models.AccessCode{
		ChildID:   childID,
		LookupKey: lookupKey,
		CodeHash:  string(hash),
		CreatedBy: caller.UserID,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	if err := s.accessRepo.InsertCode(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return &MintedCode{Code: code, ChildID: childID, ExpiresAt: record.ExpiresAt}, nil
}

// RedeemCode turns a valid code into a read-only grant for the calling professional
func (s *AccessService) RedeemCode(ctx context.Context, caller models.Caller, code string) (*models.ProfessionalAccess, error) {
	if !caller.IsProfessional() {
		return nil, ErrForbidden
	}
	user, err := s.userRepo.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if user == nil || user.Role != models.RoleProfessional {
		return nil, ErrForbidden
	}

	code = credentials.Normalize(code)
	lookupKey, err := credentials.LookupKey(code)
	if errors.Is(err, credentials.ErrMalformedCode) {
		return nil, invalid("code", "is not a valid access code")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	candidates, err := s.accessRepo.CodesByLookupKey(ctx, lookupKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	var match *models.AccessCode
	for i := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(candidates[i].CodeHash), []byte(code)) == nil {
			match = &candidates[i]
			break
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	if match.IsExpired(time.Now().UTC()) {
		return nil, invalid("code", "has expired")
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		access := s.accessRepo.WithTx(tx)
		used, err := access.MarkCodeUsed(ctx, match.ID, caller.UserID)
		if err != nil {
			return err
		}
		if !used {
			return invalid("code", "has already been used")
		}
		return access.Grant(ctx, match.ChildID, caller.UserID, match.CreatedBy)
	})
	if err != nil {
		return nil, storeError(s.db.Dialect, "redeem access code", err)
	}

	log.Printf("Professional %s granted read access to child %s", caller.UserID, match.ChildID)
	return &models.ProfessionalAccess{
		ChildID:        match.ChildID,
		ProfessionalID: caller.UserID,
		GrantedBy:      match.CreatedBy,
		IsActive:       true,
	}, nil
}

// RevokeAccess removes a professional's grant for a child
func (s *AccessService) RevokeAccess(ctx context.Context, caller models.Caller, childID, professionalID string) error {
	if err := requireID("professional_id", professionalID); err != nil {
		return err
	}
	if _, err := s.authz.CanWrite(ctx, caller, childID); err != nil {
		return err
	}
	revoked, err := s.accessRepo.Revoke(ctx, childID, professionalID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !revoked {
		return ErrNotFound
	}
	log.Printf("Revoked professional %s access to child %s", professionalID, childID)
	return nil
}
