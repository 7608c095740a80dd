package service

import (
	"context"
	"fmt"

	"routinely/internal/models"
	"routinely/internal/repository"
)

// Authorizer decides whether a caller may touch a child's data.
// Parents own their children outright; professionals get read access
// through an active grant.
type Authorizer struct {
	childRepo  *repository.ChildRepository
	accessRepo *repository.AccessRepository
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(childRepo *repository.ChildRepository, accessRepo *repository.AccessRepository) *Authorizer {
	return &Authorizer{
		childRepo:  childRepo,
		accessRepo: accessRepo,
	}
}

// CanWrite returns the child if the caller is its parent
func (a *Authorizer) CanWrite(ctx context.Context, caller models.Caller, childID string) (*models.Child, error) {
	child, err := a.loadChild(ctx, caller, childID)
	if err != nil {
		return nil, err
	}
	if caller.IsProfessional() || child.ParentID != caller.UserID {
		return nil, ErrForbidden
	}
	return child, nil
}

// CanRead returns the child if the caller is its parent or holds an active professional grant
func (a *Authorizer) CanRead(ctx context.Context, caller models.Caller, childID string) (*models.Child, error) {
	child, err := a.loadChild(ctx, caller, childID)
	if err != nil {
		return nil, err
	}
	if !caller.IsProfessional() {
		if child.ParentID != caller.UserID {
			return nil, ErrForbidden
		}
		return child, nil
	}

	ok, err := a.accessRepo.HasActiveAccess(ctx, childID, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !ok {
		return nil, ErrForbidden
	}
	return child, nil
}

func (a *Authorizer) loadChild(ctx context.Context, caller models.Caller, childID string) (*models.Child, error) {
	if caller.UserID == "" {
		return nil, ErrForbidden
	}
	if err := requireID("child_id", childID); err != nil {
		return nil, err
	}
	child, err := a.childRepo.GetChildByID(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if child == nil {
		return nil, ErrNotFound
	}
	return child, nil
}
