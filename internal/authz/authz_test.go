package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/maproulette/backend/internal/apperr"
)

type fakeGrants struct {
	grants []Grant
	err    error
}

func (f fakeGrants) GrantsForGrantee(ctx context.Context, kind GranteeKind, granteeID int64) ([]Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.grants, nil
}

func TestGuestCanReadButNotWrite(t *testing.T) {
	c := NewChecker(fakeGrants{})
	guest := Identity{ID: GuestID}

	if err := c.HasReadAccess(context.Background(), ItemTask, guest, 0); err != nil {
		t.Fatalf("guest read: %v", err)
	}
	if err := c.HasWriteAccess(context.Background(), ItemTask, guest, 1, 0); err == nil {
		t.Fatal("guest write: want error, got nil")
	}
}

func TestWriteAccessRequiresWriteGrant(t *testing.T) {
	repo := fakeGrants{grants: []Grant{
		{GranteeID: 5, Role: RoleRead, TargetKind: TargetProject, TargetID: 1},
	}}
	c := NewChecker(repo)
	user := Identity{ID: 5}

	if err := c.HasWriteAccess(context.Background(), ItemTask, user, 1, 0); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected Forbidden with only a read grant, got %v", err)
	}

	repo.grants[0].Role = RoleWrite
	c = NewChecker(repo)
	if err := c.HasWriteAccess(context.Background(), ItemTask, user, 1, 0); err != nil {
		t.Fatalf("write access with Write grant: %v", err)
	}
}

func TestAdminAccessRejectsWriteOnlyGrant(t *testing.T) {
	repo := fakeGrants{grants: []Grant{
		{GranteeID: 5, Role: RoleWrite, TargetKind: TargetProject, TargetID: 1},
	}}
	c := NewChecker(repo)
	user := Identity{ID: 5}

	if err := c.HasAdminAccess(context.Background(), ItemProject, user, 1); err == nil {
		t.Fatal("admin access with only a Write grant: want error, got nil")
	}

	repo.grants[0].Role = RoleAdmin
	c = NewChecker(repo)
	if err := c.HasAdminAccess(context.Background(), ItemProject, user, 1); err != nil {
		t.Fatalf("admin access with Admin grant: %v", err)
	}
}

func TestSuperuserBypassesGrantLookup(t *testing.T) {
	c := NewChecker(fakeGrants{err: errors.New("should never be called")})
	su := Identity{ID: 1, Superuser: true}

	if err := c.HasWriteAccess(context.Background(), ItemProject, su, 99, 0); err != nil {
		t.Fatalf("superuser write: %v", err)
	}
	if err := c.HasAdminAccess(context.Background(), ItemProject, su, 99); err != nil {
		t.Fatalf("superuser admin: %v", err)
	}
}

func TestGrantRepositoryErrorWrapsFatal(t *testing.T) {
	c := NewChecker(fakeGrants{err: errors.New("connection reset")})
	user := Identity{ID: 5}

	err := c.HasWriteAccess(context.Background(), ItemProject, user, 1, 0)
	if !apperr.Is(err, apperr.Fatal) {
		t.Fatalf("expected Fatal kind wrapping repository error, got %v", err)
	}
}

func TestVirtualChallengeWriteScopedToOwner(t *testing.T) {
	c := NewChecker(fakeGrants{})
	owner := Identity{ID: 5, VirtualOwns: map[int64]bool{42: true}}
	other := Identity{ID: 6}

	if err := c.HasWriteAccess(context.Background(), ItemVirtualChallenge, owner, 0, 42); err != nil {
		t.Fatalf("owner write: %v", err)
	}
	if err := c.HasWriteAccess(context.Background(), ItemVirtualChallenge, other, 0, 42); err == nil {
		t.Fatal("non-owner write: want error, got nil")
	}
}

func TestGrantWritesAreSuperuserOnly(t *testing.T) {
	c := NewChecker(fakeGrants{grants: []Grant{
		{GranteeID: 5, Role: RoleAdmin, TargetKind: TargetProject, TargetID: 1},
	}})
	admin := Identity{ID: 5}

	if err := c.HasWriteAccess(context.Background(), ItemGrant, admin, 1, 0); err == nil {
		t.Fatal("project admin writing a grant: want error, got nil")
	}

	su := Identity{ID: 1, Superuser: true}
	if err := c.HasWriteAccess(context.Background(), ItemGrant, su, 1, 0); err != nil {
		t.Fatalf("superuser writing a grant: %v", err)
	}
}
