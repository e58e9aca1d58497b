// Package authz implements the grant-based authorisation model: every
// mutating path in the backend passes through HasReadAccess/HasWriteAccess/
// HasAdminAccess before touching a repository.
package authz

import (
	"context"

	"github.com/maproulette/backend/internal/apperr"
)

// GuestID is the implicit unauthenticated identity. It may read but never
// mutate anything.
const GuestID int64 = -998

// Role orders grant strength; lower numeric value is not "weaker" here, the
// set is simply an enum matching the persisted integer.
type Role int

const (
	RoleSuperuser Role = -1
	RoleAdmin     Role = 1
	RoleWrite     Role = 2
	RoleRead      Role = 3
)

// ItemType names the kind of object being accessed, independent of storage.
type ItemType string

const (
	ItemProject          ItemType = "project"
	ItemChallenge        ItemType = "challenge"
	ItemTask             ItemType = "task"
	ItemTag              ItemType = "tag"
	ItemUser             ItemType = "user"
	ItemGrant            ItemType = "grant"
	ItemVirtualChallenge ItemType = "virtual_challenge"
)

// GranteeKind distinguishes a user grantee from a team grantee.
type GranteeKind string

const (
	GranteeUser GranteeKind = "user"
	GranteeTeam GranteeKind = "team"
)

// Target names what a Grant applies to.
type TargetKind string

const (
	TargetProject TargetKind = "project"
	TargetGroup   TargetKind = "group"
)

type Grant struct {
	ID          int64
	GranteeKind GranteeKind
	GranteeID   int64
	Role        Role
	TargetKind  TargetKind
	TargetID    int64
}

// Identity is the minimal user shape the authorisation checks need; the full
// User aggregate lives in internal/store.
type Identity struct {
	ID          int64
	Superuser   bool
	VirtualOwns map[int64]bool // virtual-challenge ids this identity owns
}

func (id Identity) IsGuest() bool { return id.ID == GuestID }

// GrantRepository is implemented by internal/store; kept as an interface so
// the task/review engines can be unit-tested against an in-memory fake.
type GrantRepository interface {
	GrantsForGrantee(ctx context.Context, kind GranteeKind, granteeID int64) ([]Grant, error)
}

// Checker evaluates access decisions against a GrantRepository.
type Checker struct {
	Grants GrantRepository
}

func NewChecker(grants GrantRepository) *Checker {
	return &Checker{Grants: grants}
}

// hasRoleOnProject reports whether identity holds at least minRole on
// projectID, either directly or via a team grant (team membership
// resolution is the caller's responsibility — GrantsForGrantee is expected
// to already return the effective set including team-derived grants).
func (c *Checker) hasRoleOnProject(ctx context.Context, identity Identity, projectID int64, minRole Role) (bool, error) {
	if identity.Superuser {
		return true, nil
	}
	grants, err := c.Grants.GrantsForGrantee(ctx, GranteeUser, identity.ID)
	if err != nil {
		return false, apperr.Fatalf(err, "loading grants")
	}
	for _, g := range grants {
		if g.TargetKind != TargetProject || g.TargetID != projectID {
			continue
		}
		if roleSatisfies(g.Role, minRole) {
			return true, nil
		}
	}
	return false, nil
}

// roleSatisfies reports whether held is at least as strong as required.
// Superuser(-1) > Admin(1) > Write(2) > Read(3); lower numeric value wins,
// except Superuser's -1 is handled by the caller short-circuiting earlier.
func roleSatisfies(held, required Role) bool {
	if held == RoleSuperuser {
		return true
	}
	return held <= required
}

// HasReadAccess implements §4.6: reads on Projects/Challenges/Tasks/Tags/
// VirtualChallenges are open to everyone including the guest identity; reads
// on Users/Grants are restricted to the subject themself or a superuser.
func (c *Checker) HasReadAccess(ctx context.Context, item ItemType, identity Identity, subjectID int64) error {
	switch item {
	case ItemProject, ItemChallenge, ItemTask, ItemTag, ItemVirtualChallenge:
		return nil
	case ItemUser:
		if identity.Superuser || identity.ID == subjectID {
			return nil
		}
		return apperr.Forbiddenf("read access to user %d denied", subjectID)
	case ItemGrant:
		if identity.Superuser || identity.ID == subjectID {
			return nil
		}
		return apperr.Forbiddenf("read access to grant denied")
	default:
		return apperr.Forbiddenf("unknown item type %q", item)
	}
}

// HasWriteAccess implements §4.6's write rules. projectID is the containing
// project for Project/Challenge/Task/Tag writes; subjectID is the owning
// user for User/VirtualChallenge writes; both are ignored for Grants, which
// are superuser-only regardless of target.
func (c *Checker) HasWriteAccess(ctx context.Context, item ItemType, identity Identity, projectID, subjectID int64) error {
	if identity.IsGuest() {
		return apperr.Forbiddenf("guest identity cannot mutate %s", item)
	}

	switch item {
	case ItemProject, ItemChallenge, ItemTask, ItemTag:
		ok, err := c.hasRoleOnProject(ctx, identity, projectID, RoleWrite)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbiddenf("write access to %s in project %d denied", item, projectID)
		}
		return nil
	case ItemUser:
		if identity.Superuser || identity.ID == subjectID {
			return nil
		}
		return apperr.Forbiddenf("write access to user %d denied", subjectID)
	case ItemVirtualChallenge:
		if identity.Superuser || identity.VirtualOwns[subjectID] {
			return nil
		}
		return apperr.Forbiddenf("write access to virtual challenge %d denied", subjectID)
	case ItemGrant:
		if identity.Superuser {
			return nil
		}
		return apperr.Forbiddenf("writes to grants require superuser")
	default:
		return apperr.Forbiddenf("unknown item type %q", item)
	}
}

// HasAdminAccess implements §4.6: Admin on Project/Challenge/Task requires an
// explicit Admin grant on the project — ownership alone never suffices.
// Admin on Grants is superuser-only.
func (c *Checker) HasAdminAccess(ctx context.Context, item ItemType, identity Identity, projectID int64) error {
	if identity.IsGuest() {
		return apperr.Forbiddenf("guest identity cannot administer %s", item)
	}

	switch item {
	case ItemProject, ItemChallenge, ItemTask:
		ok, err := c.hasRoleOnProject(ctx, identity, projectID, RoleAdmin)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Forbiddenf("admin access to %s in project %d denied", item, projectID)
		}
		return nil
	case ItemGrant:
		if identity.Superuser {
			return nil
		}
		return apperr.Forbiddenf("admin on grants requires superuser")
	default:
		return apperr.Forbiddenf("unknown item type %q", item)
	}
}
