// Package access is the authorization layer between the HTTP edge and the
// store. Every rule takes the caller id plus already-loaded rows and returns
// a typed apperr, so handlers map outcomes to status codes without re-deriving
// policy.
//
// Non-members see NOT_FOUND, not FORBIDDEN: a server a caller cannot read
// should be indistinguishable from one that does not exist.
package access

import (
	"context"
	"errors"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
	"github.com/hermes-hub/hermes/internal/v1/store"
)

// membershipGetter is the slice of the store the resolver needs. Satisfied by
// *store.Store; stubbed in tests.
type membershipGetter interface {
	GetMembership(ctx context.Context, userID, serverID int64) (*store.Membership, error)
}

// Resolver answers authorization questions for one request.
type Resolver struct {
	store membershipGetter
}

// NewResolver wires the resolver over the store.
func NewResolver(st membershipGetter) *Resolver {
	return &Resolver{store: st}
}

// RequireMember asserts the caller holds an active membership of the server.
// Callers with no membership row at all get NOT_FOUND; callers who once were
// members but left get FORBIDDEN.
func (r *Resolver) RequireMember(ctx context.Context, callerID, serverID int64) error {
	m, err := r.store.GetMembership(ctx, callerID, serverID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("Server not found")
	}
	if err != nil {
		return err
	}
	if !m.Active() {
		return apperr.Forbidden("You are not an active member of this server")
	}
	return nil
}

// RequireOwner asserts the caller owns the server. Membership is implied for
// the owner; a non-owner member gets FORBIDDEN, a stranger NOT_FOUND.
func (r *Resolver) RequireOwner(ctx context.Context, callerID int64, sv *store.Server) error {
	if sv.OwnerID == callerID {
		return nil
	}
	if err := r.RequireMember(ctx, callerID, sv.ID); err != nil {
		return err
	}
	return apperr.Forbidden("You do not have permission to do this")
}

// CanEditMessage allows only the author.
func CanEditMessage(callerID int64, msg *store.Message) error {
	if msg.Author.ID != callerID {
		return apperr.Forbidden("You can only edit your own messages")
	}
	return nil
}

// CanDeleteMessage allows the author and the server owner.
func CanDeleteMessage(callerID int64, msg *store.Message, sv *store.Server) error {
	if msg.Author.ID == callerID || sv.OwnerID == callerID {
		return nil
	}
	return apperr.Forbidden("You do not have permission to delete this message")
}

// CanLeaveServer blocks the owner from leaving while still owning the
// server. Ownership moves first, or the server is deleted. This is a 400,
// not a 403: the request is malformed for the caller's role.
func CanLeaveServer(callerID int64, sv *store.Server) error {
	if sv.OwnerID == callerID {
		return apperr.Validation("Server owner cannot leave without transferring ownership")
	}
	return nil
}
