package service

import (
	"fmt"

	"muadati/internal/database"
	"muadati/internal/domain"
	"muadati/internal/models"
)

// ActorRole is the caller's relation to a specific request.
type ActorRole int

const (
	ActorNone ActorRole = iota
	ActorCustomer
	ActorOwner
)

func (r ActorRole) String() string {
	switch r {
	case ActorCustomer:
		return "customer"
	case ActorOwner:
		return "owner"
	}
	return "none"
}

// transitionTable lists the target statuses each actor may set.
var transitionTable = map[ActorRole]map[models.RequestStatus]bool{
	ActorCustomer: {models.RequestCancelled: true},
	ActorOwner:    {models.RequestAccepted: true, models.RequestCompleted: true},
}

var deniedMessages = map[ActorRole]string{
	ActorCustomer: "you can only cancel the request",
	ActorOwner:    "owners can only accept or complete requests",
}

// ActorFor resolves how actorID relates to the request. The requesting
// customer takes precedence.
func ActorFor(snap database.RequestSnapshot, actorID int64) ActorRole {
	switch {
	case actorID != 0 && snap.CustomerID == actorID:
		return ActorCustomer
	case actorID != 0 && snap.OwnerID == actorID:
		return ActorOwner
	}
	return ActorNone
}

// Decide validates moving a request from current to target for role.
// Re-applying the current status is allowed and changes nothing. Pending to
// completed is permitted; completed and cancelled are final.
func Decide(role ActorRole, current, target models.RequestStatus) error {
	if !target.Valid() || target == models.RequestPending {
		return domain.Validation("invalid status")
	}
	if role == ActorNone {
		return domain.Forbidden("you are not authorized to modify this request")
	}
	if !transitionTable[role][target] {
		return domain.Forbidden(deniedMessages[role])
	}
	if current == target {
		return nil
	}
	if current.Terminal() {
		return domain.Conflict(fmt.Sprintf("request is already %s", current))
	}
	return nil
}
