package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrAssignmentNotFound = errors.New("route assignment not found")
	ErrAssignmentOverlap  = errors.New("assignment effective windows overlap for identical scope and priority")
	ErrNoMatchingRoute    = errors.New("no route assignment matches the order line")
)

// RouteAssignment is a matching rule that binds an order-line shape to a route template.
// Optional scope fields are nil when the rule does not constrain that dimension.
type RouteAssignment struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AssignmentID string             `bson:"assignmentId"`
	TemplateID   string             `bson:"templateId"`

	CustomerID *string `bson:"customerId,omitempty"`
	SiteID     *string `bson:"siteId,omitempty"`
	ItemID     *string `bson:"itemId,omitempty"`
	ItemType   *string `bson:"itemType,omitempty"`

	PriorityMin *int    `bson:"priorityMin,omitempty"`
	PriorityMax *int    `bson:"priorityMax,omitempty"`
	PickupViaID *string `bson:"pickupViaId,omitempty"`
	ShipViaID   *string `bson:"shipViaId,omitempty"`

	Priority      int        `bson:"priority"`
	Revision      int        `bson:"revision"`
	EffectiveFrom time.Time  `bson:"effectiveFrom"`
	EffectiveTo   *time.Time `bson:"effectiveTo,omitempty"`
	Active        bool       `bson:"active"`

	// Overrides the derived supervisor-approval requirement when set
	SupervisorApprovalOverride *bool `bson:"supervisorApprovalOverride,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MatchContext carries the order-line shape used to resolve an assignment
type MatchContext struct {
	CustomerID    string
	SiteID        string
	ItemID        string
	ItemType      string
	OrderPriority int
	PickupViaID   string
	ShipViaID     string
	Now           time.Time
}

// EffectiveAt reports whether the assignment window covers the given instant
func (a *RouteAssignment) EffectiveAt(now time.Time) bool {
	if now.Before(a.EffectiveFrom) {
		return false
	}
	if a.EffectiveTo != nil && now.After(*a.EffectiveTo) {
		return false
	}
	return true
}

// MatchesScalars checks the optional scalar constraints (priority range, via ids).
// Unset constraints always pass.
func (a *RouteAssignment) MatchesScalars(ctx MatchContext) bool {
	if a.PriorityMin != nil && ctx.OrderPriority < *a.PriorityMin {
		return false
	}
	if a.PriorityMax != nil && ctx.OrderPriority > *a.PriorityMax {
		return false
	}
	if a.PickupViaID != nil && *a.PickupViaID != ctx.PickupViaID {
		return false
	}
	if a.ShipViaID != nil && *a.ShipViaID != ctx.ShipViaID {
		return false
	}
	return true
}

// SameScope reports whether two assignments share identical scope keys
func (a *RouteAssignment) SameScope(other *RouteAssignment) bool {
	return equalPtr(a.CustomerID, other.CustomerID) &&
		equalPtr(a.SiteID, other.SiteID) &&
		equalPtr(a.ItemID, other.ItemID) &&
		equalPtr(a.ItemType, other.ItemType) &&
		equalIntPtr(a.PriorityMin, other.PriorityMin) &&
		equalIntPtr(a.PriorityMax, other.PriorityMax) &&
		equalPtr(a.PickupViaID, other.PickupViaID) &&
		equalPtr(a.ShipViaID, other.ShipViaID)
}

// OverlapsWindow reports whether two effective windows intersect.
// A nil EffectiveTo means open-ended.
func (a *RouteAssignment) OverlapsWindow(other *RouteAssignment) bool {
	aEndsBefore := a.EffectiveTo != nil && a.EffectiveTo.Before(other.EffectiveFrom)
	otherEndsBefore := other.EffectiveTo != nil && other.EffectiveTo.Before(a.EffectiveFrom)
	return !aEndsBefore && !otherEndsBefore
}

// CheckOverlap enforces the write-time invariant: among active assignments with
// identical scope keys and priority, effective windows must not overlap.
func (a *RouteAssignment) CheckOverlap(existing []*RouteAssignment) error {
	if !a.Active {
		return nil
	}
	for _, other := range existing {
		if other.AssignmentID == a.AssignmentID || !other.Active {
			continue
		}
		if other.Priority != a.Priority || !a.SameScope(other) {
			continue
		}
		if a.OverlapsWindow(other) {
			return ErrAssignmentOverlap
		}
	}
	return nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
