package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrRoleNotAllowed signals the acting role lacks permission for an action
var ErrRoleNotAllowed = errors.New("role is not allowed to perform this action")

// Role identifies the acting operator's permission level
type Role string

const (
	RoleProduction   Role = "Production"
	RoleSupervisor   Role = "Supervisor"
	RoleAdmin        Role = "Admin"
	RolePlantManager Role = "PlantManager"
)

// Action names a permission-checked operation
type Action string

const (
	ActionScanIn                   Action = "scan-in"
	ActionScanOut                  Action = "scan-out"
	ActionCompleteStep             Action = "complete-step"
	ActionCorrectDuration          Action = "duration-correction"
	ActionChecklistOverride        Action = "checklist-override"
	ActionValidateRoute            Action = "validate-route"
	ActionAdjustRoute              Action = "adjust-route"
	ActionReopenRoute              Action = "reopen-route"
	ActionApproveOrder             Action = "approve-order"
	ActionRequestRework            Action = "request-rework"
	ActionApproveRework            Action = "approve-rework"
	ActionStartRework              Action = "start-rework"
	ActionSubmitReworkVerification Action = "submit-rework-verification"
	ActionCloseRework              Action = "close-rework"
	ActionCancelRework             Action = "cancel-rework"
	ActionScrapRework              Action = "scrap-rework"
)

// RoleChecker is the permission port. Implementations fail with a forbidden
// signal when the role is not authorized for the named action.
type RoleChecker interface {
	EnsureAllowed(ctx context.Context, role Role, action Action) error
}

// IsPrivileged reports whether the role may perform supervisor-level actions
func (r Role) IsPrivileged() bool {
	switch r {
	case RoleSupervisor, RoleAdmin, RolePlantManager:
		return true
	}
	return false
}

// IsValid reports whether the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleProduction, RoleSupervisor, RoleAdmin, RolePlantManager:
		return true
	}
	return false
}

// StaticRoleChecker authorizes actions from a fixed permission table.
// Production operators run the floor; everything that changes routing,
// approvals, or recorded history needs a privileged role.
type StaticRoleChecker struct{}

// NewStaticRoleChecker creates the default role checker
func NewStaticRoleChecker() *StaticRoleChecker {
	return &StaticRoleChecker{}
}

var privilegedActions = map[Action]bool{
	ActionChecklistOverride: true,
	ActionValidateRoute:     true,
	ActionAdjustRoute:       true,
	ActionReopenRoute:       true,
	ActionApproveOrder:      true,
	ActionApproveRework:     true,
	ActionStartRework:       true,
	ActionCloseRework:       true,
	ActionScrapRework:       true,
}

// EnsureAllowed implements RoleChecker
func (c *StaticRoleChecker) EnsureAllowed(_ context.Context, role Role, action Action) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrRoleNotAllowed, role)
	}
	if privilegedActions[action] && !role.IsPrivileged() {
		return fmt.Errorf("%w: %s requires a privileged role, got %s", ErrRoleNotAllowed, action, role)
	}
	return nil
}
