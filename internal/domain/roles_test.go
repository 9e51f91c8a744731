package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticRoleChecker(t *testing.T) {
	checker := NewStaticRoleChecker()
	ctx := context.Background()

	t.Run("floor actions allow production operators", func(t *testing.T) {
		for _, action := range []Action{ActionScanIn, ActionScanOut, ActionCompleteStep, ActionRequestRework, ActionSubmitReworkVerification} {
			assert.NoError(t, checker.EnsureAllowed(ctx, RoleProduction, action), "%s", action)
		}
	})

	t.Run("privileged actions reject production operators", func(t *testing.T) {
		for _, action := range []Action{ActionChecklistOverride, ActionValidateRoute, ActionAdjustRoute, ActionReopenRoute, ActionApproveOrder, ActionApproveRework, ActionCloseRework} {
			assert.ErrorIs(t, checker.EnsureAllowed(ctx, RoleProduction, action), ErrRoleNotAllowed, "%s", action)
		}
	})

	t.Run("privileged roles pass everywhere", func(t *testing.T) {
		for _, role := range []Role{RoleSupervisor, RoleAdmin, RolePlantManager} {
			assert.NoError(t, checker.EnsureAllowed(ctx, role, ActionApproveOrder), "%s", role)
		}
	})

	t.Run("unknown roles are always rejected", func(t *testing.T) {
		assert.ErrorIs(t, checker.EnsureAllowed(ctx, Role("Visitor"), ActionScanIn), ErrRoleNotAllowed)
		assert.ErrorIs(t, checker.EnsureAllowed(ctx, Role(""), ActionScanIn), ErrRoleNotAllowed)
	})
}

func TestRolePredicates(t *testing.T) {
	assert.False(t, RoleProduction.IsPrivileged())
	assert.True(t, RoleSupervisor.IsPrivileged())
	assert.True(t, RoleAdmin.IsPrivileged())
	assert.True(t, RolePlantManager.IsPrivileged())
	assert.False(t, Role("Visitor").IsPrivileged())
}
