package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

func TestCreateTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active version-1 template", func(t *testing.T) {
		f := newFixture()
		template := seedTemplate(t, f, "STD", basicStepInputs())

		assert.True(t, template.Active)
		assert.Equal(t, 1, template.Version)
		require.Len(t, template.Steps, 2)
		assert.Equal(t, "WC-CUT", template.Steps[0].WorkCenterID)
	})

	t.Run("duplicate codes conflict", func(t *testing.T) {
		f := newFixture()
		seedTemplate(t, f, "STD", basicStepInputs())

		_, err := f.catalog.CreateTemplate(ctx, CreateTemplateCommand{Code: "STD", Name: "again", Steps: basicStepInputs()})
		assert.Equal(t, 409, asAppErr(t, err).HTTPStatus)
	})

	t.Run("a template needs at least one step", func(t *testing.T) {
		f := newFixture()
		_, err := f.catalog.CreateTemplate(ctx, CreateTemplateCommand{Code: "EMPTY", Name: "empty"})
		assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)
	})

	t.Run("duplicate step sequences conflict", func(t *testing.T) {
		f := newFixture()
		steps := basicStepInputs()
		steps[1].Sequence = steps[0].Sequence

		_, err := f.catalog.CreateTemplate(ctx, CreateTemplateCommand{Code: "DUP", Name: "dup", Steps: steps})
		assert.Equal(t, 409, asAppErr(t, err).HTTPStatus)
	})
}

func TestUpdateTemplate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	template := seedTemplate(t, f, "STD", basicStepInputs())

	steps := basicStepInputs()
	steps[0].Name = "Cut to length"
	updated, err := f.catalog.UpdateTemplate(ctx, UpdateTemplateCommand{
		TemplateID: template.TemplateID, Name: "Standard v2", Steps: steps,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Standard v2", updated.Name)
	assert.Equal(t, "Cut to length", updated.Steps[0].Name)

	_, err = f.catalog.UpdateTemplate(ctx, UpdateTemplateCommand{TemplateID: "missing", Steps: steps})
	assert.Equal(t, 404, asAppErr(t, err).HTTPStatus)
}

func TestDeactivateTemplate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	template := seedTemplate(t, f, "STD", basicStepInputs())

	deactivated, err := f.catalog.DeactivateTemplate(ctx, template.TemplateID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	// Inactive templates take no new assignments
	siteID := "SITE-A"
	_, err = f.catalog.CreateAssignment(ctx, CreateAssignmentCommand{
		TemplateID: template.TemplateID, SiteID: &siteID, Priority: 100,
		EffectiveFrom: testNow.Format(time.RFC3339),
	})
	assert.Equal(t, 409, asAppErr(t, err).HTTPStatus)
}

func TestDeleteTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("an unreferenced template deletes", func(t *testing.T) {
		f := newFixture()
		template := seedTemplate(t, f, "STD", basicStepInputs())

		require.NoError(t, f.catalog.DeleteTemplate(ctx, template.TemplateID))
		assert.Empty(t, f.templates.templates)
	})

	t.Run("a template referenced by an assignment stays", func(t *testing.T) {
		f := newFixture()
		template := seedTemplate(t, f, "STD", basicStepInputs())
		seedAssignment(t, f, template.TemplateID, "SITE-A")

		err := f.catalog.DeleteTemplate(ctx, template.TemplateID)
		assert.Equal(t, 409, asAppErr(t, err).HTTPStatus)
	})

	t.Run("a template referenced by a route instance stays", func(t *testing.T) {
		f := newFixture()
		_, _, exec := seedRoutedOrder(t, f, basicStepInputs())
		templateID := exec.Routes[0].TemplateID

		// Drop the assignment reference so the instance check decides
		f.assignments.assignments = make(map[string]*domain.RouteAssignment)

		err := f.catalog.DeleteTemplate(ctx, templateID)
		assert.Equal(t, 409, asAppErr(t, err).HTTPStatus)
	})

	t.Run("unknown templates are not found", func(t *testing.T) {
		f := newFixture()
		assert.Equal(t, 404, asAppErr(t, f.catalog.DeleteTemplate(ctx, "missing")).HTTPStatus)
	})
}

func TestCreateAssignment(t *testing.T) {
	ctx := context.Background()
	siteID := "SITE-A"

	t.Run("overlapping windows at the same scope and priority conflict", func(t *testing.T) {
		f := newFixture()
		template := seedTemplate(t, f, "STD", basicStepInputs())
		seedAssignment(t, f, template.TemplateID, siteID)

		_, err := f.catalog.CreateAssignment(ctx, CreateAssignmentCommand{
			TemplateID: template.TemplateID, SiteID: &siteID, Priority: 100,
			EffectiveFrom: testNow.Format(time.RFC3339),
		})
		assert.Equal(t, 409, asAppErr(t, err).HTTPStatus)
	})

	t.Run("a different priority escapes the overlap check", func(t *testing.T) {
		f := newFixture()
		template := seedTemplate(t, f, "STD", basicStepInputs())
		seedAssignment(t, f, template.TemplateID, siteID)

		assignment, err := f.catalog.CreateAssignment(ctx, CreateAssignmentCommand{
			TemplateID: template.TemplateID, SiteID: &siteID, Priority: 200,
			EffectiveFrom: testNow.Format(time.RFC3339),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, assignment.Revision)
		assert.True(t, assignment.Active)
	})

	t.Run("a malformed window is rejected", func(t *testing.T) {
		f := newFixture()
		template := seedTemplate(t, f, "STD", basicStepInputs())

		_, err := f.catalog.CreateAssignment(ctx, CreateAssignmentCommand{
			TemplateID: template.TemplateID, SiteID: &siteID, Priority: 100,
			EffectiveFrom: "yesterday",
		})
		assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)

		effectiveTo := testNow.Add(-48 * time.Hour).Format(time.RFC3339)
		_, err = f.catalog.CreateAssignment(ctx, CreateAssignmentCommand{
			TemplateID: template.TemplateID, SiteID: &siteID, Priority: 100,
			EffectiveFrom: testNow.Format(time.RFC3339), EffectiveTo: &effectiveTo,
		})
		assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)
	})
}

func TestUpdateAssignment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	template := seedTemplate(t, f, "STD", basicStepInputs())
	assignment := seedAssignment(t, f, template.TemplateID, "SITE-A")

	updated, err := f.catalog.UpdateAssignment(ctx, UpdateAssignmentCommand{
		AssignmentID:  assignment.AssignmentID,
		Priority:      150,
		Active:        true,
		EffectiveFrom: testNow.Add(-24 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Revision)
	assert.Equal(t, 150, updated.Priority)

	_, err = f.catalog.UpdateAssignment(ctx, UpdateAssignmentCommand{
		AssignmentID: "missing", EffectiveFrom: testNow.Format(time.RFC3339),
	})
	assert.Equal(t, 404, asAppErr(t, err).HTTPStatus)
}

func TestResolveAssignmentDryRun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	template := seedTemplate(t, f, "STD", basicStepInputs())
	assignment := seedAssignment(t, f, template.TemplateID, "SITE-A")

	resolution, err := f.catalog.ResolveAssignment(ctx, ResolveAssignmentQuery{
		CustomerID: "CUST-1", SiteID: "SITE-A", ItemID: "ITEM-1",
	})
	require.NoError(t, err)
	assert.Equal(t, assignment.AssignmentID, resolution.AssignmentID)
	assert.Equal(t, template.TemplateID, resolution.TemplateID)
	assert.Equal(t, "site-default", resolution.TierLabel)

	_, err = f.catalog.ResolveAssignment(ctx, ResolveAssignmentQuery{SiteID: "SITE-B"})
	assert.Equal(t, 409, asAppErr(t, err).HTTPStatus)
}

func TestListTemplates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	active := seedTemplate(t, f, "STD", basicStepInputs())
	retired := seedTemplate(t, f, "OLD", basicStepInputs())
	_, err := f.catalog.DeactivateTemplate(ctx, retired.TemplateID)
	require.NoError(t, err)

	all, err := f.catalog.ListTemplates(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activeOnly, err := f.catalog.ListTemplates(ctx, true)
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, active.TemplateID, activeOnly[0].TemplateID)
}
