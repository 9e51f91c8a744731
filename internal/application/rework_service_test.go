package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// completeFirstStep scans in and completes the sequence-10 step so rework can
// target a completed step.
func completeFirstStep(t *testing.T, f *fixture, orderID, lineID string, exec *OrderExecutionDTO) string {
	t.Helper()
	ctx := context.Background()
	stepID := stepBySequence(t, exec, 10).StepID
	_, err := f.execution.ScanIn(ctx, StepCommand{OrderID: orderID, LineID: lineID, StepID: stepID, Actor: productionActor()})
	require.NoError(t, err)
	_, err = f.execution.CompleteStep(ctx, CompleteStepCommand{OrderID: orderID, LineID: lineID, StepID: stepID, Actor: productionActor()})
	require.NoError(t, err)
	return stepID
}

func executionView(t *testing.T, f *fixture, orderID string) *OrderExecutionDTO {
	t.Helper()
	exec, err := f.execution.GetOrderRouteExecution(context.Background(), GetOrderRouteExecutionQuery{OrderID: orderID})
	require.NoError(t, err)
	return exec
}

func TestRequestRework(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks the step and holds the order", func(t *testing.T) {
		f := newFixture()
		orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
		stepID := completeFirstStep(t, f, orderID, lineID, exec)

		rework, err := f.rework.Request(ctx, RequestReworkCommand{
			OrderID: orderID, LineID: lineID, StepID: stepID,
			Reason: "cracked weld", Actor: productionActor(),
		})
		require.NoError(t, err)
		assert.Equal(t, string(domain.ReworkRequested), rework.State)

		view := executionView(t, f, orderID)
		step := stepBySequence(t, view, 10)
		assert.Equal(t, string(domain.StepBlocked), step.State)
		assert.Equal(t, "Rework-Requested", step.BlockedReason)
		// Blocking a completed step reopens its route
		assert.Equal(t, string(domain.RouteActive), view.Routes[0].State)
		assert.True(t, view.Order.HasOpenRework)
		assert.Equal(t, string(domain.HoldReworkOpen), view.Order.HoldOverlay)
	})

	t.Run("a step with open rework refuses a second track", func(t *testing.T) {
		f := newFixture()
		orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
		stepID := completeFirstStep(t, f, orderID, lineID, exec)

		first, err := f.rework.Request(ctx, RequestReworkCommand{
			OrderID: orderID, LineID: lineID, StepID: stepID, Reason: "cracked weld", Actor: productionActor(),
		})
		require.NoError(t, err)

		_, err = f.rework.Request(ctx, RequestReworkCommand{
			OrderID: orderID, LineID: lineID, StepID: stepID, Reason: "second look", Actor: productionActor(),
		})
		appErr := asAppErr(t, err)
		assert.Equal(t, 409, appErr.HTTPStatus)
		assert.Contains(t, appErr.Message, first.ReworkID)
	})

	t.Run("a blank reason is rejected", func(t *testing.T) {
		f := newFixture()
		orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
		stepID := completeFirstStep(t, f, orderID, lineID, exec)

		_, err := f.rework.Request(ctx, RequestReworkCommand{
			OrderID: orderID, LineID: lineID, StepID: stepID, Reason: "  ", Actor: productionActor(),
		})
		assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)
	})
}

func TestReworkFullTrack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
	stepID := completeFirstStep(t, f, orderID, lineID, exec)

	rework, err := f.rework.Request(ctx, RequestReworkCommand{
		OrderID: orderID, LineID: lineID, StepID: stepID, Reason: "cracked weld", Actor: productionActor(),
	})
	require.NoError(t, err)
	transition := ReworkTransitionCommand{ReworkID: rework.ReworkID, Actor: supervisorActor()}

	// Approval is privileged
	_, err = f.rework.Approve(ctx, ReworkTransitionCommand{ReworkID: rework.ReworkID, Actor: productionActor()})
	assert.Equal(t, 403, asAppErr(t, err).HTTPStatus)

	rework, err = f.rework.Approve(ctx, transition)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReworkApproved), rework.State)
	assert.Equal(t, "Rework-Approved", stepBySequence(t, executionView(t, f, orderID), 10).BlockedReason)

	rework, err = f.rework.Start(ctx, transition)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReworkInProgress), rework.State)

	// The operator who did the rework submits verification
	rework, err = f.rework.SubmitVerification(ctx, ReworkTransitionCommand{
		ReworkID: rework.ReworkID, Note: "reweld inspected", Actor: productionActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReworkVerificationPending), rework.State)

	rework, err = f.rework.Close(ctx, transition)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReworkClosed), rework.State)
	assert.Equal(t, domain.ActivityReworkClosed, f.activity.lastAction())

	view := executionView(t, f, orderID)
	step := stepBySequence(t, view, 10)
	assert.Equal(t, string(domain.StepInProgress), step.State)
	assert.Empty(t, step.BlockedReason)
	assert.False(t, view.Order.HasOpenRework)
	assert.Empty(t, view.Order.HoldOverlay)
}

func TestReworkCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
	stepID := completeFirstStep(t, f, orderID, lineID, exec)

	rework, err := f.rework.Request(ctx, RequestReworkCommand{
		OrderID: orderID, LineID: lineID, StepID: stepID, Reason: "suspect weld", Actor: productionActor(),
	})
	require.NoError(t, err)

	// Cancelling is a floor action; the requester can withdraw their own track
	rework, err = f.rework.Cancel(ctx, ReworkTransitionCommand{
		ReworkID: rework.ReworkID, Note: "false alarm", Actor: productionActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReworkCancelled), rework.State)

	view := executionView(t, f, orderID)
	assert.False(t, view.Order.HasOpenRework)
	assert.NotEqual(t, string(domain.StepBlocked), stepBySequence(t, view, 10).State)
}

func TestReworkHoldClearsAfterLastTrack(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
	stepID := completeFirstStep(t, f, orderID, lineID, exec)
	pendingStepID := stepBySequence(t, exec, 20).StepID

	first, err := f.rework.Request(ctx, RequestReworkCommand{
		OrderID: orderID, LineID: lineID, StepID: stepID, Reason: "cracked weld", Actor: productionActor(),
	})
	require.NoError(t, err)
	second, err := f.rework.Request(ctx, RequestReworkCommand{
		OrderID: orderID, LineID: lineID, StepID: pendingStepID, Reason: "wrong fixture", Actor: productionActor(),
	})
	require.NoError(t, err)

	open, err := f.rework.ListOpenByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	_, err = f.rework.Cancel(ctx, ReworkTransitionCommand{ReworkID: first.ReworkID, Actor: productionActor()})
	require.NoError(t, err)
	assert.True(t, executionView(t, f, orderID).Order.HasOpenRework)

	_, err = f.rework.Cancel(ctx, ReworkTransitionCommand{ReworkID: second.ReworkID, Actor: productionActor()})
	require.NoError(t, err)
	assert.False(t, executionView(t, f, orderID).Order.HasOpenRework)
}

func TestElevatedReworkApproval(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
	stepID := completeFirstStep(t, f, orderID, lineID, exec)

	rework, err := f.rework.Request(ctx, RequestReworkCommand{
		OrderID: orderID, LineID: lineID, StepID: stepID,
		Reason: "customer return", Elevated: true, Actor: productionActor(),
	})
	require.NoError(t, err)

	_, err = f.rework.Approve(ctx, ReworkTransitionCommand{ReworkID: rework.ReworkID, Actor: supervisorActor()})
	assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)

	rework, err = f.rework.Approve(ctx, ReworkTransitionCommand{
		ReworkID: rework.ReworkID, Justification: "customer escalation", Actor: supervisorActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.ReworkApproved), rework.State)
}

func TestReworkLookups(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.rework.Get(ctx, "missing")
	assert.Equal(t, 404, asAppErr(t, err).HTTPStatus)

	orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
	stepID := completeFirstStep(t, f, orderID, lineID, exec)
	rework, err := f.rework.Request(ctx, RequestReworkCommand{
		OrderID: orderID, LineID: lineID, StepID: stepID, Reason: "cracked weld", Actor: productionActor(),
	})
	require.NoError(t, err)

	got, err := f.rework.Get(ctx, rework.ReworkID)
	require.NoError(t, err)
	assert.Equal(t, rework.ReworkID, got.ReworkID)
	assert.Equal(t, "cracked weld", got.Reason)
}
