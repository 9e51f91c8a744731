package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

func TestCaptureTrailer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := seedOrder(t, f, "SO-1001", 5)

	_, err := f.execution.CaptureTrailer(ctx, CaptureTrailerCommand{
		OrderID: order.OrderID, TrailerNumber: "   ", Actor: productionActor(),
	})
	assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)

	exec, err := f.execution.CaptureTrailer(ctx, CaptureTrailerCommand{
		OrderID: order.OrderID, TrailerNumber: " TRL-42 ", Actor: productionActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, "TRL-42", exec.Order.TrailerNumber)
	assert.Equal(t, domain.ActivityCaptureTrailer, f.activity.lastAction())
}

func TestVerifySerialLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("requires at least one scanned serial", func(t *testing.T) {
		f := newFixture()
		order := seedOrder(t, f, "SO-1001", 5)

		_, err := f.execution.VerifySerialLoad(ctx, VerifySerialLoadCommand{
			OrderID: order.OrderID, LineID: order.Lines[0].LineID, Actor: productionActor(),
		})
		appErr := asAppErr(t, err)
		assert.Equal(t, 400, appErr.HTTPStatus)
		assert.Equal(t, "At least one serial must be scanned for load verification.", appErr.Message)
	})

	t.Run("a mismatched set conflicts and names both diffs", func(t *testing.T) {
		f := newFixture()
		order := seedOrder(t, f, "SO-1001", 5)

		_, err := f.execution.VerifySerialLoad(ctx, VerifySerialLoadCommand{
			OrderID: order.OrderID, LineID: order.Lines[0].LineID,
			Serials: []string{"SN-1", "SN-X"}, Actor: productionActor(),
		})
		appErr := asAppErr(t, err)
		assert.Equal(t, 409, appErr.HTTPStatus)
		assert.Equal(t, "Serial load verification failed. Missing: SN-2. Unexpected: SN-X.", appErr.Message)
		assert.Equal(t, string(domain.GateSerialLoad), appErr.Details["gate"])
	})

	t.Run("a matching set records the audited note", func(t *testing.T) {
		f := newFixture()
		order := seedOrder(t, f, "SO-1001", 5)

		_, err := f.execution.VerifySerialLoad(ctx, VerifySerialLoadCommand{
			OrderID: order.OrderID, LineID: order.Lines[0].LineID,
			Serials: []string{"SN-1", "SN-2"}, Actor: productionActor(),
		})
		require.NoError(t, err)

		entry, err := f.activity.FindLatestByAction(ctx, order.OrderID, order.Lines[0].LineID, domain.ActivitySerialLoadVerified)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, []string{"SN-1", "SN-2"}, domain.ParseSerialLoadNote(entry.Notes))
	})
}

func TestGenerateDocuments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := seedOrder(t, f, "SO-1001", 5)

	exec, err := f.execution.GeneratePackingSlip(ctx, GenerateDocumentCommand{OrderID: order.OrderID, Actor: productionActor()})
	require.NoError(t, err)
	require.NotNil(t, exec.Order.PackingSlip)
	assert.Equal(t, "PS-SO-1001", exec.Order.PackingSlip.Number)
	assert.Contains(t, f.blobs.blobs, "orders/SO-1001/PS-SO-1001.txt")
	assert.Equal(t, domain.ActivityPackingSlip, f.activity.lastAction())

	// Regeneration bumps the revision and stores a fresh copy
	f.clock.now = testNow.Add(time.Hour)
	exec, err = f.execution.GeneratePackingSlip(ctx, GenerateDocumentCommand{OrderID: order.OrderID, Actor: productionActor()})
	require.NoError(t, err)
	assert.Equal(t, "PS-SO-1001-R1", exec.Order.PackingSlip.Number)
	assert.Contains(t, f.blobs.blobs, "orders/SO-1001/PS-SO-1001-R1.txt")

	exec, err = f.execution.GenerateBol(ctx, GenerateDocumentCommand{OrderID: order.OrderID, Actor: productionActor()})
	require.NoError(t, err)
	require.NotNil(t, exec.Order.BOL)
	assert.Equal(t, "BOL-SO-1001", exec.Order.BOL.Number)
	assert.Contains(t, f.blobs.blobs, "orders/SO-1001/BOL-SO-1001.txt")
}

func TestUploadAttachment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := seedOrder(t, f, "SO-1001", 5)

	_, err := f.execution.UploadAttachment(ctx, UploadAttachmentCommand{
		OrderID: order.OrderID, FileName: "weld-cert.pdf", Actor: productionActor(),
	})
	assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)

	_, err = f.execution.UploadAttachment(ctx, UploadAttachmentCommand{
		OrderID: order.OrderID, FileName: "  ", Data: []byte("x"), Actor: productionActor(),
	})
	assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)

	exec, err := f.execution.UploadAttachment(ctx, UploadAttachmentCommand{
		OrderID: order.OrderID, FileName: "weld-cert.pdf", ContentType: "application/pdf",
		Category: "certification", Data: []byte("%PDF-1.4"), Actor: productionActor(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, exec.Order.AttachmentCount)
	assert.Len(t, f.blobs.blobs, 1)
}

func TestApproveAndRejectOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	order := seedOrder(t, f, "SO-1001", 5)

	_, err := f.execution.ApproveOrder(ctx, ApproveOrderCommand{OrderID: order.OrderID, Actor: productionActor()})
	assert.Equal(t, 403, asAppErr(t, err).HTTPStatus)

	exec, err := f.execution.ApproveOrder(ctx, ApproveOrderCommand{OrderID: order.OrderID, Actor: supervisorActor()})
	require.NoError(t, err)
	assert.True(t, exec.Order.Approved)

	_, err = f.execution.RejectOrder(ctx, RejectOrderCommand{OrderID: order.OrderID, Reason: "  ", Actor: supervisorActor()})
	assert.Equal(t, 400, asAppErr(t, err).HTTPStatus)

	exec, err = f.execution.RejectOrder(ctx, RejectOrderCommand{OrderID: order.OrderID, Reason: "missing weld certs", Actor: supervisorActor()})
	require.NoError(t, err)
	assert.False(t, exec.Order.Approved)
	assert.Equal(t, "missing weld certs", exec.Order.RejectedReason)
	assert.Equal(t, domain.ActivityOrderRejected, f.activity.lastAction())
}

func TestRouteReview(t *testing.T) {
	ctx := context.Background()

	t.Run("review actions are privileged", func(t *testing.T) {
		f := newFixture()
		orderID, _, exec := seedRoutedOrder(t, f, basicStepInputs())
		instanceID := exec.Routes[0].InstanceID

		_, err := f.execution.ValidateRoute(ctx, RouteReviewCommand{OrderID: orderID, InstanceID: instanceID, Actor: productionActor()})
		assert.Equal(t, 403, asAppErr(t, err).HTTPStatus)
		_, err = f.execution.AdjustRoute(ctx, AdjustRouteCommand{OrderID: orderID, InstanceID: instanceID, Actor: productionActor()})
		assert.Equal(t, 403, asAppErr(t, err).HTTPStatus)
	})

	t.Run("validate marks the route reviewed", func(t *testing.T) {
		f := newFixture()
		orderID, _, exec := seedRoutedOrder(t, f, basicStepInputs())

		exec, err := f.execution.ValidateRoute(ctx, RouteReviewCommand{
			OrderID: orderID, InstanceID: exec.Routes[0].InstanceID, Actor: supervisorActor(),
		})
		require.NoError(t, err)
		assert.Equal(t, string(domain.ReviewValidated), exec.Routes[0].ReviewState)
		assert.Equal(t, domain.ActivityRouteValidated, f.activity.lastAction())
	})

	t.Run("adjust rewrites pending step attributes", func(t *testing.T) {
		f := newFixture()
		orderID, _, exec := seedRoutedOrder(t, f, basicStepInputs())
		target := stepBySequence(t, exec, 20)
		required := false

		exec, err := f.execution.AdjustRoute(ctx, AdjustRouteCommand{
			OrderID: orderID, InstanceID: exec.Routes[0].InstanceID,
			Adjustments: []domain.StepAdjustment{{StepID: target.StepID, Required: &required}},
			Actor:       supervisorActor(),
		})
		require.NoError(t, err)
		assert.Equal(t, string(domain.ReviewAdjusted), exec.Routes[0].ReviewState)
		assert.False(t, stepBySequence(t, exec, 20).Required)
	})

	t.Run("an instance on another order is not found", func(t *testing.T) {
		f := newFixture()
		orderID, _, _ := seedRoutedOrder(t, f, basicStepInputs())
		other := seedOrder(t, f, "SO-2002", 5)

		for _, route := range f.routes.routes {
			assert.Equal(t, orderID, route.OrderID)
			_, err := f.execution.ValidateRoute(ctx, RouteReviewCommand{
				OrderID: other.OrderID, InstanceID: route.InstanceID, Actor: supervisorActor(),
			})
			assert.Equal(t, 404, asAppErr(t, err).HTTPStatus)
		}
	})
}

func TestReopenRoute(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	orderID, lineID, exec := seedRoutedOrder(t, f, basicStepInputs())
	instanceID := exec.Routes[0].InstanceID

	for _, seq := range []int{10, 20} {
		stepID := stepBySequence(t, exec, seq).StepID
		_, err := f.execution.ScanIn(ctx, StepCommand{OrderID: orderID, LineID: lineID, StepID: stepID, Actor: productionActor()})
		require.NoError(t, err)
		_, err = f.execution.CompleteStep(ctx, CompleteStepCommand{OrderID: orderID, LineID: lineID, StepID: stepID, Actor: productionActor()})
		require.NoError(t, err)
	}

	reopenAt := stepBySequence(t, exec, 20).StepID
	_, err := f.execution.ReopenRoute(ctx, ReopenRouteCommand{OrderID: orderID, InstanceID: instanceID, StepID: reopenAt, Actor: productionActor()})
	assert.Equal(t, 403, asAppErr(t, err).HTTPStatus)

	exec, err = f.execution.ReopenRoute(ctx, ReopenRouteCommand{OrderID: orderID, InstanceID: instanceID, StepID: reopenAt, Actor: supervisorActor()})
	require.NoError(t, err)
	assert.Equal(t, string(domain.RouteActive), exec.Routes[0].State)
	assert.Equal(t, domain.ActivityRouteReopened, f.activity.lastAction())
}
