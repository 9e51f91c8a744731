package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gateNow = time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC)

func gateStep(mutate func(*StepInstance)) *StepInstance {
	step := &StepInstance{
		StepID: "step-1",
		RouteTemplateStep: RouteTemplateStep{
			Sequence:        10,
			Code:            "PACK",
			Name:            "Packing",
			WorkCenterID:    "WC-PACK",
			Required:        true,
			DataCaptureMode: DataCaptureElectronicRequired,
			TimeCaptureMode: TimeCaptureManual,
		},
		State: StepInProgress,
	}
	if mutate != nil {
		mutate(step)
	}
	return step
}

func gateOrder() *ProductionOrder {
	return &ProductionOrder{
		OrderID:     "order-1",
		OrderNumber: "SO-1001",
		Lines:       []OrderLine{{LineID: "line-1", ItemID: "ITEM-1", Quantity: 2}},
	}
}

func baseRequest() CompletionRequest {
	return CompletionRequest{ActorID: "emp-1", ActorRole: RoleProduction}
}

func requireGate(t *testing.T, err error, gate Gate, reason string) {
	t.Helper()
	var gateErr *GateError
	require.ErrorAs(t, err, &gateErr)
	assert.Equal(t, gate, gateErr.Gate)
	assert.Equal(t, reason, gateErr.Reason)
}

func TestEvaluate_ActorGate(t *testing.T) {
	evaluator := NewCompletionEvaluator(NewStaticRoleChecker())
	req := baseRequest()
	req.ActorID = "  "

	err := evaluator.Evaluate(context.Background(), gateStep(nil), nil, gateOrder(), req)
	requireGate(t, err, GateActor, "An actor employee id is required before completion.")
}

func TestEvaluate_CaptureGates(t *testing.T) {
	evaluator := NewCompletionEvaluator(NewStaticRoleChecker())
	ctx := context.Background()

	t.Run("usage required and missing", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.RequiresUsage = true })
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateUsage, "Usage entry is required before completion.")
	})

	t.Run("usage satisfied by a capture row", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.RequiresUsage = true })
		usage, err := NewUsageCapture("c-1", "order-1", "line-1", "step-1", "emp-1", "MAT-1", 1, gateNow)
		require.NoError(t, err)

		err = evaluator.Evaluate(ctx, step, []*StepCapture{usage}, gateOrder(), baseRequest())
		assert.NoError(t, err)
	})

	t.Run("scrap required and missing", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.RequiresScrap = true })
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateScrap, "A scrap entry is required before completion.")
	})

	t.Run("serial capture required and missing", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.RequiresSerialCapture = true })
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateSerialCapture, "At least one serial capture is required before completion.")
	})

	t.Run("bad serial without scrap reason blocks when flagged", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) {
			s.RequiresSerialCapture = true
			s.RequireScrapReasonWhenBad = true
		})
		bad := NewSerialCapture("c-1", "order-1", "line-1", "step-1", "emp-1", "SN-9", SerialBad, "", gateNow)

		err := evaluator.Evaluate(ctx, step, []*StepCapture{bad}, gateOrder(), baseRequest())
		requireGate(t, err, GateSerialCapture, "Serial SN-9 is marked Bad and must reference a scrap reason.")
	})

	t.Run("bad serial with scrap reason passes", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) {
			s.RequiresSerialCapture = true
			s.RequireScrapReasonWhenBad = true
		})
		bad := NewSerialCapture("c-1", "order-1", "line-1", "step-1", "emp-1", "SN-9", SerialBad, "SR-2", gateNow)

		assert.NoError(t, evaluator.Evaluate(ctx, step, []*StepCapture{bad}, gateOrder(), baseRequest()))
	})

	t.Run("paper only skips electronic gates", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) {
			s.DataCaptureMode = DataCapturePaperOnly
			s.RequiresUsage = true
			s.RequiresSerialCapture = true
		})
		assert.NoError(t, evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest()))
	})

	t.Run("attachment required and missing", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.RequiresAttachment = true })
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateAttachment, "An attachment on the order is required before completion.")
	})

	t.Run("any attachment satisfies the gate", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.RequiresAttachment = true })
		order := gateOrder()
		order.AddAttachment(AttachmentMeta{AttachmentID: "att-1", FileName: "photo.jpg"}, gateNow)

		assert.NoError(t, evaluator.Evaluate(ctx, step, nil, order, baseRequest()))
	})
}

func TestEvaluate_ChecklistGate(t *testing.T) {
	evaluator := NewCompletionEvaluator(NewStaticRoleChecker())
	ctx := context.Background()

	checklistStep := func(policy ChecklistFailurePolicy) *StepInstance {
		return gateStep(func(s *StepInstance) {
			s.RequiresChecklist = true
			s.ChecklistFailurePolicy = policy
		})
	}
	failedItem := NewChecklistCapture("c-1", "order-1", "line-1", "step-1", "emp-1", "item-1", true, ChecklistFailed, gateNow)
	passedItem := NewChecklistCapture("c-2", "order-1", "line-1", "step-1", "emp-1", "item-2", true, ChecklistPassed, gateNow)
	failedOptional := NewChecklistCapture("c-3", "order-1", "line-1", "step-1", "emp-1", "item-3", false, ChecklistFailed, gateNow)

	t.Run("no results recorded", func(t *testing.T) {
		err := evaluator.Evaluate(ctx, checklistStep(ChecklistBlockCompletion), nil, gateOrder(), baseRequest())
		requireGate(t, err, GateChecklist, "A checklist result is required before completion.")
	})

	t.Run("all required items passing", func(t *testing.T) {
		err := evaluator.Evaluate(ctx, checklistStep(ChecklistBlockCompletion), []*StepCapture{passedItem, failedOptional}, gateOrder(), baseRequest())
		assert.NoError(t, err)
	})

	t.Run("required failure with block policy", func(t *testing.T) {
		err := evaluator.Evaluate(ctx, checklistStep(ChecklistBlockCompletion), []*StepCapture{failedItem}, gateOrder(), baseRequest())
		requireGate(t, err, GateChecklist, "Checklist failed required items and policy blocks completion.")
	})

	t.Run("override policy demands credentials", func(t *testing.T) {
		err := evaluator.Evaluate(ctx, checklistStep(ChecklistAllowWithSupervisorOverride), []*StepCapture{failedItem}, gateOrder(), baseRequest())
		requireGate(t, err, GateChecklist, "Checklist failed required items; a supervisor override with employee id and reason is required.")
	})

	t.Run("override with unprivileged role is refused", func(t *testing.T) {
		req := baseRequest()
		req.SupervisorOverride = &SupervisorOverride{EmployeeID: "emp-9", Reason: "verified manually", Role: RoleProduction}

		err := evaluator.Evaluate(ctx, checklistStep(ChecklistAllowWithSupervisorOverride), []*StepCapture{failedItem}, gateOrder(), req)
		var gateErr *GateError
		require.ErrorAs(t, err, &gateErr)
		assert.Equal(t, GateChecklist, gateErr.Gate)
	})

	t.Run("supervisor override passes", func(t *testing.T) {
		req := baseRequest()
		req.SupervisorOverride = &SupervisorOverride{EmployeeID: "emp-9", Reason: "verified manually", Role: RoleSupervisor}

		err := evaluator.Evaluate(ctx, checklistStep(ChecklistAllowWithSupervisorOverride), []*StepCapture{failedItem}, gateOrder(), req)
		assert.NoError(t, err)
	})
}

func TestEvaluate_SerialLoadGate(t *testing.T) {
	evaluator := NewCompletionEvaluator(NewStaticRoleChecker())
	ctx := context.Background()
	step := gateStep(func(s *StepInstance) { s.RequiresSerialLoadVerify = true })

	t.Run("no verification recorded", func(t *testing.T) {
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateSerialLoad, "Serial load verification is required before completion.")
	})

	t.Run("mismatch lists missing and unexpected serials", func(t *testing.T) {
		req := baseRequest()
		req.VerifiedSerials = []string{"SN-1", "SN-9"}
		req.ExpectedSerials = []string{"SN-1", "SN-2"}

		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), req)
		requireGate(t, err, GateSerialLoad, "Verified serials do not match the expected set: missing SN-2; unexpected SN-9.")
	})

	t.Run("exact match passes", func(t *testing.T) {
		req := baseRequest()
		req.VerifiedSerials = []string{"SN-2", "SN-1"}
		req.ExpectedSerials = []string{"SN-1", "SN-2"}

		assert.NoError(t, evaluator.Evaluate(ctx, step, nil, gateOrder(), req))
	})

	t.Run("untracked line accepts any verification", func(t *testing.T) {
		req := baseRequest()
		req.VerifiedSerials = []string{"SN-1"}

		assert.NoError(t, evaluator.Evaluate(ctx, step, nil, gateOrder(), req))
	})
}

func TestEvaluate_OperationalGates(t *testing.T) {
	evaluator := NewCompletionEvaluator(NewStaticRoleChecker())
	ctx := context.Background()

	t.Run("trailer required on the order", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.RequiresTrailer = true })
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateTrailer, "A trailer must be captured on the order before completion.")
	})

	t.Run("operational gates apply to paper-only steps too", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) {
			s.DataCaptureMode = DataCapturePaperOnly
			s.RequiresTrailer = true
		})
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateTrailer, "A trailer must be captured on the order before completion.")
	})

	t.Run("packing slip must exist", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.GeneratePackingSlip = true })
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GatePackingSlip, "A packing slip must be generated before completion.")
	})

	t.Run("bol must exist", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) { s.GenerateBOL = true })
		err := evaluator.Evaluate(ctx, step, nil, gateOrder(), baseRequest())
		requireGate(t, err, GateBOL, "A bill of lading must be generated before completion.")
	})

	t.Run("all operational artifacts present", func(t *testing.T) {
		step := gateStep(func(s *StepInstance) {
			s.RequiresTrailer = true
			s.GeneratePackingSlip = true
			s.GenerateBOL = true
		})
		order := gateOrder()
		require.NoError(t, order.CaptureTrailer("TRL-42", "emp-1", gateNow))
		order.GeneratePackingSlip("emp-1", gateNow)
		order.GenerateBOL("emp-1", gateNow)

		assert.NoError(t, evaluator.Evaluate(ctx, step, nil, order, baseRequest()))
	})
}

func TestSerialLoadNoteRoundTrip(t *testing.T) {
	note := FormatSerialLoadNote([]string{" SN-1", "SN-2 ", "", "SN-3"})
	assert.Equal(t, "SN-1,SN-2,SN-3", note)
	assert.Equal(t, []string{"SN-1", "SN-2", "SN-3"}, ParseSerialLoadNote(note))
	assert.Empty(t, ParseSerialLoadNote(""))
}

func TestDiffSerials(t *testing.T) {
	missing, extra := DiffSerials([]string{"SN-1", "SN-9"}, []string{"SN-1", "SN-2", "SN-3"})
	assert.Equal(t, []string{"SN-2", "SN-3"}, missing)
	assert.Equal(t, []string{"SN-9"}, extra)
}
