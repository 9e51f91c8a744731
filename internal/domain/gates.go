package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Gate names a completion precondition for error reporting and metrics
type Gate string

const (
	GateActor         Gate = "actor"
	GateUsage         Gate = "usage"
	GateScrap         Gate = "scrap"
	GateSerialCapture Gate = "serial-capture"
	GateChecklist     Gate = "checklist"
	GateAttachment    Gate = "attachment"
	GateSerialLoad    Gate = "serial-load-verification"
	GateTrailer       Gate = "trailer"
	GatePackingSlip   Gate = "packing-slip"
	GateBOL           Gate = "bol"
)

// GateError reports the first unmet completion gate with a reason operators
// can act on.
type GateError struct {
	Gate   Gate
	Reason string
}

// Error implements the error interface
func (e *GateError) Error() string { return e.Reason }

func gateFailed(gate Gate, format string, args ...interface{}) *GateError {
	return &GateError{Gate: gate, Reason: fmt.Sprintf(format, args...)}
}

// SupervisorOverride carries the override credentials supplied on a
// completion request when a failed checklist needs supervisor sign-off.
type SupervisorOverride struct {
	EmployeeID string
	Reason     string
	Role       Role
}

// CompletionRequest is the per-call context for a completion attempt
type CompletionRequest struct {
	ActorID            string
	ActorRole          Role
	SupervisorOverride *SupervisorOverride

	// Serial numbers verified as loaded, either inline on the request or
	// resolved by the caller from the latest SerialLoadVerified audit note
	VerifiedSerials []string

	// Non-scrapped serials known for the order line; empty when untracked
	ExpectedSerials []string
}

// CompletionEvaluator checks every gate attached to a step before the state
// machine allows a Completed transition.
type CompletionEvaluator struct {
	roles RoleChecker
}

// NewCompletionEvaluator creates the evaluator
func NewCompletionEvaluator(roles RoleChecker) *CompletionEvaluator {
	return &CompletionEvaluator{roles: roles}
}

// Evaluate returns nil when every applicable gate passes, or a GateError for
// the first unmet gate. PaperOnly steps skip the electronic-capture gates;
// operational gates apply regardless of capture mode.
func (e *CompletionEvaluator) Evaluate(ctx context.Context, step *StepInstance, captures []*StepCapture, order *ProductionOrder, req CompletionRequest) error {
	if strings.TrimSpace(req.ActorID) == "" {
		return gateFailed(GateActor, "An actor employee id is required before completion.")
	}

	if step.DataCaptureMode != DataCapturePaperOnly {
		if err := e.evaluateElectronicGates(ctx, step, captures, order, req); err != nil {
			return err
		}
	}

	return e.evaluateOperationalGates(step, order)
}

func (e *CompletionEvaluator) evaluateElectronicGates(ctx context.Context, step *StepInstance, captures []*StepCapture, order *ProductionOrder, req CompletionRequest) error {
	byKind := make(map[CaptureKind][]*StepCapture)
	for _, c := range captures {
		byKind[c.Kind] = append(byKind[c.Kind], c)
	}

	if step.RequiresUsage && len(byKind[CaptureUsage]) == 0 {
		return gateFailed(GateUsage, "Usage entry is required before completion.")
	}

	if step.RequiresScrap && len(byKind[CaptureScrap]) == 0 {
		return gateFailed(GateScrap, "A scrap entry is required before completion.")
	}

	if step.RequiresSerialCapture {
		serials := byKind[CaptureSerial]
		if len(serials) == 0 {
			return gateFailed(GateSerialCapture, "At least one serial capture is required before completion.")
		}
		if step.RequireScrapReasonWhenBad {
			for _, c := range serials {
				if c.Condition == SerialBad && strings.TrimSpace(c.ScrapReasonID) == "" {
					return gateFailed(GateSerialCapture, "Serial %s is marked Bad and must reference a scrap reason.", c.SerialNumber)
				}
			}
		}
	}

	if step.RequiresChecklist {
		if err := e.evaluateChecklist(ctx, step, byKind[CaptureChecklist], req); err != nil {
			return err
		}
	}

	if step.RequiresAttachment && !order.HasAttachments() {
		return gateFailed(GateAttachment, "An attachment on the order is required before completion.")
	}

	if step.RequiresSerialLoadVerify {
		if err := evaluateSerialLoad(req.VerifiedSerials, req.ExpectedSerials); err != nil {
			return err
		}
	}

	return nil
}

func (e *CompletionEvaluator) evaluateChecklist(ctx context.Context, step *StepInstance, results []*StepCapture, req CompletionRequest) error {
	if len(results) == 0 {
		return gateFailed(GateChecklist, "A checklist result is required before completion.")
	}

	requiredFailed := false
	for _, c := range results {
		if c.ItemRequired && c.Outcome == ChecklistFailed {
			requiredFailed = true
			break
		}
	}
	if !requiredFailed {
		return nil
	}

	switch step.ChecklistFailurePolicy {
	case ChecklistBlockCompletion:
		return gateFailed(GateChecklist, "Checklist failed required items and policy blocks completion.")
	case ChecklistAllowWithSupervisorOverride:
		override := req.SupervisorOverride
		if override == nil || strings.TrimSpace(override.EmployeeID) == "" || strings.TrimSpace(override.Reason) == "" {
			return gateFailed(GateChecklist, "Checklist failed required items; a supervisor override with employee id and reason is required.")
		}
		if err := e.roles.EnsureAllowed(ctx, override.Role, ActionChecklistOverride); err != nil {
			return gateFailed(GateChecklist, "Checklist override role %s is not authorized for supervisor override.", override.Role)
		}
		return nil
	default:
		return gateFailed(GateChecklist, "Checklist failed required items and no failure policy is configured.")
	}
}

func evaluateSerialLoad(verified, expected []string) error {
	if len(verified) == 0 {
		return gateFailed(GateSerialLoad, "Serial load verification is required before completion.")
	}
	if len(expected) == 0 {
		return nil
	}

	missing, extra := diffSerials(verified, expected)
	if len(missing) > 0 || len(extra) > 0 {
		parts := make([]string, 0, 2)
		if len(missing) > 0 {
			parts = append(parts, "missing "+strings.Join(missing, ", "))
		}
		if len(extra) > 0 {
			parts = append(parts, "unexpected "+strings.Join(extra, ", "))
		}
		return gateFailed(GateSerialLoad, "Verified serials do not match the expected set: %s.", strings.Join(parts, "; "))
	}
	return nil
}

// diffSerials returns expected serials not verified (missing) and verified
// serials not expected (extra), both sorted.
func diffSerials(verified, expected []string) (missing, extra []string) {
	verifiedSet := make(map[string]bool, len(verified))
	for _, s := range verified {
		verifiedSet[strings.TrimSpace(s)] = true
	}
	expectedSet := make(map[string]bool, len(expected))
	for _, s := range expected {
		expectedSet[strings.TrimSpace(s)] = true
	}

	for s := range expectedSet {
		if !verifiedSet[s] {
			missing = append(missing, s)
		}
	}
	for s := range verifiedSet {
		if !expectedSet[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func (e *CompletionEvaluator) evaluateOperationalGates(step *StepInstance, order *ProductionOrder) error {
	if step.RequiresTrailer && strings.TrimSpace(order.TrailerNumber) == "" {
		return gateFailed(GateTrailer, "A trailer must be captured on the order before completion.")
	}

	if step.GeneratePackingSlip && order.PackingSlip == nil {
		return gateFailed(GatePackingSlip, "A packing slip must be generated before completion.")
	}

	if step.GenerateBOL && order.BOL == nil {
		return gateFailed(GateBOL, "A bill of lading must be generated before completion.")
	}

	return nil
}

// DiffSerials returns expected serials not verified and verified serials not
// expected, both sorted.
func DiffSerials(verified, expected []string) (missing, extra []string) {
	return diffSerials(verified, expected)
}

// FormatSerialLoadNote renders a serial list for a SerialLoadVerified
// activity note. ParseSerialLoadNote inverts it.
func FormatSerialLoadNote(serials []string) string {
	trimmed := make([]string, 0, len(serials))
	for _, s := range serials {
		if t := strings.TrimSpace(s); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return strings.Join(trimmed, ",")
}

// ParseSerialLoadNote parses the comma-separated serial list recorded in a
// SerialLoadVerified activity note.
func ParseSerialLoadNote(note string) []string {
	parts := strings.Split(note, ",")
	serials := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			serials = append(serials, s)
		}
	}
	return serials
}
