package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrRouteInstanceNotFound = errors.New("route instance not found")
	ErrStepNotFound          = errors.New("step instance not found")
	ErrStepWrongState        = errors.New("step is not in a valid state for this action")
	ErrPriorStepIncomplete   = errors.New("a prior required step must be completed first")
	ErrCorrectionNotAllowed  = errors.New("duration correction is invalid for automated time capture")
	ErrInvalidDuration       = errors.New("duration minutes must be greater than zero")
	ErrCorrectionNeedsReason = errors.New("duration correction requires a non-blank reason")
	ErrCorrectionNeedsRole   = errors.New("duration correction on hybrid steps is not allowed for this role")
	ErrRouteNotCompleted     = errors.New("route is not completed")
	ErrRouteAlreadyCompleted = errors.New("route is already completed")
)

// RouteState is the lifecycle of a materialized route
type RouteState string

const (
	RouteActive    RouteState = "Active"
	RouteCompleted RouteState = "Completed"
)

// StepState is the lifecycle of one step instance
type StepState string

const (
	StepPending    StepState = "Pending"
	StepInProgress StepState = "InProgress"
	StepCompleted  StepState = "Completed"
	StepBlocked    StepState = "Blocked"
)

// RouteReviewState tracks the route review workflow
type RouteReviewState string

const (
	ReviewPending   RouteReviewState = "Pending"
	ReviewValidated RouteReviewState = "Validated"
	ReviewAdjusted  RouteReviewState = "Adjusted"
)

// TimeCaptureSource tags how a step duration was recorded
type TimeCaptureSource string

const (
	SourceSystemScan     TimeCaptureSource = "SystemScan"
	SourceManualEntry    TimeCaptureSource = "ManualEntry"
	SourceManualOverride TimeCaptureSource = "ManualOverride"
)

const reworkBlockPrefix = "Rework-"

// StepInstance is one trackable operation within a route instance. The
// template step definition is snapshotted at instantiation time.
type StepInstance struct {
	StepID string `bson:"stepId"`

	RouteTemplateStep `bson:",inline"`

	State StepState `bson:"state"`

	ScanInUtc   *time.Time `bson:"scanInUtc,omitempty"`
	ScanOutUtc  *time.Time `bson:"scanOutUtc,omitempty"`
	ScannedInBy string     `bson:"scannedInBy,omitempty"`

	DurationMinutes       *float64          `bson:"durationMinutes,omitempty"`
	ManualDurationMinutes *float64          `bson:"manualDurationMinutes,omitempty"`
	DurationReason        string            `bson:"durationReason,omitempty"`
	TimeCaptureSource     TimeCaptureSource `bson:"timeCaptureSource,omitempty"`

	CompletedUtc *time.Time `bson:"completedUtc,omitempty"`
	CompletedBy  string     `bson:"completedBy,omitempty"`

	BlockedReason string `bson:"blockedReason,omitempty"`
}

// RouteInstance is a materialized route bound to one order line. It owns its
// step instances exclusively and references the order by id only.
type RouteInstance struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	InstanceID string             `bson:"instanceId"`
	OrderID    string             `bson:"orderId"`
	LineID     string             `bson:"lineId"`

	TemplateID      string `bson:"templateId"`
	TemplateVersion int    `bson:"templateVersion"`
	AssignmentID    string `bson:"assignmentId"`
	MatchedTier     string `bson:"matchedTier"`

	State       RouteState       `bson:"state"`
	ReviewState RouteReviewState `bson:"reviewState"`

	// Point-in-time snapshot; template changes never retroactively affect it
	RequiresSupervisorApproval bool `bson:"requiresSupervisorApproval"`

	Steps []StepInstance `bson:"steps"`

	CompletedAt  *time.Time    `bson:"completedAt,omitempty"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
	DomainEvents []DomainEvent `bson:"-"`
}

// NewRouteInstance materializes a route from a template snapshot. stepID
// generation is injected so ids stay deterministic under test.
func NewRouteInstance(instanceID, orderID, lineID string, template *RouteTemplate, assignment *RouteAssignment, tier AssignmentTier, newStepID func() string, now time.Time) *RouteInstance {
	requiresApproval := template.AnyStepRequiresSupervisorApproval()
	if assignment.SupervisorApprovalOverride != nil {
		requiresApproval = *assignment.SupervisorApprovalOverride
	}

	steps := make([]StepInstance, 0, len(template.Steps))
	for _, ts := range template.Steps {
		steps = append(steps, StepInstance{
			StepID:            newStepID(),
			RouteTemplateStep: ts,
			State:             StepPending,
		})
	}

	r := &RouteInstance{
		InstanceID:                 instanceID,
		OrderID:                    orderID,
		LineID:                     lineID,
		TemplateID:                 template.TemplateID,
		TemplateVersion:            template.Version,
		AssignmentID:               assignment.AssignmentID,
		MatchedTier:                tier.String(),
		State:                      RouteActive,
		ReviewState:                ReviewPending,
		RequiresSupervisorApproval: requiresApproval,
		Steps:                      steps,
		CreatedAt:                  now,
		UpdatedAt:                  now,
		DomainEvents:               make([]DomainEvent, 0),
	}

	r.AddDomainEvent(&RouteInstantiatedEvent{
		InstanceID:     instanceID,
		OrderID:        orderID,
		LineID:         lineID,
		TemplateID:     template.TemplateID,
		MatchedTier:    tier.String(),
		StepCount:      len(steps),
		MaterializedAt: now,
	})

	return r
}

// Step returns the step instance with the given id
func (r *RouteInstance) Step(stepID string) (*StepInstance, error) {
	for i := range r.Steps {
		if r.Steps[i].StepID == stepID {
			return &r.Steps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s on route %s", ErrStepNotFound, stepID, r.InstanceID)
}

// priorRequiredIncomplete returns the first earlier required step that is not
// yet completed, or nil.
func (r *RouteInstance) priorRequiredIncomplete(sequence int) *StepInstance {
	for i := range r.Steps {
		s := &r.Steps[i]
		if s.Sequence < sequence && s.Required && s.State != StepCompleted {
			return s
		}
	}
	return nil
}

// ScanIn starts work on a step. Allowed from Pending or Blocked, and only when
// every earlier required step in the route is completed.
func (r *RouteInstance) ScanIn(stepID, actorID string, now time.Time) error {
	step, err := r.Step(stepID)
	if err != nil {
		return err
	}

	if step.State != StepPending && step.State != StepBlocked {
		return fmt.Errorf("%w: cannot scan in from %s", ErrStepWrongState, step.State)
	}

	if prior := r.priorRequiredIncomplete(step.Sequence); prior != nil {
		return fmt.Errorf("%w: step %d (%s) is %s", ErrPriorStepIncomplete, prior.Sequence, prior.Name, prior.State)
	}

	from := step.State
	step.State = StepInProgress
	step.ScanInUtc = &now
	step.ScannedInBy = actorID
	step.BlockedReason = ""
	r.UpdatedAt = now

	r.AddDomainEvent(&StepScannedInEvent{
		InstanceID:   r.InstanceID,
		OrderID:      r.OrderID,
		StepID:       stepID,
		Sequence:     step.Sequence,
		WorkCenterID: step.WorkCenterID,
		FromState:    string(from),
		ActorID:      actorID,
		ScannedAt:    now,
	})
	return nil
}

// ScanOut records the end of hands-on work and computes the elapsed duration.
// Duration stays unset when there was no scan-in timestamp.
func (r *RouteInstance) ScanOut(stepID, actorID string, now time.Time) error {
	step, err := r.Step(stepID)
	if err != nil {
		return err
	}

	if step.State != StepInProgress {
		return fmt.Errorf("%w: cannot scan out from %s", ErrStepWrongState, step.State)
	}

	step.ScanOutUtc = &now
	if step.ScanInUtc != nil {
		minutes := now.Sub(*step.ScanInUtc).Minutes()
		if minutes < 0 {
			minutes = 0
		}
		step.DurationMinutes = &minutes
		step.TimeCaptureSource = SourceSystemScan
	}
	r.UpdatedAt = now

	r.AddDomainEvent(&StepScannedOutEvent{
		InstanceID:      r.InstanceID,
		OrderID:         r.OrderID,
		StepID:          stepID,
		Sequence:        step.Sequence,
		DurationMinutes: step.DurationMinutes,
		ActorID:         actorID,
		ScannedAt:       now,
	})
	return nil
}

// CompleteStep finishes a step after all gates have passed. The caller runs
// the completion rule evaluator before invoking this. Returns true when the
// whole route became completed.
func (r *RouteInstance) CompleteStep(stepID, actorID string, now time.Time) (bool, error) {
	step, err := r.Step(stepID)
	if err != nil {
		return false, err
	}

	if step.State != StepInProgress {
		return false, fmt.Errorf("%w: cannot complete from %s", ErrStepWrongState, step.State)
	}

	step.State = StepCompleted
	step.CompletedUtc = &now
	step.CompletedBy = actorID
	r.UpdatedAt = now

	r.AddDomainEvent(&StepCompletedEvent{
		InstanceID:   r.InstanceID,
		OrderID:      r.OrderID,
		StepID:       stepID,
		Sequence:     step.Sequence,
		WorkCenterID: step.WorkCenterID,
		ActorID:      actorID,
		CompletedAt:  now,
	})

	if r.allRequiredStepsCompleted() && r.State != RouteCompleted {
		r.State = RouteCompleted
		r.CompletedAt = &now

		r.AddDomainEvent(&RouteCompletedEvent{
			InstanceID:  r.InstanceID,
			OrderID:     r.OrderID,
			LineID:      r.LineID,
			CompletedAt: now,
		})
		return true, nil
	}
	return false, nil
}

// WouldCompleteRoute reports whether completing the given step would finish
// the route. Used to apply order-approval gating on the final completion.
func (r *RouteInstance) WouldCompleteRoute(stepID string) bool {
	if r.State == RouteCompleted {
		return false
	}
	for i := range r.Steps {
		s := &r.Steps[i]
		if s.StepID == stepID || !s.Required {
			continue
		}
		if s.State != StepCompleted {
			return false
		}
	}
	return true
}

func (r *RouteInstance) allRequiredStepsCompleted() bool {
	for i := range r.Steps {
		if r.Steps[i].Required && r.Steps[i].State != StepCompleted {
			return false
		}
	}
	return true
}

// BlockStep forces a step into Blocked with the given reason
func (r *RouteInstance) BlockStep(stepID, reason string, now time.Time) error {
	step, err := r.Step(stepID)
	if err != nil {
		return err
	}

	if step.State == StepCompleted {
		// Rework on a completed step re-opens it as blocked
		step.CompletedUtc = nil
		step.CompletedBy = ""
		if r.State == RouteCompleted {
			r.State = RouteActive
			r.CompletedAt = nil
		}
	}

	from := step.State
	step.State = StepBlocked
	step.BlockedReason = reason
	r.UpdatedAt = now

	r.AddDomainEvent(&StepBlockedEvent{
		InstanceID: r.InstanceID,
		OrderID:    r.OrderID,
		StepID:     stepID,
		Reason:     reason,
		FromState:  string(from),
		BlockedAt:  now,
	})
	return nil
}

// SetReworkBlock tags a step blocked for a rework state
func (r *RouteInstance) SetReworkBlock(stepID string, reworkState string, now time.Time) error {
	return r.BlockStep(stepID, reworkBlockPrefix+reworkState, now)
}

// ReleaseReworkBlock restores a step to InProgress when it was blocked for
// rework reasons. Steps blocked for other reasons are left untouched.
func (r *RouteInstance) ReleaseReworkBlock(stepID string, now time.Time) error {
	step, err := r.Step(stepID)
	if err != nil {
		return err
	}

	if step.State != StepBlocked || !strings.HasPrefix(step.BlockedReason, reworkBlockPrefix) {
		return nil
	}

	step.State = StepInProgress
	step.BlockedReason = ""
	r.UpdatedAt = now
	return nil
}

// IsReworkBlocked reports whether the step is blocked for a rework state
func (s *StepInstance) IsReworkBlocked() bool {
	return s.State == StepBlocked && strings.HasPrefix(s.BlockedReason, reworkBlockPrefix)
}

// CorrectDuration applies an operator duration correction gated by the step's
// time-capture mode: Automated rejects corrections, Manual accepts any
// positive value, Hybrid needs a reason and a privileged role.
func (r *RouteInstance) CorrectDuration(stepID string, minutes float64, reason string, role Role, now time.Time) error {
	step, err := r.Step(stepID)
	if err != nil {
		return err
	}

	if minutes <= 0 {
		return ErrInvalidDuration
	}

	var source TimeCaptureSource
	switch step.TimeCaptureMode {
	case TimeCaptureAutomated:
		return ErrCorrectionNotAllowed
	case TimeCaptureManual:
		source = SourceManualEntry
	case TimeCaptureHybrid:
		if !role.IsPrivileged() {
			return fmt.Errorf("%w: %s", ErrCorrectionNeedsRole, role)
		}
		if strings.TrimSpace(reason) == "" {
			return ErrCorrectionNeedsReason
		}
		source = SourceManualOverride
	default:
		return fmt.Errorf("unknown time capture mode %q", step.TimeCaptureMode)
	}

	step.DurationMinutes = &minutes
	step.ManualDurationMinutes = &minutes
	step.DurationReason = strings.TrimSpace(reason)
	step.TimeCaptureSource = source
	r.UpdatedAt = now

	r.AddDomainEvent(&DurationCorrectedEvent{
		InstanceID:  r.InstanceID,
		OrderID:     r.OrderID,
		StepID:      stepID,
		Minutes:     minutes,
		Source:      string(source),
		CorrectedAt: now,
	})
	return nil
}

// Validate marks the route review as validated
func (r *RouteInstance) Validate(now time.Time) {
	r.ReviewState = ReviewValidated
	r.UpdatedAt = now

	r.AddDomainEvent(&RouteValidatedEvent{
		InstanceID:  r.InstanceID,
		OrderID:     r.OrderID,
		ValidatedAt: now,
	})
}

// StepAdjustment toggles capture flags on one step during route review
type StepAdjustment struct {
	StepID            string
	Required          *bool
	DataCaptureMode   *DataCaptureMode
	RequiresUsage     *bool
	RequiresScrap     *bool
	RequiresChecklist *bool
}

// Adjust applies review-time adjustments to non-completed steps and marks the
// route Adjusted. Completed steps cannot be adjusted.
func (r *RouteInstance) Adjust(adjustments []StepAdjustment, now time.Time) error {
	for _, adj := range adjustments {
		step, err := r.Step(adj.StepID)
		if err != nil {
			return err
		}
		if step.State == StepCompleted {
			return fmt.Errorf("%w: completed step %s cannot be adjusted", ErrStepWrongState, adj.StepID)
		}

		if adj.Required != nil {
			step.Required = *adj.Required
		}
		if adj.DataCaptureMode != nil {
			step.DataCaptureMode = *adj.DataCaptureMode
		}
		if adj.RequiresUsage != nil {
			step.RequiresUsage = *adj.RequiresUsage
		}
		if adj.RequiresScrap != nil {
			step.RequiresScrap = *adj.RequiresScrap
		}
		if adj.RequiresChecklist != nil {
			step.RequiresChecklist = *adj.RequiresChecklist
		}
	}

	r.ReviewState = ReviewAdjusted
	r.UpdatedAt = now

	r.AddDomainEvent(&RouteAdjustedEvent{
		InstanceID: r.InstanceID,
		OrderID:    r.OrderID,
		AdjustedAt: now,
	})
	return nil
}

// Reopen returns a completed route to Active and the chosen step to InProgress
func (r *RouteInstance) Reopen(stepID string, now time.Time) error {
	if r.State != RouteCompleted {
		return ErrRouteNotCompleted
	}

	step, err := r.Step(stepID)
	if err != nil {
		return err
	}

	r.State = RouteActive
	r.CompletedAt = nil
	step.State = StepInProgress
	step.CompletedUtc = nil
	step.CompletedBy = ""
	r.UpdatedAt = now

	r.AddDomainEvent(&RouteReopenedEvent{
		InstanceID: r.InstanceID,
		OrderID:    r.OrderID,
		StepID:     stepID,
		ReopenedAt: now,
	})
	return nil
}

// AddDomainEvent adds a domain event
func (r *RouteInstance) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *RouteInstance) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}
