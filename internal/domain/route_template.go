package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrTemplateNotFound     = errors.New("route template not found")
	ErrTemplateInactive     = errors.New("route template is not active")
	ErrTemplateInUse        = errors.New("route template is referenced and cannot be deleted")
	ErrDuplicateSequence    = errors.New("step sequence numbers must be unique within a template")
	ErrInvalidStepSequence  = errors.New("step sequence numbers must be greater than zero")
	ErrTemplateWithoutSteps = errors.New("route template requires at least one step")
)

// DataCaptureMode controls which completion evidence is collected electronically
type DataCaptureMode string

const (
	DataCaptureElectronicRequired DataCaptureMode = "ElectronicRequired"
	DataCaptureElectronicOptional DataCaptureMode = "ElectronicOptional"
	DataCapturePaperOnly          DataCaptureMode = "PaperOnly"
)

// TimeCaptureMode controls how step durations may be recorded and corrected
type TimeCaptureMode string

const (
	TimeCaptureAutomated TimeCaptureMode = "Automated"
	TimeCaptureManual    TimeCaptureMode = "Manual"
	TimeCaptureHybrid    TimeCaptureMode = "Hybrid"
)

// ChecklistFailurePolicy decides what a failed required checklist item does to completion
type ChecklistFailurePolicy string

const (
	ChecklistBlockCompletion             ChecklistFailurePolicy = "BlockCompletion"
	ChecklistAllowWithSupervisorOverride ChecklistFailurePolicy = "AllowWithSupervisorOverride"
)

// RouteTemplate is the aggregate root for the route catalog.
// Templates are immutable once referenced; instantiation snapshots the step list.
type RouteTemplate struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"`
	TemplateID   string              `bson:"templateId"`
	Code         string              `bson:"code"`
	Name         string              `bson:"name"`
	Active       bool                `bson:"active"`
	Version      int                 `bson:"version"`
	Steps        []RouteTemplateStep `bson:"steps"`
	CreatedAt    time.Time           `bson:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt"`
	DomainEvents []DomainEvent       `bson:"-"`
}

// RouteTemplateStep defines one operation within a route template
type RouteTemplateStep struct {
	Sequence        int             `bson:"sequence"`
	Code            string          `bson:"code"`
	Name            string          `bson:"name"`
	WorkCenterID    string          `bson:"workCenterId"`
	Required        bool            `bson:"required"`
	DataCaptureMode DataCaptureMode `bson:"dataCaptureMode"`
	TimeCaptureMode TimeCaptureMode `bson:"timeCaptureMode"`

	RequiresUsage              bool                   `bson:"requiresUsage"`
	RequiresScrap              bool                   `bson:"requiresScrap"`
	RequiresSerialCapture      bool                   `bson:"requiresSerialCapture"`
	RequireScrapReasonWhenBad  bool                   `bson:"requireScrapReasonWhenBad"`
	RequiresChecklist          bool                   `bson:"requiresChecklist"`
	ChecklistFailurePolicy     ChecklistFailurePolicy `bson:"checklistFailurePolicy,omitempty"`
	RequiresTrailer            bool                   `bson:"requiresTrailer"`
	RequiresSerialLoadVerify   bool                   `bson:"requiresSerialLoadVerify"`
	GeneratePackingSlip        bool                   `bson:"generatePackingSlip"`
	GenerateBOL                bool                   `bson:"generateBol"`
	RequiresAttachment         bool                   `bson:"requiresAttachment"`
	RequiresSupervisorApproval bool                   `bson:"requiresSupervisorApproval"`
}

// NewRouteTemplate creates a new route template aggregate
func NewRouteTemplate(templateID, code, name string, steps []RouteTemplateStep, now time.Time) (*RouteTemplate, error) {
	t := &RouteTemplate{
		TemplateID:   templateID,
		Code:         code,
		Name:         name,
		Active:       true,
		Version:      1,
		Steps:        steps,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	if err := t.validateSteps(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *RouteTemplate) validateSteps() error {
	if len(t.Steps) == 0 {
		return ErrTemplateWithoutSteps
	}

	seen := make(map[int]bool, len(t.Steps))
	for _, step := range t.Steps {
		if step.Sequence <= 0 {
			return ErrInvalidStepSequence
		}
		if seen[step.Sequence] {
			return fmt.Errorf("%w: sequence %d", ErrDuplicateSequence, step.Sequence)
		}
		seen[step.Sequence] = true

		if step.RequiresChecklist && step.ChecklistFailurePolicy == "" {
			return fmt.Errorf("step %d requires a checklist failure policy", step.Sequence)
		}
	}
	return nil
}

// ReplaceSteps swaps the step list and bumps the template version
func (t *RouteTemplate) ReplaceSteps(steps []RouteTemplateStep, now time.Time) error {
	old := t.Steps
	t.Steps = steps
	if err := t.validateSteps(); err != nil {
		t.Steps = old
		return err
	}
	t.Version++
	t.UpdatedAt = now
	return nil
}

// Deactivate marks the template inactive; it stays resolvable for existing instances
func (t *RouteTemplate) Deactivate(now time.Time) {
	t.Active = false
	t.UpdatedAt = now
}

// StepBySequence returns the template step with the given sequence
func (t *RouteTemplate) StepBySequence(sequence int) (*RouteTemplateStep, bool) {
	for i := range t.Steps {
		if t.Steps[i].Sequence == sequence {
			return &t.Steps[i], true
		}
	}
	return nil, false
}

// AnyStepRequiresSupervisorApproval reports whether any step carries the approval flag
func (t *RouteTemplate) AnyStepRequiresSupervisorApproval() bool {
	for _, step := range t.Steps {
		if step.RequiresSupervisorApproval {
			return true
		}
	}
	return false
}

// AddDomainEvent adds a domain event
func (t *RouteTemplate) AddDomainEvent(event DomainEvent) {
	t.DomainEvents = append(t.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (t *RouteTemplate) ClearDomainEvents() {
	t.DomainEvents = make([]DomainEvent, 0)
}
