package application

import "github.com/mes-platform/route-execution-service/internal/domain"

// ActorContext identifies who performs an operation. Passed explicitly so the
// engine never reads ambient request state.
type ActorContext struct {
	EmployeeID string
	Role       domain.Role
	Device     string
}

// Catalog commands

// TemplateStepInput defines one step when creating or updating a template
type TemplateStepInput struct {
	Sequence        int
	Code            string
	Name            string
	WorkCenterID    string
	Required        bool
	DataCaptureMode domain.DataCaptureMode
	TimeCaptureMode domain.TimeCaptureMode

	RequiresUsage              bool
	RequiresScrap              bool
	RequiresSerialCapture      bool
	RequireScrapReasonWhenBad  bool
	RequiresChecklist          bool
	ChecklistFailurePolicy     domain.ChecklistFailurePolicy
	RequiresTrailer            bool
	RequiresSerialLoadVerify   bool
	GeneratePackingSlip        bool
	GenerateBOL                bool
	RequiresAttachment         bool
	RequiresSupervisorApproval bool
}

// CreateTemplateCommand creates a route template
type CreateTemplateCommand struct {
	Code  string
	Name  string
	Steps []TemplateStepInput
}

// UpdateTemplateCommand replaces a template's step list
type UpdateTemplateCommand struct {
	TemplateID string
	Name       string
	Steps      []TemplateStepInput
}

// CreateAssignmentCommand creates a route assignment rule
type CreateAssignmentCommand struct {
	TemplateID string

	CustomerID *string
	SiteID     *string
	ItemID     *string
	ItemType   *string

	PriorityMin *int
	PriorityMax *int
	PickupViaID *string
	ShipViaID   *string

	Priority      int
	EffectiveFrom string // RFC3339
	EffectiveTo   *string

	SupervisorApprovalOverride *bool
}

// UpdateAssignmentCommand revises an assignment rule
type UpdateAssignmentCommand struct {
	AssignmentID               string
	TemplateID                 string
	Priority                   int
	Active                     bool
	EffectiveFrom              string
	EffectiveTo                *string
	SupervisorApprovalOverride *bool
}

// ResolveAssignmentQuery dry-runs tier matching for an order-line shape
type ResolveAssignmentQuery struct {
	CustomerID    string
	SiteID        string
	ItemID        string
	ItemType      string
	OrderPriority int
	PickupViaID   string
	ShipViaID     string
}

// Order commands

// OrderLineInput defines one order line at creation
type OrderLineInput struct {
	ItemID      string
	ItemType    string
	Quantity    float64
	PriorityNo  int
	PickupViaID string
	ShipViaID   string
	Serials     []string
}

// CreateOrderCommand creates a production order
type CreateOrderCommand struct {
	OrderNumber string
	CustomerID  string
	SiteID      string
	Lines       []OrderLineInput
}

// Execution commands; every mutating command carries the actor

// InstantiateRoutesCommand materializes routes for all unrouted lines
type InstantiateRoutesCommand struct {
	OrderID string
	Actor   ActorContext
}

// StepCommand addresses one step instance
type StepCommand struct {
	OrderID string
	LineID  string
	StepID  string
	Actor   ActorContext
}

// CompleteStepCommand completes a step after gate evaluation
type CompleteStepCommand struct {
	OrderID string
	LineID  string
	StepID  string
	Actor   ActorContext

	SupervisorOverride *SupervisorOverrideInput
	VerifiedSerials    []string
}

// SupervisorOverrideInput carries checklist override credentials
type SupervisorOverrideInput struct {
	EmployeeID string
	Reason     string
	Role       domain.Role
}

// RecordUsageCommand records a material usage row
type RecordUsageCommand struct {
	OrderID    string
	LineID     string
	StepID     string
	MaterialID string
	Quantity   float64
	Actor      ActorContext
}

// RecordScrapCommand records a scrap entry
type RecordScrapCommand struct {
	OrderID       string
	LineID        string
	StepID        string
	MaterialID    string
	ScrapReasonID string
	Quantity      float64
	Actor         ActorContext
}

// RecordSerialCommand records a serial capture
type RecordSerialCommand struct {
	OrderID       string
	LineID        string
	StepID        string
	SerialNumber  string
	Condition     domain.SerialCondition
	ScrapReasonID string
	Actor         ActorContext
}

// RecordChecklistCommand records one checklist item result
type RecordChecklistCommand struct {
	OrderID         string
	LineID          string
	StepID          string
	ChecklistItemID string
	ItemRequired    bool
	Outcome         domain.ChecklistOutcome
	Actor           ActorContext
}

// CorrectDurationCommand applies an operator duration correction
type CorrectDurationCommand struct {
	OrderID string
	LineID  string
	StepID  string
	Minutes float64
	Reason  string
	Actor   ActorContext
}

// CaptureTrailerCommand records the order's trailer number
type CaptureTrailerCommand struct {
	OrderID       string
	TrailerNumber string
	Actor         ActorContext
}

// VerifySerialLoadCommand records a serial-load verification
type VerifySerialLoadCommand struct {
	OrderID string
	LineID  string
	Serials []string
	Actor   ActorContext
}

// GenerateDocumentCommand issues a packing slip or BOL
type GenerateDocumentCommand struct {
	OrderID string
	Actor   ActorContext
}

// UploadAttachmentCommand stores attachment bytes and metadata
type UploadAttachmentCommand struct {
	OrderID     string
	FileName    string
	ContentType string
	Category    string
	Data        []byte
	Actor       ActorContext
}

// Review / approval commands

// RouteReviewCommand addresses one route instance for review actions
type RouteReviewCommand struct {
	OrderID    string
	InstanceID string
	Actor      ActorContext
}

// AdjustRouteCommand applies review-time step adjustments
type AdjustRouteCommand struct {
	OrderID     string
	InstanceID  string
	Adjustments []domain.StepAdjustment
	Actor       ActorContext
}

// ReopenRouteCommand returns a completed route to Active
type ReopenRouteCommand struct {
	OrderID    string
	InstanceID string
	StepID     string
	Actor      ActorContext
}

// ApproveOrderCommand records supervisor approval
type ApproveOrderCommand struct {
	OrderID string
	Actor   ActorContext
}

// RejectOrderCommand withdraws approval with a reason
type RejectOrderCommand struct {
	OrderID string
	Reason  string
	Actor   ActorContext
}

// Rework commands

// RequestReworkCommand opens rework against a step
type RequestReworkCommand struct {
	OrderID  string
	LineID   string
	StepID   string
	Reason   string
	Elevated bool
	Actor    ActorContext
}

// ReworkTransitionCommand advances an existing rework
type ReworkTransitionCommand struct {
	ReworkID      string
	Justification string
	Note          string
	Actor         ActorContext
}

// Queries

// GetOrderQuery fetches one order
type GetOrderQuery struct {
	OrderID string
}

// GetOrderRouteExecutionQuery fetches the full execution view
type GetOrderRouteExecutionQuery struct {
	OrderID string
}

// GetQueueQuery lists workable steps at a work center
type GetQueueQuery struct {
	WorkCenterID string
}

// GetActivityLogQuery fetches the audit trail for an order
type GetActivityLogQuery struct {
	OrderID string
	Limit   int64
}
