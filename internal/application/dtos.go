package application

import "time"

// TemplateStepDTO is the API representation of a template step
type TemplateStepDTO struct {
	Sequence        int    `json:"sequence"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	WorkCenterID    string `json:"workCenterId"`
	Required        bool   `json:"required"`
	DataCaptureMode string `json:"dataCaptureMode"`
	TimeCaptureMode string `json:"timeCaptureMode"`

	RequiresUsage              bool   `json:"requiresUsage"`
	RequiresScrap              bool   `json:"requiresScrap"`
	RequiresSerialCapture      bool   `json:"requiresSerialCapture"`
	RequireScrapReasonWhenBad  bool   `json:"requireScrapReasonWhenBad"`
	RequiresChecklist          bool   `json:"requiresChecklist"`
	ChecklistFailurePolicy     string `json:"checklistFailurePolicy,omitempty"`
	RequiresTrailer            bool   `json:"requiresTrailer"`
	RequiresSerialLoadVerify   bool   `json:"requiresSerialLoadVerify"`
	GeneratePackingSlip        bool   `json:"generatePackingSlip"`
	GenerateBOL                bool   `json:"generateBol"`
	RequiresAttachment         bool   `json:"requiresAttachment"`
	RequiresSupervisorApproval bool   `json:"requiresSupervisorApproval"`
}

// TemplateDTO is the API representation of a route template
type TemplateDTO struct {
	TemplateID string            `json:"templateId"`
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Active     bool              `json:"active"`
	Version    int               `json:"version"`
	Steps      []TemplateStepDTO `json:"steps"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// AssignmentDTO is the API representation of a route assignment
type AssignmentDTO struct {
	AssignmentID string  `json:"assignmentId"`
	TemplateID   string  `json:"templateId"`
	CustomerID   *string `json:"customerId,omitempty"`
	SiteID       *string `json:"siteId,omitempty"`
	ItemID       *string `json:"itemId,omitempty"`
	ItemType     *string `json:"itemType,omitempty"`
	PriorityMin  *int    `json:"priorityMin,omitempty"`
	PriorityMax  *int    `json:"priorityMax,omitempty"`
	PickupViaID  *string `json:"pickupViaId,omitempty"`
	ShipViaID    *string `json:"shipViaId,omitempty"`

	Priority      int        `json:"priority"`
	Revision      int        `json:"revision"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
	Active        bool       `json:"active"`
}

// ResolutionDTO is the result of a dry-run tier match
type ResolutionDTO struct {
	AssignmentID string `json:"assignmentId"`
	TemplateID   string `json:"templateId"`
	Tier         int    `json:"tier"`
	TierLabel    string `json:"tierLabel"`
}

// StepInstanceDTO is the API representation of a step instance
type StepInstanceDTO struct {
	StepID       string `json:"stepId"`
	Sequence     int    `json:"sequence"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	WorkCenterID string `json:"workCenterId"`
	Required     bool   `json:"required"`
	State        string `json:"state"`

	DataCaptureMode string `json:"dataCaptureMode"`
	TimeCaptureMode string `json:"timeCaptureMode"`

	ScanInUtc  *time.Time `json:"scanInUtc,omitempty"`
	ScanOutUtc *time.Time `json:"scanOutUtc,omitempty"`

	DurationMinutes       *float64 `json:"durationMinutes,omitempty"`
	ManualDurationMinutes *float64 `json:"manualDurationMinutes,omitempty"`
	TimeCaptureSource     string   `json:"timeCaptureSource,omitempty"`

	CompletedUtc  *time.Time `json:"completedUtc,omitempty"`
	CompletedBy   string     `json:"completedBy,omitempty"`
	BlockedReason string     `json:"blockedReason,omitempty"`
}

// RouteInstanceDTO is the API representation of a materialized route
type RouteInstanceDTO struct {
	InstanceID                 string            `json:"instanceId"`
	OrderID                    string            `json:"orderId"`
	LineID                     string            `json:"lineId"`
	TemplateID                 string            `json:"templateId"`
	TemplateVersion            int               `json:"templateVersion"`
	MatchedTier                string            `json:"matchedTier"`
	State                      string            `json:"state"`
	ReviewState                string            `json:"reviewState"`
	RequiresSupervisorApproval bool              `json:"requiresSupervisorApproval"`
	Steps                      []StepInstanceDTO `json:"steps"`
	CompletedAt                *time.Time        `json:"completedAt,omitempty"`
}

// DocumentDTO is a generated packing slip or BOL
type DocumentDTO struct {
	Number      string    `json:"number"`
	Revision    int       `json:"revision"`
	GeneratedAt time.Time `json:"generatedAt"`
	GeneratedBy string    `json:"generatedBy"`
}

// OrderLineDTO is the API representation of an order line
type OrderLineDTO struct {
	LineID     string   `json:"lineId"`
	ItemID     string   `json:"itemId"`
	ItemType   string   `json:"itemType"`
	Quantity   float64  `json:"quantity"`
	PriorityNo int      `json:"priorityNo"`
	Serials    []string `json:"serials,omitempty"`
}

// OrderDTO is the API representation of a production order
type OrderDTO struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	CustomerID  string `json:"customerId"`
	SiteID      string `json:"siteId"`

	Lifecycle    string `json:"lifecycle"`
	LegacyStatus string `json:"legacyStatus"`

	HoldOverlay         string `json:"holdOverlay,omitempty"`
	HasOpenRework       bool   `json:"hasOpenRework"`
	ReworkBlocksInvoice bool   `json:"reworkBlocksInvoice"`

	TrailerNumber string       `json:"trailerNumber,omitempty"`
	PackingSlip   *DocumentDTO `json:"packingSlip,omitempty"`
	BOL           *DocumentDTO `json:"bol,omitempty"`

	Approved       bool   `json:"approved"`
	RejectedReason string `json:"rejectedReason,omitempty"`

	Lines           []OrderLineDTO `json:"lines"`
	AttachmentCount int            `json:"attachmentCount"`

	CreatedAt time.Time `json:"createdAt"`
}

// OrderExecutionDTO is the refreshed route-execution view returned by every
// mutating operation.
type OrderExecutionDTO struct {
	Order  OrderDTO           `json:"order"`
	Routes []RouteInstanceDTO `json:"routes"`
}

// QueueItemDTO is one workable step in a work-center queue
type QueueItemDTO struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	LineID      string `json:"lineId"`
	InstanceID  string `json:"instanceId"`
	StepID      string `json:"stepId"`
	Sequence    int    `json:"sequence"`
	StepName    string `json:"stepName"`
	State       string `json:"state"`
	PriorityNo  int    `json:"priorityNo"`
}

// ActivityLogDTO is one audit trail entry
type ActivityLogDTO struct {
	EntryID    string    `json:"entryId"`
	Action     string    `json:"action"`
	OrderID    string    `json:"orderId"`
	LineID     string    `json:"lineId,omitempty"`
	StepID     string    `json:"stepId,omitempty"`
	ActorID    string    `json:"actorId"`
	ActorRole  string    `json:"actorRole"`
	Device     string    `json:"device,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	FromState  string    `json:"fromState,omitempty"`
	ToState    string    `json:"toState,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ReworkDTO is the API representation of a rework track
type ReworkDTO struct {
	ReworkID    string     `json:"reworkId"`
	OrderID     string     `json:"orderId"`
	LineID      string     `json:"lineId"`
	StepID      string     `json:"stepId"`
	State       string     `json:"state"`
	Reason      string     `json:"reason"`
	Elevated    bool       `json:"elevated"`
	RequestedBy string     `json:"requestedBy"`
	RequestedAt time.Time  `json:"requestedAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
	OutcomeNote string     `json:"outcomeNote,omitempty"`
}
