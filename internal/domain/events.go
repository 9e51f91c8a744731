package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// RouteInstantiatedEvent is published when a route is materialized for a line
type RouteInstantiatedEvent struct {
	InstanceID     string    `json:"instanceId"`
	OrderID        string    `json:"orderId"`
	LineID         string    `json:"lineId"`
	TemplateID     string    `json:"templateId"`
	MatchedTier    string    `json:"matchedTier"`
	StepCount      int       `json:"stepCount"`
	MaterializedAt time.Time `json:"materializedAt"`
}

func (e *RouteInstantiatedEvent) EventType() string     { return "mes.route.instantiated" }
func (e *RouteInstantiatedEvent) OccurredAt() time.Time { return e.MaterializedAt }

// RouteCompletedEvent is published when every required step of a route is done
type RouteCompletedEvent struct {
	InstanceID  string    `json:"instanceId"`
	OrderID     string    `json:"orderId"`
	LineID      string    `json:"lineId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *RouteCompletedEvent) EventType() string     { return "mes.route.completed" }
func (e *RouteCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// RouteValidatedEvent is published when route review validates a route
type RouteValidatedEvent struct {
	InstanceID  string    `json:"instanceId"`
	OrderID     string    `json:"orderId"`
	ValidatedAt time.Time `json:"validatedAt"`
}

func (e *RouteValidatedEvent) EventType() string     { return "mes.route.validated" }
func (e *RouteValidatedEvent) OccurredAt() time.Time { return e.ValidatedAt }

// RouteAdjustedEvent is published when route review adjusts a route
type RouteAdjustedEvent struct {
	InstanceID string    `json:"instanceId"`
	OrderID    string    `json:"orderId"`
	AdjustedAt time.Time `json:"adjustedAt"`
}

func (e *RouteAdjustedEvent) EventType() string     { return "mes.route.adjusted" }
func (e *RouteAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }

// RouteReopenedEvent is published when a completed route is reopened
type RouteReopenedEvent struct {
	InstanceID string    `json:"instanceId"`
	OrderID    string    `json:"orderId"`
	StepID     string    `json:"stepId"`
	ReopenedAt time.Time `json:"reopenedAt"`
}

func (e *RouteReopenedEvent) EventType() string     { return "mes.route.reopened" }
func (e *RouteReopenedEvent) OccurredAt() time.Time { return e.ReopenedAt }

// StepScannedInEvent is published when an operator scans into a step
type StepScannedInEvent struct {
	InstanceID   string    `json:"instanceId"`
	OrderID      string    `json:"orderId"`
	StepID       string    `json:"stepId"`
	Sequence     int       `json:"sequence"`
	WorkCenterID string    `json:"workCenterId"`
	FromState    string    `json:"fromState"`
	ActorID      string    `json:"actorId"`
	ScannedAt    time.Time `json:"scannedAt"`
}

func (e *StepScannedInEvent) EventType() string     { return "mes.step.scanned-in" }
func (e *StepScannedInEvent) OccurredAt() time.Time { return e.ScannedAt }

// StepScannedOutEvent is published when an operator scans out of a step
type StepScannedOutEvent struct {
	InstanceID      string    `json:"instanceId"`
	OrderID         string    `json:"orderId"`
	StepID          string    `json:"stepId"`
	Sequence        int       `json:"sequence"`
	DurationMinutes *float64  `json:"durationMinutes,omitempty"`
	ActorID         string    `json:"actorId"`
	ScannedAt       time.Time `json:"scannedAt"`
}

func (e *StepScannedOutEvent) EventType() string     { return "mes.step.scanned-out" }
func (e *StepScannedOutEvent) OccurredAt() time.Time { return e.ScannedAt }

// StepCompletedEvent is published when a step passes its gates and completes
type StepCompletedEvent struct {
	InstanceID   string    `json:"instanceId"`
	OrderID      string    `json:"orderId"`
	StepID       string    `json:"stepId"`
	Sequence     int       `json:"sequence"`
	WorkCenterID string    `json:"workCenterId"`
	ActorID      string    `json:"actorId"`
	CompletedAt  time.Time `json:"completedAt"`
}

func (e *StepCompletedEvent) EventType() string     { return "mes.step.completed" }
func (e *StepCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// StepBlockedEvent is published when a step is forced into Blocked
type StepBlockedEvent struct {
	InstanceID string    `json:"instanceId"`
	OrderID    string    `json:"orderId"`
	StepID     string    `json:"stepId"`
	Reason     string    `json:"reason"`
	FromState  string    `json:"fromState"`
	BlockedAt  time.Time `json:"blockedAt"`
}

func (e *StepBlockedEvent) EventType() string     { return "mes.step.blocked" }
func (e *StepBlockedEvent) OccurredAt() time.Time { return e.BlockedAt }

// DurationCorrectedEvent is published when an operator corrects a duration
type DurationCorrectedEvent struct {
	InstanceID  string    `json:"instanceId"`
	OrderID     string    `json:"orderId"`
	StepID      string    `json:"stepId"`
	Minutes     float64   `json:"minutes"`
	Source      string    `json:"source"`
	CorrectedAt time.Time `json:"correctedAt"`
}

func (e *DurationCorrectedEvent) EventType() string     { return "mes.step.duration-corrected" }
func (e *DurationCorrectedEvent) OccurredAt() time.Time { return e.CorrectedAt }

// OrderCreatedEvent is published when a production order is created
type OrderCreatedEvent struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	CustomerID  string    `json:"customerId"`
	LineCount   int       `json:"lineCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e *OrderCreatedEvent) EventType() string     { return "mes.order.created" }
func (e *OrderCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// OrderInProductionEvent is published on the first scan across any route
type OrderInProductionEvent struct {
	OrderID   string    `json:"orderId"`
	StartedAt time.Time `json:"startedAt"`
}

func (e *OrderInProductionEvent) EventType() string     { return "mes.order.in-production" }
func (e *OrderInProductionEvent) OccurredAt() time.Time { return e.StartedAt }

// OrderProductionCompleteEvent is published when every route is completed
type OrderProductionCompleteEvent struct {
	OrderID     string    `json:"orderId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *OrderProductionCompleteEvent) EventType() string     { return "mes.order.production-complete" }
func (e *OrderProductionCompleteEvent) OccurredAt() time.Time { return e.CompletedAt }

// TrailerCapturedEvent is published when a trailer is assigned to the order
type TrailerCapturedEvent struct {
	OrderID       string    `json:"orderId"`
	TrailerNumber string    `json:"trailerNumber"`
	CapturedBy    string    `json:"capturedBy"`
	CapturedAt    time.Time `json:"capturedAt"`
}

func (e *TrailerCapturedEvent) EventType() string     { return "mes.order.trailer-captured" }
func (e *TrailerCapturedEvent) OccurredAt() time.Time { return e.CapturedAt }

// PackingSlipGeneratedEvent is published when a packing slip is issued
type PackingSlipGeneratedEvent struct {
	OrderID     string    `json:"orderId"`
	Number      string    `json:"number"`
	Revision    int       `json:"revision"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func (e *PackingSlipGeneratedEvent) EventType() string     { return "mes.order.packing-slip-generated" }
func (e *PackingSlipGeneratedEvent) OccurredAt() time.Time { return e.GeneratedAt }

// BolGeneratedEvent is published when a bill of lading is issued
type BolGeneratedEvent struct {
	OrderID     string    `json:"orderId"`
	Number      string    `json:"number"`
	Revision    int       `json:"revision"`
	GeneratedAt time.Time `json:"generatedAt"`
}

func (e *BolGeneratedEvent) EventType() string     { return "mes.order.bol-generated" }
func (e *BolGeneratedEvent) OccurredAt() time.Time { return e.GeneratedAt }

// OrderApprovedEvent is published on supervisor approval
type OrderApprovedEvent struct {
	OrderID    string    `json:"orderId"`
	ApprovedBy string    `json:"approvedBy"`
	ApprovedAt time.Time `json:"approvedAt"`
}

func (e *OrderApprovedEvent) EventType() string     { return "mes.order.approved" }
func (e *OrderApprovedEvent) OccurredAt() time.Time { return e.ApprovedAt }

// OrderRejectedEvent is published when approval is withdrawn
type OrderRejectedEvent struct {
	OrderID    string    `json:"orderId"`
	RejectedBy string    `json:"rejectedBy"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejectedAt"`
}

func (e *OrderRejectedEvent) EventType() string     { return "mes.order.rejected" }
func (e *OrderRejectedEvent) OccurredAt() time.Time { return e.RejectedAt }

// ReworkRequestedEvent is published when rework is opened against a step
type ReworkRequestedEvent struct {
	ReworkID    string    `json:"reworkId"`
	OrderID     string    `json:"orderId"`
	StepID      string    `json:"stepId"`
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requestedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

func (e *ReworkRequestedEvent) EventType() string     { return "mes.rework.requested" }
func (e *ReworkRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }

// ReworkTransitionedEvent is published on every rework state change
type ReworkTransitionedEvent struct {
	ReworkID   string    `json:"reworkId"`
	OrderID    string    `json:"orderId"`
	StepID     string    `json:"stepId"`
	ToState    string    `json:"toState"`
	ActorID    string    `json:"actorId"`
	OccurredOn time.Time `json:"occurredOn"`
}

func (e *ReworkTransitionedEvent) EventType() string {
	switch ReworkState(e.ToState) {
	case ReworkApproved:
		return "mes.rework.approved"
	case ReworkInProgress:
		return "mes.rework.started"
	case ReworkVerificationPending:
		return "mes.rework.verification-ready"
	case ReworkClosed:
		return "mes.rework.closed"
	case ReworkCancelled:
		return "mes.rework.cancelled"
	case ReworkScrapped:
		return "mes.rework.scrapped"
	default:
		return "mes.rework.transitioned"
	}
}
func (e *ReworkTransitionedEvent) OccurredAt() time.Time { return e.OccurredOn }
