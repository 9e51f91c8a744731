package cloudevents

import (
	"time"
)

// EventType constants for route-execution domain events
const (
	// Route lifecycle events
	RouteInstantiated = "mes.route.instantiated"
	RouteCompleted    = "mes.route.completed"
	RouteValidated    = "mes.route.validated"
	RouteAdjusted     = "mes.route.adjusted"
	RouteReopened     = "mes.route.reopened"

	// Step execution events
	StepScannedIn         = "mes.step.scanned-in"
	StepScannedOut        = "mes.step.scanned-out"
	StepCompleted         = "mes.step.completed"
	StepBlocked           = "mes.step.blocked"
	StepDurationCorrected = "mes.step.duration-corrected"

	// Order lifecycle events
	OrderCreated            = "mes.order.created"
	OrderInProduction       = "mes.order.in-production"
	OrderProductionComplete = "mes.order.production-complete"
	OrderApproved           = "mes.order.approved"
	OrderRejected           = "mes.order.rejected"
	TrailerCaptured         = "mes.order.trailer-captured"
	PackingSlipGenerated    = "mes.order.packing-slip-generated"
	BolGenerated            = "mes.order.bol-generated"

	// Rework events
	ReworkRequested         = "mes.rework.requested"
	ReworkApproved          = "mes.rework.approved"
	ReworkStarted           = "mes.rework.started"
	ReworkVerificationReady = "mes.rework.verification-ready"
	ReworkClosed            = "mes.rework.closed"
	ReworkCancelled         = "mes.rework.cancelled"
	ReworkScrapped          = "mes.rework.scrapped"
)

// MESCloudEvent represents a CloudEvents v1.0 compliant event for the MES platform
type MESCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// MES-specific extensions
	CorrelationID string `json:"mescorrelationid,omitempty"`
	OrderID       string `json:"mesorderid,omitempty"`
	WorkCenterID  string `json:"mesworkcenterid,omitempty"`
}
