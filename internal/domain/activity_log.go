package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivityAction names an audited state-changing action
type ActivityAction string

const (
	ActivityScanIn             ActivityAction = "ScanIn"
	ActivityScanOut            ActivityAction = "ScanOut"
	ActivityComplete           ActivityAction = "Complete"
	ActivityStepBlocked        ActivityAction = "StepBlocked"
	ActivityCaptureTrailer     ActivityAction = "CaptureTrailer"
	ActivityDurationCorrected  ActivityAction = "DurationCorrected"
	ActivitySerialLoadVerified ActivityAction = "SerialLoadVerified"
	ActivityPackingSlip        ActivityAction = "PackingSlipGenerated"
	ActivityBOL                ActivityAction = "BolGenerated"
	ActivityRouteValidated     ActivityAction = "RouteValidated"
	ActivityRouteAdjusted      ActivityAction = "RouteAdjusted"
	ActivityRouteReopened      ActivityAction = "RouteReopened"
	ActivityOrderApproved      ActivityAction = "OrderApproved"
	ActivityOrderRejected      ActivityAction = "OrderRejected"
	ActivityReworkRequested    ActivityAction = "ReworkRequested"
	ActivityReworkApproved     ActivityAction = "ReworkApproved"
	ActivityReworkStarted      ActivityAction = "ReworkStarted"
	ActivityReworkVerification ActivityAction = "ReworkVerificationSubmitted"
	ActivityReworkClosed       ActivityAction = "ReworkClosed"
	ActivityReworkCancelled    ActivityAction = "ReworkCancelled"
	ActivityReworkScrapped     ActivityAction = "ReworkScrapped"
)

// ActivityLogEntry is an append-only audit record. Entries are never mutated
// or deleted once written.
type ActivityLogEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EntryID    string             `bson:"entryId"`
	Action     ActivityAction     `bson:"action"`
	OrderID    string             `bson:"orderId"`
	LineID     string             `bson:"lineId,omitempty"`
	StepID     string             `bson:"stepId,omitempty"`
	ActorID    string             `bson:"actorId"`
	ActorRole  Role               `bson:"actorRole"`
	Device     string             `bson:"device,omitempty"`
	Notes      string             `bson:"notes,omitempty"`
	FromState  string             `bson:"fromState,omitempty"`
	ToState    string             `bson:"toState,omitempty"`
	OccurredAt time.Time          `bson:"occurredAt"`
}
