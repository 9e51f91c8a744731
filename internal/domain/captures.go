package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Errors
var (
	ErrBadSerialNeedsScrapReason = errors.New("bad-condition serial capture requires a scrap reason")
	ErrInvalidCaptureQuantity    = errors.New("capture quantity must be positive")
)

// CaptureKind discriminates step capture rows within one collection
type CaptureKind string

const (
	CaptureUsage     CaptureKind = "usage"
	CaptureScrap     CaptureKind = "scrap"
	CaptureSerial    CaptureKind = "serial"
	CaptureChecklist CaptureKind = "checklist"
)

// SerialCondition marks a captured serial as good or bad
type SerialCondition string

const (
	SerialGood SerialCondition = "Good"
	SerialBad  SerialCondition = "Bad"
)

// ChecklistOutcome is the result recorded for one checklist item
type ChecklistOutcome string

const (
	ChecklistPassed  ChecklistOutcome = "Passed"
	ChecklistFailed  ChecklistOutcome = "Failed"
	ChecklistSkipped ChecklistOutcome = "Skipped"
)

// StepCapture is an append-only evidence row consumed by the completion rule
// evaluator. One collection holds all kinds, discriminated by Kind.
type StepCapture struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CaptureID string             `bson:"captureId"`
	Kind      CaptureKind        `bson:"kind"`
	StepID    string             `bson:"stepId"`
	LineID    string             `bson:"lineId"`
	OrderID   string             `bson:"orderId"`
	ActorID   string             `bson:"actorId"`

	// usage / scrap
	MaterialID    string  `bson:"materialId,omitempty"`
	Quantity      float64 `bson:"quantity,omitempty"`
	ScrapReasonID string  `bson:"scrapReasonId,omitempty"`

	// serial
	SerialNumber string          `bson:"serialNumber,omitempty"`
	Condition    SerialCondition `bson:"condition,omitempty"`

	// checklist
	ChecklistItemID string           `bson:"checklistItemId,omitempty"`
	ItemRequired    bool             `bson:"itemRequired,omitempty"`
	Outcome         ChecklistOutcome `bson:"outcome,omitempty"`

	RecordedAt time.Time `bson:"recordedAt"`
}

// NewUsageCapture records a material usage row for a step
func NewUsageCapture(captureID, orderID, lineID, stepID, actorID, materialID string, quantity float64, now time.Time) (*StepCapture, error) {
	if quantity <= 0 {
		return nil, ErrInvalidCaptureQuantity
	}
	return &StepCapture{
		CaptureID:  captureID,
		Kind:       CaptureUsage,
		OrderID:    orderID,
		LineID:     lineID,
		StepID:     stepID,
		ActorID:    actorID,
		MaterialID: materialID,
		Quantity:   quantity,
		RecordedAt: now,
	}, nil
}

// NewScrapCapture records a scrap entry for a step
func NewScrapCapture(captureID, orderID, lineID, stepID, actorID, materialID, scrapReasonID string, quantity float64, now time.Time) (*StepCapture, error) {
	if quantity <= 0 {
		return nil, ErrInvalidCaptureQuantity
	}
	return &StepCapture{
		CaptureID:     captureID,
		Kind:          CaptureScrap,
		OrderID:       orderID,
		LineID:        lineID,
		StepID:        stepID,
		ActorID:       actorID,
		MaterialID:    materialID,
		ScrapReasonID: scrapReasonID,
		Quantity:      quantity,
		RecordedAt:    now,
	}, nil
}

// NewSerialCapture records a serial capture. Bad-condition captures must
// reference a scrap reason when the owning step demands one; that rule is
// enforced at completion time against the step's flags.
func NewSerialCapture(captureID, orderID, lineID, stepID, actorID, serialNumber string, condition SerialCondition, scrapReasonID string, now time.Time) *StepCapture {
	return &StepCapture{
		CaptureID:     captureID,
		Kind:          CaptureSerial,
		OrderID:       orderID,
		LineID:        lineID,
		StepID:        stepID,
		ActorID:       actorID,
		SerialNumber:  serialNumber,
		Condition:     condition,
		ScrapReasonID: scrapReasonID,
		RecordedAt:    now,
	}
}

// NewChecklistCapture records one checklist item result
func NewChecklistCapture(captureID, orderID, lineID, stepID, actorID, checklistItemID string, itemRequired bool, outcome ChecklistOutcome, now time.Time) *StepCapture {
	return &StepCapture{
		CaptureID:       captureID,
		Kind:            CaptureChecklist,
		OrderID:         orderID,
		LineID:          lineID,
		StepID:          stepID,
		ActorID:         actorID,
		ChecklistItemID: checklistItemID,
		ItemRequired:    itemRequired,
		Outcome:         outcome,
		RecordedAt:      now,
	}
}
