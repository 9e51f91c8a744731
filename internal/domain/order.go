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
	ErrOrderNotFound        = errors.New("production order not found")
	ErrOrderLineNotFound    = errors.New("order line not found")
	ErrBlankTrailerNumber   = errors.New("trailer number is required and cannot be blank")
	ErrOrderNotApprovable   = errors.New("order does not require supervisor approval")
	ErrRejectionNeedsReason = errors.New("order rejection requires a non-blank reason")
	ErrOrderAlreadyInvoiced = errors.New("order has already been invoiced")
)

// OrderLifecycle is the primary order status
type OrderLifecycle string

const (
	LifecycleCreated            OrderLifecycle = "Created"
	LifecycleReadyForProduction OrderLifecycle = "ReadyForProduction"
	LifecycleInProduction       OrderLifecycle = "InProduction"
	LifecycleProductionComplete OrderLifecycle = "ProductionComplete"
	LifecycleReadyToShip        OrderLifecycle = "ReadyToShip"
	LifecycleShipped            OrderLifecycle = "Shipped"
	LifecycleInvoiced           OrderLifecycle = "Invoiced"
)

// lifecycleOrder fixes the progression sequence. Comparisons go through
// LifecycleRank so inserting a value out of order is caught by tests instead
// of silently reordering the progression.
var lifecycleOrder = []OrderLifecycle{
	LifecycleCreated,
	LifecycleReadyForProduction,
	LifecycleInProduction,
	LifecycleProductionComplete,
	LifecycleReadyToShip,
	LifecycleShipped,
	LifecycleInvoiced,
}

// LifecycleRank returns the position of a lifecycle value in the progression,
// or -1 for unknown values.
func LifecycleRank(l OrderLifecycle) int {
	for i, v := range lifecycleOrder {
		if v == l {
			return i
		}
	}
	return -1
}

// HasReached reports whether the lifecycle is at or past the given stage
func (l OrderLifecycle) HasReached(stage OrderLifecycle) bool {
	return LifecycleRank(l) >= LifecycleRank(stage) && LifecycleRank(stage) >= 0
}

// HoldOverlay tags a non-primary hold status layered over the lifecycle
type HoldOverlay string

const (
	HoldNone       HoldOverlay = ""
	HoldReworkOpen HoldOverlay = "rework-open"
)

// OrderSerial is a known physical serial on an order line
type OrderSerial struct {
	SerialNumber string `bson:"serialNumber"`
	Scrapped     bool   `bson:"scrapped"`
}

// OrderLine is one sales order line routed through production
type OrderLine struct {
	LineID      string        `bson:"lineId"`
	ItemID      string        `bson:"itemId"`
	ItemType    string        `bson:"itemType"`
	Quantity    float64       `bson:"quantity"`
	PriorityNo  int           `bson:"priorityNo"`
	PickupViaID string        `bson:"pickupViaId,omitempty"`
	ShipViaID   string        `bson:"shipViaId,omitempty"`
	Serials     []OrderSerial `bson:"serials,omitempty"`
}

// AttachmentMeta describes one stored attachment on the order
type AttachmentMeta struct {
	AttachmentID string    `bson:"attachmentId"`
	FileName     string    `bson:"fileName"`
	ContentType  string    `bson:"contentType"`
	Category     string    `bson:"category,omitempty"`
	BlobPath     string    `bson:"blobPath"`
	SizeBytes    int64     `bson:"sizeBytes"`
	UploadedBy   string    `bson:"uploadedBy"`
	UploadedAt   time.Time `bson:"uploadedAt"`
}

// GeneratedDocument records a packing slip or BOL issued for the order
type GeneratedDocument struct {
	Number      string    `bson:"number"`
	Revision    int       `bson:"revision"`
	BlobPath    string    `bson:"blobPath"`
	GeneratedAt time.Time `bson:"generatedAt"`
	GeneratedBy string    `bson:"generatedBy"`
}

// ProductionOrder is the order aggregate carrying the overlay fields mutated
// by the route execution engine.
type ProductionOrder struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OrderID     string             `bson:"orderId"`
	OrderNumber string             `bson:"orderNumber"`
	CustomerID  string             `bson:"customerId"`
	SiteID      string             `bson:"siteId"`

	Lifecycle    OrderLifecycle `bson:"lifecycle"`
	LegacyStatus string         `bson:"legacyStatus"`

	HoldOverlay         HoldOverlay `bson:"holdOverlay,omitempty"`
	HasOpenRework       bool        `bson:"hasOpenRework"`
	ReworkBlocksInvoice bool        `bson:"reworkBlocksInvoice"`

	TrailerNumber string `bson:"trailerNumber,omitempty"`

	PackingSlip *GeneratedDocument `bson:"packingSlip,omitempty"`
	BOL         *GeneratedDocument `bson:"bol,omitempty"`

	Approved       bool       `bson:"approved"`
	ApprovedBy     string     `bson:"approvedBy,omitempty"`
	ApprovedAt     *time.Time `bson:"approvedAt,omitempty"`
	RejectedReason string     `bson:"rejectedReason,omitempty"`

	Lines       []OrderLine      `bson:"lines"`
	Attachments []AttachmentMeta `bson:"attachments,omitempty"`

	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
	DomainEvents []DomainEvent `bson:"-"`
}

// NewProductionOrder creates an order ready for route instantiation
func NewProductionOrder(orderID, orderNumber, customerID, siteID string, lines []OrderLine, now time.Time) (*ProductionOrder, error) {
	if len(lines) == 0 {
		return nil, errors.New("order requires at least one line")
	}

	o := &ProductionOrder{
		OrderID:      orderID,
		OrderNumber:  orderNumber,
		CustomerID:   customerID,
		SiteID:       siteID,
		Lifecycle:    LifecycleReadyForProduction,
		LegacyStatus: "Open",
		Lines:        lines,
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	o.AddDomainEvent(&OrderCreatedEvent{
		OrderID:     orderID,
		OrderNumber: orderNumber,
		CustomerID:  customerID,
		LineCount:   len(lines),
		CreatedAt:   now,
	})

	return o, nil
}

// Line returns the order line with the given id
func (o *ProductionOrder) Line(lineID string) (*OrderLine, error) {
	for i := range o.Lines {
		if o.Lines[i].LineID == lineID {
			return &o.Lines[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s on order %s", ErrOrderLineNotFound, lineID, o.OrderID)
}

// ExpectedSerials returns the non-scrapped serials known for a line
func (o *ProductionOrder) ExpectedSerials(lineID string) ([]string, error) {
	line, err := o.Line(lineID)
	if err != nil {
		return nil, err
	}
	serials := make([]string, 0, len(line.Serials))
	for _, s := range line.Serials {
		if !s.Scrapped {
			serials = append(serials, s.SerialNumber)
		}
	}
	return serials, nil
}

// MarkInProduction flips the lifecycle on the first scan across any route.
// Returns true when the transition actually happened.
func (o *ProductionOrder) MarkInProduction(now time.Time) bool {
	if o.Lifecycle != LifecycleReadyForProduction {
		return false
	}
	o.Lifecycle = LifecycleInProduction
	o.LegacyStatus = "InProduction"
	o.UpdatedAt = now

	o.AddDomainEvent(&OrderInProductionEvent{
		OrderID:   o.OrderID,
		StartedAt: now,
	})
	return true
}

// MarkProductionComplete advances the order once every route is completed
func (o *ProductionOrder) MarkProductionComplete(now time.Time) {
	if o.Lifecycle.HasReached(LifecycleProductionComplete) {
		return
	}
	o.Lifecycle = LifecycleProductionComplete
	o.LegacyStatus = "ReadyToShip"
	o.UpdatedAt = now

	o.AddDomainEvent(&OrderProductionCompleteEvent{
		OrderID:     o.OrderID,
		CompletedAt: now,
	})
}

// CaptureTrailer records the trailer assigned to the order
func (o *ProductionOrder) CaptureTrailer(trailerNumber, actorID string, now time.Time) error {
	if strings.TrimSpace(trailerNumber) == "" {
		return ErrBlankTrailerNumber
	}
	o.TrailerNumber = strings.TrimSpace(trailerNumber)
	o.UpdatedAt = now

	o.AddDomainEvent(&TrailerCapturedEvent{
		OrderID:       o.OrderID,
		TrailerNumber: o.TrailerNumber,
		CapturedBy:    actorID,
		CapturedAt:    now,
	})
	return nil
}

// GeneratePackingSlip issues or re-issues the packing slip number. The number
// is stable per order; regeneration appends a revision suffix.
func (o *ProductionOrder) GeneratePackingSlip(actorID string, now time.Time) *GeneratedDocument {
	doc := nextDocument(o.PackingSlip, "PS-"+o.OrderNumber, actorID, now)
	o.PackingSlip = doc
	o.UpdatedAt = now

	o.AddDomainEvent(&PackingSlipGeneratedEvent{
		OrderID:     o.OrderID,
		Number:      doc.Number,
		Revision:    doc.Revision,
		GeneratedAt: now,
	})
	return doc
}

// GenerateBOL issues or re-issues the bill of lading number
func (o *ProductionOrder) GenerateBOL(actorID string, now time.Time) *GeneratedDocument {
	doc := nextDocument(o.BOL, "BOL-"+o.OrderNumber, actorID, now)
	o.BOL = doc
	o.UpdatedAt = now

	o.AddDomainEvent(&BolGeneratedEvent{
		OrderID:     o.OrderID,
		Number:      doc.Number,
		Revision:    doc.Revision,
		GeneratedAt: now,
	})
	return doc
}

func nextDocument(current *GeneratedDocument, baseNumber, actorID string, now time.Time) *GeneratedDocument {
	revision := 0
	if current != nil {
		revision = current.Revision + 1
	}
	number := baseNumber
	if revision > 0 {
		number = fmt.Sprintf("%s-R%d", baseNumber, revision)
	}
	return &GeneratedDocument{
		Number:      number,
		Revision:    revision,
		GeneratedAt: now,
		GeneratedBy: actorID,
	}
}

// Approve records supervisor approval of the order
func (o *ProductionOrder) Approve(actorID string, now time.Time) {
	o.Approved = true
	o.ApprovedBy = actorID
	o.ApprovedAt = &now
	o.RejectedReason = ""
	o.UpdatedAt = now

	o.AddDomainEvent(&OrderApprovedEvent{
		OrderID:    o.OrderID,
		ApprovedBy: actorID,
		ApprovedAt: now,
	})
}

// Reject withdraws approval with a mandatory reason
func (o *ProductionOrder) Reject(actorID, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return ErrRejectionNeedsReason
	}
	o.Approved = false
	o.ApprovedBy = ""
	o.ApprovedAt = nil
	o.RejectedReason = strings.TrimSpace(reason)
	o.UpdatedAt = now

	o.AddDomainEvent(&OrderRejectedEvent{
		OrderID:    o.OrderID,
		RejectedBy: actorID,
		Reason:     o.RejectedReason,
		RejectedAt: now,
	})
	return nil
}

// ApplyReworkHold sets the rework overlay and invoice block
func (o *ProductionOrder) ApplyReworkHold(now time.Time) {
	o.HoldOverlay = HoldReworkOpen
	o.HasOpenRework = true
	o.ReworkBlocksInvoice = true
	o.UpdatedAt = now
}

// ClearReworkHold removes the rework overlay once no rework remains open
func (o *ProductionOrder) ClearReworkHold(now time.Time) {
	o.HoldOverlay = HoldNone
	o.HasOpenRework = false
	o.ReworkBlocksInvoice = false
	o.UpdatedAt = now
}

// AddAttachment records attachment metadata after the bytes are stored
func (o *ProductionOrder) AddAttachment(meta AttachmentMeta, now time.Time) {
	o.Attachments = append(o.Attachments, meta)
	o.UpdatedAt = now
}

// HasAttachments reports whether the order has any attachment in any category
func (o *ProductionOrder) HasAttachments() bool {
	return len(o.Attachments) > 0
}

// AddDomainEvent adds a domain event
func (o *ProductionOrder) AddDomainEvent(event DomainEvent) {
	o.DomainEvents = append(o.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (o *ProductionOrder) ClearDomainEvents() {
	o.DomainEvents = make([]DomainEvent, 0)
}
