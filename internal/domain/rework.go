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
	ErrReworkNotFound          = errors.New("rework not found")
	ErrReworkInvalidTransition = errors.New("rework transition is not allowed from the current state")
	ErrReworkNeedsReason       = errors.New("rework requires a non-blank reason")
	ErrElevatedNeedsReason     = errors.New("elevated rework approval requires a non-blank justification")
)

// ReworkState is the rework sub-machine state
type ReworkState string

const (
	ReworkRequested           ReworkState = "Requested"
	ReworkApproved            ReworkState = "Approved"
	ReworkInProgress          ReworkState = "InProgress"
	ReworkVerificationPending ReworkState = "VerificationPending"
	ReworkClosed              ReworkState = "Closed"
	ReworkCancelled           ReworkState = "Cancelled"
	ReworkScrapped            ReworkState = "Scrapped"
)

// reworkTransitions is the allowed forward-transition table. Cancelled and
// Scrapped are reachable from every non-terminal state.
var reworkTransitions = map[ReworkState][]ReworkState{
	ReworkRequested:           {ReworkApproved, ReworkCancelled, ReworkScrapped},
	ReworkApproved:            {ReworkInProgress, ReworkCancelled, ReworkScrapped},
	ReworkInProgress:          {ReworkVerificationPending, ReworkCancelled, ReworkScrapped},
	ReworkVerificationPending: {ReworkClosed, ReworkCancelled, ReworkScrapped},
}

// IsTerminal reports whether the state ends the rework track
func (s ReworkState) IsTerminal() bool {
	switch s {
	case ReworkClosed, ReworkCancelled, ReworkScrapped:
		return true
	}
	return false
}

// Rework is a parallel state track that suspends a step and its order
// regardless of the main step state.
type Rework struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	ReworkID string             `bson:"reworkId"`
	OrderID  string             `bson:"orderId"`
	LineID   string             `bson:"lineId"`
	StepID   string             `bson:"stepId"`

	State    ReworkState `bson:"state"`
	Reason   string      `bson:"reason"`
	Elevated bool        `bson:"elevated"`

	RequestedBy string     `bson:"requestedBy"`
	RequestedAt time.Time  `bson:"requestedAt"`
	ApprovedBy  string     `bson:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `bson:"approvedAt,omitempty"`
	StartedBy   string     `bson:"startedBy,omitempty"`
	StartedAt   *time.Time `bson:"startedAt,omitempty"`
	VerifiedBy  string     `bson:"verifiedBy,omitempty"`
	VerifiedAt  *time.Time `bson:"verifiedAt,omitempty"`
	ClosedBy    string     `bson:"closedBy,omitempty"`
	ClosedAt    *time.Time `bson:"closedAt,omitempty"`
	OutcomeNote string     `bson:"outcomeNote,omitempty"`

	UpdatedAt    time.Time     `bson:"updatedAt"`
	DomainEvents []DomainEvent `bson:"-"`
}

// NewRework opens a rework request against a step
func NewRework(reworkID, orderID, lineID, stepID, reason, requestedBy string, elevated bool, now time.Time) (*Rework, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReworkNeedsReason
	}

	r := &Rework{
		ReworkID:     reworkID,
		OrderID:      orderID,
		LineID:       lineID,
		StepID:       stepID,
		State:        ReworkRequested,
		Reason:       strings.TrimSpace(reason),
		Elevated:     elevated,
		RequestedBy:  requestedBy,
		RequestedAt:  now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}

	r.AddDomainEvent(&ReworkRequestedEvent{
		ReworkID:    reworkID,
		OrderID:     orderID,
		StepID:      stepID,
		Reason:      r.Reason,
		RequestedBy: requestedBy,
		RequestedAt: now,
	})
	return r, nil
}

func (r *Rework) transition(to ReworkState, now time.Time) error {
	for _, allowed := range reworkTransitions[r.State] {
		if allowed == to {
			r.State = to
			r.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrReworkInvalidTransition, r.State, to)
}

// Approve moves Requested -> Approved. Elevated rework requires a non-blank
// justification.
func (r *Rework) Approve(actorID, justification string, now time.Time) error {
	if r.Elevated && strings.TrimSpace(justification) == "" {
		return ErrElevatedNeedsReason
	}
	if err := r.transition(ReworkApproved, now); err != nil {
		return err
	}
	r.ApprovedBy = actorID
	r.ApprovedAt = &now

	r.AddDomainEvent(&ReworkTransitionedEvent{
		ReworkID:   r.ReworkID,
		OrderID:    r.OrderID,
		StepID:     r.StepID,
		ToState:    string(ReworkApproved),
		ActorID:    actorID,
		OccurredOn: now,
	})
	return nil
}

// Start moves Approved -> InProgress
func (r *Rework) Start(actorID string, now time.Time) error {
	if err := r.transition(ReworkInProgress, now); err != nil {
		return err
	}
	r.StartedBy = actorID
	r.StartedAt = &now

	r.AddDomainEvent(&ReworkTransitionedEvent{
		ReworkID:   r.ReworkID,
		OrderID:    r.OrderID,
		StepID:     r.StepID,
		ToState:    string(ReworkInProgress),
		ActorID:    actorID,
		OccurredOn: now,
	})
	return nil
}

// SubmitVerification moves InProgress -> VerificationPending
func (r *Rework) SubmitVerification(actorID, note string, now time.Time) error {
	if err := r.transition(ReworkVerificationPending, now); err != nil {
		return err
	}
	r.VerifiedBy = actorID
	r.VerifiedAt = &now
	r.OutcomeNote = strings.TrimSpace(note)

	r.AddDomainEvent(&ReworkTransitionedEvent{
		ReworkID:   r.ReworkID,
		OrderID:    r.OrderID,
		StepID:     r.StepID,
		ToState:    string(ReworkVerificationPending),
		ActorID:    actorID,
		OccurredOn: now,
	})
	return nil
}

// Close moves VerificationPending -> Closed
func (r *Rework) Close(actorID string, now time.Time) error {
	if err := r.transition(ReworkClosed, now); err != nil {
		return err
	}
	r.ClosedBy = actorID
	r.ClosedAt = &now

	r.AddDomainEvent(&ReworkTransitionedEvent{
		ReworkID:   r.ReworkID,
		OrderID:    r.OrderID,
		StepID:     r.StepID,
		ToState:    string(ReworkClosed),
		ActorID:    actorID,
		OccurredOn: now,
	})
	return nil
}

// Cancel terminates the rework without completing it
func (r *Rework) Cancel(actorID, reason string, now time.Time) error {
	if err := r.transition(ReworkCancelled, now); err != nil {
		return err
	}
	r.ClosedBy = actorID
	r.ClosedAt = &now
	r.OutcomeNote = strings.TrimSpace(reason)

	r.AddDomainEvent(&ReworkTransitionedEvent{
		ReworkID:   r.ReworkID,
		OrderID:    r.OrderID,
		StepID:     r.StepID,
		ToState:    string(ReworkCancelled),
		ActorID:    actorID,
		OccurredOn: now,
	})
	return nil
}

// Scrap terminates the rework because the item was scrapped
func (r *Rework) Scrap(actorID, reason string, now time.Time) error {
	if err := r.transition(ReworkScrapped, now); err != nil {
		return err
	}
	r.ClosedBy = actorID
	r.ClosedAt = &now
	r.OutcomeNote = strings.TrimSpace(reason)

	r.AddDomainEvent(&ReworkTransitionedEvent{
		ReworkID:   r.ReworkID,
		OrderID:    r.OrderID,
		StepID:     r.StepID,
		ToState:    string(ReworkScrapped),
		ActorID:    actorID,
		OccurredOn: now,
	})
	return nil
}

// AddDomainEvent adds a domain event
func (r *Rework) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *Rework) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}
