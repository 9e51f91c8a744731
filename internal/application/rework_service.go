package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/errors"
	"github.com/mes-platform/route-execution-service/pkg/logging"
	"github.com/mes-platform/route-execution-service/pkg/metrics"
)

// ReworkService runs the rework sub-machine: a parallel track that suspends
// a step and overlays a hold on its order until the track terminates.
type ReworkService struct {
	reworks  domain.ReworkRepository
	orders   domain.OrderRepository
	routes   domain.RouteInstanceRepository
	activity domain.ActivityLogRepository
	roles    domain.RoleChecker
	clock    domain.Clock
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewReworkService creates a new ReworkService
func NewReworkService(
	reworks domain.ReworkRepository,
	orders domain.OrderRepository,
	routes domain.RouteInstanceRepository,
	activity domain.ActivityLogRepository,
	roles domain.RoleChecker,
	clock domain.Clock,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReworkService {
	return &ReworkService{
		reworks:  reworks,
		orders:   orders,
		routes:   routes,
		activity: activity,
		roles:    roles,
		clock:    clock,
		metrics:  m,
		logger:   logger.WithComponent("rework"),
	}
}

// Request opens a rework track against a step. The step blocks and the order
// takes a rework hold immediately; both stay until the track terminates.
func (s *ReworkService) Request(ctx context.Context, cmd RequestReworkCommand) (*ReworkDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionRequestRework); err != nil {
		return nil, mapDomainErr(err)
	}

	order, route, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	open, err := s.reworks.FindOpenByStep(ctx, cmd.StepID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open rework: %w", err)
	}
	if open != nil {
		return nil, errors.ErrConflict(fmt.Sprintf("step already has open rework %s", open.ReworkID))
	}

	now := s.clock.Now()
	rework, err := domain.NewRework(uuid.New().String(), cmd.OrderID, cmd.LineID, cmd.StepID,
		cmd.Reason, cmd.Actor.EmployeeID, cmd.Elevated, now)
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if err := route.SetReworkBlock(cmd.StepID, string(rework.State), now); err != nil {
		return nil, mapDomainErr(err)
	}
	order.ApplyReworkHold(now)

	if err := s.reworks.Save(ctx, rework); err != nil {
		return nil, fmt.Errorf("failed to save rework: %w", err)
	}
	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.metrics.RecordReworkOpened()
	s.appendActivity(ctx, domain.ActivityReworkRequested, rework, cmd.Actor, cmd.Reason)
	s.logger.Info("Rework requested", "reworkId", rework.ReworkID, "orderId", cmd.OrderID, "stepId", cmd.StepID, "elevated", cmd.Elevated)
	return ToReworkDTO(rework), nil
}

// Approve moves a requested rework to Approved
func (s *ReworkService) Approve(ctx context.Context, cmd ReworkTransitionCommand) (*ReworkDTO, error) {
	return s.advance(ctx, cmd, domain.ActionApproveRework, domain.ActivityReworkApproved,
		func(r *domain.Rework) error {
			return r.Approve(cmd.Actor.EmployeeID, cmd.Justification, s.clock.Now())
		})
}

// Start moves an approved rework to InProgress
func (s *ReworkService) Start(ctx context.Context, cmd ReworkTransitionCommand) (*ReworkDTO, error) {
	return s.advance(ctx, cmd, domain.ActionStartRework, domain.ActivityReworkStarted,
		func(r *domain.Rework) error {
			return r.Start(cmd.Actor.EmployeeID, s.clock.Now())
		})
}

// SubmitVerification moves an in-progress rework to VerificationPending
func (s *ReworkService) SubmitVerification(ctx context.Context, cmd ReworkTransitionCommand) (*ReworkDTO, error) {
	return s.advance(ctx, cmd, domain.ActionSubmitReworkVerification, domain.ActivityReworkVerification,
		func(r *domain.Rework) error {
			return r.SubmitVerification(cmd.Actor.EmployeeID, cmd.Note, s.clock.Now())
		})
}

// Close completes a verification-pending rework and releases the step block
func (s *ReworkService) Close(ctx context.Context, cmd ReworkTransitionCommand) (*ReworkDTO, error) {
	return s.advance(ctx, cmd, domain.ActionCloseRework, domain.ActivityReworkClosed,
		func(r *domain.Rework) error {
			return r.Close(cmd.Actor.EmployeeID, s.clock.Now())
		})
}

// Cancel terminates a rework from any non-terminal state
func (s *ReworkService) Cancel(ctx context.Context, cmd ReworkTransitionCommand) (*ReworkDTO, error) {
	return s.advance(ctx, cmd, domain.ActionCancelRework, domain.ActivityReworkCancelled,
		func(r *domain.Rework) error {
			return r.Cancel(cmd.Actor.EmployeeID, cmd.Note, s.clock.Now())
		})
}

// Scrap terminates a rework because the item was scrapped
func (s *ReworkService) Scrap(ctx context.Context, cmd ReworkTransitionCommand) (*ReworkDTO, error) {
	return s.advance(ctx, cmd, domain.ActionScrapRework, domain.ActivityReworkScrapped,
		func(r *domain.Rework) error {
			return r.Scrap(cmd.Actor.EmployeeID, cmd.Note, s.clock.Now())
		})
}

// Get returns one rework track
func (s *ReworkService) Get(ctx context.Context, reworkID string) (*ReworkDTO, error) {
	rework, err := s.loadRework(ctx, reworkID)
	if err != nil {
		return nil, err
	}
	return ToReworkDTO(rework), nil
}

// ListOpenByOrder lists open rework tracks on an order
func (s *ReworkService) ListOpenByOrder(ctx context.Context, orderID string) ([]ReworkDTO, error) {
	reworks, err := s.reworks.FindOpenByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rework: %w", err)
	}
	dtos := make([]ReworkDTO, 0, len(reworks))
	for _, r := range reworks {
		dtos = append(dtos, *ToReworkDTO(r))
	}
	return dtos, nil
}

// advance runs one state transition and synchronizes the blocked step and
// order hold with the resulting state.
func (s *ReworkService) advance(
	ctx context.Context,
	cmd ReworkTransitionCommand,
	action domain.Action,
	activity domain.ActivityAction,
	apply func(*domain.Rework) error,
) (*ReworkDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, action); err != nil {
		return nil, mapDomainErr(err)
	}

	rework, err := s.loadRework(ctx, cmd.ReworkID)
	if err != nil {
		return nil, err
	}

	if err := apply(rework); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.reworks.Save(ctx, rework); err != nil {
		return nil, fmt.Errorf("failed to save rework: %w", err)
	}

	if err := s.syncBlockState(ctx, rework); err != nil {
		return nil, err
	}

	s.appendActivity(ctx, activity, rework, cmd.Actor, cmd.Note)
	s.logger.Info("Rework transitioned", "reworkId", rework.ReworkID, "state", rework.State)
	return ToReworkDTO(rework), nil
}

// syncBlockState updates the blocked step's reason to the current rework
// state, or releases the block and the order hold when the track terminates.
func (s *ReworkService) syncBlockState(ctx context.Context, rework *domain.Rework) error {
	routes, err := s.routes.FindByLine(ctx, rework.OrderID, rework.LineID)
	if err != nil {
		return fmt.Errorf("failed to load routes: %w", err)
	}

	now := s.clock.Now()
	for _, route := range routes {
		if _, err := route.Step(rework.StepID); err != nil {
			continue
		}

		if rework.State.IsTerminal() {
			err = route.ReleaseReworkBlock(rework.StepID, now)
		} else {
			err = route.SetReworkBlock(rework.StepID, string(rework.State), now)
		}
		if err != nil {
			return mapDomainErr(err)
		}
		if err := s.routes.Save(ctx, route); err != nil {
			return fmt.Errorf("failed to save route: %w", err)
		}
		break
	}

	if !rework.State.IsTerminal() {
		return nil
	}

	// The hold clears only when no other open rework remains on the order
	remaining, err := s.reworks.FindOpenByOrder(ctx, rework.OrderID)
	if err != nil {
		return fmt.Errorf("failed to check remaining rework: %w", err)
	}
	if len(remaining) > 0 {
		return nil
	}

	order, err := s.orders.FindByID(ctx, rework.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil
	}
	order.ClearReworkHold(now)
	if err := s.orders.Save(ctx, order); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (s *ReworkService) loadRework(ctx context.Context, reworkID string) (*domain.Rework, error) {
	rework, err := s.reworks.FindByID(ctx, reworkID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rework: %w", err)
	}
	if rework == nil {
		return nil, mapDomainErr(fmt.Errorf("%w: %s", domain.ErrReworkNotFound, reworkID))
	}
	return rework, nil
}

// loadOrderAndRoute mirrors the execution-side lookup for the blocked step
func (s *ReworkService) loadOrderAndRoute(ctx context.Context, orderID, lineID, stepID string) (*domain.ProductionOrder, *domain.RouteInstance, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, nil, mapDomainErr(fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID))
	}

	routes, err := s.routes.FindByLine(ctx, orderID, lineID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load routes: %w", err)
	}
	for _, route := range routes {
		if _, err := route.Step(stepID); err == nil {
			return order, route, nil
		}
	}
	return nil, nil, mapDomainErr(fmt.Errorf("%w: step %s on line %s", domain.ErrStepNotFound, stepID, lineID))
}

func (s *ReworkService) appendActivity(ctx context.Context, action domain.ActivityAction, rework *domain.Rework, actor ActorContext, notes string) {
	entry := &domain.ActivityLogEntry{
		EntryID:    uuid.New().String(),
		Action:     action,
		OrderID:    rework.OrderID,
		LineID:     rework.LineID,
		StepID:     rework.StepID,
		ActorID:    actor.EmployeeID,
		ActorRole:  actor.Role,
		Device:     actor.Device,
		Notes:      notes,
		ToState:    string(rework.State),
		OccurredAt: s.clock.Now(),
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		s.logger.WithError(err).Error("Failed to append activity log", "reworkId", rework.ReworkID, "action", action)
	}
}
