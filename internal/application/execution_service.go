package application

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/errors"
	"github.com/mes-platform/route-execution-service/pkg/logging"
	"github.com/mes-platform/route-execution-service/pkg/metrics"
)

// ExecutionService drives route instantiation and step execution
type ExecutionService struct {
	orders      domain.OrderRepository
	routes      domain.RouteInstanceRepository
	templates   domain.RouteTemplateRepository
	assignments domain.RouteAssignmentRepository
	captures    domain.CaptureRepository
	activity    domain.ActivityLogRepository
	evaluator   *domain.CompletionEvaluator
	roles       domain.RoleChecker
	blobs       domain.BlobStore
	clock       domain.Clock
	metrics     *metrics.Metrics
	logger      *logging.Logger
}

// NewExecutionService creates a new ExecutionService
func NewExecutionService(
	orders domain.OrderRepository,
	routes domain.RouteInstanceRepository,
	templates domain.RouteTemplateRepository,
	assignments domain.RouteAssignmentRepository,
	captures domain.CaptureRepository,
	activity domain.ActivityLogRepository,
	roles domain.RoleChecker,
	blobs domain.BlobStore,
	clock domain.Clock,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ExecutionService {
	return &ExecutionService{
		orders:      orders,
		routes:      routes,
		templates:   templates,
		assignments: assignments,
		captures:    captures,
		activity:    activity,
		evaluator:   domain.NewCompletionEvaluator(roles),
		roles:       roles,
		blobs:       blobs,
		clock:       clock,
		metrics:     m,
		logger:      logger.WithComponent("execution"),
	}
}

// CreateOrder creates a production order ready for route instantiation
func (s *ExecutionService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*OrderDTO, error) {
	existing, err := s.orders.FindByNumber(ctx, cmd.OrderNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check order number: %w", err)
	}
	if existing != nil {
		return nil, errors.ErrConflict(fmt.Sprintf("order %s already exists", cmd.OrderNumber))
	}

	lines := make([]domain.OrderLine, 0, len(cmd.Lines))
	for _, in := range cmd.Lines {
		serials := make([]domain.OrderSerial, 0, len(in.Serials))
		for _, sn := range in.Serials {
			serials = append(serials, domain.OrderSerial{SerialNumber: sn})
		}
		lines = append(lines, domain.OrderLine{
			LineID:      uuid.New().String(),
			ItemID:      in.ItemID,
			ItemType:    in.ItemType,
			Quantity:    in.Quantity,
			PriorityNo:  in.PriorityNo,
			PickupViaID: in.PickupViaID,
			ShipViaID:   in.ShipViaID,
			Serials:     serials,
		})
	}

	order, err := domain.NewProductionOrder(uuid.New().String(), cmd.OrderNumber, cmd.CustomerID, cmd.SiteID, lines, s.clock.Now())
	if err != nil {
		return nil, errors.ErrBadRequest(err.Error())
	}

	if err := s.orders.Save(ctx, order); err != nil {
		s.logger.WithError(err).Error("Failed to save order", "orderNumber", cmd.OrderNumber)
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("Created production order", "orderId", order.OrderID, "orderNumber", order.OrderNumber)
	dto := ToOrderDTO(order)
	return &dto, nil
}

// GetOrder fetches one order
func (s *ExecutionService) GetOrder(ctx context.Context, query GetOrderQuery) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}
	dto := ToOrderDTO(order)
	return &dto, nil
}

// InstantiateRoutes materializes a route for every order line that lacks a
// non-completed route. Idempotent per line; a line with no matching
// assignment fails the whole operation.
func (s *ExecutionService) InstantiateRoutes(ctx context.Context, cmd InstantiateRoutesCommand) (*OrderExecutionDTO, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.assignments.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignments: %w", err)
	}

	now := s.clock.Now()
	for _, line := range order.Lines {
		existing, err := s.routes.FindByLine(ctx, order.OrderID, line.LineID)
		if err != nil {
			return nil, fmt.Errorf("failed to load routes for line: %w", err)
		}
		if hasOpenRoute(existing) {
			continue
		}

		match, err := domain.ResolveAssignment(candidates, domain.MatchContext{
			CustomerID:    order.CustomerID,
			SiteID:        order.SiteID,
			ItemID:        line.ItemID,
			ItemType:      line.ItemType,
			OrderPriority: line.PriorityNo,
			PickupViaID:   line.PickupViaID,
			ShipViaID:     line.ShipViaID,
			Now:           now,
		})
		if err != nil {
			s.logger.Warn("No route assignment for line", "orderId", order.OrderID, "lineId", line.LineID, "itemId", line.ItemID)
			return nil, mapDomainErr(fmt.Errorf("%w: line %s (item %s)", domain.ErrNoMatchingRoute, line.LineID, line.ItemID))
		}

		template, err := s.templates.FindByID(ctx, match.Assignment.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("failed to load template: %w", err)
		}
		if template == nil {
			return nil, mapDomainErr(domain.ErrTemplateNotFound)
		}

		instance := domain.NewRouteInstance(
			uuid.New().String(), order.OrderID, line.LineID,
			template, match.Assignment, match.Tier,
			func() string { return uuid.New().String() }, now,
		)

		if err := s.routes.Save(ctx, instance); err != nil {
			s.logger.WithError(err).Error("Failed to save route instance", "orderId", order.OrderID, "lineId", line.LineID)
			return nil, fmt.Errorf("failed to save route instance: %w", err)
		}

		s.metrics.RecordRouteInstantiated(match.Tier.String())
		s.logger.Info("Materialized route", "orderId", order.OrderID, "lineId", line.LineID,
			"templateId", template.TemplateID, "tier", match.Tier.String())
	}

	return s.executionView(ctx, order)
}

// ScanIn starts work on a step. The first scan across any of the order's
// routes flips the order into production.
func (s *ExecutionService) ScanIn(ctx context.Context, cmd StepCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionScanIn); err != nil {
		return nil, mapDomainErr(err)
	}

	order, route, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := route.ScanIn(cmd.StepID, cmd.Actor.EmployeeID, now); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	if order.MarkInProduction(now) {
		if err := s.orders.Save(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to save order: %w", err)
		}
	}

	s.appendActivity(ctx, domain.ActivityScanIn, order.OrderID, cmd.LineID, cmd.StepID, cmd.Actor, "", string(domain.StepInProgress), "")
	s.logger.Info("Scanned into step", "orderId", order.OrderID, "stepId", cmd.StepID, "actor", cmd.Actor.EmployeeID)
	return s.executionView(ctx, order)
}

// ScanOut ends hands-on work on a step and records the elapsed duration
func (s *ExecutionService) ScanOut(ctx context.Context, cmd StepCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionScanOut); err != nil {
		return nil, mapDomainErr(err)
	}

	order, route, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	if err := route.ScanOut(cmd.StepID, cmd.Actor.EmployeeID, s.clock.Now()); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityScanOut, order.OrderID, cmd.LineID, cmd.StepID, cmd.Actor, string(domain.StepInProgress), string(domain.StepInProgress), "")
	return s.executionView(ctx, order)
}

// CompleteStep completes a step after every applicable gate passes, then
// rolls completion up into the route and order lifecycle.
func (s *ExecutionService) CompleteStep(ctx context.Context, cmd CompleteStepCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionCompleteStep); err != nil {
		return nil, mapDomainErr(err)
	}

	order, route, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	step, err := route.Step(cmd.StepID)
	if err != nil {
		return nil, mapDomainErr(err)
	}

	captures, err := s.captures.FindByStep(ctx, cmd.StepID)
	if err != nil {
		return nil, fmt.Errorf("failed to load captures: %w", err)
	}

	req, err := s.buildCompletionRequest(ctx, order, route, cmd)
	if err != nil {
		return nil, err
	}

	if err := s.evaluator.Evaluate(ctx, step, captures, order, req); err != nil {
		var gateErr *domain.GateError
		if stderrors.As(err, &gateErr) {
			s.metrics.RecordGateRejection(string(gateErr.Gate))
		}
		return nil, mapDomainErr(err)
	}

	// The final completion of an approval-gated route needs the order approved
	if route.RequiresSupervisorApproval && route.WouldCompleteRoute(cmd.StepID) && !order.Approved {
		return nil, errors.ErrConflict("Order requires supervisor approval before the final step can be completed.")
	}

	now := s.clock.Now()
	routeCompleted, err := route.CompleteStep(cmd.StepID, cmd.Actor.EmployeeID, now)
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.metrics.RecordStepCompleted(step.WorkCenterID)

	if routeCompleted {
		allDone, err := s.allRoutesCompleted(ctx, order.OrderID)
		if err != nil {
			return nil, err
		}
		if allDone {
			order.MarkProductionComplete(now)
			if err := s.orders.Save(ctx, order); err != nil {
				return nil, fmt.Errorf("failed to save order: %w", err)
			}
		}
	}

	s.appendActivity(ctx, domain.ActivityComplete, order.OrderID, cmd.LineID, cmd.StepID, cmd.Actor, string(domain.StepInProgress), string(domain.StepCompleted), "")
	s.logger.Info("Completed step", "orderId", order.OrderID, "stepId", cmd.StepID, "routeCompleted", routeCompleted)
	return s.executionView(ctx, order)
}

// buildCompletionRequest resolves the verification serial sets. Inline
// serials win; otherwise the latest SerialLoadVerified audit note is parsed.
func (s *ExecutionService) buildCompletionRequest(ctx context.Context, order *domain.ProductionOrder, route *domain.RouteInstance, cmd CompleteStepCommand) (domain.CompletionRequest, error) {
	req := domain.CompletionRequest{
		ActorID:         cmd.Actor.EmployeeID,
		ActorRole:       cmd.Actor.Role,
		VerifiedSerials: cmd.VerifiedSerials,
	}

	if cmd.SupervisorOverride != nil {
		req.SupervisorOverride = &domain.SupervisorOverride{
			EmployeeID: cmd.SupervisorOverride.EmployeeID,
			Reason:     cmd.SupervisorOverride.Reason,
			Role:       cmd.SupervisorOverride.Role,
		}
	}

	if len(req.VerifiedSerials) == 0 {
		entry, err := s.activity.FindLatestByAction(ctx, order.OrderID, route.LineID, domain.ActivitySerialLoadVerified)
		if err != nil {
			return req, fmt.Errorf("failed to load verification note: %w", err)
		}
		if entry != nil {
			req.VerifiedSerials = domain.ParseSerialLoadNote(entry.Notes)
		}
	}

	expected, err := order.ExpectedSerials(route.LineID)
	if err != nil {
		return req, mapDomainErr(err)
	}
	req.ExpectedSerials = expected
	return req, nil
}

// RecordUsage records a material usage row for a step
func (s *ExecutionService) RecordUsage(ctx context.Context, cmd RecordUsageCommand) (*OrderExecutionDTO, error) {
	order, _, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	capture, err := domain.NewUsageCapture(uuid.New().String(), cmd.OrderID, cmd.LineID, cmd.StepID,
		cmd.Actor.EmployeeID, cmd.MaterialID, cmd.Quantity, s.clock.Now())
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.captures.Save(ctx, capture); err != nil {
		return nil, fmt.Errorf("failed to save usage capture: %w", err)
	}

	return s.executionView(ctx, order)
}

// RecordScrap records a scrap entry for a step
func (s *ExecutionService) RecordScrap(ctx context.Context, cmd RecordScrapCommand) (*OrderExecutionDTO, error) {
	order, _, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	capture, err := domain.NewScrapCapture(uuid.New().String(), cmd.OrderID, cmd.LineID, cmd.StepID,
		cmd.Actor.EmployeeID, cmd.MaterialID, cmd.ScrapReasonID, cmd.Quantity, s.clock.Now())
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.captures.Save(ctx, capture); err != nil {
		return nil, fmt.Errorf("failed to save scrap capture: %w", err)
	}

	return s.executionView(ctx, order)
}

// RecordSerial records a serial capture. A Bad-condition serial must carry a
// scrap reason when the step demands one.
func (s *ExecutionService) RecordSerial(ctx context.Context, cmd RecordSerialCommand) (*OrderExecutionDTO, error) {
	order, route, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	step, err := route.Step(cmd.StepID)
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if step.RequireScrapReasonWhenBad && cmd.Condition == domain.SerialBad && cmd.ScrapReasonID == "" {
		return nil, mapDomainErr(domain.ErrBadSerialNeedsScrapReason)
	}

	capture := domain.NewSerialCapture(uuid.New().String(), cmd.OrderID, cmd.LineID, cmd.StepID,
		cmd.Actor.EmployeeID, cmd.SerialNumber, cmd.Condition, cmd.ScrapReasonID, s.clock.Now())

	if err := s.captures.Save(ctx, capture); err != nil {
		return nil, fmt.Errorf("failed to save serial capture: %w", err)
	}

	return s.executionView(ctx, order)
}

// RecordChecklist records one checklist item result for a step
func (s *ExecutionService) RecordChecklist(ctx context.Context, cmd RecordChecklistCommand) (*OrderExecutionDTO, error) {
	order, _, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	capture := domain.NewChecklistCapture(uuid.New().String(), cmd.OrderID, cmd.LineID, cmd.StepID,
		cmd.Actor.EmployeeID, cmd.ChecklistItemID, cmd.ItemRequired, cmd.Outcome, s.clock.Now())

	if err := s.captures.Save(ctx, capture); err != nil {
		return nil, fmt.Errorf("failed to save checklist capture: %w", err)
	}

	return s.executionView(ctx, order)
}

// CorrectDuration applies an operator duration correction gated by the
// step's time-capture mode.
func (s *ExecutionService) CorrectDuration(ctx context.Context, cmd CorrectDurationCommand) (*OrderExecutionDTO, error) {
	order, route, err := s.loadOrderAndRoute(ctx, cmd.OrderID, cmd.LineID, cmd.StepID)
	if err != nil {
		return nil, err
	}

	if err := route.CorrectDuration(cmd.StepID, cmd.Minutes, cmd.Reason, cmd.Actor.Role, s.clock.Now()); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityDurationCorrected, order.OrderID, cmd.LineID, cmd.StepID, cmd.Actor, "", "", cmd.Reason)
	return s.executionView(ctx, order)
}

// Helpers

func hasOpenRoute(routes []*domain.RouteInstance) bool {
	for _, r := range routes {
		if r.State != domain.RouteCompleted {
			return true
		}
	}
	// A completed route also satisfies idempotence: the line was routed
	return len(routes) > 0
}

func (s *ExecutionService) loadOrder(ctx context.Context, orderID string) (*domain.ProductionOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, mapDomainErr(fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID))
	}
	return order, nil
}

// loadOrderAndRoute loads the order and the route on the given line that owns
// the step.
func (s *ExecutionService) loadOrderAndRoute(ctx context.Context, orderID, lineID, stepID string) (*domain.ProductionOrder, *domain.RouteInstance, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := order.Line(lineID); err != nil {
		return nil, nil, mapDomainErr(err)
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

func (s *ExecutionService) allRoutesCompleted(ctx context.Context, orderID string) (bool, error) {
	routes, err := s.routes.FindByOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to load routes: %w", err)
	}
	for _, r := range routes {
		if r.State != domain.RouteCompleted {
			return false, nil
		}
	}
	return len(routes) > 0, nil
}

func (s *ExecutionService) executionView(ctx context.Context, order *domain.ProductionOrder) (*OrderExecutionDTO, error) {
	routes, err := s.routes.FindByOrder(ctx, order.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	return ToOrderExecutionDTO(order, routes), nil
}

// appendActivity writes an audit entry. Audit failures are logged, not
// surfaced; the primary state change has already committed.
func (s *ExecutionService) appendActivity(ctx context.Context, action domain.ActivityAction, orderID, lineID, stepID string, actor ActorContext, fromState, toState, notes string) {
	entry := &domain.ActivityLogEntry{
		EntryID:    uuid.New().String(),
		Action:     action,
		OrderID:    orderID,
		LineID:     lineID,
		StepID:     stepID,
		ActorID:    actor.EmployeeID,
		ActorRole:  actor.Role,
		Device:     actor.Device,
		Notes:      notes,
		FromState:  fromState,
		ToState:    toState,
		OccurredAt: s.clock.Now(),
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		s.logger.WithError(err).Error("Failed to append activity log", "orderId", orderID, "action", action)
	}
}
