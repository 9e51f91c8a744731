package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/mes-platform/route-execution-service/internal/domain"
)

// GetOrderRouteExecution returns the order plus all of its routes
func (s *ExecutionService) GetOrderRouteExecution(ctx context.Context, query GetOrderRouteExecutionQuery) (*OrderExecutionDTO, error) {
	order, err := s.loadOrder(ctx, query.OrderID)
	if err != nil {
		return nil, err
	}
	return s.executionView(ctx, order)
}

// GetQueueForWorkCenter lists workable steps at a work center ordered by
// order priority, then step sequence. Only Pending and InProgress steps
// are workable; completed and blocked steps stay off the queue.
func (s *ExecutionService) GetQueueForWorkCenter(ctx context.Context, query GetQueueQuery) ([]QueueItemDTO, error) {
	routes, err := s.routes.FindByWorkCenter(ctx, query.WorkCenterID, []domain.RouteState{domain.RouteActive})
	if err != nil {
		return nil, fmt.Errorf("failed to load routes for work center: %w", err)
	}

	items := make([]QueueItemDTO, 0)
	orderCache := make(map[string]*domain.ProductionOrder)
	for _, route := range routes {
		order, ok := orderCache[route.OrderID]
		if !ok {
			order, err = s.orders.FindByID(ctx, route.OrderID)
			if err != nil {
				return nil, fmt.Errorf("failed to load order: %w", err)
			}
			if order == nil {
				continue
			}
			orderCache[route.OrderID] = order
		}

		priority := 0
		if line, err := order.Line(route.LineID); err == nil {
			priority = line.PriorityNo
		}

		for i := range route.Steps {
			step := &route.Steps[i]
			if step.WorkCenterID != query.WorkCenterID {
				continue
			}
			if step.State != domain.StepPending && step.State != domain.StepInProgress {
				continue
			}
			items = append(items, QueueItemDTO{
				OrderID:     order.OrderID,
				OrderNumber: order.OrderNumber,
				LineID:      route.LineID,
				InstanceID:  route.InstanceID,
				StepID:      step.StepID,
				Sequence:    step.Sequence,
				StepName:    step.Name,
				State:       string(step.State),
				PriorityNo:  priority,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PriorityNo != items[j].PriorityNo {
			return items[i].PriorityNo < items[j].PriorityNo
		}
		if items[i].OrderNumber != items[j].OrderNumber {
			return items[i].OrderNumber < items[j].OrderNumber
		}
		return items[i].Sequence < items[j].Sequence
	})

	return items, nil
}

// GetActivityLog returns the audit trail for an order, newest first
func (s *ExecutionService) GetActivityLog(ctx context.Context, query GetActivityLogQuery) ([]ActivityLogDTO, error) {
	if _, err := s.loadOrder(ctx, query.OrderID); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entries, err := s.activity.FindByOrder(ctx, query.OrderID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity log: %w", err)
	}
	return ToActivityLogDTOs(entries), nil
}
