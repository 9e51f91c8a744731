package domain

import "context"

// RouteTemplateRepository persists route templates
type RouteTemplateRepository interface {
	Save(ctx context.Context, template *RouteTemplate) error
	FindByID(ctx context.Context, templateID string) (*RouteTemplate, error)
	FindByCode(ctx context.Context, code string) (*RouteTemplate, error)
	FindAll(ctx context.Context, activeOnly bool) ([]*RouteTemplate, error)
	Delete(ctx context.Context, templateID string) error
}

// RouteAssignmentRepository persists route assignment rules
type RouteAssignmentRepository interface {
	Save(ctx context.Context, assignment *RouteAssignment) error
	FindByID(ctx context.Context, assignmentID string) (*RouteAssignment, error)
	FindActive(ctx context.Context) ([]*RouteAssignment, error)
	FindAll(ctx context.Context) ([]*RouteAssignment, error)
	ExistsByTemplate(ctx context.Context, templateID string) (bool, error)
}

// RouteInstanceRepository persists materialized routes
type RouteInstanceRepository interface {
	Save(ctx context.Context, instance *RouteInstance) error
	FindByID(ctx context.Context, instanceID string) (*RouteInstance, error)
	FindByOrder(ctx context.Context, orderID string) ([]*RouteInstance, error)
	FindByLine(ctx context.Context, orderID, lineID string) ([]*RouteInstance, error)
	FindByWorkCenter(ctx context.Context, workCenterID string, states []RouteState) ([]*RouteInstance, error)
	ExistsByTemplate(ctx context.Context, templateID string) (bool, error)
}

// OrderRepository persists production orders
type OrderRepository interface {
	Save(ctx context.Context, order *ProductionOrder) error
	FindByID(ctx context.Context, orderID string) (*ProductionOrder, error)
	FindByNumber(ctx context.Context, orderNumber string) (*ProductionOrder, error)
}

// CaptureRepository persists append-only step capture rows
type CaptureRepository interface {
	Save(ctx context.Context, capture *StepCapture) error
	FindByStep(ctx context.Context, stepID string) ([]*StepCapture, error)
}

// ActivityLogRepository persists the append-only audit trail
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *ActivityLogEntry) error
	FindByOrder(ctx context.Context, orderID string, limit int64) ([]*ActivityLogEntry, error)
	FindLatestByAction(ctx context.Context, orderID, lineID string, action ActivityAction) (*ActivityLogEntry, error)
}

// ReworkRepository persists rework aggregates
type ReworkRepository interface {
	Save(ctx context.Context, rework *Rework) error
	FindByID(ctx context.Context, reworkID string) (*Rework, error)
	FindOpenByOrder(ctx context.Context, orderID string) ([]*Rework, error)
	FindOpenByStep(ctx context.Context, stepID string) (*Rework, error)
}
