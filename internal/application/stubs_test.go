package application

import (
	"context"
	"io"
	"time"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/logging"
	"github.com/mes-platform/route-execution-service/pkg/metrics"
)

// In-memory repositories for service tests. They keep aggregates by id and
// honor the same nil-on-missing convention as the MongoDB implementations.

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type memOrderRepo struct {
	orders map[string]*domain.ProductionOrder
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*domain.ProductionOrder)}
}

func (r *memOrderRepo) Save(_ context.Context, order *domain.ProductionOrder) error {
	r.orders[order.OrderID] = order
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, orderID string) (*domain.ProductionOrder, error) {
	return r.orders[orderID], nil
}

func (r *memOrderRepo) FindByNumber(_ context.Context, orderNumber string) (*domain.ProductionOrder, error) {
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return nil, nil
}

type memRouteRepo struct {
	routes map[string]*domain.RouteInstance
}

func newMemRouteRepo() *memRouteRepo {
	return &memRouteRepo{routes: make(map[string]*domain.RouteInstance)}
}

func (r *memRouteRepo) Save(_ context.Context, instance *domain.RouteInstance) error {
	r.routes[instance.InstanceID] = instance
	return nil
}

func (r *memRouteRepo) FindByID(_ context.Context, instanceID string) (*domain.RouteInstance, error) {
	return r.routes[instanceID], nil
}

func (r *memRouteRepo) FindByOrder(_ context.Context, orderID string) ([]*domain.RouteInstance, error) {
	var out []*domain.RouteInstance
	for _, route := range r.routes {
		if route.OrderID == orderID {
			out = append(out, route)
		}
	}
	return out, nil
}

func (r *memRouteRepo) FindByLine(_ context.Context, orderID, lineID string) ([]*domain.RouteInstance, error) {
	var out []*domain.RouteInstance
	for _, route := range r.routes {
		if route.OrderID == orderID && route.LineID == lineID {
			out = append(out, route)
		}
	}
	return out, nil
}

func (r *memRouteRepo) FindByWorkCenter(_ context.Context, workCenterID string, states []domain.RouteState) ([]*domain.RouteInstance, error) {
	stateSet := make(map[domain.RouteState]bool, len(states))
	for _, s := range states {
		stateSet[s] = true
	}
	var out []*domain.RouteInstance
	for _, route := range r.routes {
		if len(states) > 0 && !stateSet[route.State] {
			continue
		}
		for _, step := range route.Steps {
			if step.WorkCenterID == workCenterID {
				out = append(out, route)
				break
			}
		}
	}
	return out, nil
}

func (r *memRouteRepo) ExistsByTemplate(_ context.Context, templateID string) (bool, error) {
	for _, route := range r.routes {
		if route.TemplateID == templateID {
			return true, nil
		}
	}
	return false, nil
}

type memTemplateRepo struct {
	templates map[string]*domain.RouteTemplate
}

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{templates: make(map[string]*domain.RouteTemplate)}
}

func (r *memTemplateRepo) Save(_ context.Context, template *domain.RouteTemplate) error {
	r.templates[template.TemplateID] = template
	return nil
}

func (r *memTemplateRepo) FindByID(_ context.Context, templateID string) (*domain.RouteTemplate, error) {
	return r.templates[templateID], nil
}

func (r *memTemplateRepo) FindByCode(_ context.Context, code string) (*domain.RouteTemplate, error) {
	for _, t := range r.templates {
		if t.Code == code {
			return t, nil
		}
	}
	return nil, nil
}

func (r *memTemplateRepo) FindAll(_ context.Context, activeOnly bool) ([]*domain.RouteTemplate, error) {
	var out []*domain.RouteTemplate
	for _, t := range r.templates {
		if activeOnly && !t.Active {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memTemplateRepo) Delete(_ context.Context, templateID string) error {
	delete(r.templates, templateID)
	return nil
}

type memAssignmentRepo struct {
	assignments map[string]*domain.RouteAssignment
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{assignments: make(map[string]*domain.RouteAssignment)}
}

func (r *memAssignmentRepo) Save(_ context.Context, assignment *domain.RouteAssignment) error {
	r.assignments[assignment.AssignmentID] = assignment
	return nil
}

func (r *memAssignmentRepo) FindByID(_ context.Context, assignmentID string) (*domain.RouteAssignment, error) {
	return r.assignments[assignmentID], nil
}

func (r *memAssignmentRepo) FindActive(_ context.Context) ([]*domain.RouteAssignment, error) {
	var out []*domain.RouteAssignment
	for _, a := range r.assignments {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAssignmentRepo) FindAll(_ context.Context) ([]*domain.RouteAssignment, error) {
	var out []*domain.RouteAssignment
	for _, a := range r.assignments {
		out = append(out, a)
	}
	return out, nil
}

func (r *memAssignmentRepo) ExistsByTemplate(_ context.Context, templateID string) (bool, error) {
	for _, a := range r.assignments {
		if a.TemplateID == templateID {
			return true, nil
		}
	}
	return false, nil
}

type memCaptureRepo struct {
	captures []*domain.StepCapture
}

func newMemCaptureRepo() *memCaptureRepo { return &memCaptureRepo{} }

func (r *memCaptureRepo) Save(_ context.Context, capture *domain.StepCapture) error {
	r.captures = append(r.captures, capture)
	return nil
}

func (r *memCaptureRepo) FindByStep(_ context.Context, stepID string) ([]*domain.StepCapture, error) {
	var out []*domain.StepCapture
	for _, c := range r.captures {
		if c.StepID == stepID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memActivityRepo struct {
	entries []*domain.ActivityLogEntry
}

func newMemActivityRepo() *memActivityRepo { return &memActivityRepo{} }

func (r *memActivityRepo) Append(_ context.Context, entry *domain.ActivityLogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memActivityRepo) FindByOrder(_ context.Context, orderID string, limit int64) ([]*domain.ActivityLogEntry, error) {
	var out []*domain.ActivityLogEntry
	for i := len(r.entries) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if r.entries[i].OrderID == orderID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memActivityRepo) FindLatestByAction(_ context.Context, orderID, lineID string, action domain.ActivityAction) (*domain.ActivityLogEntry, error) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.OrderID == orderID && e.LineID == lineID && e.Action == action {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memActivityRepo) lastAction() domain.ActivityAction {
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Action
}

type memReworkRepo struct {
	reworks map[string]*domain.Rework
}

func newMemReworkRepo() *memReworkRepo {
	return &memReworkRepo{reworks: make(map[string]*domain.Rework)}
}

func (r *memReworkRepo) Save(_ context.Context, rework *domain.Rework) error {
	r.reworks[rework.ReworkID] = rework
	return nil
}

func (r *memReworkRepo) FindByID(_ context.Context, reworkID string) (*domain.Rework, error) {
	return r.reworks[reworkID], nil
}

func (r *memReworkRepo) FindOpenByOrder(_ context.Context, orderID string) ([]*domain.Rework, error) {
	var out []*domain.Rework
	for _, rw := range r.reworks {
		if rw.OrderID == orderID && !rw.State.IsTerminal() {
			out = append(out, rw)
		}
	}
	return out, nil
}

func (r *memReworkRepo) FindOpenByStep(_ context.Context, stepID string) (*domain.Rework, error) {
	for _, rw := range r.reworks {
		if rw.StepID == stepID && !rw.State.IsTerminal() {
			return rw, nil
		}
	}
	return nil, nil
}

type memBlobStore struct {
	blobs map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Upload(_ context.Context, path string, data []byte, _ string) error {
	s.blobs[path] = data
	return nil
}

func (s *memBlobStore) OpenRead(_ context.Context, path string) (io.ReadCloser, error) {
	return nil, io.EOF
}

func (s *memBlobStore) DeleteIfExists(_ context.Context, path string) error {
	delete(s.blobs, path)
	return nil
}

// fixture wires the services against fresh in-memory repositories
type fixture struct {
	orders      *memOrderRepo
	routes      *memRouteRepo
	templates   *memTemplateRepo
	assignments *memAssignmentRepo
	captures    *memCaptureRepo
	activity    *memActivityRepo
	reworks     *memReworkRepo
	blobs       *memBlobStore
	clock       *fixedClock

	catalog   *CatalogService
	execution *ExecutionService
	rework    *ReworkService
}

func newFixture() *fixture {
	f := &fixture{
		orders:      newMemOrderRepo(),
		routes:      newMemRouteRepo(),
		templates:   newMemTemplateRepo(),
		assignments: newMemAssignmentRepo(),
		captures:    newMemCaptureRepo(),
		activity:    newMemActivityRepo(),
		reworks:     newMemReworkRepo(),
		blobs:       newMemBlobStore(),
		clock:       &fixedClock{now: testNow},
	}

	logger := logging.New(logging.DefaultConfig("route-execution-service-test"))
	m := metrics.New(metrics.DefaultConfig("route-execution-service-test"))
	roles := domain.NewStaticRoleChecker()

	f.catalog = NewCatalogService(f.templates, f.assignments, f.routes, f.clock, logger)
	f.execution = NewExecutionService(f.orders, f.routes, f.templates, f.assignments,
		f.captures, f.activity, roles, f.blobs, f.clock, m, logger)
	f.rework = NewReworkService(f.reworks, f.orders, f.routes, f.activity, roles, f.clock, m, logger)
	return f
}

func productionActor() ActorContext {
	return ActorContext{EmployeeID: "emp-1", Role: domain.RoleProduction, Device: "scanner-7"}
}

func supervisorActor() ActorContext {
	return ActorContext{EmployeeID: "sup-1", Role: domain.RoleSupervisor}
}
