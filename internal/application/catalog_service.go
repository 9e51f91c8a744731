package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/errors"
	"github.com/mes-platform/route-execution-service/pkg/logging"
)

// CatalogService handles route template and assignment administration
type CatalogService struct {
	templates   domain.RouteTemplateRepository
	assignments domain.RouteAssignmentRepository
	instances   domain.RouteInstanceRepository
	clock       domain.Clock
	logger      *logging.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(
	templates domain.RouteTemplateRepository,
	assignments domain.RouteAssignmentRepository,
	instances domain.RouteInstanceRepository,
	clock domain.Clock,
	logger *logging.Logger,
) *CatalogService {
	return &CatalogService{
		templates:   templates,
		assignments: assignments,
		instances:   instances,
		clock:       clock,
		logger:      logger.WithComponent("catalog"),
	}
}

func toTemplateSteps(inputs []TemplateStepInput) []domain.RouteTemplateStep {
	steps := make([]domain.RouteTemplateStep, 0, len(inputs))
	for _, in := range inputs {
		steps = append(steps, domain.RouteTemplateStep{
			Sequence:                   in.Sequence,
			Code:                       in.Code,
			Name:                       in.Name,
			WorkCenterID:               in.WorkCenterID,
			Required:                   in.Required,
			DataCaptureMode:            in.DataCaptureMode,
			TimeCaptureMode:            in.TimeCaptureMode,
			RequiresUsage:              in.RequiresUsage,
			RequiresScrap:              in.RequiresScrap,
			RequiresSerialCapture:      in.RequiresSerialCapture,
			RequireScrapReasonWhenBad:  in.RequireScrapReasonWhenBad,
			RequiresChecklist:          in.RequiresChecklist,
			ChecklistFailurePolicy:     in.ChecklistFailurePolicy,
			RequiresTrailer:            in.RequiresTrailer,
			RequiresSerialLoadVerify:   in.RequiresSerialLoadVerify,
			GeneratePackingSlip:        in.GeneratePackingSlip,
			GenerateBOL:                in.GenerateBOL,
			RequiresAttachment:         in.RequiresAttachment,
			RequiresSupervisorApproval: in.RequiresSupervisorApproval,
		})
	}
	return steps
}

// CreateTemplate creates a route template
func (s *CatalogService) CreateTemplate(ctx context.Context, cmd CreateTemplateCommand) (*TemplateDTO, error) {
	existing, err := s.templates.FindByCode(ctx, cmd.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to check template code: %w", err)
	}
	if existing != nil {
		return nil, errors.ErrConflict(fmt.Sprintf("route template with code %s already exists", cmd.Code))
	}

	template, err := domain.NewRouteTemplate(uuid.New().String(), cmd.Code, cmd.Name, toTemplateSteps(cmd.Steps), s.clock.Now())
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.templates.Save(ctx, template); err != nil {
		s.logger.WithError(err).Error("Failed to save template", "code", cmd.Code)
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("Created route template", "templateId", template.TemplateID, "code", template.Code)
	return ToTemplateDTO(template), nil
}

// UpdateTemplate replaces a template's name and step list, bumping its version
func (s *CatalogService) UpdateTemplate(ctx context.Context, cmd UpdateTemplateCommand) (*TemplateDTO, error) {
	template, err := s.findTemplate(ctx, cmd.TemplateID)
	if err != nil {
		return nil, err
	}

	if cmd.Name != "" {
		template.Name = cmd.Name
	}
	if err := template.ReplaceSteps(toTemplateSteps(cmd.Steps), s.clock.Now()); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.templates.Save(ctx, template); err != nil {
		s.logger.WithError(err).Error("Failed to save template", "templateId", cmd.TemplateID)
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("Updated route template", "templateId", template.TemplateID, "version", template.Version)
	return ToTemplateDTO(template), nil
}

// DeactivateTemplate marks a template inactive
func (s *CatalogService) DeactivateTemplate(ctx context.Context, templateID string) (*TemplateDTO, error) {
	template, err := s.findTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	template.Deactivate(s.clock.Now())

	if err := s.templates.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("Deactivated route template", "templateId", templateID)
	return ToTemplateDTO(template), nil
}

// DeleteTemplate removes a template. Templates referenced by any assignment
// or route instance cannot be deleted.
func (s *CatalogService) DeleteTemplate(ctx context.Context, templateID string) error {
	if _, err := s.findTemplate(ctx, templateID); err != nil {
		return err
	}

	referenced, err := s.assignments.ExistsByTemplate(ctx, templateID)
	if err != nil {
		return fmt.Errorf("failed to check assignment references: %w", err)
	}
	if !referenced {
		referenced, err = s.instances.ExistsByTemplate(ctx, templateID)
		if err != nil {
			return fmt.Errorf("failed to check instance references: %w", err)
		}
	}
	if referenced {
		return mapDomainErr(domain.ErrTemplateInUse)
	}

	if err := s.templates.Delete(ctx, templateID); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	s.logger.Info("Deleted route template", "templateId", templateID)
	return nil
}

// GetTemplate fetches one template
func (s *CatalogService) GetTemplate(ctx context.Context, templateID string) (*TemplateDTO, error) {
	template, err := s.findTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return ToTemplateDTO(template), nil
}

// ListTemplates fetches all templates
func (s *CatalogService) ListTemplates(ctx context.Context, activeOnly bool) ([]TemplateDTO, error) {
	templates, err := s.templates.FindAll(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return ToTemplateDTOs(templates), nil
}

// CreateAssignment creates an assignment rule after enforcing the window
// overlap invariant against active assignments with identical scope.
func (s *CatalogService) CreateAssignment(ctx context.Context, cmd CreateAssignmentCommand) (*AssignmentDTO, error) {
	template, err := s.findTemplate(ctx, cmd.TemplateID)
	if err != nil {
		return nil, err
	}
	if !template.Active {
		return nil, mapDomainErr(domain.ErrTemplateInactive)
	}

	effectiveFrom, effectiveTo, err := parseWindow(cmd.EffectiveFrom, cmd.EffectiveTo)
	if err != nil {
		return nil, errors.ErrBadRequest(err.Error())
	}

	now := s.clock.Now()
	assignment := &domain.RouteAssignment{
		AssignmentID:               uuid.New().String(),
		TemplateID:                 cmd.TemplateID,
		CustomerID:                 cmd.CustomerID,
		SiteID:                     cmd.SiteID,
		ItemID:                     cmd.ItemID,
		ItemType:                   cmd.ItemType,
		PriorityMin:                cmd.PriorityMin,
		PriorityMax:                cmd.PriorityMax,
		PickupViaID:                cmd.PickupViaID,
		ShipViaID:                  cmd.ShipViaID,
		Priority:                   cmd.Priority,
		Revision:                   1,
		EffectiveFrom:              effectiveFrom,
		EffectiveTo:                effectiveTo,
		Active:                     true,
		SupervisorApprovalOverride: cmd.SupervisorApprovalOverride,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	active, err := s.assignments.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignments: %w", err)
	}
	if err := assignment.CheckOverlap(active); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.assignments.Save(ctx, assignment); err != nil {
		s.logger.WithError(err).Error("Failed to save assignment", "templateId", cmd.TemplateID)
		return nil, fmt.Errorf("failed to save assignment: %w", err)
	}

	s.logger.Info("Created route assignment", "assignmentId", assignment.AssignmentID, "templateId", cmd.TemplateID)
	return ToAssignmentDTO(assignment), nil
}

// UpdateAssignment revises an assignment rule, bumping its revision
func (s *CatalogService) UpdateAssignment(ctx context.Context, cmd UpdateAssignmentCommand) (*AssignmentDTO, error) {
	assignment, err := s.assignments.FindByID(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}
	if assignment == nil {
		return nil, mapDomainErr(domain.ErrAssignmentNotFound)
	}

	effectiveFrom, effectiveTo, err := parseWindow(cmd.EffectiveFrom, cmd.EffectiveTo)
	if err != nil {
		return nil, errors.ErrBadRequest(err.Error())
	}

	if cmd.TemplateID != "" {
		if _, err := s.findTemplate(ctx, cmd.TemplateID); err != nil {
			return nil, err
		}
		assignment.TemplateID = cmd.TemplateID
	}
	assignment.Priority = cmd.Priority
	assignment.Active = cmd.Active
	assignment.EffectiveFrom = effectiveFrom
	assignment.EffectiveTo = effectiveTo
	if cmd.SupervisorApprovalOverride != nil {
		assignment.SupervisorApprovalOverride = cmd.SupervisorApprovalOverride
	}
	assignment.Revision++
	assignment.UpdatedAt = s.clock.Now()

	active, err := s.assignments.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignments: %w", err)
	}
	if err := assignment.CheckOverlap(active); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.assignments.Save(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to save assignment: %w", err)
	}

	s.logger.Info("Updated route assignment", "assignmentId", assignment.AssignmentID, "revision", assignment.Revision)
	return ToAssignmentDTO(assignment), nil
}

// ListAssignments fetches all assignment rules
func (s *CatalogService) ListAssignments(ctx context.Context) ([]AssignmentDTO, error) {
	assignments, err := s.assignments.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return ToAssignmentDTOs(assignments), nil
}

// ResolveAssignment dry-runs tier matching for an order-line shape
func (s *CatalogService) ResolveAssignment(ctx context.Context, query ResolveAssignmentQuery) (*ResolutionDTO, error) {
	candidates, err := s.assignments.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignments: %w", err)
	}

	match, err := domain.ResolveAssignment(candidates, domain.MatchContext{
		CustomerID:    query.CustomerID,
		SiteID:        query.SiteID,
		ItemID:        query.ItemID,
		ItemType:      query.ItemType,
		OrderPriority: query.OrderPriority,
		PickupViaID:   query.PickupViaID,
		ShipViaID:     query.ShipViaID,
		Now:           s.clock.Now(),
	})
	if err != nil {
		return nil, mapDomainErr(err)
	}

	return &ResolutionDTO{
		AssignmentID: match.Assignment.AssignmentID,
		TemplateID:   match.Assignment.TemplateID,
		Tier:         int(match.Tier),
		TierLabel:    match.Tier.String(),
	}, nil
}

func (s *CatalogService) findTemplate(ctx context.Context, templateID string) (*domain.RouteTemplate, error) {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if template == nil {
		return nil, mapDomainErr(domain.ErrTemplateNotFound)
	}
	return template, nil
}

func parseWindow(from string, to *string) (time.Time, *time.Time, error) {
	effectiveFrom, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid effectiveFrom: %v", err)
	}

	var effectiveTo *time.Time
	if to != nil && *to != "" {
		parsed, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("invalid effectiveTo: %v", err)
		}
		if parsed.Before(effectiveFrom) {
			return time.Time{}, nil, fmt.Errorf("effectiveTo must not precede effectiveFrom")
		}
		effectiveTo = &parsed
	}
	return effectiveFrom, effectiveTo, nil
}
