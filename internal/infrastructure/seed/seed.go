// Package seed loads route templates and assignment rules from a YAML file
// at startup.
package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mes-platform/route-execution-service/internal/application"
	"github.com/mes-platform/route-execution-service/internal/domain"
	apperrors "github.com/mes-platform/route-execution-service/pkg/errors"
	"github.com/mes-platform/route-execution-service/pkg/logging"
)

// File is the top-level seed document
type File struct {
	Templates   []Template   `yaml:"templates"`
	Assignments []Assignment `yaml:"assignments"`
}

// Template seeds one route template
type Template struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step seeds one template step
type Step struct {
	Sequence        int    `yaml:"sequence"`
	Code            string `yaml:"code"`
	Name            string `yaml:"name"`
	WorkCenterID    string `yaml:"workCenterId"`
	Required        bool   `yaml:"required"`
	DataCaptureMode string `yaml:"dataCaptureMode"`
	TimeCaptureMode string `yaml:"timeCaptureMode"`

	RequiresUsage              bool   `yaml:"requiresUsage"`
	RequiresScrap              bool   `yaml:"requiresScrap"`
	RequiresSerialCapture      bool   `yaml:"requiresSerialCapture"`
	RequireScrapReasonWhenBad  bool   `yaml:"requireScrapReasonWhenBad"`
	RequiresChecklist          bool   `yaml:"requiresChecklist"`
	ChecklistFailurePolicy     string `yaml:"checklistFailurePolicy"`
	RequiresTrailer            bool   `yaml:"requiresTrailer"`
	RequiresSerialLoadVerify   bool   `yaml:"requiresSerialLoadVerify"`
	GeneratePackingSlip        bool   `yaml:"generatePackingSlip"`
	GenerateBOL                bool   `yaml:"generateBol"`
	RequiresAttachment         bool   `yaml:"requiresAttachment"`
	RequiresSupervisorApproval bool   `yaml:"requiresSupervisorApproval"`
}

// Assignment seeds one assignment rule, referencing a template by code
type Assignment struct {
	TemplateCode string `yaml:"templateCode"`

	CustomerID *string `yaml:"customerId"`
	SiteID     *string `yaml:"siteId"`
	ItemID     *string `yaml:"itemId"`
	ItemType   *string `yaml:"itemType"`

	PriorityMin *int    `yaml:"priorityMin"`
	PriorityMax *int    `yaml:"priorityMax"`
	PickupViaID *string `yaml:"pickupViaId"`
	ShipViaID   *string `yaml:"shipViaId"`

	Priority      int     `yaml:"priority"`
	EffectiveFrom string  `yaml:"effectiveFrom"`
	EffectiveTo   *string `yaml:"effectiveTo"`

	SupervisorApprovalOverride *bool `yaml:"supervisorApprovalOverride"`
}

// Loader seeds the catalog through the application service so the same
// validation and overlap rules apply as for API writes.
type Loader struct {
	catalog *application.CatalogService
	logger  *logging.Logger
}

// NewLoader creates a new seed loader
func NewLoader(catalog *application.CatalogService, logger *logging.Logger) *Loader {
	return &Loader{catalog: catalog, logger: logger.WithComponent("seed")}
}

// LoadFile parses the YAML file and seeds templates and assignments.
// Templates whose code already exists are skipped, making reseeding on
// restart a no-op.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	templateIDs := make(map[string]string, len(file.Templates))
	for _, t := range file.Templates {
		dto, err := l.catalog.CreateTemplate(ctx, application.CreateTemplateCommand{
			Code:  t.Code,
			Name:  t.Name,
			Steps: toStepInputs(t.Steps),
		})
		if err != nil {
			// An existing code means the template was seeded on a prior run
			if isConflict(err) {
				l.logger.Info("Seed template already exists, skipping", "code", t.Code)
				continue
			}
			return fmt.Errorf("failed to seed template %s: %w", t.Code, err)
		}
		templateIDs[t.Code] = dto.TemplateID
		l.logger.Info("Seeded route template", "code", t.Code, "templateId", dto.TemplateID)
	}

	for _, a := range file.Assignments {
		templateID, ok := templateIDs[a.TemplateCode]
		if !ok {
			// Template existed before this run; assignments for it were
			// seeded then too
			continue
		}
		_, err := l.catalog.CreateAssignment(ctx, application.CreateAssignmentCommand{
			TemplateID:                 templateID,
			CustomerID:                 a.CustomerID,
			SiteID:                     a.SiteID,
			ItemID:                     a.ItemID,
			ItemType:                   a.ItemType,
			PriorityMin:                a.PriorityMin,
			PriorityMax:                a.PriorityMax,
			PickupViaID:                a.PickupViaID,
			ShipViaID:                  a.ShipViaID,
			Priority:                   a.Priority,
			EffectiveFrom:              a.EffectiveFrom,
			EffectiveTo:                a.EffectiveTo,
			SupervisorApprovalOverride: a.SupervisorApprovalOverride,
		})
		if err != nil {
			return fmt.Errorf("failed to seed assignment for template %s: %w", a.TemplateCode, err)
		}
		l.logger.Info("Seeded route assignment", "templateCode", a.TemplateCode)
	}

	return nil
}

func toStepInputs(steps []Step) []application.TemplateStepInput {
	inputs := make([]application.TemplateStepInput, 0, len(steps))
	for _, s := range steps {
		inputs = append(inputs, application.TemplateStepInput{
			Sequence:                   s.Sequence,
			Code:                       s.Code,
			Name:                       s.Name,
			WorkCenterID:               s.WorkCenterID,
			Required:                   s.Required,
			DataCaptureMode:            domain.DataCaptureMode(s.DataCaptureMode),
			TimeCaptureMode:            domain.TimeCaptureMode(s.TimeCaptureMode),
			RequiresUsage:              s.RequiresUsage,
			RequiresScrap:              s.RequiresScrap,
			RequiresSerialCapture:      s.RequiresSerialCapture,
			RequireScrapReasonWhenBad:  s.RequireScrapReasonWhenBad,
			RequiresChecklist:          s.RequiresChecklist,
			ChecklistFailurePolicy:     domain.ChecklistFailurePolicy(s.ChecklistFailurePolicy),
			RequiresTrailer:            s.RequiresTrailer,
			RequiresSerialLoadVerify:   s.RequiresSerialLoadVerify,
			GeneratePackingSlip:        s.GeneratePackingSlip,
			GenerateBOL:                s.GenerateBOL,
			RequiresAttachment:         s.RequiresAttachment,
			RequiresSupervisorApproval: s.RequiresSupervisorApproval,
		})
	}
	return inputs
}

func isConflict(err error) bool {
	appErr, ok := apperrors.AsAppError(err)
	return ok && appErr.HTTPStatus == 409
}
