package application

import "github.com/mes-platform/route-execution-service/internal/domain"

// ToTemplateDTO maps a route template aggregate to its DTO
func ToTemplateDTO(t *domain.RouteTemplate) *TemplateDTO {
	steps := make([]TemplateStepDTO, 0, len(t.Steps))
	for _, s := range t.Steps {
		steps = append(steps, TemplateStepDTO{
			Sequence:                   s.Sequence,
			Code:                       s.Code,
			Name:                       s.Name,
			WorkCenterID:               s.WorkCenterID,
			Required:                   s.Required,
			DataCaptureMode:            string(s.DataCaptureMode),
			TimeCaptureMode:            string(s.TimeCaptureMode),
			RequiresUsage:              s.RequiresUsage,
			RequiresScrap:              s.RequiresScrap,
			RequiresSerialCapture:      s.RequiresSerialCapture,
			RequireScrapReasonWhenBad:  s.RequireScrapReasonWhenBad,
			RequiresChecklist:          s.RequiresChecklist,
			ChecklistFailurePolicy:     string(s.ChecklistFailurePolicy),
			RequiresTrailer:            s.RequiresTrailer,
			RequiresSerialLoadVerify:   s.RequiresSerialLoadVerify,
			GeneratePackingSlip:        s.GeneratePackingSlip,
			GenerateBOL:                s.GenerateBOL,
			RequiresAttachment:         s.RequiresAttachment,
			RequiresSupervisorApproval: s.RequiresSupervisorApproval,
		})
	}

	return &TemplateDTO{
		TemplateID: t.TemplateID,
		Code:       t.Code,
		Name:       t.Name,
		Active:     t.Active,
		Version:    t.Version,
		Steps:      steps,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// ToTemplateDTOs maps a slice of templates
func ToTemplateDTOs(templates []*domain.RouteTemplate) []TemplateDTO {
	dtos := make([]TemplateDTO, 0, len(templates))
	for _, t := range templates {
		dtos = append(dtos, *ToTemplateDTO(t))
	}
	return dtos
}

// ToAssignmentDTO maps an assignment rule to its DTO
func ToAssignmentDTO(a *domain.RouteAssignment) *AssignmentDTO {
	return &AssignmentDTO{
		AssignmentID:  a.AssignmentID,
		TemplateID:    a.TemplateID,
		CustomerID:    a.CustomerID,
		SiteID:        a.SiteID,
		ItemID:        a.ItemID,
		ItemType:      a.ItemType,
		PriorityMin:   a.PriorityMin,
		PriorityMax:   a.PriorityMax,
		PickupViaID:   a.PickupViaID,
		ShipViaID:     a.ShipViaID,
		Priority:      a.Priority,
		Revision:      a.Revision,
		EffectiveFrom: a.EffectiveFrom,
		EffectiveTo:   a.EffectiveTo,
		Active:        a.Active,
	}
}

// ToAssignmentDTOs maps a slice of assignments
func ToAssignmentDTOs(assignments []*domain.RouteAssignment) []AssignmentDTO {
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		dtos = append(dtos, *ToAssignmentDTO(a))
	}
	return dtos
}

// ToStepInstanceDTO maps a step instance to its DTO
func ToStepInstanceDTO(s *domain.StepInstance) StepInstanceDTO {
	return StepInstanceDTO{
		StepID:                s.StepID,
		Sequence:              s.Sequence,
		Code:                  s.Code,
		Name:                  s.Name,
		WorkCenterID:          s.WorkCenterID,
		Required:              s.Required,
		State:                 string(s.State),
		DataCaptureMode:       string(s.DataCaptureMode),
		TimeCaptureMode:       string(s.TimeCaptureMode),
		ScanInUtc:             s.ScanInUtc,
		ScanOutUtc:            s.ScanOutUtc,
		DurationMinutes:       s.DurationMinutes,
		ManualDurationMinutes: s.ManualDurationMinutes,
		TimeCaptureSource:     string(s.TimeCaptureSource),
		CompletedUtc:          s.CompletedUtc,
		CompletedBy:           s.CompletedBy,
		BlockedReason:         s.BlockedReason,
	}
}

// ToRouteInstanceDTO maps a route instance to its DTO
func ToRouteInstanceDTO(r *domain.RouteInstance) RouteInstanceDTO {
	steps := make([]StepInstanceDTO, 0, len(r.Steps))
	for i := range r.Steps {
		steps = append(steps, ToStepInstanceDTO(&r.Steps[i]))
	}

	return RouteInstanceDTO{
		InstanceID:                 r.InstanceID,
		OrderID:                    r.OrderID,
		LineID:                     r.LineID,
		TemplateID:                 r.TemplateID,
		TemplateVersion:            r.TemplateVersion,
		MatchedTier:                r.MatchedTier,
		State:                      string(r.State),
		ReviewState:                string(r.ReviewState),
		RequiresSupervisorApproval: r.RequiresSupervisorApproval,
		Steps:                      steps,
		CompletedAt:                r.CompletedAt,
	}
}

// ToOrderDTO maps a production order to its DTO
func ToOrderDTO(o *domain.ProductionOrder) OrderDTO {
	lines := make([]OrderLineDTO, 0, len(o.Lines))
	for _, l := range o.Lines {
		serials := make([]string, 0, len(l.Serials))
		for _, s := range l.Serials {
			if !s.Scrapped {
				serials = append(serials, s.SerialNumber)
			}
		}
		lines = append(lines, OrderLineDTO{
			LineID:     l.LineID,
			ItemID:     l.ItemID,
			ItemType:   l.ItemType,
			Quantity:   l.Quantity,
			PriorityNo: l.PriorityNo,
			Serials:    serials,
		})
	}

	dto := OrderDTO{
		OrderID:             o.OrderID,
		OrderNumber:         o.OrderNumber,
		CustomerID:          o.CustomerID,
		SiteID:              o.SiteID,
		Lifecycle:           string(o.Lifecycle),
		LegacyStatus:        o.LegacyStatus,
		HoldOverlay:         string(o.HoldOverlay),
		HasOpenRework:       o.HasOpenRework,
		ReworkBlocksInvoice: o.ReworkBlocksInvoice,
		TrailerNumber:       o.TrailerNumber,
		Approved:            o.Approved,
		RejectedReason:      o.RejectedReason,
		Lines:               lines,
		AttachmentCount:     len(o.Attachments),
		CreatedAt:           o.CreatedAt,
	}

	if o.PackingSlip != nil {
		dto.PackingSlip = &DocumentDTO{
			Number:      o.PackingSlip.Number,
			Revision:    o.PackingSlip.Revision,
			GeneratedAt: o.PackingSlip.GeneratedAt,
			GeneratedBy: o.PackingSlip.GeneratedBy,
		}
	}
	if o.BOL != nil {
		dto.BOL = &DocumentDTO{
			Number:      o.BOL.Number,
			Revision:    o.BOL.Revision,
			GeneratedAt: o.BOL.GeneratedAt,
			GeneratedBy: o.BOL.GeneratedBy,
		}
	}

	return dto
}

// ToOrderExecutionDTO builds the refreshed route-execution view
func ToOrderExecutionDTO(o *domain.ProductionOrder, routes []*domain.RouteInstance) *OrderExecutionDTO {
	routeDTOs := make([]RouteInstanceDTO, 0, len(routes))
	for _, r := range routes {
		routeDTOs = append(routeDTOs, ToRouteInstanceDTO(r))
	}
	return &OrderExecutionDTO{
		Order:  ToOrderDTO(o),
		Routes: routeDTOs,
	}
}

// ToActivityLogDTOs maps audit entries
func ToActivityLogDTOs(entries []*domain.ActivityLogEntry) []ActivityLogDTO {
	dtos := make([]ActivityLogDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, ActivityLogDTO{
			EntryID:    e.EntryID,
			Action:     string(e.Action),
			OrderID:    e.OrderID,
			LineID:     e.LineID,
			StepID:     e.StepID,
			ActorID:    e.ActorID,
			ActorRole:  string(e.ActorRole),
			Device:     e.Device,
			Notes:      e.Notes,
			FromState:  e.FromState,
			ToState:    e.ToState,
			OccurredAt: e.OccurredAt,
		})
	}
	return dtos
}

// ToReworkDTO maps a rework aggregate to its DTO
func ToReworkDTO(r *domain.Rework) *ReworkDTO {
	return &ReworkDTO{
		ReworkID:    r.ReworkID,
		OrderID:     r.OrderID,
		LineID:      r.LineID,
		StepID:      r.StepID,
		State:       string(r.State),
		Reason:      r.Reason,
		Elevated:    r.Elevated,
		RequestedBy: r.RequestedBy,
		RequestedAt: r.RequestedAt,
		ClosedAt:    r.ClosedAt,
		OutcomeNote: r.OutcomeNote,
	}
}
