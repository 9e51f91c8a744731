package application

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/errors"
)

// CaptureTrailer records the trailer number for the order's shipment
func (s *ExecutionService) CaptureTrailer(ctx context.Context, cmd CaptureTrailerCommand) (*OrderExecutionDTO, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if err := order.CaptureTrailer(cmd.TrailerNumber, cmd.Actor.EmployeeID, s.clock.Now()); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityCaptureTrailer, order.OrderID, "", "", cmd.Actor, "", "", order.TrailerNumber)
	return s.executionView(ctx, order)
}

// VerifySerialLoad checks scanned serials against the line's expected set and
// records the verified list in the audit trail. Completion gates read the
// latest verification back from the trail.
func (s *ExecutionService) VerifySerialLoad(ctx context.Context, cmd VerifySerialLoadCommand) (*OrderExecutionDTO, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	expected, err := order.ExpectedSerials(cmd.LineID)
	if err != nil {
		return nil, mapDomainErr(err)
	}

	if len(cmd.Serials) == 0 {
		return nil, errors.ErrBadRequest("At least one serial must be scanned for load verification.")
	}

	if len(expected) > 0 {
		missing, extra := domain.DiffSerials(cmd.Serials, expected)
		if len(missing) > 0 || len(extra) > 0 {
			msg := "Serial load verification failed."
			if len(missing) > 0 {
				msg += " Missing: " + strings.Join(missing, ", ") + "."
			}
			if len(extra) > 0 {
				msg += " Unexpected: " + strings.Join(extra, ", ") + "."
			}
			return nil, errors.ErrConflict(msg).WithDetail("gate", string(domain.GateSerialLoad))
		}
	}

	s.appendActivity(ctx, domain.ActivitySerialLoadVerified, order.OrderID, cmd.LineID, "", cmd.Actor, "", "",
		domain.FormatSerialLoadNote(cmd.Serials))
	s.logger.Info("Serial load verified", "orderId", order.OrderID, "lineId", cmd.LineID, "count", len(cmd.Serials))
	return s.executionView(ctx, order)
}

// GeneratePackingSlip issues (or re-issues with a bumped revision) the
// order's packing slip and stores a rendered copy.
func (s *ExecutionService) GeneratePackingSlip(ctx context.Context, cmd GenerateDocumentCommand) (*OrderExecutionDTO, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	doc := order.GeneratePackingSlip(cmd.Actor.EmployeeID, s.clock.Now())
	if err := s.storeDocument(ctx, order, doc, "PACKING SLIP"); err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityPackingSlip, order.OrderID, "", "", cmd.Actor, "", "", doc.Number)
	return s.executionView(ctx, order)
}

// GenerateBol issues (or re-issues) the order's bill of lading
func (s *ExecutionService) GenerateBol(ctx context.Context, cmd GenerateDocumentCommand) (*OrderExecutionDTO, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	doc := order.GenerateBOL(cmd.Actor.EmployeeID, s.clock.Now())
	if err := s.storeDocument(ctx, order, doc, "BILL OF LADING"); err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityBOL, order.OrderID, "", "", cmd.Actor, "", "", doc.Number)
	return s.executionView(ctx, order)
}

// storeDocument renders a plain-text manifest and uploads it under the order
// folder. The blob path lands on the document record.
func (s *ExecutionService) storeDocument(ctx context.Context, order *domain.ProductionOrder, doc *domain.GeneratedDocument, title string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", title, doc.Number)
	fmt.Fprintf(&b, "Order: %s\nCustomer: %s\nSite: %s\n", order.OrderNumber, order.CustomerID, order.SiteID)
	if order.TrailerNumber != "" {
		fmt.Fprintf(&b, "Trailer: %s\n", order.TrailerNumber)
	}
	fmt.Fprintf(&b, "Generated: %s by %s\n\n", doc.GeneratedAt.Format("2006-01-02 15:04:05 UTC"), doc.GeneratedBy)
	for _, line := range order.Lines {
		fmt.Fprintf(&b, "  %-20s qty %.2f (%s)\n", line.ItemID, line.Quantity, line.ItemType)
		for _, sn := range line.Serials {
			if !sn.Scrapped {
				fmt.Fprintf(&b, "    serial %s\n", sn.SerialNumber)
			}
		}
	}

	blobPath := path.Join("orders", order.OrderNumber, doc.Number+".txt")
	if err := s.blobs.Upload(ctx, blobPath, []byte(b.String()), "text/plain"); err != nil {
		s.logger.WithError(err).Error("Failed to store document", "orderId", order.OrderID, "document", doc.Number)
		return fmt.Errorf("failed to store document: %w", err)
	}
	doc.BlobPath = blobPath
	return nil
}

// UploadAttachment stores attachment bytes and records the metadata on the
// order.
func (s *ExecutionService) UploadAttachment(ctx context.Context, cmd UploadAttachmentCommand) (*OrderExecutionDTO, error) {
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if len(cmd.Data) == 0 {
		return nil, errors.ErrBadRequest("Attachment data is empty.")
	}
	if strings.TrimSpace(cmd.FileName) == "" {
		return nil, errors.ErrBadRequest("Attachment file name is required.")
	}

	attachmentID := uuid.New().String()
	blobPath := path.Join("orders", order.OrderNumber, "attachments", attachmentID+"-"+path.Base(cmd.FileName))
	if err := s.blobs.Upload(ctx, blobPath, cmd.Data, cmd.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	order.AddAttachment(domain.AttachmentMeta{
		AttachmentID: attachmentID,
		FileName:     cmd.FileName,
		ContentType:  cmd.ContentType,
		Category:     cmd.Category,
		BlobPath:     blobPath,
		SizeBytes:    int64(len(cmd.Data)),
		UploadedBy:   cmd.Actor.EmployeeID,
		UploadedAt:   s.clock.Now(),
	}, s.clock.Now())

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("Attachment uploaded", "orderId", order.OrderID, "fileName", cmd.FileName, "sizeBytes", len(cmd.Data))
	return s.executionView(ctx, order)
}

// ValidateRoute marks a materialized route as reviewed without changes
func (s *ExecutionService) ValidateRoute(ctx context.Context, cmd RouteReviewCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionValidateRoute); err != nil {
		return nil, mapDomainErr(err)
	}

	order, route, err := s.loadRouteInstance(ctx, cmd.OrderID, cmd.InstanceID)
	if err != nil {
		return nil, err
	}

	route.Validate(s.clock.Now())
	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityRouteValidated, order.OrderID, route.LineID, "", cmd.Actor, "", string(domain.ReviewValidated), "")
	return s.executionView(ctx, order)
}

// AdjustRoute applies review-time adjustments to not-yet-completed steps
func (s *ExecutionService) AdjustRoute(ctx context.Context, cmd AdjustRouteCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionAdjustRoute); err != nil {
		return nil, mapDomainErr(err)
	}

	order, route, err := s.loadRouteInstance(ctx, cmd.OrderID, cmd.InstanceID)
	if err != nil {
		return nil, err
	}

	if err := route.Adjust(cmd.Adjustments, s.clock.Now()); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityRouteAdjusted, order.OrderID, route.LineID, "", cmd.Actor, "", string(domain.ReviewAdjusted), "")
	s.logger.Info("Route adjusted", "orderId", order.OrderID, "instanceId", route.InstanceID, "adjustments", len(cmd.Adjustments))
	return s.executionView(ctx, order)
}

// ReopenRoute returns a completed route to Active at the named step
func (s *ExecutionService) ReopenRoute(ctx context.Context, cmd ReopenRouteCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionReopenRoute); err != nil {
		return nil, mapDomainErr(err)
	}

	order, route, err := s.loadRouteInstance(ctx, cmd.OrderID, cmd.InstanceID)
	if err != nil {
		return nil, err
	}

	if err := route.Reopen(cmd.StepID, s.clock.Now()); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.routes.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("failed to save route: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityRouteReopened, order.OrderID, route.LineID, cmd.StepID, cmd.Actor, string(domain.RouteCompleted), string(domain.RouteActive), "")
	return s.executionView(ctx, order)
}

// ApproveOrder records supervisor approval, unblocking approval-gated routes
func (s *ExecutionService) ApproveOrder(ctx context.Context, cmd ApproveOrderCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionApproveOrder); err != nil {
		return nil, mapDomainErr(err)
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	order.Approve(cmd.Actor.EmployeeID, s.clock.Now())
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityOrderApproved, order.OrderID, "", "", cmd.Actor, "", "", "")
	return s.executionView(ctx, order)
}

// RejectOrder withdraws approval with a mandatory reason
func (s *ExecutionService) RejectOrder(ctx context.Context, cmd RejectOrderCommand) (*OrderExecutionDTO, error) {
	if err := s.roles.EnsureAllowed(ctx, cmd.Actor.Role, domain.ActionApproveOrder); err != nil {
		return nil, mapDomainErr(err)
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if err := order.Reject(cmd.Actor.EmployeeID, cmd.Reason, s.clock.Now()); err != nil {
		return nil, mapDomainErr(err)
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.appendActivity(ctx, domain.ActivityOrderRejected, order.OrderID, "", "", cmd.Actor, "", "", cmd.Reason)
	return s.executionView(ctx, order)
}

// loadRouteInstance loads an order and one of its routes by instance id
func (s *ExecutionService) loadRouteInstance(ctx context.Context, orderID, instanceID string) (*domain.ProductionOrder, *domain.RouteInstance, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	route, err := s.routes.FindByID(ctx, instanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load route: %w", err)
	}
	if route == nil || route.OrderID != orderID {
		return nil, nil, mapDomainErr(fmt.Errorf("%w: %s", domain.ErrRouteInstanceNotFound, instanceID))
	}
	return order, route, nil
}
