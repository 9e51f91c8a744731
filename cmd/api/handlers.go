package main

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mes-platform/route-execution-service/internal/application"
	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/api"
	"github.com/mes-platform/route-execution-service/pkg/errors"
	"github.com/mes-platform/route-execution-service/pkg/logging"
	"github.com/mes-platform/route-execution-service/pkg/middleware"
)

const maxAttachmentBytes = 25 << 20

func registerRoutes(
	router *gin.Engine,
	catalog *application.CatalogService,
	execution *application.ExecutionService,
	rework *application.ReworkService,
	logger *logging.Logger,
) {
	apiV1 := router.Group("/api/v1")

	templates := apiV1.Group("/route-templates")
	{
		templates.POST("", createTemplateHandler(catalog, logger))
		templates.GET("", listTemplatesHandler(catalog, logger))
		templates.GET("/:templateId", getTemplateHandler(catalog, logger))
		templates.PUT("/:templateId", updateTemplateHandler(catalog, logger))
		templates.POST("/:templateId/deactivate", deactivateTemplateHandler(catalog, logger))
		templates.DELETE("/:templateId", deleteTemplateHandler(catalog, logger))
	}

	assignments := apiV1.Group("/route-assignments")
	{
		assignments.POST("", createAssignmentHandler(catalog, logger))
		assignments.GET("", listAssignmentsHandler(catalog, logger))
		assignments.PUT("/:assignmentId", updateAssignmentHandler(catalog, logger))
		assignments.POST("/resolve", resolveAssignmentHandler(catalog, logger))
	}

	orders := apiV1.Group("/orders")
	{
		orders.POST("", createOrderHandler(execution, logger))
		orders.GET("/:orderId", getOrderHandler(execution, logger))
		orders.GET("/:orderId/execution", getExecutionHandler(execution, logger))
		orders.GET("/:orderId/activity", getActivityLogHandler(execution, logger))
		orders.POST("/:orderId/routes", instantiateRoutesHandler(execution, logger))
		orders.POST("/:orderId/trailer", captureTrailerHandler(execution, logger))
		orders.POST("/:orderId/serial-load", verifySerialLoadHandler(execution, logger))
		orders.POST("/:orderId/documents/packing-slip", generateDocumentHandler(execution, logger, execution.GeneratePackingSlip))
		orders.POST("/:orderId/documents/bol", generateDocumentHandler(execution, logger, execution.GenerateBol))
		orders.POST("/:orderId/attachments", uploadAttachmentHandler(execution, logger))
		orders.POST("/:orderId/approve", approveOrderHandler(execution, logger))
		orders.POST("/:orderId/reject", rejectOrderHandler(execution, logger))
		orders.GET("/:orderId/rework", listOrderReworkHandler(rework, logger))

		orders.POST("/:orderId/routes/:instanceId/validate", validateRouteHandler(execution, logger))
		orders.POST("/:orderId/routes/:instanceId/adjust", adjustRouteHandler(execution, logger))
		orders.POST("/:orderId/routes/:instanceId/reopen", reopenRouteHandler(execution, logger))

		steps := orders.Group("/:orderId/lines/:lineId/steps/:stepId")
		{
			steps.POST("/scan-in", stepActionHandler(execution, logger, execution.ScanIn))
			steps.POST("/scan-out", stepActionHandler(execution, logger, execution.ScanOut))
			steps.POST("/complete", completeStepHandler(execution, logger))
			steps.POST("/usage", recordUsageHandler(execution, logger))
			steps.POST("/scrap", recordScrapHandler(execution, logger))
			steps.POST("/serial", recordSerialHandler(execution, logger))
			steps.POST("/checklist", recordChecklistHandler(execution, logger))
			steps.POST("/duration", correctDurationHandler(execution, logger))
		}
	}

	apiV1.GET("/work-centers/:workCenterId/queue", getQueueHandler(execution, logger))

	reworkGroup := apiV1.Group("/rework")
	{
		reworkGroup.POST("", requestReworkHandler(rework, logger))
		reworkGroup.GET("/:reworkId", getReworkHandler(rework, logger))
		reworkGroup.POST("/:reworkId/approve", reworkTransitionHandler(rework, logger, rework.Approve))
		reworkGroup.POST("/:reworkId/start", reworkTransitionHandler(rework, logger, rework.Start))
		reworkGroup.POST("/:reworkId/verify", reworkTransitionHandler(rework, logger, rework.SubmitVerification))
		reworkGroup.POST("/:reworkId/close", reworkTransitionHandler(rework, logger, rework.Close))
		reworkGroup.POST("/:reworkId/cancel", reworkTransitionHandler(rework, logger, rework.Cancel))
		reworkGroup.POST("/:reworkId/scrap", reworkTransitionHandler(rework, logger, rework.Scrap))
	}
}

// actorFrom builds the acting operator context from request headers
func actorFrom(c *gin.Context) application.ActorContext {
	return application.ActorContext{
		EmployeeID: middleware.GetActorID(c),
		Role:       domain.Role(middleware.GetActorRole(c)),
		Device:     c.GetHeader("X-Device-ID"),
	}
}

func respondErr(responder *middleware.ErrorResponder, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		responder.RespondWithAppError(appErr)
		return
	}
	responder.RespondInternalError(err)
}

// Template handlers

type templateStepRequest struct {
	Sequence        int    `json:"sequence" binding:"required"`
	Code            string `json:"code" binding:"required"`
	Name            string `json:"name" binding:"required"`
	WorkCenterID    string `json:"workCenterId" binding:"required,work_center_id"`
	Required        bool   `json:"required"`
	DataCaptureMode string `json:"dataCaptureMode" binding:"required,capture_mode"`
	TimeCaptureMode string `json:"timeCaptureMode" binding:"required,time_capture_mode"`

	RequiresUsage              bool   `json:"requiresUsage"`
	RequiresScrap              bool   `json:"requiresScrap"`
	RequiresSerialCapture      bool   `json:"requiresSerialCapture"`
	RequireScrapReasonWhenBad  bool   `json:"requireScrapReasonWhenBad"`
	RequiresChecklist          bool   `json:"requiresChecklist"`
	ChecklistFailurePolicy     string `json:"checklistFailurePolicy"`
	RequiresTrailer            bool   `json:"requiresTrailer"`
	RequiresSerialLoadVerify   bool   `json:"requiresSerialLoadVerify"`
	GeneratePackingSlip        bool   `json:"generatePackingSlip"`
	GenerateBOL                bool   `json:"generateBol"`
	RequiresAttachment         bool   `json:"requiresAttachment"`
	RequiresSupervisorApproval bool   `json:"requiresSupervisorApproval"`
}

func toStepInputs(steps []templateStepRequest) []application.TemplateStepInput {
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

func createTemplateHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Code  string                `json:"code" binding:"required"`
			Name  string                `json:"name" binding:"required"`
			Steps []templateStepRequest `json:"steps" binding:"required,min=1,dive"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.CreateTemplate(c.Request.Context(), application.CreateTemplateCommand{
			Code:  req.Code,
			Name:  req.Name,
			Steps: toStepInputs(req.Steps),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func listTemplatesHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		activeOnly := c.Query("active") == "true"
		dtos, err := service.ListTemplates(c.Request.Context(), activeOnly)
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, api.Paginate(dtos, api.ParsePagination(c)))
	}
}

func getTemplateHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.GetTemplate(c.Request.Context(), c.Param("templateId"))
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func updateTemplateHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Name  string                `json:"name"`
			Steps []templateStepRequest `json:"steps" binding:"required,min=1,dive"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.UpdateTemplate(c.Request.Context(), application.UpdateTemplateCommand{
			TemplateID: c.Param("templateId"),
			Name:       req.Name,
			Steps:      toStepInputs(req.Steps),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func deactivateTemplateHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.DeactivateTemplate(c.Request.Context(), c.Param("templateId"))
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func deleteTemplateHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		if err := service.DeleteTemplate(c.Request.Context(), c.Param("templateId")); err != nil {
			respondErr(responder, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Assignment handlers

type assignmentRequest struct {
	TemplateID string `json:"templateId" binding:"required"`

	CustomerID *string `json:"customerId"`
	SiteID     *string `json:"siteId"`
	ItemID     *string `json:"itemId"`
	ItemType   *string `json:"itemType"`

	PriorityMin *int    `json:"priorityMin"`
	PriorityMax *int    `json:"priorityMax"`
	PickupViaID *string `json:"pickupViaId"`
	ShipViaID   *string `json:"shipViaId"`

	Priority      int     `json:"priority"`
	EffectiveFrom string  `json:"effectiveFrom" binding:"required"`
	EffectiveTo   *string `json:"effectiveTo"`

	SupervisorApprovalOverride *bool `json:"supervisorApprovalOverride"`
}

func createAssignmentHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req assignmentRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.CreateAssignment(c.Request.Context(), application.CreateAssignmentCommand{
			TemplateID:                 req.TemplateID,
			CustomerID:                 req.CustomerID,
			SiteID:                     req.SiteID,
			ItemID:                     req.ItemID,
			ItemType:                   req.ItemType,
			PriorityMin:                req.PriorityMin,
			PriorityMax:                req.PriorityMax,
			PickupViaID:                req.PickupViaID,
			ShipViaID:                  req.ShipViaID,
			Priority:                   req.Priority,
			EffectiveFrom:              req.EffectiveFrom,
			EffectiveTo:                req.EffectiveTo,
			SupervisorApprovalOverride: req.SupervisorApprovalOverride,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func listAssignmentsHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dtos, err := service.ListAssignments(c.Request.Context())
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"assignments": dtos})
	}
}

func updateAssignmentHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			TemplateID                 string  `json:"templateId"`
			Priority                   int     `json:"priority"`
			Active                     bool    `json:"active"`
			EffectiveFrom              string  `json:"effectiveFrom" binding:"required"`
			EffectiveTo                *string `json:"effectiveTo"`
			SupervisorApprovalOverride *bool   `json:"supervisorApprovalOverride"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.UpdateAssignment(c.Request.Context(), application.UpdateAssignmentCommand{
			AssignmentID:               c.Param("assignmentId"),
			TemplateID:                 req.TemplateID,
			Priority:                   req.Priority,
			Active:                     req.Active,
			EffectiveFrom:              req.EffectiveFrom,
			EffectiveTo:                req.EffectiveTo,
			SupervisorApprovalOverride: req.SupervisorApprovalOverride,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func resolveAssignmentHandler(service *application.CatalogService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			CustomerID    string `json:"customerId" binding:"required"`
			SiteID        string `json:"siteId" binding:"required"`
			ItemID        string `json:"itemId" binding:"required"`
			ItemType      string `json:"itemType"`
			OrderPriority int    `json:"orderPriority"`
			PickupViaID   string `json:"pickupViaId"`
			ShipViaID     string `json:"shipViaId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.ResolveAssignment(c.Request.Context(), application.ResolveAssignmentQuery{
			CustomerID:    req.CustomerID,
			SiteID:        req.SiteID,
			ItemID:        req.ItemID,
			ItemType:      req.ItemType,
			OrderPriority: req.OrderPriority,
			PickupViaID:   req.PickupViaID,
			ShipViaID:     req.ShipViaID,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

// Order handlers

func createOrderHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			OrderNumber string `json:"orderNumber" binding:"required,order_number"`
			CustomerID  string `json:"customerId" binding:"required"`
			SiteID      string `json:"siteId" binding:"required"`
			Lines       []struct {
				ItemID      string   `json:"itemId" binding:"required"`
				ItemType    string   `json:"itemType"`
				Quantity    float64  `json:"quantity" binding:"required,gt=0"`
				PriorityNo  int      `json:"priorityNo"`
				PickupViaID string   `json:"pickupViaId"`
				ShipViaID   string   `json:"shipViaId"`
				Serials     []string `json:"serials"`
			} `json:"lines" binding:"required,min=1,dive"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		lines := make([]application.OrderLineInput, 0, len(req.Lines))
		for _, l := range req.Lines {
			lines = append(lines, application.OrderLineInput{
				ItemID:      l.ItemID,
				ItemType:    l.ItemType,
				Quantity:    l.Quantity,
				PriorityNo:  l.PriorityNo,
				PickupViaID: l.PickupViaID,
				ShipViaID:   l.ShipViaID,
				Serials:     l.Serials,
			})
		}

		dto, err := service.CreateOrder(c.Request.Context(), application.CreateOrderCommand{
			OrderNumber: req.OrderNumber,
			CustomerID:  req.CustomerID,
			SiteID:      req.SiteID,
			Lines:       lines,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func getOrderHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.GetOrder(c.Request.Context(), application.GetOrderQuery{OrderID: c.Param("orderId")})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func getExecutionHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.GetOrderRouteExecution(c.Request.Context(), application.GetOrderRouteExecutionQuery{OrderID: c.Param("orderId")})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func getActivityLogHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
		dtos, err := service.GetActivityLog(c.Request.Context(), application.GetActivityLogQuery{
			OrderID: c.Param("orderId"),
			Limit:   limit,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": dtos})
	}
}

func instantiateRoutesHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.InstantiateRoutes(c.Request.Context(), application.InstantiateRoutesCommand{
			OrderID: c.Param("orderId"),
			Actor:   actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func captureTrailerHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			TrailerNumber string `json:"trailerNumber" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.CaptureTrailer(c.Request.Context(), application.CaptureTrailerCommand{
			OrderID:       c.Param("orderId"),
			TrailerNumber: req.TrailerNumber,
			Actor:         actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func verifySerialLoadHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			LineID  string   `json:"lineId" binding:"required"`
			Serials []string `json:"serials" binding:"required,min=1"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.VerifySerialLoad(c.Request.Context(), application.VerifySerialLoadCommand{
			OrderID: c.Param("orderId"),
			LineID:  req.LineID,
			Serials: req.Serials,
			Actor:   actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func generateDocumentHandler(
	service *application.ExecutionService,
	logger *logging.Logger,
	generate func(ctx context.Context, cmd application.GenerateDocumentCommand) (*application.OrderExecutionDTO, error),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := generate(c.Request.Context(), application.GenerateDocumentCommand{
			OrderID: c.Param("orderId"),
			Actor:   actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func uploadAttachmentHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			responder.RespondBadRequest("A file form field is required.")
			return
		}
		defer file.Close()

		if header.Size > maxAttachmentBytes {
			responder.RespondBadRequest("Attachment exceeds the maximum allowed size.")
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, maxAttachmentBytes+1))
		if err != nil {
			responder.RespondInternalError(err)
			return
		}
		if len(data) > maxAttachmentBytes {
			responder.RespondBadRequest("Attachment exceeds the maximum allowed size.")
			return
		}

		dto, appErr := service.UploadAttachment(c.Request.Context(), application.UploadAttachmentCommand{
			OrderID:     c.Param("orderId"),
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Category:    c.PostForm("category"),
			Data:        data,
			Actor:       actorFrom(c),
		})
		if appErr != nil {
			respondErr(responder, appErr)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func approveOrderHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.ApproveOrder(c.Request.Context(), application.ApproveOrderCommand{
			OrderID: c.Param("orderId"),
			Actor:   actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func rejectOrderHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.RejectOrder(c.Request.Context(), application.RejectOrderCommand{
			OrderID: c.Param("orderId"),
			Reason:  req.Reason,
			Actor:   actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

// Route review handlers

func validateRouteHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.ValidateRoute(c.Request.Context(), application.RouteReviewCommand{
			OrderID:    c.Param("orderId"),
			InstanceID: c.Param("instanceId"),
			Actor:      actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func adjustRouteHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Adjustments []struct {
				StepID            string  `json:"stepId" binding:"required"`
				Required          *bool   `json:"required"`
				DataCaptureMode   *string `json:"dataCaptureMode" binding:"omitempty,capture_mode"`
				RequiresUsage     *bool   `json:"requiresUsage"`
				RequiresScrap     *bool   `json:"requiresScrap"`
				RequiresChecklist *bool   `json:"requiresChecklist"`
			} `json:"adjustments" binding:"required,min=1,dive"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		adjustments := make([]domain.StepAdjustment, 0, len(req.Adjustments))
		for _, a := range req.Adjustments {
			adj := domain.StepAdjustment{
				StepID:            a.StepID,
				Required:          a.Required,
				RequiresUsage:     a.RequiresUsage,
				RequiresScrap:     a.RequiresScrap,
				RequiresChecklist: a.RequiresChecklist,
			}
			if a.DataCaptureMode != nil {
				mode := domain.DataCaptureMode(*a.DataCaptureMode)
				adj.DataCaptureMode = &mode
			}
			adjustments = append(adjustments, adj)
		}

		dto, err := service.AdjustRoute(c.Request.Context(), application.AdjustRouteCommand{
			OrderID:     c.Param("orderId"),
			InstanceID:  c.Param("instanceId"),
			Adjustments: adjustments,
			Actor:       actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func reopenRouteHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			StepID string `json:"stepId" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.ReopenRoute(c.Request.Context(), application.ReopenRouteCommand{
			OrderID:    c.Param("orderId"),
			InstanceID: c.Param("instanceId"),
			StepID:     req.StepID,
			Actor:      actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

// Step handlers

func stepCommandFrom(c *gin.Context) application.StepCommand {
	return application.StepCommand{
		OrderID: c.Param("orderId"),
		LineID:  c.Param("lineId"),
		StepID:  c.Param("stepId"),
		Actor:   actorFrom(c),
	}
}

func stepActionHandler(
	service *application.ExecutionService,
	logger *logging.Logger,
	action func(ctx context.Context, cmd application.StepCommand) (*application.OrderExecutionDTO, error),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := action(c.Request.Context(), stepCommandFrom(c))
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func completeStepHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			VerifiedSerials    []string `json:"verifiedSerials"`
			SupervisorOverride *struct {
				EmployeeID string `json:"employeeId" binding:"required"`
				Reason     string `json:"reason" binding:"required"`
				Role       string `json:"role" binding:"required"`
			} `json:"supervisorOverride"`
		}
		// Body is optional for steps without serial or checklist requirements
		if c.Request.ContentLength > 0 {
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				responder.RespondWithAppError(appErr)
				return
			}
		}

		cmd := application.CompleteStepCommand{
			OrderID:         c.Param("orderId"),
			LineID:          c.Param("lineId"),
			StepID:          c.Param("stepId"),
			Actor:           actorFrom(c),
			VerifiedSerials: req.VerifiedSerials,
		}
		if req.SupervisorOverride != nil {
			cmd.SupervisorOverride = &application.SupervisorOverrideInput{
				EmployeeID: req.SupervisorOverride.EmployeeID,
				Reason:     req.SupervisorOverride.Reason,
				Role:       domain.Role(req.SupervisorOverride.Role),
			}
		}

		dto, err := service.CompleteStep(c.Request.Context(), cmd)
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func recordUsageHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			MaterialID string  `json:"materialId" binding:"required"`
			Quantity   float64 `json:"quantity" binding:"required,gt=0"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		base := stepCommandFrom(c)
		dto, err := service.RecordUsage(c.Request.Context(), application.RecordUsageCommand{
			OrderID:    base.OrderID,
			LineID:     base.LineID,
			StepID:     base.StepID,
			MaterialID: req.MaterialID,
			Quantity:   req.Quantity,
			Actor:      base.Actor,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func recordScrapHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			MaterialID    string  `json:"materialId" binding:"required"`
			ScrapReasonID string  `json:"scrapReasonId" binding:"required"`
			Quantity      float64 `json:"quantity" binding:"required,gt=0"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		base := stepCommandFrom(c)
		dto, err := service.RecordScrap(c.Request.Context(), application.RecordScrapCommand{
			OrderID:       base.OrderID,
			LineID:        base.LineID,
			StepID:        base.StepID,
			MaterialID:    req.MaterialID,
			ScrapReasonID: req.ScrapReasonID,
			Quantity:      req.Quantity,
			Actor:         base.Actor,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func recordSerialHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			SerialNumber  string `json:"serialNumber" binding:"required,serial_number"`
			Condition     string `json:"condition" binding:"required,oneof=Good Bad"`
			ScrapReasonID string `json:"scrapReasonId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		base := stepCommandFrom(c)
		dto, err := service.RecordSerial(c.Request.Context(), application.RecordSerialCommand{
			OrderID:       base.OrderID,
			LineID:        base.LineID,
			StepID:        base.StepID,
			SerialNumber:  req.SerialNumber,
			Condition:     domain.SerialCondition(req.Condition),
			ScrapReasonID: req.ScrapReasonID,
			Actor:         base.Actor,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func recordChecklistHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			ChecklistItemID string `json:"checklistItemId" binding:"required"`
			ItemRequired    bool   `json:"itemRequired"`
			Outcome         string `json:"outcome" binding:"required,oneof=Passed Failed Skipped"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		base := stepCommandFrom(c)
		dto, err := service.RecordChecklist(c.Request.Context(), application.RecordChecklistCommand{
			OrderID:         base.OrderID,
			LineID:          base.LineID,
			StepID:          base.StepID,
			ChecklistItemID: req.ChecklistItemID,
			ItemRequired:    req.ItemRequired,
			Outcome:         domain.ChecklistOutcome(req.Outcome),
			Actor:           base.Actor,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func correctDurationHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Minutes float64 `json:"minutes" binding:"required,gt=0"`
			Reason  string  `json:"reason"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		base := stepCommandFrom(c)
		dto, err := service.CorrectDuration(c.Request.Context(), application.CorrectDurationCommand{
			OrderID: base.OrderID,
			LineID:  base.LineID,
			StepID:  base.StepID,
			Minutes: req.Minutes,
			Reason:  req.Reason,
			Actor:   base.Actor,
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

// Queue handler

func getQueueHandler(service *application.ExecutionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		items, err := service.GetQueueForWorkCenter(c.Request.Context(), application.GetQueueQuery{
			WorkCenterID: c.Param("workCenterId"),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, api.Paginate(items, api.ParsePagination(c)))
	}
}

// Rework handlers

func requestReworkHandler(service *application.ReworkService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			OrderID  string `json:"orderId" binding:"required"`
			LineID   string `json:"lineId" binding:"required"`
			StepID   string `json:"stepId" binding:"required"`
			Reason   string `json:"reason" binding:"required"`
			Elevated bool   `json:"elevated"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		dto, err := service.Request(c.Request.Context(), application.RequestReworkCommand{
			OrderID:  req.OrderID,
			LineID:   req.LineID,
			StepID:   req.StepID,
			Reason:   req.Reason,
			Elevated: req.Elevated,
			Actor:    actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusCreated, dto)
	}
}

func getReworkHandler(service *application.ReworkService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dto, err := service.Get(c.Request.Context(), c.Param("reworkId"))
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}

func listOrderReworkHandler(service *application.ReworkService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		dtos, err := service.ListOpenByOrder(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reworks": dtos})
	}
}

func reworkTransitionHandler(
	service *application.ReworkService,
	logger *logging.Logger,
	transition func(ctx context.Context, cmd application.ReworkTransitionCommand) (*application.ReworkDTO, error),
) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			Justification string `json:"justification"`
			Note          string `json:"note"`
		}
		if c.Request.ContentLength > 0 {
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				responder.RespondWithAppError(appErr)
				return
			}
		}

		dto, err := transition(c.Request.Context(), application.ReworkTransitionCommand{
			ReworkID:      c.Param("reworkId"),
			Justification: req.Justification,
			Note:          req.Note,
			Actor:         actorFrom(c),
		})
		if err != nil {
			respondErr(responder, err)
			return
		}
		c.JSON(http.StatusOK, dto)
	}
}
