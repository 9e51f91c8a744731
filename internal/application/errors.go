package application

import (
	stderrors "errors"

	"github.com/mes-platform/route-execution-service/internal/domain"
	"github.com/mes-platform/route-execution-service/pkg/errors"
)

// mapDomainErr translates domain sentinels and gate failures into the
// transport error taxonomy. Unknown errors become internal errors.
func mapDomainErr(err error) error {
	if err == nil {
		return nil
	}

	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var gateErr *domain.GateError
	if stderrors.As(err, &gateErr) {
		return errors.ErrConflict(gateErr.Reason).WithDetail("gate", string(gateErr.Gate))
	}

	switch {
	case stderrors.Is(err, domain.ErrOrderNotFound),
		stderrors.Is(err, domain.ErrOrderLineNotFound),
		stderrors.Is(err, domain.ErrRouteInstanceNotFound),
		stderrors.Is(err, domain.ErrStepNotFound),
		stderrors.Is(err, domain.ErrTemplateNotFound),
		stderrors.Is(err, domain.ErrAssignmentNotFound),
		stderrors.Is(err, domain.ErrReworkNotFound):
		return errors.NewAppError(errors.CodeNotFound, err.Error(), 404).Wrap(err)

	case stderrors.Is(err, domain.ErrStepWrongState),
		stderrors.Is(err, domain.ErrPriorStepIncomplete),
		stderrors.Is(err, domain.ErrNoMatchingRoute),
		stderrors.Is(err, domain.ErrAssignmentOverlap),
		stderrors.Is(err, domain.ErrDuplicateSequence),
		stderrors.Is(err, domain.ErrReworkInvalidTransition),
		stderrors.Is(err, domain.ErrRouteNotCompleted),
		stderrors.Is(err, domain.ErrRouteAlreadyCompleted),
		stderrors.Is(err, domain.ErrTemplateInUse),
		stderrors.Is(err, domain.ErrTemplateInactive):
		return errors.ErrConflict(err.Error()).Wrap(err)

	case stderrors.Is(err, domain.ErrInvalidDuration),
		stderrors.Is(err, domain.ErrCorrectionNotAllowed),
		stderrors.Is(err, domain.ErrCorrectionNeedsReason),
		stderrors.Is(err, domain.ErrBlankTrailerNumber),
		stderrors.Is(err, domain.ErrRejectionNeedsReason),
		stderrors.Is(err, domain.ErrReworkNeedsReason),
		stderrors.Is(err, domain.ErrElevatedNeedsReason),
		stderrors.Is(err, domain.ErrInvalidCaptureQuantity),
		stderrors.Is(err, domain.ErrInvalidStepSequence),
		stderrors.Is(err, domain.ErrTemplateWithoutSteps),
		stderrors.Is(err, domain.ErrBadSerialNeedsScrapReason):
		return errors.ErrBadRequest(err.Error()).Wrap(err)

	case stderrors.Is(err, domain.ErrRoleNotAllowed),
		stderrors.Is(err, domain.ErrCorrectionNeedsRole):
		return errors.ErrForbidden(err.Error()).Wrap(err)

	default:
		return errors.ErrInternal("").Wrap(err)
	}
}
