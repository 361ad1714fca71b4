package ws

import (
	"errors"

	"github.com/paintroom/paintroom/internal/errs"
)

// errCode maps engine errors to the wire error vocabulary. Anything
// unrecognized is reported as internal without leaking detail.
func errCode(err error) string {
	switch {
	case errors.Is(err, errs.ErrProtocolViolation):
		return "protocolViolation"
	case errors.Is(err, errs.ErrPermissionDenied):
		return "permissionDenied"
	case errors.Is(err, errs.ErrUnknownLayer):
		return "unknownLayer"
	case errors.Is(err, errs.ErrCannotDeleteBaseLayer):
		return "cannotDeleteBaseLayer"
	case errors.Is(err, errs.ErrLastLayerRemaining):
		return "lastLayerRemaining"
	case errors.Is(err, errs.ErrDuplicateIdentity):
		return "duplicateLayer"
	case errors.Is(err, errs.ErrNothingToUndo):
		return "nothingToUndo"
	case errors.Is(err, errs.ErrNothingToRedo):
		return "nothingToRedo"
	case errors.Is(err, errs.ErrInsufficientFunds):
		return "insufficientFunds"
	case errors.Is(err, errs.ErrNameTaken):
		return "nameTaken"
	case errors.Is(err, errs.ErrRateLimited):
		return "rateLimited"
	case errors.Is(err, errs.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, errs.ErrNotFound):
		return "notFound"
	default:
		return "internal"
	}
}

// publicReason strips wrapped detail for codes whose message is safe to echo.
func publicReason(err error) string {
	if code := errCode(err); code == "internal" {
		return "internal error"
	}
	return err.Error()
}
