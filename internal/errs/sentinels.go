// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across session/service/repo layers.
var (
	// ErrNotFound indicates the requested entity (user, item, drawing) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownLayer indicates an operation referenced a layer id that is not present.
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrPermissionDenied indicates a role-gated action attempted by a non-artist.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInsufficientFunds indicates a purchase exceeding the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateIdentity indicates a layer or item id collision.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrNameTaken indicates the display name is already in use in this session.
	ErrNameTaken = errors.New("name taken")

	// ErrPersistence indicates the storage backend failed or is unavailable.
	ErrPersistence = errors.New("persistence failure")

	// ErrProtocolViolation indicates a malformed or out-of-state event.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrNothingToUndo indicates the undo stack is at its floor.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo indicates the redo stack is empty.
	ErrNothingToRedo = errors.New("nothing to redo")

	// ErrCannotDeleteBaseLayer indicates an attempt to delete the base layer.
	ErrCannotDeleteBaseLayer = errors.New("cannot delete base layer")

	// ErrLastLayerRemaining indicates an attempt to delete the only layer left.
	ErrLastLayerRemaining = errors.New("last layer remaining")

	// ErrUnauthorized indicates failed authentication or an economy operation
	// attempted by a guest / in anonymous relay mode.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)
