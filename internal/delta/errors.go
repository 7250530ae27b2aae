package delta

import "errors"

var (
	ErrInvalidRecord = errors.New("invalid delta record")
	ErrPatchFailed   = errors.New("patch failed to apply")
)
