package cram

import "errors"

// ErrTrimStalled reports a trimmer that returned non-empty content without
// shrinking it while the context was still over budget.
var ErrTrimStalled = errors.New("trimmer failed to shrink document")
