package engine

import (
	"errors"

	"github.com/spektr-org/obsviz/schema"
)

// Errors returned by state transitions and session operations. Missing or
// invalid field values inside records are never reported as errors.
var (
	ErrUnknownField = schema.ErrUnknownField
	ErrFieldKind    = schema.ErrNotEligible
	ErrUnknownPlot  = schema.ErrUnknownPlot

	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidPage   = errors.New("invalid page")
	ErrNoSource      = errors.New("no source configured")
	ErrClosed        = errors.New("session closed")
)
