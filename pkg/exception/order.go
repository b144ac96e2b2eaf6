package exception

import "errors"

// Order lifecycle errors.
var (
	ErrOrderInvalidTransition = errors.New("order: unsupported status transition")
	ErrOrderAlreadyFilled     = errors.New("order: fully filled order cannot accept event")
	ErrOrderFillAfterDod      = errors.New("order: fill arrived after cancel confirmation")
	ErrOrderAmbiguousJournal  = errors.New("order: journal history ambiguous for cxl-rej revert")
	ErrCancelAlreadyConfirmed = errors.New("order: cancel already confirmed")
)
