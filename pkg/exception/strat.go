package exception

import "errors"

// Strategy lifecycle errors.
var (
	ErrStratNotFound          = errors.New("strat: no ongoing pair strat for symbol side")
	ErrStratNotReady          = errors.New("strat: state is not READY")
	ErrStratLegOccupied       = errors.New("strat: symbol side already held by an ongoing strat")
	ErrStratActivatedToday    = errors.New("strat: symbol pair already activated today")
	ErrStratUnloadableState   = errors.New("strat: only READY or DONE strats can be unloaded")
	ErrStratInvalidTransition = errors.New("strat: unsupported state transition")
)
