package exception

import "errors"

// Service readiness errors. ErrServiceUnavailable is retryable: the caller
// should re-submit the whole event once dependencies are initialized.
var (
	ErrServiceUnavailable = errors.New("service: not ready")
	ErrKillSwitchEngaged  = errors.New("service: kill switch engaged")
)

// Market data errors. Fatal for the affected event, never silently dropped.
var (
	ErrNoTopOfBook     = errors.New("market data: top of book unavailable")
	ErrNoLastTradePx   = errors.New("market data: last trade px unavailable")
	ErrUnknownFxRate   = errors.New("market data: fx rate unavailable")
	ErrUnknownSecurity = errors.New("market data: unknown security")
)
