// Package pricing converts between local and USD prices/notionals and
// exposes static reference data for the reconciliation engine.
package pricing

import (
	"sync/atomic"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

// Adapter converts prices and notionals between local and USD terms.
type Adapter interface {
	UsdPx(px float64, secID string) (float64, error)
	LocalPxOrNotional(notional float64, secID string) (float64, error)
}

// ReferenceData resolves static security-master attributes.
type ReferenceData interface {
	SecurityFloat(secID string) (int64, bool)
}

// Static serves both pricing and reference data from the security registry.
// The registry can be swapped atomically on config reload.
type Static struct {
	reg atomic.Pointer[schema.Registry]
}

// NewStatic creates an adapter backed by the given registry.
func NewStatic(reg *schema.Registry) *Static {
	s := &Static{}
	s.reg.Store(reg)
	return s
}

// SetRegistry swaps the security master, typically on config reload.
func (s *Static) SetRegistry(reg *schema.Registry) {
	if reg != nil {
		s.reg.Store(reg)
	}
}

// UsdPx converts a local price to USD using the security's fx rate.
func (s *Static) UsdPx(px float64, secID string) (float64, error) {
	def, ok := s.reg.Load().Security(secID)
	if !ok {
		return 0, exception.ErrUnknownSecurity
	}
	if def.UsdFxRate <= 0 {
		return 0, exception.ErrUnknownFxRate
	}
	return px * def.UsdFxRate, nil
}

// LocalPxOrNotional converts a USD notional back to local terms.
func (s *Static) LocalPxOrNotional(notional float64, secID string) (float64, error) {
	def, ok := s.reg.Load().Security(secID)
	if !ok {
		return 0, exception.ErrUnknownSecurity
	}
	if def.UsdFxRate <= 0 {
		return 0, exception.ErrUnknownFxRate
	}
	return notional / def.UsdFxRate, nil
}

// SecurityFloat returns the free-float share count for a security.
func (s *Static) SecurityFloat(secID string) (int64, bool) {
	def, ok := s.reg.Load().Security(secID)
	if !ok || def.SecurityFloat <= 0 {
		return 0, false
	}
	return def.SecurityFloat, true
}
