package schema

import "fmt"

// SecurityDef is one security-master entry.
type SecurityDef struct {
	SecID         string
	SecurityFloat int64
	UsdFxRate     float64
	LotSize       int64
}

// Registry stores the static security master in a compact form.
type Registry struct {
	securities []SecurityDef
	bySecID    map[string]int
}

// NewRegistry creates an empty security registry.
func NewRegistry() *Registry {
	return &Registry{bySecID: make(map[string]int)}
}

// AddSecurity registers a security definition.
func (r *Registry) AddSecurity(def SecurityDef) error {
	if def.SecID == "" {
		return fmt.Errorf("security id is empty")
	}
	if _, ok := r.bySecID[def.SecID]; ok {
		return fmt.Errorf("security already exists: %s", def.SecID)
	}
	if def.UsdFxRate == 0 {
		def.UsdFxRate = 1
	}
	r.bySecID[def.SecID] = len(r.securities)
	r.securities = append(r.securities, def)
	return nil
}

// Security returns the definition for a security id.
func (r *Registry) Security(secID string) (SecurityDef, bool) {
	idx, ok := r.bySecID[secID]
	if !ok {
		return SecurityDef{}, false
	}
	return r.securities[idx], true
}

// SecurityCount returns the number of registered securities.
func (r *Registry) SecurityCount() int {
	return len(r.securities)
}

// SecurityAt returns the definition by zero-based index.
func (r *Registry) SecurityAt(index int) (SecurityDef, bool) {
	if index < 0 || index >= len(r.securities) {
		return SecurityDef{}, false
	}
	return r.securities[index], true
}
