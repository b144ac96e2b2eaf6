package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

func newStatic(t *testing.T) *Static {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.AddSecurity(schema.SecurityDef{SecID: "CB_Sec_1", SecurityFloat: 100000, UsdFxRate: 0.5}))
	require.NoError(t, reg.AddSecurity(schema.SecurityDef{SecID: "EQT_Sec_1", UsdFxRate: 1}))
	return NewStatic(reg)
}

func TestUsdPx(t *testing.T) {
	s := newStatic(t)

	usd, err := s.UsdPx(100, "CB_Sec_1")
	require.NoError(t, err)
	assert.Equal(t, float64(50), usd)

	_, err = s.UsdPx(100, "UNKNOWN")
	assert.ErrorIs(t, err, exception.ErrUnknownSecurity)
}

func TestLocalPxOrNotional(t *testing.T) {
	s := newStatic(t)

	local, err := s.LocalPxOrNotional(50, "CB_Sec_1")
	require.NoError(t, err)
	assert.Equal(t, float64(100), local)
}

func TestSecurityFloat(t *testing.T) {
	s := newStatic(t)

	f, ok := s.SecurityFloat("CB_Sec_1")
	assert.True(t, ok)
	assert.Equal(t, int64(100000), f)

	// Unset float means concentration limits cannot apply.
	_, ok = s.SecurityFloat("EQT_Sec_1")
	assert.False(t, ok)
}

func TestSetRegistrySwaps(t *testing.T) {
	s := newStatic(t)

	next := schema.NewRegistry()
	require.NoError(t, next.AddSecurity(schema.SecurityDef{SecID: "CB_Sec_1", UsdFxRate: 2}))
	s.SetRegistry(next)

	usd, err := s.UsdPx(100, "CB_Sec_1")
	require.NoError(t, err)
	assert.Equal(t, float64(200), usd)

	// nil swap keeps the current registry.
	s.SetRegistry(nil)
	_, err = s.UsdPx(100, "CB_Sec_1")
	assert.NoError(t, err)
}
