package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/searchtype"
)

func TestCompiler(t *testing.T) {
	c := NewCompiler(searchtype.WithExpressionCacheSize(8))

	first, err := c.Compile("Patient.name.family")
	require.NoError(t, err)
	second, err := c.Compile("  Patient.name.family ")
	require.NoError(t, err)

	assert.Same(t, first, second)
	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)

	_, err = c.Compile("Patient.")
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Equal(t, 1, c.Stats().Size, "errors are not cached")
}

func TestCompiler_Strict(t *testing.T) {
	c := NewCompiler(searchtype.WithStrictSyntax(true))

	e, err := c.Compile("Observation.value as Quantity")
	require.NoError(t, err)
	assert.Equal(t, "Observation.value as Quantity", e.String())

	_, err = c.Compile("Observation.value as")
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = c.Compile("Patient.name.where(use = 'official').exists()")
	require.NoError(t, err)

	for _, text := range []string{
		"Patient.name.frobnicate()",
		"Patient.name.where()",
		"Patient.link.other.resolve(1)",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := c.Compile(text)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestCompiler_LenientFunctions(t *testing.T) {
	c := NewCompiler()

	e, err := c.Compile("Patient.name.frobnicate()")
	require.NoError(t, err)
	assert.Equal(t, "Patient.name.frobnicate()", e.String())
}
