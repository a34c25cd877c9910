package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexFilters(t *testing.T) {
	var f RegexFilters
	assert.True(t, f.AsFilter(CaseID{Suite: "s", Case: "Query.1"}))
	assert.False(t, f.IsDefined())

	require.NoError(t, f.MustMatch.Set(`^basic/`))
	require.NoError(t, f.MustNotMatch.Set(`/KSetStop\.`))
	require.Error(t, f.MustMatch.Set(`(`))

	id := CaseID{Suite: "basic", Configuration: "pcrc", Topology: "sel0", Case: "KeyProg.2"}
	assert.Equal(t, "basic/pcrc/sel0/KeyProg.2", id.String())
	assert.True(t, f.AsFilter(id))

	id.Case = "KSetStop.1"
	assert.False(t, f.AsFilter(id))

	id.Suite, id.Case = "other", "Query.1"
	assert.False(t, f.AsFilter(id))

	assert.Equal(t, []string{
		`skip any not matching "^basic/"`,
		`skip any matching "/KSetStop\."`,
	}, f.Describe())
}
