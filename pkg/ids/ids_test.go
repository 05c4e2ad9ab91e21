package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Less(t, a, b)
}

func TestReference(t *testing.T) {
	ref := Reference("SBP")
	assert.True(t, strings.HasPrefix(ref, "SBP-"))
	assert.Len(t, ref, len("SBP-")+26)
	assert.NotEqual(t, ref, Reference("SBP"))

	lower := Lower("refund")
	assert.Equal(t, strings.ToLower(lower), lower)
}
