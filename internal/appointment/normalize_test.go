package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZone = time.FixedZone("IST", 5*3600+30*60)

func TestParseConvertsToCanonicalZone(t *testing.T) {
	n := NewNormalizer(testZone)

	got, err := n.Parse("2025-03-01T10:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, "IST", got.Location().String())
	// 10:00 UTC is 15:30 IST.
	assert.Equal(t, 15, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.True(t, got.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestParseKeepsExplicitOffset(t *testing.T) {
	n := NewNormalizer(testZone)

	got, err := n.Parse("2025-03-01T10:00:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())
}

func TestParseRejectsNaiveTimestamp(t *testing.T) {
	n := NewNormalizer(testZone)

	_, err := n.Parse("2025-03-01T10:00:00")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestParseRejectsGarbage(t *testing.T) {
	n := NewNormalizer(testZone)

	for _, raw := range []string{"", "tomorrow", "2025-03-01", "01/03/2025 10:00"} {
		_, err := n.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, "input %q", raw)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := NewNormalizer(testZone)

	inputs := []time.Time{
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600)),
		time.Date(2025, 3, 1, 10, 0, 0, 0, testZone),
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		assert.True(t, once.Equal(twice))
		assert.Equal(t, once.Location(), twice.Location())
	}
}
