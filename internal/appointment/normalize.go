package appointment

import (
	"errors"
	"time"
)

var ErrInvalidTimestamp = errors.New("invalid or missing timestamp")

// Normalizer converts incoming timestamps into the single canonical zone
// appointments are stored in. Input must carry an explicit UTC offset:
// naive timestamps are always rejected rather than being interpreted
// differently per deployment flag.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	return &Normalizer{loc: loc}
}

func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Parse accepts an RFC 3339 timestamp with an explicit offset and returns
// it in the canonical zone.
func (n *Normalizer) Parse(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ErrInvalidTimestamp
	}
	return n.Normalize(t), nil
}

// Normalize converts an already-parsed timestamp to the canonical zone.
// It is idempotent: Normalize(Normalize(t)) == Normalize(t).
func (n *Normalizer) Normalize(t time.Time) time.Time {
	return t.In(n.loc)
}
