package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordID_DistinctInSequence(t *testing.T) {
	a := NewRecordID()
	b := NewRecordID()
	assert.True(t, a.Less(b) || a.Compare(b) != 0, "two ids minted in sequence must not collide")
}

func TestRecordID_StringRoundTrip(t *testing.T) {
	id := NewRecordID()
	s := id.String()
	assert.Len(t, s, 26)

	parsed, err := ParseRecordID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestRecordID_StringOrderMatchesByteOrder(t *testing.T) {
	earlier := newRecordIDAt(time.Unix(1000, 0))
	later := newRecordIDAt(time.Unix(2000, 0))

	assert.True(t, earlier.Less(later))
	assert.True(t, earlier.String() < later.String())
}

func TestRecordID_TimeRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	id := newRecordIDAt(now)
	assert.Equal(t, now.UnixMilli(), id.Time().UnixMilli())
}

func TestParseRecordID_Invalid(t *testing.T) {
	_, err := ParseRecordID("too-short")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = ParseRecordID("!!!!!!!!!!!!!!!!!!!!!!!!!!")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRecordID_IsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, NewRecordID().IsZero())
}
