package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReferenceRoundTrip(t *testing.T) {
	clocks := []time.Time{
		time.Unix(0, 0),
		time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2038, 1, 19, 3, 14, 8, 0, time.UTC),
	}
	ids := []int64{0, 1, 5, 42, 1001, 987654321}
	for _, now := range clocks {
		codec := ReferenceCodec{Clock: func() time.Time { return now }}
		for _, id := range ids {
			ref, err := codec.Encode(id)
			require.NoError(t, err)
			require.NotEmpty(t, ref)

			got, err := ReferenceCodec{}.Decode(ref)
			require.NoError(t, err)
			require.Equal(t, id, got, "ref %s at %s", ref, now)
		}
	}
}

func TestReferenceSaltChangesEncoding(t *testing.T) {
	a := ReferenceCodec{Clock: func() time.Time { return time.Unix(1000, 0) }}
	b := ReferenceCodec{Clock: func() time.Time { return time.Unix(2000, 0) }}
	refA, err := a.Encode(7)
	require.NoError(t, err)
	refB, err := b.Encode(7)
	require.NoError(t, err)
	require.NotEqual(t, refA, refB)
}

func TestReferenceDecodeInvalid(t *testing.T) {
	codec := ReferenceCodec{}
	for _, ref := range []string{"", "   ", "!!!", "ab$cd"} {
		_, err := codec.Decode(ref)
		require.ErrorIs(t, err, ErrInvalidReference, "ref %q", ref)
	}
}

func TestReferenceRejectsNegativeID(t *testing.T) {
	_, err := ReferenceCodec{}.Encode(-1)
	require.Error(t, err)
}
