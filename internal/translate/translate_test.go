package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-sync/internal/offset"
)

// indelTable is a single genome with a SNP at 100, +3 at 105 and -2 at 110.
func indelTable(t *testing.T) *offset.Table {
	t.Helper()
	tb, err := offset.FromEntries("g1", "1", []offset.Entry{
		{Position: 105, NativeOffset: 3, MetaOffset: 3},
		{Position: 110, NativeOffset: 1, MetaOffset: 3},
	})
	require.NoError(t, err)
	return tb
}

func pos(t *testing.T, r Result, err error) int64 {
	t.Helper()
	require.NoError(t, err)
	assert.False(t, r.Clamped)
	return r.Position
}

func TestToNative(t *testing.T) {
	tb := indelTable(t)

	tests := []struct {
		ref  int64
		want int64
	}{
		{0, 0},
		{104, 104},
		{105, 108},
		{109, 112},
		{112, 113},
		{130, 131},
	}
	for _, tt := range tests {
		r, err := ToNative(tb, tt.ref)
		assert.Equal(t, tt.want, pos(t, r, err), "ToNative(%d)", tt.ref)
	}
}

func TestToReferenceFromNative(t *testing.T) {
	tb := indelTable(t)

	tests := []struct {
		native int64
		want   int64
	}{
		{104, 104},
		// inserted bases map to the locus they precede
		{105, 105},
		{106, 105},
		{107, 105},
		{108, 105},
		{112, 109},
		{113, 112},
		{131, 130},
	}
	for _, tt := range tests {
		r, err := ToReferenceFromNative(tb, tt.native)
		assert.Equal(t, tt.want, pos(t, r, err), "ToReferenceFromNative(%d)", tt.native)
	}
}

func TestNativeRoundTrip(t *testing.T) {
	tb := indelTable(t)
	for ref := range int64(200) {
		if ref == 110 || ref == 111 {
			continue // deleted
		}
		n, err := ToNative(tb, ref)
		require.NoError(t, err)
		back, err := ToReferenceFromNative(tb, n.Position)
		require.NoError(t, err)
		assert.Equal(t, ref, back.Position, "ref %d via native %d", ref, n.Position)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	tb := indelTable(t)
	var prev int64 = -1
	for ref := range int64(200) {
		m, err := ToMeta(tb, ref)
		require.NoError(t, err)
		assert.Greater(t, m.Position, prev, "ToMeta must be strictly increasing")
		prev = m.Position

		back, err := ToReferenceFromMeta(tb, m.Position)
		require.NoError(t, err)
		assert.Equal(t, ref, back.Position)
	}
}

func TestToReferenceFromMeta_Padding(t *testing.T) {
	tb := indelTable(t)
	for meta := int64(105); meta <= 108; meta++ {
		r, err := ToReferenceFromMeta(tb, meta)
		assert.Equal(t, int64(105), pos(t, r, err))
	}
}

func TestNativeToMeta(t *testing.T) {
	// g1 inserts 2 at 200, another genome inserts 5 there.
	tb, err := offset.FromEntries("g1", "1", []offset.Entry{
		{Position: 200, NativeOffset: 2, MetaOffset: 5},
	})
	require.NoError(t, err)

	tests := []struct {
		native int64
		want   int64
	}{
		{199, 199},
		// the two inserted bases keep their order at the start of the padding
		{200, 200},
		{201, 201},
		// reference base 200
		{202, 205},
		{210, 213},
	}
	for _, tt := range tests {
		r, err := NativeToMeta(tb, tt.native)
		assert.Equal(t, tt.want, pos(t, r, err), "NativeToMeta(%d)", tt.native)
	}
}

func TestNilTableIsIdentity(t *testing.T) {
	for _, fn := range []func(*offset.Table, int64) (Result, error){
		ToNative, ToReferenceFromNative, ToMeta, ToReferenceFromMeta, NativeToMeta,
	} {
		r, err := fn(nil, 42)
		require.NoError(t, err)
		assert.Equal(t, Result{Position: 42}, r)
	}
}

func TestClamped(t *testing.T) {
	// A deletion at 0 pulls early positions below zero.
	tb, err := offset.FromEntries("g1", "1", []offset.Entry{
		{Position: 0, NativeOffset: -5, MetaOffset: 0},
	})
	require.NoError(t, err)

	r, err := ToNative(tb, 2)
	require.NoError(t, err)
	assert.Equal(t, Result{Position: 0, Clamped: true}, r)

	r, err = ToNative(tb, 9)
	require.NoError(t, err)
	assert.Equal(t, Result{Position: 4}, r)

	r, err = ToMeta(nil, -3)
	require.NoError(t, err)
	assert.True(t, r.Clamped)
}

func TestNotReady(t *testing.T) {
	tb := offset.New("g1", "1")
	var nr *offset.NotReadyError

	_, err := ToNative(tb, 0)
	assert.ErrorAs(t, err, &nr)
	_, err = ToReferenceFromNative(tb, 0)
	assert.ErrorAs(t, err, &nr)
	_, err = ToMeta(tb, 0)
	assert.ErrorAs(t, err, &nr)
	_, err = ToReferenceFromMeta(tb, 0)
	assert.ErrorAs(t, err, &nr)
	_, err = NativeToMeta(tb, 0)
	assert.ErrorAs(t, err, &nr)
}
