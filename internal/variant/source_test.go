package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(t *testing.T, genome string, start int64) *Record {
	t.Helper()
	r, err := NewRecord(genome, "1", start, "A", "C", BothAlleles)
	require.NoError(t, err)
	return r
}

func collect(t *testing.T, s Source) []string {
	t.Helper()
	var out []string
	for {
		r, err := s.Next()
		require.NoError(t, err)
		if r == nil {
			return out
		}
		out = append(out, r.String())
	}
}

func TestSliceSource(t *testing.T) {
	s := NewSliceSource(rec(t, "a", 1), rec(t, "a", 2))
	assert.Equal(t, 2, s.Len())

	r, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Start())
	assert.Equal(t, 1, s.Len())

	collect(t, s)
	r, err = s.Next()
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestMerge(t *testing.T) {
	a := NewSliceSource(rec(t, "a", 1), rec(t, "a", 5), rec(t, "a", 9))
	b := NewSliceSource(rec(t, "b", 2), rec(t, "b", 5))
	c := NewSliceSource()

	got := collect(t, Merge(a, b, c))
	assert.Equal(t, []string{
		"a:1:1 A>C",
		"b:1:2 A>C",
		"a:1:5 A>C",
		"b:1:5 A>C",
		"a:1:9 A>C",
	}, got)
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, collect(t, Merge()))
}

// scripted yields a fixed sequence of results.
type scripted struct {
	recs []*Record
	errs []error
}

func (s *scripted) Next() (*Record, error) {
	if len(s.recs) == 0 {
		return nil, nil
	}
	r, err := s.recs[0], s.errs[0]
	s.recs, s.errs = s.recs[1:], s.errs[1:]
	return r, err
}

func TestMerge_MalformedIsRecoverable(t *testing.T) {
	bad := &MalformedVariantError{Reason: "bad"}
	a := &scripted{
		recs: []*Record{nil, rec(t, "a", 3)},
		errs: []error{bad, nil},
	}
	b := NewSliceSource(rec(t, "b", 1))
	m := Merge(a, b)

	_, err := m.Next()
	assert.ErrorIs(t, err, bad)

	assert.Equal(t, []string{"b:1:1 A>C", "a:1:3 A>C"}, collect(t, m))
}

func TestMerge_FatalErrorDropsSource(t *testing.T) {
	boom := errors.New("boom")
	a := &scripted{recs: []*Record{nil}, errs: []error{boom}}
	b := NewSliceSource(rec(t, "b", 1))
	m := Merge(a, b)

	_, err := m.Next()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"b:1:1 A>C"}, collect(t, m))
}
