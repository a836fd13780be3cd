package variant

import (
	"container/heap"
	"errors"
)

// Source is the interface for readers that emit variant records in ascending
// locus order per chromosome.
type Source interface {
	// Next reads the next record.
	// Returns nil, nil when there are no more records. A
	// *MalformedVariantError is recoverable and Next may be called again.
	Next() (*Record, error)
}

// SliceSource serves records from memory.
type SliceSource struct {
	records []*Record
	pos     int
}

// NewSliceSource creates a source over the given records.
func NewSliceSource(records ...*Record) *SliceSource {
	return &SliceSource{records: records}
}

// Next returns the next record, or nil when exhausted.
func (s *SliceSource) Next() (*Record, error) {
	if s.pos >= len(s.records) {
		return nil, nil
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

// Len returns the number of records not yet read.
func (s *SliceSource) Len() int {
	return len(s.records) - s.pos
}

// Merge combines sources of one chromosome, each sorted by locus, into one
// ascending stream. Ties are broken by source order. Merge does not sort its
// inputs: a source that goes backwards is passed through and caught
// downstream.
func Merge(sources ...Source) Source {
	return &mergeSource{sources: sources}
}

type mergeItem struct {
	rec *Record
	src int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].rec.start != h[j].rec.start {
		return h[i].rec.start < h[j].rec.start
	}
	return h[i].src < h[j].src
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type mergeSource struct {
	sources []Source
	h       mergeHeap
	primed  bool
	todo    []int // sources to advance before the next pop
}

func (m *mergeSource) Next() (*Record, error) {
	if !m.primed {
		m.primed = true
		for i := range m.sources {
			m.todo = append(m.todo, i)
		}
	}
	for len(m.todo) > 0 {
		i := m.todo[0]
		rec, err := m.sources[i].Next()
		if err != nil {
			var mv *MalformedVariantError
			if !errors.As(err, &mv) {
				m.todo = m.todo[1:]
			}
			return nil, err
		}
		m.todo = m.todo[1:]
		if rec != nil {
			heap.Push(&m.h, mergeItem{rec: rec, src: i})
		}
	}
	if m.h.Len() == 0 {
		return nil, nil
	}
	it := heap.Pop(&m.h).(mergeItem)
	m.todo = append(m.todo, it.src)
	return it.rec, nil
}
