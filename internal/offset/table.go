// Package offset provides per-genome, per-chromosome coordinate offset tables.
package offset

import (
	"fmt"
	"sort"
)

// Entry is one offset step. Offsets hold for every reference position at or
// after Position until the next entry.
type Entry struct {
	Position     int64 // reference position of the step
	NativeOffset int64 // cumulative native - reference delta
	MetaOffset   int64 // cumulative meta - reference delta
}

// ExtraOffset is the meta padding this genome reserves without having
// inserted it itself.
func (e Entry) ExtraOffset() int64 {
	return e.MetaOffset - e.NativeOffset
}

// State is the construction state of a table.
type State int

const (
	Open State = iota
	MetaPending
	Sealed
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case MetaPending:
		return "META_PENDING"
	case Sealed:
		return "SEALED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Growth bounds for the entry array. Capacity doubles, but never grows by
// less than minGrowth or more than maxGrowth entries at a time.
const (
	minGrowth = 64
	maxGrowth = 1 << 16
)

// Table is an append-only, position-sorted array of offset entries for one
// genome on one chromosome.
//
// A table accepts Append while Open, accepts SetMetaOffset once Finish moves
// it to MetaPending, and answers queries only after Seal. A sealed table is
// immutable and safe for concurrent readers.
type Table struct {
	genome string
	chrom  string
	state  State

	entries []Entry
	last    int64
	hasLast bool

	// meta back-fill, MetaPending only
	filled      []Entry
	cursor      int
	lastMetaPos int64
	hasMeta     bool
	lastMeta    int64

	// inverse lookup keys, built at seal
	nativeKeys []int64
	metaKeys   []int64
}

// New creates an empty, open table.
func New(genome, chrom string) *Table {
	return &Table{genome: genome, chrom: chrom}
}

// FromEntries creates a sealed table from previously sealed entries, e.g. a
// restored snapshot. Entries are validated and copied.
func FromEntries(genome, chrom string, entries []Entry) (*Table, error) {
	t := New(genome, chrom)
	t.entries = make([]Entry, len(entries))
	copy(t.entries, entries)

	for i, e := range t.entries {
		if e.Position < 0 {
			return nil, t.violation(e.Position, "negative position")
		}
		if e.MetaOffset < e.NativeOffset {
			return nil, t.violation(e.Position, fmt.Sprintf("meta offset %d below native offset %d", e.MetaOffset, e.NativeOffset))
		}
		if i > 0 {
			prev := t.entries[i-1]
			if e.Position <= prev.Position {
				return nil, t.violation(e.Position, fmt.Sprintf("position not after %d", prev.Position))
			}
			if e.MetaOffset < prev.MetaOffset {
				return nil, t.violation(e.Position, "meta offset decreases")
			}
		}
	}

	t.seal()
	return t, nil
}

func (t *Table) Genome() string     { return t.genome }
func (t *Table) Chromosome() string { return t.chrom }
func (t *Table) State() State       { return t.state }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entry returns the i-th entry.
func (t *Table) Entry(i int) Entry { return t.entries[i] }

// Entries returns the sealed entries. The slice must not be modified.
func (t *Table) Entries() ([]Entry, error) {
	if err := t.Ready(); err != nil {
		return nil, err
	}
	return t.entries, nil
}

// LastPosition returns the last appended position, if any.
func (t *Table) LastPosition() (int64, bool) {
	return t.last, t.hasLast
}

// Append adds a native offset step of netLength at pos. Appends at the last
// position accumulate into the same entry. A zero netLength records no entry
// but still advances the last position.
func (t *Table) Append(pos, netLength int64) error {
	if t.state != Open {
		return t.violation(pos, fmt.Sprintf("append in state %s", t.state))
	}
	if pos < 0 {
		return t.violation(pos, "negative position")
	}
	if t.hasLast && pos < t.last {
		return &OutOfOrderInputError{Genome: t.genome, Chromosome: t.chrom, Position: pos, Last: t.last}
	}
	t.last, t.hasLast = pos, true
	if netLength == 0 {
		return nil
	}

	n := len(t.entries)
	if n > 0 && t.entries[n-1].Position == pos {
		t.entries[n-1].NativeOffset += netLength
		return nil
	}
	t.entries = appendEntry(t.entries, Entry{Position: pos, NativeOffset: lastNative(t.entries) + netLength})
	return nil
}

// Finish closes the table for appends and starts the meta back-fill.
func (t *Table) Finish() error {
	if t.state != Open {
		return t.violation(t.last, fmt.Sprintf("finish in state %s", t.state))
	}
	t.state = MetaPending
	t.filled = make([]Entry, 0, len(t.entries))
	return nil
}

// SetMetaOffset records the cumulative meta offset at pos. Calls must come
// in ascending position order with non-decreasing values, and value must not
// be below the native offset at pos. Positions without a native entry get a
// new entry carrying the preceding native offset.
func (t *Table) SetMetaOffset(pos, value int64) error {
	if t.state != MetaPending {
		return t.violation(pos, fmt.Sprintf("set meta offset in state %s", t.state))
	}
	if t.hasMeta && pos <= t.lastMetaPos {
		return t.violation(pos, fmt.Sprintf("meta offset set after position %d", t.lastMetaPos))
	}
	if value < t.lastMeta {
		return t.violation(pos, fmt.Sprintf("meta offset %d below preceding %d", value, t.lastMeta))
	}
	if err := t.fillBefore(pos); err != nil {
		return err
	}

	native := lastNative(t.filled)
	hasEntry := t.cursor < len(t.entries) && t.entries[t.cursor].Position == pos
	if hasEntry {
		native = t.entries[t.cursor].NativeOffset
	}
	if value < native {
		return t.violation(pos, fmt.Sprintf("meta offset %d below native offset %d", value, native))
	}
	if hasEntry {
		t.cursor++
	}

	t.filled = appendEntry(t.filled, Entry{Position: pos, NativeOffset: native, MetaOffset: value})
	t.lastMetaPos, t.hasMeta, t.lastMeta = pos, true, value
	return nil
}

// Seal completes the meta back-fill and makes the table queryable.
func (t *Table) Seal() error {
	if t.state != MetaPending {
		return t.violation(t.last, fmt.Sprintf("seal in state %s", t.state))
	}
	if err := t.fillRest(); err != nil {
		return err
	}
	t.entries = t.filled
	t.filled = nil
	t.seal()
	return nil
}

// fillBefore copies native entries below pos into the back-fill, carrying
// the current meta offset.
func (t *Table) fillBefore(pos int64) error {
	for t.cursor < len(t.entries) && t.entries[t.cursor].Position < pos {
		if err := t.fillNext(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) fillRest() error {
	for t.cursor < len(t.entries) {
		if err := t.fillNext(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) fillNext() error {
	e := t.entries[t.cursor]
	if e.NativeOffset > t.lastMeta {
		return t.violation(e.Position, fmt.Sprintf("native offset %d exceeds meta offset %d", e.NativeOffset, t.lastMeta))
	}
	e.MetaOffset = t.lastMeta
	t.filled = appendEntry(t.filled, e)
	t.cursor++
	return nil
}

func (t *Table) seal() {
	t.nativeKeys = make([]int64, len(t.entries))
	t.metaKeys = make([]int64, len(t.entries))
	var prevNative, prevMeta int64
	for i, e := range t.entries {
		// Key i is where Position would land had the step not happened.
		// Running maxima keep the keys sorted when a deletion spans the
		// next locus.
		nk, mk := e.Position+prevNative, e.Position+prevMeta
		if i > 0 {
			nk = max(nk, t.nativeKeys[i-1])
			mk = max(mk, t.metaKeys[i-1])
		}
		t.nativeKeys[i], t.metaKeys[i] = nk, mk
		prevNative, prevMeta = e.NativeOffset, e.MetaOffset
	}
	t.state = Sealed
}

// Ready returns a *NotReadyError unless the table is sealed.
func (t *Table) Ready() error {
	if t.state != Sealed {
		return &NotReadyError{Genome: t.genome, Chromosome: t.chrom, State: t.state}
	}
	return nil
}

// Floor returns the index of the greatest entry at or before pos, or -1.
func (t *Table) Floor(pos int64) int {
	return sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Position > pos
	}) - 1
}

// FloorNative returns the index of the entry whose native segment holds the
// native position n, or -1 if n precedes every step.
func (t *Table) FloorNative(n int64) int {
	return sort.Search(len(t.nativeKeys), func(i int) bool {
		return t.nativeKeys[i] > n
	}) - 1
}

// FloorMeta is FloorNative for meta positions.
func (t *Table) FloorMeta(m int64) int {
	return sort.Search(len(t.metaKeys), func(i int) bool {
		return t.metaKeys[i] > m
	}) - 1
}

// NativeOffsetAt returns the native offset in effect at pos.
func (t *Table) NativeOffsetAt(pos int64) (int64, error) {
	if err := t.Ready(); err != nil {
		return 0, err
	}
	if i := t.Floor(pos); i >= 0 {
		return t.entries[i].NativeOffset, nil
	}
	return 0, nil
}

// MetaOffsetAt returns the meta offset in effect at pos.
func (t *Table) MetaOffsetAt(pos int64) (int64, error) {
	if err := t.Ready(); err != nil {
		return 0, err
	}
	if i := t.Floor(pos); i >= 0 {
		return t.entries[i].MetaOffset, nil
	}
	return 0, nil
}

// ExtraOffsetAt returns the meta padding reserved at pos.
func (t *Table) ExtraOffsetAt(pos int64) (int64, error) {
	if err := t.Ready(); err != nil {
		return 0, err
	}
	if i := t.Floor(pos); i >= 0 {
		return t.entries[i].ExtraOffset(), nil
	}
	return 0, nil
}

func (t *Table) violation(pos int64, msg string) error {
	return &InvariantViolationError{Genome: t.genome, Chromosome: t.chrom, Position: pos, Message: msg}
}

func lastNative(entries []Entry) int64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].NativeOffset
}

func appendEntry(dst []Entry, e Entry) []Entry {
	if len(dst) == cap(dst) {
		inc := min(max(cap(dst), minGrowth), maxGrowth)
		grown := make([]Entry, len(dst), cap(dst)+inc)
		copy(grown, dst)
		dst = grown
	}
	return append(dst, e)
}
