// Package translate converts positions between reference, native and meta
// coordinates using sealed offset tables.
//
// All functions are O(log n), never mutate the table and accept a nil table
// for the reference track itself, which translates as the identity.
package translate

import (
	"github.com/inodb/vibe-sync/internal/offset"
)

// Result is a translated position. Clamped is set when the raw result was
// negative and Position was raised to 0.
type Result struct {
	Position int64
	Clamped  bool
}

func clamp(pos int64) Result {
	if pos < 0 {
		return Result{Position: 0, Clamped: true}
	}
	return Result{Position: pos}
}

// ToNative maps a reference position to the genome's native coordinate.
// Positions past the last entry use the last offset.
func ToNative(t *offset.Table, ref int64) (Result, error) {
	if t == nil {
		return clamp(ref), nil
	}
	off, err := t.NativeOffsetAt(ref)
	if err != nil {
		return Result{}, err
	}
	return clamp(ref + off), nil
}

// ToReferenceFromNative maps a native position back to the reference.
// Inserted bases map to the locus they precede. Reference bases removed by a
// deletion have no native position of their own and do not round trip.
func ToReferenceFromNative(t *offset.Table, native int64) (Result, error) {
	if t == nil {
		return clamp(native), nil
	}
	if err := t.Ready(); err != nil {
		return Result{}, err
	}
	i := t.FloorNative(native)
	if i < 0 {
		return clamp(native), nil
	}
	e := t.Entry(i)
	return clamp(max(e.Position, native-e.NativeOffset)), nil
}

// ToMeta maps a reference position to the shared meta coordinate.
func ToMeta(t *offset.Table, ref int64) (Result, error) {
	if t == nil {
		return clamp(ref), nil
	}
	off, err := t.MetaOffsetAt(ref)
	if err != nil {
		return Result{}, err
	}
	return clamp(ref + off), nil
}

// ToReferenceFromMeta maps a meta position back to the reference. Padding
// positions map to the locus they precede.
func ToReferenceFromMeta(t *offset.Table, meta int64) (Result, error) {
	if t == nil {
		return clamp(meta), nil
	}
	if err := t.Ready(); err != nil {
		return Result{}, err
	}
	i := t.FloorMeta(meta)
	if i < 0 {
		return clamp(meta), nil
	}
	e := t.Entry(i)
	return clamp(max(e.Position, meta-e.MetaOffset)), nil
}

// NativeToMeta maps a native position of the table's genome into meta space.
// Inserted bases keep their order inside the locus padding.
func NativeToMeta(t *offset.Table, native int64) (Result, error) {
	if t == nil {
		return clamp(native), nil
	}
	if err := t.Ready(); err != nil {
		return Result{}, err
	}
	i := t.FloorNative(native)
	if i < 0 {
		return clamp(native), nil
	}
	e := t.Entry(i)
	if ref := native - e.NativeOffset; ref >= e.Position {
		return clamp(ref + e.MetaOffset), nil
	}
	var prev offset.Entry
	if i > 0 {
		prev = t.Entry(i - 1)
	}
	return clamp(native - prev.NativeOffset + prev.MetaOffset), nil
}
