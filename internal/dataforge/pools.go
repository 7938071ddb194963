package dataforge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/xerrors"
)

// Pool element accessors used by the instance reader (internal/instance) to
// resolve array-indirection properties and primitive scalars. All pools are
// frozen after Parse returns.

func (v *View) Int8At(i int) (int8, error)   { return idx(v.pools.Int8, i) }
func (v *View) Int16At(i int) (int16, error) { return idx(v.pools.Int16, i) }
func (v *View) Int32At(i int) (int32, error) { return idx(v.pools.Int32, i) }
func (v *View) Int64At(i int) (int64, error) { return idx(v.pools.Int64, i) }

func (v *View) UInt8At(i int) (uint8, error)   { return idx(v.pools.UInt8, i) }
func (v *View) UInt16At(i int) (uint16, error) { return idx(v.pools.UInt16, i) }
func (v *View) UInt32At(i int) (uint32, error) { return idx(v.pools.UInt32, i) }
func (v *View) UInt64At(i int) (uint64, error) { return idx(v.pools.UInt64, i) }

func (v *View) BoolAt(i int) (bool, error)      { return idx(v.pools.Bool, i) }
func (v *View) SingleAt(i int) (float32, error) { return idx(v.pools.Single, i) }
func (v *View) DoubleAt(i int) (float64, error) { return idx(v.pools.Double, i) }

func (v *View) GuidAt(i int) (uuid.UUID, error) { return idx(v.pools.Guid, i) }

func (v *View) StringIDAt(i int) (string, error) {
	off, err := idx(v.pools.StringID, i)
	if err != nil {
		return "", err
	}
	return v.String1(off), nil
}

func (v *View) LocaleAt(i int) (string, error) {
	off, err := idx(v.pools.Locale, i)
	if err != nil {
		return "", err
	}
	return v.String1(off), nil
}

func (v *View) EnumAt(i int) (string, error) {
	off, err := idx(v.pools.Enum, i)
	if err != nil {
		return "", err
	}
	return v.String1(off), nil
}

func (v *View) StrongPtrAt(i int) (PtrRef, error) { return idx(v.pools.StrongPtr, i) }
func (v *View) WeakPtrAt(i int) (PtrRef, error)    { return idx(v.pools.WeakPtr, i) }
func (v *View) ReferenceAt(i int) (RefVal, error)  { return idx(v.pools.Reference, i) }

func idx[T any](pool []T, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(pool) {
		return zero, fmt.Errorf("%w: pool index %d out of range [0,%d)", xerrors.ErrTruncation, i, len(pool))
	}
	return pool[i], nil
}
