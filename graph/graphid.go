package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	levelBits = 3
	cellBits  = 22
	subBits   = 21

	levelMask = 1<<levelBits - 1
	cellMask  = 1<<cellBits - 1
	subMask   = 1<<subBits - 1

	cellShift = levelBits
	subShift  = levelBits + cellBits

	// MaxLevel is the largest level value an id can carry. Levels above
	// Local fit in an id but have no tiling of their own.
	MaxLevel = Level(levelMask)
)

var (
	ErrLevelRange = errors.New("graph: hierarchy level out of range")
	ErrCellRange  = errors.New("graph: grid cell index out of range")
	ErrSubRange   = errors.New("graph: record index out of range")
	ErrIDFormat   = errors.New("graph: malformed tile id")
)

// TileID names a tile, or a single record inside one, across all hierarchy
// levels. The level occupies the 3 least significant bits, the grid-cell
// index the next 22 and the record sub-index the 21 above that:
//
//	bits  0 -  2  hierarchy level
//	bits  3 - 24  grid-cell index within the level
//	bits 25 - 45  record sub-index within the tile
//	bits 46 - 63  unused, zero
//
// The underlying integer gives ids their natural ordering, so ids sort first
// by level, then by cell, then by record. The zero value is a valid id:
// record 0 of Highway cell 0.
type TileID uint64

// InvalidID has all 46 id bits set. It never names a resident tile and is
// the conventional "no tile" sentinel.
const InvalidID TileID = 1<<(levelBits+cellBits+subBits) - 1

// NewTileID packs the three id fields, rejecting values that do not fit
// their bit allocation.
func NewTileID(level Level, cell, sub uint32) (TileID, error) {
	if level > MaxLevel {
		return InvalidID, fmt.Errorf("%w: %d", ErrLevelRange, level)
	}
	if cell > cellMask {
		return InvalidID, fmt.Errorf("%w: %d", ErrCellRange, cell)
	}
	if sub > subMask {
		return InvalidID, fmt.Errorf("%w: %d", ErrSubRange, sub)
	}
	return TileID(level) | TileID(cell)<<cellShift | TileID(sub)<<subShift, nil
}

// Level returns the hierarchy level field.
func (id TileID) Level() Level {
	return Level(id & levelMask)
}

// Cell returns the grid-cell index field.
func (id TileID) Cell() uint32 {
	return uint32(id>>cellShift) & cellMask
}

// Sub returns the record sub-index field.
func (id TileID) Sub() uint32 {
	return uint32(id>>subShift) & subMask
}

// Base returns the id with the record sub-index forced to zero. Archive and
// index lookups key on base ids.
func (id TileID) Base() TileID {
	return id &^ (subMask << subShift)
}

// Valid reports whether the id is a well formed tile or record id: the
// unused high bits are zero and the id is not the InvalidID sentinel.
func (id TileID) Valid() bool {
	return id != InvalidID && id>>(levelBits+cellBits+subBits) == 0
}

// String formats the id as "level/cell/sub", eg "2/838852/161285".
func (id TileID) String() string {
	return fmt.Sprintf("%d/%d/%d", id.Level(), id.Cell(), id.Sub())
}

// ParseTileID reverses String. All three fields are required and range
// checked.
func ParseTileID(s string) (TileID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return InvalidID, fmt.Errorf("%w: %q", ErrIDFormat, s)
	}
	level, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %q: %v", ErrIDFormat, s, err)
	}
	cell, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %q: %v", ErrIDFormat, s, err)
	}
	sub, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return InvalidID, fmt.Errorf("%w: %q: %v", ErrIDFormat, s, err)
	}
	return NewTileID(Level(level), uint32(cell), uint32(sub))
}

// MarshalText implements encoding.TextMarshaler using the String form.
func (id TileID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting what
// ParseTileID accepts.
func (id *TileID) UnmarshalText(text []byte) error {
	parsed, err := ParseTileID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
