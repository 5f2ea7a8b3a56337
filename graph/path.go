package graph

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	tileSuffix = ".gph"
	gzipSuffix = ".gz"
)

// pathWidth is the digit count used for cell indexes in archive entry
// names: enough digits for the level's largest cell, rounded up to whole
// 3 digit groups. Local tiles use 9 digits, Highway and Arterial 6.
func pathWidth(t Tiling) int {
	digits := len(strconv.FormatUint(uint64(t.CellCount()-1), 10))
	if r := digits % 3; r != 0 {
		digits += 3 - r
	}
	return digits
}

// TilePath returns the archive entry name for a tile, for example
// "2/000/838/852.gph": the level, then the zero padded cell index split
// into 3 digit groups. The record sub-index does not participate.
func TilePath(id TileID) (string, error) {
	t, ok := TilingForLevel(id.Level())
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrLevelRange, id.Level())
	}
	cell := id.Cell()
	if cell >= t.CellCount() {
		return "", fmt.Errorf("%w: %d", ErrCellRange, cell)
	}

	digits := fmt.Sprintf("%0*d", pathWidth(t), cell)
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(id.Level())))
	for i := 0; i < len(digits); i += 3 {
		b.WriteByte('/')
		b.WriteString(digits[i : i+3])
	}
	b.WriteString(tileSuffix)
	return b.String(), nil
}

// ParseTilePath recovers the base tile id from an archive entry name. It
// tolerates a leading "./" and a trailing ".gz" after the tile suffix, and
// reports false for names that are not well formed tile paths, so callers
// can skip foreign archive entries without error handling.
func ParseTilePath(name string) (TileID, bool) {
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimSuffix(name, gzipSuffix)
	if !strings.HasSuffix(name, tileSuffix) {
		return InvalidID, false
	}
	name = strings.TrimSuffix(name, tileSuffix)

	parts := strings.Split(name, "/")
	if len(parts) < 2 {
		return InvalidID, false
	}
	level, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return InvalidID, false
	}
	t, ok := TilingForLevel(Level(level))
	if !ok {
		return InvalidID, false
	}

	var digits strings.Builder
	for _, group := range parts[1:] {
		if len(group) != 3 {
			return InvalidID, false
		}
		digits.WriteString(group)
	}
	if digits.Len() != pathWidth(t) {
		return InvalidID, false
	}
	cell, err := strconv.ParseUint(digits.String(), 10, 32)
	if err != nil || uint32(cell) >= t.CellCount() {
		return InvalidID, false
	}

	id, err := NewTileID(Level(level), uint32(cell), 0)
	if err != nil {
		return InvalidID, false
	}
	return id, true
}
