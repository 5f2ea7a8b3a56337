package graph

import "math"

// LatLon is a position in degrees. North and east are positive.
type LatLon struct {
	Lat float64
	Lon float64
}

// BBox is an axis aligned bounding box in degrees.
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Valid reports whether the box is non degenerate on both axes.
func (b BBox) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Contains reports whether p falls inside the box. The minimum edges are
// inclusive and the maximum edges exclusive, so adjacent boxes do not both
// claim their shared boundary.
func (b BBox) Contains(p LatLon) bool {
	return p.Lat >= b.MinLat && p.Lat < b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon < b.MaxLon
}

// Intersects reports whether the two boxes share any point, boundaries
// included.
func (b BBox) Intersects(o BBox) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat &&
		b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon
}

// Tiling is the fixed world grid for one hierarchy level. The grid covers
// latitudes [-90,90] and longitudes [-180,180] and every level's grid starts
// at the south west corner, so cell indexes are stable for the life of a
// level's tile size.
type Tiling struct {
	level Level
	size  float64
	ncols uint32
	nrows uint32
}

var tilings = [...]Tiling{
	{level: Highway, size: 4, ncols: 90, nrows: 45},
	{level: Arterial, size: 1, ncols: 360, nrows: 180},
	{level: Local, size: 0.25, ncols: 1440, nrows: 720},
}

// TilingForLevel returns the grid for a hierarchy level, or false for levels
// that have no tiling.
func TilingForLevel(l Level) (Tiling, bool) {
	if int(l) >= len(tilings) {
		return Tiling{}, false
	}
	return tilings[l], true
}

// Level returns the hierarchy level the grid belongs to.
func (t Tiling) Level() Level {
	return t.level
}

// TileSize returns the tile edge length in degrees.
func (t Tiling) TileSize() float64 {
	return t.size
}

// CellCount returns the number of cells in the grid. Valid cell indexes are
// [0, CellCount).
func (t Tiling) CellCount() uint32 {
	return t.ncols * t.nrows
}

// Cell returns the grid cell containing p, or false for positions outside
// the world bounds. Positions exactly on the north or east world edge fall
// into the last row or column.
func (t Tiling) Cell(p LatLon) (uint32, bool) {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return 0, false
	}
	row := uint32((p.Lat + 90) / t.size)
	if row >= t.nrows {
		row = t.nrows - 1
	}
	col := uint32((p.Lon + 180) / t.size)
	if col >= t.ncols {
		col = t.ncols - 1
	}
	return row*t.ncols + col, true
}

// CellBounds returns the bounding box of a cell, or false for cell indexes
// outside the grid.
func (t Tiling) CellBounds(cell uint32) (BBox, bool) {
	if cell >= t.CellCount() {
		return BBox{}, false
	}
	row := cell / t.ncols
	col := cell % t.ncols
	minLat := -90 + float64(row)*t.size
	minLon := -180 + float64(col)*t.size
	return BBox{
		MinLat: minLat,
		MinLon: minLon,
		MaxLat: minLat + t.size,
		MaxLon: minLon + t.size,
	}, true
}

// CellsInBBox returns the cells whose bounds touch b, in ascending index
// order. The box is clamped to the world bounds first. A degenerate box
// yields no cells. The grid does not wrap, so a box spanning the
// antimeridian must be queried as two boxes.
func (t Tiling) CellsInBBox(b BBox) []uint32 {
	if !b.Valid() {
		return nil
	}
	minLat := math.Max(b.MinLat, -90)
	maxLat := math.Min(b.MaxLat, 90)
	minLon := math.Max(b.MinLon, -180)
	maxLon := math.Min(b.MaxLon, 180)
	if minLat > maxLat || minLon > maxLon {
		return nil
	}

	row0 := t.clampRow((minLat + 90) / t.size)
	row1 := t.clampRow((maxLat + 90) / t.size)
	col0 := t.clampCol((minLon + 180) / t.size)
	col1 := t.clampCol((maxLon + 180) / t.size)

	cells := make([]uint32, 0, (row1-row0+1)*(col1-col0+1))
	for row := row0; row <= row1; row++ {
		base := row * t.ncols
		for col := col0; col <= col1; col++ {
			cells = append(cells, base+col)
		}
	}
	return cells
}

func (t Tiling) clampRow(v float64) uint32 {
	row := uint32(v)
	if row >= t.nrows {
		row = t.nrows - 1
	}
	return row
}

func (t Tiling) clampCol(v float64) uint32 {
	col := uint32(v)
	if col >= t.ncols {
		col = t.ncols - 1
	}
	return col
}
