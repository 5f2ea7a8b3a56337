package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTilingDimensions(t *testing.T) {
	tests := []struct {
		level Level
		size  float64
		cells uint32
	}{
		{Highway, 4, 90 * 45},
		{Arterial, 1, 360 * 180},
		{Local, 0.25, 1440 * 720},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			tiling, ok := TilingForLevel(tt.level)
			require.True(t, ok)
			assert.Equal(t, tt.level, tiling.Level())
			assert.Equal(t, tt.size, tiling.TileSize())
			assert.Equal(t, tt.cells, tiling.CellCount())
		})
	}

	_, ok := TilingForLevel(Level(3))
	assert.False(t, ok)
}

func TestCell(t *testing.T) {
	local, ok := TilingForLevel(Local)
	require.True(t, ok)

	type args struct {
		p LatLon
	}
	tests := []struct {
		name   string
		args   args
		want   uint32
		wantOK bool
	}{
		{"south west corner", args{LatLon{Lat: -90, Lon: -180}}, 0, true},
		{"north east corner clamps in", args{LatLon{Lat: 90, Lon: 180}}, 1440*720 - 1, true},
		{"helsinki", args{LatLon{Lat: 60.17, Lon: 24.94}}, 600*1440 + 819, true},
		{"latitude too far north", args{LatLon{Lat: 90.01, Lon: 0}}, 0, false},
		{"longitude out west", args{LatLon{Lat: 0, Lon: -180.01}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, ok := local.Cell(tt.args.p)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, cell)
			}
		})
	}
}

func TestCellBounds(t *testing.T) {
	local, ok := TilingForLevel(Local)
	require.True(t, ok)

	bounds, ok := local.CellBounds(0)
	require.True(t, ok)
	assert.Equal(t, BBox{MinLat: -90, MinLon: -180, MaxLat: -89.75, MaxLon: -179.75}, bounds)

	_, ok = local.CellBounds(local.CellCount())
	assert.False(t, ok)

	// The centre of every sampled cell resolves back to that cell.
	for _, cell := range []uint32{0, 1439, 838852, local.CellCount() - 1} {
		bounds, ok := local.CellBounds(cell)
		require.True(t, ok)
		centre := LatLon{
			Lat: (bounds.MinLat + bounds.MaxLat) / 2,
			Lon: (bounds.MinLon + bounds.MaxLon) / 2,
		}
		got, ok := local.Cell(centre)
		require.True(t, ok)
		assert.Equal(t, cell, got, "cell %d", cell)
	}
}

func TestCellsInBBox(t *testing.T) {
	highway, ok := TilingForLevel(Highway)
	require.True(t, ok)
	local, okLocal := TilingForLevel(Local)
	require.True(t, okLocal)

	t.Run("single cell", func(t *testing.T) {
		cells := local.CellsInBBox(BBox{MinLat: 60.1, MinLon: 24.8, MaxLat: 60.2, MaxLon: 24.9})
		assert.Equal(t, []uint32{600*1440 + 819}, cells)
	})

	t.Run("two by two block", func(t *testing.T) {
		cells := local.CellsInBBox(BBox{MinLat: 0.1, MinLon: 0.1, MaxLat: 0.3, MaxLon: 0.3})
		want := []uint32{
			360*1440 + 720, 360*1440 + 721,
			361*1440 + 720, 361*1440 + 721,
		}
		assert.Equal(t, want, cells)
	})

	t.Run("whole world", func(t *testing.T) {
		cells := highway.CellsInBBox(BBox{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180})
		assert.Len(t, cells, int(highway.CellCount()))
	})

	t.Run("clamped to world", func(t *testing.T) {
		cells := highway.CellsInBBox(BBox{MinLat: -200, MinLon: -400, MaxLat: 200, MaxLon: 400})
		assert.Len(t, cells, int(highway.CellCount()))
	})

	t.Run("degenerate box", func(t *testing.T) {
		assert.Nil(t, highway.CellsInBBox(BBox{MinLat: 10, MinLon: 10, MaxLat: 9, MaxLon: 11}))
	})

	t.Run("point box touches one cell", func(t *testing.T) {
		cells := highway.CellsInBBox(BBox{MinLat: 1, MinLon: 1, MaxLat: 1, MaxLon: 1})
		assert.Len(t, cells, 1)
	})

	t.Run("ascending without duplicates", func(t *testing.T) {
		cells := local.CellsInBBox(BBox{MinLat: 42, MinLon: 1, MaxLat: 43.5, MaxLon: 2.5})
		for i := 1; i < len(cells); i++ {
			assert.Less(t, cells[i-1], cells[i])
		}
		// Every returned cell's bounds intersect the query box.
		for _, cell := range cells {
			bounds, ok := local.CellBounds(cell)
			require.True(t, ok)
			assert.True(t, bounds.Intersects(BBox{MinLat: 42, MinLon: 1, MaxLat: 43.5, MaxLon: 2.5}))
		}
	})
}

func TestBBoxContains(t *testing.T) {
	b := BBox{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}
	assert.True(t, b.Contains(LatLon{Lat: 0, Lon: 0}))
	assert.True(t, b.Contains(LatLon{Lat: 0.5, Lon: 0.5}))
	assert.False(t, b.Contains(LatLon{Lat: 1, Lon: 0.5}), "max edge is exclusive")
	assert.False(t, b.Contains(LatLon{Lat: 0.5, Lon: 1}), "max edge is exclusive")
	assert.False(t, b.Contains(LatLon{Lat: -0.1, Lon: 0.5}))
}
