package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTilePath(t *testing.T) {
	type args struct {
		level Level
		cell  uint32
	}
	tests := []struct {
		name    string
		args    args
		want    string
		wantErr error
	}{
		{"local", args{Local, 838852}, "2/000/838/852.gph", nil},
		{"local first", args{Local, 0}, "2/000/000/000.gph", nil},
		{"local last", args{Local, 1440*720 - 1}, "2/001/036/799.gph", nil},
		{"highway last", args{Highway, 90*45 - 1}, "0/004/049.gph", nil},
		{"arterial", args{Arterial, 64799}, "1/064/799.gph", nil},
		{"cell outside level", args{Highway, 4050}, "", ErrCellRange},
		{"level without tiling", args{Level(5), 0}, "", ErrLevelRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewTileID(tt.args.level, tt.args.cell, 0)
			require.NoError(t, err)
			path, err := TilePath(id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, path)
		})
	}
}

func TestTilePathIgnoresSub(t *testing.T) {
	record, err := NewTileID(Local, 838852, 161285)
	require.NoError(t, err)
	path, err := TilePath(record)
	require.NoError(t, err)
	assert.Equal(t, "2/000/838/852.gph", path)
}

func TestParseTilePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{"plain", "2/000/838/852.gph", "2/838852/0", true},
		{"dot slash prefix", "./2/000/838/852.gph", "2/838852/0", true},
		{"gzipped", "2/000/838/852.gph.gz", "2/838852/0", true},
		{"highway", "0/004/049.gph", "0/4049/0", true},
		{"wrong suffix", "2/000/838/852.bin", "", false},
		{"no groups", "2.gph", "", false},
		{"short group", "2/00/838/852.gph", "", false},
		{"wrong group count", "0/000/838/852.gph", "", false},
		{"level without tiling", "7/000/838/852.gph", "", false},
		{"cell beyond level", "2/999/999/999.gph", "", false},
		{"not a number", "2/aaa/bbb/ccc.gph", "", false},
		{"directory entry", "2/000/838/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseTilePath(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, id.String())
			}
		})
	}
}

func TestTilePathRoundTrip(t *testing.T) {
	for _, level := range Levels() {
		tiling, ok := TilingForLevel(level)
		require.True(t, ok)
		for _, cell := range []uint32{0, 1, tiling.CellCount() - 1} {
			id, err := NewTileID(level, cell, 0)
			require.NoError(t, err)
			path, err := TilePath(id)
			require.NoError(t, err)
			back, ok := ParseTilePath(path)
			require.True(t, ok, "path %q", path)
			assert.Equal(t, id, back)
		}
	}
}
