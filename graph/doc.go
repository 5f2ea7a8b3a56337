// Package graph addresses tiles and records in a tiled, three level road
// network hierarchy.
//
// The world is cut into a fixed grid of square tiles per hierarchy level.
// Rows start at latitude -90 and advance north, columns start at longitude
// -180 and advance east, and a tile's grid-cell index is its row-major
// position:
//
//	cell = row*ncols + col
//
// Level 0 (Highway) uses 4 degree tiles, level 1 (Arterial) 1 degree tiles
// and level 2 (Local) 0.25 degree tiles. The grid never wraps: longitudes
// outside [-180,180] do not resolve to a cell.
//
// A TileID packs the hierarchy level, the grid-cell index and a sub-index
// into a single 64 bit value. The sub-index addresses an individual record
// (typically a directed edge) inside the tile, so one TileID can name either
// a whole tile (sub-index zero, the "base" form) or a record within it.
// Archive and index operations work on base ids.
package graph
