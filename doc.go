// Package roadtiles manages tiled road network datasets.
//
// A dataset is a pair of tar archives sharing one tile naming scheme: a
// required graph archive holding the static network tiles, and an optional
// traffic archive holding one mutable overlay region per tile. Open memory
// maps both, indexes every resident tile by its id and answers membership,
// byte region and bounding box queries without touching tile internals.
// Graph tile regions are opaque bytes to this package, decoded by whatever
// reader understands the tile layout; traffic regions are checked and
// served through the traffic package.
//
// Regions are handed out with shared ownership of the backing archive: a
// Region stays readable until it is closed, no matter when the TileSet
// itself is closed, and a closed region reads as nil rather than dangling
// into an unmapped file.
package roadtiles
