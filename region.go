package roadtiles

import "github.com/kinkard/roadtiles/tarindex"

// Region is a tile's byte region together with shared ownership of the
// archive backing it. For mapped archives the bytes are a live view into
// the mapping; for gzip compressed entries they are the store's private
// inflated copy.
//
// The caller must Close the region when done with the bytes. The backing
// mapping stays alive until every region on it, and the owning TileSet,
// have closed.
type Region struct {
	arch   *tarindex.Archive
	data   []byte
	closed bool
}

// Bytes returns the region contents, nil once the region is closed. The
// slice must not be used after Close.
func (r *Region) Bytes() []byte {
	if r.closed {
		return nil
	}
	return r.data
}

// Len returns the region size in bytes, zero once closed.
func (r *Region) Len() int {
	if r.closed {
		return 0
	}
	return len(r.data)
}

// Close releases the region's hold on the backing archive. Idempotent.
func (r *Region) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.data = nil
	if r.arch == nil {
		return nil
	}
	return r.arch.Release()
}
