package traffic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kinkard/roadtiles/graph"
)

// Version is the overlay format version this package reads and writes.
const Version = 3

const (
	versionOffset    = 0
	tileIDOffset     = 4
	lastUpdateOffset = 12
	countOffset      = 20
	spareHiOffset    = 24
	spareLoOffset    = 28

	// HeaderSize is the fixed header length. Records follow immediately.
	HeaderSize = 32
	// RecordSize is the per edge record length.
	RecordSize = 8
)

var (
	ErrVersion   = errors.New("traffic: unsupported overlay format version")
	ErrSize      = errors.New("traffic: region size does not match its header")
	ErrEdgeRange = errors.New("traffic: edge index out of range")
	ErrClosed    = errors.New("traffic: tile handle is closed")
)

// Tile is an open overlay region. The zero value is unusable; obtain tiles
// from Open.
type Tile struct {
	data  []byte
	owner io.Closer
}

// Open validates data as an overlay region and returns a handle over it.
// Writes through the handle mutate data directly.
//
// owner, which may be nil, is whatever keeps data alive, typically the
// archive region the bytes were resolved from. Closing the tile closes the
// owner. On error the owner is left open and remains the caller's to
// release.
func Open(data []byte, owner io.Closer) (*Tile, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d byte region", ErrSize, len(data))
	}
	if v := binary.LittleEndian.Uint32(data[versionOffset:]); v != Version {
		return nil, fmt.Errorf("%w: %d, want %d", ErrVersion, v, Version)
	}
	count := binary.LittleEndian.Uint32(data[countOffset:])
	if want := HeaderSize + int64(count)*RecordSize; int64(len(data)) != want {
		return nil, fmt.Errorf("%w: %d records need %d bytes, region has %d",
			ErrSize, count, want, len(data))
	}
	return &Tile{data: data, owner: owner}, nil
}

// Close releases the owner passed to Open. The tile must not be used
// afterwards; accessors fail or return zero values.
func (t *Tile) Close() error {
	t.data = nil
	owner := t.owner
	t.owner = nil
	if owner == nil {
		return nil
	}
	return owner.Close()
}

// TileID returns the id of the road network tile this overlay belongs to.
func (t *Tile) TileID() graph.TileID {
	if t.data == nil {
		return graph.InvalidID
	}
	return graph.TileID(binary.LittleEndian.Uint64(t.data[tileIDOffset:]))
}

// EdgeCount returns the number of directed edge records.
func (t *Tile) EdgeCount() uint32 {
	if t.data == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(t.data[countOffset:])
}

// LastUpdate returns the unix seconds stamp of the newest applied update,
// zero when the overlay has never been written or was cleared.
func (t *Tile) LastUpdate() uint64 {
	if t.data == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(t.data[lastUpdateOffset:])
}

// SetLastUpdate stamps the overlay. A no-op on a closed tile.
func (t *Tile) SetLastUpdate(unixSec uint64) {
	if t.data == nil {
		return
	}
	binary.LittleEndian.PutUint64(t.data[lastUpdateOffset:], unixSec)
}

// Spare returns the 64 bit spare value, stored split across two 32 bit
// header fields with the high half first.
func (t *Tile) Spare() uint64 {
	if t.data == nil {
		return 0
	}
	hi := binary.LittleEndian.Uint32(t.data[spareHiOffset:])
	lo := binary.LittleEndian.Uint32(t.data[spareLoOffset:])
	return uint64(hi)<<32 | uint64(lo)
}

// SetSpare stores the 64 bit spare value. A no-op on a closed tile.
func (t *Tile) SetSpare(v uint64) {
	if t.data == nil {
		return
	}
	binary.LittleEndian.PutUint32(t.data[spareHiOffset:], uint32(v>>32))
	binary.LittleEndian.PutUint32(t.data[spareLoOffset:], uint32(v))
}

// Record reads the speed record of one directed edge.
func (t *Tile) Record(edge uint32) (SpeedRecord, error) {
	off, err := t.recordOffset(edge)
	if err != nil {
		return Unknown, err
	}
	return SpeedRecord(binary.LittleEndian.Uint64(t.data[off:])), nil
}

// SetRecord stores the speed record of one directed edge.
func (t *Tile) SetRecord(edge uint32, r SpeedRecord) error {
	off, err := t.recordOffset(edge)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(t.data[off:], uint64(r))
	return nil
}

func (t *Tile) recordOffset(edge uint32) (int, error) {
	if t.data == nil {
		return 0, ErrClosed
	}
	if count := t.EdgeCount(); edge >= count {
		return 0, fmt.Errorf("%w: %d of %d", ErrEdgeRange, edge, count)
	}
	return HeaderSize + int(edge)*RecordSize, nil
}

// Records returns a snapshot copy of every record. Each element is a
// momentary sample; the overlay may move on while the caller holds the
// copy.
func (t *Tile) Records() []SpeedRecord {
	if t.data == nil {
		return nil
	}
	records := make([]SpeedRecord, t.EdgeCount())
	for i := range records {
		records[i] = SpeedRecord(binary.LittleEndian.Uint64(t.data[HeaderSize+i*RecordSize:]))
	}
	return records
}

// Clear zeroes every record and the last-update stamp, returning the
// overlay to the "no live data" state. The spare value survives. Written
// for whole tile invalidation when a feed disconnects or goes stale.
func (t *Tile) Clear() {
	if t.data == nil {
		return
	}
	body := t.data[HeaderSize:]
	for i := range body {
		body[i] = 0
	}
	binary.LittleEndian.PutUint64(t.data[lastUpdateOffset:], 0)
}

// NewTileBytes builds a fresh overlay region for a tile: a valid header
// over edgeCount all-zero records. The id is stored in base form.
func NewTileBytes(id graph.TileID, edgeCount uint32) []byte {
	data := make([]byte, HeaderSize+int(edgeCount)*RecordSize)
	binary.LittleEndian.PutUint32(data[versionOffset:], Version)
	binary.LittleEndian.PutUint64(data[tileIDOffset:], uint64(id.Base()))
	binary.LittleEndian.PutUint32(data[countOffset:], edgeCount)
	return data
}
