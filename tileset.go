package roadtiles

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/kinkard/roadtiles/graph"
	"github.com/kinkard/roadtiles/tarindex"
	"github.com/kinkard/roadtiles/traffic"
)

// Dataset names the archives making up one dataset.
type Dataset struct {
	// GraphPath locates the graph tile archive. Required.
	GraphPath string
	// TrafficPath locates the traffic overlay archive built for the same
	// tile set. Optional; without it the store answers graph queries only.
	TrafficPath string
}

// TileSet is an open dataset: the archives, plus an index from base tile
// id to the tile's byte region in each. The index is immutable after
// Open; region contents are not, the traffic overlay mutates in place.
//
// All methods are safe for concurrent use. What concurrent mutation of
// overlay bytes means for readers is the traffic package's contract.
type TileSet struct {
	log *zap.Logger

	graphArch   *tarindex.Archive
	trafficArch *tarindex.Archive

	graphTiles   map[graph.TileID][]byte
	trafficTiles map[graph.TileID][]byte

	tiles []graph.TileID // graph tile ids, ascending

	datasetID       uint64
	checksum        uint64
	trafficChecksum uint64

	closed atomic.Bool
}

// Open maps the dataset's archives and indexes their tiles.
//
// The graph archive must exist and hold at least one tile; gzip
// compressed graph entries are inflated into private memory at open. The
// traffic archive is optional. Traffic entries that are compressed, fail
// overlay validation or disagree with their entry name are skipped with a
// warning, and a traffic archive indexing a different tile set than the
// graph archive is reported as version skew, also without failing.
func Open(ds Dataset, opts ...Option) (*TileSet, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if ds.GraphPath == "" {
		return nil, ErrNoGraphArchive
	}
	var archOpts []tarindex.Option
	if o.noMmap {
		archOpts = append(archOpts, tarindex.WithoutMmap())
	}

	graphArch, err := tarindex.Open(ds.GraphPath, archOpts...)
	if err != nil {
		return nil, fmt.Errorf("graph archive: %w", err)
	}
	ts := &TileSet{
		log:        o.logger,
		graphArch:  graphArch,
		graphTiles: buildGraphIndex(graphArch, o.logger),
	}
	if len(ts.graphTiles) == 0 {
		graphArch.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoGraphTiles, ds.GraphPath)
	}
	ts.tiles = sortedIDs(ts.graphTiles)
	ts.checksum = indexChecksum(ts.tiles)
	ts.datasetID = datasetMarker(ts.graphTiles[ts.tiles[0]])

	if ds.TrafficPath != "" {
		trafficArch, err := tarindex.Open(ds.TrafficPath, archOpts...)
		if err != nil {
			graphArch.Close()
			return nil, fmt.Errorf("traffic archive: %w", err)
		}
		ts.trafficArch = trafficArch
		ts.trafficTiles = buildTrafficIndex(trafficArch, o.logger)
		ts.trafficChecksum = indexChecksum(sortedIDs(ts.trafficTiles))
		if ts.trafficChecksum != ts.checksum {
			o.logger.Warn("graph and traffic archives index different tile sets",
				zap.String("graph", ds.GraphPath),
				zap.String("traffic", ds.TrafficPath),
				zap.Int("graph_tiles", len(ts.graphTiles)),
				zap.Int("traffic_tiles", len(ts.trafficTiles)))
		}
	}

	ts.log.Info("dataset open",
		zap.String("graph", ds.GraphPath),
		zap.Int("tiles", len(ts.graphTiles)),
		zap.Int("traffic_tiles", len(ts.trafficTiles)),
		zap.Uint64("dataset_id", ts.datasetID))
	return ts, nil
}

// Close drops the store's hold on both archives. Idempotent. Regions and
// overlay tiles acquired earlier stay usable until individually closed;
// lookups made after Close report absence.
func (ts *TileSet) Close() error {
	if ts.closed.Swap(true) {
		return nil
	}
	err := ts.graphArch.Close()
	if ts.trafficArch != nil {
		if terr := ts.trafficArch.Close(); err == nil {
			err = terr
		}
	}
	return err
}

// Contains reports whether the tile is resident. The id is taken in base
// form, so any record id inside a resident tile answers true.
func (ts *TileSet) Contains(id graph.TileID) bool {
	if ts.closed.Load() {
		return false
	}
	_, ok := ts.graphTiles[id.Base()]
	return ok
}

// Region resolves a graph tile's byte region. The returned region must be
// closed by the caller.
func (ts *TileSet) Region(id graph.TileID) (*Region, bool) {
	return ts.region(ts.graphArch, ts.graphTiles, id)
}

// TrafficRegion resolves a tile's traffic overlay region. The returned
// region must be closed by the caller.
func (ts *TileSet) TrafficRegion(id graph.TileID) (*Region, bool) {
	if ts.trafficArch == nil {
		return nil, false
	}
	return ts.region(ts.trafficArch, ts.trafficTiles, id)
}

func (ts *TileSet) region(arch *tarindex.Archive, tiles map[graph.TileID][]byte, id graph.TileID) (*Region, bool) {
	if ts.closed.Load() {
		return nil, false
	}
	data, ok := tiles[id.Base()]
	if !ok {
		return nil, false
	}
	if !arch.Acquire() {
		return nil, false
	}
	return &Region{arch: arch, data: data}, true
}

// TrafficTile opens a tile's traffic overlay. Absent tiles, and stores
// without a traffic archive, yield (nil, nil). The tile owns its region
// and must be closed by the caller.
func (ts *TileSet) TrafficTile(id graph.TileID) (*traffic.Tile, error) {
	region, ok := ts.TrafficRegion(id)
	if !ok {
		return nil, nil
	}
	tile, err := traffic.Open(region.Bytes(), region)
	if err != nil {
		region.Close()
		return nil, fmt.Errorf("tile %s: %w", id.Base(), err)
	}
	return tile, nil
}

// Tiles returns every resident graph tile id, ascending.
func (ts *TileSet) Tiles() []graph.TileID {
	if ts.closed.Load() {
		return nil
	}
	out := make([]graph.TileID, len(ts.tiles))
	copy(out, ts.tiles)
	return out
}

// TilesInBBox returns the resident tiles of one level whose bounds touch
// box, ascending. Degenerate boxes and levels without a tiling yield an
// empty result.
func (ts *TileSet) TilesInBBox(box graph.BBox, level graph.Level) []graph.TileID {
	if ts.closed.Load() {
		return nil
	}
	tiling, ok := graph.TilingForLevel(level)
	if !ok {
		return nil
	}
	var ids []graph.TileID
	for _, cell := range tiling.CellsInBBox(box) {
		id, err := graph.NewTileID(level, cell, 0)
		if err != nil {
			continue
		}
		if _, ok := ts.graphTiles[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// DatasetID returns the build marker stamped into the dataset's tiles,
// zero when the resident tiles are too small to carry one.
func (ts *TileSet) DatasetID() uint64 {
	return ts.datasetID
}

// Checksum digests the graph index. Two archives checksum equal exactly
// when they index the same tile set, which is how a traffic extract is
// matched to the graph build it was generated from.
func (ts *TileSet) Checksum() uint64 {
	return ts.checksum
}

// TrafficChecksum digests the traffic index, zero when the store has no
// traffic archive.
func (ts *TileSet) TrafficChecksum() uint64 {
	return ts.trafficChecksum
}

func buildGraphIndex(arch *tarindex.Archive, log *zap.Logger) map[graph.TileID][]byte {
	tiles := make(map[graph.TileID][]byte)
	for _, entry := range arch.Entries() {
		id, ok := graph.ParseTilePath(entry.Name)
		if !ok {
			log.Debug("skipping foreign archive entry", zap.String("entry", entry.Name))
			continue
		}
		if _, dup := tiles[id]; dup {
			log.Warn("duplicate tile entry", zap.String("entry", entry.Name))
			continue
		}
		data := arch.Bytes(entry)
		if strings.HasSuffix(entry.Name, ".gz") {
			inflated, err := inflate(data)
			if err != nil {
				log.Warn("skipping tile with bad gzip data",
					zap.String("entry", entry.Name), zap.Error(err))
				continue
			}
			data = inflated
		}
		tiles[id] = data
	}
	return tiles
}

func buildTrafficIndex(arch *tarindex.Archive, log *zap.Logger) map[graph.TileID][]byte {
	tiles := make(map[graph.TileID][]byte)
	for _, entry := range arch.Entries() {
		id, ok := graph.ParseTilePath(entry.Name)
		if !ok {
			log.Debug("skipping foreign archive entry", zap.String("entry", entry.Name))
			continue
		}
		if strings.HasSuffix(entry.Name, ".gz") {
			// Overlays mutate in place, which a private inflated copy
			// cannot provide.
			log.Warn("skipping compressed traffic entry", zap.String("entry", entry.Name))
			continue
		}
		if _, dup := tiles[id]; dup {
			log.Warn("duplicate traffic entry", zap.String("entry", entry.Name))
			continue
		}
		data := arch.Bytes(entry)
		tile, err := traffic.Open(data, nil)
		if err != nil {
			log.Warn("skipping malformed traffic overlay",
				zap.String("entry", entry.Name), zap.Error(err))
			continue
		}
		if owner := tile.TileID(); owner != id {
			log.Warn("traffic overlay names a different tile than its entry",
				zap.String("entry", entry.Name), zap.Stringer("owner", owner))
			continue
		}
		tiles[id] = data
	}
	return tiles
}

func inflate(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func sortedIDs(tiles map[graph.TileID][]byte) []graph.TileID {
	ids := make([]graph.TileID, 0, len(tiles))
	for id := range tiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func indexChecksum(ids []graph.TileID) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// datasetMarkerOffset is where tile producers stamp the build marker: a
// u64 after the tile id, the build date and a 16 byte version field.
const datasetMarkerOffset = 32

func datasetMarker(data []byte) uint64 {
	if len(data) < datasetMarkerOffset+8 {
		return 0
	}
	return binary.LittleEndian.Uint64(data[datasetMarkerOffset:])
}
