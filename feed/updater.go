// Package feed applies live speed updates to the traffic overlays of an
// open tile store. Updates arrive as JSON on a Redis pub/sub channel and
// address an edge by its full tile id, with the sub index selecting the
// record within the tile.
package feed

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kinkard/roadtiles"
	"github.com/kinkard/roadtiles/graph"
	"github.com/kinkard/roadtiles/traffic"
)

var (
	ErrUnknownTile = errors.New("feed: no traffic overlay for tile")
	ErrClosed      = errors.New("feed: updater is closed")
)

// Update is one live speed report for a directed edge.
type Update struct {
	// Edge addresses the record: the tile part names the overlay, the sub
	// index is the record index within it.
	Edge graph.TileID `json:"edge"`
	// SpeedKMH is the live speed. Ignored when Closed is set.
	SpeedKMH uint32 `json:"speed_kmh"`
	// Closed marks the edge impassable.
	Closed bool `json:"closed,omitempty"`
	// Timestamp is the unix time of the report, zero meaning "now".
	Timestamp uint64 `json:"timestamp,omitempty"`
}

// Updater writes live updates into the traffic overlays of one store. It
// keeps the overlay of every touched tile open until Close, so repeated
// updates to the same tile cost one map lookup.
type Updater struct {
	store  *roadtiles.TileSet
	logger *zap.Logger

	mu     sync.Mutex
	tiles  map[graph.TileID]*traffic.Tile
	closed bool

	applied  atomic.Uint64
	rejected atomic.Uint64
}

// NewUpdater wires an updater to an open store. The store must stay open
// for the life of the updater.
func NewUpdater(store *roadtiles.TileSet, opts ...Option) *Updater {
	options := newOptions(opts)
	return &Updater{
		store:  store,
		logger: options.logger.With(zap.String("instance", uuid.NewString())),
		tiles:  make(map[graph.TileID]*traffic.Tile),
	}
}

// Apply writes one update into its overlay. Updates for tiles without an
// overlay fail with ErrUnknownTile and edge indexes beyond the overlay's
// record range fail with the overlay's range error; both count as
// rejected.
func (u *Updater) Apply(up Update) error {
	if err := u.apply(up); err != nil {
		u.rejected.Add(1)
		return err
	}
	u.applied.Add(1)
	return nil
}

func (u *Updater) apply(up Update) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	tile, err := u.tile(up.Edge.Base())
	if err != nil {
		return err
	}

	record := traffic.UniformSpeed(up.SpeedKMH)
	if up.Closed {
		record = traffic.EdgeClosed
	}
	if err := tile.SetRecord(up.Edge.Sub(), record); err != nil {
		return err
	}

	ts := up.Timestamp
	if ts == 0 {
		ts = uint64(time.Now().Unix())
	}
	// Last update only moves forward so late reports cannot roll it back.
	if ts > tile.LastUpdate() {
		tile.SetLastUpdate(ts)
	}
	return nil
}

// tile returns the cached overlay for a base id, opening it on first use.
// Callers hold u.mu.
func (u *Updater) tile(id graph.TileID) (*traffic.Tile, error) {
	if u.closed {
		return nil, ErrClosed
	}
	if tile, ok := u.tiles[id]; ok {
		return tile, nil
	}
	tile, err := u.store.TrafficTile(id)
	if err != nil {
		return nil, err
	}
	if tile == nil {
		return nil, ErrUnknownTile
	}
	u.tiles[id] = tile
	return tile, nil
}

// Stats returns how many updates were applied and rejected so far.
func (u *Updater) Stats() (applied, rejected uint64) {
	return u.applied.Load(), u.rejected.Load()
}

// SweepStale clears every overlay whose last update is older than maxAge,
// so edges fall back to "no live data" when the feed stops covering them.
// It returns the number of overlays cleared.
func (u *Updater) SweepStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge).Unix()
	if cutoff < 0 {
		return 0
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return 0
	}

	cleared := 0
	for _, id := range u.store.Tiles() {
		tile, err := u.tile(id)
		if err != nil {
			continue
		}
		last := tile.LastUpdate()
		if last == 0 || last >= uint64(cutoff) {
			continue
		}
		tile.Clear()
		cleared++
		u.logger.Info("cleared stale overlay",
			zap.Stringer("tile", id),
			zap.Uint64("last_update", last))
	}
	return cleared
}

// Close releases every cached overlay. Updates after Close are rejected
// with ErrClosed.
func (u *Updater) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	for id, tile := range u.tiles {
		if err := tile.Close(); err != nil {
			u.logger.Warn("overlay close failed", zap.Stringer("tile", id), zap.Error(err))
		}
	}
	u.tiles = nil
	applied, rejected := u.Stats()
	u.logger.Info("feed updater closed",
		zap.Uint64("applied", applied),
		zap.Uint64("rejected", rejected))
	return nil
}
