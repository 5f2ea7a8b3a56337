package feed

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinkard/roadtiles"
	"github.com/kinkard/roadtiles/archivetest"
	"github.com/kinkard/roadtiles/graph"
	"github.com/kinkard/roadtiles/traffic"
)

const testDatasetID = 0x51de0

func edgeID(t testing.TB, tile graph.TileID, edge uint32) graph.TileID {
	t.Helper()
	id, err := graph.NewTileID(tile.Level(), tile.Cell(), edge)
	require.NoError(t, err)
	return id
}

// openStore builds a two tile dataset where only the first tile has a
// traffic overlay.
func openStore(t testing.TB) (*roadtiles.TileSet, graph.TileID, graph.TileID) {
	t.Helper()
	covered, err := graph.NewTileID(graph.Local, 864819, 0)
	require.NoError(t, err)
	bare, err := graph.NewTileID(graph.Local, 864820, 0)
	require.NoError(t, err)

	dir := t.TempDir()
	ds := roadtiles.Dataset{
		GraphPath:   filepath.Join(dir, "tiles.tar"),
		TrafficPath: filepath.Join(dir, "traffic.tar"),
	}
	archivetest.WriteArchive(t, ds.GraphPath, []archivetest.Entry{
		archivetest.GraphEntry(t, covered, testDatasetID, 64),
		archivetest.GraphEntry(t, bare, testDatasetID, 64),
	})
	archivetest.WriteArchive(t, ds.TrafficPath, []archivetest.Entry{
		archivetest.TrafficEntry(t, covered, 8),
	})

	ts, err := roadtiles.Open(ds)
	require.NoError(t, err)
	t.Cleanup(func() { ts.Close() })
	return ts, covered, bare
}

func TestApply(t *testing.T) {
	ts, covered, bare := openStore(t)
	u := NewUpdater(ts)
	t.Cleanup(func() { u.Close() })

	require.NoError(t, u.Apply(Update{
		Edge:      edgeID(t, covered, 3),
		SpeedKMH:  50,
		Timestamp: 1000,
	}))
	require.NoError(t, u.Apply(Update{
		Edge:      edgeID(t, covered, 4),
		Closed:    true,
		Timestamp: 1200,
	}))
	// A late report must not roll the tile's last update back.
	require.NoError(t, u.Apply(Update{
		Edge:      edgeID(t, covered, 5),
		SpeedKMH:  30,
		Timestamp: 500,
	}))

	assert.ErrorIs(t, u.Apply(Update{Edge: edgeID(t, covered, 99), SpeedKMH: 10}), traffic.ErrEdgeRange)
	assert.ErrorIs(t, u.Apply(Update{Edge: edgeID(t, bare, 0), SpeedKMH: 10}), ErrUnknownTile)

	applied, rejected := u.Stats()
	assert.Equal(t, uint64(3), applied)
	assert.Equal(t, uint64(2), rejected)

	tile, err := ts.TrafficTile(covered)
	require.NoError(t, err)
	defer tile.Close()

	record, err := tile.Record(3)
	require.NoError(t, err)
	assert.Equal(t, traffic.UniformSpeed(50), record)

	record, err = tile.Record(4)
	require.NoError(t, err)
	assert.Equal(t, traffic.EdgeClosed, record)

	record, err = tile.Record(5)
	require.NoError(t, err)
	assert.Equal(t, traffic.UniformSpeed(30), record)

	assert.Equal(t, uint64(1200), tile.LastUpdate())
}

func TestApplyDefaultsTimestampToNow(t *testing.T) {
	ts, covered, _ := openStore(t)
	u := NewUpdater(ts)
	t.Cleanup(func() { u.Close() })

	before := uint64(time.Now().Unix())
	require.NoError(t, u.Apply(Update{Edge: edgeID(t, covered, 0), SpeedKMH: 40}))

	tile, err := ts.TrafficTile(covered)
	require.NoError(t, err)
	defer tile.Close()
	assert.GreaterOrEqual(t, tile.LastUpdate(), before)
}

func TestSweepStale(t *testing.T) {
	ts, covered, _ := openStore(t)
	u := NewUpdater(ts)
	t.Cleanup(func() { u.Close() })

	stale := uint64(time.Now().Add(-time.Hour).Unix())
	require.NoError(t, u.Apply(Update{
		Edge:      edgeID(t, covered, 2),
		SpeedKMH:  60,
		Timestamp: stale,
	}))

	// Fresh enough, nothing to clear.
	assert.Equal(t, 0, u.SweepStale(2*time.Hour))

	assert.Equal(t, 1, u.SweepStale(30*time.Minute))

	tile, err := ts.TrafficTile(covered)
	require.NoError(t, err)
	defer tile.Close()
	record, err := tile.Record(2)
	require.NoError(t, err)
	assert.Equal(t, traffic.Unknown, record)
	assert.Equal(t, uint64(0), tile.LastUpdate())

	// Untouched overlays have no last update and are never swept.
	assert.Equal(t, 0, u.SweepStale(time.Nanosecond))
}

func TestUpdaterClose(t *testing.T) {
	ts, covered, _ := openStore(t)
	u := NewUpdater(ts)

	require.NoError(t, u.Apply(Update{Edge: edgeID(t, covered, 0), SpeedKMH: 40}))
	require.NoError(t, u.Close())
	require.NoError(t, u.Close())

	assert.ErrorIs(t, u.Apply(Update{Edge: edgeID(t, covered, 1), SpeedKMH: 40}), ErrClosed)
	assert.Equal(t, 0, u.SweepStale(time.Minute))
}

func TestUpdateWireFormat(t *testing.T) {
	edge, err := graph.NewTileID(graph.Local, 838852, 7)
	require.NoError(t, err)

	payload := `{"edge":"2/838852/7","speed_kmh":34,"closed":true,"timestamp":1724000000}`
	var up Update
	require.NoError(t, json.Unmarshal([]byte(payload), &up))
	assert.Equal(t, Update{Edge: edge, SpeedKMH: 34, Closed: true, Timestamp: 1724000000}, up)

	out, err := json.Marshal(up)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(out))
}
