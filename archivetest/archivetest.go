// Package archivetest fabricates small tile archives for tests: real tar
// files on disk, graph tile regions with just enough header to satisfy
// the store's peeks, and valid traffic overlay regions.
package archivetest

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/kinkard/roadtiles/graph"
	"github.com/kinkard/roadtiles/traffic"
)

// Entry is one file to place in an archive.
type Entry struct {
	Name string
	Data []byte
}

// WriteArchive writes the entries to a tar file at path, in order.
func WriteArchive(tb testing.TB, path string, entries []Entry) {
	tb.Helper()
	f, err := os.Create(path)
	require.NoError(tb, err)
	tw := tar.NewWriter(f)
	for _, e := range entries {
		err := tw.WriteHeader(&tar.Header{
			Name:     e.Name,
			Mode:     0o644,
			Size:     int64(len(e.Data)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		})
		require.NoError(tb, err)
		_, err = tw.Write(e.Data)
		require.NoError(tb, err)
	}
	require.NoError(tb, tw.Close())
	require.NoError(tb, f.Close())
}

// GraphTile fabricates a graph tile region: the leading header fields a
// store reads (tile id, build date, version text, dataset marker) padded
// with deterministic filler up to size. Sizes below the 48 byte header
// are raised to it.
func GraphTile(id graph.TileID, datasetID uint64, size int) []byte {
	if size < 48 {
		size = 48
	}
	data := make([]byte, size)
	binary.LittleEndian.PutUint64(data[0:], uint64(id.Base()))
	binary.LittleEndian.PutUint64(data[8:], 1724000000)
	copy(data[16:32], "test-build")
	binary.LittleEndian.PutUint64(data[32:], datasetID)
	for i := 48; i < size; i++ {
		data[i] = byte(i)
	}
	return data
}

// GraphEntry names a fabricated graph tile by its archive path.
func GraphEntry(tb testing.TB, id graph.TileID, datasetID uint64, size int) Entry {
	tb.Helper()
	path, err := graph.TilePath(id)
	require.NoError(tb, err)
	return Entry{Name: path, Data: GraphTile(id, datasetID, size)}
}

// TrafficEntry builds a fresh, all-unknown traffic overlay for a tile.
func TrafficEntry(tb testing.TB, id graph.TileID, edgeCount uint32) Entry {
	tb.Helper()
	path, err := graph.TilePath(id)
	require.NoError(tb, err)
	return Entry{Name: path, Data: traffic.NewTileBytes(id, edgeCount)}
}

// Gzip compresses an entry's data and marks its name accordingly.
func Gzip(tb testing.TB, e Entry) Entry {
	tb.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(e.Data)
	require.NoError(tb, err)
	require.NoError(tb, zw.Close())
	return Entry{Name: e.Name + ".gz", Data: buf.Bytes()}
}
