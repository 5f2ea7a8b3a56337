package tarindex

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

type file struct {
	name string
	data []byte
}

func writeTar(t *testing.T, files []file) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiles.tar")
	f, err := os.Create(path)
	assert.NilError(t, err)
	tw := tar.NewWriter(f)
	for _, fl := range files {
		err := tw.WriteHeader(&tar.Header{
			Name:     fl.name,
			Mode:     0o644,
			Size:     int64(len(fl.data)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		})
		assert.NilError(t, err)
		_, err = tw.Write(fl.data)
		assert.NilError(t, err)
	}
	assert.NilError(t, tw.Close())
	assert.NilError(t, f.Close())
	return path
}

func TestOpenIndexesEntries(t *testing.T) {
	files := []file{
		{"2/000/838/852.gph", bytes.Repeat([]byte{0xab}, 700)},
		{"2/000/838/853.gph", []byte("second tile")},
		{"manifest.json", []byte("{}")},
	}
	path := writeTar(t, files)

	for _, tt := range []struct {
		name string
		opts []Option
	}{
		{"mmap", nil},
		{"heap", []Option{WithoutMmap()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Open(path, tt.opts...)
			assert.NilError(t, err)
			defer a.Close()

			entries := a.Entries()
			assert.Equal(t, len(entries), 3)
			for i, want := range files {
				assert.Equal(t, entries[i].Name, want.name)
				assert.Equal(t, entries[i].Size, int64(len(want.data)))
				assert.DeepEqual(t, a.Bytes(entries[i]), want.data)
			}
			// The first entry's data sits right after its header block.
			assert.Equal(t, entries[0].Offset, int64(blockSize))
			assert.Equal(t, a.Path(), path)
		})
	}
}

func TestLookup(t *testing.T) {
	path := writeTar(t, []file{
		{"0/004/049.gph", []byte("highway")},
		{"1/064/799.gph", []byte("arterial")},
	})
	a, err := Open(path)
	assert.NilError(t, err)
	defer a.Close()

	e, ok := a.Lookup("1/064/799.gph")
	assert.Assert(t, ok)
	assert.DeepEqual(t, a.Bytes(e), []byte("arterial"))

	_, ok = a.Lookup("2/000/000/000.gph")
	assert.Assert(t, !ok)
}

func TestMappedWritesReachTheFile(t *testing.T) {
	path := writeTar(t, []file{{"2/000/000/001.gph", make([]byte, 64)}})
	a, err := Open(path)
	assert.NilError(t, err)

	e, ok := a.Lookup("2/000/000/001.gph")
	assert.Assert(t, ok)
	data := a.Bytes(e)
	data[0] = 0x5a
	data[63] = 0xa5
	assert.NilError(t, a.Close())

	raw, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Equal(t, raw[e.Offset], byte(0x5a))
	assert.Equal(t, raw[e.Offset+63], byte(0xa5))
}

func TestHeapModeIsPrivate(t *testing.T) {
	path := writeTar(t, []file{{"2/000/000/001.gph", make([]byte, 64)}})
	a, err := Open(path, WithoutMmap())
	assert.NilError(t, err)

	e, ok := a.Lookup("2/000/000/001.gph")
	assert.Assert(t, ok)
	a.Bytes(e)[0] = 0x5a
	assert.NilError(t, a.Close())

	raw, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Equal(t, raw[e.Offset], byte(0))
}

func TestMappingLifetime(t *testing.T) {
	path := writeTar(t, []file{{"2/000/000/001.gph", []byte("payload")}})
	a, err := Open(path)
	assert.NilError(t, err)
	e, _ := a.Lookup("2/000/000/001.gph")

	assert.Assert(t, a.Acquire())
	assert.NilError(t, a.Close())

	// The handle still pins the mapping after the opener closed.
	assert.DeepEqual(t, a.Bytes(e), []byte("payload"))

	assert.NilError(t, a.Close(), "close is idempotent")
	assert.DeepEqual(t, a.Bytes(e), []byte("payload"))

	assert.NilError(t, a.Release())
	assert.Assert(t, a.Bytes(e) == nil)
	assert.Assert(t, !a.Acquire(), "a fully released archive cannot be revived")
}

func TestSkipsNonRegularEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.tar")
	f, err := os.Create(path)
	assert.NilError(t, err)
	tw := tar.NewWriter(f)
	assert.NilError(t, tw.WriteHeader(&tar.Header{
		Name: "2/", Mode: 0o755, Typeflag: tar.TypeDir, Format: tar.FormatUSTAR,
	}))
	assert.NilError(t, tw.WriteHeader(&tar.Header{
		Name: "latest.gph", Linkname: "2/000/000/001.gph",
		Mode: 0o777, Typeflag: tar.TypeSymlink, Format: tar.FormatUSTAR,
	}))
	assert.NilError(t, tw.WriteHeader(&tar.Header{
		Name: "2/000/000/001.gph", Mode: 0o644, Size: 4,
		Typeflag: tar.TypeReg, Format: tar.FormatUSTAR,
	}))
	_, err = tw.Write([]byte("tile"))
	assert.NilError(t, err)
	assert.NilError(t, tw.Close())
	assert.NilError(t, f.Close())

	a, err := Open(path)
	assert.NilError(t, err)
	defer a.Close()
	assert.Equal(t, len(a.Entries()), 1)
	assert.Equal(t, a.Entries()[0].Name, "2/000/000/001.gph")
}

func TestUstarPrefixNames(t *testing.T) {
	long := strings.Repeat("nested/", 16) + "2/000/838/852.gph"
	path := writeTar(t, []file{{long, []byte("deep")}})

	a, err := Open(path)
	assert.NilError(t, err)
	defer a.Close()

	e, ok := a.Lookup(long)
	assert.Assert(t, ok)
	assert.DeepEqual(t, a.Bytes(e), []byte("deep"))
}

func TestDuplicateNames(t *testing.T) {
	path := writeTar(t, []file{
		{"2/000/000/001.gph", []byte("first")},
		{"2/000/000/001.gph", []byte("second")},
	})
	a, err := Open(path)
	assert.NilError(t, err)
	defer a.Close()

	assert.Equal(t, len(a.Entries()), 2)
	e, ok := a.Lookup("2/000/000/001.gph")
	assert.Assert(t, ok)
	assert.DeepEqual(t, a.Bytes(e), []byte("first"))
}

func TestBadArchives(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		assert.NilError(t, os.WriteFile(p, data, 0o644))
		return p
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "nope.tar"))
		assert.Assert(t, err != nil)
	})
	t.Run("empty file", func(t *testing.T) {
		_, err := Open(write("empty.tar", nil))
		assert.ErrorIs(t, err, ErrBadArchive)
	})
	t.Run("unaligned size", func(t *testing.T) {
		_, err := Open(write("unaligned.tar", make([]byte, 513)))
		assert.ErrorIs(t, err, ErrBadArchive)
	})
	t.Run("garbage header", func(t *testing.T) {
		_, err := Open(write("garbage.tar", bytes.Repeat([]byte{'x'}, blockSize)))
		assert.ErrorIs(t, err, ErrBadArchive)
	})
	t.Run("truncated body", func(t *testing.T) {
		full := writeTar(t, []file{{"2/000/000/001.gph", make([]byte, 600)}})
		raw, err := os.ReadFile(full)
		assert.NilError(t, err)
		_, err = Open(write("truncated.tar", raw[:2*blockSize]))
		assert.ErrorIs(t, err, ErrBadArchive)
	})
	t.Run("empty archive no entries", func(t *testing.T) {
		a, err := Open(writeTar(t, nil))
		assert.NilError(t, err)
		defer a.Close()
		assert.Equal(t, len(a.Entries()), 0)
	})
}
