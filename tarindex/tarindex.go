// Package tarindex provides indexed, memory mapped access to the entries
// of an uncompressed tar archive.
//
// Tile datasets travel as plain tar files so that a whole dataset is one
// filesystem object, one open and one mapping, while each tile inside it
// stays addressable by name. The archive is mapped shared and writable:
// entry bytes are views straight into the mapping, and stores through them
// reach every process mapping the same file.
//
// The mapping outlives the opener for as long as outstanding references
// pin it. Close drops the opener's reference; Acquire and Release let
// handles derived from the archive keep the mapping alive until the last
// one is done.
package tarindex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

const blockSize = 512

var (
	ErrBadArchive      = errors.New("tarindex: malformed tar archive")
	ErrMmapUnsupported = errors.New("tarindex: memory mapping is unsupported on this platform")
)

// Entry locates one regular file inside the archive.
type Entry struct {
	Name   string
	Offset int64 // of the entry data within the archive
	Size   int64
}

// Archive is an open, indexed tar file.
type Archive struct {
	path   string
	file   *os.File
	data   []byte
	mapped bool

	entries []Entry
	byName  map[string]int

	// refs counts the opener plus every acquired handle. The mapping is
	// torn down when it reaches zero.
	refs   atomic.Int64
	closed atomic.Bool
}

type options struct {
	noMmap bool
}

// Option adjusts how an archive is opened.
type Option func(*options)

// WithoutMmap reads the archive into private heap memory instead of
// mapping it. Mutations then stay within the process and are lost on
// Close. Intended for tests and for platforms without a usable mmap.
func WithoutMmap() Option {
	return func(o *options) {
		o.noMmap = true
	}
}

// Open maps path read-write and indexes its regular file entries. The
// file must be a well formed uncompressed tar; anything else fails with an
// error wrapping ErrBadArchive.
func Open(path string, opts ...Option) (*Archive, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s is empty", ErrBadArchive, path)
	}
	if size%blockSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s size %d is not block aligned", ErrBadArchive, path, size)
	}

	var data []byte
	mapped := false
	if o.noMmap {
		data = make([]byte, size)
		if _, err := io.ReadFull(f, data); err != nil {
			f.Close()
			return nil, fmt.Errorf("read archive: %w", err)
		}
		f.Close()
		f = nil
	} else {
		data, err = mmapFile(f, size)
		if err != nil {
			f.Close()
			return nil, err
		}
		mapped = true
	}

	entries, err := parseEntries(data)
	if err != nil {
		if mapped {
			_ = munmapFile(data)
		}
		if f != nil {
			f.Close()
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	byName := make(map[string]int, len(entries))
	for i, e := range entries {
		if _, dup := byName[e.Name]; dup {
			continue
		}
		byName[e.Name] = i
	}

	a := &Archive{
		path:    path,
		file:    f,
		data:    data,
		mapped:  mapped,
		entries: entries,
		byName:  byName,
	}
	a.refs.Store(1)
	return a, nil
}

// Path returns the filesystem path the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Entries returns the index in file order. The caller must not modify the
// returned slice.
func (a *Archive) Entries() []Entry {
	return a.entries
}

// Lookup finds an entry by its exact name.
func (a *Archive) Lookup(name string) (Entry, bool) {
	i, ok := a.byName[name]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// Bytes returns the entry's data as a view into the mapping, nil once the
// mapping is gone or for entries that do not belong to this archive.
func (a *Archive) Bytes(e Entry) []byte {
	data := a.data
	if data == nil {
		return nil
	}
	if e.Offset < 0 || e.Size < 0 || e.Offset+e.Size > int64(len(data)) {
		return nil
	}
	return data[e.Offset : e.Offset+e.Size : e.Offset+e.Size]
}

// Acquire adds a reference to the mapping, reporting false once the
// archive has fully shut down. Every successful Acquire must be paired
// with a Release.
func (a *Archive) Acquire() bool {
	for {
		n := a.refs.Load()
		if n <= 0 {
			return false
		}
		if a.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops a reference taken with Acquire, tearing the mapping down
// when the last reference goes.
func (a *Archive) Release() error {
	if a.refs.Add(-1) > 0 {
		return nil
	}
	return a.teardown()
}

// Close drops the opener's reference. Idempotent. Entries resolved from
// still-acquired handles stay readable until those are released.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.Release()
}

func (a *Archive) teardown() error {
	data := a.data
	a.data = nil
	var err error
	if a.mapped && data != nil {
		err = munmapFile(data)
	}
	if a.file != nil {
		if cerr := a.file.Close(); err == nil {
			err = cerr
		}
		a.file = nil
	}
	return err
}

// parseEntries walks the 512 byte header blocks of a tar image. Regular
// files become entries; directories, links and extension headers are
// skipped. The scan stops at the zero filled terminator block and
// tolerates its absence at a clean end of file.
func parseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	off := int64(0)
	for off+blockSize <= int64(len(data)) {
		header := data[off : off+blockSize]
		if isZeroBlock(header) {
			break
		}

		name := cstring(header[0:100])
		size, err := parseOctal(header[124:136])
		if err != nil || size < 0 {
			return nil, fmt.Errorf("%w: entry at offset %d has a bad size field", ErrBadArchive, off)
		}
		typeflag := header[156]
		if isUstar(header) {
			if prefix := cstring(header[345:500]); prefix != "" {
				name = prefix + "/" + name
			}
		}

		dataOff := off + blockSize
		if dataOff+size > int64(len(data)) {
			return nil, fmt.Errorf("%w: entry %q truncated at offset %d", ErrBadArchive, name, off)
		}
		if typeflag == '0' || typeflag == 0 {
			entries = append(entries, Entry{Name: name, Offset: dataOff, Size: size})
		}
		off = dataOff + (size+blockSize-1)/blockSize*blockSize
	}
	return entries, nil
}

func isZeroBlock(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func isUstar(header []byte) bool {
	return string(header[257:262]) == "ustar"
}

func cstring(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func parseOctal(b []byte) (int64, error) {
	s := strings.Trim(string(b), " \x00")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("bad octal field %q", s)
	}
	return v, nil
}
