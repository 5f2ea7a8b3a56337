//go:build !unix

package tarindex

import "os"

func mmapFile(f *os.File, size int64) ([]byte, error) {
	return nil, ErrMmapUnsupported
}

func munmapFile(data []byte) error {
	return nil
}
