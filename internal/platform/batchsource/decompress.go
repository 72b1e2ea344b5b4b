package batchsource

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// decompress wraps r according to the extension of name. Closing the
// result closes r.
func decompress(name string, r io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return &stacked{Reader: zr, closers: []io.Closer{zr, r}}, nil
	case strings.HasSuffix(strings.ToLower(name), ".zst"):
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		zr := dec.IOReadCloser()
		return &stacked{Reader: zr, closers: []io.Closer{zr, r}}, nil
	default:
		return r, nil
	}
}

type stacked struct {
	io.Reader
	closers []io.Closer
}

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
