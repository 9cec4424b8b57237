package process

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// MaxUnpackedSize bounds a decompressed package
const MaxUnpackedSize = 256 << 20

var ErrPackageTooLarge = errors.New("unpacked package too large")

// Unpack returns the executable image inside pkg. gzip and zstd packages are
// decompressed; anything else is returned as is. The detected MIME type of
// the original bytes is returned alongside.
func Unpack(pkg []byte) ([]byte, string, error) {
	mtype := mimetype.Detect(pkg)

	switch {
	case mtype.Is("application/gzip"):
		zr, err := gzip.NewReader(bytes.NewReader(pkg))
		if err != nil {
			return nil, mtype.String(), fmt.Errorf("gzip failed: %w", err)
		}
		defer zr.Close()

		data, err := io.ReadAll(io.LimitReader(zr, MaxUnpackedSize+1))
		if err != nil {
			return nil, mtype.String(), fmt.Errorf("gzip failed: %w", err)
		}
		if len(data) > MaxUnpackedSize {
			return nil, mtype.String(), ErrPackageTooLarge
		}
		return data, mtype.String(), nil

	case mtype.Is("application/zstd"):
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxUnpackedSize), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, mtype.String(), fmt.Errorf("zstd failed: %w", err)
		}
		defer dec.Close()

		data, err := dec.DecodeAll(pkg, nil)
		if err != nil {
			if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
				return nil, mtype.String(), ErrPackageTooLarge
			}
			return nil, mtype.String(), fmt.Errorf("zstd failed: %w", err)
		}
		return data, mtype.String(), nil
	}

	return pkg, mtype.String(), nil
}
