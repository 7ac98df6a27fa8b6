// internal/content/compression.go
package content

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// CompressionOptions configures how cached buffers are compressed.
type CompressionOptions struct {
	// Minimum size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
	// File extensions that are already compressed
	SkipExtensions []string
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 4 * 1024,
		Level:   2,
		SkipExtensions: []string{
			".zip", ".gz", ".zst", ".xz", ".bz2", ".jar",
			".png", ".jpg", ".jpeg", ".gif", ".webp",
			".pdf",
		},
	}
}

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

type compressor struct {
	opts     CompressionOptions
	encoders sync.Pool
	decoders sync.Pool
}

func newCompressor(opts CompressionOptions) (*compressor, error) {
	level := zstd.EncoderLevelFromZstd(opts.Level)

	// Fail early on bad options rather than inside the pools.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	c := &compressor{
		opts: opts,
		encoders: sync.Pool{
			New: func() interface{} {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() interface{} {
				dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				return dec
			},
		},
	}
	c.encoders.Put(enc)
	c.decoders.Put(dec)
	return c, nil
}

func (c *compressor) shouldCompress(path string, size int) bool {
	if size < c.opts.MinSize {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, skip := range c.opts.SkipExtensions {
		if ext == skip {
			return false
		}
	}
	return true
}

// compress returns the stored form of data and whether it was compressed.
func (c *compressor) compress(path string, data []byte) ([]byte, bool) {
	if !c.shouldCompress(path, len(data)) {
		return data, false
	}

	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)

	out := enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	if len(out) >= len(data) {
		return data, false
	}
	return out, true
}

func (c *compressor) decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return nil, fmt.Errorf("not zstd compressed")
	}

	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}
