// internal/content/cache.go
package content

import (
	"context"
	"fmt"
	"sync/atomic"

	"revview/internal/identity"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type CacheOptions struct {
	// Number of blobs to keep
	Size        int
	Compression CompressionOptions
	Logger      *zap.Logger
}

type cacheEntry struct {
	data       []byte
	compressed bool
	identity   identity.FileIdentity
}

// Cache keeps recently resolved blobs in memory, keyed by identity token.
// Large buffers are held zstd compressed. Nothing is persisted, and absent
// content is never cached so a later request retries the service.
type Cache struct {
	store  *Store
	lru    *lru.Cache[string, cacheEntry]
	comp   *compressor
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCache(store *Store, opts CacheOptions) (*Cache, error) {
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.Compression.MinSize == 0 && opts.Compression.Level == 0 {
		opts.Compression = DefaultCompressionOptions()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l, err := lru.New[string, cacheEntry](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	comp, err := newCompressor(opts.Compression)
	if err != nil {
		return nil, err
	}

	return &Cache{
		store:  store,
		lru:    l,
		comp:   comp,
		logger: opts.Logger,
	}, nil
}

// Fetch returns the blob for id from the cache or the store. Like
// Store.Fetch, a nil blob with a nil error means absent.
func (c *Cache) Fetch(ctx context.Context, id identity.FileIdentity) (*Blob, error) {
	token, err := identity.Encode(id)
	if err != nil {
		return nil, err
	}

	if blob, ok := c.Get(token); ok {
		c.hits.Add(1)
		return blob, nil
	}
	c.misses.Add(1)

	blob, err := c.store.Fetch(ctx, id)
	if err != nil || blob == nil {
		return blob, err
	}
	c.Add(token, blob)
	return blob, nil
}

// Get returns a cached blob by token.
func (c *Cache) Get(token string) (*Blob, bool) {
	entry, ok := c.lru.Get(token)
	if !ok {
		return nil, false
	}

	data := entry.data
	if entry.compressed {
		var err error
		data, err = c.comp.decompress(entry.data)
		if err != nil {
			c.logger.Warn("dropping corrupt cache entry", zap.String("path", entry.identity.FilePath), zap.Error(err))
			c.lru.Remove(token)
			return nil, false
		}
	}
	return &Blob{Buffer: data, Identity: entry.identity}, true
}

func (c *Cache) Add(token string, blob *Blob) {
	data, compressed := c.comp.compress(blob.Identity.FilePath, blob.Buffer)
	if compressed {
		c.logger.Debug("compressed cached content",
			zap.String("path", blob.Identity.FilePath),
			zap.Int("size", len(blob.Buffer)),
			zap.Int("stored", len(data)))
	} else {
		data = append([]byte(nil), blob.Buffer...)
	}
	c.lru.Add(token, cacheEntry{
		data:       data,
		compressed: compressed,
		identity:   blob.Identity,
	})
}

func (c *Cache) Remove(token string) {
	c.lru.Remove(token)
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
