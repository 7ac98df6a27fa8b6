// Package registry maps opaque handles to the comments shown in the UI. A UI
// thread only carries its handle; the registry recovers the comment it was
// built from when the user replies.
package registry

import (
	"fmt"

	"revview/internal/errors"
	"revview/internal/review"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Registry struct {
	db       *badger.DB
	comments *badgerStore[*review.Comment]
	logger   *zap.Logger
}

// Open creates a registry backed by an in-memory badger database. Nothing
// outlives the process.
func Open(logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}

	return &Registry{
		db:       db,
		comments: newBadgerStore[*review.Comment](db, "comment"),
		logger:   logger,
	}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Register stores c and returns a fresh handle for it.
func (r *Registry) Register(c *review.Comment) (string, error) {
	handle := uuid.New().String()
	if err := r.comments.create(handle, c); err != nil {
		return "", fmt.Errorf("registering comment %s: %w", c.ID, err)
	}
	return handle, nil
}

// Lookup returns the comment registered under handle, or NOT_FOUND.
func (r *Registry) Lookup(handle string) (*review.Comment, error) {
	c, err := r.comments.get(handle)
	if err == badger.ErrKeyNotFound {
		return nil, errors.NotFound(fmt.Sprintf("comment handle %s not found", handle))
	}
	if err != nil {
		return nil, errors.Internal("reading comment registry", err)
	}
	return c, nil
}

func (r *Registry) Forget(handle string) error {
	err := r.comments.delete(handle)
	if err == badger.ErrKeyNotFound {
		return errors.NotFound(fmt.Sprintf("comment handle %s not found", handle))
	}
	return err
}

// ForgetChange drops every handle registered for changeID, used before the
// change's comments are registered again.
func (r *Registry) ForgetChange(changeID string) (int, error) {
	var stale []string
	err := r.comments.each(func(handle string, c *review.Comment) bool {
		if c.ChangeID == changeID {
			stale = append(stale, handle)
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("scanning comment registry: %w", err)
	}

	for _, handle := range stale {
		if err := r.comments.delete(handle); err != nil && err != badger.ErrKeyNotFound {
			return 0, fmt.Errorf("forgetting %s: %w", handle, err)
		}
	}
	if len(stale) > 0 {
		r.logger.Debug("forgot comment handles", zap.String("change", changeID), zap.Int("count", len(stale)))
	}
	return len(stale), nil
}

func (r *Registry) Len() int {
	n := 0
	if err := r.comments.each(func(string, *review.Comment) bool { n++; return true }); err != nil {
		r.logger.Warn("counting comment registry", zap.Error(err))
	}
	return n
}
