// internal/content/store.go
package content

import (
	"context"
	"fmt"

	"revview/internal/errors"
	"revview/internal/identity"
	"revview/internal/review"

	"go.uber.org/zap"
)

// Source is the part of the review service the store reads from.
type Source interface {
	FileContent(ctx context.Context, req review.FileRequest) ([]byte, error)
	CurrentCommit(ctx context.Context, changeID string) (*review.CommitInfo, error)
}

// Store resolves file identities into blobs. It holds no state of its own;
// callers that want caching wrap it with a Cache.
type Store struct {
	source Source
	logger *zap.Logger
}

type StoreOption func(*Store)

func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(source Source, opts ...StoreOption) *Store {
	s := &Store{
		source: source,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the content for id. A nil blob with a nil error means the
// content is absent: the service could not be reached or the file does not
// exist at that commit. Only an invalid identity is reported as an error.
func (s *Store) Fetch(ctx context.Context, id identity.FileIdentity) (*Blob, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if id.IsEmpty() {
		return emptyBlob(id), nil
	}

	data, err := s.source.FileContent(ctx, review.FileRequest{
		Project:  id.Project,
		Commit:   id.Commit,
		ChangeID: id.ChangeID,
		FilePath: id.FilePath,
	})
	if err != nil {
		s.absent("file content", err, zap.String("path", id.FilePath), zap.String("commit", id.Commit))
		return nil, nil
	}
	return &Blob{Buffer: data, Identity: id}, nil
}

// NewContent fetches the file as of the change's revision.
func (s *Store) NewContent(ctx context.Context, file review.ChangedFile) (*Blob, error) {
	return s.Fetch(ctx, file.Identity())
}

// OldContent fetches the file as of the change's base commit. The base is the
// last parent of the current commit; the file's old path is used for renames
// and copies. Added files yield an empty blob.
func (s *Store) OldContent(ctx context.Context, file review.ChangedFile) (*Blob, error) {
	if file.Status == review.StatusAdded {
		return emptyBlob(file.OldIdentity("")), nil
	}

	commit, err := s.source.CurrentCommit(ctx, file.ChangeID)
	if err != nil {
		s.absent("current commit", err, zap.String("change", file.ChangeID))
		return nil, nil
	}
	base, ok := review.BaseCommit(commit)
	if !ok {
		s.logger.Debug("commit has no parents", zap.String("change", file.ChangeID))
		return nil, nil
	}
	return s.Fetch(ctx, file.OldIdentity(base))
}

func (s *Store) absent(what string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if errors.IsAbsent(err) {
		s.logger.Debug(fmt.Sprintf("%s unavailable", what), fields...)
		return
	}
	s.logger.Warn(fmt.Sprintf("fetching %s failed", what), fields...)
}
