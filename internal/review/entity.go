package review

import (
	"context"
	"fmt"

	"revview/internal/lazy"

	"go.uber.org/zap"
)

// API is the review service as seen by this package. Every method reports a
// missing object with errors.NotFound and an unreachable service with
// errors.Unavailable.
type API interface {
	Change(ctx context.Context, changeID string) (*ChangeInfo, error)
	CurrentCommit(ctx context.Context, changeID string) (*CommitInfo, error)
	FileContent(ctx context.Context, req FileRequest) ([]byte, error)
	Comments(ctx context.Context, changeID string) (map[string][]CommentInfo, error)
	DraftComments(ctx context.Context, changeID string) (map[string][]CommentInfo, error)
	CreateDraftComment(ctx context.Context, changeID, revision string, in CommentInput) (*CommentInfo, error)
	Self(ctx context.Context) (*AccountInfo, error)
}

// The entity variants below each populate one kind of lazily fetched value.

// SelfEntity resolves the current user, used to decide comment ownership.
type SelfEntity struct {
	API API
}

func (e SelfEntity) Fetch(ctx context.Context) (*AccountInfo, error) {
	self, err := e.API.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return self, nil
}

// ChangeEntity fetches a change with its current revision and files.
type ChangeEntity struct {
	API      API
	ChangeID string
}

func (e ChangeEntity) Fetch(ctx context.Context) (*ChangeInfo, error) {
	change, err := e.API.Change(ctx, e.ChangeID)
	if err != nil {
		return nil, fmt.Errorf("fetching change %s: %w", e.ChangeID, err)
	}
	return change, nil
}

// CommentsEntity fetches the posted comments of a change.
type CommentsEntity struct {
	API      API
	ChangeID string
}

func (e CommentsEntity) Fetch(ctx context.Context) (Comments, error) {
	raw, err := e.API.Comments(ctx, e.ChangeID)
	if err != nil {
		return nil, fmt.Errorf("fetching comments of %s: %w", e.ChangeID, err)
	}
	out := make(Comments, len(raw))
	for path, infos := range raw {
		for _, info := range infos {
			out[path] = append(out[path], newComment(e.ChangeID, path, info))
		}
	}
	return out, nil
}

// DraftsEntity fetches the current user's drafts on a change. The drafts'
// author comes from Self; when the user cannot be resolved the drafts are
// still returned, without an author name.
type DraftsEntity struct {
	API      API
	ChangeID string
	Self     *lazy.Entity[*AccountInfo]
	Logger   *zap.Logger
}

func (e DraftsEntity) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e DraftsEntity) Fetch(ctx context.Context) (Comments, error) {
	raw, err := e.API.DraftComments(ctx, e.ChangeID)
	if err != nil {
		return nil, fmt.Errorf("fetching drafts of %s: %w", e.ChangeID, err)
	}

	var self *AccountInfo
	if e.Self != nil {
		if self, err = e.Self.Get(ctx); err != nil {
			e.logger().Debug("current user unknown, drafts have no author",
				zap.String("change", e.ChangeID),
				zap.Error(err))
		}
	}

	out := make(Comments, len(raw))
	for path, infos := range raw {
		for _, info := range infos {
			out[path] = append(out[path], newDraft(e.ChangeID, path, info, self))
		}
	}
	return out, nil
}
