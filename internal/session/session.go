// Package session binds the review model to a UI: it owns the lazily fetched
// entities of the changes being reviewed and turns them into trees, document
// URIs and comment threads.
package session

import (
	"context"
	"fmt"
	"sync"

	"revview/internal/content"
	"revview/internal/errors"
	"revview/internal/filetree"
	"revview/internal/identity"
	"revview/internal/lazy"
	"revview/internal/registry"
	"revview/internal/review"
	"revview/internal/workspace"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type Session struct {
	api      review.API
	self     *lazy.Entity[*review.AccountInfo]
	changes  *lazy.Cache[string, *review.ChangeInfo]
	comments *lazy.Cache[string, review.Comments]
	drafts   *lazy.Cache[string, review.Comments]
	content  *content.Cache
	registry *registry.Registry
	local    *workspace.Local
	logger   *zap.Logger

	// listing serializes the handle turnover of Comments per change.
	listingMu sync.Mutex
	listing   map[string]*sync.Mutex
}

type Options struct {
	API      review.API
	Content  *content.Cache
	Registry *registry.Registry
	// Local is optional; without it no file is ever opened from disk.
	Local  *workspace.Local
	Logger *zap.Logger
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Local == nil {
		opts.Local = workspace.NewLocal(opts.Logger)
	}

	api := opts.API
	self := lazy.New[*review.AccountInfo](review.SelfEntity{API: api})
	return &Session{
		api:  api,
		self: self,
		changes: lazy.NewCache(func(id string) lazy.Fetcher[*review.ChangeInfo] {
			return review.ChangeEntity{API: api, ChangeID: id}
		}),
		comments: lazy.NewCache(func(id string) lazy.Fetcher[review.Comments] {
			return review.CommentsEntity{API: api, ChangeID: id}
		}),
		drafts: lazy.NewCache(func(id string) lazy.Fetcher[review.Comments] {
			return review.DraftsEntity{API: api, ChangeID: id, Self: self, Logger: opts.Logger}
		}),
		content:  opts.Content,
		registry: opts.Registry,
		local:    opts.Local,
		logger:   opts.Logger,
		listing:  make(map[string]*sync.Mutex),
	}
}

// absorb turns an absence condition into a nil error, logging it. Other
// errors are returned unchanged.
func (s *Session) absorb(what string, err error) error {
	if err == nil || !errors.IsAbsent(err) {
		return err
	}
	s.logger.Debug(what+" unavailable", zap.Error(err))
	return nil
}

// Change returns the change, or nil when it is absent.
func (s *Session) Change(ctx context.Context, changeID string) (*review.ChangeInfo, error) {
	change, err := s.changes.Get(ctx, changeID)
	if err != nil {
		return nil, s.absorb("change", err)
	}
	return change, nil
}

// Refresh drops everything cached for changeID.
func (s *Session) Refresh(changeID string) {
	s.changes.Reset(changeID)
	s.comments.Reset(changeID)
	s.drafts.Reset(changeID)
}

// Tree returns the collapsed file tree of the change's current revision. An
// absent change yields an empty tree.
func (s *Session) Tree(ctx context.Context, changeID string) ([]filetree.Item[review.ChangedFile], error) {
	change, err := s.Change(ctx, changeID)
	if err != nil || change == nil {
		return nil, err
	}

	files := lo.Map(change.Files(), func(f review.ChangedFile, _ int) filetree.File[review.ChangedFile] {
		return filetree.File[review.ChangedFile]{Path: f.FilePath, Record: f}
	})
	return filetree.Present(filetree.Collapse(filetree.Build(files))), nil
}

// DiffURIs are the two documents a diff viewer opens for one file.
type DiffURIs struct {
	// Old is empty when the base commit could not be resolved.
	Old string `json:"old"`
	New string `json:"new"`
	// LocalNew is set when New points at the unchanged local checkout.
	LocalNew bool   `json:"local_new"`
	Title    string `json:"title"`
}

// DiffURIs addresses the old and new sides of path in the change. The new
// side is the local file when the checkout has exactly the reviewed content.
// When the base commit is unknown the old side is left unaddressed rather than
// marked as having no content, so a later call can still resolve it.
func (s *Session) DiffURIs(ctx context.Context, changeID, path string) (*DiffURIs, error) {
	change, err := s.Change(ctx, changeID)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, errors.NotFound(fmt.Sprintf("change %s not available", changeID))
	}
	file, ok := change.File(path)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("%s is not part of change %s", path, changeID))
	}

	base := ""
	if _, rev, ok := change.Current(); ok {
		base, _ = review.BaseCommit(rev.Commit)
	}
	if base == "" {
		commit, err := s.api.CurrentCommit(ctx, changeID)
		if err := s.absorb("current commit", err); err != nil {
			return nil, err
		}
		base, _ = review.BaseCommit(commit)
	}

	uris := &DiffURIs{
		Title: fmt.Sprintf("%s (%s)", path, change.Label()),
	}
	if base != "" || file.Status == review.StatusAdded {
		uris.Old, err = (&content.Blob{Identity: file.OldIdentity(base)}).VirtualURI(identity.SideLeft, nil)
		if err != nil {
			return nil, err
		}
	} else {
		s.logger.Debug("base commit unresolved",
			zap.String("change", changeID),
			zap.String("path", path))
	}

	newID := file.Identity()
	if s.isLocal(ctx, newID) {
		if uri, ok := s.local.URI(file, identity.SideRight, nil); ok {
			uris.New = uri
			uris.LocalNew = true
			return uris, nil
		}
	}
	uris.New, err = (&content.Blob{Identity: newID}).VirtualURI(identity.SideRight, nil)
	if err != nil {
		return nil, err
	}
	return uris, nil
}

// Content resolves a token into its blob. A nil blob with a nil error means
// the content is absent.
func (s *Session) Content(ctx context.Context, token string) (*content.Blob, error) {
	id, err := identity.Decode(token)
	if err != nil {
		return nil, err
	}
	return s.content.Fetch(ctx, id)
}

// IsLocalFile reports whether the token's file is checked out locally with
// exactly the content it addresses.
func (s *Session) IsLocalFile(ctx context.Context, token string) (bool, error) {
	id, err := identity.Decode(token)
	if err != nil {
		return false, err
	}
	return s.isLocal(ctx, id), nil
}

func (s *Session) isLocal(ctx context.Context, id identity.FileIdentity) bool {
	if id.IsEmpty() {
		return false
	}
	if _, ok := s.local.Stat(id.FilePath); !ok {
		return false
	}
	blob, err := s.content.Fetch(ctx, id)
	if err != nil || blob == nil {
		return false
	}
	return s.local.Matches(id.FilePath, blob)
}
