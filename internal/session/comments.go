package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"revview/internal/errors"
	"revview/internal/review"

	"go.uber.org/zap"
)

// Thread is a comment as handed to the UI, addressed by its handle.
type Thread struct {
	Handle string `json:"handle"`
	*review.Comment
}

// Comments returns the posted comments and the user's drafts on a change,
// ordered by path then time. Each call registers fresh handles and drops the
// ones handed out before for the same change. Absent comments yield an empty
// list.
func (s *Session) Comments(ctx context.Context, changeID string) ([]Thread, error) {
	posted, err := s.comments.Get(ctx, changeID)
	if err := s.absorb("comments", err); err != nil {
		return nil, err
	}
	drafts, err := s.drafts.Get(ctx, changeID)
	if err := s.absorb("drafts", err); err != nil {
		return nil, err
	}

	lock := s.listingLock(changeID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.registry.ForgetChange(changeID); err != nil {
		return nil, err
	}

	var all []*review.Comment
	for _, cs := range []review.Comments{posted, drafts} {
		for _, list := range cs {
			all = append(all, list...)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].FilePath != all[j].FilePath {
			return all[i].FilePath < all[j].FilePath
		}
		return all[i].Updated.Before(all[j].Updated.Time)
	})

	threads := make([]Thread, 0, len(all))
	for _, c := range all {
		t, err := s.register(c)
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, nil
}

func (s *Session) listingLock(changeID string) *sync.Mutex {
	s.listingMu.Lock()
	defer s.listingMu.Unlock()
	l, ok := s.listing[changeID]
	if !ok {
		l = &sync.Mutex{}
		s.listing[changeID] = l
	}
	return l
}

func (s *Session) register(c *review.Comment) (Thread, error) {
	handle, err := s.registry.Register(c)
	if err != nil {
		return Thread{}, err
	}
	return Thread{Handle: handle, Comment: c}, nil
}

// CreateDraft creates a draft comment. The drafts of the change are refetched
// on next use.
func (s *Session) CreateDraft(ctx context.Context, opts review.DraftOptions) (Thread, error) {
	if opts.Revision == "" && opts.ChangeID != "" {
		change, err := s.Change(ctx, opts.ChangeID)
		if err != nil {
			return Thread{}, err
		}
		if change != nil {
			opts.Revision = change.CurrentRevision
		}
	}

	self, err := s.self.Get(ctx)
	if err != nil {
		s.logger.Debug("current user unknown", zap.Error(err))
	}

	c, err := review.CreateDraft(ctx, s.api, self, opts)
	if err != nil {
		return Thread{}, err
	}
	s.drafts.Reset(opts.ChangeID)
	return s.register(c)
}

// Reply drafts a reply to the comment behind handle, on the same line and
// side.
func (s *Session) Reply(ctx context.Context, handle, message string, unresolved bool) (Thread, error) {
	parent, err := s.registry.Lookup(handle)
	if err != nil {
		return Thread{}, err
	}
	if message == "" {
		return Thread{}, errors.ValidationError("reply message is required", nil)
	}

	opts := review.DraftOptions{
		Content:    message,
		ChangeID:   parent.ChangeID,
		Revision:   parent.CommitID,
		FilePath:   parent.FilePath,
		Unresolved: unresolved,
		Side:       parent.DiffSide(),
		Line:       parent.Line,
		Range:      parent.Range,
		ReplyTo:    parent.ID,
	}
	t, err := s.CreateDraft(ctx, opts)
	if err != nil {
		return Thread{}, fmt.Errorf("replying to %s: %w", parent.ID, err)
	}
	return t, nil
}
