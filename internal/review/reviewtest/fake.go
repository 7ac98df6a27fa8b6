// Package reviewtest provides an in-memory review service for tests.
package reviewtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"revview/internal/errors"
	"revview/internal/review"
)

// Fake implements review.API from maps. Setting Down makes every call fail
// with errors.Unavailable.
type Fake struct {
	mu sync.Mutex

	Down     bool
	Changes  map[string]*review.ChangeInfo
	Commits  map[string]*review.CommitInfo
	Files    map[string][]byte // key: FileKey(commit, path)
	Posted   map[string]map[string][]review.CommentInfo
	Drafts   map[string]map[string][]review.CommentInfo
	User     *review.AccountInfo
	Requests []review.FileRequest

	calls  atomic.Int64
	nextID int
}

func NewFake() *Fake {
	return &Fake{
		Changes: make(map[string]*review.ChangeInfo),
		Commits: make(map[string]*review.CommitInfo),
		Files:   make(map[string][]byte),
		Posted:  make(map[string]map[string][]review.CommentInfo),
		Drafts:  make(map[string]map[string][]review.CommentInfo),
	}
}

func FileKey(commit, path string) string {
	return commit + ":" + path
}

// Calls returns how many API methods have been called.
func (f *Fake) Calls() int64 {
	return f.calls.Load()
}

func (f *Fake) SetDown(down bool) {
	f.mu.Lock()
	f.Down = down
	f.mu.Unlock()
}

func (f *Fake) enter() error {
	f.calls.Add(1)
	if f.Down {
		return errors.Unavailable("review service unreachable", nil)
	}
	return nil
}

func (f *Fake) Change(ctx context.Context, changeID string) (*review.ChangeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	c, ok := f.Changes[changeID]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("change %s not found", changeID))
	}
	return c, nil
}

func (f *Fake) CurrentCommit(ctx context.Context, changeID string) (*review.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	c, ok := f.Commits[changeID]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("commit of change %s not found", changeID))
	}
	return c, nil
}

func (f *Fake) FileContent(ctx context.Context, req review.FileRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if err := f.enter(); err != nil {
		return nil, err
	}
	data, ok := f.Files[FileKey(req.Commit, req.FilePath)]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("%s not found at %s", req.FilePath, req.Commit))
	}
	return data, nil
}

func (f *Fake) Comments(ctx context.Context, changeID string) (map[string][]review.CommentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	return copyComments(f.Posted[changeID]), nil
}

func (f *Fake) DraftComments(ctx context.Context, changeID string) (map[string][]review.CommentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	return copyComments(f.Drafts[changeID]), nil
}

func (f *Fake) CreateDraftComment(ctx context.Context, changeID, revision string, in review.CommentInput) (*review.CommentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	f.nextID++
	info := review.CommentInfo{
		ID:         fmt.Sprintf("draft-%d", f.nextID),
		CommitID:   revision,
		Path:       in.Path,
		Side:       in.Side,
		Line:       in.Line,
		Range:      in.Range,
		InReplyTo:  in.InReplyTo,
		Message:    in.Message,
		Unresolved: in.Unresolved,
	}
	if f.User != nil {
		info.Author = *f.User
	}
	if f.Drafts[changeID] == nil {
		f.Drafts[changeID] = make(map[string][]review.CommentInfo)
	}
	f.Drafts[changeID][in.Path] = append(f.Drafts[changeID][in.Path], info)
	return &info, nil
}

func (f *Fake) Self(ctx context.Context) (*review.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	if f.User == nil {
		return nil, errors.Unauthorized("not signed in")
	}
	u := *f.User
	return &u, nil
}

func copyComments(in map[string][]review.CommentInfo) map[string][]review.CommentInfo {
	out := make(map[string][]review.CommentInfo, len(in))
	for k, v := range in {
		out[k] = append([]review.CommentInfo(nil), v...)
	}
	return out
}

// AddChange registers a change whose current revision sha has the given
// files and parents. The commit's parents are also served by CurrentCommit.
func (f *Fake) AddChange(id, project, sha string, number int, files map[string]review.FileInfo, parents ...string) *review.ChangeInfo {
	f.mu.Lock()
	defer f.mu.Unlock()

	commit := &review.CommitInfo{Commit: sha, Subject: "subject of " + id}
	for _, p := range parents {
		commit.Parents = append(commit.Parents, review.ParentCommit{Commit: p})
	}
	change := &review.ChangeInfo{
		ID:              id,
		Project:         project,
		Subject:         commit.Subject,
		Number:          number,
		Owner:           review.AccountInfo{AccountID: 1000, Name: "Owner"},
		CurrentRevision: sha,
		Revisions: map[string]review.RevisionInfo{
			sha: {Number: 1, Commit: commit, Files: files},
		},
	}
	f.Changes[id] = change
	f.Commits[id] = commit
	return change
}

// AddFile registers content for path at commit.
func (f *Fake) AddFile(commit, path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files[FileKey(commit, path)] = data
}

// FileRequests returns a copy of the content requests seen so far.
func (f *Fake) FileRequests() []review.FileRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]review.FileRequest(nil), f.Requests...)
}
