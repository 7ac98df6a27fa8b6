package review

import (
	"context"
	"fmt"
	"sort"

	"revview/internal/errors"
	"revview/internal/identity"
)

// Comment is a posted or draft comment on one file of a change.
type Comment struct {
	CommentInfo
	ChangeID string `json:"change_id"`
	FilePath string `json:"file_path"`
	Draft    bool   `json:"draft"`
	// AuthorName is the name shown for the comment. Drafts always belong to
	// the current user.
	AuthorName string `json:"author_name"`
}

func newComment(changeID, path string, info CommentInfo) *Comment {
	return &Comment{
		CommentInfo: info,
		ChangeID:    changeID,
		FilePath:    path,
		AuthorName:  info.Author.Label(),
	}
}

func newDraft(changeID, path string, info CommentInfo, self *AccountInfo) *Comment {
	c := &Comment{
		CommentInfo: info,
		ChangeID:    changeID,
		FilePath:    path,
		Draft:       true,
	}
	if self != nil {
		c.AuthorName = self.Label()
	}
	return c
}

func (c *Comment) Body() string {
	return c.Message
}

// Label is the tag shown next to the author; only drafts have one.
func (c *Comment) Label() string {
	if c.Draft {
		return "Draft"
	}
	return ""
}

// ContextValue lists the actions the UI may offer for the comment.
func (c *Comment) ContextValue() string {
	if c.Draft {
		return "editable,deletable"
	}
	return ""
}

// DiffSide maps the comment's side to the side of the virtual document it
// belongs on.
func (c *Comment) DiffSide() identity.Side {
	if c.Side == SideParent {
		return identity.SideLeft
	}
	return identity.SideRight
}

// CommentSideFor maps a diff side to the service's comment side.
func CommentSideFor(side identity.Side) CommentSide {
	switch side {
	case identity.SideLeft, identity.SideBase:
		return SideParent
	}
	return SideRevision
}

// Comments maps file path to the comments on that file, in service order.
type Comments map[string][]*Comment

// Count returns the number of comments over all files.
func (cs Comments) Count() int {
	n := 0
	for _, list := range cs {
		n += len(list)
	}
	return n
}

// Paths returns the commented paths in sorted order.
func (cs Comments) Paths() []string {
	paths := make([]string, 0, len(cs))
	for p := range cs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// DraftOptions describes a draft comment to create.
type DraftOptions struct {
	Content    string
	ChangeID   string
	Revision   string
	FilePath   string
	Unresolved bool
	Side       identity.Side
	Line       int
	Range      *CommentRange
	ReplyTo    string
}

func (o DraftOptions) input() CommentInput {
	in := CommentInput{
		Path:       o.FilePath,
		Side:       CommentSideFor(o.Side),
		InReplyTo:  o.ReplyTo,
		Message:    o.Content,
		Unresolved: o.Unresolved,
	}
	if o.Range != nil {
		r := *o.Range
		in.Range = &r
		in.Line = r.EndLine
	} else {
		in.Line = o.Line
	}
	return in
}

func (o DraftOptions) validate() error {
	switch {
	case o.ChangeID == "":
		return errors.ValidationError("change id is required", nil)
	case o.Revision == "":
		return errors.ValidationError("revision is required", nil)
	case o.FilePath == "":
		return errors.ValidationError("file path is required", nil)
	case o.Content == "":
		return errors.ValidationError("comment content is required", nil)
	}
	return nil
}

// CreateDraft creates a draft comment and returns it authored by self.
func CreateDraft(ctx context.Context, api API, self *AccountInfo, opts DraftOptions) (*Comment, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	info, err := api.CreateDraftComment(ctx, opts.ChangeID, opts.Revision, opts.input())
	if err != nil {
		return nil, fmt.Errorf("creating draft comment: %w", err)
	}
	path := info.Path
	if path == "" {
		path = opts.FilePath
	}
	return newDraft(opts.ChangeID, path, *info, self), nil
}
