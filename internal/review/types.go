// Package review holds the records exchanged with the code-review service and
// the entities built from them.
package review

import (
	"strings"
	"time"
)

// timestampLayout is the service's timestamp format; values are UTC.
const timestampLayout = "2006-01-02 15:04:05.000000000"

type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(timestampLayout) + `"`), nil
}

type AccountInfo struct {
	AccountID   int    `json:"_account_id"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username,omitempty"`
}

// Label picks the first non-empty of display name, name, email and
// username.
func (a AccountInfo) Label() string {
	for _, s := range []string{a.DisplayName, a.Name, a.Email, a.Username} {
		if s != "" {
			return s
		}
	}
	return ""
}

type ParentCommit struct {
	Commit  string `json:"commit"`
	Subject string `json:"subject"`
}

type CommitInfo struct {
	Commit  string         `json:"commit,omitempty"`
	Parents []ParentCommit `json:"parents"`
	Subject string         `json:"subject"`
	Message string         `json:"message,omitempty"`
}

// BaseCommit returns the commit the old side of a diff is taken from. For a
// merge commit this is the last listed parent, matching the review service's
// own base selection.
func BaseCommit(c *CommitInfo) (string, bool) {
	if c == nil || len(c.Parents) == 0 {
		return "", false
	}
	return c.Parents[len(c.Parents)-1].Commit, true
}

type FileInfo struct {
	Status        string `json:"status,omitempty"`
	OldPath       string `json:"old_path,omitempty"`
	LinesInserted int    `json:"lines_inserted,omitempty"`
	LinesDeleted  int    `json:"lines_deleted,omitempty"`
	SizeDelta     int64  `json:"size_delta"`
	Size          int64  `json:"size"`
	Binary        bool   `json:"binary,omitempty"`
}

type RevisionInfo struct {
	Number int                 `json:"_number"`
	Ref    string              `json:"ref"`
	Commit *CommitInfo         `json:"commit,omitempty"`
	Files  map[string]FileInfo `json:"files,omitempty"`
}

type ChangeInfo struct {
	ID              string                  `json:"id"`
	Project         string                  `json:"project"`
	Branch          string                  `json:"branch"`
	ChangeID        string                  `json:"change_id"`
	Subject         string                  `json:"subject"`
	Status          string                  `json:"status"`
	Number          int                     `json:"_number"`
	Owner           AccountInfo             `json:"owner"`
	Updated         Timestamp               `json:"updated"`
	CurrentRevision string                  `json:"current_revision,omitempty"`
	Revisions       map[string]RevisionInfo `json:"revisions,omitempty"`
}

// CommentSide is the service's name for the diff side a comment is on.
type CommentSide string

const (
	SideRevision CommentSide = "REVISION"
	SideParent   CommentSide = "PARENT"
)

type CommentRange struct {
	StartLine      int `json:"start_line"`
	StartCharacter int `json:"start_character"`
	EndLine        int `json:"end_line"`
	EndCharacter   int `json:"end_character"`
}

type ContextLine struct {
	LineNumber  int    `json:"line_number"`
	ContextLine string `json:"context_line"`
}

type CommentInfo struct {
	ID                string        `json:"id"`
	Author            AccountInfo   `json:"author"`
	PatchSet          int           `json:"patch_set,omitempty"`
	CommitID          string        `json:"commit_id,omitempty"`
	Path              string        `json:"path,omitempty"`
	Side              CommentSide   `json:"side,omitempty"`
	Parent            int           `json:"parent,omitempty"`
	Line              int           `json:"line,omitempty"`
	Range             *CommentRange `json:"range,omitempty"`
	InReplyTo         string        `json:"in_reply_to,omitempty"`
	Message           string        `json:"message,omitempty"`
	Updated           Timestamp     `json:"updated"`
	Tag               string        `json:"tag,omitempty"`
	Unresolved        bool          `json:"unresolved,omitempty"`
	ChangeMessageID   string        `json:"change_message_id,omitempty"`
	ContextLines      []ContextLine `json:"context_lines,omitempty"`
	SourceContentType string        `json:"source_content_type,omitempty"`
}

// CommentInput is the body of a create-draft request.
type CommentInput struct {
	Path       string        `json:"path"`
	Side       CommentSide   `json:"side,omitempty"`
	Line       int           `json:"line,omitempty"`
	Range      *CommentRange `json:"range,omitempty"`
	InReplyTo  string        `json:"in_reply_to,omitempty"`
	Message    string        `json:"message"`
	Unresolved bool          `json:"unresolved"`
}

// FileRequest addresses file content on the review service.
type FileRequest struct {
	Project  string
	Commit   string
	ChangeID string
	FilePath string
}
