package review

import (
	"fmt"
	"sort"

	"revview/internal/identity"
)

type FileStatus string

const (
	StatusModified  FileStatus = "modified"
	StatusAdded     FileStatus = "added"
	StatusDeleted   FileStatus = "deleted"
	StatusRenamed   FileStatus = "renamed"
	StatusCopied    FileStatus = "copied"
	StatusRewritten FileStatus = "rewritten"
)

// parseStatus maps the service's one-letter codes. A missing code means
// modified.
func parseStatus(code string) FileStatus {
	switch code {
	case "A":
		return StatusAdded
	case "D":
		return StatusDeleted
	case "R":
		return StatusRenamed
	case "C":
		return StatusCopied
	case "W":
		return StatusRewritten
	}
	return StatusModified
}

// Letter is the short form used in listings.
func (s FileStatus) Letter() string {
	switch s {
	case StatusAdded:
		return "A"
	case StatusDeleted:
		return "D"
	case StatusRenamed:
		return "R"
	case StatusCopied:
		return "C"
	case StatusRewritten:
		return "W"
	}
	return "M"
}

// ChangedFile is the change metadata of one file in one revision. It is never
// modified after it is built from the service's response.
type ChangedFile struct {
	Project       string     `json:"project"`
	ChangeID      string     `json:"change_id"`
	Revision      string     `json:"revision"`
	FilePath      string     `json:"path"`
	OldPath       string     `json:"old_path,omitempty"`
	Status        FileStatus `json:"status"`
	LinesInserted int        `json:"lines_inserted"`
	LinesDeleted  int        `json:"lines_deleted"`
	SizeDelta     int64      `json:"size_delta"`
	Size          int64      `json:"size"`
	Binary        bool       `json:"binary,omitempty"`
}

func NewChangedFile(change *ChangeInfo, revision, path string, info FileInfo) ChangedFile {
	return ChangedFile{
		Project:       change.Project,
		ChangeID:      change.ID,
		Revision:      revision,
		FilePath:      path,
		OldPath:       info.OldPath,
		Status:        parseStatus(info.Status),
		LinesInserted: info.LinesInserted,
		LinesDeleted:  info.LinesDeleted,
		SizeDelta:     info.SizeDelta,
		Size:          info.Size,
		Binary:        info.Binary,
	}
}

// ContentPath is the path to request content for. With useOldPath the
// pre-rename path is used when there is one; no rename detection happens here.
func (f ChangedFile) ContentPath(useOldPath bool) string {
	if useOldPath && f.OldPath != "" {
		return f.OldPath
	}
	return f.FilePath
}

// Identity addresses the file's content in its own revision. Deleted files
// have no new content and get an empty identity.
func (f ChangedFile) Identity() identity.FileIdentity {
	id := identity.FileIdentity{
		Project:  f.Project,
		ChangeID: f.ChangeID,
		Commit:   f.Revision,
		FilePath: f.FilePath,
	}
	if f.Status == StatusDeleted {
		id.Commit = ""
	}
	return id
}

// OldIdentity addresses the file's content at base, using the old path for
// renamed and copied files. Added files have no old content and get an empty
// identity.
func (f ChangedFile) OldIdentity(base string) identity.FileIdentity {
	id := identity.FileIdentity{
		Project:  f.Project,
		ChangeID: f.ChangeID,
		Commit:   base,
		FilePath: f.ContentPath(true),
	}
	if f.Status == StatusAdded {
		id.Commit = ""
	}
	return id
}

// Current returns the current revision sha and its info, if the change was
// fetched with it.
func (c *ChangeInfo) Current() (string, *RevisionInfo, bool) {
	if c.CurrentRevision == "" {
		return "", nil, false
	}
	rev, ok := c.Revisions[c.CurrentRevision]
	if !ok {
		return "", nil, false
	}
	return c.CurrentRevision, &rev, true
}

// Files lists the changed files of the current revision sorted by path. The
// magic /COMMIT_MSG and /MERGE_LIST entries are skipped.
func (c *ChangeInfo) Files() []ChangedFile {
	sha, rev, ok := c.Current()
	if !ok {
		return nil
	}
	files := make([]ChangedFile, 0, len(rev.Files))
	for path, info := range rev.Files {
		if isMagicPath(path) {
			continue
		}
		files = append(files, NewChangedFile(c, sha, path, info))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })
	return files
}

// File returns the changed file at path in the current revision.
func (c *ChangeInfo) File(path string) (ChangedFile, bool) {
	sha, rev, ok := c.Current()
	if !ok {
		return ChangedFile{}, false
	}
	info, ok := rev.Files[path]
	if !ok || isMagicPath(path) {
		return ChangedFile{}, false
	}
	return NewChangedFile(c, sha, path, info), true
}

func isMagicPath(path string) bool {
	return path == "/COMMIT_MSG" || path == "/MERGE_LIST" || path == "/PATCHSET_LEVEL"
}

// Label is the tree entry title of the change.
func (c *ChangeInfo) Label() string {
	return fmt.Sprintf("#%d: %s", c.Number, c.Subject)
}

// Description names the owner, or is empty when the owner is unknown.
func (c *ChangeInfo) Description() string {
	if name := c.Owner.Label(); name != "" {
		return "by " + name
	}
	return ""
}
