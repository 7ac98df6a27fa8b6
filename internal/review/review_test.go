package review_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"revview/internal/identity"
	"revview/internal/lazy"
	"revview/internal/review"
	"revview/internal/review/reviewtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTimestamp_JSON(t *testing.T) {
	var c review.CommentInfo
	err := json.Unmarshal([]byte(`{"id":"c1","updated":"2013-02-26 15:40:43.986000000"}`), &c)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2013, 2, 26, 15, 40, 43, 986000000, time.UTC), c.Updated.Time)

	out, err := json.Marshal(c.Updated)
	require.NoError(t, err)
	assert.Equal(t, `"2013-02-26 15:40:43.986000000"`, string(out))

	var empty review.CommentInfo
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c2"}`), &empty))
	assert.True(t, empty.Updated.IsZero())
}

func TestAccountInfo_Label(t *testing.T) {
	tests := []struct {
		name    string
		account review.AccountInfo
		want    string
	}{
		{"display name first", review.AccountInfo{DisplayName: "Jo", Name: "Joanne", Email: "jo@x", Username: "jo"}, "Jo"},
		{"then name", review.AccountInfo{Name: "Joanne", Email: "jo@x"}, "Joanne"},
		{"then email", review.AccountInfo{Email: "jo@x", Username: "jo"}, "jo@x"},
		{"then username", review.AccountInfo{Username: "jo"}, "jo"},
		{"nothing", review.AccountInfo{AccountID: 7}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.Label())
		})
	}
}

func TestBaseCommit_LastParent(t *testing.T) {
	merge := &review.CommitInfo{Parents: []review.ParentCommit{{Commit: "p1"}, {Commit: "p2"}}}
	base, ok := review.BaseCommit(merge)
	require.True(t, ok)
	assert.Equal(t, "p2", base)

	_, ok = review.BaseCommit(&review.CommitInfo{})
	assert.False(t, ok)
	_, ok = review.BaseCommit(nil)
	assert.False(t, ok)
}

func TestChangeInfo_Files(t *testing.T) {
	fake := reviewtest.NewFake()
	change := fake.AddChange("proj~main~I1", "proj", "sha1", 12, map[string]review.FileInfo{
		"/COMMIT_MSG":  {Status: "A"},
		"b/new.go":     {Status: "A", LinesInserted: 10, Size: 120, SizeDelta: 120},
		"a/main.go":    {LinesInserted: 1, LinesDeleted: 2},
		"c/renamed.go": {Status: "R", OldPath: "c/original.go"},
	}, "base1")

	files := change.Files()
	require.Len(t, files, 3)
	assert.Equal(t, "a/main.go", files[0].FilePath)
	assert.Equal(t, review.StatusModified, files[0].Status)
	assert.Equal(t, review.StatusAdded, files[1].Status)
	assert.Equal(t, int64(120), files[1].Size)
	assert.Equal(t, review.StatusRenamed, files[2].Status)
	assert.Equal(t, "sha1", files[2].Revision)

	_, ok := change.File("/COMMIT_MSG")
	assert.False(t, ok)
	f, ok := change.File("c/renamed.go")
	require.True(t, ok)
	assert.Equal(t, "c/original.go", f.ContentPath(true))
	assert.Equal(t, "c/renamed.go", f.ContentPath(false))

	assert.Equal(t, "#12: subject of proj~main~I1", change.Label())
	assert.Equal(t, "by Owner", change.Description())
}

func TestChangedFile_Identities(t *testing.T) {
	renamed := review.ChangedFile{Project: "p", ChangeID: "c", Revision: "new", FilePath: "b.go", OldPath: "a.go", Status: review.StatusRenamed}
	assert.Equal(t, identity.FileIdentity{Project: "p", ChangeID: "c", Commit: "new", FilePath: "b.go"}, renamed.Identity())
	assert.Equal(t, identity.FileIdentity{Project: "p", ChangeID: "c", Commit: "base", FilePath: "a.go"}, renamed.OldIdentity("base"))

	added := review.ChangedFile{Project: "p", ChangeID: "c", Revision: "new", FilePath: "n.go", Status: review.StatusAdded}
	assert.True(t, added.OldIdentity("base").IsEmpty())
}

func TestCommentSides(t *testing.T) {
	assert.Equal(t, review.SideParent, review.CommentSideFor(identity.SideLeft))
	assert.Equal(t, review.SideParent, review.CommentSideFor(identity.SideBase))
	assert.Equal(t, review.SideRevision, review.CommentSideFor(identity.SideRight))
	assert.Equal(t, review.SideRevision, review.CommentSideFor(identity.SideUnspecified))

	c := &review.Comment{CommentInfo: review.CommentInfo{Side: review.SideParent}}
	assert.Equal(t, identity.SideLeft, c.DiffSide())
	c.Side = ""
	assert.Equal(t, identity.SideRight, c.DiffSide())
}

func TestCommentsEntity(t *testing.T) {
	fake := reviewtest.NewFake()
	fake.Posted["c1"] = map[string][]review.CommentInfo{
		"a.go": {
			{ID: "1", Author: review.AccountInfo{Username: "ann"}, Message: "first"},
			{ID: "2", Author: review.AccountInfo{DisplayName: "Bob"}, Message: "second", InReplyTo: "1"},
		},
	}

	comments, err := review.CommentsEntity{API: fake, ChangeID: "c1"}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, comments["a.go"], 2)
	assert.Equal(t, "ann", comments["a.go"][0].AuthorName)
	assert.Equal(t, "Bob", comments["a.go"][1].AuthorName)
	assert.False(t, comments["a.go"][0].Draft)
	assert.Equal(t, "c1", comments["a.go"][0].ChangeID)
	assert.Equal(t, 2, comments.Count())
	assert.Equal(t, []string{"a.go"}, comments.Paths())
}

func TestDraftsEntity_AuthorIsSelf(t *testing.T) {
	fake := reviewtest.NewFake()
	fake.User = &review.AccountInfo{AccountID: 5, Name: "Me"}
	fake.Drafts["c1"] = map[string][]review.CommentInfo{
		"a.go": {{ID: "d1", Message: "todo"}},
	}
	self := lazy.New[*review.AccountInfo](review.SelfEntity{API: fake})

	drafts, err := review.DraftsEntity{API: fake, ChangeID: "c1", Self: self}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, drafts["a.go"], 1)
	d := drafts["a.go"][0]
	assert.True(t, d.Draft)
	assert.Equal(t, "Me", d.AuthorName)
	assert.Equal(t, "Draft", d.Label())
	assert.Equal(t, "editable,deletable", d.ContextValue())
}

func TestDraftsEntity_UnknownSelf(t *testing.T) {
	fake := reviewtest.NewFake()
	fake.Drafts["c1"] = map[string][]review.CommentInfo{"a.go": {{ID: "d1"}}}
	self := lazy.New[*review.AccountInfo](review.SelfEntity{API: fake})

	core, logs := observer.New(zapcore.DebugLevel)
	drafts, err := review.DraftsEntity{API: fake, ChangeID: "c1", Self: self, Logger: zap.New(core)}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", drafts["a.go"][0].AuthorName)
	assert.Equal(t, lazy.Unfetched, self.State())

	entries := logs.FilterMessageSnippet("current user unknown").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "c1", entries[0].ContextMap()["change"])
}

func TestEntities_PropagateAbsence(t *testing.T) {
	fake := reviewtest.NewFake()
	fake.Down = true

	_, err := review.ChangeEntity{API: fake, ChangeID: "c1"}.Fetch(context.Background())
	assert.Error(t, err)
	_, err = review.CommentsEntity{API: fake, ChangeID: "c1"}.Fetch(context.Background())
	assert.Error(t, err)
	_, err = review.SelfEntity{API: fake}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestCreateDraft(t *testing.T) {
	fake := reviewtest.NewFake()
	self := &review.AccountInfo{Name: "Me"}

	c, err := review.CreateDraft(context.Background(), fake, self, review.DraftOptions{
		Content:    "nit: rename",
		ChangeID:   "c1",
		Revision:   "sha1",
		FilePath:   "a.go",
		Unresolved: true,
		Side:       identity.SideLeft,
		Range:      &review.CommentRange{StartLine: 3, EndLine: 5, EndCharacter: 2},
		ReplyTo:    "parent-1",
	})
	require.NoError(t, err)
	assert.True(t, c.Draft)
	assert.Equal(t, "Me", c.AuthorName)
	assert.Equal(t, review.SideParent, c.Side)
	assert.Equal(t, 5, c.Line)
	assert.Equal(t, "parent-1", c.InReplyTo)
	assert.True(t, c.Unresolved)
	require.Len(t, fake.Drafts["c1"]["a.go"], 1)

	_, err = review.CreateDraft(context.Background(), fake, self, review.DraftOptions{ChangeID: "c1", Revision: "sha1", FilePath: "a.go"})
	assert.Error(t, err)
}
