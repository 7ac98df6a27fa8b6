package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"revview/internal/content"
	"revview/internal/identity"
	"revview/internal/registry"
	"revview/internal/review"
	"revview/internal/review/reviewtest"
	"revview/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*httptest.Server, *reviewtest.Fake) {
	t.Helper()
	fake := reviewtest.NewFake()
	fake.User = &review.AccountInfo{Name: "Me"}
	fake.AddChange("c1", "proj", "new", 42, map[string]review.FileInfo{
		"pkg/a/main.go": {},
		"README.md":     {Status: "A"},
	}, "base")
	fake.AddFile("new", "pkg/a/main.go", []byte("package a\n"))
	fake.AddFile("base", "pkg/a/main.go", []byte("package old\n"))
	fake.Posted["c1"] = map[string][]review.CommentInfo{
		"pkg/a/main.go": {{ID: "p1", CommitID: "new", Line: 1, Message: "hm", Author: review.AccountInfo{Username: "rev"}}},
	}

	reg, err := registry.Open(nil)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	cache, err := content.NewCache(content.NewStore(fake), content.CacheOptions{})
	require.NoError(t, err)

	s := session.New(session.Options{API: fake, Content: cache, Registry: reg})
	srv := httptest.NewServer(NewReviewHandler(s, nil).Routes())
	t.Cleanup(srv.Close)
	return srv, fake
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestReviewHandler_Health(t *testing.T) {
	srv, _ := setupServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReviewHandler_Change(t *testing.T) {
	srv, _ := setupServer(t)

	var change changeResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1", &change))
	assert.Equal(t, 42, change.Number)
	assert.Equal(t, "#42: subject of c1", change.Label)
	assert.Len(t, change.Files, 2)

	var e map[string]any
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/changes/missing", &e))
	assert.Equal(t, "NOT_FOUND", e["type"])
}

func TestReviewHandler_Tree(t *testing.T) {
	srv, _ := setupServer(t)

	var items []treeItem
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/tree", &items))
	require.Len(t, items, 2)
	assert.Equal(t, "folder", items[0].Kind)
	assert.Equal(t, "pkg/a", items[0].Name)
	require.Len(t, items[0].Children, 1)
	assert.Equal(t, "pkg/a/main.go", items[0].Children[0].File.FilePath)
	assert.Equal(t, "file", items[1].Kind)
	assert.Equal(t, review.StatusAdded, items[1].File.Status)
}

func TestReviewHandler_TreeUnavailable(t *testing.T) {
	srv, fake := setupServer(t)
	fake.SetDown(true)

	var items []treeItem
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/tree", &items))
	assert.Empty(t, items)
}

func TestReviewHandler_DiffAndContent(t *testing.T) {
	srv, _ := setupServer(t)

	var uris session.DiffURIs
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/diff?path=pkg/a/main.go", &uris))

	old, err := content.ParseVirtualURI(uris.Old)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/content?token=" + url.QueryEscape(identity.MustEncode(old)))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "package old\n", string(body))
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/content?token="+url.QueryEscape(identity.MustEncode(old)), nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	t.Run("missing path", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/changes/c1/diff", nil))
	})

	t.Run("empty side", func(t *testing.T) {
		require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/diff?path=README.md", &uris))
		old, err := content.ParseVirtualURI(uris.Old)
		require.NoError(t, err)
		resp, err := http.Get(srv.URL + "/api/content?token=" + url.QueryEscape(identity.MustEncode(old)))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "true", resp.Header.Get("X-Revview-Empty"))
	})
}

func TestReviewHandler_ContentErrors(t *testing.T) {
	srv, _ := setupServer(t)

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"malformed token", "not-a-token", http.StatusBadRequest},
		{"invalid identity", "v1:project=p&change=c&commit=x&path=", http.StatusBadRequest},
		{"absent content", identity.MustEncode(identity.FileIdentity{Project: "proj", Commit: "new", FilePath: "nope"}), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e map[string]any
			assert.Equal(t, tt.wantStatus, getJSON(t, srv.URL+"/api/content?token="+url.QueryEscape(tt.token), &e))
			assert.NotEmpty(t, e["message"])
		})
	}
}

func TestReviewHandler_Comments(t *testing.T) {
	srv, fake := setupServer(t)

	var threads []session.Thread
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/comments", &threads))
	require.Len(t, threads, 1)
	assert.Equal(t, "rev", threads[0].AuthorName)
	require.NotEmpty(t, threads[0].Handle)

	body, _ := json.Marshal(replyRequest{Message: "done", Unresolved: false})
	resp, err := http.Post(srv.URL+"/api/comments/"+threads[0].Handle+"/reply", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var reply session.Thread
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "p1", reply.InReplyTo)
	assert.Equal(t, "Me", reply.AuthorName)
	assert.Len(t, fake.Drafts["c1"]["pkg/a/main.go"], 1)

	resp, err = http.Post(srv.URL+"/api/comments/unknown/reply", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReviewHandler_Refresh(t *testing.T) {
	srv, fake := setupServer(t)

	var items []treeItem
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/tree", &items))
	require.Len(t, items, 2)
	var threads []session.Thread
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/comments", &threads))
	require.Len(t, threads, 1)

	// A new patch set and another reviewer's comment land on the service.
	fake.AddChange("c1", "proj", "newer", 42, map[string]review.FileInfo{
		"pkg/a/main.go": {},
		"README.md":     {Status: "A"},
		"docs/intro.md": {Status: "A"},
	}, "base")
	fake.Posted["c1"]["README.md"] = []review.CommentInfo{{ID: "p2", CommitID: "newer", Line: 2, Message: "ok"}}

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/tree", &items))
	assert.Len(t, items, 2, "cached until refreshed")

	resp, err := http.Post(srv.URL+"/api/changes/c1/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/tree", &items))
	assert.Len(t, items, 3)
	var change changeResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1", &change))
	assert.Equal(t, "newer", change.CurrentRevision)
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/changes/c1/comments", &threads))
	assert.Len(t, threads, 2)

	resp, err = http.Get(srv.URL + "/api/changes/c1/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReviewHandler_CreateDraft(t *testing.T) {
	srv, _ := setupServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid draft", `{"path":"pkg/a/main.go","line":1,"side":"LEFT","message":"nit"}`, http.StatusCreated},
		{"missing message", `{"path":"pkg/a/main.go","line":1}`, http.StatusBadRequest},
		{"bad side", `{"path":"pkg/a/main.go","side":"UP","message":"x"}`, http.StatusBadRequest},
		{"bad body", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/changes/c1/drafts", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusCreated {
				var th session.Thread
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&th))
				assert.True(t, th.Draft)
				assert.Equal(t, review.SideParent, th.Side)
				assert.Equal(t, "new", th.CommitID)
			}
		})
	}
}
