package workspace_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revview/internal/content"
	"revview/internal/identity"
	"revview/internal/review"
	"revview/internal/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "pkg", "a.go"), []byte("package pkg\n"), 0644))
	return root
}

func TestFindRoot(t *testing.T) {
	root := setupRepo(t)

	found, err := workspace.FindRoot(filepath.Join(root, "src", "pkg"))
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, want, got)
}

func TestLocal_Matches(t *testing.T) {
	root := setupRepo(t)
	local := workspace.NewLocal(nil, root)
	id := identity.FileIdentity{Commit: "sha", FilePath: "src/pkg/a.go"}

	tests := []struct {
		name string
		path string
		blob *content.Blob
		want bool
	}{
		{"same bytes", "src/pkg/a.go", &content.Blob{Buffer: []byte("package pkg\n"), Identity: id}, true},
		{"same size different bytes", "src/pkg/a.go", &content.Blob{Buffer: []byte("package xyz\n"), Identity: id}, false},
		{"different size", "src/pkg/a.go", &content.Blob{Buffer: []byte("package"), Identity: id}, false},
		{"missing file", "src/pkg/b.go", &content.Blob{Buffer: []byte("package pkg\n"), Identity: id}, false},
		{"empty blob", "src/pkg/a.go", &content.Blob{Identity: identity.FileIdentity{FilePath: "src/pkg/a.go"}}, false},
		{"nil blob", "src/pkg/a.go", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, local.Matches(tt.path, tt.blob))
		})
	}
}

func TestLocal_RequiresSingleRoot(t *testing.T) {
	root := setupRepo(t)
	file := review.ChangedFile{Project: "p", ChangeID: "c", Revision: "sha", FilePath: "src/pkg/a.go"}

	none := workspace.NewLocal(nil)
	_, ok := none.Stat("src/pkg/a.go")
	assert.False(t, ok)
	_, ok = none.URI(file, identity.SideRight, nil)
	assert.False(t, ok)

	two := workspace.NewLocal(nil, root, t.TempDir())
	_, ok = two.Stat("src/pkg/a.go")
	assert.False(t, ok)

	one := workspace.NewLocal(nil, root)
	size, ok := one.Stat("src/pkg/a.go")
	require.True(t, ok)
	assert.Equal(t, int64(12), size)

	uri, ok := one.URI(file, identity.SideRight, identity.Revision(1))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.Contains(t, uri, "side=RIGHT")
	assert.Contains(t, uri, "a.go?v1:")
}

func TestLocal_RejectsPathsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret\n"), 0644))
	local := workspace.NewLocal(nil, root)

	tests := []struct {
		name string
		path string
	}{
		{"parent", "../secret.txt"},
		{"nested escape", "src/../../secret.txt"},
		{"root parent", ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := local.Stat(tt.path)
			assert.False(t, ok)

			_, err := local.ReadBytes(tt.path)
			assert.ErrorIs(t, err, workspace.ErrNoRoot)

			blob := &content.Blob{Identity: identity.FileIdentity{Commit: "sha", FilePath: tt.path}, Buffer: []byte("secret\n")}
			assert.False(t, local.Matches(tt.path, blob))

			_, ok = local.URI(review.ChangedFile{Project: "p", ChangeID: "c", Revision: "sha", FilePath: tt.path}, identity.SideRight, nil)
			assert.False(t, ok)
		})
	}

	t.Run("dotted names inside the root", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "..notes"), []byte("x"), 0644))
		size, ok := local.Stat("..notes")
		require.True(t, ok)
		assert.Equal(t, int64(1), size)
	})
}
