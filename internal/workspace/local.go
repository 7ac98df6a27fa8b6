// internal/workspace/local.go
package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"revview/internal/content"
	"revview/internal/identity"
	"revview/internal/review"

	"go.uber.org/zap"
)

// ErrNoRoot is returned when no enclosing repository could be found.
var ErrNoRoot = errors.New("no repository root found")

// FindRoot walks up from start to the first directory holding a .git entry.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRoot
		}
		dir = parent
	}
}

// Local gives read-only access to the user's checkout. It is consulted only
// to decide whether a reviewed file can be opened from disk instead of as a
// virtual document.
type Local struct {
	Roots  []string
	Logger *zap.Logger
}

func NewLocal(logger *zap.Logger, roots ...string) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{Roots: roots, Logger: logger}
}

// root returns the single configured root. Local files are only resolved when
// exactly one root is open, since paths in a change are relative to one
// repository.
func (l *Local) root() (string, bool) {
	if len(l.Roots) != 1 {
		return "", false
	}
	return l.Roots[0], true
}

// abs resolves path under the root. Paths that would leave the root are
// rejected.
func (l *Local) abs(path string) (string, bool) {
	root, ok := l.root()
	if !ok {
		return "", false
	}
	abs := filepath.Join(root, filepath.FromSlash(path))
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		l.Logger.Debug("path outside repository root", zap.String("path", path))
		return "", false
	}
	return abs, true
}

// Stat returns the size of the local file at path, relative to the root.
func (l *Local) Stat(path string) (int64, bool) {
	abs, ok := l.abs(path)
	if !ok {
		return 0, false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

func (l *Local) ReadBytes(path string) ([]byte, error) {
	abs, ok := l.abs(path)
	if !ok {
		return nil, ErrNoRoot
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Matches reports whether the local copy of the blob's file has exactly the
// blob's content. Sizes are compared before any bytes are read.
func (l *Local) Matches(path string, blob *content.Blob) bool {
	if blob == nil || blob.IsEmpty() {
		return false
	}
	size, ok := l.Stat(path)
	if !ok || size != int64(len(blob.Buffer)) {
		return false
	}
	data, err := l.ReadBytes(path)
	if err != nil {
		l.Logger.Debug("reading local file failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return bytes.Equal(data, blob.Buffer)
}

// URI addresses the local copy of file as a file:// URI. The query carries
// the file's identity token so the editor can still map it back to the
// change.
func (l *Local) URI(file review.ChangedFile, side identity.Side, base *int) (string, bool) {
	abs, ok := l.abs(file.FilePath)
	if !ok {
		return "", false
	}
	token, err := identity.Encode(file.Identity().WithSide(side, base))
	if err != nil {
		return "", false
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: token}
	return u.String(), true
}
