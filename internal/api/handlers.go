// internal/api/handlers.go
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"revview/internal/errors"
	"revview/internal/filetree"
	"revview/internal/identity"
	"revview/internal/review"
	"revview/internal/session"
	"revview/internal/validation"
	"revview/shared/utils"

	"go.uber.org/zap"
)

type ReviewHandler struct {
	session *session.Session
	logger  *zap.Logger
}

func NewReviewHandler(s *session.Session, logger *zap.Logger) *ReviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewHandler{session: s, logger: logger}
}

// Routes registers every endpoint on a new mux.
func (h *ReviewHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheck)
	mux.HandleFunc("GET /api/changes/{id}", h.Change)
	mux.HandleFunc("GET /api/changes/{id}/tree", h.Tree)
	mux.HandleFunc("GET /api/changes/{id}/diff", h.Diff)
	mux.HandleFunc("GET /api/changes/{id}/comments", h.Comments)
	mux.HandleFunc("POST /api/changes/{id}/refresh", h.Refresh)
	mux.HandleFunc("POST /api/changes/{id}/drafts", h.CreateDraft)
	mux.HandleFunc("POST /api/comments/{handle}/reply", h.Reply)
	mux.HandleFunc("GET /api/content", h.Content)
	mux.HandleFunc("GET /api/local", h.Local)
	return mux
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err, reporting bad identities and tokens as validation
// failures.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, identity.ErrMalformedToken), stderrors.Is(err, identity.ErrInvalidIdentity):
		errors.Write(w, errors.ValidationError(err.Error(), nil))
	default:
		errors.Write(w, err)
	}
}

type changeResponse struct {
	ID              string               `json:"id"`
	Number          int                  `json:"number"`
	Project         string               `json:"project"`
	Label           string               `json:"label"`
	Description     string               `json:"description"`
	CurrentRevision string               `json:"current_revision"`
	Files           []review.ChangedFile `json:"files"`
}

func (h *ReviewHandler) Change(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	change, err := h.session.Change(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if change == nil {
		errors.Write(w, errors.NotFound("change not available: "+id))
		return
	}

	writeJSON(w, http.StatusOK, changeResponse{
		ID:              change.ID,
		Number:          change.Number,
		Project:         change.Project,
		Label:           change.Label(),
		Description:     change.Description(),
		CurrentRevision: change.CurrentRevision,
		Files:           change.Files(),
	})
}

// Refresh drops the cached change, comments and drafts so the next request
// refetches them from the review service.
func (h *ReviewHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.session.Refresh(id)
	h.logger.Debug("change refreshed", zap.String("change", id))
	w.WriteHeader(http.StatusNoContent)
}

type treeItem struct {
	Kind     string              `json:"kind"`
	Name     string              `json:"name"`
	Path     string              `json:"path"`
	File     *review.ChangedFile `json:"file,omitempty"`
	Children []treeItem          `json:"children,omitempty"`
}

func toTreeItems(items []filetree.Item[review.ChangedFile]) []treeItem {
	out := make([]treeItem, 0, len(items))
	for _, item := range items {
		ti := treeItem{Name: item.Name, Path: item.Path}
		if item.Kind == filetree.FolderItem {
			ti.Kind = "folder"
			ti.Children = toTreeItems(item.Children)
		} else {
			ti.Kind = "file"
			f := item.Record
			ti.File = &f
		}
		out = append(out, ti)
	}
	return out
}

func (h *ReviewHandler) Tree(w http.ResponseWriter, r *http.Request) {
	items, err := h.session.Tree(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTreeItems(items))
}

func (h *ReviewHandler) Diff(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		errors.Write(w, errors.ValidationError("path is required", nil))
		return
	}

	uris, err := h.session.DiffURIs(r.Context(), r.PathValue("id"), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uris)
}

// Content serves the raw bytes a token addresses. Blobs standing for a side
// without content are served empty with X-Revview-Empty set.
func (h *ReviewHandler) Content(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	blob, err := h.session.Content(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if blob == nil {
		errors.Write(w, errors.NotFound("content not available"))
		return
	}

	etag := utils.ETag(blob.Buffer)
	w.Header().Set("ETag", etag)
	if blob.IsEmpty() {
		w.Header().Set("X-Revview-Empty", "true")
	}
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob.Buffer); err != nil {
		h.logger.Debug("writing content", zap.Error(err))
	}
}

func (h *ReviewHandler) Local(w http.ResponseWriter, r *http.Request) {
	local, err := h.session.IsLocalFile(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"local": local})
}

func (h *ReviewHandler) Comments(w http.ResponseWriter, r *http.Request) {
	threads, err := h.session.Comments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

type draftRequest struct {
	Path       string               `json:"path"`
	Revision   string               `json:"revision"`
	Side       identity.Side        `json:"side"`
	Line       int                  `json:"line"`
	Range      *review.CommentRange `json:"range"`
	Message    string               `json:"message"`
	Unresolved bool                 `json:"unresolved"`
	InReplyTo  string               `json:"in_reply_to"`
}

func (r *draftRequest) Validate() error {
	_, err := identity.ParseSide(string(r.Side))
	return err
}

func (h *ReviewHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := validation.DecodeRequest(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	thread, err := h.session.CreateDraft(r.Context(), review.DraftOptions{
		Content:    req.Message,
		ChangeID:   r.PathValue("id"),
		Revision:   req.Revision,
		FilePath:   req.Path,
		Unresolved: req.Unresolved,
		Side:       req.Side,
		Line:       req.Line,
		Range:      req.Range,
		ReplyTo:    req.InReplyTo,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

type replyRequest struct {
	Message    string `json:"message"`
	Unresolved bool   `json:"unresolved"`
}

func (r *replyRequest) Validate() error {
	if r.Message == "" {
		return errors.ValidationError("message is required", nil)
	}
	return nil
}

func (h *ReviewHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := validation.DecodeRequest(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	thread, err := h.session.Reply(r.Context(), r.PathValue("handle"), req.Message, req.Unresolved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}
