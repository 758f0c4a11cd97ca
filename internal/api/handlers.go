package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func noteID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", errBadID)
	}
	return id, nil
}

var (
	errBadID     = errors.New("must be a positive integer")
	errBadParent = errors.New("must be a non-negative integer")
)

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(key, err)
	}
	return n, nil
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, apperr.Invalid(key, err)
	}
	return &t, nil
}

// ListNotes handles GET /inbox/notes.
//
//	@Summary		List notes newest first
//	@Tags			notes
//	@Produce		json
//	@Param			limit			query		int		false	"Max notes (default 50, max 1000)"
//	@Param			tag				query		string	false	"Exact tag"
//	@Param			created_after	query		string	false	"RFC 3339, inclusive"
//	@Param			created_before	query		string	false	"RFC 3339, exclusive"
//	@Success		200				{object}	NoteListResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	var (
		q   noteservice.ListQuery
		err error
	)
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, "list notes", err)
		return
	}
	if q.CreatedAfter, err = queryTime(r, "created_after"); err != nil {
		writeError(w, "list notes", err)
		return
	}
	if q.CreatedBefore, err = queryTime(r, "created_before"); err != nil {
		writeError(w, "list notes", err)
		return
	}
	q.Tag = r.URL.Query().Get("tag")

	notes, err := h.svc.ListNotes(r.Context(), q)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Count: len(notes)})
}

// CreateNote handles POST /inbox/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "create note", err)
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Content, req.Tags, req.CreatedAt)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /inbox/notes/{id}.
//
//	@Summary		Get a note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PUT /inbox/notes/{id}.
//
//	@Summary		Replace content and tags of a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"New content"
//	@Success		200		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "update note", err)
		return
	}
	note, err := h.svc.UpdateNote(r.Context(), id, req.Content, req.Tags)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /inbox/notes/{id}. Comments go with the note.
//
//	@Summary		Delete a note and its comments
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeError(w, "delete note", err)
		return
	}
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComments handles GET /inbox/notes/{id}/comments.
//
//	@Summary		List comments of a note, oldest first
//	@Tags			comments
//	@Produce		json
//	@Param			id	path		int	true	"Note id"
//	@Success		200	{object}	CommentListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/comments [get]
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeError(w, "list comments", err)
		return
	}
	comments, err := h.svc.ListComments(r.Context(), id)
	if err != nil {
		writeError(w, "list comments", err)
		return
	}
	writeJSON(w, http.StatusOK, CommentListResponse{Comments: comments})
}

// AddComment handles POST /inbox/notes/{id}/comments.
// With ?mirror=true the comment is also filed as a new untagged note.
//
//	@Summary		Comment on a note
//	@Tags			comments
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Note id"
//	@Param			mirror	query		bool			false	"Also create a note"
//	@Param			body	body		CommentRequest	true	"Comment"
//	@Success		201		{object}	AddCommentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/comments [post]
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := noteID(r)
	if err != nil {
		writeError(w, "add comment", err)
		return
	}
	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "add comment", err)
		return
	}

	var resp AddCommentResponse
	if mirror, _ := strconv.ParseBool(r.URL.Query().Get("mirror")); mirror {
		resp.Comment, resp.Note, err = h.svc.AddCommentAsNote(r.Context(), id, req.Content)
	} else {
		resp.Comment, err = h.svc.AddComment(r.Context(), id, req.Content)
	}
	if err != nil {
		writeError(w, "add comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ChildTags handles GET /inbox/tags?parent_id=. No parent_id lists roots.
//
//	@Summary		List direct children of a catalog tag
//	@Tags			tags
//	@Produce		json
//	@Param			parent_id	query		int	false	"Parent tag id, 0 or absent for roots"
//	@Success		200			{object}	TagListResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ChildTags(w http.ResponseWriter, r *http.Request) {
	var parent int64
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		p, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || p < 0 {
			writeError(w, "child tags", apperr.Invalid("parent_id", errBadParent))
			return
		}
		parent = p
	}
	tags, err := h.svc.GetChildTags(r.Context(), parent)
	if err != nil {
		writeError(w, "child tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// SearchTags handles GET /inbox/tags/search?q=.
//
//	@Summary		Search the catalog by name prefix, with subtrees
//	@Tags			tags
//	@Produce		json
//	@Param			q	query		string	true	"Case-sensitive name prefix"
//	@Success		200	{object}	TagListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tags/search [get]
func (h *Handler) SearchTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.SearchTags(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "search tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// AllTags handles GET /inbox/tags/all.
//
//	@Summary		List every tag used on notes
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	FlatTagsResponse
//	@Security		BearerAuth
//	@Router			/tags/all [get]
func (h *Handler) AllTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListAllTags(r.Context())
	if err != nil {
		writeError(w, "all tags", err)
		return
	}
	writeJSON(w, http.StatusOK, FlatTagsResponse{Tags: tags})
}

// DetailedTags handles GET /inbox/tags/detailed.
//
//	@Summary		List used tags with counts and last activity
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	DetailedTagsResponse
//	@Security		BearerAuth
//	@Router			/tags/detailed [get]
func (h *Handler) DetailedTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListDetailedTags(r.Context())
	if err != nil {
		writeError(w, "detailed tags", err)
		return
	}
	writeJSON(w, http.StatusOK, DetailedTagsResponse{Tags: tags})
}
