// Package noteservice is the operation surface shared by the HTTP and MCP
// transports. It composes the stores and announces changes.
package noteservice

import (
	"context"
	"time"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/models"
	"github.com/starford/inbox/internal/store"
)

// Publisher receives change notifications. The SSE broker implements it.
type Publisher interface {
	NoteChanged(kind string, id int64)
	CommentAdded(noteID, commentID int64)
}

type nopPublisher struct{}

func (nopPublisher) NoteChanged(string, int64) {}
func (nopPublisher) CommentAdded(int64, int64) {}

// ListQuery selects a page of notes. See store.Query for the limit rules.
type ListQuery = store.Query

// Service coordinates the note, comment and tag stores.
type Service struct {
	notes    store.Notes
	comments store.Comments
	tags     store.Tags
	query    *store.QueryEngine
	pub      Publisher
}

// NewService creates a service over db. pub may be nil.
func NewService(db store.Backend, pub Publisher) *Service {
	if pub == nil {
		pub = nopPublisher{}
	}
	notes := store.NewNoteStore(db)
	return &Service{
		notes:    notes,
		comments: store.NewCommentStore(db),
		tags:     store.NewTagIndex(db),
		query:    store.NewQueryEngine(notes),
		pub:      pub,
	}
}

// CreateNote stores a new note. createdAt may be nil for "now".
func (s *Service) CreateNote(ctx context.Context, content string, tags []string, createdAt *time.Time) (*models.Note, error) {
	n, err := s.notes.Create(ctx, content, tags, createdAt)
	if err != nil {
		return nil, err
	}
	s.pub.NoteChanged("created", n.ID)
	return n, nil
}

// GetNote returns one note or apperr.ErrNotFound.
func (s *Service) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	return s.notes.Get(ctx, id)
}

// UpdateNote replaces content and tags of an existing note.
func (s *Service) UpdateNote(ctx context.Context, id int64, content string, tags []string) (*models.Note, error) {
	n, err := s.notes.Update(ctx, id, content, tags)
	if err != nil {
		return nil, err
	}
	s.pub.NoteChanged("updated", n.ID)
	return n, nil
}

// DeleteNote removes a note and its comments. A missing note yields
// apperr.ErrNotFound.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	ok, err := s.notes.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	s.pub.NoteChanged("deleted", id)
	return nil
}

// ListNotes returns notes newest first.
func (s *Service) ListNotes(ctx context.Context, q ListQuery) ([]models.Note, error) {
	return s.query.ListNotes(ctx, q)
}

func (s *Service) ListAllTags(ctx context.Context) ([]string, error) {
	return s.tags.ListAllTags(ctx)
}

func (s *Service) ListDetailedTags(ctx context.Context) ([]models.DetailedTag, error) {
	return s.tags.ListDetailedTags(ctx)
}

// GetChildTags lists catalog children; parentID 0 lists the roots.
func (s *Service) GetChildTags(ctx context.Context, parentID int64) ([]models.Tag, error) {
	return s.tags.Children(ctx, parentID)
}

// SearchTags returns catalog nodes matching prefix and their subtrees.
func (s *Service) SearchTags(ctx context.Context, prefix string) ([]models.Tag, error) {
	return s.tags.Search(ctx, prefix)
}

// AddComment attaches a comment to an existing note.
func (s *Service) AddComment(ctx context.Context, noteID int64, content string) (*models.Comment, error) {
	c, err := s.comments.Add(ctx, noteID, content)
	if err != nil {
		return nil, err
	}
	s.pub.CommentAdded(noteID, c.ID)
	return c, nil
}

func (s *Service) ListComments(ctx context.Context, noteID int64) ([]models.Comment, error) {
	return s.comments.ListForNote(ctx, noteID)
}

// AddCommentAsNote adds the comment and then files the same text as a new
// untagged note. The two writes are separate transactions: when the second
// fails the comment stays and the error is returned with it.
func (s *Service) AddCommentAsNote(ctx context.Context, noteID int64, content string) (*models.Comment, *models.Note, error) {
	c, err := s.AddComment(ctx, noteID, content)
	if err != nil {
		return nil, nil, err
	}
	n, err := s.CreateNote(ctx, c.Content, nil, nil)
	if err != nil {
		return c, nil, err
	}
	return c, n, nil
}

// NoteCount reports how many notes are stored.
func (s *Service) NoteCount(ctx context.Context) (int, error) {
	return s.notes.Count(ctx)
}
