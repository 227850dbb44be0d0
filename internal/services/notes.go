package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
	"github.com/Ananth-NQI/unibox-backend/internal/storage"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Viewer is the authenticated user acting on notes
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// NoteInput is the writable part of a note
type NoteInput struct {
	ContactID string   `json:"contactId"`
	Content   string   `json:"content"`
	IsPrivate *bool    `json:"isPrivate"`
	Mentions  []string `json:"mentions"`
}

// NoteList is one page of notes
type NoteList struct {
	Notes   []*models.Note `json:"notes"`
	Total   int64          `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// NoteService manages team notes on contacts
type NoteService struct {
	store storage.Store
}

func NewNoteService(store storage.Store) *NoteService {
	return &NoteService{store: store}
}

func (s *NoteService) Create(ctx context.Context, viewer Viewer, in NoteInput) (*models.Note, error) {
	if strings.TrimSpace(in.ContactID) == "" {
		return nil, &ValidationError{Field: "contactId", Message: "is required"}
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, &ValidationError{Field: "content", Message: "is required"}
	}
	if _, err := s.store.GetContact(ctx, in.ContactID); err != nil {
		return nil, err
	}

	note := &models.Note{
		ContactID: in.ContactID,
		AuthorID:  viewer.UserID,
		Content:   in.Content,
		Mentions:  collectMentions(in.Mentions, in.Content),
	}
	if in.IsPrivate != nil {
		note.IsPrivate = *in.IsPrivate
	}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Get hides private notes from everyone but their author and admins
func (s *NoteService) Get(ctx context.Context, viewer Viewer, id string) (*models.Note, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.IsPrivate && !canModify(viewer, note) {
		return nil, ErrForbidden
	}
	return note, nil
}

func (s *NoteService) List(ctx context.Context, viewer Viewer, contactID string, limit, offset int) (*NoteList, error) {
	if strings.TrimSpace(contactID) == "" {
		return nil, &ValidationError{Field: "contactId", Message: "is required"}
	}
	notes, total, err := s.store.ListNotes(ctx, models.NoteFilter{
		ContactID: contactID,
		ViewerID:  viewer.UserID,
		IsAdmin:   viewer.IsAdmin,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}
	return &NoteList{
		Notes:   notes,
		Total:   total,
		HasMore: int64(max(offset, 0)+len(notes)) < total,
	}, nil
}

// Update is limited to the author and admins
func (s *NoteService) Update(ctx context.Context, viewer Viewer, id string, in NoteInput) (*models.Note, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(viewer, note) {
		return nil, ErrForbidden
	}
	if in.Content != "" {
		note.Content = in.Content
	}
	if in.IsPrivate != nil {
		note.IsPrivate = *in.IsPrivate
	}
	if in.Mentions != nil || in.Content != "" {
		note.Mentions = collectMentions(in.Mentions, note.Content)
	}
	if err := s.store.UpdateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, viewer Viewer, id string) error {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(viewer, note) {
		return ErrForbidden
	}
	return s.store.DeleteNote(ctx, id)
}

func canModify(viewer Viewer, note *models.Note) bool {
	return viewer.IsAdmin || (viewer.UserID != "" && viewer.UserID == note.AuthorID)
}

// collectMentions merges explicit mentions with @handles in content, keeping first-seen order
func collectMentions(explicit []string, content string) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range explicit {
		add(m)
	}
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		add(match[1])
	}
	return out
}
