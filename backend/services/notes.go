package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/models"
	"memorymaze/backend/storage"
)

// NoteRequest is the body of a note upsert.
type NoteRequest struct {
	StoryID       string `json:"storyId"`
	ChapterNumber int    `json:"chapterNumber"`
	models.NoteInput
}

type NotesService struct {
	users storage.Users
	now   Clock
}

func NewNotesService(users storage.Users) *NotesService {
	return &NotesService{users: users, now: time.Now}
}

// Save creates or updates the note of one chapter. createdAt survives
// updates, and titles left empty keep their previous value.
func (s *NotesService) Save(ctx context.Context, email string, in NoteRequest) (*models.Note, error) {
	in.StoryID = strings.TrimSpace(in.StoryID)
	if in.StoryID == "" || in.ChapterNumber == 0 {
		return nil, apperr.Validation("Story ID and chapter number are required")
	}

	now := s.now().UTC()
	var note models.Note
	_, err := s.users.UpdateUser(ctx, email, func(u *models.User) error {
		if u.Notes == nil {
			u.Notes = map[string]models.Note{}
		}
		key := models.NoteKey(in.StoryID, in.ChapterNumber)
		n, ok := u.Notes[key]
		if !ok {
			n = models.Note{StoryID: in.StoryID, ChapterNumber: in.ChapterNumber, CreatedAt: now}
		}
		if v := in.StoryTitle; v != nil && *v != "" {
			n.StoryTitle = *v
		}
		if v := in.ChapterTitle; v != nil && *v != "" {
			n.ChapterTitle = *v
		}
		if in.Understanding != nil {
			n.Understanding = *in.Understanding
		}
		if in.Connection != nil {
			n.Connection = *in.Connection
		}
		if in.Journal != nil {
			n.Journal = *in.Journal
		}
		n.UpdatedAt = now
		u.Notes[key] = n
		note = n
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	return &note, nil
}

// Get returns nil, nil when the chapter has no note.
func (s *NotesService) Get(ctx context.Context, email, storyID string, chapter int) (*models.Note, error) {
	u, err := s.users.GetUser(ctx, email)
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	n, ok := u.Notes[models.NoteKey(storyID, chapter)]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

// ForStory lists a story's notes by chapter.
func (s *NotesService) ForStory(ctx context.Context, email, storyID string) ([]models.Note, error) {
	u, err := s.users.GetUser(ctx, email)
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	out := []models.Note{}
	for _, n := range u.Notes {
		if n.StoryID == storyID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterNumber < out[j].ChapterNumber })
	return out, nil
}

// All lists every note of the user, newest first.
func (s *NotesService) All(ctx context.Context, email string) ([]models.Note, error) {
	u, err := s.users.GetUser(ctx, email)
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	out := make([]models.Note, 0, len(u.Notes))
	for _, n := range u.Notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
