package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"memorymaze/backend/apperr"
	"memorymaze/backend/models"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"

	"github.com/go-playground/validator/v10"
)

var storyIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// StoryInput is the body of a story creation request.
type StoryInput struct {
	ID          string           `json:"id" validate:"required"`
	Title       string           `json:"title" validate:"required"`
	Author      string           `json:"author"`
	Description string           `json:"description"`
	Difficulty  string           `json:"difficulty"`
	CoverImage  *string          `json:"coverImage"`
	Chapters    []models.Chapter `json:"chapters" validate:"required"`
}

// StoryUpdate carries the fields of a partial story update. Nil keeps the
// stored value.
type StoryUpdate struct {
	Title       *string           `json:"title"`
	Author      *string           `json:"author"`
	Description *string           `json:"description"`
	Difficulty  *string           `json:"difficulty"`
	CoverImage  *string           `json:"coverImage"`
	Chapters    *[]models.Chapter `json:"chapters"`
}

type StoryService struct {
	stories  storage.Stories
	progress storage.ProgressStore
	validate *validator.Validate
	log      *utils.Logger
}

func NewStoryService(stories storage.Stories, progress storage.ProgressStore, log *utils.Logger) *StoryService {
	return &StoryService{
		stories:  stories,
		progress: progress,
		validate: validator.New(),
		log:      log.With("service", "StoryService"),
	}
}

func (s *StoryService) List(ctx context.Context) ([]models.StorySummary, error) {
	stories, err := s.stories.ListStories(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]models.StorySummary, 0, len(stories))
	for _, st := range stories {
		out = append(out, st.Summary())
	}
	return out, nil
}

func (s *StoryService) Get(ctx context.Context, id string) (*models.Story, error) {
	story, err := s.stories.GetStory(ctx, id)
	if err != nil {
		return nil, storeErr(err, msgStoryNotFound)
	}
	return story, nil
}

// Chapter returns a chapter without its canonical answers.
func (s *StoryService) Chapter(ctx context.Context, id string, number int) (*models.ChapterView, error) {
	story, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ch, ok := story.FindChapter(number)
	if !ok {
		return nil, apperr.NotFound(msgChapterNotFound)
	}
	view := ch.View()
	return &view, nil
}

func (s *StoryService) Create(ctx context.Context, in StoryInput) (*models.Story, error) {
	in.ID = strings.TrimSpace(in.ID)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Validation("Missing required fields: id, title, chapters (array)")
	}
	if !storyIDPattern.MatchString(in.ID) {
		return nil, apperr.Validation("Story ID can only contain letters, numbers, and hyphens")
	}
	exists, err := s.stories.StoryExists(ctx, in.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if exists {
		return nil, apperr.Conflict("Story with this ID already exists")
	}
	if err := validateChapters(in.Chapters, true); err != nil {
		return nil, err
	}

	story := &models.Story{
		ID:          in.ID,
		Title:       in.Title,
		Author:      in.Author,
		Description: in.Description,
		Difficulty:  in.Difficulty,
		CoverImage:  in.CoverImage,
		Chapters:    in.Chapters,
	}
	if story.Difficulty == "" {
		story.Difficulty = models.DefaultDifficulty
	}
	if err := s.stories.SaveStory(ctx, story); err != nil {
		return nil, apperr.Internal(err)
	}
	s.log.Info("Story created", "story_id", story.ID, "chapters", len(story.Chapters))
	return story, nil
}

func (s *StoryService) Update(ctx context.Context, id string, in StoryUpdate) (*models.Story, error) {
	story, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		story.Title = *in.Title
	}
	if in.Author != nil {
		story.Author = *in.Author
	}
	if in.Description != nil {
		story.Description = *in.Description
	}
	if in.Difficulty != nil {
		story.Difficulty = *in.Difficulty
	}
	if in.CoverImage != nil {
		story.CoverImage = in.CoverImage
	}
	if in.Chapters != nil {
		if err := validateChapters(*in.Chapters, false); err != nil {
			return nil, err
		}
		story.Chapters = *in.Chapters
	}

	if err := s.stories.SaveStory(ctx, story); err != nil {
		return nil, apperr.Internal(err)
	}
	return story, nil
}

// Delete removes a story and every reader's progress on it.
func (s *StoryService) Delete(ctx context.Context, id string) error {
	if err := s.stories.DeleteStory(ctx, id); err != nil {
		return storeErr(err, msgStoryNotFound)
	}
	if err := s.progress.DeleteStoryProgress(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	s.log.Info("Story deleted", "story_id", id)
	return nil
}

// validateChapters checks chapter fields. strict also requires at least one
// well-formed question per chapter.
func validateChapters(chapters []models.Chapter, strict bool) error {
	for i, ch := range chapters {
		if ch.Chapter == 0 || ch.Title == "" || ch.Content == "" || ch.Questions == nil {
			if strict {
				return apperr.Validation(fmt.Sprintf("Chapter %d missing required fields: chapter, title, content, questions", i+1))
			}
			return apperr.Validation(fmt.Sprintf("Chapter %d missing required fields", i+1))
		}
		if !strict {
			continue
		}
		if len(ch.Questions) == 0 {
			return apperr.Validation(fmt.Sprintf("Chapter %d must have at least one question", i+1))
		}
		for _, q := range ch.Questions {
			if q.ID == "" || q.Question == "" || q.Answer == "" {
				return apperr.Validation(fmt.Sprintf("Chapter %d has invalid question format", i+1))
			}
		}
	}
	return nil
}
