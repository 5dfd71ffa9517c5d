package services

import (
	"context"
	"errors"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/models"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"
)

// CheckpointInput is a checkpoint submission. Pointer and nil-able fields
// tell a missing value apart from a zero one.
type CheckpointInput struct {
	ChapterNumber *int     `json:"chapterNumber"`
	Answers       []string `json:"answers"`
	Score         *float64 `json:"score"`
}

type ProgressService struct {
	progress storage.ProgressStore
	stats    *StatsEngine
	log      *utils.Logger
	now      Clock
}

func NewProgressService(progress storage.ProgressStore, stats *StatsEngine, log *utils.Logger) *ProgressService {
	return &ProgressService{
		progress: progress,
		stats:    stats,
		log:      log.With("service", "ProgressService"),
		now:      time.Now,
	}
}

// Get returns the stored progress, or an unsaved default record.
func (s *ProgressService) Get(ctx context.Context, email, storyID string) (*models.Progress, error) {
	p, err := s.progress.GetProgress(ctx, email, storyID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewProgress(email, storyID, s.now().UTC()), nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return p, nil
}

// ApplyCheckpoint records one attempt at a chapter and unlocks the next
// chapter on a passing score. Passing also updates the reader's streak and
// badges; a failure there is logged and does not fail the checkpoint.
func (s *ProgressService) ApplyCheckpoint(ctx context.Context, email, storyID string, in CheckpointInput) (*models.CheckpointResult, error) {
	if in.ChapterNumber == nil || in.Answers == nil || in.Score == nil {
		return nil, apperr.Validation(msgInvalidRequest)
	}
	chapter, score := *in.ChapterNumber, *in.Score
	passed := score >= models.PassingScore

	var firstPass bool
	p, err := s.progress.UpdateProgress(ctx, email, storyID, func(p *models.Progress) error {
		key := models.ChapterKey(chapter)
		p.Attempts[key]++
		p.Scores[key] = score
		if passed {
			next := chapter + 1
			firstPass = p.Unlock(next)
			if next > p.CurrentChapter {
				p.CurrentChapter = next
			}
		}
		p.LastAccess = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgStoryNotFound)
	}

	if passed && s.stats != nil {
		if err := s.stats.RecordPass(ctx, email, storyID, chapter, firstPass, p); err != nil {
			s.log.Error("Failed to update reading stats",
				"email", email,
				"story_id", storyID,
				"chapter", chapter,
				"error", err,
			)
		}
	}
	return &models.CheckpointResult{Passed: passed, Progress: p}, nil
}
