package services

import (
	"context"
	"errors"
	"time"

	"memorymaze/backend/models"
	"memorymaze/backend/storage"

	"github.com/google/uuid"
)

// StatsEngine keeps a reader's streak, chapter counters and badges in step
// with passed checkpoints.
type StatsEngine struct {
	users   storage.Users
	stories storage.Stories
	now     Clock
	newID   func() string
}

func NewStatsEngine(users storage.Users, stories storage.Stories) *StatsEngine {
	return &StatsEngine{
		users:   users,
		stories: stories,
		now:     time.Now,
		newID:   func() string { return "badge-" + uuid.NewString() },
	}
}

// RecordPass runs after a passing checkpoint on chapter. firstPass is true
// when that pass unlocked a chapter for the first time.
func (e *StatsEngine) RecordPass(ctx context.Context, email, storyID string, chapter int, firstPass bool, p *models.Progress) error {
	story, err := e.stories.GetStory(ctx, storyID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	now := e.now()

	_, err = e.users.UpdateUser(ctx, email, func(u *models.User) error {
		u.ApplyDefaults()
		touchStreak(u.Stats, now)
		if firstPass {
			u.Stats.TotalChaptersRead++
		}
		if story == nil || len(story.Chapters) == 0 || chapter < story.LastChapter() {
			return nil
		}
		if e.award(u, story, models.BadgeBookCompleted, now) {
			u.Stats.TotalBooksRead++
		}
		if allExcellent(story, p) {
			e.award(u, story, models.BadgeExcellentScore, now)
		}
		return nil
	})
	return err
}

// award adds a badge unless the user already holds one of that type for the
// story. It reports whether a badge was added.
func (e *StatsEngine) award(u *models.User, story *models.Story, badgeType string, now time.Time) bool {
	if _, ok := u.HasBadge(story.ID, badgeType); ok {
		return false
	}
	u.Badges = append(u.Badges, models.Badge{
		ID:         e.newID(),
		StoryID:    story.ID,
		StoryTitle: story.Title,
		EarnedAt:   now.UTC(),
		Type:       badgeType,
	})
	return true
}

func allExcellent(story *models.Story, p *models.Progress) bool {
	if p == nil {
		return false
	}
	for _, ch := range story.Chapters {
		score, ok := p.Score(ch.Chapter)
		if !ok || score < models.ExcellentScore {
			return false
		}
	}
	return true
}

// touchStreak records a read at now. Reading on the day after the last read
// extends the streak, a gap resets it to 1 and a second read on the same day
// changes nothing. It reports whether the stats changed.
func touchStreak(s *models.Stats, now time.Time) bool {
	if s.LastReadDate != nil {
		switch daysBetween(*s.LastReadDate, now) {
		case 0:
			return false
		case 1:
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
		}
	} else {
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	t := now.UTC()
	s.LastReadDate = &t
	return true
}

// daysBetween counts UTC calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
