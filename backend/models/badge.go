package models

import "time"

const (
	BadgeBookCompleted  = "book_completed"
	BadgeExcellentScore = "excellent_score"
)

type Badge struct {
	ID         string    `json:"id"`
	StoryID    string    `json:"storyId"`
	StoryTitle string    `json:"storyTitle"`
	EarnedAt   time.Time `json:"earnedAt"`
	Type       string    `json:"type"`
}

// HasBadge reports whether u already holds a badge of the given type for a story.
func (u *User) HasBadge(storyID, badgeType string) (*Badge, bool) {
	for i := range u.Badges {
		b := &u.Badges[i]
		if b.StoryID == storyID && b.Type == badgeType {
			return b, true
		}
	}
	return nil, false
}
