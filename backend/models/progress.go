package models

import (
	"sort"
	"strconv"
	"time"
)

// PassingScore is the minimum checkpoint score that unlocks the next chapter.
const PassingScore = 70

// ExcellentScore is the score every chapter needs for the excellence badge.
const ExcellentScore = 90

type Progress struct {
	Email            string             `json:"email"`
	StoryID          string             `json:"storyId"`
	CurrentChapter   int                `json:"currentChapter"`
	UnlockedChapters []int              `json:"unlockedChapters"`
	Attempts         map[string]int     `json:"attempts"`
	Scores           map[string]float64 `json:"scores"`
	LastAccess       time.Time          `json:"lastAccess"`
}

func NewProgress(email, storyID string, now time.Time) *Progress {
	return &Progress{
		Email:            email,
		StoryID:          storyID,
		CurrentChapter:   1,
		UnlockedChapters: []int{1},
		Attempts:         map[string]int{},
		Scores:           map[string]float64{},
		LastAccess:       now,
	}
}

// ChapterKey is the attempts/scores map key of a chapter.
func ChapterKey(chapter int) string {
	return "chapter" + strconv.Itoa(chapter)
}

// Normalize restores the record invariants on data read from storage:
// chapter 1 unlocked, sorted unique unlocks, non-nil maps.
func (p *Progress) Normalize() {
	if p.CurrentChapter < 1 {
		p.CurrentChapter = 1
	}
	if p.Attempts == nil {
		p.Attempts = map[string]int{}
	}
	if p.Scores == nil {
		p.Scores = map[string]float64{}
	}
	p.Unlock(1)
}

func (p *Progress) IsUnlocked(chapter int) bool {
	for _, c := range p.UnlockedChapters {
		if c == chapter {
			return true
		}
	}
	return false
}

// Unlock adds chapter to the unlocked set. It reports whether the set changed.
func (p *Progress) Unlock(chapter int) bool {
	if p.IsUnlocked(chapter) {
		return false
	}
	p.UnlockedChapters = append(p.UnlockedChapters, chapter)
	sort.Ints(p.UnlockedChapters)
	return true
}

// Score returns the latest recorded score of a chapter.
func (p *Progress) Score(chapter int) (float64, bool) {
	s, ok := p.Scores[ChapterKey(chapter)]
	return s, ok
}
