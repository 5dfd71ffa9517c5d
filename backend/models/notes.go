package models

import (
	"fmt"
	"time"
)

// Note holds a reader's reflections on one chapter.
type Note struct {
	StoryID       string    `json:"storyId"`
	ChapterNumber int       `json:"chapterNumber"`
	StoryTitle    string    `json:"storyTitle"`
	ChapterTitle  string    `json:"chapterTitle"`
	Understanding string    `json:"understanding,omitempty"`
	Connection    string    `json:"connection,omitempty"`
	Journal       string    `json:"journal,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NoteInput carries the optional fields of a note update. Nil fields keep
// the stored value.
type NoteInput struct {
	StoryTitle    *string `json:"storyTitle"`
	ChapterTitle  *string `json:"chapterTitle"`
	Understanding *string `json:"understanding"`
	Connection    *string `json:"connection"`
	Journal       *string `json:"journal"`
}

func NoteKey(storyID string, chapter int) string {
	return fmt.Sprintf("%s-chapter-%d", storyID, chapter)
}
