package models

const DefaultDifficulty = "medium"

type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Description string    `json:"description"`
	Difficulty  string    `json:"difficulty"` // easy, medium, hard
	CoverImage  *string   `json:"coverImage"`
	Chapters    []Chapter `json:"chapters"`
}

type Chapter struct {
	Chapter   int        `json:"chapter"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type,omitempty"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer"`
}

// StorySummary is the listing shape of a story.
type StorySummary struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author,omitempty"`
	Description   string  `json:"description"`
	Difficulty    string  `json:"difficulty"`
	TotalChapters int     `json:"totalChapters"`
	CoverImage    *string `json:"coverImage"`
}

// ChapterView is a chapter as served to readers: questions without answers.
type ChapterView struct {
	Chapter   int            `json:"chapter"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Questions []QuestionView `json:"questions"`
}

type QuestionView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type,omitempty"`
	Options  []string `json:"options,omitempty"`
}

func (s *Story) Summary() StorySummary {
	return StorySummary{
		ID:            s.ID,
		Title:         s.Title,
		Author:        s.Author,
		Description:   s.Description,
		Difficulty:    s.Difficulty,
		TotalChapters: len(s.Chapters),
		CoverImage:    s.CoverImage,
	}
}

// FindChapter looks a chapter up by its number, not its index.
func (s *Story) FindChapter(number int) (*Chapter, bool) {
	for i := range s.Chapters {
		if s.Chapters[i].Chapter == number {
			return &s.Chapters[i], true
		}
	}
	return nil, false
}

// LastChapter is the highest chapter number, 0 for an empty story.
func (s *Story) LastChapter() int {
	last := 0
	for _, ch := range s.Chapters {
		if ch.Chapter > last {
			last = ch.Chapter
		}
	}
	return last
}

func (ch *Chapter) View() ChapterView {
	qs := make([]QuestionView, 0, len(ch.Questions))
	for _, q := range ch.Questions {
		qs = append(qs, QuestionView{ID: q.ID, Question: q.Question, Type: q.Type, Options: q.Options})
	}
	return ChapterView{Chapter: ch.Chapter, Title: ch.Title, Content: ch.Content, Questions: qs}
}
