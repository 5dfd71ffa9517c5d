package services

import (
	"context"
	"strings"

	"memorymaze/backend/apperr"
	"memorymaze/backend/models"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"
)

// AnswerJudge decides whether a submission that is not an exact match still
// means the expected answer.
type AnswerJudge interface {
	Judge(ctx context.Context, question, expected, answer string) (bool, error)
}

type VerifyInput struct {
	ChapterNumber int      `json:"chapterNumber"`
	Answers       []string `json:"answers"`
}

type Verifier struct {
	stories storage.Stories
	judge   AnswerJudge
	log     *utils.Logger
}

// NewVerifier builds a verifier. judge may be nil for exact matching only.
func NewVerifier(stories storage.Stories, judge AnswerJudge, log *utils.Logger) *Verifier {
	return &Verifier{stories: stories, judge: judge, log: log.With("service", "Verifier")}
}

func (v *Verifier) Verify(ctx context.Context, storyID string, chapter int, answers []string) (*models.VerifyResult, error) {
	story, err := v.stories.GetStory(ctx, storyID)
	if err != nil {
		return nil, storeErr(err, msgStoryNotFound)
	}
	ch, ok := story.FindChapter(chapter)
	if !ok {
		return nil, apperr.NotFound(msgChapterNotFound)
	}

	results := make([]models.QuestionResult, 0, len(ch.Questions))
	correct := 0
	for i, q := range ch.Questions {
		var answer string
		if i < len(answers) {
			answer = answers[i]
		}
		isCorrect := v.check(ctx, q, answer)
		if isCorrect {
			correct++
		}
		results = append(results, models.QuestionResult{
			QuestionID:    q.ID,
			IsCorrect:     isCorrect,
			CorrectAnswer: q.Answer,
			UserAnswer:    answer,
		})
	}

	score := percent(correct, len(ch.Questions))
	return &models.VerifyResult{
		Score:   score,
		Passed:  score >= models.PassingScore,
		Results: results,
	}, nil
}

func (v *Verifier) check(ctx context.Context, q models.Question, answer string) bool {
	got, want := normalizeAnswer(answer), normalizeAnswer(q.Answer)
	if got == want {
		return true
	}
	if v.judge == nil || got == "" {
		return false
	}
	ok, err := v.judge.Judge(ctx, q.Question, q.Answer, answer)
	if err != nil {
		v.log.Warn("Answer judge failed, using exact match", "question_id", q.ID, "error", err)
		return false
	}
	return ok
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// percent is round(100*n/total) with halves rounded up. Zero total is 0.
func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return (200*n + total) / (2 * total)
}
