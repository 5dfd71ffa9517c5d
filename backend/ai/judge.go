package ai

import (
	"context"
	"fmt"
	"strings"
)

const judgePrompt = `You grade reading-comprehension answers. Accept answers that mean the same ` +
	`as the expected answer, including misspellings, synonyms and different word order. ` +
	`Reply with exactly one word: CORRECT or INCORRECT.`

// AnswerJudge asks the model whether a submitted answer matches the expected one.
type AnswerJudge struct {
	llm Completer
}

func NewAnswerJudge(llm Completer) *AnswerJudge {
	return &AnswerJudge{llm: llm}
}

func (j *AnswerJudge) Judge(ctx context.Context, question, expected, answer string) (bool, error) {
	user := fmt.Sprintf("Question: %s\nExpected answer: %s\nSubmitted answer: %s", question, expected, answer)
	out, err := j.llm.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: judgePrompt},
			{Role: "user", Content: user},
		},
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		return false, err
	}

	verdict := strings.ToUpper(strings.TrimSpace(out.Content))
	verdict = strings.Trim(verdict, ".!\"'")
	switch {
	case strings.HasPrefix(verdict, "INCORRECT"):
		return false, nil
	case strings.HasPrefix(verdict, "CORRECT"):
		return true, nil
	default:
		return false, fmt.Errorf("unexpected judge verdict %q", out.Content)
	}
}
