package models

// VerifyResult is the outcome of checking a chapter's answers.
type VerifyResult struct {
	Score   int              `json:"score"`
	Passed  bool             `json:"passed"`
	Results []QuestionResult `json:"results"`
}

type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer string `json:"correctAnswer"`
	UserAnswer    string `json:"userAnswer"`
}

// CheckpointResult is the outcome of recording a checkpoint submission.
type CheckpointResult struct {
	Passed   bool      `json:"passed"`
	Progress *Progress `json:"progress"`
}
