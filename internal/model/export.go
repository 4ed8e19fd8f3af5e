package model

import "time"

// QuizExport is the top-level JSON structure for submission export.
type QuizExport struct {
	ExportedAt      time.Time          `json:"exported_at"`
	BankFingerprint string             `json:"bank_fingerprint"`
	NumQuestions    int                `json:"num_questions"`
	Users           int                `json:"users"`
	Results         []SubmissionResult `json:"results"`
}

// SubmissionResult holds one submission for export, numbered per user.
type SubmissionResult struct {
	Username      string         `json:"username"`
	AttemptNumber int            `json:"attempt_number"`
	SubmissionID  string         `json:"submission_id"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	TotalScore    float64        `json:"total_score"`
	MaxScore      int            `json:"max_score"`
	FallbackCount int            `json:"fallback_count"`
	Answers       []AnswerRecord `json:"answers"`
}
