package model

import (
	"context"
	"time"
)

// MaxPointsPerQuestion is the top of the per-question score scale.
const MaxPointsPerQuestion = 5

// Question is one entry of the question bank.
type Question struct {
	Index       int    `json:"id"`
	Text        string `json:"question"`
	ModelAnswer string `json:"-"`
}

// PublicQuestion is the view of a question served to quiz takers.
// It never carries the reference answer.
type PublicQuestion struct {
	Index int    `json:"id"`
	Text  string `json:"question"`
}

// Account represents a registered user.
type Account struct {
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// AnswerRecord holds the grading outcome for a single question.
type AnswerRecord struct {
	Question      string  `json:"question"`
	UserAnswer    string  `json:"userAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
	Score         float64 `json:"score"`
	// Fallback is set when the grader could not produce a score and the
	// neutral default was recorded instead.
	Fallback bool `json:"fallback,omitempty"`
}

// Submission is one completed, graded attempt at the question bank.
type Submission struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	Answers     []AnswerRecord `json:"answers"`
	TotalScore  float64        `json:"totalScore"`
	MaxScore    int            `json:"maxScore"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// SubmissionSummary is the score-only projection used for self-service history.
type SubmissionSummary struct {
	ID          string    `json:"id"`
	TotalScore  float64   `json:"totalScore"`
	MaxScore    int       `json:"maxScore"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string
	IsAdmin  bool
}

type principalCtxKey struct{}

// ContextWithPrincipal stores the authenticated caller in the request context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext retrieves the authenticated caller from context, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*Principal)
	return p
}

// ServerConfig holds runtime parameters for the HTTP layer set via CLI flags.
type ServerConfig struct {
	LoginWindow time.Duration // how long a blocked login stays blocked
	Grader      string        // grading model name, reported by the health check
}
