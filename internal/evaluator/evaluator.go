// Package evaluator grades a full quiz submission and persists the result.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/mlquiz/internal/model"
	"github.com/pavelanni/mlquiz/internal/questions"
	"github.com/pavelanni/mlquiz/internal/scoring"
)

// DefaultConcurrency is the number of grading calls in flight per submission.
const DefaultConcurrency = 4

// Scorer grades one answer. It must not fail; see scoring.Scorer.
type Scorer interface {
	Score(ctx context.Context, question, reference, answer string) scoring.Grade
}

// SubmissionSaver persists a graded submission.
type SubmissionSaver interface {
	SaveSubmission(ctx context.Context, sub model.Submission) (model.Submission, error)
}

// Evaluator scores answers against a question bank.
type Evaluator struct {
	bank        *questions.Bank
	scorer      Scorer
	saver       SubmissionSaver
	concurrency int
}

// New creates an Evaluator. A non-positive concurrency selects DefaultConcurrency.
func New(bank *questions.Bank, scorer Scorer, saver SubmissionSaver, concurrency int) *Evaluator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Evaluator{bank: bank, scorer: scorer, saver: saver, concurrency: concurrency}
}

// Waves returns how many rounds of concurrent scoring calls one full
// submission needs. A submission takes at most Waves times the per-call
// timeout to grade.
func (e *Evaluator) Waves() int {
	return (e.bank.Len() + e.concurrency - 1) / e.concurrency
}

// Evaluate grades answers positionally against the bank, persists the
// submission and returns it. answers must hold exactly one entry per
// question; an entry may be empty.
//
// Once grading starts it runs to completion even if ctx is canceled, so a
// dropped client cannot leave a half-graded attempt behind. Only a
// persistence failure is returned as an error.
func (e *Evaluator) Evaluate(ctx context.Context, username string, answers []string) (model.Submission, error) {
	if username == "" {
		return model.Submission{}, model.Invalid("UsernameRequired")
	}
	if len(answers) == 0 {
		return model.Submission{}, model.Invalid("AnswersRequired")
	}
	if len(answers) != e.bank.Len() {
		return model.Submission{}, model.Invalid("AnswerCountMismatch")
	}

	start := time.Now()
	gradeCtx := context.WithoutCancel(ctx)
	records := make([]model.AnswerRecord, len(answers))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, answer := range answers {
		q, _ := e.bank.At(i)
		g.Go(func() error {
			grade := e.scorer.Score(gradeCtx, q.Text, q.ModelAnswer, answer)
			records[i] = model.AnswerRecord{
				Question:      q.Text,
				UserAnswer:    answer,
				CorrectAnswer: q.ModelAnswer,
				Score:         scoring.Round(scoring.Clamp(grade.Score)),
				Fallback:      grade.Fallback,
			}
			return nil
		})
	}
	_ = g.Wait()

	sub := model.Submission{
		Username:   username,
		Answers:    records,
		TotalScore: Total(records),
		MaxScore:   e.bank.MaxScore(),
	}

	saved, err := e.saver.SaveSubmission(gradeCtx, sub)
	if err != nil {
		slog.Error("failed to save submission", "username", username, "error", err)
		return model.Submission{}, fmt.Errorf("save submission: %w", err)
	}

	slog.Info("quiz submitted",
		"username", username,
		"score", saved.TotalScore,
		"max", saved.MaxScore,
		"fallbacks", countFallbacks(records),
		"elapsed", time.Since(start),
	)
	return saved, nil
}

// Total sums the record scores exactly and rounds to one decimal.
func Total(records []model.AnswerRecord) float64 {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(decimal.NewFromFloat(r.Score))
	}
	return sum.Round(1).InexactFloat64()
}

func countFallbacks(records []model.AnswerRecord) int {
	n := 0
	for _, r := range records {
		if r.Fallback {
			n++
		}
	}
	return n
}
