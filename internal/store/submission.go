package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mlquiz/internal/model"
)

// SaveSubmission persists a graded submission and its answer records in one
// transaction, assigning an id and timestamp when missing.
func (s *Store) SaveSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Submission{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO submissions (id, username, total_score, max_score, submitted_at)
		 VALUES (?, ?, ?, ?, ?)`),
		sub.ID, sub.Username, sub.TotalScore, sub.MaxScore, sub.SubmittedAt,
	)
	if err != nil {
		return model.Submission{}, fmt.Errorf("insert submission: %w", err)
	}

	for i, a := range sub.Answers {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO answer_records (submission_id, position, question, user_answer, correct_answer, score, fallback)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			sub.ID, i, a.Question, a.UserAnswer, a.CorrectAnswer, a.Score, a.Fallback,
		)
		if err != nil {
			return model.Submission{}, fmt.Errorf("insert answer %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Submission{}, err
	}
	slog.Info("saved submission", "id", sub.ID, "username", sub.Username,
		"total", sub.TotalScore, "max", sub.MaxScore)
	return sub, nil
}

// ListUsernames returns the distinct usernames that own at least one
// submission, most recently active first, skipping the excluded names.
func (s *Store) ListUsernames(ctx context.Context, excluding ...string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username FROM submissions GROUP BY username ORDER BY MAX(submitted_at) DESC, MAX(seq) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skip := make(map[string]bool, len(excluding))
	for _, e := range excluding {
		skip[e] = true
	}

	usernames := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		if skip[u] {
			continue
		}
		usernames = append(usernames, u)
	}
	return usernames, rows.Err()
}

// ListSubmissionsByUser returns full submissions for username, newest first.
func (s *Store) ListSubmissionsByUser(ctx context.Context, username string) ([]model.Submission, error) {
	subs, err := s.listHeaders(ctx, s.rebind(
		`SELECT id, username, total_score, max_score, submitted_at
		 FROM submissions WHERE username = ? ORDER BY submitted_at DESC, seq DESC`), username)
	if err != nil {
		return nil, err
	}
	if err := s.attachAnswers(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// ListSubmissionSummaries returns the score-only history of username, newest first.
func (s *Store) ListSubmissionSummaries(ctx context.Context, username string) ([]model.SubmissionSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, total_score, max_score, submitted_at
		 FROM submissions WHERE username = ? ORDER BY submitted_at DESC, seq DESC`), username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.SubmissionSummary{}
	for rows.Next() {
		var sm model.SubmissionSummary
		if err := rows.Scan(&sm.ID, &sm.TotalScore, &sm.MaxScore, &sm.SubmittedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

// GetSubmission returns a single submission by id, or model.ErrNotFound.
func (s *Store) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	subs, err := s.listHeaders(ctx, s.rebind(
		`SELECT id, username, total_score, max_score, submitted_at FROM submissions WHERE id = ?`), id)
	if err != nil {
		return model.Submission{}, err
	}
	if len(subs) == 0 {
		return model.Submission{}, model.ErrNotFound
	}
	if err := s.attachAnswers(ctx, subs); err != nil {
		return model.Submission{}, err
	}
	return subs[0], nil
}

// listAllSubmissions returns every submission, oldest first.
func (s *Store) listAllSubmissions(ctx context.Context) ([]model.Submission, error) {
	subs, err := s.listHeaders(ctx,
		`SELECT id, username, total_score, max_score, submitted_at
		 FROM submissions ORDER BY submitted_at, seq`)
	if err != nil {
		return nil, err
	}
	if err := s.attachAnswers(ctx, subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *Store) listHeaders(ctx context.Context, query string, args ...any) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.Username, &sub.TotalScore, &sub.MaxScore, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// attachAnswers loads answer records for each submission. Header rows must
// be fully read before this runs: the sqlite pool holds a single connection.
func (s *Store) attachAnswers(ctx context.Context, subs []model.Submission) error {
	for i := range subs {
		answers, err := s.getAnswers(ctx, subs[i].ID)
		if err != nil {
			return fmt.Errorf("answers for %s: %w", subs[i].ID, err)
		}
		subs[i].Answers = answers
	}
	return nil
}

func (s *Store) getAnswers(ctx context.Context, submissionID string) ([]model.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT question, user_answer, correct_answer, score, fallback
		 FROM answer_records WHERE submission_id = ? ORDER BY position`), submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.AnswerRecord{}
	for rows.Next() {
		var a model.AnswerRecord
		if err := rows.Scan(&a.Question, &a.UserAnswer, &a.CorrectAnswer, &a.Score, &a.Fallback); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
