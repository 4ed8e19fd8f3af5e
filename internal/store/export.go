package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/pavelanni/mlquiz/internal/model"
)

// ExportSubmissions builds export-ready results from all submissions,
// numbering each user's attempts in the order they were made.
func (s *Store) ExportSubmissions(ctx context.Context) ([]model.SubmissionResult, error) {
	subs, err := s.listAllSubmissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	attempts := make(map[string]int)
	results := make([]model.SubmissionResult, 0, len(subs))
	for _, sub := range subs {
		attempts[sub.Username]++

		fallbacks := 0
		for _, a := range sub.Answers {
			if a.Fallback {
				fallbacks++
			}
		}

		results = append(results, model.SubmissionResult{
			Username:      sub.Username,
			AttemptNumber: attempts[sub.Username],
			SubmissionID:  sub.ID,
			SubmittedAt:   sub.SubmittedAt,
			TotalScore:    sub.TotalScore,
			MaxScore:      sub.MaxScore,
			FallbackCount: fallbacks,
			Answers:       sub.Answers,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Username < results[j].Username
	})
	return results, nil
}
