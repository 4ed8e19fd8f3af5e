// Package scoring grades free-text answers on a 0-5 scale with a language model.
//
// Grading never fails from the caller's point of view: when the remote call
// errors, times out, or replies with something that is not a number in range,
// the neutral FallbackScore is recorded instead. Aggregate scores therefore
// drift toward the midpoint during grader outages; Grade.Fallback marks every
// such score so it can be told apart from a real rating.
package scoring

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pavelanni/mlquiz/internal/model"
	"github.com/pavelanni/mlquiz/internal/scoring/prompts"
)

const (
	// FallbackScore is recorded when no valid rating can be obtained.
	FallbackScore = 2.5
	// DefaultTimeout bounds a single grading call.
	DefaultTimeout = 20 * time.Second
)

// leadingNumber matches a number at the start of the reply, exponent included,
// so "1e2" reads as 100 rather than 1.
var leadingNumber = regexp.MustCompile(`^\s*([-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?)`)

// Grade is the outcome of scoring one answer.
type Grade struct {
	Score    float64
	Fallback bool
}

// Scorer grades answers through a Completer.
type Scorer struct {
	completer Completer
	timeout   time.Duration
}

// NewScorer creates a Scorer. A non-positive timeout selects DefaultTimeout.
func NewScorer(c Completer, timeout time.Duration) *Scorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scorer{completer: c, timeout: timeout}
}

// Score rates answer against the reference answer for question. It issues
// exactly one remote call and always returns a score in [0,5] rounded to
// one decimal.
func (s *Scorer) Score(ctx context.Context, question, reference, answer string) Grade {
	prompt, err := prompts.BuildGradePrompt(question, reference, answer)
	if err != nil {
		slog.Error("build grading prompt", "error", err)
		return fallback()
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.completer.Complete(callCtx, prompt)
	if err != nil {
		slog.Warn("scoring call failed, using fallback score",
			"question", question, "elapsed", time.Since(start), "error", err)
		return fallback()
	}

	v, ok := parseScore(raw)
	if !ok {
		slog.Warn("invalid score from grader, using fallback score", "question", question, "raw", raw)
		return fallback()
	}

	score := Round(Clamp(v))
	slog.Debug("scored answer", "question", question, "score", score, "elapsed", time.Since(start))
	return Grade{Score: score}
}

// parseScore reads the number the reply starts with and checks it lies in
// [0,5]. Replies that open with prose are rejected: a number buried in a
// sentence is as likely to be a scale bound as a rating.
func parseScore(raw string) (float64, bool) {
	m := leadingNumber.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if v < 0 || v > model.MaxPointsPerQuestion {
		return 0, false
	}
	return v, true
}

// Clamp limits v to the per-question scale.
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > model.MaxPointsPerQuestion {
		return model.MaxPointsPerQuestion
	}
	return v
}

// Round rounds v half away from zero to one decimal place.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

func fallback() Grade {
	return Grade{Score: FallbackScore, Fallback: true}
}
