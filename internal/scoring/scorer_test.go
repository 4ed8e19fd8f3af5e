package scoring

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pavelanni/mlquiz/internal/scoring/prompts"
)

// completerFunc adapts a function to the Completer interface.
type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func replying(reply string) Completer {
	return completerFunc(func(context.Context, string) (string, error) {
		return reply, nil
	})
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"4", 4, true},
		{" 3.5\n", 3.5, true},
		{"0", 0, true},
		{"5", 5, true},
		{"4/5", 4, true},
		{"4 out of 5", 4, true},
		{"Score: 2", 0, false},
		{"On a 0-5 scale: 4", 0, false},
		{"Question 1: 4", 0, false},
		{"1e2", 0, false},
		{"4e-1", 0.4, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"6", 0, false},
		{"-1", 0, false},
		{"five", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseScore(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("parseScore(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("parseScore(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRoundAndClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{3.14159, 3.1},
		{3.15, 3.2},
		{4.96, 5},
		{0.04, 0},
		{-2, 0},
		{7, 5},
	}
	for _, tt := range tests {
		if got := Round(Clamp(tt.in)); got != tt.want {
			t.Errorf("Round(Clamp(%v)) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name         string
		completer    Completer
		want         float64
		wantFallback bool
	}{
		{"valid integer", replying("4"), 4, false},
		{"valid decimal rounded", replying("3.46"), 3.5, false},
		{"out of range", replying("9"), FallbackScore, true},
		{"not a number", replying("excellent"), FallbackScore, true},
		{"empty reply", replying(""), FallbackScore, true},
		{"rating inside prose", replying("On a 0-5 scale, I'd give it 4"), FallbackScore, true},
		{"exponent out of range", replying("1e2"), FallbackScore, true},
		{"remote error", completerFunc(func(context.Context, string) (string, error) {
			return "", errors.New("quota exceeded")
		}), FallbackScore, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(tt.completer, time.Second)
			g := s.Score(context.Background(), "What is ML?", "Learning from data.", "Machine learning learns from data")
			if g.Score != tt.want {
				t.Errorf("score = %v, want %v", g.Score, tt.want)
			}
			if g.Fallback != tt.wantFallback {
				t.Errorf("fallback = %v, want %v", g.Fallback, tt.wantFallback)
			}
		})
	}
}

func TestScoreTimeout(t *testing.T) {
	slow := completerFunc(func(ctx context.Context, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "5", nil
		}
	})

	s := NewScorer(slow, 20*time.Millisecond)
	start := time.Now()
	g := s.Score(context.Background(), "Q", "A", "answer text")
	if time.Since(start) > 2*time.Second {
		t.Fatal("Score did not honor its timeout")
	}
	if g.Score != FallbackScore || !g.Fallback {
		t.Errorf("expected fallback grade, got %+v", g)
	}
}

func TestScoreSendsOnePromptWithAnswer(t *testing.T) {
	var calls atomic.Int32
	var seen string
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		calls.Add(1)
		seen = prompt
		return "3", nil
	})

	NewScorer(c, time.Second).Score(context.Background(), "What is overfitting?", "Memorizing noise.", "It memorizes noise")

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one remote call, got %d", calls.Load())
	}
	for _, want := range []string{"What is overfitting?", "Memorizing noise.", "It memorizes noise"} {
		if !strings.Contains(seen, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func TestBlankAnswerGradedByModelPolicy(t *testing.T) {
	// Stand-in for a model that follows the prompt's blank-answer rule.
	policy := completerFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, prompts.NoAnswer) {
			return "0", nil
		}
		return "4", nil
	})

	s := NewScorer(policy, time.Second)
	blank := s.Score(context.Background(), "Q", "A", "")
	if blank.Score != 0 || blank.Fallback {
		t.Errorf("blank answer: got %+v, want score 0 without fallback", blank)
	}
	full := s.Score(context.Background(), "Q", "A", "Machine learning is AI that learns from data")
	if full.Score != 4 {
		t.Errorf("full answer: got %v, want 4", full.Score)
	}
}
