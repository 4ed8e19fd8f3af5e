// Package questions holds the process-wide question bank. A Bank is built
// once at startup and never mutated afterwards; every accessor hands out
// copies so callers cannot change it either.
package questions

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/mlquiz/internal/model"
)

//go:embed banks/*.yaml
var bankFS embed.FS

const defaultBank = "banks/ml_en.yaml"

// Item is the on-disk form of a question.
type Item struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Bank is an ordered, read-only list of questions.
type Bank struct {
	questions   []model.Question
	fingerprint string
}

// Default returns the embedded machine learning question bank.
func Default() (*Bank, error) {
	data, err := bankFS.ReadFile(defaultBank)
	if err != nil {
		return nil, fmt.Errorf("read embedded bank: %w", err)
	}
	var items []Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse embedded bank: %w", err)
	}
	return New(items)
}

// Load reads a question bank from a YAML or JSON file.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var items []Item
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &items)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		return nil, fmt.Errorf("unsupported question file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(items)
}

// New builds a bank from items in the given order.
func New(items []Item) (*Bank, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}

	h := sha256.New()
	qs := make([]model.Question, 0, len(items))
	for i, it := range items {
		text := strings.TrimSpace(it.Question)
		answer := strings.TrimSpace(it.Answer)
		if text == "" || answer == "" {
			return nil, fmt.Errorf("question %d: question and answer are required", i+1)
		}
		qs = append(qs, model.Question{Index: i, Text: text, ModelAnswer: answer})
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00", i, text, answer)
	}

	return &Bank{questions: qs, fingerprint: hex.EncodeToString(h.Sum(nil))}, nil
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// MaxScore is the best total a submission can reach.
func (b *Bank) MaxScore() int {
	return len(b.questions) * model.MaxPointsPerQuestion
}

// At returns the question at index i.
func (b *Bank) At(i int) (model.Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return model.Question{}, false
	}
	return b.questions[i], true
}

// Public returns the questions without reference answers.
func (b *Bank) Public() []model.PublicQuestion {
	out := make([]model.PublicQuestion, len(b.questions))
	for i, q := range b.questions {
		out[i] = model.PublicQuestion{Index: q.Index, Text: q.Text}
	}
	return out
}

// Fingerprint identifies the bank's content.
func (b *Bank) Fingerprint() string {
	return b.fingerprint
}
