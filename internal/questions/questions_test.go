package questions

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultBank(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if b.Len() != 10 {
		t.Fatalf("expected 10 questions, got %d", b.Len())
	}
	if b.MaxScore() != 50 {
		t.Errorf("expected max score 50, got %d", b.MaxScore())
	}
	q, ok := b.At(0)
	if !ok {
		t.Fatal("At(0) not found")
	}
	if q.Text != "What is Machine Learning?" {
		t.Errorf("unexpected first question %q", q.Text)
	}
	if q.ModelAnswer == "" {
		t.Error("expected a reference answer")
	}
	if _, ok := b.At(10); ok {
		t.Error("At(10) should be out of range")
	}
}

func TestPublicIsStable(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	first := b.Public()
	first[0].Text = "mutated"

	second := b.Public()
	third := b.Public()
	if !reflect.DeepEqual(second, third) {
		t.Error("repeated Public calls returned different content")
	}
	if second[0].Text == "mutated" {
		t.Error("caller mutation leaked into the bank")
	}
	for i, q := range second {
		if q.Index != i {
			t.Errorf("question %d has index %d", i, q.Index)
		}
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantLen int
		wantErr bool
	}{
		{"yaml", "bank.yaml", "- question: Q1\n  answer: A1\n- question: Q2\n  answer: A2\n", 2, false},
		{"json", "bank.json", `[{"question":"Q1","answer":"A1"}]`, 1, false},
		{"empty", "empty.yaml", "[]\n", 0, true},
		{"missing answer", "bad.json", `[{"question":"Q1","answer":"  "}]`, 0, true},
		{"unknown extension", "bank.txt", "Q1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			b, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if b.Len() != tt.wantLen {
				t.Errorf("expected %d questions, got %d", tt.wantLen, b.Len())
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a, _ := New([]Item{{Question: "Q1", Answer: "A1"}})
	b, _ := New([]Item{{Question: "Q1", Answer: "A1"}})
	c, _ := New([]Item{{Question: "Q1", Answer: "A2"}})

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical banks should share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different banks should not share a fingerprint")
	}
}
