package prompts

import (
	"bytes"
	"embed"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

// NoAnswer stands in for a blank submission inside the prompt.
const NoAnswer = "[No answer provided]"

const maxAnswerRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var gradeTemplate = template.Must(template.ParseFS(templateFS, "templates/grade.txt"))

// GradeData holds template data for the grading prompt.
type GradeData struct {
	Question    string
	ModelAnswer string
	Answer      string
}

// BuildGradePrompt renders the prompt asking for a 0-5 rating of answer.
func BuildGradePrompt(question, modelAnswer, answer string) (string, error) {
	data := GradeData{
		Question:    question,
		ModelAnswer: modelAnswer,
		Answer:      sanitizeAnswer(answer),
	}

	var buf bytes.Buffer
	if err := gradeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return NoAnswer
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
