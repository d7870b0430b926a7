// Package prompts renders the answer-verification prompts sent to the LLM.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/talentproof/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

const maxAnswerRunes = 2000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Variant selects how forgiving the verifier is.
type Variant string

const (
	// Strict accepts exact matches only.
	Strict Variant = "strict"
	// Standard tolerates formatting differences.
	Standard Variant = "standard"
	// Lenient accepts answers with the same meaning.
	Lenient Variant = "lenient"
)

// Variants lists every known variant.
var Variants = []Variant{Strict, Standard, Lenient}

// IsValidVariant reports whether v names a known variant.
func IsValidVariant(v string) bool {
	for _, known := range Variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// VerifyData holds template data for a verification prompt.
type VerifyData struct {
	QuestionText  string
	Options       []string
	CorrectIndex  int
	CorrectOption string
	Answer        string
}

// Set is a parsed collection of verification templates, one per variant.
type Set struct {
	verify map[Variant]*template.Template
}

// Embedded loads the templates compiled into the binary.
func Embedded() (*Set, error) {
	return Load(templateFS)
}

// Load parses templates/verify_<variant>.txt for every variant from fsys.
func Load(fsys fs.FS) (*Set, error) {
	s := &Set{verify: make(map[Variant]*template.Template, len(Variants))}
	for _, v := range Variants {
		name := "templates/verify_" + string(v) + ".txt"
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		tmpl, err := template.New(string(v)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		s.verify[v] = tmpl
	}
	return s, nil
}

// BuildVerifyPrompt renders the prompt asking whether answer solves q.
func (s *Set) BuildVerifyPrompt(variant Variant, q model.Question, answer string) (string, error) {
	tmpl, ok := s.verify[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant: %q", variant)
	}
	data := VerifyData{
		QuestionText:  q.Text,
		Options:       q.Options,
		CorrectIndex:  q.CorrectIndex,
		CorrectOption: q.CorrectOption(),
		Answer:        sanitizeAnswer(answer),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// sanitizeAnswer strips tags that could close the answer block and caps its length.
func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}
	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		answer = string([]rune(answer)[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
