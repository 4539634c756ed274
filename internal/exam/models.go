package exam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mind-engage/placement-exam/internal/grading"
)

// NormalizeIdentity is the form of a candidate email used as a key and as
// the selector seed input.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// QuestionID is the canonical string form of a question identifier.
// JSON numbers and JSON strings decode to the same value, so 7, 7.0 and
// "7" all compare equal.
type QuestionID string

func (id *QuestionID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = QuestionID(strings.TrimSpace(s))
		return nil
	}
	s, err := canonicalNumber(string(b))
	if err != nil {
		return fmt.Errorf("question id: %w", err)
	}
	*id = QuestionID(s)
	return nil
}

func canonicalNumber(lit string) (string, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("unsupported literal %s", lit)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<62 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is an authored bank entry including its answer key.
type Question struct {
	ID            QuestionID `json:"id"`
	Section       string     `json:"section"`
	Prompt        string     `json:"question"`
	Options       []Option   `json:"options"`
	CorrectOption string     `json:"correctOption"`
}

// UnmarshalJSON also accepts the flat optionA..optionD layout of older
// question files.
func (q *Question) UnmarshalJSON(b []byte) error {
	type plain Question
	var aux struct {
		plain
		OptionA string `json:"optionA"`
		OptionB string `json:"optionB"`
		OptionC string `json:"optionC"`
		OptionD string `json:"optionD"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*q = Question(aux.plain)
	if len(q.Options) == 0 {
		for _, o := range []Option{
			{Label: "A", Text: aux.OptionA},
			{Label: "B", Text: aux.OptionB},
			{Label: "C", Text: aux.OptionC},
			{Label: "D", Text: aux.OptionD},
		} {
			if o.Text != "" {
				q.Options = append(q.Options, o)
			}
		}
	}
	return nil
}

// PublicQuestion is what a candidate sees: the answer key is omitted.
type PublicQuestion struct {
	ID      QuestionID `json:"id"`
	Section string     `json:"section"`
	Prompt  string     `json:"question"`
	Options []Option   `json:"options"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:      q.ID,
		Section: q.Section,
		Prompt:  q.Prompt,
		Options: append([]Option(nil), q.Options...),
	}
}

type Answer struct {
	QuestionID     QuestionID `json:"questionId"`
	SelectedOption string     `json:"selectedOption"`
}

// Submission is consumed to produce a Result and is never stored itself.
// A nil Answers slice means the field was absent; an empty one scores zero.
type Submission struct {
	CandidateEmail string   `json:"candidateEmail"`
	Answers        []Answer `json:"answers"`
}

// Result is created once per candidate and never modified afterwards.
type Result struct {
	ID                   int64   `json:"id"`
	CandidateEmail       string  `json:"candidateEmail"`
	AptitudeCorrect      int     `json:"aptitudeCorrect"`
	ReasoningCorrect     int     `json:"reasoningCorrect"`
	CommunicationCorrect int     `json:"communicationCorrect"`
	TotalCorrect         int     `json:"totalCorrect"`
	Percentage           float64 `json:"percentage"`
	SubmittedAt          int64   `json:"submittedAt,omitempty"`
}

// SectionCount returns the correct count recorded for s.
func (r Result) SectionCount(s grading.Section) int {
	switch s {
	case grading.Aptitude:
		return r.AptitudeCorrect
	case grading.Reasoning:
		return r.ReasoningCorrect
	case grading.Communication:
		return r.CommunicationCorrect
	default:
		return 0
	}
}

type Candidate struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	College      string `json:"college"`
	Branch       string `json:"branch"`
	Gender       string `json:"gender"`
	Backlogs     int    `json:"backlogs"`
	ResumeName   string `json:"resumeName,omitempty"`
	RegisteredAt int64  `json:"registeredAt,omitempty"`
}

type ResultFilter struct {
	Email         string  // case-insensitive substring; empty matches all
	MinPercentage float64 // inclusive
}
