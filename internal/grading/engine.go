package grading

import (
	"math"
	"strconv"
	"strings"
)

// Section is a score bucket. Labels on questions are free text and are
// mapped onto this vocabulary by Classify.
type Section string

const (
	Aptitude      Section = "APTITUDE"
	Reasoning     Section = "REASONING"
	Communication Section = "COMMUNICATION"
)

// Sections lists the vocabulary in matching precedence order.
var Sections = []Section{Aptitude, Reasoning, Communication}

const DefaultQuestionsPerSection = 20

// DefaultExpectedTotal is the fixed exam size percentages are computed over.
var DefaultExpectedTotal = DefaultQuestionsPerSection * len(Sections)

// Classify maps a raw section label to the first Section whose name it
// contains, ignoring case.
func Classify(label string) (Section, bool) {
	up := strings.ToUpper(label)
	for _, s := range Sections {
		if strings.Contains(up, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Q is a minimal view of a question needed for grading.
type Q struct {
	ID            string // canonical identifier
	Section       string
	CorrectOption string
}

// Response is one selected option for a question.
type Response struct {
	QuestionID string // canonical identifier
	Selected   string
}

// Tally is the outcome of scoring one submission.
type Tally struct {
	BySection  map[Section]int
	Total      int
	Percentage float64
	// Unmapped holds distinct section labels of correctly answered questions
	// that matched no Section. Those answers count toward nothing.
	Unmapped []string
}

type config struct {
	ExpectedTotal int
}

type Option func(*config)

func WithExpectedTotal(n int) Option { return func(c *config) { c.ExpectedTotal = n } }

type Engine struct {
	expectedTotal int
}

func NewEngine(opts ...Option) *Engine {
	cfg := &config{ExpectedTotal: DefaultExpectedTotal}
	for _, o := range opts {
		o(cfg)
	}
	return &Engine{expectedTotal: cfg.ExpectedTotal}
}

func (e *Engine) ExpectedTotal() int { return e.expectedTotal }

// Score counts correct responses per section. Responses naming a question
// absent from bank are ignored. When bank repeats an ID the last entry wins.
func (e *Engine) Score(bank []Q, responses []Response) Tally {
	byID := make(map[string]Q, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}

	t := Tally{BySection: make(map[Section]int, len(Sections))}
	for _, s := range Sections {
		t.BySection[s] = 0
	}
	seenUnmapped := map[string]bool{}

	for _, r := range responses {
		q, ok := byID[r.QuestionID]
		if !ok || !optionMatches(q.CorrectOption, r.Selected) {
			continue
		}
		sec, ok := Classify(q.Section)
		if !ok {
			if !seenUnmapped[q.Section] {
				seenUnmapped[q.Section] = true
				t.Unmapped = append(t.Unmapped, q.Section)
			}
			continue
		}
		t.BySection[sec]++
	}

	for _, n := range t.BySection {
		t.Total += n
	}
	t.Percentage = Percentage(t.Total, e.expectedTotal)
	return t
}

// Percentage is total/expected*100 rounded half away from zero to two
// decimals. The rounding is done on integer hundredths so halves like
// 201/20000 = 1.005% round up.
func Percentage(total, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	n, d := int64(total)*10000, int64(expected)
	neg := n < 0
	if neg {
		n = -n
	}
	h := (2*n + d) / (2 * d)
	if neg {
		h = -h
	}
	return float64(h) / 100
}

// Round2 rounds half away from zero at two decimal places, judged on the
// shortest decimal form of x (1.005 rounds to 1.01).
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	if math.Abs(x) >= 1e15 {
		return math.Round(x*100) / 100
	}
	whole, frac, _ := strings.Cut(strconv.FormatFloat(math.Abs(x), 'f', -1, 64), ".")
	frac += "000"
	h, err := strconv.ParseInt(whole+frac[:2], 10, 64)
	if err != nil {
		return math.Round(x*100) / 100
	}
	if frac[2] >= '5' {
		h++
	}
	r := float64(h) / 100
	if x < 0 {
		r = -r
	}
	return r
}

func optionMatches(correct, selected string) bool {
	c := strings.TrimSpace(correct)
	s := strings.TrimSpace(selected)
	if c == "" || s == "" {
		return false
	}
	return strings.EqualFold(c, s)
}
