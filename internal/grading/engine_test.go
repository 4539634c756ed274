package grading

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		label string
		want  Section
		ok    bool
	}{
		{"Aptitude", Aptitude, true},
		{"quantitative APTITUDE", Aptitude, true},
		{"logical reasoning", Reasoning, true},
		{"Communication", Communication, true},
		{"aptitude and reasoning", Aptitude, true},
		{"General Knowledge", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := Classify(c.label)
		if got != c.want || ok != c.ok {
			t.Errorf("Classify(%q) = %q,%v; want %q,%v", c.label, got, ok, c.want, c.ok)
		}
	}
}

func TestScore_TwoOfThreeInOneSection(t *testing.T) {
	bank := []Q{
		{ID: "1", Section: "Aptitude", CorrectOption: "A"},
		{ID: "2", Section: "Aptitude", CorrectOption: "B"},
		{ID: "3", Section: "Aptitude", CorrectOption: "C"},
	}
	resp := []Response{
		{QuestionID: "1", Selected: "A"},
		{QuestionID: "2", Selected: " b "},
		{QuestionID: "3", Selected: "D"},
	}
	got := NewEngine().Score(bank, resp)
	if got.BySection[Aptitude] != 2 {
		t.Fatalf("aptitude = %d, want 2", got.BySection[Aptitude])
	}
	if got.Total != 2 {
		t.Fatalf("total = %d, want 2", got.Total)
	}
	if got.Percentage != 3.33 {
		t.Fatalf("percentage = %v, want 3.33", got.Percentage)
	}
}

func TestScore_UnknownQuestionIsIgnored(t *testing.T) {
	bank := []Q{{ID: "1", Section: "Reasoning", CorrectOption: "A"}}
	got := NewEngine().Score(bank, []Response{
		{QuestionID: "999", Selected: "A"},
		{QuestionID: "", Selected: "A"},
	})
	if got.Total != 0 || got.Percentage != 0 {
		t.Fatalf("expected nothing counted, got %+v", got)
	}
	for _, s := range Sections {
		if got.BySection[s] != 0 {
			t.Fatalf("section %s = %d, want 0", s, got.BySection[s])
		}
	}
}

func TestScore_UnmappedSectionDropped(t *testing.T) {
	bank := []Q{
		{ID: "1", Section: "General Knowledge", CorrectOption: "A"},
		{ID: "2", Section: "General Knowledge", CorrectOption: "A"},
		{ID: "3", Section: "communication", CorrectOption: "A"},
	}
	got := NewEngine().Score(bank, []Response{
		{QuestionID: "1", Selected: "A"},
		{QuestionID: "2", Selected: "a"},
		{QuestionID: "3", Selected: "A"},
	})
	if got.Total != 1 || got.BySection[Communication] != 1 {
		t.Fatalf("unexpected tally %+v", got)
	}
	if len(got.Unmapped) != 1 || got.Unmapped[0] != "General Knowledge" {
		t.Fatalf("expected one unmapped label, got %v", got.Unmapped)
	}
}

func TestScore_BlankOptionsNeverMatch(t *testing.T) {
	bank := []Q{
		{ID: "1", Section: "Aptitude", CorrectOption: ""},
		{ID: "2", Section: "Aptitude", CorrectOption: "A"},
	}
	got := NewEngine().Score(bank, []Response{
		{QuestionID: "1", Selected: ""},
		{QuestionID: "2", Selected: "   "},
	})
	if got.Total != 0 {
		t.Fatalf("expected zero, got %d", got.Total)
	}
}

func TestScore_DuplicateBankIDLastWins(t *testing.T) {
	bank := []Q{
		{ID: "7", Section: "Aptitude", CorrectOption: "A"},
		{ID: "7", Section: "Reasoning", CorrectOption: "B"},
	}
	got := NewEngine().Score(bank, []Response{{QuestionID: "7", Selected: "B"}})
	if got.BySection[Reasoning] != 1 || got.BySection[Aptitude] != 0 {
		t.Fatalf("expected last bank entry to win, got %+v", got.BySection)
	}
}

func TestScore_CustomExpectedTotal(t *testing.T) {
	bank := []Q{{ID: "1", Section: "Aptitude", CorrectOption: "A"}}
	got := NewEngine(WithExpectedTotal(3)).Score(bank, []Response{{QuestionID: "1", Selected: "A"}})
	if got.Percentage != 33.33 {
		t.Fatalf("percentage = %v, want 33.33", got.Percentage)
	}
}

func TestPercentageAndRounding(t *testing.T) {
	cases := []struct {
		total, expected int
		want            float64
	}{
		{0, 60, 0},
		{60, 60, 100},
		{1, 60, 1.67},
		{2, 60, 3.33},
		{1, 8, 12.5},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{201, 20000, 1.01},
		{1, 0, 0},
	}
	for _, c := range cases {
		if got := Percentage(c.total, c.expected); got != c.want {
			t.Errorf("Percentage(%d,%d) = %v, want %v", c.total, c.expected, got, c.want)
		}
	}
	rounds := []struct{ in, want float64 }{
		{0.125, 0.13},
		{-0.125, -0.13},
		{1.005, 1.01},
		{-1.005, -1.01},
		{2.675, 2.68},
		{1.004999, 1},
		{33.3333, 33.33},
		{7, 7},
	}
	for _, c := range rounds {
		if got := Round2(c.in); got != c.want {
			t.Errorf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
