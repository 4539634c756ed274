package exam

import (
	"fmt"
	"reflect"
	"testing"
)

func bankOf(section string, n int, start int) []Question {
	out := make([]Question, n)
	for i := range out {
		id := start + i
		out[i] = Question{
			ID:            QuestionID(fmt.Sprint(id)),
			Section:       section,
			Prompt:        fmt.Sprintf("q%d", id),
			Options:       []Option{{Label: "A", Text: "a"}, {Label: "B", Text: "b"}},
			CorrectOption: "A",
		}
	}
	return out
}

func ids(qs []Question) []QuestionID {
	out := make([]QuestionID, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestSelectExam_Deterministic(t *testing.T) {
	bank := append(bankOf("Aptitude", 30, 1), bankOf("Reasoning", 30, 100)...)
	a := SelectExam(bank, "Aptitude", "alice@example.com", 20)
	b := SelectExam(bank, "Aptitude", "alice@example.com", 20)
	if len(a) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(a))
	}
	if !reflect.DeepEqual(ids(a), ids(b)) {
		t.Fatalf("same identity produced different exams:\n%v\n%v", ids(a), ids(b))
	}
	for _, q := range a {
		if q.Section != "Aptitude" {
			t.Fatalf("question %s from section %q leaked in", q.ID, q.Section)
		}
	}
}

func TestSelectExam_IdentityIsNormalized(t *testing.T) {
	bank := bankOf("Aptitude", 30, 1)
	a := SelectExam(bank, "Aptitude", "Alice@Example.com", 20)
	b := SelectExam(bank, "Aptitude", "  alice@example.com\t", 20)
	if !reflect.DeepEqual(ids(a), ids(b)) {
		t.Fatalf("case/whitespace variants should match:\n%v\n%v", ids(a), ids(b))
	}
}

func TestSelectExam_DifferentIdentitiesDiffer(t *testing.T) {
	bank := bankOf("Aptitude", 30, 1)
	a := SelectExam(bank, "Aptitude", "alice@example.com", 20)
	b := SelectExam(bank, "Aptitude", "bob@example.com", 20)
	if reflect.DeepEqual(ids(a), ids(b)) {
		t.Fatalf("different identities produced identical exams: %v", ids(a))
	}
}

func TestSelectExam_SectionMatchIsCaseInsensitive(t *testing.T) {
	bank := bankOf(" Communication ", 5, 1)
	got := SelectExam(bank, "communication", "x@y.z", 20)
	if len(got) != 5 {
		t.Fatalf("expected all 5 questions, got %d", len(got))
	}
}

func TestSelectExam_Bounds(t *testing.T) {
	bank := bankOf("Aptitude", 7, 1)
	cases := []struct {
		limit int
		want  int
	}{
		{limit: 20, want: 7},
		{limit: 7, want: 7},
		{limit: 3, want: 3},
		{limit: 0, want: 0},
		{limit: -1, want: 0},
	}
	for _, c := range cases {
		got := SelectExam(bank, "Aptitude", "x@y.z", c.limit)
		if got == nil {
			t.Fatalf("limit %d: expected empty slice, got nil", c.limit)
		}
		if len(got) != c.want {
			t.Fatalf("limit %d: expected %d questions, got %d", c.limit, c.want, len(got))
		}
	}
	if got := SelectExam(bank, "Unknown", "x@y.z", 20); got == nil || len(got) != 0 {
		t.Fatalf("unknown section should give an empty slice, got %v", got)
	}
}

func TestSelectExam_PrefixIsStable(t *testing.T) {
	bank := bankOf("Aptitude", 30, 1)
	full := SelectExam(bank, "Aptitude", "carol@example.com", 30)
	short := SelectExam(bank, "Aptitude", "carol@example.com", 10)
	if !reflect.DeepEqual(ids(full[:10]), ids(short)) {
		t.Fatalf("a smaller limit should return a prefix of the full order")
	}
}

func TestSelectExam_DoesNotMutateBank(t *testing.T) {
	bank := bankOf("Aptitude", 30, 1)
	before := ids(bank)
	_ = SelectExam(bank, "Aptitude", "dave@example.com", 20)
	if !reflect.DeepEqual(before, ids(bank)) {
		t.Fatalf("bank order changed")
	}
}

func TestSeedFor_NormalizesAndDiffers(t *testing.T) {
	h1, l1 := SeedFor("Alice@Example.com ")
	h2, l2 := SeedFor("alice@example.com")
	if h1 != h2 || l1 != l2 {
		t.Fatalf("seed should ignore case and surrounding space")
	}
	h3, l3 := SeedFor("bob@example.com")
	if h1 == h3 && l1 == l3 {
		t.Fatalf("distinct identities share a seed")
	}
}

// The seed derivation and shuffle order are persisted implicitly in every
// candidate's exam; these values must only change with a migration.
func TestSeedFor_Golden(t *testing.T) {
	hi, lo := SeedFor("alice@example.com")
	if hi != 0x48078100012481f9 || lo != 0xc6574f5197fc2bcf {
		t.Fatalf("SeedFor(alice@example.com) = %#x, %#x", hi, lo)
	}
	if h2, l2 := SeedFor("  ALICE@example.COM "); h2 != hi || l2 != lo {
		t.Fatalf("seed should be derived from the normalized identity")
	}
}

func TestSelectExam_GoldenOrder(t *testing.T) {
	got := ids(SelectExam(bankOf("Aptitude", 10, 1), "Aptitude", "alice@example.com", 10))
	want := []QuestionID{"3", "8", "10", "1", "4", "6", "5", "7", "9", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order changed:\n got %v\nwant %v", got, want)
	}
}
