package exam

import "github.com/mind-engage/placement-exam/internal/grading"

// Score grades sub against bank. It is a pure function of its inputs; the
// returned Result has no ID or timestamp yet.
func Score(engine *grading.Engine, sub Submission, bank []Question) (Result, grading.Tally) {
	qs := make([]grading.Q, len(bank))
	for i, q := range bank {
		qs[i] = grading.Q{ID: string(q.ID), Section: q.Section, CorrectOption: q.CorrectOption}
	}
	resp := make([]grading.Response, len(sub.Answers))
	for i, a := range sub.Answers {
		resp[i] = grading.Response{QuestionID: string(a.QuestionID), Selected: a.SelectedOption}
	}

	t := engine.Score(qs, resp)
	return Result{
		CandidateEmail:       sub.CandidateEmail,
		AptitudeCorrect:      t.BySection[grading.Aptitude],
		ReasoningCorrect:     t.BySection[grading.Reasoning],
		CommunicationCorrect: t.BySection[grading.Communication],
		TotalCorrect:         t.Total,
		Percentage:           t.Percentage,
	}, t
}
