package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mind-engage/placement-exam/internal/exam"
	"github.com/mind-engage/placement-exam/internal/metrics"
	"github.com/mind-engage/placement-exam/internal/records"
	"github.com/mind-engage/placement-exam/internal/storage"
)

func testBank() []exam.Question {
	var qs []exam.Question
	for i := 1; i <= 25; i++ {
		qs = append(qs, exam.Question{
			ID:            exam.QuestionID(fmt.Sprint(i)),
			Section:       "Aptitude",
			Prompt:        fmt.Sprintf("question %d", i),
			Options:       []exam.Option{{Label: "A", Text: "yes"}, {Label: "B", Text: "no"}},
			CorrectOption: "A",
		})
	}
	qs = append(qs, exam.Question{ID: "100", Section: "Reasoning", Prompt: "r", CorrectOption: "B"})
	return qs
}

func newTestRouter(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	svc := exam.NewService(records.NewMemoryStore(), exam.WithBlobStore(blobs), exam.WithMetrics(m))
	if err := svc.ImportQuestions(context.Background(), testBank()); err != nil {
		t.Fatal(err)
	}
	return NewRouter(RouterOptions{Service: svc, Metrics: m, CORSOrigins: []string{"http://localhost:3000"}}), m
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body is not JSON: %q", rec.Body.String())
	}
	return e
}

func TestGetExam_PublicQuestionsAndETag(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/questions/aptitude?email=Ana@Example.com", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "correctOption") {
		t.Fatalf("answer key leaked: %s", rec.Body.String())
	}
	var qs []exam.PublicQuestion
	if err := json.Unmarshal(rec.Body.Bytes(), &qs); err != nil {
		t.Fatal(err)
	}
	if len(qs) != 20 {
		t.Fatalf("expected 20 questions, got %d", len(qs))
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	again := do(t, h, http.MethodGet, "/api/questions/Aptitude?email=%20ana@example.com", nil, map[string]string{"If-None-Match": etag})
	if again.Code != http.StatusNotModified {
		t.Fatalf("expected 304 for the same candidate, got %d", again.Code)
	}

	other := do(t, h, http.MethodGet, "/api/questions/Aptitude?email=ben@example.com", nil, map[string]string{"If-None-Match": etag})
	if other.Code != http.StatusOK {
		t.Fatalf("a different candidate should get a fresh exam, got %d", other.Code)
	}
}

func TestGetExam_RequiresEmail(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/api/questions/Aptitude", nil, nil)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != exam.CodeInvalidInput {
		t.Fatalf("expected 400 INVALID_INPUT, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitExam_Flow(t *testing.T) {
	h, _ := newTestRouter(t)
	body := `{"candidateEmail":"ana@example.com","answers":[{"questionId":1,"selectedOption":"a"},{"questionId":"2","selectedOption":"B"},{"questionId":100,"selectedOption":"b"}]}`

	rec := do(t, h, http.MethodPost, "/api/result/submit", strings.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var res exam.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.ID != 1 || res.AptitudeCorrect != 1 || res.ReasoningCorrect != 1 || res.Percentage != 3.33 {
		t.Fatalf("unexpected result %+v", res)
	}

	dup := do(t, h, http.MethodPost, "/api/result/submit", strings.NewReader(strings.Replace(body, "ana@", "ANA@", 1)), nil)
	if dup.Code != http.StatusConflict || decodeError(t, dup).Code != exam.CodeDuplicateSubmission {
		t.Fatalf("expected 409 DUPLICATE_SUBMISSION, got %d %s", dup.Code, dup.Body.String())
	}

	for _, bad := range []string{`{`, `{"candidateEmail":"x@y.z"}`, `{"answers":[]}`} {
		rec := do(t, h, http.MethodPost, "/api/result/submit", strings.NewReader(bad), nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", bad, rec.Code)
		}
	}

	metricsRec := do(t, h, http.MethodGet, "/metrics", nil, nil)
	if !strings.Contains(metricsRec.Body.String(), `exam_submissions_total{outcome="accepted"} 1`) {
		t.Fatalf("submission counter missing from /metrics")
	}
}

func TestResults_SearchAndLookup(t *testing.T) {
	h, _ := newTestRouter(t)
	for _, email := range []string{"ana@college.edu", "ben@other.org"} {
		body := fmt.Sprintf(`{"candidateEmail":%q,"answers":[{"questionId":1,"selectedOption":"A"}]}`, email)
		if rec := do(t, h, http.MethodPost, "/api/result/submit", strings.NewReader(body), nil); rec.Code != http.StatusOK {
			t.Fatalf("submit %s: %d", email, rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/api/result/search?email=COLLEGE&minPercentage=1", nil, nil)
	var list []exam.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].CandidateEmail != "ana@college.edu" {
		t.Fatalf("unexpected search result %+v", list)
	}
	if rec := do(t, h, http.MethodGet, "/api/result/search?minPercentage=abc", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad minPercentage, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/result/email/BEN%40other.org", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an existing result, got %d", rec.Code)
	}
	missing := do(t, h, http.MethodGet, "/api/result/email/nobody@x.y", nil, nil)
	if missing.Code != http.StatusNotFound || decodeError(t, missing).Code != exam.CodeNotFound {
		t.Fatalf("expected 404 NOT_FOUND, got %d", missing.Code)
	}
}

func TestCandidates_RegisterWithResume(t *testing.T) {
	h, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Asha")
	_ = mw.WriteField("email", "asha@college.edu")
	_ = mw.WriteField("backlogs", "2")
	fw, err := mw.CreateFormFile("resume", "cv.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4"))
	_ = mw.Close()

	rec := do(t, h, http.MethodPost, "/api/candidate/register", &buf, map[string]string{"Content-Type": mw.FormDataContentType()})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var c exam.Candidate
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatal(err)
	}
	if c.ID != 1 || c.Backlogs != 2 || !strings.HasSuffix(c.ResumeName, "_cv.pdf") {
		t.Fatalf("unexpected candidate %+v", c)
	}

	dl := do(t, h, http.MethodGet, "/api/candidate/resume/"+c.ResumeName, nil, nil)
	if dl.Code != http.StatusOK || dl.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected download %d %q", dl.Code, dl.Body.String())
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename=cv.pdf`) {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	if ct := dl.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected Content-Type %q", ct)
	}

	jsonBody := `{"name":"Ravi","email":"ravi@x.in","backlogs":"1"}`
	rec = do(t, h, http.MethodPost, "/api/candidate/register", strings.NewReader(jsonBody), map[string]string{"Content-Type": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("json registration: %d %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil || c.Backlogs != 1 || c.ID != 2 {
		t.Fatalf("unexpected candidate %+v (%v)", c, err)
	}

	dup := do(t, h, http.MethodPost, "/api/candidate/register", strings.NewReader(`{"email":"RAVI@x.in"}`), nil)
	if dup.Code != http.StatusConflict || decodeError(t, dup).Code != exam.CodeAlreadyRegistered {
		t.Fatalf("expected 409 ALREADY_REGISTERED, got %d", dup.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/candidate/register", strings.NewReader(`{"name":"x"}`), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without an email, got %d", rec.Code)
	}

	all := do(t, h, http.MethodGet, "/api/candidate/all", nil, nil)
	var list []exam.Candidate
	if err := json.Unmarshal(all.Body.Bytes(), &list); err != nil || len(list) != 2 {
		t.Fatalf("expected 2 candidates, got %s", all.Body.String())
	}

	if rec := do(t, h, http.MethodGet, "/api/candidate/resume/missing.pdf", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing resume, got %d", rec.Code)
	}
}

func TestRegister_UploadTooLarge(t *testing.T) {
	svc := exam.NewService(records.NewMemoryStore())
	h := NewRouter(RouterOptions{Service: svc, MaxUploadBytes: 16})
	rec := do(t, h, http.MethodPost, "/api/candidate/register",
		strings.NewReader(`{"email":"someone-with-a-long-address@example.com"}`), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

type unavailableService struct{ Service }

func (unavailableService) GetExam(context.Context, string, string) ([]exam.PublicQuestion, error) {
	return nil, fmt.Errorf("questions.json: %w", records.ErrUnavailable)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	h := NewRouter(RouterOptions{Service: unavailableService{}})
	rec := do(t, h, http.MethodGet, "/api/questions/Aptitude?email=a@b.c", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != exam.CodeStoreUnavailable || strings.Contains(e.Error, "questions.json") {
		t.Fatalf("unexpected error body %+v", e)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[exam.Code]int{
		exam.CodeInvalidInput:        400,
		exam.CodeNotFound:            404,
		exam.CodeDuplicateSubmission: 409,
		exam.CodeAlreadyRegistered:   409,
		exam.CodeStoreUnavailable:    503,
		exam.CodeUnknown:             500,
	}
	for code, want := range cases {
		if got := statusFor(code); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	h := RateLimiter(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	first := do(t, h, http.MethodGet, "/", nil, nil)
	second := do(t, h, http.MethodGet, "/", nil, nil)
	if first.Code != http.StatusNoContent || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 204 then 429, got %d then %d", first.Code, second.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("another client should not be limited, got %d", rec.Code)
	}

	open := RateLimiter(0, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		if rec := do(t, open, http.MethodGet, "/", nil, nil); rec.Code != http.StatusOK {
			t.Fatalf("disabled limiter rejected a request: %d", rec.Code)
		}
	}
}

func TestOperationalRoutes(t *testing.T) {
	h := NewRouter(RouterOptions{
		Service: unavailableService{},
		Ready:   func(context.Context) error { return records.ErrUnavailable },
	})
	if rec := do(t, h, http.MethodGet, "/api/health", nil, nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"OK"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/readyz", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz should report the store failure, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/", nil, nil); !strings.Contains(rec.Body.String(), "POST /api/result/submit") {
		t.Fatalf("index is missing endpoints: %s", rec.Body.String())
	}
	rec := do(t, h, http.MethodGet, "/nope", nil, nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Error != "route not found" {
		t.Fatalf("unexpected 404 body %d %s", rec.Code, rec.Body.String())
	}
}
