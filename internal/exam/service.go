package exam

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mind-engage/placement-exam/internal/grading"
	"github.com/mind-engage/placement-exam/internal/metrics"
	"github.com/mind-engage/placement-exam/internal/records"
	"github.com/mind-engage/placement-exam/internal/storage"
)

var tracer = otel.Tracer("github.com/mind-engage/placement-exam/internal/exam")

// Stage names the step a submission reached; used in logs.
type Stage string

const (
	StageReceived  Stage = "RECEIVED"
	StageValidated Stage = "VALIDATED"
	StageDeduped   Stage = "DEDUPED"
	StageScored    Stage = "SCORED"
	StagePersisted Stage = "PERSISTED"
)

// Event is an audit record emitted after a state change is persisted.
type Event struct {
	Type string
	Key  string
	Data any
}

type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

const (
	EventResultSubmitted     = "ResultSubmitted"
	EventCandidateRegistered = "CandidateRegistered"
)

// Service composes the selector, the scoring engine and the submission
// guard over a record store. Every read-modify-write of a collection runs
// under that collection's lock.
type Service struct {
	store   records.Store
	locks   *records.Locks
	engine  *grading.Engine
	blobs   storage.BlobStore
	events  EventSink
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time

	examLimit int
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }
func WithBlobStore(b storage.BlobStore) ServiceOption { return func(s *Service) { s.blobs = b } }
func WithEvents(e EventSink) ServiceOption { return func(s *Service) { s.events = e } }
func WithMetrics(m *metrics.Metrics) ServiceOption { return func(s *Service) { s.metrics = m } }
func WithExamLimit(n int) ServiceOption { return func(s *Service) { s.examLimit = n } }
func WithEngine(e *grading.Engine) ServiceOption { return func(s *Service) { s.engine = e } }
func WithLocks(l *records.Locks) ServiceOption { return func(s *Service) { s.locks = l } }

// WithExpectedTotal replaces the engine with one using n as the percentage
// denominator.
func WithExpectedTotal(n int) ServiceOption {
	return func(s *Service) { s.engine = grading.NewEngine(grading.WithExpectedTotal(n)) }
}

func NewService(store records.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		locks:     records.NewLocks(),
		engine:    grading.NewEngine(),
		log:       zap.NewNop(),
		now:       time.Now,
		examLimit: DefaultExamLimit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetExam assembles the candidate's questions for section without answer
// keys. It only reads.
func (s *Service) GetExam(ctx context.Context, section, email string) ([]PublicQuestion, error) {
	ctx, span := tracer.Start(ctx, "exam.GetExam", trace.WithAttributes(attribute.String("section", section)))
	defer span.End()

	if strings.TrimSpace(email) == "" {
		return nil, reject(CodeInvalidInput, "email is required")
	}
	bank, err := records.Load[Question](ctx, s.store, records.KindQuestion)
	if err != nil {
		return nil, s.fail(span, storeErr("load questions", err))
	}

	picked := SelectExam(bank, section, email, s.examLimit)
	out := make([]PublicQuestion, len(picked))
	for i, q := range picked {
		out[i] = q.Public()
	}
	s.metrics.ExamAssembled(section)
	span.SetAttributes(attribute.Int("questions", len(out)))
	return out, nil
}

// SubmitExam scores sub and persists the Result. The whole
// RECEIVED through PERSISTED sequence holds the results lock, so concurrent
// submissions never lose an update or share an ID.
func (s *Service) SubmitExam(ctx context.Context, sub *Submission) (Result, error) {
	ctx, span := tracer.Start(ctx, "exam.SubmitExam")
	defer span.End()

	if sub == nil || sub.Answers == nil {
		return Result{}, s.rejected(span, StageReceived, "", reject(CodeInvalidInput, "invalid submission data"))
	}
	email := strings.TrimSpace(sub.CandidateEmail)
	if email == "" {
		return Result{}, s.rejected(span, StageReceived, "", reject(CodeInvalidInput, "candidateEmail is required"))
	}

	s.log.Debug("submission validated", zap.String("stage", string(StageValidated)), zap.String("candidate", email))

	unlock, err := s.locks.Lock(ctx, records.KindResult)
	if err != nil {
		return Result{}, s.fail(span, storeErr("lock results", err))
	}
	defer unlock()

	existing, err := records.Load[Result](ctx, s.store, records.KindResult)
	if err != nil {
		return Result{}, s.fail(span, storeErr("load results", err))
	}
	if err := CheckSubmitOnce(email, existing); err != nil {
		return Result{}, s.rejected(span, StageDeduped, email, err)
	}

	bank, err := records.Load[Question](ctx, s.store, records.KindQuestion)
	if err != nil {
		return Result{}, s.fail(span, storeErr("load questions", err))
	}
	res, tally := Score(s.engine, Submission{CandidateEmail: email, Answers: sub.Answers}, bank)
	s.log.Debug("submission scored", zap.String("stage", string(StageScored)), zap.String("candidate", email), zap.Int("answers", len(sub.Answers)))
	if len(tally.Unmapped) > 0 {
		s.log.Warn("correct answers in unmapped sections were not counted",
			zap.String("candidate", email), zap.Strings("sections", tally.Unmapped))
	}

	res.ID = nextResultID(existing)
	res.SubmittedAt = s.now().Unix()
	if err := records.Save(ctx, s.store, records.KindResult, append(existing, res)); err != nil {
		return Result{}, s.fail(span, storeErr("save results", err))
	}

	s.metrics.Submission("accepted")
	s.publish(ctx, Event{Type: EventResultSubmitted, Key: NormalizeIdentity(email), Data: res})
	s.log.Info("exam submitted",
		zap.String("stage", string(StagePersisted)),
		zap.Int64("result_id", res.ID),
		zap.String("candidate", email),
		zap.Int("total_correct", res.TotalCorrect),
		zap.Float64("percentage", res.Percentage))
	span.SetAttributes(attribute.Int64("result_id", res.ID))
	return res, nil
}

// SearchResults filters by case-insensitive email substring and an inclusive
// minimum percentage.
func (s *Service) SearchResults(ctx context.Context, f ResultFilter) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "exam.SearchResults")
	defer span.End()

	all, err := records.Load[Result](ctx, s.store, records.KindResult)
	if err != nil {
		return nil, s.fail(span, storeErr("load results", err))
	}
	needle := strings.ToLower(strings.TrimSpace(f.Email))
	out := make([]Result, 0, len(all))
	for _, r := range all {
		if needle != "" && !strings.Contains(strings.ToLower(r.CandidateEmail), needle) {
			continue
		}
		if r.Percentage < f.MinPercentage {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) GetResultByIdentity(ctx context.Context, email string) (Result, error) {
	ctx, span := tracer.Start(ctx, "exam.GetResultByIdentity")
	defer span.End()

	key := NormalizeIdentity(email)
	if key == "" {
		return Result{}, reject(CodeInvalidInput, "email is required")
	}
	all, err := records.Load[Result](ctx, s.store, records.KindResult)
	if err != nil {
		return Result{}, s.fail(span, storeErr("load results", err))
	}
	for _, r := range all {
		if NormalizeIdentity(r.CandidateEmail) == key {
			return r, nil
		}
	}
	return Result{}, reject(CodeNotFound, "result not found")
}

// ImportQuestions replaces the question bank. IDs must be present and
// unique after canonicalisation.
func (s *Service) ImportQuestions(ctx context.Context, qs []Question) error {
	ctx, span := tracer.Start(ctx, "exam.ImportQuestions")
	defer span.End()

	seen := make(map[QuestionID]bool, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			return reject(CodeInvalidInput, fmt.Sprintf("question %d: id is required", i))
		}
		if seen[q.ID] {
			return reject(CodeInvalidInput, "duplicate question id "+string(q.ID))
		}
		seen[q.ID] = true
	}

	unlock, err := s.locks.Lock(ctx, records.KindQuestion)
	if err != nil {
		return s.fail(span, storeErr("lock questions", err))
	}
	defer unlock()
	if err := records.Save(ctx, s.store, records.KindQuestion, qs); err != nil {
		return s.fail(span, storeErr("save questions", err))
	}
	s.log.Info("question bank imported", zap.Int("questions", len(qs)))
	return nil
}

func nextResultID(existing []Result) int64 {
	var max int64
	for _, r := range existing {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

func (s *Service) rejected(span trace.Span, stage Stage, email string, err error) error {
	code := CodeOf(err)
	s.metrics.Submission(strings.ToLower(string(code)))
	s.log.Info("submission rejected",
		zap.String("stage", string(stage)),
		zap.String("code", string(code)),
		zap.String("candidate", email))
	span.SetAttributes(attribute.String("rejected", string(code)))
	return err
}

func (s *Service) fail(span trace.Span, err error) error {
	s.log.Error("record store failure", zap.Error(err))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// publish is best effort: the state change is already durable.
func (s *Service) publish(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("event publish failed", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
	}
}
