package exam

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/placement-exam/internal/records"
	"github.com/mind-engage/placement-exam/internal/storage"
)

const resumePrefix = "resumes/"

type CandidateInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	College  string `json:"college"`
	Branch   string `json:"branch"`
	Gender   string `json:"gender"`
	Backlogs int    `json:"backlogs"`
}

// Resume is an uploaded file. Body is read once.
type Resume struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// RegisterCandidate stores a new candidate and, when r is non-nil, its
// resume. The resume upload happens outside the candidates lock; a racing
// duplicate registration deletes the blob it wrote.
func (s *Service) RegisterCandidate(ctx context.Context, in CandidateInput, r *Resume) (Candidate, error) {
	ctx, span := tracer.Start(ctx, "exam.RegisterCandidate")
	defer span.End()

	email := strings.TrimSpace(in.Email)
	if email == "" {
		s.metrics.Registration("invalid_input")
		return Candidate{}, reject(CodeInvalidInput, "email is required")
	}
	if in.Backlogs < 0 {
		in.Backlogs = 0
	}

	existing, err := records.Load[Candidate](ctx, s.store, records.KindCandidate)
	if err != nil {
		return Candidate{}, s.fail(span, storeErr("load candidates", err))
	}
	if registered(existing, email) {
		s.metrics.Registration("already_registered")
		return Candidate{}, reject(CodeAlreadyRegistered, "email already registered")
	}

	var resumeName string
	if r != nil && r.Body != nil {
		resumeName, err = s.putResume(ctx, r)
		if err != nil {
			s.log.Error("resume upload failed", zap.String("candidate", email), zap.Error(err))
			span.RecordError(err)
			return Candidate{}, err
		}
	}

	unlock, err := s.locks.Lock(ctx, records.KindCandidate)
	if err != nil {
		s.dropResume(ctx, resumeName)
		return Candidate{}, s.fail(span, storeErr("lock candidates", err))
	}
	defer unlock()

	existing, err = records.Load[Candidate](ctx, s.store, records.KindCandidate)
	if err != nil {
		s.dropResume(ctx, resumeName)
		return Candidate{}, s.fail(span, storeErr("load candidates", err))
	}
	if registered(existing, email) {
		s.dropResume(ctx, resumeName)
		s.metrics.Registration("already_registered")
		return Candidate{}, reject(CodeAlreadyRegistered, "email already registered")
	}

	c := Candidate{
		ID:           nextCandidateID(existing),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		College:      strings.TrimSpace(in.College),
		Branch:       strings.TrimSpace(in.Branch),
		Gender:       strings.TrimSpace(in.Gender),
		Backlogs:     in.Backlogs,
		ResumeName:   resumeName,
		RegisteredAt: s.now().Unix(),
	}
	if err := records.Save(ctx, s.store, records.KindCandidate, append(existing, c)); err != nil {
		s.dropResume(ctx, resumeName)
		return Candidate{}, s.fail(span, storeErr("save candidates", err))
	}

	s.metrics.Registration("accepted")
	s.publish(ctx, Event{Type: EventCandidateRegistered, Key: NormalizeIdentity(email), Data: c})
	s.log.Info("candidate registered",
		zap.Int64("candidate_id", c.ID),
		zap.String("candidate", email),
		zap.Bool("resume", resumeName != ""))
	return c, nil
}

func (s *Service) ListCandidates(ctx context.Context) ([]Candidate, error) {
	ctx, span := tracer.Start(ctx, "exam.ListCandidates")
	defer span.End()

	out, err := records.Load[Candidate](ctx, s.store, records.KindCandidate)
	if err != nil {
		return nil, s.fail(span, storeErr("load candidates", err))
	}
	return out, nil
}

// OpenResume returns the stored resume called name. Only the base name is
// used, so callers cannot reach outside the resume prefix.
func (s *Service) OpenResume(ctx context.Context, name string) (io.ReadCloser, error) {
	base := path.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == "/" || base == ".." {
		return nil, reject(CodeInvalidInput, "resume name is required")
	}
	if s.blobs == nil {
		return nil, reject(CodeNotFound, "resume not found")
	}
	rc, err := s.blobs.Get(ctx, resumePrefix+base)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, reject(CodeNotFound, "resume not found")
		}
		return nil, storeErr("open resume", err)
	}
	return rc, nil
}

func (s *Service) putResume(ctx context.Context, r *Resume) (string, error) {
	if s.blobs == nil {
		return "", reject(CodeInvalidInput, "resume uploads are disabled")
	}
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(r.Filename), "\\", "/"))
	if base == "" || base == "." || base == "/" || base == ".." {
		base = "resume"
	}
	name := uuid.NewString() + "_" + base
	if _, err := s.blobs.Put(ctx, resumePrefix+name, r.Body, r.Size, r.ContentType); err != nil {
		return "", storeErr("store resume", err)
	}
	return name, nil
}

func (s *Service) dropResume(ctx context.Context, name string) {
	if name == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, resumePrefix+name); err != nil {
		s.log.Warn("orphaned resume left behind", zap.String("resume", name), zap.Error(err))
	}
}

func registered(existing []Candidate, email string) bool {
	key := NormalizeIdentity(email)
	for _, c := range existing {
		if NormalizeIdentity(c.Email) == key {
			return true
		}
	}
	return false
}

func nextCandidateID(existing []Candidate) int64 {
	var max int64
	for _, c := range existing {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1
}
