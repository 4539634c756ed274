package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/placement-exam/internal/exam"
	"github.com/mind-engage/placement-exam/internal/metrics"
	"github.com/mind-engage/placement-exam/internal/telemetry"
)

// Service is the exam surface the handlers need; *exam.Service implements it.
type Service interface {
	GetExam(ctx context.Context, section, email string) ([]exam.PublicQuestion, error)
	SubmitExam(ctx context.Context, sub *exam.Submission) (exam.Result, error)
	SearchResults(ctx context.Context, f exam.ResultFilter) ([]exam.Result, error)
	GetResultByIdentity(ctx context.Context, email string) (exam.Result, error)
	RegisterCandidate(ctx context.Context, in exam.CandidateInput, r *exam.Resume) (exam.Candidate, error)
	ListCandidates(ctx context.Context) ([]exam.Candidate, error)
	OpenResume(ctx context.Context, name string) (io.ReadCloser, error)
}

type RouterOptions struct {
	Service        Service
	Metrics        *metrics.Metrics
	CORSOrigins    []string
	RatePerMinute  int
	RateBurst      int
	MaxUploadBytes int64
	Ready          func(context.Context) error
	AccessLog      bool

	// Events enables the replication feed; nil leaves it unrouted.
	Events EventFeed
}

func NewRouter(o RouterOptions) chi.Router {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 50 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if o.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(telemetry.Middleware)
	r.Use(o.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"Content-Length", "ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(NotFoundHandler)

	r.Get("/", IndexHandler)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", ReadyHandler(o.Ready))
	r.Method(http.MethodGet, "/metrics", o.Metrics.Handler())

	r.Route("/api", func(ar chi.Router) {
		ar.Use(RateLimiter(o.RatePerMinute, o.RateBurst))

		ar.Get("/health", HealthHandler)

		ar.Get("/questions/{section}", GetExamHandler(o.Service))
		ar.Post("/result/submit", SubmitExamHandler(o.Service))
		ar.Get("/result/search", SearchResultsHandler(o.Service))
		ar.Get("/result/email/{email}", GetResultByEmailHandler(o.Service))

		ar.Route("/candidate", func(cr chi.Router) {
			cr.Post("/register", RegisterCandidateHandler(o.Service, o.MaxUploadBytes))
			cr.Get("/all", ListCandidatesHandler(o.Service))
			cr.Get("/resume/{name}", ResumeHandler(o.Service))
		})

		if o.Events != nil {
			ar.Get("/sync/events", EventsHandler(o.Events))
		}
	})
	return r
}
