package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mind-engage/placement-exam/internal/grading"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	reg *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	assemblies    *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		assemblies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_assemblies_total",
				Help: "Exams assembled, by section bucket",
			},
			[]string{"section"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_submissions_total",
				Help: "Exam submissions, by outcome",
			},
			[]string{"outcome"},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candidate_registrations_total",
				Help: "Candidate registrations, by outcome",
			},
			[]string{"outcome"},
		),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.assemblies, m.submissions, m.registrations,
	)
	return m
}

// ExamAssembled counts one served exam. Raw section labels are bucketed so
// user input cannot grow the label set.
func (m *Metrics) ExamAssembled(section string) {
	if m == nil {
		return
	}
	label := "other"
	if s, ok := grading.Classify(section); ok {
		label = string(s)
	}
	m.assemblies.WithLabelValues(label).Inc()
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// Middleware records request count and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
