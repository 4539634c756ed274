package http

import (
	"context"
	"net/http"

	"github.com/mind-engage/placement-exam/internal/exam"
)

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK", "message": "Server is running"})
}

// ReadyHandler reports 503 while ready returns an error.
func ReadyHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func IndexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "Placement Exam API",
		"version": "1.0.0",
		"endpoints": map[string]any{
			"candidate": map[string]string{
				"register":         "POST /api/candidate/register",
				"getAllCandidates": "GET /api/candidate/all",
				"getResume":        "GET /api/candidate/resume/{name}",
			},
			"exam": map[string]string{
				"getQuestions":     "GET /api/questions/{section}?email=user@example.com",
				"submitExam":       "POST /api/result/submit",
				"searchResults":    "GET /api/result/search?email=...&minPercentage=...",
				"getResultByEmail": "GET /api/result/email/{email}",
			},
			"health":  "GET /api/health",
			"metrics": "GET /metrics",
		},
	})
}

func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Code: exam.CodeNotFound, Error: "route not found"})
}
