package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/placement-exam/internal/exam"
)

const maxSubmissionBytes = 1 << 20

// GetExamHandler serves GET /api/questions/{section}?email=. The ETag is a
// hash of the response body, so a candidate reloading an unchanged exam
// gets 304.
func GetExamHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		section := pathParam(r, "section")
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			badRequest(w, "email parameter is required")
			return
		}
		qs, err := svc.GetExam(r.Context(), section, email)
		if err != nil {
			writeError(w, err)
			return
		}

		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(qs); err != nil {
			writeError(w, err)
			return
		}
		etag := `"` + strconv.FormatUint(xxhash.Sum64(buf.Bytes()), 16) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "private, no-cache")
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(buf.Bytes())
	}
}

func SubmitExamHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)
		var sub exam.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Code: exam.CodeInvalidInput, Error: "submission too large"})
				return
			}
			badRequest(w, "invalid submission data")
			return
		}
		res, err := svc.SubmitExam(r.Context(), &sub)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// SearchResultsHandler serves GET /api/result/search?email=&minPercentage=.
func SearchResultsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := exam.ResultFilter{Email: q.Get("email")}
		if raw := strings.TrimSpace(q.Get("minPercentage")); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(v) {
				badRequest(w, "minPercentage must be a number")
				return
			}
			f.MinPercentage = v
		}
		list, err := svc.SearchResults(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetResultByEmailHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetResultByIdentity(r.Context(), pathParam(r, "email"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// pathParam returns the decoded URL parameter; chi hands back the raw
// segment when the request path was escaped.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
