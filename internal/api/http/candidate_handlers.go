package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/mind-engage/placement-exam/internal/exam"
)

const multipartMemory = 8 << 20

// RegisterCandidateHandler accepts either a JSON body or a multipart form
// whose optional "resume" part is the resume file.
func RegisterCandidateHandler(svc Service, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		var (
			in     exam.CandidateInput
			resume *exam.Resume
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			if err := r.ParseMultipartForm(multipartMemory); err != nil {
				formError(w, err)
				return
			}
			defer r.MultipartForm.RemoveAll()
			in = candidateFromForm(r)
			f, hdr, err := r.FormFile("resume")
			switch {
			case errors.Is(err, http.ErrMissingFile):
			case err != nil:
				badRequest(w, "invalid resume upload")
				return
			default:
				defer f.Close()
				resume = &exam.Resume{
					Filename:    hdr.Filename,
					ContentType: hdr.Header.Get("Content-Type"),
					Size:        hdr.Size,
					Body:        f,
				}
			}
		case "application/x-www-form-urlencoded":
			if err := r.ParseForm(); err != nil {
				formError(w, err)
				return
			}
			in = candidateFromForm(r)
		default:
			var req struct {
				exam.CandidateInput
				Backlogs any `json:"backlogs"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				formError(w, err)
				return
			}
			in = req.CandidateInput
			in.Backlogs = backlogsOf(req.Backlogs)
		}

		c, err := svc.RegisterCandidate(r.Context(), in, resume)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func ListCandidatesHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListCandidates(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ResumeHandler streams a stored resume back under its original file name.
func ResumeHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := pathParam(r, "name")
		rc, err := svc.OpenResume(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}
		defer rc.Close()

		name = path.Base(name)
		ct := mime.TypeByExtension(path.Ext(name))
		if ct == "" {
			ct = "application/octet-stream"
		}
		original := name
		if _, after, ok := strings.Cut(name, "_"); ok && after != "" {
			original = after
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": original}))
		_, _ = io.Copy(w, rc)
	}
}

func candidateFromForm(r *http.Request) exam.CandidateInput {
	return exam.CandidateInput{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Phone:    r.FormValue("phone"),
		College:  r.FormValue("college"),
		Branch:   r.FormValue("branch"),
		Gender:   r.FormValue("gender"),
		Backlogs: backlogsOf(r.FormValue("backlogs")),
	}
}

// backlogsOf reads a backlog count from a form or JSON value; anything
// unparseable counts as zero.
func backlogsOf(v any) int {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0
		}
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

func formError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Code: exam.CodeInvalidInput, Error: "upload too large"})
		return
	}
	badRequest(w, "invalid registration data")
}
