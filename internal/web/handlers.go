package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/logging"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
	"github.com/JonMunkholm/ledgerimport/internal/web/templates"
)

// formOverhead is allowed on top of the workbook size for multipart framing
// and the other form fields.
const formOverhead = 1 << 20

// jobResponse is an ImportJob plus its status and links.
type jobResponse struct {
	*core.ImportJob
	Status      string `json:"status"`
	DocumentURL string `json:"document_url"`
	PageURL     string `json:"page_url"`
	EnqueueURL  string `json:"enqueue_url,omitempty"`
}

func newJobResponse(job *core.ImportJob) jobResponse {
	resp := jobResponse{
		ImportJob:   job,
		Status:      job.Status(),
		DocumentURL: "/api/imports/" + job.ID + "/document",
		PageURL:     "/imports/" + job.ID,
	}
	if !job.Completed() {
		resp.EnqueueURL = "/api/imports/" + job.ID + "/enqueue"
	}
	return resp
}

// queueFailure is the 503 body when a job was stored but not queued. The
// job stays pending; POST its enqueue_url to queue it again.
type queueFailure struct {
	ErrorResponse
	Job jobResponse `json:"job"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.limiter != nil {
		body["imports"] = s.limiter.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Registry().Layouts())
}

// handleDownloadTemplate returns an empty workbook with the entity's headers.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	entity, err := core.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	handler, err := s.service.Registry().Lookup(entity)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	data, err := core.Template(handler.Layout())
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeWorkbook(w, string(entity)+"-template.xlsx", data)
}

// handleSubmit accepts a multipart upload (field "file", optional "locale",
// "date_format" and a JSON object "attributes"), creates the job and queues
// it. The response is 202 with the job.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, r, fmt.Errorf("%w: file too large or invalid form", core.ErrInvalidRequest), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: no file provided", core.ErrInvalidRequest), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	var attrs map[string]string
	if raw := r.FormValue("attributes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			respondError(w, r, fmt.Errorf("%w: invalid attributes: %w", core.ErrInvalidRequest, err), http.StatusBadRequest)
			return
		}
	}

	job, err := s.service.Submit(r.Context(), core.SubmitRequest{
		FileName:   header.Filename,
		EntityType: chi.URLParam(r, "entityType"),
		Locale:     r.FormValue("locale"),
		DateFormat: r.FormValue("date_format"),
		Attributes: attrs,
		Data:       data,
	})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if err := s.queue.Enqueue(r.Context(), job.ID); err != nil {
		logging.WithFields(r.Context(), "job_id", job.ID).Error("enqueue import", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, queueFailure{
			ErrorResponse: newErrorResponse(core.MapError(err)),
			Job:           newJobResponse(job),
		})
		return
	}

	writeJSON(w, http.StatusAccepted, newJobResponse(job))
}

// handleEnqueue queues a pending job again, for uploads whose first enqueue
// failed. Completed jobs are refused with 409.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.PendingJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	if err := s.queue.Enqueue(r.Context(), job.ID); err != nil {
		respondError(w, r, fmt.Errorf("queue import %s: %w", job.ID, err), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, newJobResponse(job))
}

// handleListJobs lists jobs, newest first. Query: entity, limit.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var filter core.JobFilter
	if e := r.URL.Query().Get("entity"); e != "" {
		entity, err := core.ParseEntityType(e)
		if err != nil {
			respondError(w, r, err, http.StatusBadRequest)
			return
		}
		filter.EntityType = entity
	}
	filter.Limit = parseIntParam(r, "limit", 0)

	jobs, err := s.service.Jobs(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	out := make([]jobResponse, len(jobs))
	for i := range jobs {
		out[i] = newJobResponse(&jobs[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(job))
}

// handleDownloadDocument returns the job's workbook, annotated once the run
// has completed.
func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	job, data, err := s.service.Document(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeWorkbook(w, job.FileName, data)
}

func (s *Server) handleJobPage(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.JobPage(job).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render job page", "error", err)
	}
}

func writeWorkbook(w http.ResponseWriter, name string, data []byte) {
	name = strings.ReplaceAll(name, `"`, "")
	w.Header().Set("Content-Type", sheet.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// parseIntParam parses a positive integer query parameter with a default.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
