package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ledgerimport/internal/logging"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// Service owns the import lifecycle: accepting uploads as ImportJobs and
// running them to completion.
type Service struct {
	jobs     JobRepository
	docs     DocumentStore
	registry *Registry

	defaultLocale     string
	defaultDateFormat string
	maxFileSize       int64
	styler            sheet.Styler
	now               func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaults sets the locale and date format used when a request omits them.
func WithDefaults(locale, dateFormat string) ServiceOption {
	return func(s *Service) {
		s.defaultLocale = locale
		s.defaultDateFormat = dateFormat
	}
}

// WithMaxFileSize rejects larger uploads in Submit. Zero means unlimited.
func WithMaxFileSize(n int64) ServiceOption {
	return func(s *Service) { s.maxFileSize = n }
}

// WithStatusStyler overrides how status cells are styled.
func WithStatusStyler(st sheet.Styler) ServiceOption {
	return func(s *Service) { s.styler = st }
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(jobs JobRepository, docs DocumentStore, registry *Registry, opts ...ServiceOption) *Service {
	s := &Service{
		jobs:              jobs,
		docs:              docs,
		registry:          registry,
		defaultLocale:     "en",
		defaultDateFormat: "dd MMMM yyyy",
		styler:            sheet.DefaultStyler{},
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the handler registry.
func (s *Service) Registry() *Registry { return s.registry }

// SubmitRequest is an uploaded workbook waiting to become a job.
type SubmitRequest struct {
	FileName   string
	EntityType string
	Locale     string
	DateFormat string
	Attributes map[string]string
	Data       []byte
}

// Submit validates an upload, stores the document and creates its job.
// The job is not run; callers enqueue it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*ImportJob, error) {
	entity, err := ParseEntityType(req.EntityType)
	if err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidRequest)
	}
	if s.maxFileSize > 0 && int64(len(req.Data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: file too large (%d bytes, limit %d)", ErrInvalidRequest, len(req.Data), s.maxFileSize)
	}

	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = s.defaultLocale
	}
	if _, err := sheet.ParseLocale(locale); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	dateFormat := strings.TrimSpace(req.DateFormat)
	if dateFormat == "" {
		dateFormat = s.defaultDateFormat
	}
	if _, err := sheet.DateLayout(dateFormat); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = string(entity) + ".xlsx"
	}

	docID, err := s.docs.Create(ctx, Document{
		FileName:    fileName,
		ContentType: sheet.ContentType,
		Data:        req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	job := &ImportJob{
		ID:         uuid.New().String(),
		DocumentID: docID,
		FileName:   fileName,
		EntityType: entity,
		Locale:     locale,
		DateFormat: dateFormat,
		Attributes: req.Attributes,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	logging.WithFields(ctx, "job_id", job.ID, "entity", job.EntityType).
		Info("import job created", "file", fileName, "bytes", len(req.Data))
	return job, nil
}

// RunImport runs one job to completion:
//
//  1. load the job (ErrJobNotFound is fatal); a completed job is not run again
//  2. resolve the entity's handler (ErrUnknownEntityType is fatal)
//  3. load and open the document, run the handler
//  4. write the annotated workbook back over the upload
//  5. record counters and completion time on the job
//
// Row failures are part of the returned Outcome, not errors. Any error once
// the handler has started wraps ErrRunInterrupted.
func (s *Service) RunImport(ctx context.Context, jobID string) (Outcome, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load job %s: %w", jobID, err)
	}

	logger := logging.WithFields(ctx, "job_id", job.ID, "entity", job.EntityType)
	if job.Completed() {
		logger.Info("import already completed", "completed_at", job.CompletedAt)
		return Outcome{SuccessCount: job.SuccessCount, ErrorCount: job.ErrorCount}, nil
	}

	handler, err := s.registry.Lookup(job.EntityType)
	if err != nil {
		return Outcome{}, fmt.Errorf("job %s: %w", jobID, err)
	}

	start := s.now()
	logger.Info("import started", "document_id", job.DocumentID)

	data, err := s.docs.Load(ctx, job.DocumentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load document %s: %w", job.DocumentID, err)
	}
	wb, err := sheet.Open(data, sheet.WithStyler(s.styler))
	if err != nil {
		return Outcome{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	defer wb.Close()

	outcome, err := handler.Process(ctx, wb, Options{
		Locale:     job.Locale,
		DateFormat: job.DateFormat,
		Attributes: job.Attributes,
	})
	switch {
	case err == nil:
	case IsFatal(err):
		return outcome, fmt.Errorf("job %s: %w", jobID, err)
	default:
		return outcome, interrupted(jobID, err)
	}

	// The rows are submitted; the results are written even if ctx ends.
	wctx := context.WithoutCancel(ctx)
	completed := s.now().UTC()
	job.SuccessCount = outcome.SuccessCount
	job.ErrorCount = outcome.ErrorCount
	job.CompletedAt = &completed

	docErr := s.writeDocument(wctx, job, wb)
	if err := s.jobs.Save(wctx, job); err != nil {
		return outcome, interrupted(jobID, errors.Join(docErr, fmt.Errorf("save job: %w", err)))
	}
	if docErr != nil {
		return outcome, interrupted(jobID, docErr)
	}

	logger.Info("import completed",
		"success", outcome.SuccessCount,
		"errors", outcome.ErrorCount,
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)
	return outcome, nil
}

func (s *Service) writeDocument(ctx context.Context, job *ImportJob, wb *sheet.Workbook) error {
	annotated, err := wb.Bytes()
	if err != nil {
		return fmt.Errorf("serialize workbook: %w", err)
	}
	if err := s.docs.Update(ctx, job.DocumentID, annotated, DocumentMeta{
		FileName:     job.FileName,
		ContentType:  sheet.ContentType,
		EntityType:   job.EntityType,
		SuccessCount: job.SuccessCount,
		ErrorCount:   job.ErrorCount,
	}); err != nil {
		return fmt.Errorf("update document %s: %w", job.DocumentID, err)
	}
	return nil
}

func interrupted(jobID string, err error) error {
	return fmt.Errorf("job %s: %w: %w", jobID, ErrRunInterrupted, err)
}

// Job returns one job.
func (s *Service) Job(ctx context.Context, id string) (*ImportJob, error) {
	return s.jobs.FindByID(ctx, id)
}

// PendingJob returns a job that has not run yet, or ErrJobCompleted.
func (s *Service) PendingJob(ctx context.Context, id string) (*ImportJob, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Completed() {
		return job, fmt.Errorf("%w: %s", ErrJobCompleted, id)
	}
	return job, nil
}

// Jobs lists jobs, newest first.
func (s *Service) Jobs(ctx context.Context, filter JobFilter) ([]ImportJob, error) {
	return s.jobs.List(ctx, filter)
}

// Document returns a job's current workbook: the upload before the run,
// the annotated copy after.
func (s *Service) Document(ctx context.Context, jobID string) (*ImportJob, []byte, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.docs.Load(ctx, job.DocumentID)
	if err != nil {
		return job, nil, fmt.Errorf("load document %s: %w", job.DocumentID, err)
	}
	return job, data, nil
}

// IsFatal reports whether retrying the run cannot help: it failed before any
// row was processed, or after rows were already submitted.
func IsFatal(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrUnknownEntityType) ||
		errors.Is(err, ErrRunInterrupted) ||
		errors.Is(err, sheet.ErrSheetNotFound) ||
		errors.Is(err, sheet.ErrInvalidWorkbook)
}
