package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cityair/cityair-export/internal/api/models"
	"github.com/cityair/cityair-export/internal/api/response"
	"github.com/cityair/cityair-export/internal/atmos"
	"github.com/cityair/cityair-export/internal/export"
	"github.com/cityair/cityair-export/internal/pollutant"
	"github.com/cityair/cityair-export/internal/worker"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler handles export job submission, progress polling and
// report download.
type ExportHandler struct {
	pollutants *pollutant.Registry
	registry   *worker.Registry
	queue      *worker.Queue
	exportDir  string
}

// NewExportHandler creates a new ExportHandler. exportDir is the
// directory finished reports are written to and served from.
func NewExportHandler(reg *pollutant.Registry, jobs *worker.Registry, queue *worker.Queue, exportDir string) *ExportHandler {
	return &ExportHandler{
		pollutants: reg,
		registry:   jobs,
		queue:      queue,
		exportDir:  exportDir,
	}
}

// CreateExport handles POST /v1/exports - validates the request, creates
// a job and enqueues it. Responds 202 with a Location header pointing at
// the progress endpoint.
func (h *ExportHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var body models.ExportCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := h.validate(body); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "request validation failed", fieldErrors)
		return
	}

	jobID := "exp_" + uuid.New().String()[:22]
	file := fmt.Sprintf("city_air_quality_%s_%s.xlsx", body.Aggregation, uuid.New().String()[:8])

	req := export.Request{
		Start:       body.Start,
		End:         body.End,
		Aggregation: body.Aggregation,
		Cities:      body.Cities,
		Pollutants:  body.Pollutants,
		Gaps:        body.Gaps,
		GapValue:    body.GapValue,
	}
	if req.Gaps == 0 {
		req.Gaps = export.DefaultGaps
	}
	if req.GapValue == "" {
		req.GapValue = export.DefaultGapValue
	}

	job := h.registry.Create(jobID, file)

	err := h.queue.Enqueue(worker.Task{
		JobID:   jobID,
		OutPath: filepath.Join(h.exportDir, file),
		Request: req,
	})
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			h.registry.Fail(jobID, "export queue is full")
			response.ServiceUnavailable(w, r, "export queue is full, try again later")
			return
		}
		h.registry.Fail(jobID, err.Error())
		response.InternalError(w, r, "failed to enqueue export job")
		return
	}

	location := "/v1/exports/" + jobID + "/progress"
	response.Accepted(w, r, location, models.ExportJob{
		JobID:     job.ID,
		File:      job.File,
		Status:    string(job.Status),
		CreatedAt: models.Timestamp(job.CreatedAt),
	})
}

// validate checks the request body and collects field errors, carrying
// the offending values so clients can fix them without guessing.
func (h *ExportHandler) validate(body models.ExportCreateRequest) []models.FieldError {
	var fieldErrors []models.FieldError

	start, err := time.Parse(export.TimeLayout, body.Start)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "start",
			Message: fmt.Sprintf("invalid date %q, expected format %s", body.Start, export.TimeLayout),
		})
	}
	end, err := time.Parse(export.TimeLayout, body.End)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "end",
			Message: fmt.Sprintf("invalid date %q, expected format %s", body.End, export.TimeLayout),
		})
	} else if !start.IsZero() && end.Before(start) {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "end",
			Message: "end must not be before start",
		})
	}

	if _, err := atmos.ParseAggregation(body.Aggregation); err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "aggregation",
			Message: fmt.Sprintf("unsupported aggregation %q, expected one of 15min, hourly, daily, monthly, yearly", body.Aggregation),
		})
	}

	if len(body.Cities) == 0 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "cities",
			Message: "at least one city is required",
		})
	}

	if len(body.Pollutants) == 0 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "pollutants",
			Message: "at least one pollutant is required",
		})
	}
	for _, code := range body.Pollutants {
		if !h.pollutants.Supported(code) {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "pollutants",
				Message: fmt.Sprintf("unsupported pollutant %q", code),
			})
		}
	}

	if body.Gaps < 0 {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "gaps",
			Message: "gaps must not be negative",
		})
	}

	return fieldErrors
}

// GetProgress handles GET /v1/exports/{jobId}/progress. Unknown ids are
// reported at progress 0 rather than 404 so pollers that race job
// creation or outlive the retention window see a consistent shape.
func (h *ExportHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, ok := h.registry.Get(jobID)
	if !ok {
		response.JSON(w, r, http.StatusOK, models.ExportProgress{
			JobID:    jobID,
			Progress: 0,
			Status:   "unknown",
		})
		return
	}

	response.JSON(w, r, http.StatusOK, models.ExportProgress{
		JobID:    job.ID,
		Progress: job.Progress,
		Status:   string(job.Status),
		Reason:   job.Reason,
	})
}

// Download handles GET /v1/exports/download?file=... and streams a
// finished report. The file name must be a bare name inside the export
// directory.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("file")
	if name == "" {
		response.BadRequest(w, r, "file query parameter is required", nil)
		return
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		response.BadRequest(w, r, "file must be a bare file name", nil)
		return
	}

	path := filepath.Join(h.exportDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		response.NotFound(w, r, fmt.Sprintf("report %q not found", name))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}
