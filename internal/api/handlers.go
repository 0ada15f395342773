package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/xray-ledger/internal/models"
	"github.com/sells-group/xray-ledger/internal/queue"
)

// maxUploadBytes caps a multipart submission body.
const maxUploadBytes = 64 << 20

// RunCreator persists a freshly accepted run. *store.RunRepository
// satisfies it; a nil creator skips auditing.
type RunCreator interface {
	CreateRun(ctx context.Context, run *models.RunRequest) error
}

type Handlers struct {
	queue     *queue.RunQueue
	runs      RunCreator
	uploadDir string
	logger    *slog.Logger
}

func NewHandlers(q *queue.RunQueue, runs RunCreator, uploadDir string, logger *slog.Logger) *Handlers {
	return &Handlers{
		queue:     q,
		runs:      runs,
		uploadDir: uploadDir,
		logger:    logger.With("component", "api"),
	}
}

// SubmissionRequest is the payload for both submission endpoints.
type SubmissionRequest struct {
	Brands []models.Brand `json:"brands"`
}

// SubmissionResponse reports what was accepted.
type SubmissionResponse struct {
	OK      bool               `json:"ok"`
	Message string             `json:"message"`
	RunID   string             `json:"run_id,omitempty"`
	Payload *models.RunRequest `json:"payload,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Health handles liveness checks.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ScraperStatus reports whether a run is active and how many are queued.
func (h *Handlers) ScraperStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"running":    h.queue.IsRunning(),
		"queue_size": h.queue.Size(),
	})
}

// CreateSubmission accepts a JSON run submission and enqueues it.
func (h *Handlers) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := h.buildRun(req, nil)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.enqueue(w, r, run)
}

// CreateSubmissionWithFiles accepts a multipart submission: a brands_data
// JSON field plus the competitor CSV files the products reference.
func (h *Handlers) CreateSubmissionWithFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	brandsData := r.FormValue("brands_data")
	if brandsData == "" {
		h.respondError(w, http.StatusBadRequest, "brands_data is required")
		return
	}

	var req SubmissionRequest
	if err := json.Unmarshal([]byte(brandsData), &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in brands_data")
		return
	}

	csvPaths := map[string]string{}
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["csv_files"] {
			path, err := h.saveUpload(header.Filename, func() (io.ReadCloser, error) {
				return header.Open()
			})
			if err != nil {
				h.logger.Error("failed to store csv upload", "file", header.Filename, "error", err)
				h.respondError(w, http.StatusInternalServerError, "failed to store uploaded file")
				return
			}
			csvPaths[header.Filename] = path
		}
	}

	run, err := h.buildRun(req, csvPaths)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, path := range csvPaths {
		run.UploadedFiles = append(run.UploadedFiles, path)
	}

	h.enqueue(w, r, run)
}

// buildRun validates and normalizes a submission. Countries outside the
// supported tab set are dropped; brands left without countries are
// dropped too.
func (h *Handlers) buildRun(req SubmissionRequest, csvPaths map[string]string) (*models.RunRequest, error) {
	if len(req.Brands) == 0 {
		return nil, fmt.Errorf("no brands provided")
	}

	run := &models.RunRequest{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}

	for _, brand := range req.Brands {
		segment, err := models.ParseSegment(string(brand.Segment))
		if err != nil {
			return nil, err
		}

		var countries []models.Country
		for _, country := range brand.Countries {
			name := models.NormalizeCountry(country.Name)
			if !models.IsValidCountry(name) {
				h.logger.Warn("dropping unsupported country", "brand", brand.Brand, "country", country.Name)
				continue
			}

			products := make([]models.Product, len(country.Products))
			copy(products, country.Products)
			for i := range products {
				if products[i].CSVFile != "" && csvPaths != nil {
					products[i].CSVFilePath = csvPaths[products[i].CSVFile]
				}
			}

			countries = append(countries, models.Country{Name: name, Products: products})
		}

		if len(countries) > 0 {
			run.Brands = append(run.Brands, models.Brand{
				Brand:     brand.Brand,
				Segment:   segment,
				Countries: countries,
			})
		}
	}

	if len(run.Brands) == 0 {
		return nil, fmt.Errorf("no valid countries found")
	}

	return run, nil
}

func (h *Handlers) enqueue(w http.ResponseWriter, r *http.Request, run *models.RunRequest) {
	if h.runs != nil {
		if err := h.runs.CreateRun(r.Context(), run); err != nil {
			h.logger.Error("failed to audit run", "run_id", run.ID, "error", err)
		}
	}

	wasRunning := h.queue.IsRunning()
	if err := h.queue.Push(run); err != nil {
		h.logger.Error("failed to enqueue run", "run_id", run.ID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to add to queue")
		return
	}

	message := "Run queued, processing starts immediately"
	if wasRunning {
		message = "Run queued, will start processing once the current run finishes"
	}

	h.logger.Info("run accepted", "run_id", run.ID,
		"brands", len(run.Brands), "products", run.ProductCount())

	h.respondJSON(w, http.StatusOK, SubmissionResponse{
		OK:      true,
		Message: message,
		RunID:   run.ID,
		Payload: run,
	})
}

// saveUpload copies one uploaded CSV into the upload directory.
func (h *Handlers) saveUpload(filename string, open func() (io.ReadCloser, error)) (string, error) {
	src, err := open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.uploadDir, "competitors-*-"+filepath.Base(filename))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	return dst.Name(), nil
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, SubmissionResponse{OK: false, Error: message})
}
