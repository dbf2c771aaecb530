package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/botica-pos/botica/internal/platform/httpx"
)

// JobPort enqueues an import for background processing.
type JobPort interface {
	EnqueueBatchImport(ctx context.Context, path string, actorID int64) error
}

// Handler accepts batch receipt CSVs. Small uploads run inline; with
// ?async=true the file is spooled to disk and processed by the worker.
type Handler struct {
	logger   *slog.Logger
	importer *Importer
	jobsCli  JobPort
	spoolDir string
}

func NewHandler(logger *slog.Logger, importer *Importer, jobsCli JobPort, spoolDir string) *Handler {
	return &Handler{logger: logger, importer: importer, jobsCli: jobsCli, spoolDir: spoolDir}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/imports/batches", h.importBatches)
}

const maxUploadBytes = 10 << 20

func (h *Handler) importBatches(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	defer body.Close()

	if r.URL.Query().Get("async") == "true" {
		h.importAsync(w, r, body)
		return
	}

	result, err := h.importer.Run(r.Context(), body, actorID(r))
	if err != nil {
		if errors.Is(err, ErrBadHeader) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		h.logger.Error("imports handler", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) importAsync(w http.ResponseWriter, r *http.Request, body io.Reader) {
	if h.jobsCli == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "background imports not configured")
		return
	}
	if err := os.MkdirAll(h.spoolDir, 0o755); err != nil {
		h.logger.Error("imports spool", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	name := fmt.Sprintf("batches-%s-%s.csv", time.Now().Format("20060102T150405"), uuid.NewString()[:8])
	path := filepath.Join(h.spoolDir, name)
	f, err := os.Create(path)
	if err != nil {
		h.logger.Error("imports spool", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(path)
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "reading upload: "+err.Error())
		return
	}
	if err := f.Close(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.jobsCli.EnqueueBatchImport(r.Context(), path, actorID(r)); err != nil {
		h.logger.Error("imports enqueue", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "queued", "file": name})
}

func actorID(r *http.Request) int64 {
	if v := r.Header.Get("X-Actor-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return 0
}
