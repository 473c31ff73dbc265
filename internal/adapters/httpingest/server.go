// Package httpingest is the HTTP face of the service: a readiness probe on GET
// and a fire-and-forget burst submission endpoint on POST.
package httpingest

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ghalamif/accelsentry/internal/adapters/observability"
	"github.com/ghalamif/accelsentry/internal/domain"
	"github.com/ghalamif/accelsentry/internal/ports"
)

// DefaultMaxBodyBytes bounds a single POST body.
const DefaultMaxBodyBytes = 1 << 20

// Submitter accepts decoded bursts for asynchronous processing.
type Submitter interface {
	Submit(b *domain.Burst) bool
}

type Handler struct {
	ready   *Readiness
	submit  Submitter
	obs     ports.Observability
	maxBody int64
	now     func() time.Time
	access  *zap.Logger
}

func NewHandler(ready *Readiness, submit Submitter, obs ports.Observability, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Handler{
		ready:   ready,
		submit:  submit,
		obs:     obs,
		maxBody: maxBody,
		now:     time.Now,
	}
}

// WithAccessLog enables per-request debug logging on the router.
func (h *Handler) WithAccessLog(l *zap.Logger) *Handler {
	h.access = l
	return h
}

// Router serves the probe and the submission endpoint on every path.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if h.access != nil {
		r.Use(AccessLog(h.access))
	}

	r.Get("/*", h.Probe)
	r.Head("/*", h.Probe)
	r.Post("/*", h.Submit)
	return r
}

// Probe writes "1" when ready and "0" otherwise.
func (h *Handler) Probe(w http.ResponseWriter, r *http.Request) {
	body := h.ready.Body()
	w.Header().Set("Content-Type", "text/plain; charset=us-ascii")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

// Submit always answers 204 No Content. Decode and downstream failures are
// only visible in logs and metrics.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	w.WriteHeader(http.StatusNoContent)

	reqID := middleware.GetReqID(r.Context())
	if readErr != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(readErr, &tooLarge) {
			h.obs.RecordDrop(nil, errors.Join(domain.ErrDecode, readErr))
			return
		}
		h.obs.LogError("read_body_failed", readErr, ports.Field{Key: "request_id", Value: reqID})
		return
	}

	b, err := DecodeBurst(body)
	if err != nil {
		h.obs.RecordDrop(nil, err)
		return
	}
	b.ID = uuid.NewString()
	b.ReceivedAt = h.now()

	h.obs.IncCounter(observability.BurstsReceived, 1)
	if !h.submit.Submit(b) {
		h.obs.LogInfo("burst_not_queued",
			ports.Field{Key: "burst_id", Value: b.ID},
			ports.Field{Key: "request_id", Value: reqID})
	}
}
