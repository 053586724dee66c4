package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buddyd/internal/supervisor"
	"buddyd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Start(ctx context.Context, slot string, req supervisor.StartRequest) (supervisor.StartOutcome, error)
	Stop(ctx context.Context, slot string) (supervisor.StopOutcome, error)
	Status(slot string) (supervisor.StatusResult, error)
	LastModel(slot string) (string, error)
	Slots() types.SlotsResponse
	Models(ctx context.Context, slot string) (types.ModelsResponse, error)
	Usage(ctx context.Context, slot string) (types.UsageResponse, error)
	GetSettings(ctx context.Context, keys []string) (map[string]string, error)
	SetSettings(ctx context.Context, values map[string]string) error
	Ready() bool
}

// requestID tags every request with an id, honoring an incoming X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	r.Get("/slots", h.slots)
	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.putSettings)

	r.Route("/{slot}", func(r chi.Router) {
		r.Post("/start", h.start)
		r.Post("/stop", h.stop)
		r.Get("/status", h.status)
		r.Get("/lastModel", h.lastModel)
		r.Get("/models", h.models)
		r.Get("/usage", h.usage)
	})

	return r
}

type handlers struct {
	svc Service
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := zlog.Warn()
	if status >= 500 {
		ev = zlog.Error()
	}
	ev.Str("path", r.URL.Path).Int("status", status).Err(err).Msg("request failed")
	writeJSONError(w, status, err.Error())
}

// start godoc
// @Summary      Start a slot
// @Description  Spawns the slot's model server and blocks until it reports readiness. Returns immediately when the slot is already running or uses an external provider.
// @Tags         slots
// @Accept       json
// @Produce      json
// @Param        slot  path  string              true  "Slot name"  Enums(chat, image, tts, stt)
// @Param        body  body  types.StartRequest  true  "Model to serve"
// @Success      200  {object}  types.MessageResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      422  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Router       /{slot}/start [post]
func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.GPULayers != nil && *req.GPULayers < 0 {
		writeJSONError(w, http.StatusBadRequest, "gpu_layers must not be negative")
		return
	}

	// Shutdown and client disconnect both abort a pending start.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	begin := time.Now()
	out, err := h.svc.Start(ctx, chi.URLParam(r, "slot"), supervisor.StartRequest{ModelPath: req.ModelPath, GPULayers: req.GPULayers})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.fail(w, r, err)
		return
	}
	zlog.Debug().Str("slot", chi.URLParam(r, "slot")).Dur("dur", time.Since(begin)).Bool("already_running", out.AlreadyRunning).Msg("start handled")
	writeJSON(w, http.StatusOK, types.MessageResponse{
		Message:        out.Message,
		Model:          out.Model,
		PID:            out.PID,
		AlreadyRunning: out.AlreadyRunning,
		External:       out.External,
	})
}

// stop godoc
// @Summary  Stop a slot
// @Tags     slots
// @Produce  json
// @Param    slot  path  string  true  "Slot name"
// @Success  200  {object}  types.MessageResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /{slot}/stop [post]
func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Stop(r.Context(), chi.URLParam(r, "slot"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: out.Message})
}

// status godoc
// @Summary  Slot readiness
// @Tags     slots
// @Produce  json
// @Param    slot  path  string  true  "Slot name"
// @Success  200  {object}  types.StatusResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /{slot}/status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(chi.URLParam(r, "slot"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{IsRunning: st.IsRunning})
}

// lastModel godoc
// @Summary  Most recently requested model
// @Tags     slots
// @Produce  json
// @Param    slot  path  string  true  "Slot name"
// @Success  200  {object}  types.LastModelResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /{slot}/lastModel [get]
func (h *handlers) lastModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.LastModel(chi.URLParam(r, "slot"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LastModelResponse{LastModel: m})
}

// models godoc
// @Summary  List model files for a slot
// @Tags     models
// @Produce  json
// @Param    slot  path  string  true  "Slot name"
// @Success  200  {object}  types.ModelsResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /{slot}/models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Models(r.Context(), chi.URLParam(r, "slot"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// usage godoc
// @Summary  Resource usage of a slot's process tree
// @Tags     slots
// @Produce  json
// @Param    slot  path  string  true  "Slot name"
// @Success  200  {object}  types.UsageResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /{slot}/usage [get]
func (h *handlers) usage(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Usage(r.Context(), chi.URLParam(r, "slot"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// slots godoc
// @Summary  Snapshot of every slot
// @Tags     slots
// @Produce  json
// @Success  200  {object}  types.SlotsResponse
// @Router   /slots [get]
func (h *handlers) slots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Slots())
}

// getSettings godoc
// @Summary  Read settings
// @Tags     settings
// @Produce  json
// @Param    keys  query  string  false  "Comma-separated keys; all known keys when omitted"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  types.ErrorResponse
// @Router   /settings [get]
func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	vals, err := h.svc.GetSettings(r.Context(), splitCSV(r.URL.Query().Get("keys")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vals)
}

// putSettings godoc
// @Summary  Update settings
// @Tags     settings
// @Accept   json
// @Produce  json
// @Param    body  body  map[string]string  true  "Key/value pairs"
// @Success  200  {object}  map[string]string
// @Failure  400  {object}  types.ErrorResponse
// @Router   /settings [put]
func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var vals map[string]string
	if err := json.NewDecoder(r.Body).Decode(&vals); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.svc.SetSettings(r.Context(), vals); err != nil {
		h.fail(w, r, err)
		return
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	out, err := h.svc.GetSettings(r.Context(), keys)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
