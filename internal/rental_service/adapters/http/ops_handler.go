package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aradsms/rental_bot/internal/rental_service/domain"
)

// NumberReader is the read side of the number registry.
type NumberReader interface {
	Get(phone string) (domain.Number, error)
	List() []domain.Number
}

// EventHistory is the read side of the rental event journal.
type EventHistory interface {
	ListByPhone(ctx context.Context, phone string) ([]domain.RentalEvent, error)
}

// OpsHandler serves read-only registry snapshots for operators.
type OpsHandler struct {
	numbers  NumberReader
	history  EventHistory
	logger   *slog.Logger
	validate *validator.Validate
}

// NewOpsHandler builds the handler. history may be nil when no journal is configured.
func NewOpsHandler(numbers NumberReader, history EventHistory, logger *slog.Logger, validate *validator.Validate) *OpsHandler {
	return &OpsHandler{
		numbers:  numbers,
		history:  history,
		logger:   logger.With("handler", "ops"),
		validate: validate,
	}
}

// NewRouter mounts health, metrics and the registry snapshot routes.
// A non-empty jwtSecret puts the /v1 routes behind AuthMiddleware.
func NewRouter(h *OpsHandler, jwtSecret []byte) chi.Router {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)

	r.Get("/healthz", h.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1/numbers", func(r chi.Router) {
		if len(jwtSecret) > 0 {
			r.Use(AuthMiddleware(jwtSecret, h.logger))
		}
		r.Get("/", h.HandleListNumbers)
		r.Get("/{phone}", h.HandleGetNumber)
		if h.history != nil {
			r.Get("/{phone}/events", h.HandleListEvents)
		}
	})
	return r
}

func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListNumbers returns all numbers in registration order, optionally
// filtered by ?status=.
func (h *OpsHandler) HandleListNumbers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx)

	query := ListNumbersQuery{Status: r.URL.Query().Get("status")}
	if err := h.validate.StructCtx(ctx, query); err != nil {
		logger.WarnContext(ctx, "Invalid list numbers query", "error", err, "status", query.Status)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	numbers := h.numbers.List()
	resp := ListNumbersResponse{Numbers: make([]NumberResponse, 0, len(numbers))}
	for _, n := range numbers {
		if query.Status != "" && n.Status.String() != query.Status {
			continue
		}
		resp.Numbers = append(resp.Numbers, toNumberResponse(n))
	}
	resp.Total = len(resp.Numbers)
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetNumber returns one number. The path phone accepts any shape the
// bot accepts from sellers.
func (h *OpsHandler) HandleGetNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx)

	phone, err := domain.NormalizePhone(chi.URLParam(r, "phone"))
	if err != nil {
		http.Error(w, "Invalid phone", http.StatusBadRequest)
		return
	}

	n, err := h.numbers.Get(phone)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Number not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get number", "error", err, "phone", phone)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toNumberResponse(n))
}

// HandleListEvents returns the journaled transitions of one number.
func (h *OpsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx)

	phone, err := domain.NormalizePhone(chi.URLParam(r, "phone"))
	if err != nil {
		http.Error(w, "Invalid phone", http.StatusBadRequest)
		return
	}

	events, err := h.history.ListByPhone(ctx, phone)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list rental events", "error", err, "phone", phone)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []domain.RentalEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *OpsHandler) requestLogger(ctx context.Context) *slog.Logger {
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))
	if op, ok := OperatorFromContext(ctx); ok {
		logger = logger.With("operator", op)
	}
	return logger
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
