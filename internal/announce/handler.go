package announce

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/windybank/windybanknet/internal/middleware"
	"github.com/windybank/windybanknet/internal/telemetry/metrics"
	"github.com/windybank/windybanknet/internal/telemetry/tracing"
	"github.com/windybank/windybanknet/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type RunResponse struct {
	Results []Result `json:"results"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type announceRunner interface {
	Run(ctx context.Context) ([]Result, error)
}

var _ announceRunner = (*Announcer)(nil)

type Handler struct {
	runner        announceRunner
	webhookSecret string
}

func NewHandler(runner announceRunner, webhookSecret string) *Handler {
	if webhookSecret == "" {
		// intentional escape hatch for local use, but worth shouting about
		log.Warnln("announce webhook secret not set, the trigger endpoint is open")
	}
	return &Handler{
		runner:        runner,
		webhookSecret: webhookSecret,
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	allowedPerMin int,
	metricsManager *metrics.Manager,
) {
	announceRouter := router.PathPrefix("/bluesky").Subrouter()
	announceRouter.HandleFunc("/post", handler.handleRun).Methods("POST", "OPTIONS").Name("bluesky-post")
	announceRouter.Use(middleware.RateLimit(rateLimiter, "bluesky-post", allowedPerMin, metricsManager))
}

func (handler *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "announceHandler.run")
	defer span.End()

	// the secret check runs before any catalog or ledger work
	if handler.webhookSecret != "" {
		if r.Header.Get("Authorization") != "Bearer "+handler.webhookSecret {
			reqIP, _ := pkg.ReadUserIP(r)
			log.Errorf("unauthorized announce trigger from %s", reqIP)
			span.SetStatus(codes.Error, "unauthorized")
			writeJSON(w, errorResponse{Error: "Unauthorized"}, http.StatusUnauthorized)
			return
		}
	}

	results, err := handler.runner.Run(ctx)
	if err != nil {
		log.Errorf("announce run failed: %s", err)
		span.SetStatus(codes.Error, "run-failed")
		writeJSON(w, errorResponse{Error: "internal server error"}, http.StatusInternalServerError)
		return
	}

	if len(results) == 0 {
		writeJSON(w, messageResponse{Message: "No new posts to share"}, http.StatusOK)
		return
	}

	writeJSON(w, RunResponse{Results: results}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload any, statusCode int) {
	respJson, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("marshal announce response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, statusCode)
}
