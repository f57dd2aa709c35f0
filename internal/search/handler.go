package search

import (
	"encoding/json"
	"net/http"

	"github.com/windybank/windybanknet/internal/content"
	"github.com/windybank/windybanknet/internal/telemetry/metrics"
	"github.com/windybank/windybanknet/internal/telemetry/tracing"
	"github.com/windybank/windybanknet/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Response struct {
	Posts []content.PostMeta `json:"posts"`
	Total int                `json:"total"`
}

type postLister interface {
	ListPosts() ([]content.PostMeta, error)
}

type Handler struct {
	catalog        postLister
	metricsManager *metrics.Manager
}

func NewHandler(catalog postLister, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		catalog:        catalog,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/blog/search", handler.handleSearch).Methods("GET").Name("search-posts")
}

func (handler *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "searchHandler.search")
	defer span.End()

	query := r.URL.Query().Get("q")
	span.SetAttributes(attribute.String("search.query", query))

	if handler.metricsManager != nil {
		handler.metricsManager.CounterSearchQueries.Inc()
	}

	posts, err := handler.catalog.ListPosts()
	if err != nil {
		log.Errorf("search: list posts error: %s", err)
		span.SetStatus(codes.Error, "list-posts-failed")
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	// rebuilt per request: the post collection is small and can change
	// between requests via file edits
	index, err := BuildIndex(posts)
	if err != nil {
		log.Errorf("search: build index error: %s", err)
		span.SetStatus(codes.Error, "build-index-failed")
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := index.Close(); err != nil {
			log.Warnf("search: close index: %s", err)
		}
	}()

	matches, err := index.Search(query)
	if err != nil {
		log.Errorf("search for %q error: %s", query, err)
		span.SetStatus(codes.Error, "search-failed")
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	resp := Response{
		Posts: matches,
		Total: len(matches),
	}
	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal search results error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
