package content

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/windybank/windybanknet/internal/telemetry/tracing"
	"github.com/windybank/windybanknet/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type PostsResponse struct {
	Posts []PostMeta `json:"posts"`
	Total int        `json:"total"`
}

type TagsResponse struct {
	Tags []TagCount `json:"tags"`
}

type postCatalog interface {
	ListPosts() ([]PostMeta, error)
	ListByTag(tag string) ([]PostMeta, error)
	ListTags() ([]TagCount, error)
	RelatedTo(slug string, limit int) ([]PostMeta, error)
}

type postReader interface {
	ReadPost(slug string) (*Post, error)
}

var _ postCatalog = (*Catalog)(nil)

type Handler struct {
	catalog postCatalog
	reader  postReader
}

func NewHandler(catalog postCatalog, reader postReader) *Handler {
	return &Handler{
		catalog: catalog,
		reader:  reader,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/blog/posts", handler.handleListPosts).Methods("GET").Name("all-posts")
	router.HandleFunc("/blog/post/{slug}", handler.handleGetPost).Methods("GET").Name("get-post")
	router.HandleFunc("/blog/post/{slug}/related", handler.handleRelated).Methods("GET").Name("related-posts")
	router.HandleFunc("/blog/tags", handler.handleListTags).Methods("GET").Name("all-tags")
	router.HandleFunc("/blog/tag/{tag}", handler.handleListByTag).Methods("GET").Name("posts-by-tag")
}

func (handler *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.listPosts")
	defer span.End()

	posts, err := handler.catalog.ListPosts()
	if err != nil {
		log.Errorf("list posts error: %s", err)
		span.SetStatus(codes.Error, "list-posts-failed")
		http.Error(w, "failed to get blog posts", http.StatusInternalServerError)
		return
	}

	resp := PostsResponse{
		Posts: posts,
		Total: len(posts),
	}
	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal posts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.getPost")
	defer span.End()

	vars := mux.Vars(r)
	slug := vars["slug"]
	if slug == "" {
		http.Error(w, "error, slug empty", http.StatusBadRequest)
		return
	}

	post, err := handler.reader.ReadPost(slug)
	if err != nil {
		// an unreadable post and a missing post look the same from
		// the outside - not found
		log.Tracef("get post %q: %s", slug, err)
		span.SetStatus(codes.Error, "post-not-found")
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}

	postJson, err := json.Marshal(post)
	if err != nil {
		log.Errorf("marshal post %q error: %s", slug, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, postJson)
}

func (handler *Handler) handleRelated(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.related")
	defer span.End()

	vars := mux.Vars(r)
	slug := vars["slug"]
	if slug == "" {
		http.Error(w, "error, slug empty", http.StatusBadRequest)
		return
	}

	limit := DefaultRelatedLimit
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	related, err := handler.catalog.RelatedTo(slug, limit)
	if err != nil {
		log.Errorf("related posts for %q error: %s", slug, err)
		span.SetStatus(codes.Error, "related-posts-failed")
		http.Error(w, "failed to get related posts", http.StatusInternalServerError)
		return
	}

	resp := PostsResponse{
		Posts: related,
		Total: len(related),
	}
	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal related posts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.listTags")
	defer span.End()

	tags, err := handler.catalog.ListTags()
	if err != nil {
		log.Errorf("list tags error: %s", err)
		span.SetStatus(codes.Error, "list-tags-failed")
		http.Error(w, "failed to get tags", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(TagsResponse{Tags: tags})
	if err != nil {
		log.Errorf("marshal tags error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) handleListByTag(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "contentHandler.listByTag")
	defer span.End()

	vars := mux.Vars(r)
	tag := vars["tag"]
	if tag == "" {
		http.Error(w, "error, tag empty", http.StatusBadRequest)
		return
	}

	posts, err := handler.catalog.ListByTag(tag)
	if err != nil {
		log.Errorf("list posts by tag %q error: %s", tag, err)
		span.SetStatus(codes.Error, "posts-by-tag-failed")
		http.Error(w, "failed to get blog posts", http.StatusInternalServerError)
		return
	}

	resp := PostsResponse{
		Posts: posts,
		Total: len(posts),
	}
	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal posts error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
