package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"collecti-backend/internal/domain"
	"collecti-backend/internal/usecase/collections"
	"collecti-backend/internal/usecase/recommend"
	"collecti-backend/internal/usecase/search"
)

// Handler связывает сервисы приложения с HTTP маршрутами.
type Handler struct {
	collections    *collections.Service
	recommendation *recommend.Service
	search         *search.Manager
	maxRecommended int
	log            zerolog.Logger
}

// NewHandler создаёт обработчик API.
func NewHandler(colService *collections.Service, recService *recommend.Service, searchManager *search.Manager, maxRecommended int, logger zerolog.Logger) *Handler {
	return &Handler{
		collections:    colService,
		recommendation: recService,
		search:         searchManager,
		maxRecommended: maxRecommended,
		log:            logger,
	}
}

// Mount регистрирует защищённые маршруты API.
func (h *Handler) Mount(r chi.Router, jwtSecret string) {
	r.Group(func(protected chi.Router) {
		protected.Use(AuthMiddleware(jwtSecret))

		protected.Get("/api/v1/recommendations", h.getRecommendations)
		protected.Get("/api/v1/feed", h.getFeed)
		protected.Get("/api/v1/search", h.searchByName)

		protected.Get("/api/v1/collections", h.listCollections)
		protected.Post("/api/v1/collections", h.createCollection)
		protected.Get("/api/v1/collections/{collectionID}", h.getCollection)
		protected.Patch("/api/v1/collections/{collectionID}", h.renameCollection)
		protected.Delete("/api/v1/collections/{collectionID}", h.deleteCollection)

		protected.Post("/api/v1/collections/{collectionID}/posts", h.addPost)
		protected.Patch("/api/v1/posts/{postID}", h.updatePost)
		protected.Delete("/api/v1/posts/{postID}", h.deletePost)
		protected.Post("/api/v1/posts/{postID}/move", h.movePost)

		protected.Get("/api/v1/bookmarks", h.listBookmarks)
		protected.Post("/api/v1/bookmarks", h.createBookmark)
		protected.Delete("/api/v1/bookmarks/{ownerID}/{collectionID}", h.deleteBookmark)
		protected.Post("/api/v1/bookmarks/refresh", h.refreshBookmarks)
	})
}

func (h *Handler) getRecommendations(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	max := h.maxRecommended
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < max {
			max = parsed
		}
	}
	ranked := h.recommendation.ForUser(r.Context(), viewerID, max)
	WriteJSON(w, map[string]any{"recommendations": ranked})
}

type pageResponse struct {
	Results []domain.Collection `json:"results"`
	HasMore bool                `json:"has_more"`
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "параметр session обязателен")
		return
	}
	loadMore := r.URL.Query().Get("more") == "true"

	session := h.search.Session(viewerID, sessionID)
	results := session.FetchRecent(r.Context(), loadMore)
	WriteJSON(w, pageResponse{Results: results, HasMore: session.HasMore()})
}

func (h *Handler) searchByName(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "параметр session обязателен")
		return
	}
	term := r.URL.Query().Get("term")
	loadMore := r.URL.Query().Get("more") == "true"

	session := h.search.Session(viewerID, sessionID)
	results := session.SearchByName(r.Context(), term, loadMore)
	WriteJSON(w, pageResponse{Results: results, HasMore: session.HasMore()})
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	// Токены выпускаются внешним сервисом, поэтому корзина по умолчанию
	// создаётся при первом обращении пользователя.
	if _, err := h.collections.EnsureDefault(r.Context(), viewerID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	cols, err := h.collections.List(r.Context(), viewerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, map[string]any{"collections": cols})
}

type collectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createCollection(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	created, err := h.collections.Create(r.Context(), viewerID, req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSONStatus(w, http.StatusCreated, created)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	col, err := h.collections.Get(r.Context(), viewerID, chi.URLParam(r, "collectionID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, col)
}

func (h *Handler) renameCollection(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	if err := h.collections.Rename(r.Context(), viewerID, chi.URLParam(r, "collectionID"), req.Name, req.Description); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	if err := h.collections.Delete(r.Context(), viewerID, chi.URLParam(r, "collectionID")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type postRequest struct {
	SourceURL string   `json:"source_url"`
	Image     string   `json:"image"`
	Thumbnail string   `json:"thumbnail"`
	Notes     string   `json:"notes"`
	Tags      []string `json:"tags"`
	Platform  string   `json:"platform"`
}

func (h *Handler) addPost(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	created, err := h.collections.AddPost(r.Context(), domain.Post{
		OwnerID:      viewerID,
		CollectionID: chi.URLParam(r, "collectionID"),
		SourceURL:    req.SourceURL,
		Image:        req.Image,
		Thumbnail:    req.Thumbnail,
		Notes:        req.Notes,
		Tags:         req.Tags,
		Platform:     domain.Platform(req.Platform),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSONStatus(w, http.StatusCreated, created)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	var req struct {
		Notes string   `json:"notes"`
		Tags  []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	if err := h.collections.UpdatePost(r.Context(), viewerID, chi.URLParam(r, "postID"), req.Notes, req.Tags); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	if err := h.collections.DeletePost(r.Context(), viewerID, chi.URLParam(r, "postID")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) movePost(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	var req struct {
		CollectionID string `json:"collection_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CollectionID == "" {
		WriteError(w, http.StatusBadRequest, "требуется collection_id")
		return
	}
	if err := h.collections.MovePost(r.Context(), viewerID, chi.URLParam(r, "postID"), req.CollectionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listBookmarks(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	marks, err := h.collections.ListBookmarks(r.Context(), viewerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, map[string]any{"bookmarks": marks})
}

func (h *Handler) createBookmark(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	var req struct {
		OwnerID      string `json:"owner_id"`
		CollectionID string `json:"collection_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnerID == "" || req.CollectionID == "" {
		WriteError(w, http.StatusBadRequest, "требуются owner_id и collection_id")
		return
	}
	mark, err := h.collections.Bookmark(r.Context(), viewerID, req.OwnerID, req.CollectionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSONStatus(w, http.StatusCreated, mark)
}

func (h *Handler) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	if err := h.collections.Unbookmark(r.Context(), viewerID, chi.URLParam(r, "ownerID"), chi.URLParam(r, "collectionID")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refreshBookmarks(w http.ResponseWriter, r *http.Request) {
	viewerID := UserID(r.Context())
	marks, err := h.collections.RefreshBookmarks(r.Context(), viewerID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, map[string]any{"bookmarks": marks})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "запись не найдена")
	case errors.Is(err, collections.ErrEmptyName),
		errors.Is(err, collections.ErrReservedName),
		errors.Is(err, collections.ErrOwnBookmark),
		errors.Is(err, collections.ErrBookmarkReserved):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, collections.ErrDefaultImmutable):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("api: внутренняя ошибка")
		WriteError(w, http.StatusInternalServerError, "внутренняя ошибка")
	}
}
