package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// ThreadHandler handles HTTP requests for publishing and reading threads
type ThreadHandler struct {
	service threadfeed.Service
}

// NewThreadHandler creates a new thread handler
func NewThreadHandler(service threadfeed.Service) *ThreadHandler {
	return &ThreadHandler{service: service}
}

// Routes returns the routes for threads
func (h *ThreadHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.PublishThread)
	r.Get("/", h.GetFeed)
	r.Get("/{id}", h.GetThread)
	r.Get("/{id}/replies", h.GetReplies)

	return r
}

// PublishThreadRequest is the request body for publishing a thread. Media
// entries reference blobs the client already uploaded through the grant
// flow.
type PublishThreadRequest struct {
	Body     string `json:"body"`
	ParentID string `json:"parent_id,omitempty"`
	Media    []struct {
		BlobID   string `json:"blob_id"`
		MimeType string `json:"mime_type"`
	} `json:"media,omitempty"`
}

// ThreadResponse is the response body for a published thread
type ThreadResponse struct {
	ID         string                      `json:"id"`
	AuthorID   string                      `json:"author_id"`
	Body       string                      `json:"body,omitempty"`
	Media      []threadfeed.MediaReference `json:"media,omitempty"`
	ParentID   string                      `json:"parent_id,omitempty"`
	ReplyCount int                         `json:"reply_count"`
	LikeCount  int                         `json:"like_count"`
	CreatedAt  time.Time                   `json:"created_at"`
}

func newThreadResponse(t *threadfeed.Thread) ThreadResponse {
	resp := ThreadResponse{
		ID:         t.ID.String(),
		AuthorID:   t.AuthorID.String(),
		Body:       t.Body,
		Media:      t.Media,
		ReplyCount: t.ReplyCount,
		LikeCount:  t.LikeCount,
		CreatedAt:  t.CreatedAt,
	}
	if t.ParentID != nil {
		resp.ParentID = t.ParentID.String()
	}
	return resp
}

// PublishThread commits a new thread for the authenticated subject
func (h *ThreadHandler) PublishThread(w http.ResponseWriter, r *http.Request) {
	author, ok := h.resolveSubject(w, r)
	if !ok {
		return
	}

	var req PublishThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	publish := threadfeed.PublishThreadRequest{
		AuthorID: author.ID,
		Body:     req.Body,
	}

	if req.ParentID != "" {
		parentID, err := uuid.Parse(req.ParentID)
		if err != nil {
			slog.Error("Invalid parent ID", "parent_id", req.ParentID, "error", err)
			http.Error(w, "Invalid parent ID", http.StatusBadRequest)
			return
		}
		publish.ParentID = &parentID
	}

	for _, m := range req.Media {
		publish.Media = append(publish.Media, threadfeed.MediaReference{
			BlobID:   m.BlobID,
			MimeType: m.MimeType,
		})
	}

	thread, err := h.service.PublishThread(r.Context(), publish)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newThreadResponse(thread))
}

// FeedItemResponse is one feed entry with its author snapshot
type FeedItemResponse struct {
	ThreadResponse
	Author UserResponse `json:"author"`
}

// FeedPageResponse is one page of a cursor chain
type FeedPageResponse struct {
	Items      []FeedItemResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func newFeedPageResponse(page *threadfeed.FeedPage) FeedPageResponse {
	resp := FeedPageResponse{
		Items:      make([]FeedItemResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for _, item := range page.Items {
		resp.Items = append(resp.Items, FeedItemResponse{
			ThreadResponse: newThreadResponse(&item.Thread),
			Author:         newUserResponse(item.Author),
		})
	}
	return resp
}

// GetFeed serves one page of the global feed, or of one author's threads
// when author_id is given
func (h *ThreadHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	req := threadfeed.FeedPageRequest{
		Cursor:   r.URL.Query().Get("cursor"),
		PageSize: parsePageSize(r),
	}

	if raw := r.URL.Query().Get("author_id"); raw != "" {
		authorID, err := uuid.Parse(raw)
		if err != nil {
			slog.Error("Invalid author ID", "author_id", raw, "error", err)
			http.Error(w, "Invalid author ID", http.StatusBadRequest)
			return
		}
		req.AuthorID = &authorID
	}

	page, err := h.service.GetFeedPage(r.Context(), req)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newFeedPageResponse(page))
}

// GetThread serves a single thread with its author snapshot
func (h *ThreadHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid thread ID", http.StatusBadRequest)
		return
	}

	item, err := h.service.GetThread(r.Context(), id)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, FeedItemResponse{
		ThreadResponse: newThreadResponse(&item.Thread),
		Author:         newUserResponse(item.Author),
	})
}

// GetReplies serves one page of replies under a thread, oldest first
func (h *ThreadHandler) GetReplies(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid thread ID", http.StatusBadRequest)
		return
	}

	page, err := h.service.GetReplies(r.Context(), threadfeed.RepliesPageRequest{
		ParentID: id,
		Cursor:   r.URL.Query().Get("cursor"),
		PageSize: parsePageSize(r),
	})
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newFeedPageResponse(page))
}

// parsePageSize reads the page_size query parameter; invalid or missing
// values fall through to the service defaults.
func parsePageSize(r *http.Request) int {
	raw := r.URL.Query().Get("page_size")
	if raw == "" {
		return 0
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return size
}

// resolveSubject maps the authenticated subject to a synced user profile
func (h *ThreadHandler) resolveSubject(w http.ResponseWriter, r *http.Request) (*threadfeed.User, bool) {
	subject := SubjectFromContext(r.Context())
	if subject == "" {
		http.Error(w, "Missing identity subject", http.StatusUnauthorized)
		return nil, false
	}

	user, err := h.service.GetUserBySubject(r.Context(), subject)
	if err != nil {
		if errors.Is(err, threadfeed.ErrUserNotFound) {
			http.Error(w, "Unknown identity subject", http.StatusUnauthorized)
			return nil, false
		}
		renderServiceError(w, r, err)
		return nil, false
	}

	return user, true
}
