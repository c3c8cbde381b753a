package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// UploadHandler handles HTTP requests for upload grants and media access
type UploadHandler struct {
	service threadfeed.Service
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(service threadfeed.Service) *UploadHandler {
	return &UploadHandler{service: service}
}

// Routes returns the routes for uploads and media
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/grants", h.CreateGrant)
	r.Get("/media/{blob_id}", h.GetMediaURL)
	r.Get("/media/{blob_id}/raw", h.DownloadMedia)

	return r
}

// GrantResponse is the response body for an issued upload grant. The URL
// is single-use: one grant per file, never shared across files.
type GrantResponse struct {
	UploadURL string    `json:"upload_url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateGrant issues a fresh single-use write grant
func (h *UploadHandler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.service.GenerateUploadGrant(r.Context())
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, GrantResponse{
		UploadURL: grant.URL,
		ObjectKey: grant.ObjectKey,
		ExpiresAt: grant.ExpiresAt,
	})
}

// MediaURLResponse carries a presigned read URL for one media reference
type MediaURLResponse struct {
	BlobID string `json:"blob_id"`
	URL    string `json:"url"`
}

// GetMediaURL resolves a media reference to a presigned read URL
func (h *UploadHandler) GetMediaURL(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blob_id")

	url, err := h.service.ResolveMediaURL(r.Context(), blobID)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, MediaURLResponse{BlobID: blobID, URL: url})
}

// DownloadMedia streams media bytes through the server. Intended for
// backends without presigned URL support.
func (h *UploadHandler) DownloadMedia(w http.ResponseWriter, r *http.Request) {
	blobID := chi.URLParam(r, "blob_id")

	rc, err := h.service.OpenMedia(r.Context(), blobID)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, rc)
}
