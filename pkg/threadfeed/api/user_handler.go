package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// UserHandler handles HTTP requests for profiles and directory search
type UserHandler struct {
	service threadfeed.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(service threadfeed.Service) *UserHandler {
	return &UserHandler{service: service}
}

// Routes returns the routes for users
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/search", h.SearchUsers)
	r.Get("/me", h.GetSelf)
	r.Get("/{id}", h.GetUser)
	r.Put("/{id}/bio", h.UpdateBio)
	r.Put("/{id}/link", h.UpdateLink)
	r.Put("/{id}/image", h.UpdateProfileImage)
	r.Put("/{id}/name", h.UpdateDisplayName)
	r.Post("/{id}/follow", h.Follow)
	r.Delete("/{id}/follow", h.Unfollow)

	return r
}

// UserResponse is the response body for a user profile
type UserResponse struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Handle         string    `json:"handle,omitempty"`
	Email          string    `json:"email"`
	Bio            string    `json:"bio,omitempty"`
	WebsiteURL     string    `json:"website_url,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	FollowersCount int       `json:"followers_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newUserResponse(u *threadfeed.User) UserResponse {
	return UserResponse{
		ID:             u.ID.String(),
		Subject:        u.Subject,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Handle:         u.Handle,
		Email:          u.Email,
		Bio:            u.Bio,
		WebsiteURL:     u.WebsiteURL,
		ImageURL:       u.ImageURL,
		FollowersCount: u.FollowersCount,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// SearchUsers serves the profile directory search. An empty query is
// rejected here so the service never runs a match-everything search.
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "Search query is required", http.StatusBadRequest)
		return
	}

	users, err := h.service.SearchUsers(r.Context(), query)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	results := make([]UserResponse, 0, len(users))
	for _, u := range users {
		results = append(results, newUserResponse(u))
	}

	render.JSON(w, r, results)
}

// GetSelf serves the profile of the authenticated subject
func (h *UserHandler) GetSelf(w http.ResponseWriter, r *http.Request) {
	subject := SubjectFromContext(r.Context())
	if subject == "" {
		http.Error(w, "Missing identity subject", http.StatusUnauthorized)
		return
	}

	user, err := h.service.GetUserBySubject(r.Context(), subject)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newUserResponse(user))
}

// GetUser serves a user profile by id
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newUserResponse(user))
}

// UpdateBioRequest is the request body for replacing a bio
type UpdateBioRequest struct {
	Bio string `json:"bio"`
}

func (h *UserHandler) UpdateBio(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req UpdateBioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateBio(r.Context(), threadfeed.UpdateBioRequest{UserID: id, Bio: req.Bio})
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newUserResponse(user))
}

// UpdateLinkRequest is the request body for replacing a website link
type UpdateLinkRequest struct {
	WebsiteURL string `json:"website_url"`
}

func (h *UserHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateLink(r.Context(), threadfeed.UpdateLinkRequest{UserID: id, WebsiteURL: req.WebsiteURL})
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newUserResponse(user))
}

// UpdateProfileImageRequest is the request body for replacing a profile image
type UpdateProfileImageRequest struct {
	ImageURL string `json:"image_url"`
}

func (h *UserHandler) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req UpdateProfileImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateProfileImage(r.Context(), threadfeed.UpdateProfileImageRequest{UserID: id, ImageURL: req.ImageURL})
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newUserResponse(user))
}

// UpdateDisplayNameRequest is the request body for replacing a display name
type UpdateDisplayNameRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *UserHandler) UpdateDisplayName(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req UpdateDisplayNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.service.UpdateDisplayName(r.Context(), threadfeed.UpdateDisplayNameRequest{
		UserID:    id,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.JSON(w, r, newUserResponse(user))
}

// Follow increments the target's follower counter
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.adjustFollowers(w, r, 1)
}

// Unfollow decrements the target's follower counter
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.adjustFollowers(w, r, -1)
}

func (h *UserHandler) adjustFollowers(w http.ResponseWriter, r *http.Request, delta int) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.AdjustFollowers(r.Context(), id, delta); err != nil {
		renderServiceError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

func parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
