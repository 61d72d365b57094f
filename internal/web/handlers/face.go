package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/facematch"
	"github.com/kozaktomas/face-login/internal/messages"
	"github.com/kozaktomas/face-login/internal/web/middleware"
	"go.uber.org/zap"
)

// FaceHandler handles face login and descriptor enrollment endpoints.
type FaceHandler struct {
	logger    *zap.Logger
	catalog   *messages.Catalog
	tokens    *middleware.TokenIssuer
	openStore database.Opener
}

// NewFaceHandler creates a new face handler using the process-wide descriptor store.
func NewFaceHandler(logger *zap.Logger, catalog *messages.Catalog, tokens *middleware.TokenIssuer) *FaceHandler {
	return &FaceHandler{
		logger:    logger,
		catalog:   catalog,
		tokens:    tokens,
		openStore: database.GetDescriptorStore,
	}
}

// DescriptorRequest is the body of login and enrollment requests.
type DescriptorRequest struct {
	Descriptor []float64 `json:"descriptor"`
	Label      string    `json:"label,omitempty"`
}

// LoginResponse is returned for an accepted face login.
type LoginResponse struct {
	UserID     int64     `json:"user_id"`
	Label      string    `json:"label,omitempty"`
	Distance   float64   `json:"distance"`
	Confidence float64   `json:"confidence"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// EnrollmentResponse describes a stored descriptor. The vector itself is never returned.
type EnrollmentResponse struct {
	UserID    int64     `json:"user_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// CollisionResponse is one entry of a collision report.
type CollisionResponse struct {
	UserID   int64   `json:"user_id"`
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

func enrollmentToResponse(e facematch.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		UserID:    e.UserID,
		Label:     e.Label,
		CreatedAt: e.CreatedAt,
	}
}

// service resolves the descriptor store and writes a 503 when it cannot be opened.
func (h *FaceHandler) service(w http.ResponseWriter, r *http.Request) *facematch.Service {
	store, err := h.openStore(r.Context())
	if err != nil {
		h.logger.Error("descriptor store unavailable", zap.Error(err))
		respondMessage(w, r, h.catalog, http.StatusServiceUnavailable, messages.CodeStoreUnavailable)
		return nil
	}
	return facematch.NewService(store)
}

// respondFaceError maps facematch errors to HTTP responses.
func (h *FaceHandler) respondFaceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, facematch.ErrInvalidVector):
		respondMessage(w, r, h.catalog, http.StatusBadRequest, messages.CodeInvalidDescriptor)
	case errors.Is(err, facematch.ErrNoEnrollments):
		respondMessage(w, r, h.catalog, http.StatusNotFound, messages.CodeNoEnrollments)
	case errors.Is(err, facematch.ErrNoMatch):
		respondMessage(w, r, h.catalog, http.StatusUnauthorized, messages.CodeNoMatch)
	case errors.Is(err, facematch.ErrNotEnrolled):
		respondMessage(w, r, h.catalog, http.StatusNotFound, messages.CodeNotEnrolled)
	case errors.Is(err, facematch.ErrStoreUnavailable):
		h.logger.Error("descriptor store failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondMessage(w, r, h.catalog, http.StatusServiceUnavailable, messages.CodeStoreUnavailable)
	default:
		h.logger.Error("unexpected face handler error", zap.String("path", r.URL.Path), zap.Error(err))
		respondMessage(w, r, h.catalog, http.StatusInternalServerError, messages.CodeInternal)
	}
}

// readDescriptor decodes and validates a descriptor request body.
func (h *FaceHandler) readDescriptor(w http.ResponseWriter, r *http.Request) (facematch.Descriptor, string, bool) {
	var req DescriptorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(w, r, h.catalog, http.StatusBadRequest, messages.CodeInvalidRequest)
		return nil, "", false
	}
	d, err := facematch.ParseDescriptor(req.Descriptor)
	if err != nil {
		h.respondFaceError(w, r, err)
		return nil, "", false
	}
	return d, req.Label, true
}

// currentUser returns the user ID of the bearer token.
func (h *FaceHandler) currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondMessage(w, r, h.catalog, http.StatusUnauthorized, messages.CodeUnauthorized)
		return 0, false
	}
	id, err := claims.UserID()
	if err != nil {
		respondMessage(w, r, h.catalog, http.StatusUnauthorized, messages.CodeUnauthorized)
		return 0, false
	}
	return id, true
}

// pathUserID parses the {userID} URL parameter.
func (h *FaceHandler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		respondMessage(w, r, h.catalog, http.StatusBadRequest, messages.CodeInvalidRequest)
		return 0, false
	}
	return id, true
}

// Login identifies the user from a face descriptor and issues a bearer token.
func (h *FaceHandler) Login(w http.ResponseWriter, r *http.Request) {
	d, _, ok := h.readDescriptor(w, r)
	if !ok {
		return
	}
	svc := h.service(w, r)
	if svc == nil {
		return
	}

	match, err := svc.Identify(r.Context(), d)
	if err != nil {
		if errors.Is(err, facematch.ErrNoMatch) || errors.Is(err, facematch.ErrNoEnrollments) {
			h.logger.Info("face login rejected", zap.String("reason", err.Error()))
		}
		h.respondFaceError(w, r, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(match.UserID, false)
	if err != nil {
		h.logger.Error("failed to sign token", zap.Int64("user_id", match.UserID), zap.Error(err))
		respondMessage(w, r, h.catalog, http.StatusInternalServerError, messages.CodeInternal)
		return
	}

	h.logger.Info("face login accepted",
		zap.Int64("user_id", match.UserID),
		zap.Float64("distance", match.Distance),
	)
	respondJSON(w, http.StatusOK, LoginResponse{
		UserID:     match.UserID,
		Label:      match.Label,
		Distance:   match.Distance,
		Confidence: match.Confidence,
		Token:      token,
		ExpiresAt:  expiresAt,
	})
}

// Status returns the enrollment of the authenticated user.
func (h *FaceHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	svc := h.service(w, r)
	if svc == nil {
		return
	}

	enrollment, err := svc.Status(r.Context(), userID)
	if err != nil {
		h.respondFaceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, enrollmentToResponse(*enrollment))
}

// Enroll stores or replaces the descriptor of the authenticated user.
func (h *FaceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	d, label, ok := h.readDescriptor(w, r)
	if !ok {
		return
	}
	svc := h.service(w, r)
	if svc == nil {
		return
	}

	if err := svc.Register(r.Context(), userID, d, label); err != nil {
		h.respondFaceError(w, r, err)
		return
	}

	h.logger.Info("face descriptor enrolled",
		zap.Int64("user_id", userID),
		zap.String("label", sanitizeForLog(label)),
	)
	w.WriteHeader(http.StatusNoContent)
}

// Unenroll removes the descriptor of the authenticated user.
func (h *FaceHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	h.remove(w, r, userID)
}

// List returns every enrollment, optionally filtered by label.
func (h *FaceHandler) List(w http.ResponseWriter, r *http.Request) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}

	enrollments, err := svc.List(r.Context())
	if err != nil {
		h.respondFaceError(w, r, err)
		return
	}
	enrollments = facematch.FilterByLabel(enrollments, r.URL.Query().Get("label"))

	response := make([]EnrollmentResponse, len(enrollments))
	for i, e := range enrollments {
		response[i] = enrollmentToResponse(e)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"descriptors": response,
		"count":       len(response),
	})
}

// DeleteUser removes the descriptor of any user.
func (h *FaceHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	h.remove(w, r, userID)
}

func (h *FaceHandler) remove(w http.ResponseWriter, r *http.Request, userID int64) {
	svc := h.service(w, r)
	if svc == nil {
		return
	}
	if err := svc.Remove(r.Context(), userID); err != nil {
		h.respondFaceError(w, r, err)
		return
	}
	h.logger.Info("face descriptor removed", zap.Int64("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}

// Collisions reports other users whose descriptors would be accepted for the given user.
func (h *FaceHandler) Collisions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	svc := h.service(w, r)
	if svc == nil {
		return
	}

	collisions, err := svc.Collisions(r.Context(), userID, limit)
	if err != nil {
		h.respondFaceError(w, r, err)
		return
	}

	response := make([]CollisionResponse, len(collisions))
	for i, c := range collisions {
		response[i] = CollisionResponse{UserID: c.UserID, Label: c.Label, Distance: c.Distance}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"collisions": response,
	})
}
