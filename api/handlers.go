/*
handlers.go - HTTP handlers for the enrollment engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, input validation, and delegates every decision to the
  engine. No business rule lives here.

ENDPOINTS:
  Enrollments:
    POST /api/enrollments                      Create enrollment request
    GET  /api/enrollments/{id}                 Fetch one
    POST /api/enrollments/{id}/approve         Administrator approval
    POST /api/enrollments/{id}/reject          Administrator decline
    POST /api/enrollments/{id}/lessons/{lesson}/complete

  Users:
    GET  /api/users/{id}/enrollments           Reconciled list, newest first

  Payments:
    POST /api/payments/callback                Gateway confirmation

  Catalog/admin:
    POST /api/admin/courses | /batches | /users
    GET  /api/courses, /api/courses/{id}/batches

ERROR HANDLING:
  Engine errors map to HTTP status:
  - 400: validation, unknown payment method, prerequisite not met,
         missing receipt, unusable lesson total
  - 404: missing enrollment/course/batch/user
  - 409: duplicate active enrollment, capacity exceeded, illegal transition
  - 502: receipt upload failure
  - 500: store transaction failure (safe to retry)

SECURITY NOTE:
  No authentication middleware. The engine is agnostic to who calls
  approve/reject; the deployment in front of this is expected to gate
  the admin routes.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/esystemlk/lms-smartlabs-sub000/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *engine.Service
	Store    engine.TxStore
	Log      zerolog.Logger
	validate *validator.Validate
}

// NewHandler creates a handler around the engine service. The store is
// needed directly only for catalog administration and lesson totals.
func NewHandler(svc *engine.Service, store engine.TxStore, log zerolog.Logger) *Handler {
	return &Handler{
		Service:  svc,
		Store:    store,
		Log:      log,
		validate: validator.New(),
	}
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	method, err := engine.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeBadRequest(w, "amount must be a decimal number")
		return
	}

	var receipt []byte
	if req.ReceiptBase64 != "" {
		receipt, err = base64.StdEncoding.DecodeString(req.ReceiptBase64)
		if err != nil {
			h.writeBadRequest(w, "receipt_base64 is not valid base64")
			return
		}
	}

	e, err := h.Service.CreateEnrollment(r.Context(), engine.CreateEnrollmentInput{
		UserID:   engine.UserID(req.UserID),
		CourseID: engine.CourseID(req.CourseID),
		BatchID:  engine.BatchID(req.BatchID),
		Method:   method,
		Amount:   amount,
		Receipt:  receipt,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toEnrollmentDTO(e))
}

func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id := engine.EnrollmentID(chi.URLParam(r, "id"))
	e, err := h.Service.GetEnrollment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toEnrollmentDTO(e))
}

func (h *Handler) ApproveEnrollment(w http.ResponseWriter, r *http.Request) {
	id := engine.EnrollmentID(chi.URLParam(r, "id"))
	if err := h.Service.ApproveEnrollment(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeStatus(w, http.StatusOK, "approved")
}

func (h *Handler) RejectEnrollment(w http.ResponseWriter, r *http.Request) {
	id := engine.EnrollmentID(chi.URLParam(r, "id"))
	if err := h.Service.RejectEnrollment(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeStatus(w, http.StatusOK, "rejected")
}

func (h *Handler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	id := engine.EnrollmentID(chi.URLParam(r, "id"))
	lessonID := engine.LessonID(chi.URLParam(r, "lesson"))

	e, err := h.Service.GetEnrollment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	course, err := h.Store.GetCourse(r.Context(), e.CourseID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	progress, err := h.Service.MarkLessonComplete(r.Context(), id, lessonID, course.LessonCount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Re-read for the post-write status (may have completed).
	e, err = h.Service.GetEnrollment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ProgressDTO{
		EnrollmentID: string(id),
		Progress:     progress,
		Status:       string(e.Status),
	})
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) ListUserEnrollments(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))
	enrollments, err := h.Service.ListUserEnrollments(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]EnrollmentDTO, 0, len(enrollments))
	for _, e := range enrollments {
		dtos = append(dtos, toEnrollmentDTO(e))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentCallback is the asynchronous gateway confirmation endpoint.
// It is just another caller of approve/reject.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req PaymentCallbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := engine.EnrollmentID(req.EnrollmentID)
	var err error
	switch req.Result {
	case "succeeded":
		err = h.Service.ApproveEnrollment(r.Context(), id)
	case "failed":
		err = h.Service.RejectEnrollment(r.Context(), id)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeStatus(w, http.StatusOK, "processed")
}

// =============================================================================
// CATALOG / ADMIN
// =============================================================================

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if !h.decode(w, r, &req) {
		return
	}

	course := &engine.Course{
		ID:          engine.CourseID(req.ID),
		Title:       req.Title,
		LessonCount: req.LessonCount,
		CreatedAt:   time.Now().UTC(),
	}
	if req.EndDate != "" {
		t, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			h.writeBadRequest(w, "end_date must be RFC 3339")
			return
		}
		course.EndDate = &t
	}
	course.AccessMonths = req.AccessMonths
	for _, p := range req.Prerequisites {
		course.Prerequisites = append(course.Prerequisites, engine.CourseID(p))
	}

	if err := h.Store.PutCourse(r.Context(), course); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toCourseDTO(course))
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Store.ListCourses(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]CourseDTO, 0, len(courses))
	for _, c := range courses {
		dtos = append(dtos, toCourseDTO(c))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Parent must exist.
	if _, err := h.Store.GetCourse(r.Context(), engine.CourseID(req.CourseID)); err != nil {
		h.writeError(w, err)
		return
	}

	batch := &engine.Batch{
		ID:          engine.BatchID(req.ID),
		CourseID:    engine.CourseID(req.CourseID),
		Name:        req.Name,
		MaxCapacity: req.MaxCapacity,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.PutBatch(r.Context(), batch); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	courseID := engine.CourseID(chi.URLParam(r, "id"))
	batches, err := h.Store.ListBatchesByCourse(r.Context(), courseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]BatchDTO, 0, len(batches))
	for _, b := range batches {
		dtos = append(dtos, toBatchDTO(b))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	u := &engine.User{
		ID:        engine.UserID(req.ID),
		Email:     req.Email,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.PutUser(r.Context(), u); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeStatus(w, http.StatusCreated, "created")
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeStatus(w, http.StatusOK, "ok")
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON body. Writes the error response
// itself and returns false when the request is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeBadRequest(w, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeBadRequest(w, err.Error())
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateActiveEnrollment),
		errors.Is(err, engine.ErrCapacityExceeded),
		errors.Is(err, engine.ErrInvalidTransition):
		status = http.StatusConflict
	case engine.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUploadFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.Log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (h *Handler) writeStatus(w http.ResponseWriter, code int, status string) {
	h.writeJSON(w, code, map[string]string{"status": status})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error().Err(err).Msg("failed to encode response")
	}
}
