/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator struct tags; handlers run them through
  a shared validator.Validate before touching the engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/esystemlk/lms-smartlabs-sub000/engine"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateEnrollmentRequest is the body of POST /api/enrollments.
type CreateEnrollmentRequest struct {
	UserID        string `json:"user_id" validate:"required"`
	CourseID      string `json:"course_id" validate:"required"`
	BatchID       string `json:"batch_id" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=card admin_grant bank_transfer gateway"`
	Amount        string `json:"amount" validate:"required"`

	// ReceiptBase64 carries the proof-of-payment artifact for bank
	// transfers. Upload mechanics beyond this are out of scope.
	ReceiptBase64 string `json:"receipt_base64,omitempty"`
}

// PaymentCallbackRequest is the asynchronous gateway confirmation. The
// engine does not care that a gateway rather than an administrator is
// calling; the route just maps result onto approve/reject.
type PaymentCallbackRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	Result       string `json:"result" validate:"required,oneof=succeeded failed"`
}

// CreateCourseRequest seeds a catalog entry.
type CreateCourseRequest struct {
	ID            string   `json:"id" validate:"required"`
	Title         string   `json:"title" validate:"required"`
	EndDate       string   `json:"end_date,omitempty"` // RFC 3339
	AccessMonths  *int     `json:"access_months,omitempty" validate:"omitempty,gt=0"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	LessonCount   int      `json:"lesson_count" validate:"gte=0"`
}

// CreateBatchRequest seeds a cohort under a course.
type CreateBatchRequest struct {
	ID          string `json:"id" validate:"required"`
	CourseID    string `json:"course_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	MaxCapacity *int   `json:"max_capacity,omitempty" validate:"omitempty,gt=0"`
}

// CreateUserRequest seeds an identity profile.
type CreateUserRequest struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EnrollmentDTO represents an enrollment in API responses.
type EnrollmentDTO struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	UserEmail      string   `json:"user_email"`
	UserName       string   `json:"user_name"`
	CourseID       string   `json:"course_id"`
	CourseTitle    string   `json:"course_title"`
	BatchID        string   `json:"batch_id"`
	BatchName      string   `json:"batch_name"`
	Status         string   `json:"status"`
	PaymentMethod  string   `json:"payment_method"`
	Amount         string   `json:"amount"`
	ReceiptURL     string   `json:"receipt_url,omitempty"`
	AccessDeadline string   `json:"access_deadline,omitempty"`
	Lessons        []string `json:"completed_lessons,omitempty"`
	Progress       int      `json:"progress"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	LastAccessedAt string   `json:"last_accessed_at,omitempty"`
}

func toEnrollmentDTO(e *engine.Enrollment) EnrollmentDTO {
	dto := EnrollmentDTO{
		ID:            string(e.ID),
		UserID:        string(e.UserID),
		UserEmail:     e.UserEmail,
		UserName:      e.UserName,
		CourseID:      string(e.CourseID),
		CourseTitle:   e.CourseTitle,
		BatchID:       string(e.BatchID),
		BatchName:     e.BatchName,
		Status:        string(e.Status),
		PaymentMethod: string(e.PaymentMethod),
		Amount:        e.Amount.String(),
		ReceiptURL:    e.ReceiptURL,
		Progress:      e.Progress,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     e.UpdatedAt.Format(time.RFC3339),
	}
	if e.AccessDeadline != nil {
		dto.AccessDeadline = e.AccessDeadline.Format(time.RFC3339)
	}
	if e.LastAccessedAt != nil {
		dto.LastAccessedAt = e.LastAccessedAt.Format(time.RFC3339)
	}
	for _, l := range e.CompletedLessons {
		dto.Lessons = append(dto.Lessons, string(l))
	}
	return dto
}

// CourseDTO represents a catalog entry in API responses.
type CourseDTO struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	EndDate       string   `json:"end_date,omitempty"`
	AccessMonths  *int     `json:"access_months,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	LessonCount   int      `json:"lesson_count"`
}

func toCourseDTO(c *engine.Course) CourseDTO {
	dto := CourseDTO{
		ID:           string(c.ID),
		Title:        c.Title,
		AccessMonths: c.AccessMonths,
		LessonCount:  c.LessonCount,
	}
	if c.EndDate != nil {
		dto.EndDate = c.EndDate.Format(time.RFC3339)
	}
	for _, p := range c.Prerequisites {
		dto.Prerequisites = append(dto.Prerequisites, string(p))
	}
	return dto
}

// BatchDTO represents a cohort in API responses.
type BatchDTO struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Name        string `json:"name"`
	MaxCapacity *int   `json:"max_capacity,omitempty"`
	Enrolled    int    `json:"enrolled"`
}

func toBatchDTO(b *engine.Batch) BatchDTO {
	return BatchDTO{
		ID:          string(b.ID),
		CourseID:    string(b.CourseID),
		Name:        b.Name,
		MaxCapacity: b.MaxCapacity,
		Enrolled:    b.Enrolled,
	}
}

// ProgressDTO is the response of a lesson-completion call.
type ProgressDTO struct {
	EnrollmentID string `json:"enrollment_id"`
	Progress     int    `json:"progress"`
	Status       string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
