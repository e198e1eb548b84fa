package api_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esystemlk/lms-smartlabs-sub000/api"
	"github.com/esystemlk/lms-smartlabs-sub000/engine"
	"github.com/esystemlk/lms-smartlabs-sub000/engine/store"
	"github.com/esystemlk/lms-smartlabs-sub000/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mem := store.NewTxMemory()
	svc := engine.NewService(mem, storage.NewMemory(), engine.SystemClock{}, zerolog.Nop())
	h := api.NewHandler(svc, mem, zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func intPtr(n int) *int { return &n }

// seedCatalog provisions a course, a batch, and two users over the admin
// routes, the way an operator bootstraps an instance.
func seedCatalog(t *testing.T, baseURL string, maxCapacity *int) {
	t.Helper()

	resp := postJSON(t, baseURL+"/api/admin/courses", api.CreateCourseRequest{
		ID: "go-101", Title: "Go Fundamentals", AccessMonths: intPtr(6), LessonCount: 10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, baseURL+"/api/admin/batches", api.CreateBatchRequest{
		ID: "b-1", CourseID: "go-101", Name: "March intake", MaxCapacity: maxCapacity,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	for i, email := range []string{"ann@example.com", "bob@example.com"} {
		resp = postJSON(t, baseURL+"/api/admin/users", api.CreateUserRequest{
			ID: fmt.Sprintf("u-%d", i+1), Email: email, Name: email[:3],
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
}

// =============================================================================
// FULL LIFECYCLE
// =============================================================================

func TestAPI_BankTransferLifecycle(t *testing.T) {
	// GIVEN: A seeded catalog
	// WHEN: A learner enrolls by bank transfer with a slip, an admin
	//       approves, and the learner lists enrollments
	// THEN: 201 pending with a receipt URL, then active with a deadline

	srv := newTestServer(t)
	seedCatalog(t, srv.URL, intPtr(30))

	resp := postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
		UserID: "u-1", CourseID: "go-101", BatchID: "b-1",
		PaymentMethod: "bank_transfer",
		Amount:        "4500.00",
		ReceiptBase64: base64.StdEncoding.EncodeToString([]byte("slip bytes")),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created api.EnrollmentDTO
	decodeJSON(t, resp, &created)
	assert.Equal(t, "pending", created.Status)
	assert.NotEmpty(t, created.ReceiptURL)
	assert.Empty(t, created.AccessDeadline)
	assert.Equal(t, "4500", created.Amount)

	resp = postJSON(t, srv.URL+"/api/enrollments/"+created.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/users/u-1/enrollments")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []api.EnrollmentDTO
	decodeJSON(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "active", list[0].Status)
	assert.NotEmpty(t, list[0].AccessDeadline)
	assert.NotEmpty(t, list[0].LastAccessedAt)
}

func TestAPI_CardEnrollment_ActiveImmediately(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv.URL, nil)

	resp := postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
		UserID: "u-1", CourseID: "go-101", BatchID: "b-1",
		PaymentMethod: "card", Amount: "4500.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created api.EnrollmentDTO
	decodeJSON(t, resp, &created)
	assert.Equal(t, "active", created.Status)
	assert.NotEmpty(t, created.AccessDeadline)
}

func TestAPI_PaymentCallback(t *testing.T) {
	// Gateway confirmations arrive on their own route but drive the same
	// approve/reject transitions.

	srv := newTestServer(t)
	seedCatalog(t, srv.URL, nil)

	enroll := func(user string) api.EnrollmentDTO {
		resp := postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
			UserID: user, CourseID: "go-101", BatchID: "b-1",
			PaymentMethod: "gateway", Amount: "4500.00",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var dto api.EnrollmentDTO
		decodeJSON(t, resp, &dto)
		require.Equal(t, "pending_payment", dto.Status)
		return dto
	}

	paid := enroll("u-1")
	resp := postJSON(t, srv.URL+"/api/payments/callback", api.PaymentCallbackRequest{
		EnrollmentID: paid.ID, Result: "succeeded",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	failed := enroll("u-2")
	resp = postJSON(t, srv.URL+"/api/payments/callback", api.PaymentCallbackRequest{
		EnrollmentID: failed.ID, Result: "failed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/enrollments/" + paid.ID)
	require.NoError(t, err)
	var dto api.EnrollmentDTO
	decodeJSON(t, resp, &dto)
	assert.Equal(t, "active", dto.Status)

	resp, err = http.Get(srv.URL + "/api/enrollments/" + failed.ID)
	require.NoError(t, err)
	decodeJSON(t, resp, &dto)
	assert.Equal(t, "rejected", dto.Status)
}

func TestAPI_LessonCompletion(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv.URL, nil)

	resp := postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
		UserID: "u-1", CourseID: "go-101", BatchID: "b-1",
		PaymentMethod: "admin_grant", Amount: "0",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created api.EnrollmentDTO
	decodeJSON(t, resp, &created)
	require.Equal(t, "active", created.Status)

	resp = postJSON(t, srv.URL+"/api/enrollments/"+created.ID+"/lessons/l-1/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var progress api.ProgressDTO
	decodeJSON(t, resp, &progress)
	assert.Equal(t, 10, progress.Progress)
	assert.Equal(t, "active", progress.Status)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_LessonCompletion_NoLessonTotal_400(t *testing.T) {
	// A course with no lessons cannot yield a progress percentage; the
	// completion call is a bad request, not a server failure.

	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/admin/courses", api.CreateCourseRequest{
		ID: "sem-1", Title: "Seminar",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/admin/batches", api.CreateBatchRequest{
		ID: "b-s", CourseID: "sem-1", Name: "one-off",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/admin/users", api.CreateUserRequest{
		ID: "u-1", Email: "ann@example.com", Name: "Ann",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
		UserID: "u-1", CourseID: "sem-1", BatchID: "b-s",
		PaymentMethod: "admin_grant", Amount: "0",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created api.EnrollmentDTO
	decodeJSON(t, resp, &created)

	resp = postJSON(t, srv.URL+"/api/enrollments/"+created.ID+"/lessons/l-1/complete", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ValidationFailure_400(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv.URL, nil)

	resp := postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
		UserID: "u-1", CourseID: "go-101", BatchID: "b-1",
		PaymentMethod: "cash", Amount: "4500.00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CapacityExceeded_409(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv.URL, intPtr(1))

	enroll := func(user string) *http.Response {
		return postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
			UserID: user, CourseID: "go-101", BatchID: "b-1",
			PaymentMethod: "card", Amount: "4500.00",
		})
	}

	resp := enroll("u-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = enroll("u-2")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_DuplicateEnrollment_409(t *testing.T) {
	srv := newTestServer(t)
	seedCatalog(t, srv.URL, nil)

	enroll := func() *http.Response {
		return postJSON(t, srv.URL+"/api/enrollments", api.CreateEnrollmentRequest{
			UserID: "u-1", CourseID: "go-101", BatchID: "b-1",
			PaymentMethod: "card", Amount: "4500.00",
		})
	}

	resp := enroll()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = enroll()
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_UnknownEnrollment_404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/enrollments/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/enrollments/ghost/approve", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_BatchUnderUnknownCourse_404(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/admin/batches", api.CreateBatchRequest{
		ID: "b-9", CourseID: "no-such-course", Name: "orphan",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
