// Package store provides an in-memory Store implementation for tests
// and local development.
package store

import (
	"context"
	"sync"

	"github.com/esystemlk/lms-smartlabs-sub000/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every collection in maps guarded by one mutex. All reads
// and writes go through clones so callers never alias internal state.
type Memory struct {
	mu sync.Mutex

	enrollments map[engine.EnrollmentID]*engine.Enrollment
	// byUser preserves insertion order per user; listings reverse it to
	// get newest first deterministically even under a fixed clock.
	byUser  map[engine.UserID][]engine.EnrollmentID
	courses map[engine.CourseID]*engine.Course
	batches map[engine.BatchID]*engine.Batch
	users   map[engine.UserID]*engine.User
}

func NewMemory() *Memory {
	return &Memory{
		enrollments: make(map[engine.EnrollmentID]*engine.Enrollment),
		byUser:      make(map[engine.UserID][]engine.EnrollmentID),
		courses:     make(map[engine.CourseID]*engine.Course),
		batches:     make(map[engine.BatchID]*engine.Batch),
		users:       make(map[engine.UserID]*engine.User),
	}
}

// --- enrollments -------------------------------------------------------------

func (m *Memory) GetEnrollment(_ context.Context, id engine.EnrollmentID) (*engine.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getEnrollmentLocked(id)
}

func (m *Memory) getEnrollmentLocked(id engine.EnrollmentID) (*engine.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "enrollment", ID: string(id)}
	}
	return e.Clone(), nil
}

func (m *Memory) PutEnrollment(_ context.Context, e *engine.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putEnrollmentLocked(e)
}

func (m *Memory) putEnrollmentLocked(e *engine.Enrollment) error {
	if _, ok := m.enrollments[e.ID]; !ok {
		m.byUser[e.UserID] = append(m.byUser[e.UserID], e.ID)
	}
	m.enrollments[e.ID] = e.Clone()
	return nil
}

func (m *Memory) ListEnrollmentsByUser(_ context.Context, userID engine.UserID) ([]*engine.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listByUserLocked(userID), nil
}

func (m *Memory) listByUserLocked(userID engine.UserID) []*engine.Enrollment {
	ids := m.byUser[userID]
	result := make([]*engine.Enrollment, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // newest first
		result = append(result, m.enrollments[ids[i]].Clone())
	}
	return result
}

func (m *Memory) FindActiveEnrollment(_ context.Context, userID engine.UserID, batchID engine.BatchID) (*engine.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findActiveLocked(userID, batchID), nil
}

func (m *Memory) findActiveLocked(userID engine.UserID, batchID engine.BatchID) *engine.Enrollment {
	for _, id := range m.byUser[userID] {
		e := m.enrollments[id]
		if e.BatchID == batchID && e.Status == engine.StatusActive {
			return e.Clone()
		}
	}
	return nil
}

// --- catalog -----------------------------------------------------------------

func (m *Memory) GetCourse(_ context.Context, id engine.CourseID) (*engine.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCourseLocked(id)
}

func (m *Memory) getCourseLocked(id engine.CourseID) (*engine.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "course", ID: string(id)}
	}
	return cloneCourse(c), nil
}

func (m *Memory) PutCourse(_ context.Context, c *engine.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = cloneCourse(c)
	return nil
}

func (m *Memory) ListCourses(_ context.Context) ([]*engine.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*engine.Course, 0, len(m.courses))
	for _, c := range m.courses {
		result = append(result, cloneCourse(c))
	}
	return result, nil
}

func (m *Memory) GetBatch(_ context.Context, id engine.BatchID) (*engine.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBatchLocked(id)
}

func (m *Memory) getBatchLocked(id engine.BatchID) (*engine.Batch, error) {
	b, ok := m.batches[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "batch", ID: string(id)}
	}
	return cloneBatch(b), nil
}

func (m *Memory) PutBatch(_ context.Context, b *engine.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = cloneBatch(b)
	return nil
}

func (m *Memory) ListBatchesByCourse(_ context.Context, courseID engine.CourseID) ([]*engine.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*engine.Batch
	for _, b := range m.batches {
		if b.CourseID == courseID {
			result = append(result, cloneBatch(b))
		}
	}
	return result, nil
}

func (m *Memory) TryIncrementEnrolled(_ context.Context, id engine.BatchID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tryIncrementLocked(id)
}

func (m *Memory) tryIncrementLocked(id engine.BatchID) (bool, error) {
	b, ok := m.batches[id]
	if !ok {
		return false, &engine.NotFoundError{Kind: "batch", ID: string(id)}
	}
	if b.MaxCapacity != nil && b.Enrolled >= *b.MaxCapacity {
		return false, nil
	}
	b.Enrolled++
	return true, nil
}

// --- users -------------------------------------------------------------------

func (m *Memory) GetUser(_ context.Context, id engine.UserID) (*engine.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getUserLocked(id)
}

func (m *Memory) getUserLocked(id engine.UserID) (*engine.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "user", ID: string(id)}
	}
	return cloneUser(u), nil
}

func (m *Memory) PutUser(_ context.Context, u *engine.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
	return nil
}

func (m *Memory) AddUserEnrollment(_ context.Context, userID engine.UserID, batchID engine.BatchID, courseID engine.CourseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addUserEnrollmentLocked(userID, batchID, courseID)
}

func (m *Memory) addUserEnrollmentLocked(userID engine.UserID, batchID engine.BatchID, courseID engine.CourseID) error {
	u, ok := m.users[userID]
	if !ok {
		return &engine.NotFoundError{Kind: "user", ID: string(userID)}
	}
	if !containsBatch(u.EnrolledBatches, batchID) {
		u.EnrolledBatches = append(u.EnrolledBatches, batchID)
	}
	if !containsCourse(u.EnrolledCourses, courseID) {
		u.EnrolledCourses = append(u.EnrolledCourses, courseID)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a transactional view. For the memory store
// this is simulated with a snapshot restored on error. The lock is held
// for the whole transaction, which also serializes concurrent WithTx
// calls the way a document store would serialize conflicting commits.
func (tm *TxMemory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshotLocked()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	enrollments map[engine.EnrollmentID]*engine.Enrollment
	byUser      map[engine.UserID][]engine.EnrollmentID
	courses     map[engine.CourseID]*engine.Course
	batches     map[engine.BatchID]*engine.Batch
	users       map[engine.UserID]*engine.User
}

func (tm *TxMemory) snapshotLocked() memorySnapshot {
	s := memorySnapshot{
		enrollments: make(map[engine.EnrollmentID]*engine.Enrollment, len(tm.enrollments)),
		byUser:      make(map[engine.UserID][]engine.EnrollmentID, len(tm.byUser)),
		courses:     make(map[engine.CourseID]*engine.Course, len(tm.courses)),
		batches:     make(map[engine.BatchID]*engine.Batch, len(tm.batches)),
		users:       make(map[engine.UserID]*engine.User, len(tm.users)),
	}
	for k, v := range tm.enrollments {
		s.enrollments[k] = v.Clone()
	}
	for k, v := range tm.byUser {
		s.byUser[k] = append([]engine.EnrollmentID(nil), v...)
	}
	for k, v := range tm.courses {
		s.courses[k] = cloneCourse(v)
	}
	for k, v := range tm.batches {
		s.batches[k] = cloneBatch(v)
	}
	for k, v := range tm.users {
		s.users[k] = cloneUser(v)
	}
	return s
}

func (tm *TxMemory) restoreLocked(s memorySnapshot) {
	tm.enrollments = s.enrollments
	tm.byUser = s.byUser
	tm.courses = s.courses
	tm.batches = s.batches
	tm.users = s.users
}

// txMemoryView routes Store calls to the parent's locked helpers. Only
// valid while the parent's mutex is held by WithTx.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetEnrollment(_ context.Context, id engine.EnrollmentID) (*engine.Enrollment, error) {
	return tv.parent.getEnrollmentLocked(id)
}

func (tv *txMemoryView) PutEnrollment(_ context.Context, e *engine.Enrollment) error {
	return tv.parent.putEnrollmentLocked(e)
}

func (tv *txMemoryView) ListEnrollmentsByUser(_ context.Context, userID engine.UserID) ([]*engine.Enrollment, error) {
	return tv.parent.listByUserLocked(userID), nil
}

func (tv *txMemoryView) FindActiveEnrollment(_ context.Context, userID engine.UserID, batchID engine.BatchID) (*engine.Enrollment, error) {
	return tv.parent.findActiveLocked(userID, batchID), nil
}

func (tv *txMemoryView) GetCourse(_ context.Context, id engine.CourseID) (*engine.Course, error) {
	return tv.parent.getCourseLocked(id)
}

func (tv *txMemoryView) PutCourse(_ context.Context, c *engine.Course) error {
	tv.parent.courses[c.ID] = cloneCourse(c)
	return nil
}

func (tv *txMemoryView) ListCourses(ctx context.Context) ([]*engine.Course, error) {
	result := make([]*engine.Course, 0, len(tv.parent.courses))
	for _, c := range tv.parent.courses {
		result = append(result, cloneCourse(c))
	}
	return result, nil
}

func (tv *txMemoryView) GetBatch(_ context.Context, id engine.BatchID) (*engine.Batch, error) {
	return tv.parent.getBatchLocked(id)
}

func (tv *txMemoryView) PutBatch(_ context.Context, b *engine.Batch) error {
	tv.parent.batches[b.ID] = cloneBatch(b)
	return nil
}

func (tv *txMemoryView) ListBatchesByCourse(_ context.Context, courseID engine.CourseID) ([]*engine.Batch, error) {
	var result []*engine.Batch
	for _, b := range tv.parent.batches {
		if b.CourseID == courseID {
			result = append(result, cloneBatch(b))
		}
	}
	return result, nil
}

func (tv *txMemoryView) TryIncrementEnrolled(_ context.Context, id engine.BatchID) (bool, error) {
	return tv.parent.tryIncrementLocked(id)
}

func (tv *txMemoryView) GetUser(_ context.Context, id engine.UserID) (*engine.User, error) {
	return tv.parent.getUserLocked(id)
}

func (tv *txMemoryView) PutUser(_ context.Context, u *engine.User) error {
	tv.parent.users[u.ID] = cloneUser(u)
	return nil
}

func (tv *txMemoryView) AddUserEnrollment(_ context.Context, userID engine.UserID, batchID engine.BatchID, courseID engine.CourseID) error {
	return tv.parent.addUserEnrollmentLocked(userID, batchID, courseID)
}

// =============================================================================
// CLONE HELPERS
// =============================================================================

func cloneCourse(c *engine.Course) *engine.Course {
	cp := *c
	if c.EndDate != nil {
		t := *c.EndDate
		cp.EndDate = &t
	}
	if c.AccessMonths != nil {
		n := *c.AccessMonths
		cp.AccessMonths = &n
	}
	cp.Prerequisites = append([]engine.CourseID(nil), c.Prerequisites...)
	return &cp
}

func cloneBatch(b *engine.Batch) *engine.Batch {
	cp := *b
	if b.MaxCapacity != nil {
		n := *b.MaxCapacity
		cp.MaxCapacity = &n
	}
	return &cp
}

func cloneUser(u *engine.User) *engine.User {
	cp := *u
	cp.EnrolledBatches = append([]engine.BatchID(nil), u.EnrolledBatches...)
	cp.EnrolledCourses = append([]engine.CourseID(nil), u.EnrolledCourses...)
	return &cp
}

func containsBatch(ids []engine.BatchID, id engine.BatchID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsCourse(ids []engine.CourseID, id engine.CourseID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
