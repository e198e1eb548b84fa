/*
Package sqlite provides a SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements engine.Store and engine.TxStore on SQLite. In production
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  enrollments  Every enrollment attempt and its lifecycle state
  courses      Catalog entries (end date, rolling window, prerequisites)
  batches      Cohorts with the enrolled counter and optional cap
  users        Identity profiles with additive enrollment sets

INVARIANTS ENFORCED IN SCHEMA:
  - idx_unique_active_enrollment: at most one ACTIVE enrollment per
    (user, batch). A race that slips past the engine's guard still
    cannot commit two.
  - TryIncrementEnrolled uses a conditional UPDATE, so the capacity
    check and the increment are one statement; two activations racing
    for the last slot cannot both see a free slot.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/esystemlk/lms-smartlabs-sub000/engine"
)

// Store implements engine.TxStore on SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New opens (and migrates) a SQLite store. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: SQLite allows one writer, and WithTx must not
	// interleave with writes on another connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, queries: queries{db: db}}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		end_date TEXT,
		access_months INTEGER,
		prerequisites_json TEXT NOT NULL DEFAULT '[]',
		lesson_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL REFERENCES courses(id),
		name TEXT NOT NULL,
		max_capacity INTEGER,
		enrolled INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_course
		ON batches(course_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		enrolled_batches_json TEXT NOT NULL DEFAULT '[]',
		enrolled_courses_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_email TEXT NOT NULL,
		user_name TEXT NOT NULL,
		course_id TEXT NOT NULL,
		course_title TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		batch_name TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		amount TEXT NOT NULL,
		receipt_url TEXT NOT NULL DEFAULT '',
		access_deadline TEXT,
		completed_lessons_json TEXT NOT NULL DEFAULT '[]',
		progress INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_accessed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_user_created
		ON enrollments(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_enrollments_status
		ON enrollments(status);

	-- CRITICAL: a user holds at most one active enrollment per batch.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_enrollment
		ON enrollments(user_id, batch_id)
		WHERE status = 'active';
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes fn against a transactional view. fn's error rolls the
// transaction back and is returned unchanged; begin/commit failures
// surface as their own errors.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// QUERIES - engine.Store over either *sql.DB or *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

const enrollmentColumns = `id, user_id, user_email, user_name, course_id, course_title,
	batch_id, batch_name, status, payment_method, amount, receipt_url,
	access_deadline, completed_lessons_json, progress, created_at, updated_at, last_accessed_at`

// --- enrollments -------------------------------------------------------------

func (q *queries) GetEnrollment(ctx context.Context, id engine.EnrollmentID) (*engine.Enrollment, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ?`, id)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "enrollment", ID: string(id)}
	}
	return e, err
}

func (q *queries) PutEnrollment(ctx context.Context, e *engine.Enrollment) error {
	lessons, err := json.Marshal(e.CompletedLessons)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			receipt_url = excluded.receipt_url,
			access_deadline = excluded.access_deadline,
			completed_lessons_json = excluded.completed_lessons_json,
			progress = excluded.progress,
			updated_at = excluded.updated_at,
			last_accessed_at = excluded.last_accessed_at`,
		e.ID, e.UserID, e.UserEmail, e.UserName, e.CourseID, e.CourseTitle,
		e.BatchID, e.BatchName, e.Status, e.PaymentMethod, e.Amount.String(), e.ReceiptURL,
		nullTime(e.AccessDeadline), string(lessons), e.Progress,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt), nullTime(e.LastAccessedAt))
	if err != nil {
		return fmt.Errorf("failed to put enrollment: %w", err)
	}
	return nil
}

func (q *queries) ListEnrollmentsByUser(ctx context.Context, userID engine.UserID) ([]*engine.Enrollment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*engine.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (q *queries) FindActiveEnrollment(ctx context.Context, userID engine.UserID, batchID engine.BatchID) (*engine.Enrollment, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE user_id = ? AND batch_id = ? AND status = 'active'`, userID, batchID)
	e, err := scanEnrollment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// --- catalog -----------------------------------------------------------------

func (q *queries) GetCourse(ctx context.Context, id engine.CourseID) (*engine.Course, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, title, end_date, access_months, prerequisites_json, lesson_count, created_at
		FROM courses WHERE id = ?`, id)
	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "course", ID: string(id)}
	}
	return c, err
}

func (q *queries) PutCourse(ctx context.Context, c *engine.Course) error {
	prereqs, err := json.Marshal(c.Prerequisites)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO courses (id, title, end_date, access_months, prerequisites_json, lesson_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			end_date = excluded.end_date,
			access_months = excluded.access_months,
			prerequisites_json = excluded.prerequisites_json,
			lesson_count = excluded.lesson_count`,
		c.ID, c.Title, nullTime(c.EndDate), nullInt(c.AccessMonths),
		string(prereqs), c.LessonCount, formatTime(c.CreatedAt))
	return err
}

func (q *queries) ListCourses(ctx context.Context) ([]*engine.Course, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, title, end_date, access_months, prerequisites_json, lesson_count, created_at
		FROM courses ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*engine.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (q *queries) GetBatch(ctx context.Context, id engine.BatchID) (*engine.Batch, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, course_id, name, max_capacity, enrolled, created_at
		FROM batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "batch", ID: string(id)}
	}
	return b, err
}

func (q *queries) PutBatch(ctx context.Context, b *engine.Batch) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO batches (id, course_id, name, max_capacity, enrolled, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			max_capacity = excluded.max_capacity`,
		b.ID, b.CourseID, b.Name, nullInt(b.MaxCapacity), b.Enrolled, formatTime(b.CreatedAt))
	return err
}

func (q *queries) ListBatchesByCourse(ctx context.Context, courseID engine.CourseID) ([]*engine.Batch, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, course_id, name, max_capacity, enrolled, created_at
		FROM batches WHERE course_id = ? ORDER BY created_at ASC, id ASC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*engine.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// TryIncrementEnrolled does the capacity check and the increment in a
// single conditional UPDATE, so racing activations serialize on the row.
func (q *queries) TryIncrementEnrolled(ctx context.Context, id engine.BatchID) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE batches
		SET enrolled = enrolled + 1
		WHERE id = ? AND (max_capacity IS NULL OR enrolled < max_capacity)`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	// Distinguish "full" from "no such batch".
	var exists int
	err = q.db.QueryRowContext(ctx, `SELECT 1 FROM batches WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, &engine.NotFoundError{Kind: "batch", ID: string(id)}
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// --- users -------------------------------------------------------------------

func (q *queries) GetUser(ctx context.Context, id engine.UserID) (*engine.User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, email, name, enrolled_batches_json, enrolled_courses_json, created_at
		FROM users WHERE id = ?`, id)

	var (
		u           engine.User
		batchesJSON string
		coursesJSON string
		createdAt   string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &batchesJSON, &coursesJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &engine.NotFoundError{Kind: "user", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(batchesJSON), &u.EnrolledBatches); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(coursesJSON), &u.EnrolledCourses); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) PutUser(ctx context.Context, u *engine.User) error {
	batches, err := json.Marshal(u.EnrolledBatches)
	if err != nil {
		return err
	}
	courses, err := json.Marshal(u.EnrolledCourses)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, enrolled_batches_json, enrolled_courses_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			enrolled_batches_json = excluded.enrolled_batches_json,
			enrolled_courses_json = excluded.enrolled_courses_json`,
		u.ID, u.Email, u.Name, string(batches), string(courses), formatTime(u.CreatedAt))
	return err
}

// AddUserEnrollment unions the batch and course into the user's sets.
// The engine only calls this inside WithTx, so the read-modify-write is
// covered by the enclosing transaction.
func (q *queries) AddUserEnrollment(ctx context.Context, userID engine.UserID, batchID engine.BatchID, courseID engine.CourseID) error {
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	changed := false
	if !containsBatchID(u.EnrolledBatches, batchID) {
		u.EnrolledBatches = append(u.EnrolledBatches, batchID)
		changed = true
	}
	if !containsCourseID(u.EnrolledCourses, courseID) {
		u.EnrolledCourses = append(u.EnrolledCourses, courseID)
		changed = true
	}
	if !changed {
		return nil
	}
	return q.PutUser(ctx, u)
}

// =============================================================================
// SCANNING / ENCODING HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*engine.Enrollment, error) {
	var (
		e            engine.Enrollment
		amount       string
		deadline     sql.NullString
		lessonsJSON  string
		createdAt    string
		updatedAt    string
		lastAccessed sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.UserEmail, &e.UserName, &e.CourseID, &e.CourseTitle,
		&e.BatchID, &e.BatchName, &e.Status, &e.PaymentMethod, &amount, &e.ReceiptURL,
		&deadline, &lessonsJSON, &e.Progress, &createdAt, &updatedAt, &lastAccessed)
	if err != nil {
		return nil, err
	}

	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	if err := json.Unmarshal([]byte(lessonsJSON), &e.CompletedLessons); err != nil {
		return nil, err
	}
	if e.AccessDeadline, err = parseNullTime(deadline); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if e.LastAccessedAt, err = parseNullTime(lastAccessed); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanCourse(row rowScanner) (*engine.Course, error) {
	var (
		c           engine.Course
		endDate     sql.NullString
		months      sql.NullInt64
		prereqsJSON string
		createdAt   string
	)
	err := row.Scan(&c.ID, &c.Title, &endDate, &months, &prereqsJSON, &c.LessonCount, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(prereqsJSON), &c.Prerequisites); err != nil {
		return nil, err
	}
	if c.EndDate, err = parseNullTime(endDate); err != nil {
		return nil, err
	}
	if months.Valid {
		n := int(months.Int64)
		c.AccessMonths = &n
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanBatch(row rowScanner) (*engine.Batch, error) {
	var (
		b         engine.Batch
		max       sql.NullInt64
		createdAt string
	)
	err := row.Scan(&b.ID, &b.CourseID, &b.Name, &max, &b.Enrolled, &createdAt)
	if err != nil {
		return nil, err
	}
	if max.Valid {
		n := int(max.Int64)
		b.MaxCapacity = &n
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func containsBatchID(ids []engine.BatchID, id engine.BatchID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsCourseID(ids []engine.CourseID, id engine.CourseID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
