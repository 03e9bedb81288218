package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/payment"
)

const (
	studentA = "2b7e1f0a-6c3d-4e59-8a21-0f4d5c6b7a81"
	studentB = "3c8f2a1b-7d4e-4f6a-9b32-1a5e6d7c8b92"
	studentC = "4d9a3b2c-8e5f-4a7b-8c43-2b6f7e8d9ca3"
)

// memStore backs the repository stubs used by service tests. Transactions are not modelled;
// the sqlmock provider only checks that begin/commit/rollback happen.
type memStore struct {
	mu           sync.Mutex
	seq          int
	users        map[string]*models.User
	lecturers    map[string]bool
	guardians    map[string]string
	institutions map[string]*models.Institution
	courses      map[string]*models.Course
	enrollments  []models.Enrollment
	payments     map[string]*models.Payment
	attendance   map[string]models.Attendance
	instStudents map[string]bool
	instLecturer map[string]bool
	exams        map[string]*models.Exam
	grades       map[string]models.Grade
	now          time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*models.User{},
		lecturers:    map[string]bool{},
		guardians:    map[string]string{},
		institutions: map[string]*models.Institution{},
		courses:      map[string]*models.Course{},
		payments:     map[string]*models.Payment{},
		attendance:   map[string]models.Attendance{},
		instStudents: map[string]bool{},
		instLecturer: map[string]bool{},
		exams:        map[string]*models.Exam{},
		grades:       map[string]models.Grade{},
		now:          time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addUser(id string, role models.UserRole) {
	m.users[id] = &models.User{ID: id, Email: id + "@edu.test", FullName: "User " + id, Role: role, Verified: true}
	if role == models.RoleLecturer {
		m.lecturers[id] = true
	}
}

func (m *memStore) addInstitution(id, payout string) {
	m.addUser(id, models.RoleInstitution)
	inst := &models.Institution{UserID: id, Name: "Inst " + id}
	if payout != "" {
		inst.PayoutAccountID = &payout
	}
	m.institutions[id] = inst
}

func (m *memStore) addCourse(c models.Course) *models.Course {
	course := c
	if course.ID == "" {
		course.ID = m.nextID("course")
	}
	m.courses[course.ID] = &course
	return &course
}

func (m *memStore) enroll(studentID, courseID string) {
	m.enrollments = append(m.enrollments, models.Enrollment{ID: m.nextID("enr"), StudentID: studentID, CourseID: courseID})
}

func (m *memStore) enrollmentCount(studentID, courseID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			n++
		}
	}
	return n
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *memStore) isEnrolled(studentID, courseID string) bool {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true
		}
	}
	return false
}

// memCourses implements the course repository contracts.
type memCourses struct{ *memStore }

func (r memCourses) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if course.ID == "" {
		course.ID = r.nextID("course")
	}
	dup := *course
	r.courses[course.ID] = &dup
	return nil
}

func (r memCourses) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dup := *course
	r.courses[course.ID] = &dup
	return nil
}

func (r memCourses) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.courses, id)
	return nil
}

func (r memCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *c
	return &dup, nil
}

func (r memCourses) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	return r.FindByID(ctx, id)
}

func (r memCourses) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Course
	for _, c := range r.courses {
		if filter.InstitutionID != "" && c.InstitutionID != filter.InstitutionID {
			continue
		}
		if filter.LecturerID != "" && (c.LecturerID == nil || *c.LecturerID != filter.LecturerID) {
			continue
		}
		if filter.StudentID != "" && !r.isEnrolled(filter.StudentID, c.ID) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r memCourses) ListByLecturer(ctx context.Context, exec sqlx.ExtContext, lecturerID string) ([]models.Course, error) {
	out, _, err := r.List(ctx, models.CourseFilter{LecturerID: lecturerID})
	return out, err
}

func (r memCourses) ListByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Course, error) {
	out, _, err := r.List(ctx, models.CourseFilter{StudentID: studentID})
	return out, err
}

func (r memCourses) HasPayments(ctx context.Context, courseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (r memCourses) HasAttendance(ctx context.Context, courseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attendance {
		if a.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

// memAccounts implements user lookups and lecturer locks.
type memAccounts struct{ *memStore }

func (r memAccounts) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *u
	return &dup, nil
}

func (r memAccounts) LockLecturer(ctx context.Context, exec sqlx.ExtContext, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.lecturers[id] {
		return sql.ErrNoRows
	}
	return nil
}

func (r memAccounts) StudentContact(ctx context.Context, studentID string) (*models.StudentContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	contact := &models.StudentContact{UserID: u.ID, Email: u.Email, FullName: u.FullName}
	if g, ok := r.guardians[studentID]; ok {
		contact.GuardianEmail = &g
	}
	return contact, nil
}

// memInstitutions implements institution lookups and memberships.
type memInstitutions struct{ *memStore }

func (r memInstitutions) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Institution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.institutions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *inst
	return &dup, nil
}

func (r memInstitutions) AddStudent(ctx context.Context, exec sqlx.ExtContext, institutionID, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instStudents[institutionID+"|"+studentID] = true
	return nil
}

func (r memInstitutions) AddLecturer(ctx context.Context, exec sqlx.ExtContext, institutionID, lecturerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instLecturer[institutionID+"|"+lecturerID] = true
	return nil
}

// memEnrollments implements enrollment persistence.
type memEnrollments struct{ *memStore }

func (r memEnrollments) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isEnrolled(enrollment.StudentID, enrollment.CourseID) {
		return false, nil
	}
	enrollment.ID = r.nextID("enr")
	r.enrollments = append(r.enrollments, *enrollment)
	return true, nil
}

func (r memEnrollments) Exists(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isEnrolled(studentID, courseID), nil
}

func (r memEnrollments) CountByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (r memEnrollments) EnrolledAmong(ctx context.Context, courseID string, studentIDs []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, id := range studentIDs {
		if r.isEnrolled(id, courseID) {
			out[id] = true
		}
	}
	return out, nil
}

// memPayments implements payment persistence.
type memPayments struct{ *memStore }

func (r memPayments) Create(ctx context.Context, exec sqlx.ExtContext, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID("pay")
	p.CreatedAt = r.now
	p.UpdatedAt = r.now
	dup := *p
	r.payments[p.ID] = &dup
	return nil
}

func (r memPayments) FindByReferenceForUpdate(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ProviderReference == reference {
			dup := *p
			return &dup, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memPayments) MarkPaid(ctx context.Context, exec sqlx.ExtContext, id string, refundRequired bool, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Paid {
		return false, nil
	}
	p.Paid = true
	p.RefundRequired = refundRequired
	p.PaidAt = &at
	return true, nil
}

func (r memPayments) CountHolds(ctx context.Context, exec sqlx.ExtContext, courseID, excludeStudentID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.payments {
		if p.CourseID == courseID && !p.Paid && p.StudentID != excludeStudentID && p.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (r memPayments) ListPending(ctx context.Context, from, to time.Time, limit int) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.payments {
		if !p.Paid && !p.CreatedAt.Before(from) && !p.CreatedAt.After(to) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memAttendance implements attendance persistence and aggregation.
type memAttendance struct{ *memStore }

func (r memAttendance) Upsert(ctx context.Context, record *models.Attendance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%d", record.CourseID, record.StudentID, record.LectureNumber)
	if existing, ok := r.attendance[key]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		record.ID = r.nextID("att")
		record.CreatedAt = r.now
	}
	record.UpdatedAt = r.now
	r.attendance[key] = *record
	return nil
}

func (r memAttendance) ListByLecture(ctx context.Context, courseID string, lecture int) ([]models.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Attendance
	for _, a := range r.attendance {
		if a.CourseID == courseID && a.LectureNumber == lecture {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (r memAttendance) PresentCounts(ctx context.Context, courseID string) ([]models.StudentProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	course := r.courses[courseID]
	var out []models.StudentProgress
	for _, e := range r.enrollments {
		if e.CourseID != courseID {
			continue
		}
		row := models.StudentProgress{StudentID: e.StudentID}
		if u, ok := r.users[e.StudentID]; ok {
			row.StudentName = u.FullName
		}
		for _, a := range r.attendance {
			if a.CourseID == courseID && a.StudentID == e.StudentID && a.Status == models.AttendancePresent &&
				course != nil && a.LectureNumber <= course.TotalLectures {
				row.PresentCount++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// memGrades implements exam and grade persistence.
type memGrades struct{ *memStore }

func (r memGrades) CreateExam(ctx context.Context, exam *models.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exam.ID = r.nextID("exam")
	exam.CreatedAt = r.now
	dup := *exam
	r.exams[exam.ID] = &dup
	return nil
}

func (r memGrades) FindExam(ctx context.Context, id string) (*models.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exam, ok := r.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	dup := *exam
	return &dup, nil
}

func (r memGrades) Upsert(ctx context.Context, grade *models.Grade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := grade.ExamID + "|" + grade.StudentID
	if existing, ok := r.grades[key]; ok {
		grade.ID = existing.ID
	} else {
		grade.ID = r.nextID("grade")
	}
	r.grades[key] = *grade
	return nil
}

func (r memGrades) ListByExam(ctx context.Context, examID string) ([]models.Grade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Grade
	for _, g := range r.grades {
		if g.ExamID == examID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// memCache is a CacheRepository keeping JSON payloads in memory.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// fakeProvider is an in-memory checkout provider. Webhook payloads are JSON encoded payment.Event
// values and the only accepted signature is "valid".
type fakeProvider struct {
	mu        sync.Mutex
	sessions  int
	createErr error
	paid      map[string]bool
	requests  []payment.CheckoutRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{paid: map[string]bool{}}
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.sessions++
	ref := fmt.Sprintf("cs_test_%d", p.sessions)
	return &payment.CheckoutSession{URL: "https://checkout.test/" + ref, Reference: ref}, nil
}

func (p *fakeProvider) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	if signature != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	var event payment.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (p *fakeProvider) IsPaid(ctx context.Context, reference string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paid[reference], nil
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func webhookPayload(t *testing.T, eventType, reference string) []byte {
	t.Helper()
	body, err := json.Marshal(payment.Event{ID: "evt_" + reference, Type: eventType, Reference: reference})
	require.NoError(t, err)
	return body
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// expectTx queues one transaction ending in commit or rollback.
func expectTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func claimsFor(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role, Verified: true}
}

func strPtr(v string) *string { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
