//go:build integration

package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/internal/repository"
	"github.com/noah-isme/edu-scheduling-api/pkg/database"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/payment"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("edu"),
		postgres.WithUsername("edu"),
		postgres.WithPassword("edu"),
		tc.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.Open(uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, database.MigrateUp))
	return db
}

type integrationEnv struct {
	db          *sqlx.DB
	provider    *fakeProvider
	users       *UserService
	courses     *CourseService
	dashboard   *DashboardService
	enrollments *EnrollmentService
	progress    *ProgressService
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	db := startPostgres(t)
	userRepo := repository.NewUserRepository(db)
	institutionRepo := repository.NewInstitutionRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	provider := newFakeProvider()

	return &integrationEnv{
		db:        db,
		provider:  provider,
		users:     NewUserService(db, userRepo, nil, nil),
		courses:   NewCourseService(db, courseRepo, userRepo, institutionRepo, nil, nil, nil),
		dashboard: NewDashboardService(DashboardServiceParams{Repo: institutionRepo}),
		enrollments: NewEnrollmentService(db, courseRepo, enrollmentRepo, repository.NewPaymentRepository(db),
			institutionRepo, userRepo, provider, nil, nil, nil, nil, EnrollmentConfig{}),
		progress: NewProgressService(courseRepo, repository.NewAttendanceRepository(db), enrollmentRepo, nil, 0, nil),
	}
}

func (e *integrationEnv) signup(t *testing.T, role models.UserRole) string {
	t.Helper()
	id := uuid.NewString()
	_, err := e.users.Signup(context.Background(), dto.SignupRequest{
		UserID:          id,
		Email:           id + "@edu.test",
		FullName:        "User " + id[:8],
		Role:            role,
		Verified:        true,
		InstitutionName: "Academy " + id[:8],
	})
	require.NoError(t, err)
	return id
}

func (e *integrationEnv) course(t *testing.T, capacity int) *models.Course {
	t.Helper()
	institution := e.signup(t, models.RoleInstitution)
	require.NoError(t, e.dashboard.SetPayout(context.Background(), dto.PayoutRequest{PayoutAccountID: "acct_it"}, claimsFor(institution, models.RoleInstitution)))

	req := courseRequest()
	req.Capacity = capacity
	course, err := e.courses.Create(context.Background(), req, claimsFor(institution, models.RoleInstitution))
	require.NoError(t, err)
	require.Equal(t, 10, course.TotalLectures)
	return course
}

func TestIntegrationLastSeatAdmitsOneStudent(t *testing.T) {
	env := newIntegrationEnv(t)
	course := env.course(t, 1)

	const applicants = 6
	students := make([]string, applicants)
	for i := range students {
		students[i] = env.signup(t, models.RoleStudent)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []*dto.EnrollResponse
		full     int
	)
	for _, id := range students {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			resp, err := env.enrollments.Enroll(context.Background(), course.ID, claimsFor(studentID, models.RoleStudent))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				appErr := appErrors.FromError(err)
				assert.Equal(t, http.StatusConflict, appErr.Status, appErr.Message)
				full++
				return
			}
			admitted = append(admitted, resp)
		}(id)
	}
	wg.Wait()

	require.Len(t, admitted, 1)
	assert.Equal(t, applicants-1, full)
	assert.Equal(t, int64(10000), admitted[0].Amount)
	assert.Equal(t, 1, env.provider.calls())
}

func TestIntegrationDuplicateWebhooksEnrollOnce(t *testing.T) {
	env := newIntegrationEnv(t)
	course := env.course(t, 5)
	student := env.signup(t, models.RoleStudent)

	checkout, err := env.enrollments.Enroll(context.Background(), course.ID, claimsFor(student, models.RoleStudent))
	require.NoError(t, err)

	var reference string
	require.NoError(t, env.db.Get(&reference, `SELECT provider_reference FROM payments WHERE id = $1`, checkout.PaymentID))
	body := webhookPayload(t, payment.EventCheckoutCompleted, reference)

	outcomes := make([]models.ConfirmationOutcome, 4)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := env.enrollments.HandleWebhook(context.Background(), body, "valid")
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	enrolled := 0
	for _, o := range outcomes {
		if o == models.ConfirmationEnrolled {
			enrolled++
			continue
		}
		assert.Equal(t, models.ConfirmationDuplicate, o)
	}
	assert.Equal(t, 1, enrolled)

	var rows int
	require.NoError(t, env.db.Get(&rows, `SELECT COUNT(*) FROM enrollments WHERE student_id = $1 AND course_id = $2`, student, course.ID))
	assert.Equal(t, 1, rows)

	var paid bool
	require.NoError(t, env.db.Get(&paid, `SELECT paid FROM payments WHERE id = $1`, checkout.PaymentID))
	assert.True(t, paid)

	report, _, err := env.progress.Progress(context.Background(), course.ID, claimsFor(student, models.RoleStudent))
	require.NoError(t, err)
	require.Len(t, report.Students, 1)
	assert.Zero(t, report.Students[0].ProgressPercentage)
}
