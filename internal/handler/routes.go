package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/middleware"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

// Handlers groups the API handlers mounted by Register.
type Handlers struct {
	Registration *RegistrationHandler
	Documents    *DocumentHandler
	Courses      *CourseHandler
	Schedule     *ScheduleHandler
	Enrollment   *EnrollmentHandler
	Attendance   *AttendanceHandler
	Grades       *GradeHandler
	Progress     *ProgressHandler
	Institution  *InstitutionHandler
}

var (
	anyone            = middleware.Policy{}
	institutionOnly   = middleware.Allow(models.RoleInstitution).Verified()
	courseStaff       = middleware.Allow(models.RoleInstitution, models.RoleLecturer)
	verifiedStudent   = middleware.Allow(models.RoleStudent).Verified()
	courseParticipant = middleware.Allow(models.RoleInstitution, models.RoleLecturer, models.RoleStudent)
)

// Register mounts the API on r. authn must place claims on the context; the webhook route is
// mounted without it because the provider authenticates with a signature.
func Register(r gin.IRouter, h Handlers, authn gin.HandlerFunc) {
	authorize := middleware.Authorize

	r.POST("/registration/signup", h.Registration.Signup)
	r.POST("/payments/webhook", h.Enrollment.Webhook)

	secured := r.Group("", authn)
	secured.POST("/documents/classify", authorize(anyone), h.Documents.Classify)

	secured.POST("/courses", authorize(institutionOnly), h.Courses.Create)
	secured.GET("/courses", authorize(anyone), h.Courses.List)
	secured.GET("/courses/mine", authorize(anyone), h.Courses.Mine)
	secured.GET("/courses/:id", authorize(anyone), h.Courses.Get)
	secured.PUT("/courses/:id", authorize(institutionOnly), h.Courses.Update)
	secured.DELETE("/courses/:id", authorize(institutionOnly), h.Courses.Delete)

	secured.POST("/schedule/conflicts", authorize(anyone), h.Schedule.Conflicts)

	secured.POST("/courses/:id/enroll", authorize(verifiedStudent), h.Enrollment.Enroll)

	secured.POST("/courses/:id/attendance", authorize(courseStaff), h.Attendance.Mark)
	secured.GET("/courses/:id/attendance/:lecture", authorize(courseStaff), h.Attendance.ListLecture)

	secured.POST("/courses/:id/exams", authorize(courseStaff), h.Grades.CreateExam)
	secured.POST("/exams/:id/grades", authorize(courseStaff), h.Grades.Grade)
	secured.GET("/exams/:id/grades", authorize(courseStaff), h.Grades.List)

	secured.GET("/courses/:id/progress", authorize(courseParticipant), h.Progress.Progress)
	secured.GET("/courses/:id/progress/export", authorize(courseStaff), h.Progress.Export)

	secured.GET("/institution/stats", authorize(institutionOnly), h.Institution.Stats)
	secured.GET("/institution/schedule", authorize(institutionOnly), h.Institution.Schedule)
	secured.PUT("/institution/payout", authorize(institutionOnly), h.Institution.Payout)
}
