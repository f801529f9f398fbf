// Package course serves the teacher and student dashboards.
package course

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

const recentLimit = 5

var ErrWrongRole = errors.New("profile has the wrong role for this dashboard")

type (
	// Repository reads the course records visible to the user whose access token is in ctx
	// (see auth.ContextWithAccessToken).
	Repository interface {
		// CoursesByTeacher returns the courses created by teacherID, newest first, with their enrollment count.
		CoursesByTeacher(ctx context.Context, teacherID string) ([]Course, error)
		// AssignmentsByTeacher returns the last assignments created by teacherID, with their course title.
		AssignmentsByTeacher(ctx context.Context, teacherID string, limit int) ([]Assignment, error)
		// UngradedSubmissions returns the last ungraded submissions to the courses of teacherID.
		UngradedSubmissions(ctx context.Context, teacherID string, limit int) ([]Submission, error)
		// EnrollmentsByStudent returns the enrollments of studentID, newest first, with course and teacher name.
		EnrollmentsByStudent(ctx context.Context, studentID string) ([]Enrollment, error)
		// UpcomingAssignments returns the first assignments of courseIDs by due date (undated last),
		// each with the submissions of studentID.
		UpcomingAssignments(ctx context.Context, studentID string, courseIDs []string, limit int) ([]Assignment, error)
		// SubmissionsByStudent returns the last submissions of studentID with assignment and course titles.
		SubmissionsByStudent(ctx context.Context, studentID string, limit int) ([]Submission, error)
	}

	Service struct {
		repo Repository
	}

	TeacherDashboard struct {
		Courses     []Course     `json:"courses"`
		Assignments []Assignment `json:"assignments"`
		Submissions []Submission `json:"submissions"` // to grade
		Stats       TeacherStats `json:"stats"`
	}

	TeacherStats struct {
		Courses       int `json:"courses"`
		Students      int `json:"students"`
		Assignments   int `json:"assignments"`
		PendingGrades int `json:"pending_grades"`
	}

	StudentDashboard struct {
		Courses     []Course     `json:"courses"`
		Assignments []Assignment `json:"assignments"`
		Submissions []Submission `json:"submissions"`
		Stats       StudentStats `json:"stats"`
	}

	StudentStats struct {
		Courses   int `json:"courses"`
		Pending   int `json:"pending"`
		Completed int `json:"completed"`
		// AverageGrade is the rounded mean of the graded submissions; nil when none is graded.
		AverageGrade *int `json:"average_grade"`
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) TeacherDashboard(ctx context.Context, profile auth.Profile) (TeacherDashboard, error) {
	if profile.Role != auth.RoleTeacher {
		return TeacherDashboard{}, ErrWrongRole
	}

	courses, err := svc.repo.CoursesByTeacher(ctx, profile.ID)
	if err != nil {
		return TeacherDashboard{}, errors.Wrap(err, "querying courses")
	}
	assignments, err := svc.repo.AssignmentsByTeacher(ctx, profile.ID, recentLimit)
	if err != nil {
		return TeacherDashboard{}, errors.Wrap(err, "querying assignments")
	}
	submissions, err := svc.repo.UngradedSubmissions(ctx, profile.ID, recentLimit)
	if err != nil {
		return TeacherDashboard{}, errors.Wrap(err, "querying submissions")
	}

	stats := TeacherStats{
		Courses:       len(courses),
		Assignments:   len(assignments),
		PendingGrades: len(submissions),
	}
	for _, c := range courses {
		stats.Students += c.EnrollmentCount
	}
	return TeacherDashboard{Courses: courses, Assignments: assignments, Submissions: submissions, Stats: stats}, nil
}

func (svc *Service) StudentDashboard(ctx context.Context, profile auth.Profile) (StudentDashboard, error) {
	if profile.Role != auth.RoleStudent {
		return StudentDashboard{}, ErrWrongRole
	}

	enrollments, err := svc.repo.EnrollmentsByStudent(ctx, profile.ID)
	if err != nil {
		return StudentDashboard{}, errors.Wrap(err, "querying enrollments")
	}
	courses := make([]Course, 0, len(enrollments))
	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courses = append(courses, e.Course)
		courseIDs = append(courseIDs, e.CourseID)
	}

	var assignments []Assignment
	if len(courseIDs) > 0 {
		if assignments, err = svc.repo.UpcomingAssignments(ctx, profile.ID, courseIDs, recentLimit); err != nil {
			return StudentDashboard{}, errors.Wrap(err, "querying assignments")
		}
	}
	submissions, err := svc.repo.SubmissionsByStudent(ctx, profile.ID, recentLimit)
	if err != nil {
		return StudentDashboard{}, errors.Wrap(err, "querying submissions")
	}

	stats := StudentStats{Courses: len(courses)}
	for _, a := range assignments {
		if !a.IsSubmitted() {
			stats.Pending++
		}
	}
	var total float64
	for _, s := range submissions {
		if s.IsGraded() {
			stats.Completed++
			total += *s.Grade
		}
	}
	if stats.Completed > 0 {
		avg := int(math.Round(total / float64(stats.Completed)))
		stats.AverageGrade = &avg
	}
	return StudentDashboard{Courses: courses, Assignments: assignments, Submissions: submissions, Stats: stats}, nil
}

// FormatGrade renders an average grade as shown on the dashboard.
func FormatGrade(grade *int) string {
	if grade == nil || *grade <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", *grade)
}
