package sqlxrepos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

// column lists, NULLable text mapped to ""
const (
	courseColumns = `c.id, c.title, COALESCE(c.description, '') AS description, COALESCE(c.duration, 0) AS duration,
		c.created_by, c.created_at, c.updated_at,
		COALESCE(t.name, '') AS teacher_name,
		(SELECT COUNT(*) FROM enrollments ce WHERE ce.course_id = c.id) AS enrollment_count`

	assignmentColumns = `a.id, a.course_id, a.title, COALESCE(a.description, '') AS description, a.due_date,
		a.created_by, a.created_at, a.updated_at, c.title AS course_title`

	submissionColumns = `s.id, s.assignment_id, s.student_id, COALESCE(s.content, '') AS content,
		COALESCE(s.file_url, '') AS file_url, s.grade, COALESCE(s.feedback, '') AS feedback, s.submitted_at, s.graded_at`
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	q := `SELECT ` + courseColumns + `
		FROM courses c LEFT JOIN profiles t ON t.id = c.created_by
		WHERE c.created_by = $1
		ORDER BY ` + core.Desc("c.created_at").String()

	courses := make([]course.Course, 0)
	if err := repo.db.SelectContext(ctx, &courses, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return courses, nil
}

func (repo *courseRepository) AssignmentsByTeacher(ctx context.Context, teacherID string, limit int) ([]course.Assignment, error) {
	q := `SELECT ` + assignmentColumns + `
		FROM assignments a JOIN courses c ON c.id = a.course_id
		WHERE a.created_by = $1
		ORDER BY ` + core.Desc("a.created_at").String() + limitClause(limit)

	assignments := make([]course.Assignment, 0)
	if err := repo.db.SelectContext(ctx, &assignments, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	return assignments, nil
}

func (repo *courseRepository) UngradedSubmissions(ctx context.Context, teacherID string, limit int) ([]course.Submission, error) {
	q := `SELECT ` + submissionColumns + `, a.title AS assignment_title, c.title AS course_title, COALESCE(p.name, '') AS student_name
		FROM submissions s
		JOIN assignments a ON a.id = s.assignment_id
		JOIN courses c ON c.id = a.course_id
		LEFT JOIN profiles p ON p.id = s.student_id
		WHERE c.created_by = $1 AND s.grade IS NULL
		ORDER BY ` + core.Desc("s.submitted_at").String() + limitClause(limit)

	submissions := make([]course.Submission, 0)
	if err := repo.db.SelectContext(ctx, &submissions, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	return submissions, nil
}

func (repo *courseRepository) EnrollmentsByStudent(ctx context.Context, studentID string) ([]course.Enrollment, error) {
	const q = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at,
			c.id AS "course.id", c.title AS "course.title", COALESCE(c.description, '') AS "course.description",
			COALESCE(c.duration, 0) AS "course.duration", c.created_by AS "course.created_by",
			c.created_at AS "course.created_at", c.updated_at AS "course.updated_at",
			COALESCE(t.name, '') AS "course.teacher_name",
			(SELECT COUNT(*) FROM enrollments ce WHERE ce.course_id = c.id) AS "course.enrollment_count"
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		LEFT JOIN profiles t ON t.id = c.created_by
		WHERE e.student_id = $1
		ORDER BY e.enrolled_at DESC`

	enrollments := make([]course.Enrollment, 0)
	if err := repo.db.SelectContext(ctx, &enrollments, q, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	return enrollments, nil
}

func (repo *courseRepository) UpcomingAssignments(ctx context.Context, studentID string, courseIDs []string, limit int) ([]course.Assignment, error) {
	assignments := make([]course.Assignment, 0)
	if len(courseIDs) == 0 {
		return assignments, nil
	}

	q := `SELECT ` + assignmentColumns + `
		FROM assignments a JOIN courses c ON c.id = a.course_id
		WHERE a.course_id = ANY($1)
		ORDER BY ` + core.Asc("a.due_date").String() + limitClause(limit)

	if err := repo.db.SelectContext(ctx, &assignments, q, pq.Array(courseIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	if len(assignments) == 0 {
		return assignments, nil
	}

	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	q = `SELECT ` + submissionColumns + `
		FROM submissions s
		WHERE s.student_id = $1 AND s.assignment_id = ANY($2)`

	var submissions []course.Submission
	if err := repo.db.SelectContext(ctx, &submissions, q, studentID, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	for i := range assignments {
		for _, s := range submissions {
			if s.AssignmentID == assignments[i].ID {
				assignments[i].Submissions = append(assignments[i].Submissions, s)
			}
		}
	}
	return assignments, nil
}

func (repo *courseRepository) SubmissionsByStudent(ctx context.Context, studentID string, limit int) ([]course.Submission, error) {
	q := `SELECT ` + submissionColumns + `, a.title AS assignment_title, c.title AS course_title
		FROM submissions s
		JOIN assignments a ON a.id = s.assignment_id
		JOIN courses c ON c.id = a.course_id
		WHERE s.student_id = $1
		ORDER BY ` + core.Desc("s.submitted_at").String() + limitClause(limit)

	submissions := make([]course.Submission, 0)
	if err := repo.db.SelectContext(ctx, &submissions, q, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	return submissions, nil
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
