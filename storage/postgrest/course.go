package postgrestrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/supabase-community/postgrest-go"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

// embedded resources, as returned by PostgREST
type (
	named struct {
		Name string `json:"name"`
	}

	titled struct {
		Title     string `json:"title"`
		CreatedBy string `json:"created_by,omitempty"`
	}

	counted struct {
		Count int `json:"count"`
	}

	courseRow struct {
		course.Course
		Enrollments []counted `json:"enrollments"`
		Teacher     *named    `json:"profiles"`
	}

	enrollmentRow struct {
		course.Enrollment
		Course *courseRow `json:"courses"`
	}

	assignmentRow struct {
		course.Assignment
		Course *titled `json:"courses"`
	}

	submissionRow struct {
		course.Submission
		Assignment *struct {
			Title  string  `json:"title"`
			Course *titled `json:"courses"`
		} `json:"assignments"`
		Student *named `json:"profiles"`
	}
)

func (row courseRow) course() course.Course {
	c := row.Course
	if row.Teacher != nil {
		c.TeacherName = row.Teacher.Name
	}
	c.EnrollmentCount = 0
	for _, e := range row.Enrollments {
		c.EnrollmentCount += e.Count
	}
	return c
}

func (row assignmentRow) assignment() course.Assignment {
	a := row.Assignment
	if row.Course != nil {
		a.CourseTitle = row.Course.Title
	}
	return a
}

func (row submissionRow) submission() course.Submission {
	s := row.Submission
	if row.Assignment != nil {
		s.AssignmentTitle = row.Assignment.Title
		if row.Assignment.Course != nil {
			s.CourseTitle = row.Assignment.Course.Title
		}
	}
	if row.Student != nil {
		s.StudentName = row.Student.Name
	}
	return s
}

type courseRepository struct {
	client *Client
}

func NewCourseRepository(client *Client) course.Repository {
	return &courseRepository{client: client}
}

func (repo *courseRepository) CoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	var rows []courseRow
	_, err := repo.client.from(ctx, "courses").
		Select("*, enrollments(count)", "", false).
		Eq("created_by", teacherID).
		Order("created_at", orderOpts(core.Desc("created_at"))).
		ExecuteTo(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo *courseRepository) AssignmentsByTeacher(ctx context.Context, teacherID string, limit int) ([]course.Assignment, error) {
	var rows []assignmentRow
	_, err := repo.client.from(ctx, "assignments").
		Select("*, courses(title)", "", false).
		Eq("created_by", teacherID).
		Order("created_at", orderOpts(core.Desc("created_at"))).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	return assignments(rows), nil
}

func (repo *courseRepository) UngradedSubmissions(ctx context.Context, teacherID string, limit int) ([]course.Submission, error) {
	var rows []submissionRow
	_, err := repo.client.from(ctx, "submissions").
		Select("*, assignments!inner(title, courses!inner(title, created_by)), profiles(name)", "", false).
		Eq("assignments.courses.created_by", teacherID).
		Is("grade", "null").
		Order("submitted_at", orderOpts(core.Desc("submitted_at"))).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	return submissions(rows), nil
}

func (repo *courseRepository) EnrollmentsByStudent(ctx context.Context, studentID string) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	_, err := repo.client.from(ctx, "enrollments").
		Select("*, courses(*, enrollments(count), profiles(name))", "", false).
		Eq("student_id", studentID).
		Order("enrolled_at", orderOpts(core.Desc("enrolled_at"))).
		ExecuteTo(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}

	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		e := row.Enrollment
		if row.Course != nil {
			e.Course = row.Course.course()
		} else {
			e.Course = course.Course{ID: e.CourseID}
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, nil
}

func (repo *courseRepository) UpcomingAssignments(ctx context.Context, studentID string, courseIDs []string, limit int) ([]course.Assignment, error) {
	if len(courseIDs) == 0 {
		return []course.Assignment{}, nil
	}

	var rows []assignmentRow
	_, err := repo.client.from(ctx, "assignments").
		Select("*, courses(title), submissions(*)", "", false).
		In("course_id", courseIDs).
		Eq("submissions.student_id", studentID).
		Order("due_date", orderOpts(core.Asc("due_date"))).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	return assignments(rows), nil
}

func (repo *courseRepository) SubmissionsByStudent(ctx context.Context, studentID string, limit int) ([]course.Submission, error) {
	var rows []submissionRow
	_, err := repo.client.from(ctx, "submissions").
		Select("*, assignments(title, courses(title))", "", false).
		Eq("student_id", studentID).
		Order("submitted_at", orderOpts(core.Desc("submitted_at"))).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	return submissions(rows), nil
}

func orderOpts(ord core.DBOrdering) *postgrest.OrderOpts {
	return &postgrest.OrderOpts{Ascending: ord.Ascending, NullsFirst: ord.NullsFirst}
}

func assignments(rows []assignmentRow) []course.Assignment {
	res := make([]course.Assignment, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.assignment())
	}
	return res
}

func submissions(rows []submissionRow) []course.Submission {
	res := make([]course.Submission, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.submission())
	}
	return res
}
