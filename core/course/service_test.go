package course_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/storage/database/inmem"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	teacher = auth.Profile{ID: "t1", Name: "Ada Teacher", Email: "ada@school.test", Role: auth.RoleTeacher}
	other   = auth.Profile{ID: "t2", Name: "Bea Teacher", Email: "bea@school.test", Role: auth.RoleTeacher}
	student = auth.Profile{ID: "s1", Name: "Sam Student", Email: "sam@school.test", Role: auth.RoleStudent}
	peer    = auth.Profile{ID: "s2", Name: "Pat Student", Email: "pat@school.test", Role: auth.RoleStudent}
)

func at(hours int) time.Time { return t0.Add(time.Duration(hours) * time.Hour) }

func tPtr(t time.Time) *time.Time { return &t }

func grade(g float64) *float64 { return &g }

func seed(t *testing.T) *inmemdb.DB {
	t.Helper()
	db := inmemdb.Open()
	db.Insert(
		teacher, other, student, peer,
		course.Course{ID: "c1", Title: "Algebra", CreatedBy: teacher.ID, CreatedAt: at(1)},
		course.Course{ID: "c2", Title: "Biology", CreatedBy: teacher.ID, CreatedAt: at(2)},
		course.Course{ID: "c3", Title: "Chemistry", CreatedBy: other.ID, CreatedAt: at(3)},
		course.Enrollment{ID: "e1", StudentID: student.ID, CourseID: "c1", EnrolledAt: at(10)},
		course.Enrollment{ID: "e2", StudentID: student.ID, CourseID: "c3", EnrolledAt: at(11)},
		course.Enrollment{ID: "e3", StudentID: peer.ID, CourseID: "c1", EnrolledAt: at(12)},
		course.Assignment{ID: "a1", CourseID: "c1", Title: "Equations", CreatedBy: teacher.ID, CreatedAt: at(20), DueDate: tPtr(at(100))},
		course.Assignment{ID: "a2", CourseID: "c1", Title: "Matrices", CreatedBy: teacher.ID, CreatedAt: at(21), DueDate: tPtr(at(90))},
		course.Assignment{ID: "a3", CourseID: "c3", Title: "Atoms", CreatedBy: other.ID, CreatedAt: at(22)},
		course.Assignment{ID: "a4", CourseID: "c2", Title: "Cells", CreatedBy: teacher.ID, CreatedAt: at(23), DueDate: tPtr(at(80))},
		course.Submission{ID: "sub1", AssignmentID: "a1", StudentID: student.ID, SubmittedAt: at(30), Grade: grade(80)},
		course.Submission{ID: "sub2", AssignmentID: "a2", StudentID: student.ID, SubmittedAt: at(31)},
		course.Submission{ID: "sub3", AssignmentID: "a3", StudentID: student.ID, SubmittedAt: at(32), Grade: grade(95)},
		course.Submission{ID: "sub4", AssignmentID: "a2", StudentID: peer.ID, SubmittedAt: at(33)},
	)
	return db
}

func TestService_TeacherDashboard(t *testing.T) {
	db := seed(t)
	svc := course.NewService(inmemdb.NewCourseRepository(db))

	dash, err := svc.TeacherDashboard(context.Background(), teacher)
	require.NoError(t, err)

	if assert.Len(t, dash.Courses, 2) {
		assert.Equal(t, "Biology", dash.Courses[0].Title) // newest first
		assert.Equal(t, 0, dash.Courses[0].EnrollmentCount)
		assert.Equal(t, 2, dash.Courses[1].EnrollmentCount)
		assert.Equal(t, teacher.Name, dash.Courses[1].TeacherName)
	}

	var titles []string
	for _, a := range dash.Assignments {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"Cells", "Matrices", "Equations"}, titles)

	var subs []string
	for _, s := range dash.Submissions {
		subs = append(subs, s.ID)
	}
	assert.Equal(t, []string{"sub4", "sub2"}, subs)
	assert.Equal(t, "Pat Student", dash.Submissions[0].StudentName)
	assert.Equal(t, "Matrices", dash.Submissions[0].AssignmentTitle)

	assert.Equal(t, course.TeacherStats{Courses: 2, Students: 2, Assignments: 3, PendingGrades: 2}, dash.Stats)
}

func TestService_StudentDashboard(t *testing.T) {
	db := seed(t)
	svc := course.NewService(inmemdb.NewCourseRepository(db))

	dash, err := svc.StudentDashboard(context.Background(), student)
	require.NoError(t, err)

	if assert.Len(t, dash.Courses, 2) {
		assert.Equal(t, "Chemistry", dash.Courses[0].Title) // last enrolled first
		assert.Equal(t, "Bea Teacher", dash.Courses[0].TeacherName)
	}

	var titles []string
	for _, a := range dash.Assignments {
		titles = append(titles, a.Title)
	}
	assert.Equal(t, []string{"Matrices", "Equations", "Atoms"}, titles) // by due date, undated last
	for _, a := range dash.Assignments {
		for _, s := range a.Submissions {
			assert.Equal(t, student.ID, s.StudentID)
		}
	}

	assert.Len(t, dash.Submissions, 3)
	assert.Equal(t, 0, dash.Stats.Pending)
	assert.Equal(t, 2, dash.Stats.Completed)
	if assert.NotNil(t, dash.Stats.AverageGrade) {
		assert.Equal(t, 88, *dash.Stats.AverageGrade) // round(87.5)
	}
	assert.Equal(t, "88%", course.FormatGrade(dash.Stats.AverageGrade))
}

func TestService_StudentDashboard_empty(t *testing.T) {
	db := inmemdb.Open()
	db.Insert(peer)
	svc := course.NewService(inmemdb.NewCourseRepository(db))

	dash, err := svc.StudentDashboard(context.Background(), peer)
	require.NoError(t, err)
	assert.Empty(t, dash.Courses)
	assert.Empty(t, dash.Assignments)
	assert.Equal(t, course.StudentStats{}, dash.Stats)
	assert.Equal(t, "N/A", course.FormatGrade(dash.Stats.AverageGrade))
}

func TestService_pendingAndUngraded(t *testing.T) {
	db := seed(t)
	db.Insert(course.Assignment{ID: "a5", CourseID: "c1", Title: "Graphs", CreatedBy: teacher.ID, CreatedAt: at(24), DueDate: tPtr(at(70))})
	svc := course.NewService(inmemdb.NewCourseRepository(db))

	dash, err := svc.StudentDashboard(context.Background(), peer)
	require.NoError(t, err)

	// peer: Graphs and Equations not submitted, Matrices submitted but not graded
	assert.Equal(t, 2, dash.Stats.Pending)
	assert.Equal(t, 0, dash.Stats.Completed)
	assert.Nil(t, dash.Stats.AverageGrade)
}

func TestService_wrongRole(t *testing.T) {
	svc := course.NewService(inmemdb.NewCourseRepository(inmemdb.Open()))

	_, err := svc.TeacherDashboard(context.Background(), student)
	assert.True(t, errors.Is(err, course.ErrWrongRole))
	_, err = svc.StudentDashboard(context.Background(), teacher)
	assert.True(t, errors.Is(err, course.ErrWrongRole))
}

type failingRepo struct {
	course.Repository
}

func (failingRepo) CoursesByTeacher(context.Context, string) ([]course.Course, error) {
	return nil, errors.New("(42501) permission denied for table courses")
}

func TestService_repositoryError(t *testing.T) {
	svc := course.NewService(failingRepo{})
	_, err := svc.TeacherDashboard(context.Background(), teacher)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "querying courses")
	}
}

func TestFormatGrade(t *testing.T) {
	g := func(i int) *int { return &i }
	tests := []struct {
		grade *int
		want  string
	}{
		{nil, "N/A"},
		{g(0), "N/A"},
		{g(73), "73%"},
		{g(100), "100%"},
	}
	for _, tt := range tests {
		if got := course.FormatGrade(tt.grade); got != tt.want {
			t.Errorf("FormatGrade(%v) = %q; want %q", tt.grade, got, tt.want)
		}
	}
}
