package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *DB
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CoursesByTeacher(_ context.Context, teacherID string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if c.CreatedBy == teacherID {
			courses = append(courses, repo.course(c.ID))
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) AssignmentsByTeacher(_ context.Context, teacherID string, limit int) ([]course.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]course.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.CreatedBy == teacherID {
			assignments = append(assignments, repo.assignment(a))
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.After(assignments[j].CreatedAt) })
	return head(assignments, limit), nil
}

func (repo *courseRepository) UngradedSubmissions(_ context.Context, teacherID string, limit int) ([]course.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	submissions := make([]course.Submission, 0)
	for _, s := range repo.db.submissions {
		if s.IsGraded() {
			continue
		}
		a, ok := repo.db.assignments[s.AssignmentID]
		if !ok {
			continue
		}
		if c, ok := repo.db.courses[a.CourseID]; ok && c.CreatedBy == teacherID {
			submissions = append(submissions, repo.submission(s))
		}
	}
	sortSubmissions(submissions)
	return head(submissions, limit), nil
}

func (repo *courseRepository) EnrollmentsByStudent(_ context.Context, studentID string) ([]course.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.StudentID == studentID {
			enr := *e
			enr.Course = repo.course(e.CourseID)
			enrollments = append(enrollments, enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt) })
	return enrollments, nil
}

func (repo *courseRepository) UpcomingAssignments(_ context.Context, studentID string, courseIDs []string, limit int) ([]course.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	inCourses := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		inCourses[id] = true
	}

	assignments := make([]course.Assignment, 0)
	for _, a := range repo.db.assignments {
		if !inCourses[a.CourseID] {
			continue
		}
		asg := repo.assignment(a)
		for _, s := range repo.db.submissions {
			if s.AssignmentID == a.ID && s.StudentID == studentID {
				asg.Submissions = append(asg.Submissions, *s)
			}
		}
		assignments = append(assignments, asg)
	}
	sort.Slice(assignments, func(i, j int) bool {
		di, dj := assignments[i].DueDate, assignments[j].DueDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		}
		return di.Before(*dj)
	})
	return head(assignments, limit), nil
}

func (repo *courseRepository) SubmissionsByStudent(_ context.Context, studentID string, limit int) ([]course.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	submissions := make([]course.Submission, 0)
	for _, s := range repo.db.submissions {
		if s.StudentID == studentID {
			submissions = append(submissions, repo.submission(s))
		}
	}
	sortSubmissions(submissions)
	return head(submissions, limit), nil
}

// joins; the caller must hold the read lock

func (repo *courseRepository) course(id string) course.Course {
	c, ok := repo.db.courses[id]
	if !ok {
		return course.Course{ID: id}
	}
	crs := *c
	if teacher, ok := repo.db.profiles[c.CreatedBy]; ok {
		crs.TeacherName = teacher.Name
	}
	crs.EnrollmentCount = 0
	for _, e := range repo.db.enrollments {
		if e.CourseID == id {
			crs.EnrollmentCount++
		}
	}
	return crs
}

func (repo *courseRepository) assignment(a *course.Assignment) course.Assignment {
	asg := *a
	asg.Submissions = nil
	if c, ok := repo.db.courses[a.CourseID]; ok {
		asg.CourseTitle = c.Title
	}
	return asg
}

func (repo *courseRepository) submission(s *course.Submission) course.Submission {
	sub := *s
	if a, ok := repo.db.assignments[s.AssignmentID]; ok {
		sub.AssignmentTitle = a.Title
		if c, ok := repo.db.courses[a.CourseID]; ok {
			sub.CourseTitle = c.Title
		}
	}
	if student, ok := repo.db.profiles[s.StudentID]; ok {
		sub.StudentName = student.Name
	}
	return sub
}

func sortSubmissions(submissions []course.Submission) {
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].SubmittedAt.After(submissions[j].SubmittedAt) })
}

func head[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
