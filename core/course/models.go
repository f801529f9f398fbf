package course

import "time"

type (
	Course struct {
		ID          string    `json:"id" db:"id"`
		Title       string    `json:"title" db:"title"`
		Description string    `json:"description,omitempty" db:"description"`
		Duration    int       `json:"duration,omitempty" db:"duration"` // in weeks
		CreatedBy   string    `json:"created_by" db:"created_by"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

		// joined
		TeacherName     string `json:"teacher_name,omitempty" db:"teacher_name"`
		EnrollmentCount int    `json:"enrollment_count" db:"enrollment_count"`
	}

	Enrollment struct {
		ID         string    `json:"id" db:"id"`
		StudentID  string    `json:"student_id" db:"student_id"`
		CourseID   string    `json:"course_id" db:"course_id"`
		EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
		Course     Course    `json:"course" db:"course"`
	}

	Assignment struct {
		ID          string     `json:"id" db:"id"`
		CourseID    string     `json:"course_id" db:"course_id"`
		Title       string     `json:"title" db:"title"`
		Description string     `json:"description,omitempty" db:"description"`
		DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
		CreatedBy   string     `json:"created_by" db:"created_by"`
		CreatedAt   time.Time  `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

		// joined
		CourseTitle string       `json:"course_title,omitempty" db:"course_title"`
		Submissions []Submission `json:"submissions,omitempty" db:"-"` // of the viewing student
	}

	Submission struct {
		ID           string     `json:"id" db:"id"`
		AssignmentID string     `json:"assignment_id" db:"assignment_id"`
		StudentID    string     `json:"student_id" db:"student_id"`
		Content      string     `json:"content,omitempty" db:"content"`
		FileURL      string     `json:"file_url,omitempty" db:"file_url"`
		Grade        *float64   `json:"grade,omitempty" db:"grade"`
		Feedback     string     `json:"feedback,omitempty" db:"feedback"`
		SubmittedAt  time.Time  `json:"submitted_at" db:"submitted_at"`
		GradedAt     *time.Time `json:"graded_at,omitempty" db:"graded_at"`

		// joined
		AssignmentTitle string `json:"assignment_title,omitempty" db:"assignment_title"`
		CourseTitle     string `json:"course_title,omitempty" db:"course_title"`
		StudentName     string `json:"student_name,omitempty" db:"student_name"`
	}
)

func (s Submission) IsGraded() bool { return s.Grade != nil }

// IsSubmitted reports whether the viewing student handed the assignment in.
func (a Assignment) IsSubmitted() bool { return len(a.Submissions) > 0 }

// Submission returns the viewing student's submission, if any.
func (a Assignment) Submission() *Submission {
	if len(a.Submissions) == 0 {
		return nil
	}
	return &a.Submissions[0]
}
