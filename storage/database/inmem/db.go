package inmemdb

import (
	"sync"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/course"
)

type (
	DB struct {
		mutex sync.RWMutex

		profiles    map[string]*auth.Profile
		courses     map[string]*course.Course
		enrollments map[string]*course.Enrollment
		assignments map[string]*course.Assignment
		submissions map[string]*course.Submission
	}
)

func Open() *DB {
	return &DB{
		profiles:    make(map[string]*auth.Profile),
		courses:     make(map[string]*course.Course),
		enrollments: make(map[string]*course.Enrollment),
		assignments: make(map[string]*course.Assignment),
		submissions: make(map[string]*course.Submission),
	}
}

// Insert stores records of any of the supported types, replacing those with the same ID.
func (db *DB) Insert(records ...interface{}) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for _, rec := range records {
		switch r := rec.(type) {
		case auth.Profile:
			db.profiles[r.ID] = &r
		case course.Course:
			db.courses[r.ID] = &r
		case course.Enrollment:
			db.enrollments[r.ID] = &r
		case course.Assignment:
			db.assignments[r.ID] = &r
		case course.Submission:
			db.submissions[r.ID] = &r
		default:
			panic("inmemdb: unsupported record type")
		}
	}
}

// Reset deletes all records.
func (db *DB) Reset() {
	fresh := Open()
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.profiles, db.courses = fresh.profiles, fresh.courses
	db.enrollments, db.assignments, db.submissions = fresh.enrollments, fresh.assignments, fresh.submissions
}
