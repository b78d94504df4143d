package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
)

// AppendPasswordHistory implements [sias.PasswordHistoryStore].
func (s *Store) AppendPasswordHistory(ctx context.Context, userID, hash string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO password_history (id, user_id, password_hash, created_at)
		VALUES (?, ?, ?, ?)`),
		s.newID(), userID, hash, millis(at),
	)
	return wrap("append password history", err)
}

// RecentPasswordHashes implements [sias.PasswordHistoryStore].
func (s *Store) RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var hashes []string
	err := s.db.SelectContext(ctx, &hashes, s.q(`
		SELECT password_hash FROM password_history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, wrap("recent password hashes", err)
	}
	return hashes, nil
}

type gradeRow struct {
	ID            string `db:"id"`
	EnrollmentID  string `db:"enrollment_id"`
	Grade         string `db:"grade"`
	CourseCode    string `db:"course_code"`
	CourseTitle   string `db:"course_title"`
	SecurityLevel string `db:"security_level"`
}

// ListGradeRecords implements [sias.RecordStore].
func (s *Store) ListGradeRecords(ctx context.Context) ([]sias.GradeRecord, error) {
	var rows []gradeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT g.id, g.enrollment_id, g.grade, c.code AS course_code, c.title AS course_title, g.security_level
		FROM grades g
		JOIN enrollments e ON e.id = g.enrollment_id
		JOIN courses c ON c.id = e.course_id
		ORDER BY c.code, g.id`)
	if err != nil {
		return nil, wrap("list grades", err)
	}
	out := make([]sias.GradeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, sias.GradeRecord{
			ID:            r.ID,
			EnrollmentID:  r.EnrollmentID,
			Grade:         r.Grade,
			CourseCode:    r.CourseCode,
			CourseTitle:   r.CourseTitle,
			SecurityLevel: access.SecurityLevel(r.SecurityLevel),
		})
	}
	return out, nil
}

type enrollmentRow struct {
	ID               string         `db:"id"`
	StudentID        string         `db:"student_user_id"`
	CourseID         string         `db:"course_id"`
	CourseLevel      string         `db:"course_level"`
	InstructorUserID string         `db:"instructor_user_id"`
	Grade            sql.NullString `db:"grade"`
}

// FindEnrollment implements [sias.RecordStore].
func (s *Store) FindEnrollment(ctx context.Context, enrollmentID string) (*sias.EnrollmentRecord, error) {
	var row enrollmentRow
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT e.id, e.student_user_id, e.course_id, c.security_level AS course_level,
			COALESCE(c.instructor_user_id, '') AS instructor_user_id, g.grade
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		LEFT JOIN grades g ON g.enrollment_id = e.id
		WHERE e.id = ?`),
		enrollmentID,
	)
	if err != nil {
		return nil, wrap("find enrollment", err)
	}
	return &sias.EnrollmentRecord{
		ID:                 row.ID,
		StudentID:          row.StudentID,
		CourseID:           row.CourseID,
		CourseLevel:        access.SecurityLevel(row.CourseLevel),
		InstructorUserID:   row.InstructorUserID,
		CurrentGrade:       row.Grade.String,
		CurrentGradeExists: row.Grade.Valid,
	}, nil
}

// UpsertGrade implements [sias.RecordStore].
func (s *Store) UpsertGrade(ctx context.Context, enrollmentID, grade, updatedBy string, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrap("begin grade upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE grades SET grade = ?, updated_by = ?, updated_at = ?
		WHERE enrollment_id = ?`),
		grade, nullString(updatedBy), millis(at), enrollmentID,
	)
	if err != nil {
		return wrap("update grade", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("update grade", err)
	}
	if n == 0 {
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO grades (id, enrollment_id, grade, updated_by, updated_at, security_level)
			VALUES (?, ?, ?, ?, ?, ?)`),
			s.newID(), enrollmentID, grade, nullString(updatedBy), millis(at), string(access.LevelConfidential),
		)
		if err != nil {
			return wrap("insert grade", err)
		}
	}
	return wrap("commit grade upsert", tx.Commit())
}

// Course is an academic course owned by an instructor.
type Course struct {
	ID               string
	Code             string
	Title            string
	Department       string
	InstructorUserID string
	SecurityLevel    access.SecurityLevel
}

// CreateCourse inserts c and returns its id. An empty level defaults to
// [access.LevelInternal].
func (s *Store) CreateCourse(ctx context.Context, c Course) (string, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.SecurityLevel == "" {
		c.SecurityLevel = access.LevelInternal
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO courses (id, code, title, department, instructor_user_id, security_level)
		VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.Code, c.Title, c.Department, nullString(c.InstructorUserID), string(c.SecurityLevel),
	)
	if err != nil {
		return "", wrap("create course", err)
	}
	return c.ID, nil
}

// Enroll adds a student identity to a course and returns the enrollment id.
func (s *Store) Enroll(ctx context.Context, studentUserID, courseID, semester string) (string, error) {
	id := s.newID()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO enrollments (id, student_user_id, course_id, semester)
		VALUES (?, ?, ?, ?)`),
		id, studentUserID, courseID, semester,
	)
	if err != nil {
		return "", wrap("enroll", err)
	}
	return id, nil
}
