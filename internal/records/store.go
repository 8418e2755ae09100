package records

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is the SQLite-backed system of record for students and grades.
// Connections are capped at one writer; SQLite serializes access anyway
// and this keeps lock errors out of the hot path.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

const (
	studentIDPrefix = "STU"
	gradeIDPrefix   = "GRD"
)

// NextStudentID allocates the next sequential student ID ("STU001",
// "STU002", ...). Safe under the single-writer connection cap.
func (s *Store) NextStudentID(ctx context.Context) (string, error) {
	n, err := s.nextSequence(ctx, "students", studentIDPrefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", studentIDPrefix, n), nil
}

// NextGradeID allocates the next sequential grade ID ("GRD0001", ...).
func (s *Store) NextGradeID(ctx context.Context) (string, error) {
	n, err := s.nextSequence(ctx, "grades", gradeIDPrefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", gradeIDPrefix, n), nil
}

func (s *Store) nextSequence(ctx context.Context, table, prefix string) (int, error) {
	var max int
	query := fmt.Sprintf(
		`SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM %s WHERE id LIKE ?`,
		len(prefix)+1, table,
	)
	if err := s.db.QueryRowContext(ctx, query, prefix+"%").Scan(&max); err != nil {
		return 0, fmt.Errorf("next %s id: %w", table, err)
	}
	return max + 1, nil
}

func (s *Store) UpsertStudent(ctx context.Context, student *Student) error {
	if student == nil {
		return fmt.Errorf("student is nil")
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO students (
			id, name, age, email, phone, kind, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			age=excluded.age,
			email=excluded.email,
			phone=excluded.phone,
			kind=excluded.kind,
			status=excluded.status,
			updated_at=excluded.updated_at`,
		student.ID,
		student.Name,
		student.Age,
		student.Email,
		student.Phone,
		string(student.Kind),
		student.Status,
		student.CreatedAt,
		student.UpdatedAt,
	)
	return err
}

func (s *Store) GetStudent(ctx context.Context, id string) (Student, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, age, email, phone, kind, status, created_at, updated_at
		 FROM students
		 WHERE id = ?`,
		id,
	)
	var item Student
	var kind string
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Age,
		&item.Email,
		&item.Phone,
		&kind,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return Student{}, false, nil
		}
		return Student{}, false, err
	}
	item.Kind = Kind(kind)
	return item, true, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, age, email, phone, kind, status, created_at, updated_at
		 FROM students
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Student, 0)
	for rows.Next() {
		var item Student
		var kind string
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Age,
			&item.Email,
			&item.Phone,
			&kind,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Kind = Kind(kind)
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// DeleteStudent removes a student together with their grades.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM grades WHERE student_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpsertGrade(ctx context.Context, grade *Grade) error {
	if grade == nil {
		return fmt.Errorf("grade is nil")
	}
	if grade.RecordedAt.IsZero() {
		grade.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO grades (
			id, student_id, subject_name, subject_type, value, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			student_id=excluded.student_id,
			subject_name=excluded.subject_name,
			subject_type=excluded.subject_type,
			value=excluded.value,
			recorded_at=excluded.recorded_at`,
		grade.ID,
		grade.StudentID,
		grade.SubjectName,
		grade.SubjectType,
		grade.Value,
		grade.RecordedAt,
	)
	return err
}

func (s *Store) GradesByStudent(ctx context.Context, studentID string) ([]Grade, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, student_id, subject_name, subject_type, value, recorded_at
		 FROM grades
		 WHERE student_id = ?
		 ORDER BY recorded_at ASC, id ASC`,
		studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Grade, 0)
	for rows.Next() {
		var item Grade
		if err := rows.Scan(
			&item.ID,
			&item.StudentID,
			&item.SubjectName,
			&item.SubjectType,
			&item.Value,
			&item.RecordedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// FindGradeBySubject looks up a student's grade for one subject, used
// to detect duplicates during bulk import.
func (s *Store) FindGradeBySubject(ctx context.Context, studentID, subjectName, subjectType string) (Grade, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, student_id, subject_name, subject_type, value, recorded_at
		 FROM grades
		 WHERE student_id = ? AND subject_name = ? AND subject_type = ?
		 LIMIT 1`,
		studentID,
		subjectName,
		subjectType,
	)
	var item Grade
	if err := row.Scan(
		&item.ID,
		&item.StudentID,
		&item.SubjectName,
		&item.SubjectType,
		&item.Value,
		&item.RecordedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return Grade{}, false, nil
		}
		return Grade{}, false, err
	}
	return item, true, nil
}

func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) CountGrades(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grades`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
