package records

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ImportResult summarizes a bulk import: how many rows were read, how
// many landed in the store, and why the rest were rejected.
type ImportResult struct {
	TotalRows int
	Imported  int
	Rejected  int
	Failures  []string
}

func (r *ImportResult) reject(row int, reason string) {
	r.Rejected++
	r.Failures = append(r.Failures, fmt.Sprintf("row %d: %s", row, reason))
}

// ImportGradesCSV reads grade rows of the form
// "studentID,subjectName,subjectType,value" (header line first) and
// records each valid row. Rows referencing unknown students, carrying
// malformed values, or duplicating an existing subject grade are
// rejected individually; the rest of the file still imports. A
// duplicate is a grade for the same student, subject, and type;
// overwrite controls whether it replaces the stored value or is
// rejected.
func (s *Store) ImportGradesCSV(ctx context.Context, r io.Reader, overwrite bool) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 {
		rows = rows[1:] // header
	}

	var result ImportResult
	for i, parts := range rows {
		rowNum := i + 2
		result.TotalRows++

		if len(parts) != 4 {
			result.reject(rowNum, "invalid format")
			continue
		}
		studentID := strings.TrimSpace(parts[0])
		subjectName := strings.TrimSpace(parts[1])
		subjectType := strings.TrimSpace(parts[2])
		valueStr := strings.TrimSpace(parts[3])

		if _, found, err := s.GetStudent(ctx, studentID); err != nil {
			return result, err
		} else if !found {
			result.reject(rowNum, fmt.Sprintf("student not found: %s", studentID))
			continue
		}

		if !strings.EqualFold(subjectType, "Core Subject") &&
			!strings.EqualFold(subjectType, "Elective Subject") {
			result.reject(rowNum, fmt.Sprintf("invalid subject type (%s)", subjectType))
			continue
		}

		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			result.reject(rowNum, fmt.Sprintf("invalid grade value %q", valueStr))
			continue
		}

		grade := Grade{
			StudentID:   studentID,
			SubjectName: subjectName,
			SubjectType: subjectType,
			Value:       value,
			RecordedAt:  time.Now().UTC(),
		}
		if err := ValidateGrade(grade); err != nil {
			result.reject(rowNum, err.Error())
			continue
		}

		existing, dup, err := s.FindGradeBySubject(ctx, studentID, subjectName, subjectType)
		if err != nil {
			return result, err
		}
		if dup {
			if !overwrite {
				result.reject(rowNum, "duplicate grade not updated")
				continue
			}
			grade.ID = existing.ID
		} else {
			id, err := s.NextGradeID(ctx)
			if err != nil {
				return result, err
			}
			grade.ID = id
		}

		if err := s.UpsertGrade(ctx, &grade); err != nil {
			return result, err
		}
		result.Imported++
	}
	return result, nil
}

// ImportStudentsCSV reads student rows of the form
// "studentID,name,age,email,phone,type" (header line first). Student
// IDs are reassigned from the store's sequence rather than trusted
// from the file.
func (s *Store) ImportStudentsCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 {
		rows = rows[1:] // header
	}

	var result ImportResult
	for i, parts := range rows {
		rowNum := i + 2
		result.TotalRows++

		if len(parts) < 6 {
			result.reject(rowNum, "invalid format")
			continue
		}

		age, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			result.reject(rowNum, fmt.Sprintf("invalid age %q", parts[2]))
			continue
		}

		student := Student{
			Name:   strings.TrimSpace(parts[1]),
			Age:    age,
			Email:  strings.TrimSpace(parts[3]),
			Phone:  strings.TrimSpace(parts[4]),
			Kind:   ParseKind(parts[5]),
			Status: "Active",
		}
		if err := ValidateStudent(student); err != nil {
			result.reject(rowNum, err.Error())
			continue
		}

		id, err := s.NextStudentID(ctx)
		if err != nil {
			return result, err
		}
		student.ID = id

		if err := s.UpsertStudent(ctx, &student); err != nil {
			return result, err
		}
		result.Imported++
	}
	return result, nil
}
