package formats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edukit/gradebatch/internal/export"
	"github.com/edukit/gradebatch/internal/records"
)

const (
	FormatCSV    export.Format = "csv"
	FormatJSON   export.Format = "json"
	FormatBinary export.Format = "binary"

	// SelectionAll fans out to every format, one subdirectory each.
	SelectionAll = "all"
)

// GradeSource supplies a student's grades to the report encoders.
// *records.Store and *records.GradeCache both satisfy it.
type GradeSource interface {
	GradesByStudent(ctx context.Context, studentID string) ([]records.Grade, error)
}

// ForSelection maps a format selection to the encoder set for a run:
// one of the format names, or "all" for the full fan-out.
func ForSelection(selection string, src GradeSource) ([]export.Encoder[records.Student], error) {
	switch strings.ToLower(strings.TrimSpace(selection)) {
	case string(FormatCSV):
		return []export.Encoder[records.Student]{NewCSVEncoder(src)}, nil
	case string(FormatJSON):
		return []export.Encoder[records.Student]{NewJSONEncoder(src)}, nil
	case string(FormatBinary):
		return []export.Encoder[records.Student]{NewBinaryEncoder(src)}, nil
	case SelectionAll:
		return []export.Encoder[records.Student]{
			NewCSVEncoder(src),
			NewJSONEncoder(src),
			NewBinaryEncoder(src),
		}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want csv, json, binary or all)", selection)
	}
}

// Report is the structured grade report document shared by the JSON
// and binary encoders.
type Report struct {
	Student        records.Student `json:"student"`
	GeneratedAt    time.Time       `json:"generated_at"`
	TotalGrades    int             `json:"total_grades"`
	Average        float64         `json:"average"`
	Passing        bool            `json:"passing"`
	HonorsEligible bool            `json:"honors_eligible"`
	Grades         []records.Grade `json:"grades"`
}

// BuildReport assembles the report document for one student.
func BuildReport(student records.Student, grades []records.Grade) Report {
	avg := records.AverageOf(grades)
	return Report{
		Student:        student,
		GeneratedAt:    time.Now().UTC(),
		TotalGrades:    len(grades),
		Average:        avg,
		Passing:        student.IsPassing(avg),
		HonorsEligible: student.IsHonorsEligible(avg),
		Grades:         grades,
	}
}
