package formats

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/edukit/gradebatch/internal/export"
	"github.com/edukit/gradebatch/internal/records"
)

var csvHeader = []string{"grade_id", "student_id", "subject", "subject_type", "value", "recorded_at"}

// CSVEncoder writes one student's grade rows as a CSV report.
type CSVEncoder struct {
	src GradeSource
}

func NewCSVEncoder(src GradeSource) *CSVEncoder {
	return &CSVEncoder{src: src}
}

func (e *CSVEncoder) Format() export.Format { return FormatCSV }
func (e *CSVEncoder) Ext() string           { return "csv" }

func (e *CSVEncoder) Encode(ctx context.Context, student records.Student, path string) error {
	grades, err := e.src.GradesByStudent(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("load grades: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return err
	}
	for _, g := range grades {
		row := []string{
			g.ID,
			g.StudentID,
			g.SubjectName,
			g.SubjectType,
			strconv.FormatFloat(g.Value, 'f', 1, 64),
			g.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
