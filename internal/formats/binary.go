package formats

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/edukit/gradebatch/internal/export"
	"github.com/edukit/gradebatch/internal/records"
)

// BinaryEncoder writes the report document with encoding/gob. The .dat
// files round-trip through DecodeReport for consumers reading them
// back.
type BinaryEncoder struct {
	src GradeSource
}

func NewBinaryEncoder(src GradeSource) *BinaryEncoder {
	return &BinaryEncoder{src: src}
}

func (e *BinaryEncoder) Format() export.Format { return FormatBinary }
func (e *BinaryEncoder) Ext() string           { return "dat" }

func (e *BinaryEncoder) Encode(ctx context.Context, student records.Student, path string) error {
	grades, err := e.src.GradesByStudent(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("load grades: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(BuildReport(student, grades)); err != nil {
		f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	return f.Close()
}

// DecodeReport reads a report back from its gob encoding.
func DecodeReport(r io.Reader) (Report, error) {
	var doc Report
	if err := gob.NewDecoder(r).Decode(&doc); err != nil {
		return Report{}, err
	}
	return doc, nil
}
