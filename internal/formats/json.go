package formats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/edukit/gradebatch/internal/export"
	"github.com/edukit/gradebatch/internal/records"
)

// JSONEncoder writes one student's report as a pretty-printed JSON
// document.
type JSONEncoder struct {
	src GradeSource
}

func NewJSONEncoder(src GradeSource) *JSONEncoder {
	return &JSONEncoder{src: src}
}

func (e *JSONEncoder) Format() export.Format { return FormatJSON }
func (e *JSONEncoder) Ext() string           { return "json" }

func (e *JSONEncoder) Encode(ctx context.Context, student records.Student, path string) error {
	grades, err := e.src.GradesByStudent(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("load grades: %w", err)
	}

	data, err := json.MarshalIndent(BuildReport(student, grades), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
