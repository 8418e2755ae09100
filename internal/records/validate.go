package records

import (
	"fmt"
	"strings"
)

// ValidateStudent checks the fields a student row must carry before it
// is accepted into the store.
func ValidateStudent(s Student) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("student name is required")
	}
	if s.Age <= 0 {
		return fmt.Errorf("student age must be positive, got %d", s.Age)
	}
	if s.Kind != KindRegular && s.Kind != KindHonors {
		return fmt.Errorf("unknown student kind %q", s.Kind)
	}
	return nil
}

// ValidateGrade checks a grade row. Values live on a 0-100 scale.
func ValidateGrade(g Grade) error {
	if strings.TrimSpace(g.StudentID) == "" {
		return fmt.Errorf("grade student id is required")
	}
	if strings.TrimSpace(g.SubjectName) == "" {
		return fmt.Errorf("grade subject name is required")
	}
	if g.Value < 0 || g.Value > 100 {
		return fmt.Errorf("grade value must be between 0 and 100, got %.1f", g.Value)
	}
	return nil
}

// ParseKind maps an import cell to a student kind. The legacy data set
// uses "Honors"/"Honors Student" markers; anything else is regular.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "honors", "honors student":
		return KindHonors
	default:
		return KindRegular
	}
}
