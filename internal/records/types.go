package records

import "time"

// Kind distinguishes the two student tracks. Honors students are held
// to a higher passing threshold and qualify for honors recognition.
type Kind string

const (
	KindRegular Kind = "regular"
	KindHonors  Kind = "honors"
)

const (
	regularPassingGrade = 50.0
	honorsPassingGrade  = 60.0
)

type Student struct {
	ID        string    `json:"student_id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Kind      Kind      `json:"kind"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExportID identifies the student in batch export runs and output
// file names.
func (s Student) ExportID() string {
	return s.ID
}

// PassingGrade returns the minimum average this student must hold.
func (s Student) PassingGrade() float64 {
	if s.Kind == KindHonors {
		return honorsPassingGrade
	}
	return regularPassingGrade
}

// IsPassing reports whether avg meets the student's passing threshold.
func (s Student) IsPassing(avg float64) bool {
	return avg >= s.PassingGrade()
}

// IsHonorsEligible reports whether the student qualifies for honors
// recognition. Regular-track students never do.
func (s Student) IsHonorsEligible(avg float64) bool {
	return s.Kind == KindHonors && avg >= honorsPassingGrade
}

type Grade struct {
	ID          string    `json:"grade_id"`
	StudentID   string    `json:"student_id"`
	SubjectName string    `json:"subject_name"`
	SubjectType string    `json:"subject_type"`
	Value       float64   `json:"value"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// AverageOf returns the mean value of grades, or 0 for an empty slice.
func AverageOf(grades []Grade) float64 {
	if len(grades) == 0 {
		return 0
	}
	var total float64
	for _, g := range grades {
		total += g.Value
	}
	return total / float64(len(grades))
}
