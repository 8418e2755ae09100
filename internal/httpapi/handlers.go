package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/edukit/gradebatch/internal/records"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// handleExport starts a background run. A second trigger while one is
// in flight returns the running run's ID instead of starting another.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runID, started := s.svc.TriggerExport(s.baseCtx)
	code := http.StatusAccepted
	if !started {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"run_id":  runID,
		"started": started,
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	detail, ok := s.svc.LatestRun()
	if !ok {
		writeError(w, http.StatusNotFound, "no export run yet")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	students, err := s.svc.Students(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, students)
}

type studentGradesResponse struct {
	Student records.Student `json:"student"`
	Grades  []records.Grade `json:"grades"`
	Average float64         `json:"average"`
	Passing bool            `json:"passing"`
}

func (s *Server) handleStudentGrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// /api/students/{id}/grades
	path := strings.TrimPrefix(r.URL.Path, "/api/students/")
	if !strings.HasSuffix(path, "/grades") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	studentID := strings.TrimSuffix(path, "/grades")
	studentID = strings.TrimSuffix(studentID, "/")
	if decoded, err := url.PathUnescape(studentID); err == nil {
		studentID = decoded
	}
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "missing student id")
		return
	}

	student, grades, found, err := s.svc.StudentGrades(r.Context(), studentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("student not found: %s", studentID))
		return
	}

	avg := records.AverageOf(grades)
	writeJSON(w, http.StatusOK, studentGradesResponse{
		Student: student,
		Grades:  grades,
		Average: avg,
		Passing: student.IsPassing(avg),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
