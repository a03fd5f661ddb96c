package server

import (
	"coopline/internal/domain"
)

type RegisterStudentRequest struct {
	ID                   *string  `json:"id,omitempty"`
	FullName             string   `json:"full_name"`
	Email                string   `json:"email"`
	Department           string   `json:"department"`
	Major                *string  `json:"major,omitempty"`
	CreditHoursCompleted int      `json:"credit_hours_completed,omitempty"`
	GPA                  float64  `json:"gpa"`
	StartTerm            *string  `json:"start_term,omitempty"`
	IsTransfer           bool     `json:"is_transfer,omitempty"`
	CompletedSemesters   int      `json:"completed_semesters,omitempty"`
	ResumeRef            *string  `json:"resume_ref,omitempty"`
}

type RegisterFacultyRequest struct {
	ID         *string `json:"id,omitempty"`
	FullName   string  `json:"full_name"`
	Email      string  `json:"email"`
	Department string  `json:"department"`
}

type OpenPositionRequest struct {
	ID               *string  `json:"id,omitempty"`
	EmployerID       string   `json:"employer_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Weeks            int      `json:"weeks"`
	HoursPerWeek     int      `json:"hours_per_week"`
	Location         *string  `json:"location,omitempty"`
	MajorsOfInterest []string `json:"majors_of_interest,omitempty"`
	RequiredSkills   []string `json:"required_skills,omitempty"`
	PreferredSkills  []string `json:"preferred_skills,omitempty"`
	Salary           *string  `json:"salary,omitempty"`
}

type ApplyRequest struct {
	StudentID string `json:"student_id"`
}

type SelectStudentRequest struct {
	SelectedStudentID string  `json:"selected_student_id"`
	OfferLetter       *string `json:"offer_letter,omitempty"`
}

type SubmitSummaryRequest struct {
	SummaryText string `json:"summary_text"`
}

type GradeRequest struct {
	Grade         string `json:"grade"`
	CoordinatorID string `json:"coordinator_id"`
}

type CreateAPIKeyRequest struct {
	ActorID string  `json:"actor_id"`
	Name    *string `json:"name,omitempty"`
	Key     string  `json:"key"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
