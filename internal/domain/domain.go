package domain

// Position statuses.
const (
	PositionOpen    = "open"
	PositionPending = "pending"
	PositionClosed  = "closed"
)

// Application statuses.
const (
	AppSubmitted            = "submitted"
	AppSelected             = "selected"
	AppEligibilityEvaluated = "eligibility_evaluated"
	AppAwaitingDecision     = "awaiting_student_decision"
	AppCoopAccepted         = "coop_accepted"
	AppCoopDeclined         = "coop_declined"
	AppSummarySubmitted     = "summary_submitted"
	AppGraded               = "graded"
	AppNotSelected          = "not_selected"
)

// Eligibility verdicts.
const (
	VerdictEligible   = "eligible"
	VerdictIneligible = "ineligible"
)

type Position struct {
	ID                string   `json:"id"`
	EmployerID        string   `json:"employer_id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Weeks             int      `json:"weeks"`
	HoursPerWeek      int      `json:"hours_per_week"`
	Location          string   `json:"location,omitempty"`
	MajorsOfInterest  []string `json:"majors_of_interest,omitempty"`
	RequiredSkills    []string `json:"required_skills,omitempty"`
	PreferredSkills   []string `json:"preferred_skills,omitempty"`
	Salary            string   `json:"salary,omitempty"`
	Status            string   `json:"status" enum:"open,pending,closed"`
	SelectedStudentID *string  `json:"selected_student_id,omitempty"`
	OfferLetter       *string  `json:"offer_letter,omitempty"`
	CreatedAt         string   `json:"created_at" format:"date-time"`
	UpdatedAt         string   `json:"updated_at" format:"date-time"`
}

type Student struct {
	ID                   string  `json:"id"`
	FullName             string  `json:"full_name"`
	Email                string  `json:"email"`
	Department           string  `json:"department"`
	Major                string  `json:"major,omitempty"`
	CreditHoursCompleted int     `json:"credit_hours_completed"`
	GPA                  float64 `json:"gpa"`
	StartTerm            string  `json:"start_term,omitempty"`
	IsTransfer           bool    `json:"is_transfer"`
	CompletedSemesters   int     `json:"completed_semesters"`
	ResumeRef            *string `json:"resume_ref,omitempty"`
	CreatedAt            string  `json:"created_at" format:"date-time"`
}

type Faculty struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// Application carries its eligibility decision once computed; the decision is
// written by the selection transition and never mutated afterwards.
type Application struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	PositionID  string `json:"position_id"`
	Status      string `json:"status" enum:"submitted,selected,eligibility_evaluated,awaiting_student_decision,coop_accepted,coop_declined,summary_submitted,graded,not_selected"`
	SubmittedAt string `json:"submitted_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`

	Verdict            *string  `json:"verdict,omitempty" enum:"eligible,ineligible"`
	EligibilityReasons []string `json:"eligibility_reasons,omitempty"`
	EvaluatedAt        *string  `json:"evaluated_at,omitempty" format:"date-time"`
}

// CoopRecord exists only for applications whose student accepted co-op credit.
type CoopRecord struct {
	ApplicationID string  `json:"application_id"`
	SummaryText   *string `json:"summary_text,omitempty"`
	Grade         *string `json:"grade,omitempty"`
	CoordinatorID *string `json:"coordinator_id,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

// CoopReviewItem is one row of the coordinator review surface: an application
// joined with its coop record and the owning student.
type CoopReviewItem struct {
	Application Application `json:"application"`
	Coop        CoopRecord  `json:"coop"`
	StudentName string      `json:"student_name"`
	Department  string      `json:"department"`
	PositionID  string      `json:"position_id"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
