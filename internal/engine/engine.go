package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coopline/internal/config"
	"coopline/internal/domain"
	"coopline/internal/engine/authz"
	"coopline/internal/engine/eligibility"
	"coopline/internal/events"
	"coopline/internal/notify"
	"coopline/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Authz    authz.Service
	Notifier notify.Dispatcher
	Logger   *zap.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Authz:    authz.Service{DB: db},
		Notifier: notify.LogDispatcher{},
		Logger:   zap.NewNop(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// StudentRegisterOptions are parameters for registering a student.
type StudentRegisterOptions struct {
	ID                   string
	FullName             string
	Email                string
	Department           string
	Major                string
	CreditHoursCompleted int
	GPA                  float64
	StartTerm            string
	IsTransfer           bool
	CompletedSemesters   int
	ResumeRef            string
	ActorID              string
}

func (e Engine) RegisterStudent(ctx context.Context, opts StudentRegisterOptions) (domain.Student, error) {
	fields := map[string]string{}
	if strings.TrimSpace(opts.FullName) == "" {
		fields["full_name"] = "required"
	}
	if strings.TrimSpace(opts.Email) == "" {
		fields["email"] = "required"
	}
	if strings.TrimSpace(opts.Department) == "" {
		fields["department"] = "required"
	}
	if opts.GPA < 0 || opts.GPA > 4.0 {
		fields["gpa"] = "must be within 0.0-4.0"
	}
	if opts.CompletedSemesters < 0 {
		fields["completed_semesters"] = "cannot be negative"
	}
	if opts.CreditHoursCompleted < 0 {
		fields["credit_hours_completed"] = "cannot be negative"
	}
	if len(fields) > 0 {
		return domain.Student{}, &ValidationError{Fields: fields}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	s := domain.Student{
		ID:                   id,
		FullName:             opts.FullName,
		Email:                opts.Email,
		Department:           opts.Department,
		Major:                opts.Major,
		CreditHoursCompleted: opts.CreditHoursCompleted,
		GPA:                  opts.GPA,
		StartTerm:            opts.StartTerm,
		IsTransfer:           opts.IsTransfer,
		CompletedSemesters:   opts.CompletedSemesters,
		ResumeRef:            optionalString(opts.ResumeRef),
		CreatedAt:            e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Student{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStudent(ctx, tx, s); err != nil {
		return domain.Student{}, fmt.Errorf("insert student: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "student.registered", "student", s.ID, opts.ActorID, events.EventPayload{
		"department": s.Department,
	}); err != nil {
		return domain.Student{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Student{}, err
	}
	return s, nil
}

// FacultyRegisterOptions are parameters for registering a faculty coordinator.
type FacultyRegisterOptions struct {
	ID         string
	FullName   string
	Email      string
	Department string
	ActorID    string
}

func (e Engine) RegisterFaculty(ctx context.Context, opts FacultyRegisterOptions) (domain.Faculty, error) {
	fields := map[string]string{}
	if strings.TrimSpace(opts.FullName) == "" {
		fields["full_name"] = "required"
	}
	if strings.TrimSpace(opts.Email) == "" {
		fields["email"] = "required"
	}
	if strings.TrimSpace(opts.Department) == "" {
		fields["department"] = "required"
	}
	if len(fields) > 0 {
		return domain.Faculty{}, &ValidationError{Fields: fields}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	f := domain.Faculty{
		ID:         id,
		FullName:   opts.FullName,
		Email:      opts.Email,
		Department: opts.Department,
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Faculty{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertFaculty(ctx, tx, f); err != nil {
		return domain.Faculty{}, fmt.Errorf("insert faculty: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "faculty.registered", "faculty", f.ID, opts.ActorID, events.EventPayload{
		"department": f.Department,
	}); err != nil {
		return domain.Faculty{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Faculty{}, err
	}
	return f, nil
}

// PositionOpenOptions are parameters for posting a position.
type PositionOpenOptions struct {
	ID               string
	EmployerID       string
	Title            string
	Description      string
	Weeks            int
	HoursPerWeek     int
	Location         string
	MajorsOfInterest []string
	RequiredSkills   []string
	PreferredSkills  []string
	Salary           string
	ActorID          string
}

// OpenPosition posts a new position in the open status. Every missing or
// invalid field is reported, not just the first.
func (e Engine) OpenPosition(ctx context.Context, opts PositionOpenOptions) (domain.Position, error) {
	fields := map[string]string{}
	if strings.TrimSpace(opts.EmployerID) == "" {
		fields["employer_id"] = "required"
	}
	if strings.TrimSpace(opts.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(opts.Description) == "" {
		fields["description"] = "required"
	}
	if opts.Weeks <= 0 {
		fields["weeks"] = "must be positive"
	}
	if opts.HoursPerWeek <= 0 {
		fields["hours_per_week"] = "must be positive"
	}
	if len(fields) > 0 {
		return domain.Position{}, &ValidationError{Fields: fields}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Position{
		ID:               id,
		EmployerID:       opts.EmployerID,
		Title:            opts.Title,
		Description:      opts.Description,
		Weeks:            opts.Weeks,
		HoursPerWeek:     opts.HoursPerWeek,
		Location:         opts.Location,
		MajorsOfInterest: opts.MajorsOfInterest,
		RequiredSkills:   opts.RequiredSkills,
		PreferredSkills:  opts.PreferredSkills,
		Salary:           opts.Salary,
		Status:           domain.PositionOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Position{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPosition(ctx, tx, p); err != nil {
		return domain.Position{}, fmt.Errorf("insert position: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "position.opened", "position", p.ID, opts.ActorID, events.EventPayload{
		"title": p.Title, "employer_id": p.EmployerID,
	}); err != nil {
		return domain.Position{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

// Apply submits an application for an open position. A student can hold one
// application per position.
func (e Engine) Apply(ctx context.Context, positionID, studentID, actorID string) (domain.Application, error) {
	if positionID == "" {
		return domain.Application{}, validationErr("position_id", "required")
	}
	if studentID == "" {
		return domain.Application{}, validationErr("student_id", "required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPositionTx(ctx, tx, positionID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("position %s: %w", positionID, err)
	}
	if p.Status != domain.PositionOpen {
		return domain.Application{}, &InvalidTransitionError{Entity: "position", ID: positionID, Current: p.Status, Op: "apply"}
	}
	if _, err := e.Repo.GetStudentTx(ctx, tx, studentID); err != nil {
		return domain.Application{}, fmt.Errorf("student %s: %w", studentID, err)
	}
	if _, err := e.Repo.GetApplicationForStudent(ctx, tx, positionID, studentID); err == nil {
		return domain.Application{}, validationErr("student_id", "already applied to this position")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Application{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	a := domain.Application{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		PositionID:  positionID,
		Status:      domain.AppSubmitted,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertApplication(ctx, tx, a); err != nil {
		return domain.Application{}, fmt.Errorf("insert application: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "application.submitted", "application", a.ID, actorID, events.EventPayload{
		"position_id": positionID, "student_id": studentID,
	}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// MarkPendingOptions are parameters for selecting a student on a position.
type MarkPendingOptions struct {
	PositionID        string
	SelectedStudentID string
	OfferLetter       string
	ActorID           string
}

// MarkPending selects one student for an open position. The position flips to
// pending, every other submitted application becomes not_selected, and the
// selected application is evaluated against the co-op policy, all in one
// transaction. Two callers racing on the same position cannot both win: the
// status flip is a conditional update and the loser observes a position that
// is no longer open.
//
// When the verdict is eligible the application ends in
// awaiting_student_decision and the student is notified after commit. An
// ineligible application stays terminal at eligibility_evaluated and no
// notification goes out.
func (e Engine) MarkPending(ctx context.Context, opts MarkPendingOptions) (domain.Application, error) {
	if e.Config == nil {
		return domain.Application{}, errors.New("config not loaded")
	}
	if opts.PositionID == "" {
		return domain.Application{}, validationErr("position_id", "required")
	}
	if opts.SelectedStudentID == "" {
		return domain.Application{}, validationErr("selected_student_id", "required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	now := e.now().UTC().Format(time.RFC3339)
	ok, err := e.Repo.MarkPositionPending(ctx, tx, opts.PositionID, opts.SelectedStudentID, optionalString(opts.OfferLetter), now)
	if err != nil {
		return domain.Application{}, fmt.Errorf("position %s: %w", opts.PositionID, err)
	}
	if !ok {
		p, err := e.Repo.GetPositionTx(ctx, tx, opts.PositionID)
		if err != nil {
			return domain.Application{}, fmt.Errorf("position %s: %w", opts.PositionID, err)
		}
		return domain.Application{}, &InvalidTransitionError{Entity: "position", ID: opts.PositionID, Current: p.Status, Op: "mark_pending"}
	}
	p, err := e.Repo.GetPositionTx(ctx, tx, opts.PositionID)
	if err != nil {
		return domain.Application{}, err
	}
	s, err := e.Repo.GetStudentTx(ctx, tx, opts.SelectedStudentID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("student %s: %w", opts.SelectedStudentID, err)
	}
	a, err := e.Repo.GetApplicationForStudent(ctx, tx, opts.PositionID, opts.SelectedStudentID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("application for student %s on position %s: %w", opts.SelectedStudentID, opts.PositionID, err)
	}
	if a.Status != domain.AppSubmitted {
		return domain.Application{}, &InvalidTransitionError{Entity: "application", ID: a.ID, Current: a.Status, Op: "select"}
	}

	rejected, err := e.Repo.MarkSiblingsNotSelected(ctx, tx, opts.PositionID, a.ID, now)
	if err != nil {
		return domain.Application{}, fmt.Errorf("reject sibling applications: %w", err)
	}

	if err := e.Events.Append(ctx, tx, "position.pending", "position", p.ID, opts.ActorID, events.EventPayload{
		"selected_student_id": opts.SelectedStudentID,
		"rejected":            rejected,
	}); err != nil {
		return domain.Application{}, err
	}

	a.Status = domain.AppSelected
	a.UpdatedAt = now
	if err := e.Repo.UpdateApplication(ctx, tx, a); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.selected", "application", a.ID, opts.ActorID, events.EventPayload{
		"position_id": p.ID,
	}); err != nil {
		return domain.Application{}, err
	}
	for _, id := range rejected {
		if err := e.Events.Append(ctx, tx, "application.not_selected", "application", id, opts.ActorID, events.EventPayload{
			"position_id": p.ID,
		}); err != nil {
			return domain.Application{}, err
		}
	}

	decision := eligibility.Evaluate(e.Config.Eligibility, eligibility.Input{
		GPA:                s.GPA,
		IsTransfer:         s.IsTransfer,
		CompletedSemesters: s.CompletedSemesters,
		Weeks:              p.Weeks,
		HoursPerWeek:       p.HoursPerWeek,
	}, e.now())
	verdict := domain.VerdictIneligible
	if decision.Eligible {
		verdict = domain.VerdictEligible
	}
	a.Status = domain.AppEligibilityEvaluated
	a.Verdict = &verdict
	a.EligibilityReasons = decision.Reasons
	a.EvaluatedAt = &decision.ComputedAt
	a.UpdatedAt = now
	if err := e.Repo.UpdateApplication(ctx, tx, a); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "application.eligibility_evaluated", "application", a.ID, opts.ActorID, events.EventPayload{
		"verdict": verdict,
		"reasons": decision.Reasons,
	}); err != nil {
		return domain.Application{}, err
	}

	if decision.Eligible {
		a.Status = domain.AppAwaitingDecision
		if err := e.Repo.UpdateApplication(ctx, tx, a); err != nil {
			return domain.Application{}, err
		}
		if err := e.Events.Append(ctx, tx, "notification.requested", "application", a.ID, opts.ActorID, events.EventPayload{
			"kind":       notify.KindOfferReady,
			"student_id": s.ID,
		}); err != nil {
			return domain.Application{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}

	if decision.Eligible && e.Notifier != nil {
		n := notify.Notification{
			StudentID:     s.ID,
			ApplicationID: a.ID,
			PositionID:    p.ID,
			Kind:          notify.KindOfferReady,
			Message:       fmt.Sprintf("You are eligible for co-op credit on %q. Accept or decline the offer.", p.Title),
		}
		if err := e.Notifier.Dispatch(ctx, n); err != nil {
			e.logger().Warn("notification dispatch failed",
				zap.String("application_id", a.ID),
				zap.Error(err))
		}
	}
	return a, nil
}

// ClosePosition closes a position. Closing an already closed position is a
// no-op.
func (e Engine) ClosePosition(ctx context.Context, positionID, actorID string) (domain.Position, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Position{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPositionTx(ctx, tx, positionID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position %s: %w", positionID, err)
	}
	if p.Status == domain.PositionClosed {
		return p, nil
	}
	if err := ensurePositionTransition(p.Status, domain.PositionClosed); err != nil {
		return domain.Position{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdatePositionStatus(ctx, tx, positionID, domain.PositionClosed, now); err != nil {
		return domain.Position{}, err
	}
	if err := e.Events.Append(ctx, tx, "position.closed", "position", positionID, actorID, events.EventPayload{
		"from_status": p.Status,
	}); err != nil {
		return domain.Position{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.PositionClosed
	p.UpdatedAt = now
	return p, nil
}

// AcceptCoop records the student opting into co-op credit. The co-op record
// is created here and filled in by the summary and grading steps.
func (e Engine) AcceptCoop(ctx context.Context, applicationID, actorID string) (domain.Application, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("application %s: %w", applicationID, err)
	}
	if err := ensureApplicationTransition(a, domain.AppCoopAccepted, "accept"); err != nil {
		return domain.Application{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	a.Status = domain.AppCoopAccepted
	a.UpdatedAt = now
	if err := e.Repo.UpdateApplication(ctx, tx, a); err != nil {
		return domain.Application{}, err
	}
	if err := e.Repo.InsertCoopRecord(ctx, tx, domain.CoopRecord{
		ApplicationID: a.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		return domain.Application{}, fmt.Errorf("insert coop record: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "coop.accepted", "application", a.ID, actorID, events.EventPayload{}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// DeclineCoop records the student declining co-op credit. Terminal.
func (e Engine) DeclineCoop(ctx context.Context, applicationID, actorID string) (domain.Application, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("application %s: %w", applicationID, err)
	}
	if err := ensureApplicationTransition(a, domain.AppCoopDeclined, "decline"); err != nil {
		return domain.Application{}, err
	}
	a.Status = domain.AppCoopDeclined
	a.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateApplication(ctx, tx, a); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "coop.declined", "application", a.ID, actorID, events.EventPayload{}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// SubmitSummary attaches the student's work summary to an accepted co-op.
func (e Engine) SubmitSummary(ctx context.Context, applicationID, summaryText, actorID string) (domain.Application, error) {
	if strings.TrimSpace(summaryText) == "" {
		return domain.Application{}, validationErr("summary_text", "required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetApplicationTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("application %s: %w", applicationID, err)
	}
	if err := ensureApplicationTransition(a, domain.AppSummarySubmitted, "submit_summary"); err != nil {
		return domain.Application{}, err
	}
	c, err := e.Repo.GetCoopRecordTx(ctx, tx, applicationID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("coop record %s: %w", applicationID, err)
	}
	now := e.now().UTC().Format(time.RFC3339)
	c.SummaryText = &summaryText
	c.UpdatedAt = now
	if err := e.Repo.UpdateCoopRecord(ctx, tx, c); err != nil {
		return domain.Application{}, err
	}
	a.Status = domain.AppSummarySubmitted
	a.UpdatedAt = now
	if err := e.Repo.UpdateApplication(ctx, tx, a); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "coop.summary_submitted", "application", a.ID, actorID, events.EventPayload{}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// GradeOptions are parameters for grading a co-op summary.
type GradeOptions struct {
	ApplicationID string
	Grade         string
	CoordinatorID string
	ActorID       string
}

// Grade assigns the final grade. The coordinator must belong to the student's
// department, and the summary-on-file precondition is checked inside the same
// transaction as the grade write.
func (e Engine) Grade(ctx context.Context, opts GradeOptions) (domain.Application, error) {
	if strings.TrimSpace(opts.Grade) == "" {
		return domain.Application{}, validationErr("grade", "required")
	}
	if opts.CoordinatorID == "" {
		return domain.Application{}, validationErr("coordinator_id", "required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Application{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetApplicationTx(ctx, tx, opts.ApplicationID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("application %s: %w", opts.ApplicationID, err)
	}
	if err := ensureApplicationTransition(a, domain.AppGraded, "grade"); err != nil {
		return domain.Application{}, err
	}
	s, err := e.Repo.GetStudentTx(ctx, tx, a.StudentID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("student %s: %w", a.StudentID, err)
	}
	dept, found, err := e.Authz.CoordinatorDepartment(ctx, tx, opts.CoordinatorID)
	if err != nil {
		return domain.Application{}, err
	}
	if !found {
		return domain.Application{}, fmt.Errorf("faculty %s: %w", opts.CoordinatorID, repo.ErrNotFound)
	}
	if !authz.SameDepartment(dept, s.Department) {
		return domain.Application{}, &AuthorizationError{ActorID: opts.CoordinatorID, Reason: "coordinator department does not match student department"}
	}
	c, err := e.Repo.GetCoopRecordTx(ctx, tx, a.ID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("coop record %s: %w", a.ID, err)
	}
	if c.SummaryText == nil || strings.TrimSpace(*c.SummaryText) == "" {
		return domain.Application{}, fmt.Errorf("summary for application %s: %w", a.ID, repo.ErrNotFound)
	}
	now := e.now().UTC().Format(time.RFC3339)
	c.Grade = &opts.Grade
	c.CoordinatorID = &opts.CoordinatorID
	c.UpdatedAt = now
	if err := e.Repo.UpdateCoopRecord(ctx, tx, c); err != nil {
		return domain.Application{}, err
	}
	a.Status = domain.AppGraded
	a.UpdatedAt = now
	if err := e.Repo.UpdateApplication(ctx, tx, a); err != nil {
		return domain.Application{}, err
	}
	if err := e.Events.Append(ctx, tx, "coop.graded", "application", a.ID, opts.ActorID, events.EventPayload{
		"grade":          opts.Grade,
		"coordinator_id": opts.CoordinatorID,
	}); err != nil {
		return domain.Application{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Application{}, err
	}
	return a, nil
}

// ListCoopApplications is the coordinator review surface.
func (e Engine) ListCoopApplications(ctx context.Context, department, statusFilter string, limit int) ([]domain.CoopReviewItem, error) {
	return e.Repo.ListCoopReview(ctx, repo.CoopReviewFilters{
		Department: department,
		Status:     statusFilter,
		Limit:      limit,
	})
}

func ensurePositionTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.PositionOpen:
		if newStatus == domain.PositionPending || newStatus == domain.PositionClosed {
			return nil
		}
	case domain.PositionPending:
		if newStatus == domain.PositionClosed {
			return nil
		}
	}
	return &InvalidTransitionError{Entity: "position", Current: oldStatus, Op: "set " + newStatus}
}

func ensureApplicationTransition(a domain.Application, newStatus, op string) error {
	ok := false
	switch a.Status {
	case domain.AppSubmitted:
		ok = newStatus == domain.AppSelected || newStatus == domain.AppNotSelected
	case domain.AppSelected:
		ok = newStatus == domain.AppEligibilityEvaluated
	case domain.AppEligibilityEvaluated:
		// terminal for ineligible verdicts
		ok = newStatus == domain.AppAwaitingDecision && a.Verdict != nil && *a.Verdict == domain.VerdictEligible
	case domain.AppAwaitingDecision:
		ok = newStatus == domain.AppCoopAccepted || newStatus == domain.AppCoopDeclined
	case domain.AppCoopAccepted:
		ok = newStatus == domain.AppSummarySubmitted
	case domain.AppSummarySubmitted:
		ok = newStatus == domain.AppGraded
	}
	if !ok {
		return &InvalidTransitionError{Entity: "application", ID: a.ID, Current: a.Status, Op: op}
	}
	return nil
}

// --- helpers ---

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
