package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coopline/internal/config"
	"coopline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- students ---

func (r Repo) InsertStudent(ctx context.Context, tx *sql.Tx, s domain.Student) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO students(id,full_name,email,department,major,credit_hours_completed,gpa,start_term,is_transfer,completed_semesters,resume_ref,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.FullName, s.Email, s.Department, nullable(s.Major), s.CreditHoursCompleted, s.GPA, nullable(s.StartTerm),
		boolToInt(s.IsTransfer), s.CompletedSemesters, nullableStringPtr(s.ResumeRef), s.CreatedAt)
	return err
}

func (r Repo) GetStudent(ctx context.Context, id string) (domain.Student, error) {
	return scanStudent(r.DB.QueryRowContext(ctx, `SELECT id,full_name,email,department,major,credit_hours_completed,gpa,start_term,is_transfer,completed_semesters,resume_ref,created_at FROM students WHERE id=?`, id))
}

func (r Repo) GetStudentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Student, error) {
	return scanStudent(tx.QueryRowContext(ctx, `SELECT id,full_name,email,department,major,credit_hours_completed,gpa,start_term,is_transfer,completed_semesters,resume_ref,created_at FROM students WHERE id=?`, id))
}

func scanStudent(row *sql.Row) (domain.Student, error) {
	var s domain.Student
	var major, startTerm, resumeRef sql.NullString
	var isTransfer int
	err := row.Scan(&s.ID, &s.FullName, &s.Email, &s.Department, &major, &s.CreditHoursCompleted, &s.GPA, &startTerm, &isTransfer, &s.CompletedSemesters, &resumeRef, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.IsTransfer = isTransfer != 0
	if major.Valid {
		s.Major = major.String
	}
	if startTerm.Valid {
		s.StartTerm = startTerm.String
	}
	if resumeRef.Valid {
		s.ResumeRef = &resumeRef.String
	}
	return s, nil
}

func (r Repo) ListStudents(ctx context.Context, department string) ([]domain.Student, error) {
	clauses := []string{"1=1"}
	var args []any
	if department != "" {
		clauses = append(clauses, "department=?")
		args = append(args, department)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := r.DB.QueryContext(ctx, `SELECT id,full_name,email,department,major,credit_hours_completed,gpa,start_term,is_transfer,completed_semesters,resume_ref,created_at FROM students `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Student
	for rows.Next() {
		var s domain.Student
		var major, startTerm, resumeRef sql.NullString
		var isTransfer int
		if err := rows.Scan(&s.ID, &s.FullName, &s.Email, &s.Department, &major, &s.CreditHoursCompleted, &s.GPA, &startTerm, &isTransfer, &s.CompletedSemesters, &resumeRef, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.IsTransfer = isTransfer != 0
		if major.Valid {
			s.Major = major.String
		}
		if startTerm.Valid {
			s.StartTerm = startTerm.String
		}
		if resumeRef.Valid {
			s.ResumeRef = &resumeRef.String
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// --- faculty ---

func (r Repo) InsertFaculty(ctx context.Context, tx *sql.Tx, f domain.Faculty) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO faculty(id,full_name,email,department,created_at) VALUES (?,?,?,?,?)`,
		f.ID, f.FullName, f.Email, f.Department, f.CreatedAt)
	return err
}

func (r Repo) GetFaculty(ctx context.Context, id string) (domain.Faculty, error) {
	var f domain.Faculty
	err := r.DB.QueryRowContext(ctx, `SELECT id,full_name,email,department,created_at FROM faculty WHERE id=?`, id).
		Scan(&f.ID, &f.FullName, &f.Email, &f.Department, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

func (r Repo) GetFacultyTx(ctx context.Context, tx *sql.Tx, id string) (domain.Faculty, error) {
	var f domain.Faculty
	err := tx.QueryRowContext(ctx, `SELECT id,full_name,email,department,created_at FROM faculty WHERE id=?`, id).
		Scan(&f.ID, &f.FullName, &f.Email, &f.Department, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

// --- positions ---

const positionCols = `id,employer_id,title,description,weeks,hours_per_week,location,majors_of_interest,required_skills,preferred_skills,salary,status,selected_student_id,offer_letter,created_at,updated_at`

func (r Repo) InsertPosition(ctx context.Context, tx *sql.Tx, p domain.Position) error {
	majors, err := marshalStringSlice(p.MajorsOfInterest)
	if err != nil {
		return err
	}
	required, err := marshalStringSlice(p.RequiredSkills)
	if err != nil {
		return err
	}
	preferred, err := marshalStringSlice(p.PreferredSkills)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO positions(`+positionCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.EmployerID, p.Title, p.Description, p.Weeks, p.HoursPerWeek, nullable(p.Location),
		nullableStringPtr(majors), nullableStringPtr(required), nullableStringPtr(preferred), nullable(p.Salary),
		p.Status, nullableStringPtr(p.SelectedStudentID), nullableStringPtr(p.OfferLetter), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetPosition(ctx context.Context, id string) (domain.Position, error) {
	return scanPosition(r.DB.QueryRowContext(ctx, `SELECT `+positionCols+` FROM positions WHERE id=?`, id))
}

func (r Repo) GetPositionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Position, error) {
	return scanPosition(tx.QueryRowContext(ctx, `SELECT `+positionCols+` FROM positions WHERE id=?`, id))
}

func scanPosition(row *sql.Row) (domain.Position, error) {
	var p domain.Position
	var location, majors, required, preferred, salary, selected, offer sql.NullString
	err := row.Scan(&p.ID, &p.EmployerID, &p.Title, &p.Description, &p.Weeks, &p.HoursPerWeek, &location,
		&majors, &required, &preferred, &salary, &p.Status, &selected, &offer, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if location.Valid {
		p.Location = location.String
	}
	if salary.Valid {
		p.Salary = salary.String
	}
	if selected.Valid {
		p.SelectedStudentID = &selected.String
	}
	if offer.Valid {
		p.OfferLetter = &offer.String
	}
	p.MajorsOfInterest = unmarshalStringSlice(majors)
	p.RequiredSkills = unmarshalStringSlice(required)
	p.PreferredSkills = unmarshalStringSlice(preferred)
	return p, nil
}

// MarkPositionPending performs the open->pending check-and-set. It reports
// ErrNotFound when the row is missing and false when the position was not
// open, leaving state untouched either way.
func (r Repo) MarkPositionPending(ctx context.Context, tx *sql.Tx, id, selectedStudentID string, offerLetter *string, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE positions SET status=?, selected_student_id=?, offer_letter=?, updated_at=? WHERE id=? AND status=?`,
		domain.PositionPending, selectedStudentID, nullableStringPtr(offerLetter), updatedAt, id, domain.PositionOpen)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM positions WHERE id=?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	return false, err
}

func (r Repo) UpdatePositionStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE positions SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type PositionFilters struct {
	EmployerID      string
	Status          string
	Location        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListPositions(ctx context.Context, f PositionFilters) ([]domain.Position, error) {
	var clauses []string
	var args []any
	if f.EmployerID != "" {
		clauses = append(clauses, "employer_id=?")
		args = append(args, f.EmployerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Location != "" {
		clauses = append(clauses, "location=?")
		args = append(args, f.Location)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + positionCols + ` FROM positions ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Position
	for rows.Next() {
		var p domain.Position
		var location, majors, required, preferred, salary, selected, offer sql.NullString
		if err := rows.Scan(&p.ID, &p.EmployerID, &p.Title, &p.Description, &p.Weeks, &p.HoursPerWeek, &location,
			&majors, &required, &preferred, &salary, &p.Status, &selected, &offer, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if location.Valid {
			p.Location = location.String
		}
		if salary.Valid {
			p.Salary = salary.String
		}
		if selected.Valid {
			p.SelectedStudentID = &selected.String
		}
		if offer.Valid {
			p.OfferLetter = &offer.String
		}
		p.MajorsOfInterest = unmarshalStringSlice(majors)
		p.RequiredSkills = unmarshalStringSlice(required)
		p.PreferredSkills = unmarshalStringSlice(preferred)
		res = append(res, p)
	}
	return res, rows.Err()
}

// --- applications ---

const applicationCols = `id,student_id,position_id,status,submitted_at,updated_at,verdict,eligibility_reasons,evaluated_at`

func (r Repo) InsertApplication(ctx context.Context, tx *sql.Tx, a domain.Application) error {
	reasons, err := marshalStringSlice(a.EligibilityReasons)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO applications(`+applicationCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.StudentID, a.PositionID, a.Status, a.SubmittedAt, a.UpdatedAt,
		nullableStringPtr(a.Verdict), nullableStringPtr(reasons), nullableStringPtr(a.EvaluatedAt))
	return err
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	return scanApplication(r.DB.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM applications WHERE id=?`, id))
}

func (r Repo) GetApplicationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Application, error) {
	return scanApplication(tx.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM applications WHERE id=?`, id))
}

func (r Repo) GetApplicationForStudent(ctx context.Context, tx *sql.Tx, positionID, studentID string) (domain.Application, error) {
	return scanApplication(tx.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM applications WHERE position_id=? AND student_id=?`, positionID, studentID))
}

func scanApplication(row *sql.Row) (domain.Application, error) {
	var a domain.Application
	var verdict, reasons, evaluatedAt sql.NullString
	err := row.Scan(&a.ID, &a.StudentID, &a.PositionID, &a.Status, &a.SubmittedAt, &a.UpdatedAt, &verdict, &reasons, &evaluatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if verdict.Valid {
		a.Verdict = &verdict.String
	}
	if evaluatedAt.Valid {
		a.EvaluatedAt = &evaluatedAt.String
	}
	a.EligibilityReasons = unmarshalStringSlice(reasons)
	return a, nil
}

// UpdateApplication rewrites mutable application fields. The eligibility
// columns are only ever written by the selection transition.
func (r Repo) UpdateApplication(ctx context.Context, tx *sql.Tx, a domain.Application) error {
	reasons, err := marshalStringSlice(a.EligibilityReasons)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE applications SET status=?, updated_at=?, verdict=?, eligibility_reasons=?, evaluated_at=? WHERE id=?`,
		a.Status, a.UpdatedAt, nullableStringPtr(a.Verdict), nullableStringPtr(reasons), nullableStringPtr(a.EvaluatedAt), a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSiblingsNotSelected transitions every other submitted application on the
// position to not_selected and returns the affected application IDs.
func (r Repo) MarkSiblingsNotSelected(ctx context.Context, tx *sql.Tx, positionID, selectedAppID, updatedAt string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM applications WHERE position_id=? AND id<>? AND status=?`, positionID, selectedAppID, domain.AppSubmitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE applications SET status=?, updated_at=? WHERE position_id=? AND id<>? AND status=?`,
		domain.AppNotSelected, updatedAt, positionID, selectedAppID, domain.AppSubmitted); err != nil {
		return nil, err
	}
	return ids, nil
}

type ApplicationFilters struct {
	PositionID string
	StudentID  string
	Status     string
	Limit      int
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.Application, error) {
	var clauses []string
	var args []any
	if f.PositionID != "" {
		clauses = append(clauses, "position_id=?")
		args = append(args, f.PositionID)
	}
	if f.StudentID != "" {
		clauses = append(clauses, "student_id=?")
		args = append(args, f.StudentID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + applicationCols + ` FROM applications ` + where + ` ORDER BY submitted_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Application
	for rows.Next() {
		var a domain.Application
		var verdict, reasons, evaluatedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.StudentID, &a.PositionID, &a.Status, &a.SubmittedAt, &a.UpdatedAt, &verdict, &reasons, &evaluatedAt); err != nil {
			return nil, err
		}
		if verdict.Valid {
			a.Verdict = &verdict.String
		}
		if evaluatedAt.Valid {
			a.EvaluatedAt = &evaluatedAt.String
		}
		a.EligibilityReasons = unmarshalStringSlice(reasons)
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- policy config ---

func (r Repo) UpsertPolicyConfig(ctx context.Context, programID string, cfg *config.Config) error {
	return upsertPolicyConfig(ctx, r.DB, nil, programID, cfg)
}

func (r Repo) UpsertPolicyConfigTx(ctx context.Context, tx *sql.Tx, programID string, cfg *config.Config) error {
	return upsertPolicyConfig(ctx, nil, tx, programID, cfg)
}

func upsertPolicyConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, programID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Program.ID = programID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO policy_configs(program_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(program_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, programID, string(payload), now, now)
	return err
}

func (r Repo) GetPolicyConfig(ctx context.Context, programID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM policy_configs WHERE program_id=?`, programID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Program.ID == "" {
		cfg.Program.ID = programID
	}
	return &cfg, cfg.Validate()
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// --- helpers ---

func marshalStringSlice(in []string) (*string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalStringSlice(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(ns.String), &out)
	return out
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
